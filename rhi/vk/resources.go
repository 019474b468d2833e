// Copyright 2024 Gustavo C. Viegas. All rights reserved.

package vk

import (
	"fmt"
	"sync"

	"github.com/nyxgfx/nyx/rhi/vk/internal/driver"
	"github.com/nyxgfx/nyx/rhi"
)

// buffer is the Vulkan-backed rhi.Buffer: a thin wrapper over
// the underlying driver.Buffer, whose Bytes mapping is only
// valid when the buffer was created host-visible.
type buffer struct {
	rhi.Resource
	desc   rhi.BufferDesc
	native driver.Buffer
}

func (d *device) newBuffer(desc rhi.BufferDesc) (*buffer, error) {
	nb, err := d.gpu.NewBuffer(desc.Size, desc.HostVisible, usageFlags(desc.Usage))
	if err != nil {
		return nil, fmt.Errorf("rhi/vk: new buffer: %w", err)
	}
	b := &buffer{desc: desc, native: nb}
	rhi.InitResource(&b.Resource, nil, func() {
		d.gc.Defer(rhi.QueueCopy, d.lastFence(), func() { nb.Destroy() })
	})
	return b, nil
}

func (b *buffer) Desc() rhi.BufferDesc { return b.desc }
func (b *buffer) Bytes() []byte        { return b.native.Bytes() }

// texture is the Vulkan-backed rhi.Texture: the underlying
// driver.Image plus a cache of views, one per view type,
// created on demand for descriptor writes, barriers and
// frame-buffer attachments. Subresources are not modeled
// individually; every view spans the whole resource.
type texture struct {
	rhi.Resource
	desc   rhi.TextureDesc
	native driver.Image

	mu       sync.Mutex
	views    map[driver.ViewType]driver.ImageView
}

func (d *device) newTexture(desc rhi.TextureDesc) (*texture, error) {
	pf, err := pixelFormat(desc.Format)
	if err != nil {
		return nil, err
	}
	depth := desc.Depth
	if depth < 1 {
		depth = 1
	}
	levels := desc.MipLevels
	if levels < 1 {
		levels = 1
	}
	samples := desc.SampleCount
	if samples < 1 {
		samples = 1
	}
	layers := desc.ArraySize
	if layers < 1 {
		layers = 1
	}
	ni, err := d.gpu.NewImage(pf, driver.Dim3D{Width: desc.Width, Height: desc.Height, Depth: depth}, layers, levels, samples, usageFlags(desc.Usage))
	if err != nil {
		return nil, fmt.Errorf("rhi/vk: new image: %w", err)
	}
	t := &texture{desc: desc, native: ni, views: make(map[driver.ViewType]driver.ImageView)}
	rhi.InitResource(&t.Resource, nil, func() {
		d.gc.Defer(rhi.QueueCopy, d.lastFence(), func() { ni.Destroy() })
	})
	return t, nil
}

func (t *texture) Desc() rhi.TextureDesc { return t.desc }

// viewType infers the view dimensionality from the texture's
// description, mirroring TextureDesc.Dimension.
func (t *texture) viewType() driver.ViewType {
	switch {
	case t.desc.Cube:
		if t.desc.ArraySize > 6 {
			return driver.IViewCubeArray
		}
		return driver.IViewCube
	case t.desc.Depth > 1:
		return driver.IView3D
	case t.desc.Height > 1 || t.desc.Width != t.desc.Height:
		if t.desc.ArraySize > 1 {
			return driver.IView2DArray
		}
		if t.desc.SampleCount > 1 {
			return driver.IView2DMS
		}
		return driver.IView2D
	default:
		if t.desc.ArraySize > 1 {
			return driver.IView1DArray
		}
		return driver.IView1D
	}
}

// view returns the whole-resource view, creating it on first
// use. Every caller (descriptor writes, barriers, frame-buffer
// attachments) shares the same view per texture.
func (t *texture) view() (driver.ImageView, error) {
	vt := t.viewType()
	t.mu.Lock()
	defer t.mu.Unlock()
	if v, ok := t.views[vt]; ok {
		return v, nil
	}
	layers := t.desc.ArraySize
	if layers < 1 {
		layers = 1
	}
	levels := t.desc.MipLevels
	if levels < 1 {
		levels = 1
	}
	v, err := t.native.NewView(vt, 0, layers, 0, levels)
	if err != nil {
		return nil, fmt.Errorf("rhi/vk: new image view: %w", err)
	}
	t.views[vt] = v
	return v, nil
}

// sampler is the Vulkan-backed rhi.Sampler.
type sampler struct {
	rhi.Resource
	desc   rhi.SamplerDesc
	native driver.Sampler
}

func (d *device) newSampler(desc rhi.SamplerDesc) (*sampler, error) {
	ns, err := d.gpu.NewSampler(&driver.Sampling{
		Min:      filter(desc.Min),
		Mag:      filter(desc.Mag),
		Mipmap:   filter(desc.Mip),
		AddrU:    addrMode(desc.AddrU),
		AddrV:    addrMode(desc.AddrV),
		AddrW:    addrMode(desc.AddrW),
		MaxAniso: desc.MaxAniso,
		Cmp:      cmpFunc(desc.Cmp),
		MinLOD:   desc.MinLOD,
		MaxLOD:   desc.MaxLOD,
	})
	if err != nil {
		return nil, fmt.Errorf("rhi/vk: new sampler: %w", err)
	}
	s := &sampler{desc: desc, native: ns}
	rhi.InitResource(&s.Resource, nil, func() { ns.Destroy() })
	return s, nil
}

func (s *sampler) Desc() rhi.SamplerDesc { return s.desc }

var errNoNativeInterop = fmt.Errorf("rhi/vk: importing foreign native resources is not supported")
