// Copyright 2024 Gustavo C. Viegas. All rights reserved.

// Package null implements rhi.Device as an in-memory reference
// back end: every resource is backed by a plain Go byte slice,
// every command executes synchronously against that memory, and
// every queue's fence completes the instant it is submitted. It
// has no GPU and no native handles; it exists so the rest of the
// engine (the render graph and scene baker in particular) can be
// exercised and tested without a real driver installed.
package null

import (
	"fmt"

	"github.com/nyxgfx/nyx/rhi"
)

type buffer struct {
	rhi.Resource
	desc rhi.BufferDesc
	data []byte
}

func newBuffer(d *device, desc rhi.BufferDesc) *buffer {
	b := &buffer{desc: desc}
	if desc.Size > 0 {
		b.data = make([]byte, desc.Size)
	}
	rhi.InitResource(&b.Resource, nil, func() {})
	return b
}

func (b *buffer) Desc() rhi.BufferDesc { return b.desc }

// Bytes exposes the backing memory unconditionally: a null
// device has no device-local memory distinct from host memory,
// so every buffer is effectively host-visible.
func (b *buffer) Bytes() []byte { return b.data }

type texture struct {
	rhi.Resource
	desc rhi.TextureDesc
	data []byte
}

func textureByteSize(d rhi.TextureDesc) int64 {
	_, _, _, blockSize, _, _ := d.Format.Info()
	depth := d.Depth
	if depth < 1 {
		depth = 1
	}
	arr := d.ArraySize
	if arr < 1 {
		arr = 1
	}
	return int64(d.Width) * int64(d.Height) * int64(depth) * int64(arr) * int64(blockSize)
}

func newTexture(desc rhi.TextureDesc) *texture {
	t := &texture{desc: desc, data: make([]byte, textureByteSize(desc))}
	rhi.InitResource(&t.Resource, nil, func() {})
	return t
}

func (t *texture) Desc() rhi.TextureDesc { return t.desc }

type sampler struct {
	rhi.Resource
	desc rhi.SamplerDesc
}

func newSampler(desc rhi.SamplerDesc) *sampler {
	s := &sampler{desc: desc}
	rhi.InitResource(&s.Resource, nil, func() {})
	return s
}

func (s *sampler) Desc() rhi.SamplerDesc { return s.desc }

var errNoNativeInterop = fmt.Errorf("rhi/null: device has no native resources to import")
