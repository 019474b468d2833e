// Copyright 2024 Gustavo C. Viegas. All rights reserved.

package vk

import (
	"fmt"
	"sync"
	"time"

	"github.com/nyxgfx/nyx/rhi/vk/internal/driver"
	"github.com/nyxgfx/nyx/rhi"
)

// Descriptor registers within the device's two shared,
// bindless-style descriptor heaps. Every BindingSet/BindlessSet
// writes into one of these five arrays (four in the resource
// heap, one in the sampler heap) according to the kind
// of the slot it fills; the heap-relative index rhi's
// DescriptorManager hands out doubles as the array index here,
// since the two index spaces (rhi's CPU-only heap and this
// array's element range) are both flat and allocated the same
// way.
const (
	constNr   = 0 // CBV array (SlotCBV, SlotVolatileConstantBuffer, push constants)
	bufferNr  = 1 // SRV/UAV buffers (SlotSRV/SlotUAV when item.Buffer is set)
	imageNr   = 2 // UAV images (SlotUAV when item.Texture is set)
	textureNr = 3 // SRV textures (SlotSRV when item.Texture is set)
	samplerNr = 0 // sampler array (SlotSampler)

	resourceHeapCapacity = 1 << 14 // 16384 descriptors per resource array
	samplerHeapCapacity  = 1 << 10 // 1024 samplers

	// pushConstantRingSize backs SetPushConstants: the driver
	// abstraction has no native push-constant command, so data
	// is copied into this host-visible ring and bound through
	// the reserved CBV slot 0 instead.
	pushConstantRingSize = 1 << 20
	pushConstantAlign    = 256
)

// framebufEntry caches the driver-level render pass and frame
// buffer built for one *rhi.FrameBuffer at CreateFrameBuffer
// time; rhi.FrameBuffer's fields are private, so this side
// table is the only place the backend can keep its own handles.
type framebufEntry struct {
	pass driver.RenderPass
	fb   driver.Framebuf
}

// device is the Vulkan-backed rhi.Device: every factory method
// below either delegates straight to the wrapped driver.GPU or,
// for the handful of rhi types whose concrete struct the
// backend cannot extend (FrameBuffer, GraphicsPipeline,
// ComputePipeline, InputLayout), keeps a side table from the
// returned pointer to the driver objects it built alongside it.
type device struct {
	gpu driver.GPU

	descriptors *rhi.DescriptorManager
	gc          *rhi.GarbageCollector

	resourceHeap driver.DescHeap
	samplerHeap  driver.DescHeap
	descTable    driver.DescTable

	pushConst    driver.Buffer
	pushConstMu  sync.Mutex
	pushConstOff int64

	mu        sync.Mutex
	fences    [3]rhi.Fence
	completed [3]rhi.Fence
	waits     map[rhi.QueueType][]waitEntry

	resMu    sync.Mutex
	attrs    map[*rhi.InputLayout][]rhi.VertexAttr
	fbufs    map[*rhi.FrameBuffer]*framebufEntry
	gfxPipes map[*rhi.GraphicsPipeline]driver.Pipeline
	compPipes map[*rhi.ComputePipeline]driver.Pipeline
}

type waitEntry struct {
	signalQueue rhi.QueueType
	fence       rhi.Fence
}

func newDevice(gpu driver.GPU) (*device, error) {
	resHeap, err := gpu.NewDescHeap([]driver.Descriptor{
		{Type: driver.DConstant, Stages: driver.SVertex | driver.SFragment | driver.SCompute, Nr: constNr, Len: resourceHeapCapacity},
		{Type: driver.DBuffer, Stages: driver.SVertex | driver.SFragment | driver.SCompute, Nr: bufferNr, Len: resourceHeapCapacity},
		{Type: driver.DImage, Stages: driver.SVertex | driver.SFragment | driver.SCompute, Nr: imageNr, Len: resourceHeapCapacity},
		{Type: driver.DTexture, Stages: driver.SVertex | driver.SFragment | driver.SCompute, Nr: textureNr, Len: resourceHeapCapacity},
	})
	if err != nil {
		return nil, fmt.Errorf("rhi/vk: new resource heap: %w", err)
	}
	if err := resHeap.New(1); err != nil {
		return nil, fmt.Errorf("rhi/vk: size resource heap: %w", err)
	}

	samplerHeap, err := gpu.NewDescHeap([]driver.Descriptor{
		{Type: driver.DSampler, Stages: driver.SVertex | driver.SFragment | driver.SCompute, Nr: samplerNr, Len: samplerHeapCapacity},
	})
	if err != nil {
		return nil, fmt.Errorf("rhi/vk: new sampler heap: %w", err)
	}
	if err := samplerHeap.New(1); err != nil {
		return nil, fmt.Errorf("rhi/vk: size sampler heap: %w", err)
	}

	descTable, err := gpu.NewDescTable([]driver.DescHeap{resHeap, samplerHeap})
	if err != nil {
		return nil, fmt.Errorf("rhi/vk: new desc table: %w", err)
	}

	pushBuf, err := gpu.NewBuffer(pushConstantRingSize, true, driver.UShaderConst)
	if err != nil {
		return nil, fmt.Errorf("rhi/vk: new push-constant ring: %w", err)
	}

	d := &device{
		gpu:          gpu,
		descriptors:  rhi.NewDescriptorManager(nil),
		gc:           &rhi.GarbageCollector{},
		resourceHeap: resHeap,
		samplerHeap:  samplerHeap,
		descTable:    descTable,
		pushConst:    pushBuf,
		waits:        make(map[rhi.QueueType][]waitEntry),
		attrs:        make(map[*rhi.InputLayout][]rhi.VertexAttr),
		fbufs:        make(map[*rhi.FrameBuffer]*framebufEntry),
		gfxPipes:     make(map[*rhi.GraphicsPipeline]driver.Pipeline),
		compPipes:    make(map[*rhi.ComputePipeline]driver.Pipeline),
	}

	// Reserve heap index 0 of the CBV array for push constants
	// so every binding set/bindless set allocated afterwards
	// starts at index 1.
	if _, err := d.descriptors.Alloc(rhi.DescriptorResource, 1); err != nil {
		return nil, fmt.Errorf("rhi/vk: reserve push-constant slot: %w", err)
	}
	d.resourceHeap.SetBuffer(0, constNr, 0, []driver.Buffer{pushBuf}, []int64{0}, []int64{pushConstantAlign})

	return d, nil
}

// write is the descriptor-write callback handed to
// rhi.NewBindingSet/NewBindlessSet.
func (d *device) write(kind rhi.SlotKind, heapIndex int, item rhi.BindingItem) {
	switch kind {
	case rhi.SlotSampler:
		s := item.Sampler.(*sampler)
		d.samplerHeap.SetSampler(0, samplerNr, heapIndex, []driver.Sampler{s.native})
	case rhi.SlotCBV, rhi.SlotVolatileConstantBuffer:
		b := item.Buffer.(*buffer)
		d.resourceHeap.SetBuffer(0, constNr, heapIndex, []driver.Buffer{b.native}, []int64{0}, []int64{b.desc.Size})
	case rhi.SlotSRV:
		if item.Texture != nil {
			t := item.Texture.(*texture)
			v, err := t.view()
			if err != nil {
				return
			}
			d.resourceHeap.SetImage(0, textureNr, heapIndex, []driver.ImageView{v})
		} else {
			b := item.Buffer.(*buffer)
			d.resourceHeap.SetBuffer(0, bufferNr, heapIndex, []driver.Buffer{b.native}, []int64{0}, []int64{b.desc.Size})
		}
	case rhi.SlotUAV:
		if item.Texture != nil {
			t := item.Texture.(*texture)
			v, err := t.view()
			if err != nil {
				return
			}
			d.resourceHeap.SetImage(0, imageNr, heapIndex, []driver.ImageView{v})
		} else {
			b := item.Buffer.(*buffer)
			d.resourceHeap.SetBuffer(0, bufferNr, heapIndex, []driver.Buffer{b.native}, []int64{0}, []int64{b.desc.Size})
		}
	}
}

func (d *device) CreateBuffer(desc rhi.BufferDesc) (rhi.Buffer, error) { return d.newBuffer(desc) }

func (d *device) CreateTexture(desc rhi.TextureDesc) (rhi.Texture, error) { return d.newTexture(desc) }

func (d *device) CreateStagingTexture(desc rhi.StagingTextureDesc) (rhi.Texture, error) {
	if desc.RowPitch == 0 {
		desc.RowPitch = int(rhi.RowPitch(desc.Width, desc.Format, 1))
	}
	return d.newTexture(desc.TextureDesc)
}

func (d *device) CreateSampler(desc rhi.SamplerDesc) (rhi.Sampler, error) { return d.newSampler(desc) }

func (d *device) CreateTextureFromNative(native any, desc rhi.TextureDesc) (rhi.Texture, error) {
	img, ok := native.(driver.Image)
	if !ok {
		return nil, errNoNativeInterop
	}
	t := &texture{desc: desc, native: img, views: make(map[driver.ViewType]driver.ImageView)}
	rhi.InitResource(&t.Resource, nil, func() {})
	return t, nil
}

func (d *device) CreateBufferFromNative(native any, desc rhi.BufferDesc) (rhi.Buffer, error) {
	buf, ok := native.(driver.Buffer)
	if !ok {
		return nil, errNoNativeInterop
	}
	b := &buffer{desc: desc, native: buf}
	rhi.InitResource(&b.Resource, nil, func() {})
	return b, nil
}

func (d *device) CreateBindingLayout(desc rhi.BindingLayoutDesc) (*rhi.BindingLayout, error) {
	return rhi.CompileBindingLayout(desc)
}

func (d *device) CreateBindlessLayout(desc rhi.BindlessLayoutDesc) (*rhi.BindlessLayout, error) {
	return rhi.CompileBindlessLayout(desc), nil
}

func (d *device) CreateBindingSet(layout *rhi.BindingLayout, items []rhi.BindingItem) (*rhi.BindingSet, error) {
	return rhi.NewBindingSet(d.descriptors, layout, items, d.write)
}

func (d *device) CreateBindlessSet(layout *rhi.BindlessLayout, capacity int) (*rhi.BindlessSet, error) {
	return rhi.NewBindlessSet(d.descriptors, layout, capacity, d.write)
}

func (d *device) CreateInputLayout(attrs []rhi.VertexAttr) (*rhi.InputLayout, error) {
	il, err := rhi.CompileInputLayout(attrs)
	if err != nil {
		return nil, err
	}
	cpy := append([]rhi.VertexAttr(nil), attrs...)
	d.resMu.Lock()
	d.attrs[il] = cpy
	d.resMu.Unlock()
	return il, nil
}

func (d *device) CreateCommandList(queue rhi.QueueType) (rhi.CommandList, error) {
	return newCommandList(d, queue), nil
}

// Submit records the command list's native buffer and commits
// it to the GPU, returning the fence value the queue will reach
// once it completes. Completion is observed asynchronously: a
// goroutine waits on the channel driver.GPU.Commit signals and
// advances the queue's completed counter.
func (d *device) Submit(cl rhi.CommandList) (rhi.Fence, error) {
	vcl, ok := cl.(*commandList)
	if !ok {
		return 0, fmt.Errorf("rhi/vk: foreign command list")
	}

	d.mu.Lock()
	d.fences[vcl.queue]++
	fence := d.fences[vcl.queue]
	d.mu.Unlock()

	ch := make(chan error, 1)
	d.gpu.Commit([]driver.CmdBuffer{vcl.native}, ch)
	go func() {
		err := <-ch
		d.mu.Lock()
		if err == nil && fence > d.completed[vcl.queue] {
			d.completed[vcl.queue] = fence
		}
		d.mu.Unlock()
	}()
	return fence, nil
}

func (d *device) QueueWaitForCommandList(waitQueue, signalQueue rhi.QueueType, fenceValue rhi.Fence) {
	d.mu.Lock()
	d.waits[waitQueue] = append(d.waits[waitQueue], waitEntry{signalQueue, fenceValue})
	d.mu.Unlock()
}

func (d *device) WaitIdle() {
	for q := rhi.QueueGraphics; q <= rhi.QueueCopy; q++ {
		for d.CompletedFence(q) < d.lastFenceForQueue(q) {
			time.Sleep(time.Microsecond * 50)
		}
	}
}

func (d *device) Descriptors() *rhi.DescriptorManager { return d.descriptors }
func (d *device) GC() *rhi.GarbageCollector            { return d.gc }

func (d *device) RunGarbageCollection() { d.gc.Run(d.CompletedFence) }

func (d *device) CompletedFence(queue rhi.QueueType) rhi.Fence {
	d.mu.Lock()
	defer d.mu.Unlock()
	completed := d.completed[queue]
	for _, w := range d.waits[queue] {
		if d.completed[w.signalQueue] < w.fence {
			return 0
		}
	}
	return completed
}

func (d *device) lastFenceForQueue(q rhi.QueueType) rhi.Fence {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.fences[q]
}

// lastFence reports the highest fence value issued on any
// queue so far, used to schedule GC of resources whose owning
// queue is not tracked individually (e.g. released buffers and
// textures, which may have been read from any queue).
func (d *device) lastFence() rhi.Fence {
	d.mu.Lock()
	defer d.mu.Unlock()
	f := d.fences[0]
	for _, v := range d.fences[1:] {
		if v > f {
			f = v
		}
	}
	return f
}
