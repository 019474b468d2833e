// Copyright 2024 Gustavo C. Viegas. All rights reserved.

package null

import (
	"fmt"
	"sync"

	"github.com/nyxgfx/nyx/rhi"
)

// device is the in-memory rhi.Device implementation. Every
// queue's fence is a monotonically increasing counter that is
// already at its submitted value by the time Submit returns,
// since there is no asynchronous GPU timeline to wait on.
type device struct {
	descriptors *rhi.DescriptorManager
	gc          *rhi.GarbageCollector

	mu       sync.Mutex
	fences   [3]rhi.Fence // indexed by rhi.QueueType
	waits    map[rhi.QueueType][]waitEntry
}

type waitEntry struct {
	signalQueue rhi.QueueType
	fence       rhi.Fence
}

// New creates an in-memory reference Device.
func New() rhi.Device {
	return &device{
		descriptors: rhi.NewDescriptorManager(nil),
		gc:          &rhi.GarbageCollector{},
		waits:       make(map[rhi.QueueType][]waitEntry),
	}
}

func (d *device) CreateBuffer(desc rhi.BufferDesc) (rhi.Buffer, error) {
	return newBuffer(d, desc), nil
}

func (d *device) CreateTexture(desc rhi.TextureDesc) (rhi.Texture, error) {
	return newTexture(desc), nil
}

func (d *device) CreateStagingTexture(desc rhi.StagingTextureDesc) (rhi.Texture, error) {
	if desc.RowPitch == 0 {
		desc.RowPitch = int(rhi.RowPitch(desc.Width, desc.Format, 1))
	}
	return newTexture(desc.TextureDesc), nil
}

func (d *device) CreateSampler(desc rhi.SamplerDesc) (rhi.Sampler, error) {
	return newSampler(desc), nil
}

func (d *device) CreateTextureFromNative(native any, desc rhi.TextureDesc) (rhi.Texture, error) {
	return nil, errNoNativeInterop
}

func (d *device) CreateBufferFromNative(native any, desc rhi.BufferDesc) (rhi.Buffer, error) {
	return nil, errNoNativeInterop
}

func (d *device) CreateBindingLayout(desc rhi.BindingLayoutDesc) (*rhi.BindingLayout, error) {
	return rhi.CompileBindingLayout(desc)
}

func (d *device) CreateBindlessLayout(desc rhi.BindlessLayoutDesc) (*rhi.BindlessLayout, error) {
	return rhi.CompileBindlessLayout(desc), nil
}

// write is the descriptor-write callback handed to
// NewBindingSet/NewBindlessSet: the null device has no real
// descriptor memory, so it is a no-op. The items themselves are
// retained by the caller (in GraphicsState/ComputeState), which
// is all command-list execution needs.
func (d *device) write(kind rhi.SlotKind, heapIndex int, item rhi.BindingItem) {}

func (d *device) CreateBindingSet(layout *rhi.BindingLayout, items []rhi.BindingItem) (*rhi.BindingSet, error) {
	return rhi.NewBindingSet(d.descriptors, layout, items, d.write)
}

func (d *device) CreateBindlessSet(layout *rhi.BindlessLayout, capacity int) (*rhi.BindlessSet, error) {
	return rhi.NewBindlessSet(d.descriptors, layout, capacity, d.write)
}

func (d *device) CreateInputLayout(attrs []rhi.VertexAttr) (*rhi.InputLayout, error) {
	return rhi.CompileInputLayout(attrs)
}

func (d *device) CreateFrameBuffer(desc rhi.FrameBufferDesc) (*rhi.FrameBuffer, error) {
	return rhi.CompileFrameBuffer(desc)
}

func (d *device) CreateGraphicsPipeline(desc rhi.GraphicsPipelineDesc) (*rhi.GraphicsPipeline, error) {
	return rhi.CreateGraphicsPipeline(desc)
}

func (d *device) CreateComputePipeline(desc rhi.ComputePipelineDesc) (*rhi.ComputePipeline, error) {
	return rhi.CreateComputePipeline(desc)
}

func (d *device) CreateCommandList(queue rhi.QueueType) (rhi.CommandList, error) {
	return newCommandList(d, queue), nil
}

// Submit executes every recorded op against this device's
// in-memory resources and advances queue's fence.
func (d *device) Submit(cl rhi.CommandList) (rhi.Fence, error) {
	ncl, ok := cl.(*commandList)
	if !ok {
		return 0, fmt.Errorf("rhi/null: foreign command list")
	}
	ncl.execute()

	q := ncl.queue
	d.mu.Lock()
	d.fences[q]++
	fence := d.fences[q]
	d.mu.Unlock()
	return fence, nil
}

// QueueWaitForCommandList records that waitQueue must not be
// considered complete past fenceValue until signalQueue reaches
// it. Since every queue here executes synchronously and
// in-order, this is purely bookkeeping for CompletedFence.
func (d *device) QueueWaitForCommandList(waitQueue, signalQueue rhi.QueueType, fenceValue rhi.Fence) {
	d.mu.Lock()
	d.waits[waitQueue] = append(d.waits[waitQueue], waitEntry{signalQueue, fenceValue})
	d.mu.Unlock()
}

func (d *device) WaitIdle() {}

func (d *device) Descriptors() *rhi.DescriptorManager { return d.descriptors }
func (d *device) GC() *rhi.GarbageCollector            { return d.gc }

func (d *device) RunGarbageCollection() {
	d.gc.Run(d.CompletedFence)
}

// CompletedFence reports queue's own fence counter, clamped by
// any cross-queue wait still outstanding.
func (d *device) CompletedFence(queue rhi.QueueType) rhi.Fence {
	d.mu.Lock()
	defer d.mu.Unlock()
	completed := d.fences[queue]
	for _, w := range d.waits[queue] {
		if d.fences[w.signalQueue] < w.fence {
			return 0
		}
	}
	return completed
}
