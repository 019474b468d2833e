// Copyright 2024 Gustavo C. Viegas. All rights reserved.

package vk

import (
	"fmt"

	"github.com/nyxgfx/nyx/rhi/vk/internal/driver"
	"github.com/nyxgfx/nyx/rhi"
)

// section is the kind of logical command block currently open
// on the underlying driver.CmdBuffer, mirroring its
// BeginPass/BeginWork/BeginBlit split.
type section int

const (
	sectionNone section = iota
	sectionPass
	sectionWork
	sectionBlit
)

var errNoIndirect = fmt.Errorf("rhi/vk: indirect draw/dispatch is not supported by this backend")

// commandList is the Vulkan-backed rhi.CommandList. Every
// method records directly into the wrapped driver.CmdBuffer as
// it is called, opening and closing BeginPass/BeginWork/
// BeginBlit sections as needed; SetComputeState opens the work
// section a Dispatch requires, while the render pass a Draw
// requires is opened by the first Draw itself.
type commandList struct {
	*rhi.StateTracker

	dev    *device
	queue  rhi.QueueType
	native driver.CmdBuffer

	opened, closed bool
	sect            section

	graphics rhi.GraphicsState
	compute  rhi.ComputeState

	curFBE *framebufEntry

	pendingColorClear map[int][4]float32
	pendingDSClear     *driver.ClearValue
}

func newCommandList(d *device, queue rhi.QueueType) *commandList {
	cl := &commandList{dev: d, queue: queue}
	cl.StateTracker = rhi.NewStateTracker(cl.emitTextureBarrier, cl.emitBufferBarrier)
	return cl
}

func (cl *commandList) Queue() rhi.QueueType { return cl.queue }

func (cl *commandList) Open() error {
	if cl.opened && !cl.closed {
		return fmt.Errorf("rhi/vk: command list already open")
	}
	if cl.native == nil {
		nc, err := cl.dev.gpu.NewCmdBuffer()
		if err != nil {
			return fmt.Errorf("rhi/vk: new command buffer: %w", err)
		}
		cl.native = nc
	} else if err := cl.native.Reset(); err != nil {
		return fmt.Errorf("rhi/vk: reset command buffer: %w", err)
	}
	if err := cl.native.Begin(); err != nil {
		return fmt.Errorf("rhi/vk: begin command buffer: %w", err)
	}
	cl.opened, cl.closed = true, false
	cl.sect = sectionNone
	cl.pendingColorClear = nil
	cl.pendingDSClear = nil
	return nil
}

func (cl *commandList) Close() error {
	if !cl.opened || cl.closed {
		return fmt.Errorf("rhi/vk: command list not open")
	}
	cl.endSection()
	if err := cl.native.End(); err != nil {
		return fmt.Errorf("rhi/vk: end command buffer: %w", err)
	}
	cl.closed = true
	return nil
}

func (cl *commandList) requireOpen() error {
	if !cl.opened || cl.closed {
		return fmt.Errorf("rhi/vk: command list is not open")
	}
	return nil
}

func (cl *commandList) endSection() {
	switch cl.sect {
	case sectionPass:
		cl.native.EndPass()
	case sectionWork:
		cl.native.EndWork()
	case sectionBlit:
		cl.native.EndBlit()
	}
	cl.sect = sectionNone
}

func (cl *commandList) beginBlit() {
	if cl.sect == sectionBlit {
		return
	}
	cl.endSection()
	cl.native.BeginBlit(false)
	cl.sect = sectionBlit
}

func (cl *commandList) beginWork() {
	if cl.sect == sectionWork {
		return
	}
	cl.endSection()
	cl.native.BeginWork(false)
	cl.sect = sectionWork
	if pl := cl.dev.compPipes[cl.compute.Pipeline]; pl != nil {
		cl.native.SetPipeline(pl)
	}
	cl.native.SetDescTableComp(cl.dev.descTable, 0, []int{0, 0})
}

// beginPass (re)opens the render pass backing cl.graphics.FrameBuffer
// and applies the pipeline/viewport/scissor/vertex-buffer state
// recorded by the last SetGraphicsState call. Called lazily, on
// the first Draw after SetGraphicsState, so that
// ClearColorAttachment/ClearDepthStencilAttachment calls made in
// between still land in the clear values passed to BeginPass.
func (cl *commandList) beginPass() error {
	if cl.sect == sectionPass {
		return nil
	}
	cl.endSection()

	fbe := cl.dev.fbufs[cl.graphics.FrameBuffer]
	if fbe == nil {
		return fmt.Errorf("rhi/vk: graphics state's frame buffer was not created by this device")
	}
	cl.curFBE = fbe

	hasDS := cl.graphics.FrameBuffer.Info.DepthStencilFormat != rhi.FormatUnknown
	n := len(cl.graphics.FrameBuffer.Info.ColorFormats)
	if hasDS {
		n++
	}
	clear := make([]driver.ClearValue, n)
	for i, c := range cl.pendingColorClear {
		if i < len(clear) {
			clear[i].Color = c
		}
	}
	if cl.pendingDSClear != nil && hasDS {
		clear[n-1] = *cl.pendingDSClear
	}
	cl.pendingColorClear = nil
	cl.pendingDSClear = nil

	cl.native.BeginPass(fbe.pass, fbe.fb, clear)
	cl.sect = sectionPass

	if pl := cl.dev.gfxPipes[cl.graphics.Pipeline]; pl != nil {
		cl.native.SetPipeline(pl)
	}
	cl.native.SetDescTableGraph(cl.dev.descTable, 0, []int{0, 0})

	vp := cl.graphics.Viewport
	cl.native.SetViewport([]driver.Viewport{{X: vp[0], Y: vp[1], Width: vp[2], Height: vp[3], Znear: 0, Zfar: 1}})
	sc := cl.graphics.Scissor
	cl.native.SetScissor([]driver.Scissor{{X: sc[0], Y: sc[1], Width: sc[2], Height: sc[3]}})

	if len(cl.graphics.VertexBufs) > 0 {
		bufs := make([]driver.Buffer, len(cl.graphics.VertexBufs))
		offs := make([]int64, len(cl.graphics.VertexBufs))
		for i, b := range cl.graphics.VertexBufs {
			bufs[i] = b.(*buffer).native
		}
		if gp := cl.graphics.Pipeline; gp != nil && gp.Input != nil {
			// One binding per input element, at the element's
			// offset into its slot's buffer (see vertexIns).
			bufs = bufs[:0:0]
			offs = offs[:0:0]
			for _, e := range gp.Input.Elements {
				if e.BufferSlot >= len(cl.graphics.VertexBufs) {
					return fmt.Errorf("rhi/vk: no vertex buffer bound at slot %d", e.BufferSlot)
				}
				bufs = append(bufs, cl.graphics.VertexBufs[e.BufferSlot].(*buffer).native)
				offs = append(offs, int64(e.Offset))
			}
		}
		cl.native.SetVertexBuf(0, bufs, offs)
	}
	if cl.graphics.IndexBuf != nil {
		b := cl.graphics.IndexBuf.(*buffer)
		fmtIdx := driver.Index32
		if b.desc.Stride == 2 {
			fmtIdx = driver.Index16
		}
		cl.native.SetIndexBuf(fmtIdx, b.native, 0)
	}
	return nil
}

func (cl *commandList) SetGraphicsState(s rhi.GraphicsState) error {
	if err := cl.requireOpen(); err != nil {
		return err
	}
	if cl.sect == sectionPass {
		cl.endSection()
	}
	cl.graphics = s
	return nil
}

func (cl *commandList) SetComputeState(s rhi.ComputeState) error {
	if err := cl.requireOpen(); err != nil {
		return err
	}
	cl.compute = s
	cl.beginWork()
	return nil
}

// SetPushConstants copies data into the device's push-constant
// ring buffer at a fresh, 256-byte-aligned offset and rewrites
// the reserved CBV descriptor to point at it. Since the ring
// buffer is shared by every command list, callers must not rely
// on previously bound push-constant data surviving past the next
// SetPushConstants call on any queue.
func (cl *commandList) SetPushConstants(data []byte) error {
	if err := cl.requireOpen(); err != nil {
		return err
	}
	d := cl.dev
	d.pushConstMu.Lock()
	off := d.pushConstOff
	next := off + int64(len(data))
	next = (next + pushConstantAlign - 1) / pushConstantAlign * pushConstantAlign
	if next > pushConstantRingSize {
		off = 0
		next = (int64(len(data)) + pushConstantAlign - 1) / pushConstantAlign * pushConstantAlign
	}
	d.pushConstOff = next
	bytes := d.pushConst.Bytes()
	copy(bytes[off:], data)
	d.resourceHeap.SetBuffer(0, constNr, 0, []driver.Buffer{d.pushConst}, []int64{off}, []int64{int64(len(data))})
	d.pushConstMu.Unlock()
	return nil
}

func (cl *commandList) Draw(args rhi.DrawArgs) error {
	if err := cl.requireOpen(); err != nil {
		return err
	}
	if err := cl.beginPass(); err != nil {
		return err
	}
	cl.native.Draw(args.VertexCount, args.InstanceCount, args.FirstVertex, args.FirstInstance)
	return nil
}

func (cl *commandList) DrawIndexed(args rhi.DrawIndexedArgs) error {
	if err := cl.requireOpen(); err != nil {
		return err
	}
	if err := cl.beginPass(); err != nil {
		return err
	}
	cl.native.DrawIndexed(args.IndexCount, args.InstanceCount, args.FirstIndex, args.BaseVertex, args.FirstInstance)
	return nil
}

func (cl *commandList) DrawIndirect(argBuf rhi.Buffer, offset int64) error {
	return errNoIndirect
}

func (cl *commandList) DrawIndexedIndirect(argBuf rhi.Buffer, offset int64) error {
	return errNoIndirect
}

func (cl *commandList) Dispatch(x, y, z int) error {
	if err := cl.requireOpen(); err != nil {
		return err
	}
	cl.beginWork()
	cl.native.Dispatch(x, y, z)
	return nil
}

func (cl *commandList) DispatchIndirect(argBuf rhi.Buffer, offset int64) error {
	return errNoIndirect
}

func (cl *commandList) CopyBuffer(dst, src rhi.Buffer, dstOffset, srcOffset, size int64) error {
	if err := cl.requireOpen(); err != nil {
		return err
	}
	cl.beginBlit()
	d, s := dst.(*buffer), src.(*buffer)
	cl.native.CopyBuffer(&driver.BufferCopy{From: s.native, FromOff: srcOffset, To: d.native, ToOff: dstOffset, Size: size})
	return nil
}

func (cl *commandList) CopyTexture(dst, src rhi.Texture) error {
	if err := cl.requireOpen(); err != nil {
		return err
	}
	cl.beginBlit()
	d, s := dst.(*texture), src.(*texture)
	depth := d.desc.Depth
	if depth < 1 {
		depth = 1
	}
	layers := d.desc.ArraySize
	if layers < 1 {
		layers = 1
	}
	cl.native.CopyImage(&driver.ImageCopy{
		From: s.native, To: d.native,
		Size:   driver.Dim3D{Width: d.desc.Width, Height: d.desc.Height, Depth: depth},
		Layers: layers,
	})
	return nil
}

func (cl *commandList) WriteBuffer(buf rhi.Buffer, data []byte, offset int64) error {
	if err := cl.requireOpen(); err != nil {
		return err
	}
	b := buf.(*buffer)
	if b.native.Visible() {
		copy(b.native.Bytes()[offset:], data)
		return nil
	}
	staging, err := cl.dev.gpu.NewBuffer(int64(len(data)), true, 0)
	if err != nil {
		return fmt.Errorf("rhi/vk: write buffer staging: %w", err)
	}
	copy(staging.Bytes(), data)
	cl.beginBlit()
	cl.native.CopyBuffer(&driver.BufferCopy{From: staging, To: b.native, ToOff: offset, Size: int64(len(data))})
	cl.dev.gc.Defer(rhi.QueueCopy, cl.dev.lastFence(), func() { staging.Destroy() })
	return nil
}

func (cl *commandList) WriteTexture(tex rhi.Texture, mip, arraySlice int, data []byte, rowPitch, depthPitch int64) error {
	if err := cl.requireOpen(); err != nil {
		return err
	}
	t := tex.(*texture)
	_, _, _, blockSize, _, _ := t.desc.Format.Info()
	if blockSize == 0 {
		blockSize = 1
	}
	staging, err := cl.dev.gpu.NewBuffer(int64(len(data)), true, 0)
	if err != nil {
		return fmt.Errorf("rhi/vk: write texture staging: %w", err)
	}
	copy(staging.Bytes(), data)
	cl.beginBlit()
	depth := t.desc.Depth
	if depth < 1 {
		depth = 1
	}
	rowHeight := int64(0)
	if rowPitch > 0 {
		rowHeight = depthPitch / rowPitch
	}
	cl.native.CopyBufToImg(&driver.BufImgCopy{
		Buf:    staging,
		Stride: [2]int64{rowPitch / int64(blockSize), rowHeight},
		Img:    t.native,
		Layer:  arraySlice,
		Level:  mip,
		Size:   driver.Dim3D{Width: t.desc.Width, Height: t.desc.Height, Depth: depth},
	})
	cl.dev.gc.Defer(rhi.QueueCopy, cl.dev.lastFence(), func() { staging.Destroy() })
	return nil
}

func (cl *commandList) ClearColorAttachment(index int, color [4]float32) error {
	if err := cl.requireOpen(); err != nil {
		return err
	}
	if cl.pendingColorClear == nil {
		cl.pendingColorClear = make(map[int][4]float32)
	}
	cl.pendingColorClear[index] = color
	return nil
}

func (cl *commandList) ClearDepthStencilAttachment(depth float32, stencil uint8) error {
	if err := cl.requireOpen(); err != nil {
		return err
	}
	cl.pendingDSClear = &driver.ClearValue{Depth: depth, Stencil: uint32(stencil)}
	return nil
}

func (cl *commandList) emitTextureBarrier(tex rhi.Texture, subresource int, from, to rhi.ResourceState) {
	t, ok := tex.(*texture)
	if !ok {
		return
	}
	v, err := t.view()
	if err != nil {
		return
	}
	fi, ti := lookupState(from), lookupState(to)
	cl.native.Transition([]driver.Transition{{
		Barrier: driver.Barrier{
			SyncBefore: fi.sync, SyncAfter: ti.sync,
			AccessBefore: fi.access, AccessAfter: ti.access,
		},
		LayoutBefore: fi.layout,
		LayoutAfter:  ti.layout,
		IView:        v,
	}})
}

func (cl *commandList) emitBufferBarrier(buf rhi.Buffer, from, to rhi.ResourceState) {
	fi, ti := lookupState(from), lookupState(to)
	cl.native.Barrier([]driver.Barrier{{
		SyncBefore: fi.sync, SyncAfter: ti.sync,
		AccessBefore: fi.access, AccessAfter: ti.access,
	}})
}

func (cl *commandList) SetTextureState(tex rhi.Texture, subresource int, state rhi.ResourceState) {
	cl.StateTracker.SetTextureState(tex, subresource, state)
}

func (cl *commandList) SetBufferState(buf rhi.Buffer, state rhi.ResourceState) {
	cl.StateTracker.SetBufferState(buf, state)
}

func (cl *commandList) CommitDescriptorHeaps() {}

func (cl *commandList) NativeObject() any { return cl.native }
