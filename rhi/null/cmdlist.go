// Copyright 2024 Gustavo C. Viegas. All rights reserved.

package null

import (
	"fmt"

	"github.com/nyxgfx/nyx/rhi"
)

// op is one recorded command-list action. The null back end
// defers every op until Submit (rather than executing as each
// method is called) so that command lists built out of order
// relative to queue submission still behave like a real,
// deferred GPU command buffer.
type op func()

// commandList is the null back end's rhi.CommandList. Every
// mutating call appends an op; SetTextureState/SetBufferState
// run eagerly against the embedded StateTracker so barrier
// idempotence can be observed immediately, without waiting for
// Submit.
type commandList struct {
	*rhi.StateTracker

	dev      *device
	queue    rhi.QueueType
	opened   bool
	closed   bool
	ops      []op

	graphics rhi.GraphicsState
	compute  rhi.ComputeState

	// recorded counts the engine queries during tests.
	DrawCount, DispatchCount, BarrierCountAtSubmit int
}

func newCommandList(dev *device, queue rhi.QueueType) *commandList {
	cl := &commandList{dev: dev, queue: queue}
	cl.StateTracker = rhi.NewStateTracker(
		func(tex rhi.Texture, subresource int, from, to rhi.ResourceState) {},
		func(buf rhi.Buffer, from, to rhi.ResourceState) {},
	)
	return cl
}

func (cl *commandList) Queue() rhi.QueueType { return cl.queue }

func (cl *commandList) Open() error {
	if cl.opened && !cl.closed {
		return fmt.Errorf("rhi/null: command list already open")
	}
	cl.opened, cl.closed = true, false
	cl.ops = cl.ops[:0]
	return nil
}

func (cl *commandList) Close() error {
	if !cl.opened || cl.closed {
		return fmt.Errorf("rhi/null: command list not open")
	}
	cl.closed = true
	return nil
}

func (cl *commandList) requireOpen() error {
	if !cl.opened || cl.closed {
		return fmt.Errorf("rhi/null: command list is not open")
	}
	return nil
}

func (cl *commandList) SetGraphicsState(s rhi.GraphicsState) error {
	if err := cl.requireOpen(); err != nil {
		return err
	}
	cl.ops = append(cl.ops, func() { cl.graphics = s })
	return nil
}

func (cl *commandList) SetComputeState(s rhi.ComputeState) error {
	if err := cl.requireOpen(); err != nil {
		return err
	}
	cl.ops = append(cl.ops, func() { cl.compute = s })
	return nil
}

func (cl *commandList) SetPushConstants(data []byte) error {
	if err := cl.requireOpen(); err != nil {
		return err
	}
	cl.ops = append(cl.ops, func() {})
	return nil
}

func (cl *commandList) Draw(args rhi.DrawArgs) error {
	if err := cl.requireOpen(); err != nil {
		return err
	}
	cl.ops = append(cl.ops, func() { cl.DrawCount++ })
	return nil
}

func (cl *commandList) DrawIndexed(args rhi.DrawIndexedArgs) error {
	if err := cl.requireOpen(); err != nil {
		return err
	}
	cl.ops = append(cl.ops, func() { cl.DrawCount++ })
	return nil
}

func (cl *commandList) DrawIndirect(argBuf rhi.Buffer, offset int64) error {
	if err := cl.requireOpen(); err != nil {
		return err
	}
	cl.ops = append(cl.ops, func() { cl.DrawCount++ })
	return nil
}

func (cl *commandList) DrawIndexedIndirect(argBuf rhi.Buffer, offset int64) error {
	if err := cl.requireOpen(); err != nil {
		return err
	}
	cl.ops = append(cl.ops, func() { cl.DrawCount++ })
	return nil
}

func (cl *commandList) Dispatch(x, y, z int) error {
	if err := cl.requireOpen(); err != nil {
		return err
	}
	cl.ops = append(cl.ops, func() { cl.DispatchCount++ })
	return nil
}

func (cl *commandList) DispatchIndirect(argBuf rhi.Buffer, offset int64) error {
	if err := cl.requireOpen(); err != nil {
		return err
	}
	cl.ops = append(cl.ops, func() { cl.DispatchCount++ })
	return nil
}

func (cl *commandList) CopyBuffer(dst, src rhi.Buffer, dstOffset, srcOffset, size int64) error {
	if err := cl.requireOpen(); err != nil {
		return err
	}
	cl.ops = append(cl.ops, func() {
		d, s := dst.(*buffer), src.(*buffer)
		copy(d.data[dstOffset:dstOffset+size], s.data[srcOffset:srcOffset+size])
	})
	return nil
}

func (cl *commandList) CopyTexture(dst, src rhi.Texture) error {
	if err := cl.requireOpen(); err != nil {
		return err
	}
	cl.ops = append(cl.ops, func() {
		d, s := dst.(*texture), src.(*texture)
		n := len(d.data)
		if len(s.data) < n {
			n = len(s.data)
		}
		copy(d.data[:n], s.data[:n])
	})
	return nil
}

func (cl *commandList) WriteBuffer(buf rhi.Buffer, data []byte, offset int64) error {
	if err := cl.requireOpen(); err != nil {
		return err
	}
	cpy := append([]byte(nil), data...)
	cl.ops = append(cl.ops, func() {
		b := buf.(*buffer)
		copy(b.data[offset:], cpy)
	})
	return nil
}

func (cl *commandList) WriteTexture(tex rhi.Texture, mip, arraySlice int, data []byte, rowPitch, depthPitch int64) error {
	if err := cl.requireOpen(); err != nil {
		return err
	}
	cpy := append([]byte(nil), data...)
	cl.ops = append(cl.ops, func() {
		t := tex.(*texture)
		n := len(cpy)
		if n > len(t.data) {
			n = len(t.data)
		}
		copy(t.data[:n], cpy[:n])
	})
	return nil
}

func (cl *commandList) ClearColorAttachment(index int, color [4]float32) error {
	if err := cl.requireOpen(); err != nil {
		return err
	}
	cl.ops = append(cl.ops, func() {})
	return nil
}

func (cl *commandList) ClearDepthStencilAttachment(depth float32, stencil uint8) error {
	if err := cl.requireOpen(); err != nil {
		return err
	}
	cl.ops = append(cl.ops, func() {})
	return nil
}

func (cl *commandList) SetTextureState(tex rhi.Texture, subresource int, state rhi.ResourceState) {
	cl.StateTracker.SetTextureState(tex, subresource, state)
}

func (cl *commandList) SetBufferState(buf rhi.Buffer, state rhi.ResourceState) {
	cl.StateTracker.SetBufferState(buf, state)
}

func (cl *commandList) CommitDescriptorHeaps() {}

func (cl *commandList) NativeObject() any { return cl }

// execute runs every recorded op in order. Called by
// device.Submit.
func (cl *commandList) execute() {
	for _, o := range cl.ops {
		o()
	}
	cl.BarrierCountAtSubmit = cl.StateTracker.BarrierCount()
}
