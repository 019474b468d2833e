// Copyright 2024 Gustavo C. Viegas. All rights reserved.

package vk

import (
	"fmt"

	"github.com/nyxgfx/nyx/rhi/vk/internal/driver"
	"github.com/nyxgfx/nyx/rhi"
)

// CreateFrameBuffer compiles desc through rhi.CompileFrameBuffer
// for validation, then builds the driver-level render pass and
// frame buffer backing it: one color attachment per Color entry
// (cleared on load, stored), an optional depth-stencil
// attachment (both aspects cleared on load and stored), and a
// single subpass
// referencing every attachment.
func (d *device) CreateFrameBuffer(desc rhi.FrameBufferDesc) (*rhi.FrameBuffer, error) {
	fb, err := rhi.CompileFrameBuffer(desc)
	if err != nil {
		return nil, err
	}

	var atts []driver.Attachment
	var views []driver.ImageView
	sub := driver.Subpass{DS: -1}

	for i, c := range desc.Color {
		pf, err := pixelFormat(c.Texture.Desc().Format)
		if err != nil {
			return nil, err
		}
		atts = append(atts, driver.Attachment{
			Format:  pf,
			Samples: 1,
			Load:    [2]driver.LoadOp{driver.LClear, driver.LDontCare},
			Store:   [2]driver.StoreOp{driver.SStore, driver.SDontCare},
		})
		tv, ok := c.Texture.(*texture)
		if !ok {
			return nil, fmt.Errorf("rhi/vk: frame buffer attachment %d is not a vk texture", i)
		}
		v, err := tv.view()
		if err != nil {
			return nil, err
		}
		views = append(views, v)
		sub.Color = append(sub.Color, i)
	}

	if desc.DepthStencil != nil {
		t := desc.DepthStencil.Texture
		pf, err := pixelFormat(t.Desc().Format)
		if err != nil {
			return nil, err
		}
		atts = append(atts, driver.Attachment{
			Format:  pf,
			Samples: 1,
			Load:    [2]driver.LoadOp{driver.LClear, driver.LClear},
			Store:   [2]driver.StoreOp{driver.SStore, driver.SStore},
		})
		tv, ok := t.(*texture)
		if !ok {
			return nil, fmt.Errorf("rhi/vk: frame buffer depth-stencil attachment is not a vk texture")
		}
		v, err := tv.view()
		if err != nil {
			return nil, err
		}
		views = append(views, v)
		sub.DS = len(atts) - 1
	}

	pass, err := d.gpu.NewRenderPass(atts, []driver.Subpass{sub})
	if err != nil {
		return nil, fmt.Errorf("rhi/vk: new render pass: %w", err)
	}
	width, height := fb.Info.Width, fb.Info.Height
	if width < 1 {
		width = 1
	}
	if height < 1 {
		height = 1
	}
	dfb, err := pass.NewFB(views, width, height, 1)
	if err != nil {
		return nil, fmt.Errorf("rhi/vk: new frame buffer: %w", err)
	}

	d.resMu.Lock()
	d.fbufs[fb] = &framebufEntry{pass: pass, fb: dfb}
	d.resMu.Unlock()
	return fb, nil
}

// vertexIns rebuilds the driver's per-attribute VertexIn list
// for il: one entry per compiled element, reusing that
// element's original VertexAttr.Stride. Interleaved attributes
// (several elements sharing a BufferSlot at different byte
// offsets) are represented as independent bindings at the same
// buffer, bound at the element's own offset in SetGraphicsState
// -- driver.VertexIn carries no per-element offset field.
func (d *device) vertexIns(il *rhi.InputLayout) ([]driver.VertexIn, error) {
	d.resMu.Lock()
	attrs := d.attrs[il]
	d.resMu.Unlock()
	if attrs == nil {
		return nil, fmt.Errorf("rhi/vk: input layout was not created by this device")
	}
	strides := make(map[int]int, len(attrs))
	for _, a := range attrs {
		strides[a.BufferSlot] = a.Stride
	}
	out := make([]driver.VertexIn, len(il.Elements))
	for i, e := range il.Elements {
		vf, err := vertexFormat(e.Format)
		if err != nil {
			return nil, err
		}
		out[i] = driver.VertexIn{
			Format: vf,
			Stride: strides[e.BufferSlot],
			Nr:     i,
			Name:   e.Semantic,
		}
	}
	return out, nil
}

func colorBlend(b rhi.BlendState, n int) driver.BlendState {
	cb := driver.ColorBlend{
		Blend:     b.Enable,
		WriteMask: driver.CAll,
		Op:        [2]driver.BlendOp{driver.BAdd, driver.BAdd},
		SrcFac:    [2]driver.BlendFac{driver.BOne, driver.BOne},
		DstFac:    [2]driver.BlendFac{driver.BZero, driver.BZero},
	}
	if b.Enable {
		cb.SrcFac = [2]driver.BlendFac{driver.BSrcAlpha, driver.BSrcAlpha}
		cb.DstFac = [2]driver.BlendFac{driver.BInvSrcAlpha, driver.BInvSrcAlpha}
	}
	colors := make([]driver.ColorBlend, n)
	for i := range colors {
		colors[i] = cb
	}
	return driver.BlendState{Color: colors}
}

// CreateGraphicsPipeline compiles desc via rhi.CreateGraphicsPipeline
// for its shared, backend-agnostic bookkeeping, then builds the
// matching driver.Pipeline from the render pass cached for
// desc.FrameBuffer (by CreateFrameBuffer) and the shader
// bytecode, vertex input, raster/depth-stencil/blend state.
func (d *device) CreateGraphicsPipeline(desc rhi.GraphicsPipelineDesc) (*rhi.GraphicsPipeline, error) {
	p, err := rhi.CreateGraphicsPipeline(desc)
	if err != nil {
		return nil, err
	}

	d.resMu.Lock()
	fbe := d.fbufs[desc.FrameBuffer]
	d.resMu.Unlock()
	if fbe == nil {
		return nil, fmt.Errorf("rhi/vk: graphics pipeline's frame buffer was not created by this device")
	}

	vs, err := d.gpu.NewShaderCode(desc.VertexShader)
	if err != nil {
		return nil, fmt.Errorf("rhi/vk: compile vertex shader: %w", err)
	}
	fs, err := d.gpu.NewShaderCode(desc.FragmentShader)
	if err != nil {
		return nil, fmt.Errorf("rhi/vk: compile fragment shader: %w", err)
	}

	var ins []driver.VertexIn
	if desc.Input != nil {
		ins, err = d.vertexIns(desc.Input)
		if err != nil {
			return nil, err
		}
	}

	gs := driver.GraphState{
		VertFunc: driver.ShaderFunc{Code: vs, Name: "main"},
		FragFunc: driver.ShaderFunc{Code: fs, Name: "main"},
		Desc:     d.descTable,
		Input:    ins,
		Topology: topology(desc.Topology),
		Raster: driver.RasterState{
			Cull:      cullMode(desc.Raster),
			Fill:      fillMode(desc.Raster),
			DepthBias: desc.Raster.DepthBias != 0,
			BiasValue: desc.Raster.DepthBias,
		},
		Samples: 1,
		DS: driver.DSState{
			DepthTest:  desc.DepthStencil.DepthTestEnable,
			DepthWrite: desc.DepthStencil.DepthWriteEnable,
			DepthCmp:   cmpFunc(desc.DepthStencil.DepthFunc),
		},
		Blend:   colorBlend(desc.Blend, len(desc.FrameBuffer.Info.ColorFormats)),
		Pass:    fbe.pass,
		Subpass: 0,
	}

	pl, err := d.gpu.NewPipeline(&gs)
	if err != nil {
		return nil, fmt.Errorf("rhi/vk: new graphics pipeline: %w", err)
	}

	d.resMu.Lock()
	d.gfxPipes[p] = pl
	d.resMu.Unlock()
	return p, nil
}

// CreateComputePipeline compiles desc via rhi.CreateComputePipeline,
// then builds the matching driver.Pipeline.
func (d *device) CreateComputePipeline(desc rhi.ComputePipelineDesc) (*rhi.ComputePipeline, error) {
	p, err := rhi.CreateComputePipeline(desc)
	if err != nil {
		return nil, err
	}

	cs, err := d.gpu.NewShaderCode(desc.ComputeShader)
	if err != nil {
		return nil, fmt.Errorf("rhi/vk: compile compute shader: %w", err)
	}

	pl, err := d.gpu.NewPipeline(&driver.CompState{
		Func: driver.ShaderFunc{Code: cs, Name: "main"},
		Desc: d.descTable,
	})
	if err != nil {
		return nil, fmt.Errorf("rhi/vk: new compute pipeline: %w", err)
	}

	d.resMu.Lock()
	d.compPipes[p] = pl
	d.resMu.Unlock()
	return p, nil
}
