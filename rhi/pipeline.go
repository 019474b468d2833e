// Copyright 2024 Gustavo C. Viegas. All rights reserved.

package rhi

import "fmt"

// VertexAttr is one user-declared vertex input attribute.
// ArraySize expands into ArraySize consecutive hardware
// elements, one per semantic index (e.g. TEXCOORD0..2 for
// ArraySize 3).
type VertexAttr struct {
	Semantic   string
	Format     Format
	BufferSlot int
	Offset     int
	Stride     int // must match across every attribute sharing BufferSlot
	ArraySize  int // 0 and 1 are equivalent to a single element
}

// InputElement is one expanded hardware vertex element.
type InputElement struct {
	Semantic      string
	SemanticIndex int
	Format        Format
	BufferSlot    int
	Offset        int
}

// InputLayout is the expanded, validated form of a
// VertexAttr list.
type InputLayout struct {
	Resource
	Elements []InputElement
}

// CompileInputLayout expands each attribute by its ArraySize
// into one hardware element per semantic index, and enforces
// that attributes sharing a buffer slot declare matching
// strides.
func CompileInputLayout(attrs []VertexAttr) (*InputLayout, error) {
	strides := make(map[int]int)
	l := &InputLayout{}
	for _, a := range attrs {
		if prev, ok := strides[a.BufferSlot]; ok && prev != a.Stride {
			return nil, fmt.Errorf("rhi: buffer slot %d has mismatched strides (%d vs %d)", a.BufferSlot, prev, a.Stride)
		}
		strides[a.BufferSlot] = a.Stride
		n := a.ArraySize
		if n < 1 {
			n = 1
		}
		_, _, _, blockSize, _, _ := a.Format.Info()
		for i := 0; i < n; i++ {
			l.Elements = append(l.Elements, InputElement{
				Semantic: a.Semantic, SemanticIndex: i,
				Format: a.Format, BufferSlot: a.BufferSlot,
				Offset: a.Offset + i*blockSize,
			})
		}
	}
	InitResource(&l.Resource, nil, func() {})
	return l, nil
}

// Attachment is one color or depth-stencil render target of a
// FrameBuffer.
type Attachment struct {
	Texture  Texture
	MipLevel int
}

// FrameBufferDesc describes the attachments a FrameBuffer
// caches info for.
type FrameBufferDesc struct {
	Color        []Attachment
	DepthStencil *Attachment
}

// FrameBufferInfo is the cached, validated shape of a frame
// buffer's attachments.
type FrameBufferInfo struct {
	Width, Height int
	ColorFormats  []Format
	DepthStencilFormat Format
	SampleCount   int
}

// FrameBuffer caches and validates a FrameBufferInfo for its
// attachments.
type FrameBuffer struct {
	Resource
	Info FrameBufferInfo
}

// CompileFrameBuffer validates that every attachment's mip
// level has equal width/height, and caches the resulting info.
func CompileFrameBuffer(desc FrameBufferDesc) (*FrameBuffer, error) {
	fb := &FrameBuffer{}
	var w, h int
	check := func(t Texture, mip int) error {
		d := t.Desc()
		shift := uint(mip)
		tw, th := d.Width>>shift, d.Height>>shift
		if tw < 1 {
			tw = 1
		}
		if th < 1 {
			th = 1
		}
		if w == 0 {
			w, h = tw, th
			return nil
		}
		if tw != w || th != h {
			return fmt.Errorf("rhi: frame buffer attachment size mismatch (%dx%d vs %dx%d)", tw, th, w, h)
		}
		return nil
	}
	for _, c := range desc.Color {
		if err := check(c.Texture, c.MipLevel); err != nil {
			return nil, err
		}
		fb.Info.ColorFormats = append(fb.Info.ColorFormats, c.Texture.Desc().Format)
	}
	if desc.DepthStencil != nil {
		if err := check(desc.DepthStencil.Texture, desc.DepthStencil.MipLevel); err != nil {
			return nil, err
		}
		fb.Info.DepthStencilFormat = desc.DepthStencil.Texture.Desc().Format
	}
	fb.Info.Width, fb.Info.Height = w, h
	fb.Info.SampleCount = 1
	InitResource(&fb.Resource, nil, func() {})
	return fb, nil
}

// Topology is a primitive assembly mode.
type Topology int

const (
	TopologyPointList Topology = iota
	TopologyLineList
	TopologyLineStrip
	TopologyTriangleList
	TopologyTriangleStrip
)

// RasterState configures the rasterizer stage.
type RasterState struct {
	CullBack, CullFront bool
	Wireframe           bool
	DepthBias           float32
}

// DSState configures the depth/stencil stage.
type DSState struct {
	DepthTestEnable, DepthWriteEnable bool
	DepthFunc                        CmpFunc
	StencilEnable                    bool
}

// BlendState configures the output-merger blend stage.
type BlendState struct {
	Enable       bool
	UsesBlendConstant bool
}

// GraphicsPipelineDesc describes a graphics pipeline.
type GraphicsPipelineDesc struct {
	Layouts     []*BindingLayout
	Input       *InputLayout
	FrameBuffer *FrameBuffer
	Topology    Topology
	Raster      RasterState
	DepthStencil DSState
	Blend       BlendState
	VertexShader, FragmentShader []byte
}

// GraphicsPipeline is a compiled graphics pipeline: its binding
// layouts, input layout, render target formats, primitive
// topology and blend-constant use, as recorded from the
// description.
type GraphicsPipeline struct {
	Resource
	Layouts          []*BindingLayout
	Input            *InputLayout
	ColorFormats     []Format
	DepthStencilFormat Format
	Topology         Topology
	UsesBlendConstant bool
}

// CreateGraphicsPipeline compiles desc, recording its binding
// layouts, input layout, primitive topology, render target
// formats from the frame buffer info, and whether a blend
// constant is used. The raster, depth-stencil and blend state,
// the shaders and any sample description are not recorded.
func CreateGraphicsPipeline(desc GraphicsPipelineDesc) (*GraphicsPipeline, error) {
	if desc.FrameBuffer == nil {
		return nil, fmt.Errorf("rhi: graphics pipeline requires a frame buffer")
	}
	p := &GraphicsPipeline{
		Layouts:            desc.Layouts,
		Input:              desc.Input,
		ColorFormats:       desc.FrameBuffer.Info.ColorFormats,
		DepthStencilFormat: desc.FrameBuffer.Info.DepthStencilFormat,
		Topology:           desc.Topology,
		UsesBlendConstant:  desc.Blend.UsesBlendConstant,
	}
	InitResource(&p.Resource, nil, func() {})
	return p, nil
}

// ComputePipelineDesc describes a compute pipeline.
type ComputePipelineDesc struct {
	Layouts       []*BindingLayout
	ComputeShader []byte
}

// ComputePipeline is a compiled compute pipeline. It records
// only its binding layouts; the compute shader is not kept.
type ComputePipeline struct {
	Resource
	Layouts []*BindingLayout
}

// CreateComputePipeline compiles desc.
func CreateComputePipeline(desc ComputePipelineDesc) (*ComputePipeline, error) {
	p := &ComputePipeline{Layouts: desc.Layouts}
	InitResource(&p.Resource, nil, func() {})
	return p, nil
}
