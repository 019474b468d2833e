// Copyright 2024 Gustavo C. Viegas. All rights reserved.

package rhi

// BufferDesc describes a buffer to be created by Device.CreateBuffer.
type BufferDesc struct {
	Size       int64
	Usage      Usage
	Stride     int    // > 0: structured buffer; 0 and Format == FormatUnknown: raw buffer
	Format     Format // set for typed buffers
	IsVirtual  bool   // true: allocate as a heap tile rather than a committed resource
	HostVisible bool
}

// Kind reports whether the buffer is structured, typed, or raw.
func (d *BufferDesc) Kind() string {
	switch {
	case d.Stride > 0:
		return "structured"
	case d.Format != FormatUnknown:
		return "typed"
	default:
		return "raw"
	}
}

// Buffer is a GPU buffer resource.
type Buffer interface {
	Object
	Desc() BufferDesc
	// Bytes returns the CPU-visible mapping for a host-visible
	// buffer, or nil otherwise.
	Bytes() []byte
}

// TextureDesc describes a texture to be created by
// Device.CreateTexture. Dimension is inferred (see
// TextureDesc.Dimension) rather than specified directly.
type TextureDesc struct {
	Width, Height, Depth int
	ArraySize            int
	MipLevels            int
	Cube                 bool
	Format               Format
	Usage                Usage
	SampleCount          int
}

// Dimension reports the backend dimension tag inferred from
// Cube, Depth, Width and Height: "CUBE" when Cube is set,
// "3D" when Depth > 1, "1D" when Width == Height <= 1, and
// "2D" otherwise. ArraySize does not affect the result.
func (d *TextureDesc) Dimension() string {
	switch {
	case d.Cube:
		return "CUBE"
	case d.Depth > 1:
		return "3D"
	case d.Height > 1 || d.Width != d.Height:
		return "2D"
	default:
		return "1D"
	}
}

// Texture is a GPU image resource.
type Texture interface {
	Object
	Desc() TextureDesc
}

// StagingTextureDesc describes a row-pitch-aligned linear
// texture created for CPU read-back via
// Device.CreateStagingTexture.
type StagingTextureDesc struct {
	TextureDesc
	CPUAccess string // "read" or "write"
	RowPitch  int    // computed, aligned to the backend's row-pitch alignment
}

// SamplerDesc describes a sampler to be created by
// Device.CreateSampler.
type SamplerDesc struct {
	Min, Mag, Mip Filter
	MaxAniso      int
	AddrU, AddrV, AddrW AddrMode
	Reduction     ReductionType
	Cmp           CmpFunc
	BorderColor   [4]float32
	MinLOD, MaxLOD float32
}

// Sampler is a GPU sampler state object.
type Sampler interface {
	Object
	Desc() SamplerDesc
}

// alignUp rounds size up to the next multiple of align.
func alignUp(size, align int64) int64 {
	if align <= 0 {
		return size
	}
	return (size + align - 1) / align * align
}

// RowPitch computes a row-pitch-aligned byte width for a
// texture of the given width/format and backend alignment
// (D3D12's 256-byte row-pitch alignment by convention).
func RowPitch(width int, f Format, align int64) int64 {
	_, _, _, blockSize, _, _ := f.Info()
	return alignUp(int64(width*blockSize), align)
}
