// Copyright 2024 Gustavo C. Viegas. All rights reserved.

package rhi

// Format identifies a pixel/element format for a Texture or a
// typed Buffer view.
type Format int

const (
	FormatUnknown Format = iota
	FormatRGBA8Unorm
	FormatRGBA8Norm
	FormatRGBA8sRGB
	FormatBGRA8Unorm
	FormatBGRA8sRGB
	FormatRG8Unorm
	FormatRG8Norm
	FormatR8Unorm
	FormatR8Norm
	FormatRGBA16Float
	FormatRG16Float
	FormatR16Float
	FormatRGBA32Float
	FormatRG32Float
	FormatR32Float
	FormatD16Unorm
	FormatD32Float
	FormatS8Uint
	FormatD24UnormS8Uint
	FormatD32FloatS8Uint
	formatCount
)

// formatInfo is one row of the fixed format table used by
// Device.CreateTexture to translate a client Format into the
// backend's typeless storage format, its SRV view format, its
// RTV/DSV view format, and block/element size.
type formatInfo struct {
	typeless  string // backend-native typeless storage format tag
	srvView   string // backend-native shader-resource view format tag
	rtDSView  string // backend-native render-target/depth-stencil view format tag
	blockSize int     // bytes per element (all formats here are non-block)
	depth     bool
	stencil   bool
}

var formatTable = [formatCount]formatInfo{
	FormatRGBA8Unorm:     {"R8G8B8A8_TYPELESS", "R8G8B8A8_UNORM", "R8G8B8A8_UNORM", 4, false, false},
	FormatRGBA8Norm:      {"R8G8B8A8_TYPELESS", "R8G8B8A8_SNORM", "R8G8B8A8_SNORM", 4, false, false},
	FormatRGBA8sRGB:      {"R8G8B8A8_TYPELESS", "R8G8B8A8_UNORM_SRGB", "R8G8B8A8_UNORM_SRGB", 4, false, false},
	FormatBGRA8Unorm:     {"B8G8R8A8_TYPELESS", "B8G8R8A8_UNORM", "B8G8R8A8_UNORM", 4, false, false},
	FormatBGRA8sRGB:      {"B8G8R8A8_TYPELESS", "B8G8R8A8_UNORM_SRGB", "B8G8R8A8_UNORM_SRGB", 4, false, false},
	FormatRG8Unorm:       {"R8G8_TYPELESS", "R8G8_UNORM", "R8G8_UNORM", 2, false, false},
	FormatRG8Norm:        {"R8G8_TYPELESS", "R8G8_SNORM", "R8G8_SNORM", 2, false, false},
	FormatR8Unorm:        {"R8_TYPELESS", "R8_UNORM", "R8_UNORM", 1, false, false},
	FormatR8Norm:         {"R8_TYPELESS", "R8_SNORM", "R8_SNORM", 1, false, false},
	FormatRGBA16Float:    {"R16G16B16A16_TYPELESS", "R16G16B16A16_FLOAT", "R16G16B16A16_FLOAT", 8, false, false},
	FormatRG16Float:      {"R16G16_TYPELESS", "R16G16_FLOAT", "R16G16_FLOAT", 4, false, false},
	FormatR16Float:       {"R16_TYPELESS", "R16_FLOAT", "R16_FLOAT", 2, false, false},
	FormatRGBA32Float:    {"R32G32B32A32_TYPELESS", "R32G32B32A32_FLOAT", "R32G32B32A32_FLOAT", 16, false, false},
	FormatRG32Float:      {"R32G32_TYPELESS", "R32G32_FLOAT", "R32G32_FLOAT", 8, false, false},
	FormatR32Float:       {"R32_TYPELESS", "R32_FLOAT", "R32_FLOAT", 4, false, false},
	FormatD16Unorm:       {"R16_TYPELESS", "R16_UNORM", "D16_UNORM", 2, true, false},
	FormatD32Float:       {"R32_TYPELESS", "R32_FLOAT", "D32_FLOAT", 4, true, false},
	FormatS8Uint:         {"R8_TYPELESS", "R8_UINT", "S8_UINT", 1, false, true},
	FormatD24UnormS8Uint: {"R24G8_TYPELESS", "R24_UNORM_X8_TYPELESS", "D24_UNORM_S8_UINT", 4, true, true},
	FormatD32FloatS8Uint: {"R32G8X24_TYPELESS", "R32_FLOAT_X8X24_TYPELESS", "D32_FLOAT_S8X24_UINT", 8, true, true},
}

// Info returns the fixed format-table row for f.
func (f Format) Info() (typeless, srvView, rtDSView string, blockSize int, depth, stencil bool) {
	row := formatTable[f]
	return row.typeless, row.srvView, row.rtDSView, row.blockSize, row.depth, row.stencil
}

func (f Format) IsDepthStencil() bool { return formatTable[f].depth || formatTable[f].stencil }

// Usage describes the ways a Buffer or Texture may be used,
// and drives both its initial resource state and which
// allow-{SR,UAV,RT,DS} backend resource flags are set at
// creation.
type Usage int

const (
	UsageShaderRead Usage = 1 << iota
	UsageShaderWrite
	UsageConstant // Buffer only
	UsageSampled  // Texture only
	UsageVertex   // Buffer only
	UsageIndex    // Buffer only
	UsageRenderTarget
	UsageDepthStencil
	UsageCopySrc
	UsageCopyDst
	usageCount
	UsageGeneric = usageCount - 1
)

// InitialState infers a resource's initial backend state from
// its usage flags, favoring the most specific bit set.
func (u Usage) InitialState() string {
	switch {
	case u&UsageRenderTarget != 0:
		return "RENDER_TARGET"
	case u&UsageDepthStencil != 0:
		return "DEPTH_WRITE"
	case u&UsageCopyDst != 0:
		return "COPY_DEST"
	case u&UsageCopySrc != 0:
		return "COPY_SOURCE"
	case u&(UsageShaderRead|UsageSampled) != 0:
		return "SHADER_RESOURCE"
	case u&UsageShaderWrite != 0:
		return "UNORDERED_ACCESS"
	default:
		return "COMMON"
	}
}

// Filter selects minification/magnification/mip filtering.
type Filter int

const (
	FilterPoint Filter = iota
	FilterLinear
)

// AddrMode is a sampler's texture-coordinate wrap mode.
type AddrMode int

const (
	AddrWrap AddrMode = iota
	AddrMirror
	AddrClamp
	AddrBorder
	AddrMirrorOnce
)

// ReductionType selects how a sampler combines the texels in
// its footprint.
type ReductionType int

const (
	ReductionStandard ReductionType = iota
	ReductionComparison
	ReductionMin
	ReductionMax
)

// CmpFunc is a comparison function, used by depth/stencil
// tests and comparison samplers.
type CmpFunc int

const (
	CmpNever CmpFunc = iota
	CmpLess
	CmpEqual
	CmpLessEqual
	CmpGreater
	CmpNotEqual
	CmpGreaterEqual
	CmpAlways
)
