// Copyright 2024 Gustavo C. Viegas. All rights reserved.

package vk

import (
	"fmt"

	"github.com/nyxgfx/nyx/rhi/vk/internal/driver"
	"github.com/nyxgfx/nyx/rhi"
)

// pixelFormats maps an rhi.Format to the driver's native pixel
// format. The two enumerations share the same member order, so
// this is a direct index lookup rather than a sparse table.
var pixelFormats = [...]driver.PixelFmt{
	rhi.FormatRGBA8Unorm:     driver.RGBA8un,
	rhi.FormatRGBA8Norm:      driver.RGBA8n,
	rhi.FormatRGBA8sRGB:      driver.RGBA8sRGB,
	rhi.FormatBGRA8Unorm:     driver.BGRA8un,
	rhi.FormatBGRA8sRGB:      driver.BGRA8sRGB,
	rhi.FormatRG8Unorm:       driver.RG8un,
	rhi.FormatRG8Norm:        driver.RG8n,
	rhi.FormatR8Unorm:        driver.R8un,
	rhi.FormatR8Norm:         driver.R8n,
	rhi.FormatRGBA16Float:    driver.RGBA16f,
	rhi.FormatRG16Float:      driver.RG16f,
	rhi.FormatR16Float:       driver.R16f,
	rhi.FormatRGBA32Float:    driver.RGBA32f,
	rhi.FormatRG32Float:      driver.RG32f,
	rhi.FormatR32Float:       driver.R32f,
	rhi.FormatD16Unorm:       driver.D16un,
	rhi.FormatD32Float:       driver.D32f,
	rhi.FormatS8Uint:         driver.S8ui,
	rhi.FormatD24UnormS8Uint: driver.D24unS8ui,
	rhi.FormatD32FloatS8Uint: driver.D32fS8ui,
}

func pixelFormat(f rhi.Format) (driver.PixelFmt, error) {
	if int(f) < 0 || int(f) >= len(pixelFormats) {
		return 0, fmt.Errorf("rhi/vk: format %d has no driver equivalent", f)
	}
	return pixelFormats[f], nil
}

// usageFlags translates an rhi.Usage bit set into the
// corresponding driver.Usage bit set.
func usageFlags(u rhi.Usage) driver.Usage {
	var out driver.Usage
	if u&rhi.UsageShaderRead != 0 {
		out |= driver.UShaderRead
	}
	if u&rhi.UsageShaderWrite != 0 {
		out |= driver.UShaderWrite
	}
	if u&rhi.UsageConstant != 0 {
		out |= driver.UShaderConst
	}
	if u&rhi.UsageSampled != 0 {
		out |= driver.UShaderSample
	}
	if u&rhi.UsageVertex != 0 {
		out |= driver.UVertexData
	}
	if u&rhi.UsageIndex != 0 {
		out |= driver.UIndexData
	}
	if u&rhi.UsageRenderTarget != 0 {
		out |= driver.URenderTarget
	}
	if u&rhi.UsageDepthStencil != 0 {
		out |= driver.URenderTarget
	}
	return out
}

// vertexFormats maps the handful of component/width
// combinations the scene and render-graph packages declare in
// practice onto a driver.VertexFmt. rhi.Format's table is
// texture-oriented (block sizes, sRGB, depth/stencil aspects)
// and has no vertex-format concept of its own, so VertexAttr
// consumers are expected to use the plain (non-sRGB,
// non-depth) formats below.
func vertexFormat(f rhi.Format) (driver.VertexFmt, error) {
	switch f {
	case rhi.FormatR32Float:
		return driver.Float32, nil
	case rhi.FormatRG32Float:
		return driver.Float32x2, nil
	case rhi.FormatRGBA32Float:
		return driver.Float32x4, nil
	case rhi.FormatR8Unorm, rhi.FormatR8Norm:
		return driver.Int8, nil
	case rhi.FormatRG8Unorm, rhi.FormatRG8Norm:
		return driver.Int8x2, nil
	case rhi.FormatRGBA8Unorm, rhi.FormatRGBA8Norm, rhi.FormatRGBA8sRGB:
		return driver.Int8x4, nil
	default:
		return 0, fmt.Errorf("rhi/vk: format %d has no vertex-input equivalent", f)
	}
}

func topology(t rhi.Topology) driver.Topology {
	switch t {
	case rhi.TopologyPointList:
		return driver.TPoint
	case rhi.TopologyLineList:
		return driver.TLine
	case rhi.TopologyLineStrip:
		return driver.TLnStrip
	case rhi.TopologyTriangleStrip:
		return driver.TTriStrip
	default:
		return driver.TTriangle
	}
}

func cullMode(r rhi.RasterState) driver.CullMode {
	switch {
	case r.CullBack:
		return driver.CBack
	case r.CullFront:
		return driver.CFront
	default:
		return driver.CNone
	}
}

func fillMode(r rhi.RasterState) driver.FillMode {
	if r.Wireframe {
		return driver.FLines
	}
	return driver.FFill
}

func cmpFunc(c rhi.CmpFunc) driver.CmpFunc {
	switch c {
	case rhi.CmpLess:
		return driver.CLess
	case rhi.CmpEqual:
		return driver.CEqual
	case rhi.CmpLessEqual:
		return driver.CLessEqual
	case rhi.CmpGreater:
		return driver.CGreater
	case rhi.CmpNotEqual:
		return driver.CNotEqual
	case rhi.CmpGreaterEqual:
		return driver.CGreaterEqual
	case rhi.CmpAlways:
		return driver.CAlways
	default:
		return driver.CNever
	}
}

func filter(f rhi.Filter) driver.Filter {
	if f == rhi.FilterLinear {
		return driver.FLinear
	}
	return driver.FNearest
}

func addrMode(a rhi.AddrMode) driver.AddrMode {
	switch a {
	case rhi.AddrMirror, rhi.AddrMirrorOnce:
		return driver.AMirror
	case rhi.AddrClamp, rhi.AddrBorder:
		return driver.AClamp
	default:
		return driver.AWrap
	}
}

// stateInfo is the set of backend-native state tags this
// package produces via rhi.Usage.InitialState and consumes when
// emitting barriers. Each maps onto a driver.Sync/Access pair
// and, for images, a driver.Layout.
type stateInfo struct {
	sync   driver.Sync
	access driver.Access
	layout driver.Layout
}

var stateTable = map[rhi.ResourceState]stateInfo{
	"COMMON":           {driver.SAll, driver.ANone, driver.LCommon},
	"RENDER_TARGET":    {driver.SColorOutput, driver.AColorWrite, driver.LColorTarget},
	"DEPTH_WRITE":      {driver.SDSOutput, driver.ADSWrite, driver.LDSTarget},
	"DEPTH_READ":       {driver.SDSOutput, driver.ADSRead, driver.LDSRead},
	"COPY_DEST":        {driver.SCopy, driver.ACopyWrite, driver.LCopyDst},
	"COPY_SOURCE":      {driver.SCopy, driver.ACopyRead, driver.LCopySrc},
	"SHADER_RESOURCE":  {driver.SVertexShading | driver.SFragmentShading | driver.SComputeShading, driver.AShaderRead, driver.LShaderRead},
	"UNORDERED_ACCESS": {driver.SComputeShading, driver.AShaderRead | driver.AShaderWrite, driver.LCommon},
	"PRESENT":          {driver.SNone, driver.ANone, driver.LPresent},
}

func lookupState(s rhi.ResourceState) stateInfo {
	if info, ok := stateTable[s]; ok {
		return info
	}
	return stateTable["COMMON"]
}
