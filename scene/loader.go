// Copyright 2024 Gustavo C. Viegas. All rights reserved.

package scene

import (
	"encoding/binary"
	"fmt"
	"math"
	"os"

	"github.com/nyxgfx/nyx/gltf"
	"github.com/nyxgfx/nyx/linear"
)

// ModelSubmesh is one submesh as a ModelLoader hands it to the
// baker, prior to GPU upload: a flat vertex soup, an optional
// index list, the submesh's world matrix at load time, and the
// index of its material in the sibling Model.Materials slice.
type ModelSubmesh struct {
	Positions     []linear.V3
	Normals       []linear.V3
	Tangents      []linear.V3
	UVs           [][2]float32
	Indices       []uint32 // nil for an unindexed submesh
	WorldMatrix   linear.M4
	MaterialIndex int
}

// ModelMaterial is one material as a ModelLoader hands it to
// the baker: the PBR factors plus texture asset paths (empty
// when the slot is unused), keyed the way gltf.Material stores
// them.
type ModelMaterial struct {
	BaseColorFactor  [4]float32
	BaseColorTexture string
	Metalness        float32
	Roughness        float32
	MetalRoughTexture string
	NormalTexture    string
	NormalScale      float32
	OcclusionTexture string
	OcclusionStrength float32
	EmissiveFactor   [3]float32
	EmissiveTexture  string
	AlphaMode        int
	AlphaCutoff      float32
	DoubleSided      bool
}

// Model is a fully parsed asset: every submesh plus the
// material list its MaterialIndex fields refer into.
type Model struct {
	Submeshes []ModelSubmesh
	Materials []ModelMaterial
}

// ModelLoader parses an asset file into a Model. The baker only
// depends on this interface, not on any concrete asset format,
// so it can be tested with a fake loader and no real asset
// files on disk.
type ModelLoader interface {
	Load(path string) (*Model, error)
}

// GLTFLoader is the default ModelLoader, parsing ".gltf"/".glb"
// documents via the gltf package.
type GLTFLoader struct{}

func (GLTFLoader) Load(path string) (*Model, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("scene: open model %q: %w", path, err)
	}
	defer f.Close()

	var doc *gltf.GLTF
	var bin []byte
	if gltf.IsGLB(f) {
		if _, err := f.Seek(0, 0); err != nil {
			return nil, fmt.Errorf("scene: seek glb %q: %w", path, err)
		}
		doc, bin, err = gltf.Unpack(f)
	} else {
		if _, err := f.Seek(0, 0); err != nil {
			return nil, fmt.Errorf("scene: seek gltf %q: %w", path, err)
		}
		doc, err = gltf.Decode(f)
	}
	if err != nil {
		return nil, fmt.Errorf("scene: parse model %q: %w", path, err)
	}

	m := &Model{}
	for i := range doc.Materials {
		m.Materials = append(m.Materials, convertMaterial(&doc.Materials[i]))
	}

	worlds := nodeWorldMatrices(doc)
	for ni, node := range doc.Nodes {
		if node.Mesh == nil {
			continue
		}
		world := worlds[ni]
		mesh := doc.Meshes[*node.Mesh]
		for _, prim := range mesh.Primitives {
			sm, err := convertPrimitive(doc, bin, &prim, world)
			if err != nil {
				return nil, err
			}
			m.Submeshes = append(m.Submeshes, sm)
		}
	}
	return m, nil
}

func convertMaterial(gm *gltf.Material) ModelMaterial {
	mm := ModelMaterial{
		BaseColorFactor: [4]float32{1, 1, 1, 1},
		Metalness:       1,
		Roughness:       1,
		NormalScale:     1,
		OcclusionStrength: 1,
		AlphaMode:       AlphaOpaque,
		AlphaCutoff:     0.5,
		DoubleSided:     gm.DoubleSided,
	}
	if pbr := gm.PBRMetallicRoughness; pbr != nil {
		if pbr.BaseColorFactor != nil {
			mm.BaseColorFactor = *pbr.BaseColorFactor
		}
		if pbr.MetallicFactor != nil {
			mm.Metalness = *pbr.MetallicFactor
		}
		if pbr.RoughnessFactor != nil {
			mm.Roughness = *pbr.RoughnessFactor
		}
	}
	if gm.NormalTexture != nil && gm.NormalTexture.Scale != nil {
		mm.NormalScale = *gm.NormalTexture.Scale
	}
	if gm.OcclusionTexture != nil && gm.OcclusionTexture.Strength != nil {
		mm.OcclusionStrength = *gm.OcclusionTexture.Strength
	}
	if gm.EmissiveFactor != nil {
		mm.EmissiveFactor = *gm.EmissiveFactor
	}
	switch gm.AlphaMode {
	case gltf.MASK:
		mm.AlphaMode = AlphaMask
	case gltf.BLEND:
		mm.AlphaMode = AlphaBlend
	default:
		mm.AlphaMode = AlphaOpaque
	}
	if gm.AlphaCutoff != nil {
		mm.AlphaCutoff = *gm.AlphaCutoff
	}
	return mm
}

// nodeWorldMatrices computes every node's world matrix by
// walking each root's child list, composing local TRS matrices
// top-down.
func nodeWorldMatrices(doc *gltf.GLTF) []linear.M4 {
	worlds := make([]linear.M4, len(doc.Nodes))
	parent := make([]int, len(doc.Nodes))
	for i := range parent {
		parent[i] = -1
	}
	for i, n := range doc.Nodes {
		for _, c := range n.Children {
			parent[c] = i
		}
	}
	computed := make([]bool, len(doc.Nodes))
	var compute func(i int) linear.M4
	compute = func(i int) linear.M4 {
		if computed[i] {
			return worlds[i]
		}
		local := nodeLocalMatrix(&doc.Nodes[i])
		if p := parent[i]; p >= 0 {
			pw := compute(p)
			var w linear.M4
			w.Mul(&pw, &local)
			worlds[i] = w
		} else {
			worlds[i] = local
		}
		computed[i] = true
		return worlds[i]
	}
	for i := range doc.Nodes {
		compute(i)
	}
	return worlds
}

func nodeLocalMatrix(n *gltf.Node) linear.M4 {
	var m linear.M4
	if n.Matrix != nil {
		a := *n.Matrix
		for c := 0; c < 4; c++ {
			for r := 0; r < 4; r++ {
				m[c][r] = a[c*4+r]
			}
		}
		return m
	}
	t := [3]float32{0, 0, 0}
	if n.Translation != nil {
		t = *n.Translation
	}
	s := [3]float32{1, 1, 1}
	if n.Scale != nil {
		s = *n.Scale
	}
	q := [4]float32{0, 0, 0, 1}
	if n.Rotation != nil {
		q = *n.Rotation
	}
	rot := quatToM4(q)
	m.I()
	for c := 0; c < 3; c++ {
		for r := 0; r < 3; r++ {
			m[c][r] = rot[c][r] * s[c]
		}
	}
	m[3][0], m[3][1], m[3][2] = t[0], t[1], t[2]
	return m
}

func quatToM4(q [4]float32) linear.M4 {
	x, y, z, w := q[0], q[1], q[2], q[3]
	n := float32(math.Sqrt(float64(x*x + y*y + z*z + w*w)))
	if n > 0 {
		x, y, z, w = x/n, y/n, z/n, w/n
	}
	var m linear.M4
	m.I()
	m[0][0] = 1 - 2*(y*y+z*z)
	m[0][1] = 2 * (x*y + z*w)
	m[0][2] = 2 * (x*z - y*w)
	m[1][0] = 2 * (x*y - z*w)
	m[1][1] = 1 - 2*(x*x+z*z)
	m[1][2] = 2 * (y*z + x*w)
	m[2][0] = 2 * (x*z + y*w)
	m[2][1] = 2 * (y*z - x*w)
	m[2][2] = 1 - 2*(x*x+y*y)
	return m
}

// accessorData returns accessor i's tightly-packed element
// bytes (de-striding per its bufferView's ByteStride, if any).
func accessorData(doc *gltf.GLTF, bin []byte, i int64, compSize, nComp int) ([]byte, error) {
	acc := doc.Accessors[i]
	if acc.BufferView == nil {
		return nil, fmt.Errorf("scene: sparse/zero-filled accessors are not supported")
	}
	bv := doc.BufferViews[*acc.BufferView]
	elemSize := compSize * nComp
	stride := int(bv.ByteStride)
	if stride == 0 {
		stride = elemSize
	}
	base := bv.ByteOffset + acc.ByteOffset
	out := make([]byte, int(acc.Count)*elemSize)
	for e := 0; e < int(acc.Count); e++ {
		off := int(base) + e*stride
		copy(out[e*elemSize:(e+1)*elemSize], bin[off:off+elemSize])
	}
	return out, nil
}

func readV3s(doc *gltf.GLTF, bin []byte, i int64) ([]linear.V3, error) {
	raw, err := accessorData(doc, bin, i, 4, 3)
	if err != nil {
		return nil, err
	}
	out := make([]linear.V3, len(raw)/12)
	for k := range out {
		for c := 0; c < 3; c++ {
			bits := binary.LittleEndian.Uint32(raw[k*12+c*4:])
			out[k][c] = math.Float32frombits(bits)
		}
	}
	return out, nil
}

func readUVs(doc *gltf.GLTF, bin []byte, i int64) ([][2]float32, error) {
	raw, err := accessorData(doc, bin, i, 4, 2)
	if err != nil {
		return nil, err
	}
	out := make([][2]float32, len(raw)/8)
	for k := range out {
		for c := 0; c < 2; c++ {
			bits := binary.LittleEndian.Uint32(raw[k*8+c*4:])
			out[k][c] = math.Float32frombits(bits)
		}
	}
	return out, nil
}

func readIndices(doc *gltf.GLTF, bin []byte, i int64) ([]uint32, error) {
	acc := doc.Accessors[i]
	switch acc.ComponentType {
	case gltf.UNSIGNED_SHORT:
		raw, err := accessorData(doc, bin, i, 2, 1)
		if err != nil {
			return nil, err
		}
		out := make([]uint32, len(raw)/2)
		for k := range out {
			out[k] = uint32(binary.LittleEndian.Uint16(raw[k*2:]))
		}
		return out, nil
	case gltf.UNSIGNED_INT:
		raw, err := accessorData(doc, bin, i, 4, 1)
		if err != nil {
			return nil, err
		}
		out := make([]uint32, len(raw)/4)
		for k := range out {
			out[k] = binary.LittleEndian.Uint32(raw[k*4:])
		}
		return out, nil
	case gltf.UNSIGNED_BYTE:
		raw, err := accessorData(doc, bin, i, 1, 1)
		if err != nil {
			return nil, err
		}
		out := make([]uint32, len(raw))
		for k := range out {
			out[k] = uint32(raw[k])
		}
		return out, nil
	default:
		return nil, fmt.Errorf("scene: unsupported index component type %d", acc.ComponentType)
	}
}

func convertPrimitive(doc *gltf.GLTF, bin []byte, prim *gltf.Primitive, world linear.M4) (ModelSubmesh, error) {
	sm := ModelSubmesh{WorldMatrix: world, MaterialIndex: -1}
	if prim.Material != nil {
		sm.MaterialIndex = int(*prim.Material)
	}
	if idx, ok := prim.Attributes["POSITION"]; ok {
		v, err := readV3s(doc, bin, idx)
		if err != nil {
			return sm, fmt.Errorf("scene: POSITION accessor: %w", err)
		}
		sm.Positions = v
	}
	if idx, ok := prim.Attributes["NORMAL"]; ok {
		v, err := readV3s(doc, bin, idx)
		if err != nil {
			return sm, fmt.Errorf("scene: NORMAL accessor: %w", err)
		}
		sm.Normals = v
	}
	if idx, ok := prim.Attributes["TEXCOORD_0"]; ok {
		v, err := readUVs(doc, bin, idx)
		if err != nil {
			return sm, fmt.Errorf("scene: TEXCOORD_0 accessor: %w", err)
		}
		sm.UVs = v
	}
	if prim.Indices != nil {
		v, err := readIndices(doc, bin, *prim.Indices)
		if err != nil {
			return sm, fmt.Errorf("scene: indices accessor: %w", err)
		}
		sm.Indices = v
	}
	return sm, nil
}
