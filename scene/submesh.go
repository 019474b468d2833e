// Copyright 2024 Gustavo C. Viegas. All rights reserved.

package scene

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/nyxgfx/nyx/bvh"
	"github.com/nyxgfx/nyx/linear"
)

// vertexStride is the byte size of one interleaved vertex:
// position (12) + normal (12) + uv (8).
const vertexStride = 32

func putFloat32(b []byte, v float32) {
	binary.LittleEndian.PutUint32(b, math.Float32bits(v))
}

// storeSubmesh interleaves sm's attributes into the shared
// vertex buffer and its indices (if any) into the shared index
// buffer, returning the resulting Submesh descriptor.
func (b *Baker) storeSubmesh(sm *ModelSubmesh) (Submesh, error) {
	n := len(sm.Positions)
	vbytes := make([]byte, n*vertexStride)
	for i := 0; i < n; i++ {
		off := i * vertexStride
		putFloat32(vbytes[off:], sm.Positions[i][0])
		putFloat32(vbytes[off+4:], sm.Positions[i][1])
		putFloat32(vbytes[off+8:], sm.Positions[i][2])
		if i < len(sm.Normals) {
			putFloat32(vbytes[off+12:], sm.Normals[i][0])
			putFloat32(vbytes[off+16:], sm.Normals[i][1])
			putFloat32(vbytes[off+20:], sm.Normals[i][2])
		}
		if i < len(sm.UVs) {
			putFloat32(vbytes[off+24:], sm.UVs[i][0])
			putFloat32(vbytes[off+28:], sm.UVs[i][1])
		}
	}
	vspan, err := b.mesh.store(vbytes)
	if err != nil {
		return Submesh{}, fmt.Errorf("scene: store vertex data: %w", err)
	}

	out := Submesh{
		VertexSpan:    vspan,
		VertexCount:   n,
		WorldMatrix:   sm.WorldMatrix,
		MaterialIndex: sm.MaterialIndex,
	}
	if len(sm.Indices) > 0 {
		ibytes := make([]byte, len(sm.Indices)*4)
		for i, idx := range sm.Indices {
			binary.LittleEndian.PutUint32(ibytes[i*4:], idx)
		}
		ispan, err := b.mesh.store(ibytes)
		if err != nil {
			return Submesh{}, fmt.Errorf("scene: store index data: %w", err)
		}
		out.IndexSpan = ispan
		out.IndexCount = len(sm.Indices)
	}
	return out, nil
}

// buildSubmeshBVHs builds a BVH per submesh from its CPU-side
// vertex/index soup, used when no .sdf cache is available: the
// distance field bake pass samples these BVHs directly instead
// of texel data.
func buildSubmeshBVHs(submeshes []ModelSubmesh) []MeshDistanceField {
	out := make([]MeshDistanceField, len(submeshes))
	for i, sm := range submeshes {
		prims := submeshPrimitives(&sm)
		box := linear.EmptyBounds3()
		for _, p := range prims {
			box.Extend(&p.P0)
			box.Extend(&p.P1)
			box.Extend(&p.P2)
		}
		out[i] = MeshDistanceField{
			SDFBox: box,
			BVH:    bvh.BuildSAH(prims, 4),
		}
	}
	return out
}

func submeshPrimitives(sm *ModelSubmesh) []bvh.Primitive {
	tri := func(i0, i1, i2 uint32, idx uint32) bvh.Primitive {
		return bvh.Primitive{
			P0:    sm.Positions[i0],
			P1:    sm.Positions[i1],
			P2:    sm.Positions[i2],
			Index: idx,
		}
	}
	if len(sm.Indices) > 0 {
		n := len(sm.Indices) / 3
		out := make([]bvh.Primitive, n)
		for i := 0; i < n; i++ {
			out[i] = tri(sm.Indices[i*3], sm.Indices[i*3+1], sm.Indices[i*3+2], uint32(i))
		}
		return out
	}
	n := len(sm.Positions) / 3
	out := make([]bvh.Primitive, n)
	for i := 0; i < n; i++ {
		out[i] = tri(uint32(i*3), uint32(i*3+1), uint32(i*3+2), uint32(i))
	}
	return out
}
