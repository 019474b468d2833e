// Copyright 2024 Gustavo C. Viegas. All rights reserved.

package scene

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"

	"github.com/nyxgfx/nyx/bvh"
	"github.com/nyxgfx/nyx/linear"
)

// MeshDistanceField is the per-submesh signed distance field:
// a local-space AABB, a voxel grid (populated when loaded from
// cache or by the bake pass), and the BVH used to bake or
// re-bake it.
type MeshDistanceField struct {
	SDFTextureName string
	SDFBox         linear.Bounds3
	SDFData        []float32 // len == resolution^3 when non-nil
	BVH            *bvh.BVH
}

// GetTransformed returns f's world-space AABB plus the matrix
// mapping world space into [0,1]^3 SDF-texture UVW space, given
// the submesh's current world transform.
func (f *MeshDistanceField) GetTransformed(world linear.M4) (linear.Bounds3, linear.M4) {
	var wb linear.Bounds3
	wb.Transform(&world, &f.SDFBox)

	diag := wb.Diagonal()
	var inv linear.M4
	inv.Invert(&world)

	var scale linear.M4
	scale.I()
	if diag[0] != 0 {
		scale[0][0] = 1 / diag[0]
	}
	if diag[1] != 0 {
		scale[1][1] = 1 / diag[1]
	}
	if diag[2] != 0 {
		scale[2][2] = 1 / diag[2]
	}

	var translate linear.M4
	translate.I()
	translate[3][0] = -wb.Min[0]
	translate[3][1] = -wb.Min[1]
	translate[3][2] = -wb.Min[2]

	var uvw linear.M4
	uvw.Mul(&scale, &translate)
	var out linear.M4
	out.Mul(&uvw, &inv)
	return wb, out
}

// DistanceField is the ECS component assigned on
// ComponentAssigned<DistanceField>: one MeshDistanceField per
// submesh of the owning Mesh.
type DistanceField struct {
	Fields []MeshDistanceField
}

const sdfMagicResolution = DefaultSDFResolution

// sdfCachePath returns the cache path for a model's SDF, per
// the "Asset/SDF/<model>.sdf" layout.
func sdfCachePath(assetRoot, model string) string {
	return filepath.Join(assetRoot, "SDF", model+".sdf")
}

// LoadSDFCache reads a .sdf file, rejecting it if its stored
// resolution does not match resolution. Returns (nil, false,
// nil) on any miss that should trigger a rebuild (file absent
// or resolution mismatch), and a non-nil error only for
// unexpected I/O failures once the file is known to exist.
func LoadSDFCache(path string, nSubmesh, resolution int) ([]MeshDistanceField, bool, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("scene: open sdf cache: %w", err)
	}
	defer f.Close()
	r := bufio.NewReader(f)

	var fileRes uint32
	if err := binary.Read(r, binary.LittleEndian, &fileRes); err != nil {
		return nil, false, nil
	}
	if int(fileRes) != resolution {
		return nil, false, nil
	}

	n3 := resolution * resolution * resolution
	out := make([]MeshDistanceField, nSubmesh)
	for i := range out {
		var lo, hi [3]float32
		if err := binary.Read(r, binary.LittleEndian, &lo); err != nil {
			return nil, false, nil
		}
		if err := binary.Read(r, binary.LittleEndian, &hi); err != nil {
			return nil, false, nil
		}
		voxels := make([]float32, n3)
		if err := binary.Read(r, binary.LittleEndian, voxels); err != nil {
			return nil, false, nil
		}
		out[i] = MeshDistanceField{
			SDFBox: linear.Bounds3{Min: linear.V3(lo), Max: linear.V3(hi)},
			SDFData: voxels,
		}
	}
	return out, true, nil
}

// SaveSDFCache writes fields to path in the .sdf format, at the
// given resolution, creating parent directories as needed.
func SaveSDFCache(path string, fields []MeshDistanceField, resolution int) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("scene: mkdir for sdf cache: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("scene: create sdf cache: %w", err)
	}
	defer f.Close()
	w := bufio.NewWriter(f)

	if err := binary.Write(w, binary.LittleEndian, uint32(resolution)); err != nil {
		return err
	}
	n3 := resolution * resolution * resolution
	for i := range fields {
		lo := [3]float32(fields[i].SDFBox.Min)
		hi := [3]float32(fields[i].SDFBox.Max)
		if err := binary.Write(w, binary.LittleEndian, lo); err != nil {
			return err
		}
		if err := binary.Write(w, binary.LittleEndian, hi); err != nil {
			return err
		}
		voxels := fields[i].SDFData
		if len(voxels) != n3 {
			voxels = make([]float32, n3)
		}
		if err := binary.Write(w, binary.LittleEndian, voxels); err != nil {
			return err
		}
	}
	return w.Flush()
}

// voxelIndex maps a (x, y, z) voxel coordinate into the
// z-major, y-middle, x-fastest layout the cache format and the
// bake pass both use.
func voxelIndex(resolution, x, y, z int) int {
	return (z*resolution+y)*resolution + x
}
