// Copyright 2024 Gustavo C. Viegas. All rights reserved.

package scene

import (
	"fmt"

	"github.com/nyxgfx/nyx/bvh"
	"github.com/nyxgfx/nyx/ecs"
	"github.com/nyxgfx/nyx/linear"
	"github.com/nyxgfx/nyx/rendergraph"
	"github.com/nyxgfx/nyx/rhi"
)

// sdfBakePass bakes one entity's distance fields on the compute
// queue, X-sliced in blocks of X_SLICE voxels per Execute, per
// §4.9: a precompute pass, initially excluded, made eligible
// again by Baker.GenerateSdf.
type sdfBakePass struct {
	entity    *ecs.Entity
	mesh      *Mesh
	df        *DistanceField
	cachePath string

	submesh  int // which submesh is currently being sliced
	nextX    int // next unbaked voxel column
	finished bool
}

func newSDFBakePass(e *ecs.Entity, mesh *Mesh, df *DistanceField, cachePath string) *sdfBakePass {
	return &sdfBakePass{entity: e, mesh: mesh, df: df, cachePath: cachePath}
}

// done reports whether every submesh has finished baking and
// the result has not yet been persisted by finish.
func (p *sdfBakePass) done() bool { return p.submesh >= len(p.df.Fields) && !p.finished }

func (p *sdfBakePass) Name() string { return fmt.Sprintf("sdf-bake(%d)", p.entity.ID()) }

func (p *sdfBakePass) Type() rendergraph.PassType {
	return rendergraph.Compute | rendergraph.Precompute | rendergraph.Excluded
}

func (p *sdfBakePass) Queue() rhi.QueueType { return rhi.QueueCompute }

func (p *sdfBakePass) Compile(dev rhi.Device, cache *rendergraph.ResourceCache) error {
	return nil
}

// Execute bakes one X_SLICE-wide column block of the current
// submesh's voxel grid, sampling its BVH for an approximate
// (unsigned) distance at each voxel; see nearestDistance. On the
// last slice of the last submesh, it frees every submesh's BVH;
// the .sdf cache is written afterwards by finish.
func (p *sdfBakePass) Execute(cl rhi.CommandList, cache *rendergraph.ResourceCache) (bool, error) {
	if p.submesh >= len(p.df.Fields) {
		return true, nil
	}
	field := &p.df.Fields[p.submesh]
	if field.BVH == nil {
		p.submesh++
		p.nextX = 0
		return true, nil
	}

	res := cfg.SDFResolution
	if field.SDFData == nil {
		field.SDFData = make([]float32, res*res*res)
	}
	end := p.nextX + X_SLICE
	if end > res {
		end = res
	}
	diag := field.SDFBox.Diagonal()
	for x := p.nextX; x < end; x++ {
		for y := 0; y < res; y++ {
			for z := 0; z < res; z++ {
				pos := linear.V3{
					field.SDFBox.Min[0] + diag[0]*(float32(x)+0.5)/float32(res),
					field.SDFBox.Min[1] + diag[1]*(float32(y)+0.5)/float32(res),
					field.SDFBox.Min[2] + diag[2]*(float32(z)+0.5)/float32(res),
				}
				field.SDFData[voxelIndex(res, x, y, z)] = nearestDistance(field.BVH, pos)
			}
		}
	}
	p.nextX = end

	if p.nextX < res {
		return true, nil
	}

	p.submesh++
	p.nextX = 0
	if p.submesh < len(p.df.Fields) {
		return true, nil
	}

	for i := range p.df.Fields {
		p.df.Fields[i].BVH = nil
	}
	return true, nil
}

// finish persists the baked fields to the .sdf cache once every
// submesh is done; it is a no-op otherwise.
func (p *sdfBakePass) finish() error {
	if !p.done() {
		return nil
	}
	if err := SaveSDFCache(p.cachePath, p.df.Fields, cfg.SDFResolution); err != nil {
		return err
	}
	p.finished = true
	return nil
}

// axisDirs are the six world-axis ray directions nearestDistance
// casts from each voxel center.
var axisDirs = [6]linear.V3{
	{1, 0, 0}, {-1, 0, 0},
	{0, 1, 0}, {0, -1, 0},
	{0, 0, 1}, {0, 0, -1},
}

// nearestDistance returns an (unsigned) approximation of the
// distance from p to the surface of b: the closest of six
// axis-aligned ray casts from p. This trades exactness for
// speed, the same tradeoff locally-ordered clustering makes
// during interactive bakes; a full closest-point-on-triangle
// sweep would be exact but far more costly per voxel.
func nearestDistance(b *bvh.BVH, p linear.V3) float32 {
	best := float32(maxSDFDistance)
	for _, d := range axisDirs {
		r := linear.NewRay(p, d)
		if hit, ok := b.Intersect(&r); ok && hit.T < best {
			best = hit.T
		}
	}
	return best
}

const maxSDFDistance = 1e6

// surfaceCacheBakePass allocates each submesh's four atlases
// as zero-filled buffers, one submesh per Execute call, matching
// the SDF pass's one-slice-per-frame precompute lifecycle. It
// records no draw commands, so nothing is rendered into them.
type surfaceCacheBakePass struct {
	entity    *ecs.Entity
	mesh      *Mesh
	sc        *SurfaceCache
	cachePath string

	submesh  int
	finished bool
}

func newSurfaceCacheBakePass(e *ecs.Entity, mesh *Mesh, sc *SurfaceCache, cachePath string) *surfaceCacheBakePass {
	return &surfaceCacheBakePass{entity: e, mesh: mesh, sc: sc, cachePath: cachePath}
}

// done reports whether every submesh has finished baking and
// the result has not yet been persisted by finish.
func (p *surfaceCacheBakePass) done() bool { return p.submesh >= len(p.sc.Submeshes) && !p.finished }

func (p *surfaceCacheBakePass) Name() string {
	return fmt.Sprintf("surfacecache-bake(%d)", p.entity.ID())
}

func (p *surfaceCacheBakePass) Type() rendergraph.PassType {
	return rendergraph.Graphics | rendergraph.Precompute | rendergraph.Excluded
}

func (p *surfaceCacheBakePass) Queue() rhi.QueueType { return rhi.QueueGraphics }

func (p *surfaceCacheBakePass) Compile(dev rhi.Device, cache *rendergraph.ResourceCache) error {
	return nil
}

func (p *surfaceCacheBakePass) Execute(cl rhi.CommandList, cache *rendergraph.ResourceCache) (bool, error) {
	if p.submesh >= len(p.sc.Submeshes) {
		return true, nil
	}
	res := p.sc.SurfaceResolution
	sub := &p.sc.Submeshes[p.submesh]
	for a := 0; a < nAtlas; a++ {
		if sub.Atlases[a] == nil {
			sub.Atlases[a] = make([]byte, res*res*atlasBPP)
		}
	}
	p.submesh++
	return true, nil
}

func (p *surfaceCacheBakePass) finish() error {
	if !p.done() {
		return nil
	}
	if err := SaveSurfaceCache(p.cachePath, p.sc); err != nil {
		return err
	}
	p.finished = true
	return nil
}
