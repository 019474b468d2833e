// Copyright 2024 Gustavo C. Viegas. All rights reserved.

package scene

import (
	"sync"

	"github.com/nyxgfx/nyx/bvh"
	"github.com/nyxgfx/nyx/ecs"
	"github.com/nyxgfx/nyx/linear"
)

// chunkKey addresses one cell of the grid's uniform 3D lattice.
type chunkKey struct{ X, Y, Z int32 }

// chunk holds every entity whose transformed distance-field AABB
// overlaps it, and whether it has been touched since the last
// global-SDF rebuild.
type chunk struct {
	entities map[ecs.ID]*ecs.Entity
	dirty    bool
}

// Grid is the scene's uniform chunk grid: a sparse map of
// occupied chunks keyed by integer chunk coordinate, plus a BVH
// over occupied-chunk boxes for ray-query acceleration.
type Grid struct {
	mu         sync.Mutex
	chunkSize  float32
	chunks     map[chunkKey]*chunk
	entityKeys map[ecs.ID][]chunkKey // last-inserted set, for removal on re-transform

	chunkBVH   *bvh.BVH
	chunkOrder []chunkKey // index i of chunkOrder corresponds to primitive index i of chunkBVH
	bvhStale   bool
}

// NewGrid creates an empty grid with the given chunk edge
// length.
func NewGrid(chunkSize float32) *Grid {
	if chunkSize <= 0 {
		chunkSize = ChunkSize
	}
	return &Grid{
		chunkSize:  chunkSize,
		chunks:     make(map[chunkKey]*chunk),
		entityKeys: make(map[ecs.ID][]chunkKey),
	}
}

func (g *Grid) cellOf(p linear.V3) chunkKey {
	s := g.chunkSize
	return chunkKey{
		X: int32(floorDiv(p[0], s)),
		Y: int32(floorDiv(p[1], s)),
		Z: int32(floorDiv(p[2], s)),
	}
}

func floorDiv(v, s float32) int32 {
	q := v / s
	fq := int32(q)
	if q < 0 && float32(fq) != q {
		fq--
	}
	return fq
}

// keysOverlapping returns every chunk key overlapping box,
// padded by one chunk on every side, per §4.9.
func (g *Grid) keysOverlapping(box linear.Bounds3) []chunkKey {
	lo := g.cellOf(box.Min)
	hi := g.cellOf(box.Max)
	lo.X--
	lo.Y--
	lo.Z--
	hi.X++
	hi.Y++
	hi.Z++
	var keys []chunkKey
	for x := lo.X; x <= hi.X; x++ {
		for y := lo.Y; y <= hi.Y; y++ {
			for z := lo.Z; z <= hi.Z; z++ {
				keys = append(keys, chunkKey{x, y, z})
			}
		}
	}
	return keys
}

// Insert adds e to every chunk overlapping box (padded), marking
// each touched chunk dirty.
func (g *Grid) Insert(e *ecs.Entity, box linear.Bounds3) {
	g.mu.Lock()
	defer g.mu.Unlock()
	keys := g.keysOverlapping(box)
	for _, k := range keys {
		c, ok := g.chunks[k]
		if !ok {
			c = &chunk{entities: make(map[ecs.ID]*ecs.Entity)}
			g.chunks[k] = c
		}
		c.entities[e.ID()] = e
		c.dirty = true
	}
	g.entityKeys[e.ID()] = keys
	g.bvhStale = true
}

// Remove removes e from every chunk it was last inserted into,
// marking each dirty.
func (g *Grid) Remove(e *ecs.Entity) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.removeLocked(e)
	g.bvhStale = true
}

func (g *Grid) removeLocked(e *ecs.Entity) {
	keys, ok := g.entityKeys[e.ID()]
	if !ok {
		return
	}
	for _, k := range keys {
		if c, ok := g.chunks[k]; ok {
			delete(c.entities, e.ID())
			c.dirty = true
			if len(c.entities) == 0 {
				delete(g.chunks, k)
			}
		}
	}
	delete(g.entityKeys, e.ID())
}

// Move removes e from its previous chunks and re-inserts it at
// box, as done on every ModelTransform event.
func (g *Grid) Move(e *ecs.Entity, box linear.Bounds3) {
	g.mu.Lock()
	g.removeLocked(e)
	g.mu.Unlock()
	g.Insert(e, box)
}

// DirtyChunks returns every chunk key currently marked dirty.
func (g *Grid) DirtyChunks() []chunkKey {
	g.mu.Lock()
	defer g.mu.Unlock()
	var out []chunkKey
	for k, c := range g.chunks {
		if c.dirty {
			out = append(out, k)
		}
	}
	return out
}

// ClearDirty clears every chunk's dirty flag.
func (g *Grid) ClearDirty() {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, c := range g.chunks {
		c.dirty = false
	}
}

// Entities returns the entities occupying the chunk at key, or
// nil if it is unoccupied.
func (g *Grid) Entities(key chunkKey) []*ecs.Entity {
	g.mu.Lock()
	defer g.mu.Unlock()
	c, ok := g.chunks[key]
	if !ok {
		return nil
	}
	out := make([]*ecs.Entity, 0, len(c.entities))
	for _, e := range c.entities {
		out = append(out, e)
	}
	return out
}

// rebuildBVH rebuilds the chunk-box BVH from the currently
// occupied chunks. Must be called with g.mu held.
func (g *Grid) rebuildBVH() {
	g.chunkOrder = g.chunkOrder[:0]
	prims := make([]bvh.Primitive, 0, len(g.chunks))
	i := uint32(0)
	for k := range g.chunks {
		box := g.chunkBounds(k)
		// Twelve triangles, two per face, cover the chunk's box:
		// the BVH package only traces triangles. Bit a of a
		// corner index selects Max on axis a.
		var c [8]linear.V3
		for j := range c {
			c[j] = box.Min
			for a := 0; a < 3; a++ {
				if j&(1<<a) != 0 {
					c[j][a] = box.Max[a]
				}
			}
		}
		for _, f := range [12][3]int{{0, 1, 3}, {0, 3, 2}, {4, 5, 7}, {4, 7, 6}, {0, 1, 5}, {0, 5, 4}, {2, 3, 7}, {2, 7, 6}, {0, 2, 6}, {0, 6, 4}, {1, 3, 7}, {1, 7, 5}} {
			prims = append(prims, bvh.Primitive{P0: c[f[0]], P1: c[f[1]], P2: c[f[2]], Index: i})
		}
		g.chunkOrder = append(g.chunkOrder, k)
		i++
	}
	if len(prims) == 0 {
		g.chunkBVH = nil
	} else {
		g.chunkBVH = bvh.BuildSAH(prims, 4)
	}
	g.bvhStale = false
}

func (g *Grid) chunkBounds(k chunkKey) linear.Bounds3 {
	s := g.chunkSize
	min := linear.V3{float32(k.X) * s, float32(k.Y) * s, float32(k.Z) * s}
	max := linear.V3{min[0] + s, min[1] + s, min[2] + s}
	return linear.Bounds3{Min: min, Max: max}
}

// QueryRay returns the key of the nearest occupied chunk the
// ray r hits, via the chunk BVH, and whether any chunk was hit.
func (g *Grid) QueryRay(r *linear.Ray) (chunkKey, bool) {
	g.mu.Lock()
	if g.bvhStale {
		g.rebuildBVH()
	}
	b := g.chunkBVH
	order := g.chunkOrder
	g.mu.Unlock()

	if b == nil {
		return chunkKey{}, false
	}
	hit, ok := b.Intersect(r)
	if !ok {
		return chunkKey{}, false
	}
	return order[hit.PrimitiveIndex], true
}
