// Copyright 2024 Gustavo C. Viegas. All rights reserved.

package bvh

import "github.com/nyxgfx/nyx/linear"

const maxStackDepth = 64

// Hit describes the closest triangle a ray intersected.
type Hit struct {
	PrimitiveIndex uint32 // Primitive.Index of the hit triangle
	T, U, V        float32
}

// Intersect walks b iteratively (a fixed 64-entry array, never
// recursion) and returns the closest hit along r within
// r.TMax, if any. The search narrows TMax on a private copy of
// r; r itself is not modified. IntersectP is the any-hit
// query.
func (b *BVH) Intersect(r *linear.Ray) (Hit, bool) {
	if len(b.Nodes) == 0 {
		return Hit{}, false
	}
	id := linear.NewInvDir(r)

	var stack [maxStackDepth]uint32
	sp := 0
	stack[sp] = 0
	sp++

	var best Hit
	found := false
	working := *r

	for sp > 0 {
		sp--
		ni := stack[sp]
		n := &b.Nodes[ni]
		if !n.Bounds.IntersectP(&working, id) {
			continue
		}
		if n.IsLeaf() {
			first := n.FirstChildOrPrimitive
			for i := uint32(0); i < uint32(n.PrimitiveCount); i++ {
				p := &b.Primitives[first+i]
				u, v, t, ok := linear.IntersectTriangle(&working, &p.P0, &p.P1, &p.P2)
				if ok {
					best = Hit{PrimitiveIndex: p.Index, T: t, U: u, V: v}
					found = true
					working.TMax = t
				}
			}
			continue
		}
		left := ni + 1
		right := n.FirstChildOrPrimitive
		if sp+2 > maxStackDepth {
			// Degenerate tree deeper than the fixed stack can
			// hold; push only the left child and drop the
			// right one rather than overflow.
			stack[sp] = left
			sp++
			continue
		}
		stack[sp] = left
		sp++
		stack[sp] = right
		sp++
	}
	return best, found
}

// IntersectP is an any-hit query: it returns true as soon as
// any triangle within [0, r.TMax] is crossed, without
// determining the closest one.
func (b *BVH) IntersectP(r *linear.Ray) bool {
	if len(b.Nodes) == 0 {
		return false
	}
	id := linear.NewInvDir(r)

	var stack [maxStackDepth]uint32
	sp := 0
	stack[sp] = 0
	sp++

	for sp > 0 {
		sp--
		ni := stack[sp]
		n := &b.Nodes[ni]
		if !n.Bounds.IntersectP(r, id) {
			continue
		}
		if n.IsLeaf() {
			first := n.FirstChildOrPrimitive
			for i := uint32(0); i < uint32(n.PrimitiveCount); i++ {
				p := &b.Primitives[first+i]
				_, _, _, ok := linear.IntersectTriangle(r, &p.P0, &p.P1, &p.P2)
				if ok {
					return true
				}
			}
			continue
		}
		if sp+2 > maxStackDepth {
			stack[sp] = ni + 1
			sp++
			continue
		}
		stack[sp] = ni + 1
		sp++
		stack[sp] = n.FirstChildOrPrimitive
		sp++
	}
	return false
}
