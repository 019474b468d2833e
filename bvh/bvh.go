// Copyright 2024 Gustavo C. Viegas. All rights reserved.

// Package bvh builds and traverses bounding volume hierarchies
// over triangle meshes, and simplifies meshes by quadric-error
// edge collapse.
package bvh

import "github.com/nyxgfx/nyx/linear"

// Primitive is one input triangle: three corner positions and
// the owning primitive's opaque index (into whatever index
// buffer the caller tracks; never interpreted by this
// package).
type Primitive struct {
	P0, P1, P2 linear.V3
	Index      uint32
}

func (p *Primitive) bounds() linear.Bounds3 {
	b := linear.EmptyBounds3()
	b.Extend(&p.P0)
	b.Extend(&p.P1)
	b.Extend(&p.P2)
	return b
}

func (p *Primitive) centroid() linear.V3 {
	b := p.bounds()
	return b.Centroid()
}

// Node is one entry of the flat BVH array, 32 bytes wide: an
// AABB plus either a primitive range (leaf) or the index of
// the second child (interior; the first child immediately
// follows the node itself).
type Node struct {
	Bounds         linear.Bounds3 // 24 bytes
	FirstChildOrPrimitive uint32  // interior: right child index (left = own index+1); leaf: first primitive offset
	PrimitiveCount uint16         // 0 for interior nodes
	Axis           uint8          // split axis, interior nodes only
	_              uint8
}

// IsLeaf reports whether n is a leaf node.
func (n *Node) IsLeaf() bool { return n.PrimitiveCount > 0 }

// BVH is a flat, GPU-uploadable node array plus the primitive
// order it was built against. Primitives[FirstChildOrPrimitive:+PrimitiveCount]
// is the leaf's triangle range.
type BVH struct {
	Nodes      []Node
	Primitives []Primitive
}
