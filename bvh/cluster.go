// Copyright 2024 Gustavo C. Viegas. All rights reserved.

package bvh

import (
	"sort"

	"github.com/nyxgfx/nyx/linear"
)

// BuildClustered builds a BVH by Morton-sorting primitive
// centroids (10 bits per axis) and collapsing runs of the
// sorted order into leaves of targetLeafSize primitives
// (clamped to [1,8]), then building the interior levels by
// recursively pairing adjacent clusters. This is the fast
// path used for interactive builds such as mesh SDF bakes; it
// trades traversal quality for build speed relative to
// BuildSAH/BuildHLBVH.
func BuildClustered(prims []Primitive, targetLeafSize int) *BVH {
	if targetLeafSize < 1 {
		targetLeafSize = 1
	}
	if targetLeafSize > 8 {
		targetLeafSize = 8
	}
	if len(prims) == 0 {
		return &BVH{}
	}

	type entry struct {
		prim int
		code uint32
	}
	bounds := linear.EmptyBounds3()
	centroids := make([]linear.V3, len(prims))
	for i := range prims {
		centroids[i] = prims[i].centroid()
		bounds.Extend(&centroids[i])
	}
	entries := make([]entry, len(prims))
	for i := range prims {
		off := bounds.Offset(&centroids[i])
		entries[i] = entry{prim: i, code: encodeMorton3(&off)}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].code < entries[j].code })

	order := make([]int, len(entries))
	for i, e := range entries {
		order[i] = e.prim
	}

	// leaves holds one buildNode per run of targetLeafSize
	// primitives from the Morton order.
	var leaves []*buildNode
	for start := 0; start < len(order); start += targetLeafSize {
		end := start + targetLeafSize
		if end > len(order) {
			end = len(order)
		}
		b := linear.EmptyBounds3()
		for i := start; i < end; i++ {
			pb := prims[order[i]].bounds()
			b.Union(&b, &pb)
		}
		n := &buildNode{}
		n.makeLeaf(start, end-start, b)
		leaves = append(leaves, n)
	}

	root := collapse(leaves)
	return flatten(root, prims, order)
}

// collapse pairs adjacent nodes (preserving Morton order)
// bottom-up until a single root remains.
func collapse(nodes []*buildNode) *buildNode {
	if len(nodes) == 1 {
		return nodes[0]
	}
	var next []*buildNode
	for i := 0; i < len(nodes); i += 2 {
		if i+1 == len(nodes) {
			next = append(next, nodes[i])
			continue
		}
		n := &buildNode{}
		n.makeInterior(0, nodes[i], nodes[i+1])
		next = append(next, n)
	}
	return collapse(next)
}
