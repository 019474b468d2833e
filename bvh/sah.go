// Copyright 2024 Gustavo C. Viegas. All rights reserved.

package bvh

import "github.com/nyxgfx/nyx/linear"

const nBuckets = 12

// primInfo is a primitive's bounds/centroid cached for the
// duration of a build, plus its original index into the
// caller-supplied primitive slice.
type primInfo struct {
	bounds   linear.Bounds3
	centroid linear.V3
	prim     int
}

// buildNode is a temporary tree node produced by the
// recursive builders before Flatten packs the tree into the
// public 32-byte Node array.
type buildNode struct {
	bounds       linear.Bounds3
	left, right  *buildNode
	axis         int
	firstPrim    int
	primCount    int
}

func (n *buildNode) makeLeaf(first, count int, bounds linear.Bounds3) {
	n.firstPrim, n.primCount, n.bounds = first, count, bounds
}

func (n *buildNode) makeInterior(axis int, left, right *buildNode) {
	n.axis, n.left, n.right = axis, left, right
	n.bounds = linear.EmptyBounds3()
	n.bounds.Union(&left.bounds, &right.bounds)
}

type bucket struct {
	count  int
	bounds linear.Bounds3
}

// bucketIndex maps a centroid's offset along axis into
// [0, nBuckets).
func bucketIndex(centroidBounds *linear.Bounds3, c *linear.V3, axis int) int {
	off := centroidBounds.Offset(c)
	b := int(float32(nBuckets) * off[axis])
	if b == nBuckets {
		b = nBuckets - 1
	}
	if b < 0 {
		b = 0
	}
	return b
}

// buildSAHRange builds a subtree over infos[start:end] using
// 12-bucket SAH along the longest centroid-span axis, falling
// back to an equal-counts split when there are 2 or fewer
// primitives or every centroid coincides (degenerate bucket
// partition). leafSize bounds the primitive count a single
// leaf may hold. order receives the final primitive
// permutation (appended once per leaf); it must start empty
// and is shared across the whole build.
func buildSAHRange(infos []primInfo, start, end, leafSize int, order *[]int) *buildNode {
	n := &buildNode{}
	count := end - start
	bounds := linear.EmptyBounds3()
	for i := start; i < end; i++ {
		bounds.Union(&bounds, &infos[i].bounds)
	}

	makeLeaf := func() *buildNode {
		first := len(*order)
		for i := start; i < end; i++ {
			*order = append(*order, infos[i].prim)
		}
		n.makeLeaf(first, count, bounds)
		return n
	}

	if count == 1 {
		return makeLeaf()
	}
	if count == 2 {
		mid := start + 1
		n.makeInterior(0,
			buildSAHRange(infos, start, mid, leafSize, order),
			buildSAHRange(infos, mid, end, leafSize, order))
		return n
	}

	centroidBounds := linear.EmptyBounds3()
	for i := start; i < end; i++ {
		centroidBounds.Extend(&infos[i].centroid)
	}
	axis := centroidBounds.MaxExtent()
	if centroidBounds.Max[axis] == centroidBounds.Min[axis] {
		if count <= leafSize {
			return makeLeaf()
		}
		axis = 0
	}

	var buckets [nBuckets]bucket
	for i := start; i < end; i++ {
		b := bucketIndex(&centroidBounds, &infos[i].centroid, axis)
		buckets[b].count++
		buckets[b].bounds.Union(&buckets[b].bounds, &infos[i].bounds)
	}

	var cost [nBuckets - 1]float32
	for i := 0; i < nBuckets-1; i++ {
		b0, b1 := linear.EmptyBounds3(), linear.EmptyBounds3()
		c0, c1 := 0, 0
		for j := 0; j <= i; j++ {
			b0.Union(&b0, &buckets[j].bounds)
			c0 += buckets[j].count
		}
		for j := i + 1; j < nBuckets; j++ {
			b1.Union(&b1, &buckets[j].bounds)
			c1 += buckets[j].count
		}
		sa := bounds.SurfaceArea()
		if sa == 0 {
			cost[i] = float32(c0 + c1)
			continue
		}
		cost[i] = 0.125 + (float32(c0)*b0.SurfaceArea()+float32(c1)*b1.SurfaceArea())/sa
	}

	minCost, minBucket := cost[0], 0
	for i := 1; i < nBuckets-1; i++ {
		if cost[i] < minCost {
			minCost, minBucket = cost[i], i
		}
	}

	leafCost := float32(count)
	if count > leafSize || minCost < leafCost {
		mid := partition(infos, start, end, func(pi *primInfo) bool {
			return bucketIndex(&centroidBounds, &pi.centroid, axis) <= minBucket
		})
		if mid == start || mid == end {
			mid = start + count/2
			nthElementByAxis(infos, start, end, mid, axis)
		}
		n.makeInterior(axis,
			buildSAHRange(infos, start, mid, leafSize, order),
			buildSAHRange(infos, mid, end, leafSize, order))
		return n
	}
	return makeLeaf()
}

// partition reorders infos[start:end] so every element for
// which keep returns true precedes every element for which it
// returns false, and returns the split point.
func partition(infos []primInfo, start, end int, keep func(*primInfo) bool) int {
	i := start
	for j := start; j < end; j++ {
		if keep(&infos[j]) {
			infos[i], infos[j] = infos[j], infos[i]
			i++
		}
	}
	return i
}

// nthElementByAxis partially sorts infos[start:end] around
// position mid by centroid[axis], used as the equal-counts
// fallback split.
func nthElementByAxis(infos []primInfo, start, end, mid, axis int) {
	lo, hi := start, end-1
	for lo < hi {
		p := infos[(lo+hi)/2].centroid[axis]
		i, j := lo, hi
		for i <= j {
			for infos[i].centroid[axis] < p {
				i++
			}
			for infos[j].centroid[axis] > p {
				j--
			}
			if i <= j {
				infos[i], infos[j] = infos[j], infos[i]
				i++
				j--
			}
		}
		if mid <= j {
			hi = j
		} else if mid >= i {
			lo = i
		} else {
			break
		}
	}
}

// BuildSAH builds a BVH over prims using top-down 12-bucket
// SAH splitting, falling back to an equal-counts split for
// runs of 2 or fewer primitives. leafSize bounds the number of
// primitives a leaf may hold (at least 1).
func BuildSAH(prims []Primitive, leafSize int) *BVH {
	if leafSize < 1 {
		leafSize = 1
	}
	if len(prims) == 0 {
		return &BVH{}
	}
	infos := make([]primInfo, len(prims))
	for i := range prims {
		infos[i] = primInfo{bounds: prims[i].bounds(), centroid: prims[i].centroid(), prim: i}
	}
	var order []int
	root := buildSAHRange(infos, 0, len(infos), leafSize, &order)
	return flatten(root, prims, order)
}

// flatten packs a build tree into the public Node array in
// depth-first preorder: a node's left child immediately
// follows it, and its right child index is recorded in
// FirstChildOrPrimitive.
func flatten(root *buildNode, prims []Primitive, order []int) *BVH {
	out := &BVH{Primitives: make([]Primitive, len(order))}
	for i, idx := range order {
		out.Primitives[i] = prims[idx]
	}
	if root == nil {
		return out
	}
	var walk func(n *buildNode) uint32
	walk = func(n *buildNode) uint32 {
		self := uint32(len(out.Nodes))
		out.Nodes = append(out.Nodes, Node{})
		if n.primCount > 0 {
			out.Nodes[self] = Node{
				Bounds:                n.bounds,
				FirstChildOrPrimitive: uint32(n.firstPrim),
				PrimitiveCount:        uint16(n.primCount),
			}
			return self
		}
		walk(n.left)
		rightIdx := walk(n.right)
		out.Nodes[self] = Node{
			Bounds:                n.bounds,
			FirstChildOrPrimitive: rightIdx,
			PrimitiveCount:        0,
			Axis:                  uint8(n.axis),
		}
		return self
	}
	walk(root)
	return out
}
