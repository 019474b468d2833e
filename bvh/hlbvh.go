// Copyright 2024 Gustavo C. Viegas. All rights reserved.

package bvh

import "github.com/nyxgfx/nyx/linear"

const (
	mortonBits    = 10 // per axis
	mortonScale   = 1 << mortonBits
	radixBitsPass = 6
	radixPasses   = 5 // covers the 30-bit Morton code
)

func expandBits(v uint32) uint32 {
	v = (v * 0x00010001) & 0xFF0000FF
	v = (v * 0x00000101) & 0x0F00F00F
	v = (v * 0x00000011) & 0xC30C30C3
	v = (v * 0x00000005) & 0x49249249
	return v
}

func encodeMorton3(p *linear.V3) uint32 {
	x := uint32(clamp01(p[0]) * (mortonScale - 1))
	y := uint32(clamp01(p[1]) * (mortonScale - 1))
	z := uint32(clamp01(p[2]) * (mortonScale - 1))
	return expandBits(x)<<2 | expandBits(y)<<1 | expandBits(z)
}

func clamp01(f float32) float32 {
	switch {
	case f < 0:
		return 0
	case f > 1:
		return 1
	default:
		return f
	}
}

type mortonPrim struct {
	prim  int
	code  uint32
}

// radixSort sorts v by the low radixPasses*radixBitsPass bits
// of code, 6 bits per pass, least significant pass first.
func radixSort(v []mortonPrim) {
	if len(v) == 0 {
		return
	}
	const bitsPerPass = radixBitsPass
	const nBucketsR = 1 << bitsPerPass
	const mask = nBucketsR - 1
	tmp := make([]mortonPrim, len(v))
	in, out := v, tmp
	for pass := 0; pass < radixPasses; pass++ {
		shift := pass * bitsPerPass
		var counts [nBucketsR + 1]int
		for _, m := range in {
			b := (m.code >> shift) & mask
			counts[b+1]++
		}
		for i := 0; i < nBucketsR; i++ {
			counts[i+1] += counts[i]
		}
		for _, m := range in {
			b := (m.code >> shift) & mask
			out[counts[b]] = m
			counts[b]++
		}
		in, out = out, in
	}
	if &in[0] != &v[0] {
		copy(v, in)
	}
}

// treeletBits is the number of high bits of the 30-bit Morton
// code that identify a primitive's treelet: the low
// (30 - treeletBits) bits vary freely within a treelet.
const treeletBits = 12

// BuildHLBVH builds a BVH by radix-sorting primitive centroids
// by 30-bit Morton code (6 bits per pass, 5 passes), grouping
// primitives sharing the high treeletBits into treelets built
// independently with SAH, then stitching the treelet roots
// with a second SAH pass over the upper levels.
func BuildHLBVH(prims []Primitive, leafSize int) *BVH {
	if leafSize < 1 {
		leafSize = 1
	}
	if len(prims) == 0 {
		return &BVH{}
	}

	infos := make([]primInfo, len(prims))
	bounds := linear.EmptyBounds3()
	for i := range prims {
		infos[i] = primInfo{bounds: prims[i].bounds(), centroid: prims[i].centroid(), prim: i}
		bounds.Extend(&infos[i].centroid)
	}

	morton := make([]mortonPrim, len(infos))
	for i, pi := range infos {
		off := bounds.Offset(&pi.centroid)
		morton[i] = mortonPrim{prim: i, code: encodeMorton3(&off)}
	}
	radixSort(morton)

	var order []int
	var roots []*buildNode

	start := 0
	for start < len(morton) {
		end := start + 1
		mask := uint32(1<<30-1) &^ (1<<(30-treeletBits) - 1)
		for end < len(morton) && (morton[end].code&mask) == (morton[start].code&mask) {
			end++
		}
		treeletInfos := make([]primInfo, end-start)
		for i := start; i < end; i++ {
			treeletInfos[i-start] = infos[morton[i].prim]
		}
		root := buildSAHRange(treeletInfos, 0, len(treeletInfos), leafSize, &order)
		roots = append(roots, root)
		start = end
	}

	upper := BuildUpperSAH(roots)
	return flatten(upper, prims, order)
}

// BuildUpperSAH stitches a set of treelet roots into a single
// tree using SAH over their bounds, treating each root as an
// opaque leaf-like unit. The node count for a range is
// end - start; an earlier revision of this routine computed
// it as start - end, which underflowed for every non-empty
// range and corrupted the surface-area cost. That bug is not
// reproduced here.
func BuildUpperSAH(roots []*buildNode) *buildNode {
	if len(roots) == 0 {
		return nil
	}
	if len(roots) == 1 {
		return roots[0]
	}

	centroids := make([]linear.V3, len(roots))
	centroidBounds := linear.EmptyBounds3()
	for i, r := range roots {
		centroids[i] = r.bounds.Centroid()
		centroidBounds.Extend(&centroids[i])
	}

	type rootInfo struct {
		root     *buildNode
		centroid linear.V3
	}
	infos := make([]rootInfo, len(roots))
	for i := range roots {
		infos[i] = rootInfo{root: roots[i], centroid: centroids[i]}
	}

	var build func(start, end int) *buildNode
	build = func(start, end int) *buildNode {
		nodeCount := end - start // corrected: was start - end
		if nodeCount == 1 {
			return infos[start].root
		}

		bounds := linear.EmptyBounds3()
		cb := linear.EmptyBounds3()
		for i := start; i < end; i++ {
			bounds.Union(&bounds, &infos[i].root.bounds)
			cb.Extend(&infos[i].centroid)
		}
		axis := cb.MaxExtent()
		if cb.Max[axis] == cb.Min[axis] {
			mid := start + nodeCount/2
			left := build(start, mid)
			right := build(mid, end)
			n := &buildNode{}
			n.makeInterior(axis, left, right)
			return n
		}

		var buckets [nBuckets]bucket
		for i := start; i < end; i++ {
			b := bucketIndex(&cb, &infos[i].centroid, axis)
			buckets[b].count++
			buckets[b].bounds.Union(&buckets[b].bounds, &infos[i].root.bounds)
		}
		var cost [nBuckets - 1]float32
		sa := bounds.SurfaceArea()
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
		mid := start
		for i := start; i < end; i++ {
			if bucketIndex(&cb, &infos[i].centroid, axis) <= minBucket {
				infos[i], infos[mid] = infos[mid], infos[i]
				mid++
			}
		}
		if mid == start || mid == end {
			mid = start + nodeCount/2
		}
		n := &buildNode{}
		n.makeInterior(axis, build(start, mid), build(mid, end))
		return n
	}
	return build(0, len(roots))
}
