// Copyright 2024 Gustavo C. Viegas. All rights reserved.

package bvh

import (
	"container/heap"
	"math"

	"github.com/nyxgfx/nyx/linear"
)

// quadric is the symmetric 4x4 error matrix A, stored as its
// upper triangle (10 coefficients, a44 being the scalar term),
// following the standard Garland-Heckbert plane-quadric
// encoding: Q(v) = v^T A v + 2 b^T v + c.
type quadric struct {
	a11, a12, a13, a14 float64
	a22, a23, a24      float64
	a33, a34           float64
	a44                float64
}

func planeQuadric(p0, p1, p2 *linear.V3) quadric {
	var e1, e2, n linear.V3
	e1.Sub(p1, p0)
	e2.Sub(p2, p0)
	n.Cross(&e1, &e2)
	length := n.Len()
	if length == 0 {
		return quadric{}
	}
	n.Scale(1/length, &n)
	d := -n.Dot(p0)
	a, b, c := float64(n[0]), float64(n[1]), float64(n[2])
	dd := float64(d)
	return quadric{
		a11: a * a, a12: a * b, a13: a * c, a14: a * dd,
		a22: b * b, a23: b * c, a24: b * dd,
		a33: c * c, a34: c * dd,
		a44: dd * dd,
	}
}

func (q *quadric) add(r *quadric) {
	q.a11 += r.a11
	q.a12 += r.a12
	q.a13 += r.a13
	q.a14 += r.a14
	q.a22 += r.a22
	q.a23 += r.a23
	q.a24 += r.a24
	q.a33 += r.a33
	q.a34 += r.a34
	q.a44 += r.a44
}

func (q *quadric) eval(p *linear.V3) float64 {
	x, y, z := float64(p[0]), float64(p[1]), float64(p[2])
	return x*x*q.a11 + 2*x*y*q.a12 + 2*x*z*q.a13 + 2*x*q.a14 +
		y*y*q.a22 + 2*y*z*q.a23 + 2*y*q.a24 +
		z*z*q.a33 + 2*z*q.a34 +
		q.a44
}

// optimalPoint solves the 3x3 linear system A*v = -b for the
// point minimizing the quadric. It reports ok=false if the
// system is singular, in which case the caller should fall
// back to the edge midpoint.
func (q *quadric) optimalPoint() (linear.V3, bool) {
	m := [3][4]float64{
		{q.a11, q.a12, q.a13, -q.a14},
		{q.a12, q.a22, q.a23, -q.a24},
		{q.a13, q.a23, q.a33, -q.a34},
	}
	for i := 0; i < 3; i++ {
		piv := i
		for r := i + 1; r < 3; r++ {
			if abs64(m[r][i]) > abs64(m[piv][i]) {
				piv = r
			}
		}
		if abs64(m[piv][i]) < 1e-12 {
			return linear.V3{}, false
		}
		m[i], m[piv] = m[piv], m[i]
		for r := 0; r < 3; r++ {
			if r == i {
				continue
			}
			f := m[r][i] / m[i][i]
			for c := i; c < 4; c++ {
				m[r][c] -= f * m[i][c]
			}
		}
	}
	var v linear.V3
	for i := 0; i < 3; i++ {
		v[i] = float32(m[i][3] / m[i][i])
	}
	return v, true
}

func abs64(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}

// vertexKey hashes a position with positive-zero
// canonicalisation (-0 and +0 must hash identically) using a
// MurmurMix-style finalizer.
func vertexKey(p *linear.V3) uint64 {
	canon := func(f float32) uint32 {
		bits := floatBits(f)
		if bits == 0x80000000 {
			return 0
		}
		return bits
	}
	h := uint64(canon(p[0])) | uint64(canon(p[1]))<<32
	h = murmurMix64(h)
	h ^= uint64(canon(p[2]))
	return murmurMix64(h)
}

func floatBits(f float32) uint32 {
	return math.Float32bits(f)
}

// murmurMix64 is the 64-bit finalizer from MurmurHash3.
func murmurMix64(h uint64) uint64 {
	h ^= h >> 33
	h *= 0xff51afd7ed558ccd
	h ^= h >> 33
	h *= 0xc4ceb9fe1a85ec53
	h ^= h >> 33
	return h
}

// Mesh is a simplifier's working copy of a triangle mesh:
// deduplicated positions plus a triangle index buffer over
// them.
type Mesh struct {
	Positions []linear.V3
	Indices   []uint32
}

// Simplifier reduces a Mesh by quadric-error edge collapse.
type Simplifier struct {
	positions []linear.V3
	indices   []uint32
	quadrics  []quadric
	refCount  []int
	locked    []bool
	adjacency [][]int // vertex -> adjacent vertex indices (deduplicated)

	heap  edgeHeap
	dirty map[edgeKey]bool

	remainingTriangles int
}

type edgeKey struct{ a, b uint32 } // a < b

type heapEntry struct {
	edge  edgeKey
	error float64
	point linear.V3
	valid bool
}

type edgeHeap []*heapEntry

func (h edgeHeap) Len() int            { return len(h) }
func (h edgeHeap) Less(i, j int) bool  { return h[i].error < h[j].error }
func (h edgeHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *edgeHeap) Push(x any)         { *h = append(*h, x.(*heapEntry)) }
func (h *edgeHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	*h = old[:n-1]
	return e
}

// maxErrorStop matches the source behaviour of halting
// collapse once the cheapest remaining edge is this costly,
// regardless of target triangle count.
const maxErrorStop = 1e6

// fanPenaltyThreshold and fanPenaltyStep implement the
// per-vertex fan penalty: edges touching a vertex with more
// than this many adjacent vertices are penalized to discourage
// "sunburst" collapses around high-valence vertices.
const (
	fanPenaltyThreshold = 24
	fanPenaltyStep      = 0.5
)

const lockedPenalty = 1e8

// NewSimplifier deduplicates positions (hash + canonicalised
// sign-of-zero) and discards degenerate or duplicate
// triangles, building the adjacency and initial quadrics
// needed to run Simplify.
func NewSimplifier(m *Mesh, lockedVertices map[uint32]bool) *Simplifier {
	s := &Simplifier{}
	keyToIndex := make(map[uint64]int, len(m.Positions))
	remap := make([]uint32, len(m.Positions))
	for i, p := range m.Positions {
		k := vertexKey(&p)
		if idx, ok := keyToIndex[k]; ok {
			remap[i] = uint32(idx)
			continue
		}
		idx := len(s.positions)
		keyToIndex[k] = idx
		s.positions = append(s.positions, p)
		remap[i] = uint32(idx)
	}

	s.quadrics = make([]quadric, len(s.positions))
	s.refCount = make([]int, len(s.positions))
	s.locked = make([]bool, len(s.positions))
	adjSet := make([]map[uint32]bool, len(s.positions))
	for i := range adjSet {
		adjSet[i] = make(map[uint32]bool)
	}

	seenTri := make(map[[3]uint32]bool)
	for t := 0; t+2 < len(m.Indices); t += 3 {
		a := remap[m.Indices[t]]
		b := remap[m.Indices[t+1]]
		c := remap[m.Indices[t+2]]
		if a == b || b == c || a == c {
			continue // degenerate
		}
		key := sortedTri(a, b, c)
		if seenTri[key] {
			continue // duplicate
		}
		seenTri[key] = true

		s.indices = append(s.indices, a, b, c)
		q := planeQuadric(&s.positions[a], &s.positions[b], &s.positions[c])
		s.quadrics[a].add(&q)
		s.quadrics[b].add(&q)
		s.quadrics[c].add(&q)
		s.refCount[a]++
		s.refCount[b]++
		s.refCount[c]++
		adjSet[a][b], adjSet[a][c] = true, true
		adjSet[b][a], adjSet[b][c] = true, true
		adjSet[c][a], adjSet[c][b] = true, true
	}
	s.remainingTriangles = len(s.indices) / 3

	s.adjacency = make([][]int, len(s.positions))
	for i, set := range adjSet {
		for v := range set {
			s.adjacency[i] = append(s.adjacency[i], int(v))
		}
	}
	for i := range lockedVertices {
		if int(i) < len(s.locked) {
			s.locked[remap[i]] = true
		}
	}

	s.dirty = make(map[edgeKey]bool)
	for a := range s.adjacency {
		for _, b := range s.adjacency[a] {
			if uint32(a) < uint32(b) {
				s.pushEdge(uint32(a), uint32(b))
			}
		}
	}
	return s
}

func sortedTri(a, b, c uint32) [3]uint32 {
	t := [3]uint32{a, b, c}
	for i := 0; i < 3; i++ {
		for j := i + 1; j < 3; j++ {
			if t[j] < t[i] {
				t[i], t[j] = t[j], t[i]
			}
		}
	}
	return t
}

func (s *Simplifier) fanPenalty(v uint32) float64 {
	n := len(s.adjacency[v])
	if n <= fanPenaltyThreshold {
		return 0
	}
	return float64(n-fanPenaltyThreshold) * fanPenaltyStep
}

func (s *Simplifier) pushEdge(a, b uint32) {
	q := s.quadrics[a]
	q.add(&s.quadrics[b])
	point, ok := q.optimalPoint()
	if !ok {
		var mid linear.V3
		mid.Add(&s.positions[a], &s.positions[b])
		mid.Scale(0.5, &mid)
		point = mid
	}
	errv := q.eval(&point)
	if s.locked[a] && s.locked[b] {
		errv += lockedPenalty
	} else if s.locked[a] || s.locked[b] {
		errv += lockedPenalty / 2
	}
	errv += s.fanPenalty(a) + s.fanPenalty(b)

	e := &heapEntry{edge: edgeKey{a, b}, error: errv, point: point, valid: true}
	heap.Push(&s.heap, e)
	delete(s.dirty, edgeKey{a, b})
}

// RemainingTriangles reports the current live triangle count.
func (s *Simplifier) RemainingTriangles() int { return s.remainingTriangles }

// Simplify greedily collapses the minimum-error edge until
// either the remaining triangle count reaches target or the
// heap's minimum error reaches maxErrorStop, whichever comes
// first. It returns the error of the last collapse performed
// (0 if none were needed).
func (s *Simplifier) Simplify(target int) float64 {
	var lastError float64
	for s.remainingTriangles > target && s.heap.Len() > 0 {
		top := s.heap[0]
		if top.error >= maxErrorStop {
			break
		}
		e := heap.Pop(&s.heap).(*heapEntry)
		if !e.valid || s.refCount[e.edge.a] == 0 || s.refCount[e.edge.b] == 0 {
			continue // stale: one endpoint already merged away
		}
		lastError = e.error
		s.collapse(e.edge.a, e.edge.b, &e.point)
	}
	return lastError
}

// collapse merges b into a at point, rewriting every triangle
// referencing b to reference a (dropping any that degenerate),
// then re-hashes the edges touching a.
func (s *Simplifier) collapse(a, b uint32, point *linear.V3) {
	s.positions[a] = *point
	s.quadrics[a].add(&s.quadrics[b])

	out := s.indices[:0]
	removed := 0
	for t := 0; t+2 < len(s.indices); t += 3 {
		i0, i1, i2 := s.indices[t], s.indices[t+1], s.indices[t+2]
		if i0 == b {
			i0 = a
		}
		if i1 == b {
			i1 = a
		}
		if i2 == b {
			i2 = a
		}
		if i0 == i1 || i1 == i2 || i0 == i2 {
			removed++
			continue
		}
		out = append(out, i0, i1, i2)
	}
	s.indices = out
	s.remainingTriangles -= removed

	s.refCount[b] = 0
	s.mergeAdjacency(a, b)

	for _, v := range s.adjacency[a] {
		s.dirty[edgeKey{min32(a, uint32(v)), max32(a, uint32(v))}] = true
	}
	for k := range s.dirty {
		s.pushEdge(k.a, k.b)
	}
	s.dirty = make(map[edgeKey]bool)
}

func (s *Simplifier) mergeAdjacency(a, b uint32) {
	set := make(map[int]bool)
	for _, v := range s.adjacency[a] {
		if uint32(v) != b {
			set[v] = true
		}
	}
	for _, v := range s.adjacency[b] {
		if uint32(v) != a {
			set[v] = true
			for i, nv := range s.adjacency[v] {
				if uint32(nv) == b {
					s.adjacency[v][i] = int(a)
				}
			}
		}
	}
	s.adjacency[a] = s.adjacency[a][:0]
	for v := range set {
		s.adjacency[a] = append(s.adjacency[a], v)
	}
	s.adjacency[b] = nil
}

func min32(a, b uint32) uint32 {
	if a < b {
		return a
	}
	return b
}

func max32(a, b uint32) uint32 {
	if a > b {
		return a
	}
	return b
}

// Compact rewrites the index buffer to reference a contiguous
// vertex range (dropping any vertex no remaining triangle
// references) and returns the compacted mesh. ok is false if
// the compacted triangle count disagrees with the count
// tracked incrementally during collapse, signalling an
// internal bookkeeping error.
func (s *Simplifier) Compact() (Mesh, bool) {
	live := make([]bool, len(s.positions))
	for _, idx := range s.indices {
		live[idx] = true
	}
	remap := make([]uint32, len(s.positions))
	var positions []linear.V3
	for i, p := range s.positions {
		if !live[i] {
			continue
		}
		remap[i] = uint32(len(positions))
		positions = append(positions, p)
	}
	indices := make([]uint32, len(s.indices))
	for i, idx := range s.indices {
		indices[i] = remap[idx]
	}
	ok := len(indices)/3 == s.remainingTriangles
	return Mesh{Positions: positions, Indices: indices}, ok
}
