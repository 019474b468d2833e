// Copyright 2024 Gustavo C. Viegas. All rights reserved.

package linear

import "math"

// Bounds3 is an axis-aligned bounding box in 3D space.
// The zero value is the degenerate box at the origin; use
// EmptyBounds3 for an empty (inverted) box that any call to
// Union or Extend widens to a valid extent.
type Bounds3 struct {
	Min, Max V3
}

// EmptyBounds3 returns an inverted box suitable as the
// identity value for repeated calls to Extend/Union.
func EmptyBounds3() Bounds3 {
	return Bounds3{
		Min: V3{
			float32(math.Inf(1)),
			float32(math.Inf(1)),
			float32(math.Inf(1)),
		},
		Max: V3{
			float32(math.Inf(-1)),
			float32(math.Inf(-1)),
			float32(math.Inf(-1)),
		},
	}
}

// Extend grows b so that it contains p.
func (b *Bounds3) Extend(p *V3) {
	for i := range b.Min {
		if p[i] < b.Min[i] {
			b.Min[i] = p[i]
		}
		if p[i] > b.Max[i] {
			b.Max[i] = p[i]
		}
	}
}

// Union sets b to contain both l and r.
func (b *Bounds3) Union(l, r *Bounds3) {
	for i := range b.Min {
		b.Min[i] = min(l.Min[i], r.Min[i])
		b.Max[i] = max(l.Max[i], r.Max[i])
	}
}

// Centroid returns the midpoint of b.
func (b *Bounds3) Centroid() V3 {
	var c V3
	c.Add(&b.Min, &b.Max)
	c.Scale(0.5, &c)
	return c
}

// Diagonal returns Max - Min.
func (b *Bounds3) Diagonal() V3 {
	var d V3
	d.Sub(&b.Max, &b.Min)
	return d
}

// SurfaceArea returns the surface area of b.
// An empty or degenerate box returns 0.
func (b *Bounds3) SurfaceArea() float32 {
	d := b.Diagonal()
	if d[0] < 0 || d[1] < 0 || d[2] < 0 {
		return 0
	}
	return 2 * (d[0]*d[1] + d[1]*d[2] + d[2]*d[0])
}

// MaxExtent returns the index of b's longest axis
// (0 = x, 1 = y, 2 = z).
func (b *Bounds3) MaxExtent() int {
	d := b.Diagonal()
	switch {
	case d[0] > d[1] && d[0] > d[2]:
		return 0
	case d[1] > d[2]:
		return 1
	default:
		return 2
	}
}

// Offset returns the position of p relative to the
// corners of b, where Min maps to (0,0,0) and Max maps
// to (1,1,1).
func (b *Bounds3) Offset(p *V3) V3 {
	var o V3
	o.Sub(p, &b.Min)
	for i := range o {
		if b.Max[i] > b.Min[i] {
			o[i] /= b.Max[i] - b.Min[i]
		}
	}
	return o
}

// Transform sets b to contain the axis-aligned box that
// bounds n transformed by m.
func (b *Bounds3) Transform(m *M4, n *Bounds3) {
	*b = EmptyBounds3()
	for i := 0; i < 8; i++ {
		p := V3{n.Min[0], n.Min[1], n.Min[2]}
		if i&1 != 0 {
			p[0] = n.Max[0]
		}
		if i&2 != 0 {
			p[1] = n.Max[1]
		}
		if i&4 != 0 {
			p[2] = n.Max[2]
		}
		var v4 V4
		v4.Mul(m, &V4{p[0], p[1], p[2], 1})
		wp := V3{v4[0], v4[1], v4[2]}
		b.Extend(&wp)
	}
}
