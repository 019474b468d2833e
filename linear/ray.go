// Copyright 2024 Gustavo C. Viegas. All rights reserved.

package linear

// Ray is a semi-infinite line, used for intersection
// queries against Bounds3 and triangle geometry.
type Ray struct {
	Origin V3
	Dir    V3
	TMax   float32
}

// NewRay returns a ray with TMax set to the largest finite
// float32.
func NewRay(origin, dir V3) Ray {
	return Ray{Origin: origin, Dir: dir, TMax: maxFloat32}
}

const maxFloat32 = 3.402823466e+38

// InvDir precomputes the reciprocal ray direction and the
// sign of each component, used by Bounds3.IntersectP to
// avoid a division per box test during BVH traversal.
type InvDir struct {
	inv   V3
	isNeg [3]int
}

// NewInvDir precomputes the InvDir for r.
func NewInvDir(r *Ray) InvDir {
	var d InvDir
	for i := 0; i < 3; i++ {
		if r.Dir[i] != 0 {
			d.inv[i] = 1 / r.Dir[i]
		} else {
			d.inv[i] = maxFloat32
		}
		if r.Dir[i] < 0 {
			d.isNeg[i] = 1
		}
	}
	return d
}

// gamma bounds the error accumulated by n float32 operations,
// used as a conservative slab-intersection tolerance (see
// Pharr/Jakob/Humphreys, Gamma(3) for box intersection).
func Gamma(n int) float32 {
	const eps = 1.1920929e-7 // 2^-23, float32 machine epsilon
	return (float32(n) * eps) / (1 - float32(n)*eps)
}

// IntersectP reports whether r intersects b within [0, r.TMax],
// using the precomputed reciprocal direction id.
// It never recurses and never allocates.
func (b *Bounds3) IntersectP(r *Ray, id InvDir) bool {
	corners := [2]*V3{&b.Min, &b.Max}
	tMin := (corners[id.isNeg[0]][0] - r.Origin[0]) * id.inv[0]
	tMax := (corners[1-id.isNeg[0]][0] - r.Origin[0]) * id.inv[0]
	tyMin := (corners[id.isNeg[1]][1] - r.Origin[1]) * id.inv[1]
	tyMax := (corners[1-id.isNeg[1]][1] - r.Origin[1]) * id.inv[1]
	g := Gamma(3)
	tMax *= 1 + 2*g
	tyMax *= 1 + 2*g
	if tMin > tyMax || tyMin > tMax {
		return false
	}
	if tyMin > tMin {
		tMin = tyMin
	}
	if tyMax < tMax {
		tMax = tyMax
	}
	tzMin := (corners[id.isNeg[2]][2] - r.Origin[2]) * id.inv[2]
	tzMax := (corners[1-id.isNeg[2]][2] - r.Origin[2]) * id.inv[2]
	tzMax *= 1 + 2*g
	if tMin > tzMax || tzMin > tMax {
		return false
	}
	if tzMin > tMin {
		tMin = tzMin
	}
	if tzMax < tMax {
		tMax = tzMax
	}
	return tMin < r.TMax && tMax > 0
}

// IntersectTriangle performs a Möller–Trumbore ray/triangle
// test. It returns the barycentric coordinates and the
// hit distance t, and ok is false when there is no hit
// within (Gamma(3), r.TMax].
func IntersectTriangle(r *Ray, p0, p1, p2 *V3) (u, v, t float32, ok bool) {
	var e1, e2 V3
	e1.Sub(p1, p0)
	e2.Sub(p2, p0)
	var pvec V3
	pvec.Cross(&r.Dir, &e2)
	det := e1.Dot(&pvec)
	if det > -1e-8 && det < 1e-8 {
		return
	}
	invDet := 1 / det
	var tvec V3
	tvec.Sub(&r.Origin, p0)
	u = tvec.Dot(&pvec) * invDet
	if u < 0 || u > 1 {
		return
	}
	var qvec V3
	qvec.Cross(&tvec, &e1)
	v = r.Dir.Dot(&qvec) * invDet
	if v < 0 || u+v > 1 {
		return
	}
	t = e2.Dot(&qvec) * invDet
	if t <= Gamma(3) || t > r.TMax {
		return
	}
	ok = true
	return
}
