package core

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Triangle is one world-space collision triangle. Normal is the unit face
// normal following the A->B->C winding, or zero for a degenerate triangle.
type Triangle struct {
	A, B, C mgl64.Vec3
	Normal  mgl64.Vec3
	// Mesh is the ordinal of the source mesh, kept for diagnostics.
	Mesh int32
}

// areaEpsilon is the squared cross-product length below which a triangle
// is considered to have no area.
const areaEpsilon = 1e-24

func NewTriangle(a, b, c mgl64.Vec3, mesh int32) Triangle {
	t := Triangle{A: a, B: b, C: c, Mesh: mesh}
	n := b.Sub(a).Cross(c.Sub(a))
	if l2 := n.Dot(n); l2 > areaEpsilon && !math.IsInf(l2, 0) {
		t.Normal = n.Mul(1 / math.Sqrt(l2))
	}
	return t
}

// Area returns the surface area of the triangle.
func (t Triangle) Area() float64 {
	return 0.5 * t.B.Sub(t.A).Cross(t.C.Sub(t.A)).Len()
}

func (t Triangle) Degenerate() bool {
	n := t.B.Sub(t.A).Cross(t.C.Sub(t.A))
	return n.Dot(n) <= areaEpsilon
}

// Finite reports whether every vertex coordinate is a finite number.
func (t Triangle) Finite() bool {
	return FiniteVec(t.A) && FiniteVec(t.B) && FiniteVec(t.C)
}

func (t Triangle) Centroid() mgl64.Vec3 {
	return t.A.Add(t.B).Add(t.C).Mul(1.0 / 3.0)
}

func (t Triangle) Bounds() AABB {
	return AABB{
		Min: mgl64.Vec3{
			math.Min(t.A[0], math.Min(t.B[0], t.C[0])),
			math.Min(t.A[1], math.Min(t.B[1], t.C[1])),
			math.Min(t.A[2], math.Min(t.B[2], t.C[2])),
		},
		Max: mgl64.Vec3{
			math.Max(t.A[0], math.Max(t.B[0], t.C[0])),
			math.Max(t.A[1], math.Max(t.B[1], t.C[1])),
			math.Max(t.A[2], math.Max(t.B[2], t.C[2])),
		},
	}
}

// Intersect runs a double-sided Möller–Trumbore test and returns the ray
// parameter t of the hit. Hits at or behind the origin are rejected.
func (t *Triangle) Intersect(origin, dir mgl64.Vec3) (float64, bool) {
	const eps = 1e-12

	e1 := t.B.Sub(t.A)
	e2 := t.C.Sub(t.A)
	p := dir.Cross(e2)
	det := e1.Dot(p)
	if det > -eps && det < eps {
		return 0, false
	}
	inv := 1 / det

	s := origin.Sub(t.A)
	u := s.Dot(p) * inv
	if u < 0 || u > 1 {
		return 0, false
	}

	q := s.Cross(e1)
	v := dir.Dot(q) * inv
	if v < 0 || u+v > 1 {
		return 0, false
	}

	dist := e2.Dot(q) * inv
	if dist <= 0 {
		return 0, false
	}
	return dist, true
}

// FiniteVec reports whether no component is NaN or infinite.
func FiniteVec(v mgl64.Vec3) bool {
	for _, c := range v {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return false
		}
	}
	return true
}
