package bvh

import (
	"sync/atomic"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/gekko3d/collide/rt/core"
)

// maxStack bounds the traversal stack. A median split over int32 triangle
// counts is never deeper than 33 levels.
const maxStack = 64

// Hit is the closest intersection found by Raycast.
type Hit struct {
	Distance float64
	Point    mgl64.Vec3
	// Normal is the unit face normal, flipped if needed so it faces the
	// ray origin.
	Normal mgl64.Vec3
	// Triangle indexes the slice the index was built from.
	Triangle int32
	Mesh     int32
}

type tree struct {
	nodes []Node
	order []int32
	tris  []core.Triangle
	depth int
}

// Index is a read-only BVH over one triangle slice. It is safe for
// concurrent queries. Release drops the tree; queries on a released index
// report no hit.
type Index struct {
	tree atomic.Pointer[tree]
}

// Release drops the node array and the triangle reference. It returns true
// only for the call that actually released the tree.
func (ix *Index) Release() bool {
	if ix == nil {
		return false
	}
	return ix.tree.Swap(nil) != nil
}

// Released reports whether the index is nil or has been released.
func (ix *Index) Released() bool {
	return ix == nil || ix.tree.Load() == nil
}

// Len returns the number of indexed triangles.
func (ix *Index) Len() int {
	if ix == nil {
		return 0
	}
	if t := ix.tree.Load(); t != nil {
		return len(t.order)
	}
	return 0
}

func (ix *Index) Depth() int {
	if ix == nil {
		return 0
	}
	if t := ix.tree.Load(); t != nil {
		return t.depth
	}
	return 0
}

// Nodes returns the flat node array. Callers must treat it as read-only.
func (ix *Index) Nodes() []Node {
	if ix == nil {
		return nil
	}
	if t := ix.tree.Load(); t != nil {
		return t.nodes
	}
	return nil
}

// Bounds returns the root box, or false for an empty or released index.
func (ix *Index) Bounds() (core.AABB, bool) {
	nodes := ix.Nodes()
	if len(nodes) == 0 {
		return core.AABB{}, false
	}
	return nodes[0].Bounds(), true
}

// Triangle returns the triangle a Hit refers to.
func (ix *Index) Triangle(i int32) (core.Triangle, bool) {
	if ix == nil {
		return core.Triangle{}, false
	}
	t := ix.tree.Load()
	if t == nil || i < 0 || int(i) >= len(t.tris) {
		return core.Triangle{}, false
	}
	return t.tris[i], true
}

// Raycast returns the closest hit with distance in (0, maxDist]. dir must be
// normalized by the caller. Exact distance ties resolve to the lowest
// triangle index.
func (ix *Index) Raycast(origin, dir mgl64.Vec3, maxDist float64) (Hit, bool) {
	if ix == nil || !(maxDist > 0) {
		return Hit{}, false
	}
	t := ix.tree.Load()
	if t == nil || len(t.nodes) == 0 {
		return Hit{}, false
	}

	var stack [maxStack]int32
	stack[0] = 0
	sp := 1

	best := maxDist
	bestTri := int32(-1)

	for sp > 0 {
		sp--
		n := &t.nodes[stack[sp]]
		if _, ok := n.Bounds().IntersectRay(origin, dir, best); !ok {
			continue
		}

		if n.IsLeaf() {
			for _, ti := range t.order[n.LeafFirst : n.LeafFirst+n.LeafCount] {
				d, ok := t.tris[ti].Intersect(origin, dir)
				if !ok || d > best {
					continue
				}
				if d < best || bestTri < 0 || ti < bestTri {
					best = d
					bestTri = ti
				}
			}
			continue
		}

		// Push the far child first so the near one is visited next.
		tl, okl := t.nodes[n.Left].Bounds().IntersectRay(origin, dir, best)
		tr, okr := t.nodes[n.Right].Bounds().IntersectRay(origin, dir, best)
		switch {
		case okl && okr:
			near, far := n.Left, n.Right
			if tr < tl {
				near, far = far, near
			}
			stack[sp] = far
			stack[sp+1] = near
			sp += 2
		case okl:
			stack[sp] = n.Left
			sp++
		case okr:
			stack[sp] = n.Right
			sp++
		}
	}

	if bestTri < 0 {
		return Hit{}, false
	}

	return makeHit(t, bestTri, origin, dir, best), true
}

// RaycastBrute tests every indexed triangle without the tree. It exists for
// validating Raycast and follows the same distance and tie rules.
func (ix *Index) RaycastBrute(origin, dir mgl64.Vec3, maxDist float64) (Hit, bool) {
	if ix == nil || !(maxDist > 0) {
		return Hit{}, false
	}
	t := ix.tree.Load()
	if t == nil {
		return Hit{}, false
	}

	best := maxDist
	bestTri := int32(-1)
	for _, ti := range t.order {
		d, ok := t.tris[ti].Intersect(origin, dir)
		if !ok || d > best {
			continue
		}
		if d < best || bestTri < 0 || ti < bestTri {
			best = d
			bestTri = ti
		}
	}
	if bestTri < 0 {
		return Hit{}, false
	}
	return makeHit(t, bestTri, origin, dir, best), true
}

func makeHit(t *tree, ti int32, origin, dir mgl64.Vec3, dist float64) Hit {
	tri := &t.tris[ti]
	normal := tri.Normal
	if normal.Dot(dir) > 0 {
		normal = normal.Mul(-1)
	}
	return Hit{
		Distance: dist,
		Point:    origin.Add(dir.Mul(dist)),
		Normal:   normal,
		Triangle: ti,
		Mesh:     tri.Mesh,
	}
}
