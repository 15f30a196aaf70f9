package collide

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/gekko3d/collide/rt/bvh"
	"github.com/gekko3d/collide/rt/core"
)

// RayHit is the closest intersection of a ray with one layer.
type RayHit = bvh.Hit

// BuildStats describes the build of one layer index.
type BuildStats = bvh.Stats

// Indices holds one BVH per layer for a built scene. It is read-only once
// published and is safe for concurrent queries.
type Indices struct {
	layers [layerCount]*bvh.Index
	stats  [layerCount]BuildStats
}

// NewIndices wraps indices built elsewhere, for example with BuildBVH.
func NewIndices(walls, ground, all *bvh.Index) *Indices {
	return &Indices{layers: [layerCount]*bvh.Index{walls, ground, all}}
}

// Layer returns the index of l, or nil.
func (ix *Indices) Layer(l Layer) *bvh.Index {
	if ix == nil || int(l) >= layerCount {
		return nil
	}
	return ix.layers[l]
}

func (ix *Indices) Stats(l Layer) BuildStats {
	if ix == nil || int(l) >= layerCount {
		return BuildStats{}
	}
	return ix.stats[l]
}

// Ready reports whether every layer is built and not released.
func (ix *Indices) Ready() bool {
	if ix == nil {
		return false
	}
	for _, l := range ix.layers {
		if l.Released() {
			return false
		}
	}
	return true
}

func (ix *Indices) release() {
	if ix == nil {
		return
	}
	for _, l := range ix.layers {
		l.Release()
	}
}

// BuildBVH indexes one layer's triangles with the default builder.
func BuildBVH(tris []core.Triangle) (*bvh.Index, BuildStats) {
	return bvh.NewBuilder().Build(tris)
}

// DisposeBVH releases an index. Calling it again, or on nil, does nothing.
func DisposeBVH(ix *bvh.Index) {
	ix.Release()
}

// Raycast finds the closest hit on one layer within (0, maxDist]. dir must
// be normalized. A zero or non-finite direction, or an unknown layer, is
// not a query and reports no hit.
func Raycast(ix *Indices, layer Layer, origin, dir mgl64.Vec3, maxDist float64) (RayHit, bool) {
	return raycast(ix, layer, origin, dir, maxDist, true)
}

func raycast(ix *Indices, layer Layer, origin, dir mgl64.Vec3, maxDist float64, strict bool) (RayHit, bool) {
	if !validRay(origin, dir) || int(layer) >= layerCount {
		return RayHit{}, false
	}
	index := ix.Layer(layer)
	if index.Released() {
		if strict {
			queryOnUnbuilt("Raycast")
		}
		return RayHit{}, false
	}
	return index.Raycast(origin, dir, maxDist)
}

func validRay(origin, dir mgl64.Vec3) bool {
	if !core.FiniteVec(origin) || !core.FiniteVec(dir) {
		return false
	}
	return dir.Dot(dir) > 1e-24 && !math.IsInf(dir.Dot(dir), 0)
}
