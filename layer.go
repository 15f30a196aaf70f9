package collide

import "fmt"

// Layer selects one of the per-scene collision indices.
type Layer uint8

const (
	// LayerWalls holds collidable triangles that are not ground.
	LayerWalls Layer = iota
	// LayerGround holds floor-like triangles.
	LayerGround
	// LayerAll is the union of walls and ground.
	LayerAll

	layerCount = 3
)

func (l Layer) String() string {
	switch l {
	case LayerWalls:
		return "walls"
	case LayerGround:
		return "ground"
	case LayerAll:
		return "all"
	default:
		return fmt.Sprintf("Layer(%d)", uint8(l))
	}
}

// AllLayers lists every layer in index order.
func AllLayers() [layerCount]Layer {
	return [layerCount]Layer{LayerWalls, LayerGround, LayerAll}
}

// LayerTag is the externally assigned collision tagging of one mesh.
type LayerTag uint8

const (
	// TagCollidable puts a mesh in All, and in Walls unless TagGround is set.
	TagCollidable LayerTag = 1 << iota
	// TagGround marks floor-like geometry. It implies TagCollidable.
	TagGround
	// TagNoCollide excludes the mesh from every layer regardless of other tags.
	TagNoCollide
)

func (t LayerTag) Has(flag LayerTag) bool {
	return t&flag != 0
}

// collidable reports whether a mesh with these tags contributes triangles.
func (t LayerTag) collidable() bool {
	if t.Has(TagNoCollide) {
		return false
	}
	return t.Has(TagCollidable) || t.Has(TagGround)
}
