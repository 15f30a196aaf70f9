package collide

import (
	"github.com/go-gl/mathgl/mgl64"
	"github.com/pkg/errors"

	"github.com/gekko3d/collide/rt/core"
)

// SceneNode is one node of a static scene graph. Nodes without a Mesh only
// contribute their transform to their children.
type SceneNode struct {
	ID     string
	Parent string
	Local  core.Transform
	Mesh   *MeshInput
}

// FlattenHierarchy resolves every node's world matrix through its parent
// chain and returns the meshes with World set, in node order. A zero
// Rotation or Scale in Local is read as identity. Mesh.World is replaced,
// not combined. Unknown parents, duplicate IDs and cycles are errors.
func FlattenHierarchy(nodes []SceneNode) ([]MeshInput, error) {
	byID := make(map[string]int, len(nodes))
	for i, n := range nodes {
		if n.ID == "" {
			return nil, errors.Errorf("scene node %d has no ID", i)
		}
		if _, dup := byID[n.ID]; dup {
			return nil, errors.Errorf("duplicate scene node %q", n.ID)
		}
		byID[n.ID] = i
	}

	const (
		unvisited = iota
		visiting
		done
	)
	state := make([]uint8, len(nodes))
	world := make([]mgl64.Mat4, len(nodes))

	var resolve func(i int) error
	resolve = func(i int) error {
		switch state[i] {
		case done:
			return nil
		case visiting:
			return errors.Errorf("scene node %q is its own ancestor", nodes[i].ID)
		}
		state[i] = visiting

		local := localMatrix(nodes[i].Local)
		if p := nodes[i].Parent; p != "" {
			pi, ok := byID[p]
			if !ok {
				return errors.Errorf("scene node %q has unknown parent %q", nodes[i].ID, p)
			}
			if err := resolve(pi); err != nil {
				return err
			}
			local = world[pi].Mul4(local)
		}
		world[i] = local
		state[i] = done
		return nil
	}

	var out []MeshInput
	for i := range nodes {
		if err := resolve(i); err != nil {
			return nil, err
		}
		if nodes[i].Mesh == nil {
			continue
		}
		m := *nodes[i].Mesh
		if m.ID == "" {
			m.ID = nodes[i].ID
		}
		m.World = world[i]
		out = append(out, m)
	}
	return out, nil
}

func localMatrix(t core.Transform) mgl64.Mat4 {
	if t.IsZero() {
		return mgl64.Ident4()
	}
	ident := core.NewTransform()
	if t.Rotation == (mgl64.Quat{}) {
		t.Rotation = ident.Rotation
	}
	if t.Scale == (mgl64.Vec3{}) {
		t.Scale = ident.Scale
	}
	return t.ObjectToWorld()
}
