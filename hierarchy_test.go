package collide

import (
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gekko3d/collide/rt/core"
)

func TestFlattenHierarchyComposesChain(t *testing.T) {
	floor := floorMesh("", 0, -1, 1, -1, 1)
	nodes := []SceneNode{
		// Children may precede their parents.
		{ID: "tile", Parent: "room", Local: core.Transform{Position: mgl64.Vec3{0, 1, 0}}, Mesh: &floor},
		{ID: "room", Parent: "level", Local: core.Transform{
			Rotation: mgl64.QuatRotate(mgl64.DegToRad(90), mgl64.Vec3{0, 1, 0}),
			Scale:    mgl64.Vec3{2, 2, 2},
		}},
		{ID: "level", Local: core.Transform{Position: mgl64.Vec3{10, 0, 0}}},
	}

	meshes, err := FlattenHierarchy(nodes)
	require.NoError(t, err)
	require.Len(t, meshes, 1)
	assert.Equal(t, "tile", meshes[0].ID)

	// level * room * tile applied to the local origin.
	origin := core.TransformPoint(meshes[0].World, mgl64.Vec3{})
	assert.True(t, origin.ApproxEqualThreshold(mgl64.Vec3{10, 2, 0}, 1e-12), "got %v", origin)

	// Local +X is rotated to -Z and doubled.
	x := core.TransformPoint(meshes[0].World, mgl64.Vec3{1, 0, 0})
	assert.True(t, x.ApproxEqualThreshold(mgl64.Vec3{10, 2, -2}, 1e-12), "got %v", x)

	geo, err := ClassifyGeometry(meshes, ClassifyOptions{})
	require.NoError(t, err)
	require.Len(t, geo.Ground, 2)
	for _, v := range []mgl64.Vec3{geo.Ground[0].A, geo.Ground[0].B, geo.Ground[0].C} {
		assert.InDelta(t, 2.0, v.Y(), 1e-12)
	}

	// The source mesh is not modified.
	assert.Equal(t, mgl64.Mat4{}, floor.World)
}

func TestFlattenHierarchyZeroTransformIsIdentity(t *testing.T) {
	wall := wallMesh("w", 1, 1)
	meshes, err := FlattenHierarchy([]SceneNode{{ID: "n", Mesh: &wall}})
	require.NoError(t, err)
	require.Len(t, meshes, 1)
	assert.Equal(t, "w", meshes[0].ID)
	assert.Equal(t, mgl64.Ident4(), meshes[0].World)

	meshes, err = FlattenHierarchy([]SceneNode{{ID: "n", Local: core.Transform{Position: mgl64.Vec3{1, 2, 3}}, Mesh: &wall}})
	require.NoError(t, err)
	assert.Equal(t, mgl64.Translate3D(1, 2, 3), meshes[0].World)

	// An unset rotation alongside a scale still means no rotation.
	meshes, err = FlattenHierarchy([]SceneNode{{ID: "n", Local: core.Transform{Scale: mgl64.Vec3{2, 1, 1}}, Mesh: &wall}})
	require.NoError(t, err)
	assert.Equal(t, mgl64.Scale3D(2, 1, 1), meshes[0].World)
}

func TestFlattenHierarchyErrors(t *testing.T) {
	tests := []struct {
		name  string
		nodes []SceneNode
		want  string
	}{
		{"missing id", []SceneNode{{ID: ""}}, "has no ID"},
		{"duplicate", []SceneNode{{ID: "a"}, {ID: "a"}}, "duplicate scene node"},
		{"unknown parent", []SceneNode{{ID: "a", Parent: "ghost"}}, "unknown parent"},
		{"self parent", []SceneNode{{ID: "a", Parent: "a"}}, "own ancestor"},
		{"cycle", []SceneNode{{ID: "a", Parent: "b"}, {ID: "b", Parent: "c"}, {ID: "c", Parent: "a"}}, "own ancestor"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			meshes, err := FlattenHierarchy(tt.nodes)
			require.Error(t, err)
			assert.Nil(t, meshes)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
