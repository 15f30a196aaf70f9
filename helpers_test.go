package collide

import (
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/require"

	"github.com/gekko3d/collide/rt/bvh"
	"github.com/gekko3d/collide/rt/core"
)

// wallMesh is a vertical quad in the plane z = z facing -Z.
func wallMesh(id string, z, halfWidth float64) MeshInput {
	return MeshInput{
		ID:   id,
		Name: id,
		Vertices: core.QuadSoup(
			mgl64.Vec3{-halfWidth, -1, z},
			mgl64.Vec3{-halfWidth, 5, z},
			mgl64.Vec3{halfWidth, 5, z},
			mgl64.Vec3{halfWidth, -1, z},
		),
		Tags: TagCollidable,
	}
}

// sideWallMesh is a vertical quad in the plane x = x.
func sideWallMesh(id string, x, halfWidth float64) MeshInput {
	return MeshInput{
		ID:   id,
		Name: id,
		Vertices: core.QuadSoup(
			mgl64.Vec3{x, -1, -halfWidth},
			mgl64.Vec3{x, -1, halfWidth},
			mgl64.Vec3{x, 5, halfWidth},
			mgl64.Vec3{x, 5, -halfWidth},
		),
		Tags: TagCollidable,
	}
}

// floorMesh is a horizontal quad at height y facing +Y.
func floorMesh(id string, y, minX, maxX, minZ, maxZ float64) MeshInput {
	return MeshInput{
		ID:   id,
		Name: id,
		Vertices: core.QuadSoup(
			mgl64.Vec3{minX, y, minZ},
			mgl64.Vec3{minX, y, maxZ},
			mgl64.Vec3{maxX, y, maxZ},
			mgl64.Vec3{maxX, y, minZ},
		),
		Tags: TagGround,
	}
}

func buildTestIndices(t *testing.T, meshes ...MeshInput) *Indices {
	t.Helper()
	geo, err := ClassifyGeometry(meshes, ClassifyOptions{})
	require.NoError(t, err)

	b := bvh.NewBuilder()
	walls, _ := b.Build(geo.Walls)
	ground, _ := b.Build(geo.Ground)
	all, _ := b.Build(geo.All)
	ix := NewIndices(walls, ground, all)
	require.True(t, ix.Ready())
	return ix
}

func newTestWorld(t *testing.T, opts ...WorldOption) *World {
	t.Helper()
	opts = append([]WorldOption{WithLogger(NewTestLogger(t))}, opts...)
	w, err := NewWorld(NewConfig(), opts...)
	require.NoError(t, err)
	t.Cleanup(w.Dispose)
	return w
}
