package collide

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testScene() []MeshInput {
	return []MeshInput{
		wallMesh("wall", 1, 10),
		floorMesh("floor", 0, -10, 10, -10, 10),
	}
}

// gatedClassify blocks classification of the mesh named "slow" until gate
// is closed, so a test can act while a build is in flight.
func gatedClassify() (ClassifyOptions, chan struct{}, chan struct{}) {
	gate := make(chan struct{})
	entered := make(chan struct{}, 1)
	rule := func(m *MeshInput) bool {
		if m.Name == "slow" {
			entered <- struct{}{}
			<-gate
		}
		return false
	}
	return ClassifyOptions{Exclusions: []ExclusionRule{rule}}, gate, entered
}

func slowMesh() MeshInput {
	m := wallMesh("slow", 3, 1)
	m.Name = "slow"
	return m
}

func TestWorldBuild(t *testing.T) {
	w := newTestWorld(t)
	assert.Equal(t, StateUnbuilt, w.State())
	assert.False(t, w.Ready())
	_, err := w.Debug()
	assert.ErrorIs(t, err, ErrNotReady)

	report, err := w.Build(context.Background(), testScene())
	require.NoError(t, err)
	assert.Equal(t, StateReady, w.State())
	assert.True(t, w.Ready())
	assert.Equal(t, w.ID(), report.WorldID)
	assert.Equal(t, 2, report.Stats(LayerWalls).TriangleCount)
	assert.Equal(t, 2, report.Stats(LayerGround).TriangleCount)
	assert.Equal(t, 4, report.Stats(LayerAll).TriangleCount)
	assert.Equal(t, BuildStats{}, report.Stats(Layer(7)))
	assert.NoError(t, report.MeshErrors)

	h, err := w.Debug()
	require.NoError(t, err)
	assert.Same(t, report.Debug, h)

	hit, ok := w.Raycast(LayerWalls, mgl64.Vec3{0, 1, 0}, mgl64.Vec3{0, 0, 1}, 10)
	require.True(t, ok)
	assert.InDelta(t, 1.0, hit.Distance, 1e-12)

	_, ok = w.Raycast(LayerWalls, mgl64.Vec3{0, 1, 0}, mgl64.Vec3{0, -1, 0}, 10)
	assert.False(t, ok, "floor is not in the walls layer")

	y, ok := w.ResolveGround(mgl64.Vec3{0, 0.1, 0}, 0.1)
	require.True(t, ok)
	assert.InDelta(t, 0.0, y, 1e-9)

	_, err = w.Build(context.Background(), testScene())
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.Equal(t, StateReady, w.State())
}

func TestWorldBlocksBeforeReady(t *testing.T) {
	w := newTestWorld(t)
	start := mgl64.Vec3{0, 0, 0}

	res := w.ResolveMovement(start, mgl64.Vec3{1, 0, 0}, testRadius, testHeight)
	assert.True(t, res.Collided)
	assert.Equal(t, start, res.Position)

	y, ok := w.ResolveGround(mgl64.Vec3{0, 7, 0}, 7)
	assert.True(t, ok)
	assert.Equal(t, 7.0, y)

	_, ok = w.Raycast(LayerAll, start, mgl64.Vec3{0, 0, 1}, 100)
	assert.False(t, ok)
}

func TestWorldDisposeIsIdempotent(t *testing.T) {
	logger, logs := NewObservedTestLogger(t)
	w := newTestWorld(t, WithLogger(logger))

	_, err := w.Build(context.Background(), testScene())
	require.NoError(t, err)
	ix, ok := w.Indices()
	require.True(t, ok)
	h, err := w.Debug()
	require.NoError(t, err)

	w.Dispose()
	w.Dispose()

	assert.Equal(t, StateDisposed, w.State())
	assert.Equal(t, 1, logs.FilterMessageSnippet("disposed").Len())
	assert.False(t, ix.Ready())
	assert.True(t, h.Index(LayerWalls).Released())
	assert.False(t, w.Ready())

	res := w.ResolveMovement(mgl64.Vec3{}, mgl64.Vec3{1, 0, 0}, testRadius, testHeight)
	assert.True(t, res.Collided)
	assert.Equal(t, mgl64.Vec3{}, res.Position)

	_, err = w.Build(context.Background(), testScene())
	assert.ErrorIs(t, err, ErrDisposed)
	_, err = w.Rebuild(context.Background(), testScene())
	assert.ErrorIs(t, err, ErrDisposed)
	_, err = w.Debug()
	assert.ErrorIs(t, err, ErrDisposed)

	o := <-w.BuildAsync(context.Background(), testScene())
	assert.ErrorIs(t, o.Err, ErrDisposed)
}

func TestWorldRebuild(t *testing.T) {
	w := newTestWorld(t)

	_, err := w.Rebuild(context.Background(), testScene())
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = w.Build(context.Background(), testScene())
	require.NoError(t, err)
	old, _ := w.Indices()

	report, err := w.Rebuild(context.Background(), []MeshInput{wallMesh("far", 5, 10)})
	require.NoError(t, err)
	assert.Equal(t, StateReady, w.State())
	assert.False(t, old.Ready())
	assert.Equal(t, 0, report.Stats(LayerGround).TriangleCount)

	hit, ok := w.Raycast(LayerWalls, mgl64.Vec3{0, 1, 0}, mgl64.Vec3{0, 0, 1}, 10)
	require.True(t, ok)
	assert.InDelta(t, 5.0, hit.Distance, 1e-12)
}

func TestWorldBuildCanceled(t *testing.T) {
	w := newTestWorld(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := w.Build(ctx, testScene())
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, StateUnbuilt, w.State())
	assert.False(t, w.Ready())

	_, err = w.Build(context.Background(), testScene())
	require.NoError(t, err)
	assert.True(t, w.Ready())
}

func TestWorldReportsMalformedMeshes(t *testing.T) {
	w := newTestWorld(t)
	bad := MeshInput{ID: "bad", Name: "bad", Vertices: make([]mgl64.Vec3, 4), Tags: TagCollidable}

	report, err := w.Build(context.Background(), append(testScene(), bad))
	require.NoError(t, err)
	assert.Equal(t, 1, report.Malformed)

	var meshErr *MeshError
	require.True(t, errors.As(report.MeshErrors, &meshErr))
	assert.Equal(t, "bad", meshErr.MeshID)
	assert.Equal(t, 2, report.Stats(LayerWalls).TriangleCount)
}

func TestWorldUsesClock(t *testing.T) {
	mock := clock.NewMock()
	w := newTestWorld(t, WithClock(mock))

	report, err := w.Build(context.Background(), testScene())
	require.NoError(t, err)
	assert.Equal(t, time.Duration(0), report.Duration)
	assert.Contains(t, report.Debug.StatsString(), "total          : 0.00 ms")
}

func TestWorldDisposeDuringBuild(t *testing.T) {
	opts, gate, entered := gatedClassify()
	w := newTestWorld(t, WithClassifyOptions(opts))

	out := w.BuildAsync(context.Background(), append(testScene(), slowMesh()))
	<-entered

	assert.Equal(t, StateBuilding, w.State())
	assert.False(t, w.Ready())
	res := w.ResolveMovement(mgl64.Vec3{}, mgl64.Vec3{1, 0, 0}, testRadius, testHeight)
	assert.True(t, res.Collided)

	w.Dispose()
	close(gate)

	o := <-out
	assert.ErrorIs(t, o.Err, ErrBuildAbandoned)
	assert.Nil(t, o.Report)
	assert.Equal(t, StateDisposed, w.State())
	assert.False(t, w.Ready())
}

func TestWorldRebuildAbandonsInFlightBuild(t *testing.T) {
	opts, gate, entered := gatedClassify()
	w := newTestWorld(t, WithClassifyOptions(opts))

	out := w.BuildAsync(context.Background(), append(testScene(), slowMesh()))
	<-entered

	_, err := w.Build(context.Background(), testScene())
	assert.ErrorIs(t, err, ErrInvalidTransition)

	report, err := w.Rebuild(context.Background(), []MeshInput{wallMesh("far", 5, 10)})
	require.NoError(t, err)
	assert.Equal(t, StateReady, w.State())
	close(gate)

	o := <-out
	assert.ErrorIs(t, o.Err, ErrBuildAbandoned)

	// The stale build must not replace the rebuilt indices.
	assert.Equal(t, StateReady, w.State())
	ix, ok := w.Indices()
	require.True(t, ok)
	assert.Equal(t, report.Stats(LayerAll), ix.Stats(LayerAll))
	hit, ok := w.Raycast(LayerWalls, mgl64.Vec3{0, 1, 0}, mgl64.Vec3{0, 0, 1}, 10)
	require.True(t, ok)
	assert.InDelta(t, 5.0, hit.Distance, 1e-12)
}

func TestWorldQueriesDuringDispose(t *testing.T) {
	w := newTestWorld(t)
	_, err := w.Build(context.Background(), testScene())
	require.NoError(t, err)

	start := mgl64.Vec3{0, 0, 0}
	v := mgl64.Vec3{0, 0, 0.5}
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 500; j++ {
				res := w.ResolveMovement(start, v, testRadius, testHeight)
				if res.Position.Z() > 0.6 {
					t.Errorf("moved to %v through the wall", res.Position)
					return
				}
				w.ResolveGround(start, 0)
				w.Raycast(LayerAll, mgl64.Vec3{0, 1, 0}, mgl64.Vec3{0, 0, 1}, 10)
			}
		}()
	}
	w.Dispose()
	wg.Wait()
	assert.False(t, w.Ready())
}
