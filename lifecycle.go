package collide

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/gekko3d/collide/rt/bvh"
)

// State is the lifecycle state of a World.
type State int32

const (
	StateUnbuilt State = iota
	StateBuilding
	StateReady
	StateDisposed
)

func (s State) String() string {
	switch s {
	case StateUnbuilt:
		return "unbuilt"
	case StateBuilding:
		return "building"
	case StateReady:
		return "ready"
	case StateDisposed:
		return "disposed"
	}
	return "unknown"
}

// BuildReport describes a completed build. Debug is owned by the caller.
type BuildReport struct {
	WorldID   uuid.UUID
	Layers    [layerCount]BuildStats
	Excluded  int
	Malformed int
	// MeshErrors lists malformed meshes that were skipped. It never fails
	// the build.
	MeshErrors error
	Duration   time.Duration
	Debug      *DebugHandle
}

func (r *BuildReport) Stats(l Layer) BuildStats {
	if int(l) >= layerCount {
		return BuildStats{}
	}
	return r.Layers[l]
}

// BuildOutcome is delivered by BuildAsync.
type BuildOutcome struct {
	Report *BuildReport
	Err    error
}

// World owns the collision indices of one loaded scene and moves through
// Unbuilt -> Building -> Ready -> Disposed. Queries are lock free: they
// read the published indices, which only appear once all layers are built.
type World struct {
	id       uuid.UUID
	cfg      Config
	logger   Logger
	clock    clock.Clock
	classify ClassifyOptions
	resolver *Resolver

	mu     sync.Mutex
	state  State
	gen    uint64
	cancel context.CancelFunc

	published atomic.Pointer[Indices]
}

type WorldOption func(*World)

func WithLogger(l Logger) WorldOption {
	return func(w *World) { w.logger = l }
}

func WithClock(c clock.Clock) WorldOption {
	return func(w *World) { w.clock = c }
}

func WithClassifyOptions(o ClassifyOptions) WorldOption {
	return func(w *World) { w.classify = o }
}

func NewWorld(cfg Config, opts ...WorldOption) (*World, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid collision config")
	}
	w := &World{
		id:       uuid.New(),
		cfg:      cfg,
		clock:    clock.New(),
		classify: DefaultClassifyOptions(),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.logger = loggerOrNop(w.logger)
	if w.classify.Logger == nil {
		w.classify.Logger = w.logger
	}
	w.resolver = NewResolver(cfg, w.logger)
	return w, nil
}

func (w *World) ID() uuid.UUID { return w.id }

func (w *World) Config() Config { return w.cfg }

func (w *World) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// Ready reports whether indices are published.
func (w *World) Ready() bool {
	return w.published.Load() != nil
}

// Indices returns the published indices, or false before Ready.
func (w *World) Indices() (*Indices, bool) {
	ix := w.published.Load()
	return ix, ix != nil
}

// Build classifies meshes and builds all layers. It is legal once, from
// Unbuilt. It blocks until the indices are published or the build fails.
func (w *World) Build(ctx context.Context, meshes []MeshInput) (*BuildReport, error) {
	bctx, gen, err := w.begin(ctx, "build", StateUnbuilt)
	if err != nil {
		return nil, err
	}
	return w.run(bctx, gen, meshes)
}

// BuildAsync is Build on a background goroutine. The state is Building
// when it returns; the channel receives exactly one outcome.
func (w *World) BuildAsync(ctx context.Context, meshes []MeshInput) <-chan BuildOutcome {
	out := make(chan BuildOutcome, 1)
	bctx, gen, err := w.begin(ctx, "build", StateUnbuilt)
	if err != nil {
		out <- BuildOutcome{Err: err}
		close(out)
		return out
	}
	go func() {
		defer close(out)
		report, err := w.run(bctx, gen, meshes)
		out <- BuildOutcome{Report: report, Err: err}
	}()
	return out
}

// Rebuild drops the current indices and builds from meshes. Queries block
// until the new indices are published. A build still in flight is
// abandoned.
func (w *World) Rebuild(ctx context.Context, meshes []MeshInput) (*BuildReport, error) {
	bctx, gen, err := w.begin(ctx, "rebuild", StateReady, StateBuilding)
	if err != nil {
		return nil, err
	}
	return w.run(bctx, gen, meshes)
}

// Dispose releases all indices and abandons any build in flight. Calls
// after the first do nothing.
func (w *World) Dispose() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.state == StateDisposed {
		return
	}
	prev := w.state
	w.state = StateDisposed
	w.gen++
	if w.cancel != nil {
		w.cancel()
		w.cancel = nil
	}
	w.published.Swap(nil).release()
	w.resolver.SetDebug(nil)
	w.logger.Infof("collision world %s disposed (was %s)", w.id, prev)
}

func (w *World) begin(ctx context.Context, op string, allowed ...State) (context.Context, uint64, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.state == StateDisposed {
		return nil, 0, errors.Wrapf(ErrDisposed, "%s", op)
	}
	legal := false
	for _, s := range allowed {
		if w.state == s {
			legal = true
		}
	}
	if !legal {
		return nil, 0, errors.Wrapf(ErrInvalidTransition, "%s from %s", op, w.state)
	}

	if w.cancel != nil {
		w.cancel()
	}
	w.published.Swap(nil).release()
	w.resolver.SetDebug(nil)

	w.gen++
	bctx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.state = StateBuilding
	w.logger.Debugf("collision world %s: %s started (generation %d)", w.id, op, w.gen)
	return bctx, w.gen, nil
}

func (w *World) run(ctx context.Context, gen uint64, meshes []MeshInput) (*BuildReport, error) {
	start := w.clock.Now()

	geo, meshErrs := ClassifyGeometry(meshes, w.classify)
	if meshErrs != nil {
		w.logger.Warnf("collision world %s: skipped malformed meshes: %v", w.id, meshErrs)
	}
	classified := w.clock.Now()

	ix := &Indices{}
	g, gctx := errgroup.WithContext(ctx)
	for _, l := range AllLayers() {
		l := l
		g.Go(func() error {
			b := &bvh.Builder{LeafSize: w.cfg.LeafSize, Clock: w.clock}
			index, stats, err := b.BuildContext(gctx, geo.Layer(l))
			if err != nil {
				return errors.Wrapf(err, "building %s layer", l)
			}
			ix.layers[l] = index
			ix.stats[l] = stats
			return nil
		})
	}
	buildErr := g.Wait()

	w.mu.Lock()
	defer w.mu.Unlock()

	if gen != w.gen || w.state != StateBuilding {
		ix.release()
		w.logger.Debugf("collision world %s: discarded stale build (generation %d)", w.id, gen)
		return nil, errors.Wrapf(ErrBuildAbandoned, "generation %d", gen)
	}
	w.cancel()
	w.cancel = nil

	if buildErr != nil {
		ix.release()
		w.state = StateUnbuilt
		w.logger.Errorf("collision world %s: build failed: %v", w.id, buildErr)
		return nil, buildErr
	}

	report := &BuildReport{
		WorldID:    w.id,
		Layers:     ix.stats,
		Excluded:   geo.Excluded,
		Malformed:  geo.Malformed,
		MeshErrors: meshErrs,
		Duration:   w.clock.Since(start),
	}
	debug := newDebugHandle(w.id, w.cfg.DebugRayCapacity)
	debug.indices = ix
	debug.excluded = geo.Excluded
	debug.malformed = geo.Malformed
	debug.classifyTime = classified.Sub(start)
	debug.totalTime = report.Duration
	report.Debug = debug

	w.published.Store(ix)
	w.resolver.SetDebug(debug)
	w.state = StateReady

	for _, l := range AllLayers() {
		st := ix.stats[l]
		w.logger.Infof("collision world %s: %s layer %d triangles (%d skipped, %d degenerate) in %.2f ms",
			w.id, l, st.TriangleCount, st.Skipped, st.Degenerate, st.BuildTimeMs())
	}
	return report, nil
}

// Debug returns the handle of the published build.
func (w *World) Debug() (*DebugHandle, error) {
	if w.State() == StateDisposed {
		return nil, ErrDisposed
	}
	h := w.resolver.debug.Load()
	if h == nil {
		return nil, errors.Wrapf(ErrNotReady, "world %s", w.id)
	}
	return h, nil
}

// ResolveMovement corrects one step. Before Ready every step is blocked.
func (w *World) ResolveMovement(current, velocity mgl64.Vec3, radius, height float64) MovementResult {
	ix := w.published.Load()
	if ix == nil {
		return MovementResult{Position: current, Collided: true}
	}
	return w.resolver.resolveMovement(ix, MovementQuery{
		Position: current,
		Velocity: velocity,
		Radius:   radius,
		Height:   height,
	}, false)
}

// ResolveGround snaps feet to the ground layer with the configured step
// height. Before Ready it holds the current height.
func (w *World) ResolveGround(feetPos mgl64.Vec3, currentY float64) (float64, bool) {
	ix := w.published.Load()
	if ix == nil {
		return currentY, true
	}
	return w.resolver.resolveGround(ix.Layer(LayerGround), feetPos, currentY, w.cfg.MaxStepHeight, false)
}

// Raycast queries one layer. Before Ready it reports no hit.
func (w *World) Raycast(layer Layer, origin, dir mgl64.Vec3, maxDist float64) (RayHit, bool) {
	ix := w.published.Load()
	if ix == nil {
		return RayHit{}, false
	}
	return raycast(ix, layer, origin, dir, maxDist, false)
}
