package collide

import (
	"math"
	"sync/atomic"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/gekko3d/collide/rt/bvh"
	"github.com/gekko3d/collide/rt/core"
)

// MovementQuery is one proposed step. Position is the feet position.
type MovementQuery struct {
	Position mgl64.Vec3
	Velocity mgl64.Vec3
	Radius   float64
	Height   float64
}

type MovementResult struct {
	Position mgl64.Vec3
	Collided bool
	Sliding  bool
	// WallNormal is the surface slid along; valid when HasWallNormal.
	WallNormal    mgl64.Vec3
	HasWallNormal bool
}

var (
	up   = mgl64.Vec3{0, 1, 0}
	down = mgl64.Vec3{0, -1, 0}

	cardinalDirs = [4]mgl64.Vec3{{1, 0, 0}, {-1, 0, 0}, {0, 0, 1}, {0, 0, -1}}
)

// Resolver turns a proposed step into a corrected position with a fixed
// number of ray queries: six for movement, one for ground. It keeps no
// per-step state and is safe for concurrent use.
type Resolver struct {
	cfg    Config
	logger Logger
	debug  atomic.Pointer[DebugHandle]

	warnedUnbuilt atomic.Bool
}

func NewResolver(cfg Config, logger Logger) *Resolver {
	return &Resolver{cfg: cfg, logger: loggerOrNop(logger)}
}

// SetDebug attaches a handle that receives rays while it is recording.
// nil detaches.
func (r *Resolver) SetDebug(h *DebugHandle) {
	r.debug.Store(h)
}

func (r *Resolver) Config() Config {
	return r.cfg
}

// contact is a surface near the body. Gap is the distance between the body
// surface at the proposed position and the obstruction, negative when
// they overlap.
type contact struct {
	gap    float64
	normal mgl64.Vec3
}

// ResolveMovement corrects one step against the Walls and All layers.
// Indices that are missing, unbuilt or released block the step.
func (r *Resolver) ResolveMovement(ix *Indices, q MovementQuery) MovementResult {
	return r.resolveMovement(ix, q, true)
}

// resolveMovement only asserts on unbuilt indices when strict. A world
// disposed under a running query is not a caller error.
func (r *Resolver) resolveMovement(ix *Indices, q MovementQuery, strict bool) MovementResult {
	blocked := MovementResult{Position: q.Position, Collided: true}
	if !ix.Ready() {
		if strict {
			r.unbuilt("ResolveMovement")
		}
		return blocked
	}
	if !core.FiniteVec(q.Position) || !core.FiniteVec(q.Velocity) {
		return MovementResult{Position: q.Position}
	}
	speed := q.Velocity.Len()
	if speed <= r.cfg.MinSpeed {
		return MovementResult{Position: q.Position}
	}

	walls := ix.Layer(LayerWalls)
	all := ix.Layer(LayerAll)
	pen := r.cfg.PenetrationThreshold
	half := q.Height / 2
	dir := q.Velocity.Mul(1 / speed)
	proposed := q.Position.Add(q.Velocity)
	center := proposed.Add(mgl64.Vec3{0, half, 0})
	reach := speed + q.Radius + pen

	var contacts [6]contact
	n := 0

	start := q.Position.Add(mgl64.Vec3{0, half, 0})

	for _, d := range cardinalDirs {
		if hit, ok := r.cast(walls, LayerWalls, center, d, reach); ok {
			contacts[n] = contactAt(hit, q.Radius, start)
			n++
		}
	}

	// The velocity ray sweeps from the current center, so a step longer
	// than the wall clearance still finds the first wall it would cross.
	if hit, ok := r.cast(walls, LayerWalls, start, dir, reach); ok {
		contacts[n] = contact{gap: hit.Distance - speed - q.Radius, normal: hit.Normal}
		n++
	}

	if hit, ok := r.cast(all, LayerAll, center, up, speed+half+pen); ok {
		contacts[n] = contactAt(hit, half, start)
		n++
	}

	// Only surfaces within tolerance that oppose the motion obstruct it.
	obstructs := func(c *contact) bool {
		return c.gap <= pen && dir.Dot(c.normal) < -r.cfg.SlideFrontality
	}
	primary := -1
	for i := 0; i < n; i++ {
		c := &contacts[i]
		if !obstructs(c) {
			continue
		}
		if primary < 0 || c.gap < contacts[primary].gap {
			primary = i
		}
	}

	// A concurrent dispose may have released the trees mid-query; misses
	// from a released tree must not read as free space.
	if !ix.Ready() {
		return blocked
	}
	if primary < 0 {
		return MovementResult{Position: proposed}
	}

	wallNormal := contacts[primary].normal
	slide := clipVelocity(q.Velocity, wallNormal)
	for i := 0; i < n; i++ {
		c := &contacts[i]
		if i == primary || !obstructs(c) {
			continue
		}
		if slide.Dot(c.normal) >= -1e-12 {
			continue
		}
		clipped := clipVelocity(slide, c.normal)
		if clipped.Dot(wallNormal) < -1e-12 {
			// Two opposing surfaces: only motion along their crease survives.
			crease := wallNormal.Cross(c.normal)
			if l := crease.Len(); l > 1e-9 {
				crease = crease.Mul(1 / l)
				clipped = crease.Mul(q.Velocity.Dot(crease))
			} else {
				clipped = mgl64.Vec3{}
			}
		}
		slide = clipped
	}

	if slide.Len() <= r.cfg.SlideEpsilon {
		return blocked
	}
	return MovementResult{
		Position:      q.Position.Add(slide),
		Collided:      true,
		Sliding:       true,
		WallNormal:    wallNormal,
		HasWallNormal: true,
	}
}

// ResolveGround probes straight down from above the feet and returns the Y
// to snap to, or false when there is no ground within the step and descent
// limits. An unbuilt index holds the current height.
func (r *Resolver) ResolveGround(ground *bvh.Index, feetPos mgl64.Vec3, currentY, maxStepHeight float64) (float64, bool) {
	return r.resolveGround(ground, feetPos, currentY, maxStepHeight, true)
}

func (r *Resolver) resolveGround(ground *bvh.Index, feetPos mgl64.Vec3, currentY, maxStepHeight float64, strict bool) (float64, bool) {
	if ground.Released() {
		if strict {
			r.unbuilt("ResolveGround")
		}
		return currentY, true
	}
	if !core.FiniteVec(feetPos) || math.IsNaN(currentY) || math.IsInf(currentY, 0) {
		return 0, false
	}

	origin := feetPos.Add(mgl64.Vec3{0, r.cfg.GroundProbeHeight, 0})
	hit, ok := r.cast(ground, LayerGround, origin, down, r.cfg.GroundProbeDistance)
	if ground.Released() {
		return currentY, true
	}
	if !ok {
		return 0, false
	}

	hitY := hit.Point.Y()
	delta := hitY - currentY
	switch {
	case delta > 0 && delta <= maxStepHeight:
		return hitY, true
	case delta <= 0 && -delta <= r.cfg.DescentLimit:
		return hitY, true
	}
	return 0, false
}

func (r *Resolver) cast(ix *bvh.Index, layer Layer, origin, dir mgl64.Vec3, maxDist float64) (bvh.Hit, bool) {
	hit, ok := ix.Raycast(origin, dir, maxDist)
	if h := r.debug.Load(); h.Recording() {
		h.record(DebugRay{Origin: origin, Dir: dir, Length: maxDist, Layer: layer, Hit: ok, Distance: hit.Distance})
	}
	return hit, ok
}

func (r *Resolver) unbuilt(op string) {
	queryOnUnbuilt(op)
	if r.warnedUnbuilt.CompareAndSwap(false, true) {
		r.logger.Warnf("%s on an unbuilt index; movement is blocked until the scene is ready", op)
	}
}

// contactAt turns a hit seen from the proposed center into a contact whose
// normal faces the body's current center. A surface the step has already
// crossed is seen from behind and reads as penetrated, gap below -extent.
func contactAt(hit bvh.Hit, extent float64, body mgl64.Vec3) contact {
	if body.Sub(hit.Point).Dot(hit.Normal) < 0 {
		return contact{gap: -hit.Distance - extent, normal: hit.Normal.Mul(-1)}
	}
	return contact{gap: hit.Distance - extent, normal: hit.Normal}
}

// clipVelocity removes the component of v along the unit normal n.
func clipVelocity(v, n mgl64.Vec3) mgl64.Vec3 {
	return v.Sub(n.Mul(v.Dot(n)))
}
