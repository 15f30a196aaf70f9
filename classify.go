package collide

import (
	"fmt"
	"strings"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/samber/lo"
	"go.uber.org/multierr"

	"github.com/gekko3d/collide/rt/core"
)

// MeshInput is one static mesh with its externally assigned tags.
type MeshInput struct {
	ID   string
	Name string
	// Vertices are in mesh-local space. Without Indices they form a
	// triangle soup.
	Vertices []mgl64.Vec3
	Indices  []uint32
	// World maps local space to world space. The zero matrix means identity.
	World mgl64.Mat4
	Tags  LayerTag
}

// ExclusionRule reports whether a mesh must never collide, whatever its tags.
type ExclusionRule func(m *MeshInput) bool

// ExcludeNamePrefixes matches meshes whose name starts with one of the
// prefixes, ignoring case.
func ExcludeNamePrefixes(prefixes ...string) ExclusionRule {
	lowered := lo.Map(prefixes, func(p string, _ int) string { return strings.ToLower(p) })
	return func(m *MeshInput) bool {
		name := strings.ToLower(m.Name)
		return lo.SomeBy(lowered, func(p string) bool { return strings.HasPrefix(name, p) })
	}
}

type ClassifyOptions struct {
	Exclusions []ExclusionRule
	Logger     Logger
}

// DefaultClassifyOptions excludes reference and placeholder geometry.
func DefaultClassifyOptions() ClassifyOptions {
	return ClassifyOptions{
		Exclusions: []ExclusionRule{ExcludeNamePrefixes("ref_", "placeholder", "helper_")},
	}
}

// Geometry is the classifier output: one flat world-space triangle slice
// per layer. Triangle.Mesh indexes MeshIDs.
type Geometry struct {
	Walls  []core.Triangle
	Ground []core.Triangle
	All    []core.Triangle

	MeshIDs []string
	// Excluded counts meshes dropped by tags or exclusion rules.
	Excluded int
	// Malformed counts meshes skipped because their data was invalid.
	Malformed int
}

// Layer returns the triangle slice for l.
func (g *Geometry) Layer(l Layer) []core.Triangle {
	switch l {
	case LayerWalls:
		return g.Walls
	case LayerGround:
		return g.Ground
	case LayerAll:
		return g.All
	}
	return nil
}

// ClassifyGeometry bakes every collidable mesh into world space and
// partitions its triangles into layers. Inputs are not modified. Malformed
// meshes are skipped and reported together in the returned error; the
// Geometry is always non-nil.
func ClassifyGeometry(meshes []MeshInput, opts ClassifyOptions) (*Geometry, error) {
	logger := loggerOrNop(opts.Logger)

	geo := &Geometry{MeshIDs: make([]string, len(meshes))}
	var errs error

	for i := range meshes {
		m := &meshes[i]
		geo.MeshIDs[i] = m.ID

		if !m.Tags.collidable() || excluded(m, opts.Exclusions) {
			geo.Excluded++
			continue
		}

		tris, err := meshTriangles(m, int32(i))
		if err != nil {
			geo.Malformed++
			errs = multierr.Append(errs, err)
			continue
		}

		geo.All = append(geo.All, tris...)
		if m.Tags.Has(TagGround) {
			geo.Ground = append(geo.Ground, tris...)
		} else {
			geo.Walls = append(geo.Walls, tris...)
		}
	}

	logger.Debugf("classified %d meshes: walls=%d ground=%d all=%d excluded=%d malformed=%d",
		len(meshes), len(geo.Walls), len(geo.Ground), len(geo.All), geo.Excluded, geo.Malformed)
	return geo, errs
}

func excluded(m *MeshInput, rules []ExclusionRule) bool {
	return lo.SomeBy(rules, func(rule ExclusionRule) bool { return rule != nil && rule(m) })
}

func meshTriangles(m *MeshInput, ordinal int32) ([]core.Triangle, error) {
	if len(m.Indices) == 0 && len(m.Vertices)%3 != 0 {
		return nil, &MeshError{MeshID: m.ID, Reason: fmt.Sprintf("vertex count %d is not a multiple of 3", len(m.Vertices))}
	}
	if len(m.Indices)%3 != 0 {
		return nil, &MeshError{MeshID: m.ID, Reason: fmt.Sprintf("index count %d is not a multiple of 3", len(m.Indices))}
	}
	for _, idx := range m.Indices {
		if int(idx) >= len(m.Vertices) {
			return nil, &MeshError{MeshID: m.ID, Reason: fmt.Sprintf("index %d out of range (%d vertices)", idx, len(m.Vertices))}
		}
	}

	world := m.World
	if world == (mgl64.Mat4{}) {
		world = mgl64.Ident4()
	}
	baked := make([]mgl64.Vec3, len(m.Vertices))
	for i, v := range m.Vertices {
		baked[i] = core.TransformPoint(world, v)
	}

	if len(m.Indices) == 0 {
		return core.SoupTriangles(baked, ordinal), nil
	}
	tris := make([]core.Triangle, 0, len(m.Indices)/3)
	for i := 0; i < len(m.Indices); i += 3 {
		tris = append(tris, core.NewTriangle(baked[m.Indices[i]], baked[m.Indices[i+1]], baked[m.Indices[i+2]], ordinal))
	}
	return tris, nil
}
