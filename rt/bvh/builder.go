package bvh

import (
	"context"
	"sort"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/go-gl/mathgl/mgl64"

	"github.com/gekko3d/collide/rt/core"
)

// DefaultLeafSize is the largest number of triangles stored in one leaf.
const DefaultLeafSize = 4

// cancelCheckInterval is how many nodes are emitted between context checks.
const cancelCheckInterval = 1024

// Node is one entry of the flat node array. Interior nodes have
// LeafCount == 0 and valid Left/Right; leaves have Left == Right == -1 and
// reference order[LeafFirst : LeafFirst+LeafCount].
type Node struct {
	Min       mgl64.Vec3
	Max       mgl64.Vec3
	Left      int32
	Right     int32
	LeafFirst int32
	LeafCount int32
}

func (n *Node) IsLeaf() bool {
	return n.LeafCount > 0
}

func (n *Node) Bounds() core.AABB {
	return core.AABB{Min: n.Min, Max: n.Max}
}

// Stats describes one build.
type Stats struct {
	// TriangleCount is the length of the input slice.
	TriangleCount int
	// Indexed is the number of triangles reachable from the tree.
	Indexed int
	// Skipped counts triangles with NaN or infinite coordinates.
	Skipped int
	// Degenerate counts zero-area triangles, which are dropped.
	Degenerate int
	Nodes      int
	Leaves     int
	Depth      int
	BuildTime  time.Duration
}

func (s Stats) BuildTimeMs() float64 {
	return float64(s.BuildTime.Microseconds()) / 1000.0
}

type buildItem struct {
	Bounds   core.AABB
	Centroid mgl64.Vec3
	Index    int32
}

// Builder constructs triangle BVHs with a median split on the longest
// centroid axis. The zero value is usable.
type Builder struct {
	LeafSize int
	Clock    clock.Clock
}

func NewBuilder() *Builder {
	return &Builder{LeafSize: DefaultLeafSize, Clock: clock.New()}
}

// Build indexes tris. The returned index references tris without copying
// it, so the slice must not be modified afterwards.
func (b *Builder) Build(tris []core.Triangle) (*Index, Stats) {
	ix, stats, _ := b.BuildContext(context.Background(), tris)
	return ix, stats
}

// BuildContext is Build with cancellation. When ctx ends before the tree is
// complete, the partial tree is discarded and ctx.Err() is returned.
func (b *Builder) BuildContext(ctx context.Context, tris []core.Triangle) (*Index, Stats, error) {
	clk := b.Clock
	if clk == nil {
		clk = clock.New()
	}
	leafSize := b.LeafSize
	if leafSize <= 0 {
		leafSize = DefaultLeafSize
	}

	start := clk.Now()
	stats := Stats{TriangleCount: len(tris)}

	items := make([]buildItem, 0, len(tris))
	for i := range tris {
		t := &tris[i]
		if !t.Finite() {
			stats.Skipped++
			continue
		}
		if t.Degenerate() {
			stats.Degenerate++
			continue
		}
		bounds := t.Bounds()
		items = append(items, buildItem{
			Bounds:   bounds,
			Centroid: bounds.Center(),
			Index:    int32(i),
		})
	}

	st := &buildState{
		ctx:      ctx,
		leafSize: leafSize,
		nodes:    make([]Node, 0, 2*len(items)/leafSize+1),
		order:    make([]int32, 0, len(items)),
	}
	if len(items) > 0 {
		st.recursiveBuild(items, 1)
	}
	if st.err != nil {
		return nil, stats, st.err
	}
	if err := ctx.Err(); err != nil {
		return nil, stats, err
	}

	stats.Indexed = len(st.order)
	stats.Nodes = len(st.nodes)
	stats.Leaves = st.leaves
	stats.Depth = st.depth
	stats.BuildTime = clk.Since(start)

	ix := &Index{}
	ix.tree.Store(&tree{
		nodes: st.nodes,
		order: st.order,
		tris:  tris,
		depth: st.depth,
	})
	return ix, stats, nil
}

type buildState struct {
	ctx      context.Context
	leafSize int
	nodes    []Node
	order    []int32
	leaves   int
	depth    int
	err      error
}

func (s *buildState) recursiveBuild(items []buildItem, depth int) int32 {
	idx := int32(len(s.nodes))
	s.nodes = append(s.nodes, Node{Left: -1, Right: -1, LeafFirst: -1, LeafCount: 0})

	if idx%cancelCheckInterval == 0 {
		if err := s.ctx.Err(); err != nil {
			s.err = err
		}
	}
	if s.err != nil {
		return idx
	}
	if depth > s.depth {
		s.depth = depth
	}

	bounds := core.EmptyAABB()
	centroids := core.EmptyAABB()
	for _, it := range items {
		bounds = bounds.Union(it.Bounds)
		centroids = centroids.GrowPoint(it.Centroid)
	}
	s.nodes[idx].Min = bounds.Min
	s.nodes[idx].Max = bounds.Max

	if len(items) <= s.leafSize {
		s.nodes[idx].LeafFirst = int32(len(s.order))
		s.nodes[idx].LeafCount = int32(len(items))
		for _, it := range items {
			s.order = append(s.order, it.Index)
		}
		s.leaves++
		return idx
	}

	// Split on the longest centroid axis. Triangle index breaks ties so the
	// tree shape only depends on input order.
	axis := centroids.LongestAxis()
	sort.Slice(items, func(i, j int) bool {
		ci, cj := items[i].Centroid[axis], items[j].Centroid[axis]
		if ci != cj {
			return ci < cj
		}
		return items[i].Index < items[j].Index
	})

	mid := len(items) / 2
	left := s.recursiveBuild(items[:mid], depth+1)
	right := s.recursiveBuild(items[mid:], depth+1)
	s.nodes[idx].Left = left
	s.nodes[idx].Right = right

	return idx
}

