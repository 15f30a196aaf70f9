package collide

import (
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/uuid"

	"github.com/gekko3d/collide/rt/bvh"
)

// DebugRay is one ray issued by the resolver while recording is on.
type DebugRay struct {
	Origin   mgl64.Vec3
	Dir      mgl64.Vec3
	Length   float64
	Layer    Layer
	Hit      bool
	Distance float64
}

// DebugHandle exposes a built scene for inspection. Nothing in the engine
// depends on it. Recording is off until SetRecording(true); recorded rays
// go to a fixed ring so recording never allocates.
type DebugHandle struct {
	ID uuid.UUID

	indices      *Indices
	excluded     int
	malformed    int
	classifyTime time.Duration
	totalTime    time.Duration

	recording atomic.Bool
	mu        sync.Mutex
	rays      []DebugRay
	next      int
	count     int
}

func newDebugHandle(worldID uuid.UUID, capacity int) *DebugHandle {
	return &DebugHandle{
		ID:   worldID,
		rays: make([]DebugRay, capacity),
	}
}

func (h *DebugHandle) SetRecording(on bool) {
	h.recording.Store(on)
}

func (h *DebugHandle) Recording() bool {
	return h != nil && h.recording.Load()
}

func (h *DebugHandle) record(r DebugRay) {
	if !h.Recording() || len(h.rays) == 0 {
		return
	}
	h.mu.Lock()
	h.rays[h.next] = r
	h.next = (h.next + 1) % len(h.rays)
	if h.count < len(h.rays) {
		h.count++
	}
	h.mu.Unlock()
}

// Rays returns a copy of the recorded rays, oldest first.
func (h *DebugHandle) Rays() []DebugRay {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make([]DebugRay, 0, h.count)
	start := (h.next - h.count + len(h.rays)) % max(len(h.rays), 1)
	for i := 0; i < h.count; i++ {
		out = append(out, h.rays[(start+i)%len(h.rays)])
	}
	return out
}

func (h *DebugHandle) ClearRays() {
	h.mu.Lock()
	h.next = 0
	h.count = 0
	h.mu.Unlock()
}

// Index returns the index of one layer. It reports Released after the
// owning world is disposed or rebuilt.
func (h *DebugHandle) Index(l Layer) *bvh.Index {
	return h.indices.Layer(l)
}

func (h *DebugHandle) Stats(l Layer) BuildStats {
	return h.indices.Stats(l)
}

// StatsString formats build timings and counters for an overlay or a log.
func (h *DebugHandle) StatsString() string {
	var sb strings.Builder

	sb.WriteString("Timings (CPU):\n")
	writeTiming := func(name string, d time.Duration) {
		sb.WriteString(fmt.Sprintf("  %-15s: %.2f ms\n", name, float64(d.Microseconds())/1000.0))
	}
	writeTiming("classify", h.classifyTime)
	for _, l := range AllLayers() {
		writeTiming("bvh."+l.String(), h.indices.Stats(l).BuildTime)
	}
	writeTiming("total", h.totalTime)

	sb.WriteString("\nStats:\n")
	writeCount := func(name string, n int) {
		sb.WriteString(fmt.Sprintf("  %-15s: %d\n", name, n))
	}
	for _, l := range AllLayers() {
		st := h.indices.Stats(l)
		writeCount(l.String()+".tris", st.TriangleCount)
		writeCount(l.String()+".nodes", st.Nodes)
		writeCount(l.String()+".depth", st.Depth)
		if st.Skipped > 0 {
			writeCount(l.String()+".skipped", st.Skipped)
		}
		if st.Degenerate > 0 {
			writeCount(l.String()+".degenerate", st.Degenerate)
		}
	}
	writeCount("meshes.excluded", h.excluded)
	writeCount("meshes.malformed", h.malformed)
	h.mu.Lock()
	writeCount("rays.recorded", h.count)
	h.mu.Unlock()

	return sb.String()
}
