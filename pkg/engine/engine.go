// Package engine provides the high-level interface to the note graph engine.
//
// It owns the shared node/edge data model and coordinates the subsystems
// around it: the continuous layout simulation, community detection for
// coloring, semantic linking driven by embeddings, and on-demand cluster
// planning. The external note store remains the source of truth for note
// existence and text; the engine keeps its node set in sync through the
// Upsert/Delete/Archive operations.
//
// Basic usage:
//
//	opts := engine.DefaultOptions()
//	opts.Embedder = embeddings.NewOllamaEmbedder(url, model, 0)
//	eng, err := engine.Open(opts)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer eng.Close()
//	go eng.Run(ctx)
package engine

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/marlowhq/notegraph/pkg/cluster"
	"github.com/marlowhq/notegraph/pkg/community"
	"github.com/marlowhq/notegraph/pkg/embeddings"
	"github.com/marlowhq/notegraph/pkg/graph"
	"github.com/marlowhq/notegraph/pkg/layout"
	"github.com/marlowhq/notegraph/pkg/linker"
	"github.com/marlowhq/notegraph/pkg/metrics"
	"github.com/marlowhq/notegraph/pkg/vectorstore"
)

// Options configures the engine's behavior and dependencies.
type Options struct {
	// Embedder is the injected model handle for computing embeddings.
	// It is required: Open fails fast when it is missing instead of
	// degrading into a half-configured engine.
	Embedder embeddings.Embedder

	// Metric is the store-wide distance metric for embeddings.
	Metric vectorstore.Metric
	// Precision selects float32 or float16 embedding storage.
	Precision vectorstore.Precision

	// MinTextLen is the minimum note length for embedding; shorter notes
	// do not participate in semantic linking or clustering.
	MinTextLen int

	// AutoLink enables messy mode: newly embedded notes are linked to
	// overlapping or similar notes automatically.
	AutoLink bool

	// TickRate is the layout simulation cadence used by Run.
	TickRate time.Duration
	// CommunityInterval is how often the background detector checks for
	// topology changes.
	CommunityInterval time.Duration
	// EmbedTimeout bounds a single embedding request.
	EmbedTimeout time.Duration

	// Seed drives the community detector's visit order, the cluster
	// planner and node spawn positions. Fixed seeds give reproducible runs.
	Seed int64

	Layout    layout.Config
	Linker    linker.Config
	Community community.Config

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// DefaultOptions returns a standard configuration. The Embedder must still
// be provided by the caller.
func DefaultOptions() Options {
	return Options{
		Metric:            vectorstore.Euclidean,
		Precision:         vectorstore.Float32,
		MinTextLen:        20,
		AutoLink:          true,
		TickRate:          50 * time.Millisecond,
		CommunityInterval: 2 * time.Second,
		EmbedTimeout:      60 * time.Second,
		Seed:              time.Now().UnixNano(),
		Layout:            layout.DefaultConfig(),
		Linker:            linker.DefaultConfig(),
		Community:         community.DefaultConfig(),
	}
}

// Engine coordinates the note graph data model and its subsystems.
//
// All mutation is serialized at tick boundaries: the simulator, the linker
// and external note events each take the graph's write lock, so torn
// position or velocity reads are impossible. Reads for rendering return
// snapshot copies and may run concurrently with the next tick.
type Engine struct {
	// Graph is the underlying arena. Exported for persistence round-trips
	// (pkg/store); mutation should go through Engine methods.
	Graph *graph.Graph

	opts     Options
	logger   *slog.Logger
	vectors  *vectorstore.Store
	sim      *layout.Simulator
	linker   *linker.Linker
	detector *community.Detector
	planner  *cluster.Planner

	mu          sync.RWMutex
	texts       map[string]string
	communities map[string]string

	topologyDirty atomic.Bool
	embedQueue    chan string
	embedPending  sync.WaitGroup

	closed    chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// Open initializes the engine and starts its background workers: the
// out-of-band embedding worker and the community recompute loop. The layout
// simulation is driven separately, via Run or Tick.
func Open(opts Options) (*Engine, error) {
	if opts.Embedder == nil {
		return nil, errors.New("engine: an embedder is required")
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Metric == "" {
		opts.Metric = vectorstore.Euclidean
	}
	if opts.Precision == "" {
		opts.Precision = vectorstore.Float32
	}
	if opts.MinTextLen <= 0 {
		opts.MinTextLen = 20
	}
	if opts.EmbedTimeout <= 0 {
		opts.EmbedTimeout = 60 * time.Second
	}

	vectors, err := vectorstore.New(opts.Metric, opts.Precision)
	if err != nil {
		return nil, err
	}

	e := &Engine{
		Graph:       graph.NewSeeded(opts.Seed),
		opts:        opts,
		logger:      opts.Logger,
		vectors:     vectors,
		sim:         layout.New(opts.Layout, opts.Logger),
		detector:    community.New(opts.Community),
		texts:       make(map[string]string),
		communities: make(map[string]string),
		embedQueue:  make(chan string, 1024),
		closed:      make(chan struct{}),
	}
	e.linker = linker.New(opts.Linker, e.Graph, vectors, e.textOf, opts.Logger)
	e.planner = cluster.New(e.Graph, vectors, func(id string) int { return len(e.textOf(id)) })

	e.wg.Add(2)
	go e.embedWorker()
	go e.communityLoop()
	return e, nil
}

// Close stops the background workers. It does not stop a Run loop; cancel
// its context for that.
func (e *Engine) Close() {
	e.closeOnce.Do(func() {
		close(e.closed)
		e.wg.Wait()
	})
}

// UpsertNote syncs a note's title, text and update time into the graph,
// creating the node if needed. A text change queues an embedding refresh;
// the note's weight is recomputed immediately.
func (e *Engine) UpsertNote(id, title, text string, updatedAt time.Time) {
	e.Graph.AddNode(id, title)
	e.Graph.Mutate(id, func(n *graph.Node) {
		n.Title = title
		if !updatedAt.IsZero() {
			n.LastUpdated = updatedAt
		}
	})

	e.mu.Lock()
	changed := e.texts[id] != text
	e.texts[id] = text
	e.mu.Unlock()

	e.Graph.RecomputeWeight(id, time.Now())
	e.markDirty()

	if !changed {
		return
	}
	if len(text) < e.opts.MinTextLen {
		// Not enough content to embed; drop any stale vector so the note
		// stops participating in similarity operations.
		e.vectors.Delete(id)
		return
	}
	e.embedPending.Add(1)
	select {
	case e.embedQueue <- id:
	default:
		e.embedPending.Done()
		e.logger.Warn("embedding queue full, skipping refresh", "note", id)
	}
}

// DeleteNote removes a note, cascading removal of all incident edges.
// Deleting a note with zero edges, or an unknown note, is a no-op.
func (e *Engine) DeleteNote(id string) {
	e.Graph.RemoveNode(id)
	e.vectors.Delete(id)

	e.mu.Lock()
	delete(e.texts, id)
	e.mu.Unlock()

	e.markDirty()
}

// ArchiveNote removes an archived note from the working graph. The note
// itself lives on in the external store.
func (e *Engine) ArchiveNote(id string) {
	e.logger.Debug("archiving note", "note", id)
	e.DeleteNote(id)
}

// VisitNote records that the user opened a note, feeding recency-based
// visual weighting.
func (e *Engine) VisitNote(id string) {
	e.Graph.Mutate(id, func(n *graph.Node) {
		n.LastVisited = time.Now()
	})
}

// BeginDrag pins a node: the simulator stops applying forces to it while it
// keeps exerting forces on others.
func (e *Engine) BeginDrag(id string) {
	e.Graph.Mutate(id, func(n *graph.Node) {
		n.Pinned = true
		n.Vel = graph.Vec2{}
	})
}

// Drag sets a pinned node's position straight from the pointer. The update
// takes the graph write lock, so it lands before or after a tick, never in
// the middle of one.
func (e *Engine) Drag(id string, x, y float64) {
	e.Graph.Mutate(id, func(n *graph.Node) {
		if !n.Pinned {
			return
		}
		n.Pos = graph.Vec2{X: x, Y: y}
		n.Vel = graph.Vec2{}
	})
}

// EndDrag unpins a node, handing it back to the simulation.
func (e *Engine) EndDrag(id string) {
	e.Graph.Mutate(id, func(n *graph.Node) {
		n.Pinned = false
	})
}

// LinkManual creates or reinforces an explicit link between two notes.
func (e *Engine) LinkManual(source, target string) (graph.Edge, error) {
	edge, err := e.linker.LinkManual(source, target)
	if err != nil {
		return graph.Edge{}, err
	}
	e.markDirty()
	return edge, nil
}

// Suggestions returns ranked connection proposals for a note.
func (e *Engine) Suggestions(id string) []linker.Suggestion {
	return e.linker.Suggest(id, e.textOf(id))
}

// Cluster runs the one-shot cluster planner. With preview true the graph is
// left untouched; otherwise members are re-positioned around their cluster
// centroids.
func (e *Engine) Cluster(preview bool) (*cluster.Result, error) {
	res, err := e.planner.Plan(preview, e.opts.Seed)
	if err != nil {
		var insufficient *cluster.InsufficientError
		if errors.As(err, &insufficient) {
			metrics.ClusterRuns.WithLabelValues("insufficient").Inc()
		} else {
			metrics.ClusterRuns.WithLabelValues("error").Inc()
		}
		return res, err
	}
	metrics.ClusterRuns.WithLabelValues("ok").Inc()
	return res, nil
}

// Tick advances the layout simulation one step. Callable from any driver:
// the Run loop, a UI timer, or a test harness in a tight loop.
func (e *Engine) Tick() {
	start := time.Now()
	e.sim.Tick(e.Graph)
	metrics.TickDuration.Observe(time.Since(start).Seconds())
	metrics.Nodes.Set(float64(e.Graph.Len()))
	metrics.Edges.Set(float64(len(e.Graph.Edges())))
}

// Run drives the simulation at the configured tick rate until ctx is
// cancelled, e.g. while the graph view is visible.
func (e *Engine) Run(ctx context.Context) {
	e.sim.Run(ctx, e.Graph, e.opts.TickRate, func() {
		metrics.Nodes.Set(float64(e.Graph.Len()))
		metrics.Edges.Set(float64(len(e.Graph.Edges())))
	})
}

// Nodes returns a snapshot of all nodes for rendering or persistence.
func (e *Engine) Nodes() []graph.Node {
	return e.Graph.Nodes()
}

// Edges returns a snapshot of all edges for rendering or persistence.
func (e *Engine) Edges() []graph.Edge {
	return e.Graph.Edges()
}

// Communities returns the current node-to-hub map used for coloring. The
// map is a copy and only ever reflects a fully completed detection pass.
func (e *Engine) Communities() map[string]string {
	e.mu.RLock()
	defer e.mu.RUnlock()

	out := make(map[string]string, len(e.communities))
	for k, v := range e.communities {
		out[k] = v
	}
	return out
}

// HasEmbedding reports whether a note currently participates in
// similarity-based operations.
func (e *Engine) HasEmbedding(id string) bool {
	return e.vectors.Has(id)
}

// RefreshCommunities recomputes the community map synchronously. The
// background loop does this on its own cadence; tests and explicit callers
// can force it.
func (e *Engine) RefreshCommunities() {
	nodes := e.Graph.Nodes()
	edges := e.Graph.Edges()

	ids := make([]string, len(nodes))
	for i, n := range nodes {
		ids[i] = n.ID
	}
	pairs := make([][2]string, len(edges))
	for i, ed := range edges {
		pairs[i] = [2]string{ed.Source, ed.Target}
	}

	result := e.detector.Detect(ids, pairs, e.opts.Seed)

	// Swap in atomically so partial results are never exposed.
	e.mu.Lock()
	e.communities = result
	e.mu.Unlock()
	metrics.CommunityRuns.Inc()
}

func (e *Engine) markDirty() {
	e.topologyDirty.Store(true)
}

func (e *Engine) textOf(id string) string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.texts[id]
}

// embedWorker computes embeddings out-of-band so model latency never stalls
// node movement. Notes simply do not participate in semantic linking until
// their embedding arrives.
func (e *Engine) embedWorker() {
	defer e.wg.Done()
	for {
		select {
		case <-e.closed:
			return
		case id := <-e.embedQueue:
			e.embedOne(id)
			e.embedPending.Done()
		}
	}
}

func (e *Engine) embedOne(id string) {
	text := e.textOf(id)
	if len(text) < e.opts.MinTextLen || !e.Graph.Has(id) {
		return // note shrank or vanished while queued
	}

	ctx, cancel := context.WithTimeout(context.Background(), e.opts.EmbedTimeout)
	defer cancel()

	vec, err := e.opts.Embedder.Embed(ctx, text)
	if err != nil {
		metrics.EmbeddingsComputed.WithLabelValues("error").Inc()
		e.logger.Warn("embedding failed", "note", id, "error", err)
		return
	}
	if err := e.vectors.Set(id, vec); err != nil {
		metrics.EmbeddingsComputed.WithLabelValues("error").Inc()
		e.logger.Warn("embedding rejected", "note", id, "error", err)
		return
	}
	metrics.EmbeddingsComputed.WithLabelValues("ok").Inc()

	if e.opts.AutoLink {
		e.linker.AutoLink(id, text)
	}
	e.markDirty()
}

// communityLoop recomputes the community map whenever the topology changed
// since the last pass. Runs fully off the simulation loop.
func (e *Engine) communityLoop() {
	defer e.wg.Done()

	interval := e.opts.CommunityInterval
	if interval <= 0 {
		interval = 2 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-e.closed:
			return
		case <-ticker.C:
			if e.topologyDirty.Swap(false) {
				e.RefreshCommunities()
			}
		}
	}
}

// Flush blocks until all queued embedding work has completed. Intended for
// tests and orderly shutdown paths that need deterministic state.
func (e *Engine) Flush() {
	e.embedPending.Wait()
}
