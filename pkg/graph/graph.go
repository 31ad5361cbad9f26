// Package graph provides the core data model for the note graph engine.
//
// It implements an in-memory arena of nodes keyed by note ID, with undirected
// weighted edges between them. The arena is thread-safe: a read-write mutex
// allows concurrent readers (rendering snapshots) while serializing all
// structural mutation and simulation writes.
package graph

import (
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tidwall/btree"
)

// MinStrength is the lower bound for an edge's strength. Strength is
// unbounded above in practice but never drops below this floor.
const MinStrength = 0.2

// InitialStrength is the strength assigned to a freshly created edge.
const InitialStrength = 1.0

// spawnSpread bounds the random initial position of a new node so the
// simulator is never perfectly static on an empty layout.
const spawnSpread = 300.0

// Vec2 is a 2-D vector used for node positions and velocities.
type Vec2 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Node is one note represented as a point in the 2-D layout graph.
type Node struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Pos         Vec2      `json:"pos"`
	Vel         Vec2      `json:"vel"`
	Radius      float64   `json:"radius"`
	Weight      float64   `json:"weight"`
	LastVisited time.Time `json:"last_visited"`
	LastUpdated time.Time `json:"last_updated"`

	// Archived nodes are kept out of similarity ranking and clustering.
	Archived bool `json:"archived"`

	// Pinned marks a node currently held by the user; the simulator must
	// not apply forces or integration to it.
	Pinned bool `json:"pinned"`

	// Ephemeral is cleared once a note has been deliberately organized
	// (e.g. placed by the cluster planner).
	Ephemeral bool `json:"ephemeral"`
}

// Edge is a weighted, logically undirected connection between two notes.
// At most one edge exists per unordered {Source, Target} pair.
type Edge struct {
	ID       string  `json:"id"`
	Source   string  `json:"source"`
	Target   string  `json:"target"`
	Strength float64 `json:"strength"`
	Reason   string  `json:"reason"`
}

// Graph is the thread-safe arena holding the working set of one user's notes.
//
// Nodes live in an ordered map so that iteration order is deterministic,
// which keeps community detection and snapshots reproducible.
type Graph struct {
	mu    sync.RWMutex
	nodes btree.Map[string, *Node]
	edges map[string]*Edge            // pair key -> edge
	adj   map[string]map[string]*Edge // node id -> other id -> edge
	rng   *rand.Rand
}

// New creates an empty graph with time-seeded randomness for node spawning.
func New() *Graph {
	return NewSeeded(time.Now().UnixNano())
}

// NewSeeded creates an empty graph with deterministic spawn positions.
// Intended for tests that need reproducible layouts.
func NewSeeded(seed int64) *Graph {
	return &Graph{
		edges: make(map[string]*Edge),
		adj:   make(map[string]map[string]*Edge),
		rng:   rand.New(rand.NewSource(seed)),
	}
}

// pairKey builds the canonical key for an unordered node pair.
func pairKey(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return a + "\x00" + b
}

// AddNode creates a node for a note, giving it a random initial position and
// a small random velocity. If the node already exists it is returned as-is.
func (g *Graph) AddNode(id, title string) *Node {
	g.mu.Lock()
	defer g.mu.Unlock()

	if n, ok := g.nodes.Get(id); ok {
		return n
	}

	now := time.Now()
	n := &Node{
		ID:    id,
		Title: title,
		Pos: Vec2{
			X: (g.rng.Float64()*2 - 1) * spawnSpread,
			Y: (g.rng.Float64()*2 - 1) * spawnSpread,
		},
		Vel: Vec2{
			X: g.rng.Float64()*2 - 1,
			Y: g.rng.Float64()*2 - 1,
		},
		Radius:      10,
		Weight:      1,
		LastVisited: now,
		LastUpdated: now,
		Ephemeral:   true,
	}
	g.nodes.Set(id, n)
	g.adj[id] = make(map[string]*Edge)
	return n
}

// RemoveNode deletes a node and cascades removal of all incident edges.
// Removing an unknown node is a no-op.
func (g *Graph) RemoveNode(id string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.nodes.Get(id); !ok {
		return
	}
	for other := range g.adj[id] {
		delete(g.edges, pairKey(id, other))
		delete(g.adj[other], id)
	}
	delete(g.adj, id)
	g.nodes.Delete(id)
}

// Node returns a copy of the node with the given id.
func (g *Graph) Node(id string) (Node, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	n, ok := g.nodes.Get(id)
	if !ok {
		return Node{}, false
	}
	return *n, true
}

// Has reports whether a node exists.
func (g *Graph) Has(id string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	_, ok := g.nodes.Get(id)
	return ok
}

// Len returns the number of nodes.
func (g *Graph) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.nodes.Len()
}

// Link creates an edge between two notes or reinforces the existing one.
//
// A repeated link request never duplicates the edge: if one already exists
// for the unordered pair, its strength is incremented by 'increment' and the
// existing edge is returned with created=false. Otherwise a new edge with
// InitialStrength is created, carrying the provided provenance reason.
func (g *Graph) Link(source, target, reason string, increment float64) (Edge, bool, error) {
	if source == target {
		return Edge{}, false, fmt.Errorf("cannot link note %q to itself", source)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.nodes.Get(source); !ok {
		return Edge{}, false, fmt.Errorf("link source not found: %s", source)
	}
	if _, ok := g.nodes.Get(target); !ok {
		return Edge{}, false, fmt.Errorf("link target not found: %s", target)
	}

	key := pairKey(source, target)
	if e, ok := g.edges[key]; ok {
		e.Strength += increment
		if e.Strength < MinStrength {
			e.Strength = MinStrength
		}
		return *e, false, nil
	}

	e := &Edge{
		ID:       uuid.NewString(),
		Source:   source,
		Target:   target,
		Strength: InitialStrength,
		Reason:   reason,
	}
	g.edges[key] = e
	g.adj[source][target] = e
	g.adj[target][source] = e
	return *e, true, nil
}

// Unlink removes the edge between two notes, if any.
func (g *Graph) Unlink(a, b string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	key := pairKey(a, b)
	if _, ok := g.edges[key]; !ok {
		return
	}
	delete(g.edges, key)
	delete(g.adj[a], b)
	delete(g.adj[b], a)
}

// EdgeBetween returns the edge for an unordered pair, if present.
func (g *Graph) EdgeBetween(a, b string) (Edge, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	e, ok := g.edges[pairKey(a, b)]
	if !ok {
		return Edge{}, false
	}
	return *e, true
}

// Degree returns the number of edges incident to a node.
func (g *Graph) Degree(id string) int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.adj[id])
}

// Nodes returns a snapshot copy of all nodes in ID order.
func (g *Graph) Nodes() []Node {
	g.mu.RLock()
	defer g.mu.RUnlock()

	out := make([]Node, 0, g.nodes.Len())
	g.nodes.Scan(func(_ string, n *Node) bool {
		out = append(out, *n)
		return true
	})
	return out
}

// Edges returns a snapshot copy of all edges.
func (g *Graph) Edges() []Edge {
	g.mu.RLock()
	defer g.mu.RUnlock()

	out := make([]Edge, 0, len(g.edges))
	g.nodes.Scan(func(id string, _ *Node) bool {
		for other, e := range g.adj[id] {
			if id < other { // emit each undirected edge once
				out = append(out, *e)
			}
		}
		return true
	})
	return out
}

// Update runs fn with exclusive access to the live node and edge sets.
//
// This is the mutation entry point for the layout simulator: one call is one
// tick boundary, so external readers never observe a half-applied tick.
// Edges whose endpoints are missing are not passed to fn.
func (g *Graph) Update(fn func(nodes []*Node, edges []*Edge)) {
	g.mu.Lock()
	defer g.mu.Unlock()

	nodes := make([]*Node, 0, g.nodes.Len())
	g.nodes.Scan(func(_ string, n *Node) bool {
		nodes = append(nodes, n)
		return true
	})

	edges := make([]*Edge, 0, len(g.edges))
	for _, e := range g.edges {
		if _, ok := g.nodes.Get(e.Source); !ok {
			continue
		}
		if _, ok := g.nodes.Get(e.Target); !ok {
			continue
		}
		edges = append(edges, e)
	}
	fn(nodes, edges)
}

// Mutate runs fn against the live node, holding the write lock. It is used
// for atomic single-node updates (drag, visit, archive) that must not
// interleave with a tick.
func (g *Graph) Mutate(id string, fn func(n *Node)) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	n, ok := g.nodes.Get(id)
	if !ok {
		return false
	}
	fn(n)
	return true
}

// PruneDangling drops edges referencing nodes that no longer exist. Such
// edges can only appear through external restores; they are a data-integrity
// warning, not a crash.
func (g *Graph) PruneDangling(logger *slog.Logger) int {
	g.mu.Lock()
	defer g.mu.Unlock()

	dropped := 0
	for key, e := range g.edges {
		_, srcOK := g.nodes.Get(e.Source)
		_, dstOK := g.nodes.Get(e.Target)
		if srcOK && dstOK {
			continue
		}
		if logger != nil {
			logger.Warn("dropping dangling edge", "edge", e.ID, "source", e.Source, "target", e.Target)
		}
		delete(g.edges, key)
		if srcOK {
			delete(g.adj[e.Source], e.Target)
		}
		if dstOK {
			delete(g.adj[e.Target], e.Source)
		}
		dropped++
	}
	return dropped
}

// Restore inserts a node record as-is (used when loading persisted state).
func (g *Graph) Restore(n Node) {
	g.mu.Lock()
	defer g.mu.Unlock()

	cp := n
	g.nodes.Set(n.ID, &cp)
	if g.adj[n.ID] == nil {
		g.adj[n.ID] = make(map[string]*Edge)
	}
}

// RestoreEdge inserts an edge record as-is, clamping strength to the floor.
// Edges referencing unknown nodes are rejected.
func (g *Graph) RestoreEdge(e Edge) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.nodes.Get(e.Source); !ok {
		return fmt.Errorf("edge %s references missing node %s", e.ID, e.Source)
	}
	if _, ok := g.nodes.Get(e.Target); !ok {
		return fmt.Errorf("edge %s references missing node %s", e.ID, e.Target)
	}
	if e.Strength < MinStrength {
		e.Strength = MinStrength
	}
	cp := e
	g.edges[pairKey(e.Source, e.Target)] = &cp
	g.adj[e.Source][e.Target] = &cp
	g.adj[e.Target][e.Source] = &cp
	return nil
}
