package graph

import (
	"testing"
	"time"
)

func TestEdgeUniqueness(t *testing.T) {
	g := NewSeeded(1)
	g.AddNode("a", "Note A")
	g.AddNode("b", "Note B")

	e1, created, err := g.Link("a", "b", "Both mention A", 0.3)
	if err != nil {
		t.Fatalf("Link failed: %v", err)
	}
	if !created {
		t.Fatal("first link should create the edge")
	}
	if e1.Strength != 1.0 {
		t.Errorf("new edge strength = %v, want 1.0", e1.Strength)
	}

	// A repeated request must reinforce, never duplicate.
	e2, created, err := g.Link("b", "a", "Both mention A", 0.3)
	if err != nil {
		t.Fatalf("Link failed: %v", err)
	}
	if created {
		t.Error("second link created a duplicate edge")
	}
	if e2.ID != e1.ID {
		t.Errorf("reinforcement returned a different edge: %s vs %s", e2.ID, e1.ID)
	}
	if got, want := e2.Strength, 1.3; got != want {
		t.Errorf("reinforced strength = %v, want %v", got, want)
	}

	e3, _, _ := g.Link("a", "b", "Manual link", 0.5)
	if got, want := e3.Strength, 1.8; got != want {
		t.Errorf("strength after manual reinforce = %v, want %v", got, want)
	}
	if len(g.Edges()) != 1 {
		t.Errorf("edge count = %d, want 1", len(g.Edges()))
	}
}

func TestLinkRejectsSelfAndMissing(t *testing.T) {
	g := NewSeeded(1)
	g.AddNode("a", "A")

	if _, _, err := g.Link("a", "a", "", 0.3); err == nil {
		t.Error("self-link should fail")
	}
	if _, _, err := g.Link("a", "ghost", "", 0.3); err == nil {
		t.Error("link to missing node should fail")
	}
}

func TestRemoveNodeCascadesEdges(t *testing.T) {
	g := NewSeeded(1)
	g.AddNode("a", "A")
	g.AddNode("b", "B")
	g.AddNode("c", "C")
	g.Link("a", "b", "", 0.3)
	g.Link("a", "c", "", 0.3)
	g.Link("b", "c", "", 0.3)

	g.RemoveNode("a")

	if g.Has("a") {
		t.Fatal("node a still present")
	}
	edges := g.Edges()
	if len(edges) != 1 {
		t.Fatalf("edge count after cascade = %d, want 1", len(edges))
	}
	if edges[0].Source == "a" || edges[0].Target == "a" {
		t.Errorf("surviving edge still references deleted node: %+v", edges[0])
	}
	if g.Degree("b") != 1 || g.Degree("c") != 1 {
		t.Errorf("degrees after cascade = %d/%d, want 1/1", g.Degree("b"), g.Degree("c"))
	}

	// Deleting a node with zero edges must not panic or error.
	g.AddNode("lonely", "Lonely")
	g.RemoveNode("lonely")
	g.RemoveNode("lonely") // and neither should a repeat
}

func TestSpawnIsNeverStatic(t *testing.T) {
	g := NewSeeded(42)
	n := g.AddNode("a", "A")
	if n.Pos.X == 0 && n.Pos.Y == 0 && n.Vel.X == 0 && n.Vel.Y == 0 {
		t.Error("new node spawned perfectly static")
	}
	if !n.Ephemeral {
		t.Error("new node should start ephemeral")
	}
}

func TestNodeWeightDecayMonotonic(t *testing.T) {
	prev := NodeWeight(3, 0)
	for days := 1.0; days <= 60; days++ {
		w := NodeWeight(3, days)
		if w > prev {
			t.Fatalf("weight increased with staleness: %v -> %v at day %v", prev, w, days)
		}
		if w < WeightFloor {
			t.Fatalf("weight %v below floor at day %v", w, days)
		}
		prev = w
	}
	if got := NodeWeight(0, 10000); got != WeightFloor {
		t.Errorf("stale weight = %v, want floor %v", got, WeightFloor)
	}
	// Connectivity is rewarded monotonically.
	if NodeWeight(5, 1) <= NodeWeight(1, 1) {
		t.Error("more links should yield higher weight")
	}
}

func TestRecomputeWeight(t *testing.T) {
	g := NewSeeded(1)
	g.AddNode("a", "A")
	g.AddNode("b", "B")
	g.Link("a", "b", "", 0.3)

	g.Mutate("a", func(n *Node) {
		n.LastUpdated = time.Now().Add(-48 * time.Hour)
	})
	w, ok := g.RecomputeWeight("a", time.Now())
	if !ok {
		t.Fatal("node not found")
	}
	// 1 + 0.2*1 - 0.05*2 = 1.1
	if w < 1.09 || w > 1.11 {
		t.Errorf("weight = %v, want ~1.1", w)
	}
}

func TestPruneDangling(t *testing.T) {
	g := NewSeeded(1)
	g.AddNode("a", "A")
	g.AddNode("b", "B")
	g.Restore(Node{ID: "stale"})
	g.Link("a", "b", "", 0.3)
	if _, _, err := g.Link("a", "stale", "", 0.3); err != nil {
		t.Fatalf("Link failed: %v", err)
	}

	// Simulate an external restore leaving a dangling edge behind.
	g.mu.Lock()
	g.nodes.Delete("stale")
	g.mu.Unlock()

	dropped := g.PruneDangling(nil)
	if dropped != 1 {
		t.Errorf("dropped = %d, want 1", dropped)
	}
	if len(g.Edges()) != 1 {
		t.Errorf("edges after prune = %d, want 1", len(g.Edges()))
	}
}

func TestRestoreEdgeClampsStrength(t *testing.T) {
	g := NewSeeded(1)
	g.AddNode("a", "A")
	g.AddNode("b", "B")

	if err := g.RestoreEdge(Edge{ID: "e", Source: "a", Target: "b", Strength: 0.01}); err != nil {
		t.Fatalf("RestoreEdge failed: %v", err)
	}
	e, ok := g.EdgeBetween("a", "b")
	if !ok {
		t.Fatal("edge missing after restore")
	}
	if e.Strength != MinStrength {
		t.Errorf("strength = %v, want clamped to %v", e.Strength, MinStrength)
	}

	if err := g.RestoreEdge(Edge{ID: "bad", Source: "a", Target: "ghost"}); err == nil {
		t.Error("restore of dangling edge should fail")
	}
}
