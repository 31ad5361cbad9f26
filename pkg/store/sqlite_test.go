package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/marlowhq/notegraph/pkg/graph"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "notegraph.db"), nil)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRoundTrip(t *testing.T) {
	s := openTestStore(t)

	g := graph.NewSeeded(1)
	g.AddNode("a", "Note A")
	g.AddNode("b", "Note B")
	g.Mutate("a", func(n *graph.Node) {
		n.Pos = graph.Vec2{X: 12.5, Y: -3.25}
		n.Vel = graph.Vec2{X: 0.5, Y: -0.125}
		n.Radius = 14
		n.Weight = 1.4
		n.LastVisited = time.Unix(0, 1712345678901234567)
		n.Archived = true
		n.Ephemeral = false
	})
	g.Link("a", "b", "Both mention \"Note B\"", 0.3)

	if err := s.Save(g); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	restored := graph.NewSeeded(2)
	if err := s.Load(restored); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	a, ok := restored.Node("a")
	if !ok {
		t.Fatal("node a missing after load")
	}
	want, _ := g.Node("a")
	if a.Pos != want.Pos || a.Vel != want.Vel || a.Radius != want.Radius {
		t.Errorf("node state drifted: got %+v, want %+v", a, want)
	}
	if !a.LastVisited.Equal(want.LastVisited) {
		t.Errorf("lastVisited = %v, want %v", a.LastVisited, want.LastVisited)
	}
	if !a.Archived || a.Ephemeral {
		t.Errorf("flags lost: %+v", a)
	}

	e, ok := restored.EdgeBetween("a", "b")
	if !ok {
		t.Fatal("edge missing after load")
	}
	if e.Strength != 1.0 || e.Reason != "Both mention \"Note B\"" {
		t.Errorf("edge drifted: %+v", e)
	}
}

func TestSaveReplacesPreviousSnapshot(t *testing.T) {
	s := openTestStore(t)

	g := graph.NewSeeded(1)
	g.AddNode("a", "A")
	g.AddNode("b", "B")
	if err := s.Save(g); err != nil {
		t.Fatal(err)
	}

	g.RemoveNode("b")
	if err := s.Save(g); err != nil {
		t.Fatal(err)
	}

	restored := graph.NewSeeded(2)
	if err := s.Load(restored); err != nil {
		t.Fatal(err)
	}
	if restored.Has("b") {
		t.Error("stale node survived snapshot replacement")
	}
	if restored.Len() != 1 {
		t.Errorf("restored %d nodes, want 1", restored.Len())
	}
}

func TestLoadDropsDanglingEdges(t *testing.T) {
	s := openTestStore(t)

	g := graph.NewSeeded(1)
	g.AddNode("a", "A")
	g.AddNode("b", "B")
	g.Link("a", "b", "", 0.3)
	if err := s.Save(g); err != nil {
		t.Fatal(err)
	}

	// Corrupt the snapshot: point an edge at a node that no longer exists.
	if _, err := s.db.Exec(`INSERT INTO edges (id, source, target, strength, reason)
		VALUES ('stale', 'a', 'ghost', 1.0, '')`); err != nil {
		t.Fatal(err)
	}

	restored := graph.NewSeeded(2)
	if err := s.Load(restored); err != nil {
		t.Fatalf("Load should not fail on dangling edges: %v", err)
	}
	if len(restored.Edges()) != 1 {
		t.Errorf("restored %d edges, want 1 (dangling dropped)", len(restored.Edges()))
	}
}
