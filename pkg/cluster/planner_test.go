package cluster

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"testing"

	"github.com/marlowhq/notegraph/pkg/graph"
	"github.com/marlowhq/notegraph/pkg/vectorstore"
)

type fixture struct {
	g       *graph.Graph
	vectors *vectorstore.Store
	texts   map[string]string
	planner *Planner
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	vs, err := vectorstore.New(vectorstore.Euclidean, vectorstore.Float32)
	if err != nil {
		t.Fatal(err)
	}
	f := &fixture{
		g:       graph.NewSeeded(5),
		vectors: vs,
		texts:   make(map[string]string),
	}
	f.planner = New(f.g, f.vectors, func(id string) int { return len(f.texts[id]) })
	return f
}

func (f *fixture) addEligible(id string, vec []float32) {
	f.g.AddNode(id, "Note "+id)
	f.texts[id] = strings.Repeat("x", MinTextLen+10)
	f.vectors.Set(id, vec)
}

func TestClusterCountBounds(t *testing.T) {
	cases := []struct{ n, want int }{
		{3, 2}, {4, 2}, {5, 2}, {6, 3}, {8, 4}, {10, 5}, {11, 5}, {40, 5},
	}
	for _, tc := range cases {
		if got := ClusterCount(tc.n); got != tc.want {
			t.Errorf("ClusterCount(%d) = %d, want %d", tc.n, got, tc.want)
		}
	}
}

func TestPlanRefusesTooFewNotes(t *testing.T) {
	f := newFixture(t)
	f.addEligible("a", []float32{0, 0})
	f.addEligible("b", []float32{1, 0})

	res, err := f.planner.Plan(false, 1)
	var insufficient *InsufficientError
	if !errors.As(err, &insufficient) {
		t.Fatalf("err = %v, want *InsufficientError", err)
	}
	if insufficient.Eligible != 2 {
		t.Errorf("eligible = %d, want 2", insufficient.Eligible)
	}
	if insufficient.Error() == "" {
		t.Error("insufficient-data error has no message")
	}
	if len(res.Clusters) != 0 {
		t.Errorf("refused plan still returned clusters: %v", res.Clusters)
	}
}

func TestPlanElevenNotesFiveClusters(t *testing.T) {
	f := newFixture(t)
	for i := 0; i < 11; i++ {
		f.addEligible(fmt.Sprintf("n%02d", i), []float32{float32(i), float32(i % 3)})
	}

	res, err := f.planner.Plan(true, 1)
	if err != nil {
		t.Fatal(err)
	}
	if res.Stats.Clusters != 5 || len(res.Clusters) != 5 {
		t.Fatalf("clusters = %d, want 5", len(res.Clusters))
	}

	seen := make(map[string]bool)
	for _, c := range res.Clusters {
		if len(c.Notes) == 0 {
			t.Errorf("cluster %d is empty", c.ID)
		}
		if c.Color == "" {
			t.Errorf("cluster %d has no color", c.ID)
		}
		for _, id := range c.Notes {
			if seen[id] {
				t.Errorf("note %s in two clusters", id)
			}
			seen[id] = true
		}
	}
	if len(seen) != 11 {
		t.Errorf("%d notes assigned, want 11", len(seen))
	}
}

func TestPaletteCyclesDeterministically(t *testing.T) {
	f := newFixture(t)
	for i := 0; i < 12; i++ {
		f.addEligible(fmt.Sprintf("n%02d", i), []float32{float32(i), 0})
	}
	res, err := f.planner.Plan(true, 9)
	if err != nil {
		t.Fatal(err)
	}
	for _, c := range res.Clusters {
		if want := palette[c.ID%len(palette)]; c.Color != want {
			t.Errorf("cluster %d color = %s, want %s", c.ID, c.Color, want)
		}
	}
}

func TestPreviewDoesNotMoveNotes(t *testing.T) {
	f := newFixture(t)
	for i := 0; i < 6; i++ {
		f.addEligible(fmt.Sprintf("n%d", i), []float32{float32(i), 0})
	}
	before := f.g.Nodes()

	if _, err := f.planner.Plan(true, 2); err != nil {
		t.Fatal(err)
	}
	for i, n := range f.g.Nodes() {
		if n.Pos != before[i].Pos {
			t.Errorf("preview moved note %s", n.ID)
		}
		if !n.Ephemeral {
			t.Errorf("preview marked note %s organized", n.ID)
		}
	}
}

func TestConfirmedPlanArrangesCircle(t *testing.T) {
	f := newFixture(t)
	for i := 0; i < 6; i++ {
		f.addEligible(fmt.Sprintf("n%d", i), []float32{float32(i) * 0.01, 0})
	}

	res, err := f.planner.Plan(false, 2)
	if err != nil {
		t.Fatal(err)
	}
	for _, c := range res.Clusters {
		wantRadius := math.Min(200, float64(len(c.Notes))*35)
		for _, id := range c.Notes {
			n, _ := f.g.Node(id)
			d := math.Hypot(n.Pos.X-c.CenterX, n.Pos.Y-c.CenterY)
			if math.Abs(d-wantRadius) > 1e-6 {
				t.Errorf("note %s at radius %v, want %v", id, d, wantRadius)
			}
			if n.Ephemeral {
				t.Errorf("organized note %s still ephemeral", id)
			}
			if n.Vel.X != 0 || n.Vel.Y != 0 {
				t.Errorf("organized note %s kept velocity %+v", id, n.Vel)
			}
		}
		if c.Name == "" {
			t.Errorf("cluster %d has no name", c.ID)
		}
	}
}

func TestEligibilityFilters(t *testing.T) {
	f := newFixture(t)
	f.addEligible("ok1", []float32{0, 0})
	f.addEligible("ok2", []float32{1, 0})
	f.addEligible("ok3", []float32{2, 0})

	// Too short, archived, and embedding-less notes are normal skips.
	f.g.AddNode("short", "Short")
	f.texts["short"] = "tiny"
	f.vectors.Set("short", []float32{3, 0})

	f.addEligible("archived", []float32{4, 0})
	f.g.Mutate("archived", func(n *graph.Node) { n.Archived = true })

	f.g.AddNode("noemb", "NoEmbedding")
	f.texts["noemb"] = strings.Repeat("y", 50)

	got := f.planner.eligible()
	want := []string{"ok1", "ok2", "ok3"}
	if len(got) != len(want) {
		t.Fatalf("eligible = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("eligible[%d] = %s, want %s", i, got[i], want[i])
		}
	}
}
