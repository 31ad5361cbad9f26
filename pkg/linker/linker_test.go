package linker

import (
	"strings"
	"testing"

	"github.com/marlowhq/notegraph/pkg/graph"
	"github.com/marlowhq/notegraph/pkg/vectorstore"
)

type fixture struct {
	g       *graph.Graph
	vectors *vectorstore.Store
	texts   map[string]string
	linker  *Linker
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	vs, err := vectorstore.New(vectorstore.Euclidean, vectorstore.Float32)
	if err != nil {
		t.Fatal(err)
	}
	f := &fixture{
		g:       graph.NewSeeded(11),
		vectors: vs,
		texts:   make(map[string]string),
	}
	f.linker = New(DefaultConfig(), f.g, f.vectors, func(id string) string { return f.texts[id] }, nil)
	return f
}

func (f *fixture) addNote(id, title, text string, vec []float32) {
	f.g.AddNode(id, title)
	f.texts[id] = text
	if vec != nil {
		f.vectors.Set(id, vec)
	}
}

func TestMessyModeScenario(t *testing.T) {
	f := newFixture(t)
	f.addNote("A", "machine learning basics", "gradient descent, loss functions and such", []float32{0.1, 0.2})
	f.addNote("B", "intro to ML", "a gentle tour of machine learning basics for beginners", []float32{0.12, 0.21})

	// Running the linker on A must create exactly one edge A-B at 1.0.
	touched := f.linker.AutoLink("A", f.texts["A"])
	if len(touched) != 1 {
		t.Fatalf("touched %d edges, want 1", len(touched))
	}
	e, ok := f.g.EdgeBetween("A", "B")
	if !ok {
		t.Fatal("edge A-B missing")
	}
	if e.Strength != 1.0 {
		t.Errorf("new edge strength = %v, want 1.0", e.Strength)
	}
	if !strings.Contains(e.Reason, "machine learning basics") && !strings.Contains(e.Reason, "intro to ML") {
		t.Errorf("reason %q cites neither title", e.Reason)
	}

	// Re-running the same step must reinforce to 1.3, never duplicate.
	f.linker.AutoLink("A", f.texts["A"])
	if got := len(f.g.Edges()); got != 1 {
		t.Fatalf("edge count after rerun = %d, want 1", got)
	}
	e, _ = f.g.EdgeBetween("A", "B")
	if e.Strength < 1.29 || e.Strength > 1.31 {
		t.Errorf("reinforced strength = %v, want 1.3", e.Strength)
	}
}

func TestTitleOverlapBothDirections(t *testing.T) {
	f := newFixture(t)
	f.addNote("src", "Kubernetes", "notes about deploying with Helm", nil)
	f.addNote("mentioned", "Helm", "chart templating", nil)
	f.addNote("mentions", "Ops runbook", "how we run Kubernetes in production", nil)
	f.addNote("unrelated", "Sourdough", "flour, water, salt", nil)

	got := f.linker.overlapMatches("src", f.texts["src"])
	ids := make(map[string]string)
	for _, s := range got {
		ids[s.ID] = s.Reason
	}
	if _, ok := ids["mentioned"]; !ok {
		t.Error("title-in-text match missed (Helm)")
	}
	if _, ok := ids["mentions"]; !ok {
		t.Error("text-mentions-title match missed (Ops runbook)")
	}
	if _, ok := ids["unrelated"]; ok {
		t.Error("unrelated note matched")
	}
	if r := ids["mentioned"]; !strings.Contains(r, "Helm") {
		t.Errorf("reason %q should cite the mentioned title", r)
	}
}

func TestSuggestRanksAndExcludes(t *testing.T) {
	f := newFixture(t)
	f.addNote("a", "Alpha", "text of alpha", []float32{0, 0})
	f.addNote("b", "Beta", "text of beta", []float32{0.1, 0})
	f.addNote("c", "Gamma", "text of gamma", []float32{0.3, 0})
	f.addNote("d", "Delta", "text of delta", []float32{5, 5})
	f.addNote("arch", "Archived", "text", []float32{0.01, 0})
	f.g.Mutate("arch", func(n *graph.Node) { n.Archived = true })
	f.addNote("noemb", "NoEmbedding", "too short", nil)

	got := f.linker.Suggest("a", f.texts["a"])
	if len(got) == 0 {
		t.Fatal("no suggestions")
	}
	if got[0].ID != "b" {
		t.Errorf("top suggestion = %s, want b", got[0].ID)
	}
	for _, s := range got {
		if s.ID == "a" {
			t.Error("suggested the note itself")
		}
		if s.ID == "arch" {
			t.Error("suggested an archived note")
		}
		if s.ID == "noemb" {
			t.Error("suggested a note without an embedding")
		}
	}
	for i := 1; i < len(got); i++ {
		if got[i].Distance < got[i-1].Distance {
			t.Errorf("suggestions not ascending by distance: %v", got)
		}
	}
}

func TestAutoLinkRespectsDistanceBound(t *testing.T) {
	f := newFixture(t)
	f.addNote("a", "Alpha", strings.Repeat("alpha ", 10), []float32{0, 0})
	f.addNote("far", "Faraway", strings.Repeat("other ", 10), []float32{10, 10})

	touched := f.linker.AutoLink("a", f.texts["a"])
	if len(touched) != 0 {
		t.Errorf("distant note auto-linked: %v", touched)
	}
}

func TestNoEmbeddingSkipsSemanticSignal(t *testing.T) {
	f := newFixture(t)
	f.addNote("a", "Alpha", "short", nil)
	f.addNote("b", "Beta", "also short", []float32{0, 0})

	// No embedding for the source: semantic ranking silently yields nothing.
	if got := f.linker.Suggest("a", f.texts["a"]); len(got) != 0 {
		t.Errorf("suggestions without source embedding = %v, want none", got)
	}
	if touched := f.linker.AutoLink("a", f.texts["a"]); len(touched) != 0 {
		t.Errorf("auto-linked without embeddings: %v", touched)
	}
}

func TestLinkManualIncrement(t *testing.T) {
	f := newFixture(t)
	f.addNote("a", "Alpha", "", nil)
	f.addNote("b", "Beta", "", nil)

	e, err := f.linker.LinkManual("a", "b")
	if err != nil {
		t.Fatal(err)
	}
	if e.Strength != 1.0 || e.Reason != ReasonManual {
		t.Errorf("manual edge = %+v, want strength 1.0 reason %q", e, ReasonManual)
	}

	e, err = f.linker.LinkManual("a", "b")
	if err != nil {
		t.Fatal(err)
	}
	if e.Strength != 1.5 {
		t.Errorf("strength after manual reinforce = %v, want 1.5", e.Strength)
	}

	if _, err := f.linker.LinkManual("a", "ghost"); err == nil {
		t.Error("manual link to missing note should fail")
	}
}
