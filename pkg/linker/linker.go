// Package linker discovers and weights connections between notes.
//
// Two independent signals are combined: case-insensitive title/text overlap
// (a strong deterministic signal that always links) and embedding similarity
// (ranked nearest-neighbor suggestions). In "messy" auto mode the linker
// creates or reinforces edges itself; otherwise it only returns ranked
// suggestions for the caller to confirm.
package linker

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/marlowhq/notegraph/pkg/graph"
	"github.com/marlowhq/notegraph/pkg/vectorstore"
)

// ReasonManual is the provenance recorded on explicitly requested links.
const ReasonManual = "Manual link"

// Config holds the linker tunables. The distinct auto/manual reinforcement
// increments mirror the different call paths that feed them; they are
// configuration, not invariants.
type Config struct {
	// TopK is the number of semantic suggestions returned per query.
	TopK int `yaml:"top_k"`
	// AutoIncrement is added to an existing edge's strength when an
	// automatic signal re-discovers it.
	AutoIncrement float64 `yaml:"auto_increment"`
	// ManualIncrement is added when the user explicitly re-links a pair.
	ManualIncrement float64 `yaml:"manual_increment"`
	// MaxAutoDistance bounds how far a semantic neighbor may be and still
	// get auto-linked in messy mode. Suggestions are not bounded.
	MaxAutoDistance float64 `yaml:"max_auto_distance"`
	// MinTitleLen guards against degenerate substring matches on very
	// short titles.
	MinTitleLen int `yaml:"min_title_len"`
}

// DefaultConfig returns the standard linker tuning.
func DefaultConfig() Config {
	return Config{
		TopK:            5,
		AutoIncrement:   0.3,
		ManualIncrement: 0.5,
		MaxAutoDistance: 0.5,
		MinTitleLen:     3,
	}
}

// Suggestion is one ranked connection proposal.
type Suggestion struct {
	ID       string  `json:"id"`
	Title    string  `json:"title"`
	Reason   string  `json:"reason"`
	Distance float64 `json:"distance"`
}

// Linker proposes and creates edges between notes. Note text is owned by the
// engine; the linker reads it through the injected lookup.
type Linker struct {
	cfg     Config
	g       *graph.Graph
	vectors *vectorstore.Store
	text    func(id string) string
	logger  *slog.Logger
}

// New creates a linker. textFn returns the current plain text of a note
// (empty string for unknown ids).
func New(cfg Config, g *graph.Graph, vectors *vectorstore.Store, textFn func(id string) string, logger *slog.Logger) *Linker {
	if cfg.TopK <= 0 {
		cfg.TopK = DefaultConfig().TopK
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Linker{cfg: cfg, g: g, vectors: vectors, text: textFn, logger: logger}
}

// Suggest returns ranked connection suggestions for a note: deterministic
// title-overlap matches first (distance 0), then the top-K semantically
// nearest notes. The note itself, archived notes and notes without a stored
// embedding are excluded from the semantic ranking.
func (l *Linker) Suggest(id, text string) []Suggestion {
	var out []Suggestion
	seen := map[string]bool{id: true}

	for _, m := range l.overlapMatches(id, text) {
		out = append(out, m)
		seen[m.ID] = true
	}

	for _, nb := range l.semanticNeighbors(id) {
		if seen[nb.ID] {
			continue
		}
		title := l.titleOf(nb.ID)
		out = append(out, Suggestion{
			ID:       nb.ID,
			Title:    title,
			Reason:   fmt.Sprintf("Similar content to %q", title),
			Distance: nb.Distance,
		})
	}
	return out
}

// AutoLink runs messy mode for a note: every title-overlap match and every
// sufficiently close semantic neighbor is linked immediately, reinforcing
// the edge if it already exists. Returns the edges touched.
func (l *Linker) AutoLink(id, text string) []graph.Edge {
	var touched []graph.Edge

	for _, m := range l.overlapMatches(id, text) {
		e, created, err := l.g.Link(id, m.ID, m.Reason, l.cfg.AutoIncrement)
		if err != nil {
			l.logger.Warn("auto-link failed", "source", id, "target", m.ID, "error", err)
			continue
		}
		l.logger.Debug("auto-link", "source", id, "target", m.ID, "created", created, "strength", e.Strength)
		touched = append(touched, e)
	}

	for _, nb := range l.semanticNeighbors(id) {
		if nb.Distance > l.cfg.MaxAutoDistance {
			break // ranking is ascending, the rest are farther
		}
		if _, already := l.g.EdgeBetween(id, nb.ID); already {
			// Overlap already reinforced it this round; semantic proximity
			// is not a second reinforcement.
			if containsEdge(touched, id, nb.ID) {
				continue
			}
		}
		reason := fmt.Sprintf("Similar content to %q", l.titleOf(nb.ID))
		e, created, err := l.g.Link(id, nb.ID, reason, l.cfg.AutoIncrement)
		if err != nil {
			l.logger.Warn("auto-link failed", "source", id, "target", nb.ID, "error", err)
			continue
		}
		l.logger.Debug("auto-link", "source", id, "target", nb.ID, "created", created, "strength", e.Strength)
		touched = append(touched, e)
	}
	return touched
}

// LinkManual creates or reinforces an explicit user-requested link.
func (l *Linker) LinkManual(source, target string) (graph.Edge, error) {
	e, created, err := l.g.Link(source, target, ReasonManual, l.cfg.ManualIncrement)
	if err != nil {
		return graph.Edge{}, err
	}
	l.logger.Debug("manual link", "source", source, "target", target, "created", created, "strength", e.Strength)
	return e, nil
}

// overlapMatches finds notes whose title appears in the source text, or
// whose text mentions the source's title. Case-insensitive.
func (l *Linker) overlapMatches(id, text string) []Suggestion {
	srcTitle := strings.ToLower(l.titleOf(id))
	lowText := strings.ToLower(text)

	var out []Suggestion
	for _, n := range l.g.Nodes() {
		if n.ID == id || n.Archived {
			continue
		}
		title := strings.ToLower(n.Title)

		mentioned := len(title) >= l.cfg.MinTitleLen && strings.Contains(lowText, title)
		mentions := false
		if !mentioned && len(srcTitle) >= l.cfg.MinTitleLen {
			mentions = strings.Contains(strings.ToLower(l.text(n.ID)), srcTitle)
		}
		if !mentioned && !mentions {
			continue
		}

		subject := n.Title
		if mentions {
			subject = l.titleOf(id)
		}
		out = append(out, Suggestion{
			ID:     n.ID,
			Title:  n.Title,
			Reason: fmt.Sprintf("Both mention %q", subject),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// semanticNeighbors ranks other notes by embedding distance, ascending,
// excluding archived notes and notes no longer in the graph. Returns nil if
// the source has no stored embedding — a normal skip, not an error.
func (l *Linker) semanticNeighbors(id string) []vectorstore.Neighbor {
	return l.vectors.Nearest(id, l.cfg.TopK, func(other string) bool {
		n, ok := l.g.Node(other)
		return !ok || n.Archived
	})
}

func (l *Linker) titleOf(id string) string {
	n, ok := l.g.Node(id)
	if !ok {
		return ""
	}
	return n.Title
}

func containsEdge(edges []graph.Edge, a, b string) bool {
	for _, e := range edges {
		if (e.Source == a && e.Target == b) || (e.Source == b && e.Target == a) {
			return true
		}
	}
	return false
}
