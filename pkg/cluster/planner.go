// Package cluster groups notes by embedding similarity and assigns them
// non-overlapping screen positions.
//
// Unlike the continuous layout simulation, planning is a one-shot,
// non-authoritative operation: it produces a preview grouping, and only
// writes positions back when the caller confirms (preview off).
package cluster

import (
	"fmt"
	"math"
	"sort"

	"github.com/marlowhq/notegraph/pkg/graph"
	"github.com/marlowhq/notegraph/pkg/vectorstore"
)

const (
	// MinEligible is the smallest corpus the planner will attempt to
	// organize; anything less is reported as insufficient data.
	MinEligible = 3
	// MinTextLen is the minimum plain-text length for a note to take part
	// in clustering.
	MinTextLen = 20

	minClusters     = 2
	maxClusters     = 5
	maxCircleRadius = 200.0
	radiusPerMember = 35.0
)

// palette supplies one deterministic color per cluster index, cycling when
// there are more clusters than entries.
var palette = []string{
	"#2DB682", "#0171E3", "#E07C3A", "#9B59B6", "#E74C3C",
}

// InsufficientError reports that too few notes were eligible for clustering.
// It is a recoverable, expected condition — not a failure.
type InsufficientError struct {
	Eligible int
}

func (e *InsufficientError) Error() string {
	return fmt.Sprintf("need at least %d notes with enough content to organize, have %d", MinEligible, e.Eligible)
}

// Cluster is one group in a plan result.
type Cluster struct {
	ID      int      `json:"id"`
	Name    string   `json:"name"`
	Notes   []string `json:"notes"`
	CenterX float64  `json:"center_x"`
	CenterY float64  `json:"center_y"`
	Color   string   `json:"color"`
}

// Stats summarizes a planning run.
type Stats struct {
	Eligible int  `json:"eligible"`
	Clusters int  `json:"clusters"`
	Preview  bool `json:"preview"`
}

// Result is a one-shot, non-authoritative grouping of notes.
type Result struct {
	Clusters []Cluster `json:"clusters"`
	Stats    Stats     `json:"stats"`
}

// Planner groups notes by embedding similarity via k-means.
type Planner struct {
	g       *graph.Graph
	vectors *vectorstore.Store
	textLen func(id string) int
}

// New creates a planner. textLen returns the current plain-text length of a
// note (0 for unknown ids).
func New(g *graph.Graph, vectors *vectorstore.Store, textLen func(id string) int) *Planner {
	return &Planner{g: g, vectors: vectors, textLen: textLen}
}

// ClusterCount returns the number of clusters used for n eligible notes:
// clamp(floor(n/2), 2, 5).
func ClusterCount(n int) int {
	k := n / 2
	if k < minClusters {
		k = minClusters
	}
	if k > maxClusters {
		k = maxClusters
	}
	return k
}

// Plan groups all eligible notes (stored embedding, text longer than
// MinTextLen, not archived) into clusters and computes each cluster's
// screen-space centroid from its members' current positions.
//
// In preview mode the graph is left untouched. Otherwise members are
// re-laid-out on a circle around their cluster centroid and marked as
// organized (no longer ephemeral).
//
// Fewer than MinEligible eligible notes yields an *InsufficientError with an
// empty cluster list.
func (p *Planner) Plan(preview bool, seed int64) (*Result, error) {
	ids := p.eligible()
	if len(ids) < MinEligible {
		return &Result{Stats: Stats{Eligible: len(ids), Preview: preview}},
			&InsufficientError{Eligible: len(ids)}
	}

	vectors := make([][]float64, len(ids))
	for i, id := range ids {
		emb, _ := p.vectors.Get(id)
		v := make([]float64, len(emb))
		for j, f := range emb {
			v[j] = float64(f)
		}
		vectors[i] = v
	}

	k := ClusterCount(len(ids))
	assign := kmeans(vectors, k, seed)

	clusters := make([]Cluster, k)
	for c := range clusters {
		clusters[c] = Cluster{ID: c, Color: palette[c%len(palette)]}
	}
	for i, c := range assign {
		clusters[c].Notes = append(clusters[c].Notes, ids[i])
	}

	for c := range clusters {
		p.placeCluster(&clusters[c], preview)
	}

	return &Result{
		Clusters: clusters,
		Stats:    Stats{Eligible: len(ids), Clusters: k, Preview: preview},
	}, nil
}

// placeCluster computes the screen-space centroid of a cluster and, when not
// previewing, re-lays its members out on a circle around it.
func (p *Planner) placeCluster(c *Cluster, preview bool) {
	if len(c.Notes) == 0 {
		return
	}

	var cx, cy float64
	closest, closestDist := "", math.Inf(1)
	for _, id := range c.Notes {
		n, ok := p.g.Node(id)
		if !ok {
			continue
		}
		cx += n.Pos.X
		cy += n.Pos.Y
	}
	cx /= float64(len(c.Notes))
	cy /= float64(len(c.Notes))
	c.CenterX, c.CenterY = cx, cy

	// Name the cluster after the member nearest its screen centroid.
	for _, id := range c.Notes {
		n, ok := p.g.Node(id)
		if !ok {
			continue
		}
		if d := math.Hypot(n.Pos.X-cx, n.Pos.Y-cy); d < closestDist {
			closest, closestDist = n.Title, d
		}
	}
	if closest == "" {
		closest = fmt.Sprintf("Group %d", c.ID+1)
	}
	c.Name = closest

	if preview {
		return
	}

	radius := math.Min(maxCircleRadius, float64(len(c.Notes))*radiusPerMember)
	for i, id := range c.Notes {
		angle := 2 * math.Pi * float64(i) / float64(len(c.Notes))
		x := cx + radius*math.Cos(angle)
		y := cy + radius*math.Sin(angle)
		p.g.Mutate(id, func(n *graph.Node) {
			n.Pos = graph.Vec2{X: x, Y: y}
			n.Vel = graph.Vec2{}
			n.Ephemeral = false // being organized makes a note stick
		})
	}
}

// eligible returns sorted ids of notes that can participate in clustering.
func (p *Planner) eligible() []string {
	var out []string
	for _, n := range p.g.Nodes() {
		if n.Archived {
			continue
		}
		if !p.vectors.Has(n.ID) {
			continue
		}
		if p.textLen(n.ID) <= MinTextLen {
			continue
		}
		out = append(out, n.ID)
	}
	sort.Strings(out)
	return out
}
