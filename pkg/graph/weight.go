package graph

import "time"

// WeightFloor keeps a node from ever becoming fully invisible, no matter how
// stale it is.
const WeightFloor = 0.2

const (
	weightPerLink   = 0.2
	weightDecayRate = 0.05 // per day since last update
)

// NodeWeight computes a node's salience from its connectivity and staleness:
// monotonic reward for links, monotonic decay for age, floored at WeightFloor.
func NodeWeight(linkCount int, daysSinceUpdate float64) float64 {
	if daysSinceUpdate < 0 {
		daysSinceUpdate = 0
	}
	w := 1 + weightPerLink*float64(linkCount) - weightDecayRate*daysSinceUpdate
	if w < WeightFloor {
		return WeightFloor
	}
	return w
}

// RecomputeWeight refreshes a node's weight from its current edge count and
// the time since its last update. The computation is local to one node and
// has no cross-node side effects.
func (g *Graph) RecomputeWeight(id string, now time.Time) (float64, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	n, ok := g.nodes.Get(id)
	if !ok {
		return 0, false
	}
	days := now.Sub(n.LastUpdated).Hours() / 24
	n.Weight = NodeWeight(len(g.adj[id]), days)
	return n.Weight, true
}
