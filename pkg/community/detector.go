// Package community partitions the note graph into topical communities via
// greedy modularity optimization (a Leiden-style local-moving phase followed
// by a connectivity repair pass).
//
// The output is an ephemeral mapping from every node to the representative
// "hub" of its community, used purely for deterministic color assignment. It
// is recomputed in full on every structural change and never persisted.
package community

import (
	"math/rand"
	"sort"
)

// Config tunes the local-moving phase.
type Config struct {
	// Gamma is the modularity resolution parameter.
	Gamma float64 `yaml:"gamma"`
	// MaxPasses bounds the number of full local-moving sweeps.
	MaxPasses int `yaml:"max_passes"`
	// Epsilon is the margin a move must beat to be taken, preventing
	// oscillation between equal-gain communities.
	Epsilon float64 `yaml:"epsilon"`
}

// DefaultConfig returns the standard detection parameters.
func DefaultConfig() Config {
	return Config{
		Gamma:     1.0,
		MaxPasses: 20,
		Epsilon:   1e-7,
	}
}

// Detector runs modularity-based community detection over graph topology.
// Physics and edge strengths are deliberately ignored: detection depends on
// the unweighted connection structure only.
type Detector struct {
	cfg Config
}

// New creates a detector, filling zero config fields with defaults.
func New(cfg Config) *Detector {
	def := DefaultConfig()
	if cfg.Gamma <= 0 {
		cfg.Gamma = def.Gamma
	}
	if cfg.MaxPasses <= 0 {
		cfg.MaxPasses = def.MaxPasses
	}
	if cfg.Epsilon <= 0 {
		cfg.Epsilon = def.Epsilon
	}
	return &Detector{cfg: cfg}
}

// Detect partitions the given topology and maps every node to the hub of its
// community. Edges are unweighted (weight 1 per connection); self-loops and
// edges touching unknown nodes are ignored.
//
// The node visiting order is shuffled with the given seed, so repeated runs
// on an unchanged graph with the same seed produce an identical hub map. A
// node with no edges is its own singleton community (itself as hub).
func (d *Detector) Detect(nodeIDs []string, edges [][2]string, seed int64) map[string]string {
	n := len(nodeIDs)
	result := make(map[string]string, n)
	if n == 0 {
		return result
	}

	// Stable index assignment: sorted node order, independent of input order.
	ids := make([]string, n)
	copy(ids, nodeIDs)
	sort.Strings(ids)
	index := make(map[string]int, n)
	for i, id := range ids {
		index[id] = i
	}

	// Adjacency with weight 1 per connection.
	adj := make([]map[int]float64, n)
	for i := range adj {
		adj[i] = make(map[int]float64)
	}
	var totalWeight float64 // m: one per edge
	for _, e := range edges {
		a, okA := index[e[0]]
		b, okB := index[e[1]]
		if !okA || !okB || a == b {
			continue
		}
		if _, dup := adj[a][b]; dup {
			continue
		}
		adj[a][b] = 1
		adj[b][a] = 1
		totalWeight++
	}

	// k_i: total incident weight per node.
	degree := make([]float64, n)
	for i := range adj {
		for _, w := range adj[i] {
			degree[i] += w
		}
	}

	// Every node starts in its own singleton community.
	comm := make([]int, n)
	commTotal := make([]float64, n) // Σ_c: sum of k_i over members
	for i := range comm {
		comm[i] = i
		commTotal[i] = degree[i]
	}

	if totalWeight > 0 {
		d.localMove(ids, adj, degree, comm, commTotal, totalWeight, seed)
	}

	// Repair pass: a community can be internally disconnected after moves.
	// Split each community into connected components and pick a hub per
	// component: highest incident weight, ties broken by smallest id.
	assignHubs(ids, adj, degree, comm, result)
	return result
}

// localMove greedily reassigns nodes to the neighboring community with the
// strictly best modularity gain until a full pass makes no move.
func (d *Detector) localMove(ids []string, adj []map[int]float64, degree []float64, comm []int, commTotal []float64, m float64, seed int64) {
	n := len(ids)
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	rng := rand.New(rand.NewSource(seed))

	for pass := 0; pass < d.cfg.MaxPasses; pass++ {
		rng.Shuffle(n, func(i, j int) { order[i], order[j] = order[j], order[i] })

		moved := false
		for _, node := range order {
			current := comm[node]

			// Weight from this node into each neighboring community.
			kIn := map[int]float64{current: 0}
			for nb, w := range adj[node] {
				kIn[comm[nb]] += w
			}

			// gain(c) = k_i_in(c) − γ·k_i·Σ_c / (2m), with the node's own
			// weight excluded from its current community's Σ.
			gain := func(c int) float64 {
				total := commTotal[c]
				if c == current {
					total -= degree[node]
				}
				return kIn[c] - d.cfg.Gamma*degree[node]*total/(2*m)
			}

			// Deterministic candidate order keeps equal-gain choices stable.
			candidates := make([]int, 0, len(kIn))
			for c := range kIn {
				candidates = append(candidates, c)
			}
			sort.Ints(candidates)

			best, bestGain := current, gain(current)
			for _, c := range candidates {
				if c == current {
					continue
				}
				if g := gain(c); g > bestGain+d.cfg.Epsilon {
					best, bestGain = c, g
				}
			}

			if best != current {
				commTotal[current] -= degree[node]
				commTotal[best] += degree[node]
				comm[node] = best
				moved = true
			}
		}
		if !moved {
			break
		}
	}
}

// assignHubs runs connected-component analysis restricted to intra-community
// edges and maps each member to its component's hub.
func assignHubs(ids []string, adj []map[int]float64, degree []float64, comm []int, result map[string]string) {
	n := len(ids)
	seen := make([]bool, n)

	for start := 0; start < n; start++ {
		if seen[start] {
			continue
		}
		// BFS within the community of 'start'.
		component := []int{start}
		seen[start] = true
		for head := 0; head < len(component); head++ {
			node := component[head]
			// Deterministic neighbor order.
			nbs := make([]int, 0, len(adj[node]))
			for nb := range adj[node] {
				nbs = append(nbs, nb)
			}
			sort.Ints(nbs)
			for _, nb := range nbs {
				if !seen[nb] && comm[nb] == comm[start] {
					seen[nb] = true
					component = append(component, nb)
				}
			}
		}

		hub := component[0]
		for _, node := range component[1:] {
			if degree[node] > degree[hub] || (degree[node] == degree[hub] && ids[node] < ids[hub]) {
				hub = node
			}
		}
		for _, node := range component {
			result[ids[node]] = ids[hub]
		}
	}
}
