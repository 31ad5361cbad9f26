// Package layout continuously computes a 2-D layout for the note graph via
// physical simulation: pairwise repulsion, spring forces along edges, a
// centering pull toward the origin, and velocity damping, integrated with
// explicit Euler steps.
//
// The simulation has no terminal state. It is driven at a fixed rate by a
// scheduler (Run) or synchronously (Tick) by a test harness; correctness does
// not depend on any particular driver.
package layout

import (
	"log/slog"
	"math"

	"github.com/marlowhq/notegraph/pkg/graph"
)

// Config holds the force constants of the simulation. All values are
// tunables, not invariants; the defaults produce a stable, readable layout.
type Config struct {
	// Repulsion scales the inverse-square push between every node pair.
	Repulsion float64 `yaml:"repulsion"`
	// Softening is added to the squared distance in the repulsion term,
	// avoiding the singularity at zero distance.
	Softening float64 `yaml:"softening"`
	// SpringK scales the spring force along each edge.
	SpringK float64 `yaml:"spring_k"`
	// RestLength is the distance at which an edge exerts no force.
	RestLength float64 `yaml:"rest_length"`
	// Centering is the constant proportion of each node's offset from the
	// origin applied as a restoring force, preventing unbounded drift.
	Centering float64 `yaml:"centering"`
	// Damping multiplies every velocity each tick; must be < 1 for the
	// system to approach equilibrium.
	Damping float64 `yaml:"damping"`
}

// DefaultConfig returns the standard force constants.
func DefaultConfig() Config {
	return Config{
		Repulsion:  2000,
		Softening:  100,
		SpringK:    0.01,
		RestLength: 150,
		Centering:  0.005,
		Damping:    0.9,
	}
}

// Simulator advances node positions and velocities one tick at a time.
type Simulator struct {
	cfg    Config
	logger *slog.Logger
}

// New creates a simulator. A nil logger falls back to slog.Default().
func New(cfg Config, logger *slog.Logger) *Simulator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Simulator{cfg: cfg, logger: logger}
}

// Tick advances the simulation by one unit timestep.
//
// The whole step runs inside a single graph update, so drag events and
// renders never observe a half-applied tick. A pinned node receives no
// forces, damping or integration — its position comes straight from the
// pointer — but it still participates in the forces felt by other nodes.
func (s *Simulator) Tick(g *graph.Graph) {
	g.Update(func(nodes []*graph.Node, edges []*graph.Edge) {
		s.step(nodes, edges)
	})
}

func (s *Simulator) step(nodes []*graph.Node, edges []*graph.Edge) {
	byID := make(map[string]*graph.Node, len(nodes))
	for _, n := range nodes {
		byID[n.ID] = n
	}

	// Repulsion: every unordered pair pushes apart, inverse-square with a
	// softening term so coincident nodes do not explode.
	for i := 0; i < len(nodes); i++ {
		for j := i + 1; j < len(nodes); j++ {
			a, b := nodes[i], nodes[j]
			dx := b.Pos.X - a.Pos.X
			dy := b.Pos.Y - a.Pos.Y
			d2 := dx*dx + dy*dy
			d := math.Sqrt(d2)
			if d == 0 {
				// Coincident nodes: push along a fixed axis.
				dx, dy, d = 1, 0, 1
			}
			f := s.cfg.Repulsion / (d2 + s.cfg.Softening)
			fx := dx / d * f
			fy := dy / d * f
			if !a.Pinned {
				a.Vel.X -= fx
				a.Vel.Y -= fy
			}
			if !b.Pinned {
				b.Vel.X += fx
				b.Vel.Y += fy
			}
		}
	}

	// Springs: edges pull (or push) their endpoints toward the rest length.
	for _, e := range edges {
		a, b := byID[e.Source], byID[e.Target]
		if a == nil || b == nil {
			// Defensive: Update already filters these, but a stale edge
			// must never crash the simulator.
			s.logger.Warn("skipping dangling edge in tick", "edge", e.ID)
			continue
		}
		dx := b.Pos.X - a.Pos.X
		dy := b.Pos.Y - a.Pos.Y
		d := math.Hypot(dx, dy)
		if d == 0 {
			continue
		}
		f := (d - s.cfg.RestLength) * s.cfg.SpringK
		fx := dx / d * f
		fy := dy / d * f
		if !a.Pinned {
			a.Vel.X += fx
			a.Vel.Y += fy
		}
		if !b.Pinned {
			b.Vel.X -= fx
			b.Vel.Y -= fy
		}
	}

	// Centering, damping, integration.
	for _, n := range nodes {
		if n.Pinned {
			continue
		}
		n.Vel.X -= n.Pos.X * s.cfg.Centering
		n.Vel.Y -= n.Pos.Y * s.cfg.Centering

		n.Vel.X *= s.cfg.Damping
		n.Vel.Y *= s.cfg.Damping

		// One bad node must not corrupt the whole layout: clamp any
		// residual non-finite value before integrating.
		if !isFinite(n.Vel.X) || !isFinite(n.Vel.Y) {
			s.logger.Warn("resetting non-finite velocity", "node", n.ID)
			n.Vel = graph.Vec2{}
		}
		n.Pos.X += n.Vel.X
		n.Pos.Y += n.Vel.Y
		if !isFinite(n.Pos.X) || !isFinite(n.Pos.Y) {
			s.logger.Warn("resetting non-finite position", "node", n.ID)
			n.Pos = graph.Vec2{}
		}
	}
}

// KineticEnergy returns the total kinetic energy (sum of squared velocity
// magnitudes) of the given nodes. Used to observe convergence.
func KineticEnergy(nodes []graph.Node) float64 {
	var sum float64
	for _, n := range nodes {
		sum += n.Vel.X*n.Vel.X + n.Vel.Y*n.Vel.Y
	}
	return sum
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
