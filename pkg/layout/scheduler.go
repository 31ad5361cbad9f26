package layout

import (
	"context"
	"time"

	"github.com/marlowhq/notegraph/pkg/graph"
)

// Run drives the simulation at a fixed tick rate until the context is
// cancelled. It never blocks mid-tick: cancellation takes effect at the next
// tick boundary. Stopping the loop is the only form of cancellation — there
// is no terminal state to converge to.
//
// The optional onTick callback is invoked after each completed tick; callers
// use it for render notifications or instrumentation.
func (s *Simulator) Run(ctx context.Context, g *graph.Graph, rate time.Duration, onTick func()) {
	if rate <= 0 {
		rate = 50 * time.Millisecond
	}
	ticker := time.NewTicker(rate)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Tick(g)
			if onTick != nil {
				onTick()
			}
		}
	}
}
