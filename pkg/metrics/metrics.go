// Package metrics exposes Prometheus instrumentation for the note graph
// engine. Metrics are registered via promauto, so importing the package is
// all the initialization required.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Nodes tracks the current number of notes in the graph.
	Nodes = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "notegraph_nodes",
		Help: "Current number of nodes in the note graph",
	})

	// Edges tracks the current number of connections.
	Edges = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "notegraph_edges",
		Help: "Current number of edges in the note graph",
	})

	// TickDuration observes how long one simulation step takes.
	TickDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "notegraph_tick_duration_seconds",
		Help:    "Duration of one layout simulation tick",
		Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
	})

	// CommunityRuns counts completed community detection passes.
	CommunityRuns = promauto.NewCounter(prometheus.CounterOpts{
		Name: "notegraph_community_runs_total",
		Help: "Total number of community detection runs",
	})

	// ClusterRuns counts cluster planning requests, labeled by outcome.
	ClusterRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "notegraph_cluster_runs_total",
		Help: "Total number of cluster planning runs",
	}, []string{"outcome"})

	// EmbeddingsComputed counts embedding requests, labeled by outcome.
	EmbeddingsComputed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "notegraph_embeddings_total",
		Help: "Total number of embedding computations",
	}, []string{"outcome"})

	// DanglingEdges counts edges dropped by integrity checks.
	DanglingEdges = promauto.NewCounter(prometheus.CounterOpts{
		Name: "notegraph_dangling_edges_dropped_total",
		Help: "Total number of dangling edges dropped at load or tick time",
	})
)
