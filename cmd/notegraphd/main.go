// Command notegraphd runs the note graph engine as a standalone daemon: it
// loads the last saved graph snapshot, drives the layout simulation and the
// background workers, exposes Prometheus metrics, and saves the graph back
// on a fixed cadence and at shutdown.
package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/marlowhq/notegraph/pkg/engine"
	"github.com/marlowhq/notegraph/pkg/store"
)

func main() {
	configPath := flag.String("config", "notegraph.yaml", "Path to the engine configuration file")
	dbPath := flag.String("db-path", "notegraph.db", "Path to the SQLite snapshot database")
	metricsAddr := flag.String("metrics-addr", ":9290", "Listen address for the Prometheus /metrics endpoint")
	saveEvery := flag.Duration("save-interval", time.Minute, "How often to snapshot the graph to disk")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	cfg, err := engine.LoadConfig(*configPath)
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	opts, err := cfg.Options()
	if err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	opts.Logger = logger

	eng, err := engine.Open(opts)
	if err != nil {
		logger.Error("failed to open engine", "error", err)
		os.Exit(1)
	}
	defer eng.Close()

	snapshots, err := store.Open(*dbPath, logger)
	if err != nil {
		logger.Error("failed to open snapshot store", "error", err)
		os.Exit(1)
	}
	defer snapshots.Close()

	if err := snapshots.Load(eng.Graph); err != nil {
		logger.Error("failed to load snapshot", "error", err)
		os.Exit(1)
	}
	logger.Info("graph restored", "nodes", eng.Graph.Len(), "edges", len(eng.Edges()))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		http.Handle("/metrics", promhttp.Handler())
		logger.Info("metrics listening", "addr", *metricsAddr)
		if err := http.ListenAndServe(*metricsAddr, nil); err != nil {
			logger.Error("metrics server failed", "error", err)
		}
	}()

	go func() {
		ticker := time.NewTicker(*saveEvery)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := snapshots.Save(eng.Graph); err != nil {
					logger.Error("periodic snapshot failed", "error", err)
				}
			}
		}
	}()

	eng.Run(ctx)

	logger.Info("shutting down, saving final snapshot")
	if err := snapshots.Save(eng.Graph); err != nil {
		logger.Error("final snapshot failed", "error", err)
		os.Exit(1)
	}
}
