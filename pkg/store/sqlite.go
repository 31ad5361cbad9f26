// Package store persists the note graph's layout state in SQLite.
//
// The engine itself holds everything in memory; this package is the
// reference implementation of the persistence schema the engine dictates:
// one record per node (position, velocity, radius, last visit) and one per
// edge (endpoints, strength, reason), both round-trippable without loss.
// Callers are expected to save on a debounce, not per tick.
package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite"

	"github.com/marlowhq/notegraph/pkg/graph"
	"github.com/marlowhq/notegraph/pkg/metrics"
)

const schema = `
CREATE TABLE IF NOT EXISTS nodes (
	id           TEXT PRIMARY KEY,
	title        TEXT NOT NULL DEFAULT '',
	x            REAL NOT NULL,
	y            REAL NOT NULL,
	vx           REAL NOT NULL,
	vy           REAL NOT NULL,
	radius       REAL NOT NULL,
	weight       REAL NOT NULL DEFAULT 1,
	last_visited INTEGER NOT NULL,
	last_updated INTEGER NOT NULL,
	archived     INTEGER NOT NULL DEFAULT 0,
	ephemeral    INTEGER NOT NULL DEFAULT 1
);

CREATE TABLE IF NOT EXISTS edges (
	id       TEXT PRIMARY KEY,
	source   TEXT NOT NULL,
	target   TEXT NOT NULL,
	strength REAL NOT NULL,
	reason   TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_edges_source ON edges(source);
CREATE INDEX IF NOT EXISTS idx_edges_target ON edges(target);
`

// Store is a SQLite-backed snapshot store for graph state.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open opens (or creates) the database at path and applies the schema.
func Open(path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}
	return &Store{db: db, logger: logger}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Save writes a full snapshot of the graph in one transaction, replacing any
// previous snapshot.
func (s *Store) Save(g *graph.Graph) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM nodes"); err != nil {
		return err
	}
	if _, err := tx.Exec("DELETE FROM edges"); err != nil {
		return err
	}

	nodeStmt, err := tx.Prepare(`INSERT INTO nodes
		(id, title, x, y, vx, vy, radius, weight, last_visited, last_updated, archived, ephemeral)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer nodeStmt.Close()

	for _, n := range g.Nodes() {
		_, err := nodeStmt.Exec(
			n.ID, n.Title,
			n.Pos.X, n.Pos.Y, n.Vel.X, n.Vel.Y,
			n.Radius, n.Weight,
			n.LastVisited.UnixNano(), n.LastUpdated.UnixNano(),
			boolInt(n.Archived), boolInt(n.Ephemeral),
		)
		if err != nil {
			return fmt.Errorf("failed to save node %s: %w", n.ID, err)
		}
	}

	edgeStmt, err := tx.Prepare(`INSERT INTO edges (id, source, target, strength, reason)
		VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer edgeStmt.Close()

	for _, e := range g.Edges() {
		if _, err := edgeStmt.Exec(e.ID, e.Source, e.Target, e.Strength, e.Reason); err != nil {
			return fmt.Errorf("failed to save edge %s: %w", e.ID, err)
		}
	}

	return tx.Commit()
}

// Load restores a snapshot into the given graph. Edges referencing missing
// nodes are a data-integrity warning: they are logged and dropped rather
// than propagated.
func (s *Store) Load(g *graph.Graph) error {
	rows, err := s.db.Query(`SELECT id, title, x, y, vx, vy, radius, weight,
		last_visited, last_updated, archived, ephemeral FROM nodes`)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var n graph.Node
		var visited, updated int64
		var archived, ephemeral int
		if err := rows.Scan(&n.ID, &n.Title, &n.Pos.X, &n.Pos.Y, &n.Vel.X, &n.Vel.Y,
			&n.Radius, &n.Weight, &visited, &updated, &archived, &ephemeral); err != nil {
			return err
		}
		n.LastVisited = time.Unix(0, visited)
		n.LastUpdated = time.Unix(0, updated)
		n.Archived = archived != 0
		n.Ephemeral = ephemeral != 0
		g.Restore(n)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	edgeRows, err := s.db.Query(`SELECT id, source, target, strength, reason FROM edges`)
	if err != nil {
		return err
	}
	defer edgeRows.Close()

	for edgeRows.Next() {
		var e graph.Edge
		if err := edgeRows.Scan(&e.ID, &e.Source, &e.Target, &e.Strength, &e.Reason); err != nil {
			return err
		}
		if err := g.RestoreEdge(e); err != nil {
			s.logger.Warn("dropping dangling edge from snapshot", "edge", e.ID, "error", err)
			metrics.DanglingEdges.Inc()
		}
	}
	return edgeRows.Err()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
