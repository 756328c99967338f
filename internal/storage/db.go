package storage

import (
	"context"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"
)

type DB struct {
	Pool *pgxpool.Pool

	schemaMu       sync.Mutex
	schemaPrepared bool
}

func NewDB(ctx context.Context, dsn string) (*DB, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres config: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &DB{Pool: pool}, nil
}

func (d *DB) Ping(ctx context.Context) error {
	if err := d.Pool.Ping(ctx); err != nil {
		return fmt.Errorf("ping postgres: %w", err)
	}
	return nil
}

func (d *DB) Close() {
	if d != nil && d.Pool != nil {
		d.Pool.Close()
	}
}

// schemaDDL uses json rather than jsonb for characteristics and params so the
// stored text keeps key and element order.
const schemaDDL = `
CREATE TABLE IF NOT EXISTS studies (
  document_id TEXT PRIMARY KEY,
  name TEXT NOT NULL DEFAULT '',
  db_id TEXT NOT NULL DEFAULT '',
  run_id TEXT,
  node_count INT NOT NULL DEFAULT 0,
  edge_count INT NOT NULL DEFAULT 0,
  created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS study_nodes (
  document_id TEXT NOT NULL REFERENCES studies(document_id) ON DELETE CASCADE,
  position INT NOT NULL,
  node_id TEXT NOT NULL,
  db_id TEXT NOT NULL DEFAULT '',
  addition BOOLEAN,
  label TEXT NOT NULL DEFAULT '',
  node_type TEXT NOT NULL DEFAULT '',
  taxon TEXT NOT NULL DEFAULT '',
  uri TEXT NOT NULL DEFAULT '',
  characteristics JSON,
  PRIMARY KEY (document_id, position)
);

CREATE TABLE IF NOT EXISTS study_edges (
  document_id TEXT NOT NULL REFERENCES studies(document_id) ON DELETE CASCADE,
  position INT NOT NULL,
  db_id TEXT NOT NULL DEFAULT '',
  addition BOOLEAN,
  source_node_id TEXT NOT NULL,
  target_node_id TEXT NOT NULL,
  label TEXT NOT NULL DEFAULT '',
  params JSON,
  PRIMARY KEY (document_id, position)
);

CREATE TABLE IF NOT EXISTS conversion_runs (
  run_id TEXT PRIMARY KEY,
  document_id TEXT NOT NULL,
  filename TEXT NOT NULL DEFAULT '',
  workflow_id TEXT,
  status TEXT NOT NULL CHECK (status IN ('pending','processing','completed','failed')),
  fail_reason TEXT,
  node_count INT NOT NULL DEFAULT 0,
  edge_count INT NOT NULL DEFAULT 0,
  created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
  updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_study_edges_source ON study_edges(document_id, source_node_id);
CREATE INDEX IF NOT EXISTS idx_conversion_runs_document ON conversion_runs(document_id, updated_at DESC);
`

// EnsureSchema creates the tables on first use so a fresh database works
// without a separate migration step.
func (d *DB) EnsureSchema(ctx context.Context) error {
	d.schemaMu.Lock()
	defer d.schemaMu.Unlock()

	if d.schemaPrepared {
		return nil
	}
	if _, err := d.Pool.Exec(ctx, schemaDDL); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	d.schemaPrepared = true
	return nil
}
