package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// OpenSQLite opens (and creates if needed) the journal database at path and
// ensures the schema exists.
func OpenSQLite(ctx context.Context, path string) (*sql.DB, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite path is empty")
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create sqlite directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One writer; the journal never needs more.
	db.SetMaxOpenConns(1)

	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	for _, pragma := range []string{
		"PRAGMA busy_timeout = 5000;",
		"PRAGMA journal_mode = WAL;",
		"PRAGMA synchronous = NORMAL;",
	} {
		if _, err := db.ExecContext(pctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply %q: %w", pragma, err)
		}
	}
	if err := BootstrapSQLite(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// BootstrapSQLite creates tables/indexes if missing.
func BootstrapSQLite(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS scheduler_runs (
  id          TEXT PRIMARY KEY,
  config_hash TEXT,
  started_at  TEXT NOT NULL,
  finished_at TEXT,
  summary     JSON
);`,
		`CREATE TABLE IF NOT EXISTS scheduler_events (
  run_id      TEXT NOT NULL,
  event_id    INTEGER NOT NULL,
  type        TEXT NOT NULL,
  context_id  INTEGER,
  trace_id    TEXT,
  at          TEXT NOT NULL,
  data        JSON NOT NULL DEFAULT '{}',
  PRIMARY KEY (run_id, event_id)
);`,
		`CREATE INDEX IF NOT EXISTS scheduler_events_type_idx ON scheduler_events(run_id, type);`,
		`CREATE INDEX IF NOT EXISTS scheduler_events_context_idx ON scheduler_events(run_id, context_id);`,
	}

	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("bootstrap sqlite: %w", err)
		}
	}
	return nil
}
