// Package journal persists scheduler events to SQLite so a run can be
// inspected after the process exits.
package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/mattjoyce/tierup/internal/events"
	"github.com/mattjoyce/tierup/internal/lock"
	"github.com/mattjoyce/tierup/internal/log"
	"github.com/mattjoyce/tierup/internal/storage"
)

const (
	subscribeBuffer = 8192
	maxBatch        = 256
)

// Recorder writes hub events for one run into the journal database.
type Recorder struct {
	db     *sql.DB
	lock   *lock.PIDLock
	runID  string
	logger *slog.Logger

	written atomic.Int64
}

// Open locks and opens the journal at path and starts a new run.
func Open(ctx context.Context, path, configHash string) (*Recorder, error) {
	l, err := lock.AcquirePIDLock(lock.PathFor(path))
	if err != nil {
		return nil, fmt.Errorf("lock journal: %w", err)
	}
	db, err := storage.OpenSQLite(ctx, path)
	if err != nil {
		_ = l.Release()
		return nil, err
	}

	r := &Recorder{
		db:     db,
		lock:   l,
		runID:  uuid.NewString(),
		logger: log.WithComponent("journal"),
	}
	_, err = db.ExecContext(ctx,
		`INSERT INTO scheduler_runs (id, config_hash, started_at) VALUES (?, ?, ?)`,
		r.runID, configHash, time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		_ = r.Close()
		return nil, fmt.Errorf("insert run: %w", err)
	}
	r.logger.Info("journal opened", "path", path, "run_id", r.runID)
	return r, nil
}

func (r *Recorder) RunID() string  { return r.runID }
func (r *Recorder) Written() int64 { return r.written.Load() }

// Follow persists every event published on hub from now on. The returned
// stop func unsubscribes, writes what was already received and reports the
// first write error.
func (r *Recorder) Follow(ctx context.Context, hub *events.Hub) (stop func() error) {
	ch, cancel := hub.Subscribe(subscribeBuffer)
	done := make(chan error, 1)
	go func() { done <- r.consume(ctx, ch) }()
	return func() error {
		cancel()
		return <-done
	}
}

func (r *Recorder) consume(ctx context.Context, ch <-chan events.Event) error {
	var firstErr error
	for ev := range ch {
		batch := []events.Event{ev}
	fill:
		for len(batch) < maxBatch {
			select {
			case next, ok := <-ch:
				if !ok {
					break fill
				}
				batch = append(batch, next)
			default:
				break fill
			}
		}
		if firstErr != nil {
			continue
		}
		if err := r.write(ctx, batch); err != nil {
			r.logger.Error("journal write failed", "error", err)
			firstErr = err
		}
	}
	return firstErr
}

// eventRef holds the indexed fields every scheduler event payload carries.
type eventRef struct {
	ContextID *uint64 `json:"context_id"`
	TraceID   string  `json:"trace_id"`
}

func (r *Recorder) write(ctx context.Context, batch []events.Event) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO scheduler_events (run_id, event_id, type, context_id, trace_id, at, data)
VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	for _, ev := range batch {
		var ref eventRef
		_ = json.Unmarshal(ev.Data, &ref)
		var ctxID any
		if ref.ContextID != nil {
			ctxID = int64(*ref.ContextID)
		}
		if _, err := stmt.ExecContext(ctx,
			r.runID, ev.ID, ev.Type, ctxID, nullString(ref.TraceID),
			ev.At.Format(time.RFC3339Nano), string(ev.Data),
		); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("insert event %d: %w", ev.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	r.written.Add(int64(len(batch)))
	return nil
}

// FinishRun stores summary (JSON-encoded) on the run row.
func (r *Recorder) FinishRun(ctx context.Context, summary any) error {
	b, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("encode summary: %w", err)
	}
	_, err = r.db.ExecContext(ctx,
		`UPDATE scheduler_runs SET finished_at = ?, summary = ? WHERE id = ?`,
		time.Now().UTC().Format(time.RFC3339Nano), string(b), r.runID)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	return nil
}

// CountByType returns the number of journaled events per type for this run.
func (r *Recorder) CountByType(ctx context.Context) (map[string]int, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT type, COUNT(*) FROM scheduler_events WHERE run_id = ? GROUP BY type`, r.runID)
	if err != nil {
		return nil, fmt.Errorf("count events: %w", err)
	}
	defer rows.Close()

	out := make(map[string]int)
	for rows.Next() {
		var (
			typ string
			n   int
		)
		if err := rows.Scan(&typ, &n); err != nil {
			return nil, fmt.Errorf("scan count: %w", err)
		}
		out[typ] = n
	}
	return out, rows.Err()
}

// Close closes the database and releases the journal lock.
func (r *Recorder) Close() error {
	err := r.db.Close()
	if rerr := r.lock.Release(); err == nil {
		err = rerr
	}
	return err
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
