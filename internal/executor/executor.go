// Package executor owns the process-wide input queue and the worker slots,
// and runs compilation jobs for every context on a shared platform pool.
package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mattjoyce/tierup/internal/events"
	"github.com/mattjoyce/tierup/internal/job"
	"github.com/mattjoyce/tierup/internal/log"
	"github.com/mattjoyce/tierup/internal/queue"
	"github.com/mattjoyce/tierup/internal/workerpool"
)

// ErrQueueNotEmpty is returned by Close when jobs are still queued.
var ErrQueueNotEmpty = errors.New("input queue not empty")

// Platform is the dynamic worker pool the executor posts its compile task to.
type Platform interface {
	NumWorkers() int
	Post(priority workerpool.Priority, task workerpool.Task) workerpool.JobHandle
}

// Config controls queue sizing and worker behaviour.
type Config struct {
	QueueLength int
	// MaxThreads raises the slot count above the platform worker count.
	MaxThreads int
	// RecompilationDelay is slept before each job. Testing aid.
	RecompilationDelay time.Duration
	// Trace logs every job transition at INFO instead of DEBUG.
	Trace bool
}

// Stats is a point-in-time view of the executor.
type Stats struct {
	QueueLength   int             `json:"queue_length"`
	QueueCapacity int             `json:"queue_capacity"`
	Slots         []job.ContextID `json:"slots"`
	Contexts      int64           `json:"contexts"`
	Queued        int64           `json:"queued"`
	Rejected      int64           `json:"rejected"`
	Completed     int64           `json:"completed"`
	Panicked      int64           `json:"panicked"`
}

// Executor is the shared service every context dispatcher submits into.
type Executor struct {
	cfg      Config
	platform Platform
	input    *queue.InputQueue
	slots    []queue.Slot
	hub      *events.Hub
	logger   *slog.Logger

	// admit is read-held across the closed check, lazy init and enqueue so
	// that Close cannot interleave with an admission.
	admit    sync.RWMutex
	initOnce sync.Once
	handle   workerpool.JobHandle
	closed   atomic.Bool

	nextContext atomic.Uint64
	contexts    atomic.Int64

	queued    atomic.Int64
	rejected  atomic.Int64
	completed atomic.Int64
	panicked  atomic.Int64
}

// Option configures an Executor.
type Option func(*Executor)

// WithEvents publishes job lifecycle events to hub.
func WithEvents(hub *events.Hub) Option {
	return func(e *Executor) { e.hub = hub }
}

// WithLogger overrides the executor logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Executor) { e.logger = l }
}

// New creates an executor. No worker runs until the first job is queued.
func New(cfg Config, platform Platform, opts ...Option) *Executor {
	e := &Executor{
		cfg:      cfg,
		platform: platform,
		input:    queue.NewInputQueue(cfg.QueueLength),
		slots:    make([]queue.Slot, max(cfg.MaxThreads, platform.NumWorkers(), 1)),
		logger:   log.WithComponent("executor"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Executor) ensureInitialized() {
	e.initOnce.Do(func() {
		e.handle = e.platform.Post(workerpool.PriorityUserVisible, &compileTask{e: e})
		e.logger.Info("compile task posted",
			"slots", len(e.slots),
			"queue_capacity", e.input.Capacity(),
		)
	})
}

// Register allocates the id of a new execution context.
func (e *Executor) Register() job.ContextID {
	e.contexts.Add(1)
	return job.ContextID(e.nextContext.Add(1))
}

// Unregister drops a context registered with Register.
func (e *Executor) Unregister(id job.ContextID) {
	e.contexts.Add(-1)
	e.logger.Debug("context unregistered", "context_id", uint64(id))
}

// TryQueueForOptimization admits j into the input queue. On false the caller
// keeps ownership of j.
func (e *Executor) TryQueueForOptimization(j *job.Job) bool {
	e.admit.RLock()
	defer e.admit.RUnlock()
	if e.closed.Load() {
		e.reject(j, "executor closed")
		return false
	}
	e.ensureInitialized()

	owner := j.Owner
	ctxID, seq, traceID := j.Context, j.Sequence, j.TraceID
	j.QueuedAt = time.Now().UTC()
	if !e.input.Enqueue(j) {
		e.reject(j, "queue full")
		return false
	}
	e.queued.Add(1)

	if e.handle.UpdatePriorityEnabled() {
		priority := workerpool.PriorityUserVisible
		if owner.EfficiencyMode() {
			priority = workerpool.PriorityBestEffort
		}
		e.handle.UpdatePriority(priority)
	}
	e.handle.NotifyConcurrencyIncrease()

	e.trace("queued for concurrent optimization",
		"context_id", uint64(ctxID), "sequence", seq, "trace_id", traceID)
	e.hub.Publish(events.JobQueued, map[string]any{
		"context_id": ctxID,
		"sequence":   seq,
		"trace_id":   traceID,
	})
	return true
}

func (e *Executor) reject(j *job.Job, reason string) {
	e.rejected.Add(1)
	e.trace("optimization request rejected",
		"context_id", uint64(j.Context), "trace_id", j.TraceID, "reason", reason)
	e.hub.Publish(events.JobRejected, map[string]any{
		"context_id": j.Context,
		"trace_id":   j.TraceID,
		"reason":     reason,
	})
}

// IsQueueAvailable is an advisory capacity check.
func (e *Executor) IsQueueAvailable() bool { return e.input.IsAvailable() }

// MaxConcurrency tells the platform how many workers are worth running:
// one per queued job on top of those already running, capped by the slots.
func (e *Executor) MaxConcurrency(workerCount int) int {
	return min(e.input.Len()+workerCount, len(e.slots))
}

// IsContextActive reports whether a worker is currently running ctx's jobs.
func (e *Executor) IsContextActive(ctx job.ContextID) bool {
	return e.input.ContextActive(e.slots, ctx)
}

// HasJobFor reports whether ctx has a queued, not yet started job.
func (e *Executor) HasJobFor(ctx job.ContextID) bool {
	return e.input.HasJobFor(ctx)
}

// HasWorkFor reports whether ctx has a job queued or running. Both are read
// under one lock, so a job moving from the queue into a slot is never missed.
func (e *Executor) HasWorkFor(ctx job.ContextID) bool {
	return e.input.HasWorkFor(e.slots, ctx)
}

// WaitUntilDone blocks until ctx has nothing queued and nothing in flight.
func (e *Executor) WaitUntilDone(ctx job.ContextID) {
	e.input.WaitUntilDone(e.slots, ctx)
}

// FlushForContext disposes every queued job of ctx.
func (e *Executor) FlushForContext(ctx job.ContextID, dispose func(*job.Job)) int {
	return e.input.FlushForContext(ctx, dispose)
}

// Prioritize moves ctx's first job accepted by match to the front of ctx's
// queued jobs.
func (e *Executor) Prioritize(ctx job.ContextID, match func(*job.Job) bool) {
	e.input.Prioritize(ctx, match)
}

// Stats returns a snapshot of queue and slot state.
func (e *Executor) Stats() Stats {
	return Stats{
		QueueLength:   e.input.Len(),
		QueueCapacity: e.input.Capacity(),
		Slots:         e.input.Snapshot(e.slots),
		Contexts:      e.contexts.Load(),
		Queued:        e.queued.Load(),
		Rejected:      e.rejected.Load(),
		Completed:     e.completed.Load(),
		Panicked:      e.panicked.Load(),
	}
}

// Close stops admitting jobs, cancels the compile task and waits for the
// workers to return or ctx to expire. Queued jobs belong to dispatchers that
// were not torn down; they are reported with ErrQueueNotEmpty.
func (e *Executor) Close(ctx context.Context) error {
	e.admit.Lock()
	e.closed.Store(true)
	// Settle initOnce so handle is stable from here on.
	e.initOnce.Do(func() {})
	e.admit.Unlock()

	if e.handle != nil {
		done := make(chan struct{})
		go func() {
			e.handle.Cancel()
			close(done)
		}()
		select {
		case <-done:
		case <-ctx.Done():
			return fmt.Errorf("close executor: %w", ctx.Err())
		}
	}

	if n := e.input.Len(); n > 0 {
		return fmt.Errorf("close executor: %d jobs: %w", n, ErrQueueNotEmpty)
	}
	e.logger.Info("executor closed", "completed", e.completed.Load())
	return nil
}

func (e *Executor) trace(msg string, args ...any) {
	if e.cfg.Trace {
		e.logger.Info(msg, args...)
		return
	}
	e.logger.Debug(msg, args...)
}
