package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/mattjoyce/tierup/internal/events"
	"github.com/mattjoyce/tierup/internal/executor"
	"github.com/mattjoyce/tierup/internal/job"
	"github.com/mattjoyce/tierup/internal/log"
	"github.com/mattjoyce/tierup/internal/queue"
)

var (
	// ErrQueueFull means the shared input queue is at capacity. The caller
	// still owns the request and usually compiles it synchronously.
	ErrQueueFull = errors.New("optimization queue full")
	// ErrNotActive is returned by Submit once teardown has started.
	ErrNotActive = errors.New("dispatcher not active")
)

// State is the dispatcher lifecycle state.
type State int32

const (
	Active State = iota
	TearingDown
	Destroyed
)

func (s State) String() string {
	switch s {
	case Active:
		return "active"
	case TearingDown:
		return "tearing_down"
	case Destroyed:
		return "destroyed"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// BlockingBehavior selects whether Flush waits for in-flight jobs.
type BlockingBehavior int

const (
	Block BlockingBehavior = iota
	NonBlock
)

// Dispose reasons, as published on job.disposed events.
const (
	ReasonStale        = "stale"
	ReasonTornDown     = "environment_torn_down"
	ReasonFailed       = "compile_failed"
	ReasonInstallError = "install_failed"
	ReasonFlushed      = "flushed"
)

// Counters are the dispatcher's lifetime job counts. Once a dispatcher is
// destroyed, Submitted == Installed + Disposed.
type Counters struct {
	Submitted int64 `json:"submitted"`
	Rejected  int64 `json:"rejected"`
	Installed int64 `json:"installed"`
	Disposed  int64 `json:"disposed"`
}

// Dispatcher submits and installs optimization jobs for one context.
type Dispatcher struct {
	id     job.ContextID
	exec   *executor.Executor
	engine Engine
	tok    Token
	output *queue.OutputQueue
	hub    *events.Hub
	logger *slog.Logger

	state    atomic.Int32
	finalize atomic.Bool
	// nextSeq is only touched by the main goroutine.
	nextSeq uint64

	submitted atomic.Int64
	rejected  atomic.Int64
	installed atomic.Int64
	disposed  atomic.Int64
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithEvents publishes install and dispose events to hub.
func WithEvents(hub *events.Hub) Option {
	return func(d *Dispatcher) { d.hub = hub }
}

// WithLogger overrides the dispatcher logger.
func WithLogger(l *slog.Logger) Option {
	return func(d *Dispatcher) { d.logger = l }
}

// New registers a context with exec. tok identifies the goroutine that
// will drive the dispatcher.
func New(exec *executor.Executor, engine Engine, tok Token, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		id:     exec.Register(),
		exec:   exec,
		engine: engine,
		tok:    tok,
		output: queue.NewOutputQueue(),
	}
	d.finalize.Store(true)
	d.logger = log.WithContext(uint64(d.id)).With("component", "dispatch")
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *Dispatcher) ID() job.ContextID { return d.id }
func (d *Dispatcher) State() State      { return State(d.state.Load()) }
func (d *Dispatcher) Finalize() bool    { return d.finalize.Load() }

// EfficiencyMode forwards to the engine.
func (d *Dispatcher) EfficiencyMode() bool { return d.engine.EfficiencyMode() }

// Counters returns the lifetime job counts.
func (d *Dispatcher) Counters() Counters {
	return Counters{
		Submitted: d.submitted.Load(),
		Rejected:  d.rejected.Load(),
		Installed: d.installed.Load(),
		Disposed:  d.disposed.Load(),
	}
}

// Submit queues an optimization of target. On ErrQueueFull nothing was
// queued and no sequence number was used.
func (d *Dispatcher) Submit(target, payload any) error {
	if s := d.State(); s != Active {
		return fmt.Errorf("submit in state %s: %w", s, ErrNotActive)
	}

	j := job.New(d, target, payload)
	j.Sequence = d.nextSeq
	if !d.exec.TryQueueForOptimization(j) {
		d.rejected.Add(1)
		return fmt.Errorf("submit %v: %w", target, ErrQueueFull)
	}
	d.nextSeq++
	d.submitted.Add(1)
	return nil
}

// IsQueueAvailable is an advisory check; Submit may still fail.
func (d *Dispatcher) IsQueueAvailable() bool { return d.exec.IsQueueAvailable() }

// Prioritize moves the queued job for target ahead of this context's other
// queued jobs.
func (d *Dispatcher) Prioritize(target any) {
	d.exec.Prioritize(d.id, func(j *job.Job) bool {
		return d.engine.SameTarget(j.Target, target)
	})
}

// Execute runs on a worker goroutine.
func (d *Dispatcher) Execute(ctx context.Context, j *job.Job) {
	j.Result, j.Err = d.engine.Compile(ctx, j)
}

// QueueFinished runs on a worker goroutine and hands j back to this context.
func (d *Dispatcher) QueueFinished(j *job.Job) {
	if j.Context != d.id {
		job.Violation("QueueFinished", "job of context %d delivered to context %d", j.Context, d.id)
	}
	d.output.Enqueue(j)
	if d.finalize.Load() {
		d.engine.RequestInstall()
	}
}

// InstallFinished drains the output queue in completion order. Stale and
// failed jobs are disposed. Install errors are joined into the returned
// error; the remaining jobs are still processed.
func (d *Dispatcher) InstallFinished() (int, error) {
	var (
		installed int
		errs      []error
	)
	for j := d.output.Dequeue(); j != nil; j = d.output.Dequeue() {
		switch {
		case d.engine.AlreadyOptimized(j.Target):
			d.dispose(j, ReasonStale)
		case d.engine.EnvironmentTornDown(j.Target):
			d.dispose(j, ReasonTornDown)
		case j.Err != nil:
			d.logger.Warn("compilation failed", "trace_id", j.TraceID, "error", j.Err)
			d.dispose(j, ReasonFailed)
		default:
			if err := d.engine.Install(j); err != nil {
				d.logger.Error("install failed", "trace_id", j.TraceID, "error", err)
				errs = append(errs, fmt.Errorf("install %s: %w", j.TraceID, err))
				d.dispose(j, ReasonInstallError)
				continue
			}
			d.markInstalled(j)
			installed++
		}
	}
	return installed, errors.Join(errs...)
}

// InstallInSequenceOrder installs every finished job in sequence order,
// starting at next, and returns the sequence number after the last one. A
// missing sequence number or a failed install panics.
func (d *Dispatcher) InstallInSequenceOrder(next uint64) uint64 {
	return d.output.DrainInSequenceOrder(next, func(j *job.Job) error {
		if err := d.engine.Install(j); err != nil {
			return err
		}
		d.markInstalled(j)
		return nil
	})
}

// Flush drops every queued and finished job of this context. With Block it
// also waits for the jobs already running, so nothing lands afterwards.
func (d *Dispatcher) Flush(mode BlockingBehavior) {
	flushed := d.exec.FlushForContext(d.id, func(j *job.Job) { d.dispose(j, ReasonFlushed) })
	if mode == Block {
		d.park(func() { d.exec.WaitUntilDone(d.id) })
	}
	drained := d.disposeOutput()

	d.logger.Debug("flushed", "queued", flushed, "finished", drained, "blocking", mode == Block)
	d.hub.Publish(events.ContextFlushed, map[string]any{
		"context_id": d.id,
		"queued":     flushed,
		"finished":   drained,
		"blocking":   mode == Block,
	})
}

// StartTearDown stops admission and drops the queued jobs. Jobs already
// running keep going.
func (d *Dispatcher) StartTearDown() {
	if !d.state.CompareAndSwap(int32(Active), int32(TearingDown)) {
		return
	}
	flushed := d.exec.FlushForContext(d.id, func(j *job.Job) { d.dispose(j, ReasonFlushed) })
	d.logger.Debug("teardown started", "flushed", flushed)
}

// FinishTearDown waits for the running jobs and disposes everything left.
func (d *Dispatcher) FinishTearDown() {
	switch d.State() {
	case Active:
		job.Violation("FinishTearDown", "context %d: teardown not started", d.id)
	case Destroyed:
		return
	}
	d.park(func() { d.exec.WaitUntilDone(d.id) })
	drained := d.disposeOutput()
	d.state.Store(int32(Destroyed))

	c := d.Counters()
	d.logger.Info("context torn down",
		"submitted", c.Submitted,
		"installed", c.Installed,
		"disposed", c.Disposed,
		"drained", drained,
	)
	d.hub.Publish(events.ContextTornDown, map[string]any{
		"context_id": d.id,
		"counters":   c,
	})
}

// Close releases the context. Every job must already be installed or
// disposed.
func (d *Dispatcher) Close() {
	if n := d.output.Len(); n > 0 {
		job.Violation("Close", "context %d: %d finished jobs never installed", d.id, n)
	}
	if d.exec.HasWorkFor(d.id) {
		job.Violation("Close", "context %d: jobs still queued or running", d.id)
	}
	d.state.Store(int32(Destroyed))
	d.exec.Unregister(d.id)
}

// HasJobs reports whether any job of this context is queued, running or
// waiting to be installed.
func (d *Dispatcher) HasJobs(tok Token) bool {
	d.checkToken("HasJobs", tok)
	// Workers enqueue the output before clearing their slot, so checking the
	// executor first cannot miss a job that is changing hands.
	return d.exec.HasWorkFor(d.id) || !d.output.Empty()
}

// SetFinalize turns RequestInstall notifications on or off. Only legal while
// the context has no jobs.
func (d *Dispatcher) SetFinalize(tok Token, flag bool) {
	if d.HasJobs(tok) {
		job.Violation("SetFinalize", "context %d has pending jobs", d.id)
	}
	d.finalize.Store(flag)
}

func (d *Dispatcher) checkToken(op string, tok Token) {
	if tok != d.tok {
		job.Violation(op, "context %d called off its main goroutine", d.id)
	}
}

func (d *Dispatcher) park(fn func()) {
	if p, ok := d.engine.(Parker); ok {
		p.WhileParked(fn)
		return
	}
	fn()
}

func (d *Dispatcher) disposeOutput() int {
	n := 0
	for j := d.output.Dequeue(); j != nil; j = d.output.Dequeue() {
		d.dispose(j, ReasonFlushed)
		n++
	}
	return n
}

func (d *Dispatcher) dispose(j *job.Job, reason string) {
	d.engine.Dispose(j)
	d.disposed.Add(1)
	d.logger.Debug("job disposed", "trace_id", j.TraceID, "reason", reason)
	d.hub.Publish(events.JobDisposed, map[string]any{
		"context_id": d.id,
		"sequence":   j.Sequence,
		"trace_id":   j.TraceID,
		"reason":     reason,
	})
}

func (d *Dispatcher) markInstalled(j *job.Job) {
	d.installed.Add(1)
	d.hub.Publish(events.JobInstalled, map[string]any{
		"context_id": d.id,
		"sequence":   j.Sequence,
		"trace_id":   j.TraceID,
	})
}
