package executor

import (
	"context"
	"fmt"
	"time"

	"github.com/mattjoyce/tierup/internal/events"
	"github.com/mattjoyce/tierup/internal/job"
	"github.com/mattjoyce/tierup/internal/queue"
	"github.com/mattjoyce/tierup/internal/workerpool"
)

// compileTask is what the executor posts to the platform pool.
type compileTask struct {
	e *Executor
}

func (t *compileTask) MaxConcurrency(workerCount int) int {
	return t.e.MaxConcurrency(workerCount)
}

func (t *compileTask) Run(ctx context.Context, d workerpool.Delegate) {
	e := t.e
	slot := &e.slots[d.TaskID()]

	for !d.ShouldYield() {
		// Dequeue claims the slot for the job's context under the queue lock.
		j := e.input.Dequeue(slot)
		if j == nil {
			return
		}
		e.drainContext(ctx, d, slot, j)
	}
}

// drainContext runs j and then keeps taking jobs from the front of the queue
// while they belong to the same context, so the slot is not released between
// them. The slot is cleared on every exit path, panics included.
func (e *Executor) drainContext(ctx context.Context, d workerpool.Delegate, slot *queue.Slot, j *job.Job) {
	owner := j.Context
	defer e.input.ClearSlot(slot)

	for j != nil {
		e.runJob(ctx, j)
		if d.ShouldYield() {
			return
		}
		j = e.input.DequeueIfContextMatches(owner)
	}
}

func (e *Executor) runJob(ctx context.Context, j *job.Job) {
	if e.cfg.RecompilationDelay > 0 {
		sleep(ctx, e.cfg.RecompilationDelay)
	}

	j.MarkStarted()
	e.execute(ctx, j)
	j.MarkFinished()
	e.completed.Add(1)

	data := map[string]any{
		"context_id": j.Context,
		"sequence":   j.Sequence,
		"trace_id":   j.TraceID,
		"elapsed_ms": j.Elapsed().Milliseconds(),
	}
	if j.Err != nil {
		data["error"] = j.Err.Error()
	}
	e.trace("compilation finished",
		"context_id", uint64(j.Context), "trace_id", j.TraceID, "elapsed", j.Elapsed(), "error", j.Err)
	e.hub.Publish(events.JobCompleted, data)

	// Ownership moves to the context's output queue here.
	j.Owner.QueueFinished(j)
}

// execute runs the owner's compilation and turns a panic into j.Err so that
// the job still reaches its output queue.
func (e *Executor) execute(ctx context.Context, j *job.Job) {
	defer func() {
		if r := recover(); r != nil {
			e.panicked.Add(1)
			j.Err = fmt.Errorf("compile job panicked: %v", r)
			e.logger.Error("compile job panicked",
				"context_id", uint64(j.Context), "trace_id", j.TraceID, "panic", r)
		}
	}()
	j.Owner.Execute(ctx, j)
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}
