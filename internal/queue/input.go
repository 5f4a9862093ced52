package queue

import (
	"sync"

	"github.com/mattjoyce/tierup/internal/job"
)

// DefaultCapacity matches the historical recompilation queue length.
const DefaultCapacity = 1024

// Slot is the per-worker record of which context, if any, the worker is
// currently draining. Slots are only read or written under the InputQueue
// mutex.
type Slot struct {
	ctx job.ContextID
}

// Context returns the context the slot is serving, or job.None.
func (s *Slot) Context() job.ContextID { return s.ctx }

// Idle reports whether the slot is free.
func (s *Slot) Idle() bool { return s.ctx == job.None }

// InputQueue is the process-wide bounded FIFO of pending jobs shared by all
// contexts. A single mutex guards the queue and every worker slot; done is
// broadcast whenever a slot goes idle.
type InputQueue struct {
	mu       sync.Mutex
	done     *sync.Cond
	jobs     []*job.Job
	capacity int
}

// NewInputQueue creates a queue holding at most capacity jobs.
func NewInputQueue(capacity int) *InputQueue {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	q := &InputQueue{capacity: capacity}
	q.done = sync.NewCond(&q.mu)
	return q
}

// Capacity returns the configured maximum length.
func (q *InputQueue) Capacity() int { return q.capacity }

// Len returns the number of queued jobs.
func (q *InputQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.jobs)
}

// IsAvailable reports whether an Enqueue would currently succeed. The answer
// is advisory: it is not atomic with a later Enqueue.
func (q *InputQueue) IsAvailable() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.jobs) < q.capacity
}

// Enqueue appends j if there is room. On false the caller keeps ownership.
func (q *InputQueue) Enqueue(j *job.Job) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.jobs) >= q.capacity {
		return false
	}
	q.jobs = append(q.jobs, j)
	return true
}

// Dequeue pops the front job and records its context into slot before the
// lock is released. Returns nil if the queue is empty.
func (q *InputQueue) Dequeue(slot *Slot) *job.Job {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !slot.Idle() {
		job.Violation("dequeue", "slot still serving context %d", slot.ctx)
	}
	if len(q.jobs) == 0 {
		return nil
	}
	j := q.popFrontLocked()
	slot.ctx = j.Context
	return j
}

// DequeueIfContextMatches pops the front job only if it belongs to ctx.
func (q *InputQueue) DequeueIfContextMatches(ctx job.ContextID) *job.Job {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.jobs) == 0 || q.jobs[0].Context != ctx {
		return nil
	}
	return q.popFrontLocked()
}

func (q *InputQueue) popFrontLocked() *job.Job {
	j := q.jobs[0]
	q.jobs[0] = nil
	q.jobs = q.jobs[1:]
	return j
}

// FlushForContext removes every queued job owned by ctx and hands each to
// dispose once the lock has been released. In-flight and finished jobs are
// untouched. Returns the number of jobs removed.
func (q *InputQueue) FlushForContext(ctx job.ContextID, dispose func(*job.Job)) int {
	q.mu.Lock()
	var flushed []*job.Job
	kept := q.jobs[:0]
	for _, j := range q.jobs {
		if j.Context == ctx {
			flushed = append(flushed, j)
			continue
		}
		kept = append(kept, j)
	}
	for i := len(kept); i < len(q.jobs); i++ {
		q.jobs[i] = nil
	}
	q.jobs = kept
	q.mu.Unlock()

	if dispose != nil {
		for _, j := range flushed {
			dispose(j)
		}
	}
	return len(flushed)
}

// HasJobFor reports whether any queued job belongs to ctx.
func (q *InputQueue) HasJobFor(ctx job.ContextID) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.hasJobForLocked(ctx)
}

func (q *InputQueue) hasJobForLocked(ctx job.ContextID) bool {
	for _, j := range q.jobs {
		if j.Context == ctx {
			return true
		}
	}
	return false
}

// Prioritize moves the first queued job of ctx accepted by match to the
// position of ctx's earliest queued job. Jobs of other contexts keep their
// positions. No-op if nothing matches.
func (q *InputQueue) Prioritize(ctx job.ContextID, match func(*job.Job) bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	first, found := -1, -1
	for i, j := range q.jobs {
		if j.Context != ctx {
			continue
		}
		if first < 0 {
			first = i
		}
		// Never consult match for foreign contexts: their targets may not be
		// safe to inspect from this goroutine.
		if match(j) {
			found = i
			break
		}
	}
	if found < 0 || found == first {
		return
	}
	q.jobs[first], q.jobs[found] = q.jobs[found], q.jobs[first]
}

// ClearSlot marks slot idle and wakes everyone waiting in WaitUntilDone.
func (q *InputQueue) ClearSlot(slot *Slot) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if slot.Idle() {
		job.Violation("clear slot", "slot already idle")
	}
	slot.ctx = job.None
	q.done.Broadcast()
}

// ContextActive reports whether any slot is serving ctx.
func (q *InputQueue) ContextActive(slots []Slot, ctx job.ContextID) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return contextActiveLocked(slots, ctx)
}

func contextActiveLocked(slots []Slot, ctx job.ContextID) bool {
	for i := range slots {
		if slots[i].ctx == ctx {
			return true
		}
	}
	return false
}

// HasWorkFor reports whether ctx has queued or in-flight jobs.
func (q *InputQueue) HasWorkFor(slots []Slot, ctx job.ContextID) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.hasJobForLocked(ctx) || contextActiveLocked(slots, ctx)
}

// WaitUntilDone blocks until neither the queue nor any slot holds work for
// ctx.
func (q *InputQueue) WaitUntilDone(slots []Slot, ctx job.ContextID) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for q.hasJobForLocked(ctx) || contextActiveLocked(slots, ctx) {
		q.done.Wait()
	}
}

// Snapshot copies the slot contexts under the lock.
func (q *InputQueue) Snapshot(slots []Slot) []job.ContextID {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]job.ContextID, len(slots))
	for i := range slots {
		out[i] = slots[i].ctx
	}
	return out
}
