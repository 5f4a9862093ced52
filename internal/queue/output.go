package queue

import (
	"sort"
	"sync"

	"github.com/mattjoyce/tierup/internal/job"
)

// OutputQueue holds one context's finished jobs until its main goroutine
// installs or disposes them. Unbounded, FIFO.
type OutputQueue struct {
	mu   sync.Mutex
	jobs []*job.Job
}

// NewOutputQueue creates an empty output queue.
func NewOutputQueue() *OutputQueue {
	return &OutputQueue{}
}

// Enqueue appends a finished job.
func (q *OutputQueue) Enqueue(j *job.Job) {
	q.mu.Lock()
	q.jobs = append(q.jobs, j)
	q.mu.Unlock()
}

// Dequeue pops the oldest finished job, or nil.
func (q *OutputQueue) Dequeue() *job.Job {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.jobs) == 0 {
		return nil
	}
	j := q.jobs[0]
	q.jobs[0] = nil
	q.jobs = q.jobs[1:]
	return j
}

// Len returns the number of finished jobs waiting to be installed.
func (q *OutputQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.jobs)
}

// Empty reports whether no finished job is waiting.
func (q *OutputQueue) Empty() bool { return q.Len() == 0 }

// DrainInSequenceOrder installs every queued job in ascending sequence order,
// starting at next, and returns the sequence number expected after the last
// one. It is used when a fixed batch must be installed deterministically. A
// gap or a failed install is a contract violation.
//
// The batch is detached under the lock and installed without it, so install
// may call back into the queue and workers can keep finishing jobs. Jobs
// finished meanwhile are left for the next drain.
func (q *OutputQueue) DrainInSequenceOrder(next uint64, install func(*job.Job) error) uint64 {
	q.mu.Lock()
	batch := q.jobs
	q.jobs = nil
	q.mu.Unlock()

	sort.SliceStable(batch, func(a, b int) bool {
		return batch[a].Sequence < batch[b].Sequence
	})

	for i, j := range batch {
		if j.Sequence != next {
			q.requeueFront(batch[i:])
			job.Violation("install in sequence order", "expected sequence %d, got %d", next, j.Sequence)
		}
		if err := install(j); err != nil {
			job.Violation("install in sequence order", "install sequence %d: %v", j.Sequence, err)
		}
		next++
	}
	return next
}

// requeueFront puts jobs back ahead of anything enqueued since they were
// detached.
func (q *OutputQueue) requeueFront(jobs []*job.Job) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.jobs = append(append([]*job.Job(nil), jobs...), q.jobs...)
}
