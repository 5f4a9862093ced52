package queue

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattjoyce/tierup/internal/job"
)

type owner job.ContextID

func (o owner) ID() job.ContextID                 { return job.ContextID(o) }
func (o owner) Execute(context.Context, *job.Job) {}
func (o owner) QueueFinished(*job.Job)            {}
func (o owner) EfficiencyMode() bool              { return false }

func newJob(ctx job.ContextID, target string) *job.Job {
	return job.New(owner(ctx), target, nil)
}

func targets(jobs []*job.Job) []any {
	out := make([]any, 0, len(jobs))
	for _, j := range jobs {
		out = append(out, j.Target)
	}
	return out
}

func TestInputQueueCapacityInvariant(t *testing.T) {
	t.Parallel()

	const capacity = 8
	q := NewInputQueue(capacity)
	rng := rand.New(rand.NewSource(42))
	var slot Slot

	for i := range 2000 {
		if rng.Intn(3) > 0 {
			before := q.Len()
			ok := q.Enqueue(newJob(job.ContextID(1+rng.Intn(3)), "fn"))
			if before == capacity {
				require.False(t, ok, "step %d: enqueue beyond capacity must fail", i)
				require.Equal(t, capacity, q.Len())
			} else {
				require.True(t, ok, "step %d", i)
				require.Equal(t, before+1, q.Len())
			}
		} else if j := q.Dequeue(&slot); j != nil {
			q.ClearSlot(&slot)
		}
		require.LessOrEqual(t, q.Len(), capacity)
		require.Equal(t, q.Len() < capacity, q.IsAvailable())
	}
}

func TestInputQueueBackpressureScenario(t *testing.T) {
	t.Parallel()

	q := NewInputQueue(2)
	j1, j2, j3 := newJob(1, "a"), newJob(1, "b"), newJob(1, "c")

	assert.True(t, q.Enqueue(j1))
	assert.True(t, q.Enqueue(j2))
	assert.False(t, q.Enqueue(j3))

	var slot Slot
	assert.Same(t, j1, q.Dequeue(&slot))
	assert.True(t, q.Enqueue(j3))
}

func TestDequeueRecordsSlot(t *testing.T) {
	t.Parallel()

	q := NewInputQueue(4)
	var slot Slot
	assert.Nil(t, q.Dequeue(&slot))
	assert.True(t, slot.Idle())

	q.Enqueue(newJob(5, "a"))
	j := q.Dequeue(&slot)
	require.NotNil(t, j)
	assert.Equal(t, job.ContextID(5), slot.Context())

	slots := []Slot{slot}
	assert.True(t, q.ContextActive(slots, 5))
	assert.True(t, q.HasWorkFor(slots, 5))
	assert.False(t, q.ContextActive(slots, 6))

	assert.Panics(t, func() { q.Dequeue(&slots[0]) }, "dequeue into a busy slot")
}

func TestDequeueIfContextMatches(t *testing.T) {
	t.Parallel()

	q := NewInputQueue(4)
	q.Enqueue(newJob(1, "a"))
	q.Enqueue(newJob(2, "b"))

	assert.Nil(t, q.DequeueIfContextMatches(2))
	j := q.DequeueIfContextMatches(1)
	require.NotNil(t, j)
	assert.Equal(t, "a", j.Target)
	assert.Nil(t, q.DequeueIfContextMatches(1))
	assert.Equal(t, 1, q.Len())
}

func TestFlushForContext(t *testing.T) {
	t.Parallel()

	q := NewInputQueue(8)
	q.Enqueue(newJob(1, "a"))
	q.Enqueue(newJob(2, "x"))
	q.Enqueue(newJob(1, "b"))
	q.Enqueue(newJob(2, "y"))

	var disposed []*job.Job
	n := q.FlushForContext(1, func(j *job.Job) { disposed = append(disposed, j) })

	assert.Equal(t, 2, n)
	assert.Equal(t, []any{"a", "b"}, targets(disposed))
	assert.False(t, q.HasJobFor(1))
	assert.True(t, q.HasJobFor(2))

	var slot Slot
	assert.Equal(t, "x", q.Dequeue(&slot).Target)
	q.ClearSlot(&slot)
	assert.Equal(t, "y", q.Dequeue(&slot).Target)
}

func TestPrioritizeWithinContext(t *testing.T) {
	t.Parallel()

	q := NewInputQueue(8)
	q.Enqueue(newJob(2, "x"))
	q.Enqueue(newJob(1, "j1"))
	q.Enqueue(newJob(1, "j2"))
	q.Enqueue(newJob(3, "z"))
	q.Enqueue(newJob(1, "j3"))

	q.Prioritize(1, func(j *job.Job) bool { return j.Target == "j3" })

	var got []any
	var slot Slot
	for j := q.Dequeue(&slot); j != nil; j = q.Dequeue(&slot) {
		got = append(got, j.Target)
		q.ClearSlot(&slot)
	}
	assert.Equal(t, []any{"x", "j3", "j2", "z", "j1"}, got)
}

func TestPrioritizeNoMatchIsNoop(t *testing.T) {
	t.Parallel()

	q := NewInputQueue(4)
	q.Enqueue(newJob(1, "j1"))
	q.Enqueue(newJob(1, "j2"))

	consulted := 0
	q.Prioritize(2, func(*job.Job) bool { consulted++; return true })
	q.Prioritize(1, func(j *job.Job) bool { return j.Target == "missing" })

	assert.Zero(t, consulted, "match must not see other contexts' jobs")
	var slot Slot
	assert.Equal(t, "j1", q.Dequeue(&slot).Target)
}

func TestWaitUntilDoneUnblocksOnClear(t *testing.T) {
	t.Parallel()

	q := NewInputQueue(4)
	slots := make([]Slot, 1)
	q.Enqueue(newJob(9, "a"))
	require.NotNil(t, q.Dequeue(&slots[0]))

	done := make(chan struct{})
	go func() {
		q.WaitUntilDone(slots, 9)
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("WaitUntilDone returned while the slot was busy")
	case <-time.After(50 * time.Millisecond):
	}

	q.ClearSlot(&slots[0])
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("WaitUntilDone did not return after the slot cleared")
	}
	assert.Equal(t, []job.ContextID{job.None}, q.Snapshot(slots))
}
