// Package job defines the unit of background compilation work and the
// ownership contract between a context's dispatcher and the shared executor.
package job

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ContextID identifies an owning execution context. Zero means "no context"
// and is what an idle worker slot holds.
type ContextID uint64

// None is the ContextID of an idle slot.
const None ContextID = 0

// Owner is implemented by the per-context dispatcher that submitted a job.
// The executor calls Execute and then QueueFinished from a background worker.
type Owner interface {
	ID() ContextID
	Execute(ctx context.Context, j *Job)
	QueueFinished(j *Job)
	EfficiencyMode() bool
}

// Job is one pending or in-flight compilation request.
//
// A *Job is uniquely owned: it lives in the input queue, in a worker slot, or
// in its owner's output queue, and only the current holder mutates it.
type Job struct {
	Context  ContextID
	Owner    Owner
	Target   any
	Payload  any
	Sequence uint64
	TraceID  string

	Result any
	Err    error

	QueuedAt   time.Time
	StartedAt  *time.Time
	FinishedAt *time.Time
}

// New builds a job for the given owner. The sequence number is assigned by
// the dispatcher at submission.
func New(owner Owner, target, payload any) *Job {
	return &Job{
		Context: owner.ID(),
		Owner:   owner,
		Target:  target,
		Payload: payload,
		TraceID: uuid.NewString(),
	}
}

// MarkStarted stamps the start of background execution.
func (j *Job) MarkStarted() {
	now := time.Now().UTC()
	j.StartedAt = &now
}

// MarkFinished stamps the end of background execution.
func (j *Job) MarkFinished() {
	now := time.Now().UTC()
	j.FinishedAt = &now
}

// Elapsed returns how long the job ran on a worker, or zero if it has not
// finished.
func (j *Job) Elapsed() time.Duration {
	if j.StartedAt == nil || j.FinishedAt == nil {
		return 0
	}
	return j.FinishedAt.Sub(*j.StartedAt)
}
