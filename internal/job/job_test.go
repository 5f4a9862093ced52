package job

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubOwner struct{ id ContextID }

func (s stubOwner) ID() ContextID                 { return s.id }
func (s stubOwner) Execute(context.Context, *Job) {}
func (s stubOwner) QueueFinished(*Job)            {}
func (s stubOwner) EfficiencyMode() bool          { return false }

func TestNewBindsOwner(t *testing.T) {
	j := New(stubOwner{id: 7}, "fn", []byte("src"))

	assert.Equal(t, ContextID(7), j.Context)
	assert.Equal(t, "fn", j.Target)
	assert.NotEmpty(t, j.TraceID)
	assert.NotEqual(t, j.TraceID, New(stubOwner{id: 7}, "fn", nil).TraceID)
}

func TestElapsed(t *testing.T) {
	j := New(stubOwner{id: 1}, "fn", nil)
	assert.Zero(t, j.Elapsed())

	j.MarkStarted()
	time.Sleep(2 * time.Millisecond)
	j.MarkFinished()
	assert.Greater(t, j.Elapsed(), time.Duration(0))
}

func TestViolationPanicsWithContractError(t *testing.T) {
	defer func() {
		r := recover()
		require.NotNil(t, r)
		err, ok := r.(*ContractError)
		require.True(t, ok, "expected *ContractError, got %T", r)
		assert.Equal(t, "drain", err.Op)
		assert.Contains(t, err.Error(), "expected sequence 2")
	}()
	Violation("drain", "expected sequence %d, got %d", 2, 3)
}
