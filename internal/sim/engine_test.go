package sim

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattjoyce/tierup/internal/job"
)

func TestCompileIsDeterministic(t *testing.T) {
	a := NewEngine("a", 4, 128, 8, false)
	b := NewEngine("a", 4, 128, 8, false)

	fn := a.Function(1)
	ra, err := a.Compile(context.Background(), &job.Job{Target: fn})
	require.NoError(t, err)
	rb, err := b.Compile(context.Background(), &job.Job{Target: fn})
	require.NoError(t, err)

	assert.Equal(t, ra, rb)
	assert.Len(t, ra.(Code).Digest, 64)
	assert.Equal(t, 8, ra.(Code).Rounds)
}

func TestCompileUnknownFunction(t *testing.T) {
	e := NewEngine("a", 1, 16, 1, false)
	_, err := e.Compile(context.Background(), &job.Job{Target: "nope"})
	assert.ErrorContains(t, err, "unknown function")

	_, err = e.Compile(context.Background(), &job.Job{Target: 42})
	assert.ErrorContains(t, err, "not a function name")
}

func TestCompileHonoursCancellation(t *testing.T) {
	e := NewEngine("a", 1, 16, 1000, false)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.Compile(ctx, &job.Job{Target: e.Function(0)})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestInstallMarksOptimized(t *testing.T) {
	e := NewEngine("a", 3, 16, 2, false)
	fn := e.Function(2)
	assert.False(t, e.AlreadyOptimized(fn))

	res, err := e.Compile(context.Background(), &job.Job{Target: fn})
	require.NoError(t, err)
	require.NoError(t, e.Install(&job.Job{Target: fn, Result: res}))

	assert.True(t, e.AlreadyOptimized(fn))
	code, ok := e.Installed(fn)
	require.True(t, ok)
	assert.Equal(t, fn, code.Function)
	assert.Equal(t, 1, e.Optimized())

	assert.Error(t, e.Install(&job.Job{Target: fn, Result: "garbage"}))
}

func TestCompileNowInstalls(t *testing.T) {
	e := NewEngine("a", 2, 16, 2, false)
	require.NoError(t, e.CompileNow(context.Background(), e.Function(0)))
	assert.True(t, e.AlreadyOptimized(e.Function(0)))
}

func TestDetach(t *testing.T) {
	e := NewEngine("a", 2, 16, 1, false)
	e.Detach(e.Function(1))
	assert.True(t, e.EnvironmentTornDown(e.Function(1)))
	assert.False(t, e.EnvironmentTornDown(e.Function(0)))
}

func TestRequestInstallNeverBlocks(t *testing.T) {
	e := NewEngine("a", 1, 16, 1, false)
	e.RequestInstall()
	e.RequestInstall()

	<-e.Wake()
	select {
	case <-e.Wake():
		t.Fatal("wake should coalesce")
	default:
	}
}

func TestWhileParkedCounts(t *testing.T) {
	e := NewEngine("a", 1, 16, 1, true)
	ran := false
	e.WhileParked(func() { ran = true })

	assert.True(t, ran)
	assert.Equal(t, int64(1), e.Parks())
	assert.True(t, e.EfficiencyMode())
}

func TestFunctionWraps(t *testing.T) {
	e := NewEngine("ctx", 3, 16, 1, false)
	assert.Equal(t, e.Function(0), e.Function(3))
	assert.Equal(t, "ctx/fn0001", e.Function(1))
}
