package dispatch

import (
	"context"
	"sync/atomic"

	"github.com/mattjoyce/tierup/internal/job"
)

//go:generate mockgen -destination=mocks/mock_engine.go -package=mocks github.com/mattjoyce/tierup/internal/dispatch Engine

// Engine is the execution engine of one context. Compile runs on worker
// goroutines; every other method is called from the context's main goroutine.
type Engine interface {
	Compile(ctx context.Context, j *job.Job) (any, error)
	// AlreadyOptimized reports that better code was installed for target
	// while the job was compiling.
	AlreadyOptimized(target any) bool
	EnvironmentTornDown(target any) bool
	Install(j *job.Job) error
	Dispose(j *job.Job)
	SameTarget(a, b any) bool
	// RequestInstall asks the main goroutine to call InstallFinished soon.
	// It is called from worker goroutines.
	RequestInstall()
	EfficiencyMode() bool
}

// Parker is implemented by engines that must be told when their main
// goroutine blocks.
type Parker interface {
	WhileParked(fn func())
}

// Token identifies the main goroutine of a context. Calls that are only legal
// there take the token and check it.
type Token struct {
	id uint64
}

var nextToken atomic.Uint64

// NewToken returns a token distinct from every other token in the process.
func NewToken() Token {
	return Token{id: nextToken.Add(1)}
}
