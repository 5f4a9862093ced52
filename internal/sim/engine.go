// Package sim is a synthetic execution engine and workload driver for the
// scheduler. Compiling a function means hashing its source repeatedly with
// BLAKE3, which gives jobs a real, tunable CPU cost.
package sim

import (
	"context"
	"encoding/hex"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/zeebo/blake3"

	"github.com/mattjoyce/tierup/internal/job"
)

// Code is the artifact a compile job produces.
type Code struct {
	Function string
	Digest   string
	Rounds   int
}

// Engine is the execution engine of one simulated context. It implements
// dispatch.Engine and dispatch.Parker.
type Engine struct {
	name       string
	rounds     int
	efficiency bool
	// sources is written only by NewEngine, so workers read it unlocked.
	sources map[string][]byte
	names   []string

	mu        sync.Mutex
	installed map[string]Code
	detached  map[string]bool

	wake      chan struct{}
	disposed  atomic.Int64
	parks     atomic.Int64
	parkedFor atomic.Int64
}

// NewEngine builds an engine with functions distinct functions of
// payloadBytes each.
func NewEngine(name string, functions, payloadBytes, rounds int, efficiency bool) *Engine {
	e := &Engine{
		name:       name,
		rounds:     max(rounds, 1),
		efficiency: efficiency,
		sources:    make(map[string][]byte, functions),
		names:      make([]string, 0, functions),
		installed:  make(map[string]Code),
		detached:   make(map[string]bool),
		wake:       make(chan struct{}, 1),
	}
	for i := range functions {
		fn := fmt.Sprintf("%s/fn%04d", name, i)
		e.names = append(e.names, fn)
		e.sources[fn] = source(fn, payloadBytes)
	}
	return e
}

// source derives deterministic pseudo-random bytes for a function.
func source(fn string, n int) []byte {
	h := blake3.New()
	_, _ = h.WriteString(fn)
	buf := make([]byte, max(n, 1))
	_, _ = h.Digest().Read(buf)
	return buf
}

func (e *Engine) Name() string { return e.name }

// Function returns the name of the i-th function, wrapping around.
func (e *Engine) Function(i int) string { return e.names[i%len(e.names)] }

// Compile hashes the function source e.rounds times.
func (e *Engine) Compile(ctx context.Context, j *job.Job) (any, error) {
	fn, ok := j.Target.(string)
	if !ok {
		return nil, fmt.Errorf("compile: target %T is not a function name", j.Target)
	}
	src, ok := e.sources[fn]
	if !ok {
		return nil, fmt.Errorf("compile %s: unknown function", fn)
	}

	sum := blake3.Sum256(src)
	for i := 1; i < e.rounds; i++ {
		if i%64 == 0 && ctx.Err() != nil {
			return nil, fmt.Errorf("compile %s: %w", fn, ctx.Err())
		}
		sum = blake3.Sum256(sum[:])
	}
	return Code{Function: fn, Digest: hex.EncodeToString(sum[:]), Rounds: e.rounds}, nil
}

// CompileNow compiles and installs fn on the calling goroutine. It is the
// fallback when the background queue is full.
func (e *Engine) CompileNow(ctx context.Context, fn string) error {
	res, err := e.Compile(ctx, &job.Job{Target: fn})
	if err != nil {
		return err
	}
	e.mu.Lock()
	e.installed[fn] = res.(Code)
	e.mu.Unlock()
	return nil
}

func (e *Engine) AlreadyOptimized(target any) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.installed[target.(string)]
	return ok
}

func (e *Engine) EnvironmentTornDown(target any) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.detached[target.(string)]
}

// Detach marks fn's environment as gone. Finished jobs for it are disposed.
func (e *Engine) Detach(fn string) {
	e.mu.Lock()
	e.detached[fn] = true
	e.mu.Unlock()
}

func (e *Engine) Install(j *job.Job) error {
	code, ok := j.Result.(Code)
	if !ok {
		return fmt.Errorf("install: result %T is not code", j.Result)
	}
	e.mu.Lock()
	e.installed[code.Function] = code
	e.mu.Unlock()
	return nil
}

func (e *Engine) Dispose(*job.Job)         { e.disposed.Add(1) }
func (e *Engine) SameTarget(a, b any) bool { return a == b }
func (e *Engine) EfficiencyMode() bool     { return e.efficiency }

// RequestInstall wakes the context's main goroutine without blocking.
func (e *Engine) RequestInstall() {
	select {
	case e.wake <- struct{}{}:
	default:
	}
}

// Wake fires after RequestInstall.
func (e *Engine) Wake() <-chan struct{} { return e.wake }

func (e *Engine) WhileParked(fn func()) {
	start := time.Now()
	e.parks.Add(1)
	fn()
	e.parkedFor.Add(int64(time.Since(start)))
}

// Optimized returns the number of functions with installed code.
func (e *Engine) Optimized() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.installed)
}

// Installed returns the installed code for fn.
func (e *Engine) Installed(fn string) (Code, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	c, ok := e.installed[fn]
	return c, ok
}

func (e *Engine) Parks() int64          { return e.parks.Load() }
func (e *Engine) Parked() time.Duration { return time.Duration(e.parkedFor.Load()) }
func (e *Engine) DisposedCount() int64  { return e.disposed.Load() }
