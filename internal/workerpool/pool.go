// Package workerpool is a goroutine-backed dynamic job pool. A posted Task
// is run by up to NumWorkers goroutines at once; the pool asks the task how
// much concurrency it can use and starts or retires workers accordingly.
package workerpool

import (
	"context"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/mattjoyce/tierup/internal/log"
)

// Priority is a scheduling hint attached to a posted task.
type Priority int

const (
	PriorityBestEffort Priority = iota
	PriorityUserVisible
	PriorityUserBlocking
)

func (p Priority) String() string {
	switch p {
	case PriorityBestEffort:
		return "best_effort"
	case PriorityUserVisible:
		return "user_visible"
	case PriorityUserBlocking:
		return "user_blocking"
	default:
		return "unknown"
	}
}

// Delegate is handed to every Task.Run invocation.
type Delegate interface {
	// TaskID is unique among the workers concurrently running the same task
	// and always less than the pool's NumWorkers.
	TaskID() int
	// ShouldYield reports that the worker should return as soon as it
	// reaches a safe point.
	ShouldYield() bool
}

// Task is the unit posted to the pool. Run is invoked once per worker and may
// be invoked again after it returns while MaxConcurrency asks for more.
type Task interface {
	Run(ctx context.Context, d Delegate)
	// MaxConcurrency returns how many workers can be used right now, given
	// workerCount workers currently inside Run.
	MaxConcurrency(workerCount int) int
}

// JobHandle controls a posted task.
type JobHandle interface {
	NotifyConcurrencyIncrease()
	UpdatePriorityEnabled() bool
	UpdatePriority(p Priority)
	Cancel()
	IsValid() bool
}

// Pool hands out worker goroutines to posted tasks.
type Pool struct {
	workers int
	logger  *slog.Logger

	mu      sync.Mutex
	handles map[*handle]struct{}
	closed  bool
}

// Option configures a Pool.
type Option func(*Pool)

// WithLogger overrides the pool logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Pool) { p.logger = l }
}

// New creates a pool with the given worker count. A non-positive count means
// one fewer than the number of CPUs, and at least one.
func New(workers int, opts ...Option) *Pool {
	if workers <= 0 {
		workers = max(runtime.NumCPU()-1, 1)
	}
	p := &Pool{
		workers: workers,
		logger:  log.WithComponent("workerpool"),
		handles: make(map[*handle]struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// NumWorkers returns the maximum number of goroutines a task can occupy.
func (p *Pool) NumWorkers() int { return p.workers }

// Post schedules task and starts as many workers as it currently wants.
func (p *Pool) Post(priority Priority, task Task) JobHandle {
	ctx, cancel := context.WithCancel(context.Background())
	h := &handle{
		pool:     p,
		task:     task,
		ctx:      ctx,
		cancel:   cancel,
		busy:     make([]bool, p.workers),
		priority: priority,
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		h.canceled.Store(true)
		cancel()
		return h
	}
	p.handles[h] = struct{}{}
	p.mu.Unlock()

	p.logger.Debug("task posted", "priority", priority.String(), "workers", p.workers)

	h.mu.Lock()
	h.spawnLocked()
	h.mu.Unlock()
	return h
}

// Shutdown cancels every posted task and waits for their workers to return.
func (p *Pool) Shutdown() {
	p.mu.Lock()
	p.closed = true
	handles := make([]*handle, 0, len(p.handles))
	for h := range p.handles {
		handles = append(handles, h)
	}
	p.mu.Unlock()

	for _, h := range handles {
		h.Cancel()
	}
}

func (p *Pool) forget(h *handle) {
	p.mu.Lock()
	delete(p.handles, h)
	p.mu.Unlock()
}

type handle struct {
	pool   *Pool
	task   Task
	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	active   int
	busy     []bool
	priority Priority
	canceled atomic.Bool
	wg       sync.WaitGroup
}

func (h *handle) NotifyConcurrencyIncrease() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.spawnLocked()
}

func (h *handle) UpdatePriorityEnabled() bool { return true }

func (h *handle) UpdatePriority(p Priority) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.priority == p {
		return
	}
	h.pool.logger.Debug("task priority changed", "from", h.priority.String(), "to", p.String())
	h.priority = p
}

// Priority returns the current priority hint.
func (h *handle) Priority() Priority {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.priority
}

// Cancel makes every worker yield and waits for them to leave Run.
func (h *handle) Cancel() {
	h.mu.Lock()
	h.canceled.Store(true)
	h.mu.Unlock()

	h.cancel()
	h.wg.Wait()
	h.pool.forget(h)
}

func (h *handle) IsValid() bool { return !h.canceled.Load() }

// spawnLocked starts workers until the task's wanted concurrency is met.
func (h *handle) spawnLocked() {
	if h.canceled.Load() {
		return
	}
	want := min(h.task.MaxConcurrency(h.active), h.pool.workers)
	for h.active < want {
		id := h.acquireIDLocked()
		h.active++
		h.wg.Add(1)
		go h.work(id)
	}
}

func (h *handle) acquireIDLocked() int {
	for id, taken := range h.busy {
		if !taken {
			h.busy[id] = true
			return id
		}
	}
	// active < workers guarantees a free id.
	panic("workerpool: no free task id")
}

func (h *handle) work(id int) {
	defer h.wg.Done()

	h.task.Run(h.ctx, delegate{h: h, id: id})

	h.mu.Lock()
	h.busy[id] = false
	h.active--
	h.spawnLocked()
	h.mu.Unlock()
}

type delegate struct {
	h  *handle
	id int
}

func (d delegate) TaskID() int       { return d.id }
func (d delegate) ShouldYield() bool { return d.h.canceled.Load() }
