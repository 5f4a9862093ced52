package sim

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/mattjoyce/tierup/internal/config"
	"github.com/mattjoyce/tierup/internal/dispatch"
	"github.com/mattjoyce/tierup/internal/events"
	"github.com/mattjoyce/tierup/internal/executor"
	"github.com/mattjoyce/tierup/internal/job"
	"github.com/mattjoyce/tierup/internal/log"
)

// detachEvery marks every Nth submitted function's environment as torn down.
const detachEvery = 17

// ContextResult is what one simulated context did.
type ContextResult struct {
	ID          job.ContextID     `json:"id"`
	Name        string            `json:"name"`
	Efficiency  bool              `json:"efficiency"`
	Abrupt      bool              `json:"abrupt"`
	Counters    dispatch.Counters `json:"counters"`
	Fallbacks   int               `json:"fallbacks"`
	Prioritized int               `json:"prioritized"`
	Optimized   int               `json:"optimized"`
	Parks       int64             `json:"parks"`
	Parked      time.Duration     `json:"parked"`
}

// Lost returns accepted jobs that were neither installed nor disposed.
func (c ContextResult) Lost() int64 {
	return c.Counters.Submitted - c.Counters.Installed - c.Counters.Disposed
}

// Result summarizes a simulation run.
type Result struct {
	Elapsed  time.Duration   `json:"elapsed"`
	Contexts []ContextResult `json:"contexts"`
	Executor executor.Stats  `json:"executor"`
}

// Totals sums the per-context counters.
func (r *Result) Totals() ContextResult {
	var t ContextResult
	t.Name = "total"
	for _, c := range r.Contexts {
		t.Counters.Submitted += c.Counters.Submitted
		t.Counters.Rejected += c.Counters.Rejected
		t.Counters.Installed += c.Counters.Installed
		t.Counters.Disposed += c.Counters.Disposed
		t.Fallbacks += c.Fallbacks
		t.Prioritized += c.Prioritized
		t.Optimized += c.Optimized
		t.Parks += c.Parks
		t.Parked += c.Parked
	}
	return t
}

// Check verifies that no accepted job went missing.
func (r *Result) Check() error {
	var errs []error
	for _, c := range r.Contexts {
		if lost := c.Lost(); lost != 0 {
			errs = append(errs, fmt.Errorf("context %d (%s): %d jobs unaccounted for", c.ID, c.Name, lost))
		}
	}
	return errors.Join(errs...)
}

type runner struct {
	cfg    config.SimulationConfig
	exec   *executor.Executor
	hub    *events.Hub
	logger *slog.Logger
}

// Option configures Run.
type Option func(*runner)

// WithEvents forwards dispatcher events to hub.
func WithEvents(hub *events.Hub) Option {
	return func(r *runner) { r.hub = hub }
}

// WithLogger overrides the simulation logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *runner) { r.logger = l }
}

// Run drives cfg.Contexts contexts against exec concurrently and returns
// once every context is torn down.
func Run(ctx context.Context, cfg config.SimulationConfig, exec *executor.Executor, opts ...Option) (*Result, error) {
	r := &runner{cfg: cfg, exec: exec, logger: log.WithComponent("sim")}
	for _, opt := range opts {
		opt(r)
	}
	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	start := time.Now()
	results := make([]ContextResult, cfg.Contexts)
	g, gctx := errgroup.WithContext(ctx)
	for i := range cfg.Contexts {
		g.Go(func() error {
			res, err := r.runContext(gctx, i)
			results[i] = res
			return err
		})
	}
	err := g.Wait()

	res := &Result{
		Elapsed:  time.Since(start),
		Contexts: results,
		Executor: exec.Stats(),
	}
	if err != nil {
		return res, fmt.Errorf("simulate: %w", err)
	}
	r.logger.Info("simulation finished",
		"contexts", cfg.Contexts,
		"elapsed", res.Elapsed,
		"installed", res.Totals().Counters.Installed,
	)
	return res, res.Check()
}

func (r *runner) runContext(ctx context.Context, i int) (res ContextResult, runErr error) {
	cfg := r.cfg
	efficiency := cfg.EfficiencyEvery > 0 && (i+1)%cfg.EfficiencyEvery == 0
	abrupt := cfg.TeardownEvery > 0 && (i+1)%cfg.TeardownEvery == 0

	distinct := max(cfg.Functions/2, 1)
	eng := NewEngine(fmt.Sprintf("ctx%02d", i), distinct, cfg.PayloadBytes, cfg.WorkRounds, efficiency)
	tok := dispatch.NewToken()
	d := dispatch.New(r.exec, eng, tok, dispatch.WithEvents(r.hub))
	logger := log.WithContext(uint64(d.ID())).With("component", "sim", "engine", eng.Name())

	var limiter *rate.Limiter
	if cfg.Rate > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.Rate), cfg.Burst)
	}

	res = ContextResult{ID: d.ID(), Name: eng.Name(), Efficiency: efficiency, Abrupt: abrupt}
	install := func() {
		if _, err := d.InstallFinished(); err != nil {
			logger.Warn("install finished jobs", "error", err)
		}
	}

	// Teardown runs on every exit path so no job outlives the dispatcher.
	defer func() {
		d.StartTearDown()
		d.FinishTearDown()
		d.Close()
		res.Counters = d.Counters()
		res.Parks = eng.Parks()
		res.Parked = eng.Parked()
	}()

	submissions := cfg.Functions
	if abrupt {
		submissions = cfg.Functions / 2
	}

	for n := range submissions {
		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				runErr = err
				break
			}
		} else if err := ctx.Err(); err != nil {
			runErr = err
			break
		}

		fn := eng.Function(n)
		err := d.Submit(fn, nil)
		switch {
		case errors.Is(err, dispatch.ErrQueueFull):
			if err := eng.CompileNow(ctx, fn); err != nil {
				runErr = err
			}
			res.Fallbacks++
		case err != nil:
			runErr = err
		}
		if runErr != nil {
			break
		}

		if cfg.PrioritizeEvery > 0 && n%cfg.PrioritizeEvery == cfg.PrioritizeEvery-1 {
			d.Prioritize(fn)
			res.Prioritized++
		}
		if n%detachEvery == detachEvery-1 {
			eng.Detach(fn)
		}

		select {
		case <-eng.Wake():
			install()
		default:
			if cfg.InstallEvery > 0 && n%cfg.InstallEvery == cfg.InstallEvery-1 {
				install()
			}
		}
	}

	if runErr == nil && !abrupt {
		runErr = r.drain(ctx, d, eng, tok, install)
	}

	res.Optimized = eng.Optimized()
	if abrupt {
		logger.Debug("tearing down with jobs in flight", "submitted", d.Counters().Submitted)
	}
	return res, runErr
}

// drain installs results until the context has no jobs left.
func (r *runner) drain(ctx context.Context, d *dispatch.Dispatcher, eng *Engine, tok dispatch.Token, install func()) error {
	tick := time.NewTicker(time.Millisecond)
	defer tick.Stop()
	for d.HasJobs(tok) {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-eng.Wake():
		case <-tick.C:
		}
		install()
	}
	return nil
}
