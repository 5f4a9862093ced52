package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mattjoyce/tierup/internal/config"
	"github.com/mattjoyce/tierup/internal/events"
	"github.com/mattjoyce/tierup/internal/executor"
	"github.com/mattjoyce/tierup/internal/journal"
	"github.com/mattjoyce/tierup/internal/log"
	"github.com/mattjoyce/tierup/internal/report"
	"github.com/mattjoyce/tierup/internal/sim"
	"github.com/mattjoyce/tierup/internal/workerpool"
)

const hubCapacity = 4096

// runtimeStack is the shared scheduler wiring used by simulate and serve.
type runtimeStack struct {
	cfg     *config.Config
	pool    *workerpool.Pool
	hub     *events.Hub
	exec    *executor.Executor
	journal *journal.Recorder
	stopJ   func() error
}

func newRuntimeStack(ctx context.Context, cfg *config.Config, journalPath string) (*runtimeStack, error) {
	log.Setup(cfg.Service.LogLevel, cfg.Service.LogFormat)

	rs := &runtimeStack{cfg: cfg, hub: events.NewHub(hubCapacity)}
	rs.pool = workerpool.New(cfg.Scheduler.WorkerThreads, workerpool.WithLogger(log.WithComponent("workerpool")))
	rs.exec = executor.New(executor.Config{
		QueueLength:        cfg.Scheduler.QueueLength,
		MaxThreads:         cfg.Scheduler.MaxThreads,
		RecompilationDelay: cfg.Scheduler.RecompilationDelay,
		Trace:              cfg.Scheduler.Trace,
	}, rs.pool, executor.WithEvents(rs.hub), executor.WithLogger(log.WithComponent("executor")))

	if journalPath == "" && cfg.Journal.Enabled {
		journalPath = cfg.Journal.Path
	}
	if journalPath != "" {
		rec, err := journal.Open(ctx, journalPath, cfg.Fingerprint)
		if err != nil {
			rs.pool.Shutdown()
			return nil, err
		}
		rs.journal = rec
		rs.stopJ = rec.Follow(ctx, rs.hub)
	}
	return rs, nil
}

// close shuts the executor down and flushes the journal. summary is stored
// on the journal run when non-nil.
func (rs *runtimeStack) close(summary any) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var errs []error
	if err := rs.exec.Close(ctx); err != nil {
		errs = append(errs, err)
	}
	rs.pool.Shutdown()

	if rs.journal != nil {
		if err := rs.stopJ(); err != nil {
			errs = append(errs, fmt.Errorf("journal: %w", err))
		}
		if err := rs.journal.FinishRun(ctx, summary); err != nil {
			errs = append(errs, err)
		}
		if err := rs.journal.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if dropped := rs.hub.Dropped(); dropped > 0 {
		log.Warn("event subscribers fell behind", "dropped", dropped)
	}
	return errors.Join(errs...)
}

func runSimulate(args []string) int {
	fs := flag.NewFlagSet("simulate", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to configuration file")
	contexts := fs.Int("contexts", 0, "Override simulation.contexts")
	functions := fs.Int("functions", 0, "Override simulation.functions")
	queueLength := fs.Int("queue-length", 0, "Override scheduler.queue_length")
	journalPath := fs.String("journal", "", "SQLite journal path")
	jsonOut := fs.Bool("json", false, "Output result as JSON")
	if err := fs.Parse(args); err != nil {
		return 1
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}
	if *contexts > 0 {
		cfg.Simulation.Contexts = *contexts
	}
	if *functions > 0 {
		cfg.Simulation.Functions = *functions
	}
	if *queueLength > 0 {
		cfg.Scheduler.QueueLength = *queueLength
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rs, err := newRuntimeStack(ctx, cfg, *journalPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to start: %v\n", err)
		return 1
	}

	res, simErr := sim.Run(ctx, cfg.Simulation, rs.exec, sim.WithEvents(rs.hub))
	var summary any
	if res != nil {
		summary = res.Totals()
	}
	if err := rs.close(summary); err != nil {
		fmt.Fprintf(os.Stderr, "Shutdown: %v\n", err)
		if simErr == nil {
			simErr = err
		}
	}

	if res != nil {
		if *jsonOut {
			data, _ := json.MarshalIndent(res, "", "  ")
			fmt.Println(string(data))
		} else {
			fmt.Println(report.Render(res, report.NewDefaultTheme()))
		}
	}
	if simErr != nil {
		fmt.Fprintf(os.Stderr, "Simulation failed: %v\n", simErr)
		return 1
	}
	return 0
}
