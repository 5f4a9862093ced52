package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/mattjoyce/tierup/internal/api"
	"github.com/mattjoyce/tierup/internal/log"
	"github.com/mattjoyce/tierup/internal/sim"
)

func runServe(args []string) int {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to configuration file")
	listen := fs.String("listen", "", "Override api.listen")
	journalPath := fs.String("journal", "", "SQLite journal path")
	if err := fs.Parse(args); err != nil {
		return 1
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}
	if *listen != "" {
		cfg.API.Listen = *listen
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rs, err := newRuntimeStack(ctx, cfg, *journalPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to start: %v\n", err)
		return 1
	}
	logger := log.WithComponent("serve")

	srv := api.New(api.Config{Listen: cfg.API.Listen, Token: cfg.API.Token}, rs.exec, rs.hub, log.WithComponent("api"))

	var rounds int
	var lastTotals sim.ContextResult
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Start(gctx)
	})
	g.Go(func() error {
		for gctx.Err() == nil {
			res, err := sim.Run(gctx, cfg.Simulation, rs.exec, sim.WithEvents(rs.hub))
			if res != nil {
				lastTotals = res.Totals()
			}
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				return err
			}
			rounds++
			logger.Info("simulation round complete", "round", rounds, "installed", lastTotals.Counters.Installed)
		}
		return gctx.Err()
	})

	runErr := g.Wait()
	if errors.Is(runErr, context.Canceled) {
		runErr = nil
	}
	closeErr := rs.close(map[string]any{"rounds": rounds, "last": lastTotals})
	if err := errors.Join(runErr, closeErr); err != nil {
		fmt.Fprintf(os.Stderr, "Serve failed: %v\n", err)
		return 1
	}
	logger.Info("serve stopped", "rounds", rounds)
	return 0
}
