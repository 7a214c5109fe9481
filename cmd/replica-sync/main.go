package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/alexjbarnes/replica-sync/internal/config"
	"github.com/alexjbarnes/replica-sync/internal/logging"
	"github.com/alexjbarnes/replica-sync/internal/mirror"
	"golang.org/x/sync/errgroup"
)

var Version = "dev"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := logging.NewLogger(cfg.Environment)
	logger.Info("replica-sync starting",
		slog.String("version", Version),
		slog.String("source", cfg.SourceDir),
		slog.String("replica", cfg.ReplicaDir),
		slog.Duration("interval", cfg.Interval()),
		slog.Bool("watch", cfg.WatchSource),
	)

	journal, err := logging.NewJournal(cfg.JournalFile)
	if err != nil {
		return fmt.Errorf("opening journal: %w", err)
	}
	defer journal.Close()

	filter, err := mirror.NewFilter(cfg.Exclude)
	if err != nil {
		return fmt.Errorf("building exclude filter: %w", err)
	}

	replica, err := mirror.NewReplica(cfg.ReplicaDir)
	if err != nil {
		return fmt.Errorf("opening replica: %w", err)
	}

	engine := mirror.NewEngine(mirror.EngineConfig{
		Source:    cfg.SourceDir,
		Replica:   replica,
		Filter:    filter,
		Interval:  cfg.Interval(),
		Overwrite: cfg.Overwrite,
		DryRun:    cfg.DryRun,
		Journal:   journal,
	}, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return engine.Run(gctx)
	})

	if cfg.WatchSource {
		watcher := mirror.NewWatcher(cfg.SourceDir, engine, logger)
		g.Go(func() error {
			return watcher.Watch(gctx)
		})
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	logger.Info("replica-sync stopped")

	return nil
}
