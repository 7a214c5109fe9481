package mirror

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"
)

// Recorder receives one human-readable line for every applied action and
// every caught error. Implementations must swallow their own failures: a
// broken recorder must never propagate into a sync pass.
type Recorder interface {
	Record(msg string)
}

// nopRecorder is the default when no journal is configured.
type nopRecorder struct{}

func (nopRecorder) Record(string) {}

// EngineConfig carries the dependencies and policy for an Engine. All
// fields are fixed at construction; the engine never re-reads
// configuration while running.
type EngineConfig struct {
	// Source is the absolute path of the read-only tree being mirrored.
	Source string

	// Replica is the writable side of the mirror.
	Replica *Replica

	// Comparator decides content equality for overwrite decisions.
	// Defaults to SHA256Comparator.
	Comparator Comparator

	// Filter holds exclude patterns. Optional.
	Filter *Filter

	// Interval is the delay between reconciliation passes.
	Interval time.Duration

	// Overwrite allows existing replica files to be replaced when their
	// content differs from the source. When false they are never touched.
	Overwrite bool

	// DryRun journals planned actions without mutating the replica.
	DryRun bool

	// Journal records actions and errors. Defaults to a no-op recorder.
	Journal Recorder

	// Clock is the tick source. Defaults to the real clock; tests inject
	// a fake so the loop runs without wall-clock waits.
	Clock clockwork.Clock
}

// Engine owns the tree reconciliation algorithm and the scheduling loop
// that re-runs it forever at a fixed interval. A single Engine instance
// is the only writer of its replica tree.
type Engine struct {
	source    string
	replica   *Replica
	cmp       Comparator
	filter    *Filter
	journal   Recorder
	logger    *slog.Logger
	clock     clockwork.Clock
	interval  time.Duration
	overwrite bool
	dryRun    bool
	trigger   chan struct{}
}

// NewEngine creates an engine from a validated configuration.
func NewEngine(cfg EngineConfig, logger *slog.Logger) *Engine {
	if cfg.Comparator == nil {
		cfg.Comparator = SHA256Comparator{}
	}

	if cfg.Journal == nil {
		cfg.Journal = nopRecorder{}
	}

	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}

	return &Engine{
		source:    cfg.Source,
		replica:   cfg.Replica,
		cmp:       cfg.Comparator,
		filter:    cfg.Filter,
		journal:   cfg.Journal,
		logger:    logger,
		clock:     cfg.Clock,
		interval:  cfg.Interval,
		overwrite: cfg.Overwrite,
		dryRun:    cfg.DryRun,
		trigger:   make(chan struct{}, 1),
	}
}

// Run drives the scheduling loop: one reconciliation pass immediately,
// then one per tick, forever. It returns only when ctx is cancelled,
// always with ctx.Err(). Cancellation takes effect between passes, never
// mid-pass. A watcher nudge wakes the loop early without skipping the
// in-progress pass.
func (e *Engine) Run(ctx context.Context) error {
	e.logger.Info("mirror engine starting",
		slog.String("source", e.source),
		slog.String("replica", e.replica.Dir()),
		slog.Duration("interval", e.interval),
		slog.Bool("overwrite", e.overwrite),
		slog.Bool("dry_run", e.dryRun),
	)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		e.Pass()

		select {
		case <-ctx.Done():
			e.logger.Info("mirror engine stopping")
			return ctx.Err()

		case <-e.trigger:
			e.logger.Debug("early pass triggered by source change")

		case <-e.clock.After(e.interval):
		}
	}
}

// Nudge requests an early reconciliation pass. Non-blocking; nudges that
// arrive while one is already pending coalesce into a single early pass.
func (e *Engine) Nudge() {
	select {
	case e.trigger <- struct{}{}:
	default:
	}
}

// record formats and journals a single event line.
func (e *Engine) record(format string, args ...any) {
	e.journal.Record(fmt.Sprintf(format, args...))
}

// recordError journals a caught error with the offending path and mirrors
// it to the operational log.
func (e *Engine) recordError(action, path string, err error) {
	e.logger.Warn("sync action failed",
		slog.String("action", action),
		slog.String("path", path),
		slog.String("error", err.Error()),
	)
	e.record("Error %s %s: %v", action, path, err)
}
