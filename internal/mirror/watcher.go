package mirror

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watcher monitors the source tree and nudges the engine into an early
// reconciliation pass when something changes. It is only an extra tick
// source: each pass still recomputes everything from the live
// filesystem, so a missed or coalesced event is corrected by the next
// scheduled tick.
type Watcher struct {
	source string
	engine *Engine
	logger *slog.Logger
}

// NewWatcher creates a watcher for the engine's source tree.
func NewWatcher(source string, engine *Engine, logger *slog.Logger) *Watcher {
	return &Watcher{
		source: source,
		engine: engine,
		logger: logger,
	}
}

// Watch blocks until the context is cancelled, forwarding source changes
// to the engine. Intended to run in a background goroutine alongside
// Engine.Run.
func (w *Watcher) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating fsnotify watcher: %w", err)
	}
	defer watcher.Close()

	if err := addRecursive(watcher, w.source); err != nil {
		return fmt.Errorf("adding source tree to watcher: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-watcher.Events:
			if !ok {
				return fmt.Errorf("fsnotify events channel closed")
			}

			w.handleEvent(watcher, event)

		case err, ok := <-watcher.Errors:
			if !ok {
				return fmt.Errorf("fsnotify errors channel closed")
			}

			// fsnotify errors are non-fatal (e.g. too many watches). The
			// scheduled ticks still reconcile the affected paths.
			w.logger.Warn("source watcher error", slog.String("error", err.Error()))
		}
	}
}

// handleEvent keeps the recursive watch set current and nudges the engine.
func (w *Watcher) handleEvent(watcher *fsnotify.Watcher, event fsnotify.Event) {
	if event.Has(fsnotify.Create) {
		// New directory: start watching it so we catch files created
		// inside it. Lstat avoids following symlinks out of the source.
		if info, err := os.Lstat(event.Name); err == nil && info.IsDir() {
			_ = watcher.Add(event.Name)
		}
	}

	if event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
		// Harmless if the path wasn't a watched directory.
		_ = watcher.Remove(event.Name)
	}

	w.logger.Debug("source change detected",
		slog.String("path", event.Name),
		slog.String("op", event.Op.String()),
	)
	w.engine.Nudge()
}

// addRecursive walks the source root and adds every directory to the
// fsnotify watcher.
func addRecursive(watcher *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if !d.IsDir() {
			return nil
		}

		return watcher.Add(path)
	})
}
