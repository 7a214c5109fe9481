package mirror

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func drainTrigger(eng *Engine) bool {
	select {
	case <-eng.trigger:
		return true
	default:
		return false
	}
}

func TestWatcher_NudgesOnSourceChange(t *testing.T) {
	source := t.TempDir()
	replicaDir := t.TempDir()

	eng := newTestEngine(t, source, replicaDir, &captureRecorder{})
	w := NewWatcher(source, eng, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- w.Watch(ctx)
	}()

	// Rewrite until an event lands; the watcher may still be registering
	// directories when the first write happens.
	i := 0
	require.Eventually(t, func() bool {
		writeTestFile(t, source, "new.txt", fmt.Sprintf("v%d", i))
		i++

		return drainTrigger(eng)
	}, waitFor, 25*time.Millisecond)

	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(waitFor):
		t.Fatal("watcher did not stop")
	}
}

func TestWatcher_WatchesNewSubdirectories(t *testing.T) {
	source := t.TempDir()
	replicaDir := t.TempDir()

	eng := newTestEngine(t, source, replicaDir, &captureRecorder{})
	w := NewWatcher(source, eng, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		_ = w.Watch(ctx)
	}()

	sub := filepath.Join(source, "sub")

	// Wait until the watcher has picked up the new directory: writes
	// inside it must produce nudges.
	require.Eventually(t, func() bool {
		if _, err := os.Stat(sub); os.IsNotExist(err) {
			if err := os.Mkdir(sub, 0o755); err != nil {
				return false
			}
		}

		drainTrigger(eng)
		writeTestFile(t, sub, "inner.txt", "x")

		return drainTrigger(eng)
	}, waitFor, 25*time.Millisecond)
}

func TestWatcher_MissingSource(t *testing.T) {
	source := filepath.Join(t.TempDir(), "gone")
	replicaDir := t.TempDir()

	eng := newTestEngine(t, source, replicaDir, &captureRecorder{})
	w := NewWatcher(source, eng, discardLogger())

	err := w.Watch(context.Background())
	assert.Error(t, err)
}
