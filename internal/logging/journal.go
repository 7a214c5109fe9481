package logging

import (
	"fmt"
	"os"
	"sync"
	"time"
)

const (
	// journalFilePerm is the permission mode for the journal file. Group
	// and other get read access so operators can tail it.
	journalFilePerm = 0o644

	// journalTimeFormat is the timestamp prefix on every journal line.
	journalTimeFormat = "2006-01-02 15:04:05"
)

// Journal appends timestamped, human-readable event lines to a file. The
// sync engine records every applied action and caught error through it.
// Write failures are swallowed: a broken journal must never abort or
// propagate into a sync pass.
type Journal struct {
	mu sync.Mutex
	f  *os.File
}

// NewJournal opens (or creates) the journal file at path in append mode.
func NewJournal(path string) (*Journal, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, journalFilePerm) //nolint:gosec // G304: path validated at config load
	if err != nil {
		return nil, fmt.Errorf("opening journal %s: %w", path, err)
	}

	return &Journal{f: f}, nil
}

// Record appends one timestamped line to the journal. Safe for concurrent
// use. Errors writing the line are intentionally discarded.
func (j *Journal) Record(msg string) {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.f == nil {
		return
	}

	_, _ = fmt.Fprintf(j.f, "%s %s\n", time.Now().Format(journalTimeFormat), msg)
}

// Close flushes and closes the underlying file. Record becomes a no-op
// after Close.
func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.f == nil {
		return nil
	}

	err := j.f.Close()
	j.f = nil

	return err
}