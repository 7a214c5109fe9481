package logging

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func journalLines(t *testing.T, path string) []string {
	t.Helper()

	content, err := os.ReadFile(path)
	require.NoError(t, err)

	return strings.Split(strings.TrimRight(string(content), "\n"), "\n")
}

func TestJournal_RecordWritesTimestampedLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sync.log")

	j, err := NewJournal(path)
	require.NoError(t, err)
	defer j.Close()

	j.Record("Copied file a.txt")

	lines := journalLines(t, path)
	require.Len(t, lines, 1)

	assert.True(t, strings.HasSuffix(lines[0], " Copied file a.txt"), "line: %q", lines[0])

	// The prefix must be a parseable timestamp.
	prefix := strings.TrimSuffix(lines[0], " Copied file a.txt")
	_, err = time.Parse(journalTimeFormat, prefix)
	assert.NoError(t, err)
}

func TestJournal_AppendsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sync.log")

	j, err := NewJournal(path)
	require.NoError(t, err)
	j.Record("first")
	require.NoError(t, j.Close())

	j, err = NewJournal(path)
	require.NoError(t, err)
	j.Record("second")
	require.NoError(t, j.Close())

	lines := journalLines(t, path)
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "first")
	assert.Contains(t, lines[1], "second")
}

func TestJournal_RecordAfterClose(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sync.log")

	j, err := NewJournal(path)
	require.NoError(t, err)
	require.NoError(t, j.Close())

	// Must not panic or resurrect the file handle.
	j.Record("dropped")

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Empty(t, content)

	// Double close is harmless.
	assert.NoError(t, j.Close())
}

func TestJournal_ConcurrentRecords(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sync.log")

	j, err := NewJournal(path)
	require.NoError(t, err)
	defer j.Close()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)

		go func() {
			defer wg.Done()

			for k := 0; k < 20; k++ {
				j.Record("event")
			}
		}()
	}
	wg.Wait()

	lines := journalLines(t, path)
	assert.Len(t, lines, 200)
}

func TestNewJournal_BadPath(t *testing.T) {
	_, err := NewJournal(filepath.Join(t.TempDir(), "missing", "sync.log"))
	assert.Error(t, err)
}
