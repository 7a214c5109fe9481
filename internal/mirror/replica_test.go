package mirror

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	syncerrors "github.com/alexjbarnes/replica-sync/internal/errors"
)

func newTestReplica(t *testing.T) *Replica {
	t.Helper()

	r, err := NewReplica(t.TempDir())
	require.NoError(t, err)

	return r
}

func TestNewReplica_EmptyDir(t *testing.T) {
	_, err := NewReplica("")
	assert.ErrorIs(t, err, syncerrors.ErrEmptyPath)
}

func TestReplica_EnsureRoot(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "replica", "nested")

	r, err := NewReplica(dir)
	require.NoError(t, err)

	created, err := r.EnsureRoot()
	require.NoError(t, err)
	assert.True(t, created, "missing root should be created")

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())

	created, err = r.EnsureRoot()
	require.NoError(t, err)
	assert.False(t, created, "existing root should not be re-created")
}

func TestReplica_WriteFromAndReadDir(t *testing.T) {
	r := newTestReplica(t)

	require.NoError(t, r.WriteFrom("a.txt", strings.NewReader("hello")))

	content, err := os.ReadFile(filepath.Join(r.Dir(), "a.txt"))
	require.NoError(t, err)
	assert.Equal(t, "hello", string(content))

	entries, err := r.ReadDir("")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "a.txt", entries[0].Name())
}

func TestReplica_WriteFrom_Truncates(t *testing.T) {
	r := newTestReplica(t)

	require.NoError(t, r.WriteFrom("a.txt", strings.NewReader("a longer first version")))
	require.NoError(t, r.WriteFrom("a.txt", strings.NewReader("short")))

	content, err := os.ReadFile(filepath.Join(r.Dir(), "a.txt"))
	require.NoError(t, err)
	assert.Equal(t, "short", string(content))
}

func TestReplica_DeleteFile_Missing(t *testing.T) {
	r := newTestReplica(t)

	assert.NoError(t, r.DeleteFile("never-existed.txt"))
}

func TestReplica_DeleteTree(t *testing.T) {
	r := newTestReplica(t)

	require.NoError(t, r.Mkdir("sub"))
	require.NoError(t, r.WriteFrom("sub/a.txt", strings.NewReader("x")))

	require.NoError(t, r.DeleteTree("sub"))

	_, err := os.Stat(filepath.Join(r.Dir(), "sub"))
	assert.True(t, os.IsNotExist(err))

	// Missing trees delete cleanly.
	assert.NoError(t, r.DeleteTree("sub"))
}

func TestReplica_DeleteTree_RefusesRoot(t *testing.T) {
	r := newTestReplica(t)

	assert.Error(t, r.DeleteTree(""))
	assert.Error(t, r.DeleteTree("."))
}

func TestReplica_Mkdir_SingleLevel(t *testing.T) {
	r := newTestReplica(t)

	require.NoError(t, r.Mkdir("sub"))

	// Parent levels are not created implicitly.
	assert.Error(t, r.Mkdir("missing/child"))
}

func TestReplica_Resolve_Traversal(t *testing.T) {
	r := newTestReplica(t)

	tests := []struct {
		name    string
		relPath string
	}{
		{name: "parent escape", relPath: "../escape.txt"},
		{name: "nested parent escape", relPath: "sub/../../escape.txt"},
		{name: "windows style escape", relPath: `..\escape.txt`},
		{name: "null byte", relPath: "a\x00b.txt"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := r.Path(tt.relPath)
			assert.ErrorIs(t, err, syncerrors.ErrPathTraversal)
		})
	}
}

func TestReplica_Resolve_RootAliases(t *testing.T) {
	r := newTestReplica(t)

	for _, rel := range []string{"", "."} {
		got, err := r.Path(rel)
		require.NoError(t, err)
		assert.Equal(t, r.Dir(), got)
	}
}

func TestReplica_Stat(t *testing.T) {
	r := newTestReplica(t)

	require.NoError(t, r.WriteFrom("a.txt", strings.NewReader("12345")))

	info, err := r.Stat("a.txt")
	require.NoError(t, err)
	assert.Equal(t, int64(5), info.Size())

	_, err = r.Stat("missing.txt")
	assert.True(t, os.IsNotExist(err))
}
