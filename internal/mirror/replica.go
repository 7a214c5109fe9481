package mirror

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	syncerrors "github.com/alexjbarnes/replica-sync/internal/errors"
)

const (
	// replicaDirPerm is the permission mode for directories created inside
	// the replica.
	replicaDirPerm = fs.FileMode(0o755)

	// replicaFilePerm is the permission mode for files written inside the
	// replica.
	replicaFilePerm = fs.FileMode(0o644)
)

// Replica provides filesystem operations on the writable side of the
// mirror. Every mutation goes through relative-path resolution that
// rejects traversal outside the replica root. The source side is read
// directly by the engine and never mutated.
//
// Writes are serialized by an exclusive lock so an optional concurrent
// reader (e.g. a future status endpoint) never observes partial writes.
type Replica struct {
	dir string
	mu  sync.RWMutex
}

// NewReplica creates a Replica rooted at dir. The directory is not
// created here: the engine creates a missing root at the start of each
// pass so the creation can be journaled. dir must be an absolute path
// (resolved at config load time).
func NewReplica(dir string) (*Replica, error) {
	if dir == "" {
		return nil, fmt.Errorf("replica directory: %w", syncerrors.ErrEmptyPath)
	}

	return &Replica{dir: dir}, nil
}

// Dir returns the root directory of the replica.
func (r *Replica) Dir() string {
	return r.dir
}

// EnsureRoot creates the replica root (including missing ancestors) if it
// does not exist. Returns true when the directory was created by this call.
func (r *Replica) EnsureRoot() (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, err := os.Stat(r.dir); err == nil {
		return false, nil
	} else if !os.IsNotExist(err) {
		return false, fmt.Errorf("stat replica root %s: %w", r.dir, err)
	}

	if err := os.MkdirAll(r.dir, replicaDirPerm); err != nil {
		return false, fmt.Errorf("creating replica root %s: %w", r.dir, err)
	}

	return true, nil
}

// Path resolves a relative path to its absolute location inside the
// replica, rejecting traversal. An empty relative path resolves to the
// root itself.
func (r *Replica) Path(relPath string) (string, error) {
	return r.resolve(relPath)
}

// ReadDir lists the immediate entries of a directory by relative path.
// An empty relative path lists the root.
func (r *Replica) ReadDir(relPath string) ([]os.DirEntry, error) {
	absPath, err := r.resolve(relPath)
	if err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	return os.ReadDir(absPath)
}

// WriteFrom creates or truncates a file by relative path and streams
// content into it from src.
func (r *Replica) WriteFrom(relPath string, src io.Reader) error {
	absPath, err := r.resolve(relPath)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	f, err := os.OpenFile(absPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, replicaFilePerm) //nolint:gosec // G304: absPath validated by resolve
	if err != nil {
		return fmt.Errorf("creating %s: %w", relPath, err)
	}

	if _, err := io.Copy(f, src); err != nil {
		f.Close()
		return fmt.Errorf("writing %s: %w", relPath, err)
	}

	if err := f.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", relPath, err)
	}

	return nil
}

// DeleteFile removes a file by relative path. Returns nil if the file
// does not exist.
func (r *Replica) DeleteFile(relPath string) error {
	absPath, err := r.resolve(relPath)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	err = os.Remove(absPath)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing %s: %w", relPath, err)
	}

	return nil
}

// DeleteTree removes a directory and all its contents by relative path.
// Returns nil if the directory does not exist. Refuses to operate on the
// root itself.
func (r *Replica) DeleteTree(relPath string) error {
	if relPath == "" || relPath == "." {
		return fmt.Errorf("refusing to delete replica root")
	}

	absPath, err := r.resolve(relPath)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	err = os.RemoveAll(absPath)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing directory %s: %w", relPath, err)
	}

	return nil
}

// Mkdir creates a single directory level by relative path. The parent
// must already exist; the engine creates directories level by level as
// it descends.
func (r *Replica) Mkdir(relPath string) error {
	absPath, err := r.resolve(relPath)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := os.Mkdir(absPath, replicaDirPerm); err != nil {
		return fmt.Errorf("creating directory %s: %w", relPath, err)
	}

	return nil
}

// Stat returns file info for a relative path.
func (r *Replica) Stat(relPath string) (os.FileInfo, error) {
	absPath, err := r.resolve(relPath)
	if err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	return os.Stat(absPath)
}

// resolve converts a relative path to an absolute path within the replica
// directory, rejecting path traversal attempts. Validates against null
// bytes, ".." segments, and prefix escape. Symlink targets are not
// chased: symlinked entries are skipped during listing, so none are ever
// created inside the replica by the engine itself.
func (r *Replica) resolve(relPath string) (string, error) {
	if relPath == "" || relPath == "." {
		return r.dir, nil
	}

	if strings.ContainsRune(relPath, 0) {
		return "", fmt.Errorf("path contains null byte %q: %w", relPath, syncerrors.ErrPathTraversal)
	}

	// Normalize backslashes to forward slashes so the ".." segment check
	// below catches Windows-style traversal.
	relPath = strings.ReplaceAll(relPath, "\\", "/")

	for _, seg := range strings.Split(relPath, "/") {
		if seg == ".." {
			return "", fmt.Errorf("path contains .. segment %q: %w", relPath, syncerrors.ErrPathTraversal)
		}
	}

	absPath := filepath.Join(r.dir, relPath)
	if absPath != r.dir && !strings.HasPrefix(absPath, r.dir+string(os.PathSeparator)) {
		return "", fmt.Errorf("%q: %w", relPath, syncerrors.ErrPathTraversal)
	}

	return absPath, nil
}
