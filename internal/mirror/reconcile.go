package mirror

import (
	"log/slog"
	"os"
	"path"
	"path/filepath"
)

// Pass runs one full reconciliation of the replica tree against the
// source tree. Every action is derived fresh from the live filesystem;
// nothing carries over between passes. Pass never returns an error:
// pass-level failures (missing source root, replica root creation) are
// journaled and abort only this pass, per-entry failures are journaled
// and isolated to the entry. The next tick is the retry mechanism.
func (e *Engine) Pass() {
	start := e.clock.Now()
	e.logger.Debug("reconciliation pass starting")

	if !e.dryRun {
		created, err := e.replica.EnsureRoot()
		if err != nil {
			e.recordError("creating replica directory", e.replica.Dir(), err)
			return
		}

		if created {
			e.record("Created replica directory %s", e.replica.Dir())
		}
	}

	if _, err := os.Stat(e.source); err != nil {
		e.recordError("reading source directory", e.source, err)
		return
	}

	e.reconcileDir(e.source, "")

	e.logger.Debug("reconciliation pass complete",
		slog.Duration("elapsed", e.clock.Since(start)),
	)
}

// reconcileDir brings the immediate contents of one replica directory
// into correspondence with its source counterpart, then recurses into
// matched subdirectories. srcDir is the absolute source-side path, rel
// the replica-relative path of the same level ("" for the root).
//
// Per level, in order: copy/overwrite source files, delete stray replica
// files, prune stray replica subdirectories, create and descend into
// source subdirectories. File names match by exact equality; renames are
// not detected. Sibling actions are independent, so traversal order
// within a phase is immaterial.
func (e *Engine) reconcileDir(srcDir, rel string) {
	srcEntries, err := os.ReadDir(srcDir)
	if err != nil {
		e.recordError("listing source directory", srcDir, err)
		return
	}

	repEntries, err := e.replica.ReadDir(rel)
	if err != nil && !os.IsNotExist(err) {
		e.recordError("listing replica directory", rel, err)
		return
	}
	// A missing replica directory (dry run, or Mkdir raced with an
	// external delete) reconciles like an empty one.

	srcFiles, srcDirs := splitEntries(srcEntries)
	repFiles, repDirs := splitEntries(repEntries)

	// Source files: copy missing, overwrite changed.
	for _, entry := range srcFiles {
		name := entry.Name()

		relPath := path.Join(rel, name)
		if e.filter.Excluded(relPath) {
			continue
		}

		srcPath := filepath.Join(srcDir, name)

		if _, exists := repFiles[name]; !exists {
			e.copyFile(srcPath, relPath, false)
			continue
		}

		if !e.overwrite {
			// Existing replica files are never touched, not even compared.
			continue
		}

		repPath, err := e.replica.Path(relPath)
		if err != nil {
			e.recordError("resolving", relPath, err)
			continue
		}

		equal, err := e.cmp.Equal(srcPath, repPath)
		if err != nil {
			e.recordError("comparing", relPath, err)
			continue
		}

		if equal {
			// Identical content is a silent no-op. This is what makes
			// repeated passes idempotent.
			continue
		}

		e.copyFile(srcPath, relPath, true)
	}

	// Stray replica files: delete anything without a source counterpart.
	for _, entry := range repEntries {
		name := entry.Name()
		if _, isFile := repFiles[name]; !isFile {
			continue
		}

		if _, exists := srcFiles[name]; exists {
			continue
		}

		relPath := path.Join(rel, name)
		if e.filter.Excluded(relPath) {
			continue
		}

		if e.dryRun {
			e.record("Deleted file %s (dry run)", relPath)
			continue
		}

		if err := e.replica.DeleteFile(relPath); err != nil {
			e.recordError("deleting", relPath, err)
			continue
		}

		e.record("Deleted file %s", relPath)
	}

	// Stray replica subdirectories: pruned recursively. This also clears
	// a replica directory whose name now belongs to a source file, so the
	// next pass can copy the file in its place.
	for _, entry := range repEntries {
		name := entry.Name()
		if _, isDir := repDirs[name]; !isDir {
			continue
		}

		if _, exists := srcDirs[name]; exists {
			continue
		}

		relPath := path.Join(rel, name)
		if e.filter.Excluded(relPath) {
			continue
		}

		if e.dryRun {
			e.record("Deleted directory %s (dry run)", relPath)
			continue
		}

		if err := e.replica.DeleteTree(relPath); err != nil {
			e.recordError("deleting directory", relPath, err)
			continue
		}

		e.record("Deleted directory %s", relPath)
	}

	// Source subdirectories: create missing levels, then descend. A
	// failed creation skips the descent for this pass only.
	for _, entry := range srcDirs {
		name := entry.Name()

		relPath := path.Join(rel, name)
		if e.filter.Excluded(relPath) {
			continue
		}

		if _, exists := repDirs[name]; !exists {
			if e.dryRun {
				e.record("Created directory %s (dry run)", relPath)
			} else {
				if err := e.replica.Mkdir(relPath); err != nil {
					e.recordError("creating directory", relPath, err)
					continue
				}

				e.record("Created directory %s", relPath)
			}
		}

		e.reconcileDir(filepath.Join(srcDir, name), relPath)
	}
}

// copyFile streams one source file into the replica, journaling the
// outcome. overwrite selects the journal verb; the write path is the
// same either way.
func (e *Engine) copyFile(srcPath, relPath string, overwrite bool) {
	verb := "Copied"
	if overwrite {
		verb = "Overwrote"
	}

	if e.dryRun {
		e.record("%s file %s (dry run)", verb, relPath)
		return
	}

	src, err := os.Open(srcPath) //nolint:gosec // G304: srcPath comes from a directory listing under the source root
	if err != nil {
		e.recordError("reading", relPath, err)
		return
	}
	defer src.Close()

	if err := e.replica.WriteFrom(relPath, src); err != nil {
		e.recordError("copying", relPath, err)
		return
	}

	e.record("%s file %s", verb, relPath)
}

// splitEntries partitions a directory listing into regular files and
// subdirectories, keyed by name. Symlinks and other irregular entries
// are dropped: the mirror has no symlink semantics.
func splitEntries(entries []os.DirEntry) (files, dirs map[string]os.DirEntry) {
	files = make(map[string]os.DirEntry)
	dirs = make(map[string]os.DirEntry)

	for _, entry := range entries {
		switch {
		case entry.IsDir():
			dirs[entry.Name()] = entry
		case entry.Type().IsRegular():
			files[entry.Name()] = entry
		}
	}

	return files, dirs
}
