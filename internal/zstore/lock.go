package zstore

// flockSynchronizer is the optional Options.Synchronizer implementation:
// an advisory lock on a ".lock" sidecar file, taken when a store is
// opened in any mode other than ModeRead and released by Store.Close.
// Adapted from the teacher's internal/control/control.go,
// which uses golang.org/x/sys/unix to manage a memory-mapped control
// file; here the same package provides unix.Flock instead, since a
// consolidated-metadata arena (not a mapped control block) is this
// backend's shared structure and a whole-file advisory lock is the
// simplest faithful primitive for "single-writer" (spec.md §5 — "the
// backend does not take a file-system lock; that is the deployment's
// responsibility" unless Options.Synchronizer opts in).
//
// Only meaningful for path-based stores (Directory, NestedDirectory);
// Temp and Remote stores ignore it, since there is no shared filesystem
// location to lock.

import (
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"
)

type flockSynchronizer struct {
	path string
	file *os.File
}

func newFlockSynchronizer(rootPath string) *flockSynchronizer {
	return &flockSynchronizer{path: filepath.Join(rootPath, ".lock")}
}

// Lock blocks until it acquires an exclusive advisory lock.
func (l *flockSynchronizer) Lock() error {
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return fmt.Errorf("zstore: open lock file: %w", err)
	}
	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX); err != nil {
		_ = f.Close()
		return fmt.Errorf("zstore: flock: %w", err)
	}
	l.file = f
	return nil
}

// Unlock releases the lock and closes the sidecar file handle.
func (l *flockSynchronizer) Unlock() error {
	if l.file == nil {
		return nil
	}
	err := unix.Flock(int(l.file.Fd()), unix.LOCK_UN)
	closeErr := l.file.Close()
	l.file = nil
	if err != nil {
		return err
	}
	return closeErr
}
