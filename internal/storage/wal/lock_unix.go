//go:build unix

package wal

// ============================================================================
// Advisory Locking
// Responsibility: acquire/release a non-blocking exclusive advisory lock on
// the active log's file descriptor, the way
// wyf-ACCEPT-eth2030/pkg/core/rawdb/filedb.go locks its data file — via
// syscall.Flock there, via golang.org/x/sys/unix here for the same call
// shape without the build-tag sprawl a raw syscall.Flock wrapper needs.
// ============================================================================

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// tryLockExclusive attempts a non-blocking exclusive lock on f. It never
// blocks: if another process (or, on some platforms, another open
// descriptor within this one) already holds the lock, it returns
// ErrLockHeld immediately.
func tryLockExclusive(f *os.File) error {
	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrLockHeld, f.Name(), err)
	}
	return nil
}

// unlock releases a lock previously acquired with tryLockExclusive. It is
// also released implicitly when the descriptor is closed or the process
// exits.
func unlock(f *os.File) error {
	return unix.Flock(int(f.Fd()), unix.LOCK_UN)
}
