package wal

// ============================================================================
// Error Definitions
// Purpose: the stable error taxonomy surfaced at the writer/reader boundary.
// Recoverable conditions (snapshot decode failure, integrity mismatch,
// partial trailing lines) are handled internally by the view engine and
// snapshot store and never reach callers of this package.
// ============================================================================

import (
	"errors"
	"fmt"
)

var (
	// ErrLockHeld indicates another writer already holds the exclusive
	// advisory lock on the active log.
	ErrLockHeld = errors.New("wal: active log is locked by another writer")

	// ErrClosed indicates the writer has already been closed.
	ErrClosed = errors.New("wal: writer is closed")
)

// EncodeError wraps a failure to serialize an event for append.
type EncodeError struct {
	Cause error
}

func (e *EncodeError) Error() string {
	return fmt.Sprintf("wal: encode event: %v", e.Cause)
}

func (e *EncodeError) Unwrap() error { return e.Cause }

// DecodeError wraps a failure to parse a log line during iteration, naming
// the byte offset at which the line began.
type DecodeError struct {
	Offset uint64
	Cause  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("wal: decode line at offset %d: %v", e.Offset, e.Cause)
}

func (e *DecodeError) Unwrap() error { return e.Cause }

// Conflict reports why a conditional append was rejected: the active log's
// size (and, when available, the hash of its trailing line) no longer
// matched what the caller expected.
type Conflict struct {
	ExpectedOffset uint64
	ActualOffset   uint64
	ExpectedHash   string
	ActualHash     *string
}

func (c *Conflict) Error() string {
	if c.ActualHash != nil {
		return fmt.Sprintf("wal: append conflict: expected offset=%d hash=%s, actual offset=%d hash=%s",
			c.ExpectedOffset, c.ExpectedHash, c.ActualOffset, *c.ActualHash)
	}
	return fmt.Sprintf("wal: append conflict: expected offset=%d, actual offset=%d",
		c.ExpectedOffset, c.ActualOffset)
}
