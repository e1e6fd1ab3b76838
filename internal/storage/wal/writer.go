package wal

// ============================================================================
// Writer
// Responsibility: the exclusive owner of the active log file. Performs
// atomic appends (encode, write, fsync), computes per-line hashes, holds
// the advisory lock, and drives rotation (refresh views, compress the
// active log into the archive, truncate, reset view offsets).
//
// Grounded in the teacher's internal/storage/wal/wal.go (open-append-sync
// append path, Rotate's "close, rename, reopen" shape) and pkg/event for
// the line format; reworked around byte offsets instead of sequence
// numbers, and without the batch-commit goroutine — every append is
// fsynced synchronously, per spec (eventfold trades throughput for
// simplicity; this is a single-writer embedded primitive, not a queue).
// ============================================================================

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/ChuLiYu/eventfold/internal/archive"
	"github.com/ChuLiYu/eventfold/pkg/event"
)

// LockMode selects whether Open acquires the advisory exclusive lock.
type LockMode int

const (
	// LockFlock acquires a non-blocking exclusive advisory lock (default).
	LockFlock LockMode = iota
	// LockNone skips locking entirely — for test scenarios that
	// deliberately bypass writer exclusivity.
	LockNone
)

const (
	activeLogName = "app.jsonl"
	archiveName   = "archive.jsonl.zst"
)

// ViewSet is the subset of the view registry the writer needs to drive
// rotation. internal/view.Registry satisfies this without either package
// importing the other.
type ViewSet interface {
	RefreshAll(r Reader) error
	ResetOffsets() error
}

// Writer exclusively owns the active log's file handle.
type Writer struct {
	mu sync.Mutex

	dir         string
	activePath  string
	archivePath string

	f        *os.File
	lockMode LockMode
	closed   bool

	maxLogSize uint64
	onRotate   func() error
}

// Open creates dir, dir/views, and app.jsonl as needed, opens app.jsonl in
// append mode, and — unless lockMode is LockNone — acquires the exclusive
// advisory lock. Lock acquisition never blocks: contention surfaces as
// ErrLockHeld immediately.
func Open(dir string, lockMode LockMode, maxLogSize uint64) (*Writer, error) {
	if err := os.MkdirAll(filepath.Join(dir, "views"), 0o755); err != nil {
		return nil, fmt.Errorf("wal: create directories: %w", err)
	}

	activePath := filepath.Join(dir, activeLogName)
	archivePath := filepath.Join(dir, archiveName)

	f, err := os.OpenFile(activePath, os.O_CREATE|os.O_APPEND|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("wal: open active log: %w", err)
	}

	if lockMode == LockFlock {
		if err := tryLockExclusive(f); err != nil {
			f.Close()
			return nil, err
		}
	}

	return &Writer{
		dir:         dir,
		activePath:  activePath,
		archivePath: archivePath,
		f:           f,
		lockMode:    lockMode,
		maxLogSize:  maxLogSize,
	}, nil
}

// ActivePath returns the path to app.jsonl.
func (w *Writer) ActivePath() string { return w.activePath }

// ArchivePath returns the path to archive.jsonl.zst.
func (w *Writer) ArchivePath() string { return w.archivePath }

// SetRotateHook registers the callback Writer invokes after an append
// whose end offset meets or exceeds the configured max log size (0
// disables auto-rotation). The hook is invoked with no locks held, so it
// is safe for it to call Rotate.
func (w *Writer) SetRotateHook(hook func() error) {
	w.mu.Lock()
	w.onRotate = hook
	w.mu.Unlock()
}

// MaybeAutoRotate runs the same threshold check Append runs, for callers
// that want the open-time auto-rotation behavior described in the spec
// ("open with an existing active log over max_log_size triggers rotation
// before returning").
func (w *Writer) MaybeAutoRotate() error {
	w.mu.Lock()
	size, err := w.activeSizeLocked()
	hook := w.onRotate
	threshold := w.maxLogSize
	w.mu.Unlock()
	if err != nil {
		return err
	}
	if threshold > 0 && size >= threshold && hook != nil {
		return hook()
	}
	return nil
}

func (w *Writer) activeSizeLocked() (uint64, error) {
	info, err := os.Stat(w.activePath)
	if err != nil {
		return 0, fmt.Errorf("wal: stat active log: %w", err)
	}
	return uint64(info.Size()), nil
}

// Append encodes ev, writes it followed by a newline, and fsyncs before
// returning. Two successive appends on the same Writer satisfy
// second.StartOffset == first.EndOffset.
func (w *Writer) Append(ev event.Event) (AppendResult, error) {
	return w.append(ev, nil)
}

// AppendIf performs a conditional append: it succeeds only if the active
// log's current size equals expectedOffset and (when expectedOffset > 0)
// the line ending at expectedOffset-1 hashes to expectedHash. On mismatch
// it returns a *Conflict without writing anything.
func (w *Writer) AppendIf(ev event.Event, expectedOffset uint64, expectedHash string) (AppendResult, error) {
	check := func() error {
		actual, err := w.activeSizeLocked()
		if err != nil {
			return err
		}
		if actual != expectedOffset {
			return &Conflict{ExpectedOffset: expectedOffset, ActualOffset: actual, ExpectedHash: expectedHash}
		}
		if expectedOffset == 0 {
			return nil
		}
		r := NewReader(w.activePath, w.archivePath)
		h, ok, err := r.ReadLineHashBefore(expectedOffset)
		if err != nil {
			return err
		}
		if !ok || h != expectedHash {
			c := &Conflict{ExpectedOffset: expectedOffset, ActualOffset: actual, ExpectedHash: expectedHash}
			if ok {
				hh := h
				c.ActualHash = &hh
			}
			return c
		}
		return nil
	}
	return w.append(ev, check)
}

// append performs the shared encode-write-fsync sequence. When precheck is
// non-nil it is run under the writer's lock before the write; a non-nil
// return from precheck (typically a *Conflict) aborts the append with no
// bytes written.
func (w *Writer) append(ev event.Event, precheck func() error) (AppendResult, error) {
	w.mu.Lock()

	if w.closed {
		w.mu.Unlock()
		return AppendResult{}, ErrClosed
	}

	if precheck != nil {
		if err := precheck(); err != nil {
			w.mu.Unlock()
			return AppendResult{}, err
		}
	}

	startOffset, err := w.activeSizeLocked()
	if err != nil {
		w.mu.Unlock()
		return AppendResult{}, err
	}

	lineBytes, err := ev.Encode()
	if err != nil {
		w.mu.Unlock()
		return AppendResult{}, &EncodeError{Cause: err}
	}

	buf := make([]byte, 0, len(lineBytes)+1)
	buf = append(buf, lineBytes...)
	buf = append(buf, '\n')

	if _, err := w.f.Write(buf); err != nil {
		w.mu.Unlock()
		return AppendResult{}, fmt.Errorf("wal: write: %w", err)
	}
	if err := w.f.Sync(); err != nil {
		w.mu.Unlock()
		return AppendResult{}, fmt.Errorf("wal: fsync: %w", err)
	}

	endOffset := startOffset + uint64(len(lineBytes)) + 1
	result := AppendResult{
		StartOffset: startOffset,
		EndOffset:   endOffset,
		LineHash:    lineHash(lineBytes),
	}

	hook := w.onRotate
	threshold := w.maxLogSize
	w.mu.Unlock()

	if threshold > 0 && endOffset >= threshold && hook != nil {
		if err := hook(); err != nil {
			return result, fmt.Errorf("wal: auto-rotate: %w", err)
		}
	}

	return result, nil
}

// Rotate refreshes every view against reader, then — if the active log is
// non-empty — compresses it as one frame appended to the archive,
// truncates it to zero, and resets every view's offset. Rotation on an
// empty active log is a no-op (no frame appended).
func (w *Writer) Rotate(reader Reader, views ViewSet) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return ErrClosed
	}

	if views != nil {
		if err := views.RefreshAll(reader); err != nil {
			return fmt.Errorf("wal: rotate: refresh views: %w", err)
		}
	}

	size, err := w.activeSizeLocked()
	if err != nil {
		return err
	}
	if size == 0 {
		return nil
	}

	data, err := os.ReadFile(w.activePath)
	if err != nil {
		return fmt.Errorf("wal: rotate: read active log: %w", err)
	}

	if err := archive.AppendFrame(w.archivePath, data); err != nil {
		return fmt.Errorf("wal: rotate: archive: %w", err)
	}

	if err := w.f.Truncate(0); err != nil {
		return fmt.Errorf("wal: rotate: truncate: %w", err)
	}
	if err := w.f.Sync(); err != nil {
		return fmt.Errorf("wal: rotate: fsync: %w", err)
	}

	if views != nil {
		if err := views.ResetOffsets(); err != nil {
			return fmt.Errorf("wal: rotate: reset view offsets: %w", err)
		}
	}

	slog.Info("rotated active log into archive", "dir", w.dir, "bytes", size)
	return nil
}

// Close releases the exclusive lock (if held) and closes the underlying
// file handle. The Writer must not be used after Close.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true

	if w.lockMode == LockFlock {
		_ = unlock(w.f)
	}
	return w.f.Close()
}
