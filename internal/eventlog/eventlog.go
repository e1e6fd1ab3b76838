// Package eventlog composes the writer, reader, snapshot stores, and
// view registry into eventfold's single public handle, mirroring the
// teacher's internal/controller/controller.go: a directory-builder
// config, a compound handle owning every sub-component, and the
// same recovery-on-open shape (here: lazy per-view recovery on first
// refresh rather than an eager loadSnapshot+replayWAL pass, since views
// are independent and needn't all recover before Open returns).
package eventlog

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/ChuLiYu/eventfold/internal/metrics"
	"github.com/ChuLiYu/eventfold/internal/snapshot"
	"github.com/ChuLiYu/eventfold/internal/storage/wal"
	"github.com/ChuLiYu/eventfold/internal/view"
	"github.com/ChuLiYu/eventfold/pkg/event"
)

const viewSchemaVersion = 1

// Builder configures and opens an EventLog: directory, auto-rotation
// threshold, lock mode, and the set of views to register before Open.
type Builder struct {
	dir        string
	maxLogSize uint64
	lockMode   wal.LockMode
	metrics    *metrics.Collector
	viewAdders []func(dir string, reg *view.Registry) error
}

// NewBuilder returns a Builder rooted at dir, with auto-rotation
// disabled and flock locking, matching the documented defaults.
func NewBuilder(dir string) *Builder {
	return &Builder{dir: dir, lockMode: wal.LockFlock}
}

// MaxLogSize sets the auto-rotation threshold in bytes; 0 disables
// auto-rotation (the default).
func (b *Builder) MaxLogSize(n uint64) *Builder {
	b.maxLogSize = n
	return b
}

// LockMode overrides the advisory-lock mode (default LockFlock).
func (b *Builder) LockMode(mode wal.LockMode) *Builder {
	b.lockMode = mode
	return b
}

// Metrics attaches a Collector; every append, rotation, and view
// refresh performed through the resulting EventLog reports to it. Optional
// — a nil Collector (the default) means no metrics are recorded.
func (b *Builder) Metrics(c *metrics.Collector) *Builder {
	b.metrics = c
	return b
}

// RegisterView adds a view named name, folding with reduce, to be
// created under b's directory when Open runs. It is a package-level
// generic function rather than a Builder method because Go methods
// cannot introduce additional type parameters beyond the receiver's.
func RegisterView[S any](b *Builder, name string, reduce view.Reducer[S]) *Builder {
	b.viewAdders = append(b.viewAdders, func(dir string, reg *view.Registry) error {
		path := filepath.Join(dir, "views", name+".snapshot.json")
		store := snapshot.NewStore[S](path, viewSchemaVersion)
		return reg.Add(view.New(name, reduce, store).WithMetrics(b.metrics))
	})
	return b
}

// Open creates the directory structure (if needed), opens the active
// log, registers every configured view, and runs open-time
// auto-rotation if the active log is already over the threshold.
func (b *Builder) Open() (*EventLog, error) {
	w, err := wal.Open(b.dir, b.lockMode, b.maxLogSize)
	if err != nil {
		return nil, err
	}

	reg := view.NewRegistry()
	for _, add := range b.viewAdders {
		if err := add(b.dir, reg); err != nil {
			w.Close()
			return nil, err
		}
	}

	el := &EventLog{
		dir:      b.dir,
		writer:   w,
		reader:   wal.NewReader(w.ActivePath(), w.ArchivePath()),
		registry: reg,
		metrics:  b.metrics,
	}
	w.SetRotateHook(el.Rotate)

	if err := w.MaybeAutoRotate(); err != nil {
		w.Close()
		return nil, fmt.Errorf("eventlog: open-time auto-rotation: %w", err)
	}

	slog.Info("event log opened", "dir", b.dir, "views", reg.Names())
	return el, nil
}

// EventLog is the composite handle returned by Builder.Open: append,
// conditional append, view refresh and typed read access, rotation, and
// the path accessors external tooling needs (the CLI, the debug
// server).
type EventLog struct {
	mu sync.Mutex

	dir      string
	writer   *wal.Writer
	reader   wal.Reader
	registry *view.Registry
	metrics  *metrics.Collector
}

// Dir returns the event log's root directory.
func (e *EventLog) Dir() string { return e.dir }

// ActivePath returns the path to app.jsonl.
func (e *EventLog) ActivePath() string { return e.writer.ActivePath() }

// ArchivePath returns the path to archive.jsonl.zst.
func (e *EventLog) ArchivePath() string { return e.writer.ArchivePath() }

// Reader returns a Reader clone over this log's active and archive
// files. Safe to share across goroutines and to hold past a rotation —
// it carries no file handles, only paths.
func (e *EventLog) Reader() wal.Reader { return e.reader }

// ViewNames returns every registered view's name.
func (e *EventLog) ViewNames() []string { return e.registry.Names() }

// Append appends ev to the active log.
func (e *EventLog) Append(ev event.Event) (wal.AppendResult, error) {
	result, err := e.writer.Append(ev)
	e.recordAppend(result, err)
	return result, err
}

// AppendIf appends ev only if the active log's current (offset, hash)
// matches (expectedOffset, expectedHash).
func (e *EventLog) AppendIf(ev event.Event, expectedOffset uint64, expectedHash string) (wal.AppendResult, error) {
	result, err := e.writer.AppendIf(ev, expectedOffset, expectedHash)
	e.recordAppend(result, err)
	return result, err
}

func (e *EventLog) recordAppend(result wal.AppendResult, err error) {
	if e.metrics == nil {
		return
	}
	var conflict *wal.Conflict
	if errors.As(err, &conflict) {
		e.metrics.RecordConflict()
		return
	}
	if err == nil {
		e.metrics.RecordAppend(int(result.EndOffset - result.StartOffset))
		// Stat rather than use EndOffset: an auto-rotation triggered by
		// this append has already truncated the active log.
		if size, sizeErr := e.reader.ActiveLogSize(); sizeErr == nil {
			e.metrics.SetActiveLogBytes(size)
		}
	}
}

// RefreshAll refreshes every registered view against the current log.
// With a Collector attached, each call is recorded as one refresh under
// the view label "all"; refreshes are not broken down per view, and the
// refresh pass inside Rotate is not recorded.
func (e *EventLog) RefreshAll() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.metrics == nil {
		return e.registry.RefreshAll(e.reader)
	}
	start := time.Now()
	err := e.registry.RefreshAll(e.reader)
	e.metrics.RecordViewRefresh("all", time.Since(start).Seconds())
	return err
}

// View returns the named view's current in-memory state. Call
// RefreshAll first to fold in events appended since the last refresh —
// View itself never folds, it only reads.
func View[S any](e *EventLog, name string) (S, error) {
	return view.Get[S](e.registry, name)
}

// Rotate refreshes every view, compresses the active log into the
// archive, truncates it, and resets view offsets. Safe to call directly
// or to leave to the auto-rotation hook.
func (e *EventLog) Rotate() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.writer.Rotate(e.reader, e.registry); err != nil {
		return err
	}
	if e.metrics != nil {
		e.metrics.RecordRotation()
		e.metrics.SetActiveLogBytes(0)
	}
	return nil
}

// Close releases the writer's lock and file handle.
func (e *EventLog) Close() error {
	return e.writer.Close()
}
