// Package view implements the incremental fold engine: a named reducer
// over the event log, its in-memory state, and the snapshot that lets a
// restart skip replaying everything from offset zero.
//
// Grounded in the teacher's internal/controller/controller.go
// (loadSnapshot → replayWAL recovery shape) and internal/snapshot's
// atomic store, generalized from one fixed job-state fold to an
// arbitrary typed reducer per the capability-set abstraction the view
// registry needs to hold heterogeneous state types side by side.
package view

import (
	"fmt"
	"log/slog"

	"github.com/ChuLiYu/eventfold/internal/metrics"
	"github.com/ChuLiYu/eventfold/internal/snapshot"
	"github.com/ChuLiYu/eventfold/internal/storage/wal"
	"github.com/ChuLiYu/eventfold/pkg/event"
)

// Reducer folds one event into state. It must be pure, deterministic,
// and tolerant of event types it doesn't recognize (leave state
// unchanged rather than error).
type Reducer[S any] func(state S, ev *event.Event) S

// View owns one reducer's state and its persisted snapshot. It borrows a
// Reader for the duration of each Refresh; nothing about View is safe
// for concurrent use without external synchronization (the orchestrator
// serializes access the same way it serializes the writer).
type View[S any] struct {
	viewName string
	reduce   Reducer[S]
	store    *snapshot.Store[S]
	metrics  *metrics.Collector

	loaded bool
	state  S
	offset uint64
	hash   string

	// archiveRead is true once state already reflects everything the
	// archive holds, whether from a ReadFull fold in this process or
	// from an adopted snapshot. offset alone can't carry this: rotation
	// zeroes offset while leaving state populated from the
	// already-archived events, so offset==0 after a rotation means
	// "read only the active log from its start", not "replay the
	// archive again".
	archiveRead bool
}

// New constructs a view named name, folding with reduce, persisting
// through store.
func New[S any](name string, reduce Reducer[S], store *snapshot.Store[S]) *View[S] {
	return &View[S]{viewName: name, reduce: reduce, store: store}
}

// WithMetrics attaches a Collector so integrity failures report to it in
// addition to the existing log warning. Optional — a View with no
// Collector attached simply doesn't record the metric.
func (v *View[S]) WithMetrics(m *metrics.Collector) *View[S] {
	v.metrics = m
	return v
}

// Name returns the view's registry key.
func (v *View[S]) Name() string { return v.viewName }

// State returns the most recently computed state without refreshing.
func (v *View[S]) State() S { return v.state }

// Offset returns the log offset the current state reflects.
func (v *View[S]) Offset() uint64 { return v.offset }

// Refresh folds every event since the view's last recorded offset,
// lazily loading from snapshot on first call and self-healing when the
// loaded snapshot fails an integrity check against the current log.
func (v *View[S]) Refresh(r wal.Reader) (S, error) {
	if !v.loaded {
		if snap, found := v.store.Load(); found {
			v.state, v.offset, v.hash = snap.State, snap.Offset, snap.LineHash
			// An adopted snapshot already reflects the archive as of
			// whenever it was written — checkIntegrity may still discard
			// it below, in which case it resets archiveRead too.
			v.archiveRead = true
			if v.offset > 0 {
				if err := v.checkIntegrity(r); err != nil {
					return v.state, err
				}
			}
		}
		v.loaded = true
	}

	return v.foldAndPersist(r)
}

// foldAndPersist runs fold and, iff it was productive, persists the
// resulting (state, offset, hash) — step 5 of the refresh algorithm.
func (v *View[S]) foldAndPersist(r wal.Reader) (S, error) {
	folded, err := v.fold(r)
	if err != nil {
		return v.state, err
	}
	if folded {
		if err := v.store.Write(snapshot.Snapshot[S]{State: v.state, Offset: v.offset, LineHash: v.hash}); err != nil {
			return v.state, err
		}
	}
	return v.state, nil
}

// checkIntegrity validates an adopted snapshot against the current log.
// An invalid snapshot is not an error: it resets state to defaults and
// logs a warning so the subsequent fold performs a full replay.
func (v *View[S]) checkIntegrity(r wal.Reader) error {
	size, err := r.ActiveLogSize()
	if err != nil {
		return err
	}

	status := integrityValid
	if v.offset > size {
		status = integrityOffsetBeyondEOF
	} else if h, ok, err := r.ReadLineHashBefore(v.offset); err != nil {
		return err
	} else if ok && h != v.hash {
		status = integrityHashMismatch
	}

	if status != integrityValid {
		slog.Warn("view snapshot failed integrity check, rebuilding", "view", v.viewName, "reason", status, "offset", v.offset)
		if v.metrics != nil {
			v.metrics.RecordIntegrityFailure(v.viewName)
		}
		var zero S
		v.state, v.offset, v.hash = zero, 0, ""
		v.archiveRead = false
	}
	return nil
}

// integrityStatus distinguishes why a loaded snapshot was rejected, so
// logging can tell the two failure modes apart instead of collapsing
// both into a single boolean.
type integrityStatus int

const (
	integrityValid integrityStatus = iota
	integrityOffsetBeyondEOF
	integrityHashMismatch
)

func (s integrityStatus) String() string {
	switch s {
	case integrityOffsetBeyondEOF:
		return "offset beyond end of active log"
	case integrityHashMismatch:
		return "line hash mismatch at stored offset"
	default:
		return "valid"
	}
}

// fold replays events needed to bring state current: a read_full from the
// archive's start the first time a view's state is populated (no snapshot
// adopted, nothing folded yet), read_from the view's own offset on every
// fold after that — including the one right after a rotation, where
// offset has been reset to zero but state already accounts for the
// archive, so re-running read_full would double-count it.
func (v *View[S]) fold(r wal.Reader) (bool, error) {
	var folded bool

	if !v.archiveRead {
		it, err := r.ReadFull()
		if err != nil {
			return false, err
		}
		defer it.Close()
		for {
			item, ok, err := it.Next()
			if err != nil {
				return folded, err
			}
			if !ok {
				break
			}
			v.state = v.reduce(v.state, &item.Event)
			v.hash = item.LineHash
			if item.HasOffset {
				v.offset = item.NextOffset
			}
			folded = true
		}
		v.archiveRead = true
		return folded, nil
	}

	it, err := r.ReadFrom(v.offset)
	if err != nil {
		return false, err
	}
	defer it.Close()
	for {
		item, ok, err := it.Next()
		if err != nil {
			return folded, err
		}
		if !ok {
			break
		}
		v.state = v.reduce(v.state, &item.Event)
		v.offset = item.NextOffset
		v.hash = item.LineHash
		folded = true
	}
	return folded, nil
}

// Rebuild discards the persisted snapshot and in-memory state, then
// performs a full replay from the start of the log.
func (v *View[S]) Rebuild(r wal.Reader) (S, error) {
	if err := v.store.Remove(); err != nil {
		return v.state, fmt.Errorf("view %q: remove snapshot: %w", v.viewName, err)
	}
	var zero S
	v.state, v.offset, v.hash, v.loaded = zero, 0, "", true
	v.archiveRead = false
	return v.foldAndPersist(r)
}

// RefreshAgainst implements Handle for the registry; it discards
// Refresh's returned state since typed callers fetch it through Get.
func (v *View[S]) RefreshAgainst(r wal.Reader) error {
	_, err := v.Refresh(r)
	return err
}

// ResetOffset implements Handle: resets offset/hash to zero/empty
// (state is untouched) and persists the updated snapshot. Called by
// Writer.Rotate immediately after a successful rotation, since the
// active log the old offset referred to has just been truncated.
func (v *View[S]) ResetOffset() error {
	v.offset = 0
	v.hash = ""
	// The caller (Writer.Rotate) always refreshes views before archiving,
	// so state already accounts for everything the archive now holds;
	// the next fold must read only the active log from its new start.
	v.archiveRead = true
	return v.store.Write(snapshot.Snapshot[S]{State: v.state, Offset: 0, LineHash: ""})
}

// TypeName reports the Go type of this view's state, for
// ViewTypeMismatch error messages.
func (v *View[S]) TypeName() string {
	return fmt.Sprintf("%T", v.state)
}
