package view

// ============================================================================
// Registry
// Responsibility: the orchestrator's map<name, view-handle>, keyed by
// unique view name. Handle is the capability-set abstraction the spec
// calls for: refresh_against, reset_offset, name, plus a downcast gate
// (Get, below) for typed read access. Stored as an interface value whose
// dynamic type serves as the runtime tag — the type assertion in Get is
// the downcast of that runtime-tagged container, done inline.
// ============================================================================

import (
	"fmt"
	"sync"

	"github.com/ChuLiYu/eventfold/internal/storage/wal"
)

// Handle is the type-erased capability set every *View[S] satisfies,
// letting the registry hold heterogeneous state types side by side.
type Handle interface {
	Name() string
	RefreshAgainst(r wal.Reader) error
	ResetOffset() error
}

// UnknownViewError is returned by Get when no view is registered under
// the requested name.
type UnknownViewError struct {
	Name string
}

func (e *UnknownViewError) Error() string {
	return fmt.Sprintf("view: unknown view %q", e.Name)
}

// ViewTypeMismatchError is returned by Get when the requested type
// parameter does not match the view's registered state type.
type ViewTypeMismatchError struct {
	Name     string
	Expected string
	Actual   string
}

func (e *ViewTypeMismatchError) Error() string {
	return fmt.Sprintf("view: %q is %s, not %s", e.Name, e.Actual, e.Expected)
}

// Registry owns every registered view, keyed by name. It satisfies
// wal.ViewSet, so a Writer can drive rotation directly against it.
type Registry struct {
	mu      sync.Mutex
	handles map[string]Handle
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{handles: make(map[string]Handle)}
}

// Add registers handle under its own Name(). It returns an error if that
// name is already taken.
func (reg *Registry) Add(handle Handle) error {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	if _, exists := reg.handles[handle.Name()]; exists {
		return fmt.Errorf("view: duplicate view name %q", handle.Name())
	}
	reg.handles[handle.Name()] = handle
	return nil
}

// Names returns every registered view name, order unspecified.
func (reg *Registry) Names() []string {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	names := make([]string, 0, len(reg.handles))
	for name := range reg.handles {
		names = append(names, name)
	}
	return names
}

// RefreshAll refreshes every registered view against r. It stops at the
// first error, leaving any views not yet reached unrefreshed.
func (reg *Registry) RefreshAll(r wal.Reader) error {
	reg.mu.Lock()
	handles := make([]Handle, 0, len(reg.handles))
	for _, h := range reg.handles {
		handles = append(handles, h)
	}
	reg.mu.Unlock()

	for _, h := range handles {
		if err := h.RefreshAgainst(r); err != nil {
			return fmt.Errorf("view %q: refresh: %w", h.Name(), err)
		}
	}
	return nil
}

// ResetOffsets resets and persists every registered view's offset —
// called by Writer.Rotate once the active log has been truncated.
func (reg *Registry) ResetOffsets() error {
	reg.mu.Lock()
	handles := make([]Handle, 0, len(reg.handles))
	for _, h := range reg.handles {
		handles = append(handles, h)
	}
	reg.mu.Unlock()

	for _, h := range handles {
		if err := h.ResetOffset(); err != nil {
			return fmt.Errorf("view %q: reset offset: %w", h.Name(), err)
		}
	}
	return nil
}

// Get performs the typed downcast: it looks up name, asserts the
// underlying handle is a *View[S], and returns its current in-memory
// state. Get never refreshes; callers run RefreshAll first to fold in
// newly appended events.
func Get[S any](reg *Registry, name string) (S, error) {
	var zero S

	reg.mu.Lock()
	handle, ok := reg.handles[name]
	reg.mu.Unlock()
	if !ok {
		return zero, &UnknownViewError{Name: name}
	}

	v, ok := handle.(*View[S])
	if !ok {
		return zero, &ViewTypeMismatchError{
			Name:     name,
			Expected: fmt.Sprintf("%T", zero),
			Actual:   typeNameOf(handle),
		}
	}
	return v.State(), nil
}

func typeNameOf(h Handle) string {
	if tn, ok := h.(interface{ TypeName() string }); ok {
		return tn.TypeName()
	}
	return fmt.Sprintf("%T", h)
}

var _ wal.ViewSet = (*Registry)(nil)
