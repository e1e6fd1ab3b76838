package wal

// ============================================================================
// Type Definitions
// Responsibility: the small value types Append/Replay/Wait hand back to
// callers. The log line format itself lives in pkg/event.
// ============================================================================

// AppendResult describes where an event landed in the active log.
type AppendResult struct {
	StartOffset uint64
	EndOffset   uint64
	LineHash    string
}

// WaitOutcome is the result of a bounded wait for new events.
type WaitOutcome int

const (
	// Timeout means the wait elapsed with no confirmed new data.
	Timeout WaitOutcome = iota
	// NewData means active_log_size() grew past the watched offset.
	NewData
)

// WaitResult is returned by Reader.WaitForEvents.
type WaitResult struct {
	Outcome WaitOutcome
	Size    uint64
}
