// Package event defines the canonical event envelope recorded to an
// eventfold log: a domain-defined type, an arbitrary payload, a timestamp,
// and a handful of optional bookkeeping fields.
//
// Events are constructed in user code, serialized exactly once on append,
// and never mutated after that. The encoded form is always a single line
// of compact JSON — no pretty-printing, no embedded raw newlines.
package event

import (
	"encoding/json"
	"fmt"
	"time"
)

// Event is one unit of input to a reducer fold.
type Event struct {
	Type  string      `json:"type"`
	Data  interface{} `json:"data"`
	TS    uint64      `json:"ts"`
	ID    *string     `json:"id,omitempty"`
	Actor *string     `json:"actor,omitempty"`
	Meta  interface{} `json:"meta,omitempty"`
}

// New constructs an Event with the current wall-clock time and no optional
// fields set.
func New(eventType string, data interface{}) Event {
	return Event{
		Type: eventType,
		Data: data,
		TS:   uint64(time.Now().Unix()),
	}
}

// WithID returns a copy of e with its id field set.
func (e Event) WithID(id string) Event {
	e.ID = &id
	return e
}

// WithActor returns a copy of e with its actor field set.
func (e Event) WithActor(actor string) Event {
	e.Actor = &actor
	return e
}

// WithMeta returns a copy of e with its meta field set.
func (e Event) WithMeta(meta interface{}) Event {
	e.Meta = meta
	return e
}

// Encode renders e as compact single-line JSON, without a trailing newline.
// json.Marshal never emits raw newlines for string values — control
// characters including "\n" are escape-encoded — so the single-line
// invariant holds for any Data/Meta payload.
func (e Event) Encode() ([]byte, error) {
	if e.Type == "" {
		return nil, fmt.Errorf("event: type must not be empty")
	}
	return json.Marshal(e)
}

// Decode parses a single encoded line back into an Event. It tolerates the
// legacy format where optional fields are absent, and returns a structural
// error when a required field (type) is missing.
func Decode(line []byte) (Event, error) {
	var e Event
	if err := json.Unmarshal(line, &e); err != nil {
		return Event{}, fmt.Errorf("event: decode: %w", err)
	}
	if e.Type == "" {
		return Event{}, fmt.Errorf("event: decode: missing required field %q", "type")
	}
	return e, nil
}
