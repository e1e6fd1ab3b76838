// Package views collects example reducers demonstrating the view
// engine: a minimal counter and a small todo-list fold, grounded in the
// teacher's job lifecycle (internal/controller's pending/in-flight/
// completed/dead states) but expressed as pure reducers over events
// instead of a mutable job map.
package views

import "github.com/ChuLiYu/eventfold/pkg/event"

// CounterState counts events of a single type.
type CounterState struct {
	Count int `json:"count"`
}

// NewCounterReducer returns a reducer counting events whose Type equals
// eventType, leaving state unchanged for anything else.
func NewCounterReducer(eventType string) func(CounterState, *event.Event) CounterState {
	return func(state CounterState, ev *event.Event) CounterState {
		if ev.Type != eventType {
			return state
		}
		state.Count++
		return state
	}
}
