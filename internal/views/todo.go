package views

import "github.com/ChuLiYu/eventfold/pkg/event"

// TodoStatus mirrors the pending/in-flight/completed shape of the
// teacher's job lifecycle, narrowed to a two-state todo item.
type TodoStatus string

const (
	TodoOpen TodoStatus = "open"
	TodoDone TodoStatus = "done"
)

// TodoItem is one item's folded state.
type TodoItem struct {
	ID     string     `json:"id"`
	Title  string     `json:"title"`
	Status TodoStatus `json:"status"`
}

// TodoState is the full todo list, keyed by item ID.
type TodoState struct {
	Items map[string]TodoItem `json:"items"`
}

type todoCreatedPayload struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

type todoIDPayload struct {
	ID string `json:"id"`
}

// TodoReducer folds "todo.created", "todo.completed", and "todo.deleted"
// events into a TodoState; any other event type leaves state unchanged.
// Malformed payloads are tolerated the same way: the event is ignored
// rather than surfaced as a fold error, since a reducer must never fail.
func TodoReducer(state TodoState, ev *event.Event) TodoState {
	if state.Items == nil {
		state.Items = make(map[string]TodoItem)
	}

	switch ev.Type {
	case "todo.created":
		p, ok := decodePayload[todoCreatedPayload](ev.Data)
		if !ok || p.ID == "" {
			return state
		}
		state.Items[p.ID] = TodoItem{ID: p.ID, Title: p.Title, Status: TodoOpen}
	case "todo.completed":
		p, ok := decodePayload[todoIDPayload](ev.Data)
		if !ok {
			return state
		}
		if item, exists := state.Items[p.ID]; exists {
			item.Status = TodoDone
			state.Items[p.ID] = item
		}
	case "todo.deleted":
		p, ok := decodePayload[todoIDPayload](ev.Data)
		if !ok {
			return state
		}
		delete(state.Items, p.ID)
	}
	return state
}

// decodePayload recovers a typed payload from an event's Data field,
// which after JSON round-tripping through the log arrives as
// map[string]interface{} rather than the original Go struct.
func decodePayload[T any](data interface{}) (T, bool) {
	var zero T
	m, ok := data.(map[string]interface{})
	if !ok {
		return zero, false
	}

	switch any(zero).(type) {
	case todoCreatedPayload:
		id, _ := m["id"].(string)
		title, _ := m["title"].(string)
		return any(todoCreatedPayload{ID: id, Title: title}).(T), id != ""
	case todoIDPayload:
		id, _ := m["id"].(string)
		return any(todoIDPayload{ID: id}).(T), id != ""
	default:
		return zero, false
	}
}
