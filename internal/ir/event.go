package ir

import "time"

// EventType names a state transition observed on a notebook.
type EventType string

const (
	EventCellAdded      EventType = "cell_added"
	EventCellDeleted    EventType = "cell_deleted"
	EventContentChanged EventType = "content_changed"
	EventKindChanged    EventType = "kind_changed"
	EventActiveChanged  EventType = "active_changed"
	EventCellStarted    EventType = "cell_started"
	EventCellCompleted  EventType = "cell_completed"
	EventCellCancelled  EventType = "cell_cancelled"
	EventRunStarted     EventType = "run_started"
	EventRunFinished    EventType = "run_finished"
	EventRunStopped     EventType = "run_stopped"
)

// Valid reports whether t is one of the event types above.
func (t EventType) Valid() bool {
	switch t {
	case EventCellAdded, EventCellDeleted, EventContentChanged, EventKindChanged, EventActiveChanged,
		EventCellStarted, EventCellCompleted, EventCellCancelled,
		EventRunStarted, EventRunFinished, EventRunStopped:
		return true
	}
	return false
}

// Event records a single notebook transition.
//
// Seq is strictly increasing within a notebook. At is the scheduler offset
// at which the transition happened: virtual time in tests and replay, time
// since session start in real-time sessions.
type Event struct {
	Seq     int64         `json:"seq"`
	At      time.Duration `json:"at"`
	Type    EventType     `json:"type"`
	CellID  CellID        `json:"cell_id,omitempty"`
	Kind    CellKind      `json:"kind,omitempty"`
	Content *string       `json:"content,omitempty"` // cell_added, content_changed
	Output  *string       `json:"output,omitempty"`  // cell_completed of a code cell
	RunID   int64         `json:"run_id,omitempty"`  // run_* and cells completed by a run-all
}

// CanonicalMap converts the event to the map form accepted by MarshalCanonical.
// Absent optional fields are omitted rather than encoded as null.
func (e Event) CanonicalMap() map[string]any {
	m := map[string]any{
		"seq":   e.Seq,
		"at_ms": e.At.Milliseconds(),
		"type":  string(e.Type),
	}
	if e.CellID != "" {
		m["cell_id"] = string(e.CellID)
	}
	if e.Kind != "" {
		m["kind"] = string(e.Kind)
	}
	if e.Content != nil {
		m["content"] = *e.Content
	}
	if e.Output != nil {
		m["output"] = *e.Output
	}
	if e.RunID != 0 {
		m["run_id"] = e.RunID
	}
	return m
}

// SameTransition reports whether two events describe the same transition,
// ignoring Seq and At. Used when comparing a replayed trace against a
// recorded one, where timing of real sessions is not reproducible exactly.
func (e Event) SameTransition(o Event) bool {
	return e.Type == o.Type &&
		e.CellID == o.CellID &&
		e.Kind == o.Kind &&
		e.RunID == o.RunID &&
		equalStringPtr(e.Content, o.Content) &&
		equalStringPtr(e.Output, o.Output)
}

func equalStringPtr(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
