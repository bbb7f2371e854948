// Package testutil holds helpers shared by tests of several packages.
package testutil

import (
	"sync"

	"github.com/roach88/nbsim/internal/ir"
)

// EventRecorder collects notebook events for assertions.
//
// Thread-safety: all methods are safe for concurrent use, so a recorder can
// be read from a test goroutine while a real-time session loop appends.
type EventRecorder struct {
	mu     sync.Mutex
	events []ir.Event
}

// NewEventRecorder creates an empty recorder.
func NewEventRecorder() *EventRecorder {
	return &EventRecorder{}
}

// OnEvent implements notebook.Observer.
func (r *EventRecorder) OnEvent(e ir.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

// Events returns a copy of the recorded events.
func (r *EventRecorder) Events() []ir.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]ir.Event, len(r.events))
	copy(out, r.events)
	return out
}

// OfType returns the recorded events of the given type, in order.
func (r *EventRecorder) OfType(t ir.EventType) []ir.Event {
	var out []ir.Event
	for _, e := range r.Events() {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

// Types returns the type of every recorded event, in order.
func (r *EventRecorder) Types() []ir.EventType {
	events := r.Events()
	out := make([]ir.EventType, len(events))
	for i, e := range events {
		out[i] = e.Type
	}
	return out
}

// Reset discards everything recorded so far.
func (r *EventRecorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}
