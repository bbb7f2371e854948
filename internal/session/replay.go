package session

import (
	"fmt"

	"github.com/roach88/nbsim/internal/engine"
	"github.com/roach88/nbsim/internal/ir"
	"github.com/roach88/nbsim/internal/notebook"
)

// Recording is everything a Sink stored about one session.
type Recording struct {
	Info     Info
	Commands []Command
	Events   []ir.Event
}

// Replay re-executes the recorded commands against a fresh notebook in
// virtual time and returns the events it produces.
//
// Before each command, scheduled completions are fired one at a time until
// as many events have been produced as had been when the command was
// recorded. After the last command, completions keep firing until the
// recorded event count is reached or nothing is pending. Added cells get
// the ids they were recorded with.
func Replay(rec Recording) ([]ir.Event, error) {
	doc := rec.Info.Document
	if doc == nil {
		return nil, fmt.Errorf("recording %s has no document", rec.Info.ID)
	}
	opts, err := doc.Options()
	if err != nil {
		return nil, fmt.Errorf("recording %s: %w", rec.Info.ID, err)
	}

	var added []ir.CellID
	for _, c := range rec.Commands {
		if c.Op == OpAddCell && c.CellID != "" {
			added = append(added, c.CellID)
		}
	}

	var events []ir.Event
	sched := engine.NewVirtualScheduler()
	opts = append(opts,
		notebook.WithScheduler(sched),
		notebook.WithIDGenerator(notebook.NewFixedIDs(added...)),
		notebook.WithObserver(notebook.ObserverFunc(func(e ir.Event) {
			events = append(events, e)
		})),
	)
	nb, err := notebook.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("recording %s: %w", rec.Info.ID, err)
	}

	for _, cmd := range rec.Commands {
		for int64(len(events)) < cmd.After {
			if sched.RunUntilIdle(1) == 0 {
				return events, fmt.Errorf("command %d (%s) was recorded after %d events, replay stalled at %d",
					cmd.Seq, cmd.Op, cmd.After, len(events))
			}
		}
		// Ignored commands were ignored when recorded too.
		_, _ = Apply(nb, cmd)
	}
	for len(events) < len(rec.Events) && sched.Pending() > 0 {
		sched.RunUntilIdle(1)
	}
	return events, nil
}

// Divergence is the first difference between a recorded and a replayed trace.
type Divergence struct {
	Index    int
	Recorded *ir.Event
	Replayed *ir.Event
}

func (d *Divergence) Error() string {
	switch {
	case d.Recorded == nil:
		return fmt.Sprintf("event %d: replay produced extra %s", d.Index, describe(*d.Replayed))
	case d.Replayed == nil:
		return fmt.Sprintf("event %d: replay is missing %s", d.Index, describe(*d.Recorded))
	default:
		return fmt.Sprintf("event %d: recorded %s, replayed %s", d.Index, describe(*d.Recorded), describe(*d.Replayed))
	}
}

func describe(e ir.Event) string {
	if e.CellID == "" {
		return string(e.Type)
	}
	return fmt.Sprintf("%s(%s)", e.Type, e.CellID)
}

// Verify replays rec and compares the result with the recorded events,
// ignoring timing. Returns nil if the traces match.
func Verify(rec Recording) (*Divergence, error) {
	replayed, err := Replay(rec)
	if err != nil {
		return nil, err
	}
	return Compare(rec.Events, replayed), nil
}

// Compare returns the first divergence between two traces, or nil.
func Compare(recorded, replayed []ir.Event) *Divergence {
	n := max(len(recorded), len(replayed))
	for i := 0; i < n; i++ {
		d := &Divergence{Index: i}
		if i < len(recorded) {
			d.Recorded = &recorded[i]
		}
		if i < len(replayed) {
			d.Replayed = &replayed[i]
		}
		if d.Recorded == nil || d.Replayed == nil || !d.Recorded.SameTransition(*d.Replayed) {
			return d
		}
	}
	return nil
}
