package store

import (
	"context"
	"fmt"

	"github.com/roach88/nbsim/internal/ir"
	"github.com/roach88/nbsim/internal/session"
)

// ReplayReport is the outcome of re-executing a recorded session.
type ReplayReport struct {
	SessionID      string
	Commands       int
	RecordedEvents int
	ReplayedEvents int

	// TraceHash is the content hash of the recorded trace.
	TraceHash string

	// Divergence is nil when the replay reproduced the recorded trace.
	Divergence *session.Divergence
}

// OK reports whether the replay matched the recording.
func (r ReplayReport) OK() bool {
	return r.Divergence == nil
}

// VerifySession loads a recorded session, replays its commands in virtual
// time and compares the resulting events with the recorded ones.
//
// A divergence is reported in the returned report, not as an error. Errors
// mean the session could not be loaded or replayed at all.
func (s *Store) VerifySession(ctx context.Context, sessionID string) (ReplayReport, error) {
	rec, err := s.LoadRecording(ctx, sessionID)
	if err != nil {
		return ReplayReport{}, err
	}

	replayed, err := session.Replay(rec)
	if err != nil {
		return ReplayReport{}, fmt.Errorf("replay session %s: %w", sessionID, err)
	}

	hash, err := ir.TraceHash(rec.Events)
	if err != nil {
		return ReplayReport{}, fmt.Errorf("hash trace: %w", err)
	}

	return ReplayReport{
		SessionID:      sessionID,
		Commands:       len(rec.Commands),
		RecordedEvents: len(rec.Events),
		ReplayedEvents: len(replayed),
		TraceHash:      hash,
		Divergence:     session.Compare(rec.Events, replayed),
	}, nil
}
