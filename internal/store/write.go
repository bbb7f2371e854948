package store

import (
	"context"
	"fmt"
	"time"

	"github.com/roach88/nbsim/internal/ir"
	"github.com/roach88/nbsim/internal/session"
)

var _ session.Sink = (*Store)(nil)

// BeginSession inserts a session record.
// Uses ON CONFLICT(id) DO NOTHING for idempotency - beginning the same session
// twice keeps the first record.
func (s *Store) BeginSession(ctx context.Context, info session.Info) error {
	if info.Document == nil {
		return fmt.Errorf("begin session %s: missing document", info.ID)
	}
	docJSON, err := marshalDocument(info.Document)
	if err != nil {
		return fmt.Errorf("begin session: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO sessions
		(id, name, started_at, document)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		info.ID,
		info.Name,
		info.StartedAt.UTC().Format(time.RFC3339Nano),
		docJSON,
	)
	if err != nil {
		return fmt.Errorf("begin session: %w", err)
	}
	return nil
}

// RecordCommand inserts a command record.
// Duplicate (session, seq) pairs are silently ignored.
//
// Note: The session must exist (foreign key constraint).
func (s *Store) RecordCommand(ctx context.Context, sessionID string, cmd session.Command) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO commands
		(session_id, seq, at_ns, after_events, op, cell_id, kind, text)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING
	`,
		sessionID,
		cmd.Seq,
		int64(cmd.At),
		cmd.After,
		string(cmd.Op),
		string(cmd.CellID),
		string(cmd.Kind),
		cmd.Text,
	)
	if err != nil {
		return fmt.Errorf("record command: %w", err)
	}
	return nil
}

// RecordEvent inserts an event record.
// Duplicate (session, seq) pairs are silently ignored.
//
// Note: The session must exist (foreign key constraint).
func (s *Store) RecordEvent(ctx context.Context, sessionID string, e ir.Event) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO events
		(session_id, seq, at_ns, type, cell_id, kind, content, output, run_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING
	`,
		sessionID,
		e.Seq,
		int64(e.At),
		string(e.Type),
		string(e.CellID),
		string(e.Kind),
		nullString(e.Content),
		nullString(e.Output),
		e.RunID,
	)
	if err != nil {
		return fmt.Errorf("record event: %w", err)
	}
	return nil
}

// DeleteSession removes a session and everything recorded for it, atomically.
// Deleting an unknown session is not an error.
func (s *Store) DeleteSession(ctx context.Context, sessionID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("delete session: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	for _, q := range []string{
		`DELETE FROM events WHERE session_id = ?`,
		`DELETE FROM commands WHERE session_id = ?`,
		`DELETE FROM sessions WHERE id = ?`,
	} {
		if _, err := tx.ExecContext(ctx, q, sessionID); err != nil {
			return fmt.Errorf("delete session: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("delete session: commit: %w", err)
	}
	return nil
}
