package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/roach88/nbsim/internal/ir"
	"github.com/roach88/nbsim/internal/session"
)

// ErrSessionNotFound is returned when a session id has no record.
var ErrSessionNotFound = errors.New("session not found")

// SessionSummary is one row of ListSessions.
type SessionSummary struct {
	ID        string
	Name      string
	StartedAt time.Time
	Commands  int
	Events    int
}

// ListSessions returns every recorded session, oldest first.
// Returns an empty slice (not nil) if nothing is recorded.
func (s *Store) ListSessions(ctx context.Context) ([]SessionSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT s.id, s.name, s.started_at,
			(SELECT COUNT(*) FROM commands c WHERE c.session_id = s.id),
			(SELECT COUNT(*) FROM events e WHERE e.session_id = s.id)
		FROM sessions s
		ORDER BY s.started_at ASC, s.id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	summaries := []SessionSummary{}
	for rows.Next() {
		var (
			sum     SessionSummary
			started string
		)
		if err := rows.Scan(&sum.ID, &sum.Name, &started, &sum.Commands, &sum.Events); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		if sum.StartedAt, err = time.Parse(time.RFC3339Nano, started); err != nil {
			return nil, fmt.Errorf("session %s: parse started_at: %w", sum.ID, err)
		}
		summaries = append(summaries, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return summaries, nil
}

// ReadSession returns a session's description.
// Returns ErrSessionNotFound if there is no such session.
func (s *Store) ReadSession(ctx context.Context, id string) (session.Info, error) {
	var (
		info    session.Info
		started string
		docJSON string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, started_at, document
		FROM sessions
		WHERE id = ?
	`, id).Scan(&info.ID, &info.Name, &started, &docJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return session.Info{}, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	if err != nil {
		return session.Info{}, fmt.Errorf("read session: %w", err)
	}

	if info.StartedAt, err = time.Parse(time.RFC3339Nano, started); err != nil {
		return session.Info{}, fmt.Errorf("session %s: parse started_at: %w", id, err)
	}
	if info.Document, err = unmarshalDocument(docJSON); err != nil {
		return session.Info{}, fmt.Errorf("session %s: %w", id, err)
	}
	return info, nil
}

// ReadCommands returns a session's commands ordered by seq.
// Returns an empty slice (not nil) if none are recorded.
func (s *Store) ReadCommands(ctx context.Context, sessionID string) ([]session.Command, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, at_ns, after_events, op, cell_id, kind, text
		FROM commands
		WHERE session_id = ?
		ORDER BY seq ASC
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query commands: %w", err)
	}
	defer rows.Close()

	commands := []session.Command{}
	for rows.Next() {
		var (
			cmd            session.Command
			at             int64
			op, cell, kind string
		)
		if err := rows.Scan(&cmd.Seq, &at, &cmd.After, &op, &cell, &kind, &cmd.Text); err != nil {
			return nil, fmt.Errorf("scan command: %w", err)
		}
		cmd.At = time.Duration(at)
		cmd.Op = session.Op(op)
		cmd.CellID = ir.CellID(cell)
		cmd.Kind = ir.CellKind(kind)
		commands = append(commands, cmd)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate commands: %w", err)
	}
	return commands, nil
}

// EventFilter narrows ReadEvents. Zero values match everything.
type EventFilter struct {
	CellID ir.CellID
	Types  []ir.EventType
}

// ReadEvents returns a session's events ordered by seq.
// Returns an empty slice (not nil) if none match.
func (s *Store) ReadEvents(ctx context.Context, sessionID string, filter EventFilter) ([]ir.Event, error) {
	query := `
		SELECT seq, at_ns, type, cell_id, kind, content, output, run_id
		FROM events
		WHERE session_id = ?`
	args := []any{sessionID}
	if filter.CellID != "" {
		query += ` AND cell_id = ?`
		args = append(args, string(filter.CellID))
	}
	if len(filter.Types) > 0 {
		query += ` AND type IN (?` + strings.Repeat(`, ?`, len(filter.Types)-1) + `)`
		for _, t := range filter.Types {
			args = append(args, string(t))
		}
	}
	query += ` ORDER BY seq ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	events := []ir.Event{}
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return events, nil
}

func scanEvent(rows *sql.Rows) (ir.Event, error) {
	var (
		e               ir.Event
		at              int64
		typ, cell, kind string
		content, output sql.NullString
	)
	if err := rows.Scan(&e.Seq, &at, &typ, &cell, &kind, &content, &output, &e.RunID); err != nil {
		return ir.Event{}, fmt.Errorf("scan event: %w", err)
	}
	e.At = time.Duration(at)
	e.Type = ir.EventType(typ)
	e.CellID = ir.CellID(cell)
	e.Kind = ir.CellKind(kind)
	e.Content = stringPtr(content)
	e.Output = stringPtr(output)
	return e, nil
}

// LoadRecording reads everything recorded for a session.
func (s *Store) LoadRecording(ctx context.Context, sessionID string) (session.Recording, error) {
	info, err := s.ReadSession(ctx, sessionID)
	if err != nil {
		return session.Recording{}, err
	}
	commands, err := s.ReadCommands(ctx, sessionID)
	if err != nil {
		return session.Recording{}, fmt.Errorf("load recording: %w", err)
	}
	events, err := s.ReadEvents(ctx, sessionID, EventFilter{})
	if err != nil {
		return session.Recording{}, fmt.Errorf("load recording: %w", err)
	}
	return session.Recording{Info: info, Commands: commands, Events: events}, nil
}
