package session

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/roach88/nbsim/internal/document"
	"github.com/roach88/nbsim/internal/engine"
	"github.com/roach88/nbsim/internal/ir"
	"github.com/roach88/nbsim/internal/notebook"
)

// Info describes a recorded session.
//
// Document is the seed document with every seed cell id resolved, so a
// replay starts from exactly the same cells.
type Info struct {
	ID        string
	Name      string
	Document  *document.Document
	StartedAt time.Time
}

// Sink receives everything needed to replay a session.
// All methods are called from the session's loop goroutine.
type Sink interface {
	BeginSession(ctx context.Context, info Info) error
	RecordCommand(ctx context.Context, sessionID string, cmd Command) error
	RecordEvent(ctx context.Context, sessionID string, e ir.Event) error
}

// Session is a notebook driven in real time.
//
// The notebook is owned by an engine.Loop: commands submitted from any
// goroutine and scheduled completions both run as loop tasks, so the
// notebook itself is only ever touched by the goroutine that calls Run.
type Session struct {
	info   Info
	loop   *engine.Loop
	sched  *engine.RealtimeScheduler
	nb     *notebook.Notebook
	sink   Sink
	logger *slog.Logger

	// Loop-goroutine state.
	ctx    context.Context
	cmdSeq int64
	events int64
}

// Option configures a Session.
type Option func(*config)

type config struct {
	id        string
	sink      Sink
	logger    *slog.Logger
	observers []notebook.Observer
	nbOpts    []notebook.Option
}

// WithID sets the session id. Default: a fresh UUIDv7.
func WithID(id string) Option {
	return func(c *config) { c.id = id }
}

// WithSink records the session. Default: not recorded.
func WithSink(s Sink) Option {
	return func(c *config) { c.sink = s }
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(c *config) { c.logger = l }
}

// WithObserver registers a notebook observer. Observers run on the loop
// goroutine after the event has been recorded.
func WithObserver(o notebook.Observer) Option {
	return func(c *config) { c.observers = append(c.observers, o) }
}

// WithNotebookOptions appends notebook options after the document's own,
// so they take precedence. Only the unit delay is written back into the
// recorded document; sessions that change anything else do not replay.
func WithNotebookOptions(opts ...notebook.Option) Option {
	return func(c *config) { c.nbOpts = append(c.nbOpts, opts...) }
}

// New creates a session for doc. Nothing runs until Run is called.
func New(doc *document.Document, opts ...Option) (*Session, error) {
	cfg := config{logger: slog.Default()}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.id == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return nil, fmt.Errorf("generate session id: %w", err)
		}
		cfg.id = id.String()
	}

	docOpts, err := doc.Options()
	if err != nil {
		return nil, fmt.Errorf("session %s: %w", cfg.id, err)
	}

	loop := engine.NewLoop(engine.WithLogger(cfg.logger))
	s := &Session{
		loop:   loop,
		sched:  engine.NewRealtimeScheduler(loop),
		sink:   cfg.sink,
		logger: cfg.logger.With("session", cfg.id),
	}

	nbOpts := append(docOpts, cfg.nbOpts...)
	nbOpts = append(nbOpts,
		notebook.WithScheduler(s.sched),
		notebook.WithLogger(s.logger),
		notebook.WithObserver(notebook.ObserverFunc(s.onEvent)),
	)
	for _, o := range cfg.observers {
		nbOpts = append(nbOpts, notebook.WithObserver(o))
	}
	nb, err := notebook.New(nbOpts...)
	if err != nil {
		return nil, fmt.Errorf("session %s: %w", cfg.id, err)
	}
	s.nb = nb

	resolved := *doc
	resolved.UnitDelay = nb.UnitDelay().String()
	resolved.Cells = document.CellSpecs(nb.Cells())
	s.info = Info{ID: cfg.id, Name: doc.Name, Document: &resolved, StartedAt: time.Now().UTC()}
	return s, nil
}

// ID returns the session id.
func (s *Session) ID() string {
	return s.info.ID
}

// Info returns the session description.
func (s *Session) Info() Info {
	return s.info
}

// Run records the session start and executes commands and completions until
// ctx is cancelled or Stop is called.
//
// CRITICAL: Must be called from exactly ONE goroutine, once.
func (s *Session) Run(ctx context.Context) error {
	s.ctx = ctx
	if s.sink != nil {
		if err := s.sink.BeginSession(ctx, s.info); err != nil {
			return fmt.Errorf("begin session: %w", err)
		}
	}
	s.logger.Info("session started", "notebook", s.info.Name, "cells", s.nb.Len(), "unit", s.nb.UnitDelay())
	err := s.loop.Run(ctx)
	s.logger.Info("session stopped", "commands", s.cmdSeq, "events", s.events)
	return err
}

// Stop ends the session. Commands already submitted are still applied.
func (s *Session) Stop() {
	s.loop.Stop()
}

// Done is closed when Run has returned.
func (s *Session) Done() <-chan struct{} {
	return s.loop.Done()
}

// Submit applies cmd on the loop goroutine and returns it as applied.
//
// The returned error is either a loop error (ctx cancelled, session stopped),
// in which case cmd was not applied, or the notebook's own error for an
// ignored operation, in which case the notebook is unchanged. Ignored
// commands are recorded too so that a replay sees the same input.
func (s *Session) Submit(ctx context.Context, cmd Command) (Command, error) {
	var (
		applied  Command
		applyErr error
	)
	err := s.loop.Do(ctx, func() {
		applied, applyErr = s.apply(cmd)
	})
	if err != nil {
		return cmd, err
	}
	return applied, applyErr
}

func (s *Session) apply(cmd Command) (Command, error) {
	s.cmdSeq++
	cmd.Seq = s.cmdSeq
	cmd.At = s.sched.Now()
	cmd.After = s.events

	applied, err := Apply(s.nb, cmd)
	if err != nil {
		s.logger.Debug("command ignored", "op", cmd.Op, "cell", cmd.CellID, "error", err)
	}
	if s.sink != nil {
		if rerr := s.sink.RecordCommand(s.ctx, s.info.ID, applied); rerr != nil {
			s.logger.Error("failed to record command", "seq", applied.Seq, "error", rerr)
		}
	}
	return applied, err
}

// Snapshot returns a copy of the notebook state, read on the loop goroutine.
func (s *Session) Snapshot(ctx context.Context) (ir.Snapshot, error) {
	var snap ir.Snapshot
	err := s.loop.Do(ctx, func() {
		snap = s.nb.Snapshot()
	})
	return snap, err
}

func (s *Session) onEvent(e ir.Event) {
	s.events = e.Seq
	if s.sink == nil {
		return
	}
	if err := s.sink.RecordEvent(s.ctx, s.info.ID, e); err != nil {
		s.logger.Error("failed to record event", "seq", e.Seq, "type", e.Type, "error", err)
	}
}
