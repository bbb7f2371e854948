package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/nbsim/internal/ir"
	"github.com/roach88/nbsim/internal/store"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Database string
	Cell     string   // optional - filter to one cell
	Types    []string // optional - filter to event types
	Delete   bool
}

// TraceEvent is one event of a session timeline.
type TraceEvent struct {
	Seq     int64   `json:"seq"`
	AtMS    int64   `json:"at_ms"`
	Type    string  `json:"type"`
	CellID  string  `json:"cell_id,omitempty"`
	Kind    string  `json:"kind,omitempty"`
	Content *string `json:"content,omitempty"`
	Output  *string `json:"output,omitempty"`
	RunID   int64   `json:"run_id,omitempty"`
}

// TraceResult holds the trace of one session.
type TraceResult struct {
	SessionID string       `json:"session_id"`
	Name      string       `json:"name"`
	StartedAt time.Time    `json:"started_at"`
	Timeline  []TraceEvent `json:"timeline"`
	Stats     TraceStats   `json:"stats"`
}

// TraceStats holds summary statistics for the trace.
type TraceStats struct {
	TotalEvents int `json:"total_events"`
	Runs        int `json:"runs"`
	Completions int `json:"completions"`
	Cancelled   int `json:"cancelled"`
}

// SessionListing is one row of the session list.
type SessionListing struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	StartedAt time.Time `json:"started_at"`
	Commands  int       `json:"commands"`
	Events    int       `json:"events"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace [session]",
		Short: "List recorded sessions or show a session's events",
		Long: `Inspect sessions recorded by "nbsim run --db".

Without a session id, lists every recorded session. With one, prints the
session's event timeline, optionally narrowed to one cell or to some
event types. --delete removes the session instead.

Examples:
  nbsim trace --db ./nbsim.db
  nbsim trace --db ./nbsim.db 0192f1c4-...
  nbsim trace --db ./nbsim.db 0192f1c4-... --cell cell-2
  nbsim trace --db ./nbsim.db 0192f1c4-... --type cell_completed --type run_stopped
  nbsim trace --db ./nbsim.db 0192f1c4-... --delete`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, args, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.Cell, "cell", "", "only events of this cell")
	cmd.Flags().StringSliceVar(&opts.Types, "type", nil, "only events of these types (repeatable)")
	cmd.Flags().BoolVar(&opts.Delete, "delete", false, "delete the session")

	return cmd
}

func runTrace(opts *TraceOptions, args []string, cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	filter, err := buildEventFilter(opts)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid filter", err)
	}
	if len(args) == 0 && (opts.Delete || opts.Cell != "" || len(opts.Types) > 0) {
		return NewExitError(ExitCommandError, "--cell, --type and --delete require a session id")
	}

	st, err := openExistingStore(opts.Database)
	if err != nil {
		return err
	}
	defer st.Close()

	if len(args) == 0 {
		return listSessions(ctx, st, opts, cmd)
	}
	sessionID := args[0]

	info, err := st.ReadSession(ctx, sessionID)
	if errors.Is(err, store.ErrSessionNotFound) {
		return sessionNotFound(opts.RootOptions, cmd, sessionID)
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read session", err)
	}

	if opts.Delete {
		if err := st.DeleteSession(ctx, sessionID); err != nil {
			return WrapExitError(ExitCommandError, "failed to delete session", err)
		}
		formatter := newFormatter(opts.RootOptions, cmd)
		if formatter.JSON() {
			return formatter.Success(map[string]string{"deleted": sessionID})
		}
		return formatter.Success(fmt.Sprintf("✓ deleted session %s", sessionID))
	}

	events, err := st.ReadEvents(ctx, sessionID, filter)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read events", err)
	}

	result := TraceResult{
		SessionID: info.ID,
		Name:      info.Name,
		StartedAt: info.StartedAt,
		Timeline:  buildTimeline(events),
		Stats:     buildStats(events),
	}

	if opts.Format == "json" {
		return outputTraceJSON(cmd, opts.RootOptions, result)
	}
	return outputTraceText(cmd, result, opts.Verbose)
}

func buildEventFilter(opts *TraceOptions) (store.EventFilter, error) {
	filter := store.EventFilter{CellID: ir.CellID(opts.Cell)}
	for _, t := range opts.Types {
		typ := ir.EventType(strings.TrimSpace(t))
		if !typ.Valid() {
			return store.EventFilter{}, fmt.Errorf("unknown event type %q", t)
		}
		filter.Types = append(filter.Types, typ)
	}
	return filter, nil
}

func listSessions(ctx context.Context, st *store.Store, opts *TraceOptions, cmd *cobra.Command) error {
	summaries, err := st.ListSessions(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to list sessions", err)
	}

	listing := make([]SessionListing, len(summaries))
	for i, s := range summaries {
		listing[i] = SessionListing{
			ID:        s.ID,
			Name:      s.Name,
			StartedAt: s.StartedAt,
			Commands:  s.Commands,
			Events:    s.Events,
		}
	}

	if opts.Format == "json" {
		return newFormatter(opts.RootOptions, cmd).Success(listing)
	}

	w := cmd.OutOrStdout()
	if len(listing) == 0 {
		fmt.Fprintln(w, "No sessions found in database.")
		return nil
	}
	fmt.Fprintf(w, "%-36s  %-20s  %-20s  %8s  %6s\n", "SESSION", "NOTEBOOK", "STARTED", "COMMANDS", "EVENTS")
	for _, s := range listing {
		fmt.Fprintf(w, "%-36s  %-20s  %-20s  %8d  %6d\n",
			s.ID, s.Name, s.StartedAt.Format(time.DateTime), s.Commands, s.Events)
	}
	return nil
}

func buildTimeline(events []ir.Event) []TraceEvent {
	timeline := make([]TraceEvent, len(events))
	for i, e := range events {
		timeline[i] = TraceEvent{
			Seq:     e.Seq,
			AtMS:    e.At.Milliseconds(),
			Type:    string(e.Type),
			CellID:  string(e.CellID),
			Kind:    string(e.Kind),
			Content: e.Content,
			Output:  e.Output,
			RunID:   e.RunID,
		}
	}
	return timeline
}

func buildStats(events []ir.Event) TraceStats {
	stats := TraceStats{TotalEvents: len(events)}
	for _, e := range events {
		switch e.Type {
		case ir.EventRunStarted:
			stats.Runs++
		case ir.EventCellCompleted:
			stats.Completions++
		case ir.EventCellCancelled:
			stats.Cancelled++
		}
	}
	return stats
}

// outputTraceJSON outputs the trace result as JSON.
func outputTraceJSON(cmd *cobra.Command, opts *RootOptions, result TraceResult) error {
	return newFormatter(opts, cmd).Respond(CLIResponse{
		Status:    "ok",
		Data:      result,
		SessionID: result.SessionID,
	})
}

// outputTraceText outputs the trace result as text.
func outputTraceText(cmd *cobra.Command, result TraceResult, verbose bool) error {
	w := cmd.OutOrStdout()

	fmt.Fprintf(w, "Trace for Session: %s\n", result.SessionID)
	fmt.Fprintf(w, "Notebook: %s\n", result.Name)
	fmt.Fprintf(w, "Started:  %s\n", result.StartedAt.Format(time.RFC3339))
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Timeline ===")
	if len(result.Timeline) == 0 {
		fmt.Fprintln(w, "  (no events)")
	} else {
		for _, event := range result.Timeline {
			formatTimelineEvent(w, event, verbose)
		}
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Stats ===")
	fmt.Fprintf(w, "  Total Events: %d\n", result.Stats.TotalEvents)
	fmt.Fprintf(w, "  Runs:         %d\n", result.Stats.Runs)
	fmt.Fprintf(w, "  Completions:  %d\n", result.Stats.Completions)
	fmt.Fprintf(w, "  Cancelled:    %d\n", result.Stats.Cancelled)

	return nil
}

// formatTimelineEvent formats a single timeline event for text output.
func formatTimelineEvent(w io.Writer, event TraceEvent, verbose bool) {
	fmt.Fprintf(w, "  [%d] %8dms %-15s", event.Seq, event.AtMS, event.Type)
	if event.CellID != "" {
		fmt.Fprintf(w, " %s", event.CellID)
	}
	if event.Kind != "" {
		fmt.Fprintf(w, " (%s)", event.Kind)
	}
	if event.RunID != 0 {
		fmt.Fprintf(w, " run=%d", event.RunID)
	}
	fmt.Fprintln(w)

	if !verbose {
		return
	}
	if event.Content != nil {
		fmt.Fprintf(w, "      content: %s\n", truncateText(*event.Content))
	}
	if event.Output != nil {
		fmt.Fprintf(w, "      output:  %s\n", truncateText(*event.Output))
	}
}

// truncateText shortens text to its first line, at most 60 characters.
func truncateText(s string) string {
	line, _, multi := strings.Cut(s, "\n")
	if runes := []rune(line); len(runes) > 60 {
		return string(runes[:57]) + "..."
	}
	if multi {
		return line + " ..."
	}
	return line
}
