package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/nbsim/internal/store"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	Database string
}

// ReplaySessionResult holds the replay result for a single session.
type ReplaySessionResult struct {
	SessionID      string `json:"session_id"`
	Commands       int    `json:"commands"`
	RecordedEvents int    `json:"recorded_events"`
	ReplayedEvents int    `json:"replayed_events"`
	TraceHash      string `json:"trace_hash"`
	Deterministic  bool   `json:"deterministic"`
	Divergence     string `json:"divergence,omitempty"`
}

// ReplayResult holds the overall replay result.
type ReplayResult struct {
	Sessions         []ReplaySessionResult `json:"sessions"`
	TotalSessions    int                   `json:"total_sessions"`
	AllDeterministic bool                  `json:"all_deterministic"`
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay [session]",
		Short: "Replay recorded sessions and verify their traces",
		Long: `Re-execute recorded commands in virtual time and verify determinism.

Each session's seed notebook is rebuilt from the database, its commands
are re-applied at the same positions relative to scheduled completions,
and the resulting events are compared with the recorded ones. Without a
session id every recorded session is verified.

Exit codes:
  0 - All sessions replay to their recorded trace
  1 - A replay diverged
  2 - Command error (database or session not found, etc.)

Examples:
  nbsim replay --db ./nbsim.db
  nbsim replay --db ./nbsim.db 0192f1c4-...
  nbsim replay --db ./nbsim.db --format json`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(opts, args, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func runReplay(opts *ReplayOptions, args []string, cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	st, err := openExistingStore(opts.Database)
	if err != nil {
		return err
	}
	defer st.Close()

	var sessionIDs []string
	if len(args) == 1 {
		sessionIDs = []string{args[0]}
	} else {
		summaries, err := st.ListSessions(ctx)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to list sessions", err)
		}
		for _, s := range summaries {
			sessionIDs = append(sessionIDs, s.ID)
		}
	}

	if len(sessionIDs) == 0 {
		if opts.Format == "json" {
			return outputReplayJSON(cmd, opts.RootOptions, ReplayResult{Sessions: []ReplaySessionResult{}, AllDeterministic: true})
		}
		fmt.Fprintln(cmd.OutOrStdout(), "No sessions found in database.")
		return nil
	}

	result := ReplayResult{
		Sessions:         make([]ReplaySessionResult, 0, len(sessionIDs)),
		TotalSessions:    len(sessionIDs),
		AllDeterministic: true,
	}

	for _, id := range sessionIDs {
		report, err := st.VerifySession(ctx, id)
		if errors.Is(err, store.ErrSessionNotFound) {
			return sessionNotFound(opts.RootOptions, cmd, id)
		}
		if err != nil {
			return WrapExitError(ExitCommandError, fmt.Sprintf("failed to replay session %s", id), err)
		}

		sessionResult := ReplaySessionResult{
			SessionID:      report.SessionID,
			Commands:       report.Commands,
			RecordedEvents: report.RecordedEvents,
			ReplayedEvents: report.ReplayedEvents,
			TraceHash:      report.TraceHash,
			Deterministic:  report.OK(),
		}
		if !report.OK() {
			sessionResult.Divergence = report.Divergence.Error()
			result.AllDeterministic = false
		}
		result.Sessions = append(result.Sessions, sessionResult)
	}

	if opts.Format == "json" {
		return outputReplayJSON(cmd, opts.RootOptions, result)
	}
	return outputReplayText(cmd, result, opts.Verbose)
}

// outputReplayJSON outputs the replay result as JSON.
func outputReplayJSON(cmd *cobra.Command, opts *RootOptions, result ReplayResult) error {
	formatter := newFormatter(opts, cmd)
	if result.AllDeterministic {
		return formatter.Success(result)
	}
	if err := formatter.Failure(ErrCodeDiverged, "replay diverged from the recorded trace", result); err != nil {
		return err
	}
	return NewExitError(ExitFailure, "replay diverged")
}

// outputReplayText outputs the replay result as text.
func outputReplayText(cmd *cobra.Command, result ReplayResult, verbose bool) error {
	w := cmd.OutOrStdout()

	for _, s := range result.Sessions {
		status := "✓"
		if !s.Deterministic {
			status = "✗"
		}
		fmt.Fprintf(w, "%s %s: %d commands, %d events\n", status, s.SessionID, s.Commands, s.RecordedEvents)
		if verbose {
			fmt.Fprintf(w, "    trace hash: %s\n", s.TraceHash)
		}
		if s.Divergence != "" {
			fmt.Fprintf(w, "    diverged at %s\n", s.Divergence)
		}
	}
	fmt.Fprintln(w)

	if !result.AllDeterministic {
		fmt.Fprintln(w, "✗ Replay diverged")
		return NewExitError(ExitFailure, "replay diverged")
	}

	fmt.Fprintf(w, "✓ %d session(s) replay deterministically\n", result.TotalSessions)
	return nil
}
