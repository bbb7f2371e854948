package cli

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/roach88/nbsim/internal/document"
	"github.com/roach88/nbsim/internal/engine"
	"github.com/roach88/nbsim/internal/ir"
	"github.com/roach88/nbsim/internal/notebook"
	"github.com/roach88/nbsim/internal/session"
	"github.com/roach88/nbsim/internal/store"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Database string
	Unit     string
	StopMode string
	IDs      string

	// SessionID overrides the generated session id (for testing).
	SessionID string
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	return newRunCommand(&RunOptions{RootOptions: rootOpts})
}

func newRunCommand(opts *RunOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <notebook>",
		Short: "Open a notebook in an interactive session",
		Long: `Open a notebook document and drive it from the command line in real time.

Commands are read one per line from stdin:
  add [code|narrative]        append a cell and focus it
  delete <cell>               delete a cell
  edit <cell> <text>          replace a cell's content
  kind <cell> <code|narrative>
  focus <cell>                make a cell active
  run <cell>                  run one cell
  runall                      run every cell in order
  stop                        stop a running run-all
  show                        print the notebook
  wait                        block until nothing is executing
  quit                        end the session

Notebook events are printed as they happen. At end of input the session
waits for pending completions and exits. With --db the session is
recorded and can be inspected with "nbsim trace" and "nbsim replay".

Example:
  nbsim run ./notebooks/welcome.yaml
  nbsim run --db ./nbsim.db --unit 250ms ./notebooks/welcome.yaml
  printf 'runall\n' | nbsim run --stop-mode status_only nb.yaml`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runNotebook(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "record the session to this SQLite database")
	cmd.Flags().StringVar(&opts.Unit, "unit", "", "simulated execution delay (overrides the document)")
	cmd.Flags().StringVar(&opts.StopMode, "stop-mode", "", "stop behaviour: cancel or status_only (overrides the document)")
	cmd.Flags().StringVar(&opts.IDs, "ids", "", "id strategy for new cells: sequence or uuid (overrides the document)")

	return cmd
}

func runNotebook(opts *RunOptions, path string, cmd *cobra.Command) error {
	// Configure logging based on verbose flag
	logLevel := slog.LevelInfo
	if opts.Verbose {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{
		Level: logLevel,
	}))

	doc, err := document.Load(path)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load notebook", err)
	}
	applyRunFlags(doc, opts)
	if err := document.Validate(doc); err != nil {
		return WrapExitError(ExitCommandError, "invalid flags", err)
	}

	out := &lockedWriter{w: cmd.OutOrStdout()}
	sessOpts := []session.Option{
		session.WithLogger(logger),
		session.WithObserver(notebook.ObserverFunc(func(e ir.Event) {
			var line bytes.Buffer
			formatTimelineEvent(&line, buildTimeline([]ir.Event{e})[0], opts.Verbose)
			_, _ = out.Write(line.Bytes())
		})),
	}
	if opts.SessionID != "" {
		sessOpts = append(sessOpts, session.WithID(opts.SessionID))
	}

	if opts.Database != "" {
		logger.Debug("opening database", "path", opts.Database)
		st, err := store.Open(opts.Database)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open database", err)
		}
		defer func() {
			if closeErr := st.Close(); closeErr != nil {
				logger.Error("error closing database", "error", closeErr)
			}
		}()
		sessOpts = append(sessOpts, session.WithSink(st))
	}

	sess, err := session.New(doc, sessOpts...)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to create session", err)
	}

	// Setup signal handling for graceful shutdown
	// Use command's context if available (for testing), otherwise create one
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan) // Prevent signal handler leak

	go func() {
		select {
		case sig := <-sigChan:
			logger.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
			// Parent context cancelled (e.g., from test)
		}
	}()

	fmt.Fprintf(out, "Session %s: %s\n", sess.ID(), doc.Name)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return sess.Run(gctx)
	})
	g.Go(func() error {
		defer sess.Stop()
		r := &repl{sess: sess, out: out, poll: pollInterval(sess)}
		return r.serve(gctx, readLines(gctx, cmd.InOrStdin()))
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return WrapExitError(ExitFailure, "session error", err)
	}

	if opts.Database != "" {
		fmt.Fprintf(out, "Session %s recorded to %s\n", sess.ID(), opts.Database)
	}
	return nil
}

// applyRunFlags overrides document settings with the flags that were set.
func applyRunFlags(doc *document.Document, opts *RunOptions) {
	if opts.Unit != "" {
		doc.UnitDelay = opts.Unit
	}
	if opts.StopMode != "" {
		doc.StopMode = opts.StopMode
	}
	if opts.IDs != "" {
		doc.IDs = opts.IDs
	}
}

func pollInterval(sess *session.Session) time.Duration {
	d, err := time.ParseDuration(sess.Info().Document.UnitDelay)
	if err != nil || d <= 0 {
		return 10 * time.Millisecond
	}
	return min(max(d/4, time.Millisecond), 100*time.Millisecond)
}

// readLines feeds input lines to a channel that is closed at end of input.
// The reading goroutine exits with the input or, once ctx is done, at the
// next line.
func readLines(ctx context.Context, in io.Reader) <-chan string {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()
	return lines
}

// repl applies command lines to a session.
type repl struct {
	sess *session.Session
	out  io.Writer
	poll time.Duration
}

// serve handles lines until "quit", end of input (after pending
// completions finish) or ctx is done.
func (r *repl) serve(ctx context.Context, lines <-chan string) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				return r.waitIdle(ctx)
			}
			quit, err := r.handle(ctx, line)
			if err != nil || quit {
				return err
			}
		}
	}
}

// handle runs one line. Errors from the notebook are printed, not returned:
// only a stopped session ends the loop.
func (r *repl) handle(ctx context.Context, line string) (bool, error) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return false, nil
	}

	switch strings.ToLower(line) {
	case "quit", "exit":
		return true, nil
	case "help", "?":
		fmt.Fprintln(r.out, "commands: add, delete, edit, kind, focus, run, runall, stop, show, wait, quit")
		return false, nil
	case "show", "ls":
		snap, err := r.sess.Snapshot(ctx)
		if err != nil {
			return false, err
		}
		printSnapshot(r.out, snap)
		return false, nil
	case "wait":
		return false, r.waitIdle(ctx)
	}

	cmd, err := session.Parse(line)
	if err != nil {
		fmt.Fprintf(r.out, "error: %v\n", err)
		return false, nil
	}
	applied, err := r.sess.Submit(ctx, cmd)
	switch {
	case errors.Is(err, engine.ErrLoopStopped), errors.Is(err, context.Canceled):
		return false, err
	case err != nil:
		fmt.Fprintf(r.out, "ignored: %v\n", err)
	case applied.Op == session.OpAddCell:
		fmt.Fprintf(r.out, "added %s\n", applied.CellID)
	}
	return false, nil
}

// waitIdle blocks until no run is active and no cell is executing.
func (r *repl) waitIdle(ctx context.Context) error {
	ticker := time.NewTicker(r.poll)
	defer ticker.Stop()
	for {
		snap, err := r.sess.Snapshot(ctx)
		if err != nil {
			return err
		}
		if isIdle(snap) {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func isIdle(snap ir.Snapshot) bool {
	if snap.Status != ir.StatusIdle {
		return false
	}
	for _, c := range snap.Cells {
		if c.Executing {
			return false
		}
	}
	return true
}

func printSnapshot(w io.Writer, snap ir.Snapshot) {
	fmt.Fprintf(w, "status: %s\n", snap.Status)
	for _, c := range snap.Cells {
		marker := " "
		if c.ID == snap.ActiveID {
			marker = ">"
		}
		state := ""
		if c.Executing {
			state = " (executing)"
		}
		fmt.Fprintf(w, "%s %s [%s]%s %s\n", marker, c.ID, c.Kind, state, truncateText(c.Content))
		if c.Output != nil {
			fmt.Fprintf(w, "    => %s\n", truncateText(*c.Output))
		}
	}
}

// lockedWriter serializes writes from the REPL and the session loop.
type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}
