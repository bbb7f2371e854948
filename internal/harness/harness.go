package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/roach88/nbsim/internal/document"
	"github.com/roach88/nbsim/internal/engine"
	"github.com/roach88/nbsim/internal/ir"
	"github.com/roach88/nbsim/internal/notebook"
	"github.com/roach88/nbsim/internal/session"
	"github.com/roach88/nbsim/internal/store"
	"github.com/roach88/nbsim/internal/testutil"
)

// epoch is the recorded start time of every scenario session.
var epoch = time.Unix(0, 0).UTC()

// Harness is the test execution engine.
// It runs one scenario against a notebook on a virtual clock and records the
// session into an in-memory store, exactly as a live session is recorded.
type Harness struct {
	store    *store.Store
	sched    *engine.VirtualScheduler
	nb       *notebook.Notebook
	recorder *testutil.EventRecorder
	logger   *slog.Logger

	sessionID string
	cmdSeq    int64
	recordErr error
}

// Run executes a test scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database for isolation.
//
// Execution flow:
// 1. Create fresh in-memory database and record the session start
// 2. Build the notebook from the seed document on a virtual clock
// 3. Execute steps, checking each step's expect clause
// 4. Evaluate assertions against the trace and final state
// 5. Replay the recorded session and report any divergence
//
// Returns an error only if the scenario could not be executed at all;
// failed expectations are reported in Result.Errors.
func Run(scenario *Scenario) (*Result, error) {
	doc, err := scenarioDocument(scenario)
	if err != nil {
		return nil, err
	}

	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	ctx := context.Background()
	h := &Harness{
		store:     st,
		sched:     engine.NewVirtualScheduler(),
		recorder:  testutil.NewEventRecorder(),
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)), // Suppress logs in tests
		sessionID: scenario.Name,
	}

	opts, err := doc.Options()
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", scenario.Name, err)
	}
	opts = append(opts,
		notebook.WithScheduler(h.sched),
		notebook.WithLogger(h.logger),
		notebook.WithObserver(h.recorder),
		notebook.WithObserver(notebook.ObserverFunc(func(e ir.Event) {
			if err := st.RecordEvent(ctx, h.sessionID, e); err != nil {
				h.recordFailed(fmt.Errorf("record event %d: %w", e.Seq, err))
			}
		})),
	)
	nb, err := notebook.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", scenario.Name, err)
	}
	h.nb = nb

	resolved := *doc
	resolved.UnitDelay = nb.UnitDelay().String()
	resolved.Cells = document.CellSpecs(nb.Cells())
	info := session.Info{ID: h.sessionID, Name: doc.Name, Document: &resolved, StartedAt: epoch}
	if err := st.BeginSession(ctx, info); err != nil {
		return nil, fmt.Errorf("scenario %s: %w", scenario.Name, err)
	}

	result := NewResult()
	for i, step := range scenario.Steps {
		if err := h.executeStep(ctx, i, step, result); err != nil {
			return nil, err
		}
	}

	if h.recordErr != nil {
		return nil, fmt.Errorf("scenario %s: %w", scenario.Name, h.recordErr)
	}

	result.Trace = h.recorder.Events()
	result.Final = nb.Snapshot()

	for _, msg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(msg)
	}

	report, err := st.VerifySession(ctx, h.sessionID)
	if err != nil {
		return nil, fmt.Errorf("scenario %s: replay: %w", scenario.Name, err)
	}
	result.TraceHash = report.TraceHash
	if !report.OK() {
		result.Failf("replay diverged: %v", report.Divergence)
	}

	h.logger.Info("scenario finished",
		"scenario", scenario.Name,
		"events", len(result.Trace),
		"pass", result.Pass,
	)
	return result, nil
}

// scenarioDocument returns the scenario's seed document.
func scenarioDocument(scenario *Scenario) (*document.Document, error) {
	if scenario.Notebook != nil {
		return scenario.Notebook, nil
	}
	doc, err := document.Load(scenario.Document)
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", scenario.Name, err)
	}
	return doc, nil
}

// executeStep runs one step and checks its expect clause.
func (h *Harness) executeStep(ctx context.Context, i int, step Step, result *Result) error {
	var cmdErr error
	switch {
	case step.Op != "":
		cmdErr = h.submit(ctx, step.Command)
	case step.Advance != "":
		d, err := time.ParseDuration(step.Advance)
		if err != nil {
			return fmt.Errorf("step %d: %w", i, err)
		}
		h.sched.Advance(d)
	case step.AdvanceUnits != 0:
		h.sched.Advance(time.Duration(step.AdvanceUnits) * h.nb.UnitDelay())
	case step.Settle:
		h.sched.RunUntilIdle(0)
	}

	h.logger.Debug("step executed", "step", i, "action", step.kind(), "now", h.sched.Now())

	if step.Expect == nil {
		if cmdErr != nil {
			result.Failf("step %d (%s): unexpected error: %v", i, step.kind(), cmdErr)
		}
		return nil
	}

	if got := errorCode(step.Command, cmdErr); got != step.Expect.Error {
		result.Failf("step %d (%s): error = %q, want %q (%v)",
			i, step.kind(), got, step.Expect.Error, cmdErr)
	}
	if err := matchState(h.nb.Snapshot(), step.Expect.StateExpect); err != nil {
		result.Failf("step %d (%s): %v", i, step.kind(), err)
	}
	return nil
}

// submit applies cmd and records it the way a live session does.
// Returns the notebook's error, if any.
func (h *Harness) submit(ctx context.Context, cmd session.Command) error {
	h.cmdSeq++
	cmd.Seq = h.cmdSeq
	cmd.At = h.sched.Now()
	cmd.After = int64(len(h.recorder.Events()))

	applied, err := session.Apply(h.nb, cmd)
	if rerr := h.store.RecordCommand(ctx, h.sessionID, applied); rerr != nil {
		h.recordFailed(fmt.Errorf("record command %d: %w", cmd.Seq, rerr))
	}
	return err
}

// recordFailed keeps the first recording error.
func (h *Harness) recordFailed(err error) {
	if h.recordErr == nil {
		h.recordErr = err
	}
}

// errorCode maps a command error to the scenario error vocabulary.
func errorCode(cmd session.Command, err error) string {
	switch {
	case err == nil:
		return ""
	case notebook.IsNotFound(err):
		return "not_found"
	case notebook.IsLastCell(err):
		return "last_cell"
	case notebook.IsInvalidKind(err):
		return "invalid_kind"
	}
	if cmd.Kind != "" {
		if _, perr := ir.ParseCellKind(string(cmd.Kind)); perr != nil {
			return "invalid_kind"
		}
	}
	return err.Error()
}
