package cli

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/roach88/nbsim/internal/document"
	"github.com/roach88/nbsim/internal/engine"
	"github.com/roach88/nbsim/internal/ir"
	"github.com/roach88/nbsim/internal/notebook"
	"github.com/roach88/nbsim/internal/session"
	"github.com/roach88/nbsim/internal/store"
)

// recordSession records a run-all over a three-cell notebook into the
// database at dbPath, in virtual time, with a stop one unit into a second
// run. The trace is:
//
//	run_started, cell_started x3, cell_completed x3, run_finished,
//	run_started, cell_started x3, cell_completed, cell_cancelled x2, run_stopped
func recordSession(t *testing.T, dbPath, id string) {
	t.Helper()
	ctx := context.Background()

	st, err := store.Open(dbPath)
	require.NoError(t, err)
	defer st.Close()

	doc := &document.Document{
		Name:      "recorded",
		UnitDelay: "1s",
		Cells: []document.CellSpec{
			{ID: "cell-1", Kind: "narrative", Content: "# Title"},
			{ID: "cell-2", Kind: "code", Content: "x = 1"},
			{ID: "cell-3", Kind: "code", Content: "print(x)"},
		},
	}
	require.NoError(t, st.BeginSession(ctx, session.Info{
		ID:        id,
		Name:      doc.Name,
		Document:  doc,
		StartedAt: time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC),
	}))

	opts, err := doc.Options()
	require.NoError(t, err)
	var events int64
	sched := engine.NewVirtualScheduler()
	opts = append(opts,
		notebook.WithScheduler(sched),
		notebook.WithObserver(notebook.ObserverFunc(func(e ir.Event) {
			events = e.Seq
			require.NoError(t, st.RecordEvent(ctx, id, e))
		})),
	)
	nb, err := notebook.New(opts...)
	require.NoError(t, err)

	var seq int64
	submit := func(cmd session.Command) {
		seq++
		cmd.Seq = seq
		cmd.At = sched.Now()
		cmd.After = events
		applied, _ := session.Apply(nb, cmd)
		require.NoError(t, st.RecordCommand(ctx, id, applied))
	}

	submit(session.Command{Op: session.OpRunAll})
	sched.Advance(3 * time.Second)
	submit(session.Command{Op: session.OpRunAll})
	sched.Advance(time.Second)
	submit(session.Command{Op: session.OpStopAll})
	sched.RunUntilIdle(0)
}

func tempDBPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "nbsim.db")
}
