package cli

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/nbsim/internal/ir"
	"github.com/roach88/nbsim/internal/session"
	"github.com/roach88/nbsim/internal/store"
)

const runNotebookYAML = `
name: repl
unit_delay: 10ms
cells:
  - {id: cell-1, kind: narrative, content: "# Notes"}
  - {id: cell-2, kind: code, content: "x = 1"}
`

func executeRun(t *testing.T, opts *RunOptions, input string, args ...string) (*bytes.Buffer, *bytes.Buffer, error) {
	t.Helper()
	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}
	cmd := newRunCommand(opts)
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	cmd.SetIn(strings.NewReader(input))
	cmd.SetArgs(args)
	cmd.SetContext(context.Background())
	return out, errOut, cmd.Execute()
}

func TestRunNotebookNotFound(t *testing.T) {
	_, _, err := executeRun(t, &RunOptions{RootOptions: &RootOptions{Format: "text"}}, "",
		filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "failed to load notebook")
}

func TestRunInvalidFlags(t *testing.T) {
	path := writeTempFile(t, "nb.yaml", runNotebookYAML)

	tests := []struct {
		name string
		args []string
	}{
		{"bad stop mode", []string{"--stop-mode", "pause"}},
		{"bad unit", []string{"--unit", "soon"}},
		{"bad ids", []string{"--ids", "random"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append(tt.args, path)
			_, _, err := executeRun(t, &RunOptions{RootOptions: &RootOptions{Format: "text"}}, "", args...)
			require.Error(t, err)
			assert.Equal(t, ExitCommandError, GetExitCode(err))
		})
	}
}

func TestRunAllFromInput(t *testing.T) {
	path := writeTempFile(t, "nb.yaml", runNotebookYAML)

	out, _, err := executeRun(t, &RunOptions{RootOptions: &RootOptions{Format: "text"}}, "runall\n", path)
	require.NoError(t, err)

	output := out.String()
	assert.Contains(t, output, "Session ")
	assert.Contains(t, output, "run_started")
	assert.Contains(t, output, "cell_completed  cell-2 (code) run=1")
	assert.Contains(t, output, "run_finished")
	assert.Less(t, strings.Index(output, "run_started"), strings.Index(output, "run_finished"))
}

func TestRunReplCommands(t *testing.T) {
	path := writeTempFile(t, "nb.yaml", runNotebookYAML)

	input := strings.Join([]string{
		"# comments and blank lines are skipped",
		"",
		"add narrative",
		"edit cell-3 \"# More\\nnotes\"",
		"run cell-2",
		"wait",
		"delete cell-9",
		"frobnicate",
		"show",
		"quit",
		"runall",
	}, "\n")

	out, _, err := executeRun(t, &RunOptions{RootOptions: &RootOptions{Format: "text"}}, input, path)
	require.NoError(t, err)

	output := out.String()
	assert.Contains(t, output, "cell_added")
	assert.Contains(t, output, "added cell-3")
	assert.Contains(t, output, "content_changed")
	assert.Contains(t, output, "cell_completed  cell-2")
	assert.Contains(t, output, "ignored:")
	assert.Contains(t, output, "error: unknown operation")
	assert.Contains(t, output, "status: idle")
	assert.Contains(t, output, "> cell-3 [narrative] # More ...")
	assert.Contains(t, output, "=> Execution result would appear here. ...")
	// Nothing after quit is applied.
	assert.NotContains(t, output, "run_started")
}

func TestRunRecordsReplayableSession(t *testing.T) {
	path := writeTempFile(t, "nb.yaml", runNotebookYAML)
	dbPath := tempDBPath(t)

	opts := &RunOptions{RootOptions: &RootOptions{Format: "text"}, SessionID: "repl-1"}
	out, _, err := executeRun(t, opts, "add code\nrunall\nwait\nrun cell-3\nstop\n",
		"--db", dbPath, "--stop-mode", "status_only", path)
	require.NoError(t, err)
	assert.Contains(t, out.String(), "recorded to")

	st, err := store.Open(dbPath)
	require.NoError(t, err)
	defer st.Close()

	report, err := st.VerifySession(context.Background(), "repl-1")
	require.NoError(t, err)
	assert.True(t, report.OK(), "divergence: %v", report.Divergence)
	// "wait" is handled by the REPL and never reaches the session.
	assert.Equal(t, 4, report.Commands)
	assert.NotZero(t, report.RecordedEvents)

	cmds, err := st.ReadCommands(context.Background(), "repl-1")
	require.NoError(t, err)
	ops := make([]session.Op, len(cmds))
	for i, c := range cmds {
		ops[i] = c.Op
	}
	assert.Equal(t, []session.Op{session.OpAddCell, session.OpRunAll, session.OpRunCell, session.OpStopAll}, ops)
	assert.Equal(t, ir.CellID("cell-3"), cmds[0].CellID, "add records the id it assigned")
	assert.Equal(t, ir.CellID("cell-3"), cmds[2].CellID)
}
