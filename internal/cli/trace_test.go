package cli

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/nbsim/internal/store"
)

func executeTrace(t *testing.T, opts *RootOptions, args ...string) (*bytes.Buffer, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := NewTraceCommand(opts)
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	return buf, cmd.Execute()
}

func TestTraceMissingDatabaseFlag(t *testing.T) {
	_, err := executeTrace(t, &RootOptions{Format: "text"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "required flag")
	assert.Contains(t, err.Error(), "db")
}

func TestTraceDatabaseNotFound(t *testing.T) {
	_, err := executeTrace(t, &RootOptions{Format: "text"}, "--db", tempDBPath(t))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "database not found")
}

func TestTraceListSessions(t *testing.T) {
	dbPath := tempDBPath(t)
	recordSession(t, dbPath, "session-a")
	recordSession(t, dbPath, "session-b")

	buf, err := executeTrace(t, &RootOptions{Format: "text"}, "--db", dbPath)
	require.NoError(t, err)
	output := buf.String()
	assert.Contains(t, output, "SESSION")
	assert.Contains(t, output, "session-a")
	assert.Contains(t, output, "session-b")
	assert.Contains(t, output, "recorded")

	buf, err = executeTrace(t, &RootOptions{Format: "json"}, "--db", dbPath)
	require.NoError(t, err)
	var listing []SessionListing
	resp := decodeResponse(t, buf, &listing)
	assert.Equal(t, "ok", resp.Status)
	require.Len(t, listing, 2)
	assert.Equal(t, 3, listing[0].Commands)
	assert.Equal(t, 16, listing[0].Events)
}

func TestTraceSessionTimeline(t *testing.T) {
	dbPath := tempDBPath(t)
	recordSession(t, dbPath, "s1")

	buf, err := executeTrace(t, &RootOptions{Format: "text", Verbose: true}, "--db", dbPath, "s1")
	require.NoError(t, err)

	output := buf.String()
	assert.Contains(t, output, "Trace for Session: s1")
	assert.Contains(t, output, "=== Timeline ===")
	assert.Contains(t, output, "run_started")
	assert.Contains(t, output, "cell_cancelled")
	assert.Contains(t, output, "output:  Execution result for cell-2 would appear here.")
	assert.Contains(t, output, "Total Events: 16")
	assert.Contains(t, output, "Runs:         2")
	assert.Contains(t, output, "Completions:  4")
	assert.Contains(t, output, "Cancelled:    2")
}

func TestTraceFilters(t *testing.T) {
	dbPath := tempDBPath(t)
	recordSession(t, dbPath, "s1")

	tests := []struct {
		name      string
		args      []string
		wantTypes []string
	}{
		{
			name:      "by cell",
			args:      []string{"--cell", "cell-3"},
			wantTypes: []string{"cell_started", "cell_completed", "cell_started", "cell_cancelled"},
		},
		{
			name:      "by type",
			args:      []string{"--type", "run_finished", "--type", "run_stopped"},
			wantTypes: []string{"run_finished", "run_stopped"},
		},
		{
			name:      "by cell and type",
			args:      []string{"--cell", "cell-2", "--type", "cell_completed"},
			wantTypes: []string{"cell_completed"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append([]string{"--db", dbPath, "s1"}, tt.args...)
			buf, err := executeTrace(t, &RootOptions{Format: "json"}, args...)
			require.NoError(t, err)

			var result TraceResult
			resp := decodeResponse(t, buf, &result)
			assert.Equal(t, "ok", resp.Status)

			var types []string
			for _, e := range result.Timeline {
				types = append(types, e.Type)
			}
			assert.Equal(t, tt.wantTypes, types)
		})
	}
}

func TestTraceUnknownEventType(t *testing.T) {
	dbPath := tempDBPath(t)
	recordSession(t, dbPath, "s1")

	_, err := executeTrace(t, &RootOptions{Format: "text"}, "--db", dbPath, "s1", "--type", "cell_exploded")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "cell_exploded")
}

func TestTraceFiltersRequireSession(t *testing.T) {
	dbPath := tempDBPath(t)
	recordSession(t, dbPath, "s1")

	_, err := executeTrace(t, &RootOptions{Format: "text"}, "--db", dbPath, "--delete")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestTraceSessionNotFound(t *testing.T) {
	dbPath := tempDBPath(t)
	recordSession(t, dbPath, "s1")

	buf, err := executeTrace(t, &RootOptions{Format: "json"}, "--db", dbPath, "s2")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	resp := decodeResponse(t, buf, nil)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeNotFound, resp.Error.Code)
}

func TestTraceDeleteSession(t *testing.T) {
	dbPath := tempDBPath(t)
	recordSession(t, dbPath, "s1")
	recordSession(t, dbPath, "s2")

	buf, err := executeTrace(t, &RootOptions{Format: "text"}, "--db", dbPath, "s1", "--delete")
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "deleted session s1")

	st, err := store.Open(dbPath)
	require.NoError(t, err)
	defer st.Close()
	sessions, err := st.ListSessions(context.Background())
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, "s2", sessions[0].ID)
}

func TestTruncateText(t *testing.T) {
	assert.Equal(t, "short", truncateText("short"))
	assert.Equal(t, "first ...", truncateText("first\nsecond"))
	long := strings.Repeat("é", 80)
	got := truncateText(long)
	assert.Equal(t, 60, len([]rune(got)))
	assert.Equal(t, "...", got[len(got)-3:])
}
