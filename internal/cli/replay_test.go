package cli

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/nbsim/internal/store"
)

func executeReplay(t *testing.T, format string, args ...string) (*bytes.Buffer, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := NewReplayCommand(&RootOptions{Format: format})
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	return buf, cmd.Execute()
}

func TestReplayMissingDatabaseFlag(t *testing.T) {
	_, err := executeReplay(t, "text")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "required flag")
}

func TestReplayDatabaseNotFound(t *testing.T) {
	_, err := executeReplay(t, "text", "--db", tempDBPath(t))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestReplayEmptyDatabase(t *testing.T) {
	dbPath := tempDBPath(t)
	st, err := store.Open(dbPath)
	require.NoError(t, err)
	require.NoError(t, st.Close())

	buf, err := executeReplay(t, "text", "--db", dbPath)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "No sessions found in database.")
}

func TestReplaySingleSession(t *testing.T) {
	dbPath := tempDBPath(t)
	recordSession(t, dbPath, "s1")

	buf, err := executeReplay(t, "json", "--db", dbPath, "s1")
	require.NoError(t, err)

	var result ReplayResult
	resp := decodeResponse(t, buf, &result)
	assert.Equal(t, "ok", resp.Status)
	assert.True(t, result.AllDeterministic)
	require.Len(t, result.Sessions, 1)

	s := result.Sessions[0]
	assert.Equal(t, "s1", s.SessionID)
	assert.Equal(t, 3, s.Commands)
	assert.Equal(t, 16, s.RecordedEvents)
	assert.Equal(t, 16, s.ReplayedEvents)
	assert.Len(t, s.TraceHash, 64)
	assert.Empty(t, s.Divergence)
}

func TestReplayAllSessions(t *testing.T) {
	dbPath := tempDBPath(t)
	recordSession(t, dbPath, "s1")
	recordSession(t, dbPath, "s2")

	buf, err := executeReplay(t, "text", "--db", dbPath)
	require.NoError(t, err)
	output := buf.String()
	assert.Contains(t, output, "✓ s1: 3 commands, 16 events")
	assert.Contains(t, output, "✓ s2: 3 commands, 16 events")
	assert.Contains(t, output, "2 session(s) replay deterministically")
}

func TestReplayDetectsDivergence(t *testing.T) {
	dbPath := tempDBPath(t)
	recordSession(t, dbPath, "s1")

	st, err := store.Open(dbPath)
	require.NoError(t, err)
	_, err = st.DB().Exec(`UPDATE events SET output = 'forged' WHERE session_id = 's1' AND seq = 6`)
	require.NoError(t, err)
	require.NoError(t, st.Close())

	buf, err := executeReplay(t, "json", "--db", dbPath, "s1")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var result ReplayResult
	resp := decodeResponse(t, buf, &result)
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeDiverged, resp.Error.Code)
	assert.False(t, result.AllDeterministic)
	require.Len(t, result.Sessions, 1)
	assert.Contains(t, result.Sessions[0].Divergence, "event 5")
}

func TestReplaySessionNotFound(t *testing.T) {
	dbPath := tempDBPath(t)
	recordSession(t, dbPath, "s1")

	buf, err := executeReplay(t, "text", "--db", dbPath, "nope")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, buf.String(), "session not found: nope")
}
