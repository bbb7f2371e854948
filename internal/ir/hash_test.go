package ir

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTraceHashDeterministic(t *testing.T) {
	events := []Event{
		{Seq: 1, Type: EventRunStarted, RunID: 1},
		{Seq: 2, At: time.Second, Type: EventCellCompleted, CellID: "cell-1", Kind: KindCode, Output: StringPtr("ok")},
	}

	h1, err := TraceHash(events)
	require.NoError(t, err)
	h2, err := TraceHash(events)
	require.NoError(t, err)

	assert.Equal(t, h1, h2)
	assert.Len(t, h1, 64)
}

func TestTraceHashSensitiveToOrder(t *testing.T) {
	a := Event{Seq: 1, Type: EventCellStarted, CellID: "cell-1"}
	b := Event{Seq: 2, Type: EventCellStarted, CellID: "cell-2"}

	h1, err := TraceHash([]Event{a, b})
	require.NoError(t, err)
	h2, err := TraceHash([]Event{b, a})
	require.NoError(t, err)

	assert.NotEqual(t, h1, h2)
}

func TestSnapshotHashDomainSeparated(t *testing.T) {
	s := Snapshot{ActiveID: "cell-1", Status: StatusIdle, Cells: []Cell{{ID: "cell-1", Kind: KindNarrative}}}
	sh, err := SnapshotHash(s)
	require.NoError(t, err)

	th, err := TraceHash(nil)
	require.NoError(t, err)

	assert.NotEqual(t, sh, th)
}

func TestEventCanonicalMapOmitsAbsentFields(t *testing.T) {
	m := Event{Seq: 3, At: 1500 * time.Millisecond, Type: EventRunFinished, RunID: 2}.CanonicalMap()

	assert.Equal(t, map[string]any{
		"seq":    int64(3),
		"at_ms":  int64(1500),
		"type":   "run_finished",
		"run_id": int64(2),
	}, m)
}
