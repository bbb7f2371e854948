package notebook

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/nbsim/internal/engine"
	"github.com/roach88/nbsim/internal/ir"
)

// recorder collects events for assertions.
type recorder struct {
	events []ir.Event
}

func (r *recorder) OnEvent(e ir.Event) { r.events = append(r.events, e) }

func (r *recorder) types() []ir.EventType {
	out := make([]ir.EventType, len(r.events))
	for i, e := range r.events {
		out[i] = e.Type
	}
	return out
}

func newTestNotebook(t *testing.T, opts ...Option) (*Notebook, *engine.VirtualScheduler, *recorder) {
	t.Helper()
	sched := engine.NewVirtualScheduler()
	rec := &recorder{}
	all := append([]Option{WithScheduler(sched), WithObserver(rec)}, opts...)
	nb, err := New(all...)
	require.NoError(t, err)
	return nb, sched, rec
}

func threeCells() Option {
	return WithCells(
		ir.Cell{Kind: ir.KindNarrative, Content: "# intro"},
		ir.Cell{Kind: ir.KindCode, Content: "x=1"},
		ir.Cell{Kind: ir.KindCode, Content: "y=2"},
	)
}

func ids(nb *Notebook) []ir.CellID {
	var out []ir.CellID
	for _, c := range nb.Cells() {
		out = append(out, c.ID)
	}
	return out
}

func TestNew_DefaultsToWelcomeCell(t *testing.T) {
	nb, _, _ := newTestNotebook(t)

	require.Equal(t, 1, nb.Len())
	c := nb.Cells()[0]
	assert.Equal(t, ir.CellID("cell-1"), c.ID)
	assert.Equal(t, ir.KindNarrative, c.Kind)
	assert.Equal(t, WelcomeContent, c.Content)
	assert.Equal(t, c.ID, nb.ActiveID())
	assert.Equal(t, ir.StatusIdle, nb.Status())
	assert.Equal(t, DefaultUnitDelay, nb.UnitDelay())
}

func TestNew_SeedCells(t *testing.T) {
	nb, _, _ := newTestNotebook(t, WithCells(
		ir.Cell{ID: "cell-7", Kind: ir.KindCode, Content: "a", Executing: true, Output: ir.StringPtr("old")},
		ir.Cell{Kind: ir.KindNarrative, Content: "b"},
	))

	got := nb.Cells()
	want := []ir.Cell{
		{ID: "cell-7", Kind: ir.KindCode, Content: "a", Output: ir.StringPtr("old")},
		{ID: "cell-8", Kind: ir.KindNarrative, Content: "b"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("seed cells mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, ir.CellID("cell-7"), nb.ActiveID())

	id, err := nb.AddCell(ir.KindCode)
	require.NoError(t, err)
	assert.Equal(t, ir.CellID("cell-9"), id, "generated ids continue after seeded ones")
}

func TestNew_RejectsInvalidSeeds(t *testing.T) {
	_, err := New(WithCells(ir.Cell{Kind: "sql"}))
	assert.True(t, IsInvalidKind(err))

	_, err = New(WithCells(ir.Cell{ID: "a", Kind: ir.KindCode}, ir.Cell{ID: "a", Kind: ir.KindCode}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), string(ErrCodeDuplicateID))
}

func TestAddCell_AppendsAndActivates(t *testing.T) {
	nb, _, rec := newTestNotebook(t, threeCells())

	for i := 0; i < 5; i++ {
		kind := ir.KindCode
		if i%2 == 1 {
			kind = ir.KindNarrative
		}
		id, err := nb.AddCell(kind)
		require.NoError(t, err)
		assert.Equal(t, id, nb.ActiveID(), "active cell must be the most recently added")

		c, ok := nb.Cell(id)
		require.True(t, ok)
		assert.Equal(t, kind, c.Kind)
		assert.False(t, c.Executing)
		assert.Nil(t, c.Output)
		if kind == ir.KindCode {
			assert.Equal(t, CodePlaceholder, c.Content)
		} else {
			assert.Equal(t, NarrativePlaceholder, c.Content)
		}
		assert.Equal(t, id, ids(nb)[nb.Len()-1])
	}

	assert.Equal(t, ir.EventCellAdded, rec.events[0].Type)
	assert.Equal(t, ir.EventActiveChanged, rec.events[1].Type)
}

func TestAddCell_InvalidKind(t *testing.T) {
	nb, _, rec := newTestNotebook(t)

	_, err := nb.AddCell("raw")
	assert.True(t, IsInvalidKind(err))
	assert.Equal(t, 1, nb.Len())
	assert.Empty(t, rec.events)
}

func TestAddCell_IdsNeverReused(t *testing.T) {
	nb, _, _ := newTestNotebook(t, threeCells())

	seen := map[ir.CellID]bool{}
	for _, id := range ids(nb) {
		seen[id] = true
	}
	for i := 0; i < 20; i++ {
		id, err := nb.AddCell(ir.KindCode)
		require.NoError(t, err)
		assert.False(t, seen[id], "id %s reused", id)
		seen[id] = true
		require.NoError(t, nb.DeleteCell(id))
	}
}

func TestAddCell_SkipsTakenIds(t *testing.T) {
	nb, _, _ := newTestNotebook(t,
		WithIDGenerator(NewFixedIDs("a", "a", "b")),
		WithCells(ir.Cell{ID: "a", Kind: ir.KindCode}),
	)

	id, err := nb.AddCell(ir.KindCode)
	require.NoError(t, err)
	assert.Equal(t, ir.CellID("b"), id)
}

func TestDeleteCell_LastCellRejected(t *testing.T) {
	nb, _, rec := newTestNotebook(t)
	before := nb.Snapshot()

	err := nb.DeleteCell(before.Cells[0].ID)
	assert.True(t, IsLastCell(err))
	assert.Equal(t, before, nb.Snapshot())
	assert.Empty(t, rec.events)
}

func TestDeleteCell_UnknownId(t *testing.T) {
	nb, _, _ := newTestNotebook(t, threeCells())
	before := nb.Snapshot()

	err := nb.DeleteCell("cell-99")
	assert.True(t, IsNotFound(err))
	assert.Equal(t, before, nb.Snapshot())
}

func TestDeleteCell_ActiveMovesToPreceding(t *testing.T) {
	nb, _, _ := newTestNotebook(t, threeCells())
	require.NoError(t, nb.SetActive("cell-1"))

	require.NoError(t, nb.DeleteCell("cell-3"))
	assert.Equal(t, []ir.CellID{"cell-1", "cell-2"}, ids(nb))
	assert.Equal(t, ir.CellID("cell-2"), nb.ActiveID())
}

func TestDeleteCell_FirstCellActivatesNewFirst(t *testing.T) {
	nb, _, _ := newTestNotebook(t, threeCells())
	require.NoError(t, nb.SetActive("cell-3"))

	require.NoError(t, nb.DeleteCell("cell-1"))
	assert.Equal(t, []ir.CellID{"cell-2", "cell-3"}, ids(nb))
	assert.Equal(t, ir.CellID("cell-2"), nb.ActiveID())
}

func TestDeleteCell_MiddleCell(t *testing.T) {
	nb, _, rec := newTestNotebook(t, threeCells())

	require.NoError(t, nb.DeleteCell("cell-2"))
	assert.Equal(t, []ir.CellID{"cell-1", "cell-3"}, ids(nb))
	assert.Equal(t, ir.CellID("cell-1"), nb.ActiveID())

	_, ok := nb.Cell("cell-2")
	assert.False(t, ok)

	// cell-1 was already active, so only the deletion is reported.
	assert.Equal(t, []ir.EventType{ir.EventCellDeleted}, rec.types())
}

func TestAddThenDeleteRestoresState(t *testing.T) {
	nb, _, _ := newTestNotebook(t, WithCells(
		ir.Cell{Kind: ir.KindNarrative, Content: "a"},
		ir.Cell{Kind: ir.KindCode, Content: "b"},
	))
	require.NoError(t, nb.SetActive("cell-2"))
	before := nb.Snapshot()

	id, err := nb.AddCell(ir.KindCode)
	require.NoError(t, err)
	require.NoError(t, nb.DeleteCell(id))

	if diff := cmp.Diff(before, nb.Snapshot()); diff != "" {
		t.Errorf("state not restored (-want +got):\n%s", diff)
	}
}

func TestSetContent(t *testing.T) {
	nb, _, rec := newTestNotebook(t, threeCells())

	require.NoError(t, nb.SetContent("cell-2", "z = 42"))
	c, _ := nb.Cell("cell-2")
	assert.Equal(t, "z = 42", c.Content)

	require.Len(t, rec.events, 1)
	assert.Equal(t, ir.EventContentChanged, rec.events[0].Type)
	assert.Equal(t, "z = 42", *rec.events[0].Content)

	assert.True(t, IsNotFound(nb.SetContent("nope", "x")))
}

func TestSetKind_KeepsContentAndOutput(t *testing.T) {
	nb, _, rec := newTestNotebook(t, WithCells(
		ir.Cell{Kind: ir.KindCode, Content: "x=1", Output: ir.StringPtr("1")},
	))

	require.NoError(t, nb.SetKind("cell-1", ir.KindNarrative))
	c, _ := nb.Cell("cell-1")
	assert.Equal(t, ir.KindNarrative, c.Kind)
	assert.Equal(t, "x=1", c.Content)
	require.NotNil(t, c.Output)
	assert.Equal(t, "1", *c.Output)

	require.NoError(t, nb.SetKind("cell-1", ir.KindNarrative))
	assert.Len(t, rec.events, 1, "unchanged kind emits nothing")

	assert.True(t, IsInvalidKind(nb.SetKind("cell-1", "raw")))
	assert.True(t, IsNotFound(nb.SetKind("nope", ir.KindCode)))
}

func TestSetActive(t *testing.T) {
	nb, _, rec := newTestNotebook(t, threeCells())

	require.NoError(t, nb.SetActive("cell-3"))
	assert.Equal(t, ir.CellID("cell-3"), nb.ActiveID())
	require.NoError(t, nb.SetActive("cell-3"))
	assert.Len(t, rec.events, 1)

	assert.True(t, IsNotFound(nb.SetActive("cell-9")))
	assert.Equal(t, ir.CellID("cell-3"), nb.ActiveID())
}

func TestSnapshotIsACopy(t *testing.T) {
	nb, _, _ := newTestNotebook(t, WithCells(ir.Cell{Kind: ir.KindCode, Output: ir.StringPtr("o")}))

	s := nb.Snapshot()
	s.Cells[0].Content = "mutated"
	*s.Cells[0].Output = "mutated"

	c, _ := nb.Cell("cell-1")
	assert.Equal(t, "", c.Content)
	assert.Equal(t, "o", *c.Output)
}

func TestEventsAreSequenced(t *testing.T) {
	nb, _, rec := newTestNotebook(t, threeCells())

	_, err := nb.AddCell(ir.KindCode)
	require.NoError(t, err)
	require.NoError(t, nb.SetContent("cell-4", "q"))
	require.NoError(t, nb.DeleteCell("cell-4"))

	require.NotEmpty(t, rec.events)
	for i := 1; i < len(rec.events); i++ {
		assert.Greater(t, rec.events[i].Seq, rec.events[i-1].Seq)
	}
}

func TestEveryObserverSeesStampedEvents(t *testing.T) {
	second := &recorder{}
	nb, sched, rec := newTestNotebook(t, threeCells(),
		WithUnitDelay(250*time.Millisecond), WithObserver(second))

	require.NoError(t, nb.RunCell("cell-2"))
	sched.Advance(250 * time.Millisecond)

	require.Len(t, rec.events, 2)
	if diff := cmp.Diff(rec.events, second.events); diff != "" {
		t.Errorf("observers disagree (-first +second):\n%s", diff)
	}
	assert.Equal(t, []int64{1, 2}, []int64{rec.events[0].Seq, rec.events[1].Seq})
	assert.Equal(t, time.Duration(0), rec.events[0].At)
	assert.Equal(t, 250*time.Millisecond, rec.events[1].At)
}

func TestErrorMessage(t *testing.T) {
	err := notFound("cell-3")
	assert.Equal(t, "CELL_NOT_FOUND: no such cell (cell=cell-3)", err.Error())
	assert.Equal(t, `INVALID_KIND: invalid cell kind "x"`, invalidKind("x").Error())
	assert.False(t, IsNotFound(nil))
}
