package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/roach88/nbsim/internal/document"
	"github.com/roach88/nbsim/internal/ir"
	"github.com/roach88/nbsim/internal/session"
)

// createTestStore creates a new store in a temporary directory.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// testDocument is a resolved two-cell document.
func testDocument() *document.Document {
	return &document.Document{
		Name:      "test",
		UnitDelay: "1s",
		Cells: []document.CellSpec{
			{ID: "cell-1", Kind: "narrative", Content: "# Notes <b>&</b>"},
			{ID: "cell-2", Kind: "code", Content: "x = 1"},
		},
	}
}

// beginTestSession records a session with testDocument.
func beginTestSession(t *testing.T, s *Store, id string) session.Info {
	t.Helper()
	info := session.Info{
		ID:        id,
		Name:      "test",
		Document:  testDocument(),
		StartedAt: time.Date(2026, 1, 2, 3, 4, 5, 6, time.UTC),
	}
	if err := s.BeginSession(context.Background(), info); err != nil {
		t.Fatalf("BeginSession() failed: %v", err)
	}
	return info
}

// createTestEvent creates a test event with minimal required fields.
func createTestEvent(seq int64, typ ir.EventType, cell ir.CellID) ir.Event {
	return ir.Event{
		Seq:    seq,
		At:     time.Duration(seq) * time.Millisecond,
		Type:   typ,
		CellID: cell,
	}
}
