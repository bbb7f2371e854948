package notebook

import (
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/roach88/nbsim/internal/engine"
	"github.com/roach88/nbsim/internal/ir"
)

// IDGenerator produces cell ids.
// Implemented by SequenceIDs (default), UUIDv7IDs and FixedIDs (tests).
type IDGenerator interface {
	NextID() ir.CellID
}

// reserver is implemented by generators that must skip ids already taken by
// seed cells.
type reserver interface {
	Reserve(id ir.CellID)
}

// SequenceIDs generates "cell-1", "cell-2", ... from a logical clock.
//
// Ids come from a monotonic counter, never from wall-clock time, so cells
// created in rapid succession cannot collide.
type SequenceIDs struct {
	clock *engine.Clock
}

// NewSequenceIDs creates a generator whose first id is "cell-1".
func NewSequenceIDs() *SequenceIDs {
	return &SequenceIDs{clock: engine.NewClock()}
}

// NextID returns the next sequential id.
func (g *SequenceIDs) NextID() ir.CellID {
	return ir.CellID(fmt.Sprintf("cell-%d", g.clock.Next()))
}

// Reserve makes sure later ids are numbered after id, if id is of the form
// "cell-N". Other ids are ignored.
func (g *SequenceIDs) Reserve(id ir.CellID) {
	n, ok := strings.CutPrefix(string(id), "cell-")
	if !ok {
		return
	}
	v, err := strconv.ParseInt(n, 10, 64)
	if err != nil || v < 0 {
		return
	}
	g.clock.AdvanceTo(v)
}

// UUIDv7IDs generates time-sortable UUIDv7 ids.
//
// Thread-safety: UUIDv7IDs is stateless and safe for concurrent use.
type UUIDv7IDs struct{}

// NextID creates a new UUIDv7 id.
//
// Panics if UUID generation fails (should never happen in practice).
func (UUIDv7IDs) NextID() ir.CellID {
	return ir.CellID(uuid.Must(uuid.NewV7()).String())
}

// FixedIDs returns predetermined ids for testing.
//
// Example:
//
//	gen := NewFixedIDs("a", "b")
//	gen.NextID() // "a"
//	gen.NextID() // "b"
//	gen.NextID() // panic: all ids exhausted
type FixedIDs struct {
	mu  sync.Mutex
	ids []ir.CellID
	idx int
}

// NewFixedIDs creates a generator that returns ids in order.
func NewFixedIDs(ids ...ir.CellID) *FixedIDs {
	return &FixedIDs{ids: ids}
}

// NextID returns the next predetermined id.
//
// Panics if all ids have been consumed, to catch test misconfiguration.
func (g *FixedIDs) NextID() ir.CellID {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.idx >= len(g.ids) {
		panic("FixedIDs: all ids exhausted")
	}
	id := g.ids[g.idx]
	g.idx++
	return id
}

// NewIDGenerator returns the generator for a strategy name:
// "sequence" (or empty) or "uuid".
func NewIDGenerator(strategy string) (IDGenerator, error) {
	switch strings.ToLower(strategy) {
	case "", "sequence":
		return NewSequenceIDs(), nil
	case "uuid", "uuidv7":
		return UUIDv7IDs{}, nil
	default:
		return nil, fmt.Errorf("unknown id strategy %q: must be sequence or uuid", strategy)
	}
}
