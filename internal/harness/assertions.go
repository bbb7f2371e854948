package harness

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/roach88/nbsim/internal/ir"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string     // Assertion type for categorization
	Expected string     // Human-readable expected outcome
	Actual   string     // Human-readable actual outcome
	Trace    []ir.Event // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	// Header with assertion type
	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)

	// Expected vs Actual (most important info)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	// Full trace for context
	fmt.Fprintf(&buf, "\nFull trace:\n")
	for _, event := range e.Trace {
		fmt.Fprintf(&buf, "  [%d] %6dms %s\n", event.Seq, event.At.Milliseconds(), eventKey(event))
	}

	return buf.String()
}

// eventKey renders an event as "type" or "type:cell".
func eventKey(e ir.Event) string {
	if e.CellID == "" {
		return string(e.Type)
	}
	return string(e.Type) + ":" + string(e.CellID)
}

// matches reports whether e matches an event type and optional cell.
func matches(e ir.Event, typ, cell string) bool {
	return string(e.Type) == typ && (cell == "" || string(e.CellID) == cell)
}

func describe(typ, cell string) string {
	if cell == "" {
		return typ
	}
	return typ + ":" + cell
}

// assertTraceContains checks if the trace contains an event of the given
// type (for the given cell), optionally with the given output.
func assertTraceContains(trace []ir.Event, assertion Assertion) error {
	for _, event := range trace {
		if !matches(event, assertion.Event, assertion.Cell) {
			continue
		}
		if assertion.Output == nil {
			return nil
		}
		if event.Output != nil && *event.Output == *assertion.Output {
			return nil
		}
	}

	expected := describe(assertion.Event, assertion.Cell)
	if assertion.Output != nil {
		expected += fmt.Sprintf(" with output %q", *assertion.Output)
	}
	return &AssertionError{
		Type:     AssertTraceContains,
		Expected: expected,
		Actual:   "not found in trace",
		Trace:    trace,
	}
}

// assertTraceOrder checks that events appear in the specified order.
// Events don't need to be consecutive (intervening events are allowed);
// each key is matched after the position of the previous match.
func assertTraceOrder(trace []ir.Event, assertion Assertion) error {
	pos := 0
	for i, key := range assertion.Events {
		typ, cell, _ := strings.Cut(key, ":")
		found := false
		for pos < len(trace) {
			e := trace[pos]
			pos++
			if matches(e, typ, cell) {
				found = true
				break
			}
		}
		if !found {
			actual := fmt.Sprintf("missing event: %s", key)
			if i > 0 {
				actual = fmt.Sprintf("%s not found after %s", key, assertion.Events[i-1])
			}
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("events in order: %v", assertion.Events),
				Actual:   actual,
				Trace:    trace,
			}
		}
	}
	return nil
}

// assertTraceCount checks if the event appears exactly the specified number of times.
func assertTraceCount(trace []ir.Event, assertion Assertion) error {
	count := 0
	for _, event := range trace {
		if matches(event, assertion.Event, assertion.Cell) {
			count++
		}
	}

	if count != assertion.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%d occurrences of %s", assertion.Count, describe(assertion.Event, assertion.Cell)),
			Actual:   fmt.Sprintf("%d occurrences", count),
			Trace:    trace,
		}
	}
	return nil
}

// assertCompletionOrder checks the exact sequence of completed cells.
func assertCompletionOrder(trace []ir.Event, assertion Assertion) error {
	got := []string{}
	for _, event := range trace {
		if event.Type == ir.EventCellCompleted {
			got = append(got, string(event.CellID))
		}
	}
	if !cmp.Equal(assertion.Cells, got, cmpopts.EquateEmpty()) {
		return &AssertionError{
			Type:     AssertCompletionOrder,
			Expected: fmt.Sprintf("%v", assertion.Cells),
			Actual:   fmt.Sprintf("%v", got),
			Trace:    trace,
		}
	}
	return nil
}

// assertFinalState checks the final snapshot against the expected state.
func assertFinalState(result *Result, assertion Assertion) error {
	if err := matchState(result.Final, *assertion.State); err != nil {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: "state matches",
			Actual:   err.Error(),
			Trace:    result.Trace,
		}
	}
	return nil
}

// matchState checks snap against a subset expectation and reports every
// mismatch at once.
func matchState(snap ir.Snapshot, want StateExpect) error {
	var problems []string
	if want.Status != "" && string(snap.Status) != want.Status {
		problems = append(problems, fmt.Sprintf("status = %s, want %s", snap.Status, want.Status))
	}
	if want.Active != "" && string(snap.ActiveID) != want.Active {
		problems = append(problems, fmt.Sprintf("active = %s, want %s", snap.ActiveID, want.Active))
	}
	if want.CellCount != 0 && len(snap.Cells) != want.CellCount {
		problems = append(problems, fmt.Sprintf("cell_count = %d, want %d", len(snap.Cells), want.CellCount))
	}
	if len(want.Order) > 0 {
		order := make([]string, len(snap.Cells))
		for i, c := range snap.Cells {
			order[i] = string(c.ID)
		}
		if diff := cmp.Diff(want.Order, order); diff != "" {
			problems = append(problems, fmt.Sprintf("order mismatch (-want +got):\n%s", diff))
		}
	}
	for _, id := range slices.Sorted(maps.Keys(want.Cells)) {
		ce := want.Cells[id]
		idx := snap.Index(ir.CellID(id))
		if ce.Exists != nil {
			if exists := idx >= 0; exists != *ce.Exists {
				problems = append(problems, fmt.Sprintf("cell %s exists = %t, want %t", id, exists, *ce.Exists))
			}
			if !*ce.Exists {
				continue
			}
		}
		if idx < 0 {
			problems = append(problems, fmt.Sprintf("cell %s not found", id))
			continue
		}
		problems = append(problems, matchCell(snap.Cells[idx], ce)...)
	}

	if len(problems) == 0 {
		return nil
	}
	return fmt.Errorf("%s", strings.Join(problems, "; "))
}

func matchCell(c ir.Cell, want CellExpect) []string {
	var problems []string
	if want.Kind != "" {
		// Validated on load.
		kind, _ := ir.ParseCellKind(want.Kind)
		if c.Kind != kind {
			problems = append(problems, fmt.Sprintf("cell %s kind = %s, want %s", c.ID, c.Kind, kind))
		}
	}
	if want.Content != nil && c.Content != *want.Content {
		problems = append(problems, fmt.Sprintf("cell %s content = %q, want %q", c.ID, c.Content, *want.Content))
	}
	if want.Executing != nil && c.Executing != *want.Executing {
		problems = append(problems, fmt.Sprintf("cell %s executing = %t, want %t", c.ID, c.Executing, *want.Executing))
	}
	if want.HasOutput != nil && c.HasOutput() != *want.HasOutput {
		problems = append(problems, fmt.Sprintf("cell %s has_output = %t, want %t", c.ID, c.HasOutput(), *want.HasOutput))
	}
	if want.Output != nil {
		switch {
		case c.Output == nil:
			problems = append(problems, fmt.Sprintf("cell %s has no output, want %q", c.ID, *want.Output))
		case *c.Output != *want.Output:
			problems = append(problems, fmt.Sprintf("cell %s output = %q, want %q", c.ID, *c.Output, *want.Output))
		}
	}
	return problems
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertTraceContains:
			err = assertTraceContains(result.Trace, assertion)
		case AssertTraceOrder:
			err = assertTraceOrder(result.Trace, assertion)
		case AssertTraceCount:
			err = assertTraceCount(result.Trace, assertion)
		case AssertCompletionOrder:
			err = assertCompletionOrder(result.Trace, assertion)
		case AssertFinalState:
			if assertion.State == nil {
				err = fmt.Errorf("assertion[%d]: final_state requires a state", i)
			} else {
				err = assertFinalState(result, assertion)
			}
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}
