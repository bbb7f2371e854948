// Package harness runs notebook scenarios as executable tests.
//
// A scenario seeds a notebook, drives it through a list of steps on a
// virtual clock and asserts on the resulting event trace and final state.
// Every run is also recorded into an in-memory store and replayed, so a
// passing scenario proves that its session replays to the same trace.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: run_all_basic
//	description: "What this scenario validates"
//	notebook:                   # or document: path/to/notebook.yaml
//	  name: demo
//	  unit_delay: 1s
//	  cells:
//	    - {id: cell-1, kind: narrative, content: "# Title"}
//	    - {id: cell-2, kind: code, content: "x = 1"}
//	steps:
//	  - op: run_all
//	    expect: {status: running}
//	  - advance_units: 2
//	  - op: delete_cell
//	    cell: cell-9
//	    expect: {error: not_found}
//	  - settle: true
//	assertions:
//	  - type: completion_order
//	    cells: [cell-1, cell-2]
//	  - type: final_state
//	    state: {status: idle, active: cell-2}
//
// A step is exactly one of: a command (op with cell, kind and text as the
// op needs), advance (a duration), advance_units (multiples of the unit
// delay) or settle (fire everything pending).
//
// # Assertion Types
//
//   - trace_contains: an event type (optionally for a cell, with an output) appears
//   - trace_order: event keys ("type" or "type:cell") appear in order
//   - trace_count: an event appears exactly N times
//   - completion_order: cells completed in exactly this order
//   - final_state: subset match on the final snapshot
//
// # Golden Files
//
// RunWithGolden compares the canonical JSON of the trace and final state
// against testdata/golden/{name}.golden.
package harness
