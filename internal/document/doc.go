// Package document loads seed notebooks from YAML or CUE files.
//
// Both formats are validated against one embedded CUE schema (schema.cue),
// so a document is accepted or rejected identically whichever way it is
// written.
//
// YAML:
//
//	name: intro
//	unit_delay: 500ms
//	stop_mode: cancel
//	cells:
//	  - kind: narrative
//	    content: "# intro"
//	  - kind: code
//	    content: "x = 1"
//
// CUE:
//
//	notebook: {
//		name: "intro"
//		cells: [{kind: "code", content: "x = 1"}]
//	}
package document
