package document

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/nbsim/internal/ir"
	"github.com/roach88/nbsim/internal/notebook"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_YAML(t *testing.T) {
	doc, err := Load(filepath.Join("testdata", "welcome.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "welcome", doc.Name)
	require.Len(t, doc.Cells, 3)
	assert.Equal(t, "markdown", doc.Cells[0].Kind)
	assert.Nil(t, doc.Cells[0].Output)
	require.NotNil(t, doc.Cells[1].Output)
	assert.Equal(t, "DataFrame output would appear here", *doc.Cells[1].Output)
}

func TestLoad_CUEMatchesYAML(t *testing.T) {
	fromYAML, err := Load(filepath.Join("testdata", "welcome.yaml"))
	require.NoError(t, err)
	fromCUE, err := Load(filepath.Join("testdata", "welcome.cue"))
	require.NoError(t, err)

	assert.Equal(t, fromYAML, fromCUE)
}

func TestParseCUE_BareDocument(t *testing.T) {
	doc, err := ParseCUE([]byte(`
name: "bare"
stop_mode: "status_only"
cells: [{kind: "code", content: "x = 1"}]
`), "bare.cue")
	require.NoError(t, err)

	assert.Equal(t, "bare", doc.Name)
	assert.Equal(t, "status_only", doc.StopMode)
	require.Len(t, doc.Cells, 1)
	assert.Equal(t, "x = 1", doc.Cells[0].Content)
}

func TestParseCUE_SchemaViolationHasPosition(t *testing.T) {
	_, err := ParseCUE([]byte(`
name: "bad"
cells: [{kind: "sql"}]
`), "bad.cue")
	require.Error(t, err)

	var le *LoadError
	require.ErrorAs(t, err, &le)
	require.True(t, le.Pos.IsValid(), "expected a source position, got %v", err)
	// The kind of the first cell, not the schema's disjunction.
	assert.Equal(t, "bad.cue", le.Pos.Filename())
	assert.Equal(t, 3, le.Pos.Line())
}

func TestParseYAML_UnknownFieldRejected(t *testing.T) {
	_, err := ParseYAML([]byte("name: x\ncolor: blue\n"), "x.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "color")
}

func TestParseYAML_Errors(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr string
	}{
		{"missing name", "cells: []\n", "name"},
		{"invalid kind", "name: x\ncells:\n  - kind: sql\n", "kind"},
		{"bad unit delay", "name: x\nunit_delay: soon\n", "unit_delay"},
		{"zero unit delay", "name: x\nunit_delay: 0s\n", "positive"},
		{"bad stop mode", "name: x\nstop_mode: pause\n", "stop_mode"},
		{"bad id strategy", "name: x\nids: random\n", "ids"},
		{"duplicate ids", "name: x\ncells:\n  - {id: a, kind: code}\n  - {id: a, kind: code}\n", "duplicate cell id"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseYAML([]byte(tt.input), "x.yaml")
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoad_UnsupportedExtension(t *testing.T) {
	path := writeFile(t, "notebook.json", `{"name": "x"}`)
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported document extension")
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read notebook document")
}

func TestSettings_Defaults(t *testing.T) {
	doc := &Document{Name: "x"}
	s, err := doc.Settings()
	require.NoError(t, err)

	assert.Equal(t, notebook.DefaultUnitDelay, s.UnitDelay)
	assert.Equal(t, ir.StopCancel, s.StopMode)
}

func TestOptions_SeedNotebook(t *testing.T) {
	doc, err := Load(filepath.Join("testdata", "welcome.yaml"))
	require.NoError(t, err)

	opts, err := doc.Options()
	require.NoError(t, err)
	nb, err := notebook.New(opts...)
	require.NoError(t, err)

	cells := nb.Cells()
	require.Len(t, cells, 3)
	assert.Equal(t, ir.KindNarrative, cells[0].Kind)
	assert.Equal(t, ir.CellID("cell-1"), nb.ActiveID())
	assert.Equal(t, time.Second, nb.UnitDelay())

	// generated ids continue after the seeded ones
	id, err := nb.AddCell(ir.KindCode)
	require.NoError(t, err)
	assert.Equal(t, ir.CellID("cell-4"), id)
}

func TestOptions_EmptyDocumentGetsWelcomeCell(t *testing.T) {
	doc, err := ParseYAML([]byte("name: empty\nunit_delay: 250ms\n"), "empty.yaml")
	require.NoError(t, err)

	opts, err := doc.Options()
	require.NoError(t, err)
	nb, err := notebook.New(opts...)
	require.NoError(t, err)

	cells := nb.Cells()
	require.Len(t, cells, 1)
	assert.Equal(t, notebook.WelcomeContent, cells[0].Content)
	assert.Equal(t, 250*time.Millisecond, nb.UnitDelay())
}
