package document

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
	"gopkg.in/yaml.v3"
)

//go:embed schema.cue
var schemaCUE string

// LoadError reports an invalid document, with its CUE position if known.
type LoadError struct {
	Path    string
	Message string
	Pos     token.Pos
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Message)
	}
	if e.Path != "" {
		return fmt.Sprintf("%s: %s", e.Path, e.Message)
	}
	return e.Message
}

// Load reads a notebook document. The format follows the extension:
// .yaml/.yml for YAML, .cue for CUE. CUE files either are the document or
// carry it in a top-level "notebook" field.
func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read notebook document: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return ParseYAML(data, path)
	case ".cue":
		return ParseCUE(data, path)
	default:
		return nil, &LoadError{Path: path, Message: "unsupported document extension (want .yaml, .yml or .cue)"}
	}
}

// ParseYAML parses a YAML document strictly (unknown fields are errors) and
// validates it against the schema. name is used in error messages.
func ParseYAML(data []byte, name string) (*Document, error) {
	var doc Document
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&doc); err != nil {
		return nil, &LoadError{Path: name, Message: fmt.Sprintf("failed to parse YAML: %v", err)}
	}
	if err := Validate(&doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

// ParseCUE evaluates a CUE document, unifies it with the schema and decodes
// it. name becomes the CUE filename in positions.
func ParseCUE(data []byte, name string) (*Document, error) {
	ctx := cuecontext.New()
	v := ctx.CompileBytes(data, cue.Filename(name))
	if err := v.Err(); err != nil {
		return nil, formatCUEError(name, err)
	}

	if nb := v.LookupPath(cue.ParsePath("notebook")); nb.Exists() {
		v = nb
	}

	schema, err := notebookSchema(ctx)
	if err != nil {
		return nil, err
	}
	unified := schema.Unify(v)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return nil, formatCUEError(name, err)
	}

	var doc Document
	if err := unified.Decode(&doc); err != nil {
		return nil, formatCUEError(name, err)
	}
	if err := checkSemantics(&doc); err != nil {
		return nil, &LoadError{Path: name, Message: err.Error()}
	}
	return &doc, nil
}

// Validate checks an in-memory document against the schema.
func Validate(doc *Document) error {
	ctx := cuecontext.New()
	schema, err := notebookSchema(ctx)
	if err != nil {
		return err
	}

	// JSON is valid CUE; going through encoding/json keeps omitempty semantics.
	c := *doc
	if c.Cells == nil {
		c.Cells = []CellSpec{}
	}
	data, err := json.Marshal(&c)
	if err != nil {
		return fmt.Errorf("encode document: %w", err)
	}
	v := ctx.CompileBytes(data, cue.Filename(doc.Name))
	if err := v.Err(); err != nil {
		return formatCUEError(doc.Name, err)
	}
	if err := schema.Unify(v).Validate(cue.Concrete(true)); err != nil {
		return formatCUEError(doc.Name, err)
	}
	if err := checkSemantics(doc); err != nil {
		return &LoadError{Path: doc.Name, Message: err.Error()}
	}
	return nil
}

// checkSemantics covers what the schema cannot express.
func checkSemantics(doc *Document) error {
	if _, err := doc.Settings(); err != nil {
		return err
	}
	seen := make(map[string]bool, len(doc.Cells))
	for i, c := range doc.Cells {
		if c.ID == "" {
			continue
		}
		if seen[c.ID] {
			return fmt.Errorf("cells[%d]: duplicate cell id %q", i, c.ID)
		}
		seen[c.ID] = true
	}
	return nil
}

func notebookSchema(ctx *cue.Context) (cue.Value, error) {
	schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return cue.Value{}, fmt.Errorf("compile notebook schema: %w", err)
	}
	return schema.LookupPath(cue.ParsePath("#Notebook")), nil
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(path string, err error) error {
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return &LoadError{Path: path, Message: err.Error()}
	}
	return &LoadError{Path: path, Message: errs[0].Error(), Pos: sourcePos(path, errs)}
}

// sourcePos picks the first position inside the document itself. A
// disjunction failure carries no position of its own; its sub-errors point
// at both the document and the schema.
func sourcePos(path string, errs []errors.Error) token.Pos {
	var fallback token.Pos
	for _, e := range errs {
		for _, pos := range errors.Positions(e) {
			if !pos.IsValid() {
				continue
			}
			if pos.Filename() == path {
				return pos
			}
			if !fallback.IsValid() {
				fallback = pos
			}
		}
	}
	return fallback
}
