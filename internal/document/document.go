package document

import (
	"fmt"
	"time"

	"github.com/roach88/nbsim/internal/ir"
	"github.com/roach88/nbsim/internal/notebook"
)

// Document describes a seed notebook and its simulation settings.
type Document struct {
	// Name identifies the notebook in traces and session listings.
	Name string `yaml:"name" json:"name"`

	// UnitDelay is a Go duration string ("1s", "250ms").
	// If empty, notebook.DefaultUnitDelay applies.
	UnitDelay string `yaml:"unit_delay,omitempty" json:"unit_delay,omitempty"`

	// StopMode is "cancel" (default) or "status_only".
	StopMode string `yaml:"stop_mode,omitempty" json:"stop_mode,omitempty"`

	// IDs is the id strategy for new cells: "sequence" (default) or "uuid".
	IDs string `yaml:"ids,omitempty" json:"ids,omitempty"`

	// Cells seeds the notebook. An empty list yields the welcome cell.
	Cells []CellSpec `yaml:"cells" json:"cells"`
}

// CellSpec is one seed cell.
type CellSpec struct {
	ID      string  `yaml:"id,omitempty" json:"id,omitempty"`
	Kind    string  `yaml:"kind" json:"kind"`
	Content string  `yaml:"content,omitempty" json:"content,omitempty"`
	Output  *string `yaml:"output,omitempty" json:"output,omitempty"`
}

// Settings are the parsed simulation settings of a document.
type Settings struct {
	UnitDelay time.Duration
	StopMode  ir.StopMode
	IDs       string
}

// Settings parses the document's simulation settings.
func (d *Document) Settings() (Settings, error) {
	s := Settings{UnitDelay: notebook.DefaultUnitDelay, IDs: d.IDs}
	if d.UnitDelay != "" {
		delay, err := time.ParseDuration(d.UnitDelay)
		if err != nil {
			return Settings{}, fmt.Errorf("unit_delay: %w", err)
		}
		if delay <= 0 {
			return Settings{}, fmt.Errorf("unit_delay must be positive, got %s", d.UnitDelay)
		}
		s.UnitDelay = delay
	}
	mode, err := ir.ParseStopMode(d.StopMode)
	if err != nil {
		return Settings{}, err
	}
	s.StopMode = mode
	return s, nil
}

// SeedCells converts the document cells to notebook cells.
func (d *Document) SeedCells() ([]ir.Cell, error) {
	cells := make([]ir.Cell, 0, len(d.Cells))
	for i, cs := range d.Cells {
		kind, err := ir.ParseCellKind(cs.Kind)
		if err != nil {
			return nil, fmt.Errorf("cells[%d]: %w", i, err)
		}
		c := ir.Cell{ID: ir.CellID(cs.ID), Kind: kind, Content: cs.Content}
		if cs.Output != nil {
			c.Output = ir.StringPtr(*cs.Output)
		}
		cells = append(cells, c)
	}
	return cells, nil
}

// Options returns the notebook options that reproduce the document.
// Callers append their own options (scheduler, observers) after these.
func (d *Document) Options() ([]notebook.Option, error) {
	settings, err := d.Settings()
	if err != nil {
		return nil, err
	}
	cells, err := d.SeedCells()
	if err != nil {
		return nil, err
	}
	ids, err := notebook.NewIDGenerator(settings.IDs)
	if err != nil {
		return nil, err
	}
	return []notebook.Option{
		notebook.WithUnitDelay(settings.UnitDelay),
		notebook.WithStopMode(settings.StopMode),
		notebook.WithIDGenerator(ids),
		notebook.WithCells(cells...),
	}, nil
}

// CellSpecs converts notebook cells back to seed cell specs.
func CellSpecs(cells []ir.Cell) []CellSpec {
	specs := make([]CellSpec, len(cells))
	for i, c := range cells {
		specs[i] = CellSpec{ID: string(c.ID), Kind: string(c.Kind), Content: c.Content}
		if c.Output != nil {
			specs[i].Output = ir.StringPtr(*c.Output)
		}
	}
	return specs
}
