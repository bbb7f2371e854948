package session

import (
	"fmt"

	"github.com/roach88/nbsim/internal/ir"
	"github.com/roach88/nbsim/internal/notebook"
)

// Apply executes cmd against nb and returns the command as applied: for
// add_cell the new cell id and the canonical kind are filled in.
//
// Errors from the notebook (unknown cell, last cell) are returned unchanged;
// in those cases nb is left exactly as it was.
func Apply(nb *notebook.Notebook, cmd Command) (Command, error) {
	switch cmd.Op {
	case OpAddCell:
		kind := ir.KindCode
		if cmd.Kind != "" {
			k, err := ir.ParseCellKind(string(cmd.Kind))
			if err != nil {
				return cmd, err
			}
			kind = k
		}
		id, err := nb.AddCell(kind)
		if err != nil {
			return cmd, err
		}
		cmd.CellID = id
		cmd.Kind = kind
		return cmd, nil

	case OpDeleteCell:
		return cmd, nb.DeleteCell(cmd.CellID)

	case OpSetContent:
		return cmd, nb.SetContent(cmd.CellID, cmd.Text)

	case OpSetKind:
		kind, err := ir.ParseCellKind(string(cmd.Kind))
		if err != nil {
			return cmd, err
		}
		cmd.Kind = kind
		return cmd, nb.SetKind(cmd.CellID, kind)

	case OpSetActive:
		return cmd, nb.SetActive(cmd.CellID)

	case OpRunCell:
		return cmd, nb.RunCell(cmd.CellID)

	case OpRunAll:
		nb.RunAll()
		return cmd, nil

	case OpStopAll:
		nb.StopAll()
		return cmd, nil

	default:
		return cmd, fmt.Errorf("%w: %q", ErrUnknownOp, cmd.Op)
	}
}
