package notebook

import (
	"errors"
	"fmt"

	"github.com/roach88/nbsim/internal/ir"
)

// Error reports an operation that was ignored.
//
// Every operation that returns an *Error leaves the notebook exactly as it
// was: callers that only care about state may discard it.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// CellID identifies the affected cell, if any.
	CellID ir.CellID
}

// ErrorCode categorizes notebook errors.
type ErrorCode string

const (
	// ErrCodeCellNotFound indicates the referenced cell is not in the notebook.
	ErrCodeCellNotFound ErrorCode = "CELL_NOT_FOUND"

	// ErrCodeLastCell indicates an attempt to delete the only remaining cell.
	ErrCodeLastCell ErrorCode = "LAST_CELL"

	// ErrCodeInvalidKind indicates a kind other than code or narrative.
	ErrCodeInvalidKind ErrorCode = "INVALID_KIND"

	// ErrCodeDuplicateID indicates two seed cells share an id.
	ErrCodeDuplicateID ErrorCode = "DUPLICATE_ID"
)

// Error implements the error interface.
func (e *Error) Error() string {
	if e.CellID != "" {
		return fmt.Sprintf("%s: %s (cell=%s)", e.Code, e.Message, e.CellID)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsNotFound returns true if err is a cell-not-found error.
// Uses errors.As to handle wrapped errors.
func IsNotFound(err error) bool {
	return hasCode(err, ErrCodeCellNotFound)
}

// IsLastCell returns true if err rejected deleting the only cell.
func IsLastCell(err error) bool {
	return hasCode(err, ErrCodeLastCell)
}

// IsInvalidKind returns true if err rejected an unknown cell kind.
func IsInvalidKind(err error) bool {
	return hasCode(err, ErrCodeInvalidKind)
}

func hasCode(err error, code ErrorCode) bool {
	var ne *Error
	if errors.As(err, &ne) {
		return ne.Code == code
	}
	return false
}

func notFound(id ir.CellID) *Error {
	return &Error{Code: ErrCodeCellNotFound, Message: "no such cell", CellID: id}
}

func lastCell(id ir.CellID) *Error {
	return &Error{Code: ErrCodeLastCell, Message: "cannot delete the only remaining cell", CellID: id}
}

func invalidKind(kind ir.CellKind) *Error {
	return &Error{Code: ErrCodeInvalidKind, Message: fmt.Sprintf("invalid cell kind %q", kind)}
}
