package features

import (
	"errors"
	"fmt"
)

// Sentinel kinds for alignment errors.
var (
	ErrMissingColumn = errors.New("missing column")
	ErrInvalidValue  = errors.New("invalid value")
)

// MissingColumnError names the first required source field absent from an upload.
type MissingColumnError struct {
	Column string
}

func (e *MissingColumnError) Error() string {
	return fmt.Sprintf("missing column in uploaded CSV: %q", e.Column)
}

// Is reports kind equality so callers can match ErrMissingColumn.
func (e *MissingColumnError) Is(target error) bool { return target == ErrMissingColumn }

// InvalidValueError reports a numeric field cell that does not parse.
type InvalidValueError struct {
	Row    int
	Column string
	Value  string
}

func (e *InvalidValueError) Error() string {
	return fmt.Sprintf("row %d: column %q: cannot parse %q as a number", e.Row, e.Column, e.Value)
}

// Is reports kind equality so callers can match ErrInvalidValue.
func (e *InvalidValueError) Is(target error) bool { return target == ErrInvalidValue }
