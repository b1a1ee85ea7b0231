package scoring

import (
	"errors"
	"fmt"
)

// Sentinel kinds for scoring errors.
var (
	ErrModelUnavailable = errors.New("model unavailable")
	ErrSchemaMismatch   = errors.New("feature matrix does not match model schema")
	ErrInvalidArtifact  = errors.New("invalid model artifact")
)

// ModelUnavailableError reports a Model Artifact that could not be loaded.
type ModelUnavailableError struct {
	Location string
	Err      error
}

func (e *ModelUnavailableError) Error() string {
	return fmt.Sprintf("model artifact %q unavailable: %v; train the model first", e.Location, e.Err)
}

func (e *ModelUnavailableError) Unwrap() error { return e.Err }

// Is reports kind equality so callers can match ErrModelUnavailable.
func (e *ModelUnavailableError) Is(target error) bool { return target == ErrModelUnavailable }
