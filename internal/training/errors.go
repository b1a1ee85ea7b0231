package training

import "errors"

// Sentinel kinds for training errors.
var (
	ErrMissingLabel  = errors.New("dataset has no label column")
	ErrInvalidLabel  = errors.New("invalid label value")
	ErrNoPositives   = errors.New("dataset has no fraudulent rows")
	ErrInvalidConfig = errors.New("invalid training config")
)
