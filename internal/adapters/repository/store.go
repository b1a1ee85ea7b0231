// Package repository keeps processed runs so results can be listed, viewed and
// exported after the upload request finished.
package repository

import (
	"context"

	"github.com/okian/fraudwatch/internal/domain/model"
)

// Store provides read/write access to processed runs.
type Store interface {
	// Save inserts or replaces a run.
	Save(ctx context.Context, r *model.Run) error

	// Get returns a run by ID.
	// Returns ErrNotFound if the run is unknown or was evicted.
	Get(ctx context.Context, id string) (*model.Run, error)

	// List returns up to limit run summaries, newest first.
	List(ctx context.Context, limit int) ([]model.RunSummary, error)

	// Count returns the number of retained runs.
	Count(ctx context.Context) int
}
