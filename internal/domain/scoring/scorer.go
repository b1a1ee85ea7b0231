package scoring

import (
	"context"
	"fmt"
	"time"

	"github.com/okian/fraudwatch/internal/domain/features"
	"github.com/okian/fraudwatch/pkg/metrics"
)

// Scorer labels aligned matrices with binary predictions.
type Scorer interface {
	// Score returns one label per matrix row, same order.
	Score(ctx context.Context, m features.Matrix, a *Artifact) ([]int, error)
}

// ForestScorer implements Scorer with the artifact's random forest.
type ForestScorer struct{}

// NewForestScorer creates a scorer.
func NewForestScorer() *ForestScorer { return &ForestScorer{} }

// Score applies a to every row of m. The matrix must carry exactly the
// artifact's schema.
func (s *ForestScorer) Score(ctx context.Context, m features.Matrix, a *Artifact) ([]int, error) {
	start := time.Now()
	defer func() {
		metrics.RecordScoringLatency(float64(time.Since(start).Milliseconds()))
	}()

	if a == nil {
		return nil, ErrModelUnavailable
	}
	if !a.Schema.Equal(m.Columns) {
		metrics.RecordScoringError()
		return nil, fmt.Errorf("%w: got %v, want %v", ErrSchemaMismatch, m.Columns, []string(a.Schema))
	}

	labels := make([]int, len(m.Rows))
	for i, row := range m.Rows {
		if i%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, fmt.Errorf("context cancelled: %w", err)
			}
		}
		labels[i] = a.Forest.Predict(row)
	}
	metrics.RecordRowsScored(len(labels))
	return labels, nil
}
