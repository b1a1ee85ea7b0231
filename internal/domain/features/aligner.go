package features

import (
	"context"

	"github.com/okian/fraudwatch/internal/domain/model"
	"github.com/okian/fraudwatch/pkg/logger"
	"github.com/okian/fraudwatch/pkg/metrics"
)

// Aligner produces matrices column-compatible with a model's Feature Schema.
type Aligner struct {
	logger logger.Logger
}

// Option applies a configuration option to the Aligner.
type Option func(*Aligner)

// WithLogger sets the logger used for reconciliation warnings.
func WithLogger(l logger.Logger) Option {
	return func(a *Aligner) {
		if l != nil {
			a.logger = l
		}
	}
}

// NewAligner creates an Aligner.
func NewAligner(opts ...Option) *Aligner {
	a := &Aligner{}
	for _, opt := range opts {
		opt(a)
	}
	if a.logger == nil {
		a.logger = logger.Get().Named("aligner")
	}
	return a
}

// Align checks required fields, expands categories and reconciles the result
// against schema: absent schema columns become zeros, extra columns are
// dropped and reported. Output rows keep input order.
func (a *Aligner) Align(ctx context.Context, t *model.Table, schema Schema) (Matrix, error) {
	if err := CheckColumns(t); err != nil {
		return Matrix{}, err
	}

	expanded, err := Expand(t)
	if err != nil {
		return Matrix{}, err
	}

	out := Reconcile(expanded, schema)
	if len(out.Dropped) > 0 {
		metrics.RecordDroppedColumns(len(out.Dropped))
		a.logger.Warn(ctx, "dropping columns unknown to the model schema",
			logger.Strings("columns", out.Dropped),
			logger.Int("rows", len(out.Rows)),
		)
	}
	return out, nil
}

// Reconcile selects and orders m's columns to match schema exactly.
func Reconcile(m Matrix, schema Schema) Matrix {
	pos := make(map[string]int, len(m.Columns))
	for i, c := range m.Columns {
		pos[c] = i
	}

	src := make([]int, len(schema))
	inSchema := make(map[string]struct{}, len(schema))
	for i, c := range schema {
		inSchema[c] = struct{}{}
		if p, ok := pos[c]; ok {
			src[i] = p
		} else {
			src[i] = -1
		}
	}

	var dropped []string
	for _, c := range m.Columns {
		if _, ok := inSchema[c]; !ok {
			dropped = append(dropped, c)
		}
	}

	rows := make([][]float64, len(m.Rows))
	for r, row := range m.Rows {
		vec := make([]float64, len(schema))
		for i, p := range src {
			if p >= 0 {
				vec[i] = row[p]
			}
		}
		rows[r] = vec
	}

	cols := make([]string, len(schema))
	copy(cols, schema)
	return Matrix{Columns: cols, Rows: rows, Dropped: dropped}
}
