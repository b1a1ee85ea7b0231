package training

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/okian/fraudwatch/internal/domain/features"
	"github.com/okian/fraudwatch/internal/domain/model"
	"github.com/okian/fraudwatch/internal/domain/scoring"
	"github.com/okian/fraudwatch/pkg/logger"
)

// Default training configuration constants.
const (
	defaultSampleSize    = 50_000
	defaultNegativeRatio = 3
	defaultTestSize      = 0.2
	defaultTrees         = 100
	defaultSeed          = 42
)

// Config controls a training run.
type Config struct {
	SampleSize    int     // rows drawn before balancing, 0 keeps all
	NegativeRatio int     // negatives kept per positive
	TestSize      float64 // held-out fraction
	Trees         int
	MaxDepth      int
	MinLeaf       int
	Seed          int64
	Workers       int
}

// DefaultConfig returns the stock training configuration.
func DefaultConfig() Config {
	return Config{
		SampleSize:    defaultSampleSize,
		NegativeRatio: defaultNegativeRatio,
		TestSize:      defaultTestSize,
		Trees:         defaultTrees,
		MinLeaf:       1,
		Seed:          defaultSeed,
	}
}

func (c Config) validate() error {
	switch {
	case c.NegativeRatio < 1:
		return fmt.Errorf("%w: negative ratio must be >= 1", ErrInvalidConfig)
	case c.TestSize < 0 || c.TestSize >= 1:
		return fmt.Errorf("%w: test size must be in [0, 1)", ErrInvalidConfig)
	case c.Trees < 1:
		return fmt.Errorf("%w: trees must be >= 1", ErrInvalidConfig)
	}
	return nil
}

// Trainer fits artifacts from labeled tables.
type Trainer struct {
	cfg    Config
	logger logger.Logger
	now    func() time.Time
}

// NewTrainer creates a trainer.
func NewTrainer(cfg Config, log logger.Logger) *Trainer {
	if log == nil {
		log = logger.Get().Named("trainer")
	}
	return &Trainer{cfg: cfg, logger: log, now: time.Now}
}

// Train samples, balances, expands, splits, fits and evaluates, returning an
// artifact whose schema is the expanded training column order.
func (t *Trainer) Train(ctx context.Context, data *model.Table) (*scoring.Artifact, error) {
	const op = "training.train"
	if err := t.cfg.validate(); err != nil {
		return nil, err
	}
	if err := features.CheckColumns(data); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	labels, err := Labels(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	rng := rand.New(rand.NewSource(t.cfg.Seed)) //nolint:gosec // reproducible training

	t.logger.Info(ctx, "sampling dataset", logger.Int("rows", data.Len()), logger.Int("sample", t.cfg.SampleSize))
	sampled := SampleRows(rng, data.Len(), t.cfg.SampleSize)
	data = Subset(data, sampled)
	labels = pick(labels, sampled)

	t.logger.Info(ctx, "balancing fraud and non-fraud", logger.Int("ratio", t.cfg.NegativeRatio))
	balanced, short, err := Balance(rng, labels, t.cfg.NegativeRatio)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if short {
		t.logger.Warn(ctx, "not enough legitimate rows for the requested ratio; using all of them")
	}
	data = Subset(data, balanced)
	labels = pick(labels, balanced)

	t.logger.Info(ctx, "preprocessing features")
	all := make([]int, data.Len())
	for i := range all {
		all[i] = i
	}
	m, y, err := design(data, labels, all)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	train, test := StratifiedSplit(rng, y, t.cfg.TestSize)
	xTrain, yTrain := rowsOf(m.Rows, y, train)
	xTest, yTest := rowsOf(m.Rows, y, test)

	t.logger.Info(ctx, "training random forest",
		logger.Int("trees", t.cfg.Trees),
		logger.Int("train_rows", len(xTrain)),
		logger.Int("test_rows", len(xTest)),
	)
	forest, err := FitForest(ctx, xTrain, yTrain, ForestOptions{
		Trees:    t.cfg.Trees,
		MaxDepth: t.cfg.MaxDepth,
		MinLeaf:  t.cfg.MinLeaf,
		Seed:     t.cfg.Seed,
		Workers:  t.cfg.Workers,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	positives := 0
	for _, v := range y {
		positives += v
	}
	meta := scoring.Metadata{
		TrainedAt: t.now().UTC(),
		Trees:     t.cfg.Trees,
		Seed:      t.cfg.Seed,
		TrainRows: len(xTrain),
		Positives: positives,
		Negatives: len(y) - positives,
	}
	if len(xTest) > 0 {
		rep := Evaluate(forest, xTest, yTest)
		meta.Evaluation = &rep
		for _, c := range rep.Classes {
			t.logger.Info(ctx, "evaluation",
				logger.Int("class", c.Label),
				logger.Float64("precision", c.Precision),
				logger.Float64("recall", c.Recall),
				logger.Float64("f1", c.F1),
				logger.Int("support", c.Support),
			)
		}
		t.logger.Info(ctx, "evaluation", logger.Float64("accuracy", rep.Accuracy), logger.Int("support", rep.Support))
	}

	a := &scoring.Artifact{Schema: features.Schema(m.Columns), Forest: forest, Meta: meta}
	t.logger.Info(ctx, "trained with features", logger.Strings("schema", a.Schema))
	return a, nil
}

func pick(labels, rows []int) []int {
	out := make([]int, len(rows))
	for i, r := range rows {
		out[i] = labels[r]
	}
	return out
}

func rowsOf(x [][]float64, y []int, idx []int) ([][]float64, []int) {
	xs := make([][]float64, len(idx))
	ys := make([]int, len(idx))
	for i, r := range idx {
		xs[i] = x[r]
		ys[i] = y[r]
	}
	return xs, ys
}
