package training

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"runtime"
	"sync"

	"github.com/okian/fraudwatch/internal/domain/scoring"
)

// ForestOptions tunes random forest fitting.
type ForestOptions struct {
	Trees    int
	MaxDepth int // 0 = grow until leaves are pure
	MinLeaf  int
	Seed     int64
	Workers  int // 0 = GOMAXPROCS
}

// FitForest grows opts.Trees bootstrap CART trees over x/y. Tree t is seeded
// with Seed+t so the result does not depend on scheduling.
func FitForest(ctx context.Context, x [][]float64, y []int, opts ForestOptions) (*scoring.Forest, error) {
	if len(x) == 0 || len(x) != len(y) {
		return nil, fmt.Errorf("%w: %d rows, %d labels", ErrInvalidConfig, len(x), len(y))
	}
	if opts.Trees < 1 {
		return nil, fmt.Errorf("%w: trees must be positive", ErrInvalidConfig)
	}
	if opts.MinLeaf < 1 {
		opts.MinLeaf = 1
	}
	workers := opts.Workers
	if workers < 1 {
		workers = runtime.GOMAXPROCS(0)
	}

	nf := len(x[0])
	maxFeatures := int(math.Sqrt(float64(nf)))
	if maxFeatures < 1 {
		maxFeatures = 1
	}

	trees := make([]scoring.Tree, opts.Trees)
	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			b := &treeBuilder{x: x, y: y, maxFeatures: maxFeatures, maxDepth: opts.MaxDepth, minLeaf: opts.MinLeaf}
			for t := range jobs {
				b.rng = rand.New(rand.NewSource(opts.Seed + int64(t))) //nolint:gosec // reproducible training
				trees[t] = b.grow(bootstrap(b.rng, len(x)))
			}
		}()
	}

	var err error
feed:
	for t := 0; t < opts.Trees; t++ {
		select {
		case jobs <- t:
		case <-ctx.Done():
			err = fmt.Errorf("training cancelled: %w", ctx.Err())
			break feed
		}
	}
	close(jobs)
	wg.Wait()
	if err != nil {
		return nil, err
	}
	return &scoring.Forest{Trees: trees}, nil
}

func bootstrap(rng *rand.Rand, n int) []int {
	idx := make([]int, n)
	for i := range idx {
		idx[i] = rng.Intn(n)
	}
	return idx
}

// Evaluate scores f on x and compares against y.
func Evaluate(f *scoring.Forest, x [][]float64, y []int) scoring.Report {
	var tp, fp, tn, fn int
	for i, row := range x {
		pred := f.Predict(row)
		switch {
		case pred == 1 && y[i] == 1:
			tp++
		case pred == 1 && y[i] == 0:
			fp++
		case pred == 0 && y[i] == 0:
			tn++
		default:
			fn++
		}
	}

	total := tp + fp + tn + fn
	rep := scoring.Report{
		Classes: []scoring.ClassReport{
			classReport(0, tn, fn, fp),
			classReport(1, tp, fp, fn),
		},
		Support: total,
	}
	if total > 0 {
		rep.Accuracy = float64(tp+tn) / float64(total)
	}
	return rep
}

func classReport(label, truePos, falsePos, falseNeg int) scoring.ClassReport {
	c := scoring.ClassReport{Label: label, Support: truePos + falseNeg}
	c.Precision = ratio(truePos, truePos+falsePos)
	c.Recall = ratio(truePos, truePos+falseNeg)
	if c.Precision+c.Recall > 0 {
		c.F1 = 2 * c.Precision * c.Recall / (c.Precision + c.Recall)
	}
	return c
}

func ratio(a, b int) float64 {
	if b == 0 {
		return 0
	}
	return float64(a) / float64(b)
}
