package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/okian/fraudwatch/internal/adapters/artifact"
	"github.com/okian/fraudwatch/internal/adapters/csvio"
	"github.com/okian/fraudwatch/internal/config"
	"github.com/okian/fraudwatch/internal/domain/scoring"
	"github.com/okian/fraudwatch/internal/training"
	"github.com/okian/fraudwatch/pkg/logger"
)

// options are the command-line settings of one training run.
type options struct {
	input     string
	output    string
	logLevel  string
	logFormat string
	training  training.Config
}

func main() {
	defaults := training.DefaultConfig()
	var opts options

	flag.StringVar(&opts.input, "input", "", "Labeled transactions CSV (required)")
	flag.StringVar(&opts.output, "output", "", "Artifact location, a path or gs://bucket/object (default: model_location from config)")
	flag.IntVar(&opts.training.SampleSize, "sample", defaults.SampleSize, "Rows sampled before balancing, 0 keeps all")
	flag.IntVar(&opts.training.NegativeRatio, "ratio", defaults.NegativeRatio, "Legitimate rows kept per fraudulent row")
	flag.Float64Var(&opts.training.TestSize, "test-size", defaults.TestSize, "Held-out evaluation fraction")
	flag.IntVar(&opts.training.Trees, "trees", defaults.Trees, "Number of trees")
	flag.IntVar(&opts.training.MaxDepth, "max-depth", defaults.MaxDepth, "Maximum tree depth, 0 is unlimited")
	flag.IntVar(&opts.training.MinLeaf, "min-leaf", defaults.MinLeaf, "Minimum samples per leaf")
	flag.Int64Var(&opts.training.Seed, "seed", defaults.Seed, "Random seed")
	flag.IntVar(&opts.training.Workers, "workers", runtime.NumCPU(), "Trees fitted concurrently")
	flag.StringVar(&opts.logLevel, "log-level", "info", "Log level")
	flag.StringVar(&opts.logFormat, "log-format", logger.FormatText, "Log format, text or json")
	flag.Parse()

	if err := logger.Init(logger.WithFormat(opts.logFormat)); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(2)
	}
	if err := logger.SetLevelString(opts.logLevel); err != nil {
		os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, opts, os.Stdout); err != nil {
		logger.Get().Error(ctx, "training failed", logger.Error(err))
		stop()
		os.Exit(1) //nolint:gocritic // stop called above
	}
}

// run trains on opts.input and persists the artifact.
func run(ctx context.Context, opts options, out io.Writer) error {
	if opts.input == "" {
		return errors.New("-input is required")
	}
	log := logger.Get().Named("train")

	if opts.output == "" {
		cfg, err := config.Load(ctx)
		if err != nil {
			return err
		}
		opts.output = cfg.ModelLocation
	}
	store, err := artifact.Open(opts.output, artifact.WithLogger(log.Named("artifact")))
	if err != nil {
		return err
	}

	f, err := os.Open(opts.input)
	if err != nil {
		return fmt.Errorf("open dataset: %w", err)
	}
	defer f.Close()

	data, err := csvio.Read(f)
	if err != nil {
		return fmt.Errorf("read dataset %s: %w", opts.input, err)
	}
	log.Info(ctx, "dataset loaded", logger.String("file", opts.input), logger.Int("rows", data.Len()))

	a, err := training.NewTrainer(opts.training, log).Train(ctx, data)
	if err != nil {
		return err
	}
	if err := store.Save(ctx, a); err != nil {
		return err
	}
	log.Info(ctx, "artifact saved", logger.String("location", store.Location()))

	printReport(out, a)
	return nil
}

func printReport(w io.Writer, a *scoring.Artifact) {
	fmt.Fprintf(w, "Feature schema: %v\n", []string(a.Schema))
	fmt.Fprintf(w, "Trees: %d  train rows: %d  positives: %d  negatives: %d\n",
		a.Meta.Trees, a.Meta.TrainRows, a.Meta.Positives, a.Meta.Negatives)
	r := a.Meta.Evaluation
	if r == nil {
		return
	}
	fmt.Fprintf(w, "\n%-8s %9s %9s %9s %9s\n", "class", "precision", "recall", "f1-score", "support")
	for _, c := range r.Classes {
		fmt.Fprintf(w, "%-8d %9.2f %9.2f %9.2f %9d\n", c.Label, c.Precision, c.Recall, c.F1, c.Support)
	}
	fmt.Fprintf(w, "\naccuracy %.4f\n", r.Accuracy)
}
