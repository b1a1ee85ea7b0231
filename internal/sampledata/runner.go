package sampledata

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/okian/fraudwatch/pkg/logger"
)

// File permission constants.
const (
	directoryPermission = 0750
	filePermission      = 0600
)

// Run generates a sample file and, when BaseURL is set, uploads it to the
// dashboard and reports the outcome.
func Run(ctx context.Context, config *Config) (*Stats, error) {
	if err := validate(config); err != nil {
		return nil, err
	}
	log := logger.Get().Named("sample-data")
	stats := &Stats{StartTime: time.Now()}

	log.Info(ctx, "generating sample transactions",
		logger.Int("rows", config.Rows),
		logger.Float64("fraudRate", config.FraudRate),
		logger.Int("seed", int(config.Seed)),
		logger.String("output", config.OutputFile),
	)

	txs := NewGenerator(config.Seed, config.FraudRate, config.Steps).Generate(config.Rows)
	stats.Generated = len(txs)
	truth := make(map[int]bool)
	for i, t := range txs {
		if t.IsFraud {
			truth[i] = true
		}
	}
	stats.Frauds = len(truth)

	var buf bytes.Buffer
	if err := Write(&buf, txs); err != nil {
		return nil, err
	}
	if err := saveFile(config.OutputFile, buf.Bytes()); err != nil {
		return nil, err
	}
	log.Info(ctx, "sample file written",
		logger.String("file", config.OutputFile),
		logger.Int("rows", stats.Generated),
		logger.Int("frauds", stats.Frauds),
	)

	if config.BaseURL != "" {
		if err := upload(ctx, config, buf.Bytes(), truth, stats, log); err != nil {
			return nil, err
		}
	}

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)
	displayFinalStats(stats, config.BaseURL != "")
	return stats, nil
}

func upload(ctx context.Context, config *Config, csv []byte, truth map[int]bool, stats *Stats, log logger.Logger) error {
	client := NewHTTPClient(config.BaseURL, config.Timeout)
	if err := client.Health(ctx); err != nil {
		return fmt.Errorf("service health check failed: %w", err)
	}

	start := time.Now()
	run, err := client.Upload(ctx, config.OutputFile, csv, config.WebhookURL)
	if err != nil {
		return err
	}
	stats.UploadDuration = time.Since(start)

	stats.Predicted = run.FraudCount
	stats.AlertsSent = run.Alerts.Delivered
	stats.AlertsFailed = len(run.Alerts.Failed)

	for _, f := range run.Alerts.Failed {
		if config.Verbose {
			log.Warn(ctx, "alert not delivered",
				logger.Int("row", f.Row),
				logger.Int("status", f.Status),
				logger.String("error", f.Error),
			)
		}
	}
	// row_ids covers at most the dashboard's display_rows frauds
	for _, row := range run.Frauds.RowIDs {
		if truth[row] {
			stats.TruePositives++
		}
	}

	log.Info(ctx, "upload scored",
		logger.String("run", run.ID),
		logger.Int("rows", run.RowCount),
		logger.Int("predicted", run.FraudCount),
		logger.Int("alertsDelivered", run.Alerts.Delivered),
		logger.Int("alertsFailed", len(run.Alerts.Failed)),
		logger.Duration("took", stats.UploadDuration),
	)
	if len(run.DroppedCategories) > 0 {
		log.Warn(ctx, "dashboard dropped columns unknown to the model", logger.Strings("columns", run.DroppedCategories))
	}
	return nil
}

func validate(config *Config) error {
	switch {
	case config.Rows < 1:
		return errors.New("rows must be positive")
	case config.FraudRate < 0 || config.FraudRate > 1:
		return errors.New("fraud rate must be within [0, 1]")
	case config.OutputFile == "":
		return errors.New("output file must be set")
	}
	return nil
}

func saveFile(path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, directoryPermission); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, filePermission); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

func displayFinalStats(stats *Stats, uploaded bool) {
	fmt.Fprintf(os.Stdout, "\nSample data\n===========\n")
	fmt.Fprintf(os.Stdout, "Transactions: %d\n", stats.Generated)
	fmt.Fprintf(os.Stdout, "Fraudulent:   %d\n", stats.Frauds)
	if uploaded {
		fmt.Fprintf(os.Stdout, "Predicted:    %d (%d known frauds among them)\n", stats.Predicted, stats.TruePositives)
		fmt.Fprintf(os.Stdout, "Alerts:       %d delivered, %d failed\n", stats.AlertsSent, stats.AlertsFailed)
		fmt.Fprintf(os.Stdout, "Upload took:  %s\n", stats.UploadDuration.Round(time.Millisecond))
	}
	fmt.Fprintf(os.Stdout, "Total:        %s\n", stats.Duration.Round(time.Millisecond))
}
