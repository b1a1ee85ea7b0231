package sampledata

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/okian/fraudwatch/pkg/logger"
)

// logFilePermission is the mode of created log files.
const logFilePermission = 0600

// SetupLogging sends log output to stdout and, when logFile is set, to that
// file as well. The returned func closes the file.
func SetupLogging(logFile string, verbose bool) (func(), error) {
	level := "info"
	if verbose {
		level = "debug"
	}
	if err := logger.SetLevelString(level); err != nil {
		return nil, err
	}

	if logFile == "" {
		if err := logger.Init(); err != nil {
			return nil, fmt.Errorf("failed to initialize logger: %w", err)
		}
		return func() {}, nil
	}

	file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, logFilePermission)
	if err != nil {
		return nil, fmt.Errorf("failed to create log file: %w", err)
	}
	if err := logger.Init(logger.WithOutput(io.MultiWriter(os.Stdout, file))); err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return func() { _ = file.Close() }, nil
}

// DefaultOutputFile returns a timestamped CSV name.
func DefaultOutputFile(now time.Time) string {
	return "sample_transactions_" + now.Format("20060102_150405") + ".csv"
}

// ShowHelp prints usage information for the sample data tool.
func ShowHelp() {
	os.Stdout.WriteString(`Fraud Dashboard Sample Data Tool
================================

Generates a PaySim-shaped transaction CSV and optionally uploads it to a
running dashboard.

Usage:
  go run ./cmd/sample-data [options]

Options:
  -rows int
        Number of transactions to generate (default 1000)
  -fraud-rate float
        Fraction of fraudulent transactions (default 0.02)
  -seed uint
        Generator seed (default 42)
  -steps int
        Hourly steps the transactions span (default 24)
  -output string
        Output CSV (default: sample_transactions_TIMESTAMP.csv)
  -url string
        Dashboard base URL; when set the file is uploaded to /uploads
  -webhook string
        Webhook URL sent with the upload (request preset only)
  -timeout duration
        HTTP request timeout (default 2m)
  -log string
        Also write log output to this file
  -verbose
        Enable verbose logging
  -help
        Show this help message

Examples:
  # Generate a file only
  go run ./cmd/sample-data -rows 5000 -fraud-rate 0.05

  # Generate and score it on a local dashboard
  go run ./cmd/sample-data -url http://localhost:8501
`)
}
