package main

import (
	"context"
	"flag"
	"os"
	"time"

	"github.com/okian/fraudwatch/internal/sampledata"
)

// defaultRunTimeout bounds the whole run.
const defaultRunTimeout = 10 * time.Minute

func main() {
	var (
		rows       = flag.Int("rows", sampledata.DefaultRows, "Number of transactions to generate")
		fraudRate  = flag.Float64("fraud-rate", sampledata.DefaultFraudRate, "Fraction of fraudulent transactions")
		seed       = flag.Uint64("seed", sampledata.DefaultSeed, "Generator seed")
		steps      = flag.Int("steps", sampledata.DefaultSteps, "Hourly steps the transactions span")
		outputFile = flag.String("output", "", "Output CSV (default: sample_transactions_TIMESTAMP.csv)")
		baseURL    = flag.String("url", "", "Dashboard base URL; when set the file is uploaded")
		webhookURL = flag.String("webhook", "", "Webhook URL sent with the upload")
		timeout    = flag.Duration("timeout", sampledata.DefaultTimeout, "HTTP request timeout")
		logFile    = flag.String("log", "", "Also write log output to this file")
		verbose    = flag.Bool("verbose", false, "Enable verbose logging")
		help       = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		sampledata.ShowHelp()
		return
	}

	closeLog, err := sampledata.SetupLogging(*logFile, *verbose)
	if err != nil {
		os.Stderr.WriteString("Failed to setup logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer closeLog()

	if *outputFile == "" {
		*outputFile = sampledata.DefaultOutputFile(time.Now())
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultRunTimeout)
	defer cancel()

	config := &sampledata.Config{
		Rows:       *rows,
		FraudRate:  *fraudRate,
		Seed:       *seed,
		Steps:      *steps,
		OutputFile: *outputFile,
		BaseURL:    *baseURL,
		WebhookURL: *webhookURL,
		Timeout:    *timeout,
		Verbose:    *verbose,
	}

	if _, err := sampledata.Run(ctx, config); err != nil {
		os.Stderr.WriteString("Sample data run failed: " + err.Error() + "\n")
		cancel()
		os.Exit(1) //nolint:gocritic // cancel called above
	}
}
