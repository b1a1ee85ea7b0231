package sampledata

import "time"

// Config holds configuration for a sample-data run.
type Config struct {
	Rows       int           // Number of transactions to generate
	FraudRate  float64       // Fraction of fraudulent transactions, 0..1
	Seed       uint64        // Generator seed; equal seeds give equal files
	Steps      int           // Number of hourly steps transactions are spread over
	OutputFile string        // CSV destination
	BaseURL    string        // Dashboard to upload to; empty skips the upload
	WebhookURL string        // Per-upload alert target for the request preset
	Timeout    time.Duration // HTTP request timeout
	Verbose    bool          // Log every failed alert
}

// Transaction is one PaySim-shaped row.
type Transaction struct {
	Step           int
	Type           string
	Amount         float64
	NameOrig       string
	OldBalanceOrg  float64
	NewBalanceOrig float64
	NameDest       string
	OldBalanceDest float64
	NewBalanceDest float64
	IsFraud        bool
	IsFlaggedFraud bool
}

// RunReport mirrors the subset of the dashboard run response the tool reports.
type RunReport struct {
	ID         string `json:"id"`
	Filename   string `json:"filename"`
	RowCount   int    `json:"row_count"`
	FraudCount int    `json:"fraud_count"`
	Alerts     struct {
		Attempted int `json:"attempted"`
		Delivered int `json:"delivered"`
		Failed    []struct {
			Row    int    `json:"row"`
			Status int    `json:"status"`
			Error  string `json:"error"`
		} `json:"failed"`
	} `json:"alerts"`
	Frauds struct {
		RowIDs []int `json:"row_ids"`
		Total  int   `json:"total"`
	} `json:"frauds"`
	DroppedCategories []string `json:"dropped_categories"`
}

// Stats holds run statistics.
type Stats struct {
	Generated      int
	Frauds         int
	Predicted      int
	TruePositives  int
	AlertsSent     int
	AlertsFailed   int
	StartTime      time.Time
	EndTime        time.Time
	Duration       time.Duration
	UploadDuration time.Duration
}
