package model

import (
	"io"
	"time"
)

// Stage is a point in the per-upload state machine.
type Stage string

// Upload stages, in pipeline order.
const (
	StageIdle             Stage = "idle"
	StageLoaded           Stage = "loaded"
	StageAligned          Stage = "aligned"
	StageScored           Stage = "scored"
	StageAlertsDispatched Stage = "alerts_dispatched"
	StageFailed           Stage = "failed"
)

// Upload is one operator upload with its explicit per-request parameters.
type Upload struct {
	Filename   string
	Body       io.Reader
	WebhookURL string // honoured by the "request" alert preset
}

// Run is the terminal record of a processed upload.
type Run struct {
	ID        string
	Filename  string
	CreatedAt time.Time
	Stage     Stage
	Labeled   *Labeled
	Dropped   []string // schema reconciliation drops, e.g. unseen categories
	Alerts    AlertReport
}

// FraudCount returns the number of rows predicted fraudulent.
func (r *Run) FraudCount() int {
	if r.Labeled == nil {
		return 0
	}
	return len(r.Labeled.Frauds())
}

// Summary returns the list view of the run.
func (r *Run) Summary() RunSummary {
	s := RunSummary{
		ID:         r.ID,
		Filename:   r.Filename,
		CreatedAt:  r.CreatedAt,
		Stage:      r.Stage,
		FraudCount: r.FraudCount(),
		Delivered:  r.Alerts.Delivered,
		Failed:     len(r.Alerts.Failed),
	}
	if r.Labeled != nil {
		s.RowCount = r.Labeled.Table.Len()
	}
	return s
}

// RunSummary is the list view of a run.
type RunSummary struct {
	ID         string    `json:"id"`
	Filename   string    `json:"filename"`
	CreatedAt  time.Time `json:"created_at"`
	Stage      Stage     `json:"stage"`
	RowCount   int       `json:"row_count"`
	FraudCount int       `json:"fraud_count"`
	Delivered  int       `json:"alerts_delivered"`
	Failed     int       `json:"alerts_failed"`
}
