package model

import "time"

// Alert is a fraudulent row forwarded to the alert sink.
type Alert struct {
	RunID   string         // run the row belongs to
	Row     int            // zero-based row index in the upload
	Target  string         // per-upload sink target override, may be empty
	Payload map[string]any // every field of the labeled row, Prediction included
}

// AlertFailure describes one undelivered alert.
type AlertFailure struct {
	Row    int    `json:"row"`
	Status int    `json:"status,omitempty"`
	Error  string `json:"error"`
}

// AlertReport summarises alert dispatch for one run.
type AlertReport struct {
	Attempted int            `json:"attempted"`
	Delivered int            `json:"delivered"`
	Failed    []AlertFailure `json:"failed,omitempty"`
	Duration  time.Duration  `json:"duration_ns"`
}

// FailedRows returns the row indices that were not delivered.
func (r AlertReport) FailedRows() []int {
	rows := make([]int, len(r.Failed))
	for i, f := range r.Failed {
		rows[i] = f.Row
	}
	return rows
}
