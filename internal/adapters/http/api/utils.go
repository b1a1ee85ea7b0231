package api

import (
	"time"

	"github.com/okian/fraudwatch/internal/domain/model"
)

// tableView is a JSON rendering of a table with typed cells.
type tableView struct {
	Columns   []string `json:"columns"`
	Rows      [][]any  `json:"rows"`
	RowIDs    []int    `json:"row_ids,omitempty"`
	Total     int      `json:"total"`
	Truncated bool     `json:"truncated"`
}

// runResponse mirrors the OpenAPI Run schema.
type runResponse struct {
	ID                string            `json:"id"`
	Filename          string            `json:"filename"`
	CreatedAt         time.Time         `json:"created_at"`
	Stage             model.Stage       `json:"stage"`
	RowCount          int               `json:"row_count"`
	FraudCount        int               `json:"fraud_count"`
	Preview           tableView         `json:"preview"`
	Predictions       tableView         `json:"predictions"`
	Frauds            tableView         `json:"frauds"`
	Alerts            model.AlertReport `json:"alerts"`
	DroppedCategories []string          `json:"dropped_categories"`
	Downloads         downloads         `json:"downloads"`
}

type downloads struct {
	Predictions string `json:"predictions"`
	Frauds      string `json:"frauds"`
}

// runView renders runs with the configured row limits.
type runView struct {
	previewRows int
	displayRows int
}

func (v runView) render(run *model.Run) runResponse {
	resp := runResponse{
		ID:                run.ID,
		Filename:          run.Filename,
		CreatedAt:         run.CreatedAt,
		Stage:             run.Stage,
		FraudCount:        run.FraudCount(),
		Alerts:            run.Alerts,
		DroppedCategories: run.Dropped,
		Downloads: downloads{
			Predictions: "/runs/" + run.ID + "/predictions.csv",
			Frauds:      "/runs/" + run.ID + "/frauds.csv",
		},
	}
	if resp.DroppedCategories == nil {
		resp.DroppedCategories = []string{}
	}
	if run.Labeled == nil {
		return resp
	}

	labeled := run.Labeled.Table
	resp.RowCount = labeled.Len()

	// the preview shows the upload as received, without the verdict
	upload := labeled
	if n := len(labeled.Columns); n > 0 && labeled.Columns[n-1] == model.PredictionColumn {
		upload = &model.Table{Columns: labeled.Columns[:n-1], Rows: labeled.Rows}
	}
	resp.Preview = rows(upload.Head(v.previewRows), nil, -1)

	resp.Predictions = rows(labeled, nil, v.displayRows)
	resp.Frauds = rows(labeled, run.Labeled.Frauds(), v.displayRows)
	return resp
}

// rows renders at most limit rows of t; ids selects rows when non-nil.
func rows(t *model.Table, ids []int, limit int) tableView {
	if ids == nil {
		ids = make([]int, t.Len())
		for i := range ids {
			ids[i] = i
		}
	}
	out := tableView{Columns: t.Columns, Total: len(ids), Rows: [][]any{}}
	if limit >= 0 && len(ids) > limit {
		ids = ids[:limit]
		out.Truncated = true
	}
	out.RowIDs = ids
	for _, id := range ids {
		src := t.Rows[id]
		row := make([]any, len(t.Columns))
		for c := range t.Columns {
			if c < len(src) {
				row[c] = model.TypedCell(src[c])
			}
		}
		out.Rows = append(out.Rows, row)
	}
	return out
}
