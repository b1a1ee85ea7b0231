package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/okian/fraudwatch/internal/adapters/csvio"
	"github.com/okian/fraudwatch/internal/domain/model"
)

// Export file names.
const (
	predictionsFile = "fraud_predictions.csv"
	fraudsFile      = "fraud_alerts.csv"
)

// RunsDependencies defines the interface for run lookups.
type RunsDependencies interface {
	Run(ctx context.Context, id string) (*model.Run, error)
	Runs(ctx context.Context, limit int) ([]model.RunSummary, error)
}

// RunsHandler serves stored runs and their CSV exports.
type RunsHandler struct {
	deps RunsDependencies
	view runView
}

// NewRunsHandler creates a new runs handler.
func NewRunsHandler(deps RunsDependencies, view runView) *RunsHandler {
	return &RunsHandler{deps: deps, view: view}
}

type runsResponse struct {
	Runs  []model.RunSummary `json:"runs"`
	Count int                `json:"count"`
}

// HandleList handles GET /runs?limit=N requests.
func (h *RunsHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	const op = "api.list_runs"
	limit := defaultRunsLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
			return
		}
		limit = n
	}

	runs, err := h.deps.Runs(r.Context(), limit)
	if err != nil {
		status, code := classify(err)
		writeError(w, status, code, err)
		return
	}
	if runs == nil {
		runs = []model.RunSummary{}
	}
	writeJSON(w, http.StatusOK, runsResponse{Runs: runs, Count: len(runs)})
}

// HandleGet handles GET /runs/{id} requests.
func (h *RunsHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	run, ok := h.lookup(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, h.view.render(run))
}

// HandlePredictionsCSV streams every labeled row.
func (h *RunsHandler) HandlePredictionsCSV(w http.ResponseWriter, r *http.Request) {
	run, ok := h.lookup(w, r)
	if !ok {
		return
	}
	writeCSV(w, predictionsFile, run.Labeled.Table)
}

// HandleFraudsCSV streams the rows predicted fraudulent. A run without frauds
// yields a header-only document.
func (h *RunsHandler) HandleFraudsCSV(w http.ResponseWriter, r *http.Request) {
	run, ok := h.lookup(w, r)
	if !ok {
		return
	}
	writeCSV(w, fraudsFile, run.Labeled.FraudTable())
}

func (h *RunsHandler) lookup(w http.ResponseWriter, r *http.Request) (*model.Run, bool) {
	const op = "api.get_run"
	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
		return nil, false
	}
	run, err := h.deps.Run(r.Context(), id)
	if err != nil {
		status, code := classify(err)
		writeError(w, status, code, err)
		return nil, false
	}
	if run.Labeled == nil {
		writeError(w, http.StatusNotFound, "not_found", NewKind(op, ErrNotFound))
		return nil, false
	}
	return run, true
}

func writeCSV(w http.ResponseWriter, filename string, t *model.Table) {
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.WriteHeader(http.StatusOK)
	_ = csvio.Write(w, t)
}
