// Package api serves the fraud dashboard, upload pipeline and run exports over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/okian/fraudwatch/internal/adapters/csvio"
	"github.com/okian/fraudwatch/internal/adapters/repository"
	"github.com/okian/fraudwatch/internal/domain/features"
	"github.com/okian/fraudwatch/internal/domain/model"
	"github.com/okian/fraudwatch/internal/domain/scoring"
	"github.com/okian/fraudwatch/pkg/logger"
	"github.com/okian/fraudwatch/pkg/metrics"
)

// Default presentation limits.
const (
	defaultPreviewRows    = 5
	defaultDisplayRows    = 1000
	defaultMaxUploadBytes = 200 << 20
	defaultRunsLimit      = 20
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	// Process runs an upload through the scoring pipeline.
	Process(ctx context.Context, up model.Upload) (*model.Run, error)

	// Read operations expose stored runs.
	Run(ctx context.Context, id string) (*model.Run, error)
	Runs(ctx context.Context, limit int) ([]model.RunSummary, error)
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler    *HealthHandler
	statsHandler     *StatsHandler
	uploadsHandler   *UploadsHandler
	runsHandler      *RunsHandler
	dashboardHandler *dashboardHandler
}

// Option configures a Server.
type Option func(*settings)

type settings struct {
	previewRows    int
	displayRows    int
	maxUploadBytes int64
	logger         logger.Logger
}

// WithPreviewRows sets how many leading upload rows are echoed back.
func WithPreviewRows(n int) Option {
	return func(s *settings) {
		if n >= 0 {
			s.previewRows = n
		}
	}
}

// WithDisplayRows caps the labeled and fraud rows rendered in a run response.
func WithDisplayRows(n int) Option {
	return func(s *settings) {
		if n > 0 {
			s.displayRows = n
		}
	}
}

// WithMaxUploadBytes limits the request body of an upload.
func WithMaxUploadBytes(n int64) Option {
	return func(s *settings) {
		if n > 0 {
			s.maxUploadBytes = n
		}
	}
}

// WithLogger sets the handler logger.
func WithLogger(l logger.Logger) Option {
	return func(s *settings) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider, opts ...Option) *Server {
	cfg := settings{
		previewRows:    defaultPreviewRows,
		displayRows:    defaultDisplayRows,
		maxUploadBytes: defaultMaxUploadBytes,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.logger == nil {
		cfg.logger = logger.Get().Named("api")
	}
	view := runView{previewRows: cfg.previewRows, displayRows: cfg.displayRows}

	return &Server{
		healthHandler:    NewHealthHandler(),
		statsHandler:     NewStatsHandler(statsProvider),
		uploadsHandler:   NewUploadsHandler(deps, view, cfg.maxUploadBytes, cfg.logger),
		runsHandler:      NewRunsHandler(deps, view),
		dashboardHandler: newDashboardHandler(),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/dashboard", http.StatusFound)
	})
	mux.HandleFunc("GET /dashboard", s.dashboardHandler.HandleDashboard)
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("POST /uploads", MetricsMiddleware(s.uploadsHandler.HandleUpload, "uploads"))
	mux.HandleFunc("GET /runs", MetricsMiddleware(s.runsHandler.HandleList, "runs"))
	mux.HandleFunc("GET /runs/{id}", MetricsMiddleware(s.runsHandler.HandleGet, "run"))
	mux.HandleFunc("GET /runs/{id}/predictions.csv", MetricsMiddleware(s.runsHandler.HandlePredictionsCSV, "predictions_csv"))
	mux.HandleFunc("GET /runs/{id}/frauds.csv", MetricsMiddleware(s.runsHandler.HandleFraudsCSV, "frauds_csv"))
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// classify maps pipeline and store errors to a status and error code.
func classify(err error) (int, string) {
	var (
		missing     *features.MissingColumnError
		invalid     *features.InvalidValueError
		unavailable *scoring.ModelUnavailableError
	)
	switch {
	case errors.As(err, &missing):
		return http.StatusUnprocessableEntity, "missing_column"
	case errors.As(err, &invalid):
		return http.StatusUnprocessableEntity, "invalid_value"
	case errors.As(err, &unavailable), errors.Is(err, scoring.ErrModelUnavailable):
		return http.StatusServiceUnavailable, "model_unavailable"
	case errors.Is(err, ErrTooLarge):
		return http.StatusRequestEntityTooLarge, "too_large"
	case errors.Is(err, csvio.ErrMalformed), errors.Is(err, ErrBadRequest):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, repository.ErrNotFound), errors.Is(err, ErrNotFound):
		return http.StatusNotFound, "not_found"
	default:
		metrics.RecordErrorByComponent("api", "internal")
		return http.StatusInternalServerError, "internal_error"
	}
}
