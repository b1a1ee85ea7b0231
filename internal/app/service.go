// Package service provides the core business service that implements
// the dependencies required by the HTTP API.
package service

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/okian/fraudwatch/internal/adapters/alert"
	"github.com/okian/fraudwatch/internal/adapters/csvio"
	alertqueue "github.com/okian/fraudwatch/internal/adapters/mq/queue"
	workerpool "github.com/okian/fraudwatch/internal/adapters/mq/worker"
	"github.com/okian/fraudwatch/internal/adapters/repository"
	"github.com/okian/fraudwatch/internal/domain/features"
	"github.com/okian/fraudwatch/internal/domain/model"
	"github.com/okian/fraudwatch/internal/domain/scoring"
	"github.com/okian/fraudwatch/pkg/logger"
	"github.com/okian/fraudwatch/pkg/metrics"
)

// Default service configuration constants.
const (
	defaultWorkerCount  = 4
	defaultQueueSize    = 1024
	defaultAlertTimeout = 10 * time.Second
	defaultDispatchTime = 90 * time.Second
	stopTimeout         = 30 * time.Second
)

// ErrNotStarted reports a call that needs the alert pool before Start.
var ErrNotStarted = errors.New("service not started")

// ArtifactLoader loads the current Model Artifact.
type ArtifactLoader interface {
	Load(ctx context.Context) (*scoring.Artifact, error)
}

// Service implements the API dependencies for the fraud dashboard.
type Service struct {
	mu sync.RWMutex

	// Core components
	loader  ArtifactLoader
	aligner *features.Aligner
	scorer  scoring.Scorer
	store   repository.Store
	sink    alert.Sink
	queue   *alertqueue.InMemoryQueue
	pool    *workerpool.Pool

	// Configuration
	workerCount  int
	queueSize    int
	alertTimeout time.Duration
	dispatchTime time.Duration
	preset       alert.Preset
	webhookURL   string

	// State
	started  bool
	runCtx   context.Context //nolint:containedctx // lifetime of alert dispatch
	cancel   context.CancelFunc
	uploads  atomic.Int64
	failures atomic.Int64

	now   func() time.Time
	newID func() string

	logger logger.Logger
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		scorer:       scoring.NewForestScorer(),
		workerCount:  defaultWorkerCount,
		queueSize:    defaultQueueSize,
		alertTimeout: defaultAlertTimeout,
		dispatchTime: defaultDispatchTime,
		preset:       alert.PresetLocal,
		now:          time.Now,
		newID:        uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}
	if s.aligner == nil {
		s.aligner = features.NewAligner(features.WithLogger(s.logger.Named("aligner")))
	}
	if s.store == nil {
		s.store = repository.NewMemoryStore()
	}
	if s.sink == nil {
		s.sink = alert.NewWebhookSink(alert.WithURL(s.webhookURL), alert.WithWebhookLogger(s.logger.Named("webhook")))
	}
	return s
}

// Start builds the alert queue and worker pool. Dispatch outlives ctx's
// cancellation and only ends with Stop.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.loader == nil {
		return errors.New("service: no artifact loader configured")
	}

	s.logger.Info(ctx, "starting fraud detection service...")

	s.runCtx, s.cancel = context.WithCancel(context.WithoutCancel(ctx))
	s.queue = alertqueue.NewInMemoryQueue(alertqueue.WithCapacity(s.queueSize))
	s.pool = workerpool.NewPool(s.workerCount, s.queue, s.sink,
		workerpool.WithCallTimeout(s.alertTimeout),
		workerpool.WithLogger(s.logger.Named("worker")),
	)
	s.pool.Start(s.runCtx)

	s.started = true
	s.logger.Info(ctx, "fraud detection service started",
		logger.Int("workers", s.workerCount),
		logger.Int("queueSize", s.queueSize),
		logger.String("sink", s.sink.Name()),
		logger.String("preset", string(s.preset)),
	)
	return nil
}

// Stop drains pending alerts and shuts down the pool and sink.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	ctx := context.Background()
	s.logger.Info(ctx, "stopping fraud detection service...")

	shutdownCtx, cancel := context.WithTimeout(ctx, stopTimeout)
	defer cancel()
	if err := s.pool.Shutdown(shutdownCtx); err != nil {
		s.logger.Warn(ctx, "alert pool did not drain", logger.Error(err))
	}
	s.cancel()

	if err := s.sink.Close(); err != nil {
		s.logger.Warn(ctx, "closing alert sink failed", logger.Error(err))
	}
	if closer, ok := s.store.(interface{ Close() }); ok {
		closer.Close()
	}

	s.started = false
	s.logger.Info(ctx, "fraud detection service stopped")
}

// Process runs one upload through parse, align, score and alert dispatch and
// stores the resulting run.
func (s *Service) Process(ctx context.Context, up model.Upload) (*model.Run, error) {
	const op = "service.Process"

	s.mu.RLock()
	started, runCtx := s.started, s.runCtx
	s.mu.RUnlock()
	if !started {
		return nil, fmt.Errorf("%s: %w", op, ErrNotStarted)
	}

	s.uploads.Add(1)
	run := &model.Run{ID: s.newID(), Filename: up.Filename, CreatedAt: s.now().UTC(), Stage: model.StageIdle}
	log := s.logger.Named("upload")
	fail := func(err error) (*model.Run, error) {
		failedAt := run.Stage
		run.Stage = model.StageFailed
		s.failures.Add(1)
		metrics.RecordUpload(metrics.OutcomeFailure)
		log.Warn(ctx, "upload failed",
			logger.String("run_id", run.ID),
			logger.String("stage", string(failedAt)),
			logger.Error(err),
		)
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	table, err := csvio.Read(up.Body)
	if err != nil {
		return fail(err)
	}

	artifact, err := s.loader.Load(ctx)
	if err != nil {
		return fail(err)
	}
	run.Stage = model.StageLoaded

	matrix, err := s.aligner.Align(ctx, table, artifact.Schema)
	if err != nil {
		return fail(err)
	}
	run.Dropped = matrix.Dropped
	run.Stage = model.StageAligned

	predictions, err := s.scorer.Score(ctx, matrix, artifact)
	if err != nil {
		return fail(err)
	}
	run.Labeled = model.Label(table, predictions)
	run.Stage = model.StageScored

	frauds := run.Labeled.Frauds()
	metrics.RecordFraudsDetected(len(frauds))
	log.Info(ctx, "upload scored",
		logger.String("run_id", run.ID),
		logger.String("file", run.Filename),
		logger.Int("rows", table.Len()),
		logger.Int("frauds", len(frauds)),
	)

	if len(frauds) > 0 {
		run.Alerts = s.dispatch(runCtx, run, frauds, s.preset.Target(s.webhookURL, up.WebhookURL))
		run.Stage = model.StageAlertsDispatched
	}
	metrics.RecordUpload(metrics.OutcomeSuccess)

	if err := s.store.Save(ctx, run); err != nil {
		log.Warn(ctx, "run not stored", logger.String("run_id", run.ID), logger.Error(err))
	}
	return run, nil
}

// dispatch enqueues one alert per fraudulent row and waits for every outcome
// until the dispatch deadline. Rows that cannot be enqueued, or whose outcome
// is still unknown at the deadline, are reported as failed.
func (s *Service) dispatch(ctx context.Context, run *model.Run, rows []int, target string) model.AlertReport {
	start := time.Now()
	report := model.AlertReport{Attempted: len(rows)}
	if len(rows) == 0 {
		return report
	}

	deadline := start.Add(s.dispatchTime)
	ctx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	done := make(chan alertqueue.Result, len(rows))
	pending := make(map[int]struct{}, len(rows))
	for _, row := range rows {
		job := alertqueue.Job{
			Alert:    model.Alert{RunID: run.ID, Row: row, Target: target, Payload: run.Labeled.Record(row)},
			Done:     done,
			Deadline: deadline,
		}
		if err := s.queue.Enqueue(ctx, job); err != nil {
			report.Failed = append(report.Failed, failure(row, err))
			continue
		}
		pending[row] = struct{}{}
	}

collect:
	for len(pending) > 0 {
		select {
		case res := <-done:
			if _, ok := pending[res.Row]; !ok {
				continue
			}
			delete(pending, res.Row)
			if res.Err != nil {
				report.Failed = append(report.Failed, failure(res.Row, res.Err))
			} else {
				report.Delivered++
			}
		case <-ctx.Done():
			break collect
		}
	}
	for row := range pending {
		report.Failed = append(report.Failed, failure(row, fmt.Errorf("alert outcome unknown: %w", ctx.Err())))
	}

	sort.Slice(report.Failed, func(i, j int) bool { return report.Failed[i].Row < report.Failed[j].Row })
	report.Duration = time.Since(start)

	if n := len(report.Failed); n > 0 {
		s.logger.Warn(ctx, "some alerts were not delivered",
			logger.String("run_id", run.ID),
			logger.Int("failed", n),
			logger.Int("delivered", report.Delivered),
			logger.Int("unfinished", len(pending)),
		)
	}
	return report
}

func failure(row int, err error) model.AlertFailure {
	f := model.AlertFailure{Row: row, Error: err.Error()}
	var de *alert.DeliveryError
	if errors.As(err, &de) {
		f.Status = de.Status
	}
	return f
}

// Run returns a stored run.
func (s *Service) Run(ctx context.Context, id string) (*model.Run, error) {
	return s.store.Get(ctx, id)
}

// Runs returns recent run summaries, newest first.
func (s *Service) Runs(ctx context.Context, limit int) ([]model.RunSummary, error) {
	return s.store.List(ctx, limit)
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx := context.Background()
	stats := map[string]interface{}{
		"started":     s.started,
		"workerCount": s.workerCount,
		"queueSize":   s.queueSize,
		"sink":        s.sink.Name(),
		"preset":      string(s.preset),
		"uploads":     s.uploads.Load(),
		"failures":    s.failures.Load(),
		"runsStored":  s.store.Count(ctx),
	}

	if s.started {
		stats["queueLength"] = s.queue.Len(ctx)
	}

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	goroutines := runtime.NumGoroutine()
	stats["goroutines"] = goroutines
	stats["heapBytes"] = mem.HeapAlloc
	metrics.UpdateSystemGoroutineCount(goroutines)
	metrics.UpdateSystemMemoryUsage(mem.HeapAlloc)

	return stats
}
