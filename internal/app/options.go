package service

import (
	"time"

	"github.com/okian/fraudwatch/internal/adapters/alert"
	"github.com/okian/fraudwatch/internal/adapters/repository"
	"github.com/okian/fraudwatch/internal/domain/scoring"
	"github.com/okian/fraudwatch/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithArtifactLoader sets where the Model Artifact comes from.
func WithArtifactLoader(l ArtifactLoader) Option {
	return func(s *Service) { s.loader = l }
}

// WithScorer replaces the forest scorer.
func WithScorer(sc scoring.Scorer) Option {
	return func(s *Service) {
		if sc != nil {
			s.scorer = sc
		}
	}
}

// WithStore sets the run store.
func WithStore(st repository.Store) Option {
	return func(s *Service) { s.store = st }
}

// WithSink sets the alert sink.
func WithSink(sink alert.Sink) Option {
	return func(s *Service) { s.sink = sink }
}

// WithPreset sets how upload webhook targets are chosen and the configured URL.
func WithPreset(p alert.Preset, webhookURL string) Option {
	return func(s *Service) {
		if p != "" {
			s.preset = p
		}
		s.webhookURL = webhookURL
	}
}

// WithWorkerCount sets the number of alert workers.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the alert queue capacity.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithDispatchTimeout bounds the alert dispatch of one upload. Rows not
// delivered by then are reported as failed.
func WithDispatchTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.dispatchTime = d
		}
	}
}

// WithAlertTimeout bounds each alert delivery.
func WithAlertTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.alertTimeout = d
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock overrides time and run ID generation.
func WithClock(now func() time.Time, newID func() string) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
		if newID != nil {
			s.newID = newID
		}
	}
}
