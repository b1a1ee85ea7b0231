package alert

import (
	"context"

	"github.com/okian/fraudwatch/internal/domain/model"
	"github.com/okian/fraudwatch/pkg/logger"
)

// NopSink accepts and discards every alert.
type NopSink struct {
	logger logger.Logger
}

// NewNopSink creates a NopSink.
func NewNopSink(log logger.Logger) *NopSink {
	if log == nil {
		log = logger.Get().Named("alerts")
	}
	return &NopSink{logger: log}
}

// Name implements Sink.
func (s *NopSink) Name() string { return SinkNone }

// Deliver implements Sink.
func (s *NopSink) Deliver(ctx context.Context, a model.Alert) error {
	s.logger.Debug(ctx, "alerts disabled, dropping alert", logger.Int("row", a.Row), logger.String("run_id", a.RunID))
	return nil
}

// Close implements Sink.
func (s *NopSink) Close() error { return nil }
