package alert

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/okian/fraudwatch/internal/domain/model"
	"github.com/okian/fraudwatch/pkg/logger"
)

const defaultWebhookTimeout = 10 * time.Second

// WebhookSink posts each alert as a JSON document.
type WebhookSink struct {
	url    string
	client *http.Client
	logger logger.Logger
}

// WebhookOption configures a WebhookSink.
type WebhookOption func(*WebhookSink)

// WithURL sets the URL used when an alert carries no target.
func WithURL(url string) WebhookOption {
	return func(s *WebhookSink) { s.url = url }
}

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(c *http.Client) WebhookOption {
	return func(s *WebhookSink) {
		if c != nil {
			s.client = c
		}
	}
}

// WithWebhookLogger sets the logger.
func WithWebhookLogger(l logger.Logger) WebhookOption {
	return func(s *WebhookSink) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewWebhookSink creates a webhook sink.
func NewWebhookSink(opts ...WebhookOption) *WebhookSink {
	s := &WebhookSink{client: &http.Client{Timeout: defaultWebhookTimeout}}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("webhook")
	}
	return s
}

// Name implements Sink.
func (s *WebhookSink) Name() string { return SinkWebhook }

// Deliver posts a.Payload. Only 200 counts as delivered.
func (s *WebhookSink) Deliver(ctx context.Context, a model.Alert) error {
	target := a.Target
	if target == "" {
		target = s.url
	}
	if target == "" {
		return &DeliveryError{Row: a.Row, Err: ErrNoTarget}
	}

	body, err := json.Marshal(a.Payload)
	if err != nil {
		return &DeliveryError{Row: a.Row, Err: fmt.Errorf("encode payload: %w", err)}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(body))
	if err != nil {
		return &DeliveryError{Row: a.Row, Err: fmt.Errorf("build request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return &DeliveryError{Row: a.Row, Err: err}
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		s.logger.Warn(ctx, "webhook rejected alert",
			logger.Int("row", a.Row),
			logger.Int("status", resp.StatusCode),
			logger.String("run_id", a.RunID),
		)
		return &DeliveryError{Row: a.Row, Status: resp.StatusCode}
	}
	return nil
}

// Close implements Sink.
func (s *WebhookSink) Close() error {
	s.client.CloseIdleConnections()
	return nil
}
