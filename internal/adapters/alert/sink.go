// Package alert delivers fraud alerts to external receivers.
package alert

import (
	"context"
	"errors"
	"fmt"

	"github.com/okian/fraudwatch/internal/domain/model"
)

// Sink names.
const (
	SinkWebhook = "webhook"
	SinkKafka   = "kafka"
	SinkNone    = "none"
)

// ErrNoTarget reports an alert with nowhere to go.
var ErrNoTarget = errors.New("no alert target configured")

// Sink delivers one alert per call.
type Sink interface {
	Deliver(ctx context.Context, a model.Alert) error
	Name() string
	Close() error
}

// DeliveryError reports one failed alert. Status is the HTTP status when the
// receiver answered with something other than 200.
type DeliveryError struct {
	Row    int
	Status int
	Err    error
}

func (e *DeliveryError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("alert for row %d rejected with status %d", e.Row, e.Status)
	}
	return fmt.Sprintf("alert for row %d failed: %v", e.Row, e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }
