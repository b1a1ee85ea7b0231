// Package config defines service configuration structures and loading hooks.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/okian/fraudwatch/internal/adapters/alert"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects text or json log lines.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":8501".
	Addr string `koanf:"addr"`

	// ReadTimeoutMS and WriteTimeoutMS bound HTTP request handling.
	ReadTimeoutMS  int `koanf:"read_timeout_ms"`
	WriteTimeoutMS int `koanf:"write_timeout_ms"`

	// ModelLocation is a file path or gs://bucket/object of the Model Artifact.
	ModelLocation string `koanf:"model_location"`

	// MaxUploadBytes caps the multipart upload size.
	MaxUploadBytes int64 `koanf:"max_upload_bytes"`

	// PreviewRows and DisplayRows size the preview and labeled views.
	PreviewRows int `koanf:"preview_rows"`
	DisplayRows int `koanf:"display_rows"`

	// AlertPreset is local, custom or request.
	AlertPreset string `koanf:"alert_preset"`

	// AlertSink is webhook, kafka or none.
	AlertSink string `koanf:"alert_sink"`

	// WebhookURL is the receiver for the custom preset and the fallback for request.
	WebhookURL string `koanf:"webhook_url"`

	// AlertTimeoutMS bounds each alert delivery.
	AlertTimeoutMS int `koanf:"alert_timeout_ms"`

	// AlertDispatchTimeoutMS bounds all alerts of one upload. It must leave
	// room inside WriteTimeoutMS for the upload response.
	AlertDispatchTimeoutMS int `koanf:"alert_dispatch_timeout_ms"`

	// AlertWorkers and AlertQueueSize size the dispatch pool.
	AlertWorkers   int `koanf:"alert_workers"`
	AlertQueueSize int `koanf:"alert_queue_size"`

	// KafkaBrokers is a comma separated broker list for the kafka sink.
	KafkaBrokers string `koanf:"kafka_brokers"`
	KafkaTopic   string `koanf:"kafka_topic"`

	// DatabaseURL selects the Postgres run store; empty keeps runs in memory.
	DatabaseURL string `koanf:"database_url"`

	// RunHistory bounds the number of retained runs.
	RunHistory int `koanf:"run_history"`
}

// New creates a Config with defaults.
func New() *Config {
	return &Config{
		LogLevel:               "info",
		LogFormat:              "text",
		Addr:                   ":8501",
		ReadTimeoutMS:          30_000,
		WriteTimeoutMS:         120_000,
		ModelLocation:          "model.json",
		MaxUploadBytes:         200 << 20,
		PreviewRows:            5,
		DisplayRows:            1000,
		AlertPreset:            string(alert.PresetLocal),
		AlertSink:              alert.SinkWebhook,
		AlertTimeoutMS:         10_000,
		AlertDispatchTimeoutMS: 90_000,
		AlertWorkers:           4,
		AlertQueueSize:         1024,
		KafkaTopic:             "fraud-alerts",
		RunHistory:             50,
	}
}

// AlertTimeout returns AlertTimeoutMS as a duration.
func (c *Config) AlertTimeout() time.Duration {
	return time.Duration(c.AlertTimeoutMS) * time.Millisecond
}

// AlertDispatchTimeout returns AlertDispatchTimeoutMS as a duration.
func (c *Config) AlertDispatchTimeout() time.Duration {
	return time.Duration(c.AlertDispatchTimeoutMS) * time.Millisecond
}

// ReadTimeout returns ReadTimeoutMS as a duration.
func (c *Config) ReadTimeout() time.Duration {
	return time.Duration(c.ReadTimeoutMS) * time.Millisecond
}

// WriteTimeout returns WriteTimeoutMS as a duration.
func (c *Config) WriteTimeout() time.Duration {
	return time.Duration(c.WriteTimeoutMS) * time.Millisecond
}

// Brokers splits KafkaBrokers.
func (c *Config) Brokers() []string {
	var out []string
	for _, b := range strings.Split(c.KafkaBrokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}

// Preset returns the parsed alert preset.
func (c *Config) Preset() alert.Preset {
	p, err := alert.ParsePreset(c.AlertPreset)
	if err != nil {
		return alert.PresetLocal
	}
	return p
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	switch {
	case c.Addr == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.ModelLocation == "":
		return fmt.Errorf("%w: model_location must not be empty", ErrInvalidConfig)
	case c.MaxUploadBytes <= 0:
		return fmt.Errorf("%w: max_upload_bytes must be positive", ErrInvalidConfig)
	case c.PreviewRows < 0 || c.DisplayRows < 0:
		return fmt.Errorf("%w: preview_rows and display_rows must not be negative", ErrInvalidConfig)
	case c.AlertTimeoutMS <= 0:
		return fmt.Errorf("%w: alert_timeout_ms must be positive", ErrInvalidConfig)
	case c.AlertDispatchTimeoutMS <= 0:
		return fmt.Errorf("%w: alert_dispatch_timeout_ms must be positive", ErrInvalidConfig)
	case c.WriteTimeoutMS > 0 && c.AlertDispatchTimeoutMS >= c.WriteTimeoutMS:
		return fmt.Errorf("%w: alert_dispatch_timeout_ms must be below write_timeout_ms", ErrInvalidConfig)
	case c.AlertWorkers < 1 || c.AlertQueueSize < 1:
		return fmt.Errorf("%w: alert_workers and alert_queue_size must be positive", ErrInvalidConfig)
	case c.RunHistory < 1:
		return fmt.Errorf("%w: run_history must be positive", ErrInvalidConfig)
	}

	preset, err := alert.ParsePreset(c.AlertPreset)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if preset == alert.PresetCustom && c.AlertSink == alert.SinkWebhook && strings.TrimSpace(c.WebhookURL) == "" {
		return fmt.Errorf("%w: alert_preset custom requires webhook_url", ErrInvalidConfig)
	}

	switch c.AlertSink {
	case alert.SinkWebhook, alert.SinkNone:
	case alert.SinkKafka:
		if len(c.Brokers()) == 0 || c.KafkaTopic == "" {
			return fmt.Errorf("%w: kafka sink requires kafka_brokers and kafka_topic", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown alert_sink %q", ErrInvalidConfig, c.AlertSink)
	}
	return nil
}
