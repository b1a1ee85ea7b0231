// Package artifact persists and loads Model Artifacts from the local
// filesystem or Google Cloud Storage.
package artifact

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/okian/fraudwatch/internal/domain/scoring"
	"github.com/okian/fraudwatch/pkg/logger"
	"github.com/okian/fraudwatch/pkg/metrics"
)

const gcsScheme = "gs://"

// ErrNotFound reports a location holding no artifact.
var ErrNotFound = errors.New("artifact not found")

// Blob is raw byte storage at one location.
type Blob interface {
	NewReader(ctx context.Context) (io.ReadCloser, error)
	NewWriter(ctx context.Context) (Writer, error)
	String() string
}

// Writer stages bytes for a Blob. Close publishes them; Abort discards
// them and leaves the previous content in place.
type Writer interface {
	io.WriteCloser
	Abort() error
}

// Store loads and saves artifacts through a Blob.
type Store struct {
	blob   Blob
	logger logger.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the store logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewStore wraps blob.
func NewStore(blob Blob, opts ...Option) *Store {
	s := &Store{blob: blob}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("artifact")
	}
	return s
}

// Open picks the blob backend from location: gs://bucket/object selects
// Cloud Storage, anything else is a filesystem path.
func Open(location string, opts ...Option) (*Store, error) {
	if strings.HasPrefix(location, gcsScheme) {
		bucket, object, err := ParseGCSURI(location)
		if err != nil {
			return nil, err
		}
		return NewStore(NewGCSBlob(bucket, object), opts...), nil
	}
	if strings.TrimSpace(location) == "" {
		return nil, errors.New("empty artifact location")
	}
	return NewStore(NewFileBlob(location), opts...), nil
}

// Location returns where the store reads and writes.
func (s *Store) Location() string { return s.blob.String() }

// Load reads and validates the artifact. Every failure is a
// *scoring.ModelUnavailableError.
func (s *Store) Load(ctx context.Context) (*scoring.Artifact, error) {
	start := time.Now()
	a, err := s.load(ctx)
	if err != nil {
		metrics.RecordModelLoadError()
		s.logger.Error(ctx, "model artifact unavailable",
			logger.String("location", s.Location()),
			logger.Error(err),
		)
		return nil, &scoring.ModelUnavailableError{Location: s.Location(), Err: err}
	}
	s.logger.Debug(ctx, "model artifact loaded",
		logger.String("location", s.Location()),
		logger.Int("features", len(a.Schema)),
		logger.Int("trees", len(a.Forest.Trees)),
		logger.Duration("took", time.Since(start)),
	)
	return a, nil
}

func (s *Store) load(ctx context.Context) (*scoring.Artifact, error) {
	r, err := s.blob.NewReader(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = r.Close() }()
	return scoring.Decode(r)
}

// Save encodes a to the blob, replacing what was there. A failed save
// keeps the previous artifact.
func (s *Store) Save(ctx context.Context, a *scoring.Artifact) error {
	if err := a.Validate(); err != nil {
		return fmt.Errorf("encode artifact: %w", err)
	}
	w, err := s.blob.NewWriter(ctx)
	if err != nil {
		return fmt.Errorf("open %s: %w", s.Location(), err)
	}
	if err := scoring.Encode(w, a); err != nil {
		if aerr := w.Abort(); aerr != nil {
			s.logger.Warn(ctx, "discarding partial artifact failed",
				logger.String("location", s.Location()),
				logger.Error(aerr),
			)
		}
		return fmt.Errorf("encode artifact: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("finalize %s: %w", s.Location(), err)
	}
	s.logger.Info(ctx, "model artifact saved", logger.String("location", s.Location()))
	return nil
}

// ParseGCSURI splits gs://bucket/path/to/object.
func ParseGCSURI(uri string) (bucket, object string, err error) {
	trimmed, ok := strings.CutPrefix(uri, gcsScheme)
	if !ok {
		return "", "", fmt.Errorf("invalid GCS URI: %s", uri)
	}
	bucket, object, _ = strings.Cut(trimmed, "/")
	if bucket == "" || object == "" {
		return "", "", fmt.Errorf("invalid GCS URI (no object path): %s", uri)
	}
	return bucket, object, nil
}
