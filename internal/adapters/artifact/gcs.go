package artifact

import (
	"context"
	"errors"
	"fmt"
	"io"

	"cloud.google.com/go/storage"
)

// GCSBlob stores bytes in a Cloud Storage object. Credentials come from
// Application Default Credentials.
type GCSBlob struct {
	bucket string
	object string
}

// NewGCSBlob returns a blob for bucket/object.
func NewGCSBlob(bucket, object string) *GCSBlob {
	return &GCSBlob{bucket: bucket, object: object}
}

func (b *GCSBlob) String() string { return gcsScheme + b.bucket + "/" + b.object }

// NewReader opens the object for reading. The client is closed with the reader.
func (b *GCSBlob) NewReader(ctx context.Context) (io.ReadCloser, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}
	r, err := client.Bucket(b.bucket).Object(b.object).NewReader(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) || errors.Is(err, storage.ErrBucketNotExist) {
		_ = client.Close()
		return nil, fmt.Errorf("%w: %s", ErrNotFound, b)
	}
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("open GCS object reader: %w", err)
	}
	return &clientCloser{ReadCloser: r, client: client}, nil
}

// NewWriter opens the object for writing. The upload is finalized on Close;
// Abort cancels it so the existing object is kept.
func (b *GCSBlob) NewWriter(ctx context.Context) (Writer, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}
	uploadCtx, cancel := context.WithCancel(ctx)
	w := client.Bucket(b.bucket).Object(b.object).NewWriter(uploadCtx)
	w.ContentType = "application/json"
	return &writerCloser{WriteCloser: w, client: client, cancel: cancel}, nil
}

type clientCloser struct {
	io.ReadCloser
	client *storage.Client
}

func (c *clientCloser) Close() error {
	err := c.ReadCloser.Close()
	if cerr := c.client.Close(); err == nil {
		err = cerr
	}
	return err
}

type writerCloser struct {
	io.WriteCloser
	client *storage.Client
	cancel context.CancelFunc
}

func (c *writerCloser) Close() error {
	defer c.cancel()
	err := c.WriteCloser.Close()
	if cerr := c.client.Close(); err == nil {
		err = cerr
	}
	return err
}

// Abort cancels the upload before it is committed. The writer's Close then
// reports the cancellation, which is the expected outcome here.
func (c *writerCloser) Abort() error {
	c.cancel()
	_ = c.WriteCloser.Close()
	return c.client.Close()
}
