package artifact

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// FileBlob stores bytes in a local file.
type FileBlob struct {
	path string
}

// NewFileBlob returns a blob at path.
func NewFileBlob(path string) *FileBlob { return &FileBlob{path: path} }

func (b *FileBlob) String() string { return b.path }

// NewReader opens the file.
func (b *FileBlob) NewReader(_ context.Context) (io.ReadCloser, error) {
	f, err := os.Open(b.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, b.path)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", b.path, err)
	}
	return f, nil
}

// NewWriter writes to a temporary sibling that replaces the file on Close,
// so readers never see a partial artifact.
func (b *FileBlob) NewWriter(_ context.Context) (Writer, error) {
	dir := filepath.Dir(b.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create %s: %w", dir, err)
	}
	f, err := os.CreateTemp(dir, filepath.Base(b.path)+".*.tmp")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	return &renameOnClose{File: f, target: b.path}, nil
}

type renameOnClose struct {
	*os.File
	target string
	closed bool
}

func (w *renameOnClose) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	if err := w.File.Close(); err != nil {
		_ = os.Remove(w.Name())
		return err
	}
	if err := os.Rename(w.Name(), w.target); err != nil {
		_ = os.Remove(w.Name())
		return err
	}
	return nil
}

// Abort drops the temporary file without touching the target.
func (w *renameOnClose) Abort() error {
	if w.closed {
		return nil
	}
	w.closed = true
	cerr := w.File.Close()
	if err := os.Remove(w.Name()); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return cerr
}
