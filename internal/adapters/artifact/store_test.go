package artifact_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/okian/fraudwatch/internal/adapters/artifact"
	"github.com/okian/fraudwatch/internal/domain/features"
	"github.com/okian/fraudwatch/internal/domain/scoring"
	"github.com/okian/fraudwatch/pkg/logger"
	"github.com/smartystreets/goconvey/convey"
)

func thresholdArtifact() *scoring.Artifact {
	return &scoring.Artifact{
		Schema: features.Schema{"amount"},
		Forest: &scoring.Forest{Trees: []scoring.Tree{{Nodes: []scoring.Node{
			{Feature: 0, Threshold: 99.5, Left: 1, Right: 2},
			scoring.Leaf(0),
			scoring.Leaf(1),
		}}}},
		Meta: scoring.Metadata{Trees: 1, Seed: 42},
	}
}

// shortBlob fails every write past limit bytes.
type shortBlob struct {
	*artifact.FileBlob
	limit int
}

func (b *shortBlob) NewWriter(ctx context.Context) (artifact.Writer, error) {
	w, err := b.FileBlob.NewWriter(ctx)
	if err != nil {
		return nil, err
	}
	return &shortWriter{Writer: w, left: b.limit}, nil
}

type shortWriter struct {
	artifact.Writer
	left int
}

func (w *shortWriter) Write(p []byte) (int, error) {
	if len(p) > w.left {
		return 0, errors.New("disk full")
	}
	w.left -= len(p)
	return w.Writer.Write(p)
}

func TestStore_File(t *testing.T) {
	convey.Convey("Given a file-backed store", t, func() {
		dir := t.TempDir()
		path := filepath.Join(dir, "models", "model.json")
		store, err := artifact.Open(path, artifact.WithLogger(logger.NewNop()))
		convey.So(err, convey.ShouldBeNil)
		convey.So(store.Location(), convey.ShouldEqual, path)
		ctx := context.Background()

		convey.Convey("When nothing was saved yet", func() {
			_, err := store.Load(ctx)

			convey.Convey("Then the model is unavailable and not found", func() {
				var mu *scoring.ModelUnavailableError
				convey.So(errors.As(err, &mu), convey.ShouldBeTrue)
				convey.So(mu.Location, convey.ShouldEqual, path)
				convey.So(errors.Is(err, scoring.ErrModelUnavailable), convey.ShouldBeTrue)
				convey.So(errors.Is(err, artifact.ErrNotFound), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When an artifact is saved", func() {
			a := thresholdArtifact()
			convey.So(store.Save(ctx, a), convey.ShouldBeNil)

			convey.Convey("Then loading returns an equivalent artifact", func() {
				got, err := store.Load(ctx)
				convey.So(err, convey.ShouldBeNil)
				convey.So(got.Schema, convey.ShouldResemble, a.Schema)
				convey.So(got.Forest, convey.ShouldResemble, a.Forest)
				convey.So(got.Meta.Seed, convey.ShouldEqual, 42)
			})

			convey.Convey("Then no temporary files are left behind", func() {
				entries, err := os.ReadDir(filepath.Dir(path))
				convey.So(err, convey.ShouldBeNil)
				convey.So(len(entries), convey.ShouldEqual, 1)
			})
		})

		convey.Convey("When the file is corrupt", func() {
			convey.So(os.MkdirAll(filepath.Dir(path), 0o755), convey.ShouldBeNil)
			convey.So(os.WriteFile(path, []byte("{not json"), 0o600), convey.ShouldBeNil)
			_, err := store.Load(ctx)

			convey.Convey("Then the model is unavailable as an invalid artifact", func() {
				convey.So(errors.Is(err, scoring.ErrModelUnavailable), convey.ShouldBeTrue)
				convey.So(errors.Is(err, scoring.ErrInvalidArtifact), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When a save fails over an existing artifact", func() {
			convey.So(store.Save(ctx, thresholdArtifact()), convey.ShouldBeNil)
			err := store.Save(ctx, &scoring.Artifact{})
			convey.So(errors.Is(err, scoring.ErrInvalidArtifact), convey.ShouldBeTrue)

			convey.Convey("Then the previous artifact still loads", func() {
				got, err := store.Load(ctx)
				convey.So(err, convey.ShouldBeNil)
				convey.So(got.Schema, convey.ShouldResemble, features.Schema{"amount"})
			})
		})

		convey.Convey("When the write breaks part way through", func() {
			convey.So(store.Save(ctx, thresholdArtifact()), convey.ShouldBeNil)
			broken := artifact.NewStore(&shortBlob{FileBlob: artifact.NewFileBlob(path), limit: 16},
				artifact.WithLogger(logger.NewNop()))
			err := broken.Save(ctx, thresholdArtifact())
			convey.So(err, convey.ShouldNotBeNil)

			convey.Convey("Then the partial file is discarded and the old one kept", func() {
				_, err := store.Load(ctx)
				convey.So(err, convey.ShouldBeNil)
				entries, err := os.ReadDir(filepath.Dir(path))
				convey.So(err, convey.ShouldBeNil)
				convey.So(len(entries), convey.ShouldEqual, 1)
			})
		})

		convey.Convey("When saving an invalid artifact", func() {
			err := store.Save(ctx, &scoring.Artifact{})

			convey.Convey("Then it is refused and nothing is written", func() {
				convey.So(errors.Is(err, scoring.ErrInvalidArtifact), convey.ShouldBeTrue)
				_, statErr := os.Stat(path)
				convey.So(os.IsNotExist(statErr), convey.ShouldBeTrue)
			})
		})
	})
}

func TestOpen(t *testing.T) {
	convey.Convey("Given artifact locations", t, func() {
		convey.Convey("Then gs:// selects Cloud Storage", func() {
			s, err := artifact.Open("gs://models/fraud/model.json", artifact.WithLogger(logger.NewNop()))
			convey.So(err, convey.ShouldBeNil)
			convey.So(s.Location(), convey.ShouldEqual, "gs://models/fraud/model.json")
		})

		convey.Convey("Then an empty location is rejected", func() {
			_, err := artifact.Open(" ")
			convey.So(err, convey.ShouldNotBeNil)
		})

		convey.Convey("Then a bucket without object is rejected", func() {
			_, err := artifact.Open("gs://models")
			convey.So(err, convey.ShouldNotBeNil)
		})
	})
}

func TestParseGCSURI(t *testing.T) {
	convey.Convey("Given GCS URIs", t, func() {
		cases := []struct {
			uri, bucket, object string
			ok                  bool
		}{
			{"gs://b/o.json", "b", "o.json", true},
			{"gs://b/dir/o.json", "b", "dir/o.json", true},
			{"gs://b/", "", "", false},
			{"gs:///o", "", "", false},
			{"s3://b/o", "", "", false},
		}
		for _, c := range cases {
			bucket, object, err := artifact.ParseGCSURI(c.uri)
			convey.So(err == nil, convey.ShouldEqual, c.ok)
			convey.So(bucket, convey.ShouldEqual, c.bucket)
			convey.So(object, convey.ShouldEqual, c.object)
		}
	})
}
