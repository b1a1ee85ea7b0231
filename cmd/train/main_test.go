package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/okian/fraudwatch/internal/adapters/artifact"
	"github.com/okian/fraudwatch/internal/sampledata"
	"github.com/okian/fraudwatch/internal/training"
	"github.com/okian/fraudwatch/pkg/logger"
	"github.com/smartystreets/goconvey/convey"
)

func TestRun(t *testing.T) {
	convey.Convey("Given a labeled sample dataset", t, func() {
		convey.So(logger.Init(logger.WithOutput(&bytes.Buffer{})), convey.ShouldBeNil)

		dir := t.TempDir()
		input := filepath.Join(dir, "paysim.csv")
		var csv bytes.Buffer
		convey.So(sampledata.Write(&csv, sampledata.NewGenerator(5, 0.1, 12).Generate(600)), convey.ShouldBeNil)
		convey.So(os.WriteFile(input, csv.Bytes(), 0o600), convey.ShouldBeNil)

		cfg := training.DefaultConfig()
		cfg.Trees = 5
		cfg.Workers = 2
		opts := options{input: input, output: filepath.Join(dir, "model.json"), training: cfg}

		convey.Convey("When training runs", func() {
			var out bytes.Buffer
			err := run(context.Background(), opts, &out)
			convey.So(err, convey.ShouldBeNil)

			convey.Convey("Then a loadable artifact is written", func() {
				store, err := artifact.Open(opts.output)
				convey.So(err, convey.ShouldBeNil)
				a, err := store.Load(context.Background())
				convey.So(err, convey.ShouldBeNil)
				convey.So(len(a.Forest.Trees), convey.ShouldEqual, 5)
				convey.So(a.Schema[0], convey.ShouldEqual, "step")
			})

			convey.Convey("Then the evaluation is printed", func() {
				convey.So(out.String(), convey.ShouldContainSubstring, "Feature schema:")
				convey.So(out.String(), convey.ShouldContainSubstring, "accuracy")
			})
		})

		convey.Convey("When the input is missing", func() {
			opts.input = filepath.Join(dir, "absent.csv")
			convey.So(run(context.Background(), opts, &bytes.Buffer{}), convey.ShouldNotBeNil)
		})

		convey.Convey("When no input is given", func() {
			opts.input = ""
			convey.So(run(context.Background(), opts, &bytes.Buffer{}), convey.ShouldNotBeNil)
		})
	})
}
