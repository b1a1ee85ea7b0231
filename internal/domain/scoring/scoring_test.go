package scoring_test

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/okian/fraudwatch/internal/domain/features"
	"github.com/okian/fraudwatch/internal/domain/scoring"
	. "github.com/smartystreets/goconvey/convey"
)

// stump flags rows whose feature f exceeds threshold.
func stump(f int, threshold float64) scoring.Tree {
	return scoring.Tree{Nodes: []scoring.Node{
		{Feature: f, Threshold: threshold, Left: 1, Right: 2},
		scoring.Leaf(0),
		scoring.Leaf(1),
	}}
}

func amountArtifact() *scoring.Artifact {
	return &scoring.Artifact{
		Schema: features.Schema{"step", "amount"},
		Forest: &scoring.Forest{Trees: []scoring.Tree{stump(1, 99.5)}},
		Meta:   scoring.Metadata{Trees: 1, Seed: 42},
	}
}

func TestForest(t *testing.T) {
	Convey("Given a forest of two disagreeing trees", t, func() {
		f := &scoring.Forest{Trees: []scoring.Tree{stump(0, 10), stump(0, 20)}}

		Convey("Then the probability is the tree mean", func() {
			So(f.Probability([]float64{5}), ShouldEqual, 0)
			So(f.Probability([]float64{15}), ShouldEqual, 0.5)
			So(f.Probability([]float64{25}), ShouldEqual, 1)
		})

		Convey("Then a tie is not fraudulent", func() {
			So(f.Predict([]float64{15}), ShouldEqual, 0)
			So(f.Predict([]float64{25}), ShouldEqual, 1)
		})

		Convey("Then the threshold itself routes left", func() {
			So(f.Predict([]float64{20}), ShouldEqual, 0)
		})
	})
}

func TestForestScorer_Score(t *testing.T) {
	ctx := context.Background()
	scorer := scoring.NewForestScorer()

	Convey("Given an aligned matrix", t, func() {
		m := features.Matrix{
			Columns: []string{"step", "amount"},
			Rows:    [][]float64{{1, 150}, {1, 12.5}, {2, 99.5}, {3, 1e6}},
		}

		Convey("Then every row gets a label in order", func() {
			labels, err := scorer.Score(ctx, m, amountArtifact())
			So(err, ShouldBeNil)
			So(labels, ShouldResemble, []int{1, 0, 0, 1})
		})

		Convey("Then scoring is repeatable", func() {
			first, _ := scorer.Score(ctx, m, amountArtifact())
			second, _ := scorer.Score(ctx, m, amountArtifact())
			So(second, ShouldResemble, first)
		})
	})

	Convey("Given a matrix with columns out of schema order", t, func() {
		m := features.Matrix{Columns: []string{"amount", "step"}, Rows: [][]float64{{150, 1}}}

		Convey("Then scoring is refused", func() {
			_, err := scorer.Score(ctx, m, amountArtifact())
			So(errors.Is(err, scoring.ErrSchemaMismatch), ShouldBeTrue)
		})
	})

	Convey("Given no artifact", t, func() {
		_, err := scorer.Score(ctx, features.Matrix{}, nil)
		So(errors.Is(err, scoring.ErrModelUnavailable), ShouldBeTrue)
	})
}

func TestArtifact(t *testing.T) {
	Convey("Given an encoded artifact", t, func() {
		var buf bytes.Buffer
		So(scoring.Encode(&buf, amountArtifact()), ShouldBeNil)

		Convey("Then it decodes to the same model", func() {
			a, err := scoring.Decode(&buf)
			So(err, ShouldBeNil)
			So(a.Schema, ShouldResemble, features.Schema{"step", "amount"})
			So(a.Forest.Predict([]float64{1, 150}), ShouldEqual, 1)
			So(a.Meta.Seed, ShouldEqual, 42)
		})
	})

	Convey("Given documents that are not usable artifacts", t, func() {
		cases := map[string]string{
			"garbage":         `not json`,
			"future version":  `{"version":99,"kind":"random_forest","feature_schema":["a"],"forest":{"trees":[{"nodes":[{"feature":-1}]}]}}`,
			"unknown kind":    `{"version":1,"kind":"svm","feature_schema":["a"],"forest":{"trees":[{"nodes":[{"feature":-1}]}]}}`,
			"no trees":        `{"version":1,"kind":"random_forest","feature_schema":["a"],"forest":{"trees":[]}}`,
			"feature overrun": `{"version":1,"kind":"random_forest","feature_schema":["a"],"forest":{"trees":[{"nodes":[{"feature":3,"left":1,"right":2},{"feature":-1},{"feature":-1}]}]}}`,
			"backward child":  `{"version":1,"kind":"random_forest","feature_schema":["a"],"forest":{"trees":[{"nodes":[{"feature":0,"left":0,"right":1},{"feature":-1}]}]}}`,
			"duplicate cols":  `{"version":1,"kind":"random_forest","feature_schema":["a","a"],"forest":{"trees":[{"nodes":[{"feature":-1}]}]}}`,
		}
		for name, doc := range cases {
			Convey("Then "+name+" is rejected as invalid", func() {
				_, err := scoring.Decode(strings.NewReader(doc))
				So(errors.Is(err, scoring.ErrInvalidArtifact), ShouldBeTrue)
			})
		}
	})
}

func TestModelUnavailableError(t *testing.T) {
	Convey("Given a load failure", t, func() {
		cause := errors.New("no such file")
		err := error(&scoring.ModelUnavailableError{Location: "model.json", Err: cause})

		Convey("Then it matches the kind and keeps the cause", func() {
			So(errors.Is(err, scoring.ErrModelUnavailable), ShouldBeTrue)
			So(errors.Is(err, cause), ShouldBeTrue)
			So(err.Error(), ShouldContainSubstring, "train the model first")
		})
	})
}
