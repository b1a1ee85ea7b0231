// Package scoring applies a trained Model Artifact to aligned feature matrices.
package scoring

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/okian/fraudwatch/internal/domain/features"
)

// ArtifactVersion is the artifact document version this package reads and writes.
const ArtifactVersion = 1

// artifactKind identifies the classifier family stored in an artifact.
const artifactKind = "random_forest"

// Artifact is a trained classifier plus the Feature Schema it was fitted on.
// It is immutable once loaded.
type Artifact struct {
	Schema features.Schema
	Forest *Forest
	Meta   Metadata
}

// Metadata records how an artifact was produced.
type Metadata struct {
	TrainedAt   time.Time         `json:"trained_at"`
	Trees       int               `json:"trees"`
	Seed        int64             `json:"seed"`
	TrainRows   int               `json:"train_rows"`
	Positives   int               `json:"positives"`
	Negatives   int               `json:"negatives"`
	Evaluation  *Report           `json:"evaluation,omitempty"`
	Annotations map[string]string `json:"annotations,omitempty"`
}

// Report is a per-class precision/recall summary of a held-out evaluation.
type Report struct {
	Classes  []ClassReport `json:"classes"`
	Accuracy float64       `json:"accuracy"`
	Support  int           `json:"support"`
}

// ClassReport holds the metrics of one class.
type ClassReport struct {
	Label     int     `json:"label"`
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1        float64 `json:"f1"`
	Support   int     `json:"support"`
}

// document is the persisted JSON layout.
type document struct {
	Version int      `json:"version"`
	Kind    string   `json:"kind"`
	Schema  []string `json:"feature_schema"`
	Forest  *Forest  `json:"forest"`
	Meta    Metadata `json:"metadata"`
}

// Encode writes a as a versioned JSON document.
func Encode(w io.Writer, a *Artifact) error {
	if err := a.Validate(); err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", " ")
	if err := enc.Encode(document{
		Version: ArtifactVersion,
		Kind:    artifactKind,
		Schema:  a.Schema,
		Forest:  a.Forest,
		Meta:    a.Meta,
	}); err != nil {
		return fmt.Errorf("encode artifact: %w", err)
	}
	return nil
}

// Decode reads and validates an artifact document.
func Decode(r io.Reader) (*Artifact, error) {
	var doc document
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArtifact, err)
	}
	if doc.Version != ArtifactVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrInvalidArtifact, doc.Version)
	}
	if doc.Kind != artifactKind {
		return nil, fmt.Errorf("%w: unsupported kind %q", ErrInvalidArtifact, doc.Kind)
	}
	a := &Artifact{Schema: features.Schema(doc.Schema), Forest: doc.Forest, Meta: doc.Meta}
	if err := a.Validate(); err != nil {
		return nil, err
	}
	return a, nil
}

// Validate checks the artifact is usable for scoring.
func (a *Artifact) Validate() error {
	if len(a.Schema) == 0 {
		return fmt.Errorf("%w: empty feature schema", ErrInvalidArtifact)
	}
	seen := make(map[string]struct{}, len(a.Schema))
	for _, c := range a.Schema {
		if _, dup := seen[c]; dup {
			return fmt.Errorf("%w: duplicate schema column %q", ErrInvalidArtifact, c)
		}
		seen[c] = struct{}{}
	}
	if a.Forest == nil || len(a.Forest.Trees) == 0 {
		return fmt.Errorf("%w: no trees", ErrInvalidArtifact)
	}
	for i := range a.Forest.Trees {
		if err := a.Forest.Trees[i].validate(len(a.Schema)); err != nil {
			return fmt.Errorf("tree %d: %w", i, err)
		}
	}
	return nil
}
