package scoring

import (
	"fmt"
)

// leafMarker is the Feature value of a leaf node.
const leafMarker = -1

// Node is one decision-tree node. Internal nodes route a row to Left when
// row[Feature] <= Threshold, otherwise to Right. Leaves carry the fraction of
// fraudulent training samples that reached them.
type Node struct {
	Feature   int     `json:"feature"`
	Threshold float64 `json:"threshold,omitempty"`
	Left      int     `json:"left,omitempty"`
	Right     int     `json:"right,omitempty"`
	Value     float64 `json:"value,omitempty"`
}

// IsLeaf reports whether n terminates a path.
func (n Node) IsLeaf() bool { return n.Feature == leafMarker }

// Leaf builds a leaf node holding fraud probability p.
func Leaf(p float64) Node { return Node{Feature: leafMarker, Value: p} }

// Tree is a flattened binary decision tree; Nodes[0] is the root.
type Tree struct {
	Nodes []Node `json:"nodes"`
}

// Probability walks the tree for row and returns the leaf fraud probability.
func (t *Tree) Probability(row []float64) float64 {
	i := 0
	for {
		n := t.Nodes[i]
		if n.IsLeaf() {
			return n.Value
		}
		if row[n.Feature] <= n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
	}
}

// validate checks child indices and feature bounds so Probability cannot panic
// or loop.
func (t *Tree) validate(features int) error {
	if len(t.Nodes) == 0 {
		return fmt.Errorf("%w: empty tree", ErrInvalidArtifact)
	}
	for i, n := range t.Nodes {
		if n.IsLeaf() {
			continue
		}
		if n.Feature < 0 || n.Feature >= features {
			return fmt.Errorf("%w: node %d feature %d out of range", ErrInvalidArtifact, i, n.Feature)
		}
		// children always follow their parent in a flattened tree
		if n.Left <= i || n.Right <= i || n.Left >= len(t.Nodes) || n.Right >= len(t.Nodes) {
			return fmt.Errorf("%w: node %d has invalid children", ErrInvalidArtifact, i)
		}
	}
	return nil
}

// Forest is a bagged ensemble of decision trees.
type Forest struct {
	Trees []Tree `json:"trees"`
}

// Probability returns the mean tree fraud probability for row.
func (f *Forest) Probability(row []float64) float64 {
	if len(f.Trees) == 0 {
		return 0
	}
	var sum float64
	for i := range f.Trees {
		sum += f.Trees[i].Probability(row)
	}
	return sum / float64(len(f.Trees))
}

// Predict labels row fraudulent when the mean probability exceeds one half.
func (f *Forest) Predict(row []float64) int {
	if f.Probability(row) > 0.5 {
		return 1
	}
	return 0
}
