package training

import (
	"math"
	"math/rand"
	"sort"

	"github.com/okian/fraudwatch/internal/domain/scoring"
)

// treeBuilder grows one CART tree with Gini impurity.
type treeBuilder struct {
	x           [][]float64
	y           []int
	maxFeatures int
	maxDepth    int // 0 = unlimited
	minLeaf     int
	rng         *rand.Rand
	nodes       []scoring.Node
}

type split struct {
	feature   int
	threshold float64
	impurity  float64
	pos       int // position in the sorted order where the right side starts
	order     []int
}

// grow builds the tree for the sample idx (indices into x, repeats allowed).
func (b *treeBuilder) grow(idx []int) scoring.Tree {
	b.nodes = b.nodes[:0]
	b.build(idx, 0)
	nodes := make([]scoring.Node, len(b.nodes))
	copy(nodes, b.nodes)
	return scoring.Tree{Nodes: nodes}
}

func (b *treeBuilder) build(idx []int, depth int) int {
	self := len(b.nodes)
	b.nodes = append(b.nodes, scoring.Node{})

	positives := 0
	for _, i := range idx {
		positives += b.y[i]
	}
	p := float64(positives) / float64(len(idx))

	if positives == 0 || positives == len(idx) ||
		len(idx) < 2*b.minLeaf ||
		(b.maxDepth > 0 && depth >= b.maxDepth) {
		b.nodes[self] = scoring.Leaf(p)
		return self
	}

	best, ok := b.bestSplit(idx, gini(positives, len(idx)))
	if !ok {
		b.nodes[self] = scoring.Leaf(p)
		return self
	}

	left := append([]int(nil), best.order[:best.pos]...)
	right := append([]int(nil), best.order[best.pos:]...)
	l := b.build(left, depth+1)
	r := b.build(right, depth+1)
	b.nodes[self] = scoring.Node{Feature: best.feature, Threshold: best.threshold, Left: l, Right: r}
	return self
}

// bestSplit searches a random feature subset first and falls back to the
// remaining features when the subset holds only constants, like sklearn does.
func (b *treeBuilder) bestSplit(idx []int, parent float64) (split, bool) {
	nf := len(b.x[0])
	perm := b.rng.Perm(nf)

	best := split{impurity: math.Inf(1)}
	found := false
	for k, f := range perm {
		if k >= b.maxFeatures && found {
			break
		}
		if s, ok := b.splitOn(idx, f); ok && s.impurity < best.impurity {
			best = s
			found = true
		}
	}
	if !found || best.impurity >= parent {
		return split{}, false
	}
	return best, true
}

func (b *treeBuilder) splitOn(idx []int, f int) (split, bool) {
	order := append([]int(nil), idx...)
	sort.Slice(order, func(i, j int) bool { return b.x[order[i]][f] < b.x[order[j]][f] })

	n := len(order)
	total := 0
	for _, i := range order {
		total += b.y[i]
	}

	best := split{feature: f, impurity: math.Inf(1)}
	found := false
	leftPos := 0
	for k := 1; k < n; k++ {
		leftPos += b.y[order[k-1]]
		lo, hi := b.x[order[k-1]][f], b.x[order[k]][f]
		if lo == hi || k < b.minLeaf || n-k < b.minLeaf {
			continue
		}
		imp := (float64(k)*gini(leftPos, k) + float64(n-k)*gini(total-leftPos, n-k)) / float64(n)
		if imp < best.impurity {
			best.impurity = imp
			t := lo + (hi-lo)/2
			if t == hi {
				t = lo
			}
			best.threshold = t
			best.pos = k
			found = true
		}
	}
	best.order = order
	return best, found
}

func gini(positives, n int) float64 {
	if n == 0 {
		return 0
	}
	p := float64(positives) / float64(n)
	return 1 - p*p - (1-p)*(1-p)
}
