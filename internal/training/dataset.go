// Package training fits the fraud classifier offline and produces Model Artifacts.
package training

import (
	"fmt"
	"math/rand"
	"strconv"
	"strings"

	"github.com/okian/fraudwatch/internal/domain/features"
	"github.com/okian/fraudwatch/internal/domain/model"
)

// LabelColumn holds the ground-truth fraud flag in a training dataset.
const LabelColumn = "isFraud"

// Labels parses the label column of t into 0/1 values.
func Labels(t *model.Table) ([]int, error) {
	idx := t.Index(LabelColumn)
	if idx < 0 {
		return nil, fmt.Errorf("%w: %q", ErrMissingLabel, LabelColumn)
	}
	out := make([]int, len(t.Rows))
	for r, row := range t.Rows {
		var raw string
		if idx < len(row) {
			raw = strings.TrimSpace(row[idx])
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || (v != 0 && v != 1) {
			return nil, fmt.Errorf("%w: row %d: %q", ErrInvalidLabel, r, raw)
		}
		out[r] = int(v)
	}
	return out, nil
}

// Subset returns a table with the given rows of t, in the given order.
func Subset(t *model.Table, rows []int) *model.Table {
	out := &model.Table{Columns: t.Columns, Rows: make([][]string, len(rows))}
	for i, r := range rows {
		out.Rows[i] = t.Rows[r]
	}
	return out
}

// SampleRows draws n distinct row indices out of total. n <= 0 or n >= total
// keeps every row.
func SampleRows(rng *rand.Rand, total, n int) []int {
	if n <= 0 || n >= total {
		out := make([]int, total)
		for i := range out {
			out[i] = i
		}
		return out
	}
	return rng.Perm(total)[:n]
}

// Balance keeps every positive row and ratio times as many negatives, then
// shuffles. It returns the selected indices into labels and whether the
// negative pool was too small to honour ratio.
func Balance(rng *rand.Rand, labels []int, ratio int) ([]int, bool, error) {
	var pos, neg []int
	for i, y := range labels {
		if y == model.Fraudulent {
			pos = append(pos, i)
		} else {
			neg = append(neg, i)
		}
	}
	if len(pos) == 0 {
		return nil, false, ErrNoPositives
	}

	want := len(pos) * ratio
	short := false
	if want > len(neg) {
		want = len(neg)
		short = true
	}
	picked := rng.Perm(len(neg))[:want]

	out := make([]int, 0, len(pos)+want)
	out = append(out, pos...)
	for _, p := range picked {
		out = append(out, neg[p])
	}
	rng.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	return out, short, nil
}

// StratifiedSplit partitions row indices into train and test sets keeping the
// class proportions of labels in both.
func StratifiedSplit(rng *rand.Rand, labels []int, testSize float64) (train, test []int) {
	byClass := map[int][]int{}
	for i, y := range labels {
		byClass[y] = append(byClass[y], i)
	}
	for _, class := range []int{model.Legitimate, model.Fraudulent} {
		idx := byClass[class]
		rng.Shuffle(len(idx), func(i, j int) { idx[i], idx[j] = idx[j], idx[i] })
		n := int(float64(len(idx))*testSize + 0.5)
		test = append(test, idx[:n]...)
		train = append(train, idx[n:]...)
	}
	return train, test
}

// design builds the numeric matrix and labels for the given rows.
func design(t *model.Table, labels []int, rows []int) (features.Matrix, []int, error) {
	sub := Subset(t, rows)
	if err := features.CheckColumns(sub); err != nil {
		return features.Matrix{}, nil, err
	}
	m, err := features.Expand(sub)
	if err != nil {
		return features.Matrix{}, nil, err
	}
	y := make([]int, len(rows))
	for i, r := range rows {
		y[i] = labels[r]
	}
	return m, y, nil
}
