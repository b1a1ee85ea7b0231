// Package features turns uploaded transaction tables into the numeric matrix a
// trained model expects.
package features

import (
	"sort"
	"strconv"
	"strings"

	"github.com/okian/fraudwatch/internal/domain/model"
)

// Source field names.
const (
	FieldStep           = "step"
	FieldType           = "type"
	FieldAmount         = "amount"
	FieldOldBalanceOrg  = "oldbalanceOrg"
	FieldNewBalanceOrig = "newbalanceOrig"
	FieldOldBalanceDest = "oldbalanceDest"
	FieldNewBalanceDest = "newbalanceDest"

	// CategoryPrefix prefixes indicator columns expanded from FieldType.
	CategoryPrefix = FieldType + "_"
)

// RequiredFields lists the source fields every upload must carry, in check order.
var RequiredFields = []string{ //nolint:gochecknoglobals // fixed field list
	FieldStep, FieldType, FieldAmount,
	FieldOldBalanceOrg, FieldNewBalanceOrig,
	FieldOldBalanceDest, FieldNewBalanceDest,
}

// numericFields are copied unchanged into the matrix, in this order.
var numericFields = []string{ //nolint:gochecknoglobals // fixed field list
	FieldStep, FieldAmount,
	FieldOldBalanceOrg, FieldNewBalanceOrig,
	FieldOldBalanceDest, FieldNewBalanceDest,
}

// Schema is the ordered column list a trained model consumes. It is captured
// once at training time and never mutated afterwards.
type Schema []string

// Equal reports whether cols has exactly the schema's columns in schema order.
func (s Schema) Equal(cols []string) bool {
	if len(s) != len(cols) {
		return false
	}
	for i := range s {
		if s[i] != cols[i] {
			return false
		}
	}
	return true
}

// Categories returns the category values the schema has indicator columns for.
func (s Schema) Categories() []string {
	var out []string
	for _, c := range s {
		if v, ok := strings.CutPrefix(c, CategoryPrefix); ok {
			out = append(out, v)
		}
	}
	return out
}

// Matrix is a numeric table. After alignment Columns equals the model schema.
type Matrix struct {
	Columns []string
	Rows    [][]float64

	// Dropped lists expanded columns discarded because the schema lacks them.
	Dropped []string
}

// CategoryColumn returns the indicator column name for a category value.
func CategoryColumn(value string) string { return CategoryPrefix + value }

// CheckColumns verifies every required field is present, failing on the first
// absent one.
func CheckColumns(t *model.Table) error {
	for _, name := range RequiredFields {
		if t.Index(name) < 0 {
			return &MissingColumnError{Column: name}
		}
	}
	return nil
}

// Expand converts t into a numeric matrix: numeric fields copied in a fixed
// order, then one indicator column per distinct category observed in t, sorted
// by name. Callers must run CheckColumns first.
func Expand(t *model.Table) (Matrix, error) {
	numIdx := make([]int, len(numericFields))
	for i, name := range numericFields {
		numIdx[i] = t.Index(name)
	}
	typeIdx := t.Index(FieldType)

	seen := make(map[string]struct{})
	for _, row := range t.Rows {
		if v := category(row, typeIdx); v != "" {
			seen[v] = struct{}{}
		}
	}
	cats := make([]string, 0, len(seen))
	for v := range seen {
		cats = append(cats, v)
	}
	sort.Strings(cats)
	catPos := make(map[string]int, len(cats))

	cols := make([]string, 0, len(numericFields)+len(cats))
	cols = append(cols, numericFields...)
	for i, v := range cats {
		catPos[v] = len(numericFields) + i
		cols = append(cols, CategoryColumn(v))
	}

	rows := make([][]float64, len(t.Rows))
	for r, row := range t.Rows {
		vec := make([]float64, len(cols))
		for i, c := range numIdx {
			raw := cell(row, c)
			v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
			if err != nil {
				return Matrix{}, &InvalidValueError{Row: r, Column: numericFields[i], Value: raw}
			}
			vec[i] = v
		}
		if pos, ok := catPos[category(row, typeIdx)]; ok {
			vec[pos] = 1
		}
		rows[r] = vec
	}

	return Matrix{Columns: cols, Rows: rows}, nil
}

// category returns the row's category value; blank cells have none and
// leave every indicator at 0.
func category(row []string, i int) string {
	return strings.TrimSpace(cell(row, i))
}

func cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return row[i]
}
