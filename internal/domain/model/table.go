// Package model contains domain models passed between layers.
package model

// PredictionColumn is the column a labeled table carries its verdict in.
const PredictionColumn = "Prediction"

// Prediction labels.
const (
	Legitimate = 0
	Fraudulent = 1
)

// Table is an uploaded tabular document: ordered column names and rows of raw
// cells. Row i of every derived table corresponds to row i here.
type Table struct {
	Columns []string
	Rows    [][]string
}

// Index returns the position of the named column or -1.
func (t *Table) Index(name string) int {
	for i, c := range t.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// Len returns the number of rows.
func (t *Table) Len() int { return len(t.Rows) }

// Head returns a table holding at most n leading rows. Rows are shared.
func (t *Table) Head(n int) *Table {
	if n < 0 || n > len(t.Rows) {
		n = len(t.Rows)
	}
	return &Table{Columns: t.Columns, Rows: t.Rows[:n]}
}

// Labeled is a table augmented with one prediction per row.
type Labeled struct {
	Table       *Table
	Predictions []int
}

// Label attaches predictions to t. The Prediction column replaces an existing
// one in place, otherwise it is appended last.
func Label(t *Table, predictions []int) *Labeled {
	idx := t.Index(PredictionColumn)
	cols := t.Columns
	if idx < 0 {
		cols = make([]string, len(t.Columns), len(t.Columns)+1)
		copy(cols, t.Columns)
		cols = append(cols, PredictionColumn)
		idx = len(cols) - 1
	}

	rows := make([][]string, len(t.Rows))
	for i, r := range t.Rows {
		row := make([]string, len(cols))
		copy(row, r)
		if i < len(predictions) {
			row[idx] = itoa(predictions[i])
		}
		rows[i] = row
	}

	return &Labeled{
		Table:       &Table{Columns: cols, Rows: rows},
		Predictions: predictions,
	}
}

// Frauds returns the row indices predicted fraudulent, ascending.
func (l *Labeled) Frauds() []int {
	var out []int
	for i, p := range l.Predictions {
		if p == Fraudulent {
			out = append(out, i)
		}
	}
	return out
}

// FraudTable returns the labeled table restricted to fraudulent rows.
func (l *Labeled) FraudTable() *Table {
	frauds := l.Frauds()
	rows := make([][]string, 0, len(frauds))
	for _, i := range frauds {
		rows = append(rows, l.Table.Rows[i])
	}
	return &Table{Columns: l.Table.Columns, Rows: rows}
}

// Record returns row i as a field map suitable for JSON encoding. Cells are
// typed: integers, decimals, null for empty, strings otherwise.
func (l *Labeled) Record(i int) map[string]any {
	row := l.Table.Rows[i]
	rec := make(map[string]any, len(l.Table.Columns))
	for c, name := range l.Table.Columns {
		var cell string
		if c < len(row) {
			cell = row[c]
		}
		rec[name] = TypedCell(cell)
	}
	if i < len(l.Predictions) {
		rec[PredictionColumn] = l.Predictions[i]
	}
	return rec
}

func itoa(p int) string {
	if p == Fraudulent {
		return "1"
	}
	return "0"
}
