package model

import (
	"math"
	"strconv"
	"strings"
)

// TypedCell converts a raw CSV cell into the JSON value a typed dataframe would
// produce for it.
func TypedCell(cell string) any {
	s := strings.TrimSpace(cell)
	if s == "" {
		return nil
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		// NaN and Inf have no JSON encoding
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return nil
		}
		return f
	}
	return cell
}
