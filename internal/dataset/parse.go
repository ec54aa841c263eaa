package dataset

import (
	"math"
	"strconv"
	"strings"
)

// parseIndicator coerces a cell to a number. Empty, malformed, NaN and
// infinite values are missing. A single decimal comma is accepted.
func parseIndicator(s string) *float64 {
	s = strings.TrimSpace(s)
	if s == "" || s == "-" || s == "..." {
		return nil
	}
	if strings.Count(s, ",") == 1 && !strings.Contains(s, ".") {
		s = strings.Replace(s, ",", ".", 1)
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

// cell returns row[i] trimmed, or "" when the row is short.
func cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}
