// Package region maps IBGE federative-unit codes to two-letter labels and
// canonicalizes municipality names.
package region

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// ufByCode is the IBGE federative unit table (26 states + DF).
var ufByCode = map[string]string{
	"11": "RO", "12": "AC", "13": "AM", "14": "RR", "15": "PA", "16": "AP", "17": "TO",
	"21": "MA", "22": "PI", "23": "CE", "24": "RN", "25": "PB", "26": "PE", "27": "AL", "28": "SE", "29": "BA",
	"31": "MG", "32": "ES", "33": "RJ", "35": "SP",
	"41": "PR", "42": "SC", "43": "RS",
	"50": "MS", "51": "MT", "52": "GO", "53": "DF",
}

var labelSet = func() map[string]bool {
	m := make(map[string]bool, len(ufByCode))
	for _, l := range ufByCode {
		m[l] = true
	}
	return m
}()

// ParseCode coerces a raw code to an integer. It returns false for empty or
// non-numeric input. Fractional codes are truncated toward zero.
func ParseCode(raw string) (int, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return int(f), true
}

// FormatCode formats a numeric code as a two-digit string.
func FormatCode(code int) string {
	return fmt.Sprintf("%02d", code)
}

// Label returns the UF label for a formatted two-digit code.
func Label(code string) (string, bool) {
	l, ok := ufByCode[code]
	return l, ok
}

// LabelFor resolves a raw code in one step.
func LabelFor(raw string) (string, bool) {
	n, ok := ParseCode(raw)
	if !ok {
		return "", false
	}
	return Label(FormatCode(n))
}

// Labels returns every UF label in alphabetical order.
func Labels() []string {
	out := make([]string, 0, len(ufByCode))
	for _, l := range ufByCode {
		out = append(out, l)
	}
	sort.Strings(out)
	return out
}

// IsLabel reports whether s is a known UF label (case-insensitive).
func IsLabel(s string) bool {
	return labelSet[strings.ToUpper(strings.TrimSpace(s))]
}
