package region

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/sells-group/silver-economy/internal/model"
)

// Stats counts the records removed by each normalization phase.
type Stats struct {
	NonNumeric int
	Unmapped   int
}

// Normalize drops records whose region code is empty or non-numeric, then
// records whose formatted code is not a known UF, and labels the survivors.
// The input slice is not modified. Running Normalize on its own output
// returns an equal slice and zero Stats.
func Normalize(records []model.MunicipalRecord) ([]model.MunicipalRecord, Stats) {
	var stats Stats

	numeric := make([]model.MunicipalRecord, 0, len(records))
	codes := make([]int, 0, len(records))
	for _, rec := range records {
		n, ok := ParseCode(rec.RegionCodeRaw)
		if !ok {
			stats.NonNumeric++
			continue
		}
		numeric = append(numeric, rec)
		codes = append(codes, n)
	}

	out := make([]model.MunicipalRecord, 0, len(numeric))
	for i, rec := range numeric {
		label, ok := Label(FormatCode(codes[i]))
		if !ok {
			stats.Unmapped++
			continue
		}
		rec.RegionLabel = label
		rec.RegionCodeRaw = strings.TrimSpace(rec.RegionCodeRaw)
		rec.Name = CanonicalName(rec.Name)
		out = append(out, rec)
	}

	return out, stats
}

// CanonicalName trims and lowercases a municipality name.
func CanonicalName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// DisplayName title-cases a canonical name using Portuguese casing rules.
func DisplayName(name string) string {
	return cases.Title(language.BrazilianPortuguese).String(CanonicalName(name))
}

// FoldName strips accents and case so names from different sources can be joined.
// Example: "São Paulo" -> "sao paulo".
func FoldName(name string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, CanonicalName(name))
	if err != nil {
		return CanonicalName(name)
	}
	return strings.Join(strings.Fields(folded), " ")
}
