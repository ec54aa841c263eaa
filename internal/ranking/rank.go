// Package ranking implements the read-only derived views over a filtered set:
// top-N rankings, quantile segmentation, threshold subsets and summaries.
package ranking

import (
	"slices"

	"github.com/sells-group/silver-economy/internal/model"
)

// DefaultTopN is the ranking size used by the dashboard.
const DefaultTopN = 20

// KeyFunc extracts a sort key and reports whether it is present.
type KeyFunc[T any] func(T) (float64, bool)

// ColumnKey adapts a model.Column to a KeyFunc over records.
func ColumnKey(col model.Column) KeyFunc[model.MunicipalRecord] {
	return col.Value
}

// SortDesc returns a copy of items stably sorted by key, descending.
// Items with equal keys keep their input order; items without a key go last.
func SortDesc[T any](items []T, key KeyFunc[T]) []T {
	type keyed struct {
		item T
		v    float64
		ok   bool
	}
	ks := make([]keyed, len(items))
	for i, it := range items {
		v, ok := key(it)
		ks[i] = keyed{item: it, v: v, ok: ok}
	}

	slices.SortStableFunc(ks, func(a, b keyed) int {
		switch {
		case a.ok && !b.ok:
			return -1
		case !a.ok && b.ok:
			return 1
		case !a.ok && !b.ok:
			return 0
		case a.v > b.v:
			return -1
		case a.v < b.v:
			return 1
		}
		return 0
	})

	out := make([]T, len(ks))
	for i, k := range ks {
		out[i] = k.item
	}
	return out
}

// TopN returns the first n items of SortDesc. n <= 0 returns every item.
func TopN[T any](items []T, key KeyFunc[T], n int) []T {
	sorted := SortDesc(items, key)
	if n > 0 && len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}

// ThresholdResult is a cutoff subset with its highlighted first record.
type ThresholdResult struct {
	Featured *model.MunicipalRecord
	Rows     []model.MunicipalRecord
	Matched  int
}

// Threshold selects records whose col value is strictly below cutoff, sorts
// them by sortBy descending and keeps the top n (n <= 0 keeps all). Records
// missing col are never selected.
func Threshold(records []model.MunicipalRecord, col model.Column, cutoff float64, sortBy model.Column, n int) ThresholdResult {
	var below []model.MunicipalRecord
	for _, rec := range records {
		if v, ok := col.Value(rec); ok && v < cutoff {
			below = append(below, rec)
		}
	}

	res := ThresholdResult{Matched: len(below)}
	sorted := SortDesc(below, ColumnKey(sortBy))
	if len(sorted) > 0 {
		featured := sorted[0]
		res.Featured = &featured
	}
	if n > 0 && len(sorted) > n {
		sorted = sorted[:n]
	}
	res.Rows = sorted
	return res
}
