// Package composite computes the silver-economy composite index: the unweighted
// mean of three min-max normalized indicators over the current filtered set.
package composite

import (
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/silver-economy/internal/model"
)

// DegenerateValue is the normalized value used when an indicator has the same
// value across the whole set (max == min), including a set of one record.
const DegenerateValue = 0.0

// ErrNoScorableRecords is returned when no record has all three indicators.
var ErrNoScorableRecords = eris.New("composite: no record has all three indicators")

// Range holds the observed bounds of one indicator within a scored set.
type Range struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// Degenerate reports whether the range has zero width.
func (r Range) Degenerate() bool {
	return r.Max == r.Min
}

// Normalize maps v into [0,1] relative to the range.
func (r Range) Normalize(v float64) float64 {
	if r.Degenerate() {
		return DegenerateValue
	}
	n := (v - r.Min) / (r.Max - r.Min)
	switch {
	case n < 0:
		return 0
	case n > 1:
		return 1
	}
	return n
}

// Scored is a record with its per-indicator normalized values and composite score.
type Scored struct {
	Record     model.MunicipalRecord    `json:"record"`
	Normalized map[model.Column]float64 `json:"normalized"`
	Score      float64                  `json:"score"`
}

// Result is the outcome of one composite computation. Scores are only
// meaningful relative to the set they were computed over.
type Result struct {
	Scored   []Scored               `json:"scored"`
	Bounds   map[model.Column]Range `json:"bounds"`
	Excluded int                    `json:"excluded"`
}

// Compute scores every record that has all three indicators. Records missing
// an indicator are skipped and counted in Result.Excluded. Bounds are always
// derived from the given records; nothing is cached between calls.
func Compute(records []model.MunicipalRecord) (*Result, error) {
	eligible := make([]model.MunicipalRecord, 0, len(records))
	for _, rec := range records {
		if rec.HasIndicators() {
			eligible = append(eligible, rec)
		}
	}

	if len(eligible) == 0 {
		return nil, ErrNoScorableRecords
	}

	res := &Result{
		Excluded: len(records) - len(eligible),
		Bounds:   make(map[model.Column]Range, len(model.IndicatorColumns)),
	}

	for _, col := range model.IndicatorColumns {
		res.Bounds[col] = bounds(eligible, col)
	}

	res.Scored = make([]Scored, 0, len(eligible))
	for _, rec := range eligible {
		s := Scored{
			Record:     rec,
			Normalized: make(map[model.Column]float64, len(model.IndicatorColumns)),
		}
		var sum float64
		for _, col := range model.IndicatorColumns {
			v, _ := col.Value(rec)
			n := res.Bounds[col].Normalize(v)
			s.Normalized[col] = n
			sum += n
		}
		s.Score = sum / float64(len(model.IndicatorColumns))
		res.Scored = append(res.Scored, s)
	}

	for col, r := range res.Bounds {
		if r.Degenerate() {
			zap.L().Debug("composite: degenerate indicator range",
				zap.String("column", string(col)),
				zap.Float64("value", r.Min),
				zap.Int("records", len(eligible)),
			)
		}
	}

	return res, nil
}

// bounds returns the min and max of col over records that all carry it.
func bounds(records []model.MunicipalRecord, col model.Column) Range {
	first, _ := col.Value(records[0])
	r := Range{Min: first, Max: first}
	for _, rec := range records[1:] {
		v, _ := col.Value(rec)
		if v < r.Min {
			r.Min = v
		}
		if v > r.Max {
			r.Max = v
		}
	}
	return r
}

// Scores returns the composite scores in the order of Result.Scored.
func (r *Result) Scores() []float64 {
	out := make([]float64, len(r.Scored))
	for i, s := range r.Scored {
		out[i] = s.Score
	}
	return out
}
