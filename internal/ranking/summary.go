package ranking

import (
	"github.com/sells-group/silver-economy/internal/model"
)

// DefaultHistogramBins matches the income distribution panel.
const DefaultHistogramBins = 30

// Bin is one equal-width histogram bucket. Every bucket is [Lower, Upper)
// except the last, which also includes Upper.
type Bin struct {
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
	Count int     `json:"count"`
}

// Summary holds the headline indicators of a filtered set.
type Summary struct {
	Municipalities  int     `json:"municipalities"`
	MeanAgingIndex  float64 `json:"mean_aging_index"`
	MeanIncome60    float64 `json:"mean_income_60plus"`
	AgingSamples    int     `json:"aging_samples"`
	IncomeSamples   int     `json:"income_samples"`
	IncomeHistogram []Bin   `json:"income_histogram"`
}

// Summarize computes counts, means (missing values skipped) and an income
// histogram with the given number of bins (DefaultHistogramBins when <= 0).
func Summarize(records []model.MunicipalRecord, bins int) Summary {
	s := Summary{Municipalities: len(records)}

	var agingSum, incomeSum float64
	var incomes []float64
	for _, rec := range records {
		if v, ok := model.ColumnAgingIndex.Value(rec); ok {
			agingSum += v
			s.AgingSamples++
		}
		if v, ok := model.ColumnIncome60Plus.Value(rec); ok {
			incomeSum += v
			incomes = append(incomes, v)
		}
	}
	s.IncomeSamples = len(incomes)
	if s.AgingSamples > 0 {
		s.MeanAgingIndex = agingSum / float64(s.AgingSamples)
	}
	if s.IncomeSamples > 0 {
		s.MeanIncome60 = incomeSum / float64(s.IncomeSamples)
	}
	s.IncomeHistogram = Histogram(incomes, bins)
	return s
}

// Histogram buckets values into equal-width bins between their min and max.
// A sample whose values are all equal yields one bin holding every value.
func Histogram(values []float64, bins int) []Bin {
	if len(values) == 0 {
		return nil
	}
	if bins <= 0 {
		bins = DefaultHistogramBins
	}

	lo, hi := values[0], values[0]
	for _, v := range values[1:] {
		lo = min(lo, v)
		hi = max(hi, v)
	}
	if lo == hi {
		return []Bin{{Lower: lo, Upper: hi, Count: len(values)}}
	}

	width := (hi - lo) / float64(bins)
	out := make([]Bin, bins)
	for i := range out {
		out[i].Lower = lo + float64(i)*width
		out[i].Upper = lo + float64(i+1)*width
	}
	out[bins-1].Upper = hi

	for _, v := range values {
		idx := int((v - lo) / width)
		if idx >= bins {
			idx = bins - 1
		}
		out[idx].Count++
	}
	return out
}
