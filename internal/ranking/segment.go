package ranking

import (
	"math"
	"slices"

	"github.com/rotisserie/eris"

	"github.com/sells-group/silver-economy/internal/model"
)

// DefaultHotspotQuantile is the threshold quantile for hotspot classification.
const DefaultHotspotQuantile = 0.75

// Quantile returns the q-th quantile of values using linear interpolation
// between closest ranks: with the values sorted ascending and
// pos = q*(n-1), the result is v[floor(pos)] + frac(pos)*(v[ceil(pos)]-v[floor(pos)]).
// q is clamped to [0,1]. It returns an error for an empty sample.
func Quantile(values []float64, q float64) (float64, error) {
	if len(values) == 0 {
		return 0, eris.New("ranking: quantile of empty sample")
	}
	sorted := slices.Clone(values)
	slices.Sort(sorted)
	return quantileSorted(sorted, q), nil
}

func quantileSorted(sorted []float64, q float64) float64 {
	if q <= 0 {
		return sorted[0]
	}
	if q >= 1 {
		return sorted[len(sorted)-1]
	}
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	w := pos - float64(lo)
	return sorted[lo] + w*(sorted[hi]-sorted[lo])
}

// Segmented is a record with its segment label.
type Segmented struct {
	Record  model.MunicipalRecord
	Segment string
}

// Segmentation is the result of a two-axis quantile classification.
type Segmentation struct {
	X          model.Column
	Y          model.Column
	Quantile   float64
	ThresholdX float64
	ThresholdY float64
	Records    []Segmented
	Hotspots   int
}

// Segment labels each record SegmentHotspot when both its x and y values are
// at or above that column's q-quantile within records, else SegmentOther.
// Records missing either value are labeled other and are left out of the
// quantile samples. Input order is preserved.
func Segment(records []model.MunicipalRecord, x, y model.Column, q float64) (*Segmentation, error) {
	if q < 0 || q > 1 {
		return nil, eris.Errorf("ranking: quantile must be within [0,1] (got %g)", q)
	}

	var xs, ys []float64
	for _, rec := range records {
		xv, xok := x.Value(rec)
		yv, yok := y.Value(rec)
		if xok && yok {
			xs = append(xs, xv)
			ys = append(ys, yv)
		}
	}
	if len(xs) == 0 {
		return nil, eris.Errorf("ranking: no record has both %s and %s", x, y)
	}

	tx, _ := Quantile(xs, q)
	ty, _ := Quantile(ys, q)

	seg := &Segmentation{
		X:          x,
		Y:          y,
		Quantile:   q,
		ThresholdX: tx,
		ThresholdY: ty,
		Records:    make([]Segmented, 0, len(records)),
	}
	for _, rec := range records {
		label := model.SegmentOther
		xv, xok := x.Value(rec)
		yv, yok := y.Value(rec)
		if xok && yok && xv >= tx && yv >= ty {
			label = model.SegmentHotspot
			seg.Hotspots++
		}
		seg.Records = append(seg.Records, Segmented{Record: rec, Segment: label})
	}
	return seg, nil
}
