package composite

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/silver-economy/internal/model"
)

func rec(name string, aging, income, ratio float64) model.MunicipalRecord {
	return model.MunicipalRecord{
		Name:                 name,
		RegionLabel:          "SP",
		AgingIndex:           model.Float(aging),
		Income60Plus:         model.Float(income),
		ChildlessCoupleRatio: model.Float(ratio),
	}
}

func TestCompute_ThreeIncreasingRecords(t *testing.T) {
	res, err := Compute([]model.MunicipalRecord{
		rec("a", 10, 100, 0.1),
		rec("b", 20, 200, 0.2),
		rec("c", 30, 300, 0.3),
	})
	require.NoError(t, err)
	require.Len(t, res.Scored, 3)

	want := []float64{0.0, 0.5, 1.0}
	for i, s := range res.Scores() {
		assert.InDelta(t, want[i], s, 1e-9)
	}
	assert.Zero(t, res.Excluded)
}

func TestCompute_SingleRecordIsDegenerate(t *testing.T) {
	res, err := Compute([]model.MunicipalRecord{rec("only", 55, 2500, 0.4)})
	require.NoError(t, err)
	require.Len(t, res.Scored, 1)

	s := res.Scored[0]
	assert.Equal(t, 0.0, s.Score)
	assert.False(t, math.IsNaN(s.Score))
	for _, col := range model.IndicatorColumns {
		assert.Equal(t, DegenerateValue, s.Normalized[col])
		assert.True(t, res.Bounds[col].Degenerate())
	}
}

func TestCompute_OneDegenerateIndicator(t *testing.T) {
	res, err := Compute([]model.MunicipalRecord{
		rec("a", 10, 500, 0.2),
		rec("b", 30, 500, 0.4),
	})
	require.NoError(t, err)

	assert.Equal(t, 0.0, res.Scored[0].Normalized[model.ColumnIncome60Plus])
	assert.Equal(t, 0.0, res.Scored[1].Normalized[model.ColumnIncome60Plus])
	assert.InDelta(t, 0.0, res.Scored[0].Score, 1e-9)
	assert.InDelta(t, 2.0/3.0, res.Scored[1].Score, 1e-9)
}

func TestCompute_RangeAndExtremes(t *testing.T) {
	recs := []model.MunicipalRecord{
		rec("a", 80, 1200, 0.15),
		rec("b", 140, 3100, 0.22),
		rec("c", 45, 2200, 0.31),
		rec("d", 95, 900, 0.18),
		rec("e", 140, 1800, 0.09),
	}
	res, err := Compute(recs)
	require.NoError(t, err)

	for _, s := range res.Scored {
		assert.GreaterOrEqual(t, s.Score, 0.0)
		assert.LessOrEqual(t, s.Score, 1.0)
	}

	for _, col := range model.IndicatorColumns {
		b := res.Bounds[col]
		for _, s := range res.Scored {
			v, _ := col.Value(s.Record)
			if v == b.Max {
				assert.Equal(t, 1.0, s.Normalized[col], "%s max of %s", s.Record.Name, col)
			}
			if v == b.Min {
				assert.Equal(t, 0.0, s.Normalized[col], "%s min of %s", s.Record.Name, col)
			}
		}
	}
}

func TestCompute_ExcludesMissingIndicators(t *testing.T) {
	missing := rec("m", 10, 10, 0.1)
	missing.ChildlessCoupleRatio = nil

	res, err := Compute([]model.MunicipalRecord{
		rec("a", 10, 100, 0.1),
		missing,
		rec("b", 20, 200, 0.2),
	})
	require.NoError(t, err)
	require.Len(t, res.Scored, 2)
	assert.Equal(t, 1, res.Excluded)
	assert.Equal(t, "a", res.Scored[0].Record.Name)
	assert.Equal(t, "b", res.Scored[1].Record.Name)
}

func TestCompute_NoScorableRecords(t *testing.T) {
	r := rec("a", 1, 1, 1)
	r.AgingIndex = nil

	_, err := Compute([]model.MunicipalRecord{r})
	assert.ErrorIs(t, err, ErrNoScorableRecords)

	_, err = Compute(nil)
	assert.ErrorIs(t, err, ErrNoScorableRecords)
}

func TestCompute_RelativeToSet(t *testing.T) {
	all := []model.MunicipalRecord{
		rec("a", 10, 100, 0.1),
		rec("b", 20, 200, 0.2),
		rec("c", 30, 300, 0.3),
	}
	full, err := Compute(all)
	require.NoError(t, err)
	sub, err := Compute(all[1:])
	require.NoError(t, err)

	// "b" is the middle of the full set but the minimum of the subset.
	assert.InDelta(t, 0.5, full.Scored[1].Score, 1e-9)
	assert.InDelta(t, 0.0, sub.Scored[0].Score, 1e-9)
	assert.Equal(t, Range{Min: 20, Max: 30}, sub.Bounds[model.ColumnAgingIndex])
}

func TestRangeNormalize(t *testing.T) {
	r := Range{Min: 10, Max: 20}
	assert.Equal(t, 0.0, r.Normalize(10))
	assert.Equal(t, 1.0, r.Normalize(20))
	assert.InDelta(t, 0.25, r.Normalize(12.5), 1e-9)
	assert.Equal(t, 0.0, r.Normalize(5))
	assert.Equal(t, 1.0, r.Normalize(25))
	assert.Equal(t, DegenerateValue, Range{Min: 3, Max: 3}.Normalize(3))
}
