// Package model defines the municipal records, snapshots and output tables shared by the pipeline.
package model

import (
	"time"

	"github.com/rotisserie/eris"
)

// Column names a numeric indicator column of a MunicipalRecord.
type Column string

const (
	ColumnAgingIndex           Column = "aging_index"
	ColumnIncome60Plus         Column = "income_60plus"
	ColumnChildlessCoupleRatio Column = "childless_couple_ratio"
)

// IndicatorColumns lists the three indicators combined by the composite index.
var IndicatorColumns = []Column{
	ColumnAgingIndex,
	ColumnIncome60Plus,
	ColumnChildlessCoupleRatio,
}

// ParseColumn resolves a column name.
func ParseColumn(s string) (Column, error) {
	for _, c := range IndicatorColumns {
		if string(c) == s {
			return c, nil
		}
	}
	return "", eris.Errorf("model: unknown column %q", s)
}

// Value returns the column value of rec and whether it is present.
func (c Column) Value(rec MunicipalRecord) (float64, bool) {
	var v *float64
	switch c {
	case ColumnAgingIndex:
		v = rec.AgingIndex
	case ColumnIncome60Plus:
		v = rec.Income60Plus
	case ColumnChildlessCoupleRatio:
		v = rec.ChildlessCoupleRatio
	}
	if v == nil {
		return 0, false
	}
	return *v, true
}

// MunicipalRecord is one row of the census-derived dataset.
// Nil indicator pointers mean the source value was missing or malformed.
type MunicipalRecord struct {
	Name                 string   `json:"name"`
	RegionCodeRaw        string   `json:"region_code_raw"`
	RegionLabel          string   `json:"region_label,omitempty"`
	AgingIndex           *float64 `json:"aging_index"`
	Income60Plus         *float64 `json:"income_60plus"`
	ChildlessCoupleRatio *float64 `json:"childless_couple_ratio"`
	Latitude             *float64 `json:"latitude,omitempty"`
	Longitude            *float64 `json:"longitude,omitempty"`
}

// HasIndicators reports whether all three composite indicators are present.
func (r MunicipalRecord) HasIndicators() bool {
	return r.AgingIndex != nil && r.Income60Plus != nil && r.ChildlessCoupleRatio != nil
}

// HasCoordinates reports whether the record carries a geocoordinate.
func (r MunicipalRecord) HasCoordinates() bool {
	return r.Latitude != nil && r.Longitude != nil
}

// Dataset is the raw result of a load, before region normalization.
type Dataset struct {
	Source  string
	Header  []string
	Records []MunicipalRecord
	HasGeo  bool
}

// LoadStats counts rows seen and dropped while building a snapshot.
type LoadStats struct {
	RowsRead          int `json:"rows_read"`
	DroppedNonNumeric int `json:"dropped_non_numeric"`
	DroppedUnmapped   int `json:"dropped_unmapped"`
}

// Kept returns the number of rows that survived normalization.
func (s LoadStats) Kept() int {
	return s.RowsRead - s.DroppedNonNumeric - s.DroppedUnmapped
}

// Snapshot is an immutable, normalized dataset shared by reference across views.
// Callers must not modify Records.
type Snapshot struct {
	ID       string            `json:"id"`
	Source   string            `json:"source"`
	LoadedAt time.Time         `json:"loaded_at"`
	HasGeo   bool              `json:"has_geo"`
	Stats    LoadStats         `json:"stats"`
	Records  []MunicipalRecord `json:"-"`
}

// Float returns a pointer to v.
func Float(v float64) *float64 { return &v }
