// Package geo turns finalized tables into GeoJSON for map renderers: point
// features from geocoded rows and choropleth features joined to municipal
// boundary polygons.
package geo

import (
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"

	"github.com/sells-group/silver-economy/internal/model"
)

// Points builds one Point feature per row with coordinates. Rows without
// coordinates are skipped.
func Points(rows []model.Row) *geojson.FeatureCollection {
	fc := &geojson.FeatureCollection{Features: make([]*geojson.Feature, 0, len(rows))}
	for _, row := range rows {
		if row.Latitude == nil || row.Longitude == nil {
			continue
		}
		pt := geom.NewPointFlat(geom.XY, []float64{*row.Longitude, *row.Latitude}).SetSRID(4326)
		fc.Features = append(fc.Features, &geojson.Feature{
			ID:         featureID(row),
			Geometry:   pt,
			Properties: properties(row),
		})
	}
	return fc
}

// Choropleth joins rows to boundary polygons by folded name and UF. It
// returns the joined features and the names of rows with no polygon.
func Choropleth(rows []model.Row, b *Boundaries) (*geojson.FeatureCollection, []string) {
	fc := &geojson.FeatureCollection{Features: make([]*geojson.Feature, 0, len(rows))}
	var unmatched []string
	for _, row := range rows {
		bd, ok := b.Lookup(row.Name, row.Region)
		if !ok {
			unmatched = append(unmatched, row.Name)
			continue
		}
		fc.Features = append(fc.Features, &geojson.Feature{
			ID:         featureID(row),
			Geometry:   bd.Geometry,
			Properties: properties(row),
		})
	}
	return fc, unmatched
}

func featureID(row model.Row) string {
	return row.Region + "/" + row.Name
}

func properties(row model.Row) map[string]any {
	p := map[string]any{
		"name":                   row.DisplayName,
		"region":                 row.Region,
		"aging_index":            row.AgingIndex,
		"income_60plus":          row.Income60Plus,
		"childless_couple_ratio": row.ChildlessCoupleRatio,
	}
	if row.CompositeScore != nil {
		p["composite_score"] = *row.CompositeScore
	}
	if row.Segment != "" {
		p["segment"] = row.Segment
	}
	return p
}
