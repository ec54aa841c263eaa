package model

// Segment labels produced by quantile segmentation.
const (
	SegmentHotspot = "hotspot"
	SegmentOther   = "other"
)

// Roles declares which row fields a renderer should use for each visual encoding.
// Empty roles are unused.
type Roles struct {
	Category string `json:"category"`
	Value    string `json:"value"`
	Size     string `json:"size,omitempty"`
	Color    string `json:"color,omitempty"`
}

// Row is one finalized output row handed to a rendering collaborator.
type Row struct {
	Name                 string   `json:"name"`
	DisplayName          string   `json:"display_name"`
	Region               string   `json:"region"`
	AgingIndex           *float64 `json:"aging_index"`
	Income60Plus         *float64 `json:"income_60plus"`
	ChildlessCoupleRatio *float64 `json:"childless_couple_ratio"`
	Latitude             *float64 `json:"latitude,omitempty"`
	Longitude            *float64 `json:"longitude,omitempty"`
	CompositeScore       *float64 `json:"composite_score,omitempty"`
	Segment              string   `json:"segment,omitempty"`
}

// Table is a filtered, scored view ready for rendering.
type Table struct {
	Title    string `json:"title"`
	Roles    Roles  `json:"roles"`
	Featured *Row   `json:"featured,omitempty"`
	Rows     []Row  `json:"rows"`
}
