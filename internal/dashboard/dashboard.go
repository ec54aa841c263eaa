// Package dashboard builds the filtered, scored and ranked tables handed to
// renderers. Every call recomputes its view from the shared snapshot.
package dashboard

import (
	"context"
	"fmt"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/silver-economy/internal/composite"
	"github.com/sells-group/silver-economy/internal/config"
	"github.com/sells-group/silver-economy/internal/dataset"
	"github.com/sells-group/silver-economy/internal/filter"
	"github.com/sells-group/silver-economy/internal/model"
	"github.com/sells-group/silver-economy/internal/ranking"
	"github.com/sells-group/silver-economy/internal/region"
)

// ErrNoCoordinates is returned by Map when the dataset has no geocoordinates.
var ErrNoCoordinates = eris.New("dashboard: dataset has no coordinates")

// ErrUnknownView is returned by ByName for names outside ViewNames.
var ErrUnknownView = eris.New("dashboard: unknown view")

// Row field names used in Roles.
const (
	FieldDisplayName          = "display_name"
	FieldRegion               = "region"
	FieldAgingIndex           = string(model.ColumnAgingIndex)
	FieldIncome60Plus         = string(model.ColumnIncome60Plus)
	FieldChildlessCoupleRatio = string(model.ColumnChildlessCoupleRatio)
	FieldCompositeScore       = "composite_score"
	FieldSegment              = "segment"
)

// Options tunes the derived views.
type Options struct {
	TopN            int
	HotspotQuantile float64
	EmergingCutoff  float64
	HistogramBins   int
}

// DefaultOptions mirrors the configuration defaults.
func DefaultOptions() Options {
	return Options{
		TopN:            ranking.DefaultTopN,
		HotspotQuantile: ranking.DefaultHotspotQuantile,
		EmergingCutoff:  30,
		HistogramBins:   ranking.DefaultHistogramBins,
	}
}

// OptionsFromConfig converts the ranking config section.
func OptionsFromConfig(cfg config.RankingConfig) Options {
	return Options{
		TopN:            cfg.TopN,
		HotspotQuantile: cfg.HotspotQuantile,
		EmergingCutoff:  cfg.EmergingCutoff,
		HistogramBins:   cfg.HistogramBins,
	}
}

// View is a finalized table plus the context it was computed in.
type View struct {
	model.Table
	SnapshotID string      `json:"snapshot_id"`
	Filter     filter.Spec `json:"filter"`
	// Matched counts the records that passed the filters.
	Matched    int                      `json:"matched"`
	Summary    *ranking.Summary         `json:"summary,omitempty"`
	Thresholds map[model.Column]float64 `json:"thresholds,omitempty"`
	Excluded   int                      `json:"excluded,omitempty"`
}

// Service computes dashboard views over a dataset provider.
type Service struct {
	provider dataset.Provider
	opts     Options
	log      *zap.Logger
}

// New creates a Service.
func New(provider dataset.Provider, opts Options) *Service {
	def := DefaultOptions()
	if opts.TopN <= 0 {
		opts.TopN = def.TopN
	}
	if opts.HistogramBins <= 0 {
		opts.HistogramBins = def.HistogramBins
	}
	return &Service{
		provider: provider,
		opts:     opts,
		log:      zap.L().With(zap.String("component", "dashboard")),
	}
}

// Options returns the effective view options.
func (s *Service) Options() Options { return s.opts }

// Snapshot returns the provider's current snapshot.
func (s *Service) Snapshot(ctx context.Context) (*model.Snapshot, error) {
	return s.provider.Snapshot(ctx)
}

// filtered loads the snapshot and applies spec. filter.ErrEmptyResult is
// returned unwrapped so callers can branch on it.
func (s *Service) filtered(ctx context.Context, spec filter.Spec) (*model.Snapshot, []model.MunicipalRecord, filter.Spec, error) {
	spec = spec.Normalized()
	snap, err := s.provider.Snapshot(ctx)
	if err != nil {
		return nil, nil, spec, err
	}
	records, err := filter.Apply(snap.Records, spec)
	if err != nil {
		if eris.Is(err, filter.ErrEmptyResult) {
			s.log.Debug("empty result",
				zap.String("region", spec.Region),
				zap.Float64("min_income", spec.MinIncome),
			)
		}
		return snap, nil, spec, err
	}
	return snap, records, spec, nil
}

func (s *Service) newView(snap *model.Snapshot, spec filter.Spec, matched int, table model.Table) *View {
	return &View{
		Table:      table,
		SnapshotID: snap.ID,
		Filter:     spec,
		Matched:    matched,
	}
}

func (s *Service) topN(n int) int {
	if n == 0 {
		return s.opts.TopN
	}
	return n
}

// Overview summarizes the filtered set: count, mean aging index, mean
// income and the income histogram. Rows hold every filtered municipality.
func (s *Service) Overview(ctx context.Context, spec filter.Spec) (*View, error) {
	snap, records, spec, err := s.filtered(ctx, spec)
	if err != nil {
		return nil, err
	}

	summary := ranking.Summarize(records, s.opts.HistogramBins)
	v := s.newView(snap, spec, len(records), model.Table{
		Title: "General indicators",
		Roles: model.Roles{Category: FieldDisplayName, Value: FieldIncome60Plus},
		Rows:  toRows(records),
	})
	v.Summary = &summary
	return v, nil
}

// AgingRanking returns the n municipalities with the highest aging index,
// colored by income. n == 0 uses the configured default, n < 0 keeps all.
func (s *Service) AgingRanking(ctx context.Context, spec filter.Spec, n int) (*View, error) {
	snap, records, spec, err := s.filtered(ctx, spec)
	if err != nil {
		return nil, err
	}

	n = s.topN(n)
	top := ranking.TopN(records, ranking.ColumnKey(model.ColumnAgingIndex), n)
	table := model.Table{
		Title: rankTitle(n, "aging index"),
		Roles: model.Roles{Category: FieldDisplayName, Value: FieldAgingIndex, Color: FieldIncome60Plus},
		Rows:  toRows(top),
	}
	if len(top) > 0 {
		if _, ok := model.ColumnAgingIndex.Value(top[0]); ok {
			table.Featured = &table.Rows[0]
		}
	}
	return s.newView(snap, spec, len(records), table), nil
}

// Hotspots classifies the filtered set on aging index and childless couple
// ratio. Both at or above the configured quantile is a hotspot.
func (s *Service) Hotspots(ctx context.Context, spec filter.Spec) (*View, error) {
	snap, records, spec, err := s.filtered(ctx, spec)
	if err != nil {
		return nil, err
	}

	seg, err := ranking.Segment(records, model.ColumnAgingIndex, model.ColumnChildlessCoupleRatio, s.opts.HotspotQuantile)
	if err != nil {
		return nil, eris.Wrap(err, "dashboard: hotspots")
	}

	rows := make([]model.Row, len(seg.Records))
	for i, r := range seg.Records {
		rows[i] = toRow(r.Record)
		rows[i].Segment = r.Segment
	}

	v := s.newView(snap, spec, len(records), model.Table{
		Title: fmt.Sprintf("Silver economy hotspots (p%g)", s.opts.HotspotQuantile*100),
		Roles: model.Roles{
			Category: FieldAgingIndex,
			Value:    FieldChildlessCoupleRatio,
			Size:     FieldIncome60Plus,
			Color:    FieldSegment,
		},
		Rows: rows,
	})
	v.Thresholds = map[model.Column]float64{
		seg.X: seg.ThresholdX,
		seg.Y: seg.ThresholdY,
	}
	return v, nil
}

// Emerging lists municipalities with an aging index below the configured
// cutoff, richest first. The richest one is featured.
func (s *Service) Emerging(ctx context.Context, spec filter.Spec, n int) (*View, error) {
	snap, records, spec, err := s.filtered(ctx, spec)
	if err != nil {
		return nil, err
	}

	n = s.topN(n)
	res := ranking.Threshold(records, model.ColumnAgingIndex, s.opts.EmergingCutoff, model.ColumnIncome60Plus, n)
	table := model.Table{
		Title: fmt.Sprintf("Emerging municipalities (aging index < %g)", s.opts.EmergingCutoff),
		Roles: model.Roles{Category: FieldDisplayName, Value: FieldIncome60Plus},
		Rows:  toRows(res.Rows),
	}
	if res.Featured != nil {
		featured := toRow(*res.Featured)
		table.Featured = &featured
	}
	return s.newView(snap, spec, len(records), table), nil
}

// CompositeRanking scores the filtered set and ranks it by composite score.
// Scores are relative to the filtered set.
func (s *Service) CompositeRanking(ctx context.Context, spec filter.Spec, n int) (*View, error) {
	snap, records, spec, err := s.filtered(ctx, spec)
	if err != nil {
		return nil, err
	}

	res, err := composite.Compute(records)
	if err != nil {
		return nil, err
	}

	n = s.topN(n)
	top := ranking.TopN(res.Scored, func(sc composite.Scored) (float64, bool) { return sc.Score, true }, n)
	rows := make([]model.Row, len(top))
	for i, sc := range top {
		rows[i] = toRow(sc.Record)
		score := sc.Score
		rows[i].CompositeScore = &score
	}

	table := model.Table{
		Title: rankTitle(n, "silver index"),
		Roles: model.Roles{Category: FieldDisplayName, Value: FieldCompositeScore, Color: FieldRegion},
		Rows:  rows,
	}
	if len(rows) > 0 {
		table.Featured = &table.Rows[0]
	}
	v := s.newView(snap, spec, len(records), table)
	v.Excluded = res.Excluded
	return v, nil
}

// Map returns the filtered municipalities that carry coordinates.
func (s *Service) Map(ctx context.Context, spec filter.Spec) (*View, error) {
	snap, records, spec, err := s.filtered(ctx, spec)
	if err != nil {
		return nil, err
	}
	if !snap.HasGeo {
		return nil, ErrNoCoordinates
	}

	var located []model.MunicipalRecord
	for _, rec := range records {
		if rec.HasCoordinates() {
			located = append(located, rec)
		}
	}

	return s.newView(snap, spec, len(records), model.Table{
		Title: "Aging index by municipality",
		Roles: model.Roles{
			Category: FieldDisplayName,
			Value:    FieldAgingIndex,
			Size:     FieldIncome60Plus,
			Color:    FieldAgingIndex,
		},
		Rows: toRows(located),
	}), nil
}

// ViewNames lists the views understood by ByName.
var ViewNames = []string{"overview", "ranking", "hotspots", "emerging", "composite", "map"}

// ByName dispatches to the named view.
func (s *Service) ByName(ctx context.Context, name string, spec filter.Spec, n int) (*View, error) {
	switch name {
	case "overview":
		return s.Overview(ctx, spec)
	case "ranking":
		return s.AgingRanking(ctx, spec, n)
	case "hotspots":
		return s.Hotspots(ctx, spec)
	case "emerging":
		return s.Emerging(ctx, spec, n)
	case "composite":
		return s.CompositeRanking(ctx, spec, n)
	case "map":
		return s.Map(ctx, spec)
	default:
		return nil, eris.Wrapf(ErrUnknownView, "%q", name)
	}
}

func rankTitle(n int, by string) string {
	if n < 0 {
		return "Municipalities by " + by
	}
	return fmt.Sprintf("Top %d municipalities by %s", n, by)
}

func toRow(rec model.MunicipalRecord) model.Row {
	return model.Row{
		Name:                 rec.Name,
		DisplayName:          region.DisplayName(rec.Name),
		Region:               rec.RegionLabel,
		AgingIndex:           rec.AgingIndex,
		Income60Plus:         rec.Income60Plus,
		ChildlessCoupleRatio: rec.ChildlessCoupleRatio,
		Latitude:             rec.Latitude,
		Longitude:            rec.Longitude,
	}
}

func toRows(records []model.MunicipalRecord) []model.Row {
	rows := make([]model.Row, len(records))
	for i, rec := range records {
		rows[i] = toRow(rec)
	}
	return rows
}
