// Package store persists finalized dashboard tables so BI tools can read
// them without running the pipeline.
package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/silver-economy/internal/config"
	"github.com/sells-group/silver-economy/internal/filter"
	"github.com/sells-group/silver-economy/internal/model"
)

// ErrNotFound is returned for an unknown export ID.
var ErrNotFound = eris.New("store: export not found")

// DefaultListLimit caps ListExports when no limit is given.
const DefaultListLimit = 50

// ExportMeta describes where an exported table came from.
type ExportMeta struct {
	SnapshotID string      `json:"snapshot_id"`
	Source     string      `json:"source"`
	View       string      `json:"view"`
	Filter     filter.Spec `json:"filter"`
}

// Export is one saved table.
type Export struct {
	ID string `json:"id"`
	ExportMeta
	Title     string      `json:"title"`
	Roles     model.Roles `json:"roles"`
	RowCount  int         `json:"row_count"`
	CreatedAt time.Time   `json:"created_at"`
}

// Store defines the persistence interface for exported tables.
type Store interface {
	SaveTable(ctx context.Context, meta ExportMeta, table model.Table) (*Export, error)
	ListExports(ctx context.Context, limit int) ([]Export, error)
	ExportRows(ctx context.Context, exportID string) ([]model.Row, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// Open creates the store selected by cfg.Driver.
func Open(ctx context.Context, cfg config.StoreConfig) (Store, error) {
	switch cfg.Driver {
	case "sqlite", "":
		return NewSQLite(cfg.DatabaseURL)
	case "postgres":
		return NewPostgres(ctx, cfg.DatabaseURL)
	default:
		return nil, eris.Errorf("store: unknown driver %q", cfg.Driver)
	}
}

// rowColumns is the column order of export_rows after export_id.
var rowColumns = []string{
	"position",
	"name",
	"display_name",
	"region",
	"aging_index",
	"income_60plus",
	"childless_couple_ratio",
	"latitude",
	"longitude",
	"composite_score",
	"segment",
	"featured",
}

func rowValues(exportID string, pos int, r model.Row, featured bool) []any {
	return []any{
		exportID,
		pos,
		r.Name,
		r.DisplayName,
		r.Region,
		r.AgingIndex,
		r.Income60Plus,
		r.ChildlessCoupleRatio,
		r.Latitude,
		r.Longitude,
		r.CompositeScore,
		r.Segment,
		featured,
	}
}

// tableRows flattens a table into export rows. The featured row is stored
// first with position -1 when it is not also one of the table rows.
func tableRows(exportID string, table model.Table) [][]any {
	out := make([][]any, 0, len(table.Rows)+1)
	featuredInRows := false
	for i, r := range table.Rows {
		isFeatured := table.Featured != nil && r.Name == table.Featured.Name && r.Region == table.Featured.Region
		if isFeatured {
			featuredInRows = true
		}
		out = append(out, rowValues(exportID, i, r, isFeatured))
	}
	if table.Featured != nil && !featuredInRows {
		out = append([][]any{rowValues(exportID, -1, *table.Featured, true)}, out...)
	}
	return out
}

func newExport(id string, meta ExportMeta, table model.Table, now time.Time) *Export {
	return &Export{
		ID:         id,
		ExportMeta: meta,
		Title:      table.Title,
		Roles:      table.Roles,
		RowCount:   len(table.Rows),
		CreatedAt:  now,
	}
}

func marshalRoles(r model.Roles) (string, error) {
	b, err := json.Marshal(r)
	if err != nil {
		return "", eris.Wrap(err, "store: marshal roles")
	}
	return string(b), nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanExport(row scannable) (*Export, error) {
	var (
		e     Export
		roles string
	)
	if err := row.Scan(
		&e.ID, &e.SnapshotID, &e.Source, &e.View, &e.Filter.Region, &e.Filter.MinIncome,
		&e.Title, &roles, &e.RowCount, &e.CreatedAt,
	); err != nil {
		return nil, err
	}
	if roles != "" {
		if err := json.Unmarshal([]byte(roles), &e.Roles); err != nil {
			return nil, eris.Wrap(err, "store: unmarshal roles")
		}
	}
	return &e, nil
}

func scanRow(row scannable) (model.Row, error) {
	var (
		r        model.Row
		pos      int
		featured bool
	)
	err := row.Scan(
		&pos, &r.Name, &r.DisplayName, &r.Region,
		&r.AgingIndex, &r.Income60Plus, &r.ChildlessCoupleRatio,
		&r.Latitude, &r.Longitude, &r.CompositeScore, &r.Segment, &featured,
	)
	return r, err
}

func listLimit(limit int) int {
	if limit <= 0 {
		return DefaultListLimit
	}
	return limit
}
