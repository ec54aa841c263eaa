package store

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/silver-economy/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS exports (
	id          TEXT PRIMARY KEY,
	snapshot_id TEXT NOT NULL,
	source      TEXT NOT NULL,
	view        TEXT NOT NULL,
	region      TEXT NOT NULL,
	min_income  REAL NOT NULL DEFAULT 0,
	title       TEXT NOT NULL,
	roles       TEXT NOT NULL,
	row_count   INTEGER NOT NULL,
	created_at  DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS export_rows (
	export_id              TEXT NOT NULL REFERENCES exports(id) ON DELETE CASCADE,
	position               INTEGER NOT NULL,
	name                   TEXT NOT NULL,
	display_name           TEXT NOT NULL,
	region                 TEXT NOT NULL,
	aging_index            REAL,
	income_60plus          REAL,
	childless_couple_ratio REAL,
	latitude               REAL,
	longitude              REAL,
	composite_score        REAL,
	segment                TEXT NOT NULL DEFAULT '',
	featured               BOOLEAN NOT NULL DEFAULT 0,
	PRIMARY KEY (export_id, position)
);

CREATE INDEX IF NOT EXISTS idx_exports_created_at ON exports(created_at);
CREATE INDEX IF NOT EXISTS idx_exports_view ON exports(view);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) SaveTable(ctx context.Context, meta ExportMeta, table model.Table) (*Export, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	roles, err := marshalRoles(table.Roles)
	if err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	_, err = tx.ExecContext(ctx,
		`INSERT INTO exports (id, snapshot_id, source, view, region, min_income, title, roles, row_count, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, meta.SnapshotID, meta.Source, meta.View, meta.Filter.Region, meta.Filter.MinIncome,
		table.Title, roles, len(table.Rows), now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert export")
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(rowColumns)+1), ", ")
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO export_rows (export_id, `+strings.Join(rowColumns, ", ")+`) VALUES (`+placeholders+`)`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: prepare export row")
	}
	defer stmt.Close() //nolint:errcheck

	for _, vals := range tableRows(id, table) {
		if _, err := stmt.ExecContext(ctx, vals...); err != nil {
			return nil, eris.Wrap(err, "sqlite: insert export row")
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, eris.Wrap(err, "sqlite: commit export")
	}
	return newExport(id, meta, table, now), nil
}

func (s *SQLiteStore) ListExports(ctx context.Context, limit int) ([]Export, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, snapshot_id, source, view, region, min_income, title, roles, row_count, created_at
		 FROM exports ORDER BY created_at DESC, id LIMIT ?`, listLimit(limit))
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list exports")
	}
	defer rows.Close() //nolint:errcheck

	var out []Export
	for rows.Next() {
		e, err := scanExport(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan export")
		}
		out = append(out, *e)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate exports")
}

func (s *SQLiteStore) ExportRows(ctx context.Context, exportID string) ([]model.Row, error) {
	var exists int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM exports WHERE id = ?`, exportID).Scan(&exists)
	if err == sql.ErrNoRows {
		return nil, eris.Wrapf(ErrNotFound, "export %s", exportID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get export %s", exportID)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+strings.Join(rowColumns, ", ")+`
		 FROM export_rows WHERE export_id = ? AND position >= 0 ORDER BY position`, exportID)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: query export rows %s", exportID)
	}
	defer rows.Close() //nolint:errcheck

	out := []model.Row{}
	for rows.Next() {
		r, err := scanRow(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan export row")
		}
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate export rows")
}
