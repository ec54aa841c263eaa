package store

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/silver-economy/internal/db"
	"github.com/sells-group/silver-economy/internal/model"
)

// pgSchema holds the export tables in Postgres.
const pgSchema = "silver"

// PostgresStore implements Store using pgxpool. Export rows are written
// with COPY.
type PostgresStore struct {
	pool db.Pool
}

// NewPostgres connects a pool and pings it.
func NewPostgres(ctx context.Context, connString string) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}
	pgxCfg.MaxConns = 4
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return NewPostgresWithPool(pool), nil
}

// NewPostgresWithPool wraps an existing pool.
func NewPostgresWithPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE SCHEMA IF NOT EXISTS silver;

CREATE TABLE IF NOT EXISTS silver.exports (
	id          TEXT PRIMARY KEY,
	snapshot_id TEXT NOT NULL,
	source      TEXT NOT NULL,
	view        TEXT NOT NULL,
	region      TEXT NOT NULL,
	min_income  DOUBLE PRECISION NOT NULL DEFAULT 0,
	title       TEXT NOT NULL,
	roles       JSONB NOT NULL,
	row_count   INTEGER NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS silver.export_rows (
	export_id              TEXT NOT NULL REFERENCES silver.exports(id) ON DELETE CASCADE,
	position               INTEGER NOT NULL,
	name                   TEXT NOT NULL,
	display_name           TEXT NOT NULL,
	region                 TEXT NOT NULL,
	aging_index            DOUBLE PRECISION,
	income_60plus          DOUBLE PRECISION,
	childless_couple_ratio DOUBLE PRECISION,
	latitude               DOUBLE PRECISION,
	longitude              DOUBLE PRECISION,
	composite_score        DOUBLE PRECISION,
	segment                TEXT NOT NULL DEFAULT '',
	featured               BOOLEAN NOT NULL DEFAULT false,
	PRIMARY KEY (export_id, position)
);

CREATE INDEX IF NOT EXISTS idx_exports_created_at ON silver.exports(created_at DESC);
CREATE INDEX IF NOT EXISTS idx_exports_view ON silver.exports(view);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

// SaveTable inserts the export header and COPYs its rows in one transaction.
func (s *PostgresStore) SaveTable(ctx context.Context, meta ExportMeta, table model.Table) (*Export, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	roles, err := marshalRoles(table.Roles)
	if err != nil {
		return nil, err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: begin tx")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	_, err = tx.Exec(ctx,
		`INSERT INTO silver.exports (id, snapshot_id, source, view, region, min_income, title, roles, row_count, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		id, meta.SnapshotID, meta.Source, meta.View, meta.Filter.Region, meta.Filter.MinIncome,
		table.Title, roles, len(table.Rows), now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert export")
	}

	cols := append([]string{"export_id"}, rowColumns...)
	if _, err := db.CopyFromSchema(ctx, tx, pgSchema, "export_rows", cols, tableRows(id, table)); err != nil {
		return nil, eris.Wrap(err, "postgres: copy export rows")
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, eris.Wrap(err, "postgres: commit export")
	}
	return newExport(id, meta, table, now), nil
}

func (s *PostgresStore) ListExports(ctx context.Context, limit int) ([]Export, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, snapshot_id, source, view, region, min_income, title, roles::text, row_count, created_at
		 FROM silver.exports ORDER BY created_at DESC, id LIMIT $1`, listLimit(limit))
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list exports")
	}
	defer rows.Close()

	var out []Export
	for rows.Next() {
		e, err := scanExport(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan export")
		}
		out = append(out, *e)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate exports")
}

func (s *PostgresStore) ExportRows(ctx context.Context, exportID string) ([]model.Row, error) {
	var exists int
	err := s.pool.QueryRow(ctx, `SELECT 1 FROM silver.exports WHERE id = $1`, exportID).Scan(&exists)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "export %s", exportID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get export %s", exportID)
	}

	rows, err := s.pool.Query(ctx,
		`SELECT `+strings.Join(rowColumns, ", ")+`
		 FROM silver.export_rows WHERE export_id = $1 AND position >= 0 ORDER BY position`, exportID)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: query export rows %s", exportID)
	}
	defer rows.Close()

	out := []model.Row{}
	for rows.Next() {
		r, err := scanRow(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan export row")
		}
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate export rows")
}
