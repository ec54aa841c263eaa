package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	return NewPostgresWithPool(mock), mock
}

func TestPostgresStore_Migrate(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`CREATE SCHEMA IF NOT EXISTS silver`).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, s.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SaveTable(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO silver\.exports`).
		WithArgs(pgxmock.AnyArg(), "snap-1", "dados_final_com_uf.csv", "ranking", "ALL", 0.0,
			"Top 2 municipalities by aging index", pgxmock.AnyArg(), 2, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCopyFrom(pgx.Identifier{"silver", "export_rows"}, append([]string{"export_id"}, rowColumns...)).
		WillReturnResult(2)
	mock.ExpectCommit()

	exp, err := s.SaveTable(context.Background(), testMeta(), rankingTable())
	require.NoError(t, err)
	assert.NotEmpty(t, exp.ID)
	assert.Equal(t, 2, exp.RowCount)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SaveTable_CopyFails(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO silver\.exports`).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCopyFrom(pgx.Identifier{"silver", "export_rows"}, append([]string{"export_id"}, rowColumns...)).
		WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	_, err := s.SaveTable(context.Background(), testMeta(), rankingTable())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "copy export rows")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListExports(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	now := time.Now().UTC()

	mock.ExpectQuery(`FROM silver\.exports ORDER BY created_at DESC`).
		WithArgs(DefaultListLimit).
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "snapshot_id", "source", "view", "region", "min_income", "title", "roles", "row_count", "created_at",
		}).AddRow("exp-1", "snap-1", "dados.csv", "composite", "BA", 1500.0, "Top 20 municipalities by silver index",
			`{"category":"display_name","value":"composite_score"}`, 20, now))

	exports, err := s.ListExports(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, exports, 1)
	assert.Equal(t, "exp-1", exports[0].ID)
	assert.Equal(t, "BA", exports[0].Filter.Region)
	assert.InDelta(t, 1500, exports[0].Filter.MinIncome, 1e-9)
	assert.Equal(t, "composite_score", exports[0].Roles.Value)
	assert.Equal(t, 20, exports[0].RowCount)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ExportRows_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT 1 FROM silver\.exports WHERE id = \$1`).
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.ExportRows(context.Background(), "missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "export not found")
	assert.NoError(t, mock.ExpectationsWereMet())
}
