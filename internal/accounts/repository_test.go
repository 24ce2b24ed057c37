package accounts

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var accountRowColumns = []string{"id", "holder_name", "tax_id", "email", "created_at", "updated_at", "active", "deleted_at"}

func newRepoWithMock(t *testing.T) (*repository, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		mock.Close()
	})
	return &repository{db: mock}, mock
}

func timestamptz(t time.Time) pgtype.Timestamptz {
	return pgtype.Timestamptz{Time: t, Valid: true}
}

func TestRepositoryGetScansNullColumns(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	id := uuid.New()
	created := time.Date(2024, 3, 1, 9, 30, 0, 0, time.FixedZone("BRT", -3*60*60))

	mock.ExpectQuery(`(?s)^SELECT\s+id,\s+holder_name.*FROM\s+accounts\s+WHERE\s+id\s+=\s+\$1$`).
		WithArgs(id).
		WillReturnRows(mock.NewRows(accountRowColumns).
			AddRow(id, "Alice", "11111111111", pgtype.Text{}, timestamptz(created), pgtype.Timestamptz{}, true, pgtype.Timestamptz{}))

	got, err := repo.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, id, got.ID)
	assert.Equal(t, "Alice", got.HolderName)
	assert.Empty(t, got.Email)
	assert.Equal(t, created.UTC(), got.CreatedAt)
	assert.Equal(t, time.UTC, got.CreatedAt.Location())
	assert.Nil(t, got.UpdatedAt)
	assert.Nil(t, got.DeletedAt)
	assert.True(t, got.Active)
}

func TestRepositoryGetMissingIsNotFound(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	id := uuid.New()

	mock.ExpectQuery(`(?s)^SELECT.*FROM\s+accounts\s+WHERE\s+id\s+=\s+\$1$`).
		WithArgs(id).
		WillReturnError(pgx.ErrNoRows)

	_, err := repo.Get(context.Background(), id)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRepositoryGetByTaxIDPicksOldest(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	id := uuid.New()
	created := time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC)
	updated := created.Add(time.Hour)

	mock.ExpectQuery(`(?s)^SELECT.*WHERE\s+tax_id\s+=\s+\$1\s+ORDER\s+BY\s+created_at,\s+id\s+LIMIT\s+1$`).
		WithArgs("11111111111").
		WillReturnRows(mock.NewRows(accountRowColumns).
			AddRow(id, "Alice", "11111111111", pgtype.Text{String: "alice@example.com", Valid: true}, timestamptz(created), timestamptz(updated), false, pgtype.Timestamptz{}))

	got, err := repo.GetByTaxID(context.Background(), "11111111111")
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", got.Email)
	require.NotNil(t, got.UpdatedAt)
	assert.Equal(t, updated, *got.UpdatedAt)
}

func TestRepositoryListOrdersByCreation(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	first, second := uuid.New(), uuid.New()
	deleted := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`(?s)^SELECT.*FROM\s+accounts\s+ORDER\s+BY\s+created_at,\s+id$`).
		WillReturnRows(mock.NewRows(accountRowColumns).
			AddRow(first, "Alice", "1", pgtype.Text{}, timestamptz(deleted.AddDate(-1, 0, 0)), pgtype.Timestamptz{}, true, pgtype.Timestamptz{}).
			AddRow(second, "Bruno", "2", pgtype.Text{}, timestamptz(deleted.AddDate(0, -1, 0)), pgtype.Timestamptz{}, false, timestamptz(deleted)))

	list, err := repo.List(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, first, list[0].ID)
	assert.Equal(t, second, list[1].ID)
	require.NotNil(t, list[1].DeletedAt)
	assert.Equal(t, deleted, *list[1].DeletedAt)
}

func TestRepositoryListWrapsQueryErrors(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(`(?s)^SELECT.*WHERE\s+active\s+=\s+\$1`).
		WithArgs(true).
		WillReturnError(errors.New("connection reset"))

	_, err := repo.ListByStatus(context.Background(), true)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "query accounts")
	assert.NotErrorIs(t, err, ErrNotFound)
}

func TestRepositoryExists(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	id := uuid.New()

	mock.ExpectQuery(`(?s)^SELECT\s+EXISTS\s+\(SELECT\s+1\s+FROM\s+accounts\s+WHERE\s+id\s+=\s+\$1\)$`).
		WithArgs(id).
		WillReturnRows(mock.NewRows([]string{"exists"}).AddRow(false))

	exists, err := repo.Exists(context.Background(), id)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestRepositoryCountByStatus(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(`(?s)COUNT\(\*\)\s+FILTER\s+\(WHERE\s+active\),\s+COUNT\(\*\)\s+FILTER\s+\(WHERE\s+NOT\s+active\)`).
		WillReturnRows(mock.NewRows([]string{"active", "inactive"}).AddRow(3, 2))

	summary, err := repo.CountByStatus(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StatusSummary{ActiveCount: 3, InactiveCount: 2, TotalCount: 5}, summary)
}

func TestRepositoryTotalsByYearFiltersUTCYears(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(`(?s)EXTRACT\(YEAR\s+FROM\s+created_at\s+AT\s+TIME\s+ZONE\s+'UTC'\)::int\s+=\s+ANY\(\$1\)\s+GROUP\s+BY\s+year\s+ORDER\s+BY\s+year$`).
		WithArgs([]int32{2023, 2024}).
		WillReturnRows(mock.NewRows([]string{"year", "count"}).AddRow(2023, 4).AddRow(2024, 1))

	totals, err := repo.TotalsByYear(context.Background(), []int{2023, 2024})
	require.NoError(t, err)
	assert.Equal(t, []YearlyTotal{{Year: 2023, Count: 4}, {Year: 2024, Count: 1}}, totals)
}

func TestRepositoryCreateSendsNullEmail(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	a := Account{ID: uuid.New(), HolderName: "Alice", TaxID: "11111111111", CreatedAt: fixedNow, Active: true}

	mock.ExpectExec(`(?s)^INSERT\s+INTO\s+accounts\s+\(id,\s+holder_name.*VALUES\s+\(\$1,\s+\$2,\s+\$3,\s+\$4,\s+\$5,\s+\$6,\s+\$7,\s+\$8\)$`).
		WithArgs(a.ID, "Alice", "11111111111", pgtype.Text{}, fixedNow, a.UpdatedAt, true, a.DeletedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, repo.Create(context.Background(), a))
}

func TestRepositoryUpdate(t *testing.T) {
	now := fixedNow
	a := Account{ID: uuid.New(), HolderName: "Alice", TaxID: "11111111111", Email: "alice@example.com", UpdatedAt: &now}
	const update = `(?s)^UPDATE\s+accounts\s+SET\s+holder_name\s+=\s+\$2,.*WHERE\s+id\s+=\s+\$1$`

	t.Run("written", func(t *testing.T) {
		repo, mock := newRepoWithMock(t)
		mock.ExpectExec(update).
			WithArgs(a.ID, "Alice", "11111111111", pgtype.Text{String: "alice@example.com", Valid: true}, a.UpdatedAt, false, a.DeletedAt).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))

		require.NoError(t, repo.Update(context.Background(), a))
	})

	t.Run("no row written", func(t *testing.T) {
		repo, mock := newRepoWithMock(t)
		mock.ExpectExec(update).
			WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))

		assert.ErrorIs(t, repo.Update(context.Background(), a), ErrConcurrencyConflict)
	})
}

func TestRepositoryDelete(t *testing.T) {
	const del = `^DELETE\s+FROM\s+accounts\s+WHERE\s+id\s+=\s+\$1$`

	t.Run("removed", func(t *testing.T) {
		repo, mock := newRepoWithMock(t)
		id := uuid.New()
		mock.ExpectExec(del).WithArgs(id).WillReturnResult(pgxmock.NewResult("DELETE", 1))

		require.NoError(t, repo.Delete(context.Background(), id))
	})

	t.Run("missing", func(t *testing.T) {
		repo, mock := newRepoWithMock(t)
		id := uuid.New()
		mock.ExpectExec(del).WithArgs(id).WillReturnResult(pgxmock.NewResult("DELETE", 0))

		assert.ErrorIs(t, repo.Delete(context.Background(), id), ErrNotFound)
	})
}
