package accounts

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/krt-cliente/contas/internal/platform/db"
)

// Repository is the account record store. Get and GetByTaxID return
// ErrNotFound for missing rows; Update returns ErrConcurrencyConflict when no
// row was written.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, Repository) error) error
	List(ctx context.Context) ([]Account, error)
	Get(ctx context.Context, id uuid.UUID) (Account, error)
	GetByTaxID(ctx context.Context, taxID string) (Account, error)
	Exists(ctx context.Context, id uuid.UUID) (bool, error)
	ListByStatus(ctx context.Context, active bool) ([]Account, error)
	ListCreatedBetween(ctx context.Context, start, end time.Time) ([]Account, error)
	ListDeleted(ctx context.Context) ([]Account, error)
	CountByStatus(ctx context.Context) (StatusSummary, error)
	TotalsByYear(ctx context.Context, years []int) ([]YearlyTotal, error)
	Create(ctx context.Context, account Account) error
	Update(ctx context.Context, account Account) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type dbtx interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

type repository struct {
	db   dbtx
	pool *pgxpool.Pool
}

// NewRepository builds the PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{db: pool, pool: pool}
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, Repository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &repository{db: tx, pool: r.pool})
	})
}

const accountColumns = `id, holder_name, tax_id, email, created_at, updated_at, active, deleted_at`

func (r *repository) List(ctx context.Context) ([]Account, error) {
	return r.query(ctx, `SELECT `+accountColumns+` FROM accounts ORDER BY created_at, id`)
}

func (r *repository) Get(ctx context.Context, id uuid.UUID) (Account, error) {
	row := r.db.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id)
	return scanOne(row)
}

// GetByTaxID returns the oldest account with the tax id; tax ids are not
// unique.
func (r *repository) GetByTaxID(ctx context.Context, taxID string) (Account, error) {
	row := r.db.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE tax_id = $1 ORDER BY created_at, id LIMIT 1`, taxID)
	return scanOne(row)
}

func (r *repository) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	var exists bool
	if err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM accounts WHERE id = $1)`, id).Scan(&exists); err != nil {
		return false, fmt.Errorf("account exists: %w", err)
	}
	return exists, nil
}

func (r *repository) ListByStatus(ctx context.Context, active bool) ([]Account, error) {
	return r.query(ctx, `SELECT `+accountColumns+` FROM accounts WHERE active = $1 ORDER BY created_at, id`, active)
}

func (r *repository) ListCreatedBetween(ctx context.Context, start, end time.Time) ([]Account, error) {
	return r.query(ctx, `SELECT `+accountColumns+` FROM accounts WHERE created_at >= $1 AND created_at <= $2 ORDER BY created_at, id`, start, end)
}

func (r *repository) ListDeleted(ctx context.Context) ([]Account, error) {
	return r.query(ctx, `SELECT `+accountColumns+` FROM accounts WHERE deleted_at IS NOT NULL ORDER BY deleted_at, id`)
}

func (r *repository) CountByStatus(ctx context.Context) (StatusSummary, error) {
	var summary StatusSummary
	err := r.db.QueryRow(ctx, `
		SELECT COUNT(*) FILTER (WHERE active), COUNT(*) FILTER (WHERE NOT active)
		FROM accounts`).Scan(&summary.ActiveCount, &summary.InactiveCount)
	if err != nil {
		return StatusSummary{}, fmt.Errorf("count accounts by status: %w", err)
	}
	summary.TotalCount = summary.ActiveCount + summary.InactiveCount
	return summary, nil
}

func (r *repository) TotalsByYear(ctx context.Context, years []int) ([]YearlyTotal, error) {
	filter := make([]int32, len(years))
	for i, y := range years {
		filter[i] = int32(y)
	}
	rows, err := r.db.Query(ctx, `
		SELECT EXTRACT(YEAR FROM created_at AT TIME ZONE 'UTC')::int AS year, COUNT(*)
		FROM accounts
		WHERE EXTRACT(YEAR FROM created_at AT TIME ZONE 'UTC')::int = ANY($1)
		GROUP BY year
		ORDER BY year`, filter)
	if err != nil {
		return nil, fmt.Errorf("totals by year: %w", err)
	}
	defer rows.Close()

	var totals []YearlyTotal
	for rows.Next() {
		var t YearlyTotal
		if err := rows.Scan(&t.Year, &t.Count); err != nil {
			return nil, fmt.Errorf("scan yearly total: %w", err)
		}
		totals = append(totals, t)
	}
	return totals, rows.Err()
}

func (r *repository) Create(ctx context.Context, a Account) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO accounts (id, holder_name, tax_id, email, created_at, updated_at, active, deleted_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		a.ID, a.HolderName, a.TaxID, nullableText(a.Email), a.CreatedAt, a.UpdatedAt, a.Active, a.DeletedAt)
	if err != nil {
		return fmt.Errorf("insert account: %w", err)
	}
	return nil
}

// Update writes every mutable column. created_at is never touched.
func (r *repository) Update(ctx context.Context, a Account) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE accounts
		SET holder_name = $2, tax_id = $3, email = $4, updated_at = $5, active = $6, deleted_at = $7
		WHERE id = $1`,
		a.ID, a.HolderName, a.TaxID, nullableText(a.Email), a.UpdatedAt, a.Active, a.DeletedAt)
	if err != nil {
		return fmt.Errorf("update account: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrConcurrencyConflict
	}
	return nil
}

func (r *repository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM accounts WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete account: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repository) query(ctx context.Context, sql string, args ...interface{}) ([]Account, error) {
	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query accounts: %w", err)
	}
	defer rows.Close()

	var list []Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, a)
	}
	return list, rows.Err()
}

func scanOne(row pgx.Row) (Account, error) {
	a, err := scanAccount(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Account{}, ErrNotFound
	}
	return a, err
}

func scanAccount(row pgx.Row) (Account, error) {
	var (
		a         Account
		email     pgtype.Text
		createdAt pgtype.Timestamptz
		updatedAt pgtype.Timestamptz
		deletedAt pgtype.Timestamptz
	)
	if err := row.Scan(&a.ID, &a.HolderName, &a.TaxID, &email, &createdAt, &updatedAt, &a.Active, &deletedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, err
		}
		return Account{}, fmt.Errorf("scan account: %w", err)
	}
	if email.Valid {
		a.Email = email.String
	}
	a.CreatedAt = createdAt.Time.UTC()
	a.UpdatedAt = timePtr(updatedAt)
	a.DeletedAt = timePtr(deletedAt)
	return a, nil
}

func timePtr(ts pgtype.Timestamptz) *time.Time {
	if !ts.Valid {
		return nil
	}
	t := ts.Time.UTC()
	return &t
}

func nullableText(s string) pgtype.Text {
	return pgtype.Text{String: s, Valid: s != ""}
}
