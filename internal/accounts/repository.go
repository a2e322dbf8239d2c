package accounts

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/snt-portal/snt-portal/internal/platform/db"
	"github.com/snt-portal/snt-portal/internal/shared"
)

// Repository defines persistence operations for accounts.
type Repository interface {
	Create(ctx context.Context, acc Account) (Account, error)
	Get(ctx context.Context, id int64) (Account, error)
	FindByEmail(ctx context.Context, email string) (Account, error)
	List(ctx context.Context, status string) ([]Account, error)
	UpdateStatus(ctx context.Context, id int64, status string, role Role) error
	SetMeterMirror(ctx context.Context, plotNumber, meterNumber string) error
	ListActiveEmails(ctx context.Context) ([]string, error)
	ListPlotEmails(ctx context.Context, plotNumber string) ([]string, error)
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const accountColumns = `id, email, name, password_hash, role, status, plot_number, meter_number, created_at, updated_at`

func scanAccount(row pgx.Row) (Account, error) {
	var acc Account
	err := row.Scan(&acc.ID, &acc.Email, &acc.Name, &acc.PasswordHash, &acc.Role, &acc.Status, &acc.PlotNumber, &acc.MeterNumber, &acc.CreatedAt, &acc.UpdatedAt)
	return acc, err
}

// Create inserts a new account record.
func (r *PGRepository) Create(ctx context.Context, acc Account) (Account, error) {
	now := time.Now().UTC()
	row := r.pool.QueryRow(ctx, `
		INSERT INTO accounts (email, name, password_hash, role, status, plot_number, meter_number, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)
		RETURNING `+accountColumns,
		acc.Email, acc.Name, acc.PasswordHash, acc.Role, acc.Status, acc.PlotNumber, acc.MeterNumber, now)
	created, err := scanAccount(row)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return Account{}, ErrEmailTaken
		}
		return Account{}, err
	}
	return created, nil
}

// Get fetches an account by ID.
func (r *PGRepository) Get(ctx context.Context, id int64) (Account, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id)
	acc, err := scanAccount(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, shared.ErrNotFound
		}
		return Account{}, err
	}
	return acc, nil
}

// FindByEmail fetches an account by its email identity.
func (r *PGRepository) FindByEmail(ctx context.Context, email string) (Account, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE email = $1`, email)
	acc, err := scanAccount(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, shared.ErrNotFound
		}
		return Account{}, err
	}
	return acc, nil
}

// List returns accounts, optionally filtered by status, newest first.
func (r *PGRepository) List(ctx context.Context, status string) ([]Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts`
	args := []any{}
	if status != "" {
		query += ` WHERE status = $1`
		args = append(args, status)
	}
	query += ` ORDER BY created_at DESC`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Account
	for rows.Next() {
		acc, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, acc)
	}
	return out, rows.Err()
}

// UpdateStatus sets a new membership status and role.
func (r *PGRepository) UpdateStatus(ctx context.Context, id int64, status string, role Role) error {
	tag, err := r.pool.Exec(ctx, `UPDATE accounts SET status = $1, role = $2, updated_at = $3 WHERE id = $4`,
		status, role, time.Now().UTC(), id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// SetMeterMirror updates the denormalized meter number for every account on a plot.
func (r *PGRepository) SetMeterMirror(ctx context.Context, plotNumber, meterNumber string) error {
	_, err := r.pool.Exec(ctx, `UPDATE accounts SET meter_number = $1, updated_at = $2 WHERE plot_number = $3`,
		meterNumber, time.Now().UTC(), plotNumber)
	return err
}

// ListActiveEmails returns the email addresses of every active account.
func (r *PGRepository) ListActiveEmails(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT email FROM accounts WHERE status = $1 ORDER BY email`, StatusActive)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var emails []string
	for rows.Next() {
		var email string
		if err := rows.Scan(&email); err != nil {
			return nil, err
		}
		emails = append(emails, email)
	}
	return emails, rows.Err()
}

// ListPlotEmails returns the email addresses of every active account on a plot.
func (r *PGRepository) ListPlotEmails(ctx context.Context, plotNumber string) ([]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT email FROM accounts WHERE status = $1 AND plot_number = $2 ORDER BY email`, StatusActive, plotNumber)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var emails []string
	for rows.Next() {
		var email string
		if err := rows.Scan(&email); err != nil {
			return nil, err
		}
		emails = append(emails, email)
	}
	return emails, rows.Err()
}

var _ Repository = (*PGRepository)(nil)
