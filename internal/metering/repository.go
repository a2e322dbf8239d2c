package metering

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/snt-portal/snt-portal/internal/platform/db"
	"github.com/snt-portal/snt-portal/internal/shared"
)

// Repository defines persistence operations for plots and the reading ledger.
type Repository interface {
	GetPlot(ctx context.Context, plotNumber string) (Plot, error)
	GetOrCreatePlot(ctx context.Context, plotNumber string) (Plot, error)
	ListPlotsWithMeters(ctx context.Context) ([]Plot, error)
	AttachMember(ctx context.Context, plotNumber string, accountID int64) error
	// SubmitReading appends the ledger row and fixes the plot's meter number
	// and lock in one transaction. Returns ErrDuplicateSubmission when a row
	// for (plot, period) already exists; nothing is written in that case.
	SubmitReading(ctx context.Context, reading MeterReading) (MeterReading, error)
	// ResetLock clears the meter number and returns the plot to Unlocked.
	// Ledger rows are never touched.
	ResetLock(ctx context.Context, plotNumber string) error
	ListReadings(ctx context.Context, plotNumber string) ([]MeterReading, error)
	HasReading(ctx context.Context, plotNumber, periodKey string) (bool, error)
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// Rows come back in plain text order; the service re-sorts with a numeric
// collator so "2" lists before "12".
const plotOrder = `ORDER BY plot_number`

// GetPlot fetches one plot with its attached members.
func (r *PGRepository) GetPlot(ctx context.Context, plotNumber string) (Plot, error) {
	row := r.pool.QueryRow(ctx, `SELECT plot_number, meter_number, lock_state, created_at, updated_at FROM plots WHERE plot_number = $1`, plotNumber)
	plot, err := scanPlot(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Plot{}, shared.ErrNotFound
		}
		return Plot{}, err
	}
	plot.Members, err = r.listMembers(ctx, plotNumber)
	if err != nil {
		return Plot{}, err
	}
	return plot, nil
}

// GetOrCreatePlot fetches a plot, creating an unlocked empty one on first use.
func (r *PGRepository) GetOrCreatePlot(ctx context.Context, plotNumber string) (Plot, error) {
	now := time.Now().UTC()
	_, err := r.pool.Exec(ctx, `
		INSERT INTO plots (plot_number, meter_number, lock_state, created_at, updated_at)
		VALUES ($1, '', $2, $3, $3)
		ON CONFLICT (plot_number) DO NOTHING`,
		plotNumber, LockUnlocked, now)
	if err != nil {
		return Plot{}, err
	}
	return r.GetPlot(ctx, plotNumber)
}

// ListPlotsWithMeters returns plots that currently hold a meter number,
// sorted by numeric plot number ascending.
func (r *PGRepository) ListPlotsWithMeters(ctx context.Context) ([]Plot, error) {
	rows, err := r.pool.Query(ctx, `SELECT plot_number, meter_number, lock_state, created_at, updated_at FROM plots WHERE meter_number <> '' `+plotOrder)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var plots []Plot
	for rows.Next() {
		plot, err := scanPlot(rows)
		if err != nil {
			return nil, err
		}
		plots = append(plots, plot)
	}
	return plots, rows.Err()
}

// AttachMember links an account to a plot, creating the plot if needed.
func (r *PGRepository) AttachMember(ctx context.Context, plotNumber string, accountID int64) error {
	if _, err := r.GetOrCreatePlot(ctx, plotNumber); err != nil {
		return err
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO plot_members (plot_number, account_id, created_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (plot_number, account_id) DO NOTHING`,
		plotNumber, accountID, time.Now().UTC())
	return err
}

// SubmitReading writes the ledger row and locks the plot atomically. The
// unique index on (plot_number, period_key) makes the duplicate check a true
// check-and-set rather than a read-then-write race.
func (r *PGRepository) SubmitReading(ctx context.Context, reading MeterReading) (MeterReading, error) {
	var stored MeterReading
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx, `
			INSERT INTO meter_readings (plot_number, meter_number, value, submitted_by, submitted_at, period_key)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING id, plot_number, meter_number, value, submitted_by, submitted_at, period_key`,
			reading.PlotNumber, reading.MeterNumber, reading.Value, reading.SubmittedBy, reading.SubmittedAt, reading.PeriodKey)
		if err := row.Scan(&stored.ID, &stored.PlotNumber, &stored.MeterNumber, &stored.Value, &stored.SubmittedBy, &stored.SubmittedAt, &stored.PeriodKey); err != nil {
			if db.IsUniqueViolation(err) {
				return ErrDuplicateSubmission
			}
			return err
		}
		_, err := tx.Exec(ctx, `UPDATE plots SET meter_number = $1, lock_state = $2, updated_at = $3 WHERE plot_number = $4`,
			reading.MeterNumber, LockLocked, time.Now().UTC(), reading.PlotNumber)
		return err
	})
	if err != nil {
		return MeterReading{}, err
	}
	return stored, nil
}

// ResetLock clears the meter number and unlocks the plot.
func (r *PGRepository) ResetLock(ctx context.Context, plotNumber string) error {
	tag, err := r.pool.Exec(ctx, `UPDATE plots SET meter_number = '', lock_state = $1, updated_at = $2 WHERE plot_number = $3`,
		LockUnlocked, time.Now().UTC(), plotNumber)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// ListReadings returns the full ledger for a plot, newest first.
func (r *PGRepository) ListReadings(ctx context.Context, plotNumber string) ([]MeterReading, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, plot_number, meter_number, value, submitted_by, submitted_at, period_key
		FROM meter_readings WHERE plot_number = $1 ORDER BY period_key DESC`, plotNumber)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var readings []MeterReading
	for rows.Next() {
		var m MeterReading
		if err := rows.Scan(&m.ID, &m.PlotNumber, &m.MeterNumber, &m.Value, &m.SubmittedBy, &m.SubmittedAt, &m.PeriodKey); err != nil {
			return nil, err
		}
		readings = append(readings, m)
	}
	return readings, rows.Err()
}

// HasReading reports whether the ledger already holds a row for the period.
func (r *PGRepository) HasReading(ctx context.Context, plotNumber, periodKey string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM meter_readings WHERE plot_number = $1 AND period_key = $2)`,
		plotNumber, periodKey).Scan(&exists)
	return exists, err
}

func (r *PGRepository) listMembers(ctx context.Context, plotNumber string) ([]int64, error) {
	rows, err := r.pool.Query(ctx, `SELECT account_id FROM plot_members WHERE plot_number = $1 ORDER BY account_id`, plotNumber)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var members []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		members = append(members, id)
	}
	return members, rows.Err()
}

func scanPlot(row pgx.Row) (Plot, error) {
	var plot Plot
	err := row.Scan(&plot.PlotNumber, &plot.MeterNumber, &plot.LockState, &plot.CreatedAt, &plot.UpdatedAt)
	return plot, err
}

var _ Repository = (*PGRepository)(nil)
