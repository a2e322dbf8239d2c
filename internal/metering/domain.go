// Package metering implements the meter reading workflow: one meter number per
// plot, a monthly submission window, a per-plot lock that fixes the meter
// number after the first accepted reading, and an append-only reading ledger.
package metering

import (
	"errors"
	"time"
)

// LockState describes whether a plot's meter number may still be edited.
type LockState string

const (
	// LockUnlocked means no meter number has been fixed for the plot.
	LockUnlocked LockState = "UNLOCKED"
	// LockConfirmedPending means a member has confirmed a candidate meter
	// number in their session but has not submitted a reading yet. This
	// state is never persisted; it is derived from the confirmation store.
	LockConfirmedPending LockState = "CONFIRMED_PENDING"
	// LockLocked means the meter number is fixed until an administrative unlock.
	LockLocked LockState = "LOCKED"
)

var (
	// ErrWindowClosed indicates a submission outside the monthly window.
	ErrWindowClosed = errors.New("metering: submission window closed")
	// ErrDuplicateSubmission indicates a reading already exists for the period.
	ErrDuplicateSubmission = errors.New("metering: reading already submitted for this period")
	// ErrEmptyMeterNumber indicates a confirmation without a meter number.
	ErrEmptyMeterNumber = errors.New("metering: meter number required")
	// ErrEmptyReadingValue indicates a submission without a reading value.
	ErrEmptyReadingValue = errors.New("metering: reading value required")
	// ErrNegativeReadingValue indicates a reading below zero.
	ErrNegativeReadingValue = errors.New("metering: reading value must not be negative")
	// ErrUnlockForbidden indicates an unlock by an insufficient role.
	ErrUnlockForbidden = errors.New("metering: only admin or chairman may unlock a meter")
	// ErrMeterNotConfirmed indicates a submission without a confirmed candidate.
	ErrMeterNotConfirmed = errors.New("metering: meter number has not been confirmed")
	// ErrInvalidLockTransition indicates a lock state change not allowed.
	ErrInvalidLockTransition = errors.New("metering: lock transition invalid")
)

// Plot is the unit a single electricity meter is assigned to. All accounts
// attached to a plot observe the same meter number and lock state.
type Plot struct {
	PlotNumber  string
	MeterNumber string
	LockState   LockState
	Members     []int64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// MeterReading is one immutable ledger row: at most one exists per plot and
// period key.
type MeterReading struct {
	ID          int64
	PlotNumber  string
	MeterNumber string
	Value       float64
	SubmittedBy int64
	SubmittedAt time.Time
	PeriodKey   string
}

// PeriodKeyFor derives the year-month ledger key for a submission time.
func PeriodKeyFor(t time.Time) string {
	return t.UTC().Format("2006-01")
}
