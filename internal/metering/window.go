package metering

import "time"

// Submission window bounds, inclusive day-of-month.
const (
	windowOpenDay  = 22
	windowCloseDay = 25
)

// IsSubmissionOpen reports whether readings may be recorded at t. The window
// is the 22nd through the 25th of every month, in the submission's local time.
func IsSubmissionOpen(t time.Time) bool {
	day := t.Day()
	return day >= windowOpenDay && day <= windowCloseDay
}

// NextWindowOpen returns the opening instant of the current month's window
// while it is still reachable, otherwise next month's. Used for member-facing
// messages only.
func NextWindowOpen(t time.Time) time.Time {
	year, month, day := t.Date()
	if day <= windowCloseDay {
		return time.Date(year, month, windowOpenDay, 0, 0, 0, 0, t.Location())
	}
	return time.Date(year, month+1, windowOpenDay, 0, 0, 0, 0, t.Location())
}
