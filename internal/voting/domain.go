package voting

import (
	"errors"
	"time"
)

var (
	// ErrPollClosed indicates a ballot cast outside the poll's open interval.
	ErrPollClosed = errors.New("voting: poll is closed")
	// ErrAlreadyVoted indicates a second ballot by the same account.
	ErrAlreadyVoted = errors.New("voting: account already voted")
	// ErrUnknownOption indicates a ballot for an option the poll does not have.
	ErrUnknownOption = errors.New("voting: unknown option")
	// ErrPollNotFound indicates an unknown poll id.
	ErrPollNotFound = errors.New("voting: poll not found")
)

// Poll is a board-created question with a fixed option list and an open
// interval during which members may cast one ballot each.
type Poll struct {
	ID        int64
	Question  string
	Options   []string
	OpensAt   time.Time
	ClosesAt  time.Time
	CreatedBy int64
	CreatedAt time.Time
}

// IsOpen reports whether ballots are accepted at the given instant.
func (p Poll) IsOpen(at time.Time) bool {
	return !at.Before(p.OpensAt) && at.Before(p.ClosesAt)
}

// HasOption reports whether the option belongs to the poll.
func (p Poll) HasOption(option string) bool {
	for _, o := range p.Options {
		if o == option {
			return true
		}
	}
	return false
}

// Ballot is a single vote. One per account per poll.
type Ballot struct {
	PollID    int64
	AccountID int64
	Option    string
	CastAt    time.Time
}

// Tally is the per-option vote count for a poll.
type Tally struct {
	Option string `json:"option"`
	Votes  int64  `json:"votes"`
}
