package voting

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/snt-portal/snt-portal/internal/accounts"
	"github.com/snt-portal/snt-portal/internal/shared"
)

// Service handles poll business logic.
type Service struct {
	repo   Repository
	logger *slog.Logger
	clock  func() time.Time
}

// NewService builds a Service instance.
func NewService(repo Repository, logger *slog.Logger) *Service {
	return &Service{repo: repo, logger: logger, clock: time.Now}
}

// WithClock overrides the time source. Used in tests.
func (s *Service) WithClock(clock func() time.Time) *Service {
	s.clock = clock
	return s
}

// CreatePollInput carries the poll creation fields.
type CreatePollInput struct {
	Question string    `json:"question" validate:"required,min=5"`
	Options  []string  `json:"options" validate:"required,min=2,dive,required"`
	OpensAt  time.Time `json:"opens_at" validate:"required"`
	ClosesAt time.Time `json:"closes_at" validate:"required,gtfield=OpensAt"`
}

func canManagePolls(role accounts.Role) bool {
	switch role {
	case accounts.RoleBoardMember, accounts.RoleChairman, accounts.RoleAdmin:
		return true
	}
	return false
}

// CreatePoll opens a new poll. Board roles only.
func (s *Service) CreatePoll(ctx context.Context, actor accounts.Actor, in CreatePollInput) (Poll, error) {
	if !canManagePolls(actor.Role) {
		return Poll{}, shared.ErrForbidden
	}
	options := make([]string, 0, len(in.Options))
	for _, opt := range in.Options {
		opt = strings.TrimSpace(opt)
		if opt != "" {
			options = append(options, opt)
		}
	}
	poll, err := s.repo.CreatePoll(ctx, Poll{
		Question:  strings.TrimSpace(in.Question),
		Options:   options,
		OpensAt:   in.OpensAt,
		ClosesAt:  in.ClosesAt,
		CreatedBy: actor.ID,
	})
	if err != nil {
		return Poll{}, err
	}
	s.logger.Info("poll created",
		slog.Int64("poll_id", poll.ID),
		slog.Int64("created_by", actor.ID))
	return poll, nil
}

// ListPolls returns all polls.
func (s *Service) ListPolls(ctx context.Context) ([]Poll, error) {
	return s.repo.ListPolls(ctx)
}

// GetPoll loads a poll by id.
func (s *Service) GetPoll(ctx context.Context, id int64) (Poll, error) {
	return s.repo.GetPoll(ctx, id)
}

// Vote casts the actor's ballot. A second ballot from the same account is
// rejected, as is any ballot outside the poll's open interval.
func (s *Service) Vote(ctx context.Context, actor accounts.Actor, pollID int64, option string) error {
	poll, err := s.repo.GetPoll(ctx, pollID)
	if err != nil {
		return err
	}
	now := s.clock()
	if !poll.IsOpen(now) {
		return ErrPollClosed
	}
	option = strings.TrimSpace(option)
	if !poll.HasOption(option) {
		return ErrUnknownOption
	}
	if err := s.repo.CastBallot(ctx, Ballot{
		PollID:    pollID,
		AccountID: actor.ID,
		Option:    option,
		CastAt:    now,
	}); err != nil {
		return err
	}
	s.logger.Info("ballot cast", slog.Int64("poll_id", pollID), slog.Int64("account_id", actor.ID))
	return nil
}

// PollResult pairs a poll with its tallies and the caller's participation.
type PollResult struct {
	Poll    Poll    `json:"poll"`
	Tallies []Tally `json:"tallies"`
	Voted   bool    `json:"voted"`
}

// Results loads a poll with its tallies.
func (s *Service) Results(ctx context.Context, actor accounts.Actor, pollID int64) (PollResult, error) {
	poll, err := s.repo.GetPoll(ctx, pollID)
	if err != nil {
		return PollResult{}, err
	}
	tallies, err := s.repo.TallyPoll(ctx, pollID)
	if err != nil {
		return PollResult{}, err
	}
	voted, err := s.repo.HasVoted(ctx, pollID, actor.ID)
	if err != nil {
		return PollResult{}, err
	}
	return PollResult{Poll: poll, Tallies: tallies, Voted: voted}, nil
}
