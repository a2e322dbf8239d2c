package voting

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/snt-portal/snt-portal/internal/platform/db"
)

// Repository abstracts poll and ballot persistence.
type Repository interface {
	CreatePoll(ctx context.Context, poll Poll) (Poll, error)
	GetPoll(ctx context.Context, id int64) (Poll, error)
	ListPolls(ctx context.Context) ([]Poll, error)
	CastBallot(ctx context.Context, ballot Ballot) error
	TallyPoll(ctx context.Context, pollID int64) ([]Tally, error)
	HasVoted(ctx context.Context, pollID, accountID int64) (bool, error)
}

// PGRepository is the PostgreSQL implementation of Repository.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewPGRepository builds a PGRepository.
func NewPGRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// CreatePoll inserts a poll and returns it with generated fields.
func (r *PGRepository) CreatePoll(ctx context.Context, poll Poll) (Poll, error) {
	const q = `
		INSERT INTO polls (question, options, opens_at, closes_at, created_by)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`
	err := r.pool.QueryRow(ctx, q,
		poll.Question, poll.Options, poll.OpensAt, poll.ClosesAt, poll.CreatedBy,
	).Scan(&poll.ID, &poll.CreatedAt)
	if err != nil {
		return Poll{}, fmt.Errorf("create poll: %w", err)
	}
	return poll, nil
}

// GetPoll loads a single poll.
func (r *PGRepository) GetPoll(ctx context.Context, id int64) (Poll, error) {
	const q = `
		SELECT id, question, options, opens_at, closes_at, created_by, created_at
		FROM polls WHERE id = $1`
	var poll Poll
	err := r.pool.QueryRow(ctx, q, id).Scan(
		&poll.ID, &poll.Question, &poll.Options,
		&poll.OpensAt, &poll.ClosesAt, &poll.CreatedBy, &poll.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return Poll{}, ErrPollNotFound
	}
	if err != nil {
		return Poll{}, fmt.Errorf("get poll: %w", err)
	}
	return poll, nil
}

// ListPolls returns all polls, newest first.
func (r *PGRepository) ListPolls(ctx context.Context) ([]Poll, error) {
	const q = `
		SELECT id, question, options, opens_at, closes_at, created_by, created_at
		FROM polls ORDER BY created_at DESC`
	rows, err := r.pool.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list polls: %w", err)
	}
	defer rows.Close()

	var polls []Poll
	for rows.Next() {
		var poll Poll
		if err := rows.Scan(
			&poll.ID, &poll.Question, &poll.Options,
			&poll.OpensAt, &poll.ClosesAt, &poll.CreatedBy, &poll.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan poll: %w", err)
		}
		polls = append(polls, poll)
	}
	return polls, rows.Err()
}

// CastBallot inserts a ballot. The unique index on (poll_id, account_id)
// makes the one-ballot rule atomic.
func (r *PGRepository) CastBallot(ctx context.Context, ballot Ballot) error {
	const q = `
		INSERT INTO ballots (poll_id, account_id, option, cast_at)
		VALUES ($1, $2, $3, $4)`
	_, err := r.pool.Exec(ctx, q, ballot.PollID, ballot.AccountID, ballot.Option, ballot.CastAt)
	if db.IsUniqueViolation(err) {
		return ErrAlreadyVoted
	}
	if err != nil {
		return fmt.Errorf("cast ballot: %w", err)
	}
	return nil
}

// TallyPoll counts ballots per option.
func (r *PGRepository) TallyPoll(ctx context.Context, pollID int64) ([]Tally, error) {
	const q = `
		SELECT option, COUNT(*) FROM ballots
		WHERE poll_id = $1
		GROUP BY option
		ORDER BY option`
	rows, err := r.pool.Query(ctx, q, pollID)
	if err != nil {
		return nil, fmt.Errorf("tally poll: %w", err)
	}
	defer rows.Close()

	var tallies []Tally
	for rows.Next() {
		var t Tally
		if err := rows.Scan(&t.Option, &t.Votes); err != nil {
			return nil, fmt.Errorf("scan tally: %w", err)
		}
		tallies = append(tallies, t)
	}
	return tallies, rows.Err()
}

// HasVoted reports whether the account already holds a ballot in the poll.
func (r *PGRepository) HasVoted(ctx context.Context, pollID, accountID int64) (bool, error) {
	const q = `SELECT EXISTS (SELECT 1 FROM ballots WHERE poll_id = $1 AND account_id = $2)`
	var exists bool
	if err := r.pool.QueryRow(ctx, q, pollID, accountID).Scan(&exists); err != nil {
		return false, fmt.Errorf("has voted: %w", err)
	}
	return exists, nil
}
