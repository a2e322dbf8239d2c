package voting

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/snt-portal/snt-portal/internal/accounts"
	"github.com/snt-portal/snt-portal/internal/shared"
)

type mockRepository struct {
	polls   map[int64]*Poll
	ballots []Ballot
	nextID  int64
}

func newMockRepository() *mockRepository {
	return &mockRepository{polls: make(map[int64]*Poll), nextID: 1}
}

func (m *mockRepository) CreatePoll(ctx context.Context, poll Poll) (Poll, error) {
	poll.ID = m.nextID
	poll.CreatedAt = time.Now()
	m.nextID++
	stored := poll
	m.polls[poll.ID] = &stored
	return stored, nil
}

func (m *mockRepository) GetPoll(ctx context.Context, id int64) (Poll, error) {
	p, ok := m.polls[id]
	if !ok {
		return Poll{}, ErrPollNotFound
	}
	return *p, nil
}

func (m *mockRepository) ListPolls(ctx context.Context) ([]Poll, error) {
	var out []Poll
	for _, p := range m.polls {
		out = append(out, *p)
	}
	return out, nil
}

func (m *mockRepository) CastBallot(ctx context.Context, ballot Ballot) error {
	for _, b := range m.ballots {
		if b.PollID == ballot.PollID && b.AccountID == ballot.AccountID {
			return ErrAlreadyVoted
		}
	}
	m.ballots = append(m.ballots, ballot)
	return nil
}

func (m *mockRepository) TallyPoll(ctx context.Context, pollID int64) ([]Tally, error) {
	counts := map[string]int64{}
	for _, b := range m.ballots {
		if b.PollID == pollID {
			counts[b.Option]++
		}
	}
	var out []Tally
	for option, votes := range counts {
		out = append(out, Tally{Option: option, Votes: votes})
	}
	return out, nil
}

func (m *mockRepository) HasVoted(ctx context.Context, pollID, accountID int64) (bool, error) {
	for _, b := range m.ballots {
		if b.PollID == pollID && b.AccountID == accountID {
			return true, nil
		}
	}
	return false, nil
}

var _ Repository = (*mockRepository)(nil)

var (
	boardActor  = accounts.Actor{ID: 1, Role: accounts.RoleBoardMember}
	memberActor = accounts.Actor{ID: 7, Role: accounts.RoleMember}
)

func newTestService(now time.Time) (*Service, *mockRepository) {
	repo := newMockRepository()
	svc := NewService(repo, slog.Default()).WithClock(func() time.Time { return now })
	return svc, repo
}

func openPoll(t *testing.T, svc *Service, now time.Time) Poll {
	t.Helper()
	poll, err := svc.CreatePoll(context.Background(), boardActor, CreatePollInput{
		Question: "Repaint the main gate?",
		Options:  []string{"yes", "no"},
		OpensAt:  now.Add(-time.Hour),
		ClosesAt: now.Add(time.Hour),
	})
	require.NoError(t, err)
	return poll
}

func TestCreatePollForbiddenForMembers(t *testing.T) {
	svc, _ := newTestService(time.Now())
	_, err := svc.CreatePoll(context.Background(), memberActor, CreatePollInput{
		Question: "Repaint the main gate?",
		Options:  []string{"yes", "no"},
		OpensAt:  time.Now(),
		ClosesAt: time.Now().Add(time.Hour),
	})
	assert.ErrorIs(t, err, shared.ErrForbidden)
}

func TestVote(t *testing.T) {
	now := time.Now()
	svc, repo := newTestService(now)
	ctx := context.Background()
	poll := openPoll(t, svc, now)

	require.NoError(t, svc.Vote(ctx, memberActor, poll.ID, "yes"))
	require.Len(t, repo.ballots, 1)

	// One ballot per account.
	err := svc.Vote(ctx, memberActor, poll.ID, "no")
	assert.ErrorIs(t, err, ErrAlreadyVoted)

	// Unknown options are rejected before any write.
	other := accounts.Actor{ID: 8, Role: accounts.RoleMember}
	err = svc.Vote(ctx, other, poll.ID, "maybe")
	assert.ErrorIs(t, err, ErrUnknownOption)

	err = svc.Vote(ctx, other, 404, "yes")
	assert.ErrorIs(t, err, ErrPollNotFound)
}

func TestVoteOutsideInterval(t *testing.T) {
	now := time.Now()
	svc, _ := newTestService(now)
	ctx := context.Background()
	poll := openPoll(t, svc, now)

	svc.WithClock(func() time.Time { return now.Add(2 * time.Hour) })
	assert.ErrorIs(t, svc.Vote(ctx, memberActor, poll.ID, "yes"), ErrPollClosed)

	svc.WithClock(func() time.Time { return now.Add(-2 * time.Hour) })
	assert.ErrorIs(t, svc.Vote(ctx, memberActor, poll.ID, "yes"), ErrPollClosed)
}

func TestResults(t *testing.T) {
	now := time.Now()
	svc, _ := newTestService(now)
	ctx := context.Background()
	poll := openPoll(t, svc, now)

	require.NoError(t, svc.Vote(ctx, memberActor, poll.ID, "yes"))
	require.NoError(t, svc.Vote(ctx, accounts.Actor{ID: 8, Role: accounts.RoleMember}, poll.ID, "yes"))
	require.NoError(t, svc.Vote(ctx, accounts.Actor{ID: 9, Role: accounts.RoleMember}, poll.ID, "no"))

	result, err := svc.Results(ctx, memberActor, poll.ID)
	require.NoError(t, err)
	assert.True(t, result.Voted)

	counts := map[string]int64{}
	for _, tally := range result.Tallies {
		counts[tally.Option] = tally.Votes
	}
	assert.Equal(t, int64(2), counts["yes"])
	assert.Equal(t, int64(1), counts["no"])
}
