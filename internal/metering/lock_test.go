package metering

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/snt-portal/snt-portal/internal/accounts"
)

func TestValidateLockTransition(t *testing.T) {
	tests := []struct {
		name    string
		from    LockState
		to      LockState
		allowed bool
	}{
		{"confirm an unlocked meter", LockUnlocked, LockConfirmedPending, true},
		{"submit a confirmed meter", LockConfirmedPending, LockLocked, true},
		{"revise a confirmation", LockConfirmedPending, LockUnlocked, true},
		{"admin unlock", LockLocked, LockUnlocked, true},
		{"repeated state is a no-op", LockLocked, LockLocked, true},
		{"skip confirmation", LockUnlocked, LockLocked, false},
		{"confirm a locked meter", LockLocked, LockConfirmedPending, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateLockTransition(tt.from, tt.to)
			if tt.allowed {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrInvalidLockTransition)
			}
		})
	}
}

func TestCanUnlock(t *testing.T) {
	assert.True(t, CanUnlock(accounts.RoleAdmin))
	assert.True(t, CanUnlock(accounts.RoleChairman))
	assert.False(t, CanUnlock(accounts.RoleBoardMember))
	assert.False(t, CanUnlock(accounts.RoleMember))
	assert.False(t, CanUnlock(accounts.RoleGuest))
}

func TestSortPlots(t *testing.T) {
	plots := []Plot{
		{PlotNumber: "100"},
		{PlotNumber: "12a"},
		{PlotNumber: "2"},
		{PlotNumber: "12"},
	}
	SortPlots(plots)
	got := make([]string, 0, len(plots))
	for _, p := range plots {
		got = append(got, p.PlotNumber)
	}
	assert.Equal(t, []string{"2", "12", "12a", "100"}, got)
}
