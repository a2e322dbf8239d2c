package accounts

import (
	"errors"
	"time"
)

// Role is the closed set of portal roles.
type Role string

const (
	RoleGuest       Role = "GUEST"
	RoleMember      Role = "MEMBER"
	RoleBoardMember Role = "BOARD_MEMBER"
	RoleChairman    Role = "CHAIRMAN"
	RoleAdmin       Role = "ADMIN"
)

// Valid reports whether the role is one of the known values.
func (r Role) Valid() bool {
	switch r {
	case RoleGuest, RoleMember, RoleBoardMember, RoleChairman, RoleAdmin:
		return true
	}
	return false
}

// Membership statuses.
const (
	StatusPending  = "PENDING"
	StatusActive   = "ACTIVE"
	StatusRejected = "REJECTED"
)

var (
	// ErrEmailTaken indicates a registration with an already known email.
	ErrEmailTaken = errors.New("accounts: email already registered")
	// ErrInvalidStatusTransition indicates a membership status change not allowed.
	ErrInvalidStatusTransition = errors.New("accounts: status transition invalid")
	// ErrStatusChangeForbidden indicates the actor may not decide memberships.
	ErrStatusChangeForbidden = errors.New("accounts: only admin or chairman may decide membership")
)

// ValidateStatusTransition checks membership transitions according to policy.
// Only Pending accounts may be approved or rejected; a Rejected account may be
// re-reviewed and approved, but an Active account never leaves Active.
func ValidateStatusTransition(current, target string) error {
	if current == target {
		return nil
	}
	switch current {
	case StatusPending:
		if target == StatusActive || target == StatusRejected {
			return nil
		}
	case StatusRejected:
		if target == StatusActive {
			return nil
		}
	}
	return ErrInvalidStatusTransition
}

// Account represents a portal account record.
type Account struct {
	ID           int64
	Email        string
	Name         string
	PasswordHash string
	Role         Role
	Status       string
	PlotNumber   string
	// MeterNumber is a denormalized copy of the plot's meter number kept for
	// dashboard display; the plot registry owns the authoritative value.
	MeterNumber string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// IsActive reports whether the account may log in and act.
func (a Account) IsActive() bool {
	return a.Status == StatusActive
}
