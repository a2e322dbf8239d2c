package metering

import "github.com/snt-portal/snt-portal/internal/accounts"

// CanUnlock reports whether a role may force a meter unlock. Only the admin
// and the chairman hold this capability; no other role may alter a locked
// plot's meter number or lock state.
func CanUnlock(role accounts.Role) bool {
	return role == accounts.RoleAdmin || role == accounts.RoleChairman
}
