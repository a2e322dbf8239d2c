package metering

// ValidateLockTransition checks lock state changes according to policy.
// The only cycle is Unlocked -> ConfirmedPending -> Locked -> Unlocked; a
// confirmation may also be revised back to Unlocked before submission. There
// is no direct path from Unlocked to Locked: the confirmation step is a
// deliberate double-entry safeguard, because the lock is otherwise permanent
// until an administrative override.
func ValidateLockTransition(current, target LockState) error {
	if current == target {
		return nil
	}
	switch current {
	case LockUnlocked:
		if target == LockConfirmedPending {
			return nil
		}
	case LockConfirmedPending:
		if target == LockLocked || target == LockUnlocked {
			return nil
		}
	case LockLocked:
		if target == LockUnlocked {
			return nil
		}
	}
	return ErrInvalidLockTransition
}
