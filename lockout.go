package clinicauth

import "time"

// Lockout policy constants. Fixed by design: five consecutive failures lock
// the account for two hours, for every account alike.
const (
	// LockoutThreshold is the failed-attempt count at which an account locks.
	LockoutThreshold = 5
	// LockoutDuration is how long a triggered lock lasts.
	LockoutDuration = 2 * time.Hour
)

// LockState is the lockout sub-state of an account: a non-negative failure
// counter and an optional lock deadline.
type LockState struct {
	FailedCount int
	LockedUntil *time.Time
}

// Locked reports whether the lock deadline is set and still in the future.
func (s LockState) Locked(now time.Time) bool {
	return s.LockedUntil != nil && now.Before(*s.LockedUntil)
}

// NextOnFailure returns the state after one failed login attempt at now.
//
// Transitions:
//   - active lock: state is unchanged; callers reject locked accounts before
//     the credential comparison, so this branch is not normally reached.
//   - expired lock: the lock clears and the counter re-arms at 1. The
//     attempt that surfaced the expiry counts as the first new failure, not
//     the zeroth. Callers must preserve this asymmetry exactly.
//   - otherwise: the counter increments; reaching the threshold sets the
//     deadline to now plus [LockoutDuration].
//
// Store implementations must apply this transition atomically
// (read-modify-write under a lock, or a single conditional UPDATE) so that
// two concurrent failures cannot both observe the same counter.
func NextOnFailure(s LockState, now time.Time) LockState {
	if s.LockedUntil != nil {
		if now.Before(*s.LockedUntil) {
			return s
		}
		return LockState{FailedCount: 1}
	}

	next := LockState{FailedCount: s.FailedCount + 1}
	if next.FailedCount >= LockoutThreshold {
		until := now.Add(LockoutDuration)
		next.LockedUntil = &until
	}
	return next
}

// NextOnSuccess returns the state after a successful authentication: counter
// at zero, no lock.
func NextOnSuccess() LockState {
	return LockState{}
}
