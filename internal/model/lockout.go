package model

import "time"

// LockoutState is the per-device brute-force counter.
// LockoutEnd is zero when no lockout is armed.
type LockoutState struct {
	Attempts   int
	LockoutEnd time.Time
}

// Locked reports whether a lockout deadline is armed.
func (s LockoutState) Locked() bool {
	return !s.LockoutEnd.IsZero()
}

// LockoutStatus is the outcome of evaluating a LockoutState at a moment.
type LockoutStatus struct {
	Blocked          bool
	RemainingSeconds int
	// Expired is set when an armed lockout has elapsed and the state
	// should be reset by the observer.
	Expired bool
}
