package model

import "time"

// State is the position of the session controller's state machine.
type State int

const (
	StateUnknown State = iota
	StateHydrating
	StateAnonymous
	StateAuthenticated
	StatePendingTwoFactor
)

func (s State) String() string {
	switch s {
	case StateHydrating:
		return "hydrating"
	case StateAnonymous:
		return "anonymous"
	case StateAuthenticated:
		return "authenticated"
	case StatePendingTwoFactor:
		return "pending_two_factor"
	default:
		return "unknown"
	}
}

// Session is the authoritative client-side identity record.
type Session struct {
	Token string
	User  *User
}

// Active reports whether both halves of the session are present.
func (s Session) Active() bool {
	return s.Token != "" && s.User.Valid()
}

// TicketView is the observable part of a pending two-factor step.
type TicketView struct {
	Status           TicketStatus
	ExpiresAt        time.Time
	RemainingSeconds int
	// RedirectIn counts down to the automatic return to login after a
	// terminal status.
	RedirectIn int
}

// Snapshot is an immutable view of controller state handed to observers.
type Snapshot struct {
	Version                   uint64
	State                     State
	User                      *User
	HasToken                  bool
	Stale                     bool
	InFlight                  bool
	Message                   string
	Locked                    bool
	LockoutRemaining          int
	EmailVerificationRequired bool
	Ticket                    TicketView
}

// LoggedIn reports whether the snapshot represents an authenticated user.
func (s Snapshot) LoggedIn() bool {
	return s.State == StateAuthenticated && s.HasToken && s.User != nil
}
