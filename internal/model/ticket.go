package model

import "time"

// DefaultTicketDuration is used when the backend omits a ticket expiry.
const DefaultTicketDuration = 10 * time.Minute

// TwoFactorTicket is a short-lived placeholder credential exchanged for a
// session after a one-time code is verified.
type TwoFactorTicket struct {
	Value          string
	ExpiresAt      time.Time
	RememberDevice bool
}

// Expired reports whether the ticket deadline has been reached at now.
func (t TwoFactorTicket) Expired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

// TicketStatus tracks the redemption step of a pending two-factor login.
type TicketStatus int

const (
	TicketNone TicketStatus = iota
	// TicketChecking means a live validity probe is outstanding.
	TicketChecking
	// TicketReady means the ticket passed its live probe and a code may be submitted.
	TicketReady
	// TicketExpired is terminal: the absolute deadline passed.
	TicketExpired
	// TicketInvalid is terminal: the backend no longer recognizes the ticket.
	TicketInvalid
)

func (s TicketStatus) String() string {
	switch s {
	case TicketChecking:
		return "checking"
	case TicketReady:
		return "ready"
	case TicketExpired:
		return "expired"
	case TicketInvalid:
		return "invalid"
	default:
		return "none"
	}
}

// Terminal reports whether the status ends the redemption step.
func (s TicketStatus) Terminal() bool {
	return s == TicketExpired || s == TicketInvalid
}
