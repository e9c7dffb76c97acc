package model

import (
	"errors"
	"fmt"
)

// ErrorKind classifies failures observed at the API boundary.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	// KindNetwork covers transport failures, timeouts, 5xx and throttling.
	KindNetwork
	// KindAuthorization means the credential was rejected (401).
	KindAuthorization
	// KindValidation is a 4xx business rejection.
	KindValidation
	// KindLockout is an explicit account-lock signal.
	KindLockout
)

func (k ErrorKind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindAuthorization:
		return "authorization"
	case KindValidation:
		return "validation"
	case KindLockout:
		return "lockout"
	default:
		return "unknown"
	}
}

// Sentinels matching every *APIError of the corresponding kind via errors.Is.
var (
	ErrNetwork       = errors.New("network error")
	ErrAuthorization = errors.New("authorization error")
	ErrValidation    = errors.New("validation error")
	ErrLockout       = errors.New("account locked")
	ErrUnknown       = errors.New("unknown error")
)

// Fallback user-facing messages.
const (
	MessageNetwork      = "Network error. Please check your connection."
	MessageUnknown      = "Something went wrong. Please try again."
	MessageBadLogin     = "Invalid username/email or password"
	MessageSessionEnded = "Your session has expired. Please log in again."
)

// APIError is a classified failure of a backend call.
type APIError struct {
	Kind             ErrorKind
	Status           int
	Code             string
	Message          string
	LockoutRemaining int
	Err              error
}

// NewAPIError creates an APIError of the given kind.
func NewAPIError(kind ErrorKind, status int, message string, err error) *APIError {
	return &APIError{Kind: kind, Status: status, Message: message, Err: err}
}

func (e *APIError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = e.Kind.String() + " error"
	}
	if e.Status != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.Status)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *APIError) Unwrap() error {
	return e.Err
}

func (e *APIError) Is(target error) bool {
	switch target {
	case ErrNetwork:
		return e.Kind == KindNetwork
	case ErrAuthorization:
		return e.Kind == KindAuthorization
	case ErrValidation:
		return e.Kind == KindValidation
	case ErrLockout:
		return e.Kind == KindLockout
	case ErrUnknown:
		return e.Kind == KindUnknown
	}
	return false
}

// UserMessage returns the message to surface to the user for this error.
func (e *APIError) UserMessage() string {
	switch {
	case e.Kind == KindNetwork:
		return MessageNetwork
	case e.Kind == KindUnknown:
		return MessageUnknown
	case e.Message != "":
		return e.Message
	case e.Kind == KindAuthorization:
		return MessageSessionEnded
	default:
		return MessageUnknown
	}
}

// KindOf returns the classification of err, KindUnknown for unclassified errors.
func KindOf(err error) ErrorKind {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}
	return KindUnknown
}

// UserMessage returns a user-facing message for any error.
func UserMessage(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.UserMessage()
	}
	var msg interface{ UserMessage() string }
	if errors.As(err, &msg) {
		return msg.UserMessage()
	}
	return MessageUnknown
}

// Local failures raised before any network call.
var (
	ErrInFlight           = errors.New("another request is already in progress")
	ErrLocallyBlocked     = fmt.Errorf("too many failed attempts on this device: %w", ErrLockout)
	ErrNoTicket           = errors.New("no two-factor ticket")
	ErrTicketExpired      = errors.New("two-factor ticket expired")
	ErrTicketInvalid      = errors.New("two-factor ticket is no longer valid")
	ErrTicketNotReady     = errors.New("two-factor ticket has not been verified yet")
	ErrNotAuthenticated   = errors.New("not authenticated")
	ErrIncompleteSession  = errors.New("session requires both token and user")
	ErrMalformedResponse  = errors.New("malformed backend response")
	ErrOAuthIdentity      = errors.New("failed to confirm oauth identity")
	ErrMissingOAuthToken  = errors.New("oauth token missing from return url")
	ErrResetForbidden     = errors.New("password reset link is missing its token")
	ErrResetTokenInvalid  = errors.New("password reset link is invalid or has expired")
	ErrResetTokenRejected = errors.New("password reset token was rejected")
	ErrPasswordMismatch   = errors.New("passwords do not match")
	ErrVerifyForbidden    = errors.New("email verification link is missing its token")
	ErrVerifyTokenInvalid = errors.New("email verification link is invalid or has expired")
)
