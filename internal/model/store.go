package model

import (
	"context"
	"errors"
)

// Scope selects the lifetime of a stored value.
type Scope int

const (
	// ScopeDurable survives restarts of the client profile.
	ScopeDurable Scope = iota
	// ScopeEphemeral lives only for the current client session.
	ScopeEphemeral
)

func (s Scope) String() string {
	switch s {
	case ScopeDurable:
		return "durable"
	case ScopeEphemeral:
		return "ephemeral"
	default:
		return "unknown"
	}
}

// Durable keys.
const (
	KeyToken              = "token"
	KeyUser               = "userInfo"
	KeyDeviceID           = "deviceId"
	KeyRememberedUsername = "savedUsername"
	KeyLoginAttempts      = "loginAttempts"
	KeyLockoutEnd         = "lockoutEndTime"
	KeyCSRFToken          = "csrfToken"
)

// Ephemeral keys.
const (
	KeyTicket         = "tempToken"
	KeyTicketExpiry   = "expiresAt"
	KeyRememberDevice = "rememberMe"
)

// ErrUnknownScope is returned by stores for an unsupported Scope value.
var ErrUnknownScope = errors.New("unknown store scope")

// Store is a string key/value adapter over the durable and ephemeral scopes.
// A missing key is reported by ok=false, not by an error.
type Store interface {
	Get(ctx context.Context, scope Scope, key string) (value string, ok bool, err error)
	Set(ctx context.Context, scope Scope, key, value string) error
	Delete(ctx context.Context, scope Scope, keys ...string) error
	Keys(ctx context.Context, scope Scope) ([]string, error)
}
