package model

import "time"

// LockoutCode marks a login rejection caused by an account lock.
const LockoutCode = "ACCOUNT_LOCKED"

// LoginRequest is the body of POST /auth/login.
type LoginRequest struct {
	Identifier string `json:"usernameOrEmail"`
	Secret     string `json:"password"`
	DeviceID   string `json:"deviceId"`
	RememberMe bool   `json:"rememberMe"`
}

// LockoutData carries backend lockout details.
type LockoutData struct {
	LockoutRemaining int `json:"lockoutRemaining"`
}

// LoginResponse is the body returned by POST /auth/login.
type LoginResponse struct {
	Success                  bool         `json:"success"`
	Token                    string       `json:"token,omitempty"`
	User                     *User        `json:"user,omitempty"`
	RequireTwoFactor         bool         `json:"requireTwoFactor,omitempty"`
	TempToken                string       `json:"tempToken,omitempty"`
	ExpiresAt                int64        `json:"expiresAt,omitempty"`
	RequireEmailVerification bool         `json:"requireEmailVerification,omitempty"`
	Message                  string       `json:"message,omitempty"`
	Code                     string       `json:"code,omitempty"`
	Data                     *LockoutData `json:"data,omitempty"`
	LockoutRemaining         int          `json:"lockoutRemaining,omitempty"`

	// StatusCode is the HTTP status the body arrived with.
	StatusCode int `json:"-"`
}

// LockoutSeconds returns the backend lockout remaining time in seconds and
// whether the response signals an account lock at all.
func (r LoginResponse) LockoutSeconds() (int, bool) {
	remaining := r.LockoutRemaining
	if r.Data != nil && r.Data.LockoutRemaining > 0 {
		remaining = r.Data.LockoutRemaining
	}
	return remaining, r.Code == LockoutCode || remaining > 0
}

// TicketExpiry converts the millisecond epoch expiry into a time, zero when absent.
func (r LoginResponse) TicketExpiry() time.Time {
	if r.ExpiresAt <= 0 {
		return time.Time{}
	}
	return time.UnixMilli(r.ExpiresAt)
}

// VerifyOTPRequest is the body of POST /auth/verify-otp.
type VerifyOTPRequest struct {
	OTP            string `json:"otp"`
	TempToken      string `json:"tempToken"`
	RememberDevice bool   `json:"rememberDevice"`
	DeviceID       string `json:"deviceId"`
}

// SessionResponse is returned by endpoints that may mint a session.
type SessionResponse struct {
	Success                  bool   `json:"success"`
	Token                    string `json:"token,omitempty"`
	User                     *User  `json:"user,omitempty"`
	RequireEmailVerification bool   `json:"requireEmailVerification,omitempty"`
	TempToken                string `json:"tempToken,omitempty"`
	Message                  string `json:"message,omitempty"`
}

// Session returns the session carried by the response, if complete.
func (r SessionResponse) Session() (Session, bool) {
	s := Session{Token: r.Token, User: r.User}
	return s, r.Success && s.Active()
}

// RegisterRequest is the body of POST /auth/register.
type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// StatusResponse is the generic {success, message} envelope.
type StatusResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// MeResponse is returned by GET /auth/me.
type MeResponse struct {
	Success bool   `json:"success"`
	User    *User  `json:"user,omitempty"`
	Message string `json:"message,omitempty"`
}

// TwoFactorToggleResponse is returned by POST /auth/toggle-two-factor.
type TwoFactorToggleResponse struct {
	Success          bool   `json:"success"`
	TwoFactorEnabled bool   `json:"twoFactorEnabled"`
	Message          string `json:"message,omitempty"`
}
