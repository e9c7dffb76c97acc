package api

import (
	"context"
	"net/http"

	"github.com/dtroode/jobboard-client/internal/model"
)

// Login submits credentials. Any decodable body below 500 is returned as a
// response so the caller can apply its own precedence; the status is kept in
// LoginResponse.StatusCode.
func (c *Client) Login(ctx context.Context, req model.LoginRequest) (model.LoginResponse, error) {
	c.logger.Debug("API client: login", "device_id", req.DeviceID)

	resp, err := c.send(ctx, http.MethodPost, "/auth/login", req, "")
	if err != nil {
		return model.LoginResponse{}, err
	}
	if resp.retryable() {
		return model.LoginResponse{}, failure(resp, false, "")
	}

	var out model.LoginResponse
	if err := decode(resp, &out); err != nil {
		if resp.ok() {
			return model.LoginResponse{}, err
		}
		return model.LoginResponse{}, failure(resp, false, model.MessageBadLogin)
	}
	out.StatusCode = resp.status
	return out, nil
}

// VerifyTempToken probes whether a two-factor ticket is still the active one.
func (c *Client) VerifyTempToken(ctx context.Context, ticket string) (bool, error) {
	return c.probe(ctx, "/auth/verify-temp-token", ticket)
}

// VerifyOTP redeems a two-factor ticket with a one-time code.
func (c *Client) VerifyOTP(ctx context.Context, req model.VerifyOTPRequest) (model.SessionResponse, error) {
	return c.session(ctx, "/auth/verify-otp", req, "Invalid verification code")
}

// Me fetches the identity behind a bearer token.
func (c *Client) Me(ctx context.Context, token string) (model.User, error) {
	resp, err := c.send(ctx, http.MethodGet, "/auth/me", nil, token)
	if err != nil {
		return model.User{}, err
	}
	if !resp.ok() {
		return model.User{}, failure(resp, true, "")
	}

	var out model.MeResponse
	if err := decode(resp, &out); err != nil {
		return model.User{}, err
	}
	if !out.Success {
		return model.User{}, &model.APIError{Kind: model.KindAuthorization, Status: resp.status, Message: out.Message}
	}
	if !out.User.Valid() {
		return model.User{}, &model.APIError{Kind: model.KindUnknown, Status: resp.status, Err: model.ErrMalformedResponse}
	}
	return *out.User, nil
}

// Register creates an account.
func (c *Client) Register(ctx context.Context, req model.RegisterRequest) (model.SessionResponse, error) {
	return c.session(ctx, "/auth/register", req, "Registration failed")
}

// ForgotPassword requests a password reset email.
func (c *Client) ForgotPassword(ctx context.Context, email string) (model.StatusResponse, error) {
	return c.status(ctx, "/auth/forgot-password", map[string]string{"email": email}, "", "Failed to send reset email")
}

// VerifyResetToken probes whether a password reset token can still be used.
func (c *Client) VerifyResetToken(ctx context.Context, token string) (bool, error) {
	return c.probe(ctx, "/auth/verify-reset-token", token)
}

// ResetPassword sets a new password using a reset token.
func (c *Client) ResetPassword(ctx context.Context, token, password string) (model.StatusResponse, error) {
	return c.status(ctx, "/auth/reset-password", map[string]string{"token": token, "password": password}, "", "Failed to reset password")
}

// VerifyEmailToken probes whether an email verification token is valid.
func (c *Client) VerifyEmailToken(ctx context.Context, token string) (bool, error) {
	return c.probe(ctx, "/auth/verify-email-token", token)
}

// VerifyEmail confirms an email address with a one-time code.
func (c *Client) VerifyEmail(ctx context.Context, otp, token string) (model.SessionResponse, error) {
	return c.session(ctx, "/auth/verify-email", map[string]string{"otp": otp, "token": token}, "Invalid verification code")
}

// ResendEmailVerification asks the backend to send a new verification code.
func (c *Client) ResendEmailVerification(ctx context.Context, email string) (model.StatusResponse, error) {
	return c.status(ctx, "/auth/resend-email-verification", map[string]string{"email": email}, "", "Failed to resend verification email")
}

// ToggleTwoFactor enables or disables two-factor login for the bearer's account.
func (c *Client) ToggleTwoFactor(ctx context.Context, token string, enable bool) (model.TwoFactorToggleResponse, error) {
	resp, err := c.send(ctx, http.MethodPost, "/auth/toggle-two-factor", map[string]bool{"enable": enable}, token)
	if err != nil {
		return model.TwoFactorToggleResponse{}, err
	}
	if !resp.ok() {
		return model.TwoFactorToggleResponse{}, failure(resp, true, "Failed to update two-factor settings")
	}

	var out model.TwoFactorToggleResponse
	if err := decode(resp, &out); err != nil {
		return model.TwoFactorToggleResponse{}, err
	}
	if !out.Success {
		return out, &model.APIError{Kind: model.KindValidation, Status: resp.status, Message: out.Message}
	}
	return out, nil
}

// GoogleAuthURL returns the redirect entry point of the OAuth flow.
func (c *Client) GoogleAuthURL() string {
	return c.baseURL + "/auth/google"
}

func (c *Client) probe(ctx context.Context, path, token string) (bool, error) {
	resp, err := c.send(ctx, http.MethodPost, path, map[string]string{"token": token}, "")
	if err != nil {
		return false, err
	}
	if !resp.ok() {
		ferr := failure(resp, false, "")
		if model.KindOf(ferr) == model.KindValidation {
			return false, nil
		}
		return false, ferr
	}

	var out model.StatusResponse
	if err := decode(resp, &out); err != nil {
		return false, err
	}
	return out.Success, nil
}

func (c *Client) session(ctx context.Context, path string, payload any, fallback string) (model.SessionResponse, error) {
	resp, err := c.send(ctx, http.MethodPost, path, payload, "")
	if err != nil {
		return model.SessionResponse{}, err
	}
	if !resp.ok() {
		return model.SessionResponse{}, failure(resp, false, fallback)
	}

	var out model.SessionResponse
	if err := decode(resp, &out); err != nil {
		return model.SessionResponse{}, err
	}
	if !out.Success {
		msg := out.Message
		if msg == "" {
			msg = fallback
		}
		return out, &model.APIError{Kind: model.KindValidation, Status: resp.status, Message: msg}
	}
	return out, nil
}

func (c *Client) status(ctx context.Context, path string, payload any, bearer, fallback string) (model.StatusResponse, error) {
	resp, err := c.send(ctx, http.MethodPost, path, payload, bearer)
	if err != nil {
		return model.StatusResponse{}, err
	}
	if !resp.ok() {
		return model.StatusResponse{}, failure(resp, bearer != "", fallback)
	}

	var out model.StatusResponse
	if err := decode(resp, &out); err != nil {
		return model.StatusResponse{}, err
	}
	if !out.Success {
		msg := out.Message
		if msg == "" {
			msg = fallback
		}
		return out, &model.APIError{Kind: model.KindValidation, Status: resp.status, Message: msg}
	}
	return out, nil
}
