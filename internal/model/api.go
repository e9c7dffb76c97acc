package model

import "context"

// AuthAPI is the backend authentication contract consumed by the client.
//
// Business rejections are returned as *APIError of KindValidation carrying the
// backend message. Liveness probes report rejection as false with a nil error
// and reserve errors for failures to obtain an answer.
type AuthAPI interface {
	Login(ctx context.Context, req LoginRequest) (LoginResponse, error)
	VerifyTempToken(ctx context.Context, ticket string) (bool, error)
	VerifyOTP(ctx context.Context, req VerifyOTPRequest) (SessionResponse, error)
	Me(ctx context.Context, token string) (User, error)
	Register(ctx context.Context, req RegisterRequest) (SessionResponse, error)
	ForgotPassword(ctx context.Context, email string) (StatusResponse, error)
	VerifyResetToken(ctx context.Context, token string) (bool, error)
	ResetPassword(ctx context.Context, token, password string) (StatusResponse, error)
	VerifyEmailToken(ctx context.Context, token string) (bool, error)
	VerifyEmail(ctx context.Context, otp, token string) (SessionResponse, error)
	ResendEmailVerification(ctx context.Context, email string) (StatusResponse, error)
	ToggleTwoFactor(ctx context.Context, token string, enable bool) (TwoFactorToggleResponse, error)
	GoogleAuthURL() string
}
