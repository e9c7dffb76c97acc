package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/dtroode/jobboard-client/internal/model"
)

// Ensure AuthAPI implements the model.AuthAPI interface.
var _ model.AuthAPI = (*AuthAPI)(nil)

// AuthAPI is a testify mock of model.AuthAPI.
type AuthAPI struct {
	mock.Mock
}

// NewAuthAPI creates a mock that asserts its expectations on test cleanup.
func NewAuthAPI(t interface {
	mock.TestingT
	Cleanup(func())
}) *AuthAPI {
	m := &AuthAPI{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *AuthAPI) Login(ctx context.Context, req model.LoginRequest) (model.LoginResponse, error) {
	ret := m.Called(ctx, req)
	return ret.Get(0).(model.LoginResponse), ret.Error(1)
}

func (m *AuthAPI) VerifyTempToken(ctx context.Context, ticket string) (bool, error) {
	ret := m.Called(ctx, ticket)
	return ret.Bool(0), ret.Error(1)
}

func (m *AuthAPI) VerifyOTP(ctx context.Context, req model.VerifyOTPRequest) (model.SessionResponse, error) {
	ret := m.Called(ctx, req)
	return ret.Get(0).(model.SessionResponse), ret.Error(1)
}

func (m *AuthAPI) Me(ctx context.Context, token string) (model.User, error) {
	ret := m.Called(ctx, token)
	return ret.Get(0).(model.User), ret.Error(1)
}

func (m *AuthAPI) Register(ctx context.Context, req model.RegisterRequest) (model.SessionResponse, error) {
	ret := m.Called(ctx, req)
	return ret.Get(0).(model.SessionResponse), ret.Error(1)
}

func (m *AuthAPI) ForgotPassword(ctx context.Context, email string) (model.StatusResponse, error) {
	ret := m.Called(ctx, email)
	return ret.Get(0).(model.StatusResponse), ret.Error(1)
}

func (m *AuthAPI) VerifyResetToken(ctx context.Context, token string) (bool, error) {
	ret := m.Called(ctx, token)
	return ret.Bool(0), ret.Error(1)
}

func (m *AuthAPI) ResetPassword(ctx context.Context, token, password string) (model.StatusResponse, error) {
	ret := m.Called(ctx, token, password)
	return ret.Get(0).(model.StatusResponse), ret.Error(1)
}

func (m *AuthAPI) VerifyEmailToken(ctx context.Context, token string) (bool, error) {
	ret := m.Called(ctx, token)
	return ret.Bool(0), ret.Error(1)
}

func (m *AuthAPI) VerifyEmail(ctx context.Context, otp, token string) (model.SessionResponse, error) {
	ret := m.Called(ctx, otp, token)
	return ret.Get(0).(model.SessionResponse), ret.Error(1)
}

func (m *AuthAPI) ResendEmailVerification(ctx context.Context, email string) (model.StatusResponse, error) {
	ret := m.Called(ctx, email)
	return ret.Get(0).(model.StatusResponse), ret.Error(1)
}

func (m *AuthAPI) ToggleTwoFactor(ctx context.Context, token string, enable bool) (model.TwoFactorToggleResponse, error) {
	ret := m.Called(ctx, token, enable)
	return ret.Get(0).(model.TwoFactorToggleResponse), ret.Error(1)
}

func (m *AuthAPI) GoogleAuthURL() string {
	ret := m.Called()
	return ret.String(0)
}
