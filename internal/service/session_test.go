package service

import (
	"context"
	"encoding/json"
	"strconv"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dtroode/jobboard-client/internal/model"
	"github.com/dtroode/jobboard-client/internal/testutil"
)

func loginFor(identifier string) any {
	return mock.MatchedBy(func(r model.LoginRequest) bool {
		return r.Identifier == identifier && r.DeviceID != ""
	})
}

func TestSession_ScenarioA_FifthFailureLocks(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	f.api.On("Login", mock.Anything, loginFor("alice")).
		Return(model.LoginResponse{Success: false, Message: "Invalid credentials", StatusCode: 401}, nil).
		Times(5)

	creds := Credentials{Identifier: "alice", Secret: "wrong"}
	for i := 1; i <= 4; i++ {
		res, err := f.session.SubmitCredentials(ctx, creds)
		require.ErrorIs(t, err, model.ErrValidation)
		assert.Equal(t, OutcomeFailed, res.Outcome)
		assert.Equal(t, "Invalid credentials", res.Message)

		status, err := f.session.Lockout().IsBlocked(ctx, f.clock.Now())
		require.NoError(t, err)
		assert.False(t, status.Blocked, "attempt %d", i)
	}

	res, err := f.session.SubmitCredentials(ctx, creds)
	require.ErrorIs(t, err, model.ErrValidation)
	assert.Equal(t, OutcomeLocked, res.Outcome)
	assert.Equal(t, 300, res.RemainingSeconds)

	status, err := f.session.Lockout().IsBlocked(ctx, f.clock.Now())
	require.NoError(t, err)
	assert.True(t, status.Blocked)
	assert.Equal(t, 300, status.RemainingSeconds)

	snap := f.session.Snapshot()
	assert.True(t, snap.Locked)
	assert.Equal(t, 300, snap.LockoutRemaining)
	assert.Equal(t, "Too many failed login attempts. Try again in 05:00", snap.Message)

	// A sixth attempt is refused without reaching the backend.
	res, err = f.session.SubmitCredentials(ctx, creds)
	require.ErrorIs(t, err, model.ErrLocallyBlocked)
	require.ErrorIs(t, err, model.ErrLockout)
	assert.Equal(t, OutcomeLocked, res.Outcome)
	f.api.AssertNumberOfCalls(t, "Login", 5)
}

func TestSession_LockoutCountdownEndsAndResets(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	f.api.On("Login", mock.Anything, loginFor("alice")).
		Return(model.LoginResponse{Success: false, StatusCode: 401}, nil).
		Times(5)
	for i := 0; i < 5; i++ {
		_, _ = f.session.SubmitCredentials(ctx, Credentials{Identifier: "alice", Secret: "wrong"})
	}
	require.True(t, f.session.Snapshot().Locked)

	f.clock.Advance(2 * time.Minute)
	assert.Equal(t, 180, f.session.Snapshot().LockoutRemaining)

	f.clock.Advance(3 * time.Minute)
	snap := f.session.Snapshot()
	assert.False(t, snap.Locked)
	assert.Zero(t, snap.LockoutRemaining)
	_, ok := f.durable(model.KeyLoginAttempts)
	assert.False(t, ok)
	_, ok = f.durable(model.KeyLockoutEnd)
	assert.False(t, ok)
	assert.Zero(t, f.clock.Pending())
}

func TestSession_ScenarioB_TwoFactorRequired(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	expiresAt := testStart.Add(10 * time.Minute)
	f.api.On("Login", mock.Anything, loginFor("bob")).Return(model.LoginResponse{
		Success:          false,
		RequireTwoFactor: true,
		TempToken:        "abc",
		ExpiresAt:        expiresAt.UnixMilli(),
		StatusCode:       200,
	}, nil).Once()

	res, err := f.session.SubmitCredentials(ctx, Credentials{Identifier: "bob", Secret: "pw"})
	require.NoError(t, err)
	assert.Equal(t, OutcomeTwoFactorRequired, res.Outcome)
	assert.Equal(t, "abc", res.Ticket.Value)

	v, ok := f.ephemeral(model.KeyTicket)
	require.True(t, ok)
	assert.Equal(t, "abc", v)
	v, _ = f.ephemeral(model.KeyTicketExpiry)
	assert.Equal(t, strconv.FormatInt(expiresAt.UnixMilli(), 10), v)

	status, err := f.session.Lockout().IsBlocked(ctx, f.clock.Now())
	require.NoError(t, err)
	assert.False(t, status.Blocked)
	_, ok = f.durable(model.KeyLoginAttempts)
	assert.False(t, ok)

	snap := f.session.Snapshot()
	assert.Equal(t, model.StatePendingTwoFactor, snap.State)
	assert.Equal(t, model.TicketChecking, snap.Ticket.Status)
	assert.Equal(t, 600, snap.Ticket.RemainingSeconds)
	assert.False(t, snap.HasToken)

	f.clock.Advance(time.Minute)
	assert.Equal(t, 540, f.session.Snapshot().Ticket.RemainingSeconds)
}

func TestSession_TwoFactorRedeemFlow(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	user := testUser()
	f.api.On("Login", mock.Anything, loginFor("alice")).Return(model.LoginResponse{
		RequireTwoFactor: true,
		TempToken:        testTicket,
		StatusCode:       200,
	}, nil).Once()
	f.api.On("VerifyTempToken", mock.Anything, testTicket).Return(true, nil).Twice()
	f.api.On("VerifyOTP", mock.Anything, mock.MatchedBy(func(r model.VerifyOTPRequest) bool {
		return r.OTP == "123456" && r.TempToken == testTicket && r.RememberDevice && r.DeviceID != ""
	})).Return(model.SessionResponse{Success: true, Token: testToken, User: &user}, nil).Once()

	_, err := f.session.SubmitCredentials(ctx, Credentials{Identifier: "alice", Secret: "pw", RememberMe: true})
	require.NoError(t, err)

	_, err = f.session.SubmitOTP(ctx, "123456", true)
	require.ErrorIs(t, err, model.ErrTicketNotReady)

	ticket, err := f.session.PrepareTwoFactor(ctx, "", time.Time{})
	require.NoError(t, err)
	assert.Equal(t, testTicket, ticket.Value)
	assert.Equal(t, model.TicketReady, f.session.Snapshot().Ticket.Status)

	got, err := f.session.SubmitOTP(ctx, "123456", false)
	require.NoError(t, err)
	assert.Equal(t, user, got)

	snap := f.session.Snapshot()
	assert.True(t, snap.LoggedIn())
	assert.Equal(t, model.TicketNone, snap.Ticket.Status)
	assert.Empty(t, f.store.Snapshot(model.ScopeEphemeral))
	tok, _ := f.durable(model.KeyToken)
	assert.Equal(t, testToken, tok)
	assert.Zero(t, f.clock.Pending())
}

func TestSession_ScenarioC_ExpiredTicketRejectedLocally(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.session.TwoFactor().Issue(ctx, testTicket, testStart.Add(-time.Second), false)
	require.NoError(t, err)

	_, err = f.session.PrepareTwoFactor(ctx, "", time.Time{})
	require.ErrorIs(t, err, model.ErrTicketExpired)

	snap := f.session.Snapshot()
	assert.Equal(t, model.StatePendingTwoFactor, snap.State)
	assert.Equal(t, model.TicketExpired, snap.Ticket.Status)
	assert.Equal(t, 5, snap.Ticket.RedirectIn)

	_, err = f.session.SubmitOTP(ctx, "123456", false)
	require.ErrorIs(t, err, model.ErrTicketNotReady)

	f.clock.Advance(4 * time.Second)
	assert.Equal(t, 1, f.session.Snapshot().Ticket.RedirectIn)
	_, ok := f.ephemeral(model.KeyTicket)
	assert.True(t, ok)

	f.clock.Advance(time.Second)
	snap = f.session.Snapshot()
	assert.Equal(t, model.StateAnonymous, snap.State)
	assert.Equal(t, model.TicketNone, snap.Ticket.Status)
	assert.Empty(t, f.store.Snapshot(model.ScopeEphemeral))
}

func TestSession_SubmitOTPAfterDeadlineNeverReachesBackend(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.session.TwoFactor().Issue(ctx, testTicket, testStart.Add(time.Minute), false)
	require.NoError(t, err)
	f.api.On("VerifyTempToken", mock.Anything, testTicket).Return(true, nil).Once()

	_, err = f.session.PrepareTwoFactor(ctx, "", time.Time{})
	require.NoError(t, err)

	// Jump past the deadline without letting timers fire, as after suspension.
	f.clock.Set(testStart.Add(time.Minute + time.Millisecond))
	_, err = f.session.SubmitOTP(ctx, "123456", false)
	require.ErrorIs(t, err, model.ErrTicketExpired)

	snap := f.session.Snapshot()
	assert.Equal(t, model.TicketExpired, snap.Ticket.Status)
	f.api.AssertNotCalled(t, "VerifyOTP", mock.Anything, mock.Anything)
}

func TestSession_TicketCountdownExpiryIsTerminal(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.session.TwoFactor().Issue(ctx, testTicket, testStart.Add(3*time.Second), false)
	require.NoError(t, err)
	f.api.On("VerifyTempToken", mock.Anything, testTicket).Return(true, nil).Once()

	_, err = f.session.PrepareTwoFactor(ctx, "", time.Time{})
	require.NoError(t, err)

	f.clock.Advance(3 * time.Second)
	snap := f.session.Snapshot()
	assert.Equal(t, model.TicketExpired, snap.Ticket.Status)
	assert.Equal(t, 5, snap.Ticket.RedirectIn)

	f.clock.Advance(5 * time.Second)
	assert.Equal(t, model.StateAnonymous, f.session.Snapshot().State)
}

func TestSession_InvalidTicketRedirectsAfterLongerDelay(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.session.TwoFactor().Issue(ctx, testTicket, time.Time{}, false)
	require.NoError(t, err)
	f.api.On("VerifyTempToken", mock.Anything, testTicket).Return(false, nil).Once()

	_, err = f.session.PrepareTwoFactor(ctx, "", time.Time{})
	require.ErrorIs(t, err, model.ErrTicketInvalid)

	snap := f.session.Snapshot()
	assert.Equal(t, model.TicketInvalid, snap.Ticket.Status)
	assert.Equal(t, 10, snap.Ticket.RedirectIn)

	f.clock.Advance(9 * time.Second)
	assert.Equal(t, model.StatePendingTwoFactor, f.session.Snapshot().State)
	f.clock.Advance(time.Second)
	assert.Equal(t, model.StateAnonymous, f.session.Snapshot().State)
}

func TestSession_ScenarioD_HydrateUnauthorizedPurges(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seedSession(t, testToken, testUser())

	f.api.On("Me", mock.Anything, testToken).
		Return(model.User{}, model.NewAPIError(model.KindAuthorization, 401, "Unauthorized", nil)).Once()

	require.NoError(t, f.session.Hydrate(ctx))

	snap := f.session.Snapshot()
	assert.Equal(t, model.StateAnonymous, snap.State)
	assert.False(t, snap.HasToken)
	assert.Nil(t, snap.User)
	assert.Equal(t, model.MessageSessionEnded, snap.Message)
	_, ok := f.durable(model.KeyToken)
	assert.False(t, ok)
	_, ok = f.durable(model.KeyUser)
	assert.False(t, ok)
}

func TestSession_ScenarioD_HydrateTimeoutKeepsCachedUser(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	user := testUser()
	f.seedSession(t, testToken, user)

	timeout := model.NewAPIError(model.KindNetwork, 0, "", context.DeadlineExceeded)
	f.api.On("Me", mock.Anything, testToken).Return(model.User{}, timeout).Once()

	err := f.session.Hydrate(ctx)
	require.ErrorIs(t, err, model.ErrNetwork)

	snap := f.session.Snapshot()
	assert.Equal(t, model.StateAuthenticated, snap.State)
	assert.True(t, snap.Stale)
	require.NotNil(t, snap.User)
	assert.Equal(t, user, *snap.User)
	tok, ok := f.durable(model.KeyToken)
	assert.True(t, ok)
	assert.Equal(t, testToken, tok)
}

func TestSession_HydrateRoundTrip(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	user := testUser()
	require.NoError(t, f.session.FinalizeSession(ctx, testToken, user))

	// A fresh controller over the same storage, as after a restart.
	restarted := NewSession(f.api, f.store, testConfig(), f.clock, testutil.MakeNoopLogger())
	t.Cleanup(restarted.Close)

	refreshed := user
	refreshed.DisplayName = "Alice A."
	f.api.On("Me", mock.Anything, testToken).Run(func(mock.Arguments) {
		snap := restarted.Snapshot()
		assert.Equal(t, model.StateAuthenticated, snap.State, "cached user is adopted before revalidation")
		require.NotNil(t, snap.User)
		assert.Equal(t, user, *snap.User)
	}).Return(refreshed, nil).Once()

	require.NoError(t, restarted.Hydrate(ctx))

	snap := restarted.Snapshot()
	assert.True(t, snap.LoggedIn())
	assert.False(t, snap.Stale)
	assert.Equal(t, refreshed, *snap.User)

	raw, _ := f.durable(model.KeyUser)
	var stored model.User
	require.NoError(t, json.Unmarshal([]byte(raw), &stored))
	assert.Equal(t, refreshed, stored)
}

func TestSession_HydrateWithoutTokenDropsOrphanedUser(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	data, err := json.Marshal(testUser())
	require.NoError(t, err)
	require.NoError(t, f.store.Set(ctx, model.ScopeDurable, model.KeyUser, string(data)))

	require.NoError(t, f.session.Hydrate(ctx))
	assert.Equal(t, model.StateAnonymous, f.session.Snapshot().State)
	_, ok := f.durable(model.KeyUser)
	assert.False(t, ok)
}

func TestSession_HydrateExpiredJWTSkipsRevalidation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	expired, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(testStart.Add(-time.Hour)),
	}).SignedString([]byte("secret"))
	require.NoError(t, err)
	f.seedSession(t, expired, testUser())

	require.NoError(t, f.session.Hydrate(ctx))
	assert.Equal(t, model.StateAnonymous, f.session.Snapshot().State)
	_, ok := f.durable(model.KeyToken)
	assert.False(t, ok)
}

func TestSession_LoginSuccessFinalizesAtomically(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	f.session.Subscribe(func(s model.Snapshot) {
		assert.Equal(t, s.HasToken, s.User != nil, "token and user appear together")
		if s.LoggedIn() {
			_, hasToken := f.durable(model.KeyToken)
			_, hasUser := f.durable(model.KeyUser)
			assert.True(t, hasToken && hasUser, "observers are notified after persistence")
		}
	})

	require.NoError(t, f.store.Set(ctx, model.ScopeDurable, model.KeyLoginAttempts, "3"))

	user := testUser()
	f.api.On("Login", mock.Anything, loginFor("alice")).
		Return(model.LoginResponse{Success: true, Token: testToken, User: &user, StatusCode: 200}, nil).Once()

	res, err := f.session.SubmitCredentials(ctx, Credentials{Identifier: "alice", Secret: "pw", RememberMe: true})
	require.NoError(t, err)
	assert.Equal(t, OutcomeAuthenticated, res.Outcome)
	assert.True(t, f.session.Snapshot().LoggedIn())

	_, ok := f.durable(model.KeyLoginAttempts)
	assert.False(t, ok)
	remembered, err := f.session.RememberedUsername(ctx)
	require.NoError(t, err)
	assert.Equal(t, "alice", remembered)
}

func TestSession_FinalizeSessionRequiresBothHalves(t *testing.T) {
	f := newFixture(t)

	err := f.session.FinalizeSession(context.Background(), "", testUser())
	require.ErrorIs(t, err, model.ErrIncompleteSession)
	err = f.session.FinalizeSession(context.Background(), testToken, model.User{})
	require.ErrorIs(t, err, model.ErrIncompleteSession)
	assert.Empty(t, f.store.Snapshot(model.ScopeDurable))
	assert.Empty(t, f.snaps)
}

func TestSession_BackendLockoutIsAuthoritative(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	f.api.On("Login", mock.Anything, loginFor("alice")).Return(model.LoginResponse{
		Code:       model.LockoutCode,
		Message:    "Account locked",
		Data:       &model.LockoutData{LockoutRemaining: 120},
		StatusCode: 423,
	}, nil).Once()

	res, err := f.session.SubmitCredentials(ctx, Credentials{Identifier: "alice", Secret: "pw"})
	require.ErrorIs(t, err, model.ErrLockout)
	assert.Equal(t, OutcomeLocked, res.Outcome)
	assert.Equal(t, 120, res.RemainingSeconds)

	state, err := f.session.Lockout().State(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, state.Attempts)
	assert.Equal(t, testStart.Add(2*time.Minute), state.LockoutEnd)

	snap := f.session.Snapshot()
	assert.True(t, snap.Locked)
	assert.Equal(t, "Account locked", snap.Message)
}

func TestSession_NetworkFailureLeavesLockoutAlone(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	f.api.On("Login", mock.Anything, loginFor("alice")).
		Return(model.LoginResponse{}, model.NewAPIError(model.KindNetwork, 503, "", nil)).Once()

	res, err := f.session.SubmitCredentials(ctx, Credentials{Identifier: "alice", Secret: "pw"})
	require.ErrorIs(t, err, model.ErrNetwork)
	assert.Equal(t, OutcomeFailed, res.Outcome)
	assert.Equal(t, model.MessageNetwork, res.Message)

	_, ok := f.durable(model.KeyLoginAttempts)
	assert.False(t, ok)
}

func TestSession_EmailVerificationRequired(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	f.api.On("Login", mock.Anything, loginFor("carol")).
		Return(model.LoginResponse{RequireEmailVerification: true, StatusCode: 403}, nil).Once()

	res, err := f.session.SubmitCredentials(ctx, Credentials{Identifier: "carol", Secret: "pw"})
	require.NoError(t, err)
	assert.Equal(t, OutcomeEmailVerificationRequired, res.Outcome)

	snap := f.session.Snapshot()
	assert.True(t, snap.EmailVerificationRequired)
	assert.Equal(t, model.StateAnonymous, snap.State)
	assert.False(t, snap.HasToken)
	_, ok := f.durable(model.KeyLoginAttempts)
	assert.False(t, ok)
}

func TestSession_LocalValidationSkipsNetwork(t *testing.T) {
	f := newFixture(t)

	res, err := f.session.SubmitCredentials(context.Background(), Credentials{Identifier: "  ", Secret: ""})
	require.Error(t, err)
	assert.NotErrorIs(t, err, model.ErrNetwork)
	assert.Equal(t, OutcomeFailed, res.Outcome)
	assert.NotEmpty(t, res.Message)
}

func TestSession_DoubleSubmissionIsRefused(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	creds := Credentials{Identifier: "alice", Secret: "pw"}
	f.api.On("Login", mock.Anything, loginFor("alice")).Run(func(mock.Arguments) {
		assert.True(t, f.session.Snapshot().InFlight)
		_, err := f.session.SubmitCredentials(ctx, creds)
		assert.ErrorIs(t, err, model.ErrInFlight)
	}).Return(model.LoginResponse{Message: "nope", StatusCode: 401}, nil).Once()

	_, err := f.session.SubmitCredentials(ctx, creds)
	require.ErrorIs(t, err, model.ErrValidation)
	assert.False(t, f.session.Snapshot().InFlight)
}

func TestSession_LogoutKeepsDeviceAndRememberedUsername(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	require.NoError(t, f.session.FinalizeSession(ctx, testToken, testUser()))
	require.NoError(t, f.store.Set(ctx, model.ScopeDurable, model.KeyRememberedUsername, "alice"))
	require.NoError(t, f.store.Set(ctx, model.ScopeDurable, model.KeyDeviceID, "6f1c1f9e-5a44-4a8e-9a53-2b2f6c1b9d11"))
	_, err := f.session.TwoFactor().Issue(ctx, testTicket, time.Time{}, false)
	require.NoError(t, err)

	require.NoError(t, f.session.Logout(ctx))

	snap := f.session.Snapshot()
	assert.Equal(t, model.StateAnonymous, snap.State)
	assert.False(t, snap.HasToken)
	assert.Equal(t, map[string]string{
		model.KeyRememberedUsername: "alice",
		model.KeyDeviceID:           "6f1c1f9e-5a44-4a8e-9a53-2b2f6c1b9d11",
	}, f.store.Snapshot(model.ScopeDurable))
	assert.Empty(t, f.store.Snapshot(model.ScopeEphemeral))
}

func TestSession_SnapshotVersionsIncrease(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.session.FinalizeSession(context.Background(), testToken, testUser()))
	require.NoError(t, f.session.Logout(context.Background()))

	require.NotEmpty(t, f.snaps)
	for i := 1; i < len(f.snaps); i++ {
		assert.Greater(t, f.snaps[i].Version, f.snaps[i-1].Version)
	}
}

func TestSession_CloseStopsCountdowns(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.session.Lockout().ApplyServerLockout(ctx, time.Minute)
	require.NoError(t, err)
	require.NoError(t, f.session.Hydrate(ctx))
	require.True(t, f.session.Snapshot().Locked)
	require.NotZero(t, f.clock.Pending())

	f.session.Close()
	assert.Zero(t, f.clock.Pending())
}

func TestSession_HydrateRejectionKeepsNewerSession(t *testing.T) {
	ctx := context.Background()
	bob := model.User{ID: "u-2", Username: "bob", Email: "bob@example.com"}

	tests := []struct {
		name   string
		cached bool
		err    error
	}{
		{name: "unauthorized", cached: true, err: model.NewAPIError(model.KindAuthorization, 401, "Unauthorized", nil)},
		{name: "timeout without cached user", cached: false, err: model.NewAPIError(model.KindNetwork, 0, "", context.DeadlineExceeded)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			if tt.cached {
				f.seedSession(t, "old-token", testUser())
			} else {
				require.NoError(t, f.store.Set(ctx, model.ScopeDurable, model.KeyToken, "old-token"))
			}

			f.api.On("Me", mock.Anything, "old-token").Run(func(mock.Arguments) {
				require.NoError(t, f.session.FinalizeSession(ctx, "new-token", bob))
			}).Return(model.User{}, tt.err).Once()

			require.NoError(t, f.session.Hydrate(ctx))

			tok, ok := f.durable(model.KeyToken)
			require.True(t, ok)
			assert.Equal(t, "new-token", tok)

			snap := f.session.Snapshot()
			assert.True(t, snap.LoggedIn())
			assert.Equal(t, "bob", snap.User.Username)
		})
	}
}

func TestSession_HydrateClientErrorKeepsSession(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seedSession(t, testToken, testUser())

	f.api.On("Me", mock.Anything, testToken).
		Return(model.User{}, model.NewAPIError(model.KindValidation, 404, "Not Found", nil)).Once()

	require.ErrorIs(t, f.session.Hydrate(ctx), model.ErrValidation)

	snap := f.session.Snapshot()
	assert.True(t, snap.LoggedIn())
	assert.True(t, snap.Stale)
	_, ok := f.durable(model.KeyToken)
	assert.True(t, ok)
}

func TestSession_MalformedLoginSuccessDoesNotCountTowardLockout(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	f.api.On("Login", mock.Anything, loginFor("alice")).
		Return(model.LoginResponse{Success: true, StatusCode: 200}, nil).Once()

	res, err := f.session.SubmitCredentials(ctx, Credentials{Identifier: "alice", Secret: "hunter22"})
	require.ErrorIs(t, err, model.ErrMalformedResponse)
	assert.Equal(t, model.KindUnknown, model.KindOf(err))
	assert.Equal(t, OutcomeFailed, res.Outcome)

	state, err := f.session.Lockout().State(ctx)
	require.NoError(t, err)
	assert.Zero(t, state.Attempts)
	assert.False(t, f.session.Snapshot().LoggedIn())
}
