package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/dtroode/jobboard-client/internal/clock"
	"github.com/dtroode/jobboard-client/internal/logger"
	"github.com/dtroode/jobboard-client/internal/model"
	"github.com/dtroode/jobboard-client/internal/validate"
)

// minURLTicketLength is the shortest ticket accepted from a URL.
const minURLTicketLength = 11

// PlausibleTicket rejects values that can never be a server-issued ticket,
// including the literal strings a lost value serializes to.
func PlausibleTicket(value string) bool {
	return value != "" && value != "undefined" && value != "null"
}

// PlausibleURLTicket applies PlausibleTicket plus a minimum length to values
// read from a URL, which may be truncated.
func PlausibleURLTicket(value string) bool {
	return PlausibleTicket(value) && len(value) >= minURLTicketLength
}

// Continuation is the ordered list of ticket candidates to try when resuming
// the redemption step.
type Continuation struct {
	Primary  string
	Fallback string
	// FromURL is set when Primary came from the URL and is not yet stored.
	FromURL bool
}

// ResolveContinuation decides which ticket to try when a value may arrive
// both in the URL and from ephemeral storage. A differing URL value goes
// first but must validate on its own; the stored value is the fallback.
func ResolveContinuation(urlValue, storedValue string) (Continuation, bool) {
	fromURL := PlausibleURLTicket(urlValue)
	stored := PlausibleTicket(storedValue)

	switch {
	case fromURL && urlValue != storedValue:
		c := Continuation{Primary: urlValue, FromURL: true}
		if stored {
			c.Fallback = storedValue
		}
		return c, true
	case stored:
		return Continuation{Primary: storedValue}, true
	default:
		return Continuation{}, false
	}
}

// SessionFinalizer is the only component allowed to turn credentials into a
// session.
type SessionFinalizer interface {
	FinalizeSession(ctx context.Context, token string, user model.User) error
}

// TwoFactor owns the lifecycle of the pending two-factor ticket.
type TwoFactor struct {
	api       model.AuthAPI
	store     model.Store
	clock     clock.Clock
	ttl       time.Duration
	validator *validate.Validator
	finalizer SessionFinalizer
	logger    *logger.Logger
}

func NewTwoFactor(
	api model.AuthAPI,
	store model.Store,
	clk clock.Clock,
	ttl time.Duration,
	validator *validate.Validator,
	finalizer SessionFinalizer,
	logger *logger.Logger,
) *TwoFactor {
	if ttl <= 0 {
		ttl = model.DefaultTicketDuration
	}
	return &TwoFactor{
		api:       api,
		store:     store,
		clock:     clk,
		ttl:       ttl,
		validator: validator,
		finalizer: finalizer,
		logger:    logger,
	}
}

// Issue stores a ticket ephemerally. A zero expiresAt defaults to now + TTL.
func (t *TwoFactor) Issue(ctx context.Context, value string, expiresAt time.Time, rememberDevice bool) (model.TwoFactorTicket, error) {
	if !PlausibleTicket(value) {
		return model.TwoFactorTicket{}, model.ErrTicketInvalid
	}
	if expiresAt.IsZero() {
		expiresAt = t.clock.Now().Add(t.ttl)
	}

	ticket := model.TwoFactorTicket{Value: value, ExpiresAt: expiresAt, RememberDevice: rememberDevice}
	err := errors.Join(
		t.store.Set(ctx, model.ScopeEphemeral, model.KeyTicket, ticket.Value),
		t.store.Set(ctx, model.ScopeEphemeral, model.KeyTicketExpiry, strconv.FormatInt(ticket.ExpiresAt.UnixMilli(), 10)),
		t.store.Set(ctx, model.ScopeEphemeral, model.KeyRememberDevice, strconv.FormatBool(ticket.RememberDevice)),
	)
	if err != nil {
		return model.TwoFactorTicket{}, fmt.Errorf("failed to store two-factor ticket: %w", err)
	}

	t.logger.Debug("TwoFactor: ticket issued", "expires_at", ticket.ExpiresAt)
	return ticket, nil
}

// Current returns the stored ticket. A ticket without a readable expiry
// has a zero ExpiresAt and is therefore already expired.
func (t *TwoFactor) Current(ctx context.Context) (model.TwoFactorTicket, bool, error) {
	value, ok, err := t.store.Get(ctx, model.ScopeEphemeral, model.KeyTicket)
	if err != nil {
		return model.TwoFactorTicket{}, false, fmt.Errorf("failed to read two-factor ticket: %w", err)
	}
	if !ok || value == "" {
		return model.TwoFactorTicket{}, false, nil
	}

	ticket := model.TwoFactorTicket{Value: value}
	if raw, ok, err := t.store.Get(ctx, model.ScopeEphemeral, model.KeyTicketExpiry); err != nil {
		return model.TwoFactorTicket{}, false, fmt.Errorf("failed to read two-factor ticket expiry: %w", err)
	} else if ok {
		if ms, err := strconv.ParseInt(raw, 10, 64); err == nil {
			ticket.ExpiresAt = time.UnixMilli(ms)
		}
	}
	if raw, ok, err := t.store.Get(ctx, model.ScopeEphemeral, model.KeyRememberDevice); err != nil {
		return model.TwoFactorTicket{}, false, fmt.Errorf("failed to read remember-device flag: %w", err)
	} else if ok {
		ticket.RememberDevice, _ = strconv.ParseBool(raw)
	}

	return ticket, true, nil
}

// Clear removes every ephemeral two-factor artifact.
func (t *TwoFactor) Clear(ctx context.Context) error {
	if err := t.store.Delete(ctx, model.ScopeEphemeral, model.KeyTicket, model.KeyTicketExpiry, model.KeyRememberDevice); err != nil {
		return fmt.Errorf("failed to clear two-factor ticket: %w", err)
	}
	return nil
}

// ValidateBeforeUse checks the absolute deadline and then asks the backend
// whether the ticket is still the active one for its account. An expired
// ticket yields model.ErrTicketExpired without a network call. A ticket the
// backend rejects is removed from storage if it is the stored one.
func (t *TwoFactor) ValidateBeforeUse(ctx context.Context, ticket model.TwoFactorTicket) (bool, error) {
	if !PlausibleTicket(ticket.Value) {
		return false, nil
	}
	if ticket.Expired(t.clock.Now()) {
		return false, model.ErrTicketExpired
	}

	ok, err := t.api.VerifyTempToken(ctx, ticket.Value)
	if err != nil {
		t.logger.Warn("TwoFactor: ticket probe failed", "error", err.Error())
		return false, fmt.Errorf("failed to verify two-factor ticket: %w", err)
	}
	if !ok {
		t.logger.Info("TwoFactor: backend no longer recognizes ticket")
		if err := t.forget(ctx, ticket.Value); err != nil {
			return false, err
		}
		return false, nil
	}
	return true, nil
}

// Resume picks the ticket to redeem from a URL value and the stored one.
// The winning ticket is stored. It returns model.ErrTicketExpired or
// model.ErrTicketInvalid when no candidate survives.
func (t *TwoFactor) Resume(ctx context.Context, urlValue string, urlExpiresAt time.Time) (model.TwoFactorTicket, error) {
	stored, _, err := t.Current(ctx)
	if err != nil {
		return model.TwoFactorTicket{}, err
	}

	cont, ok := ResolveContinuation(urlValue, stored.Value)
	if !ok {
		return model.TwoFactorTicket{}, model.ErrTicketInvalid
	}

	candidates := []model.TwoFactorTicket{stored}
	if cont.FromURL {
		expiresAt := urlExpiresAt
		if expiresAt.IsZero() {
			expiresAt = t.clock.Now().Add(t.ttl)
		}
		candidates = []model.TwoFactorTicket{{Value: cont.Primary, ExpiresAt: expiresAt, RememberDevice: stored.RememberDevice}}
		if cont.Fallback != "" {
			candidates = append(candidates, stored)
		}
	}

	result := model.ErrTicketInvalid
	for i, candidate := range candidates {
		valid, err := t.ValidateBeforeUse(ctx, candidate)
		switch {
		case errors.Is(err, model.ErrTicketExpired):
			if i == 0 {
				result = model.ErrTicketExpired
			}
			continue
		case err != nil:
			return model.TwoFactorTicket{}, err
		case !valid:
			continue
		}

		if cont.FromURL && i == 0 {
			return t.Issue(ctx, candidate.Value, candidate.ExpiresAt, candidate.RememberDevice)
		}
		return candidate, nil
	}

	return model.TwoFactorTicket{}, result
}

// Redeem exchanges a one-time code and the ticket for a session. The local
// deadline is enforced before any network call. On failure the ticket is
// left in place so the user may retry until it expires.
func (t *TwoFactor) Redeem(ctx context.Context, otp string, ticket model.TwoFactorTicket, rememberDevice bool, deviceID string) (model.Session, error) {
	if ticket.Value == "" {
		return model.Session{}, model.ErrNoTicket
	}
	if ticket.Expired(t.clock.Now()) {
		return model.Session{}, model.ErrTicketExpired
	}
	if err := t.validator.OTP(otp); err != nil {
		return model.Session{}, err
	}

	valid, err := t.ValidateBeforeUse(ctx, ticket)
	if err != nil {
		return model.Session{}, err
	}
	if !valid {
		return model.Session{}, model.ErrTicketInvalid
	}

	resp, err := t.api.VerifyOTP(ctx, model.VerifyOTPRequest{
		OTP:            otp,
		TempToken:      ticket.Value,
		RememberDevice: rememberDevice,
		DeviceID:       deviceID,
	})
	if err != nil {
		t.logger.Info("TwoFactor: code rejected", "error", err.Error())
		return model.Session{}, err
	}
	session, ok := resp.Session()
	if !ok {
		return model.Session{}, &model.APIError{Kind: model.KindUnknown, Err: model.ErrMalformedResponse}
	}

	if err := t.finalizer.FinalizeSession(ctx, session.Token, *session.User); err != nil {
		return model.Session{}, fmt.Errorf("failed to finalize session: %w", err)
	}
	if err := t.Clear(ctx); err != nil {
		t.logger.Warn("TwoFactor: failed to clear redeemed ticket", "error", err.Error())
	}

	t.logger.Info("TwoFactor: ticket redeemed", "user_id", session.User.ID)
	return session, nil
}

func (t *TwoFactor) forget(ctx context.Context, value string) error {
	stored, ok, err := t.Current(ctx)
	if err != nil {
		return err
	}
	if ok && stored.Value == value {
		return t.Clear(ctx)
	}
	return nil
}
