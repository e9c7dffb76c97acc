package service

import (
	"context"
	"fmt"

	"github.com/dtroode/jobboard-client/internal/model"
	"github.com/dtroode/jobboard-client/internal/validate"
)

const (
	messageRegistered   = "Registration successful. Please log in."
	messageResetSent    = "If an account exists for this email, a password reset link has been sent."
	messageTwoFactorOn  = "Two-factor authentication enabled."
	messageTwoFactorOff = "Two-factor authentication disabled."
)

// Register creates an account. Depending on the backend it logs the user in
// at once, asks for email verification, or asks the user to log in.
func (s *Session) Register(ctx context.Context, form validate.RegisterForm) (Result, error) {
	if err := s.validator.Register(form); err != nil {
		msg := model.UserMessage(err)
		s.setMessage(msg)
		return Result{Outcome: OutcomeFailed, Message: msg}, err
	}
	if !s.begin() {
		return Result{}, model.ErrInFlight
	}
	defer s.end()

	resp, err := s.api.Register(ctx, model.RegisterRequest{
		Username: form.Username,
		Email:    form.Email,
		Password: form.Password,
	})
	if err != nil {
		msg := model.UserMessage(err)
		s.setMessage(msg)
		return Result{Outcome: OutcomeFailed, Message: msg}, err
	}

	if session, ok := resp.Session(); ok {
		if err := s.FinalizeSession(ctx, session.Token, *session.User); err != nil {
			return Result{}, err
		}
		return Result{Outcome: OutcomeAuthenticated, User: session.User}, nil
	}

	if resp.RequireEmailVerification {
		msg := resp.Message
		if msg == "" {
			msg = messageEmailVerification
		}
		s.update(func() bool {
			s.emailVerificationRequired = true
			s.message = msg
			return true
		})
		return Result{Outcome: OutcomeEmailVerificationRequired, Message: msg, VerificationToken: resp.TempToken}, nil
	}

	msg := resp.Message
	if msg == "" {
		msg = messageRegistered
	}
	s.setMessage(msg)
	return Result{Outcome: OutcomeRegistered, Message: msg}, nil
}

// ForgotPassword requests a reset link for email.
func (s *Session) ForgotPassword(ctx context.Context, email string) (string, error) {
	if err := s.validator.Email(email); err != nil {
		s.setMessage(model.UserMessage(err))
		return "", err
	}
	if !s.begin() {
		return "", model.ErrInFlight
	}
	defer s.end()

	resp, err := s.api.ForgotPassword(ctx, email)
	if err != nil {
		s.setMessage(model.UserMessage(err))
		return "", err
	}

	msg := resp.Message
	if msg == "" {
		msg = messageResetSent
	}
	s.setMessage(msg)
	return msg, nil
}

// SetTwoFactor turns two-factor login on or off for the logged-in account
// and refreshes the cached user. A rejected bearer ends the session.
func (s *Session) SetTwoFactor(ctx context.Context, enable bool) (model.User, error) {
	s.mu.Lock()
	tok, user := s.session.Token, s.session.User
	s.mu.Unlock()
	if tok == "" || !user.Valid() {
		return model.User{}, model.ErrNotAuthenticated
	}

	if !s.begin() {
		return model.User{}, model.ErrInFlight
	}
	defer s.end()

	resp, err := s.api.ToggleTwoFactor(ctx, tok, enable)
	if err != nil {
		if model.KindOf(err) == model.KindAuthorization {
			s.logger.Info("Session: token rejected while updating two-factor settings")
			perr := s.purge(ctx)
			s.becomeAnonymous(model.MessageSessionEnded)
			if perr != nil {
				s.logger.Warn("Session: failed to purge session", "error", perr.Error())
			}
			return model.User{}, err
		}
		s.setMessage(model.UserMessage(err))
		return model.User{}, err
	}

	updated := *user
	updated.TwoFactorEnabled = resp.TwoFactorEnabled
	if err := s.saveUser(ctx, updated); err != nil {
		return model.User{}, fmt.Errorf("failed to update cached user: %w", err)
	}

	msg := resp.Message
	if msg == "" {
		msg = messageTwoFactorOff
		if updated.TwoFactorEnabled {
			msg = messageTwoFactorOn
		}
	}
	s.update(func() bool {
		if s.session.Token != tok {
			return false
		}
		s.session.User = &updated
		s.message = msg
		return true
	})
	return updated, nil
}

// RememberedUsername returns the identifier saved by a remember-me login.
func (s *Session) RememberedUsername(ctx context.Context) (string, error) {
	v, _, err := s.store.Get(ctx, model.ScopeDurable, model.KeyRememberedUsername)
	if err != nil {
		return "", fmt.Errorf("failed to read remembered username: %w", err)
	}
	return v, nil
}

// GoogleAuthURL returns the entry point of the OAuth login.
func (s *Session) GoogleAuthURL() string {
	return s.api.GoogleAuthURL()
}
