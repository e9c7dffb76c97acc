package service

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/dtroode/jobboard-client/internal/logger"
	"github.com/dtroode/jobboard-client/internal/model"
	"github.com/dtroode/jobboard-client/internal/validate"
)

const (
	oauthCallbackSegment = "oauth-callback"
	tokenParam           = "token"

	messagePasswordReset = "Your password has been reset. Please log in with your new password."
	messageEmailVerified = "Your email address has been verified. Please log in."
	messageResent        = "A new verification code has been sent to your email."
)

// Redirects handles pages reached by redirect: the OAuth return, the
// password reset link and the email verification link.
type Redirects struct {
	api       model.AuthAPI
	store     model.Store
	session   *Session
	validator *validate.Validator
	logger    *logger.Logger
}

func NewRedirects(api model.AuthAPI, store model.Store, session *Session, logger *logger.Logger) *Redirects {
	return &Redirects{
		api:       api,
		store:     store,
		session:   session,
		validator: session.validator,
		logger:    logger,
	}
}

// OAuthToken extracts the primary token from an OAuth return URL, either
// the path segment after /oauth-callback/ or the token query parameter.
func OAuthToken(returnURL string) (string, bool) {
	u, err := url.Parse(returnURL)
	if err != nil {
		return "", false
	}
	if tok := u.Query().Get(tokenParam); tok != "" {
		return tok, true
	}

	segments := strings.Split(strings.Trim(u.EscapedPath(), "/"), "/")
	for i, seg := range segments {
		if seg != oauthCallbackSegment || i+1 >= len(segments) {
			continue
		}
		tok, err := url.PathUnescape(segments[i+1])
		if err != nil || tok == "" {
			return "", false
		}
		return tok, true
	}
	return "", false
}

// CaptureOAuth completes an OAuth login. Any existing session is ended,
// then the token is persisted and exchanged for the user. If that fails the
// token is purged.
func (r *Redirects) CaptureOAuth(ctx context.Context, returnURL string) (model.User, error) {
	tok, ok := OAuthToken(returnURL)
	if !ok {
		r.session.setMessage(model.ErrMissingOAuthToken.Error())
		return model.User{}, model.ErrMissingOAuthToken
	}

	if err := r.session.purge(ctx); err != nil {
		return model.User{}, err
	}
	r.session.stopTicketTimers()
	r.session.becomeAnonymous("")

	if err := r.store.Set(ctx, model.ScopeDurable, model.KeyToken, tok); err != nil {
		return model.User{}, fmt.Errorf("failed to persist oauth token: %w", err)
	}

	user, err := r.api.Me(ctx, tok)
	if err != nil {
		r.logger.Warn("Redirects: oauth identity lookup failed", "error", err.Error())
		if perr := r.session.purge(ctx); perr != nil {
			r.logger.Warn("Redirects: failed to purge oauth token", "error", perr.Error())
		}
		r.session.setMessage(model.UserMessage(err))
		return model.User{}, fmt.Errorf("%w: %w", model.ErrOAuthIdentity, err)
	}

	if err := r.session.FinalizeSession(ctx, tok, user); err != nil {
		return model.User{}, err
	}
	if err := r.session.lockout.RecordSuccess(ctx); err != nil {
		r.logger.Warn("Redirects: failed to reset lockout", "error", err.Error())
	}
	r.session.clearLockout()
	return user, nil
}

func linkToken(pageURL string) string {
	u, err := url.Parse(pageURL)
	if err != nil {
		return ""
	}
	return u.Query().Get(tokenParam)
}

// OpenPasswordReset gates the reset form. A link without a token is
// refused without any network call.
func (r *Redirects) OpenPasswordReset(ctx context.Context, pageURL string) (string, error) {
	tok := linkToken(pageURL)
	if tok == "" {
		return "", model.ErrResetForbidden
	}

	ok, err := r.api.VerifyResetToken(ctx, tok)
	if err != nil {
		return "", fmt.Errorf("failed to verify reset token: %w", err)
	}
	if !ok {
		return "", model.ErrResetTokenInvalid
	}
	return tok, nil
}

// SubmitPasswordReset sets a new password. Local checks run first; a
// backend rejection is reported as model.ErrResetTokenRejected.
func (r *Redirects) SubmitPasswordReset(ctx context.Context, tok, password, confirm string) (string, error) {
	if tok == "" {
		return "", model.ErrResetForbidden
	}
	if err := r.validator.ResetPassword(password, confirm); err != nil {
		return "", err
	}

	resp, err := r.api.ResetPassword(ctx, tok, password)
	if err != nil {
		if model.KindOf(err) == model.KindValidation {
			return "", fmt.Errorf("%w: %w", model.ErrResetTokenRejected, err)
		}
		return "", err
	}

	msg := resp.Message
	if msg == "" {
		msg = messagePasswordReset
	}
	r.logger.Info("Redirects: password reset")
	return msg, nil
}

// OpenEmailVerification gates the email verification form the same way
// as the reset form.
func (r *Redirects) OpenEmailVerification(ctx context.Context, pageURL string) (string, error) {
	tok := linkToken(pageURL)
	if tok == "" {
		return "", model.ErrVerifyForbidden
	}

	ok, err := r.api.VerifyEmailToken(ctx, tok)
	if err != nil {
		return "", fmt.Errorf("failed to verify email token: %w", err)
	}
	if !ok {
		return "", model.ErrVerifyTokenInvalid
	}
	return tok, nil
}

// SubmitEmailVerification confirms the address with a one-time code. A
// response carrying a session logs the user in.
func (r *Redirects) SubmitEmailVerification(ctx context.Context, tok, otp string) (Result, error) {
	if tok == "" {
		return Result{}, model.ErrVerifyForbidden
	}
	if err := r.validator.OTP(otp); err != nil {
		return Result{Outcome: OutcomeFailed, Message: model.UserMessage(err)}, err
	}

	resp, err := r.api.VerifyEmail(ctx, otp, tok)
	if err != nil {
		return Result{Outcome: OutcomeFailed, Message: model.UserMessage(err)}, err
	}

	r.session.update(func() bool {
		r.session.emailVerificationRequired = false
		return true
	})
	if session, ok := resp.Session(); ok {
		if err := r.session.FinalizeSession(ctx, session.Token, *session.User); err != nil {
			return Result{}, err
		}
		return Result{Outcome: OutcomeAuthenticated, User: session.User}, nil
	}

	msg := resp.Message
	if msg == "" {
		msg = messageEmailVerified
	}
	return Result{Outcome: OutcomeRegistered, Message: msg}, nil
}

// ResendEmailVerification asks for a new verification code.
func (r *Redirects) ResendEmailVerification(ctx context.Context, email string) (string, error) {
	if err := r.validator.Email(email); err != nil {
		return "", err
	}

	resp, err := r.api.ResendEmailVerification(ctx, email)
	if err != nil {
		return "", err
	}
	if resp.Message != "" {
		return resp.Message, nil
	}
	return messageResent, nil
}
