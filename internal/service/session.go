package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dtroode/jobboard-client/internal/clock"
	"github.com/dtroode/jobboard-client/internal/config"
	"github.com/dtroode/jobboard-client/internal/countdown"
	"github.com/dtroode/jobboard-client/internal/logger"
	"github.com/dtroode/jobboard-client/internal/model"
	"github.com/dtroode/jobboard-client/internal/token"
	"github.com/dtroode/jobboard-client/internal/validate"
)

const (
	messageEmailVerification = "Please verify your email address before logging in."
	messageTicketExpired     = "Your verification session has expired. Please log in again."
	messageTicketInvalid     = "This verification session is no longer valid. Please log in again."
)

func lockedMessage(seconds int) string {
	return "Too many failed login attempts. Try again in " + countdown.Format(seconds)
}

// Outcome is the classified result of a login-like submission.
type Outcome int

const (
	OutcomeFailed Outcome = iota
	OutcomeAuthenticated
	OutcomeTwoFactorRequired
	OutcomeEmailVerificationRequired
	OutcomeLocked
	OutcomeRegistered
)

func (o Outcome) String() string {
	switch o {
	case OutcomeAuthenticated:
		return "authenticated"
	case OutcomeTwoFactorRequired:
		return "two_factor_required"
	case OutcomeEmailVerificationRequired:
		return "email_verification_required"
	case OutcomeLocked:
		return "locked"
	case OutcomeRegistered:
		return "registered"
	default:
		return "failed"
	}
}

// Credentials is a password login attempt.
type Credentials struct {
	Identifier string
	Secret     string
	RememberMe bool
}

// Result describes what a submission led to.
type Result struct {
	Outcome          Outcome
	User             *model.User
	Ticket           model.TwoFactorTicket
	RemainingSeconds int
	Message          string
	// VerificationToken gates the email verification step after registration.
	VerificationToken string
}

// Session is the single owner of authentication state. It is safe for
// concurrent use; observers are notified after every state change with an
// immutable snapshot.
type Session struct {
	api       model.AuthAPI
	store     model.Store
	clock     clock.Clock
	lockout   *Lockout
	twoFactor *TwoFactor
	device    *DeviceIdentity
	tokens    *token.Inspector
	validator *validate.Validator
	logger    *logger.Logger

	expiredRedirect time.Duration
	invalidRedirect time.Duration

	mu                        sync.Mutex
	state                     model.State
	session                   model.Session
	stale                     bool
	inFlight                  bool
	message                   string
	locked                    bool
	lockoutRemaining          int
	emailVerificationRequired bool
	ticket                    model.TicketView
	version                   uint64
	observers                 map[uint64]func(model.Snapshot)
	nextObserver              uint64

	lockoutTimer  *countdown.Countdown
	ticketTimer   *countdown.Countdown
	redirectTimer *countdown.Countdown
	lockoutGen    uint64
	ticketGen     uint64
	redirectGen   uint64
}

// NewSession creates a controller with its lockout tracker, device identity
// and two-factor ticket manager.
func NewSession(api model.AuthAPI, store model.Store, cfg *config.Config, clk clock.Clock, logger *logger.Logger) *Session {
	s := &Session{
		api:             api,
		store:           store,
		clock:           clk,
		tokens:          token.NewInspector(),
		validator:       validate.New(cfg.Password.ResetMinLength),
		logger:          logger,
		expiredRedirect: cfg.TwoFactor.ExpiredRedirect,
		invalidRedirect: cfg.TwoFactor.InvalidRedirect,
		state:           model.StateUnknown,
		observers:       make(map[uint64]func(model.Snapshot)),
	}
	s.lockout = NewLockout(store, clk, cfg.Lockout, logger)
	s.device = NewDeviceIdentity(store, logger)
	s.twoFactor = NewTwoFactor(api, store, clk, cfg.TwoFactor.TicketTTL, s.validator, s, logger)
	return s
}

// Lockout returns the controller's lockout tracker.
func (s *Session) Lockout() *Lockout {
	return s.lockout
}

// TwoFactor returns the controller's ticket manager.
func (s *Session) TwoFactor() *TwoFactor {
	return s.twoFactor
}

// Subscribe registers an observer and returns a function removing it.
func (s *Session) Subscribe(fn func(model.Snapshot)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextObserver
	s.nextObserver++
	s.observers[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.observers, id)
	}
}

// Snapshot returns the current state.
func (s *Session) Snapshot() model.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() model.Snapshot {
	snap := model.Snapshot{
		Version:                   s.version,
		State:                     s.state,
		HasToken:                  s.session.Token != "",
		Stale:                     s.stale,
		InFlight:                  s.inFlight,
		Message:                   s.message,
		Locked:                    s.locked,
		LockoutRemaining:          s.lockoutRemaining,
		EmailVerificationRequired: s.emailVerificationRequired,
		Ticket:                    s.ticket,
	}
	if s.session.User != nil {
		u := *s.session.User
		snap.User = &u
	}
	return snap
}

// update applies fn under the lock and notifies observers when fn reports
// a change.
func (s *Session) update(fn func() bool) {
	s.mu.Lock()
	if !fn() {
		s.mu.Unlock()
		return
	}
	s.version++
	snap := s.snapshotLocked()
	observers := make([]func(model.Snapshot), 0, len(s.observers))
	for _, o := range s.observers {
		observers = append(observers, o)
	}
	s.mu.Unlock()

	for _, o := range observers {
		o(snap)
	}
}

func (s *Session) setMessage(msg string) {
	s.update(func() bool {
		s.message = msg
		return true
	})
}

func (s *Session) begin() bool {
	ok := false
	s.update(func() bool {
		if s.inFlight {
			return false
		}
		s.inFlight = true
		ok = true
		return true
	})
	return ok
}

func (s *Session) end() {
	s.update(func() bool {
		s.inFlight = false
		return true
	})
}

// Hydrate restores the session from durable storage and revalidates it.
// A cached user is adopted before the network call returns. A transient
// revalidation failure keeps the session and marks it stale; the error is
// returned.
func (s *Session) Hydrate(ctx context.Context) error {
	s.update(func() bool {
		s.state = model.StateHydrating
		return true
	})

	if err := s.refreshLockout(ctx); err != nil {
		s.logger.Warn("Session: failed to read lockout state", "error", err.Error())
	}

	tok, ok, err := s.store.Get(ctx, model.ScopeDurable, model.KeyToken)
	if err != nil {
		s.becomeAnonymous("")
		return fmt.Errorf("failed to read token: %w", err)
	}
	if !ok || tok == "" {
		if err := s.store.Delete(ctx, model.ScopeDurable, model.KeyUser); err != nil {
			s.logger.Warn("Session: failed to drop orphaned user", "error", err.Error())
		}
		s.becomeAnonymous("")
		return nil
	}

	if s.tokens.Expired(tok, s.clock.Now()) {
		s.logger.Info("Session: stored token has expired")
		err := s.purge(ctx)
		s.becomeAnonymous(model.MessageSessionEnded)
		return err
	}

	cached := s.cachedUser(ctx)
	if cached != nil {
		s.update(func() bool {
			s.state = model.StateAuthenticated
			s.session = model.Session{Token: tok, User: cached}
			s.stale = false
			return true
		})
	}

	user, err := s.api.Me(ctx, tok)
	if err == nil {
		return s.adoptRevalidated(ctx, tok, user)
	}

	current, cerr := s.tokenCurrent(ctx, tok)
	if cerr != nil {
		s.logger.Warn("Session: failed to recheck token", "error", cerr.Error())
	} else if !current {
		s.logger.Debug("Session: token changed during revalidation, discarding failure", "error", err.Error())
		return nil
	}

	switch model.KindOf(err) {
	case model.KindAuthorization:
		s.logger.Info("Session: stored token rejected", "error", err.Error())
		perr := s.purge(ctx)
		s.becomeAnonymous(model.MessageSessionEnded)
		return perr
	default:
		s.logger.Warn("Session: revalidation failed, keeping cached session", "error", err.Error())
		s.update(func() bool {
			if cached != nil {
				s.state = model.StateAuthenticated
				s.stale = true
			} else {
				// The token stays in storage for the next hydrate.
				s.state = model.StateAnonymous
				s.session = model.Session{}
			}
			s.message = model.UserMessage(err)
			return true
		})
		return err
	}
}

// tokenCurrent reports whether tok is still the stored token. A session
// finalized while a revalidation was in flight replaces it.
func (s *Session) tokenCurrent(ctx context.Context, tok string) (bool, error) {
	current, ok, err := s.store.Get(ctx, model.ScopeDurable, model.KeyToken)
	if err != nil {
		return false, fmt.Errorf("failed to read token: %w", err)
	}
	return ok && current == tok, nil
}

func (s *Session) adoptRevalidated(ctx context.Context, tok string, user model.User) error {
	current, err := s.tokenCurrent(ctx, tok)
	if err != nil {
		return err
	}
	if !current {
		s.logger.Debug("Session: token changed during revalidation, discarding result")
		return nil
	}
	if err := s.saveUser(ctx, user); err != nil {
		return err
	}
	s.update(func() bool {
		s.state = model.StateAuthenticated
		s.session = model.Session{Token: tok, User: &user}
		s.stale = false
		return true
	})
	return nil
}

func (s *Session) cachedUser(ctx context.Context) *model.User {
	raw, ok, err := s.store.Get(ctx, model.ScopeDurable, model.KeyUser)
	if err != nil || !ok {
		return nil
	}
	var user model.User
	if err := json.Unmarshal([]byte(raw), &user); err != nil || !user.Valid() {
		s.logger.Warn("Session: cached user is unreadable")
		return nil
	}
	return &user
}

func (s *Session) saveUser(ctx context.Context, user model.User) error {
	data, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("failed to encode user: %w", err)
	}
	if err := s.store.Set(ctx, model.ScopeDurable, model.KeyUser, string(data)); err != nil {
		return fmt.Errorf("failed to persist user: %w", err)
	}
	return nil
}

func (s *Session) purge(ctx context.Context) error {
	if err := s.store.Delete(ctx, model.ScopeDurable, model.KeyToken, model.KeyUser); err != nil {
		return fmt.Errorf("failed to purge session: %w", err)
	}
	return nil
}

func (s *Session) becomeAnonymous(msg string) {
	s.update(func() bool {
		s.state = model.StateAnonymous
		s.session = model.Session{}
		s.stale = false
		s.ticket = model.TicketView{}
		if msg != "" {
			s.message = msg
		}
		return true
	})
}

// FinalizeSession persists the token and user durably before updating
// memory and notifying observers. If the second write fails the first is
// rolled back.
func (s *Session) FinalizeSession(ctx context.Context, tok string, user model.User) error {
	if tok == "" || !user.Valid() {
		return model.ErrIncompleteSession
	}

	if err := s.saveUser(ctx, user); err != nil {
		return err
	}
	if err := s.store.Set(ctx, model.ScopeDurable, model.KeyToken, tok); err != nil {
		if rerr := s.store.Delete(ctx, model.ScopeDurable, model.KeyUser); rerr != nil {
			err = errors.Join(err, rerr)
		}
		return fmt.Errorf("failed to persist token: %w", err)
	}

	s.stopTicketTimers()
	s.update(func() bool {
		s.state = model.StateAuthenticated
		s.session = model.Session{Token: tok, User: &user}
		s.stale = false
		s.message = ""
		s.emailVerificationRequired = false
		s.ticket = model.TicketView{}
		return true
	})

	s.logger.Info("Session: authenticated", "user_id", user.ID)
	return nil
}

// SubmitCredentials performs a password login.
func (s *Session) SubmitCredentials(ctx context.Context, creds Credentials) (Result, error) {
	if err := s.validator.Login(creds.Identifier, creds.Secret); err != nil {
		msg := model.UserMessage(err)
		s.setMessage(msg)
		return Result{Outcome: OutcomeFailed, Message: msg}, err
	}
	if !s.begin() {
		return Result{}, model.ErrInFlight
	}
	defer s.end()

	now := s.clock.Now()
	status, err := s.lockout.IsBlocked(ctx, now)
	if err != nil {
		return Result{}, err
	}
	if status.Blocked {
		state, err := s.lockout.State(ctx)
		if err != nil {
			return Result{}, err
		}
		s.showLockout(state.LockoutEnd, "")
		return Result{Outcome: OutcomeLocked, RemainingSeconds: status.RemainingSeconds, Message: lockedMessage(status.RemainingSeconds)}, model.ErrLocallyBlocked
	}
	s.clearLockout()

	deviceID, err := s.device.ID(ctx)
	if err != nil {
		return Result{}, err
	}

	resp, err := s.api.Login(ctx, model.LoginRequest{
		Identifier: creds.Identifier,
		Secret:     creds.Secret,
		DeviceID:   deviceID,
		RememberMe: creds.RememberMe,
	})
	if err != nil {
		return s.loginError(ctx, err)
	}
	return s.classifyLogin(ctx, creds, resp)
}

func (s *Session) classifyLogin(ctx context.Context, creds Credentials, resp model.LoginResponse) (Result, error) {
	if remaining, locked := resp.LockoutSeconds(); locked {
		return s.serverLockout(ctx, remaining, resp.Code, resp.Message)
	}

	if resp.RequireTwoFactor {
		ticket, err := s.twoFactor.Issue(ctx, resp.TempToken, resp.TicketExpiry(), creds.RememberMe)
		if err != nil {
			if errors.Is(err, model.ErrTicketInvalid) {
				err = &model.APIError{Kind: model.KindUnknown, Status: resp.StatusCode, Err: model.ErrMalformedResponse}
			}
			s.setMessage(model.UserMessage(err))
			return Result{Outcome: OutcomeFailed, Message: model.UserMessage(err)}, err
		}
		s.rememberUsername(ctx, creds)
		s.enterPendingTwoFactor(ticket, resp.Message)
		return Result{Outcome: OutcomeTwoFactorRequired, Ticket: ticket, Message: resp.Message}, nil
	}

	if resp.RequireEmailVerification {
		msg := resp.Message
		if msg == "" {
			msg = messageEmailVerification
		}
		s.update(func() bool {
			s.state = model.StateAnonymous
			s.emailVerificationRequired = true
			s.message = msg
			return true
		})
		return Result{Outcome: OutcomeEmailVerificationRequired, Message: msg}, nil
	}

	if resp.Success && resp.Token != "" && resp.User.Valid() {
		user := *resp.User
		if err := s.FinalizeSession(ctx, resp.Token, user); err != nil {
			return Result{}, err
		}
		if err := s.lockout.RecordSuccess(ctx); err != nil {
			s.logger.Warn("Session: failed to reset lockout", "error", err.Error())
		}
		s.clearLockout()
		s.rememberUsername(ctx, creds)
		return Result{Outcome: OutcomeAuthenticated, User: &user}, nil
	}

	if resp.Success {
		err := &model.APIError{Kind: model.KindUnknown, Status: resp.StatusCode, Err: model.ErrMalformedResponse}
		s.logger.Warn("Session: login succeeded without a session", "error", err.Error())
		s.setMessage(model.UserMessage(err))
		return Result{Outcome: OutcomeFailed, Message: model.UserMessage(err)}, err
	}

	msg := resp.Message
	if msg == "" {
		msg = model.MessageBadLogin
	}
	return s.recordFailure(ctx, &model.APIError{Kind: model.KindValidation, Status: resp.StatusCode, Code: resp.Code, Message: msg})
}

func (s *Session) loginError(ctx context.Context, err error) (Result, error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.Kind {
		case model.KindLockout:
			return s.serverLockout(ctx, apiErr.LockoutRemaining, apiErr.Code, apiErr.Message)
		case model.KindValidation, model.KindAuthorization:
			if apiErr.Message == "" {
				apiErr.Message = model.MessageBadLogin
			}
			return s.recordFailure(ctx, apiErr)
		}
	}

	msg := model.UserMessage(err)
	s.logger.Warn("Session: login failed", "error", err.Error())
	s.setMessage(msg)
	return Result{Outcome: OutcomeFailed, Message: msg}, err
}

func (s *Session) recordFailure(ctx context.Context, cause *model.APIError) (Result, error) {
	state, err := s.lockout.RecordFailure(ctx)
	if err != nil {
		return Result{}, err
	}

	s.setMessage(cause.Message)
	status := EvaluateLockout(state, s.clock.Now())
	if status.Blocked {
		s.showLockout(state.LockoutEnd, "")
		return Result{Outcome: OutcomeLocked, RemainingSeconds: status.RemainingSeconds, Message: cause.Message}, cause
	}
	return Result{Outcome: OutcomeFailed, Message: cause.Message}, cause
}

func (s *Session) serverLockout(ctx context.Context, remaining int, code, msg string) (Result, error) {
	state, err := s.lockout.ApplyServerLockout(ctx, time.Duration(remaining)*time.Second)
	if err != nil {
		return Result{}, err
	}
	seconds := countdown.Seconds(s.clock.Now(), state.LockoutEnd)
	if msg == "" {
		msg = lockedMessage(seconds)
	}
	s.showLockout(state.LockoutEnd, msg)

	return Result{Outcome: OutcomeLocked, RemainingSeconds: seconds, Message: msg}, &model.APIError{
		Kind:             model.KindLockout,
		Code:             code,
		Message:          msg,
		LockoutRemaining: seconds,
		Err:              model.ErrLockout,
	}
}

func (s *Session) rememberUsername(ctx context.Context, creds Credentials) {
	var err error
	if creds.RememberMe {
		err = s.store.Set(ctx, model.ScopeDurable, model.KeyRememberedUsername, creds.Identifier)
	} else {
		err = s.store.Delete(ctx, model.ScopeDurable, model.KeyRememberedUsername)
	}
	if err != nil {
		s.logger.Warn("Session: failed to update remembered username", "error", err.Error())
	}
}

// Logout clears the session and any pending ticket. The device id and the
// remembered username survive. The controller ends Anonymous even if
// storage fails.
func (s *Session) Logout(ctx context.Context) error {
	s.stopTicketTimers()
	err := errors.Join(s.purge(ctx), s.twoFactor.Clear(ctx))
	s.update(func() bool {
		s.state = model.StateAnonymous
		s.session = model.Session{}
		s.stale = false
		s.message = ""
		s.emailVerificationRequired = false
		s.ticket = model.TicketView{}
		return true
	})
	s.logger.Info("Session: logged out")
	return err
}

// Close stops every live countdown.
func (s *Session) Close() {
	s.mu.Lock()
	timers := []*countdown.Countdown{s.lockoutTimer, s.ticketTimer, s.redirectTimer}
	s.lockoutTimer, s.ticketTimer, s.redirectTimer = nil, nil, nil
	s.lockoutGen++
	s.ticketGen++
	s.redirectGen++
	s.mu.Unlock()

	for _, t := range timers {
		t.Stop()
	}
}

func (s *Session) refreshLockout(ctx context.Context) error {
	now := s.clock.Now()
	status, err := s.lockout.IsBlocked(ctx, now)
	if err != nil {
		return err
	}
	if !status.Blocked {
		s.clearLockout()
		return nil
	}
	state, err := s.lockout.State(ctx)
	if err != nil {
		return err
	}
	s.showLockout(state.LockoutEnd, "")
	return nil
}

// showLockout publishes the lock and counts down to end. An empty msg
// renders the remaining time on every tick.
func (s *Session) showLockout(end time.Time, msg string) {
	s.mu.Lock()
	s.lockoutGen++
	gen := s.lockoutGen
	old := s.lockoutTimer
	s.lockoutTimer = nil
	s.mu.Unlock()
	old.Stop()

	cd := countdown.Start(s.clock, end, func(remaining int) {
		s.update(func() bool {
			if s.lockoutGen != gen {
				return false
			}
			s.locked = true
			s.lockoutRemaining = remaining
			if msg == "" {
				s.message = lockedMessage(remaining)
			} else {
				s.message = msg
			}
			return true
		})
	}, func() {
		s.lockoutElapsed(gen)
	})

	s.mu.Lock()
	if s.lockoutGen != gen {
		s.mu.Unlock()
		cd.Stop()
		return
	}
	s.lockoutTimer = cd
	s.mu.Unlock()
}

func (s *Session) lockoutElapsed(gen uint64) {
	if _, err := s.lockout.IsBlocked(context.Background(), s.clock.Now()); err != nil {
		s.logger.Warn("Session: failed to reset elapsed lockout", "error", err.Error())
	}
	s.update(func() bool {
		if s.lockoutGen != gen {
			return false
		}
		s.locked = false
		s.lockoutRemaining = 0
		s.lockoutTimer = nil
		s.message = ""
		return true
	})
}

func (s *Session) clearLockout() {
	var old *countdown.Countdown
	s.update(func() bool {
		s.lockoutGen++
		old = s.lockoutTimer
		s.lockoutTimer = nil
		if !s.locked {
			return false
		}
		s.locked = false
		s.lockoutRemaining = 0
		s.message = ""
		return true
	})
	old.Stop()
}
