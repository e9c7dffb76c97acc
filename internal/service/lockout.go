package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/dtroode/jobboard-client/internal/clock"
	"github.com/dtroode/jobboard-client/internal/config"
	"github.com/dtroode/jobboard-client/internal/countdown"
	"github.com/dtroode/jobboard-client/internal/logger"
	"github.com/dtroode/jobboard-client/internal/model"
)

// EvaluateLockout decides whether a login attempt may proceed at now.
func EvaluateLockout(state model.LockoutState, now time.Time) model.LockoutStatus {
	if !state.Locked() {
		return model.LockoutStatus{}
	}
	if !now.Before(state.LockoutEnd) {
		return model.LockoutStatus{Expired: true}
	}
	return model.LockoutStatus{
		Blocked:          true,
		RemainingSeconds: countdown.Seconds(now, state.LockoutEnd),
	}
}

// Lockout is the client-side brute-force tracker. It is advisory only: the
// backend is the authority and its lockout signal replaces local state.
// Concurrent clients sharing a store race on the counter; last write wins.
type Lockout struct {
	store     model.Store
	clock     clock.Clock
	threshold int
	window    time.Duration
	logger    *logger.Logger
}

func NewLockout(store model.Store, clk clock.Clock, cfg config.Lockout, logger *logger.Logger) *Lockout {
	return &Lockout{
		store:     store,
		clock:     clk,
		threshold: cfg.Threshold,
		window:    cfg.Window,
		logger:    logger,
	}
}

// State reads the persisted lockout state. Unparseable values read as unset.
func (l *Lockout) State(ctx context.Context) (model.LockoutState, error) {
	var state model.LockoutState

	raw, ok, err := l.store.Get(ctx, model.ScopeDurable, model.KeyLoginAttempts)
	if err != nil {
		return state, fmt.Errorf("failed to read login attempts: %w", err)
	}
	if ok {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			state.Attempts = n
		}
	}

	raw, ok, err = l.store.Get(ctx, model.ScopeDurable, model.KeyLockoutEnd)
	if err != nil {
		return state, fmt.Errorf("failed to read lockout end: %w", err)
	}
	if ok {
		if ms, err := strconv.ParseInt(raw, 10, 64); err == nil && ms > 0 {
			state.LockoutEnd = time.UnixMilli(ms)
		}
	}

	return state, nil
}

// IsBlocked evaluates the persisted state at now. Observing an elapsed
// lockout resets the state.
func (l *Lockout) IsBlocked(ctx context.Context, now time.Time) (model.LockoutStatus, error) {
	state, err := l.State(ctx)
	if err != nil {
		return model.LockoutStatus{}, err
	}

	status := EvaluateLockout(state, now)
	if status.Expired {
		l.logger.Debug("Lockout: window elapsed, resetting", "attempts", state.Attempts)
		if err := l.Reset(ctx); err != nil {
			return status, err
		}
	}
	return status, nil
}

// RecordFailure counts a classified failed login and arms the lockout once
// the threshold is reached.
func (l *Lockout) RecordFailure(ctx context.Context) (model.LockoutState, error) {
	now := l.clock.Now()
	state, err := l.State(ctx)
	if err != nil {
		return state, err
	}
	if state.Locked() && !now.Before(state.LockoutEnd) {
		state = model.LockoutState{}
	}

	state.Attempts++
	if state.Attempts >= l.threshold && !state.Locked() {
		state.LockoutEnd = now.Add(l.window)
		l.logger.Info("Lockout: threshold reached",
			"attempts", state.Attempts,
			"until", state.LockoutEnd)
	}

	if err := l.save(ctx, state); err != nil {
		return state, err
	}
	return state, nil
}

// ApplyServerLockout replaces local state with a backend-reported lockout.
// A lock signal without a duration falls back to the local window.
func (l *Lockout) ApplyServerLockout(ctx context.Context, remaining time.Duration) (model.LockoutState, error) {
	if remaining <= 0 {
		remaining = l.window
	}

	state, err := l.State(ctx)
	if err != nil {
		return state, err
	}
	state.Attempts = max(state.Attempts, l.threshold)
	state.LockoutEnd = l.clock.Now().Add(remaining)

	l.logger.Info("Lockout: backend reported account lock", "remaining", remaining)
	if err := l.save(ctx, state); err != nil {
		return state, err
	}
	return state, nil
}

// Reset clears both counter fields.
func (l *Lockout) Reset(ctx context.Context) error {
	if err := l.store.Delete(ctx, model.ScopeDurable, model.KeyLoginAttempts, model.KeyLockoutEnd); err != nil {
		return fmt.Errorf("failed to reset lockout: %w", err)
	}
	return nil
}

// RecordSuccess clears the counter after a successful login.
func (l *Lockout) RecordSuccess(ctx context.Context) error {
	return l.Reset(ctx)
}

func (l *Lockout) save(ctx context.Context, state model.LockoutState) error {
	err := l.store.Set(ctx, model.ScopeDurable, model.KeyLoginAttempts, strconv.Itoa(state.Attempts))
	if state.Locked() {
		err = errors.Join(err, l.store.Set(ctx, model.ScopeDurable, model.KeyLockoutEnd, strconv.FormatInt(state.LockoutEnd.UnixMilli(), 10)))
	} else {
		err = errors.Join(err, l.store.Delete(ctx, model.ScopeDurable, model.KeyLockoutEnd))
	}
	if err != nil {
		return fmt.Errorf("failed to persist lockout state: %w", err)
	}
	return nil
}
