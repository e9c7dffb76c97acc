package service

import (
	"context"
	"errors"
	"time"

	"github.com/dtroode/jobboard-client/internal/countdown"
	"github.com/dtroode/jobboard-client/internal/model"
)

// PrepareTwoFactor resumes the redemption step, preferring a ticket handed
// over in a URL. The ticket becomes Ready only after a live check passes;
// an expired or rejected ticket enters a terminal status that returns to
// login after a short delay.
func (s *Session) PrepareTwoFactor(ctx context.Context, urlValue string, urlExpiresAt time.Time) (model.TwoFactorTicket, error) {
	if !s.begin() {
		return model.TwoFactorTicket{}, model.ErrInFlight
	}
	defer s.end()

	s.stopTicketTimers()
	s.update(func() bool {
		s.state = model.StatePendingTwoFactor
		s.ticket = model.TicketView{Status: model.TicketChecking}
		s.message = ""
		return true
	})

	ticket, err := s.twoFactor.Resume(ctx, urlValue, urlExpiresAt)
	switch {
	case errors.Is(err, model.ErrTicketExpired):
		s.enterTerminal(model.TicketExpired)
		return model.TwoFactorTicket{}, err
	case errors.Is(err, model.ErrTicketInvalid):
		s.enterTerminal(model.TicketInvalid)
		return model.TwoFactorTicket{}, err
	case err != nil:
		s.logger.Warn("Session: ticket check failed", "error", err.Error())
		s.setMessage(model.UserMessage(err))
		return model.TwoFactorTicket{}, err
	}

	s.update(func() bool {
		s.ticket = model.TicketView{
			Status:           model.TicketReady,
			ExpiresAt:        ticket.ExpiresAt,
			RemainingSeconds: countdown.Seconds(s.clock.Now(), ticket.ExpiresAt),
		}
		return true
	})
	s.startTicketCountdown(ticket.ExpiresAt)
	return ticket, nil
}

// SubmitOTP redeems the Ready ticket with a one-time code. A rejected code
// keeps the ticket so the user may retry until it expires.
func (s *Session) SubmitOTP(ctx context.Context, code string, rememberDevice bool) (model.User, error) {
	s.mu.Lock()
	status := s.ticket.Status
	s.mu.Unlock()
	if status != model.TicketReady {
		return model.User{}, model.ErrTicketNotReady
	}

	if !s.begin() {
		return model.User{}, model.ErrInFlight
	}
	defer s.end()

	ticket, ok, err := s.twoFactor.Current(ctx)
	if err != nil {
		return model.User{}, err
	}
	if !ok {
		s.enterTerminal(model.TicketInvalid)
		return model.User{}, model.ErrTicketInvalid
	}

	deviceID, err := s.device.ID(ctx)
	if err != nil {
		return model.User{}, err
	}

	session, err := s.twoFactor.Redeem(ctx, code, ticket, rememberDevice || ticket.RememberDevice, deviceID)
	switch {
	case errors.Is(err, model.ErrTicketExpired):
		s.enterTerminal(model.TicketExpired)
		return model.User{}, err
	case errors.Is(err, model.ErrTicketInvalid):
		s.enterTerminal(model.TicketInvalid)
		return model.User{}, err
	case err != nil:
		s.setMessage(model.UserMessage(err))
		return model.User{}, err
	}

	if err := s.lockout.RecordSuccess(ctx); err != nil {
		s.logger.Warn("Session: failed to reset lockout", "error", err.Error())
	}
	s.clearLockout()
	return *session.User, nil
}

// CancelTwoFactor abandons the pending step and returns to login.
func (s *Session) CancelTwoFactor(ctx context.Context) error {
	s.stopTicketTimers()
	err := s.twoFactor.Clear(ctx)
	s.update(func() bool {
		if s.state == model.StatePendingTwoFactor {
			s.state = model.StateAnonymous
		}
		s.ticket = model.TicketView{}
		return true
	})
	return err
}

func (s *Session) enterPendingTwoFactor(ticket model.TwoFactorTicket, msg string) {
	s.stopTicketTimers()
	s.update(func() bool {
		s.state = model.StatePendingTwoFactor
		s.session = model.Session{}
		s.message = msg
		s.ticket = model.TicketView{
			Status:           model.TicketChecking,
			ExpiresAt:        ticket.ExpiresAt,
			RemainingSeconds: countdown.Seconds(s.clock.Now(), ticket.ExpiresAt),
		}
		return true
	})
	s.startTicketCountdown(ticket.ExpiresAt)
}

func (s *Session) startTicketCountdown(expiresAt time.Time) {
	s.mu.Lock()
	s.ticketGen++
	gen := s.ticketGen
	old := s.ticketTimer
	s.ticketTimer = nil
	s.mu.Unlock()
	old.Stop()

	cd := countdown.Start(s.clock, expiresAt, func(remaining int) {
		s.update(func() bool {
			if s.ticketGen != gen {
				return false
			}
			s.ticket.RemainingSeconds = remaining
			return true
		})
	}, func() {
		s.mu.Lock()
		current := s.ticketGen == gen
		s.mu.Unlock()
		if current {
			s.enterTerminal(model.TicketExpired)
		}
	})

	s.mu.Lock()
	if s.ticketGen != gen {
		s.mu.Unlock()
		cd.Stop()
		return
	}
	s.ticketTimer = cd
	s.mu.Unlock()
}

// enterTerminal moves the pending step to a terminal status once and
// schedules the return to login.
func (s *Session) enterTerminal(status model.TicketStatus) {
	delay, msg := s.invalidRedirect, messageTicketInvalid
	if status == model.TicketExpired {
		delay, msg = s.expiredRedirect, messageTicketExpired
	}

	var (
		entered bool
		old     *countdown.Countdown
		gen     uint64
	)
	redirectAt := s.clock.Now().Add(delay)
	s.update(func() bool {
		if s.ticket.Status.Terminal() {
			return false
		}
		s.ticketGen++
		old = s.ticketTimer
		s.ticketTimer = nil
		s.redirectGen++
		gen = s.redirectGen

		s.state = model.StatePendingTwoFactor
		s.ticket.Status = status
		s.ticket.RemainingSeconds = 0
		s.ticket.RedirectIn = countdown.Seconds(s.clock.Now(), redirectAt)
		s.message = msg
		entered = true
		return true
	})
	old.Stop()
	if !entered {
		return
	}

	s.logger.Info("Session: two-factor step ended", "status", status.String())
	cd := countdown.Start(s.clock, redirectAt, func(remaining int) {
		s.update(func() bool {
			if s.redirectGen != gen {
				return false
			}
			s.ticket.RedirectIn = remaining
			return true
		})
	}, func() {
		s.returnToLogin(gen)
	})

	s.mu.Lock()
	if s.redirectGen != gen {
		s.mu.Unlock()
		cd.Stop()
		return
	}
	s.redirectTimer = cd
	s.mu.Unlock()
}

// returnToLogin clears the ephemeral ticket only. Durable state is untouched.
func (s *Session) returnToLogin(gen uint64) {
	s.mu.Lock()
	current := s.redirectGen == gen
	s.mu.Unlock()
	if !current {
		return
	}

	if err := s.twoFactor.Clear(context.Background()); err != nil {
		s.logger.Warn("Session: failed to clear ticket", "error", err.Error())
	}
	s.update(func() bool {
		if s.redirectGen != gen {
			return false
		}
		s.redirectTimer = nil
		if s.state == model.StatePendingTwoFactor {
			s.state = model.StateAnonymous
		}
		s.ticket = model.TicketView{}
		return true
	})
}

func (s *Session) stopTicketTimers() {
	s.mu.Lock()
	s.ticketGen++
	s.redirectGen++
	timers := []*countdown.Countdown{s.ticketTimer, s.redirectTimer}
	s.ticketTimer, s.redirectTimer = nil, nil
	s.mu.Unlock()

	for _, t := range timers {
		t.Stop()
	}
}
