// Package countdown derives remaining time from absolute deadlines and
// re-evaluates it on a clock, so displayed values never drift across
// suspension or slow callbacks.
package countdown

import (
	"fmt"
	"sync"
	"time"

	"github.com/dtroode/jobboard-client/internal/clock"
)

// Remaining returns the time left until expiresAt, never negative.
func Remaining(now, expiresAt time.Time) time.Duration {
	d := expiresAt.Sub(now)
	if d < 0 {
		return 0
	}
	return d
}

// Seconds returns Remaining rounded up to whole seconds.
func Seconds(now, expiresAt time.Time) int {
	d := Remaining(now, expiresAt)
	secs := int(d / time.Second)
	if d%time.Second != 0 {
		secs++
	}
	return secs
}

// Format renders seconds as MM:SS.
func Format(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%02d:%02d", seconds/60, seconds%60)
}

// Countdown ticks once per displayed second until its deadline, then fires
// its expiry callback exactly once.
type Countdown struct {
	clock     clock.Clock
	expiresAt time.Time
	onTick    func(remaining int)
	onExpire  func()

	mu      sync.Mutex
	timer   clock.Timer
	stopped bool
	expire  sync.Once
}

// Start begins a countdown towards expiresAt. The first evaluation happens
// synchronously, so callers must not hold locks the callbacks need.
// Either callback may be nil.
func Start(c clock.Clock, expiresAt time.Time, onTick func(remaining int), onExpire func()) *Countdown {
	cd := &Countdown{
		clock:     c,
		expiresAt: expiresAt,
		onTick:    onTick,
		onExpire:  onExpire,
	}
	cd.evaluate()
	return cd
}

// ExpiresAt returns the absolute deadline.
func (cd *Countdown) ExpiresAt() time.Time {
	return cd.expiresAt
}

// Stop cancels any pending evaluation. A stopped countdown never fires again.
func (cd *Countdown) Stop() {
	if cd == nil {
		return
	}
	cd.mu.Lock()
	defer cd.mu.Unlock()

	cd.stopped = true
	if cd.timer != nil {
		cd.timer.Stop()
		cd.timer = nil
	}
}

func (cd *Countdown) evaluate() {
	cd.mu.Lock()
	if cd.stopped {
		cd.mu.Unlock()
		return
	}
	now := cd.clock.Now()
	left := Remaining(now, cd.expiresAt)
	if left == 0 {
		cd.stopped = true
		cd.timer = nil
		cd.mu.Unlock()
		cd.expire.Do(func() {
			if cd.onExpire != nil {
				cd.onExpire()
			}
		})
		return
	}

	// Wake up exactly when the rounded-up second value changes.
	next := left % time.Second
	if next == 0 {
		next = time.Second
	}
	cd.timer = cd.clock.AfterFunc(next, cd.evaluate)
	cd.mu.Unlock()

	if cd.onTick != nil {
		cd.onTick(Seconds(now, cd.expiresAt))
	}
}
