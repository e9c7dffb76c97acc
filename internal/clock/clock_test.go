package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFake_AdvanceFiresDueTimersInOrder(t *testing.T) {
	start := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	c := NewFake(start)

	var fired []string
	c.AfterFunc(2*time.Second, func() { fired = append(fired, "second") })
	c.AfterFunc(time.Second, func() { fired = append(fired, "first") })
	c.AfterFunc(time.Minute, func() { fired = append(fired, "late") })

	c.Advance(3 * time.Second)

	assert.Equal(t, []string{"first", "second"}, fired)
	assert.Equal(t, start.Add(3*time.Second), c.Now())
	assert.Equal(t, 1, c.Pending())
}

func TestFake_TimerRearmedFromCallback(t *testing.T) {
	c := NewFake(time.Unix(0, 0))

	ticks := 0
	var tick func()
	tick = func() {
		ticks++
		c.AfterFunc(time.Second, tick)
	}
	c.AfterFunc(time.Second, tick)

	c.Advance(5 * time.Second)

	assert.Equal(t, 5, ticks)
}

func TestFake_StopPreventsFiring(t *testing.T) {
	c := NewFake(time.Unix(0, 0))

	fired := false
	timer := c.AfterFunc(time.Second, func() { fired = true })

	require.True(t, timer.Stop())
	assert.False(t, timer.Stop())

	c.Advance(time.Minute)
	assert.False(t, fired)
	assert.Equal(t, 0, c.Pending())
}

func TestFake_SetDoesNotFire(t *testing.T) {
	c := NewFake(time.Unix(0, 0))

	fired := false
	c.AfterFunc(time.Second, func() { fired = true })
	c.Set(time.Unix(100, 0))

	assert.False(t, fired)
	assert.Equal(t, time.Unix(100, 0), c.Now())
}

func TestReal_Now(t *testing.T) {
	before := time.Now()
	now := Real().Now()

	assert.False(t, now.Before(before))
}
