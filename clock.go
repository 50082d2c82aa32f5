package particles

import (
	"time"
)

// Clock measures the wall time between driver ticks.
type Clock struct {
	Time time.Time
	Dt   time.Duration

	// MaxStep caps a single tick (e.g. after the window was dragged). Zero disables the cap.
	MaxStep time.Duration

	now     func() time.Time
	started bool
}

func NewClock(maxStep time.Duration) *Clock {
	return &Clock{MaxStep: maxStep, now: time.Now}
}

// Tick advances the clock and returns the elapsed seconds. The first tick returns 0.
func (c *Clock) Tick() float32 {
	if c.now == nil {
		c.now = time.Now
	}
	now := c.now()
	if !c.started {
		c.started = true
		c.Time = now
		c.Dt = 0
		return 0
	}

	c.Dt = now.Sub(c.Time)
	c.Time = now
	if c.Dt < 0 {
		c.Dt = 0
	}
	if c.MaxStep > 0 && c.Dt > c.MaxStep {
		c.Dt = c.MaxStep
	}
	return float32(c.Dt.Seconds())
}
