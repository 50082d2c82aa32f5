package particles

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeNow struct{ t time.Time }

func (f *fakeNow) now() time.Time { return f.t }

func TestClockTick(t *testing.T) {
	f := &fakeNow{t: time.Unix(1000, 0)}
	c := NewClock(0)
	c.now = f.now

	assert.Zero(t, c.Tick(), "first tick has no previous frame")

	f.t = f.t.Add(16 * time.Millisecond)
	assert.InDelta(t, 0.016, c.Tick(), 1e-6)
	assert.Equal(t, 16*time.Millisecond, c.Dt)

	f.t = f.t.Add(-time.Second)
	assert.Zero(t, c.Tick(), "a clock step backwards yields dt 0")

	f.t = f.t.Add(3 * time.Second)
	assert.InDelta(t, 3.0, c.Tick(), 1e-6, "no cap when MaxStep is zero")
}

func TestClockMaxStep(t *testing.T) {
	f := &fakeNow{t: time.Unix(1000, 0)}
	c := NewClock(50 * time.Millisecond)
	c.now = f.now
	c.Tick()

	f.t = f.t.Add(2 * time.Second)
	assert.InDelta(t, 0.05, c.Tick(), 1e-6)
	assert.Equal(t, 50*time.Millisecond, c.Dt)
	assert.Equal(t, f.t, c.Time)
}
