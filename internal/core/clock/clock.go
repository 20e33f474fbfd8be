package clock

import "time"

// Frame is the outcome of one clock tick.
type Frame struct {
	Now time.Time
	// Real is the wall-clock time since the previous tick after clamping.
	Real time.Duration
	// Delta is Real scaled by the speed multiplier, in seconds.
	Delta   float64
	Clamped bool
}

// Clock converts wall-clock time between frames into simulated seconds.
type Clock struct {
	now      func() time.Time
	maxDelta time.Duration
	last     time.Time
}

type Option func(*Clock)

// WithNow replaces the time source. Used by tests.
func WithNow(now func() time.Time) Option {
	return func(c *Clock) { c.now = now }
}

// New creates a clock that never reports more than maxDelta per frame.
// A non-positive maxDelta disables clamping.
func New(maxDelta time.Duration, opts ...Option) *Clock {
	c := &Clock{now: time.Now, maxDelta: maxDelta}
	for _, opt := range opts {
		opt(c)
	}
	c.last = c.now()
	return c
}

// Tick measures the time since the previous tick and scales it by speed.
func (c *Clock) Tick(speed float64) Frame {
	now := c.now()
	gap := now.Sub(c.last)
	c.last = now

	f := Frame{Now: now, Real: gap}
	if gap < 0 {
		f.Real = 0
	}
	if c.maxDelta > 0 && f.Real > c.maxDelta {
		f.Real, f.Clamped = c.maxDelta, true
	}
	if speed > 0 {
		f.Delta = f.Real.Seconds() * speed
	}
	return f
}

// Now reads the clock's time source.
func (c *Clock) Now() time.Time { return c.now() }

// Restart drops the time accumulated since the previous tick.
func (c *Clock) Restart() { c.last = c.now() }

// Interval is a soft timer checked once per frame. It fires at most once
// per check and never catches up on missed periods.
type Interval struct {
	period time.Duration
	last   time.Time
}

func NewInterval(period time.Duration, start time.Time) *Interval {
	return &Interval{period: period, last: start}
}

// Due reports whether at least one period passed since the last firing and,
// if so, restarts the period at now.
func (i *Interval) Due(now time.Time) bool {
	if now.Sub(i.last) < i.period {
		return false
	}
	i.last = now
	return true
}

// Since is the time elapsed between the last firing and now.
func (i *Interval) Since(now time.Time) time.Duration { return now.Sub(i.last) }

// Reset restarts the period at now.
func (i *Interval) Reset(now time.Time) { i.last = now }
