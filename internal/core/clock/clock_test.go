package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeTime struct{ t time.Time }

func (f *fakeTime) now() time.Time          { return f.t }
func (f *fakeTime) advance(d time.Duration) { f.t = f.t.Add(d) }

func TestTickScalesBySpeed(t *testing.T) {
	ft := &fakeTime{t: time.Unix(100, 0)}
	c := New(100*time.Millisecond, WithNow(ft.now))

	ft.advance(16 * time.Millisecond)
	f := c.Tick(2)
	assert.Equal(t, 16*time.Millisecond, f.Real)
	assert.InDelta(t, 0.032, f.Delta, 1e-9)
	assert.False(t, f.Clamped)

	ft.advance(16 * time.Millisecond)
	assert.Zero(t, c.Tick(0).Delta, "paused")
}

func TestTickClampsStalls(t *testing.T) {
	ft := &fakeTime{t: time.Unix(100, 0)}
	c := New(100*time.Millisecond, WithNow(ft.now))

	ft.advance(5 * time.Second)
	f := c.Tick(1)
	assert.True(t, f.Clamped)
	assert.InDelta(t, 0.1, f.Delta, 1e-9)
}

func TestRestartDropsPendingTime(t *testing.T) {
	ft := &fakeTime{t: time.Unix(100, 0)}
	c := New(0, WithNow(ft.now))

	ft.advance(time.Second)
	c.Restart()
	ft.advance(10 * time.Millisecond)
	assert.Equal(t, 10*time.Millisecond, c.Tick(1).Real)
}

func TestIntervalDue(t *testing.T) {
	start := time.Unix(0, 0)
	i := NewInterval(200*time.Millisecond, start)

	assert.False(t, i.Due(start.Add(150*time.Millisecond)))
	assert.True(t, i.Due(start.Add(210*time.Millisecond)))
	assert.False(t, i.Due(start.Add(300*time.Millisecond)), "period restarts at the firing time")
	assert.True(t, i.Due(start.Add(5*time.Second)))
	assert.False(t, i.Due(start.Add(5*time.Second+time.Millisecond)), "missed periods are not replayed")
}
