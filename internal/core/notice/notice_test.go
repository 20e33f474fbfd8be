package notice

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/factorysim/internal/core/events/bus"
	"github.com/zeusync/factorysim/internal/core/observability/log"
)

func TestNoticesExpireAfterLifetime(t *testing.T) {
	now := time.Unix(1000, 0)
	b := NewBoard(3*time.Second, log.NewNop(), WithClock(func() time.Time { return now }))

	first := b.Notify("Valve opened - Flow: 10.0 L/min", Info)
	now = now.Add(time.Second)
	b.Notify("High Temperature Warning! (>50°C)", Warning)

	active := b.Active()
	require.Len(t, active, 2)
	assert.Equal(t, first.ID, active[0].ID, "oldest first")
	assert.Equal(t, first.Raised.Add(3*time.Second), first.Expires)

	now = now.Add(2 * time.Second)
	active = b.Active()
	require.Len(t, active, 1)
	assert.Equal(t, Warning, active[0].Severity)

	now = now.Add(time.Second)
	assert.Empty(t, b.Active())
}

func TestNotifyPublishesOnBus(t *testing.T) {
	events := bus.New()
	var got []Notice
	_, err := events.Subscribe(EventRaised, func(e bus.Event) error {
		got = append(got, e.Data().(Notice))
		return nil
	})
	require.NoError(t, err)

	b := NewBoard(0, log.NewNop(), WithBus(events))
	n := b.Notify("Sensor reset - New values initialized", Info)

	require.Len(t, got, 1)
	assert.Equal(t, n.ID, got[0].ID)
	assert.Equal(t, DefaultLifetime, n.Expires.Sub(n.Raised))
}

func TestClear(t *testing.T) {
	b := NewBoard(time.Minute, log.NewNop())
	b.Notify("a", Info)
	b.Notify("b", Error)
	b.Clear()
	assert.Empty(t, b.Active())
}

func TestSeverityText(t *testing.T) {
	for _, s := range []Severity{Info, Warning, Error} {
		text, err := s.MarshalText()
		require.NoError(t, err)

		var back Severity
		require.NoError(t, back.UnmarshalText(text))
		assert.Equal(t, s, back)
	}
	var s Severity
	assert.Error(t, s.UnmarshalText([]byte("fatal")))
}
