package history

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPushKeepsLatestWindow(t *testing.T) {
	s := NewStore(DefaultCapacity)
	for i := 0; i < 60; i++ {
		s.Push(Flow, float64(i))
	}

	got := s.Values(Flow)
	require.Len(t, got, DefaultCapacity)
	for i, v := range got {
		assert.Equal(t, float64(i+10), v)
	}
	assert.Zero(t, s.Len(Pressure), "series are independent")
}

func TestLengthNeverExceedsCapacity(t *testing.T) {
	s := NewStore(5)
	for i := 0; i < 1000; i++ {
		s.Push(Series(i%int(seriesCount)), float64(i))
		for series := Series(0); series < seriesCount; series++ {
			assert.LessOrEqual(t, s.Len(series), 5)
		}
	}
}

func TestSeedFillsWithinRange(t *testing.T) {
	s := NewStore(DefaultCapacity)
	s.Push(Temperature, 999)
	s.Seed(7)

	for series := Series(0); series < seriesCount; series++ {
		t.Run(series.String(), func(t *testing.T) {
			vals := s.Values(series)
			require.Len(t, vals, DefaultCapacity)
			for _, v := range vals {
				assert.GreaterOrEqual(t, v, seedRange[series][0])
				assert.LessOrEqual(t, v, seedRange[series][1])
			}
		})
	}
}

func TestSeedIsDeterministic(t *testing.T) {
	a, b := NewStore(10), NewStore(10)
	a.Seed(3)
	b.Seed(3)
	assert.Equal(t, a.Window(), b.Window())
}

func TestLastAndUnknownSeries(t *testing.T) {
	s := NewStore(0)
	assert.Equal(t, DefaultCapacity, s.Cap())

	_, ok := s.Last(Power)
	assert.False(t, ok)

	s.Push(Power, 12)
	v, ok := s.Last(Power)
	assert.True(t, ok)
	assert.Equal(t, 12.0, v)

	s.Push(seriesCount, 1)
	assert.Nil(t, s.Values(seriesCount))
}
