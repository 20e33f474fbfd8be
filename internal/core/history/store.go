package history

import (
	"fmt"
	"math"

	"github.com/aquilax/go-perlin"

	"github.com/zeusync/factorysim/pkg/sequence"
)

// Series names one of the four charted metrics.
type Series uint8

const (
	Temperature Series = iota
	Pressure
	Flow
	Power

	seriesCount
)

// DefaultCapacity is the number of samples kept per series.
const DefaultCapacity = 50

func (s Series) String() string {
	switch s {
	case Temperature:
		return "temperature"
	case Pressure:
		return "pressure"
	case Flow:
		return "flow"
	case Power:
		return "power"
	default:
		return fmt.Sprintf("series(%d)", uint8(s))
	}
}

// seedRange bounds the synthetic values used to pre-fill each series.
var seedRange = [seriesCount][2]float64{
	Temperature: {25, 40},
	Pressure:    {500, 700},
	Flow:        {30, 70},
	Power:       {200, 350},
}

// Store keeps a bounded FIFO history per series. It is not safe for
// concurrent use; the engine owns it.
type Store struct {
	series [seriesCount]*sequence.Ring[float64]
}

// NewStore creates an empty store. A non-positive capacity falls back to
// DefaultCapacity.
func NewStore(capacity int) *Store {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	s := &Store{}
	for i := range s.series {
		s.series[i] = sequence.NewRing[float64](capacity)
	}
	return s
}

// Push appends v to series, evicting the oldest sample once full.
func (s *Store) Push(series Series, v float64) {
	if series >= seriesCount {
		return
	}
	s.series[series].Push(v)
}

// Values returns a copy of series, oldest first.
func (s *Store) Values(series Series) []float64 {
	if series >= seriesCount {
		return nil
	}
	return s.series[series].Slice()
}

// Last returns the newest sample of series.
func (s *Store) Last(series Series) (float64, bool) {
	if series >= seriesCount {
		return 0, false
	}
	return s.series[series].Last()
}

func (s *Store) Len(series Series) int {
	if series >= seriesCount {
		return 0
	}
	return s.series[series].Len()
}

func (s *Store) Cap() int { return s.series[0].Cap() }

// Seed replaces the history with a full window of smooth synthetic samples
// so charts have something to draw before the first real sample.
func (s *Store) Seed(seed int64) {
	for i, ring := range s.series {
		ring.Reset()
		noise := perlin.NewPerlin(2, 2, 3, seed+int64(i))
		lo, hi := seedRange[i][0], seedRange[i][1]
		for n := 0; n < ring.Cap(); n++ {
			t := noise.Noise1D(float64(n)/10)*0.5 + 0.5
			t = math.Max(0, math.Min(1, t))
			ring.Push(lo + t*(hi-lo))
		}
	}
}

// Window is a copy of every series, suitable for serialisation.
type Window struct {
	Temperature []float64 `json:"temperature"`
	Pressure    []float64 `json:"pressure"`
	Flow        []float64 `json:"flow"`
	Power       []float64 `json:"power"`
}

func (s *Store) Window() Window {
	return Window{
		Temperature: s.Values(Temperature),
		Pressure:    s.Values(Pressure),
		Flow:        s.Values(Flow),
		Power:       s.Values(Power),
	}
}
