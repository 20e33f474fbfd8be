package telemetry

import (
	"math"
	"time"

	"github.com/zeusync/factorysim/internal/core/model"
	"github.com/zeusync/factorysim/pkg/sequence"
)

// Marker is one entity on the top-down minimap.
type Marker struct {
	ID   model.EntityID `json:"id"`
	Kind model.Kind     `json:"kind"`
	X    float64        `json:"x"`
	Z    float64        `json:"z"`
}

func Minimap(plant *model.Plant) []Marker {
	return sequence.Map(sequence.From(plant.Entities()), func(e model.Entity) Marker {
		p := e.Position()
		return Marker{ID: e.ID(), Kind: e.Kind(), X: p.X, Z: p.Z}
	}).Collect()
}

// Stats is the once-per-second frame readout.
type Stats struct {
	FPS     int `json:"fps"`
	Objects int `json:"objects"`
	Bodies  int `json:"bodies"`
}

// FrameCounter counts frames between two stats firings.
type FrameCounter struct {
	frames int
	since  time.Time
}

func NewFrameCounter(start time.Time) *FrameCounter {
	return &FrameCounter{since: start}
}

// Frame records one presented frame.
func (c *FrameCounter) Frame() { c.frames++ }

// Rate returns the frames per second since the previous call and restarts
// the count at now.
func (c *FrameCounter) Rate(now time.Time) int {
	elapsed := now.Sub(c.since)
	frames := c.frames
	c.frames, c.since = 0, now
	if elapsed <= 0 {
		return 0
	}
	return int(math.Round(float64(frames) / elapsed.Seconds()))
}
