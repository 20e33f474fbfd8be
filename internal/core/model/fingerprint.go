package model

import (
	"encoding/binary"
	"math"

	"github.com/cespare/xxhash/v2"
)

// Fingerprint hashes the state of e that affects its styling and detail
// view. Pure motion (rotor angles, belt scroll, spin) is left out.
func Fingerprint(e Entity) uint64 {
	d := xxhash.New()
	var buf [8]byte
	putFloat := func(f float64) {
		binary.LittleEndian.PutUint64(buf[:], math.Float64bits(f))
		_, _ = d.Write(buf[:])
	}
	putBool := func(b bool) {
		if b {
			putFloat(1)
		} else {
			putFloat(0)
		}
	}

	putFloat(float64(e.ID()))
	putBool(e.Enabled())
	pos := e.Position()
	putFloat(pos.X)
	putFloat(pos.Y)
	putFloat(pos.Z)
	for _, m := range e.Metrics() {
		putFloat(m.Value)
		_, _ = d.WriteString(m.Text)
	}

	switch v := e.(type) {
	case *Pipeline:
		putFloat(v.Emissive)
		putBool(v.Valve() != nil && v.Valve().Open)
	case *Valve:
		putBool(v.Open)
		if p := v.Pipeline(); p != nil {
			putFloat(p.FlowRate)
		}
	}
	return d.Sum64()
}

// Tracker remembers the last fingerprint of every entity.
type Tracker struct {
	last map[EntityID]uint64
}

func NewTracker() *Tracker {
	return &Tracker{last: make(map[EntityID]uint64)}
}

// Changed returns the ids whose fingerprint differs from the previous call.
// Entities seen for the first time count as changed.
func (t *Tracker) Changed(entities []Entity) []EntityID {
	var changed []EntityID
	for _, e := range entities {
		fp := Fingerprint(e)
		if prev, ok := t.last[e.ID()]; ok && prev == fp {
			continue
		}
		t.last[e.ID()] = fp
		changed = append(changed, e.ID())
	}
	return changed
}

// Reset forgets every fingerprint.
func (t *Tracker) Reset() {
	clear(t.last)
}

// EventChanged is published on the bus with a ChangeSet after every tick in
// which at least one fingerprint moved.
const EventChanged = "entity.changed"

type ChangeSet struct {
	IDs []EntityID `json:"ids"`
}

func (c ChangeSet) Contains(id EntityID) bool {
	for _, v := range c.IDs {
		if v == id {
			return true
		}
	}
	return false
}
