package model

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/zeusync/factorysim/internal/core/systems/physics"
	"github.com/zeusync/factorysim/pkg/sequence"
)

// BodyFactory creates a physics body for a sensor resting at position.
type BodyFactory func(position physics.Vec3) physics.Body

// SensorSpec describes one floating sensor of the layout.
type SensorSpec struct {
	Name     string
	Position physics.Vec3
	Color    uint32
}

// ConveyorSpec describes one conveyor of the layout.
type ConveyorSpec struct {
	Position physics.Vec3
	Yaw      float64
}

// Layout is the fixed plant topology built at startup.
type Layout struct {
	Machines      []physics.Vec3
	Sensors       []SensorSpec
	Conveyors     []ConveyorSpec
	PipelineStart physics.Vec3
	PipelineEnd   physics.Vec3
	// ValveLift raises the valve above the pipeline midpoint.
	ValveLift float64
}

// DefaultLayout returns the standard floor: 4 machines, 3 sensors,
// 2 conveyors and one pipeline with its valve.
func DefaultLayout() Layout {
	return Layout{
		Machines: []physics.Vec3{
			{X: -15, Y: 1, Z: -10},
			{X: 15, Y: 1, Z: -10},
			{X: -15, Y: 1, Z: 10},
			{X: 15, Y: 1, Z: 10},
		},
		Sensors: []SensorSpec{
			{Name: "Sensor A", Position: physics.Vec3{X: 0, Y: 8, Z: 0}, Color: 0x64b5f6},
			{Name: "Sensor B", Position: physics.Vec3{X: -15, Y: 9, Z: -15}, Color: 0xff6b6b},
			{Name: "Sensor C", Position: physics.Vec3{X: 15, Y: 9, Z: 15}, Color: 0x4ecdc4},
		},
		Conveyors: []ConveyorSpec{
			{Position: physics.Vec3{X: -15, Y: 0.5, Z: -5}},
			{Position: physics.Vec3{X: 15, Y: 0.5, Z: 5}, Yaw: math.Pi / 2},
		},
		PipelineStart: physics.Vec3{X: -15, Y: 3, Z: -10},
		PipelineEnd:   physics.Vec3{X: 15, Y: 3, Z: 10},
		ValveLift:     3,
	}
}

// Plant owns every entity of a session. The set is fixed once built.
type Plant struct {
	Machines  []*Machine
	Conveyors []*Conveyor
	Pipelines []*Pipeline
	Sensors   []*Sensor

	entities []Entity
	byID     map[EntityID]Entity
}

// NewPlant builds the plant described by layout. Sensor bodies come from
// newBody; initial readings are drawn from rng.
func NewPlant(layout Layout, rng *rand.Rand, newBody BodyFactory) *Plant {
	p := &Plant{byID: make(map[EntityID]Entity)}
	next := EntityID(0)
	id := func() EntityID {
		next++
		return next
	}

	for i, pos := range layout.Machines {
		rpm := 1200 + rng.Float64()*300
		m := &Machine{
			Base:        newBase(id(), KindMachine, fmt.Sprintf("Machine %d", i+1), pos),
			Temperature: 28 + rng.Float64()*5,
			RPM:         rpm,
			Power:       PowerFor(rpm, true),
		}
		p.Machines = append(p.Machines, m)
		p.add(m)
	}

	for _, spec := range layout.Sensors {
		s := &Sensor{
			Base:  newBase(id(), KindSensor, spec.Name, spec.Position),
			Color: spec.Color,
			body:  newBody(spec.Position),
			home:  spec.Position,
		}
		s.Randomize(rng)
		p.Sensors = append(p.Sensors, s)
		p.add(s)
	}

	for i, spec := range layout.Conveyors {
		c := &Conveyor{
			Base:  newBase(id(), KindConveyor, fmt.Sprintf("Conveyor Belt %d", i+1), spec.Position),
			Speed: 0.5,
			Yaw:   spec.Yaw,
		}
		p.Conveyors = append(p.Conveyors, c)
		p.add(c)
	}

	mid := physics.Midpoint(layout.PipelineStart, layout.PipelineEnd)
	pipe := &Pipeline{
		Base:  newBase(id(), KindPipeline, "Main Pipeline", mid),
		Start: layout.PipelineStart,
		End:   layout.PipelineEnd,
	}
	valve := &Valve{
		Base:     newBase(id(), KindValve, "Control Valve", mid.Add(physics.Vec3{Y: layout.ValveLift})),
		pipeline: pipe,
	}
	pipe.valve = valve
	p.Pipelines = append(p.Pipelines, pipe)
	p.add(pipe)
	p.add(valve)

	return p
}

func (p *Plant) add(e Entity) {
	p.entities = append(p.entities, e)
	p.byID[e.ID()] = e
}

// Lookup finds an entity by id.
func (p *Plant) Lookup(id EntityID) (Entity, bool) {
	e, ok := p.byID[id]
	return e, ok
}

// Entities returns every entity in creation order.
func (p *Plant) Entities() []Entity { return p.entities }

// Len is the number of entities, valves included.
func (p *Plant) Len() int { return len(p.entities) }

// MainPipeline returns the active pipeline, or nil for an empty layout.
func (p *Plant) MainPipeline() *Pipeline {
	if len(p.Pipelines) == 0 {
		return nil
	}
	return p.Pipelines[0]
}

// TotalPower sums the power of every enabled machine.
func (p *Plant) TotalPower() float64 {
	total, _ := sequence.Sum(p.Running(), func(m *Machine) float64 { return m.Power })
	return total
}

// Running iterates over the enabled machines.
func (p *Plant) Running() *sequence.Iterator[*Machine] {
	return sequence.From(p.Machines).Filter(func(m *Machine) bool { return m.Enabled() })
}

// As looks up id and asserts its concrete type.
func As[T Entity](p *Plant, id EntityID) (T, bool) {
	var zero T
	e, ok := p.byID[id]
	if !ok {
		return zero, false
	}
	t, ok := e.(T)
	return t, ok
}
