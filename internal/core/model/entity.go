package model

import (
	"fmt"
	"math/rand"

	"github.com/zeusync/factorysim/internal/core/systems/physics"
)

// EntityID identifies an entity for the whole session. IDs are assigned in
// creation order starting at 1; zero means "no entity".
type EntityID uint32

// Kind tags the concrete type behind an Entity.
type Kind uint8

const (
	KindMachine Kind = iota + 1
	KindConveyor
	KindPipeline
	KindValve
	KindSensor
)

var kindNames = map[Kind]string{
	KindMachine:  "machine",
	KindConveyor: "conveyor",
	KindPipeline: "pipeline",
	KindValve:    "valve",
	KindSensor:   "sensor",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

func (k Kind) MarshalText() ([]byte, error) {
	if _, ok := kindNames[k]; !ok {
		return nil, fmt.Errorf("model: unknown kind %d", uint8(k))
	}
	return []byte(k.String()), nil
}

func (k *Kind) UnmarshalText(text []byte) error {
	for kind, name := range kindNames {
		if name == string(text) {
			*k = kind
			return nil
		}
	}
	return fmt.Errorf("model: unknown kind %q", text)
}

// Entity is the common view over every process entity.
type Entity interface {
	ID() EntityID
	Kind() Kind
	Name() string
	Enabled() bool
	Position() physics.Vec3
	// Metrics lists the kind-specific metrics in display order.
	Metrics() []Metric
}

// Metric is a single named reading. Text is set for non-numeric readings.
type Metric struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
	Text  string  `json:"text,omitempty"`
	Unit  string  `json:"unit,omitempty"`
}

// Base carries the fields shared by every entity kind.
type Base struct {
	id       EntityID
	kind     Kind
	name     string
	enabled  bool
	position physics.Vec3
}

func newBase(id EntityID, kind Kind, name string, position physics.Vec3) Base {
	return Base{id: id, kind: kind, name: name, enabled: true, position: position}
}

func (b *Base) ID() EntityID               { return b.id }
func (b *Base) Kind() Kind                 { return b.kind }
func (b *Base) Name() string               { return b.name }
func (b *Base) Enabled() bool              { return b.enabled }
func (b *Base) SetEnabled(v bool)          { b.enabled = v }
func (b *Base) Position() physics.Vec3     { return b.position }
func (b *Base) SetPosition(p physics.Vec3) { b.position = p }

// Toggle flips the enabled flag and returns the new value.
func (b *Base) Toggle() bool {
	b.enabled = !b.enabled
	return b.enabled
}

// Machine is a rotating machine with a heat load driven by its RPM.
type Machine struct {
	Base
	Temperature float64 // °C, kept within [MinMachineTemp, MaxMachineTemp]
	RPM         float64
	Power       float64 // kW

	// RotorX and RotorZ are cumulative rotor angles in radians.
	RotorX, RotorZ float64
}

const (
	MinMachineTemp = 25.0
	MaxMachineTemp = 70.0
	MaxRPM         = 2000.0
	// RPMPerKW converts RPM into power draw.
	RPMPerKW = 50.0
)

// PowerFor is the power draw implied by rpm and the enabled flag.
func PowerFor(rpm float64, enabled bool) float64 {
	if !enabled {
		return 0
	}
	return rpm / RPMPerKW
}

func (m *Machine) Metrics() []Metric {
	return []Metric{
		{Name: "temperature", Value: m.Temperature, Unit: "°C"},
		{Name: "rpm", Value: m.RPM},
		{Name: "power", Value: m.Power, Unit: "kW"},
	}
}

// Conveyor is a belt whose texture scrolls at Speed while enabled.
type Conveyor struct {
	Base
	Speed float64
	// Yaw is the fixed belt orientation around the vertical axis.
	Yaw float64

	Scroll float64 // belt texture offset
	Roller float64 // roller angle in radians
}

const MaxConveyorSpeed = 2.0

func (c *Conveyor) Metrics() []Metric {
	return []Metric{{Name: "speed", Value: c.Speed}}
}

// Pipeline carries flow whenever its valve is open.
type Pipeline struct {
	Base
	FlowRate    float64 // target, L/min
	CurrentFlow float64 // actual, L/min
	Pressure    float64 // Pa
	// Emissive is the glow intensity hint for renderers.
	Emissive float64

	Start, End physics.Vec3

	valve *Valve
}

const MaxFlowRate = 100.0

// Valve returns the valve owned by the pipeline.
func (p *Pipeline) Valve() *Valve { return p.valve }

func (p *Pipeline) Metrics() []Metric {
	return []Metric{
		{Name: "flowRate", Value: p.FlowRate, Unit: "L/min"},
		{Name: "currentFlow", Value: p.CurrentFlow, Unit: "L/min"},
		{Name: "pressure", Value: p.Pressure, Unit: "Pa"},
	}
}

// Valve gates the flow of exactly one pipeline.
type Valve struct {
	Base
	Open bool
	Spin float64 // radians

	pipeline *Pipeline
}

// Pipeline returns the pipeline the valve belongs to.
func (v *Valve) Pipeline() *Pipeline { return v.pipeline }

func (v *Valve) Metrics() []Metric {
	state := "closed"
	if v.Open {
		state = "open"
	}
	return []Metric{{Name: "state", Text: state}}
}

// Sensor is a floating probe whose position comes from a physics body.
type Sensor struct {
	Base
	Temperature float64
	Humidity    float64
	Status      string
	Color       uint32

	SpinX, SpinY float64

	body   physics.Body
	home   physics.Vec3
	phase  float64
	phased bool
}

const SensorStatusActive = "active"

// Body returns the physics body backing the sensor.
func (s *Sensor) Body() physics.Body { return s.body }

// Home is the fixed position the sensor is restored to on reset.
func (s *Sensor) Home() physics.Vec3 { return s.home }

// Phase returns the bob phase and whether it has been assigned yet.
func (s *Sensor) Phase() (float64, bool) { return s.phase, s.phased }

// SetPhase assigns the bob phase. Later calls are ignored.
func (s *Sensor) SetPhase(phase float64) {
	if s.phased {
		return
	}
	s.phase, s.phased = phase, true
}

// Randomize draws fresh readings within the documented ranges.
func (s *Sensor) Randomize(rng *rand.Rand) {
	s.Temperature = 20 + rng.Float64()*15
	s.Humidity = 45 + rng.Float64()*25
	s.Status = SensorStatusActive
}

func (s *Sensor) Metrics() []Metric {
	return []Metric{
		{Name: "temperature", Value: s.Temperature, Unit: "°C"},
		{Name: "humidity", Value: s.Humidity, Unit: "%"},
		{Name: "status", Text: s.Status},
	}
}
