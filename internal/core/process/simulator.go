package process

import (
	"math"
	"math/rand"

	"github.com/zeusync/factorysim/internal/core/model"
	"github.com/zeusync/factorysim/internal/core/systems/physics"
)

const (
	// Temperature ramps, °C per simulated second.
	heatRate = 2.0
	coolRate = 3.0
	// Flow ramp, L/min per simulated second.
	flowRamp = 20.0

	physicsStep = 1.0 / 60
)

// Simulator advances entity metrics. It never fails: every value is clamped.
type Simulator struct {
	world    physics.World
	substeps int
	rng      *rand.Rand
}

// NewSimulator creates a simulator stepping world before each metric update.
// world may be nil when sensor motion is driven elsewhere.
func NewSimulator(world physics.World, substeps int, rng *rand.Rand) *Simulator {
	if substeps < 1 {
		substeps = 1
	}
	return &Simulator{world: world, substeps: substeps, rng: rng}
}

// World returns the physics world the simulator steps.
func (s *Simulator) World() physics.World { return s.world }

// Advance moves every entity of plant forward by dt simulated seconds.
func (s *Simulator) Advance(plant *model.Plant, state *State, dt float64) {
	if dt < 0 {
		dt = 0
	}
	state.Elapsed += dt

	if s.world != nil {
		s.world.Step(physicsStep, dt, s.substeps)
	}

	for _, sensor := range plant.Sensors {
		s.advanceSensor(sensor, state.Elapsed, dt)
	}
	for _, m := range plant.Machines {
		advanceMachine(m, state.Cooling, dt)
	}
	for _, c := range plant.Conveyors {
		advanceConveyor(c, dt)
	}
	for _, p := range plant.Pipelines {
		advancePipeline(p, state.Elapsed, dt)
	}
}

func (s *Simulator) advanceSensor(sensor *model.Sensor, elapsed, dt float64) {
	body := sensor.Body()
	if body == nil {
		return
	}
	sensor.SetPosition(body.Position())

	phase, ok := sensor.Phase()
	if !ok {
		phase = s.rng.Float64() * 2 * math.Pi
		sensor.SetPhase(phase)
	}
	bob := math.Sin(elapsed*0.5+phase) * 0.5
	pos := body.Position()
	pos.Y += bob * dt * 2
	body.SetPosition(pos)

	sensor.SpinX += dt * 0.5
	sensor.SpinY += dt * 0.7
}

func advanceMachine(m *model.Machine, cooling, dt float64) {
	if m.Enabled() {
		m.Temperature = approach(m.Temperature, TargetTemperature(m.RPM, cooling), heatRate*dt)
		spin := dt * m.RPM / 600
		m.RotorX += spin
		m.RotorZ += spin * 0.75
	} else {
		m.Temperature = approach(m.Temperature, model.MinMachineTemp, coolRate*dt)
	}
	m.Temperature = clamp(m.Temperature, model.MinMachineTemp, model.MaxMachineTemp)
	m.Power = model.PowerFor(m.RPM, m.Enabled())
}

func advanceConveyor(c *model.Conveyor, dt float64) {
	if !c.Enabled() {
		return
	}
	c.Scroll += dt * c.Speed
	c.Roller += dt * c.Speed * 2
}

func advancePipeline(p *model.Pipeline, elapsed, dt float64) {
	v := p.Valve()
	if v == nil || !v.Open {
		p.FlowRate, p.CurrentFlow, p.Pressure, p.Emissive = 0, 0, 0, 0
		if v != nil {
			v.Spin += dt * 0.1
		}
		return
	}
	v.Spin += dt * 0.5
	p.CurrentFlow = approach(p.CurrentFlow, p.FlowRate, flowRamp*dt)
	p.Pressure = PressureFor(p.CurrentFlow, elapsed)
	p.Emissive = model.FlowEmissive(p.CurrentFlow)
}

// approach moves cur towards target by at most step.
func approach(cur, target, step float64) float64 {
	switch {
	case cur < target:
		return math.Min(target, cur+step)
	case cur > target:
		return math.Max(target, cur-step)
	default:
		return target
	}
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
