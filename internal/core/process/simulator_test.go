package process

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/factorysim/internal/core/model"
	"github.com/zeusync/factorysim/internal/core/systems/physics"
)

const frame = 1.0 / 60

func newFixture(t *testing.T) (*Simulator, *model.Plant, *State) {
	t.Helper()
	rng := rand.New(rand.NewSource(1))
	world := physics.NewSphereWorld(physics.Vec3{Y: DefaultGravityY})
	plant := model.NewPlant(model.DefaultLayout(), rng, func(p physics.Vec3) physics.Body {
		s := physics.NewSphere(p, 0.8, 1)
		world.AddSphere(s)
		return s
	})
	state := DefaultState()
	return NewSimulator(world, 3, rng), plant, &state
}

func run(sim *Simulator, plant *model.Plant, state *State, seconds float64) {
	for n := int(seconds / frame); n > 0; n-- {
		sim.Advance(plant, state, frame)
	}
}

func TestTemperatureConverges(t *testing.T) {
	sim, plant, state := newFixture(t)
	for _, m := range plant.Machines {
		m.RPM = 1200
	}

	run(sim, plant, state, 30)

	for _, m := range plant.Machines {
		assert.InDelta(t, 44.4, m.Temperature, 1e-6, m.Name())
		assert.InDelta(t, 24.0, m.Power, 1e-9)
	}
	assert.InDelta(t, 30, state.Elapsed, frame)
}

func TestTemperatureStaysInRange(t *testing.T) {
	sim, plant, state := newFixture(t)
	plant.Machines[0].RPM = model.MaxRPM
	plant.Machines[1].RPM = 0
	plant.Machines[2].SetEnabled(false)
	plant.Machines[3].Temperature = 90

	for i := 0; i < 6000; i++ {
		sim.Advance(plant, state, frame)
		for _, m := range plant.Machines {
			require.GreaterOrEqual(t, m.Temperature, model.MinMachineTemp)
			require.LessOrEqual(t, m.Temperature, model.MaxMachineTemp)
		}
	}
	assert.InDelta(t, TargetTemperature(model.MaxRPM, 0), plant.Machines[0].Temperature, 1e-9)
	assert.InDelta(t, TargetTemperature(0, 0), plant.Machines[1].Temperature, 1e-9)
	assert.Equal(t, model.MinMachineTemp, plant.Machines[2].Temperature)
}

func TestDisabledMachineDecays(t *testing.T) {
	sim, plant, state := newFixture(t)
	m := plant.Machines[0]
	m.Temperature = 40
	m.SetEnabled(false)
	rotor := m.RotorX

	sim.Advance(plant, state, 1)

	assert.InDelta(t, 37, m.Temperature, 1e-9)
	assert.Zero(t, m.Power)
	assert.Equal(t, rotor, m.RotorX, "rotor halts while disabled")
}

func TestFlowRampBound(t *testing.T) {
	sim, plant, state := newFixture(t)
	pipe := plant.MainPipeline()
	pipe.Valve().Open = true
	pipe.FlowRate = 75

	prev := pipe.CurrentFlow
	for i := 0; i < 600; i++ {
		dt := frame * float64(1+i%3)
		sim.Advance(plant, state, dt)
		require.LessOrEqual(t, math.Abs(pipe.CurrentFlow-prev), flowRamp*dt+1e-9)
		prev = pipe.CurrentFlow
	}
	assert.Equal(t, 75.0, pipe.CurrentFlow)
	assert.InDelta(t, 700, pipe.Pressure, 50)
	assert.InDelta(t, 0.5, pipe.Emissive, 1e-9)
}

func TestClosedValveZeroesFlow(t *testing.T) {
	sim, plant, state := newFixture(t)
	pipe := plant.MainPipeline()
	pipe.FlowRate, pipe.CurrentFlow, pipe.Pressure = 80, 80, 720

	sim.Advance(plant, state, frame)

	assert.Zero(t, pipe.FlowRate)
	assert.Zero(t, pipe.CurrentFlow)
	assert.Zero(t, pipe.Pressure)
	assert.Zero(t, pipe.Emissive)
}

func TestCoolingNeverRaisesTarget(t *testing.T) {
	for rpm := 0.0; rpm <= model.MaxRPM; rpm += 250 {
		prev := TargetTemperature(rpm, 0)
		for cooling := 1.0; cooling <= MaxCooling; cooling++ {
			cur := TargetTemperature(rpm, cooling)
			assert.LessOrEqual(t, cur, prev)
			prev = cur
		}
	}
}

func TestSensorFollowsBody(t *testing.T) {
	sim, plant, state := newFixture(t)
	s := plant.Sensors[0]

	sim.Advance(plant, state, frame)
	phase, ok := s.Phase()
	require.True(t, ok)

	run(sim, plant, state, 5)
	again, _ := s.Phase()
	assert.Equal(t, phase, again, "phase is assigned once")

	assert.Less(t, s.Position().Y, s.Home().Y, "sensor falls under gravity")
	assert.Greater(t, s.SpinY, s.SpinX)
}

func TestConveyorScroll(t *testing.T) {
	sim, plant, state := newFixture(t)
	on, off := plant.Conveyors[0], plant.Conveyors[1]
	off.SetEnabled(false)

	sim.Advance(plant, state, 2)

	assert.InDelta(t, 1.0, on.Scroll, 1e-9)
	assert.InDelta(t, 2.0, on.Roller, 1e-9)
	assert.Zero(t, off.Scroll)
}

func TestApproach(t *testing.T) {
	cases := []struct {
		cur, target, step, want float64
	}{
		{0, 10, 3, 3},
		{9, 10, 3, 10},
		{10, 0, 4, 6},
		{1, 0, 4, 0},
		{5, 5, 1, 5},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, approach(tc.cur, tc.target, tc.step))
	}
}
