package control

import (
	"encoding/json"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/factorysim/internal/core/history"
	"github.com/zeusync/factorysim/internal/core/model"
	"github.com/zeusync/factorysim/internal/core/notice"
	"github.com/zeusync/factorysim/internal/core/observability/log"
	"github.com/zeusync/factorysim/internal/core/process"
	"github.com/zeusync/factorysim/internal/core/systems/physics"
)

type fixture struct {
	gw      *Gateway
	plant   *model.Plant
	state   *process.State
	world   *physics.SphereWorld
	store   *history.Store
	notices *notice.Board
	sim     *process.Simulator
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	rng := rand.New(rand.NewSource(7))
	world := physics.NewSphereWorld(physics.Vec3{Y: process.DefaultGravityY})
	plant := model.NewPlant(model.DefaultLayout(), rng, func(p physics.Vec3) physics.Body {
		s := physics.NewSphere(p, 0.8, 1)
		world.AddSphere(s)
		return s
	})
	state := process.DefaultState()
	store := history.NewStore(history.DefaultCapacity)
	board := notice.NewBoard(time.Minute, log.NewNop())

	return &fixture{
		gw:      NewGateway(plant, &state, world, store, board, rng, log.NewNop()),
		plant:   plant,
		state:   &state,
		world:   world,
		store:   store,
		notices: board,
		sim:     process.NewSimulator(world, 3, rng),
	}
}

func (f *fixture) tick(seconds float64) {
	const dt = 1.0 / 60
	for n := int(seconds / dt); n > 0; n-- {
		f.sim.Advance(f.plant, f.state, dt)
	}
}

func TestFlowTargetOpensValve(t *testing.T) {
	f := newFixture(t)
	pipe := f.plant.MainPipeline()

	f.gw.SetFlowTarget(pipe.ID(), 75)

	assert.True(t, pipe.Valve().Open, "positive target auto-opens")
	assert.Equal(t, 75.0, pipe.FlowRate)
	flow, _ := f.store.Last(history.Flow)
	pressure, _ := f.store.Last(history.Pressure)
	assert.Equal(t, 75.0, flow)
	assert.Equal(t, 700.0, pressure)

	f.tick(10)
	assert.Equal(t, 75.0, pipe.CurrentFlow)
	assert.InDelta(t, 700, pipe.Pressure, 50)
}

func TestFlowTargetClampsAndClearsGlow(t *testing.T) {
	f := newFixture(t)
	pipe := f.plant.MainPipeline()

	f.gw.SetFlowTarget(pipe.Valve().ID(), 250)
	assert.Equal(t, model.MaxFlowRate, pipe.FlowRate, "valve id resolves to its pipeline")

	f.gw.SetFlowTarget(pipe.ID(), -3)
	assert.Zero(t, pipe.FlowRate)
	assert.Zero(t, pipe.Emissive)
	assert.True(t, pipe.Valve().Open, "zero target leaves the valve alone")
}

func TestCloseValveSnapsToZero(t *testing.T) {
	f := newFixture(t)
	pipe := f.plant.MainPipeline()
	f.gw.SetFlowTarget(pipe.ID(), 80)
	f.tick(10)
	require.Equal(t, 80.0, pipe.CurrentFlow)

	open := f.gw.ToggleValve(pipe.ID())

	assert.False(t, open)
	assert.Zero(t, pipe.CurrentFlow)
	assert.Zero(t, pipe.Pressure)
	assert.Zero(t, pipe.FlowRate)

	active := f.notices.Active()
	require.NotEmpty(t, active)
	assert.Equal(t, "Valve closed - Flow stopped", active[len(active)-1].Message)
}

func TestCloseIsIdempotent(t *testing.T) {
	f := newFixture(t)
	pipe := f.plant.MainPipeline()
	before := f.store.Len(history.Flow)

	f.gw.SetValve(pipe.ID(), false)
	f.gw.SetValve(pipe.ID(), false)

	assert.Zero(t, pipe.CurrentFlow)
	assert.Zero(t, pipe.Pressure)
	assert.Equal(t, before, f.store.Len(history.Flow))
	assert.Empty(t, f.notices.Active())
}

func TestOpenValveFloor(t *testing.T) {
	f := newFixture(t)
	pipe := f.plant.MainPipeline()
	require.Zero(t, pipe.FlowRate)

	assert.True(t, f.gw.ToggleValve(pipe.ID()))
	assert.GreaterOrEqual(t, pipe.FlowRate, 10.0)
	assert.Zero(t, pipe.CurrentFlow, "flow still ramps up")

	active := f.notices.Active()
	require.Len(t, active, 1)
	assert.Equal(t, "Valve opened - Flow: 10.0 L/min", active[0].Message)

	f.tick(0.25)
	assert.InDelta(t, 5, pipe.CurrentFlow, 0.5)
}

func TestPowerConsistency(t *testing.T) {
	f := newFixture(t)
	rng := rand.New(rand.NewSource(99))

	for i := 0; i < 200; i++ {
		m := f.plant.Machines[rng.Intn(len(f.plant.Machines))]
		if rng.Intn(2) == 0 {
			f.gw.ToggleMachine(m.ID())
		} else {
			f.gw.SetRPMTarget(m.ID(), rng.Float64()*2500)
		}

		want := 0.0
		for _, m := range f.plant.Machines {
			if m.Enabled() {
				want += m.Power
			} else {
				assert.Zero(t, m.Power)
			}
		}
		got, ok := f.store.Last(history.Power)
		require.True(t, ok)
		assert.InDelta(t, want, got, 1e-9)
		assert.InDelta(t, want, f.plant.TotalPower(), 1e-9)
	}
}

func TestRPMIsClamped(t *testing.T) {
	f := newFixture(t)
	m := f.plant.Machines[0]
	f.gw.SetRPMTarget(m.ID(), 5000)
	assert.Equal(t, model.MaxRPM, m.RPM)
	assert.Equal(t, 40.0, m.Power)
}

func TestResetSensorRanges(t *testing.T) {
	f := newFixture(t)
	s := f.plant.Sensors[1]
	for i := 0; i < 100; i++ {
		f.gw.ResetSensor(s.ID())
		assert.GreaterOrEqual(t, s.Temperature, 20.0)
		assert.LessOrEqual(t, s.Temperature, 35.0)
		assert.GreaterOrEqual(t, s.Humidity, 45.0)
		assert.LessOrEqual(t, s.Humidity, 70.0)
		assert.Equal(t, model.SensorStatusActive, s.Status)
	}
	assert.Equal(t, "Sensor reset - New values initialized", f.notices.Active()[0].Message)
}

func TestSetCoolingShock(t *testing.T) {
	f := newFixture(t)
	f.plant.Machines[0].Temperature = 40
	f.plant.Machines[1].Temperature = 26

	f.gw.SetCooling(100)

	assert.Equal(t, 100.0, f.state.Cooling)
	assert.Equal(t, 35.0, f.plant.Machines[0].Temperature)
	assert.Equal(t, model.MinMachineTemp, f.plant.Machines[1].Temperature)

	f.gw.SetCooling(400)
	assert.Equal(t, process.MaxCooling, f.state.Cooling)
}

func TestGravityAndSpeed(t *testing.T) {
	f := newFixture(t)

	f.gw.SetGravityY(-1.6)
	assert.Equal(t, physics.Vec3{Y: -1.6}, f.world.Gravity())
	assert.Equal(t, -1.6, f.state.GravityY)

	f.gw.SetSpeed(9)
	assert.Equal(t, process.MaxSpeed, f.state.Speed)
	f.gw.SetSpeed(-1)
	assert.Zero(t, f.state.Speed)
}

func TestConveyorControls(t *testing.T) {
	f := newFixture(t)
	c := f.plant.Conveyors[0]

	f.gw.SetConveyorSpeed(c.ID(), 1.25)
	assert.Equal(t, 1.25, c.Speed)
	f.gw.SetConveyorSpeed(c.ID(), 7)
	assert.Equal(t, model.MaxConveyorSpeed, c.Speed)

	assert.False(t, f.gw.ToggleConveyor(c.ID()))
	assert.True(t, f.gw.ToggleConveyor(c.ID()))
}

func TestResetRestoresSensors(t *testing.T) {
	f := newFixture(t)
	f.tick(3)
	f.state.Selection = f.plant.Machines[0].ID()
	hooked := 0
	f.gw.OnReset(func() { hooked++ })

	f.gw.Reset()

	for _, s := range f.plant.Sensors {
		assert.Equal(t, s.Home(), s.Body().Position())
		assert.Equal(t, s.Home(), s.Position())
		assert.Equal(t, physics.Vec3{}, s.Body().Velocity())
	}
	assert.Zero(t, f.state.Elapsed)
	assert.Zero(t, f.state.Selection)
	assert.Equal(t, 1, hooked)
}

func TestTypedMethodsPanicOnBadTarget(t *testing.T) {
	f := newFixture(t)
	assert.Panics(t, func() { f.gw.ToggleMachine(999) })
	assert.Panics(t, func() { f.gw.ToggleMachine(f.plant.Conveyors[0].ID()) })
	assert.Panics(t, func() { f.gw.ToggleValve(f.plant.Machines[0].ID()) })
}

func TestValidate(t *testing.T) {
	f := newFixture(t)

	cases := []struct {
		name   string
		action Action
		err    error
	}{
		{"process wide", Action{Kind: SetCooling, Value: 30}, nil},
		{"valve via valve id", Action{Kind: ToggleValve, Target: f.plant.MainPipeline().Valve().ID()}, nil},
		{"unknown kind", Action{Kind: ActionKind(200)}, ErrUnknownAction},
		{"zero kind", Action{}, ErrUnknownAction},
		{"missing target", Action{Kind: ToggleMachine, Target: 404}, ErrUnknownTarget},
		{"wrong kind", Action{Kind: ResetSensor, Target: f.plant.Machines[0].ID()}, ErrWrongKind},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := f.gw.Validate(tc.action)
			if tc.err == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tc.err)
			assert.ErrorIs(t, f.gw.Apply(tc.action), tc.err)
		})
	}
}

func TestApplyDispatches(t *testing.T) {
	f := newFixture(t)
	m := f.plant.Machines[2]

	require.NoError(t, f.gw.Apply(Action{Kind: SetRPMTarget, Target: m.ID(), Value: 1500}))
	assert.Equal(t, 1500.0, m.RPM)

	require.NoError(t, f.gw.Apply(Action{Kind: OpenValve, Target: f.plant.MainPipeline().ID()}))
	assert.True(t, f.plant.MainPipeline().Valve().Open)

	require.NoError(t, f.gw.Apply(Action{Kind: SetSpeed, Value: 2}))
	assert.Equal(t, 2.0, f.state.Speed)
}

func TestActionJSON(t *testing.T) {
	var a Action
	require.NoError(t, json.Unmarshal([]byte(`{"kind":"toggle_valve","target":10}`), &a))
	assert.Equal(t, Action{Kind: ToggleValve, Target: 10}, a)

	err := json.Unmarshal([]byte(`{"kind":"explode"}`), &a)
	assert.ErrorIs(t, err, ErrUnknownAction)
}
