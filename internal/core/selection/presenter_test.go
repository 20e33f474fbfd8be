package selection

import (
	"encoding/json"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/factorysim/internal/core/control"
	"github.com/zeusync/factorysim/internal/core/events/bus"
	"github.com/zeusync/factorysim/internal/core/history"
	"github.com/zeusync/factorysim/internal/core/model"
	"github.com/zeusync/factorysim/internal/core/observability/log"
	"github.com/zeusync/factorysim/internal/core/process"
	"github.com/zeusync/factorysim/internal/core/systems/physics"
)

type recordingPanel struct {
	calls []string
	views []DetailView
}

func (r *recordingPanel) Highlight(id model.EntityID)   { r.calls = append(r.calls, "highlight") }
func (r *recordingPanel) Unhighlight(id model.EntityID) { r.calls = append(r.calls, "unhighlight") }
func (r *recordingPanel) Hide()                         { r.calls = append(r.calls, "hide") }
func (r *recordingPanel) Show(v DetailView) {
	r.calls = append(r.calls, "show")
	r.views = append(r.views, v)
}

func (r *recordingPanel) last() DetailView { return r.views[len(r.views)-1] }

type fixture struct {
	plant   *model.Plant
	state   *process.State
	gw      *control.Gateway
	sim     *process.Simulator
	events  bus.EventBus
	tracker *model.Tracker
	panel   *recordingPanel
	p       *Presenter
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	rng := rand.New(rand.NewSource(3))
	world := physics.NewSphereWorld(physics.Vec3{Y: process.DefaultGravityY})
	plant := model.NewPlant(model.DefaultLayout(), rng, func(p physics.Vec3) physics.Body {
		s := physics.NewSphere(p, 0.8, 1)
		world.AddSphere(s)
		return s
	})
	state := process.DefaultState()
	gw := control.NewGateway(plant, &state, world, history.NewStore(0), nil, rng, log.NewNop())
	panel := &recordingPanel{}
	events := bus.New()

	p := NewPresenter(plant, &state, gw, panel, log.NewNop())
	require.NoError(t, p.Attach(events))
	t.Cleanup(p.Detach)

	tracker := model.NewTracker()
	tracker.Changed(plant.Entities())

	return &fixture{
		plant: plant, state: &state, gw: gw, sim: process.NewSimulator(world, 3, rng),
		events: events, tracker: tracker, panel: panel, p: p,
	}
}

// tick advances the plant and publishes changes the way the engine does.
func (f *fixture) tick(t *testing.T) {
	t.Helper()
	f.sim.Advance(f.plant, f.state, 1.0/60)
	if ids := f.tracker.Changed(f.plant.Entities()); len(ids) > 0 {
		require.NoError(t, f.events.Publish(bus.NewEvent(model.EventChanged, "test", model.ChangeSet{IDs: ids})))
	}
	f.p.Flush()
}

func TestSelectReplacesPrevious(t *testing.T) {
	f := newFixture(t)
	m := f.plant.Machines[0]

	require.NoError(t, f.p.Select(m.ID()))
	assert.Equal(t, []string{"highlight", "show"}, f.panel.calls)
	assert.Equal(t, m.ID(), f.state.Selection)
	assert.Equal(t, "Machine 1", f.panel.last().Title)

	f.panel.calls = nil
	c := f.plant.Conveyors[0]
	require.NoError(t, f.p.Select(c.ID()))
	assert.Equal(t, []string{"unhighlight", "hide", "highlight", "show"}, f.panel.calls)
	assert.Equal(t, c.ID(), f.state.Selection)

	sel, ok := f.p.Selected()
	require.True(t, ok)
	assert.Same(t, c, sel)
}

func TestDeselect(t *testing.T) {
	f := newFixture(t)
	f.p.Deselect()
	assert.Empty(t, f.panel.calls, "no-op without a selection")

	require.NoError(t, f.p.Select(f.plant.Sensors[0].ID()))
	f.p.Deselect()
	assert.Zero(t, f.state.Selection)
	_, ok := f.p.View()
	assert.False(t, ok)
	assert.Equal(t, "hide", f.panel.calls[len(f.panel.calls)-1])
}

func TestSelectUnknown(t *testing.T) {
	f := newFixture(t)
	assert.ErrorIs(t, f.p.Select(404), control.ErrUnknownTarget)
}

func TestPipelineViewFollowsFlow(t *testing.T) {
	f := newFixture(t)
	pipe := f.plant.MainPipeline()
	f.gw.SetFlowTarget(pipe.ID(), 60)
	require.NoError(t, f.p.Select(pipe.ID()))
	shown := len(f.panel.views)

	for i := 0; i < 30; i++ {
		f.tick(t)
	}

	assert.Equal(t, shown+30, len(f.panel.views), "every tick refreshes while flow ramps")
	row, ok := f.panel.last().Row("currentFlow")
	require.True(t, ok)
	assert.Equal(t, "10.00", row.Value)
}

func TestValveViewTracksPipeline(t *testing.T) {
	f := newFixture(t)
	valve := f.plant.MainPipeline().Valve()
	require.NoError(t, f.p.Select(valve.ID()))

	status, _ := f.panel.last().Row("Status")
	assert.Equal(t, "CLOSED - No Flow", status.Value)

	require.NoError(t, f.p.Operate("valve", 0))
	f.tick(t)

	status, _ = f.panel.last().Row("Status")
	assert.Equal(t, "OPEN - Flow Active", status.Value)
	btn, ok := f.panel.last().Control("valve")
	require.True(t, ok)
	assert.Equal(t, "Close Valve", btn.Label)
}

func TestIdleSelectionIsNotRedrawn(t *testing.T) {
	f := newFixture(t)
	c := f.plant.Conveyors[1]
	require.NoError(t, f.p.Select(c.ID()))
	shown := len(f.panel.views)

	for i := 0; i < 10; i++ {
		f.tick(t)
	}
	assert.Equal(t, shown, len(f.panel.views))
}

func TestOperate(t *testing.T) {
	f := newFixture(t)
	assert.ErrorIs(t, f.p.Operate("rpm", 100), ErrNoSelection)

	m := f.plant.Machines[1]
	require.NoError(t, f.p.Select(m.ID()))
	require.NoError(t, f.p.Operate("rpm", 900))
	assert.Equal(t, 900.0, m.RPM)

	require.NoError(t, f.p.Operate("toggle", 0))
	assert.False(t, m.Enabled())
	f.p.Flush()
	btn, _ := f.panel.last().Control("toggle")
	assert.Equal(t, "Start Machine", btn.Label)

	assert.ErrorIs(t, f.p.Operate("flow", 1), ErrUnknownControl)
}

func TestResetClearsSelection(t *testing.T) {
	f := newFixture(t)
	f.gw.OnReset(f.p.Deselect)
	require.NoError(t, f.p.Select(f.plant.Sensors[2].ID()))

	f.gw.Reset()

	_, ok := f.p.Selected()
	assert.False(t, ok)
	assert.Zero(t, f.state.Selection)
}

func TestBuildRows(t *testing.T) {
	f := newFixture(t)
	s := f.plant.Sensors[0]
	s.Temperature, s.Humidity = 21.456, 50

	v := Build(s)
	assert.Equal(t, "Sensor A", v.Title)

	labels := make([]string, 0, len(v.Rows))
	for _, r := range v.Rows {
		labels = append(labels, r.Label)
	}
	assert.Equal(t, []string{"Type", "temperature", "humidity", "status", "Position"}, labels)

	temp, _ := v.Row("temperature")
	assert.Equal(t, "21.46", temp.Value)
	pos, _ := v.Row("Position")
	assert.Equal(t, "(0.0, 8.0, 0.0)", pos.Value)
	_, ok := v.Control("reset")
	assert.True(t, ok)
}

func TestDetailViewJSON(t *testing.T) {
	f := newFixture(t)

	for _, e := range f.plant.Entities() {
		v := Build(e)
		b, err := json.Marshal(v)
		require.NoError(t, err, e.Name())

		var decoded DetailView
		require.NoError(t, json.Unmarshal(b, &decoded), e.Name())
		assert.Equal(t, v, decoded, e.Name())
	}

	flow, ok := Build(f.plant.MainPipeline()).Control("flow")
	require.True(t, ok)
	b, err := json.Marshal(flow)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"type":"slider"`)

	var ct ControlType
	assert.Error(t, ct.UnmarshalText([]byte("knob")))
}
