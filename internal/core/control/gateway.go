package control

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/zeusync/factorysim/internal/core/history"
	"github.com/zeusync/factorysim/internal/core/model"
	"github.com/zeusync/factorysim/internal/core/notice"
	"github.com/zeusync/factorysim/internal/core/observability/log"
	"github.com/zeusync/factorysim/internal/core/process"
	"github.com/zeusync/factorysim/internal/core/systems/physics"
)

// Notifier receives user-visible acknowledgements.
type Notifier interface {
	Notify(message string, severity notice.Severity) notice.Notice
}

const (
	// minOpenFlow is the flow a valve opens onto when no target is set.
	minOpenFlow = 10.0
	// coolingShock is the one-shot temperature drop at full cooling.
	coolingShock = 5.0
)

// Gateway applies control actions to the plant. It is not safe for
// concurrent use: callers serialise it with the simulation tick.
type Gateway struct {
	plant   *model.Plant
	state   *process.State
	world   physics.World
	history *history.Store
	notices Notifier
	rng     *rand.Rand
	logger  log.Log

	onReset []func()
}

// NewGateway wires a gateway. world and notices may be nil.
func NewGateway(
	plant *model.Plant,
	state *process.State,
	world physics.World,
	store *history.Store,
	notices Notifier,
	rng *rand.Rand,
	logger log.Log,
) *Gateway {
	return &Gateway{
		plant:   plant,
		state:   state,
		world:   world,
		history: store,
		notices: notices,
		rng:     rng,
		logger:  logger.With(log.String("component", "control")),
	}
}

// OnReset registers fn to run at the end of every Reset.
func (g *Gateway) OnReset(fn func()) {
	g.onReset = append(g.onReset, fn)
}

// Validate checks an action coming from outside the process.
func (g *Gateway) Validate(a Action) error {
	if _, ok := actionNames[a.Kind]; !ok {
		return fmt.Errorf("%w: %d", ErrUnknownAction, uint8(a.Kind))
	}
	if math.IsNaN(a.Value) || math.IsInf(a.Value, 0) {
		return fmt.Errorf("%s: value must be finite", a.Kind)
	}
	kinds, targeted := targetKinds[a.Kind]
	if !targeted {
		return nil
	}
	e, ok := g.plant.Lookup(a.Target)
	if !ok {
		return fmt.Errorf("%s: %w: %d", a.Kind, ErrUnknownTarget, a.Target)
	}
	for _, k := range kinds {
		if e.Kind() == k {
			return nil
		}
	}
	return fmt.Errorf("%s: %w: %s is a %s", a.Kind, ErrWrongKind, e.Name(), e.Kind())
}

// Apply validates and executes a.
func (g *Gateway) Apply(a Action) error {
	if err := g.Validate(a); err != nil {
		return err
	}
	g.logger.Debug("apply action", log.String("action", a.String()))

	switch a.Kind {
	case SetConveyorSpeed:
		g.SetConveyorSpeed(a.Target, a.Value)
	case ToggleConveyor:
		g.ToggleConveyor(a.Target)
	case SetFlowTarget:
		g.SetFlowTarget(a.Target, a.Value)
	case ToggleValve:
		g.ToggleValve(a.Target)
	case OpenValve:
		g.SetValve(a.Target, true)
	case CloseValve:
		g.SetValve(a.Target, false)
	case SetRPMTarget:
		g.SetRPMTarget(a.Target, a.Value)
	case ToggleMachine:
		g.ToggleMachine(a.Target)
	case ResetSensor:
		g.ResetSensor(a.Target)
	case SetCooling:
		g.SetCooling(a.Value)
	case SetGravityY:
		g.SetGravityY(a.Value)
	case SetSpeed:
		g.SetSpeed(a.Value)
	case Reset:
		g.Reset()
	}
	return nil
}

func (g *Gateway) SetConveyorSpeed(id model.EntityID, v float64) {
	c := mustGet[*model.Conveyor](g.plant, id)
	c.Speed = clamp(v, 0, model.MaxConveyorSpeed)
}

// ToggleConveyor flips the conveyor and returns the new enabled flag.
func (g *Gateway) ToggleConveyor(id model.EntityID) bool {
	return mustGet[*model.Conveyor](g.plant, id).Toggle()
}

// SetFlowTarget sets the pipeline target flow. A positive target opens a
// closed valve. id may name the pipeline or its valve.
func (g *Gateway) SetFlowTarget(id model.EntityID, v float64) {
	p := g.pipeline(id)
	v = clamp(v, 0, model.MaxFlowRate)

	p.FlowRate = v
	p.Emissive = model.FlowEmissive(v)
	if v > 0 && !p.Valve().Open {
		p.Valve().Open = true
	}
	g.pushFlow(v)
}

// ToggleValve flips the valve of the pipeline and returns whether it is
// now open.
func (g *Gateway) ToggleValve(id model.EntityID) bool {
	p := g.pipeline(id)
	open := !p.Valve().Open
	g.SetValve(id, open)
	return open
}

// SetValve opens or closes the valve. Opening never leaves the target flow
// at zero. Closing stops flow and pressure at once. Setting the current
// state again changes nothing.
func (g *Gateway) SetValve(id model.EntityID, open bool) {
	p := g.pipeline(id)
	v := p.Valve()
	if v.Open == open {
		return
	}
	v.Open = open

	if open {
		p.FlowRate = math.Max(p.FlowRate, minOpenFlow)
		p.Emissive = model.FlowEmissive(p.FlowRate)
		g.pushFlow(p.FlowRate)
		g.notify(fmt.Sprintf("Valve opened - Flow: %.1f L/min", p.FlowRate), notice.Info)
		return
	}
	p.FlowRate, p.CurrentFlow, p.Pressure, p.Emissive = 0, 0, 0, 0
	g.pushFlow(0)
	g.notify("Valve closed - Flow stopped", notice.Info)
}

// SetRPMTarget sets the machine RPM and the power it implies.
func (g *Gateway) SetRPMTarget(id model.EntityID, v float64) {
	m := mustGet[*model.Machine](g.plant, id)
	m.RPM = clamp(v, 0, model.MaxRPM)
	m.Power = model.PowerFor(m.RPM, m.Enabled())
	g.pushPower()
}

// ToggleMachine starts or stops the machine and returns the new enabled flag.
func (g *Gateway) ToggleMachine(id model.EntityID) bool {
	m := mustGet[*model.Machine](g.plant, id)
	on := m.Toggle()
	m.Power = model.PowerFor(m.RPM, on)
	g.pushPower()
	return on
}

// ResetSensor draws fresh sensor readings.
func (g *Gateway) ResetSensor(id model.EntityID) {
	s := mustGet[*model.Sensor](g.plant, id)
	s.Randomize(g.rng)
	g.notify("Sensor reset - New values initialized", notice.Info)
}

// SetCooling updates the cooling setpoint and knocks every machine's
// temperature down once in proportion to it.
func (g *Gateway) SetCooling(v float64) {
	v = clamp(v, 0, process.MaxCooling)
	g.state.Cooling = v
	drop := v / process.MaxCooling * coolingShock
	for _, m := range g.plant.Machines {
		m.Temperature = math.Max(model.MinMachineTemp, m.Temperature-drop)
	}
}

// SetGravityY forwards vertical gravity to the physics world.
func (g *Gateway) SetGravityY(v float64) {
	g.state.GravityY = v
	if g.world != nil {
		g.world.SetGravity(physics.Vec3{Y: v})
	}
}

func (g *Gateway) SetSpeed(v float64) {
	g.state.Speed = clamp(v, 0, process.MaxSpeed)
}

// Reset parks the sensors at their home positions, restarts simulated time
// and clears the selection.
func (g *Gateway) Reset() {
	for _, s := range g.plant.Sensors {
		if body := s.Body(); body != nil {
			body.SetVelocity(physics.Vec3{})
			body.SetAngularVelocity(physics.Vec3{})
			body.SetPosition(s.Home())
		}
		s.SetPosition(s.Home())
	}
	g.state.Elapsed = 0
	g.state.Selection = 0
	for _, fn := range g.onReset {
		fn()
	}
}

// pipeline resolves a pipeline or valve id to its pipeline.
func (g *Gateway) pipeline(id model.EntityID) *model.Pipeline {
	e, ok := g.plant.Lookup(id)
	if !ok {
		panic(fmt.Sprintf("control: unknown entity %d", id))
	}
	switch v := e.(type) {
	case *model.Pipeline:
		return v
	case *model.Valve:
		return v.Pipeline()
	default:
		panic(fmt.Sprintf("control: entity %d is a %s, not a pipeline", id, e.Kind()))
	}
}

// pushFlow records a flow sample and the pressure that flow settles at.
func (g *Gateway) pushFlow(flow float64) {
	pressure := 0.0
	if flow > 0 {
		pressure = process.SteadyPressure(flow)
	}
	g.history.Push(history.Flow, flow)
	g.history.Push(history.Pressure, pressure)
}

func (g *Gateway) pushPower() {
	g.history.Push(history.Power, g.plant.TotalPower())
}

func (g *Gateway) notify(msg string, severity notice.Severity) {
	if g.notices != nil {
		g.notices.Notify(msg, severity)
	}
}

func mustGet[T model.Entity](p *model.Plant, id model.EntityID) T {
	e, ok := model.As[T](p, id)
	if !ok {
		var zero T
		panic(fmt.Sprintf("control: entity %d is missing or not a %T", id, zero))
	}
	return e
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
