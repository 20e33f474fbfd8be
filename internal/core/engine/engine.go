package engine

import (
	"math/rand"
	"sync"
	"time"

	"github.com/zeusync/factorysim/internal/core/clock"
	"github.com/zeusync/factorysim/internal/core/control"
	"github.com/zeusync/factorysim/internal/core/events/bus"
	"github.com/zeusync/factorysim/internal/core/history"
	"github.com/zeusync/factorysim/internal/core/model"
	"github.com/zeusync/factorysim/internal/core/notice"
	"github.com/zeusync/factorysim/internal/core/observability/log"
	"github.com/zeusync/factorysim/internal/core/process"
	"github.com/zeusync/factorysim/internal/core/selection"
	"github.com/zeusync/factorysim/internal/core/systems/physics"
	"github.com/zeusync/factorysim/internal/core/telemetry"
)

// Observer receives per-tick telemetry, e.g. a Prometheus exporter.
type Observer interface {
	ObserveReadout(telemetry.Readout)
	ObservePlant(*model.Plant)
	ObserveStats(telemetry.Stats)
	ObserveAction(kind, outcome string)
	ObserveTick(seconds float64)
}

type Options struct {
	FrameRate       int
	MaxFrameDelta   time.Duration
	PhysicsSubsteps int

	Speed    float64
	Cooling  float64
	GravityY float64
	// Seed drives every random draw. Zero picks a time based seed.
	Seed int64

	SampleInterval  time.Duration
	StatsInterval   time.Duration
	HistoryCapacity int
	Telemetry       telemetry.Options

	NoticeLifetime time.Duration

	Layout model.Layout
	// Panel renders the detail view. Optional.
	Panel selection.Panel
	// Observer mirrors telemetry. Optional.
	Observer Observer
	// Now replaces the wall clock. Used by tests.
	Now func() time.Time
}

func DefaultOptions() Options {
	return Options{
		FrameRate:       60,
		MaxFrameDelta:   100 * time.Millisecond,
		PhysicsSubsteps: 3,
		Speed:           1,
		GravityY:        process.DefaultGravityY,
		SampleInterval:  200 * time.Millisecond,
		StatsInterval:   time.Second,
		HistoryCapacity: history.DefaultCapacity,
		Telemetry:       telemetry.DefaultOptions(),
		NoticeLifetime:  notice.DefaultLifetime,
		Layout:          model.DefaultLayout(),
	}
}

// Engine owns the plant and runs the per-frame loop. Control input from
// other goroutines is queued and applied at the start of the next tick.
type Engine struct {
	mu sync.Mutex

	opts   Options
	logger log.Log
	events bus.EventBus

	plant      *model.Plant
	state      process.State
	world      *physics.SphereWorld
	sim        *process.Simulator
	gateway    *control.Gateway
	presenter  *selection.Presenter
	aggregator *telemetry.Aggregator
	store      *history.Store
	notices    *notice.Board
	tracker    *model.Tracker
	observer   Observer

	clock  *clock.Clock
	sample *clock.Interval
	stats  *clock.Interval
	frames *telemetry.FrameCounter

	lastStats telemetry.Stats
	lastFrame clock.Frame

	queueMu sync.Mutex
	queue   []command
}

type command struct {
	name string
	run  func() error
}

// New builds the plant and every core component around it.
func New(opts Options, events bus.EventBus, logger log.Log) (*Engine, error) {
	if opts.FrameRate <= 0 {
		opts.FrameRate = 60
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	seed := opts.Seed
	if seed == 0 {
		seed = opts.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))
	logger = logger.With(log.String("component", "engine"))

	e := &Engine{
		opts:     opts,
		logger:   logger,
		events:   events,
		state:    process.DefaultState(),
		tracker:  model.NewTracker(),
		observer: opts.Observer,
	}
	e.state.Speed = opts.Speed
	e.state.Cooling = opts.Cooling
	e.state.GravityY = opts.GravityY

	e.world = physics.NewSphereWorld(physics.Vec3{Y: opts.GravityY})
	e.plant = model.NewPlant(opts.Layout, rng, func(p physics.Vec3) physics.Body {
		s := physics.NewSphere(p, 0.8, 1)
		s.LinearDamping, s.AngularDamping = 0.4, 0.4
		e.world.AddSphere(s)
		return s
	})

	e.store = history.NewStore(opts.HistoryCapacity)
	e.store.Seed(seed)
	e.notices = notice.NewBoard(opts.NoticeLifetime, logger, notice.WithBus(events), notice.WithClock(opts.Now))
	e.sim = process.NewSimulator(e.world, opts.PhysicsSubsteps, rng)
	e.gateway = control.NewGateway(e.plant, &e.state, e.world, e.store, e.notices, rng, logger)
	e.aggregator = telemetry.NewAggregator(e.plant, e.store, e.notices, opts.Telemetry, logger)
	e.presenter = selection.NewPresenter(e.plant, &e.state, applierFunc(e.apply), opts.Panel, logger)
	if err := e.presenter.Attach(events); err != nil {
		return nil, err
	}

	e.clock = clock.New(opts.MaxFrameDelta, clock.WithNow(opts.Now))
	now := e.clock.Now()
	e.sample = clock.NewInterval(opts.SampleInterval, now)
	e.stats = clock.NewInterval(opts.StatsInterval, now)
	e.frames = telemetry.NewFrameCounter(now)
	e.lastStats = telemetry.Stats{Objects: e.plant.Len(), Bodies: e.world.BodyCount()}

	e.gateway.OnReset(e.clock.Restart)
	e.gateway.OnReset(e.presenter.Deselect)
	e.gateway.OnReset(e.aggregator.Reset)
	e.gateway.OnReset(e.tracker.Reset)

	e.tracker.Changed(e.plant.Entities())
	logger.Info("engine ready",
		log.Int("entities", e.plant.Len()),
		log.Int("bodies", e.world.BodyCount()),
		log.Int("frame_rate", opts.FrameRate),
	)
	return e, nil
}

// Close detaches the engine from the bus.
func (e *Engine) Close() {
	e.presenter.Detach()
}

// Plant exposes the entity set. Callers must not mutate it; use Dispatch.
func (e *Engine) Plant() *model.Plant { return e.plant }
