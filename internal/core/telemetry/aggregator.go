package telemetry

import (
	"fmt"
	"math"

	"github.com/zeusync/factorysim/internal/core/history"
	"github.com/zeusync/factorysim/internal/core/model"
	"github.com/zeusync/factorysim/internal/core/notice"
	"github.com/zeusync/factorysim/internal/core/observability/log"
	"github.com/zeusync/factorysim/internal/core/process"
	"github.com/zeusync/factorysim/pkg/sequence"
)

// Notifier receives threshold warnings.
type Notifier interface {
	Notify(message string, severity notice.Severity) notice.Notice
}

// Readout is the headline metric set of one sampling firing.
type Readout struct {
	Temperature float64 `json:"temperature"`
	Pressure    float64 `json:"pressure"`
	Flow        float64 `json:"flow"`
	Power       float64 `json:"power"`
	// Alert is set while Temperature is above the warning threshold.
	Alert bool `json:"alert"`
}

type Options struct {
	// WarningThreshold is the temperature sample above which warnings fire.
	WarningThreshold float64
	// WarningCooldown is the minimum simulated time between two warnings.
	WarningCooldown float64
}

func DefaultOptions() Options {
	return Options{WarningThreshold: 50, WarningCooldown: 10}
}

// Aggregator folds the plant into headline samples.
type Aggregator struct {
	plant   *model.Plant
	store   *history.Store
	notices Notifier
	opts    Options
	logger  log.Log

	warned      bool
	lastWarning float64
	last        Readout
}

func NewAggregator(plant *model.Plant, store *history.Store, notices Notifier, opts Options, logger log.Log) *Aggregator {
	return &Aggregator{
		plant:   plant,
		store:   store,
		notices: notices,
		opts:    opts,
		logger:  logger.With(log.String("component", "telemetry")),
	}
}

// Sample computes a readout from the current plant, pushes it into the
// history and raises a debounced over-temperature warning.
func (a *Aggregator) Sample(state process.State) Readout {
	r := Readout{
		Temperature: a.temperature(state),
		Pressure:    400 + process.Jitter(state.Elapsed, 0.3, 50),
		Power:       a.plant.TotalPower(),
	}
	if p := a.plant.MainPipeline(); p != nil && p.Valve().Open {
		r.Flow = p.CurrentFlow
		if p.Pressure > 0 {
			r.Pressure = p.Pressure
		}
	}
	if r.Power <= 0 {
		r.Power = 200 + process.Jitter(state.Elapsed, 0.4, 50)
	}
	r.Alert = r.Temperature > a.opts.WarningThreshold

	a.store.Push(history.Temperature, r.Temperature)
	a.store.Push(history.Pressure, r.Pressure)
	a.store.Push(history.Flow, r.Flow)
	a.store.Push(history.Power, r.Power)

	if r.Alert {
		a.warn(state.Elapsed, r.Temperature)
	}
	a.last = r
	return r
}

// Last returns the most recent readout.
func (a *Aggregator) Last() Readout { return a.last }

// Reset re-arms the warning debounce.
func (a *Aggregator) Reset() {
	a.warned = false
	a.lastWarning = 0
}

// temperature averages the cooled temperature of enabled machines. The
// cooling setpoint lowers the reading beyond what it does to the machines.
func (a *Aggregator) temperature(state process.State) float64 {
	sum, n := sequence.Sum(a.plant.Running(), func(m *model.Machine) float64 {
		return math.Max(model.MinMachineTemp, m.Temperature-state.Cooling/process.MaxCooling*15)
	})
	base := model.MinMachineTemp
	if n > 0 {
		base = sum / float64(n)
	}
	return base - state.Cooling/process.MaxCooling*10 + process.Jitter(state.Elapsed, 0.3, 2)
}

func (a *Aggregator) warn(elapsed, temp float64) {
	if a.warned && elapsed >= a.lastWarning && elapsed-a.lastWarning < a.opts.WarningCooldown {
		return
	}
	a.warned, a.lastWarning = true, elapsed
	a.logger.Debug("temperature above threshold", log.Float64("temperature", temp))
	if a.notices != nil {
		a.notices.Notify(fmt.Sprintf("High Temperature Warning! (>%g°C)", a.opts.WarningThreshold), notice.Warning)
	}
}
