package telemetry

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/zeusync/factorysim/internal/core/events/bus"
	"github.com/zeusync/factorysim/internal/core/model"
	"github.com/zeusync/factorysim/internal/core/notice"
)

// Exporter mirrors telemetry into Prometheus collectors.
type Exporter struct {
	temperature prometheus.Gauge
	pressure    prometheus.Gauge
	flow        prometheus.Gauge
	power       prometheus.Gauge
	fps         prometheus.Gauge

	machineTemp *prometheus.GaugeVec
	machineOn   *prometheus.GaugeVec
	notices     *prometheus.CounterVec
	actions     *prometheus.CounterVec
	tick        prometheus.Histogram

	sub bus.Subscription
}

// NewExporter creates the collectors and registers them with reg.
func NewExporter(reg prometheus.Registerer) (*Exporter, error) {
	gauge := func(name, help string) prometheus.Gauge {
		return prometheus.NewGauge(prometheus.GaugeOpts{Namespace: "factory", Name: name, Help: help})
	}
	e := &Exporter{
		temperature: gauge("temperature_celsius", "Latest headline temperature sample."),
		pressure:    gauge("pressure_pascal", "Latest headline pressure sample."),
		flow:        gauge("flow_liters_per_minute", "Latest headline flow sample."),
		power:       gauge("power_kilowatts", "Latest headline power sample."),
		fps:         gauge("frames_per_second", "Simulation frames per second."),
		machineTemp: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "factory",
			Name:      "machine_temperature_celsius",
			Help:      "Temperature per machine.",
		}, []string{"machine"}),
		machineOn: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "factory",
			Name:      "machine_enabled",
			Help:      "1 while the machine runs.",
		}, []string{"machine"}),
		notices: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "factory",
			Name:      "notices_total",
			Help:      "Notices raised, by severity.",
		}, []string{"severity"}),
		actions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "factory",
			Name:      "actions_total",
			Help:      "Control actions, by kind and outcome.",
		}, []string{"kind", "outcome"}),
		tick: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "factory",
			Name:      "tick_duration_seconds",
			Help:      "Wall time spent in one simulation tick.",
			Buckets:   prometheus.ExponentialBuckets(0.00005, 2, 12),
		}),
	}

	for _, c := range []prometheus.Collector{
		e.temperature, e.pressure, e.flow, e.power, e.fps,
		e.machineTemp, e.machineOn, e.notices, e.actions, e.tick,
	} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("telemetry: register collector: %w", err)
		}
	}
	return e, nil
}

// Attach counts every notice raised on events.
func (e *Exporter) Attach(events bus.EventBus) error {
	sub, err := events.Subscribe(notice.EventRaised, func(ev bus.Event) error {
		if n, ok := ev.Data().(notice.Notice); ok {
			e.notices.WithLabelValues(n.Severity.String()).Inc()
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("telemetry: subscribe notices: %w", err)
	}
	e.sub = sub
	return nil
}

func (e *Exporter) Detach() {
	if e.sub != nil {
		_ = e.sub.Cancel()
		e.sub = nil
	}
}

func (e *Exporter) ObserveReadout(r Readout) {
	e.temperature.Set(r.Temperature)
	e.pressure.Set(r.Pressure)
	e.flow.Set(r.Flow)
	e.power.Set(r.Power)
}

func (e *Exporter) ObservePlant(plant *model.Plant) {
	for _, m := range plant.Machines {
		e.machineTemp.WithLabelValues(m.Name()).Set(m.Temperature)
		on := 0.0
		if m.Enabled() {
			on = 1
		}
		e.machineOn.WithLabelValues(m.Name()).Set(on)
	}
}

func (e *Exporter) ObserveStats(s Stats) { e.fps.Set(float64(s.FPS)) }

// ObserveAction counts an action by kind; outcome is "applied" or "rejected".
func (e *Exporter) ObserveAction(kind, outcome string) {
	e.actions.WithLabelValues(kind, outcome).Inc()
}

// ObserveTick records the wall time of one tick in seconds.
func (e *Exporter) ObserveTick(seconds float64) { e.tick.Observe(seconds) }
