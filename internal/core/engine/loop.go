package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/zeusync/factorysim/internal/core/control"
	"github.com/zeusync/factorysim/internal/core/events/bus"
	"github.com/zeusync/factorysim/internal/core/model"
	"github.com/zeusync/factorysim/internal/core/notice"
	"github.com/zeusync/factorysim/internal/core/observability/log"
	"github.com/zeusync/factorysim/internal/core/selection"
	"github.com/zeusync/factorysim/internal/core/telemetry"
)

// Dispatch validates a and queues it for the next tick.
func (e *Engine) Dispatch(a control.Action) error {
	if err := e.gateway.Validate(a); err != nil {
		e.observe(a.Kind.String(), "rejected")
		return err
	}
	e.enqueue(a.String(), func() error { return e.apply(a) })
	return nil
}

// apply runs a through the gateway and records the outcome. Panel controls
// reach the gateway through here as well.
func (e *Engine) apply(a control.Action) error {
	err := e.gateway.Apply(a)
	outcome := "applied"
	if err != nil {
		outcome = "rejected"
	}
	e.observe(a.Kind.String(), outcome)
	return err
}

type applierFunc func(control.Action) error

func (f applierFunc) Apply(a control.Action) error { return f(a) }

// Select queues a selection change.
func (e *Engine) Select(id model.EntityID) error {
	if _, ok := e.plant.Lookup(id); !ok {
		return fmt.Errorf("select: %w: %d", control.ErrUnknownTarget, id)
	}
	e.enqueue("select", func() error { return e.presenter.Select(id) })
	return nil
}

// Deselect queues clearing the selection.
func (e *Engine) Deselect() {
	e.enqueue("deselect", func() error {
		e.presenter.Deselect()
		return nil
	})
}

// Operate queues driving a control of the open detail view. The control is
// resolved when the command runs, against the selection at that time.
func (e *Engine) Operate(name string, value float64) {
	e.enqueue("operate "+name, func() error { return e.presenter.Operate(name, value) })
}

func (e *Engine) enqueue(name string, run func() error) {
	e.queueMu.Lock()
	defer e.queueMu.Unlock()

	e.queue = append(e.queue, command{name: name, run: run})
}

// Pending reports the number of queued commands.
func (e *Engine) Pending() int {
	e.queueMu.Lock()
	defer e.queueMu.Unlock()
	return len(e.queue)
}

func (e *Engine) drain() {
	e.queueMu.Lock()
	cmds := e.queue
	e.queue = nil
	e.queueMu.Unlock()

	for _, cmd := range cmds {
		if err := cmd.run(); err != nil {
			e.logger.Debug("command failed", log.String("command", cmd.name), log.Error(err))
			e.notices.Notify(fmt.Sprintf("Command failed - %s", cmd.name), notice.Error)
		}
	}
}

// Step runs one frame: queued commands, clock, physics and metrics,
// change markers, soft timers and the detail panel refresh.
func (e *Engine) Step() {
	start := time.Now()
	e.mu.Lock()
	defer e.mu.Unlock()

	e.drain()

	frame := e.clock.Tick(e.state.Speed)
	if frame.Clamped {
		e.logger.Debug("frame delta clamped", log.Duration("max", e.opts.MaxFrameDelta))
	}
	e.lastFrame = frame

	e.sim.Advance(e.plant, &e.state, frame.Delta)

	if ids := e.tracker.Changed(e.plant.Entities()); len(ids) > 0 {
		ev := bus.NewEvent(model.EventChanged, "engine", model.ChangeSet{IDs: ids})
		if err := e.events.Publish(ev); err != nil {
			e.logger.Warn("change subscriber failed", log.Error(err))
		}
	}

	if e.sample.Due(frame.Now) {
		r := e.aggregator.Sample(e.state)
		if e.observer != nil {
			e.observer.ObserveReadout(r)
			e.observer.ObservePlant(e.plant)
		}
	}

	e.frames.Frame()
	if e.stats.Due(frame.Now) {
		e.lastStats = telemetry.Stats{
			FPS:     e.frames.Rate(frame.Now),
			Objects: e.plant.Len(),
			Bodies:  e.world.BodyCount(),
		}
		if e.observer != nil {
			e.observer.ObserveStats(e.lastStats)
		}
	}

	e.presenter.Flush()

	if e.observer != nil {
		e.observer.ObserveTick(time.Since(start).Seconds())
	}
}

// Run steps the engine at the configured frame rate until ctx is done.
func (e *Engine) Run(ctx context.Context) error {
	ticker := time.NewTicker(time.Second / time.Duration(e.opts.FrameRate))
	defer ticker.Stop()

	e.mu.Lock()
	e.clock.Restart()
	e.mu.Unlock()

	e.logger.Info("simulation loop started")
	defer e.logger.Info("simulation loop stopped")

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			e.Step()
		}
	}
}

// View returns the detail view of the current selection.
func (e *Engine) View() (selection.DetailView, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.presenter.View()
}

func (e *Engine) observe(kind, outcome string) {
	if e.observer != nil {
		e.observer.ObserveAction(kind, outcome)
	}
}
