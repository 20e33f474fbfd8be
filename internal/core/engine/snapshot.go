package engine

import (
	"time"

	"github.com/zeusync/factorysim/internal/core/history"
	"github.com/zeusync/factorysim/internal/core/model"
	"github.com/zeusync/factorysim/internal/core/notice"
	"github.com/zeusync/factorysim/internal/core/selection"
	"github.com/zeusync/factorysim/internal/core/systems/physics"
	"github.com/zeusync/factorysim/internal/core/telemetry"
)

// EntityView is the render-facing state of one entity.
type EntityView struct {
	ID       model.EntityID     `json:"id"`
	Kind     model.Kind         `json:"kind"`
	Name     string             `json:"name"`
	Enabled  bool               `json:"enabled"`
	Open     *bool              `json:"open,omitempty"`
	Position physics.Vec3       `json:"position"`
	Metrics  []model.Metric     `json:"metrics"`
	Style    model.Style        `json:"style"`
	Motion   map[string]float64 `json:"motion,omitempty"`
}

type StateView struct {
	Cooling  float64 `json:"cooling"`
	Speed    float64 `json:"speed"`
	GravityY float64 `json:"gravityY"`
	Elapsed  float64 `json:"elapsed"`
}

// Snapshot is a consistent copy of everything renderers draw.
type Snapshot struct {
	Time      time.Time             `json:"time"`
	State     StateView             `json:"state"`
	Entities  []EntityView          `json:"entities"`
	Series    history.Window        `json:"series"`
	Readout   telemetry.Readout     `json:"readout"`
	Minimap   []telemetry.Marker    `json:"minimap"`
	Stats     telemetry.Stats       `json:"stats"`
	Notices   []notice.Notice       `json:"notices"`
	Selection model.EntityID        `json:"selection,omitempty"`
	Detail    *selection.DetailView `json:"detail,omitempty"`
}

// Snapshot copies the state between two ticks.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	s := Snapshot{
		Time: e.lastFrame.Now,
		State: StateView{
			Cooling:  e.state.Cooling,
			Speed:    e.state.Speed,
			GravityY: e.state.GravityY,
			Elapsed:  e.state.Elapsed,
		},
		Series:    e.store.Window(),
		Readout:   e.aggregator.Last(),
		Minimap:   telemetry.Minimap(e.plant),
		Stats:     e.lastStats,
		Notices:   e.notices.Active(),
		Selection: e.state.Selection,
	}
	if s.Time.IsZero() {
		s.Time = e.clock.Now()
	}
	for _, ent := range e.plant.Entities() {
		s.Entities = append(s.Entities, e.entityView(ent))
	}
	if v, ok := e.presenter.View(); ok {
		s.Detail = &v
	}
	return s
}

func (e *Engine) entityView(ent model.Entity) EntityView {
	style := model.StyleOf(ent, e.state.Elapsed)
	if ent.ID() == e.state.Selection {
		style = style.Highlight()
	}
	v := EntityView{
		ID:       ent.ID(),
		Kind:     ent.Kind(),
		Name:     ent.Name(),
		Enabled:  ent.Enabled(),
		Position: ent.Position(),
		Metrics:  ent.Metrics(),
		Style:    style,
	}
	switch t := ent.(type) {
	case *model.Machine:
		v.Motion = map[string]float64{"rotorX": t.RotorX, "rotorZ": t.RotorZ}
	case *model.Conveyor:
		v.Motion = map[string]float64{"scroll": t.Scroll, "roller": t.Roller, "yaw": t.Yaw}
	case *model.Valve:
		open := t.Open
		v.Open = &open
		v.Motion = map[string]float64{"spin": t.Spin}
	case *model.Pipeline:
		open := t.Valve().Open
		v.Open = &open
	case *model.Sensor:
		v.Motion = map[string]float64{"spinX": t.SpinX, "spinY": t.SpinY}
	}
	return v
}
