package selection

import (
	"errors"
	"fmt"

	"github.com/zeusync/factorysim/internal/core/control"
	"github.com/zeusync/factorysim/internal/core/events/bus"
	"github.com/zeusync/factorysim/internal/core/model"
	"github.com/zeusync/factorysim/internal/core/observability/log"
	"github.com/zeusync/factorysim/internal/core/process"
)

var (
	ErrNoSelection    = errors.New("nothing is selected")
	ErrUnknownControl = errors.New("unknown control")
)

// Panel is the external detail panel and highlight renderer.
type Panel interface {
	Highlight(id model.EntityID)
	Unhighlight(id model.EntityID)
	Show(view DetailView)
	Hide()
}

// Applier executes control actions.
type Applier interface {
	Apply(control.Action) error
}

// Presenter keeps the detail panel in step with the selected entity.
// It is driven from the engine goroutine, change handler included.
type Presenter struct {
	plant  *model.Plant
	state  *process.State
	ctl    Applier
	panel  Panel
	logger log.Log

	selected model.Entity
	dirty    bool

	sub bus.Subscription
}

// NewPresenter creates a presenter. panel may be nil when nobody renders
// the selection; View still works.
func NewPresenter(plant *model.Plant, state *process.State, ctl Applier, panel Panel, logger log.Log) *Presenter {
	return &Presenter{
		plant:  plant,
		state:  state,
		ctl:    ctl,
		panel:  panel,
		logger: logger.With(log.String("component", "selection")),
	}
}

// Attach subscribes the presenter to entity change markers.
func (p *Presenter) Attach(events bus.EventBus) error {
	sub, err := events.Subscribe(model.EventChanged, p.onChanged)
	if err != nil {
		return fmt.Errorf("selection: subscribe: %w", err)
	}
	p.sub = sub
	return nil
}

// Detach cancels the change subscription.
func (p *Presenter) Detach() {
	if p.sub != nil {
		_ = p.sub.Cancel()
		p.sub = nil
	}
}

func (p *Presenter) onChanged(e bus.Event) error {
	set, ok := e.Data().(model.ChangeSet)
	if !ok {
		return nil
	}
	sel := p.selected
	if sel == nil {
		return nil
	}
	for _, id := range related(sel) {
		if set.Contains(id) {
			p.markDirty()
			break
		}
	}
	return nil
}

// related lists the ids whose change affects the view of e.
func related(e model.Entity) []model.EntityID {
	switch v := e.(type) {
	case *model.Pipeline:
		return []model.EntityID{v.ID(), v.Valve().ID()}
	case *model.Valve:
		return []model.EntityID{v.ID(), v.Pipeline().ID()}
	default:
		return []model.EntityID{e.ID()}
	}
}

// Select makes id the selection, deselecting the previous entity first.
func (p *Presenter) Select(id model.EntityID) error {
	e, ok := p.plant.Lookup(id)
	if !ok {
		return fmt.Errorf("select: %w: %d", control.ErrUnknownTarget, id)
	}
	p.Deselect()

	p.selected = e
	p.state.Selection = id
	if p.panel != nil {
		p.panel.Highlight(id)
	}
	p.markDirty()
	p.Flush()
	p.logger.Debug("selected", log.Uint32("id", uint32(id)), log.String("name", e.Name()))
	return nil
}

// Deselect clears the selection. It is a no-op when nothing is selected.
func (p *Presenter) Deselect() {
	if p.selected == nil {
		return
	}
	id := p.selected.ID()
	p.selected = nil
	if p.state.Selection == id {
		p.state.Selection = 0
	}
	if p.panel != nil {
		p.panel.Unhighlight(id)
		p.panel.Hide()
	}
	p.dirty = false
}

// Selected returns the selected entity.
func (p *Presenter) Selected() (model.Entity, bool) {
	return p.selected, p.selected != nil
}

// View renders the current detail view.
func (p *Presenter) View() (DetailView, bool) {
	if p.selected == nil {
		return DetailView{}, false
	}
	return Build(p.selected), true
}

// Flush re-renders the panel if the selection changed since the last flush.
func (p *Presenter) Flush() {
	dirty := p.dirty
	p.dirty = false
	if !dirty || p.selected == nil || p.panel == nil {
		return
	}
	p.panel.Show(Build(p.selected))
}

// Operate drives the named control of the open view with value.
func (p *Presenter) Operate(name string, value float64) error {
	view, ok := p.View()
	if !ok {
		return ErrNoSelection
	}
	c, ok := view.Control(name)
	if !ok {
		return fmt.Errorf("%w: %q on %s", ErrUnknownControl, name, view.Title)
	}
	a := control.Action{Kind: c.Action, Target: c.Target}
	if c.Type == Slider {
		a.Value = value
	}
	if err := p.ctl.Apply(a); err != nil {
		return err
	}
	p.markDirty()
	return nil
}

func (p *Presenter) markDirty() { p.dirty = true }
