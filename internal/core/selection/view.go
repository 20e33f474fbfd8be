package selection

import (
	"fmt"
	"strconv"

	"github.com/zeusync/factorysim/internal/core/control"
	"github.com/zeusync/factorysim/internal/core/model"
)

// Row is one label/value line of the detail view.
type Row struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

type ControlType uint8

const (
	Slider ControlType = iota + 1
	Button
)

func (t ControlType) MarshalText() ([]byte, error) {
	switch t {
	case Slider:
		return []byte("slider"), nil
	case Button:
		return []byte("button"), nil
	}
	return nil, fmt.Errorf("selection: unknown control type %d", uint8(t))
}

func (t *ControlType) UnmarshalText(text []byte) error {
	switch string(text) {
	case "slider":
		*t = Slider
	case "button":
		*t = Button
	default:
		return fmt.Errorf("selection: unknown control type %q", text)
	}
	return nil
}

// Control is an operable element of the detail view. Operating it issues
// Action against Target.
type Control struct {
	Name   string             `json:"name"`
	Label  string             `json:"label"`
	Type   ControlType        `json:"type"`
	Action control.ActionKind `json:"action"`
	Target model.EntityID     `json:"target"`
	Active bool               `json:"active,omitempty"`

	Min   float64 `json:"min,omitempty"`
	Max   float64 `json:"max,omitempty"`
	Step  float64 `json:"step,omitempty"`
	Value float64 `json:"value,omitempty"`
}

// DetailView is the render-ready content of the detail panel.
type DetailView struct {
	ID       model.EntityID `json:"id"`
	Title    string         `json:"title"`
	Kind     model.Kind     `json:"kind"`
	Rows     []Row          `json:"rows"`
	Controls []Control      `json:"controls"`
}

// Control finds a control by name.
func (v DetailView) Control(name string) (Control, bool) {
	for _, c := range v.Controls {
		if c.Name == name {
			return c, true
		}
	}
	return Control{}, false
}

// Row finds a row by label.
func (v DetailView) Row(label string) (Row, bool) {
	for _, r := range v.Rows {
		if r.Label == label {
			return r, true
		}
	}
	return Row{}, false
}

// Build renders the detail view of e.
func Build(e model.Entity) DetailView {
	v := DetailView{ID: e.ID(), Title: e.Name(), Kind: e.Kind()}
	v.Rows = append(v.Rows, Row{Label: "Type", Value: e.Kind().String()})
	for _, m := range e.Metrics() {
		v.Rows = append(v.Rows, Row{Label: m.Name, Value: formatMetric(m)})
	}
	pos := e.Position()
	v.Rows = append(v.Rows, Row{Label: "Position", Value: fmt.Sprintf("(%.1f, %.1f, %.1f)", pos.X, pos.Y, pos.Z)})

	switch t := e.(type) {
	case *model.Conveyor:
		v.Controls = []Control{
			{
				Name: "speed", Label: fmt.Sprintf("Speed: %.2f", t.Speed), Type: Slider,
				Action: control.SetConveyorSpeed, Target: t.ID(),
				Max: model.MaxConveyorSpeed, Step: 0.1, Value: t.Speed,
			},
			toggle("toggle", "Conveyor", control.ToggleConveyor, t.ID(), t.Enabled()),
		}
	case *model.Pipeline:
		v.Controls = []Control{
			{
				Name: "flow", Label: fmt.Sprintf("Flow Rate: %.1f L/min", t.CurrentFlow), Type: Slider,
				Action: control.SetFlowTarget, Target: t.ID(),
				Max: model.MaxFlowRate, Step: 1, Value: t.FlowRate,
			},
			valveButton(t.ID(), t.Valve().Open),
		}
	case *model.Machine:
		v.Controls = []Control{
			{
				Name: "rpm", Label: fmt.Sprintf("RPM: %.0f", t.RPM), Type: Slider,
				Action: control.SetRPMTarget, Target: t.ID(),
				Max: model.MaxRPM, Step: 50, Value: t.RPM,
			},
			toggle("toggle", "Machine", control.ToggleMachine, t.ID(), t.Enabled()),
		}
	case *model.Valve:
		status := "CLOSED - No Flow"
		if t.Open {
			status = "OPEN - Flow Active"
		}
		v.Rows = append(v.Rows, Row{Label: "Status", Value: status})
		v.Controls = []Control{valveButton(t.ID(), t.Open)}
	case *model.Sensor:
		v.Controls = []Control{{
			Name: "reset", Label: "Reset Sensor", Type: Button,
			Action: control.ResetSensor, Target: t.ID(),
		}}
	}
	return v
}

func toggle(name, noun string, action control.ActionKind, target model.EntityID, enabled bool) Control {
	verb := "Start"
	if enabled {
		verb = "Stop"
	}
	return Control{Name: name, Label: verb + " " + noun, Type: Button, Action: action, Target: target, Active: enabled}
}

func valveButton(target model.EntityID, open bool) Control {
	label := "Open Valve"
	if open {
		label = "Close Valve"
	}
	return Control{Name: "valve", Label: label, Type: Button, Action: control.ToggleValve, Target: target, Active: open}
}

func formatMetric(m model.Metric) string {
	if m.Text != "" {
		return m.Text
	}
	return strconv.FormatFloat(m.Value, 'f', 2, 64)
}
