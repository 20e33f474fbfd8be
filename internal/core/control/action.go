package control

import (
	"fmt"

	"github.com/zeusync/factorysim/internal/core/model"
)

// ActionKind enumerates the user-facing controls.
type ActionKind uint8

const (
	ActionUnknown ActionKind = iota
	SetConveyorSpeed
	ToggleConveyor
	SetFlowTarget
	ToggleValve
	OpenValve
	CloseValve
	SetRPMTarget
	ToggleMachine
	ResetSensor
	SetCooling
	SetGravityY
	SetSpeed
	Reset
)

var actionNames = map[ActionKind]string{
	SetConveyorSpeed: "set_conveyor_speed",
	ToggleConveyor:   "toggle_conveyor",
	SetFlowTarget:    "set_flow_target",
	ToggleValve:      "toggle_valve",
	OpenValve:        "open_valve",
	CloseValve:       "close_valve",
	SetRPMTarget:     "set_rpm_target",
	ToggleMachine:    "toggle_machine",
	ResetSensor:      "reset_sensor",
	SetCooling:       "set_cooling",
	SetGravityY:      "set_gravity_y",
	SetSpeed:         "set_speed",
	Reset:            "reset",
}

func (k ActionKind) String() string {
	if s, ok := actionNames[k]; ok {
		return s
	}
	return fmt.Sprintf("action(%d)", uint8(k))
}

func (k ActionKind) MarshalText() ([]byte, error) {
	if _, ok := actionNames[k]; !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownAction, uint8(k))
	}
	return []byte(k.String()), nil
}

func (k *ActionKind) UnmarshalText(text []byte) error {
	for kind, name := range actionNames {
		if name == string(text) {
			*k = kind
			return nil
		}
	}
	return fmt.Errorf("%w: %q", ErrUnknownAction, text)
}

// targetKinds lists the entity kinds an action may address. Actions missing
// from the map are process-wide and ignore Target.
var targetKinds = map[ActionKind][]model.Kind{
	SetConveyorSpeed: {model.KindConveyor},
	ToggleConveyor:   {model.KindConveyor},
	SetFlowTarget:    {model.KindPipeline, model.KindValve},
	ToggleValve:      {model.KindPipeline, model.KindValve},
	OpenValve:        {model.KindPipeline, model.KindValve},
	CloseValve:       {model.KindPipeline, model.KindValve},
	SetRPMTarget:     {model.KindMachine},
	ToggleMachine:    {model.KindMachine},
	ResetSensor:      {model.KindSensor},
}

// Action is one discrete control input.
type Action struct {
	Kind   ActionKind     `json:"kind"`
	Target model.EntityID `json:"target,omitempty"`
	Value  float64        `json:"value,omitempty"`
}

func (a Action) String() string {
	if _, targeted := targetKinds[a.Kind]; targeted {
		return fmt.Sprintf("%s(%d, %g)", a.Kind, a.Target, a.Value)
	}
	return fmt.Sprintf("%s(%g)", a.Kind, a.Value)
}
