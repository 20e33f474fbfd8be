package model

import "math"

// Style is the visual hint set handed to renderers.
type Style struct {
	Color     uint32  `json:"color"`
	Emissive  uint32  `json:"emissive"`
	Intensity float64 `json:"intensity"`
	Opacity   float64 `json:"opacity"`
	Selected  bool    `json:"selected,omitempty"`
}

const (
	colorMachine  uint32 = 0x4299e1
	colorConveyor uint32 = 0x888888
	colorPipeline uint32 = 0x4a90e2
	colorOpen     uint32 = 0x4caf50
	colorLowFlow  uint32 = 0xff9900
	colorClosed   uint32 = 0xff6b6b
	colorHigh     uint32 = 0x00ff00
	colorMid      uint32 = 0xffff00
	colorLow      uint32 = 0xff8800
	colorAlarm    uint32 = 0xff0000
	colorSelected uint32 = 0xffff00
)

// StyleOf derives the style of e at the given simulated time.
func StyleOf(e Entity, elapsed float64) Style {
	switch v := e.(type) {
	case *Machine:
		s := Style{Color: colorMachine, Emissive: colorMachine, Intensity: 0.1, Opacity: 1}
		if v.Enabled() {
			s.Intensity = 0.3
		}
		return s
	case *Conveyor:
		s := Style{Color: colorConveyor, Opacity: 0.5}
		if v.Enabled() {
			s.Opacity = 1
		}
		return s
	case *Pipeline:
		return Style{
			Color:     colorPipeline,
			Emissive:  flowColor(v.FlowRate),
			Intensity: v.Emissive,
			Opacity:   1,
		}
	case *Valve:
		if !v.Open {
			return Style{Color: colorClosed, Emissive: colorAlarm, Intensity: 0.2, Opacity: 1}
		}
		s := Style{Color: colorOpen, Emissive: colorHigh, Intensity: 0.3 + math.Sin(elapsed*5)*0.1, Opacity: 1}
		if p := v.Pipeline(); p != nil && p.FlowRate <= 50 {
			s.Color = colorLowFlow
		}
		return s
	case *Sensor:
		return Style{Color: v.Color, Emissive: v.Color, Intensity: 0.3, Opacity: 1}
	default:
		return Style{Opacity: 1}
	}
}

// FlowEmissive is the glow intensity for a given flow.
func FlowEmissive(flow float64) float64 {
	if flow <= 0 {
		return 0
	}
	return math.Min(flow/MaxFlowRate, 0.5)
}

func flowColor(flow float64) uint32 {
	switch {
	case flow > 75:
		return colorHigh
	case flow > 50:
		return colorMid
	case flow > 0:
		return colorLow
	default:
		return 0
	}
}

// Highlight overrides the emissive channel with the selection colour.
func (s Style) Highlight() Style {
	s.Emissive = colorSelected
	s.Intensity = 0.5
	s.Selected = true
	return s
}
