package process

import (
	"math"

	"github.com/zeusync/factorysim/internal/core/model"
)

// State is the process-wide mutable state passed to every tick.
type State struct {
	// Cooling setpoint in [0,100].
	Cooling float64
	// Speed multiplies wall-clock time into simulated time.
	Speed    float64
	GravityY float64
	// Elapsed is the simulated time since start or the last reset, in seconds.
	Elapsed float64
	// Selection is the selected entity, zero when nothing is selected.
	Selection model.EntityID
}

const (
	DefaultGravityY = -9.8
	MaxCooling      = 100.0
	MaxSpeed        = 3.0
)

func DefaultState() State {
	return State{Speed: 1, GravityY: DefaultGravityY}
}

// CoolingEffect is the steady damping the cooling setpoint applies to every
// machine's temperature target.
func CoolingEffect(cooling float64) float64 {
	if cooling <= 0 {
		return 0
	}
	return cooling / MaxCooling * 0.5
}

// TargetTemperature is the temperature a running machine converges to.
func TargetTemperature(rpm, cooling float64) float64 {
	return 30 + rpm/100*1.2 - CoolingEffect(cooling)
}

// SteadyPressure is the pipeline pressure at the given flow without jitter.
func SteadyPressure(flow float64) float64 {
	return 400 + flow/model.MaxFlowRate*400
}

// PressureFor adds a slow cosmetic oscillation keyed to simulated time to
// SteadyPressure.
func PressureFor(flow, elapsed float64) float64 {
	return SteadyPressure(flow) + Jitter(elapsed, 0.3, 50)
}

// Jitter is a sinusoid used for cosmetic liveliness. It carries no state.
func Jitter(elapsed, freq, amplitude float64) float64 {
	return math.Sin(elapsed*freq) * amplitude
}
