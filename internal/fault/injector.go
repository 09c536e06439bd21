// Package fault applies simulated transmission faults to telemetry records.
package fault

import "plantmon-sim/internal/telemetry"

// Gate probabilities and wild-data ranges.
const (
	DropProbability = 0.01
	WildProbability = 0.005

	WildTemperatureMin = -10.0
	WildTemperatureMax = 50.0
	WildHumidityMin    = 0.0
	WildHumidityMax    = 200.0
)

// Kind classifies what happened to a record.
type Kind int

// Possible outcomes.
const (
	Delivered Kind = iota
	Suppressed
	DeliveredWild
)

// String returns a stable lowercase name for k.
func (k Kind) String() string {
	switch k {
	case Delivered:
		return "delivered"
	case Suppressed:
		return "suppressed"
	case DeliveredWild:
		return "delivered_wild"
	default:
		return "unknown"
	}
}

// Flags enables the individual fault gates.
type Flags struct {
	Drop bool `json:"drop"`
	Wild bool `json:"wild"`
}

// Draws supplies uniform samples in [0, 1). *rand.Rand satisfies it.
type Draws interface {
	Float64() float64
}

// Outcome is the result of passing a record through the gates. Record is the
// zero value when Kind is Suppressed.
type Outcome struct {
	Kind   Kind
	Record telemetry.Record
}

// Inject runs the drop gate and then, if the record survived, the wild-data
// gate. A suppressed record is never corrupted. Each enabled gate consumes
// exactly one draw; a wild override consumes two more.
func Inject(rec telemetry.Record, flags Flags, draws Draws) Outcome {
	if flags.Drop && draws.Float64() < DropProbability {
		return Outcome{Kind: Suppressed}
	}
	if flags.Wild && draws.Float64() < WildProbability {
		rec.EnvironmentalConditions.TemperatureC = uniform(draws, WildTemperatureMin, WildTemperatureMax)
		rec.EnvironmentalConditions.HumidityPct = uniform(draws, WildHumidityMin, WildHumidityMax)
		return Outcome{Kind: DeliveredWild, Record: rec}
	}
	return Outcome{Kind: Delivered, Record: rec}
}

func uniform(draws Draws, lo, hi float64) float64 {
	return lo + draws.Float64()*(hi-lo)
}
