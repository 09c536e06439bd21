package sim

import (
	"math"

	"plantmon-sim/internal/telemetry"
)

// HistorySummary aggregates a window of records for display.
type HistorySummary struct {
	Count            int     `json:"count"`
	MeanTemperatureC float64 `json:"mean_temperature_c"`
	MinTemperatureC  float64 `json:"min_temperature_c"`
	MaxTemperatureC  float64 `json:"max_temperature_c"`
	MeanHumidityPct  float64 `json:"mean_humidity_pct"`
	MeanHealthScore  float64 `json:"mean_health_score"`
	OutOfEnvelope    int     `json:"out_of_envelope"`
}

// Summarize aggregates recs. Records outside env are counted but still
// included in the means.
func Summarize(recs []telemetry.Record, env telemetry.Envelope) HistorySummary {
	s := HistorySummary{Count: len(recs)}
	if len(recs) == 0 {
		return s
	}
	s.MinTemperatureC = math.Inf(1)
	s.MaxTemperatureC = math.Inf(-1)
	var temp, hum, health float64
	for _, r := range recs {
		t := r.EnvironmentalConditions.TemperatureC
		temp += t
		hum += r.EnvironmentalConditions.HumidityPct
		health += float64(r.HealthScore)
		s.MinTemperatureC = math.Min(s.MinTemperatureC, t)
		s.MaxTemperatureC = math.Max(s.MaxTemperatureC, t)
		if !env.Contains(r) {
			s.OutOfEnvelope++
		}
	}
	n := float64(len(recs))
	s.MeanTemperatureC = temp / n
	s.MeanHumidityPct = hum / n
	s.MeanHealthScore = health / n
	return s
}
