// Telemetry record exchanged between publisher and subscribers
package telemetry

import (
	"encoding/json"
	"fmt"
	"time"
)

// TimestampLayout is the wire layout of Record timestamps.
const TimestampLayout = "2006-01-02 15:04:05"

// Categorical values a Record may carry.
var (
	Researchers  = []string{"Dr. Smith", "Dr. Garcia", "Dr. Lee", "Dr. Patel"}
	PlantTypes   = []string{"Tomato", "Cucumber", "Basil", "Lettuce"}
	GrowthStages = []string{"Seedling", "Vegetative", "Flowering", "Fruiting"}
)

// Record is one plant-monitoring telemetry reading.
type Record struct {
	ID                      int64                   `json:"id"`
	Researcher              string                  `json:"researcher"`
	Timestamp               Timestamp               `json:"timestamp"`
	PlantMetrics            PlantMetrics            `json:"plant_metrics"`
	EnvironmentalConditions EnvironmentalConditions `json:"environmental_conditions"`
	SoilData                SoilData                `json:"soil_data"`
	PlantType               string                  `json:"plant_type"`
	GrowthStage             string                  `json:"growth_stage"`
	HealthScore             int                     `json:"health_score"`
}

// PlantMetrics holds physical measurements of the plant.
type PlantMetrics struct {
	HeightCM       float64 `json:"height_cm"`
	LeafCount      int     `json:"leaf_count"`
	StemDiameterMM float64 `json:"stem_diameter_mm"`
}

// EnvironmentalConditions holds readings of the air around the plant.
// HumidityPct is a float so that injected wild values keep their precision.
type EnvironmentalConditions struct {
	TemperatureC      float64 `json:"temperature_c"`
	HumidityPct       float64 `json:"humidity_pct"`
	LightIntensityLux int     `json:"light_intensity_lux"`
}

// SoilData holds readings of the growing medium.
type SoilData struct {
	MoisturePct   int     `json:"moisture_pct"`
	PHLevel       float64 `json:"ph_level"`
	NutrientIndex int     `json:"nutrient_index"`
}

// Summary renders the short one-line description used in status output.
func (r Record) Summary() string {
	return fmt.Sprintf("%s - %s - Health: %d/100", r.PlantType, r.GrowthStage, r.HealthScore)
}

// Timestamp is a UTC wall-clock time with second precision.
type Timestamp struct {
	time.Time
}

// NewTimestamp truncates t to the second and normalizes it to UTC.
func NewTimestamp(t time.Time) Timestamp {
	return Timestamp{Time: t.UTC().Truncate(time.Second)}
}

// String formats the timestamp using TimestampLayout.
func (t Timestamp) String() string {
	return t.Time.Format(TimestampLayout)
}

// MarshalJSON implements json.Marshaler.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *Timestamp) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("timestamp: %w", err)
	}
	parsed, err := time.Parse(TimestampLayout, s)
	if err != nil {
		return fmt.Errorf("timestamp: %w", err)
	}
	t.Time = parsed
	return nil
}

// Envelope bounds the physically sane range of environmental readings.
type Envelope struct {
	MinTemperatureC float64
	MaxTemperatureC float64
	MinHumidityPct  float64
	MaxHumidityPct  float64
}

// DefaultEnvelope covers the baseline temperatures a publisher offers (15-30 °C)
// widened by six standard deviations, and the 0-100 % humidity scale.
var DefaultEnvelope = Envelope{
	MinTemperatureC: 3,
	MaxTemperatureC: 42,
	MinHumidityPct:  0,
	MaxHumidityPct:  100,
}

// Contains reports whether the record's environmental readings fall inside e.
func (e Envelope) Contains(r Record) bool {
	env := r.EnvironmentalConditions
	return env.TemperatureC >= e.MinTemperatureC && env.TemperatureC <= e.MaxTemperatureC &&
		env.HumidityPct >= e.MinHumidityPct && env.HumidityPct <= e.MaxHumidityPct
}
