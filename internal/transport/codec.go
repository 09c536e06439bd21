package transport

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"plantmon-sim/internal/telemetry"
)

// Decode failure classes.
var (
	ErrMalformed    = errors.New("malformed payload")
	ErrMissingField = errors.New("missing field")
)

// DecodeError describes a payload that could not be turned into a record.
type DecodeError struct {
	Reason string
	Err    error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode record: %s", e.Reason)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Encode serializes a record to its JSON wire form. Field values are written
// as they are; nothing is range checked.
func Encode(rec telemetry.Record) ([]byte, error) {
	data, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("encode record %d: %w", rec.ID, err)
	}
	return data, nil
}

// Decode parses a JSON payload. Every field of the record must be present;
// the returned error is a *DecodeError otherwise.
func Decode(data []byte) (telemetry.Record, error) {
	var w wireRecord
	if err := json.Unmarshal(data, &w); err != nil {
		return telemetry.Record{}, &DecodeError{Reason: err.Error(), Err: fmt.Errorf("%w: %v", ErrMalformed, err)}
	}
	if missing := w.missing(); len(missing) > 0 {
		return telemetry.Record{}, &DecodeError{
			Reason: "missing " + strings.Join(missing, ", "),
			Err:    ErrMissingField,
		}
	}
	return w.record(), nil
}

// wireRecord mirrors telemetry.Record with pointer fields so absent keys can
// be told apart from zero values.
type wireRecord struct {
	ID                      *int64                   `json:"id"`
	Researcher              *string                  `json:"researcher"`
	Timestamp               *telemetry.Timestamp     `json:"timestamp"`
	PlantMetrics            *wirePlantMetrics        `json:"plant_metrics"`
	EnvironmentalConditions *wireEnvironmentalReport `json:"environmental_conditions"`
	SoilData                *wireSoilData            `json:"soil_data"`
	PlantType               *string                  `json:"plant_type"`
	GrowthStage             *string                  `json:"growth_stage"`
	HealthScore             *int                     `json:"health_score"`
}

type wirePlantMetrics struct {
	HeightCM       *float64 `json:"height_cm"`
	LeafCount      *int     `json:"leaf_count"`
	StemDiameterMM *float64 `json:"stem_diameter_mm"`
}

type wireEnvironmentalReport struct {
	TemperatureC      *float64 `json:"temperature_c"`
	HumidityPct       *float64 `json:"humidity_pct"`
	LightIntensityLux *int     `json:"light_intensity_lux"`
}

type wireSoilData struct {
	MoisturePct   *int     `json:"moisture_pct"`
	PHLevel       *float64 `json:"ph_level"`
	NutrientIndex *int     `json:"nutrient_index"`
}

func (w *wireRecord) missing() []string {
	var out []string
	check := func(present bool, name string) {
		if !present {
			out = append(out, name)
		}
	}
	check(w.ID != nil, "id")
	check(w.Researcher != nil, "researcher")
	check(w.Timestamp != nil, "timestamp")
	if pm := w.PlantMetrics; pm == nil {
		out = append(out, "plant_metrics")
	} else {
		check(pm.HeightCM != nil, "plant_metrics.height_cm")
		check(pm.LeafCount != nil, "plant_metrics.leaf_count")
		check(pm.StemDiameterMM != nil, "plant_metrics.stem_diameter_mm")
	}
	if env := w.EnvironmentalConditions; env == nil {
		out = append(out, "environmental_conditions")
	} else {
		check(env.TemperatureC != nil, "environmental_conditions.temperature_c")
		check(env.HumidityPct != nil, "environmental_conditions.humidity_pct")
		check(env.LightIntensityLux != nil, "environmental_conditions.light_intensity_lux")
	}
	if soil := w.SoilData; soil == nil {
		out = append(out, "soil_data")
	} else {
		check(soil.MoisturePct != nil, "soil_data.moisture_pct")
		check(soil.PHLevel != nil, "soil_data.ph_level")
		check(soil.NutrientIndex != nil, "soil_data.nutrient_index")
	}
	check(w.PlantType != nil, "plant_type")
	check(w.GrowthStage != nil, "growth_stage")
	check(w.HealthScore != nil, "health_score")
	return out
}

// record assumes missing() returned nothing.
func (w *wireRecord) record() telemetry.Record {
	return telemetry.Record{
		ID:         *w.ID,
		Researcher: *w.Researcher,
		Timestamp:  *w.Timestamp,
		PlantMetrics: telemetry.PlantMetrics{
			HeightCM:       *w.PlantMetrics.HeightCM,
			LeafCount:      *w.PlantMetrics.LeafCount,
			StemDiameterMM: *w.PlantMetrics.StemDiameterMM,
		},
		EnvironmentalConditions: telemetry.EnvironmentalConditions{
			TemperatureC:      *w.EnvironmentalConditions.TemperatureC,
			HumidityPct:       *w.EnvironmentalConditions.HumidityPct,
			LightIntensityLux: *w.EnvironmentalConditions.LightIntensityLux,
		},
		SoilData: telemetry.SoilData{
			MoisturePct:   *w.SoilData.MoisturePct,
			PHLevel:       *w.SoilData.PHLevel,
			NutrientIndex: *w.SoilData.NutrientIndex,
		},
		PlantType:   *w.PlantType,
		GrowthStage: *w.GrowthStage,
		HealthScore: *w.HealthScore,
	}
}
