package telemetry

import (
	"math"
	"math/rand"
	"testing"
	"time"
)

func fixedNow() time.Time { return time.Date(2024, 5, 1, 12, 30, 45, 987654321, time.UTC) }

func TestGenerateSeededScenario(t *testing.T) {
	gen := NewRecordGenerator(DefaultStartID, rand.New(rand.NewSource(1)), fixedNow)

	rec := gen.Generate(23.0, 65.0)

	if rec.ID != DefaultStartID {
		t.Fatalf("expected id %d, got %d", DefaultStartID, rec.ID)
	}
	if got := rec.Timestamp.String(); got != "2024-05-01 12:30:45" {
		t.Errorf("unexpected timestamp %q", got)
	}
	for name, v := range map[string]float64{
		"height":    rec.PlantMetrics.HeightCM,
		"stem":      rec.PlantMetrics.StemDiameterMM,
		"temp":      rec.EnvironmentalConditions.TemperatureC,
		"humidity":  rec.EnvironmentalConditions.HumidityPct,
		"ph":        rec.SoilData.PHLevel,
		"leaf":      float64(rec.PlantMetrics.LeafCount),
		"light":     float64(rec.EnvironmentalConditions.LightIntensityLux),
		"moisture":  float64(rec.SoilData.MoisturePct),
		"nutrients": float64(rec.SoilData.NutrientIndex),
		"health":    float64(rec.HealthScore),
	} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			t.Errorf("%s is not finite: %v", name, v)
		}
	}
	if !contains(Researchers, rec.Researcher) {
		t.Errorf("unexpected researcher %q", rec.Researcher)
	}
	if !contains(PlantTypes, rec.PlantType) {
		t.Errorf("unexpected plant type %q", rec.PlantType)
	}
	if !contains(GrowthStages, rec.GrowthStage) {
		t.Errorf("unexpected growth stage %q", rec.GrowthStage)
	}
}

func TestGenerateIDsAreContiguous(t *testing.T) {
	const start, n = 500, 1000
	gen := NewRecordGenerator(start, rand.New(rand.NewSource(7)), nil)
	for i := 0; i < n; i++ {
		rec := gen.Generate(20, 50)
		if want := int64(start + i); rec.ID != want {
			t.Fatalf("record %d: expected id %d, got %d", i, want, rec.ID)
		}
	}
	if rec := gen.Next(); rec.ID != start+n {
		t.Errorf("expected next id %d, got %d", start+n, rec.ID)
	}
}

func TestGenerateIsDeterministicForSeed(t *testing.T) {
	a := NewRecordGenerator(1, rand.New(rand.NewSource(42)), fixedNow)
	b := NewRecordGenerator(1, rand.New(rand.NewSource(42)), fixedNow)
	for i := 0; i < 50; i++ {
		if ra, rb := a.Generate(23, 65), b.Generate(23, 65); ra != rb {
			t.Fatalf("records diverged at %d: %+v vs %+v", i, ra, rb)
		}
	}
}

func TestGenerateRoundsFields(t *testing.T) {
	gen := NewRecordGenerator(1, rand.New(rand.NewSource(3)), fixedNow)
	for i := 0; i < 200; i++ {
		rec := gen.Generate(23, 65)
		if h := rec.EnvironmentalConditions.HumidityPct; h != math.Trunc(h) {
			t.Fatalf("humidity not integral: %v", h)
		}
		if v := rec.EnvironmentalConditions.TemperatureC * 10; math.Abs(v-math.Round(v)) > 1e-9 {
			t.Fatalf("temperature has more than one decimal: %v", rec.EnvironmentalConditions.TemperatureC)
		}
		if v := rec.PlantMetrics.StemDiameterMM * 100; math.Abs(v-math.Round(v)) > 1e-6 {
			t.Fatalf("stem diameter has more than two decimals: %v", rec.PlantMetrics.StemDiameterMM)
		}
	}
}

func TestGenerateTracksBaselines(t *testing.T) {
	gen := NewRecordGenerator(1, rand.New(rand.NewSource(11)), fixedNow)
	const n = 5000
	var sumT, sumH float64
	for i := 0; i < n; i++ {
		rec := gen.Generate(10, 30)
		sumT += rec.EnvironmentalConditions.TemperatureC
		sumH += rec.EnvironmentalConditions.HumidityPct
	}
	if mean := sumT / n; math.Abs(mean-10) > 0.2 {
		t.Errorf("temperature mean %.3f too far from baseline 10", mean)
	}
	if mean := sumH / n; math.Abs(mean-30) > 1 {
		t.Errorf("humidity mean %.3f too far from baseline 30", mean)
	}
}

func TestNextUsesStoredBaselines(t *testing.T) {
	gen := NewRecordGenerator(1, rand.New(rand.NewSource(5)), fixedNow)
	if gen.Strategy() != StrategyRecord {
		t.Fatalf("unexpected strategy %q", gen.Strategy())
	}
	gen.SetBaselines(-40, 65)
	recs := Take[Record](gen, 20)
	if len(recs) != 20 {
		t.Fatalf("expected 20 records, got %d", len(recs))
	}
	for _, r := range recs {
		if r.EnvironmentalConditions.TemperatureC > -40+6*TemperatureStdDev {
			t.Fatalf("temperature %v ignores baseline", r.EnvironmentalConditions.TemperatureC)
		}
	}
}

func TestEnvelopeContains(t *testing.T) {
	cases := []struct {
		name string
		temp float64
		hum  float64
		want bool
	}{
		{"nominal", 23, 65, true},
		{"hot", 50, 65, false},
		{"cold", -10, 65, false},
		{"soaked", 23, 150, false},
		{"edge", 42, 100, true},
	}
	for _, tc := range cases {
		r := Record{EnvironmentalConditions: EnvironmentalConditions{TemperatureC: tc.temp, HumidityPct: tc.hum}}
		if got := DefaultEnvelope.Contains(r); got != tc.want {
			t.Errorf("%s: Contains=%v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestRecordSummary(t *testing.T) {
	r := Record{PlantType: "Basil", GrowthStage: "Flowering", HealthScore: 91}
	if got, want := r.Summary(), "Basil - Flowering - Health: 91/100"; got != want {
		t.Errorf("Summary()=%q, want %q", got, want)
	}
}

func contains(options []string, v string) bool {
	for _, o := range options {
		if o == v {
			return true
		}
	}
	return false
}
