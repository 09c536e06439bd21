package telemetry

import (
	"math"
	"math/rand"
	"time"
)

// DefaultStartID is the first id handed out by a new RecordGenerator.
const DefaultStartID int64 = 111

// Default baselines used when a caller does not supply its own.
const (
	DefaultBaselineTemperature = 23.0
	DefaultBaselineHumidity    = 65.0
)

// normal describes a Gaussian field distribution and its rounding.
type normal struct {
	mean     float64
	stdDev   float64
	decimals int
}

// Fixed distributions for fields that do not depend on caller baselines.
var (
	heightDist       = normal{mean: 45, stdDev: 8, decimals: 1}
	leafCountDist    = normal{mean: 24, stdDev: 6}
	stemDiameterDist = normal{mean: 8.5, stdDev: 1.2, decimals: 2}
	lightDist        = normal{mean: 15000, stdDev: 3000}
	moistureDist     = normal{mean: 70, stdDev: 8}
	phDist           = normal{mean: 6.5, stdDev: 0.4, decimals: 1}
	nutrientDist     = normal{mean: 450, stdDev: 80}
	healthDist       = normal{mean: 85, stdDev: 12}
)

// Standard deviations of the baseline-driven fields.
const (
	TemperatureStdDev = 2.0
	HumidityStdDev    = 10.0
)

// RecordGenerator produces plant telemetry records around configurable baselines.
// It is not safe for concurrent use; one goroutine owns it.
type RecordGenerator struct {
	nextID       int64
	rand         *rand.Rand
	now          func() time.Time
	baseTemp     float64
	baseHumidity float64
}

// NewRecordGenerator creates a generator whose first record carries startID.
// A nil rng seeds from the clock and a nil now uses time.Now.
func NewRecordGenerator(startID int64, rng *rand.Rand, now func() time.Time) *RecordGenerator {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if now == nil {
		now = time.Now
	}
	return &RecordGenerator{
		nextID:       startID,
		rand:         rng,
		now:          now,
		baseTemp:     DefaultBaselineTemperature,
		baseHumidity: DefaultBaselineHumidity,
	}
}

// Generate samples a new record. Temperature and humidity are drawn around the
// supplied baselines; no field is clamped. The id counter advances by one.
func (g *RecordGenerator) Generate(baseTemp, baseHumidity float64) Record {
	rec := Record{
		ID:         g.nextID,
		Researcher: g.choose(Researchers),
		Timestamp:  NewTimestamp(g.now()),
		PlantMetrics: PlantMetrics{
			HeightCM:       g.sample(heightDist),
			LeafCount:      g.sampleInt(leafCountDist),
			StemDiameterMM: g.sample(stemDiameterDist),
		},
		EnvironmentalConditions: EnvironmentalConditions{
			TemperatureC:      g.sample(normal{mean: baseTemp, stdDev: TemperatureStdDev, decimals: 1}),
			HumidityPct:       g.sample(normal{mean: baseHumidity, stdDev: HumidityStdDev}),
			LightIntensityLux: g.sampleInt(lightDist),
		},
		SoilData: SoilData{
			MoisturePct:   g.sampleInt(moistureDist),
			PHLevel:       g.sample(phDist),
			NutrientIndex: g.sampleInt(nutrientDist),
		},
		PlantType:   g.choose(PlantTypes),
		GrowthStage: g.choose(GrowthStages),
		HealthScore: g.sampleInt(healthDist),
	}
	g.nextID++
	return rec
}

// SetBaselines changes the baselines used by Next.
func (g *RecordGenerator) SetBaselines(temperature, humidity float64) {
	g.baseTemp = temperature
	g.baseHumidity = humidity
}

// Strategy implements Source.
func (g *RecordGenerator) Strategy() Strategy { return StrategyRecord }

// Next implements Source using the baselines set with SetBaselines.
func (g *RecordGenerator) Next() Record {
	return g.Generate(g.baseTemp, g.baseHumidity)
}

func (g *RecordGenerator) sample(d normal) float64 {
	return round(g.rand.NormFloat64()*d.stdDev+d.mean, d.decimals)
}

func (g *RecordGenerator) sampleInt(d normal) int {
	return int(round(g.rand.NormFloat64()*d.stdDev+d.mean, 0))
}

func (g *RecordGenerator) choose(options []string) string {
	return options[g.rand.Intn(len(options))]
}

// round rounds v to the given number of decimal places, ties to even.
func round(v float64, decimals int) float64 {
	if decimals == 0 {
		return math.RoundToEven(v)
	}
	p := math.Pow(10, float64(decimals))
	return math.RoundToEven(v*p) / p
}
