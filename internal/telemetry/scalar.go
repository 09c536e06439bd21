package telemetry

import (
	"fmt"
	"math"
	"math/rand"
)

// Blend weights of the three processes feeding ScalarGenerator.
const (
	uniformWeight  = 0.4
	gaussianWeight = 0.3
	sineWeight     = 0.3
)

// ScalarConfig parameterizes a ScalarGenerator.
type ScalarConfig struct {
	BaseMin       float64 `yaml:"base_min"`
	BaseMax       float64 `yaml:"base_max"`
	SquiggleStd   float64 `yaml:"squiggle_std"`
	PeakMean      float64 `yaml:"peak_mean"`
	PeakStd       float64 `yaml:"peak_std"`
	PeakFrequency int     `yaml:"peak_frequency"`
	SinDelta      float64 `yaml:"sin_delta"`
	Seed          int64   `yaml:"seed"`
}

// DefaultScalarConfig returns the parameters of a room-temperature style series.
func DefaultScalarConfig() ScalarConfig {
	return ScalarConfig{
		BaseMin:       18,
		BaseMax:       21,
		SquiggleStd:   0.1,
		PeakMean:      20,
		PeakStd:       1,
		PeakFrequency: 50,
		SinDelta:      0.1,
		Seed:          48,
	}
}

// MaxPeakFrequency bounds ScalarConfig.PeakFrequency.
const MaxPeakFrequency = 1 << 20

// Validate checks that the configuration describes a usable range.
func (c ScalarConfig) Validate() error {
	if c.BaseMin >= c.BaseMax {
		return fmt.Errorf("base_min (%g) must be below base_max (%g)", c.BaseMin, c.BaseMax)
	}
	if c.PeakFrequency < 0 || c.PeakFrequency > MaxPeakFrequency {
		return fmt.Errorf("peak_frequency must be within [0, %d], got %d", MaxPeakFrequency, c.PeakFrequency)
	}
	if c.SquiggleStd < 0 || c.PeakStd < 0 {
		return fmt.Errorf("standard deviations must not be negative")
	}
	return nil
}

// ScalarGenerator produces a single bounded value per call from a blend of a
// uniform draw, a clamped Gaussian draw and a noisy sine wave. It is
// deterministic for a given seed.
type ScalarGenerator struct {
	cfg   ScalarConfig
	rand  *rand.Rand
	phase float64
}

// NewScalarGenerator creates a generator seeded from cfg.Seed.
func NewScalarGenerator(cfg ScalarConfig) *ScalarGenerator {
	return &ScalarGenerator{cfg: cfg, rand: rand.New(rand.NewSource(cfg.Seed))}
}

// Strategy implements Source.
func (g *ScalarGenerator) Strategy() Strategy { return StrategyScalar }

// Next returns the next value, always within [BaseMin, BaseMax].
func (g *ScalarGenerator) Next() float64 {
	span := g.cfg.BaseMax - g.cfg.BaseMin
	y := span*g.normalized() + g.cfg.BaseMin

	y += g.rand.NormFloat64() * g.cfg.SquiggleStd

	// The nudge is drawn around the distance to the peak, so its pull grows
	// with how far y currently sits from PeakMean.
	if g.rand.Intn(g.cfg.PeakFrequency+1) == 0 {
		y += g.rand.NormFloat64()*g.cfg.PeakStd + (g.cfg.PeakMean - y)
	}

	return math.Max(g.cfg.BaseMin, math.Min(g.cfg.BaseMax, y))
}

// normalized blends the three processes into a value that is nominally in [0, 1].
func (g *ScalarGenerator) normalized() float64 {
	uniform := g.rand.Float64()

	gaussian := g.rand.NormFloat64()*0.15 + 0.5
	gaussian = math.Max(0, math.Min(1, gaussian))

	sine := (math.Sin(g.phase)/2+0.5)*0.9 + 0.1*g.rand.Float64()
	g.phase += g.cfg.SinDelta

	return uniformWeight*uniform + gaussianWeight*gaussian + sineWeight*sine
}
