// Producer driving the generate, inject and publish loop
package sim

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"

	"plantmon-sim/internal/fault"
	"plantmon-sim/internal/logging"
	"plantmon-sim/internal/telemetry"
)

// DefaultInterval is the time between producer ticks.
const DefaultInterval = 3 * time.Second

var (
	ErrInvalidInterval = errors.New("interval must be positive")
	ErrInvalidBaseline = errors.New("baseline must be a finite number")
)

// Publisher hands records to the broker.
type Publisher interface {
	Connect(ctx context.Context) error
	Publish(ctx context.Context, rec telemetry.Record) error
	Close() error
}

// ProducerConfig holds the initial producer settings.
type ProducerConfig struct {
	StartID             int64
	BaselineTemperature float64
	BaselineHumidity    float64
	Interval            time.Duration
	Faults              fault.Flags
	// Seed fixes the random source; zero seeds from the clock.
	Seed int64
}

// DefaultProducerConfig mirrors the publisher defaults of the control panel.
func DefaultProducerConfig() ProducerConfig {
	return ProducerConfig{
		StartID:             telemetry.DefaultStartID,
		BaselineTemperature: telemetry.DefaultBaselineTemperature,
		BaselineHumidity:    telemetry.DefaultBaselineHumidity,
		Interval:            DefaultInterval,
		Faults:              fault.Flags{Drop: true},
	}
}

// Settings is a snapshot of the producer's adjustable parameters.
type Settings struct {
	BaselineTemperature float64
	BaselineHumidity    float64
	Interval            time.Duration
	Faults              fault.Flags
	Running             bool
}

// Stats counts what the producer has done since it was created.
type Stats struct {
	Generated  uint64 `json:"generated"`
	Published  uint64 `json:"published"`
	Suppressed uint64 `json:"suppressed"`
	Wild       uint64 `json:"wild"`
	Failures   uint64 `json:"failures"`
	LastID     int64  `json:"last_id"`
}

// Producer generates a record per tick, passes it through the fault injector
// and publishes whatever survives.
type Producer struct {
	pub    Publisher
	status StatusWriter
	gen    *telemetry.RecordGenerator
	rand   *rand.Rand
	now    func() time.Time

	// lifecycle serializes Start and Stop
	lifecycle sync.Mutex

	mu       sync.Mutex
	baseTemp float64
	baseHum  float64
	interval time.Duration
	faults   fault.Flags
	stats    Stats
	running  bool
	runCtx   context.Context
	stop     chan struct{}
	done     chan struct{}
}

// NewProducer creates a stopped producer. status may be nil. Non-finite
// baselines are rejected with ErrInvalidBaseline.
func NewProducer(cfg ProducerConfig, pub Publisher, status StatusWriter) (*Producer, error) {
	if !finite(cfg.BaselineTemperature) || !finite(cfg.BaselineHumidity) {
		return nil, ErrInvalidBaseline
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	interval := cfg.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	rng := rand.New(rand.NewSource(seed))
	p := &Producer{
		pub:      pub,
		status:   status,
		rand:     rng,
		now:      time.Now,
		baseTemp: cfg.BaselineTemperature,
		baseHum:  cfg.BaselineHumidity,
		interval: interval,
		faults:   cfg.Faults,
	}
	p.gen = telemetry.NewRecordGenerator(cfg.StartID, rng, func() time.Time { return p.now() })
	return p, nil
}

// SetBaselines changes the temperature and humidity means for later ticks.
func (p *Producer) SetBaselines(temperature, humidity float64) error {
	if !finite(temperature) || !finite(humidity) {
		return ErrInvalidBaseline
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.baseTemp = temperature
	p.baseHum = humidity
	return nil
}

// SetInterval changes the tick period. It takes effect when the next tick is scheduled.
func (p *Producer) SetInterval(d time.Duration) error {
	if d <= 0 {
		return fmt.Errorf("%w: %s", ErrInvalidInterval, d)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.interval = d
	return nil
}

// SetFaultFlags toggles missed transmissions and wild data.
func (p *Producer) SetFaultFlags(drop, wild bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.faults = fault.Flags{Drop: drop, Wild: wild}
}

// Settings returns the current parameters.
func (p *Producer) Settings() Settings {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Settings{
		BaselineTemperature: p.baseTemp,
		BaselineHumidity:    p.baseHum,
		Interval:            p.interval,
		Faults:              p.faults,
		Running:             p.running,
	}
}

// Stats returns the counters.
func (p *Producer) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stats
}

// Running reports whether the tick loop is active.
func (p *Producer) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// Start connects to the broker and starts the tick loop. The first tick fires
// immediately. The loop keeps running until Stop; cancelling ctx afterwards
// does not stop it. Calling Start on a running producer does nothing.
func (p *Producer) Start(ctx context.Context) error {
	p.lifecycle.Lock()
	defer p.lifecycle.Unlock()
	if p.Running() {
		return nil
	}

	runCtx := context.WithoutCancel(ctx)
	if err := p.pub.Connect(ctx); err != nil {
		p.emit(runCtx, StatusEvent{Kind: StatusFailure, Reason: err.Error()})
		return fmt.Errorf("start producer: %w", err)
	}
	p.emit(runCtx, StatusEvent{Kind: StatusConnected})

	stop := make(chan struct{})
	done := make(chan struct{})
	p.mu.Lock()
	p.running = true
	p.runCtx = runCtx
	p.stop = stop
	p.done = done
	interval := p.interval
	p.mu.Unlock()

	logging.FromContext(runCtx).Info("starting producer", "interval", interval)
	go p.run(runCtx, stop, done)
	return nil
}

// Stop stops scheduling ticks, waits for an in-flight tick to finish and
// closes the broker connection. Stopping a stopped producer does nothing.
func (p *Producer) Stop() {
	p.lifecycle.Lock()
	defer p.lifecycle.Unlock()

	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	ctx, stop, done := p.runCtx, p.stop, p.done
	p.running = false
	p.mu.Unlock()

	close(stop)
	<-done
	if err := p.pub.Close(); err != nil {
		logging.FromContext(ctx).Error("close publisher", "err", err)
	}
	logging.FromContext(ctx).Info("stopping producer")
	p.emit(ctx, StatusEvent{Kind: StatusDisconnected})
}

// ConnectionLost reports a broker connection that dropped while running.
func (p *Producer) ConnectionLost(err error) {
	p.mu.Lock()
	ctx := p.runCtx
	p.mu.Unlock()
	if ctx == nil {
		ctx = context.Background()
	}
	p.emit(ctx, StatusEvent{Kind: StatusDisconnected, Reason: err.Error()})
}

func (p *Producer) run(ctx context.Context, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-stop:
			return
		case <-timer.C:
			p.tick(ctx)
			timer.Reset(p.Settings().Interval)
		}
	}
}

// tick generates one record, runs it through the injector and publishes it.
func (p *Producer) tick(ctx context.Context) {
	log := logging.FromContext(ctx)

	p.mu.Lock()
	baseTemp, baseHum, flags := p.baseTemp, p.baseHum, p.faults
	p.mu.Unlock()

	rec := p.gen.Generate(baseTemp, baseHum)
	out := fault.Inject(rec, flags, p.rand)

	p.mu.Lock()
	p.stats.Generated++
	p.stats.LastID = rec.ID
	switch out.Kind {
	case fault.Suppressed:
		p.stats.Suppressed++
	case fault.DeliveredWild:
		p.stats.Wild++
	}
	p.mu.Unlock()

	if out.Kind == fault.Suppressed {
		log.Debug("transmission suppressed", "id", rec.ID)
		p.emit(ctx, recordEvent(StatusSuppressed, rec))
		return
	}

	if err := p.pub.Publish(ctx, out.Record); err != nil {
		p.mu.Lock()
		p.stats.Failures++
		p.mu.Unlock()
		log.Error("publish failed", "id", rec.ID, "err", err)
		p.emit(ctx, StatusEvent{Kind: StatusFailure, ID: rec.ID, Reason: err.Error()})
		return
	}

	p.mu.Lock()
	p.stats.Published++
	p.mu.Unlock()
	ev := recordEvent(StatusPublished, out.Record)
	ev.Wild = out.Kind == fault.DeliveredWild
	p.emit(ctx, ev)
}

func (p *Producer) emit(ctx context.Context, ev StatusEvent) {
	if p.status == nil {
		return
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = p.now().UTC()
	}
	if err := p.status.WriteStatus(ev); err != nil {
		logging.FromContext(ctx).Error("status write failed", "kind", ev.Kind, "err", err)
	}
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
