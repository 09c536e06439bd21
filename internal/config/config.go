// YAML config loader with CUE validation and environment overrides
package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"gopkg.in/yaml.v3"

	"plantmon-sim/internal/fault"
	"plantmon-sim/internal/logging"
	"plantmon-sim/internal/sim"
	"plantmon-sim/internal/telemetry"
	"plantmon-sim/internal/transport"
)

// BrokerConfig locates the NATS server and the subject records travel on.
type BrokerConfig struct {
	URL            string        `yaml:"url" env:"PLANTMON_BROKER_URL"`
	Subject        string        `yaml:"subject" env:"PLANTMON_BROKER_SUBJECT"`
	ConnectTimeout time.Duration `yaml:"connect_timeout" env:"PLANTMON_BROKER_CONNECT_TIMEOUT"`
}

// ProducerConfig holds the publisher's initial settings.
type ProducerConfig struct {
	ClientName          string        `yaml:"client_name" env:"PLANTMON_PRODUCER_CLIENT_NAME"`
	StartID             int64         `yaml:"start_id" env:"PLANTMON_PRODUCER_START_ID"`
	BaselineTemperature float64       `yaml:"baseline_temperature" env:"PLANTMON_PRODUCER_BASELINE_TEMPERATURE"`
	BaselineHumidity    float64       `yaml:"baseline_humidity" env:"PLANTMON_PRODUCER_BASELINE_HUMIDITY"`
	Interval            time.Duration `yaml:"interval" env:"PLANTMON_PRODUCER_INTERVAL"`
	MissedTransmissions bool          `yaml:"missed_transmissions" env:"PLANTMON_PRODUCER_MISSED_TRANSMISSIONS"`
	WildData            bool          `yaml:"wild_data" env:"PLANTMON_PRODUCER_WILD_DATA"`
	// Seed fixes the random source; zero seeds from the clock.
	Seed int64 `yaml:"seed" env:"PLANTMON_PRODUCER_SEED"`
}

// ConsumerConfig holds the subscriber's settings.
type ConsumerConfig struct {
	ClientName  string `yaml:"client_name" env:"PLANTMON_CONSUMER_CLIENT_NAME"`
	HistorySize int    `yaml:"history_size" env:"PLANTMON_CONSUMER_HISTORY_SIZE"`
}

// AdminConfig sets the listen addresses of the HTTP control servers. An empty
// address disables that server.
type AdminConfig struct {
	ProducerAddress string `yaml:"producer_address" env:"PLANTMON_ADMIN_PRODUCER_ADDRESS"`
	ConsumerAddress string `yaml:"consumer_address" env:"PLANTMON_ADMIN_CONSUMER_ADDRESS"`
}

// LogConfig selects the log level and handler format.
type LogConfig struct {
	Level  string `yaml:"level" env:"PLANTMON_LOG_LEVEL"`
	Format string `yaml:"format" env:"PLANTMON_LOG_FORMAT"`
}

// Config is the root configuration.
type Config struct {
	Broker   BrokerConfig           `yaml:"broker"`
	Producer ProducerConfig         `yaml:"producer"`
	Consumer ConsumerConfig         `yaml:"consumer"`
	Scalar   telemetry.ScalarConfig `yaml:"scalar"`
	Admin    AdminConfig            `yaml:"admin"`
	Log      LogConfig              `yaml:"log"`
}

// Default returns the built-in configuration.
func Default() *Config {
	p := sim.DefaultProducerConfig()
	return &Config{
		Broker: BrokerConfig{
			URL:            transport.DefaultURL,
			Subject:        transport.DefaultSubject,
			ConnectTimeout: transport.DefaultConnectTimeout,
		},
		Producer: ProducerConfig{
			StartID:             p.StartID,
			BaselineTemperature: p.BaselineTemperature,
			BaselineHumidity:    p.BaselineHumidity,
			Interval:            p.Interval,
			MissedTransmissions: p.Faults.Drop,
			WildData:            p.Faults.Wild,
		},
		Consumer: ConsumerConfig{HistorySize: 100},
		Scalar:   telemetry.DefaultScalarConfig(),
		Admin: AdminConfig{
			ProducerAddress: "127.0.0.1:8080",
			ConsumerAddress: "127.0.0.1:8081",
		},
		Log: LogConfig{Level: "info", Format: "text"},
	}
}

// Load reads the YAML file at configPath over the defaults after validating
// it against the CUE schema at cueSchemaPath (the built-in one when empty),
// then applies environment overrides. An empty configPath yields defaults
// plus environment.
func Load(configPath, cueSchemaPath string) (*Config, error) {
	cfg := Default()
	if configPath != "" {
		if err := ValidateWithCue(configPath, cueSchemaPath); err != nil {
			return nil, err
		}
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("cannot unmarshal YAML config: %w", err)
		}
	}
	if err := cleanenv.ReadEnv(cfg); err != nil {
		return nil, fmt.Errorf("cannot read environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate performs the checks the schema cannot express.
func (c *Config) Validate() error {
	var errs []error
	if c.Broker.URL == "" {
		errs = append(errs, errors.New("broker.url must be set"))
	}
	if c.Broker.Subject == "" {
		errs = append(errs, errors.New("broker.subject must be set"))
	}
	if c.Broker.ConnectTimeout <= 0 {
		errs = append(errs, errors.New("broker.connect_timeout must be positive"))
	}
	if math.IsNaN(c.Producer.BaselineTemperature) || math.IsInf(c.Producer.BaselineTemperature, 0) {
		errs = append(errs, fmt.Errorf("producer.baseline_temperature: %w", sim.ErrInvalidBaseline))
	}
	if math.IsNaN(c.Producer.BaselineHumidity) || math.IsInf(c.Producer.BaselineHumidity, 0) {
		errs = append(errs, fmt.Errorf("producer.baseline_humidity: %w", sim.ErrInvalidBaseline))
	}
	if c.Producer.Interval <= 0 {
		errs = append(errs, fmt.Errorf("producer.interval: %w", sim.ErrInvalidInterval))
	}
	if c.Consumer.HistorySize < 1 {
		errs = append(errs, fmt.Errorf("consumer.history_size must be at least 1, got %d", c.Consumer.HistorySize))
	}
	if err := c.Scalar.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("scalar: %w", err))
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		errs = append(errs, fmt.Errorf("log.format must be text or json, got %q", c.Log.Format))
	}
	return errors.Join(errs...)
}

// ProducerSettings converts the producer section for sim.NewProducer.
func (c *Config) ProducerSettings() sim.ProducerConfig {
	return sim.ProducerConfig{
		StartID:             c.Producer.StartID,
		BaselineTemperature: c.Producer.BaselineTemperature,
		BaselineHumidity:    c.Producer.BaselineHumidity,
		Interval:            c.Producer.Interval,
		Faults: fault.Flags{
			Drop: c.Producer.MissedTransmissions,
			Wild: c.Producer.WildData,
		},
		Seed: c.Producer.Seed,
	}
}

// Transport returns the broker settings for a client with the given name.
func (c *Config) Transport(clientName string) transport.Config {
	return transport.Config{
		URL:            c.Broker.URL,
		Subject:        c.Broker.Subject,
		ClientName:     clientName,
		ConnectTimeout: c.Broker.ConnectTimeout,
	}
}

// Marshal renders cfg as YAML.
func Marshal(cfg *Config) ([]byte, error) {
	return yaml.Marshal(cfg)
}
