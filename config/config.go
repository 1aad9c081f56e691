// Package config loads process configuration with koanf: struct defaults, then an
// optional YAML file, then environment variables. The result is validated.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"

	"github.com/next-trace/scg-recommender/validation"
)

// Config is the complete process configuration.
type Config struct {
	TMDB        TMDBConfig       `koanf:"tmdb"`
	WatchRegion string           `koanf:"watch_region" validate:"required,region"`
	Server      ServerConfig     `koanf:"server"`
	Enrichment  EnrichmentConfig `koanf:"enrichment"`
	Breaker     BreakerConfig    `koanf:"breaker"`
	Events      EventsConfig     `koanf:"events"`
	Logging     LoggingConfig    `koanf:"logging"`
}

// TMDBConfig configures the catalog client.
type TMDBConfig struct {
	APIKey            string        `koanf:"api_key" validate:"required"`
	BaseURL           string        `koanf:"base_url" validate:"required,url"`
	Timeout           time.Duration `koanf:"timeout" validate:"gt=0"`
	RequestsPerSecond float64       `koanf:"requests_per_second" validate:"gte=0"`
	Burst             int           `koanf:"burst" validate:"gte=0"`
}

// ServerConfig configures the HTTP surface.
type ServerConfig struct {
	Addr               string        `koanf:"addr" validate:"required"`
	ReadTimeout        time.Duration `koanf:"read_timeout" validate:"gte=0"`
	WriteTimeout       time.Duration `koanf:"write_timeout" validate:"gte=0"`
	ShutdownTimeout    time.Duration `koanf:"shutdown_timeout" validate:"gt=0"`
	CORSOrigins        []string      `koanf:"cors_origins"`
	RateLimitPerMinute int           `koanf:"rate_limit_per_minute" validate:"gte=0"`
}

// EnrichmentConfig selects the availability failure policy.
type EnrichmentConfig struct {
	Policy string `koanf:"policy" validate:"oneof=fail_fast degrade"`
}

// BreakerConfig configures the optional catalog circuit breaker.
type BreakerConfig struct {
	Enabled      bool          `koanf:"enabled"`
	MaxRequests  uint32        `koanf:"max_requests"`
	Interval     time.Duration `koanf:"interval" validate:"gte=0"`
	Timeout      time.Duration `koanf:"timeout" validate:"gte=0"`
	MinRequests  uint32        `koanf:"min_requests"`
	FailureRatio float64       `koanf:"failure_ratio" validate:"gte=0,lte=1"`
}

// EventsConfig selects where RecommendationServed events go.
type EventsConfig struct {
	Transport string `koanf:"transport" validate:"oneof=none memory nats kafka rabbitmq"`
	Topic     string `koanf:"topic"`
	// PublishTimeout bounds each event publish; requests never wait on it.
	PublishTimeout time.Duration  `koanf:"publish_timeout" validate:"gte=0"`
	NATS           NATSConfig     `koanf:"nats"`
	Kafka          KafkaConfig    `koanf:"kafka"`
	RabbitMQ       RabbitMQConfig `koanf:"rabbitmq"`
}

// NATSConfig configures the NATS publisher.
type NATSConfig struct {
	URL           string        `koanf:"url"`
	Name          string        `koanf:"name"`
	ConnTimeout   time.Duration `koanf:"conn_timeout" validate:"gte=0"`
	MaxReconnects int           `koanf:"max_reconnects"`
}

// KafkaConfig configures the Kafka producer.
type KafkaConfig struct {
	Brokers     []string `koanf:"brokers"`
	ClientID    string   `koanf:"client_id"`
	Acks        string   `koanf:"acks" validate:"oneof=all leader none"`
	Compression string   `koanf:"compression" validate:"oneof=none gzip snappy lz4 zstd"`
}

// RabbitMQConfig configures the AMQP publisher.
type RabbitMQConfig struct {
	URL         string        `koanf:"url"`
	Exchange    string        `koanf:"exchange"`
	ConnTimeout time.Duration `koanf:"conn_timeout" validate:"gte=0"`
}

// LoggingConfig configures the process logger.
type LoggingConfig struct {
	Level  string `koanf:"level" validate:"oneof=debug info warn error"`
	Format string `koanf:"format" validate:"oneof=json text"`
}

func defaultConfig() *Config {
	return &Config{
		TMDB: TMDBConfig{
			BaseURL: "https://api.themoviedb.org/3",
			Timeout: 10 * time.Second,
		},
		WatchRegion: "US",
		Server: ServerConfig{
			Addr:            ":8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Enrichment: EnrichmentConfig{Policy: "fail_fast"},
		Breaker: BreakerConfig{
			MaxRequests:  3,
			Interval:     time.Minute,
			Timeout:      30 * time.Second,
			MinRequests:  10,
			FailureRatio: 0.6,
		},
		Events: EventsConfig{
			Transport: "none",
			Topic:     "recommendations.served",
			NATS:      NATSConfig{Name: "scg-recommender", ConnTimeout: 5 * time.Second, MaxReconnects: 10},
			Kafka:     KafkaConfig{ClientID: "scg-recommender", Acks: "all", Compression: "snappy"},
			RabbitMQ:  RabbitMQConfig{Exchange: "integration", ConnTimeout: 5 * time.Second},

			PublishTimeout: 5 * time.Second,
		},
		Logging: LoggingConfig{Level: "info", Format: "json"},
	}
}

// Validate checks field rules and the transport-specific requirements.
func (c *Config) Validate() error {
	if err := validation.Struct(c); err != nil {
		return err
	}

	var errs []error

	switch c.Events.Transport {
	case "nats":
		if c.Events.NATS.URL == "" {
			errs = append(errs, errors.New("events.nats.url is required when events.transport is nats"))
		}
	case "kafka":
		if len(c.Events.Kafka.Brokers) == 0 {
			errs = append(errs, errors.New("events.kafka.brokers is required when events.transport is kafka"))
		}
	case "rabbitmq":
		if c.Events.RabbitMQ.URL == "" {
			errs = append(errs, errors.New("events.rabbitmq.url is required when events.transport is rabbitmq"))
		}
	}

	return errors.Join(errs...)
}

// Redacted returns a copy safe to log.
func (c Config) Redacted() Config {
	const mask = "[REDACTED]"

	if c.TMDB.APIKey != "" {
		c.TMDB.APIKey = mask
	}

	if c.Events.RabbitMQ.URL != "" {
		c.Events.RabbitMQ.URL = mask
	}

	if c.Events.NATS.URL != "" {
		c.Events.NATS.URL = mask
	}

	return c
}

func (c Config) String() string {
	b, err := json.Marshal(c.Redacted())
	if err != nil {
		return fmt.Sprintf("config: %v", err)
	}

	return string(b)
}
