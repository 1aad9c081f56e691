package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths are searched in order when CONFIG_PATH is not set.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/scg-recommender/config.yaml",
}

// envMappings maps lower-cased environment variable names to koanf keys.
// Unmapped variables are ignored.
var envMappings = map[string]string{
	"tmdb_api_key":           "tmdb.api_key",
	"tmdb_base_url":          "tmdb.base_url",
	"tmdb_timeout":           "tmdb.timeout",
	"tmdb_rps":               "tmdb.requests_per_second",
	"tmdb_burst":             "tmdb.burst",
	"watch_region":           "watch_region",
	"http_addr":              "server.addr",
	"http_read_timeout":      "server.read_timeout",
	"http_write_timeout":     "server.write_timeout",
	"http_shutdown_timeout":  "server.shutdown_timeout",
	"cors_origins":           "server.cors_origins",
	"rate_limit_per_minute":  "server.rate_limit_per_minute",
	"enrichment_policy":      "enrichment.policy",
	"breaker_enabled":        "breaker.enabled",
	"breaker_timeout":        "breaker.timeout",
	"breaker_failure_ratio":  "breaker.failure_ratio",
	"events_transport":       "events.transport",
	"events_topic":           "events.topic",
	"events_publish_timeout": "events.publish_timeout",
	"nats_url":               "events.nats.url",
	"nats_name":              "events.nats.name",
	"kafka_brokers":          "events.kafka.brokers",
	"kafka_client_id":        "events.kafka.client_id",
	"kafka_acks":             "events.kafka.acks",
	"kafka_compression":      "events.kafka.compression",
	"rabbitmq_url":           "events.rabbitmq.url",
	"rabbitmq_exchange":      "events.rabbitmq.exchange",
	"log_level":              "logging.level",
	"log_format":             "logging.format",
}

// sliceKeys hold comma-separated lists when they come from the environment.
var sliceKeys = []string{"server.cors_origins", "events.kafka.brokers"}

// Load reads defaults, then the config file (CONFIG_PATH or the first existing
// default path), then the environment, and validates the result.
func Load() (*Config, error) {
	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = findConfigFile()
	}

	return LoadFrom(path)
}

// LoadFrom is Load with an explicit file path; "" skips the file layer.
func LoadFrom(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

func findConfigFile() string {
	for _, p := range DefaultConfigPaths {
		if st, err := os.Stat(p); err == nil && !st.IsDir() {
			return p
		}
	}

	return ""
}

// envTransformFunc maps an environment variable to its koanf key, or "" to skip it.
func envTransformFunc(key string) string {
	return envMappings[strings.ToLower(key)]
}

// processSliceFields splits comma-separated strings set from the environment.
func processSliceFields(k *koanf.Koanf) error {
	for _, key := range sliceKeys {
		s, ok := k.Get(key).(string)
		if !ok {
			continue
		}

		var parts []string

		for _, p := range strings.Split(s, ",") {
			if p = strings.TrimSpace(p); p != "" {
				parts = append(parts, p)
			}
		}

		if err := k.Set(key, parts); err != nil {
			return fmt.Errorf("set %s: %w", key, err)
		}
	}

	return nil
}
