// Package config loads and validates the pipeline configuration. The file
// format is JSON; every field has a default so an empty file, or no file at
// all, yields a runnable configuration.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/seanttaylor/parcely-sub000/errors"
)

// Config is the top-level pipeline configuration.
type Config struct {
	// LogLevel is one of debug, info, warn, error.
	LogLevel string `json:"logLevel"`

	Metrics   MetricsConfig   `json:"metrics"`
	NATS      NATSConfig      `json:"nats"`
	Queue     QueueConfig     `json:"queue"`
	Processor ProcessorConfig `json:"processor"`
	SSE       EndpointConfig  `json:"sse"`
	WebSocket EndpointConfig  `json:"websocket"`

	// ShutdownTimeout bounds graceful shutdown, e.g. "10s".
	ShutdownTimeout string `json:"shutdownTimeout"`
}

// MetricsConfig configures the Prometheus scrape endpoint.
type MetricsConfig struct {
	Enabled bool   `json:"enabled"`
	Host    string `json:"host"`
	Port    int    `json:"port"`
}

// NATSConfig configures the wire ingestion path. Disabled means the
// pipeline runs without a broker; samples then arrive only through direct
// service calls.
type NATSConfig struct {
	Enabled bool   `json:"enabled"`
	URL     string `json:"url"`
	Subject string `json:"subject"`
}

// QueueConfig configures the ingestion queue.
type QueueConfig struct {
	Capacity int `json:"capacity"`
}

// ProcessorConfig configures the telemetry processor.
type ProcessorConfig struct {
	BatchSize int `json:"batchSize"`
}

// EndpointConfig configures one realtime publisher endpoint.
type EndpointConfig struct {
	Enabled bool   `json:"enabled"`
	Host    string `json:"host"`
	Port    int    `json:"port"`
	Path    string `json:"path"`
}

// DefaultConfig returns the configuration used when no file is provided.
func DefaultConfig() Config {
	return Config{
		LogLevel: "info",
		Metrics: MetricsConfig{
			Enabled: true,
			Host:    "0.0.0.0",
			Port:    9090,
		},
		NATS: NATSConfig{
			Enabled: false,
			URL:     "nats://localhost:4222",
			Subject: "parcely.telemetry.raw",
		},
		Queue:     QueueConfig{Capacity: 4096},
		Processor: ProcessorConfig{BatchSize: 64},
		SSE: EndpointConfig{
			Enabled: true,
			Host:    "0.0.0.0",
			Port:    8081,
			Path:    "/realtime",
		},
		WebSocket: EndpointConfig{
			Enabled: true,
			Host:    "0.0.0.0",
			Port:    8082,
			Path:    "/ws",
		},
		ShutdownTimeout: "10s",
	}
}

// Load reads configuration from a JSON file layered over the defaults.
// An empty path returns the defaults unchanged.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, errors.WrapFatal(err, "Config", "Load", "read config file")
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return cfg, errors.WrapInvalid(err, "Config", "Load", "parse config file")
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks the configuration for values that cannot work at runtime.
func (c Config) Validate() error {
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate",
			fmt.Sprintf("unknown log level %q", c.LogLevel))
	}

	if c.Queue.Capacity <= 0 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate",
			"queue capacity must be positive")
	}
	if c.Processor.BatchSize <= 0 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate",
			"processor batch size must be positive")
	}

	if c.NATS.Enabled && c.NATS.URL == "" {
		return errors.WrapInvalid(errors.ErrMissingConfig, "Config", "Validate",
			"nats url required when nats is enabled")
	}

	for _, ep := range []struct {
		name string
		cfg  EndpointConfig
	}{
		{"sse", c.SSE},
		{"websocket", c.WebSocket},
		{"metrics", EndpointConfig{Enabled: c.Metrics.Enabled, Port: c.Metrics.Port, Path: "/"}},
	} {
		if !ep.cfg.Enabled {
			continue
		}
		if ep.cfg.Port < 0 || ep.cfg.Port > 65535 {
			return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate",
				fmt.Sprintf("%s port %d out of range", ep.name, ep.cfg.Port))
		}
		if ep.cfg.Path == "" {
			return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate",
				fmt.Sprintf("%s path cannot be empty", ep.name))
		}
	}

	if _, err := c.ShutdownTimeoutDuration(); err != nil {
		return err
	}
	return nil
}

// ShutdownTimeoutDuration parses the shutdown timeout.
func (c Config) ShutdownTimeoutDuration() (time.Duration, error) {
	if c.ShutdownTimeout == "" {
		return 10 * time.Second, nil
	}
	d, err := time.ParseDuration(c.ShutdownTimeout)
	if err != nil {
		return 0, errors.WrapInvalid(err, "Config", "ShutdownTimeoutDuration", "parse shutdownTimeout")
	}
	if d <= 0 {
		return 0, errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "ShutdownTimeoutDuration",
			"shutdownTimeout must be positive")
	}
	return d, nil
}
