package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig_IsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 4096, cfg.Queue.Capacity)
	assert.Equal(t, 64, cfg.Processor.BatchSize)
	assert.Equal(t, "/realtime", cfg.SSE.Path)
	assert.Equal(t, "/ws", cfg.WebSocket.Path)
	assert.Equal(t, "parcely.telemetry.raw", cfg.NATS.Subject)
	assert.False(t, cfg.NATS.Enabled)
}

func TestLoad_EmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoad_FileLayersOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"logLevel": "debug",
		"queue": {"capacity": 128},
		"nats": {"enabled": true, "url": "nats://broker:4222"}
	}`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 128, cfg.Queue.Capacity)
	assert.True(t, cfg.NATS.Enabled)
	assert.Equal(t, "nats://broker:4222", cfg.NATS.URL)
	// untouched sections keep their defaults
	assert.Equal(t, 64, cfg.Processor.BatchSize)
	assert.Equal(t, "/realtime", cfg.SSE.Path)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	assert.Error(t, err)
}

func TestLoad_MalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestValidate_Rejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown log level", func(c *Config) { c.LogLevel = "verbose" }},
		{"zero queue capacity", func(c *Config) { c.Queue.Capacity = 0 }},
		{"negative batch size", func(c *Config) { c.Processor.BatchSize = -1 }},
		{"nats enabled without url", func(c *Config) { c.NATS.Enabled = true; c.NATS.URL = "" }},
		{"sse port out of range", func(c *Config) { c.SSE.Port = 70000 }},
		{"websocket path empty", func(c *Config) { c.WebSocket.Path = "" }},
		{"bad shutdown timeout", func(c *Config) { c.ShutdownTimeout = "soon" }},
		{"negative shutdown timeout", func(c *Config) { c.ShutdownTimeout = "-1s" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestValidate_DisabledEndpointsSkipChecks(t *testing.T) {
	cfg := DefaultConfig()
	cfg.WebSocket.Enabled = false
	cfg.WebSocket.Path = ""
	assert.NoError(t, cfg.Validate())
}

func TestShutdownTimeoutDuration(t *testing.T) {
	cfg := DefaultConfig()
	d, err := cfg.ShutdownTimeoutDuration()
	require.NoError(t, err)
	assert.Equal(t, 10*time.Second, d)

	cfg.ShutdownTimeout = ""
	d, err = cfg.ShutdownTimeoutDuration()
	require.NoError(t, err)
	assert.Equal(t, 10*time.Second, d)

	cfg.ShutdownTimeout = "2m"
	d, err = cfg.ShutdownTimeoutDuration()
	require.NoError(t, err)
	assert.Equal(t, 2*time.Minute, d)
}
