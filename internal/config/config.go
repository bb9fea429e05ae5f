// Package config provides configuration loading for orchd.
package config

import (
	"fmt"
	"time"
)

// Config is the root orchd configuration.
type Config struct {
	Oracle    OracleConfig    `koanf:"oracle"`
	Store     StoreConfig     `koanf:"store"`
	Memory    MemoryConfig    `koanf:"memory"`
	HTTP      HTTPConfig      `koanf:"http"`
	Logging   LoggingConfig   `koanf:"logging"`
	Telemetry TelemetryConfig `koanf:"telemetry"`
	Events    EventsConfig    `koanf:"events"`
}

// OracleConfig configures the text-generation oracle channel.
type OracleConfig struct {
	// BaseURL is an OpenAI-compatible chat completion endpoint.
	BaseURL string `koanf:"base_url"`
	Model   string `koanf:"model"`
	APIKey  Secret `koanf:"api_key"`
	// RequestsPerSecond bounds the oracle call rate. Zero disables the
	// limiter.
	RequestsPerSecond float64 `koanf:"requests_per_second"`
}

// StoreConfig configures the persisted key-value/append store.
type StoreConfig struct {
	// Path is the SQLite database file. ":memory:" keeps state
	// process-local.
	Path string `koanf:"path"`
}

// MemoryConfig configures best-effort run memory recording.
type MemoryConfig struct {
	Enabled bool   `koanf:"enabled"`
	Path    string `koanf:"path"`
}

// HTTPConfig configures the status API server.
type HTTPConfig struct {
	Enabled         bool     `koanf:"enabled"`
	Host            string   `koanf:"host"`
	Port            int      `koanf:"port"`
	ShutdownTimeout Duration `koanf:"shutdown_timeout"`
}

// LoggingConfig configures the process logger.
type LoggingConfig struct {
	Level  string            `koanf:"level"`
	Format string            `koanf:"format"`
	Fields map[string]string `koanf:"fields"`
}

// TelemetryConfig configures OpenTelemetry trace export.
type TelemetryConfig struct {
	Enabled     bool   `koanf:"enabled"`
	Endpoint    string `koanf:"endpoint"`
	ServiceName string `koanf:"service_name"`
	Insecure    bool   `koanf:"insecure"`
}

// EventsConfig configures run lifecycle event publishing.
type EventsConfig struct {
	Enabled bool   `koanf:"enabled"`
	NATSURL string `koanf:"nats_url"`
	Subject string `koanf:"subject"`
}

// Default returns a configuration with working defaults. The oracle
// section still needs a base URL or API key before real runs.
func Default() *Config {
	return &Config{
		Oracle: OracleConfig{
			BaseURL:           "https://api.openai.com/v1",
			Model:             "gpt-4o-mini",
			RequestsPerSecond: 2,
		},
		Store: StoreConfig{
			Path: "orchd.db",
		},
		Memory: MemoryConfig{
			Enabled: false,
			Path:    "orchd-memory",
		},
		HTTP: HTTPConfig{
			Enabled:         false,
			Host:            "localhost",
			Port:            9091,
			ShutdownTimeout: Duration(10 * time.Second),
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Fields: map[string]string{"service": "orchd"},
		},
		Telemetry: TelemetryConfig{
			Enabled:     false,
			Endpoint:    "localhost:4317",
			ServiceName: "orchd",
			Insecure:    true,
		},
		Events: EventsConfig{
			Enabled: false,
			NATSURL: "nats://localhost:4222",
			Subject: "orchd.runs",
		},
	}
}

// Validate rejects configurations the process cannot start with.
func (c *Config) Validate() error {
	if c.Store.Path == "" {
		return fmt.Errorf("store.path is required")
	}
	if c.HTTP.Enabled && (c.HTTP.Port < 1 || c.HTTP.Port > 65535) {
		return fmt.Errorf("http.port out of range: %d", c.HTTP.Port)
	}
	if c.Events.Enabled && c.Events.NATSURL == "" {
		return fmt.Errorf("events.nats_url is required when events are enabled")
	}
	if c.Memory.Enabled && c.Memory.Path == "" {
		return fmt.Errorf("memory.path is required when memory is enabled")
	}
	return nil
}
