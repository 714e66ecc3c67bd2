package config

import (
	"github.com/nextlevelbuilder/replygate/internal/engine"
)

// Config is the root configuration for the replygate gateway.
type Config struct {
	Gateway   GatewayConfig   `json:"gateway"`
	Engine    engine.Config   `json:"engine,omitempty"`
	Database  DatabaseConfig  `json:"database,omitempty"`
	Patterns  PatternsConfig  `json:"patterns,omitempty"`
	Stats     StatsConfig     `json:"stats,omitempty"`
	Telemetry TelemetryConfig `json:"telemetry,omitempty"`
}

// GatewayConfig configures the HTTP listener.
type GatewayConfig struct {
	Host            string `json:"host"`
	Port            int    `json:"port"`
	Token           string `json:"-"` // from env REPLYGATE_TOKEN only (secret)
	MaxMessageChars int    `json:"max_message_chars,omitempty"`
}

// DatabaseConfig selects the storage backend. SQLite is the standalone
// default; setting REPLYGATE_POSTGRES_DSN switches to managed mode.
// The DSN is NEVER read from the config file (secret) — env only.
type DatabaseConfig struct {
	SQLitePath  string `json:"sqlite_path,omitempty"`
	PostgresDSN string `json:"-"` // from env REPLYGATE_POSTGRES_DSN only
}

// IsManagedMode reports whether the gateway runs against Postgres.
func (c *Config) IsManagedMode() bool {
	return c.Database.PostgresDSN != ""
}

// PatternsConfig controls how the active pattern set is (re)loaded.
type PatternsConfig struct {
	// SeedFile is an optional JSON5 file of patterns loaded at startup
	// (in addition to persistence) and hot-reloaded on change when
	// WatchSeed is set.
	SeedFile  string `json:"seed_file,omitempty"`
	WatchSeed bool   `json:"watch_seed,omitempty"`
	// ReloadSchedule is an optional cron expression for periodic reloads
	// from persistence (e.g. "*/5 * * * *").
	ReloadSchedule string `json:"reload_schedule,omitempty"`
}

// StatsConfig tunes the async outcome recorder.
type StatsConfig struct {
	QueueSize int `json:"queue_size,omitempty"`
}

// TelemetryConfig configures OpenTelemetry trace export. When enabled, spans
// are exported to an OTLP/HTTP-compatible backend (Jaeger, Tempo, etc.).
type TelemetryConfig struct {
	Enabled     bool    `json:"enabled,omitempty"`
	Endpoint    string  `json:"endpoint,omitempty"` // e.g. "localhost:4318"
	Insecure    bool    `json:"insecure,omitempty"`
	SampleRatio float64 `json:"sample_ratio,omitempty"` // default 1.0
	ServiceName string  `json:"service_name,omitempty"` // default "replygate"
}

// Default returns a Config with sensible standalone defaults.
func Default() *Config {
	return &Config{
		Gateway: GatewayConfig{
			Host:            "0.0.0.0",
			Port:            18890,
			MaxMessageChars: 8000,
		},
		Engine: engine.Config{
			Tunables:  engine.DefaultTunables(),
			RateLimit: engine.DefaultRateLimitConfig(),
			Guard:     engine.DefaultGuardConfig(),
		},
		Database: DatabaseConfig{
			SQLitePath: "replygate.db",
		},
		Telemetry: TelemetryConfig{
			SampleRatio: 1.0,
			ServiceName: "replygate",
		},
	}
}
