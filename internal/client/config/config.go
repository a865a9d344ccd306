package config

import (
	"time"

	"github.com/dmitrijs2005/codrive/internal/client/client"
)

// Config holds runtime settings for the CoDrive CLI.
//
// Fields:
//   - ServerURL: base URL of the CoDrive REST backend.
//   - DatabasePath: SQLite file holding the persisted session (":memory:" keeps it in RAM).
//   - RequestTimeout: upper bound for a single backend request.
//   - RegisterPath, ProfilePath: endpoint variants of the backend revision in use.
//   - LogLevel: debug, info, warn or error.
//   - OTelEndpoint: OTLP/HTTP collector URL; empty disables tracing.
type Config struct {
	ServerURL      string        `env:"SERVER_URL"`
	DatabasePath   string        `env:"DB_PATH"`
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT"`
	RegisterPath   string        `env:"REGISTER_PATH"`
	ProfilePath    string        `env:"PROFILE_PATH"`
	LogLevel       string        `env:"LOG_LEVEL"`
	OTelEndpoint   string        `env:"OTEL_ENDPOINT"`
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.ServerURL = "http://localhost:8080"
	c.DatabasePath = "codrive.db"
	c.RequestTimeout = client.DefaultTimeout
	c.RegisterPath = client.DefaultRegisterPath
	c.ProfilePath = client.DefaultProfilePath
	c.LogLevel = "info"
	c.OTelEndpoint = ""
}

// LoadConfig constructs a Config, applies defaults, then overlays the
// environment, JSON (if present) and command-line flags (if present). Later
// sources take precedence over earlier ones.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseEnv(cfg)
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}
