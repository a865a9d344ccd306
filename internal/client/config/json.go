package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/codrive/internal/flagx"
	"github.com/dmitrijs2005/codrive/internal/timex"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling.
// RequestTimeout relies on timex.Duration so JSON can specify it either as a
// string like "10s" or as integer nanoseconds.
type JsonConfig struct {
	ServerURL      string         `json:"server_url"`
	DatabasePath   string         `json:"database_path"`
	RequestTimeout timex.Duration `json:"request_timeout"`
	RegisterPath   string         `json:"register_path"`
	ProfilePath    string         `json:"profile_path"`
	LogLevel       string         `json:"log_level"`
	OTelEndpoint   string         `json:"otel_endpoint"`
}

// parseJson overlays Config with values loaded from the JSON file named by
// -c or -config. Without the flag nothing happens. Keys missing from the
// file keep their current values. Panics on read or unmarshal errors.
func parseJson(cfg *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	var jc JsonConfig

	data, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}
	if err := json.Unmarshal(data, &jc); err != nil {
		panic(err)
	}

	setString(&cfg.ServerURL, jc.ServerURL)
	setString(&cfg.DatabasePath, jc.DatabasePath)
	setString(&cfg.RegisterPath, jc.RegisterPath)
	setString(&cfg.ProfilePath, jc.ProfilePath)
	setString(&cfg.LogLevel, jc.LogLevel)
	setString(&cfg.OTelEndpoint, jc.OTelEndpoint)
	if jc.RequestTimeout.Duration > 0 {
		cfg.RequestTimeout = jc.RequestTimeout.Duration
	}
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
