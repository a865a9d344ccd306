package config

import (
	"github.com/caarlos0/env/v11"
	"github.com/dmitrijs2005/codrive/internal/flagx"
	"github.com/joho/godotenv"
)

const envPrefix = "CODRIVE_"

// parseEnv overlays Config with CODRIVE_* environment variables.
//
// A dotenv file is loaded first: the one named by -e/-env (which must
// exist), otherwise ".env" in the working directory if there is one.
// Variables already set in the process environment win over the file.
// Unset variables leave the current values alone. Panics on a malformed
// value.
func parseEnv(cfg *Config) {
	if path := flagx.EnvFileFlag(); path != "" {
		if err := godotenv.Load(path); err != nil {
			panic(err)
		}
	} else {
		_ = godotenv.Load()
	}

	if err := env.ParseWithOptions(cfg, env.Options{Prefix: envPrefix}); err != nil {
		panic(err)
	}
}
