// Package config loads runtime configuration for the CoDrive CLI.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Environment variables prefixed with CODRIVE_, optionally seeded from
//     a dotenv file (-e or -env, else ./.env).
//  3. Optional JSON file selected via flags: -c or -config.
//  4. Command-line flags, which override earlier values.
//
// Supported flags
//
//	-a string     backend base URL
//	-d string     local session database path
//	-t duration   request timeout
//	-l string     log level
//
// # Environment
//
//	CODRIVE_SERVER_URL, CODRIVE_DB_PATH, CODRIVE_REQUEST_TIMEOUT,
//	CODRIVE_REGISTER_PATH, CODRIVE_PROFILE_PATH, CODRIVE_LOG_LEVEL,
//	CODRIVE_OTEL_ENDPOINT
//
// # JSON schema
//
// The JSON loader uses timex.Duration for the timeout, so it can be either a
// string like "10s" or integer nanoseconds:
//
//	{
//	  "server_url": "https://codrive.example.com/api",
//	  "database_path": "/home/ana/.codrive.db",
//	  "request_timeout": "10s",
//	  "register_path": "/auth/registro",
//	  "profile_path": "/auth/me",
//	  "log_level": "debug",
//	  "otel_endpoint": "http://localhost:4318"
//	}
package config
