// Package config loads runtime configuration for the filing CLI.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file (see parseJson) selected via flags: -c or -config.
//  3. The FILING_TOKEN environment variable, for the bearer token only.
//  4. Command-line flags (see parseFlags), which override earlier values.
//
// Supported flags
//
//	-a string    base URL of the filing API
//	-t string    bearer token
//	-i duration  submission poll interval
//	-w duration  how long to wait for a terminal submission state
//
// # JSON schema
//
// Durations are timex.Duration, so "2s" and integer nanoseconds both work:
//
//	{
//	  "server_url": "http://localhost:8888",
//	  "poll_interval": "2s",
//	  "poll_timeout": "5m"
//	}
package config
