package config

import (
	"os"
	"time"
)

// TokenEnv names the environment variable holding the bearer token.
const TokenEnv = "FILING_TOKEN"

// Config holds runtime settings for the filing CLI.
type Config struct {
	ServerURL      string
	Token          string
	PollInterval   time.Duration
	PollTimeout    time.Duration
	RequestTimeout time.Duration
}

// LoadDefaults populates c with local development defaults.
func (c *Config) LoadDefaults() {
	c.ServerURL = "http://localhost:8888"
	c.PollInterval = 2 * time.Second
	c.PollTimeout = 5 * time.Minute
	c.RequestTimeout = 30 * time.Second
}

// LoadConfig applies defaults, the JSON file, the token environment
// variable and flags, in that order.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	if tok := os.Getenv(TokenEnv); tok != "" {
		cfg.Token = tok
	}
	parseFlags(cfg)
	return cfg
}
