package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/filingapi/internal/flagx"
	"github.com/dmitrijs2005/filingapi/internal/timex"
)

// JsonConfig is the on-disk shape of the CLI config. Absent keys keep their defaults.
type JsonConfig struct {
	ServerURL      *string         `json:"server_url"`
	PollInterval   *timex.Duration `json:"poll_interval"`
	PollTimeout    *timex.Duration `json:"poll_timeout"`
	RequestTimeout *timex.Duration `json:"request_timeout"`
}

// parseJson overlays cfg with the file named by -c/-config, if any.
// Read or decode errors panic.
func parseJson(cfg *Config) {
	path := flagx.ConfigPath(os.Args[1:])
	if path == "" {
		return
	}

	data, err := os.ReadFile(path)
	if err != nil {
		panic(err)
	}
	var jc JsonConfig
	if err := json.Unmarshal(data, &jc); err != nil {
		panic(err)
	}
	jc.apply(cfg)
}

func (jc *JsonConfig) apply(cfg *Config) {
	if jc.ServerURL != nil {
		cfg.ServerURL = *jc.ServerURL
	}
	if jc.PollInterval != nil {
		cfg.PollInterval = jc.PollInterval.Duration
	}
	if jc.PollTimeout != nil {
		cfg.PollTimeout = jc.PollTimeout.Duration
	}
	if jc.RequestTimeout != nil {
		cfg.RequestTimeout = jc.RequestTimeout.Duration
	}
}
