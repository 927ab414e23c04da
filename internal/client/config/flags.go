package config

import (
	"flag"
	"os"

	"github.com/dmitrijs2005/filingapi/internal/flagx"
)

// parseFlags overlays cfg with the CLI's own flags. Other arguments, such as
// the command and its operands, are left for the caller.
func parseFlags(cfg *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-t", "-i", "-w"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&cfg.ServerURL, "a", cfg.ServerURL, "base URL of the filing API")
	fs.StringVar(&cfg.Token, "t", cfg.Token, "bearer token")
	fs.DurationVar(&cfg.PollInterval, "i", cfg.PollInterval, "submission poll interval")
	fs.DurationVar(&cfg.PollTimeout, "w", cfg.PollTimeout, "max wait for a terminal submission state")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}
}
