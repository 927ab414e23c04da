package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/dmitrijs2005/filingapi/internal/client/client"
	"github.com/dmitrijs2005/filingapi/internal/client/config"
	"github.com/dmitrijs2005/filingapi/internal/flagx"
)

// globalFlags are consumed by config; the rest of the command line is the command.
var globalFlags = []string{"-a", "-t", "-i", "-w", "-c", "-config"}

type App struct {
	config *config.Config
	api    client.Client
	out    io.Writer
	errOut io.Writer
	open   func(name string) (io.ReadCloser, error)
}

func NewApp(c *config.Config) (*App, error) {
	if c.Token == "" {
		tok, err := GetToken(bufio.NewReader(os.Stdin), os.Stderr)
		if err != nil {
			return nil, fmt.Errorf("read token: %w", err)
		}
		c.Token = tok
	}
	if c.Token == "" {
		return nil, errors.New("an access token is required (-t or " + config.TokenEnv + ")")
	}

	return &App{
		config: c,
		api:    client.NewHTTPClient(c.ServerURL, c.Token, c.RequestTimeout),
		out:    os.Stdout,
		errOut: os.Stderr,
		open:   func(name string) (io.ReadCloser, error) { return os.Open(name) },
	}, nil
}

// Run executes the command in args (usually os.Args[1:]) and returns the
// process exit code.
func (a *App) Run(ctx context.Context, args []string) int {
	ops := flagx.Operands(args, globalFlags)
	if len(ops) == 0 {
		a.usage()
		return 2
	}

	var err error
	switch cmd, rest := ops[0], ops[1:]; cmd {
	case "create":
		err = a.create(ctx, rest)
	case "upload":
		err = a.upload(ctx, rest)
	case "status":
		err = a.status(ctx, rest)
	case "accept":
		err = a.accept(ctx, rest)
	case "sign":
		err = a.sign(ctx, rest)
	case "help":
		a.usage()
		return 0
	default:
		fmt.Fprintln(a.errOut, "Unknown command:", cmd)
		a.usage()
		return 2
	}

	if err != nil {
		a.report(err)
		var usage usageError
		if errors.As(err, &usage) {
			return 2
		}
		return 1
	}
	return 0
}

func (a *App) usage() {
	fmt.Fprintln(a.errOut, "Commands: create <lei> <period> | upload [-accept] [-sign] <lei> <period> <file> |"+
		" status <lei> <period> <counter> | accept <lei> <period> <counter> | sign <lei> <period>")
}

func (a *App) report(err error) {
	var apiErr *client.APIError
	if errors.As(err, &apiErr) && len(apiErr.Messages()) > 1 {
		fmt.Fprintf(a.errOut, "Error: %s\n", apiErr.Name)
		for _, m := range apiErr.Messages() {
			fmt.Fprintf(a.errOut, "  - %s\n", m)
		}
		return
	}
	fmt.Fprintln(a.errOut, "Error:", err)
}
