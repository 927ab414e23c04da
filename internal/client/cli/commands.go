package cli

import (
	"context"
	"flag"
	"fmt"
	"io"
	"strconv"

	"github.com/dmitrijs2005/filingapi/internal/client/client"
	"github.com/dmitrijs2005/filingapi/internal/server/models"
)

type usageError string

func (e usageError) Error() string { return "usage: " + string(e) }

func counterArg(s string) (int64, error) {
	c, err := strconv.ParseInt(s, 10, 64)
	if err != nil || c < 1 {
		return 0, usageError(fmt.Sprintf("%q is not a submission counter", s))
	}
	return c, nil
}

func (a *App) create(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return usageError("create <lei> <period>")
	}
	f, err := a.api.CreateFiling(ctx, args[0], args[1])
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Filing %s/%s created, state %s\n", f.LEI, f.FilingPeriod, f.State)
	return nil
}

func (a *App) upload(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("upload", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	accept := fs.Bool("accept", false, "accept the submission once validated")
	sign := fs.Bool("sign", false, "accept and sign once validated")
	if err := fs.Parse(args); err != nil || fs.NArg() != 3 {
		return usageError("upload [-accept] [-sign] <lei> <period> <file>")
	}
	lei, period, path := fs.Arg(0), fs.Arg(1), fs.Arg(2)

	file, err := a.open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	sub, err := a.api.Upload(ctx, lei, period, path, file)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Uploaded %s as submission %d, waiting for validation...\n", path, sub.Counter)

	sub, err = client.WaitForTerminal(ctx, a.api, lei, period, sub.Counter, a.config.PollInterval, a.config.PollTimeout)
	if err != nil {
		return err
	}
	a.printSubmission(sub)

	if !*accept && !*sign {
		return nil
	}
	if !sub.State.Acceptable() {
		return fmt.Errorf("submission %d is %s and cannot be accepted", sub.Counter, sub.State)
	}
	if sub, err = a.api.Accept(ctx, lei, period, sub.Counter); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Submission %d accepted\n", sub.Counter)

	if *sign {
		return a.sign(ctx, []string{lei, period})
	}
	return nil
}

func (a *App) status(ctx context.Context, args []string) error {
	if len(args) != 3 {
		return usageError("status <lei> <period> <counter>")
	}
	counter, err := counterArg(args[2])
	if err != nil {
		return err
	}
	sub, err := a.api.Submission(ctx, args[0], args[1], counter)
	if err != nil {
		return err
	}
	a.printSubmission(sub)
	return nil
}

func (a *App) accept(ctx context.Context, args []string) error {
	if len(args) != 3 {
		return usageError("accept <lei> <period> <counter>")
	}
	counter, err := counterArg(args[2])
	if err != nil {
		return err
	}
	sub, err := a.api.Accept(ctx, args[0], args[1], counter)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Submission %d accepted\n", sub.Counter)
	return nil
}

func (a *App) sign(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return usageError("sign <lei> <period>")
	}
	f, err := a.api.Sign(ctx, args[0], args[1])
	if err != nil {
		return err
	}
	confirmation := ""
	if f.ConfirmationID != nil {
		confirmation = *f.ConfirmationID
	}
	fmt.Fprintf(a.out, "Filing %s/%s signed, confirmation %s\n", f.LEI, f.FilingPeriod, confirmation)
	return nil
}

func (a *App) printSubmission(sub *models.Submission) {
	fmt.Fprintf(a.out, "Submission %d: %s\n", sub.Counter, sub.State)
	if sub.TotalRecords != nil {
		fmt.Fprintf(a.out, "  records: %d\n", *sub.TotalRecords)
	}
}
