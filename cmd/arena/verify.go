package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/okian/arena/internal/domain/verify"
)

func newVerifyCmd(c *cli) *cobra.Command {
	var reference string

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Poll payment verification for a checkout reference",
		Long: `Checks the payment for --reference immediately and then on every
verification interval until it is confirmed or the command is interrupted.
Every state change is printed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return c.verify(ctx, cmd.OutOrStdout(), reference)
		},
	}
	cmd.Flags().StringVar(&reference, "reference", "", "payment reference returned by checkout (required)")
	_ = cmd.MarkFlagRequired("reference")
	return cmd
}

func (c *cli) verify(ctx context.Context, out io.Writer, reference string) error {
	svc, err := c.startService(ctx)
	if err != nil {
		return err
	}
	defer svc.Stop()

	printer := &transitionPrinter{w: out}
	poller, err := svc.NewPoller(c.session(), reference, verify.WithOnChange(printer.print))
	if err != nil {
		return err
	}

	printer.print(poller.Snapshot())
	err = poller.Run(ctx)
	switch {
	case errors.Is(err, verify.ErrMissingCredentials):
		return errors.New("a reference and a signed-in session (--token) are required")
	case err != nil && ctx.Err() != nil:
		fmt.Fprintln(out, "Verification stopped.")
		return nil
	case err != nil:
		return userError(err)
	}

	snap := poller.Snapshot()
	if snap.Order != nil {
		fmt.Fprintf(out, "Order %s confirmed.\n", snap.Order.ID)
	}
	return nil
}

// transitionPrinter writes a line whenever the state or the error changes.
type transitionPrinter struct {
	mu   sync.Mutex
	w    io.Writer
	last verify.Snapshot
	seen bool
}

func (p *transitionPrinter) print(s verify.Snapshot) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.seen && s.State == p.last.State && s.LastError == p.last.LastError {
		return
	}
	p.seen = true
	p.last = s

	switch s.State {
	case verify.StateLoading:
		fmt.Fprintf(p.w, "[%s] verifying payment...\n", s.Reference)
	case verify.StateError:
		fmt.Fprintf(p.w, "[%s] not verified yet (attempt %d): %s\n", s.Reference, s.Attempts, s.LastError)
	case verify.StateSuccess:
		fmt.Fprintf(p.w, "[%s] payment verified after %d attempt(s)\n", s.Reference, s.Attempts)
	}
}
