//go:build unix

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/vigil-term/vigil/internal/config"
	"github.com/vigil-term/vigil/internal/display"
	clierrors "github.com/vigil-term/vigil/internal/errors"
	"github.com/vigil-term/vigil/internal/observability"
	"github.com/vigil-term/vigil/internal/output"
)

func newDumpCmd() *cobra.Command {
	var (
		flags   sessionFlags
		input   string
		timeout time.Duration
		format  string
	)

	cmd := &cobra.Command{
		Use:   "dump [-- program [args...]]",
		Short: "Run a program headlessly and print its screen",
		Long: `Run a program on a pseudo-terminal without showing it, wait for it to exit,
and print the final screen.

--input is sent to the program as keystrokes once it starts. Go string escapes
are expanded, so "\r" is Enter and "\x1b" is Escape. If the program is still
running after --timeout, the screen so far is printed and vigil exits with
status 5.

The default size is 80x24. Use --format yaml or json for rows with colours
and attributes.`,
		Example: `  vigil dump -- ls --color=always
  vigil dump --input 'echo hi\rexit\r'
  vigil dump --cols 120 --format json -- htop -n 1
  vigil dump --timeout 2s -- top`,
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := output.FromContext(cmd.Context())
			logger := observability.FromContext(cmd.Context()).With(
				slog.String("component", "cli"),
			)

			resolved, err := dumpFormat(out, format)
			if err != nil {
				return err
			}

			keys, err := decodeInput(input)
			if err != nil {
				return clierrors.Wrap(clierrors.ExitUsage, "Invalid --input value", err).
					WithHint(`Use Go escapes such as \r, \t and \x1b`)
			}

			if timeout <= 0 {
				return clierrors.InvalidDuration("--timeout", timeout.String(), nil)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
			defer stop()

			spec := resolveSession(cmd, &flags, config.Load(), args, dumpColumns, dumpRows)

			term, err := startTerminal(ctx, spec, logger, nil)
			if err != nil {
				return err
			}
			defer func() { _ = term.Close() }()

			if len(keys) > 0 {
				if err := term.Send(keys); err != nil {
					return fmt.Errorf("send input: %w", err)
				}
			}

			// The spinner goes to stderr so stdout carries only the screen.
			status := output.NewWriter(out.Err, out.Err, out.Terminal())
			status.Quiet = out.Quiet || out.JSON

			var spin *output.Spinner
			if !status.Quiet && out.Terminal().SpinnersEnabled() {
				spin = status.Spinner(fmt.Sprintf("Running %s", spec.displayName()))
				spin.Start()
			}

			waitCtx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			code, waitErr := term.Wait(waitCtx)

			if spin != nil {
				spin.Stop()
			}

			if ctx.Err() != nil {
				return fmt.Errorf("dump interrupted: %w", ctx.Err())
			}

			timedOut := errors.Is(waitErr, context.DeadlineExceeded)
			if waitErr != nil && !timedOut {
				return waitErr
			}

			cols, _ := term.Size()

			doc := display.NewDocument(term.Snapshot(0, term.Lines()), cols, term.CursorPosition())
			doc.Title = term.Title()

			if spec.History {
				doc.Session = term.SessionID()
			}

			if !timedOut {
				doc.ExitCode = &code
			}

			if err := printDocument(out, resolved, doc); err != nil {
				return err
			}

			if timedOut {
				return clierrors.DumpTimedOut(timeout.String())
			}

			return exitStatus(code)
		},
	}

	cmd.Flags().SetInterspersed(false)
	flags.register(cmd.Flags())
	cmd.Flags().StringVar(&input, "input", "", "Keystrokes to send, with Go string escapes")
	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Second, "How long to wait for the program to exit")
	cmd.Flags().StringVar(&format, "format", output.FormatText, "Output format: text, yaml, or json")

	return cmd
}
