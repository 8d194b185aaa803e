//go:build unix

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/muesli/cancelreader"
	"github.com/spf13/cobra"

	"github.com/vigil-term/vigil/internal/config"
	"github.com/vigil-term/vigil/internal/display"
	"github.com/vigil-term/vigil/internal/emulator"
	clierrors "github.com/vigil-term/vigil/internal/errors"
	"github.com/vigil-term/vigil/internal/observability"
	"github.com/vigil-term/vigil/internal/output"
	"github.com/vigil-term/vigil/internal/terminal"
)

// exitWait bounds how long a finished session may take to hand back its
// exit status before it is closed forcibly.
const exitWait = 5 * time.Second

func newRunCmd() *cobra.Command {
	var (
		flags sessionFlags
		plain bool
	)

	cmd := &cobra.Command{
		Use:   "run [-- program [args...]]",
		Short: "Run a program inside vigil",
		Long: `Start a program on a pseudo-terminal and show its screen in your terminal.

Without a program, vigil starts shell.program or $SHELL. Press ctrl+\ to
detach, which ends the session. Shift+up and shift+down scroll through
earlier output.

With --plain the program's output is passed through unchanged instead of being
redrawn, and keystrokes are forwarded as typed. vigil exits with the program's
exit status.`,
		Example: `  vigil run
  vigil run -- htop -d 5
  vigil run --cols 100 --rows 30 -- vim notes.txt
  vigil run --plain --no-history -- bash -l`,
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := output.FromContext(cmd.Context())
			logger := observability.FromContext(cmd.Context()).With(
				slog.String("component", "cli"),
			)

			if !out.Terminal().CanAttach() {
				return clierrors.NotATerminal()
			}

			// SIGINT is left alone: in raw mode ctrl+c is a byte for the child.
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGTERM, syscall.SIGHUP)
			defer stop()

			hostCols, hostRows := out.Terminal().Width, out.Terminal().Height
			if !plain && hostRows > 1 {
				hostRows-- // status bar
			}

			spec := resolveSession(cmd, &flags, config.Load(), args, hostCols, hostRows)

			if plain {
				return runPlain(ctx, out, logger, spec)
			}

			return runDisplay(ctx, out, logger, spec)
		},
	}

	cmd.Flags().SetInterspersed(false)
	flags.register(cmd.Flags())
	cmd.Flags().BoolVar(&plain, "plain", false, "Pass output through unchanged instead of redrawing it")

	return cmd
}

func runDisplay(ctx context.Context, out *output.Writer, logger *slog.Logger, spec sessionSpec) error {
	term, err := startTerminal(ctx, spec, logger, nil)
	if err != nil {
		return err
	}

	result, runErr := display.Run(ctx, term, display.Options{
		Keys:      display.DefaultKeyMap(),
		Renderer:  display.NewRenderer(nil),
		Logger:    logger,
		Program:   filepath.Base(spec.displayName()),
		StatusBar: true,
	}, nil, nil)

	if ctx.Err() != nil {
		_ = term.Close()

		out.Info("Received shutdown signal...")

		return nil
	}

	if runErr != nil {
		_ = term.Close()
		return runErr
	}

	if result.Detached {
		if err := term.Close(); err != nil {
			logger.Warn("Session close failed", slog.String("error", err.Error()))
		}

		out.Info("Detached; session %s ended", term.SessionID())
		showTranscriptHint(out, spec, term)

		return nil
	}

	code, err := finishSession(ctx, term)
	if err != nil {
		return err
	}

	showTranscriptHint(out, spec, term)

	return exitStatus(code)
}

func runPlain(ctx context.Context, out *output.Writer, logger *slog.Logger, spec sessionSpec) error {
	restore, err := terminal.MakeRaw(os.Stdin)
	if err != nil {
		return err
	}
	defer func() { _ = restore() }()

	term, err := startTerminal(ctx, spec, logger, os.Stdout)
	if err != nil {
		return err
	}

	stdin, err := cancelreader.NewReader(os.Stdin)
	if err != nil {
		_ = term.Close()
		return fmt.Errorf("open stdin: %w", err)
	}
	defer stdin.Close()

	relayDone := make(chan struct{})

	go func() {
		defer close(relayDone)
		relayInput(stdin, term, logger)
	}()

	resize := make(chan os.Signal, 1)
	signal.Notify(resize, syscall.SIGWINCH)
	defer signal.Stop(resize)

	for {
		select {
		case <-resize:
			if !spec.FollowHost {
				continue
			}

			if w, h, sizeErr := terminal.Size(os.Stdout); sizeErr == nil {
				_ = term.Resize(w, h)
			}
		case <-term.Done():
			stdin.Cancel()
			<-relayDone

			code, finishErr := finishSession(ctx, term)
			if finishErr != nil {
				return finishErr
			}

			_ = restore()

			return exitStatus(code)
		case <-ctx.Done():
			stdin.Cancel()
			_ = term.Close()
			_ = restore()

			out.Info("Received shutdown signal...")

			return nil
		}
	}
}

// relayInput forwards r to the child until r fails or is cancelled.
func relayInput(r io.Reader, term *emulator.Terminal, logger *slog.Logger) {
	buf := make([]byte, 4096)

	for {
		n, err := r.Read(buf)
		if n > 0 {
			if sendErr := term.Send(buf[:n]); sendErr != nil {
				return
			}
		}

		if err != nil {
			if !errors.Is(err, cancelreader.ErrCanceled) && !errors.Is(err, io.EOF) {
				logger.Debug("Input relay stopped", slog.String("error", err.Error()))
			}

			return
		}
	}
}

// finishSession waits for the child's exit status and releases the session.
func finishSession(ctx context.Context, term *emulator.Terminal) (int, error) {
	waitCtx, cancel := context.WithTimeout(ctx, exitWait)
	defer cancel()

	code, waitErr := term.Wait(waitCtx)
	closeErr := term.Close()

	if waitErr != nil {
		return -1, fmt.Errorf("wait for program: %w", waitErr)
	}

	if closeErr != nil {
		return code, fmt.Errorf("close session: %w", closeErr)
	}

	return code, nil
}

func showTranscriptHint(out *output.Writer, spec sessionSpec, term *emulator.Terminal) {
	if !spec.History {
		return
	}

	out.Muted("Transcript: vigil history view %s", term.SessionID())
}
