//go:build !unix

package main

import (
	"time"

	"github.com/spf13/cobra"

	clierrors "github.com/vigil-term/vigil/internal/errors"
	"github.com/vigil-term/vigil/internal/output"
)

func unsupportedSessionError(command string) error {
	return &clierrors.CLIError{
		Message: "Terminal sessions are not supported on this operating system",
		Hint:    "Run vigil on a Unix-like OS (macOS/Linux) to use 'vigil " + command + "'",
		Code:    clierrors.ExitUsage,
	}
}

func newRunCmd() *cobra.Command {
	var (
		flags sessionFlags
		plain bool
	)

	cmd := &cobra.Command{
		Use:   "run [-- program [args...]]",
		Short: "Run a program inside vigil",
		Long: `Start a program on a pseudo-terminal and show its screen in your terminal.

Pseudo-terminals are currently supported only on Unix-like systems.`,
		Example: `  vigil run
  vigil run -- htop -d 5`,
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return unsupportedSessionError("run")
		},
	}

	cmd.Flags().SetInterspersed(false)
	flags.register(cmd.Flags())
	cmd.Flags().BoolVar(&plain, "plain", false, "Pass output through unchanged instead of redrawing it")

	return cmd
}

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

Pseudo-terminals are currently supported only on Unix-like systems.`,
		Example: `  vigil dump -- ls --color=always
  vigil dump --input 'echo hi\rexit\r'`,
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return unsupportedSessionError("dump")
		},
	}

	cmd.Flags().SetInterspersed(false)
	flags.register(cmd.Flags())
	cmd.Flags().StringVar(&input, "input", "", "Keystrokes to send, with Go string escapes")
	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Second, "How long to wait for the program to exit")
	cmd.Flags().StringVar(&format, "format", output.FormatText, "Output format: text, yaml, or json")

	return cmd
}
