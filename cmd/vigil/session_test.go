package main

import (
	"errors"
	"fmt"
	"slices"
	"testing"

	"github.com/spf13/cobra"

	"github.com/vigil-term/vigil/internal/config"
	clierrors "github.com/vigil-term/vigil/internal/errors"
	"github.com/vigil-term/vigil/internal/pty"
	"github.com/vigil-term/vigil/internal/vt"
)

func parseSessionFlags(t *testing.T, args ...string) (*cobra.Command, *sessionFlags) {
	t.Helper()

	var f sessionFlags

	cmd := &cobra.Command{Use: "run"}
	f.register(cmd.Flags())

	if err := cmd.ParseFlags(args); err != nil {
		t.Fatalf("ParseFlags() error = %v", err)
	}

	return cmd, &f
}

func TestResolveSession_Defaults(t *testing.T) {
	isolateConfig(t)

	cmd, f := parseSessionFlags(t)
	spec := resolveSession(cmd, f, config.Load(), nil, 120, 40)

	if spec.Columns != 120 || spec.Rows != 40 {
		t.Errorf("size = %dx%d, want 120x40", spec.Columns, spec.Rows)
	}

	if !spec.FollowHost {
		t.Error("FollowHost = false, want true when the host size is used")
	}

	if spec.Term != config.DefaultTerm {
		t.Errorf("Term = %q, want %q", spec.Term, config.DefaultTerm)
	}

	if spec.Scrollback != config.DefaultScrollback {
		t.Errorf("Scrollback = %d, want %d", spec.Scrollback, config.DefaultScrollback)
	}

	if !spec.Wrap || !spec.History {
		t.Errorf("Wrap = %v, History = %v, want both true", spec.Wrap, spec.History)
	}

	if spec.Newline != vt.NewlineStandard {
		t.Errorf("Newline = %v, want standard", spec.Newline)
	}
}

func TestResolveSession_FlagsOverrideConfig(t *testing.T) {
	isolateConfig(t)
	t.Setenv("VIGIL_TERMINAL_COLUMNS", "132")
	t.Setenv("VIGIL_TERMINAL_TERM", "screen")
	t.Setenv("VIGIL_SHELL_PROGRAM", "/bin/zsh")

	cmd, f := parseSessionFlags(t,
		"--cols", "90", "--term", "vt100", "--scrollback", "0",
		"--no-wrap", "--legacy-newline", "--no-history",
	)
	spec := resolveSession(cmd, f, config.Load(), []string{"htop", "-d", "5"}, 200, 50)

	if spec.Columns != 90 || spec.Rows != 50 {
		t.Errorf("size = %dx%d, want 90x50", spec.Columns, spec.Rows)
	}

	if spec.FollowHost {
		t.Error("FollowHost = true, want false with --cols")
	}

	if spec.Program != "htop" || !slices.Equal(spec.Args, []string{"-d", "5"}) {
		t.Errorf("program = %q %v, want htop [-d 5]", spec.Program, spec.Args)
	}

	if spec.Term != "vt100" {
		t.Errorf("Term = %q, want vt100", spec.Term)
	}

	if spec.Scrollback != 0 {
		t.Errorf("Scrollback = %d, want 0 (unbounded)", spec.Scrollback)
	}

	if spec.Wrap || spec.History {
		t.Errorf("Wrap = %v, History = %v, want both false", spec.Wrap, spec.History)
	}

	if spec.Newline != vt.NewlineLegacy {
		t.Errorf("Newline = %v, want legacy", spec.Newline)
	}
}

func TestResolveSession_ConfigProgram(t *testing.T) {
	isolateConfig(t)
	t.Setenv("VIGIL_SHELL_PROGRAM", "/bin/zsh")
	t.Setenv("VIGIL_TERMINAL_ROWS", "30")

	cmd, f := parseSessionFlags(t)
	spec := resolveSession(cmd, f, config.Load(), nil, 80, 24)

	if spec.Program != "/bin/zsh" {
		t.Errorf("Program = %q, want /bin/zsh", spec.Program)
	}

	if spec.displayName() != "/bin/zsh" {
		t.Errorf("displayName() = %q, want /bin/zsh", spec.displayName())
	}

	if spec.Rows != 30 || spec.FollowHost {
		t.Errorf("Rows = %d, FollowHost = %v, want 30 and false", spec.Rows, spec.FollowHost)
	}
}

func TestStartError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantMsg  string
		wantCode int
	}{
		{
			name:     "no shell",
			err:      fmt.Errorf("start session: %w", pty.ErrShellNotFound),
			wantMsg:  "No shell found",
			wantCode: clierrors.ExitExecution,
		},
		{
			name:     "missing program",
			err:      fmt.Errorf("start session: %w", pty.ErrProgramNotFound),
			wantMsg:  "Program not found: htop",
			wantCode: clierrors.ExitExecution,
		},
		{
			name:     "anything else",
			err:      errors.New("open pty: operation not permitted"),
			wantMsg:  "Failed to start terminal session",
			wantCode: clierrors.ExitExecution,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var cliErr *clierrors.CLIError
			if !clierrors.As(startError("htop", tt.err), &cliErr) {
				t.Fatalf("startError() did not return a CLIError")
			}

			if cliErr.Message != tt.wantMsg {
				t.Errorf("Message = %q, want %q", cliErr.Message, tt.wantMsg)
			}

			if cliErr.Code != tt.wantCode {
				t.Errorf("Code = %d, want %d", cliErr.Code, tt.wantCode)
			}

			if !errors.Is(cliErr, tt.err) {
				t.Error("errors.Is(cliErr, cause) = false")
			}
		})
	}
}
