package main

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/spf13/cobra"

	clierrors "github.com/vigil-term/vigil/internal/errors"
	"github.com/vigil-term/vigil/internal/output"
	"github.com/vigil-term/vigil/internal/terminal"
)

func TestWrapNamedPostRunCleanup_ErrorIncludesCleanupName(t *testing.T) {
	wrapped := wrapNamedPostRunCleanup(nil, "telemetry resources", func() error {
		return errors.New("boom")
	})

	err := wrapped(&cobra.Command{}, nil)
	if err == nil {
		t.Fatal("expected error, got nil")
	}

	if !strings.Contains(err.Error(), "cleanup telemetry resources") {
		t.Fatalf("unexpected error message: %v", err)
	}
}

func TestWrapPostRunCleanup_UsesLoggerResourcesLabel(t *testing.T) {
	wrapped := wrapPostRunCleanup(nil, func() error {
		return errors.New("boom")
	})

	err := wrapped(&cobra.Command{}, nil)
	if err == nil {
		t.Fatal("expected error, got nil")
	}

	if !strings.Contains(err.Error(), "cleanup logger resources") {
		t.Fatalf("unexpected error message: %v", err)
	}
}

func TestWrapNamedPostRunCleanup_CleansUpWhenPostRunFails(t *testing.T) {
	cleanupCalled := false
	postErr := errors.New("post-run failed")
	wrapped := wrapNamedPostRunCleanup(
		func(*cobra.Command, []string) error {
			return postErr
		},
		"telemetry resources",
		func() error {
			cleanupCalled = true
			return nil
		},
	)

	err := wrapped(&cobra.Command{}, nil)
	if !errors.Is(err, postErr) {
		t.Fatalf("expected post-run error, got %v", err)
	}

	if !cleanupCalled {
		t.Fatal("expected cleanup to be called when post-run fails")
	}
}

func TestExitStatus(t *testing.T) {
	tests := []struct {
		code    int
		wantErr bool
	}{
		{code: -1, wantErr: false},
		{code: 0, wantErr: false},
		{code: 1, wantErr: true},
		{code: 130, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.code), func(t *testing.T) {
			err := exitStatus(tt.code)
			if (err != nil) != tt.wantErr {
				t.Fatalf("exitStatus(%d) error = %v, wantErr %v", tt.code, err, tt.wantErr)
			}
		})
	}
}

func TestHandleError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantCode   int
		wantOutput string
	}{
		{
			name:     "child exit status is passed through silently",
			err:      fmt.Errorf("run: %w", exitStatus(3)),
			wantCode: 3,
		},
		{
			name:       "cli error prints message and hint",
			err:        clierrors.SessionNotFound("abc"),
			wantCode:   clierrors.ExitGeneral,
			wantOutput: "vigil history list",
		},
		{
			name:       "unknown command",
			err:        errors.New(`unknown command "bogus" for "vigil"`),
			wantCode:   clierrors.ExitUsage,
			wantOutput: "vigil --help",
		},
		{
			name:       "plain error",
			err:        errors.New("disk full"),
			wantCode:   clierrors.ExitGeneral,
			wantOutput: "disk full",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer

			out := output.NewWriter(&buf, &buf, &terminal.Info{NoColor: true})

			if got := handleError(out, tt.err); got != tt.wantCode {
				t.Errorf("handleError() = %d, want %d", got, tt.wantCode)
			}

			if tt.wantOutput == "" && buf.Len() != 0 {
				t.Errorf("handleError() printed %q, want nothing", buf.String())
			}

			if !strings.Contains(buf.String(), tt.wantOutput) {
				t.Errorf("output = %q, want to contain %q", buf.String(), tt.wantOutput)
			}
		})
	}
}

func TestIsInteractiveCommand(t *testing.T) {
	tests := map[string]bool{
		"vigil run":          true,
		"vigil dump":         false,
		"vigil history view": false,
		"vigil runner":       false,
	}

	for path, want := range tests {
		if got := isInteractiveCommand(path); got != want {
			t.Errorf("isInteractiveCommand(%q) = %v, want %v", path, got, want)
		}
	}
}
