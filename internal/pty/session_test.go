//go:build unix

package pty

import (
	"context"
	"errors"
	"io"
	"os"
	"os/signal"
	"runtime"
	"slices"
	"strconv"
	"strings"
	"syscall"
	"testing"
	"time"

	creackpty "github.com/creack/pty"
)

func openTestSession(t *testing.T, script string) *Session {
	t.Helper()

	s, err := Open(context.Background(), Options{
		Program: "/bin/sh",
		Args:    []string{"-c", script},
		Columns: 80,
		Rows:    24,
	})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}

	t.Cleanup(func() { _ = s.Close() })

	return s
}

// readAll drains the primary until the subordinate side is gone (EIO).
func readAll(t *testing.T, f *os.File) string {
	t.Helper()

	done := make(chan string, 1)

	go func() {
		data, _ := io.ReadAll(f)
		done <- string(data)
	}()

	select {
	case out := <-done:
		return out
	case <-time.After(10 * time.Second):
		t.Fatal("timed out reading primary")
		return ""
	}
}

func waitExit(t *testing.T, s *Session) {
	t.Helper()

	select {
	case <-s.ChildExit():
	case <-time.After(10 * time.Second):
		t.Fatal("timed out waiting for child exit")
	}
}

func TestOpenRunsChildOnSubordinate(t *testing.T) {
	s := openTestSession(t, "printf hello; exit 3")

	out := readAll(t, s.Primary())
	if !strings.Contains(out, "hello") {
		t.Fatalf("output = %q, want it to contain %q", out, "hello")
	}

	waitExit(t, s)

	if got := s.ExitCode(); got != 3 {
		t.Fatalf("ExitCode() = %d, want 3", got)
	}
}

func TestChildEnvironment(t *testing.T) {
	t.Setenv("XDG_ACTIVATION_TOKEN", "secret-token")

	s := openTestSession(t, `printf '%s|%s|%s' "$TERM" "$TERM_PROGRAM" "${XDG_ACTIVATION_TOKEN:-unset}"`)

	out := readAll(t, s.Primary())
	if want := "xterm-256color|vigil|unset"; !strings.Contains(out, want) {
		t.Fatalf("output = %q, want it to contain %q", out, want)
	}
}

func TestChildIsSessionLeaderWithControllingTerminal(t *testing.T) {
	s := openTestSession(t, `test -t 0 && test -t 1 && printf tty-ok`)

	out := readAll(t, s.Primary())
	if !strings.Contains(out, "tty-ok") {
		t.Fatalf("output = %q, want it to contain %q", out, "tty-ok")
	}
}

func TestExitCodeWhileRunning(t *testing.T) {
	s := openTestSession(t, "sleep 30")

	if got := s.ExitCode(); got != -1 {
		t.Fatalf("ExitCode() = %d, want -1", got)
	}

	if s.Pid() <= 0 {
		t.Fatalf("Pid() = %d, want positive", s.Pid())
	}
}

func TestResize(t *testing.T) {
	s := openTestSession(t, "sleep 30")

	if err := s.Resize(132, 43); err != nil {
		t.Fatalf("Resize() error = %v", err)
	}

	rows, cols, err := creackpty.Getsize(s.Primary())
	if err != nil {
		t.Fatalf("Getsize() error = %v", err)
	}

	if cols != 132 || rows != 43 {
		t.Fatalf("size = %dx%d, want 132x43", cols, rows)
	}
}

func TestCloseHangsUpChild(t *testing.T) {
	s := openTestSession(t, "sleep 30")

	start := time.Now()

	if err := s.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Fatalf("Close() took %v", elapsed)
	}

	waitExit(t, s)

	if got := s.ExitCode(); got != 128+1 {
		t.Fatalf("ExitCode() = %d, want %d (SIGHUP)", got, 128+1)
	}

	if err := s.Close(); err != nil {
		t.Fatalf("second Close() error = %v", err)
	}
}

func TestOpenProgramNotFound(t *testing.T) {
	_, err := Open(context.Background(), Options{Program: "vigil-definitely-missing-program"})
	if !errors.Is(err, ErrProgramNotFound) {
		t.Fatalf("Open() error = %v, want ErrProgramNotFound", err)
	}
}

func TestOpenShellNotFound(t *testing.T) {
	tests := []struct {
		name  string
		shell string
	}{
		{name: "unset", shell: ""},
		{name: "missing", shell: "/nonexistent/vigil-shell"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv("SHELL", tc.shell)

			_, err := Open(context.Background(), Options{})
			if !errors.Is(err, ErrShellNotFound) {
				t.Fatalf("Open() error = %v, want ErrShellNotFound", err)
			}
		})
	}
}

func TestOpenUsesShell(t *testing.T) {
	t.Setenv("SHELL", "/bin/sh")

	s, err := Open(context.Background(), Options{Args: []string{"-c", "printf from-shell"}})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer s.Close()

	if out := readAll(t, s.Primary()); !strings.Contains(out, "from-shell") {
		t.Fatalf("output = %q, want it to contain %q", out, "from-shell")
	}
}

func TestBuildEnv(t *testing.T) {
	tests := []struct {
		name      string
		base      []string
		term      string
		overrides []string
		want      []string
		absent    []string
	}{
		{
			name:   "strips launcher tokens",
			base:   []string{"HOME=/h", "XDG_ACTIVATION_TOKEN=x", "DESKTOP_STARTUP_ID=y"},
			want:   []string{"HOME=/h", "TERM=xterm-256color", "TERM_PROGRAM=vigil"},
			absent: []string{"XDG_ACTIVATION_TOKEN=x", "DESKTOP_STARTUP_ID=y"},
		},
		{
			name:   "replaces inherited TERM",
			base:   []string{"TERM=screen", "TERM_PROGRAM=other"},
			term:   "vt100",
			want:   []string{"TERM=vt100", "TERM_PROGRAM=vigil"},
			absent: []string{"TERM=screen", "TERM_PROGRAM=other"},
		},
		{
			name:      "overrides applied last",
			base:      []string{"LANG=C"},
			overrides: []string{"LANG=en_US.UTF-8", "TERM=dumb", "malformed"},
			want:      []string{"LANG=en_US.UTF-8", "TERM=dumb"},
			absent:    []string{"LANG=C", "malformed"},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := BuildEnv(tc.base, tc.term, tc.overrides)

			for _, kv := range tc.want {
				if !slices.Contains(got, kv) {
					t.Fatalf("BuildEnv() = %q, missing %q", got, kv)
				}
			}

			for _, kv := range tc.absent {
				if slices.Contains(got, kv) {
					t.Fatalf("BuildEnv() = %q, should not contain %q", got, kv)
				}
			}

			seen := map[string]bool{}
			for _, kv := range got {
				key, _, _ := strings.Cut(kv, "=")
				if seen[key] {
					t.Fatalf("BuildEnv() = %q, duplicate key %q", got, key)
				}

				seen[key] = true
			}
		})
	}
}

func TestCheckAllocation(t *testing.T) {
	name, err := CheckAllocation()
	if err != nil {
		t.Fatalf("CheckAllocation() error = %v", err)
	}

	if !strings.HasPrefix(name, "/dev/") {
		t.Fatalf("CheckAllocation() = %q, want a /dev path", name)
	}
}

func TestChildSignalsResetToDefault(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("reads /proc/self/status")
	}

	signal.Ignore(syscall.SIGINT, syscall.SIGTERM)
	t.Cleanup(func() { signal.Reset(syscall.SIGINT, syscall.SIGTERM) })

	s := openTestSession(t, "grep SigIgn /proc/self/status")
	out := readAll(t, s.Primary())

	_, field, ok := strings.Cut(out, "SigIgn:")
	if !ok {
		t.Fatalf("output = %q, want a SigIgn line", out)
	}

	mask, err := strconv.ParseUint(strings.Fields(field)[0], 16, 64)
	if err != nil {
		t.Fatalf("ParseUint(%q) error = %v", field, err)
	}

	for _, sig := range []syscall.Signal{syscall.SIGINT, syscall.SIGTERM} {
		if mask&(1<<(uint(sig)-1)) != 0 {
			t.Errorf("child ignores %v (SigIgn %016x)", sig, mask)
		}
	}

	for _, sig := range []os.Signal{syscall.SIGINT, syscall.SIGTERM} {
		if !signal.Ignored(sig) {
			t.Errorf("signal.Ignored(%v) = false after Open, want the parent to keep ignoring it", sig)
		}
	}
}
