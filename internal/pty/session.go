//go:build unix

// Package pty allocates a pseudo-terminal and runs a child process as the
// session leader on its subordinate side.
package pty

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	creackpty "github.com/creack/pty"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sys/unix"

	"github.com/vigil-term/vigil/internal/observability"
)

const (
	// DefaultColumns and DefaultRows size the terminal when Options leave
	// them unset.
	DefaultColumns = 80
	DefaultRows    = 24

	defaultShutdownDeadline = 3 * time.Second
)

// Signals whose disposition the child gets reset to the default action.
var inheritedSignals = []os.Signal{
	syscall.SIGCHLD,
	syscall.SIGHUP,
	syscall.SIGINT,
	syscall.SIGQUIT,
	syscall.SIGTERM,
	syscall.SIGALRM,
}

// Options configures Open.
type Options struct {
	// Program is the executable to run. Empty means $SHELL.
	Program string
	Args    []string
	// Env holds KEY=VALUE overrides applied after the derived environment.
	Env  []string
	Dir  string
	Term string

	Columns int
	Rows    int

	Logger *slog.Logger
}

// Session is a running child attached to a pseudo-terminal.
type Session struct {
	primary *os.File
	cmd     *exec.Cmd
	pid     int
	logger  *slog.Logger

	sigCh    chan os.Signal
	exited   chan struct{}
	closing  chan struct{}
	exitCode atomic.Int64

	reapMu    sync.Mutex
	reaped    bool
	closeOnce sync.Once
	closeErr  error

	shutdownDeadline time.Duration
}

// Open allocates a pseudo-terminal, sizes it, and starts the child.
//
// The child runs in a new session with the subordinate as its controlling
// terminal and as stdin, stdout and stderr. The parent keeps only the
// primary side.
func Open(ctx context.Context, opts Options) (*Session, error) {
	logger := opts.Logger
	if logger == nil {
		logger = observability.FromContext(ctx)
	}

	_, span := observability.Tracer("vigil.pty").Start(ctx, "pty.open",
		trace.WithAttributes(
			attribute.String("pty.program", opts.Program),
			attribute.Int("pty.columns", opts.Columns),
			attribute.Int("pty.rows", opts.Rows),
		),
	)
	defer span.End()

	session, err := open(opts, logger)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "pty open failed")

		return nil, err
	}

	span.SetAttributes(attribute.Int("pty.pid", session.pid))
	span.SetStatus(codes.Ok, "")

	return session, nil
}

func open(opts Options, logger *slog.Logger) (*Session, error) {
	path, err := ResolveProgram(opts.Program)
	if err != nil {
		return nil, err
	}

	primary, tty, err := creackpty.Open()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrOpen, err)
	}

	cols, rows := sizeOrDefault(opts.Columns, opts.Rows)
	if err := creackpty.Setsize(primary, &creackpty.Winsize{Cols: uint16(cols), Rows: uint16(rows)}); err != nil {
		_ = primary.Close()
		_ = tty.Close()

		return nil, fmt.Errorf("%w: set size: %w", ErrOpen, err)
	}

	if err := enableIUTF8(int(tty.Fd())); err != nil {
		logger.Warn("Failed to enable IUTF8 on pseudo-terminal",
			slog.String("component", "pty"),
			slog.String("error", err.Error()),
		)
	}

	cmd := exec.Command(path, opts.Args...) //nolint:gosec // G204: the user chooses the program
	cmd.Env = BuildEnv(os.Environ(), opts.Term, opts.Env)
	cmd.Dir = opts.Dir
	cmd.Stdin = tty
	cmd.Stdout = tty
	cmd.Stderr = tty
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setsid:  true,
		Setctty: true,
		Ctty:    0,
	}

	// Registered before the fork so an early exit is not missed.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGCHLD)

	spawnMu.Lock()
	restore := handleIgnoredSignals(logger)
	err = cmd.Start()
	restore()
	spawnMu.Unlock()

	if err != nil {
		signal.Stop(sigCh)

		_ = primary.Close()
		_ = tty.Close()

		return nil, fmt.Errorf("%w: %s: %w", ErrStart, path, annotateStartError(err))
	}

	// The child holds its own descriptors for the subordinate side.
	_ = tty.Close()

	s := &Session{
		primary:          primary,
		cmd:              cmd,
		pid:              cmd.Process.Pid,
		logger:           logger,
		sigCh:            sigCh,
		exited:           make(chan struct{}),
		closing:          make(chan struct{}),
		shutdownDeadline: defaultShutdownDeadline,
	}
	s.exitCode.Store(-1)

	logger.Debug("Child started",
		slog.String("component", "pty"),
		slog.String("event.type", "pty.start"),
		slog.String("pty.program", path),
		slog.Int("pty.pid", s.pid),
	)

	go s.watchChild()

	return s, nil
}

// spawnMu serializes the signal juggling around fork and exec.
var spawnMu sync.Mutex

// handleIgnoredSignals installs a handler for every inherited signal this
// process ignores, so that exec resets it to the default action in the
// child. The returned func puts the ignore disposition back.
//
// SIGCHLD is already handled through Open's notification channel and never
// appears here.
func handleIgnoredSignals(logger *slog.Logger) (restore func()) {
	var ignored []os.Signal

	for _, sig := range inheritedSignals {
		if signal.Ignored(sig) {
			ignored = append(ignored, sig)
		}
	}

	if len(ignored) == 0 {
		return func() {}
	}

	logger.Debug("Resetting ignored signals for the child",
		slog.String("component", "pty"),
		slog.Any("signals", ignored),
	)

	ch := make(chan os.Signal, len(ignored))
	signal.Notify(ch, ignored...)

	return func() {
		signal.Stop(ch)
		signal.Ignore(ignored...)
	}
}

func sizeOrDefault(cols, rows int) (int, int) {
	if cols <= 0 {
		cols = DefaultColumns
	}

	if rows <= 0 {
		rows = DefaultRows
	}

	return min(cols, 0xFFFF), min(rows, 0xFFFF)
}

func annotateStartError(err error) error {
	if !errors.Is(err, syscall.EPERM) {
		return err
	}

	return fmt.Errorf(
		"%w (EPERM during start; check executable permissions and noexec mounts)",
		err,
	)
}

// Primary returns the primary side of the pseudo-terminal.
func (s *Session) Primary() *os.File {
	return s.primary
}

// Pid returns the child's process ID.
func (s *Session) Pid() int {
	return s.pid
}

// ChildExit is closed once the child has terminated and been reaped.
func (s *Session) ChildExit() <-chan struct{} {
	return s.exited
}

// ExitCode returns the child's exit status, 128+signal for a signalled
// child, or -1 while it is running.
func (s *Session) ExitCode() int {
	return int(s.exitCode.Load())
}

// Resize updates the window size; the kernel delivers SIGWINCH to the
// child's foreground process group.
func (s *Session) Resize(cols, rows int) error {
	cols, rows = sizeOrDefault(cols, rows)

	if err := creackpty.Setsize(s.primary, &creackpty.Winsize{Cols: uint16(cols), Rows: uint16(rows)}); err != nil {
		return fmt.Errorf("resize pseudo-terminal: %w", err)
	}

	return nil
}

// Close stops exit notification, hangs up the child, reaps it, and closes
// the primary. It is safe to call more than once.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		signal.Stop(s.sigCh)
		close(s.closing)

		s.terminate()

		if err := s.primary.Close(); err != nil && !errors.Is(err, os.ErrClosed) {
			s.closeErr = fmt.Errorf("close pseudo-terminal: %w", err)
		}

		s.logger.Debug("Session closed",
			slog.String("component", "pty"),
			slog.String("event.type", "pty.stop"),
			slog.Int("pty.pid", s.pid),
			slog.Int("pty.exit_code", s.ExitCode()),
		)
	})

	return s.closeErr
}

func (s *Session) watchChild() {
	for {
		if s.reap() {
			return
		}

		select {
		case <-s.sigCh:
		case <-s.closing:
			return
		}
	}
}

// reap collects the child's status without blocking and reports whether the
// child is gone.
func (s *Session) reap() bool {
	s.reapMu.Lock()
	defer s.reapMu.Unlock()

	if s.reaped {
		return true
	}

	var status unix.WaitStatus

	for {
		pid, err := unix.Wait4(s.pid, &status, unix.WNOHANG, nil)

		switch {
		case errors.Is(err, unix.EINTR):
			continue
		case errors.Is(err, unix.ECHILD):
			s.markReaped(-1)
			return true
		case err != nil:
			s.logger.Warn("Failed to collect child status",
				slog.String("component", "pty"),
				slog.String("error", err.Error()),
			)

			return false
		case pid == s.pid:
			s.markReaped(exitCodeOf(status))
			return true
		default:
			return false
		}
	}
}

func (s *Session) markReaped(code int) {
	s.reaped = true
	s.exitCode.Store(int64(code))

	// Status was collected with wait4; release the process handle.
	_ = s.cmd.Process.Release()

	close(s.exited)
}

func exitCodeOf(status unix.WaitStatus) int {
	switch {
	case status.Exited():
		return status.ExitStatus()
	case status.Signaled():
		return 128 + int(status.Signal())
	default:
		return -1
	}
}

func (s *Session) terminate() {
	if s.reap() {
		return
	}

	sendSignal(s.pid, syscall.SIGHUP)

	if s.awaitExit(s.shutdownDeadline) {
		return
	}

	sendSignal(s.pid, syscall.SIGKILL)

	if !s.awaitExit(s.shutdownDeadline) {
		s.logger.Warn("Child did not exit after SIGKILL",
			slog.String("component", "pty"),
			slog.Int("pty.pid", s.pid),
		)
	}
}

func (s *Session) awaitExit(deadline time.Duration) bool {
	timer := time.NewTimer(deadline)
	defer timer.Stop()

	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	for {
		if s.reap() {
			return true
		}

		select {
		case <-ticker.C:
		case <-timer.C:
			return s.reap()
		}
	}
}

// sendSignal signals the child's process group, falling back to the child
// alone. The child is a session leader, so its group ID equals its PID.
func sendSignal(pid int, sig syscall.Signal) {
	if err := syscall.Kill(-pid, sig); err == nil || errors.Is(err, syscall.ESRCH) {
		return
	}

	_ = syscall.Kill(pid, sig)
}
