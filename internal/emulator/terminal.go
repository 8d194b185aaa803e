//go:build unix

// Package emulator composes the pseudo-terminal session, the I/O bridge, the
// escape interpreter, and the grid into one running terminal.
package emulator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/vigil-term/vigil/internal/bridge"
	"github.com/vigil-term/vigil/internal/grid"
	"github.com/vigil-term/vigil/internal/observability"
	"github.com/vigil-term/vigil/internal/pty"
	"github.com/vigil-term/vigil/internal/transcript"
	"github.com/vigil-term/vigil/internal/vt"
)

// DefaultDrainGrace is how long output is still accepted after the child
// exits, for descendants that keep the subordinate open.
const DefaultDrainGrace = 250 * time.Millisecond

// Options configures Start.
type Options struct {
	Program string
	Args    []string
	Env     []string
	Dir     string
	Term    string

	Columns int
	Rows    int

	// Scrollback caps retained grid lines. Zero keeps every line.
	Scrollback  int
	DisableWrap bool
	NewlineMode vt.NewlineMode

	// Transcript, when set, records both byte streams. The terminal takes
	// ownership and closes it.
	Transcript *transcript.Store
	// Tee receives a copy of every output chunk before it is interpreted.
	Tee io.Writer

	Logger  *slog.Logger
	OnTitle func(string)
	OnBell  func()

	DrainGrace time.Duration
}

// Terminal is a running child with a live grid.
type Terminal struct {
	id      string
	session *pty.Session
	bridge  *bridge.Bridge
	grid    *grid.Grid
	interp  *vt.Interpreter
	store   *transcript.Store
	tee     io.Writer
	logger  *slog.Logger
	span    trace.Span

	rows       atomic.Int64
	updates    chan struct{}
	done       chan struct{}
	drainGrace time.Duration

	transcriptFailed atomic.Bool
	teeFailed        atomic.Bool

	closeOnce sync.Once
	closeErr  error
}

// Start opens a pseudo-terminal, runs the child, and begins interpreting
// its output.
func Start(ctx context.Context, opts Options) (*Terminal, error) {
	logger := opts.Logger
	if logger == nil {
		logger = observability.FromContext(ctx)
	}

	cols := opts.Columns
	if cols <= 0 {
		cols = pty.DefaultColumns
	}

	rows := opts.Rows
	if rows <= 0 {
		rows = pty.DefaultRows
	}

	ctx, span := observability.Tracer("vigil.emulator").Start(ctx, "terminal.session",
		trace.WithAttributes(
			attribute.String("terminal.program", opts.Program),
			attribute.Int("terminal.columns", cols),
			attribute.Int("terminal.rows", rows),
		),
	)

	session, err := pty.Open(ctx, pty.Options{
		Program: opts.Program,
		Args:    opts.Args,
		Env:     opts.Env,
		Dir:     opts.Dir,
		Term:    opts.Term,
		Columns: cols,
		Rows:    rows,
		Logger:  logger,
	})
	if err != nil {
		if opts.Transcript != nil {
			_ = opts.Transcript.Close()
		}

		span.RecordError(err)
		span.SetStatus(codes.Error, "terminal start failed")
		span.End()

		return nil, err
	}

	id := uuid.NewString()
	if opts.Transcript != nil {
		id = opts.Transcript.SessionID()
	}

	logger = logger.With(slog.String("terminal.session_id", id))
	span.SetAttributes(attribute.String("terminal.session_id", id))

	t := &Terminal{
		id:         id,
		session:    session,
		grid:       grid.New(grid.Options{Columns: cols, MaxLines: opts.Scrollback, DisableWrap: opts.DisableWrap}),
		store:      opts.Transcript,
		tee:        opts.Tee,
		logger:     logger,
		span:       span,
		updates:    make(chan struct{}, 1),
		done:       make(chan struct{}),
		drainGrace: opts.DrainGrace,
	}
	t.rows.Store(int64(rows))

	if t.drainGrace <= 0 {
		t.drainGrace = DefaultDrainGrace
	}

	t.interp = vt.New(t.grid,
		vt.WithNewlineMode(opts.NewlineMode),
		vt.WithLogger(logger),
		vt.WithTitleHandler(func(title string) {
			if opts.OnTitle != nil {
				opts.OnTitle(title)
			}
		}),
		vt.WithBellHandler(func() {
			if opts.OnBell != nil {
				opts.OnBell()
			}
		}),
	)

	br, err := bridge.New(session.Primary(), bridge.WithLogger(logger))
	if err != nil {
		_ = session.Close()

		if t.store != nil {
			_ = t.store.Close()
		}

		span.RecordError(err)
		span.SetStatus(codes.Error, "bridge start failed")
		span.End()

		return nil, fmt.Errorf("start bridge: %w", err)
	}

	t.bridge = br

	logger.Info("Terminal started",
		slog.String("component", "emulator"),
		slog.String("event.type", "terminal.start"),
		slog.Int("terminal.pid", session.Pid()),
		slog.Int("terminal.columns", cols),
		slog.Int("terminal.rows", rows),
	)

	go t.pump()
	go t.watchExit()

	return t, nil
}

// SessionID identifies this terminal; it matches the transcript session.
func (t *Terminal) SessionID() string {
	return t.id
}

// Send queues keystroke bytes for the child.
func (t *Terminal) Send(p []byte) error {
	if len(p) == 0 {
		return nil
	}

	t.record(transcript.StreamInput, p)

	if err := t.bridge.Send(p); err != nil {
		return fmt.Errorf("send input: %w", err)
	}

	return nil
}

// Snapshot returns copies of up to height rows starting at top.
func (t *Terminal) Snapshot(top, height int) []grid.Row {
	return t.grid.Snapshot(top, height)
}

// CursorPosition returns the cursor coordinate.
func (t *Terminal) CursorPosition() grid.Position {
	return t.grid.CursorPosition()
}

// Lines returns the number of retained rows.
func (t *Terminal) Lines() int {
	return t.grid.Lines()
}

// Text renders the grid as plain text.
func (t *Terminal) Text() string {
	return t.grid.Text()
}

// Title returns the most recent window title set by the child.
func (t *Terminal) Title() string {
	return t.interp.Title()
}

// Mode reports a terminal mode the child has set or reset.
func (t *Terminal) Mode(key vt.ModeKey) (enabled, seen bool) {
	return t.interp.Mode(key)
}

// Size returns the current column and row count.
func (t *Terminal) Size() (cols, rows int) {
	return t.grid.Columns(), int(t.rows.Load())
}

// Updates delivers a coalesced notification after output changes the grid.
func (t *Terminal) Updates() <-chan struct{} {
	return t.updates
}

// Done is closed when no more output will be interpreted.
func (t *Terminal) Done() <-chan struct{} {
	return t.done
}

// ExitCode returns the child's exit status, or -1 while it is running.
func (t *Terminal) ExitCode() int {
	return t.session.ExitCode()
}

// Wait blocks until output has ended and the child has exited, and returns
// the exit status.
func (t *Terminal) Wait(ctx context.Context) (int, error) {
	select {
	case <-t.done:
	case <-ctx.Done():
		return -1, fmt.Errorf("wait for terminal output: %w", ctx.Err())
	}

	select {
	case <-t.session.ChildExit():
		return t.session.ExitCode(), nil
	case <-ctx.Done():
		return -1, fmt.Errorf("wait for child exit: %w", ctx.Err())
	}
}

// Resize changes the window size of the pseudo-terminal and the column
// count used for wrapping.
func (t *Terminal) Resize(cols, rows int) error {
	if cols <= 0 || rows <= 0 {
		return fmt.Errorf("invalid terminal size %dx%d", cols, rows)
	}

	if err := t.session.Resize(cols, rows); err != nil {
		return err
	}

	t.grid.SetColumns(cols)
	t.rows.Store(int64(rows))
	t.notify()

	return nil
}

// Close stops the bridge, terminates and reaps the child, and closes the
// transcript, in that order. It is safe to call more than once.
func (t *Terminal) Close() error {
	t.closeOnce.Do(func() {
		var errs []error

		if err := t.bridge.Close(); err != nil {
			errs = append(errs, err)
		}

		<-t.done

		if err := t.session.Close(); err != nil {
			errs = append(errs, err)
		}

		if t.store != nil {
			if code := t.session.ExitCode(); code >= 0 {
				t.store.SetExitCode(code)
			}

			if err := t.store.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close transcript: %w", err))
			}
		}

		t.closeErr = errors.Join(errs...)

		t.span.SetAttributes(attribute.Int("terminal.exit_code", t.session.ExitCode()))
		if t.closeErr != nil {
			t.span.RecordError(t.closeErr)
			t.span.SetStatus(codes.Error, "terminal close failed")
		} else {
			t.span.SetStatus(codes.Ok, "")
		}
		t.span.End()

		t.logger.Info("Terminal closed",
			slog.String("component", "emulator"),
			slog.String("event.type", "terminal.stop"),
			slog.Int("terminal.exit_code", t.session.ExitCode()),
		)
	})

	return t.closeErr
}

func (t *Terminal) pump() {
	defer close(t.done)

	for chunk := range t.bridge.Output() {
		t.record(transcript.StreamOutput, chunk)

		if t.tee != nil {
			if _, err := t.tee.Write(chunk); err != nil && t.teeFailed.CompareAndSwap(false, true) {
				t.logger.Warn("Output tee failed", slog.String("component", "emulator"), slog.String("error", err.Error()))
			}
		}

		_, _ = t.interp.Write(chunk)
		t.notify()
	}

	if err := t.bridge.Err(); err != nil && !errors.Is(err, io.EOF) {
		t.logger.Warn("Terminal output ended with error",
			slog.String("component", "emulator"),
			slog.String("error", err.Error()),
		)
	}

	t.notify()
}

// watchExit closes the bridge once the child is gone and the drain grace
// has passed without the output ending on its own.
func (t *Terminal) watchExit() {
	select {
	case <-t.session.ChildExit():
	case <-t.done:
		return
	}

	timer := time.NewTimer(t.drainGrace)
	defer timer.Stop()

	select {
	case <-t.done:
	case <-timer.C:
		t.logger.Debug("Drain grace elapsed; closing bridge", slog.String("component", "emulator"))
		_ = t.bridge.Close()
	}
}

func (t *Terminal) notify() {
	select {
	case t.updates <- struct{}{}:
	default:
	}
}

func (t *Terminal) record(stream string, p []byte) {
	if t.store == nil {
		return
	}

	if err := t.store.Append(stream, p); err != nil && t.transcriptFailed.CompareAndSwap(false, true) {
		t.logger.Warn("Transcript append failed; history for this session is incomplete",
			slog.String("component", "emulator"),
			slog.String("error", err.Error()),
		)
	}
}
