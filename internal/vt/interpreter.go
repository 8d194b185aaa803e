// Package vt parses VT/xterm output streams into structured operations and
// applies them to a grid.
package vt

import (
	"log/slog"
	"sync"

	"github.com/vigil-term/vigil/internal/grid"
)

// NewlineMode selects how CR and LF move the cursor.
type NewlineMode int

const (
	// NewlineStandard treats CR as column 0 and LF as one line down.
	NewlineStandard NewlineMode = iota
	// NewlineLegacy treats CR as column 0 plus one line down and LF as one
	// column forward. Some recorded sessions depend on it.
	NewlineLegacy
)

const (
	modeAutoWrap    = 7
	modeNewlineMode = 20
)

// ModeKey identifies a terminal mode. Private is the marker byte ('?' for
// DEC private modes) or 0.
type ModeKey struct {
	Private byte
	Number  int
}

// Option configures an Interpreter.
type Option func(*Interpreter)

// WithNewlineMode sets the CR/LF policy.
func WithNewlineMode(mode NewlineMode) Option {
	return func(in *Interpreter) {
		in.newline = mode
	}
}

// WithTitleHandler registers a callback for OSC 0 and OSC 2.
func WithTitleHandler(fn func(string)) Option {
	return func(in *Interpreter) {
		in.onTitle = fn
	}
}

// WithBellHandler registers a callback for BEL.
func WithBellHandler(fn func()) Option {
	return func(in *Interpreter) {
		in.onBell = fn
	}
}

// WithLogger sets the logger used for unhandled sequences.
func WithLogger(logger *slog.Logger) Option {
	return func(in *Interpreter) {
		if logger != nil {
			in.logger = logger
		}
	}
}

// Interpreter applies parser operations to a grid.
//
// Write and Apply must be called from a single goroutine. Title and Mode may
// be called concurrently.
type Interpreter struct {
	grid   *grid.Grid
	parser *Parser
	logger *slog.Logger

	newline NewlineMode
	onTitle func(string)
	onBell  func()

	emit func(Op)

	mu    sync.RWMutex
	title string
	modes map[ModeKey]bool
}

// New creates an interpreter that mutates g.
func New(g *grid.Grid, opts ...Option) *Interpreter {
	in := &Interpreter{
		grid:   g,
		parser: NewParser(),
		logger: slog.Default(),
		modes:  make(map[ModeKey]bool),
	}

	for _, opt := range opts {
		opt(in)
	}

	in.emit = in.Apply

	return in
}

// Write feeds output bytes through the parser. It never fails.
func (in *Interpreter) Write(p []byte) (int, error) {
	in.parser.Advance(p, in.emit)

	return len(p), nil
}

// Grid returns the grid the interpreter mutates.
func (in *Interpreter) Grid() *grid.Grid {
	return in.grid
}

// Title returns the most recent window title.
func (in *Interpreter) Title() string {
	in.mu.RLock()
	defer in.mu.RUnlock()

	return in.title
}

// Mode reports the last state set for a mode and whether it was ever set.
func (in *Interpreter) Mode(key ModeKey) (enabled, seen bool) {
	in.mu.RLock()
	defer in.mu.RUnlock()

	enabled, seen = in.modes[key]

	return enabled, seen
}

// Apply performs one operation.
func (in *Interpreter) Apply(op Op) {
	switch op := op.(type) {
	case Print:
		in.grid.Print(op.Rune)
	case Execute:
		in.execute(op.Byte)
	case CSI:
		in.csi(op)
	case OSC:
		in.osc(op)
	case ESC, DCSHook, DCSPut, DCSUnhook:
		// No grid effect.
	}
}

func (in *Interpreter) execute(b byte) {
	switch b {
	case '\r':
		in.grid.CarriageReturn()

		if in.newline == NewlineLegacy {
			in.grid.MoveDown(1)
		}
	case '\n', '\v', '\f':
		if in.newline == NewlineLegacy {
			in.grid.CursorForward(1)
			return
		}

		in.grid.LineFeed()

		if enabled, _ := in.Mode(ModeKey{Number: modeNewlineMode}); enabled {
			in.grid.CarriageReturn()
		}
	case '\b':
		in.grid.MoveLeft(1)
	case '\t':
		in.grid.Tab()
	case 0x07:
		if in.onBell != nil {
			in.onBell()
		}
	default:
		in.logger.Debug("Unhandled control byte", slog.Int("byte", int(b)))
	}
}

func (in *Interpreter) csi(op CSI) {
	private := op.Private()

	// Intermediates other than a single private marker are not interpreted.
	if len(op.Intermediates) > 1 || (len(op.Intermediates) == 1 && private == 0) {
		in.logger.Debug("Unhandled control sequence", slog.String("sequence", op.String()))
		return
	}

	switch op.Final {
	case 'h', 'l':
		in.setModes(op, private, op.Final == 'h')
		return
	case 'm':
		if private == 0 {
			in.grid.SetStyle(applySGR(in.grid.Style(), op.Params))
		}

		return
	}

	if private != 0 {
		in.logger.Debug("Unhandled control sequence", slog.String("sequence", op.String()))
		return
	}

	switch op.Final {
	case 'J':
		in.grid.EraseDisplay(op.Param(0, 0))
	case 'K':
		in.grid.EraseLine(op.Param(0, 0))
	case 'A':
		in.grid.MoveUp(count(op))
	case 'B':
		in.grid.MoveDown(count(op))
	case 'C':
		in.grid.MoveRight(count(op))
	case 'D':
		in.grid.MoveLeft(count(op))
	case 'E':
		in.grid.NextLine(count(op))
	case 'F':
		in.grid.PrevLine(count(op))
	case 'G', '`':
		in.grid.SetColumn(count(op) - 1)
	case 'H', 'f':
		in.grid.SetPosition(op.Param(1, 1)-1, op.Param(0, 1)-1)
	case 'd':
		in.grid.SetLine(count(op) - 1)
	default:
		in.logger.Debug("Unhandled control sequence", slog.String("sequence", op.String()))
	}
}

// count returns the argument of a single-argument motion. When extra
// parameters are present (as in the modifier form "1;5C") the last one is
// the count.
func count(op CSI) int {
	return op.Param(len(op.Params)-1, 1)
}

func (in *Interpreter) setModes(op CSI, private byte, enabled bool) {
	for _, n := range op.Params {
		in.mu.Lock()
		in.modes[ModeKey{Private: private, Number: n}] = enabled
		in.mu.Unlock()

		switch {
		case n == modeAutoWrap:
			in.grid.SetWrap(enabled)
		case n == modeNewlineMode && private == 0:
			// Consulted on every line feed through Mode.
		default:
			in.logger.Debug("Recorded terminal mode",
				slog.Int("mode", n),
				slog.String("private", string(rune(private))),
				slog.Bool("enabled", enabled),
			)
		}
	}
}

func (in *Interpreter) osc(op OSC) {
	if len(op.Params) < 2 {
		return
	}

	switch string(op.Params[0]) {
	case "0", "2":
		title := joinOSC(op.Params[1:])

		in.mu.Lock()
		in.title = title
		in.mu.Unlock()

		if in.onTitle != nil {
			in.onTitle(title)
		}
	}
}

// joinOSC restores semicolons that were part of the title text.
func joinOSC(parts [][]byte) string {
	n := len(parts) - 1
	for _, p := range parts {
		n += len(p)
	}

	buf := make([]byte, 0, n)
	for i, p := range parts {
		if i > 0 {
			buf = append(buf, ';')
		}

		buf = append(buf, p...)
	}

	return string(buf)
}
