// Package terminal inspects and controls the host terminal vigil runs in:
// TTY and color detection, window size, and raw mode for attached sessions.
package terminal

import (
	"fmt"
	"os"

	"golang.org/x/term"
)

// Info holds terminal capability information.
type Info struct {
	IsTTY      bool
	StdinIsTTY bool
	NoColor    bool
	Width      int
	Height     int
	ForceFlag  bool // Set when --no-color flag is used
}

// Detect returns terminal information for the current environment.
func Detect() *Info {
	stdoutFD := int(os.Stdout.Fd())
	isTTY := term.IsTerminal(stdoutFD)

	width, height := 80, 24 // sensible defaults

	if isTTY {
		if w, h, err := term.GetSize(stdoutFD); err == nil {
			width, height = w, h
		}
	}

	// Check NO_COLOR environment variable (https://no-color.org/)
	_, noColor := os.LookupEnv("NO_COLOR")

	// Treat TERM=dumb as no-color (terminals that don't support escape sequences)
	if os.Getenv("TERM") == "dumb" {
		noColor = true
	}

	return &Info{
		IsTTY:      isTTY,
		StdinIsTTY: term.IsTerminal(int(os.Stdin.Fd())),
		NoColor:    noColor,
		Width:      width,
		Height:     height,
	}
}

// ColorEnabled returns true if colored output should be used.
func (t *Info) ColorEnabled() bool {
	if t.ForceFlag {
		return false
	}

	return t.IsTTY && !t.NoColor
}

// InteractiveEnabled returns true if interactive prompts are allowed.
func (t *Info) InteractiveEnabled() bool {
	return t.IsTTY
}

// CanAttach reports whether both ends are terminals, which an attached
// session needs for key input and full-screen drawing.
func (t *Info) CanAttach() bool {
	return t.IsTTY && t.StdinIsTTY
}

// SpinnersEnabled returns true if spinners should be used.
func (t *Info) SpinnersEnabled() bool {
	return t.IsTTY && !t.NoColor
}

// Size returns the current size of the terminal on f.
func Size(f *os.File) (width, height int, err error) {
	width, height, err = term.GetSize(int(f.Fd()))
	if err != nil {
		return 0, 0, fmt.Errorf("get terminal size: %w", err)
	}

	return width, height, nil
}

// MakeRaw puts the terminal on f into raw mode. The returned function
// restores the previous state and is safe to call more than once.
func MakeRaw(f *os.File) (restore func() error, err error) {
	fd := int(f.Fd())

	state, err := term.MakeRaw(fd)
	if err != nil {
		return nil, fmt.Errorf("enter raw mode: %w", err)
	}

	restored := false

	return func() error {
		if restored {
			return nil
		}

		restored = true

		if err := term.Restore(fd, state); err != nil {
			return fmt.Errorf("restore terminal: %w", err)
		}

		return nil
	}, nil
}
