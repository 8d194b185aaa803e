// Package ansi holds the escape sequences vigil writes to host terminals and
// child programs, plus helpers for measuring styled text.
package ansi

import (
	"fmt"

	xansi "github.com/charmbracelet/x/ansi"
)

// Host terminal control.
const (
	Reset         = "\x1b[0m"
	ShowCursor    = "\x1b[?25h"
	HideCursor    = "\x1b[?25l"
	ClearScreen   = "\x1b[2J"
	ClearLine     = "\x1b[2K"
	CursorHome    = "\x1b[H"
	SaveCursor    = "\x1b7"
	RestoreCursor = "\x1b8"
)

// Bracketed paste delimiters.
const (
	PasteStart = xansi.BracketedPasteStart
	PasteEnd   = xansi.BracketedPasteEnd
)

// Mode numbers the key encoder consults.
const (
	ModeCursorKeys     = 1    // DECCKM
	ModeShowCursor     = 25   // DECTCEM
	ModeBracketedPaste = 2004 // xterm
)

// Strip removes ANSI escape sequences from a string.
func Strip(s string) string {
	return xansi.Strip(s)
}

// Width returns the number of cells s occupies, ignoring escape sequences.
func Width(s string) int {
	return xansi.StringWidth(s)
}

// Truncate shortens s to at most width cells, appending tail when cut.
func Truncate(s string, width int, tail string) string {
	return xansi.Truncate(s, width, tail)
}

// Move returns a cursor position sequence. Row and col are 1-indexed.
func Move(row, col int) string {
	return fmt.Sprintf("\x1b[%d;%dH", row, col)
}

// CSI returns a control sequence with the given parameter text and final.
func CSI(params string, final byte) string {
	return "\x1b[" + params + string(final)
}

// SS3 returns a single-shift-3 sequence, as used by application cursor keys
// and F1-F4.
func SS3(final byte) string {
	return "\x1bO" + string(final)
}

// OSC returns an operating system command terminated by BEL.
func OSC(ps int, text string) string {
	return fmt.Sprintf("\x1b]%d;%s\a", ps, text)
}
