// Package grid holds the character grid and cursor that the escape
// interpreter mutates and display adapters read.
//
// Rows may be shorter than the column count; missing trailing cells are
// implicitly blank. The grid grows downward as output produces new lines and
// only shrinks through erase commands or scrollback eviction.
package grid

import (
	"strings"
	"sync"
	"unicode"

	"github.com/mattn/go-runewidth"
)

const (
	// DefaultColumns is used when Options.Columns is not positive.
	DefaultColumns = 80

	tabStop = 8
)

// Position is a cursor coordinate. Line 0 is the topmost retained line.
type Position struct {
	Col  int `json:"col" yaml:"col"`
	Line int `json:"line" yaml:"line"`
}

// Options configures a Grid.
type Options struct {
	// Columns is the nominal row width used by the wrap policy.
	Columns int
	// MaxLines caps retained lines. Zero keeps every line.
	MaxLines int
	// DisableWrap starts the grid with automatic line wrap off.
	DisableWrap bool
}

// Grid is the authoritative screen state.
//
// It is safe for one writer and any number of concurrent readers.
type Grid struct {
	mu sync.RWMutex

	rows     []Row
	cursor   Position
	cols     int
	wrap     bool
	style    Style
	maxLines int
	evicted  int
}

// New creates a grid with a single empty row and the cursor at (0,0).
func New(opts Options) *Grid {
	cols := opts.Columns
	if cols <= 0 {
		cols = DefaultColumns
	}

	maxLines := opts.MaxLines
	if maxLines < 0 {
		maxLines = 0
	}

	return &Grid{
		rows:     []Row{{}},
		cols:     cols,
		wrap:     !opts.DisableWrap,
		maxLines: maxLines,
	}
}

// Columns returns the column count.
func (g *Grid) Columns() int {
	g.mu.RLock()
	defer g.mu.RUnlock()

	return g.cols
}

// SetColumns changes the column count. Existing rows are not reflowed.
func (g *Grid) SetColumns(n int) {
	if n <= 0 {
		return
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	g.cols = n
	if g.wrap && g.cursor.Col > n {
		g.cursor.Col = n
	}
}

// Wrap reports whether automatic line wrap is enabled.
func (g *Grid) Wrap() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()

	return g.wrap
}

// SetWrap enables or disables automatic line wrap.
func (g *Grid) SetWrap(enabled bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.wrap = enabled
	if enabled && g.cursor.Col > g.cols {
		g.cursor.Col = g.cols
	}
}

// Style returns the active style applied to printed cells.
func (g *Grid) Style() Style {
	g.mu.RLock()
	defer g.mu.RUnlock()

	return g.style
}

// SetStyle replaces the active style.
func (g *Grid) SetStyle(s Style) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.style = s
}

// CursorPosition returns the cursor coordinate.
func (g *Grid) CursorPosition() Position {
	g.mu.RLock()
	defer g.mu.RUnlock()

	return g.cursor
}

// Lines returns the number of retained rows.
func (g *Grid) Lines() int {
	g.mu.RLock()
	defer g.mu.RUnlock()

	return len(g.rows)
}

// Evicted returns how many lines scrollback eviction has discarded so far.
func (g *Grid) Evicted() int {
	g.mu.RLock()
	defer g.mu.RUnlock()

	return g.evicted
}

// CursorForward advances the cursor by n columns under the wrap policy.
//
// With wrap enabled, a move that would pass the column count resets the
// column to 0 and advances one line, growing the grid when needed. With wrap
// disabled the column grows without bound.
func (g *Grid) CursorForward(n int) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.forwardLocked(n)
}

// WriteCell installs c at (col, line), padding the row with blank cells and
// growing the grid as needed. Negative coordinates are ignored.
func (g *Grid) WriteCell(col, line int, c Cell) {
	if col < 0 || line < 0 {
		return
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	g.writeCellLocked(col, line, c)
}

// CellAt returns the cell at (col, line) if it has been written.
func (g *Grid) CellAt(col, line int) (Cell, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if line < 0 || line >= len(g.rows) || col < 0 || col >= len(g.rows[line]) {
		return Cell{}, false
	}

	return g.rows[line][col], true
}

// Print places r at the cursor with the active style and advances the cursor.
// Zero-width runes are dropped. A glyph wider than the grid is printed as
// U+FFFD.
func (g *Grid) Print(r rune) {
	width := runewidth.RuneWidth(r)
	if width <= 0 {
		return
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if width > g.cols {
		r, width = unicode.ReplacementChar, 1
	}

	if g.wrap && g.cursor.Col+width > g.cols {
		g.cursor.Col = 0
		g.cursor.Line = g.growLocked(g.cursor.Line + 1)
	}

	g.cursor.Line = g.writeCellLocked(g.cursor.Col, g.cursor.Line, Cell{Rune: r, Width: width, Style: g.style})
	if width == 2 {
		g.cursor.Line = g.writeCellLocked(g.cursor.Col+1, g.cursor.Line, Cell{Style: g.style})
	}

	g.forwardLocked(width)
}

// CarriageReturn moves the cursor to column 0.
func (g *Grid) CarriageReturn() {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.cursor.Col = 0
}

// LineFeed moves the cursor down one line, keeping the column.
func (g *Grid) LineFeed() {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.cursor.Line = g.growLocked(g.cursor.Line + 1)
}

// Tab moves the cursor to the next tab stop, clamped to the column count.
func (g *Grid) Tab() {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.cursor.Col = g.rightLimitLocked((g.cursor.Col/tabStop + 1) * tabStop)
}

// MoveRight moves the cursor right by n columns, never past the column count.
func (g *Grid) MoveRight(n int) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.cursor.Col = g.rightLimitLocked(g.cursor.Col + max(n, 0))
}

// MoveLeft moves the cursor left by n columns, never below 0.
func (g *Grid) MoveLeft(n int) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.cursor.Col = max(g.cursor.Col-max(n, 0), 0)
}

// MoveUp moves the cursor up by n lines, never above line 0.
func (g *Grid) MoveUp(n int) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.cursor.Line = max(g.cursor.Line-max(n, 0), 0)
}

// MoveDown moves the cursor down by n lines, growing the grid.
func (g *Grid) MoveDown(n int) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.cursor.Line = g.growLocked(g.cursor.Line + max(n, 0))
}

// NextLine moves down n lines and to column 0.
func (g *Grid) NextLine(n int) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.cursor.Line = g.growLocked(g.cursor.Line + max(n, 0))
	g.cursor.Col = 0
}

// PrevLine moves up n lines and to column 0.
func (g *Grid) PrevLine(n int) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.cursor.Line = max(g.cursor.Line-max(n, 0), 0)
	g.cursor.Col = 0
}

// SetColumn moves the cursor to an absolute column clamped to [0, Columns].
func (g *Grid) SetColumn(col int) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.cursor.Col = min(max(col, 0), g.cols)
}

// SetLine moves the cursor to an absolute line, growing the grid.
func (g *Grid) SetLine(line int) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.cursor.Line = g.growLocked(max(line, 0))
}

// SetPosition moves the cursor to an absolute coordinate.
func (g *Grid) SetPosition(col, line int) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.cursor.Col = min(max(col, 0), g.cols)
	g.cursor.Line = g.growLocked(max(line, 0))
}

// EraseDisplay implements the erase-in-display selectors.
//
//	0: erase cursor to end of line, drop every line below the cursor
//	1: blank start of line through the cursor, drop every line above it
//	2: remove every row
//	3: remove every row and home the cursor
//
// Other selectors are ignored.
func (g *Grid) EraseDisplay(mode int) {
	g.mu.Lock()
	defer g.mu.Unlock()

	line := g.cursor.Line

	switch mode {
	case 0:
		if line >= len(g.rows) {
			return
		}

		g.truncateLocked(line, g.cursor.Col)
		clear(g.rows[line+1:])
		g.rows = g.rows[:line+1]
	case 1:
		if line >= len(g.rows) {
			clear(g.rows)
			g.rows = g.rows[:0]
			g.cursor.Line = 0

			return
		}

		g.blankLocked(line, g.cursor.Col)
		clear(g.rows[:line])
		g.rows = g.rows[line:]
		g.cursor.Line = 0
	case 2:
		clear(g.rows)
		g.rows = g.rows[:0]
	case 3:
		clear(g.rows)
		g.rows = g.rows[:0]
		g.cursor = Position{}
	}
}

// EraseLine implements the erase-in-line selectors on the cursor's line.
//
//	0: truncate the row at the cursor
//	1: blank start of line through the cursor
//	2: empty the row
//
// A line that does not exist is left alone; other selectors are ignored.
func (g *Grid) EraseLine(mode int) {
	g.mu.Lock()
	defer g.mu.Unlock()

	line := g.cursor.Line
	if line >= len(g.rows) {
		return
	}

	switch mode {
	case 0:
		g.truncateLocked(line, g.cursor.Col)
	case 1:
		g.blankLocked(line, g.cursor.Col)
	case 2:
		g.rows[line] = g.rows[line][:0]
	}
}

// Snapshot returns copies of up to height rows starting at top.
func (g *Grid) Snapshot(top, height int) []Row {
	g.mu.RLock()
	defer g.mu.RUnlock()

	top = max(top, 0)
	if height <= 0 || top >= len(g.rows) {
		return []Row{}
	}

	end := min(top+height, len(g.rows))
	out := make([]Row, 0, end-top)

	for _, row := range g.rows[top:end] {
		out = append(out, row.clone())
	}

	return out
}

// Text renders every retained row as plain text joined by newlines.
func (g *Grid) Text() string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	lines := make([]string, len(g.rows))
	for i, row := range g.rows {
		lines[i] = row.String()
	}

	return strings.Join(lines, "\n")
}

// rightLimitLocked clamps a rightward target to the column count. With wrap
// off a cursor already past the last column stays where it is.
func (g *Grid) rightLimitLocked(target int) int {
	if target <= g.cols {
		return target
	}

	if g.wrap {
		return g.cols
	}

	return max(g.cols, g.cursor.Col)
}

func (g *Grid) forwardLocked(n int) {
	n = max(n, 0)

	if g.wrap && g.cursor.Col+n > g.cols {
		g.cursor.Col = 0
		g.cursor.Line = g.growLocked(g.cursor.Line + 1)

		return
	}

	g.cursor.Col += n
}

// growLocked appends rows until line exists and applies the scrollback cap.
// It returns line translated to indexing after any eviction.
func (g *Grid) growLocked(line int) int {
	for len(g.rows) <= line {
		g.rows = append(g.rows, Row{})
	}

	if g.maxLines <= 0 || len(g.rows) <= g.maxLines {
		return line
	}

	drop := len(g.rows) - g.maxLines
	clear(g.rows[:drop])
	g.rows = g.rows[drop:]
	g.evicted += drop
	g.cursor.Line = max(g.cursor.Line-drop, 0)

	return max(line-drop, 0)
}

func (g *Grid) writeCellLocked(col, line int, c Cell) int {
	line = g.growLocked(line)

	row := g.rows[line]
	for len(row) <= col {
		row = append(row, Blank())
	}

	// Keep wide glyphs whole: overwriting either half clears the other.
	if old := row[col]; old.Width == 2 && c.Width != 2 && col+1 < len(row) && row[col+1].IsContinuation() {
		row[col+1] = Blank()
	}

	if row[col].IsContinuation() && !c.IsContinuation() && col > 0 && row[col-1].Width == 2 {
		row[col-1] = Blank()
	}

	row[col] = c
	g.rows[line] = row

	return line
}

func (g *Grid) truncateLocked(line, col int) {
	row := g.rows[line]
	if col >= len(row) {
		return
	}

	if col > 0 && row[col-1].Width == 2 {
		row[col-1] = Blank()
	}

	g.rows[line] = row[:col]
}

func (g *Grid) blankLocked(line, col int) {
	row := g.rows[line]

	end := min(col, len(row)-1)
	for i := 0; i <= end; i++ {
		row[i] = Blank()
	}

	if end+1 < len(row) && row[end+1].IsContinuation() {
		row[end+1] = Blank()
	}
}
