package grid

import (
	"sync"
	"testing"
)

func rowsText(rows []Row) []string {
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = r.String()
	}

	return out
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}

	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}

	return true
}

func printString(g *Grid, s string) {
	for _, r := range s {
		g.Print(r)
	}
}

func TestNew_Defaults(t *testing.T) {
	g := New(Options{})

	if g.Columns() != DefaultColumns {
		t.Fatalf("Columns() = %d, want %d", g.Columns(), DefaultColumns)
	}

	if !g.Wrap() {
		t.Fatal("Wrap() = false, want true")
	}

	if g.Lines() != 1 {
		t.Fatalf("Lines() = %d, want 1", g.Lines())
	}

	if pos := g.CursorPosition(); pos != (Position{}) {
		t.Fatalf("CursorPosition() = %+v, want origin", pos)
	}
}

func TestWriteCell_SnapshotRoundTrip(t *testing.T) {
	style := Style{Fg: Indexed(1), Bg: RGB(10, 20, 30), Attrs: AttrBold | AttrUnderline}

	tests := []struct {
		name string
		col  int
		line int
	}{
		{name: "origin", col: 0, line: 0},
		{name: "padded row", col: 7, line: 0},
		{name: "grown grid", col: 3, line: 5},
		{name: "beyond columns", col: 120, line: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := New(Options{Columns: 80})
			g.WriteCell(tt.col, tt.line, Cell{Rune: 'x', Width: 1, Style: style})

			if g.Lines() < tt.line+1 {
				t.Fatalf("Lines() = %d, want >= %d", g.Lines(), tt.line+1)
			}

			rows := g.Snapshot(tt.line, 1)
			if len(rows) != 1 {
				t.Fatalf("Snapshot() returned %d rows, want 1", len(rows))
			}

			row := rows[0]
			if len(row) != tt.col+1 {
				t.Fatalf("row length = %d, want %d", len(row), tt.col+1)
			}

			got := row[tt.col]
			if got.Rune != 'x' || got.Style != style {
				t.Fatalf("cell = %+v, want rune x with style %+v", got, style)
			}

			for i := 0; i < tt.col; i++ {
				if row[i] != Blank() {
					t.Fatalf("padding cell %d = %+v, want blank", i, row[i])
				}
			}
		})
	}
}

func TestWriteCell_IgnoresNegativeCoordinates(t *testing.T) {
	g := New(Options{})
	g.WriteCell(-1, 0, Cell{Rune: 'x', Width: 1})
	g.WriteCell(0, -1, Cell{Rune: 'x', Width: 1})

	if got := g.Text(); got != "" {
		t.Fatalf("Text() = %q, want empty", got)
	}
}

func TestCursorForward(t *testing.T) {
	tests := []struct {
		name      string
		wrap      bool
		startCol  int
		n         int
		want      Position
		wantLines int
	}{
		{name: "within row", wrap: true, startCol: 2, n: 3, want: Position{Col: 5}, wantLines: 1},
		{name: "lands on column count", wrap: true, startCol: 8, n: 2, want: Position{Col: 10}, wantLines: 1},
		{name: "wraps past column count", wrap: true, startCol: 8, n: 3, want: Position{Col: 0, Line: 1}, wantLines: 2},
		{name: "wraps from pending position", wrap: true, startCol: 10, n: 1, want: Position{Col: 0, Line: 1}, wantLines: 2},
		{name: "unbounded without wrap", wrap: false, startCol: 8, n: 30, want: Position{Col: 38}, wantLines: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := New(Options{Columns: 10, DisableWrap: !tt.wrap})
			g.mu.Lock()
			g.cursor.Col = tt.startCol
			g.mu.Unlock()

			g.CursorForward(tt.n)

			if got := g.CursorPosition(); got != tt.want {
				t.Fatalf("CursorPosition() = %+v, want %+v", got, tt.want)
			}

			if g.Lines() != tt.wantLines {
				t.Fatalf("Lines() = %d, want %d", g.Lines(), tt.wantLines)
			}

			if tt.wrap && g.CursorPosition().Col > g.Columns() {
				t.Fatalf("column %d exceeds column count %d", g.CursorPosition().Col, g.Columns())
			}
		})
	}
}

func TestCursorForward_NeverExceedsColumns(t *testing.T) {
	g := New(Options{Columns: 7})

	for n := 0; n < 50; n++ {
		before := g.CursorPosition()
		g.CursorForward(n % 9)
		after := g.CursorPosition()

		if after.Col > g.Columns() {
			t.Fatalf("step %d: column %d exceeds %d", n, after.Col, g.Columns())
		}

		if after.Line != before.Line && (after.Line != before.Line+1 || after.Col != 0) {
			t.Fatalf("step %d: moved from %+v to %+v", n, before, after)
		}

		if g.Lines() < after.Line+1 {
			t.Fatalf("step %d: Lines() = %d, want >= %d", n, g.Lines(), after.Line+1)
		}
	}
}

func TestPrint_WrapsAtColumnCount(t *testing.T) {
	g := New(Options{Columns: 3})
	printString(g, "abcd")

	if got, want := rowsText(g.Snapshot(0, 10)), []string{"abc", "d"}; !equalStrings(got, want) {
		t.Fatalf("rows = %q, want %q", got, want)
	}

	if got, want := g.CursorPosition(), (Position{Col: 1, Line: 1}); got != want {
		t.Fatalf("CursorPosition() = %+v, want %+v", got, want)
	}
}

func TestPrint_NoWrapExtendsRow(t *testing.T) {
	g := New(Options{Columns: 3, DisableWrap: true})
	printString(g, "abcdef")

	if got := g.Text(); got != "abcdef" {
		t.Fatalf("Text() = %q, want %q", got, "abcdef")
	}

	if got := g.CursorPosition().Col; got != 6 {
		t.Fatalf("column = %d, want 6", got)
	}
}

func TestPrint_WideGlyph(t *testing.T) {
	g := New(Options{Columns: 5})
	printString(g, "a世")

	row := g.Snapshot(0, 1)[0]
	if len(row) != 3 {
		t.Fatalf("row length = %d, want 3", len(row))
	}

	if row[1].Rune != '世' || row[1].Width != 2 {
		t.Fatalf("wide cell = %+v", row[1])
	}

	if !row[2].IsContinuation() {
		t.Fatalf("cell 2 = %+v, want continuation", row[2])
	}

	if got := row.String(); got != "a世" {
		t.Fatalf("String() = %q, want %q", got, "a世")
	}

	if got := g.CursorPosition().Col; got != 3 {
		t.Fatalf("column = %d, want 3", got)
	}
}

func TestPrint_WideGlyphWrapsWhenItDoesNotFit(t *testing.T) {
	g := New(Options{Columns: 4})
	printString(g, "abc世")

	if got, want := rowsText(g.Snapshot(0, 5)), []string{"abc", "世"}; !equalStrings(got, want) {
		t.Fatalf("rows = %q, want %q", got, want)
	}
}

func TestPrint_WideGlyphOnSingleColumnGrid(t *testing.T) {
	g := New(Options{Columns: 1})
	printString(g, "世a")

	if got, want := rowsText(g.Snapshot(0, 5)), []string{"\uFFFD", "a"}; !equalStrings(got, want) {
		t.Fatalf("rows = %q, want %q", got, want)
	}

	if got, want := g.CursorPosition(), (Position{Col: 1, Line: 1}); got != want {
		t.Fatalf("CursorPosition() = %+v, want %+v", got, want)
	}
}

func TestPrint_OverwritingHalfOfWideGlyphClearsOtherHalf(t *testing.T) {
	g := New(Options{Columns: 10})
	printString(g, "世")
	g.CarriageReturn()
	g.MoveRight(1)
	g.Print('x')

	row := g.Snapshot(0, 1)[0]
	if row[0] != Blank() {
		t.Fatalf("cell 0 = %+v, want blank", row[0])
	}

	if row[1].Rune != 'x' {
		t.Fatalf("cell 1 = %+v, want x", row[1])
	}
}

func TestPrint_UsesActiveStyle(t *testing.T) {
	g := New(Options{})
	style := Style{Fg: Indexed(2), Attrs: AttrItalic}
	g.SetStyle(style)
	g.Print('s')

	cell, ok := g.CellAt(0, 0)
	if !ok {
		t.Fatal("CellAt(0, 0) missing")
	}

	if cell.Style != style {
		t.Fatalf("style = %+v, want %+v", cell.Style, style)
	}
}

func TestPrint_DropsZeroWidthRunes(t *testing.T) {
	g := New(Options{})
	g.Print('e')
	g.Print('\u0301')

	if got := g.CursorPosition().Col; got != 1 {
		t.Fatalf("column = %d, want 1", got)
	}
}

func TestMotionClamping(t *testing.T) {
	tests := []struct {
		name  string
		apply func(g *Grid)
		want  Position
		lines int
	}{
		{name: "right clamps to columns", apply: func(g *Grid) { g.MoveRight(50) }, want: Position{Col: 10}, lines: 1},
		{name: "left clamps to zero", apply: func(g *Grid) { g.MoveRight(3); g.MoveLeft(9) }, want: Position{}, lines: 1},
		{name: "up clamps to zero", apply: func(g *Grid) { g.MoveDown(2); g.MoveUp(7) }, want: Position{}, lines: 3},
		{name: "down grows grid", apply: func(g *Grid) { g.MoveDown(4) }, want: Position{Line: 4}, lines: 5},
		{name: "next line resets column", apply: func(g *Grid) { g.MoveRight(4); g.NextLine(2) }, want: Position{Line: 2}, lines: 3},
		{name: "prev line resets column", apply: func(g *Grid) { g.MoveDown(3); g.MoveRight(4); g.PrevLine(1) }, want: Position{Line: 2}, lines: 4},
		{name: "set column clamps", apply: func(g *Grid) { g.SetColumn(99) }, want: Position{Col: 10}, lines: 1},
		{name: "set position grows", apply: func(g *Grid) { g.SetPosition(3, 6) }, want: Position{Col: 3, Line: 6}, lines: 7},
		{name: "tab stops", apply: func(g *Grid) { g.MoveRight(1); g.Tab() }, want: Position{Col: 8}, lines: 1},
		{name: "tab clamps", apply: func(g *Grid) { g.Tab(); g.Tab() }, want: Position{Col: 10}, lines: 1},
		{name: "carriage return", apply: func(g *Grid) { g.MoveRight(5); g.CarriageReturn() }, want: Position{}, lines: 1},
		{name: "line feed keeps column", apply: func(g *Grid) { g.MoveRight(5); g.LineFeed() }, want: Position{Col: 5, Line: 1}, lines: 2},
		{name: "enabling wrap pulls cursor in", apply: func(g *Grid) { g.SetWrap(false); g.CursorForward(14); g.SetWrap(true) }, want: Position{Col: 10}, lines: 1},
		{name: "right after wrap re-enabled", apply: func(g *Grid) { g.SetWrap(false); g.CursorForward(14); g.SetWrap(true); g.MoveRight(1) }, want: Position{Col: 10}, lines: 1},
		{name: "tab after wrap re-enabled", apply: func(g *Grid) { g.SetWrap(false); g.CursorForward(12); g.SetWrap(true); g.Tab() }, want: Position{Col: 10}, lines: 1},
		{name: "right with wrap off leaves overflow", apply: func(g *Grid) { g.SetWrap(false); g.CursorForward(12); g.MoveRight(1) }, want: Position{Col: 12}, lines: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := New(Options{Columns: 10})
			tt.apply(g)

			if got := g.CursorPosition(); got != tt.want {
				t.Fatalf("CursorPosition() = %+v, want %+v", got, tt.want)
			}

			if g.Lines() != tt.lines {
				t.Fatalf("Lines() = %d, want %d", g.Lines(), tt.lines)
			}
		})
	}
}

func seedGrid(t *testing.T) *Grid {
	t.Helper()

	g := New(Options{Columns: 10})
	for i, s := range []string{"line0", "line1", "line2", "line3"} {
		g.SetPosition(0, i)
		printString(g, s)
	}

	g.SetPosition(2, 1)

	return g
}

func TestEraseDisplay(t *testing.T) {
	tests := []struct {
		name       string
		mode       int
		wantRows   []string
		wantCursor Position
	}{
		{name: "cursor to end", mode: 0, wantRows: []string{"line0", "li"}, wantCursor: Position{Col: 2, Line: 1}},
		{name: "start to cursor", mode: 1, wantRows: []string{"   e1", "line2", "line3"}, wantCursor: Position{Col: 2, Line: 0}},
		{name: "entire grid", mode: 2, wantRows: []string{}, wantCursor: Position{Col: 2, Line: 1}},
		{name: "entire grid and home", mode: 3, wantRows: []string{}, wantCursor: Position{}},
		{name: "unknown selector", mode: 9, wantRows: []string{"line0", "line1", "line2", "line3"}, wantCursor: Position{Col: 2, Line: 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := seedGrid(t)
			g.EraseDisplay(tt.mode)

			if got := rowsText(g.Snapshot(0, 100)); !equalStrings(got, tt.wantRows) {
				t.Fatalf("rows = %q, want %q", got, tt.wantRows)
			}

			if got := g.CursorPosition(); got != tt.wantCursor {
				t.Fatalf("CursorPosition() = %+v, want %+v", got, tt.wantCursor)
			}
		})
	}
}

func TestEraseDisplay_ThenWriteDoesNotResurrect(t *testing.T) {
	g := New(Options{})
	g.Print('A')
	g.EraseDisplay(2)
	g.CarriageReturn()
	g.Print('B')

	if got, want := rowsText(g.Snapshot(0, 10)), []string{"B"}; !equalStrings(got, want) {
		t.Fatalf("rows = %q, want %q", got, want)
	}
}

func TestEraseLine(t *testing.T) {
	tests := []struct {
		name     string
		mode     int
		wantRows []string
	}{
		{name: "cursor to end", mode: 0, wantRows: []string{"line0", "li", "line2", "line3"}},
		{name: "start to cursor", mode: 1, wantRows: []string{"line0", "   e1", "line2", "line3"}},
		{name: "whole line", mode: 2, wantRows: []string{"line0", "", "line2", "line3"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := seedGrid(t)
			g.EraseLine(tt.mode)

			if got := rowsText(g.Snapshot(0, 100)); !equalStrings(got, tt.wantRows) {
				t.Fatalf("rows = %q, want %q", got, tt.wantRows)
			}

			if got, want := g.CursorPosition(), (Position{Col: 2, Line: 1}); got != want {
				t.Fatalf("CursorPosition() = %+v, want %+v", got, want)
			}
		})
	}
}

func TestEraseLine_MissingLineIsNoop(t *testing.T) {
	g := New(Options{})
	g.EraseDisplay(2)
	g.EraseLine(2)

	if g.Lines() != 0 {
		t.Fatalf("Lines() = %d, want 0", g.Lines())
	}
}

func TestScrollbackEviction(t *testing.T) {
	g := New(Options{Columns: 10, MaxLines: 3})

	for i := 0; i < 5; i++ {
		g.Print(rune('a' + i))
		g.CarriageReturn()
		g.LineFeed()
	}

	if g.Lines() != 3 {
		t.Fatalf("Lines() = %d, want 3", g.Lines())
	}

	if g.Evicted() != 3 {
		t.Fatalf("Evicted() = %d, want 3", g.Evicted())
	}

	if got, want := rowsText(g.Snapshot(0, 3)), []string{"d", "e", ""}; !equalStrings(got, want) {
		t.Fatalf("rows = %q, want %q", got, want)
	}

	if got, want := g.CursorPosition(), (Position{Line: 2}); got != want {
		t.Fatalf("CursorPosition() = %+v, want %+v", got, want)
	}
}

func TestSnapshot(t *testing.T) {
	g := seedGrid(t)

	tests := []struct {
		name   string
		top    int
		height int
		want   []string
	}{
		{name: "full", top: 0, height: 4, want: []string{"line0", "line1", "line2", "line3"}},
		{name: "window", top: 1, height: 2, want: []string{"line1", "line2"}},
		{name: "clipped", top: 3, height: 10, want: []string{"line3"}},
		{name: "past end", top: 9, height: 2, want: []string{}},
		{name: "negative top", top: -3, height: 1, want: []string{"line0"}},
		{name: "zero height", top: 0, height: 0, want: []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := rowsText(g.Snapshot(tt.top, tt.height)); !equalStrings(got, tt.want) {
				t.Fatalf("Snapshot(%d, %d) = %q, want %q", tt.top, tt.height, got, tt.want)
			}
		})
	}
}

func TestSnapshot_IsACopy(t *testing.T) {
	g := New(Options{})
	g.Print('a')

	rows := g.Snapshot(0, 1)
	rows[0][0].Rune = 'z'

	if got := g.Text(); got != "a" {
		t.Fatalf("Text() = %q after mutating snapshot, want %q", got, "a")
	}
}

func TestConcurrentReadersDuringWrites(t *testing.T) {
	g := New(Options{Columns: 20, MaxLines: 50})

	var wg sync.WaitGroup

	done := make(chan struct{})

	for range 4 {
		wg.Add(1)

		go func() {
			defer wg.Done()

			for {
				select {
				case <-done:
					return
				default:
					_ = g.Snapshot(0, 10)
					_ = g.CursorPosition()
				}
			}
		}()
	}

	for i := 0; i < 2000; i++ {
		g.Print(rune('a' + i%26))
	}

	close(done)
	wg.Wait()
}
