package vt

import (
	"reflect"
	"testing"

	"github.com/vigil-term/vigil/internal/grid"
	"github.com/vigil-term/vigil/internal/testutil"
)

func newTestInterpreter(t *testing.T, cols int, opts ...Option) (*Interpreter, *grid.Grid) {
	t.Helper()

	g := grid.New(grid.Options{Columns: cols})

	return New(g, opts...), g
}

func rowStrings(g *grid.Grid) []string {
	rows := g.Snapshot(0, g.Lines())

	out := make([]string, len(rows))
	for i, row := range rows {
		out[i] = row.String()
	}

	return out
}

func writeString(t *testing.T, in *Interpreter, s string) {
	t.Helper()

	n, err := in.Write([]byte(s))
	if err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	if n != len(s) {
		t.Fatalf("Write() = %d, want %d", n, len(s))
	}
}

func TestInterpreterCRLF(t *testing.T) {
	in, g := newTestInterpreter(t, 80)
	writeString(t, in, "hi\r\n")

	if got, want := rowStrings(g), []string{"hi", ""}; !reflect.DeepEqual(got, want) {
		t.Fatalf("rows = %q, want %q", got, want)
	}

	if got, want := g.CursorPosition(), (grid.Position{Col: 0, Line: 1}); got != want {
		t.Fatalf("CursorPosition() = %+v, want %+v", got, want)
	}
}

func TestInterpreterLineFeedKeepsColumn(t *testing.T) {
	in, g := newTestInterpreter(t, 80)
	writeString(t, in, "abc\ndef")

	if got, want := rowStrings(g), []string{"abc", "   def"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("rows = %q, want %q", got, want)
	}
}

func TestInterpreterNewlineMode(t *testing.T) {
	in, g := newTestInterpreter(t, 80)
	writeString(t, in, "\x1b[20habc\ndef")

	if got, want := rowStrings(g), []string{"abc", "def"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("rows = %q, want %q", got, want)
	}

	if enabled, seen := in.Mode(ModeKey{Number: 20}); !enabled || !seen {
		t.Fatalf("Mode(20) = (%v, %v), want (true, true)", enabled, seen)
	}
}

func TestInterpreterLegacyNewline(t *testing.T) {
	in, g := newTestInterpreter(t, 80, WithNewlineMode(NewlineLegacy))
	writeString(t, in, "hi\r\n")

	if got, want := g.CursorPosition(), (grid.Position{Col: 1, Line: 1}); got != want {
		t.Fatalf("CursorPosition() = %+v, want %+v", got, want)
	}

	if got, want := g.Lines(), 2; got != want {
		t.Fatalf("Lines() = %d, want %d", got, want)
	}
}

func TestInterpreterCursorMotion(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  grid.Position
	}{
		{name: "forward with modifier form", input: "\x1b[1;5C", want: grid.Position{Col: 5}},
		{name: "forward default", input: "\x1b[C", want: grid.Position{Col: 1}},
		{name: "forward zero means one", input: "\x1b[0C", want: grid.Position{Col: 1}},
		{name: "forward clamped", input: "\x1b[200C", want: grid.Position{Col: 10}},
		{name: "back clamped", input: "ab\x1b[9D", want: grid.Position{Col: 0}},
		{name: "down grows", input: "\x1b[3B", want: grid.Position{Line: 3}},
		{name: "up clamped", input: "\x1b[2B\x1b[5A", want: grid.Position{Line: 0}},
		{name: "next line", input: "abc\x1b[2E", want: grid.Position{Line: 2}},
		{name: "prev line", input: "\x1b[3B\x1b[4Cx\x1b[F", want: grid.Position{Line: 2}},
		{name: "absolute column", input: "\x1b[4G", want: grid.Position{Col: 3}},
		{name: "absolute position", input: "\x1b[3;4H", want: grid.Position{Col: 3, Line: 2}},
		{name: "home", input: "abc\x1b[2B\x1b[H", want: grid.Position{}},
		{name: "absolute line", input: "\x1b[5d", want: grid.Position{Line: 4}},
		{name: "backspace", input: "ab\b", want: grid.Position{Col: 1}},
		{name: "tab", input: "a\t", want: grid.Position{Col: 8}},
		{name: "tab clamped", input: "\x1b[9C\t", want: grid.Position{Col: 10}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			in, g := newTestInterpreter(t, 10)
			writeString(t, in, tc.input)

			if got := g.CursorPosition(); got != tc.want {
				t.Fatalf("CursorPosition() = %+v, want %+v", got, tc.want)
			}
		})
	}
}

func TestInterpreterEraseDisplay(t *testing.T) {
	tests := []struct {
		name       string
		input      string
		wantRows   []string
		wantCursor grid.Position
	}{
		{
			name:       "erase all keeps cursor",
			input:      "A\r\n\x1b[2J",
			wantRows:   []string{},
			wantCursor: grid.Position{Line: 1},
		},
		{
			name:       "erase all with scrollback homes cursor",
			input:      "A\r\nB\x1b[3J",
			wantRows:   []string{},
			wantCursor: grid.Position{},
		},
		{
			name:       "erase below",
			input:      "one\r\ntwo\r\nthree\x1b[2A\x1b[4D\x1b[J",
			wantRows:   []string{"o"},
			wantCursor: grid.Position{Col: 1},
		},
		{
			name:       "erase above",
			input:      "one\r\ntwo\r\nthree\x1b[A\x1b[4D\x1b[1J",
			wantRows:   []string{"  o", "three"},
			wantCursor: grid.Position{Col: 1},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			in, g := newTestInterpreter(t, 80)
			writeString(t, in, tc.input)

			if got := rowStrings(g); !reflect.DeepEqual(got, tc.wantRows) {
				t.Fatalf("rows = %q, want %q", got, tc.wantRows)
			}

			if got := g.CursorPosition(); got != tc.wantCursor {
				t.Fatalf("CursorPosition() = %+v, want %+v", got, tc.wantCursor)
			}
		})
	}
}

func TestInterpreterClearThenWrite(t *testing.T) {
	in, g := newTestInterpreter(t, 80)
	writeString(t, in, "A\x1b[2J\x1b[HB")

	if got, want := rowStrings(g), []string{"B"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("rows = %q, want %q", got, want)
	}
}

func TestInterpreterEraseLine(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{name: "to end", input: "hello\x1b[3D\x1b[K", want: []string{"he"}},
		{name: "explicit to end", input: "hello\x1b[3D\x1b[0K", want: []string{"he"}},
		{name: "to start", input: "hello\x1b[3D\x1b[1K", want: []string{"   lo"}},
		{name: "whole line", input: "hello\x1b[2K", want: []string{""}},
		{name: "unknown selector", input: "hello\x1b[3K", want: []string{"hello"}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			in, g := newTestInterpreter(t, 80)
			writeString(t, in, tc.input)

			if got := rowStrings(g); !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("rows = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestInterpreterAutoWrapMode(t *testing.T) {
	in, g := newTestInterpreter(t, 4)
	writeString(t, in, "\x1b[?7labcdef")

	if g.Wrap() {
		t.Fatal("Wrap() = true after ?7l")
	}

	if got, want := rowStrings(g), []string{"abcdef"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("rows = %q, want %q", got, want)
	}

	writeString(t, in, "\x1b[7h")

	if !g.Wrap() {
		t.Fatal("Wrap() = false after 7h")
	}
}

func TestInterpreterCursorRightAfterWrapReenabled(t *testing.T) {
	in, g := newTestInterpreter(t, 5)
	writeString(t, in, "\x1b[?7labcdefgh\x1b[?7h\x1b[C")

	if got, want := g.CursorPosition(), (grid.Position{Col: 5, Line: 0}); got != want {
		t.Fatalf("CursorPosition() = %+v, want %+v", got, want)
	}

	writeString(t, in, "x")

	if got, want := rowStrings(g), []string{"abcdefgh", "x"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("rows = %q, want %q", got, want)
	}
}

func TestInterpreterRecordsModes(t *testing.T) {
	in, _ := newTestInterpreter(t, 80)
	writeString(t, in, "\x1b[?1049h\x1b[?25l\x1b[?2004h")

	tests := []struct {
		key  ModeKey
		want bool
	}{
		{key: ModeKey{Private: '?', Number: 1049}, want: true},
		{key: ModeKey{Private: '?', Number: 25}, want: false},
		{key: ModeKey{Private: '?', Number: 2004}, want: true},
	}

	for _, tc := range tests {
		enabled, seen := in.Mode(tc.key)
		if !seen || enabled != tc.want {
			t.Fatalf("Mode(%+v) = (%v, %v), want (%v, true)", tc.key, enabled, seen, tc.want)
		}
	}

	if _, seen := in.Mode(ModeKey{Number: 4}); seen {
		t.Fatal("Mode(4) seen, want unseen")
	}
}

func TestInterpreterIgnoresUnknownSequences(t *testing.T) {
	in, g := newTestInterpreter(t, 80)
	writeString(t, in, "ab\x1b[2 q\x1b[>1c\x1b[5r\x1b7\x1bP1$qm\x1b\\c")

	if got, want := rowStrings(g), []string{"abc"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("rows = %q, want %q", got, want)
	}
}

func TestInterpreterTitle(t *testing.T) {
	var titles []string

	in, _ := newTestInterpreter(t, 80, WithTitleHandler(func(s string) { titles = append(titles, s) }))
	writeString(t, in, "\x1b]0;first\a\x1b]2;a;b\x1b\\\x1b]1;icon\a")

	if got, want := in.Title(), "a;b"; got != want {
		t.Fatalf("Title() = %q, want %q", got, want)
	}

	if want := []string{"first", "a;b"}; !reflect.DeepEqual(titles, want) {
		t.Fatalf("titles = %q, want %q", titles, want)
	}
}

func TestInterpreterBell(t *testing.T) {
	rings := 0

	in, _ := newTestInterpreter(t, 80, WithBellHandler(func() { rings++ }))
	writeString(t, in, "a\ab\a")

	if rings != 2 {
		t.Fatalf("rings = %d, want 2", rings)
	}
}

func TestInterpreterSGR(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  grid.Style
	}{
		{name: "bold red", input: "\x1b[1;31m", want: grid.Style{Fg: grid.Indexed(1), Attrs: grid.AttrBold}},
		{name: "bright background", input: "\x1b[102m", want: grid.Style{Bg: grid.Indexed(10)}},
		{name: "indexed", input: "\x1b[38;5;208m", want: grid.Style{Fg: grid.Indexed(208)}},
		{name: "truecolor", input: "\x1b[48;2;1;2;3m", want: grid.Style{Bg: grid.RGB(1, 2, 3)}},
		{name: "colon truecolor", input: "\x1b[38:2:10:20:30m", want: grid.Style{Fg: grid.RGB(10, 20, 30)}},
		{name: "reset", input: "\x1b[1;4;31m\x1b[0m", want: grid.Style{}},
		{name: "empty resets", input: "\x1b[7m\x1b[m", want: grid.Style{}},
		{name: "attribute off", input: "\x1b[1;3m\x1b[22m", want: grid.Style{Attrs: grid.AttrItalic}},
		{name: "default fg", input: "\x1b[31;42m\x1b[39m", want: grid.Style{Bg: grid.Indexed(2)}},
		{name: "truncated extended", input: "\x1b[1;38;5m", want: grid.Style{Attrs: grid.AttrBold}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			in, g := newTestInterpreter(t, 80)
			writeString(t, in, tc.input)

			if got := g.Style(); got != tc.want {
				t.Fatalf("Style() = %+v, want %+v", got, tc.want)
			}
		})
	}
}

func TestInterpreterPrintUsesStyle(t *testing.T) {
	in, g := newTestInterpreter(t, 80)
	writeString(t, in, "\x1b[32mx\x1b[0my")

	x, _ := g.CellAt(0, 0)
	y, _ := g.CellAt(1, 0)

	if x.Style.Fg != grid.Indexed(2) {
		t.Fatalf("x.Style.Fg = %+v, want indexed 2", x.Style.Fg)
	}

	if !y.Style.IsDefault() {
		t.Fatalf("y.Style = %+v, want default", y.Style)
	}
}

func TestInterpreterChunkedWrites(t *testing.T) {
	whole, wantGrid := newTestInterpreter(t, 20)
	writeString(t, whole, "ab\x1b[1;31mé\x1b[2Cz\r\n世界")

	chunked, gotGrid := newTestInterpreter(t, 20)
	for _, b := range []byte("ab\x1b[1;31mé\x1b[2Cz\r\n世界") {
		writeString(t, chunked, string([]byte{b}))
	}

	if !reflect.DeepEqual(gotGrid.Snapshot(0, 10), wantGrid.Snapshot(0, 10)) {
		t.Fatalf("chunked snapshot differs: %q vs %q", rowStrings(gotGrid), rowStrings(wantGrid))
	}
}

func TestInterpreterShellSession_Golden(t *testing.T) {
	in, g := newTestInterpreter(t, 40)
	writeString(t, in, "$ ls\r\nfoo  bar\r\nprogress 10%\rprogress 100%\r\nabc\x1b[2Dx\r\n$ exit")

	testutil.AssertGoldenScreen(t, rowStrings(g), "shell_session.golden")
}
