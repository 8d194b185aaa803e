// Package display presents a terminal grid to a user and turns key presses
// back into the bytes a child program expects.
package display

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/vigil-term/vigil/internal/ansi"
	"github.com/vigil-term/vigil/internal/grid"
)

// run is a span of adjacent cells sharing one style.
type run struct {
	col    int
	style  grid.Style
	text   string
	cursor bool
}

// splitRuns bundles the first width columns of row into style runs. Missing
// trailing cells render as blanks. The cell at cursorCol, if any, gets a run
// of its own.
func splitRuns(row grid.Row, width, cursorCol int) []run {
	var (
		runs []run
		cur  strings.Builder
		open bool
		last run
	)

	flush := func() {
		if !open {
			return
		}

		last.text = cur.String()
		runs = append(runs, last)
		cur.Reset()

		open = false
	}

	for col := 0; col < width; {
		cell := grid.Blank()
		if col < len(row) {
			cell = row[col]
		}

		if cell.IsContinuation() {
			col++
			continue
		}

		w := max(cell.Width, 1)
		text := cellText(cell)

		if col+w > width {
			text = strings.Repeat(" ", width-col)
		}

		style := cell.Style

		isCursor := col == cursorCol
		if isCursor || !open || style != last.style || last.cursor {
			flush()

			last = run{col: col, style: style, cursor: isCursor}
			open = true
		}

		cur.WriteString(text)
		col += w
	}

	flush()

	return runs
}

func cellText(c grid.Cell) string {
	if c.Rune == 0 {
		return " "
	}

	return string(c.Rune)
}

// Renderer converts grid rows into lipgloss-styled text.
type Renderer struct {
	lg     *lipgloss.Renderer
	styles map[grid.Style]lipgloss.Style
}

// NewRenderer returns a Renderer that targets lg's color profile. A nil lg
// uses the lipgloss default renderer.
func NewRenderer(lg *lipgloss.Renderer) *Renderer {
	if lg == nil {
		lg = lipgloss.DefaultRenderer()
	}

	return &Renderer{lg: lg, styles: make(map[grid.Style]lipgloss.Style)}
}

// Lipgloss returns the underlying lipgloss renderer.
func (r *Renderer) Lipgloss() *lipgloss.Renderer {
	return r.lg
}

// RenderRow renders exactly width columns of row. A cursorCol outside
// [0, width) draws no cursor.
func (r *Renderer) RenderRow(row grid.Row, width, cursorCol int) string {
	var b strings.Builder

	for _, rn := range splitRuns(row, width, cursorCol) {
		style := rn.style
		if rn.cursor {
			style.Attrs ^= grid.AttrReverse
		}

		if style.Attrs.Has(grid.AttrHidden) {
			rn.text = strings.Repeat(" ", ansi.Width(rn.text))
			style.Attrs &^= grid.AttrHidden
		}

		if style.IsDefault() {
			b.WriteString(rn.text)
			continue
		}

		b.WriteString(r.style(style).Render(rn.text))
	}

	return b.String()
}

func (r *Renderer) style(s grid.Style) lipgloss.Style {
	if st, ok := r.styles[s]; ok {
		return st
	}

	st := r.lg.NewStyle()

	if !s.Fg.IsDefault() {
		st = st.Foreground(lipglossColor(s.Fg))
	}

	if !s.Bg.IsDefault() {
		st = st.Background(lipglossColor(s.Bg))
	}

	attrs := []struct {
		flag  grid.Attr
		apply func(lipgloss.Style, bool) lipgloss.Style
	}{
		{grid.AttrBold, lipgloss.Style.Bold},
		{grid.AttrFaint, lipgloss.Style.Faint},
		{grid.AttrItalic, lipgloss.Style.Italic},
		{grid.AttrUnderline, lipgloss.Style.Underline},
		{grid.AttrBlink, lipgloss.Style.Blink},
		{grid.AttrReverse, lipgloss.Style.Reverse},
		{grid.AttrStrikethrough, lipgloss.Style.Strikethrough},
	}

	for _, a := range attrs {
		if s.Attrs.Has(a.flag) {
			st = a.apply(st, true)
		}
	}

	r.styles[s] = st

	return st
}

func lipglossColor(c grid.Color) lipgloss.TerminalColor {
	switch c.Kind {
	case grid.ColorIndexed:
		return lipgloss.Color(strconv.Itoa(int(c.Index)))
	case grid.ColorRGB:
		return lipgloss.Color(fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B))
	default:
		return lipgloss.NoColor{}
	}
}
