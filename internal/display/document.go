package display

import (
	"fmt"
	"strings"

	"github.com/gdamore/tcell/v2"

	"github.com/vigil-term/vigil/internal/grid"
)

// Document is a serializable view of a grid, used by headless dumps.
type Document struct {
	Session  string        `json:"session,omitempty" yaml:"session,omitempty"`
	Title    string        `json:"title,omitempty" yaml:"title,omitempty"`
	Columns  int           `json:"columns" yaml:"columns"`
	Lines    int           `json:"lines" yaml:"lines"`
	Cursor   grid.Position `json:"cursor" yaml:"cursor"`
	ExitCode *int          `json:"exitCode,omitempty" yaml:"exitCode,omitempty"`
	Rows     []DocumentRow `json:"rows" yaml:"rows"`
}

// DocumentRow is one grid row as plain text plus its styled spans.
type DocumentRow struct {
	Text  string `json:"text" yaml:"text"`
	Spans []Span `json:"spans,omitempty" yaml:"spans,omitempty"`
}

// Span is a run of cells that share a non-default style.
type Span struct {
	Col   int      `json:"col" yaml:"col"`
	Text  string   `json:"text" yaml:"text"`
	Fg    string   `json:"fg,omitempty" yaml:"fg,omitempty"`
	Bg    string   `json:"bg,omitempty" yaml:"bg,omitempty"`
	Attrs []string `json:"attrs,omitempty" yaml:"attrs,omitempty"`
}

var attrNames = []struct {
	flag grid.Attr
	name string
}{
	{grid.AttrBold, "bold"},
	{grid.AttrFaint, "faint"},
	{grid.AttrItalic, "italic"},
	{grid.AttrUnderline, "underline"},
	{grid.AttrBlink, "blink"},
	{grid.AttrReverse, "reverse"},
	{grid.AttrHidden, "hidden"},
	{grid.AttrStrikethrough, "strikethrough"},
}

// NewDocument builds a Document from rows. Row text is right-trimmed.
func NewDocument(rows []grid.Row, columns int, cursor grid.Position) Document {
	doc := Document{
		Columns: columns,
		Lines:   len(rows),
		Cursor:  cursor,
		Rows:    make([]DocumentRow, 0, len(rows)),
	}

	for _, row := range rows {
		doc.Rows = append(doc.Rows, documentRow(row))
	}

	return doc
}

func documentRow(row grid.Row) DocumentRow {
	out := DocumentRow{Text: strings.TrimRight(row.String(), " ")}

	for _, rn := range splitRuns(row, len(row), -1) {
		if rn.style.IsDefault() {
			continue
		}

		out.Spans = append(out.Spans, Span{
			Col:   rn.col,
			Text:  rn.text,
			Fg:    Hex(rn.style.Fg),
			Bg:    Hex(rn.style.Bg),
			Attrs: attrList(rn.style.Attrs),
		})
	}

	return out
}

func attrList(a grid.Attr) []string {
	var names []string

	for _, n := range attrNames {
		if a.Has(n.flag) {
			names = append(names, n.name)
		}
	}

	return names
}

// Hex resolves c to a #rrggbb string using the xterm 256-color palette.
// The default color resolves to the empty string.
func Hex(c grid.Color) string {
	switch c.Kind {
	case grid.ColorIndexed:
		v := tcell.PaletteColor(int(c.Index)).Hex()
		if v < 0 {
			return ""
		}

		return fmt.Sprintf("#%06x", v)
	case grid.ColorRGB:
		return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
	default:
		return ""
	}
}
