package grid

import "strings"

// ColorKind discriminates how a Color value is interpreted.
type ColorKind uint8

const (
	// ColorDefault means the renderer's default color.
	ColorDefault ColorKind = iota
	// ColorIndexed is one of the 256 palette entries.
	ColorIndexed
	// ColorRGB is a 24-bit truecolor value.
	ColorRGB
)

// Color is a foreground or background color.
type Color struct {
	Kind    ColorKind
	Index   uint8
	R, G, B uint8
}

// Indexed returns a palette color.
func Indexed(n uint8) Color {
	return Color{Kind: ColorIndexed, Index: n}
}

// RGB returns a truecolor value.
func RGB(r, g, b uint8) Color {
	return Color{Kind: ColorRGB, R: r, G: g, B: b}
}

// IsDefault reports whether c is the default color.
func (c Color) IsDefault() bool {
	return c.Kind == ColorDefault
}

// Attr is a bitmask of text attributes.
type Attr uint16

// Text attributes.
const (
	AttrBold Attr = 1 << iota
	AttrFaint
	AttrItalic
	AttrUnderline
	AttrBlink
	AttrReverse
	AttrHidden
	AttrStrikethrough
)

// Has reports whether all bits of flag are set.
func (a Attr) Has(flag Attr) bool {
	return a&flag == flag
}

// Style is the rendering style of a cell. The zero value is the default style.
type Style struct {
	Fg    Color
	Bg    Color
	Attrs Attr
}

// IsDefault reports whether s carries no explicit styling.
func (s Style) IsDefault() bool {
	return s == Style{}
}

// Cell is one character position.
//
// Width is 1 for ordinary glyphs and 2 for wide glyphs. The cell to the right
// of a wide glyph is a continuation cell with Width 0 and Rune 0.
type Cell struct {
	Rune  rune
	Width int
	Style Style
}

// Blank returns an empty cell with the default style.
func Blank() Cell {
	return Cell{Rune: ' ', Width: 1}
}

// IsContinuation reports whether c is the trailing half of a wide glyph.
func (c Cell) IsContinuation() bool {
	return c.Width == 0
}

// Row is an ordered sequence of cells indexed by column.
type Row []Cell

// String renders the row as plain text, skipping continuation cells.
func (r Row) String() string {
	var b strings.Builder

	for _, c := range r {
		if c.IsContinuation() {
			continue
		}

		if c.Rune == 0 {
			b.WriteByte(' ')
			continue
		}

		b.WriteRune(c.Rune)
	}

	return b.String()
}

func (r Row) clone() Row {
	if r == nil {
		return Row{}
	}

	out := make(Row, len(r))
	copy(out, r)

	return out
}
