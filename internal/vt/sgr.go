package vt

import "github.com/vigil-term/vigil/internal/grid"

// applySGR returns style updated by a Select Graphic Rendition parameter list.
// Unknown parameters are skipped; a truncated extended color ends processing.
func applySGR(style grid.Style, params []int) grid.Style {
	if len(params) == 0 {
		return grid.Style{}
	}

	for i := 0; i < len(params); i++ {
		p := params[i]

		switch {
		case p == 0:
			style = grid.Style{}
		case p == 1:
			style.Attrs |= grid.AttrBold
		case p == 2:
			style.Attrs |= grid.AttrFaint
		case p == 3:
			style.Attrs |= grid.AttrItalic
		case p == 4:
			style.Attrs |= grid.AttrUnderline
		case p == 5 || p == 6:
			style.Attrs |= grid.AttrBlink
		case p == 7:
			style.Attrs |= grid.AttrReverse
		case p == 8:
			style.Attrs |= grid.AttrHidden
		case p == 9:
			style.Attrs |= grid.AttrStrikethrough
		case p == 22:
			style.Attrs &^= grid.AttrBold | grid.AttrFaint
		case p == 23:
			style.Attrs &^= grid.AttrItalic
		case p == 24:
			style.Attrs &^= grid.AttrUnderline
		case p == 25:
			style.Attrs &^= grid.AttrBlink
		case p == 27:
			style.Attrs &^= grid.AttrReverse
		case p == 28:
			style.Attrs &^= grid.AttrHidden
		case p == 29:
			style.Attrs &^= grid.AttrStrikethrough
		case p >= 30 && p <= 37:
			style.Fg = grid.Indexed(uint8(p - 30))
		case p == 38:
			color, consumed, ok := extendedColor(params[i+1:])
			if !ok {
				return style
			}

			style.Fg = color
			i += consumed
		case p == 39:
			style.Fg = grid.Color{}
		case p >= 40 && p <= 47:
			style.Bg = grid.Indexed(uint8(p - 40))
		case p == 48:
			color, consumed, ok := extendedColor(params[i+1:])
			if !ok {
				return style
			}

			style.Bg = color
			i += consumed
		case p == 49:
			style.Bg = grid.Color{}
		case p >= 90 && p <= 97:
			style.Fg = grid.Indexed(uint8(p - 90 + 8))
		case p >= 100 && p <= 107:
			style.Bg = grid.Indexed(uint8(p - 100 + 8))
		}
	}

	return style
}

// extendedColor decodes the arguments following 38 or 48: "5;n" or
// "2;r;g;b". It returns the number of parameters consumed.
func extendedColor(args []int) (grid.Color, int, bool) {
	if len(args) == 0 {
		return grid.Color{}, 0, false
	}

	switch args[0] {
	case 5:
		if len(args) < 2 {
			return grid.Color{}, 0, false
		}

		return grid.Indexed(clampByte(args[1])), 2, true
	case 2:
		if len(args) < 4 {
			return grid.Color{}, 0, false
		}

		return grid.RGB(clampByte(args[1]), clampByte(args[2]), clampByte(args[3])), 4, true
	default:
		return grid.Color{}, 0, false
	}
}

func clampByte(n int) uint8 {
	return uint8(min(max(n, 0), 255))
}
