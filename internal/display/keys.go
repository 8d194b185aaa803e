package display

import (
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/vigil-term/vigil/internal/ansi"
)

// KeyMap holds the bindings the display handles itself instead of
// forwarding to the child.
type KeyMap struct {
	Detach     key.Binding
	ScrollUp   key.Binding
	ScrollDown key.Binding
}

// DefaultKeyMap returns the default bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Detach: key.NewBinding(
			key.WithKeys("ctrl+\\"),
			key.WithHelp("ctrl+\\", "detach"),
		),
		ScrollUp: key.NewBinding(
			key.WithKeys("shift+up", "ctrl+pgup"),
			key.WithHelp("shift+↑", "scroll up"),
		),
		ScrollDown: key.NewBinding(
			key.WithKeys("shift+down", "ctrl+pgdown"),
			key.WithHelp("shift+↓", "scroll down"),
		),
	}
}

// EncodeOptions reflects the child's current input modes.
type EncodeOptions struct {
	// ApplicationCursor selects SS3 arrow keys (DECCKM).
	ApplicationCursor bool
	// BracketedPaste wraps pasted text in paste delimiters.
	BracketedPaste bool
}

var csiKeys = map[tea.KeyType]string{
	tea.KeyShiftTab:       ansi.CSI("", 'Z'),
	tea.KeyPgUp:           ansi.CSI("5", '~'),
	tea.KeyPgDown:         ansi.CSI("6", '~'),
	tea.KeyCtrlPgUp:       ansi.CSI("5;5", '~'),
	tea.KeyCtrlPgDown:     ansi.CSI("6;5", '~'),
	tea.KeyDelete:         ansi.CSI("3", '~'),
	tea.KeyInsert:         ansi.CSI("2", '~'),
	tea.KeyCtrlUp:         ansi.CSI("1;5", 'A'),
	tea.KeyCtrlDown:       ansi.CSI("1;5", 'B'),
	tea.KeyCtrlRight:      ansi.CSI("1;5", 'C'),
	tea.KeyCtrlLeft:       ansi.CSI("1;5", 'D'),
	tea.KeyCtrlHome:       ansi.CSI("1;5", 'H'),
	tea.KeyCtrlEnd:        ansi.CSI("1;5", 'F'),
	tea.KeyShiftUp:        ansi.CSI("1;2", 'A'),
	tea.KeyShiftDown:      ansi.CSI("1;2", 'B'),
	tea.KeyShiftRight:     ansi.CSI("1;2", 'C'),
	tea.KeyShiftLeft:      ansi.CSI("1;2", 'D'),
	tea.KeyShiftHome:      ansi.CSI("1;2", 'H'),
	tea.KeyShiftEnd:       ansi.CSI("1;2", 'F'),
	tea.KeyCtrlShiftUp:    ansi.CSI("1;6", 'A'),
	tea.KeyCtrlShiftDown:  ansi.CSI("1;6", 'B'),
	tea.KeyCtrlShiftRight: ansi.CSI("1;6", 'C'),
	tea.KeyCtrlShiftLeft:  ansi.CSI("1;6", 'D'),
	tea.KeyCtrlShiftHome:  ansi.CSI("1;6", 'H'),
	tea.KeyCtrlShiftEnd:   ansi.CSI("1;6", 'F'),
	tea.KeyF1:             ansi.SS3('P'),
	tea.KeyF2:             ansi.SS3('Q'),
	tea.KeyF3:             ansi.SS3('R'),
	tea.KeyF4:             ansi.SS3('S'),
	tea.KeyF5:             ansi.CSI("15", '~'),
	tea.KeyF6:             ansi.CSI("17", '~'),
	tea.KeyF7:             ansi.CSI("18", '~'),
	tea.KeyF8:             ansi.CSI("19", '~'),
	tea.KeyF9:             ansi.CSI("20", '~'),
	tea.KeyF10:            ansi.CSI("21", '~'),
	tea.KeyF11:            ansi.CSI("23", '~'),
	tea.KeyF12:            ansi.CSI("24", '~'),
	tea.KeyF13:            ansi.CSI("25", '~'),
	tea.KeyF14:            ansi.CSI("26", '~'),
	tea.KeyF15:            ansi.CSI("28", '~'),
	tea.KeyF16:            ansi.CSI("29", '~'),
	tea.KeyF17:            ansi.CSI("31", '~'),
	tea.KeyF18:            ansi.CSI("32", '~'),
	tea.KeyF19:            ansi.CSI("33", '~'),
	tea.KeyF20:            ansi.CSI("34", '~'),
}

// cursorFinals are the keys whose encoding depends on DECCKM.
var cursorFinals = map[tea.KeyType]byte{
	tea.KeyUp:    'A',
	tea.KeyDown:  'B',
	tea.KeyRight: 'C',
	tea.KeyLeft:  'D',
	tea.KeyHome:  'H',
	tea.KeyEnd:   'F',
}

// EncodeKey converts a key press into the bytes a VT/xterm terminal sends
// for it. Unknown keys encode to nil.
func EncodeKey(msg tea.KeyMsg, opts EncodeOptions) []byte {
	var seq string

	switch {
	case msg.Type == tea.KeyRunes:
		seq = string(msg.Runes)
		if msg.Paste {
			if opts.BracketedPaste {
				seq = ansi.PasteStart + seq + ansi.PasteEnd
			}

			return []byte(seq)
		}
	case msg.Type == tea.KeySpace:
		seq = " "
	case msg.Type >= 0:
		// C0 controls, Enter, Tab, Backspace and Escape carry their byte
		// value as the key type.
		seq = string(rune(msg.Type))
	default:
		if final, ok := cursorFinals[msg.Type]; ok {
			if opts.ApplicationCursor {
				seq = ansi.SS3(final)
			} else {
				seq = ansi.CSI("", final)
			}

			break
		}

		s, ok := csiKeys[msg.Type]
		if !ok {
			return nil
		}

		seq = s
	}

	if msg.Alt {
		seq = "\x1b" + seq
	}

	return []byte(seq)
}
