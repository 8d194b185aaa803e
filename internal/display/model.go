package display

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/vigil-term/vigil/internal/ansi"
	"github.com/vigil-term/vigil/internal/grid"
	"github.com/vigil-term/vigil/internal/vt"
)

const statusBarHeight = 1

// Terminal is the view of a running terminal the display needs.
type Terminal interface {
	Snapshot(top, height int) []grid.Row
	CursorPosition() grid.Position
	Lines() int
	Title() string
	Mode(key vt.ModeKey) (enabled, seen bool)
	Send(p []byte) error
	Resize(cols, rows int) error
	Updates() <-chan struct{}
	Done() <-chan struct{}
}

type updateMsg struct{}

type exitMsg struct{}

// Options configures a Model.
type Options struct {
	Keys      KeyMap
	Renderer  *Renderer
	Logger    *slog.Logger
	Program   string
	StatusBar bool
}

// Model is the bubbletea model that shows a Terminal full screen.
type Model struct {
	term     Terminal
	keys     KeyMap
	renderer *Renderer
	logger   *slog.Logger
	program  string
	status   bool

	width  int
	height int
	scroll int
	title  string

	detached bool
	exited   bool
}

// NewModel creates a Model for term.
func NewModel(term Terminal, opts Options) *Model {
	keys := opts.Keys
	if len(keys.Detach.Keys()) == 0 {
		keys = DefaultKeyMap()
	}

	renderer := opts.Renderer
	if renderer == nil {
		renderer = NewRenderer(nil)
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Model{
		term:     term,
		keys:     keys,
		renderer: renderer,
		logger:   logger,
		program:  opts.Program,
		status:   opts.StatusBar,
	}
}

// Detached reports whether the user left with the detach key.
func (m *Model) Detached() bool {
	return m.detached
}

// Exited reports whether the terminal ended while the model was running.
func (m *Model) Exited() bool {
	return m.exited
}

// Init starts listening for terminal updates.
func (m *Model) Init() tea.Cmd {
	return m.waitForUpdate()
}

// Update handles key presses, resizes, and terminal notifications.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height

		if err := m.term.Resize(max(m.width, 1), m.viewportHeight()); err != nil {
			m.logger.Debug("Resize failed", slog.String("component", "display"), slog.String("error", err.Error()))
		}

		return m, nil
	case tea.KeyMsg:
		return m, m.handleKey(msg)
	case updateMsg:
		cmds := []tea.Cmd{m.waitForUpdate()}

		if title := m.term.Title(); title != m.title {
			m.title = title
			cmds = append(cmds, tea.SetWindowTitle(title))
		}

		return m, tea.Batch(cmds...)
	case exitMsg:
		m.exited = true
		return m, tea.Quit
	}

	return m, nil
}

func (m *Model) handleKey(msg tea.KeyMsg) tea.Cmd {
	switch {
	case key.Matches(msg, m.keys.Detach):
		m.detached = true
		return tea.Quit
	case key.Matches(msg, m.keys.ScrollUp):
		maxScroll := max(m.term.Lines()-m.viewportHeight(), 0)
		m.scroll = min(m.scroll+max(m.viewportHeight()/2, 1), maxScroll)

		return nil
	case key.Matches(msg, m.keys.ScrollDown):
		m.scroll = max(m.scroll-max(m.viewportHeight()/2, 1), 0)
		return nil
	}

	m.scroll = 0

	data := EncodeKey(msg, m.encodeOptions())
	if len(data) == 0 {
		return nil
	}

	if err := m.term.Send(data); err != nil {
		m.logger.Debug("Key dropped", slog.String("component", "display"), slog.String("error", err.Error()))
	}

	return nil
}

func (m *Model) encodeOptions() EncodeOptions {
	appCursor, _ := m.term.Mode(vt.ModeKey{Private: '?', Number: ansi.ModeCursorKeys})
	paste, _ := m.term.Mode(vt.ModeKey{Private: '?', Number: ansi.ModeBracketedPaste})

	return EncodeOptions{ApplicationCursor: appCursor, BracketedPaste: paste}
}

func (m *Model) waitForUpdate() tea.Cmd {
	updates, done := m.term.Updates(), m.term.Done()

	return func() tea.Msg {
		select {
		case <-updates:
			return updateMsg{}
		case <-done:
			return exitMsg{}
		}
	}
}

func (m *Model) viewportHeight() int {
	h := m.height
	if m.status {
		h -= statusBarHeight
	}

	return max(h, 1)
}

// View renders the visible window of the grid and the status bar.
func (m *Model) View() string {
	if m.width <= 0 || m.height <= 0 {
		return ""
	}

	rows := m.viewportHeight()
	top := max(m.term.Lines()-rows-m.scroll, 0)
	snapshot := m.term.Snapshot(top, rows)

	cursor := m.term.CursorPosition()
	visible, seen := m.term.Mode(vt.ModeKey{Private: '?', Number: ansi.ModeShowCursor})
	showCursor := (visible || !seen) && m.scroll == 0

	lines := make([]string, rows)
	for i := range lines {
		var row grid.Row
		if i < len(snapshot) {
			row = snapshot[i]
		}

		cursorCol := -1
		if showCursor && cursor.Line == top+i {
			cursorCol = cursor.Col
		}

		lines[i] = m.renderer.RenderRow(row, m.width, cursorCol)
	}

	view := strings.Join(lines, "\n")
	if m.status {
		view += "\n" + m.statusBar()
	}

	return view
}

func (m *Model) statusBar() string {
	lg := m.renderer.Lipgloss()
	bar := lg.NewStyle().
		Background(lipgloss.Color("236")).
		Foreground(lipgloss.Color("252"))
	accent := bar.Bold(true)
	muted := bar.Foreground(lipgloss.Color("244"))
	sep := muted.Render(" │ ")

	label := m.title
	if label == "" {
		label = m.program
	}

	parts := []string{accent.Render(" vigil")}
	if label != "" {
		parts = append(parts, bar.Render(label))
	}

	parts = append(parts, bar.Render(fmt.Sprintf("%dx%d", m.width, m.viewportHeight())))

	if m.scroll > 0 {
		parts = append(parts, lg.NewStyle().Background(lipgloss.Color("236")).Foreground(lipgloss.Color("214")).
			Render(fmt.Sprintf("scroll +%d", m.scroll)))
	}

	help := m.keys.Detach.Help()
	parts = append(parts, muted.Render(help.Key+" "+help.Desc))

	line := strings.Join(parts, sep)
	if ansi.Width(line) > m.width {
		return ansi.Truncate(line, m.width, "")
	}

	return line + bar.Render(strings.Repeat(" ", m.width-ansi.Width(line)))
}

// Result describes how a display session ended.
type Result struct {
	Detached bool
	Exited   bool
}

// Run shows term full screen until it ends or the user detaches.
func Run(ctx context.Context, term Terminal, opts Options, in io.Reader, out io.Writer) (Result, error) {
	model := NewModel(term, opts)

	programOpts := []tea.ProgramOption{
		tea.WithAltScreen(),
		tea.WithContext(ctx),
	}

	if in != nil {
		programOpts = append(programOpts, tea.WithInput(in))
	}

	if out != nil {
		programOpts = append(programOpts, tea.WithOutput(out))
	}

	if _, err := tea.NewProgram(model, programOpts...).Run(); err != nil {
		return Result{}, fmt.Errorf("run display: %w", err)
	}

	return Result{Detached: model.Detached(), Exited: model.Exited()}, nil
}
