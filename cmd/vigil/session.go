package main

import (
	"errors"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/vigil-term/vigil/internal/config"
	clierrors "github.com/vigil-term/vigil/internal/errors"
	"github.com/vigil-term/vigil/internal/pty"
	"github.com/vigil-term/vigil/internal/vt"
)

// sessionFlags are the flags shared by commands that start a terminal.
type sessionFlags struct {
	cols          int
	rows          int
	scrollback    int
	term          string
	noWrap        bool
	legacyNewline bool
	noHistory     bool
}

func (f *sessionFlags) register(fs *pflag.FlagSet) {
	fs.IntVar(&f.cols, "cols", 0, "Terminal width in columns (default: host width or terminal.columns)")
	fs.IntVar(&f.rows, "rows", 0, "Terminal height in rows (default: host height or terminal.rows)")
	fs.IntVar(&f.scrollback, "scrollback", 0, "Grid lines to retain, 0 for unbounded (default: terminal.scrollback)")
	fs.StringVar(&f.term, "term", "", "TERM advertised to the program (default: terminal.term)")
	fs.BoolVar(&f.noWrap, "no-wrap", false, "Disable automatic line wrap at the right margin")
	fs.BoolVar(&f.legacyNewline, "legacy-newline", false, "CR moves down a line and LF moves right")
	fs.BoolVar(&f.noHistory, "no-history", false, "Do not record a transcript for this session")
}

// sessionSpec is the fully resolved description of a session to start.
type sessionSpec struct {
	Program    string
	Args       []string
	Term       string
	Columns    int
	Rows       int
	Scrollback int
	Wrap       bool
	Newline    vt.NewlineMode
	History    bool
	HistoryDir string
	HistLines  int

	// FollowHost is set when the size came from the host terminal and
	// should track it.
	FollowHost bool
}

// resolveSession merges flags over config. hostCols and hostRows are used
// when neither sets a size; zero leaves the pty default.
func resolveSession(cmd *cobra.Command, f *sessionFlags, cfg *config.Config, args []string, hostCols, hostRows int) sessionSpec {
	spec := sessionSpec{
		Program:    cfg.ShellProgram(),
		Args:       cfg.ShellArgs(),
		Term:       cfg.Term(),
		Columns:    firstPositive(f.cols, cfg.Columns(), hostCols),
		Rows:       firstPositive(f.rows, cfg.Rows(), hostRows),
		Scrollback: cfg.Scrollback(),
		Wrap:       cfg.Wrap() && !f.noWrap,
		History:    cfg.HistoryEnabled() && !f.noHistory,
		HistoryDir: cfg.HistoryDir(),
		HistLines:  cfg.HistoryLines(),
	}

	spec.FollowHost = f.cols <= 0 && f.rows <= 0 && cfg.Columns() == 0 && cfg.Rows() == 0

	if len(args) > 0 {
		spec.Program = args[0]
		spec.Args = args[1:]
	}

	if f.term != "" {
		spec.Term = f.term
	}

	if flagChanged(cmd, "scrollback") {
		spec.Scrollback = max(f.scrollback, 0)
	}

	if f.legacyNewline || cfg.LegacyNewline() {
		spec.Newline = vt.NewlineLegacy
	}

	return spec
}

// displayName is the program name shown in status bars and history.
func (s sessionSpec) displayName() string {
	if s.Program != "" {
		return s.Program
	}

	if shell, err := pty.ResolveProgram(""); err == nil {
		return shell
	}

	return "shell"
}

func flagChanged(cmd *cobra.Command, name string) bool {
	if cmd == nil {
		return false
	}

	f := cmd.Flags().Lookup(name)

	return f != nil && f.Changed
}

func firstPositive(values ...int) int {
	for _, v := range values {
		if v > 0 {
			return v
		}
	}

	return 0
}

// startError maps failures from starting a session to CLI errors.
func startError(program string, err error) error {
	switch {
	case errors.Is(err, pty.ErrShellNotFound):
		return clierrors.ShellNotFound(err)
	case errors.Is(err, pty.ErrProgramNotFound):
		return clierrors.ProgramNotFound(program, err)
	default:
		return clierrors.SpawnFailed(err)
	}
}
