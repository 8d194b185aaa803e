package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/vigil-term/vigil/internal/ansi"
	"github.com/vigil-term/vigil/internal/config"
	"github.com/vigil-term/vigil/internal/display"
	clierrors "github.com/vigil-term/vigil/internal/errors"
	"github.com/vigil-term/vigil/internal/grid"
	"github.com/vigil-term/vigil/internal/output"
	"github.com/vigil-term/vigil/internal/prompt"
	"github.com/vigil-term/vigil/internal/transcript"
	"github.com/vigil-term/vigil/internal/vt"
)

// followInterval is how often 'history view --follow' polls the live file.
const followInterval = 500 * time.Millisecond

func newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect recorded session transcripts",
		Long: `Inspect the transcripts vigil records for each session.

Transcripts hold the program's output and your keystrokes, and are stored
under history.dir (see 'vigil paths').`,
		Example: `  vigil history list
  vigil history view 5f0c6c1e-5b1d-4b8e-9a55-0d3c8e1f2a47
  vigil history prune --older-than 168h`,
		Args: noArgs,
	}

	cmd.AddCommand(newHistoryListCmd())
	cmd.AddCommand(newHistoryViewCmd())
	cmd.AddCommand(newHistoryPruneCmd())

	return cmd
}

func newHistoryListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List recorded sessions",
		Long: `List recorded sessions, newest first.

Sessions still running are shown as open.`,
		Example: `  vigil history list
  vigil history list --json`,
		Args: noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := output.FromContext(cmd.Context())
			dir := config.Load().HistoryDir()

			sessions, err := transcript.ListSessions(dir)
			if err != nil {
				return clierrors.Wrap(clierrors.ExitGeneral, "Failed to list transcript sessions", err)
			}

			if out.JSON {
				if sessions == nil {
					sessions = []transcript.Session{}
				}

				return out.PrintJSON(sessions)
			}

			if len(sessions) == 0 {
				out.Muted("No transcript sessions found.")
				return nil
			}

			for _, s := range sessions {
				closed := "open"
				if s.ClosedAt != nil {
					closed = s.ClosedAt.Format(time.RFC3339)
				}

				exit := "-"
				if s.ExitCode != nil {
					exit = fmt.Sprintf("%d", *s.ExitCode)
				}

				out.Print("%s  %-12s  started=%s  closed=%s  exit=%s\n",
					s.SessionID, s.Program, s.StartedAt.Format(time.RFC3339), closed, exit)
			}

			return nil
		},
	}
}

type historyViewOptions struct {
	search string
	follow bool
	raw    bool
	render bool
	format string
}

func newHistoryViewCmd() *cobra.Command {
	var opts historyViewOptions

	cmd := &cobra.Command{
		Use:   "view <session-id>",
		Short: "Show the output of a recorded session",
		Long: `Show the output a program wrote during a recorded session.

By default escape sequences are removed and the output is printed line by line.
--raw writes the bytes exactly as recorded. --render replays them through the
terminal interpreter and prints the final screen, like 'vigil dump'.`,
		Example: `  vigil history view 5f0c6c1e-5b1d-4b8e-9a55-0d3c8e1f2a47
  vigil history view <id> --search error
  vigil history view <id> --follow
  vigil history view <id> --render --format json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := output.FromContext(cmd.Context())
			cfg := config.Load()
			sessionID := args[0]

			if opts.render && (opts.follow || opts.raw || opts.search != "") {
				return clierrors.New(clierrors.ExitUsage, "--render cannot be combined with --follow, --raw, or --search").
					WithHint("Use --render on its own to print the final screen")
			}

			session, err := transcript.ReadSession(cfg.HistoryDir(), sessionID)
			if errors.Is(err, transcript.ErrUnsupportedFormat) {
				return clierrors.UnsupportedTranscript(sessionID, session.Format, err)
			}
			if err != nil {
				return historyError(sessionID, err)
			}

			if opts.render {
				format, err := dumpFormat(out, opts.format)
				if err != nil {
					return err
				}

				return renderSession(out, cfg, session, format)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return viewSession(ctx, out, cfg.HistoryDir(), session, opts)
		},
	}

	cmd.Flags().StringVar(&opts.search, "search", "", "Only show lines containing this text (case-insensitive)")
	cmd.Flags().BoolVar(&opts.follow, "follow", false, "Keep printing output while the session runs")
	cmd.Flags().BoolVar(&opts.raw, "raw", false, "Write output bytes as recorded, escape sequences included")
	cmd.Flags().BoolVar(&opts.render, "render", false, "Replay the output and print the final screen")
	cmd.Flags().StringVar(&opts.format, "format", output.FormatText, "Format for --render: text, yaml, or json")

	return cmd
}

func historyError(sessionID string, err error) error {
	if errors.Is(err, transcript.ErrSessionNotFound) {
		return clierrors.SessionNotFound(sessionID)
	}

	return clierrors.Wrap(clierrors.ExitGeneral, "Failed to read transcript", err)
}

// sessionEvents reads every recorded event. Open sessions are read from the
// live file since the compressed stream is not finished yet.
func sessionEvents(dir string, session transcript.Session) ([]transcript.Event, int64, error) {
	if session.ClosedAt != nil {
		events, err := transcript.ReadEvents(dir, session.SessionID)
		return events, 0, err
	}

	return transcript.ReadLiveEventsFrom(dir, session.SessionID, 0)
}

func renderSession(out *output.Writer, cfg *config.Config, session transcript.Session, format string) error {
	events, _, err := sessionEvents(cfg.HistoryDir(), session)
	if err != nil {
		return historyError(session.SessionID, err)
	}

	data, err := transcript.StreamBytes(events, transcript.StreamOutput)
	if err != nil {
		return clierrors.Wrap(clierrors.ExitGeneral, "Failed to decode transcript", err)
	}

	doc := replay(data, session.Columns, cfg.LegacyNewline())
	doc.Session = session.SessionID
	doc.ExitCode = session.ExitCode

	return printDocument(out, format, doc)
}

// replay interprets recorded output on a fresh grid of the given width.
func replay(data []byte, columns int, legacyNewline bool) display.Document {
	if columns <= 0 {
		columns = dumpColumns
	}

	g := grid.New(grid.Options{Columns: columns})

	mode := vt.NewlineStandard
	if legacyNewline {
		mode = vt.NewlineLegacy
	}

	in := vt.New(g, vt.WithNewlineMode(mode))
	_, _ = in.Write(data)

	doc := display.NewDocument(g.Snapshot(0, g.Lines()), g.Columns(), g.CursorPosition())
	doc.Title = in.Title()

	return doc
}

func viewSession(ctx context.Context, out *output.Writer, dir string, session transcript.Session, opts historyViewOptions) error {
	events, offset, err := sessionEvents(dir, session)
	if err != nil {
		return historyError(session.SessionID, err)
	}

	lines := newLineFilter(out, opts.search, opts.raw)

	if err := lines.writeEvents(events); err != nil {
		return err
	}

	if !opts.follow || session.ClosedAt != nil {
		lines.flush()
		return nil
	}

	ticker := time.NewTicker(followInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			lines.flush()
			return nil
		case <-ticker.C:
		}

		var more []transcript.Event

		more, offset, err = transcript.ReadLiveEventsFrom(dir, session.SessionID, offset)
		if err != nil {
			return historyError(session.SessionID, err)
		}

		if err := lines.writeEvents(more); err != nil {
			return err
		}

		if len(more) > 0 {
			continue
		}

		current, err := transcript.ReadSession(dir, session.SessionID)
		if err != nil {
			return historyError(session.SessionID, err)
		}

		if current.ClosedAt != nil {
			lines.flush()
			return nil
		}
	}
}

// lineFilter turns output chunks into whole lines, strips escape sequences,
// and applies --search. In raw mode without a search, bytes pass through.
type lineFilter struct {
	out     *output.Writer
	search  string
	raw     bool
	partial strings.Builder
}

func newLineFilter(out *output.Writer, search string, raw bool) *lineFilter {
	return &lineFilter{out: out, search: strings.ToLower(search), raw: raw}
}

func (f *lineFilter) writeEvents(events []transcript.Event) error {
	for i := range events {
		if events[i].Stream != transcript.StreamOutput {
			continue
		}

		data, err := events[i].Raw()
		if err != nil {
			return clierrors.Wrap(clierrors.ExitGeneral, "Failed to decode transcript", err)
		}

		f.write(data)
	}

	return nil
}

func (f *lineFilter) write(data []byte) {
	if f.raw && f.search == "" {
		_, _ = f.out.Write(data)
		return
	}

	f.partial.Write(data)

	text := f.partial.String()

	idx := strings.LastIndexByte(text, '\n')
	if idx < 0 {
		return
	}

	f.partial.Reset()
	f.partial.WriteString(text[idx+1:])

	for _, line := range strings.Split(text[:idx], "\n") {
		f.emit(line)
	}
}

func (f *lineFilter) flush() {
	if f.partial.Len() == 0 {
		return
	}

	line := f.partial.String()
	f.partial.Reset()
	f.emit(line)
}

func (f *lineFilter) emit(line string) {
	line = strings.TrimRight(line, "\r")

	plain := ansi.Strip(line)
	if f.search != "" && !strings.Contains(strings.ToLower(plain), f.search) {
		return
	}

	if f.raw {
		f.out.Print("%s\n", line)
		return
	}

	f.out.Print("%s\n", plain)
}

func newHistoryPruneCmd() *cobra.Command {
	var (
		olderThan string
		force     bool
	)

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete recorded sessions older than a duration",
		Long: `Delete recorded sessions that ended before the retention window.

The window defaults to history.retention (30 days). You are asked to confirm
unless --force is given.`,
		Example: `  vigil history prune
  vigil history prune --older-than 72h
  vigil history prune --older-than 0s --force`,
		Args: noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := output.FromContext(cmd.Context())
			cfg := config.Load()

			window := cfg.HistoryRetention()
			if olderThan != "" {
				d, err := time.ParseDuration(olderThan)
				if err != nil || d < 0 {
					return clierrors.InvalidDuration("--older-than", olderThan, err)
				}

				window = d
			}

			cutoff := time.Now().Add(-window)

			stale, err := staleSessions(cfg.HistoryDir(), cutoff)
			if err != nil {
				return clierrors.Wrap(clierrors.ExitGeneral, "Failed to list transcript sessions", err)
			}

			if stale == 0 {
				out.Info("No transcript sessions older than %s", window)
				return nil
			}

			if !force {
				prompter := prompt.New(out)
				if !prompter.CanPrompt() {
					return clierrors.CannotPrompt("--force")
				}

				confirmed, promptErr := prompter.Confirm(
					fmt.Sprintf("Delete %d transcript session(s) older than %s?", stale, window),
					false,
				)
				if promptErr != nil && !prompt.IsCanceled(promptErr) {
					return clierrors.Wrap(clierrors.ExitGeneral, "Failed to read confirmation", promptErr)
				}

				if !confirmed {
					out.Info("Prune canceled")
					return nil
				}
			}

			removed, err := transcript.PruneOlderThan(cfg.HistoryDir(), cutoff)
			if err != nil {
				return clierrors.Wrap(clierrors.ExitGeneral, "Failed to prune transcripts", err)
			}

			out.Success("Removed %d transcript session(s)", removed)

			return nil
		},
	}

	cmd.Flags().StringVar(&olderThan, "older-than", "", "Override the retention window (example: 168h)")
	cmd.Flags().BoolVarP(&force, "force", "f", false, "Skip confirmation prompt")

	return cmd
}

// staleSessions counts the sessions PruneOlderThan would remove.
func staleSessions(dir string, cutoff time.Time) (int, error) {
	sessions, err := transcript.ListSessions(dir)
	if err != nil {
		return 0, err
	}

	n := 0

	for _, s := range sessions {
		ref := s.StartedAt
		if s.ClosedAt != nil {
			ref = *s.ClosedAt
		}

		if ref.Before(cutoff) {
			n++
		}
	}

	return n, nil
}
