//go:build unix

package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/google/uuid"

	"github.com/vigil-term/vigil/internal/emulator"
	"github.com/vigil-term/vigil/internal/transcript"
)

// startTerminal starts spec on a new pseudo-terminal. When history is on the
// session is recorded under spec.HistoryDir.
func startTerminal(ctx context.Context, spec sessionSpec, logger *slog.Logger, tee io.Writer) (*emulator.Terminal, error) {
	opts := emulator.Options{
		Program:     spec.Program,
		Args:        spec.Args,
		Term:        spec.Term,
		Columns:     spec.Columns,
		Rows:        spec.Rows,
		Scrollback:  spec.Scrollback,
		DisableWrap: !spec.Wrap,
		NewlineMode: spec.Newline,
		Tee:         tee,
		Logger:      logger,
	}

	if spec.History {
		store, err := transcript.NewStore(transcript.StoreOptions{
			SessionID: uuid.NewString(),
			Dir:       spec.HistoryDir,
			MaxLines:  spec.HistLines,
			Program:   spec.displayName(),
			Columns:   spec.Columns,
			Rows:      spec.Rows,
		})
		if err != nil {
			// A broken history directory should not keep the user out of
			// their shell.
			logger.Warn("Transcript disabled for this session",
				slog.String("component", "cli"),
				slog.String("error", err.Error()),
			)
		} else {
			opts.Transcript = store
		}
	}

	term, err := emulator.Start(ctx, opts)
	if err != nil {
		return nil, startError(spec.Program, fmt.Errorf("start session: %w", err))
	}

	return term, nil
}
