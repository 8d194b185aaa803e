// Package prompt provides interactive prompts for the vigil CLI.
package prompt

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/vigil-term/vigil/internal/output"
)

var errCanceled = errors.New("prompt canceled")

// IsCanceled reports whether err means the user closed input instead of
// answering.
func IsCanceled(err error) bool {
	return errors.Is(err, errCanceled)
}

// Prompter handles interactive prompts.
type Prompter struct {
	out      *output.Writer
	reader   *bufio.Reader
	terminal func() bool
}

// New creates a new Prompter reading from stdin.
func New(out *output.Writer) *Prompter {
	return NewWithReader(out, os.Stdin)
}

// NewWithReader creates a Prompter reading answers from in. Prompts are only
// offered when stdout is a terminal.
func NewWithReader(out *output.Writer, in io.Reader) *Prompter {
	return &Prompter{
		out:    out,
		reader: bufio.NewReader(in),
		terminal: func() bool {
			return term.IsTerminal(int(os.Stdout.Fd()))
		},
	}
}

// CanPrompt returns true if interactive prompts are available.
func (p *Prompter) CanPrompt() bool {
	return p.terminal() && !p.out.NoInput
}

// Confirm prompts for a yes/no confirmation.
func (p *Prompter) Confirm(message string, defaultValue bool) (bool, error) {
	defaultStr := "y/N"
	if defaultValue {
		defaultStr = "Y/n"
	}

	p.out.Print("%s [%s]: ", message, defaultStr)

	input, err := p.reader.ReadString('\n')
	if err != nil {
		if !errors.Is(err, io.EOF) {
			return defaultValue, fmt.Errorf("failed to read input: %w", err)
		}

		if input == "" {
			p.out.Println()
			return defaultValue, errCanceled
		}
	}

	input = strings.TrimSpace(strings.ToLower(input))
	if input == "" {
		return defaultValue, nil
	}

	return input == "y" || input == "yes", nil
}
