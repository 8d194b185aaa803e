package main

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/vigil-term/vigil/internal/display"
	clierrors "github.com/vigil-term/vigil/internal/errors"
	"github.com/vigil-term/vigil/internal/output"
)

const (
	dumpColumns = 80
	dumpRows    = 24
)

var dumpFormats = []string{output.FormatText, output.FormatYAML, output.FormatJSON}

// dumpFormat picks the output format from --format and the global --json.
func dumpFormat(out *output.Writer, format string) (string, error) {
	if out.JSON && format == output.FormatText {
		return output.FormatJSON, nil
	}

	for _, f := range dumpFormats {
		if f == format {
			return format, nil
		}
	}

	return "", clierrors.InvalidFormat(format, dumpFormats)
}

// decodeInput expands Go string escapes such as \r, \t, \x1b and é.
func decodeInput(s string) ([]byte, error) {
	b := make([]byte, 0, len(s))

	for len(s) > 0 {
		r, multibyte, tail, err := strconv.UnquoteChar(s, 0)
		if err != nil {
			return nil, fmt.Errorf("invalid escape near %q: %w", s, err)
		}

		if multibyte {
			b = utf8.AppendRune(b, r)
		} else {
			b = append(b, byte(r))
		}

		s = tail
	}

	return b, nil
}

// printDocument writes doc in format. Text output drops trailing blank rows.
func printDocument(out *output.Writer, format string, doc display.Document) error {
	if format != output.FormatText {
		return out.PrintFormat(format, doc)
	}

	last := len(doc.Rows) - 1
	for last >= 0 && doc.Rows[last].Text == "" {
		last--
	}

	var sb strings.Builder
	for _, row := range doc.Rows[:last+1] {
		sb.WriteString(row.Text)
		sb.WriteByte('\n')
	}

	_, err := fmt.Fprint(out.Out, sb.String())

	return err
}
