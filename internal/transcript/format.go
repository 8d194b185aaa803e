package transcript

import (
	"errors"
	"fmt"

	"github.com/Masterminds/semver/v3"
)

// FormatVersion is the on-disk layout written to every new session's
// metadata. Minor bumps add optional fields; a major bump changes the event
// encoding.
const FormatVersion = "1.1.0"

// legacyFormat is assumed for sessions recorded before the format field.
const legacyFormat = "1.0.0"

// ErrUnsupportedFormat is returned for sessions this build cannot decode.
var ErrUnsupportedFormat = errors.New("unsupported transcript format")

var readableFormats = mustConstraint("^1")

func mustConstraint(c string) *semver.Constraints {
	constraint, err := semver.NewConstraint(c)
	if err != nil {
		panic(err)
	}

	return constraint
}

// CheckFormat reports whether a session written in format can be read.
// An empty format is a session from before versioning.
func CheckFormat(format string) error {
	if format == "" {
		format = legacyFormat
	}

	v, err := semver.NewVersion(format)
	if err != nil {
		return fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}

	if !readableFormats.Check(v) {
		return fmt.Errorf("%w: %s (this build reads %s)", ErrUnsupportedFormat, v, readableFormats)
	}

	return nil
}
