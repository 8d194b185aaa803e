//go:build unix

package pty

import (
	"fmt"

	creackpty "github.com/creack/pty"
)

// CheckAllocation allocates and immediately releases a pseudo-terminal pair. It
// returns the subordinate device name so callers can report which device
// node the host handed out.
func CheckAllocation() (string, error) {
	primary, tty, err := creackpty.Open()
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrOpen, err)
	}

	name := tty.Name()

	_ = tty.Close()
	_ = primary.Close()

	return name, nil
}
