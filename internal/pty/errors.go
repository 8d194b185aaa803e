package pty

import "errors"

var (
	// ErrShellNotFound is returned when no program is given and $SHELL is
	// unset or does not resolve to an executable.
	ErrShellNotFound = errors.New("shell not found")

	// ErrProgramNotFound is returned when the requested program cannot be
	// resolved on PATH.
	ErrProgramNotFound = errors.New("program not found")

	// ErrOpen is returned when a pseudo-terminal pair cannot be allocated or
	// configured.
	ErrOpen = errors.New("open pseudo-terminal")

	// ErrStart is returned when the child process cannot be started.
	ErrStart = errors.New("start child process")
)
