// Package errors provides structured CLI error types for vigil.
//
// CLIError wraps errors with user-facing messages, hints, and exit codes
// to provide consistent, actionable error output across all commands.
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Exit codes for CLI errors.
const (
	ExitSuccess   = 0  // Successful execution
	ExitGeneral   = 1  // General error
	ExitConfig    = 4  // Configuration error
	ExitTimeout   = 5  // Execution timeout
	ExitExecution = 6  // Execution failure
	ExitUsage     = 64 // Command line usage error (BSD convention)
)

// CLIError represents a user-facing CLI error with actionable guidance.
type CLIError struct {
	// Message is the primary error message shown to the user.
	Message string

	// Hint provides actionable guidance on how to fix the error.
	Hint string

	// Cause is the underlying error, if any.
	Cause error

	// Code is the exit code for the CLI.
	Code int
}

// Error implements the error interface.
func (e *CLIError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}

	return e.Message
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *CLIError) Unwrap() error {
	return e.Cause
}

// New creates a new CLIError with the given message and exit code.
func New(code int, message string) *CLIError {
	return &CLIError{
		Message: message,
		Code:    code,
	}
}

// Wrap wraps an existing error with a CLIError.
func Wrap(code int, message string, cause error) *CLIError {
	return &CLIError{
		Message: message,
		Cause:   cause,
		Code:    code,
	}
}

// WithHint adds a hint to the error.
func (e *CLIError) WithHint(hint string) *CLIError {
	e.Hint = hint
	return e
}

// As is a convenience function for errors.As with CLIError.
func As(err error, target **CLIError) bool {
	return errors.As(err, target)
}

// --- Common error constructors ---

// CannotPrompt returns an error when a confirmation is needed but prompts
// are unavailable.
func CannotPrompt(flag string) *CLIError {
	return &CLIError{
		Message: "Cannot prompt in non-interactive mode",
		Hint:    fmt.Sprintf("Pass %s to continue without confirmation", flag),
		Code:    ExitUsage,
	}
}

// ShellNotFound returns an error when no program was given and no usable
// shell could be resolved.
func ShellNotFound(cause error) *CLIError {
	return &CLIError{
		Message: "No shell found",
		Hint:    "Set $SHELL, set shell.program with 'vigil config set', or pass a program after --",
		Cause:   cause,
		Code:    ExitExecution,
	}
}

// ProgramNotFound returns an error for a program that is not on PATH.
func ProgramNotFound(program string, cause error) *CLIError {
	return &CLIError{
		Message: fmt.Sprintf("Program not found: %s", program),
		Hint:    "Check the program name or pass an absolute path",
		Cause:   cause,
		Code:    ExitExecution,
	}
}

// SpawnFailed returns an error when the pseudo-terminal or child process
// could not be started. It detects common causes and provides specific hints.
func SpawnFailed(cause error) *CLIError {
	hint := "Run 'vigil doctor' to check pseudo-terminal support"

	detail := ""
	if cause != nil {
		detail = cause.Error()
	}

	switch {
	case containsAny(detail, "operation not permitted", "EPERM"):
		hint = "The sandbox or container may block pseudo-terminals or new sessions; run outside it or grant access to /dev/ptmx"
	case containsAny(detail, "no such file", "/dev/ptmx"):
		hint = "No pseudo-terminal device is available; mount devpts or run on a host with /dev/ptmx"
	case containsAny(detail, "too many open files"):
		hint = "Raise the open file limit (ulimit -n) and try again"
	}

	return &CLIError{
		Message: "Failed to start terminal session",
		Hint:    hint,
		Cause:   cause,
		Code:    ExitExecution,
	}
}

// SessionNotFound returns an error for an unknown history session.
func SessionNotFound(id string) *CLIError {
	return &CLIError{
		Message: fmt.Sprintf("History session not found: %s", id),
		Hint:    "Run 'vigil history list' to see recorded sessions",
		Code:    ExitGeneral,
	}
}

// UnsupportedTranscript returns an error for a session recorded by a newer
// vigil.
func UnsupportedTranscript(id, format string, cause error) *CLIError {
	return &CLIError{
		Message: fmt.Sprintf("History session %s uses transcript format %s", id, format),
		Hint:    "Read it with the vigil release that recorded it",
		Code:    ExitGeneral,
		Cause:   cause,
	}
}

// ConfigFailed returns an error for configuration load or save failures.
func ConfigFailed(operation string, cause error) *CLIError {
	return &CLIError{
		Message: fmt.Sprintf("Failed to %s", operation),
		Hint:    "Check file permissions for your vigil config directory or run 'vigil doctor'",
		Cause:   cause,
		Code:    ExitConfig,
	}
}

// InvalidFormat returns an error for an unsupported --format value.
func InvalidFormat(format string, allowed []string) *CLIError {
	return &CLIError{
		Message: fmt.Sprintf("Invalid format: %s", format),
		Hint:    fmt.Sprintf("Supported formats: %s", strings.Join(allowed, ", ")),
		Code:    ExitUsage,
	}
}

// InvalidDuration returns an error for a flag value that is not a duration.
func InvalidDuration(flag, value string, cause error) *CLIError {
	return &CLIError{
		Message: fmt.Sprintf("Invalid %s value: %s", flag, value),
		Hint:    "Use a Go duration such as 90s, 30m, or 72h",
		Cause:   cause,
		Code:    ExitUsage,
	}
}

// DumpTimedOut returns an error when a headless session outlives --timeout.
func DumpTimedOut(timeout string) *CLIError {
	return &CLIError{
		Message: fmt.Sprintf("Program did not exit within %s", timeout),
		Hint:    "Increase --timeout, or end --input with a command that exits the program",
		Code:    ExitTimeout,
	}
}

// NotATerminal returns an error when an interactive command runs without a
// terminal on stdin or stdout.
func NotATerminal() *CLIError {
	return &CLIError{
		Message: "Standard input and output must be a terminal",
		Hint:    "Use 'vigil dump' to run a program headlessly",
		Code:    ExitUsage,
	}
}

// containsAny checks if s contains any of the substrings.
func containsAny(s string, substrings ...string) bool {
	lower := strings.ToLower(s)
	for _, sub := range substrings {
		if strings.Contains(lower, strings.ToLower(sub)) {
			return true
		}
	}

	return false
}
