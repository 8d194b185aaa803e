// Package doctor provides diagnostic checks for the hosts vigil runs on.
//
// The default checks cover everything a session needs before the first
// byte reaches the screen: a resolvable shell, pseudo-terminal allocation,
// a UTF-8 locale, writable history and log directories, a readable config
// file, and recorded transcripts this build can read.
package doctor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/vigil-term/vigil/internal/config"
	"github.com/vigil-term/vigil/internal/paths"
	"github.com/vigil-term/vigil/internal/transcript"
)

// Status represents the result of a diagnostic check.
type Status int

const (
	// StatusPass indicates the check passed.
	StatusPass Status = iota
	// StatusWarn indicates a non-critical issue.
	StatusWarn
	// StatusFail indicates a critical failure.
	StatusFail
)

// Result holds the outcome of a single check.
type Result struct {
	Name    string `json:"name"`
	Status  Status `json:"status"`
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"` // Optional additional detail
}

// Check is a diagnostic check function.
type Check func(ctx context.Context) Result

// Runner executes diagnostic checks.
type Runner struct {
	checks []namedCheck
}

type namedCheck struct {
	name  string
	check Check
}

// New creates a new diagnostic runner.
func New() *Runner {
	r := &Runner{}

	r.AddCheck("Shell", checkShell)
	r.AddCheck("Pseudo-terminal", checkPTY)
	r.AddCheck("Locale", checkLocale)
	r.AddCheck("Config File", checkConfigFile)
	r.AddCheck("History", checkHistoryDir)
	r.AddCheck("Logs", checkLogsDir)
	r.AddCheck("Transcripts", checkTranscripts)

	return r
}

// AddCheck registers a diagnostic check.
func (r *Runner) AddCheck(name string, check Check) {
	r.checks = append(r.checks, namedCheck{name: name, check: check})
}

// Run executes all registered checks and returns the results.
func (r *Runner) Run(ctx context.Context) []Result {
	results := make([]Result, 0, len(r.checks))

	for _, nc := range r.checks {
		result := nc.check(ctx)
		result.Name = nc.name
		results = append(results, result)
	}

	return results
}

// Summary returns counts of passed, failed, and warning checks.
func Summary(results []Result) (passed, failed, warnings int) {
	for _, r := range results {
		switch r.Status {
		case StatusPass:
			passed++
		case StatusFail:
			failed++
		case StatusWarn:
			warnings++
		}
	}

	return passed, failed, warnings
}

// checkLocale warns when the locale does not select UTF-8; wide glyphs and
// box drawing come out wrong in most shells otherwise.
func checkLocale(_ context.Context) Result {
	var name, value string

	for _, key := range []string{"LC_ALL", "LC_CTYPE", "LANG"} {
		if v := os.Getenv(key); v != "" {
			name, value = key, v
			break
		}
	}

	if value == "" {
		return Result{
			Status:  StatusWarn,
			Message: "No locale set",
			Detail:  "Set LANG to a UTF-8 locale such as en_US.UTF-8",
		}
	}

	lower := strings.ToLower(value)
	if !strings.Contains(lower, "utf-8") && !strings.Contains(lower, "utf8") {
		return Result{
			Status:  StatusWarn,
			Message: fmt.Sprintf("%s=%s is not UTF-8", name, value),
			Detail:  "Programs may print multi-byte characters incorrectly",
		}
	}

	return Result{
		Status:  StatusPass,
		Message: fmt.Sprintf("%s=%s", name, value),
	}
}

// checkConfigFile verifies the config file, when present, parses.
func checkConfigFile(_ context.Context) Result {
	path, err := paths.ConfigFile()
	if err != nil {
		return Result{
			Status:  StatusFail,
			Message: "Cannot resolve config directory",
			Detail:  err.Error(),
		}
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return Result{
			Status:  StatusPass,
			Message: "Using defaults (no config file)",
		}
	}

	if err := config.Validate(path); err != nil {
		return Result{
			Status:  StatusFail,
			Message: path,
			Detail:  err.Error(),
		}
	}

	return Result{
		Status:  StatusPass,
		Message: path,
	}
}

// checkHistoryDir verifies transcripts can be written.
func checkHistoryDir(_ context.Context) Result {
	cfg := config.Load()
	if !cfg.HistoryEnabled() {
		return Result{
			Status:  StatusPass,
			Message: "Disabled",
		}
	}

	return checkWritableDir(cfg.HistoryDir())
}

// checkLogsDir verifies the default log file location is writable.
func checkLogsDir(_ context.Context) Result {
	dir, err := paths.LogsDir()
	if err != nil {
		return Result{
			Status:  StatusWarn,
			Message: "Cannot resolve log directory",
			Detail:  err.Error(),
		}
	}

	return checkWritableDir(dir)
}

func checkWritableDir(dir string) Result {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return Result{
			Status:  StatusFail,
			Message: dir,
			Detail:  err.Error(),
		}
	}

	tmp, err := os.CreateTemp(dir, ".doctor-*")
	if err != nil {
		return Result{
			Status:  StatusFail,
			Message: fmt.Sprintf("%s (not writable)", dir),
			Detail:  err.Error(),
		}
	}

	_ = tmp.Close()
	_ = os.Remove(tmp.Name())

	return Result{
		Status:  StatusPass,
		Message: filepath.Clean(dir),
	}
}

// checkTranscripts warns about recorded sessions in a format this build
// cannot read back.
func checkTranscripts(_ context.Context) Result {
	cfg := config.Load()

	sessions, err := transcript.ListSessions(cfg.HistoryDir())
	if err != nil {
		return Result{
			Status:  StatusWarn,
			Message: "Cannot list recorded sessions",
			Detail:  err.Error(),
		}
	}

	var unreadable []string

	for _, session := range sessions {
		if transcript.CheckFormat(session.Format) != nil {
			unreadable = append(unreadable, session.SessionID)
		}
	}

	if len(unreadable) > 0 {
		return Result{
			Status:  StatusWarn,
			Message: fmt.Sprintf("%d of %d session(s) use an unsupported format", len(unreadable), len(sessions)),
			Detail:  "Recorded by another vigil release: " + strings.Join(unreadable, ", "),
		}
	}

	return Result{
		Status:  StatusPass,
		Message: fmt.Sprintf("%d session(s), format v%s", len(sessions), transcript.FormatVersion),
	}
}

// RenderResults formats diagnostic results to the given output writer.
func RenderResults(results []Result, printFn, successFn, warningFn, failureFn, mutedFn func(format string, args ...any)) {
	maxNameLen := 0
	for _, r := range results {
		if len(r.Name) > maxNameLen {
			maxNameLen = len(r.Name)
		}
	}

	for _, r := range results {
		symbol := r.Status.Symbol()
		padding := maxNameLen - len(r.Name) + 4

		switch r.Status {
		case StatusPass:
			successFn("%-*s%s", len(r.Name)+padding, r.Name, r.Message)
		case StatusWarn:
			warningFn("%-*s%s", len(r.Name)+padding, r.Name, r.Message)
		case StatusFail:
			failureFn("%-*s%s", len(r.Name)+padding, r.Name, r.Message)
		default:
			printFn("%s %-*s%s\n", symbol, len(r.Name)+padding, r.Name, r.Message)
		}

		if r.Detail != "" {
			mutedFn("    %s", r.Detail)
		}
	}
}

// String returns the lowercase status name.
func (s Status) String() string {
	switch s {
	case StatusPass:
		return "pass"
	case StatusWarn:
		return "warn"
	case StatusFail:
		return "fail"
	default:
		return "unknown"
	}
}

// MarshalText encodes the status by name.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Symbol returns the status symbol for display.
func (s Status) Symbol() string {
	switch s {
	case StatusPass:
		return checkMark
	case StatusWarn:
		return warningMark
	case StatusFail:
		return xMark
	default:
		return "?"
	}
}

const (
	checkMark   = "\u2713" // ✓
	xMark       = "\u2717" // ✗
	warningMark = "\u26A0" // ⚠
)
