package pty

import (
	"fmt"
	"os"
	"os/exec"
	"slices"
	"strings"

	"github.com/vigil-term/vigil/internal/buildinfo"
)

// DefaultTerm is the TERM value advertised to children.
const DefaultTerm = "xterm-256color"

// ProgramName is advertised as TERM_PROGRAM.
const ProgramName = "vigil"

// Launcher tokens that must not leak into the child's environment.
var strippedEnv = []string{
	"XDG_ACTIVATION_TOKEN",
	"DESKTOP_STARTUP_ID",
}

// BuildEnv derives the child environment from base.
//
// Launcher tokens are removed, TERM, TERM_PROGRAM and TERM_PROGRAM_VERSION
// are set, and overrides (KEY=VALUE) are applied last.
func BuildEnv(base []string, term string, overrides []string) []string {
	if term == "" {
		term = DefaultTerm
	}

	env := make([]string, 0, len(base)+3+len(overrides))
	index := make(map[string]int, len(base))

	set := func(kv string) {
		key, _, _ := strings.Cut(kv, "=")
		if key == "" {
			return
		}

		if i, ok := index[key]; ok {
			env[i] = kv
			return
		}

		index[key] = len(env)
		env = append(env, kv)
	}

	for _, kv := range base {
		key, _, _ := strings.Cut(kv, "=")
		if slices.Contains(strippedEnv, key) {
			continue
		}

		set(kv)
	}

	set("TERM=" + term)
	set("TERM_PROGRAM=" + ProgramName)
	set("TERM_PROGRAM_VERSION=" + buildinfo.Version)

	for _, kv := range overrides {
		if !strings.Contains(kv, "=") {
			continue
		}

		set(kv)
	}

	return env
}

// ResolveProgram returns the executable path for program, falling back to
// $SHELL when program is empty.
func ResolveProgram(program string) (string, error) {
	if program == "" {
		shell := strings.TrimSpace(os.Getenv("SHELL"))
		if shell == "" {
			return "", ErrShellNotFound
		}

		path, err := exec.LookPath(shell)
		if err != nil {
			return "", fmt.Errorf("%w: %s: %w", ErrShellNotFound, shell, err)
		}

		return path, nil
	}

	path, err := exec.LookPath(program)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %w", ErrProgramNotFound, program, err)
	}

	return path, nil
}
