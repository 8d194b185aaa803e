//go:build unix

package doctor

import (
	"context"
	"fmt"

	"github.com/vigil-term/vigil/internal/config"
	"github.com/vigil-term/vigil/internal/pty"
)

// checkShell verifies the program a bare 'vigil run' would start resolves.
func checkShell(_ context.Context) Result {
	program := config.Load().ShellProgram()

	path, err := pty.ResolveProgram(program)
	if err != nil {
		detail := "Set $SHELL or shell.program"
		if program != "" {
			detail = "Fix shell.program with 'vigil config set shell.program <path>'"
		}

		return Result{
			Status:  StatusFail,
			Message: err.Error(),
			Detail:  detail,
		}
	}

	source := "$SHELL"
	if program != "" {
		source = "shell.program"
	}

	return Result{
		Status:  StatusPass,
		Message: fmt.Sprintf("%s (via %s)", path, source),
	}
}

// checkPTY verifies the host hands out pseudo-terminals.
func checkPTY(_ context.Context) Result {
	name, err := pty.CheckAllocation()
	if err != nil {
		return Result{
			Status:  StatusFail,
			Message: "Cannot allocate a pseudo-terminal",
			Detail:  err.Error(),
		}
	}

	return Result{
		Status:  StatusPass,
		Message: fmt.Sprintf("Allocated %s", name),
	}
}
