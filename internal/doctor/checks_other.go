//go:build !unix

package doctor

import "context"

func checkShell(_ context.Context) Result {
	return Result{
		Status:  StatusFail,
		Message: "Not supported on this platform",
	}
}

func checkPTY(_ context.Context) Result {
	return Result{
		Status:  StatusFail,
		Message: "Pseudo-terminals are not supported on this platform",
	}
}
