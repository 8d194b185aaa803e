package main

import (
	"github.com/spf13/cobra"

	"github.com/vigil-term/vigil/internal/doctor"
	"github.com/vigil-term/vigil/internal/output"
)

func newDoctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Diagnose common issues",
		Long: `Run diagnostic checks to find problems before starting a session.

Checks performed:
  - Default shell resolution ($SHELL or shell.program)
  - Pseudo-terminal allocation
  - UTF-8 locale
  - Config file syntax
  - History and log directories are writable
  - CLI version against the latest release`,
		Example: `  vigil doctor
  vigil doctor --json`,
		Args: noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := output.FromContext(cmd.Context())

			results := doctor.New().Run(cmd.Context())

			if out.JSON {
				return out.PrintJSON(results)
			}

			renderDoctorReport(out, results)

			return nil
		},
	}
}

func renderDoctorReport(out *output.Writer, results []doctor.Result) {
	out.Println("vigil doctor")
	out.Println("============")
	out.Println()

	doctor.RenderResults(results, out.Print, out.Success, out.Warning, out.Failure, out.Muted)

	passed, failed, warnings := doctor.Summary(results)

	out.Println()
	out.Print("%d passed", passed)

	if failed > 0 {
		out.Print(", %d failed", failed)
	}

	if warnings > 0 {
		out.Print(", %d warning(s)", warnings)
	}

	out.Println()
}
