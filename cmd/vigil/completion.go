package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	clierrors "github.com/vigil-term/vigil/internal/errors"
)

func newCompletionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "completion <bash|zsh|fish|powershell>",
		Short: "Generate shell completion scripts",
		Long: `Generate a completion script for your shell and write it to standard output.

Load it from your shell's startup file to complete vigil commands and flags.`,
		Example: `  vigil completion bash > /etc/bash_completion.d/vigil
  vigil completion zsh > "${fpath[1]}/_vigil"
  vigil completion fish > ~/.config/fish/completions/vigil.fish`,
		ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
		Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		DisableFlagsInUseLine: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			root := cmd.Root()
			w := cmd.OutOrStdout()
			if w == nil {
				w = os.Stdout
			}

			var err error

			switch args[0] {
			case "bash":
				err = root.GenBashCompletionV2(w, true)
			case "zsh":
				err = root.GenZshCompletion(w)
			case "fish":
				err = root.GenFishCompletion(w, true)
			case "powershell":
				err = root.GenPowerShellCompletionWithDesc(w)
			default:
				return clierrors.InvalidFormat(args[0], []string{"bash", "zsh", "fish", "powershell"})
			}

			if err != nil {
				return fmt.Errorf("generate %s completion: %w", args[0], err)
			}

			return nil
		},
	}
}
