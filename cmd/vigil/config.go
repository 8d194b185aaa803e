package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vigil-term/vigil/internal/config"
	clierrors "github.com/vigil-term/vigil/internal/errors"
	"github.com/vigil-term/vigil/internal/output"
)

var exportFormats = []string{output.FormatYAML, output.FormatTOML, output.FormatJSON}

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration",
		Long: `View and modify vigil configuration settings.

Values come from VIGIL_* environment variables, then the config file, then
built-in defaults. Command-line flags override all of them.`,
		Example: `  vigil config list
  vigil config set terminal.scrollback 50000
  vigil config export --format toml`,
		Args: noArgs,
	}

	cmd.AddCommand(newConfigListCmd())
	cmd.AddCommand(newConfigGetCmd())
	cmd.AddCommand(newConfigSetCmd())
	cmd.AddCommand(newConfigExportCmd())

	return cmd
}

func newConfigListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all configuration settings",
		Long:  `Display every known configuration key with its current value and description.`,
		Example: `  vigil config list
  vigil config list --json`,
		Args: noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := output.FromContext(cmd.Context())
			cfg := config.Load()

			if out.JSON {
				return out.PrintJSON(cfg.All())
			}

			settings := config.Settings()

			width := 0
			for _, s := range settings {
				width = max(width, len(s.Key))
			}

			for _, s := range settings {
				out.Print("%-*s = %s\n", width, s.Key, formatValue(cfg.Get(s.Key)))
				out.Muted("%-*s   %s", width, "", s.Description)
			}

			return nil
		},
	}
}

func newConfigGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Get a configuration value",
		Long:  `Retrieve and display the current value of a single configuration key.`,
		Example: `  vigil config get terminal.term
  vigil config get history.dir`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := output.FromContext(cmd.Context())
			key := args[0]
			cfg := config.Load()
			value := cfg.Get(key)

			if value == nil {
				out.Muted("%s is not set", key)
				return nil
			}

			if out.JSON {
				return out.PrintJSON(map[string]any{key: value})
			}

			out.Print("%s = %s\n", key, formatValue(value))

			return nil
		},
	}
}

func newConfigSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a configuration value",
		Long: `Set a configuration key to the given value. The value is persisted to the config file.

Known keys are type-checked: booleans accept true/false, numbers must be
integers, and lists are comma-separated.`,
		Example: `  vigil config set shell.program /bin/zsh
  vigil config set shell.args -l,-i
  vigil config set history.enabled false`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := output.FromContext(cmd.Context())
			key, raw := args[0], args[1]

			value, known, err := parseSettingValue(key, raw)
			if err != nil {
				return clierrors.Wrap(clierrors.ExitUsage, fmt.Sprintf("Invalid value for %s: %s", key, raw), err).
					WithHint("Run 'vigil config list' to see each setting's current value")
			}

			if !known {
				out.Warning("%s is not a known setting", key)
			}

			if err := config.Load().Set(key, value); err != nil {
				return clierrors.ConfigFailed("set config", err)
			}

			out.Success("Set %s = %s", key, formatValue(value))

			return nil
		},
	}
}

func newConfigExportCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Print the effective configuration",
		Long: `Print the effective configuration, defaults included, in a form that can be
saved as a config file.`,
		Example: `  vigil config export > ~/.config/vigil/config.yaml
  vigil config export --format toml`,
		Args: noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := output.FromContext(cmd.Context())

			if out.JSON {
				format = output.FormatJSON
			}

			valid := false
			for _, f := range exportFormats {
				valid = valid || f == format
			}

			if !valid {
				return clierrors.InvalidFormat(format, exportFormats)
			}

			return out.PrintFormat(format, config.Load().All())
		},
	}

	cmd.Flags().StringVar(&format, "format", output.FormatYAML, "Output format: yaml, toml, or json")

	return cmd
}

// parseSettingValue converts raw to the type of the key's default. Unknown
// keys are stored as strings.
func parseSettingValue(key, raw string) (value any, known bool, err error) {
	for _, s := range config.Settings() {
		if s.Key != key {
			continue
		}

		switch s.Default.(type) {
		case bool:
			v, err := strconv.ParseBool(raw)
			return v, true, err
		case int:
			v, err := strconv.Atoi(raw)
			return v, true, err
		case float64:
			v, err := strconv.ParseFloat(raw, 64)
			return v, true, err
		case []string:
			if strings.TrimSpace(raw) == "" {
				return []string{}, true, nil
			}

			parts := strings.Split(raw, ",")
			for i := range parts {
				parts[i] = strings.TrimSpace(parts[i])
			}

			return parts, true, nil
		default:
			return raw, true, nil
		}
	}

	return raw, false, nil
}

func formatValue(v any) string {
	switch v := v.(type) {
	case nil:
		return ""
	case string:
		if v == "" {
			return `""`
		}

		return v
	case []string:
		return "[" + strings.Join(v, ", ") + "]"
	case []any:
		parts := make([]string, len(v))
		for i, p := range v {
			parts[i] = fmt.Sprint(p)
		}

		return "[" + strings.Join(parts, ", ") + "]"
	default:
		return fmt.Sprint(v)
	}
}
