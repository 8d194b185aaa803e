// Package config handles vigil configuration using Viper.
//
// Configuration sources (in priority order):
//  1. Environment variables (VIGIL_*)
//  2. Config file (<config root>/config.yaml)
//  3. Built-in defaults
//
// Command-line flags override all three; commands apply them on top of the
// values returned here.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/vigil-term/vigil/internal/paths"
)

const (
	// DefaultTerm is the TERM value advertised to child programs.
	DefaultTerm = "xterm-256color"
	// DefaultScrollback is the number of grid lines the CLI retains.
	DefaultScrollback = 10000
	// DefaultHistoryLines is the in-memory transcript line window.
	DefaultHistoryLines = 10000
	// DefaultHistoryRetention is the default prune window.
	DefaultHistoryRetention = 30 * 24 * time.Hour
)

// Setting describes a known configuration key.
type Setting struct {
	Key         string
	Default     any
	Description string
}

// Settings lists every known key with its default.
func Settings() []Setting {
	return []Setting{
		{Key: "shell.program", Default: "", Description: "Program to run (default: $SHELL)"},
		{Key: "shell.args", Default: []string{}, Description: "Arguments for shell.program"},
		{Key: "terminal.term", Default: DefaultTerm, Description: "TERM advertised to the child"},
		{Key: "terminal.columns", Default: 0, Description: "Fixed column count (0: host terminal width)"},
		{Key: "terminal.rows", Default: 0, Description: "Fixed row count (0: host terminal height)"},
		{Key: "terminal.scrollback", Default: DefaultScrollback, Description: "Retained grid lines (0: unbounded)"},
		{Key: "terminal.wrap", Default: true, Description: "Automatic line wrap at the right margin"},
		{Key: "terminal.legacy_newline", Default: false, Description: "CR moves down a line and LF moves right"},
		{Key: "history.enabled", Default: true, Description: "Record session transcripts"},
		{Key: "history.dir", Default: "", Description: "Transcript directory (default: <state dir>/history)"},
		{Key: "history.lines", Default: DefaultHistoryLines, Description: "In-memory transcript lines per session"},
		{Key: "history.retention", Default: DefaultHistoryRetention.String(), Description: "Default prune window"},
		{Key: "telemetry.sample_ratio", Default: 1.0, Description: "Share of sessions traced when OTEL_ENABLED is set"},
	}
}

// Config holds the vigil configuration.
type Config struct {
	v *viper.Viper
}

// Load reads configuration from all sources.
func Load() *Config {
	v := viper.New()

	for _, s := range Settings() {
		v.SetDefault(s.Key, s.Default)
	}

	// Config file location
	if configDir, err := paths.ConfigRoot(); err == nil {
		v.AddConfigPath(configDir)
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	// Environment variables
	v.SetEnvPrefix("VIGIL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file (ignore if not found, but warn on other errors)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			fmt.Fprintf(os.Stderr, "Warning: error reading config file: %v\n", err)
		}
	}

	return &Config{v: v}
}

// Validate parses the config file at path and reports syntax errors.
func Validate(path string) error {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	return nil
}

// Get returns a configuration value.
func (c *Config) Get(key string) any {
	return c.v.Get(key)
}

// GetString returns a configuration value as string.
func (c *Config) GetString(key string) string {
	return c.v.GetString(key)
}

// GetInt returns a configuration value as int.
func (c *Config) GetInt(key string) int {
	return c.v.GetInt(key)
}

// GetBool returns a configuration value as bool.
func (c *Config) GetBool(key string) bool {
	return c.v.GetBool(key)
}

// Set sets a configuration value and persists it.
func (c *Config) Set(key string, value any) error {
	c.v.Set(key, value)

	configFile, err := paths.ConfigFile()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(configFile), 0o700); err != nil {
		return err
	}

	return c.v.WriteConfigAs(configFile)
}

// All returns all configuration as a map.
func (c *Config) All() map[string]any {
	return c.v.AllSettings()
}

// ShellProgram returns the configured program, or "" to use $SHELL.
func (c *Config) ShellProgram() string {
	return strings.TrimSpace(c.GetString("shell.program"))
}

// ShellArgs returns the arguments for ShellProgram.
func (c *Config) ShellArgs() []string {
	return c.v.GetStringSlice("shell.args")
}

// Term returns the TERM value for child programs.
func (c *Config) Term() string {
	if term := strings.TrimSpace(c.GetString("terminal.term")); term != "" {
		return term
	}

	return DefaultTerm
}

// TelemetrySampleRatio returns the share of sessions traced, clamped to [0, 1].
func (c *Config) TelemetrySampleRatio() float64 {
	return min(max(c.v.GetFloat64("telemetry.sample_ratio"), 0), 1)
}

// Columns returns the fixed column count, or 0 to follow the host.
func (c *Config) Columns() int {
	return max(c.GetInt("terminal.columns"), 0)
}

// Rows returns the fixed row count, or 0 to follow the host.
func (c *Config) Rows() int {
	return max(c.GetInt("terminal.rows"), 0)
}

// Scrollback returns the retained grid line cap. Zero is unbounded.
func (c *Config) Scrollback() int {
	return max(c.GetInt("terminal.scrollback"), 0)
}

// Wrap reports whether automatic line wrap starts enabled.
func (c *Config) Wrap() bool {
	return c.GetBool("terminal.wrap")
}

// LegacyNewline reports whether CR/LF use the legacy motion semantics.
func (c *Config) LegacyNewline() bool {
	return c.GetBool("terminal.legacy_newline")
}

// HistoryEnabled reports whether transcripts are recorded.
func (c *Config) HistoryEnabled() bool {
	return c.GetBool("history.enabled")
}

// HistoryDir returns the transcript directory.
func (c *Config) HistoryDir() string {
	if dir := strings.TrimSpace(c.GetString("history.dir")); dir != "" {
		return dir
	}

	dir, err := paths.HistoryDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "vigil-history")
	}

	return dir
}

// HistoryLines returns the in-memory transcript line window.
func (c *Config) HistoryLines() int {
	if n := c.GetInt("history.lines"); n > 0 {
		return n
	}

	return DefaultHistoryLines
}

// HistoryRetention returns the default prune window.
func (c *Config) HistoryRetention() time.Duration {
	d, err := time.ParseDuration(strings.TrimSpace(c.GetString("history.retention")))
	if err != nil || d <= 0 {
		return DefaultHistoryRetention
	}

	return d
}
