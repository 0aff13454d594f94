// Package config loads the truetest configuration file.
//
// The format is dnsmasq-like: one "optionName value" per line, "#" comments,
// and "[section]" headers. Options before the first header are global.
// The [sessions] section configures session retention; any other section
// holds per-command overrides of global options.
package config

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
)

// Config is a parsed configuration file.
type Config struct {
	Global   map[string]string
	Commands map[string]map[string]string
	Sessions SessionConfig
	// Warnings collects schema violations found while loading.
	Warnings []string
}

// SessionConfig controls retention of stored sessions.
type SessionConfig struct {
	MaxAgeDays int `json:"maxAgeDays"`
	MaxCount   int `json:"maxCount"`
	MaxSizeMB  int `json:"maxSizeMb"`
	// AutoCleanupEnabled starts a background cleaner in long-running
	// commands (run).
	AutoCleanupEnabled   bool `json:"autoCleanupEnabled"`
	CleanupIntervalHours int  `json:"cleanupIntervalHours"`
}

// NewConfig returns an empty configuration with default session retention.
func NewConfig() *Config {
	return &Config{
		Global:   make(map[string]string),
		Commands: make(map[string]map[string]string),
		Sessions: SessionConfig{
			MaxAgeDays:           30,
			MaxCount:             100,
			MaxSizeMB:            100,
			AutoCleanupEnabled:   true,
			CleanupIntervalHours: 24,
		},
	}
}

// Load reads the file at GetConfigPath.
func Load() (*Config, error) {
	path, err := GetConfigPath()
	if err != nil {
		return nil, fmt.Errorf("failed to get config path: %w", err)
	}
	return LoadFromPath(path)
}

// LoadFromPath reads a config file. A missing file yields defaults.
// Symlinks are rejected.
func LoadFromPath(path string) (*Config, error) {
	fi, err := os.Lstat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return NewConfig(), nil
		}
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if fi.Mode()&os.ModeSymlink != 0 {
		return nil, fmt.Errorf("symlink not allowed in config path: %s", path)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()
	return LoadFromReader(f)
}

// LoadFromReader parses configuration from r.
func LoadFromReader(r io.Reader) (*Config, error) {
	c := NewConfig()
	scanner := bufio.NewScanner(r)

	section := ""
	for lineNo := 1; scanner.Scan(); lineNo++ {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		if strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]") {
			section = strings.TrimSpace(strings.Trim(line, "[]"))
			if section != SessionsSection && c.Commands[section] == nil {
				c.Commands[section] = make(map[string]string)
			}
			continue
		}

		name, value, _ := strings.Cut(line, " ")
		value = strings.TrimSpace(value)

		switch section {
		case "":
			c.Global[name] = value
		case SessionsSection:
			if err := parseSessionOption(&c.Sessions, name, value); err != nil {
				return nil, fmt.Errorf("line %d: invalid session option %q: %w", lineNo, name, err)
			}
		default:
			c.Commands[section][name] = value
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading config: %w", err)
	}

	for _, issue := range ValidateConfig(c, DefaultSchema()) {
		c.addWarning("%s", issue)
	}
	return c, nil
}

func (c *Config) addWarning(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	c.Warnings = append(c.Warnings, msg)
	slog.Warn("config: " + msg)
}

// SessionsSection is the section header for retention options.
const SessionsSection = "sessions"

func parseSessionOption(sc *SessionConfig, name, value string) error {
	nonNegative := func(dst *int) error {
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid integer value %q: %w", value, err)
		}
		if n < 0 {
			return fmt.Errorf("%s cannot be negative: %d", name, n)
		}
		*dst = n
		return nil
	}

	switch name {
	case "maxAgeDays":
		return nonNegative(&sc.MaxAgeDays)
	case "maxCount":
		return nonNegative(&sc.MaxCount)
	case "maxSizeMB":
		return nonNegative(&sc.MaxSizeMB)
	case "autoCleanupEnabled":
		b, err := parseBool(value)
		if err != nil {
			return err
		}
		sc.AutoCleanupEnabled = b
	case "cleanupIntervalHours":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid integer value %q: %w", value, err)
		}
		if n < 1 {
			return fmt.Errorf("cleanupIntervalHours must be at least 1: %d", n)
		}
		sc.CleanupIntervalHours = n
	default:
		return fmt.Errorf("unknown session option: %s", name)
	}
	return nil
}

// parseBool accepts true/false, 1/0, yes/no and on/off, case-insensitively.
func parseBool(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "true", "1", "yes", "on":
		return true, nil
	case "false", "0", "no", "off":
		return false, nil
	default:
		return false, fmt.Errorf("invalid boolean value: %s", s)
	}
}

// GetGlobalOption returns a global option.
func (c *Config) GetGlobalOption(name string) (string, bool) {
	v, ok := c.Global[name]
	return v, ok
}

// GetCommandOption returns a command option, falling back to the global one.
func (c *Config) GetCommandOption(command, name string) (string, bool) {
	if opts, ok := c.Commands[command]; ok {
		if v, ok := opts[name]; ok {
			return v, true
		}
	}
	return c.GetGlobalOption(name)
}

// SetGlobalOption sets a global option in memory.
func (c *Config) SetGlobalOption(name, value string) {
	c.Global[name] = value
}

// GetInt returns a global option as an int, or 0 if unset or malformed.
func (c *Config) GetInt(key string) int {
	v, ok := c.Global[key]
	if !ok {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0
	}
	return n
}

// GetBool returns a global option as a bool, or false if unset or malformed.
func (c *Config) GetBool(key string) bool {
	b, err := parseBool(c.Global[key])
	return err == nil && b
}
