package config

import (
	"fmt"
	"os"
	"slices"
	"sort"
	"strconv"
	"strings"
)

// OptionType is the expected type of an option value.
type OptionType string

const (
	TypeString OptionType = "string"
	// TypeBool accepts true/false, yes/no, 1/0 and on/off.
	TypeBool OptionType = "bool"
	TypeInt  OptionType = "int"
	// TypeEnum accepts one of ConfigOption.Choices.
	TypeEnum OptionType = "enum"
)

// ConfigOption declares one option.
type ConfigOption struct {
	Key         string
	Type        OptionType
	Default     string
	Description string
	// Section is "" for global options.
	Section string
	// EnvVar, if set, overrides the file value.
	EnvVar  string
	Choices []string
}

// ConfigSchema is the set of known options. It drives validation, help
// output and env var resolution.
type ConfigSchema struct {
	options   []*ConfigOption
	bySection map[string]map[string]*ConfigOption
}

// NewSchema returns an empty schema.
func NewSchema() *ConfigSchema {
	return &ConfigSchema{bySection: make(map[string]map[string]*ConfigOption)}
}

// Register adds opt. Last registration of a section/key pair wins.
func (s *ConfigSchema) Register(opts ...ConfigOption) {
	for _, opt := range opts {
		ref := new(ConfigOption)
		*ref = opt
		s.options = append(s.options, ref)
		if s.bySection[opt.Section] == nil {
			s.bySection[opt.Section] = make(map[string]*ConfigOption)
		}
		s.bySection[opt.Section][opt.Key] = ref
	}
}

// Lookup returns the option for key in section, or nil.
func (s *ConfigSchema) Lookup(section, key string) *ConfigOption {
	return s.bySection[section][key]
}

// IsKnown reports whether key may appear in section. Command sections may
// override any global option.
func (s *ConfigSchema) IsKnown(section, key string) bool {
	return s.Lookup(section, key) != nil || (section != SessionsSection && s.Lookup("", key) != nil)
}

// Options returns the options declared for section, in registration order.
func (s *ConfigSchema) Options(section string) []ConfigOption {
	var out []ConfigOption
	for _, o := range s.options {
		if o.Section == section {
			out = append(out, *o)
		}
	}
	return out
}

// Sections returns the sorted non-global section names.
func (s *ConfigSchema) Sections() []string {
	out := make([]string, 0, len(s.bySection))
	for sec := range s.bySection {
		if sec != "" {
			out = append(out, sec)
		}
	}
	sort.Strings(out)
	return out
}

// Resolve returns the effective value of a global option: env var, then
// config file, then schema default.
func (s *ConfigSchema) Resolve(c *Config, key string) string {
	return s.ResolveFor(c, "", key)
}

// ResolveFor is Resolve with a per-command section consulted before the
// global value.
func (s *ConfigSchema) ResolveFor(c *Config, command, key string) string {
	opt := s.Lookup("", key)
	if command != "" {
		if o := s.Lookup(command, key); o != nil {
			opt = o
		}
	}
	if opt != nil && opt.EnvVar != "" {
		if v, ok := os.LookupEnv(opt.EnvVar); ok {
			return v
		}
	}
	if c != nil {
		if v, ok := c.GetCommandOption(command, key); ok {
			return v
		}
	}
	if opt != nil {
		return opt.Default
	}
	return ""
}

// ValidateConfig returns a sorted list of problems with c: unknown options
// and values that do not match their declared type.
func ValidateConfig(c *Config, s *ConfigSchema) []string {
	var issues []string
	for key, value := range c.Global {
		opt := s.Lookup("", key)
		if opt == nil {
			issues = append(issues, fmt.Sprintf("unknown global option: %q (value: %q)", key, value))
			continue
		}
		if err := validateType(opt, value); err != nil {
			issues = append(issues, fmt.Sprintf("global option %q: %v", key, err))
		}
	}
	for section, opts := range c.Commands {
		for key, value := range opts {
			if !s.IsKnown(section, key) {
				issues = append(issues, fmt.Sprintf("unknown option for command %q: %q (value: %q)", section, key, value))
				continue
			}
			opt := s.Lookup(section, key)
			if opt == nil {
				opt = s.Lookup("", key)
			}
			if err := validateType(opt, value); err != nil {
				issues = append(issues, fmt.Sprintf("option %q in [%s]: %v", key, section, err))
			}
		}
	}
	sort.Strings(issues)
	return issues
}

func validateType(opt *ConfigOption, value string) error {
	switch opt.Type {
	case TypeString, "":
	case TypeBool:
		if _, err := parseBool(value); err != nil {
			return fmt.Errorf("expected bool, got %q", value)
		}
	case TypeInt:
		if _, err := strconv.Atoi(value); err != nil {
			return fmt.Errorf("expected int, got %q", value)
		}
	case TypeEnum:
		if !slices.Contains(opt.Choices, value) {
			return fmt.Errorf("expected one of %s, got %q", strings.Join(opt.Choices, "|"), value)
		}
	default:
		return fmt.Errorf("unknown option type %q", opt.Type)
	}
	return nil
}

// FormatHelp renders every option, grouped by section.
func (s *ConfigSchema) FormatHelp() string {
	var b strings.Builder
	if globals := s.Options(""); len(globals) > 0 {
		b.WriteString("Global Options:\n")
		for _, o := range globals {
			writeOptionHelp(&b, o)
		}
	}
	for _, sec := range s.Sections() {
		fmt.Fprintf(&b, "\n[%s] Options:\n", sec)
		for _, o := range s.Options(sec) {
			writeOptionHelp(&b, o)
		}
	}
	return b.String()
}

func writeOptionHelp(b *strings.Builder, o ConfigOption) {
	fmt.Fprintf(b, "  %-24s %s", o.Key, o.Description)
	var parts []string
	switch o.Type {
	case TypeString, "":
	case TypeEnum:
		parts = append(parts, "one of: "+strings.Join(o.Choices, "|"))
	default:
		parts = append(parts, "type: "+string(o.Type))
	}
	if o.Default != "" {
		parts = append(parts, "default: "+o.Default)
	}
	if o.EnvVar != "" {
		parts = append(parts, "env: "+o.EnvVar)
	}
	if len(parts) > 0 {
		fmt.Fprintf(b, " (%s)", strings.Join(parts, ", "))
	}
	b.WriteString("\n")
}

// Option keys.
const (
	KeySessionID     = "session.id"
	KeyStorageBack   = "storage.backend"
	KeyStorageDir    = "storage.dir"
	KeyStorageQuota  = "storage.quota-bytes"
	KeyColor         = "color"
	KeyFormat        = "format"
	KeyLogFile       = "log.file"
	KeyLogLevel      = "log.level"
	KeyLogMaxSizeMB  = "log.max-size-mb"
	KeyLogMaxFiles   = "log.max-files"
	EnvLogLevel      = "TRUETEST_LOG_LEVEL"
	EnvLogFile       = "TRUETEST_LOG_FILE"
	DefaultQuotaSize = 5 * 1024 * 1024
)

// DefaultSchema declares every option truetest understands.
func DefaultSchema() *ConfigSchema {
	s := NewSchema()
	s.Register(
		ConfigOption{Key: KeySessionID, Description: "Override the detected session ID", EnvVar: "TRUETEST_SESSION_ID"},
		ConfigOption{Key: KeyStorageBack, Type: TypeEnum, Default: "fs", Choices: []string{"fs", "memory", "sqlite"}, Description: "Attribute storage backend"},
		ConfigOption{Key: KeyStorageDir, Description: "Directory holding session documents"},
		ConfigOption{Key: KeyStorageQuota, Type: TypeInt, Default: strconv.Itoa(DefaultQuotaSize), Description: "Per-session byte quota, 0 disables"},
		ConfigOption{Key: KeyColor, Type: TypeEnum, Default: "auto", Choices: []string{"auto", "always", "never"}, Description: "Styled output"},
		ConfigOption{Key: KeyLogFile, Description: "JSON log file, rotated by size", EnvVar: EnvLogFile},
		ConfigOption{Key: KeyLogLevel, Type: TypeEnum, Default: "info", Choices: []string{"debug", "info", "warn", "error"}, Description: "Log level", EnvVar: EnvLogLevel},
		ConfigOption{Key: KeyLogMaxSizeMB, Type: TypeInt, Default: "10", Description: "Log size in MB before rotation"},
		ConfigOption{Key: KeyLogMaxFiles, Type: TypeInt, Default: "5", Description: "Rotated log files to keep"},

		ConfigOption{Key: KeyFormat, Section: "list", Type: TypeEnum, Default: "text", Choices: []string{"text", "json"}, Description: "list output format"},
		ConfigOption{Key: KeyFormat, Section: "export", Type: TypeEnum, Default: "json", Choices: []string{"json", "yaml", "env"}, Description: "export output format"},
		ConfigOption{Key: KeyFormat, Section: "import", Type: TypeEnum, Default: "json", Choices: []string{"json", "yaml", "env"}, Description: "import input format"},

		ConfigOption{Key: "maxAgeDays", Section: SessionsSection, Type: TypeInt, Default: "30", Description: "Remove sessions older than this"},
		ConfigOption{Key: "maxCount", Section: SessionsSection, Type: TypeInt, Default: "100", Description: "Sessions to keep"},
		ConfigOption{Key: "maxSizeMB", Section: SessionsSection, Type: TypeInt, Default: "100", Description: "Total size of kept sessions"},
		ConfigOption{Key: "autoCleanupEnabled", Section: SessionsSection, Type: TypeBool, Default: "true", Description: "Clean up in the background during run"},
		ConfigOption{Key: "cleanupIntervalHours", Section: SessionsSection, Type: TypeInt, Default: "24", Description: "Hours between background cleanups"},
	)
	return s
}
