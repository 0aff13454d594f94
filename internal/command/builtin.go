package command

import (
	"bytes"
	"flag"
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"
	"text/tabwriter"

	"github.com/joeycumines/truetest/internal/config"
)

// HelpCommand lists commands, or shows one command's usage and flags.
type HelpCommand struct {
	*BaseCommand
	registry *Registry
}

// NewHelpCommand creates the help command.
func NewHelpCommand(registry *Registry) *HelpCommand {
	return &HelpCommand{
		BaseCommand: NewBaseCommand("help", "Display help information for commands", "help [command]"),
		registry:    registry,
	}
}

func (c *HelpCommand) Execute(args []string, stdout, stderr io.Writer) error {
	if len(args) == 0 {
		_, _ = fmt.Fprintln(stdout, "truetest - session attributes for test harness scripts")
		_, _ = fmt.Fprintln(stdout)
		_, _ = fmt.Fprintln(stdout, "Usage: truetest <command> [options] [args...]")
		_, _ = fmt.Fprintln(stdout)
		_, _ = fmt.Fprintln(stdout, "Commands:")
		w := tabwriter.NewWriter(stdout, 0, 8, 2, ' ', 0)
		for _, name := range c.registry.List() {
			cmd, _ := c.registry.Get(name)
			_, _ = fmt.Fprintf(w, "  %s\t%s\n", name, cmd.Description())
		}
		_ = w.Flush()
		_, _ = fmt.Fprintln(stdout)
		_, _ = fmt.Fprintln(stdout, "Use 'truetest help <command>' for a command's flags.")
		return nil
	}

	cmd, err := c.registry.Get(args[0])
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Unknown command: %s\n", args[0])
		return err
	}
	_, _ = fmt.Fprintf(stdout, "Command: %s\n", cmd.Name())
	_, _ = fmt.Fprintf(stdout, "Description: %s\n", cmd.Description())
	_, _ = fmt.Fprintf(stdout, "Usage: truetest %s\n", cmd.Usage())

	fs := flag.NewFlagSet(cmd.Name(), flag.ContinueOnError)
	var buf bytes.Buffer
	fs.SetOutput(&buf)
	cmd.SetupFlags(fs)
	fs.PrintDefaults()
	if buf.Len() > 0 {
		_, _ = fmt.Fprintln(stdout)
		_, _ = fmt.Fprintln(stdout, "Flags:")
		_, _ = io.Copy(stdout, &buf)
	}
	return nil
}

// VersionCommand prints the build version.
type VersionCommand struct {
	*BaseCommand
	version string
}

// NewVersionCommand creates the version command.
func NewVersionCommand(version string) *VersionCommand {
	return &VersionCommand{
		BaseCommand: NewBaseCommand("version", "Display version information", "version"),
		version:     version,
	}
}

func (c *VersionCommand) Execute(args []string, stdout, stderr io.Writer) error {
	if len(args) > 0 {
		return fmt.Errorf("unexpected arguments: %v", args)
	}
	_, _ = fmt.Fprintf(stdout, "truetest version %s\n", c.version)
	return nil
}

// ConfigCommand shows and edits the configuration file.
type ConfigCommand struct {
	*BaseCommand
	config     *config.Config
	configPath string
	section    string
}

// NewConfigCommand creates the config command. An empty configPath
// disables writes.
func NewConfigCommand(cfg *config.Config, configPath string) *ConfigCommand {
	return &ConfigCommand{
		BaseCommand: NewBaseCommand("config", "Show or change configuration", "config [-section name] [key [value]] | config schema | config validate"),
		config:      cfg,
		configPath:  configPath,
	}
}

func (c *ConfigCommand) SetupFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.section, "section", "", "Command or sessions section to read or write (default: global)")
}

func (c *ConfigCommand) Execute(args []string, stdout, stderr io.Writer) error {
	schema := config.DefaultSchema()
	if len(args) == 1 {
		switch args[0] {
		case "schema":
			_, _ = fmt.Fprint(stdout, schema.FormatHelp())
			return nil
		case "validate":
			return c.validate(stdout, schema)
		}
	}

	switch len(args) {
	case 0:
		c.show(stdout)
		return nil
	case 1:
		key := args[0]
		if !schema.IsKnown(c.section, key) {
			return fmt.Errorf("unknown option %q", key)
		}
		_, _ = fmt.Fprintf(stdout, "%s: %s\n", key, schema.ResolveFor(c.config, c.section, key))
		return nil
	case 2:
		return c.set(stdout, stderr, schema, args[0], args[1])
	}
	return fmt.Errorf("too many arguments")
}

func (c *ConfigCommand) show(w io.Writer) {
	_, _ = fmt.Fprintln(w, "Global configuration:")
	for _, k := range slices.Sorted(maps.Keys(c.config.Global)) {
		_, _ = fmt.Fprintf(w, "  %s: %s\n", k, c.config.Global[k])
	}
	for _, sec := range slices.Sorted(maps.Keys(c.config.Commands)) {
		_, _ = fmt.Fprintf(w, "[%s]\n", sec)
		for _, k := range slices.Sorted(maps.Keys(c.config.Commands[sec])) {
			_, _ = fmt.Fprintf(w, "  %s: %s\n", k, c.config.Commands[sec][k])
		}
	}
	s := c.config.Sessions
	_, _ = fmt.Fprintf(w, "[%s]\n", config.SessionsSection)
	_, _ = fmt.Fprintf(w, "  maxAgeDays: %d\n  maxCount: %d\n  maxSizeMB: %d\n  autoCleanupEnabled: %t\n  cleanupIntervalHours: %d\n",
		s.MaxAgeDays, s.MaxCount, s.MaxSizeMB, s.AutoCleanupEnabled, s.CleanupIntervalHours)
}

func (c *ConfigCommand) validate(w io.Writer, schema *config.ConfigSchema) error {
	issues := config.ValidateConfig(c.config, schema)
	if len(issues) == 0 {
		_, _ = fmt.Fprintln(w, "configuration is valid")
		return nil
	}
	for _, issue := range issues {
		_, _ = fmt.Fprintf(w, "  %s\n", issue)
	}
	return fmt.Errorf("configuration has %d issue(s)", len(issues))
}

func (c *ConfigCommand) set(stdout, stderr io.Writer, schema *config.ConfigSchema, key, value string) error {
	if !schema.IsKnown(c.section, key) {
		return fmt.Errorf("unknown option %q", key)
	}
	// Parse the would-be line on its own to reject bad values up front.
	line := key + " " + value + "\n"
	if c.section != "" {
		line = "[" + c.section + "]\n" + line
	}
	probe, err := config.LoadFromReader(strings.NewReader(line))
	if err != nil {
		return err
	}
	if len(probe.Warnings) > 0 {
		return fmt.Errorf("%s", probe.Warnings[0])
	}

	if c.configPath == "" {
		return fmt.Errorf("no config file path available")
	}
	if err := config.SetKeyInFile(c.configPath, c.section, key, value); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	if c.section == "" {
		c.config.SetGlobalOption(key, value)
	}
	_, _ = fmt.Fprintf(stdout, "Set configuration: %s = %s\n", key, value)
	return nil
}
