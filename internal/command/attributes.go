package command

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/joeycumines/truetest/internal/attributes"
	"github.com/joeycumines/truetest/internal/config"
)

// GetCommand prints one attribute.
type GetCommand struct {
	*BaseCommand
	storeFlags
}

// NewGetCommand creates the get command.
func NewGetCommand(cfg *config.Config) *GetCommand {
	return &GetCommand{
		BaseCommand: NewBaseCommand("get", "Print a session attribute", "get [options] <key>"),
		storeFlags:  storeFlags{cfg: cfg},
	}
}

func (c *GetCommand) SetupFlags(fs *flag.FlagSet) { c.registerStoreFlags(fs) }

func (c *GetCommand) Execute(args []string, stdout, stderr io.Writer) error {
	if len(args) != 1 {
		return fmt.Errorf("get requires exactly one key")
	}
	s, err := c.open(stderr)
	if err != nil {
		return err
	}
	defer s.Close()

	v, ok := s.Store.Get(args[0])
	if !ok {
		return fmt.Errorf("attribute %q is not set", args[0])
	}
	_, _ = fmt.Fprintln(stdout, v)
	return nil
}

// SetCommand stores one attribute, or several as key=value pairs with a
// single write.
type SetCommand struct {
	*BaseCommand
	storeFlags
}

// NewSetCommand creates the set command.
func NewSetCommand(cfg *config.Config) *SetCommand {
	return &SetCommand{
		BaseCommand: NewBaseCommand("set", "Set session attributes", "set [options] <key> <value> | set [options] <key=value>..."),
		storeFlags:  storeFlags{cfg: cfg},
	}
}

func (c *SetCommand) SetupFlags(fs *flag.FlagSet) { c.registerStoreFlags(fs) }

func (c *SetCommand) Execute(args []string, stdout, stderr io.Writer) error {
	attrs, err := parseSetArgs(args)
	if err != nil {
		return err
	}
	s, err := c.open(stderr)
	if err != nil {
		return err
	}
	defer s.Close()

	if len(attrs) == 1 {
		s.Store.Set(attrs[0].Key, attrs[0].Value)
	} else {
		s.Store.SetMultiple(attrs)
	}
	s.warnIfNotPersisted(stderr)
	return nil
}

// parseSetArgs accepts "key value" or any number of "key=value" pairs.
func parseSetArgs(args []string) (attributes.Attributes, error) {
	if len(args) == 2 && !strings.Contains(args[0], "=") {
		return attributes.Attributes{{Key: args[0], Value: args[1]}}, nil
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("set requires a key and value")
	}
	attrs := make(attributes.Attributes, 0, len(args))
	for _, arg := range args {
		k, v, ok := strings.Cut(arg, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("expected key=value, got %q", arg)
		}
		attrs = append(attrs, attributes.Attribute{Key: k, Value: v})
	}
	return attrs, nil
}

// RemoveCommand deletes attributes. Listeners are not notified.
type RemoveCommand struct {
	*BaseCommand
	storeFlags
}

// NewRemoveCommand creates the rm command.
func NewRemoveCommand(cfg *config.Config) *RemoveCommand {
	return &RemoveCommand{
		BaseCommand: NewBaseCommand("rm", "Remove session attributes", "rm [options] <key>..."),
		storeFlags:  storeFlags{cfg: cfg},
	}
}

func (c *RemoveCommand) SetupFlags(fs *flag.FlagSet) { c.registerStoreFlags(fs) }

func (c *RemoveCommand) Execute(args []string, stdout, stderr io.Writer) error {
	if len(args) == 0 {
		return fmt.Errorf("rm requires at least one key")
	}
	s, err := c.open(stderr)
	if err != nil {
		return err
	}
	defer s.Close()

	for _, key := range args {
		s.Store.Remove(key)
		s.warnIfNotPersisted(stderr)
	}
	return nil
}

// ClearCommand removes every attribute of the session.
type ClearCommand struct {
	*BaseCommand
	storeFlags
}

// NewClearCommand creates the clear command.
func NewClearCommand(cfg *config.Config) *ClearCommand {
	return &ClearCommand{
		BaseCommand: NewBaseCommand("clear", "Remove all session attributes", "clear [options]"),
		storeFlags:  storeFlags{cfg: cfg},
	}
}

func (c *ClearCommand) SetupFlags(fs *flag.FlagSet) { c.registerStoreFlags(fs) }

func (c *ClearCommand) Execute(args []string, stdout, stderr io.Writer) error {
	if len(args) > 0 {
		return fmt.Errorf("unexpected arguments: %v", args)
	}
	s, err := c.open(stderr)
	if err != nil {
		return err
	}
	defer s.Close()

	s.Store.Clear()
	s.warnIfNotPersisted(stderr)
	return nil
}

// ListCommand prints all attributes, optionally filtered.
type ListCommand struct {
	*BaseCommand
	storeFlags
	format string
	where  string
}

// NewListCommand creates the list command.
func NewListCommand(cfg *config.Config) *ListCommand {
	return &ListCommand{
		BaseCommand: NewBaseCommand("list", "List session attributes", "list [options]"),
		storeFlags:  storeFlags{cfg: cfg},
	}
}

func (c *ListCommand) SetupFlags(fs *flag.FlagSet) {
	c.registerStoreFlags(fs)
	fs.StringVar(&c.format, "format", "", "Output format: text or json (default from config, else text)")
	fs.StringVar(&c.where, "where", "", "Only show attributes matching this expression over key and value")
}

func (c *ListCommand) Execute(args []string, stdout, stderr io.Writer) error {
	if len(args) > 0 {
		return fmt.Errorf("unexpected arguments: %v", args)
	}
	format := c.format
	if format == "" {
		format = config.DefaultSchema().ResolveFor(c.cfg, c.Name(), config.KeyFormat)
	}
	if format != "text" && format != "json" {
		return fmt.Errorf("invalid format: %q", format)
	}
	filter, err := compileFilter(c.where)
	if err != nil {
		return err
	}

	s, err := c.open(stderr)
	if err != nil {
		return err
	}
	defer s.Close()

	items, err := filter.Apply(s.Store.GetAll())
	if err != nil {
		return err
	}
	if format == "json" {
		return writeJSON(stdout, items)
	}
	writeAttributeTable(stdout, newListStyles(stdout, c.cfg), items)
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeAttributeTable(w io.Writer, st listStyles, items map[string]string) {
	if len(items) == 0 {
		_, _ = fmt.Fprintln(w, st.empty.Render("(no attributes)"))
		return
	}
	keys := attributes.FromMap(items).Keys()
	width := 0
	for _, k := range keys {
		width = max(width, lipgloss.Width(k))
	}
	keyStyle := st.key.Width(width)
	for _, k := range keys {
		_, _ = fmt.Fprintln(w, keyStyle.Render(k)+st.sep.Render(" = ")+st.value.Render(items[k]))
	}
}

// SeedCommand loads attributes from a URL query string, in order, with a
// single write.
type SeedCommand struct {
	*BaseCommand
	storeFlags
}

// NewSeedCommand creates the seed command.
func NewSeedCommand(cfg *config.Config) *SeedCommand {
	return &SeedCommand{
		BaseCommand: NewBaseCommand("seed", "Set attributes from a URL query string", "seed [options] <?k1=v1&k2=v2 | url>"),
		storeFlags:  storeFlags{cfg: cfg},
	}
}

func (c *SeedCommand) SetupFlags(fs *flag.FlagSet) { c.registerStoreFlags(fs) }

func (c *SeedCommand) Execute(args []string, stdout, stderr io.Writer) error {
	if len(args) != 1 {
		return fmt.Errorf("seed requires exactly one query string")
	}
	attrs, err := ParseQuery(args[0])
	if err != nil {
		return err
	}
	if len(attrs) == 0 {
		return errors.New("query string has no parameters")
	}

	s, err := c.open(stderr)
	if err != nil {
		return err
	}
	defer s.Close()

	s.Store.SetMultiple(attrs)
	s.warnIfNotPersisted(stderr)
	_, _ = fmt.Fprintf(stdout, "seeded %d attribute(s)\n", len(attrs))
	return nil
}

// ParseQuery parses "?k1=v1&k2=v2" (or a URL carrying such a query) into
// attributes in query order. Repeated keys are kept; the last one wins when
// applied. A parameter without "=" has an empty value. Any "#fragment" is
// ignored.
func ParseQuery(raw string) (attributes.Attributes, error) {
	raw, _, _ = strings.Cut(raw, "#")
	if i := strings.IndexByte(raw, '?'); i >= 0 {
		raw = raw[i+1:]
	}
	var attrs attributes.Attributes
	for part := range strings.SplitSeq(raw, "&") {
		if part == "" {
			continue
		}
		rawKey, rawValue, _ := strings.Cut(part, "=")
		key, err := url.QueryUnescape(rawKey)
		if err != nil {
			return nil, fmt.Errorf("invalid query key %q: %w", rawKey, err)
		}
		value, err := url.QueryUnescape(rawValue)
		if err != nil {
			return nil, fmt.Errorf("invalid query value for %q: %w", key, err)
		}
		if key == "" {
			continue
		}
		attrs = append(attrs, attributes.Attribute{Key: key, Value: value})
	}
	return attrs, nil
}
