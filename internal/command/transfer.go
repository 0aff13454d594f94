package command

import (
	"flag"
	"fmt"
	"io"
	"maps"
	"os"
	"slices"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/joeycumines/truetest/internal/attributes"
	"github.com/joeycumines/truetest/internal/config"
)

// Transfer formats for import and export.
const (
	FormatJSON = "json"
	FormatYAML = "yaml"
	FormatEnv  = "env"
)

func checkTransferFormat(format string) error {
	switch format {
	case FormatJSON, FormatYAML, FormatEnv:
		return nil
	}
	return fmt.Errorf("invalid format: %q (want json, yaml or env)", format)
}

// DecodeAttributes reads a flat string mapping. JSON and YAML keep document
// order; env files are applied in key order. Scalar values are taken
// literally, so `port: 8080` yields "8080"; null and nested values are
// rejected.
func DecodeAttributes(r io.Reader, format string) (attributes.Attributes, error) {
	switch format {
	case FormatEnv:
		m, err := godotenv.Parse(r)
		if err != nil {
			return nil, fmt.Errorf("parsing env: %w", err)
		}
		return attributes.FromMap(m), nil
	case FormatJSON, FormatYAML:
		// JSON is valid YAML, and the node API preserves key order.
		var doc yaml.Node
		if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
			if err == io.EOF {
				return nil, nil
			}
			return nil, fmt.Errorf("parsing %s: %w", format, err)
		}
		return attributesFromNode(&doc)
	}
	return nil, checkTransferFormat(format)
}

func attributesFromNode(doc *yaml.Node) (attributes.Attributes, error) {
	n := doc
	if n.Kind == yaml.DocumentNode && len(n.Content) == 1 {
		n = n.Content[0]
	}
	if n.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("line %d: expected a mapping of keys to values", n.Line)
	}
	attrs := make(attributes.Attributes, 0, len(n.Content)/2)
	for i := 0; i+1 < len(n.Content); i += 2 {
		k, v := n.Content[i], n.Content[i+1]
		if k.Kind != yaml.ScalarNode {
			return nil, fmt.Errorf("line %d: keys must be scalars", k.Line)
		}
		if v.Kind == yaml.AliasNode && v.Alias != nil {
			v = v.Alias
		}
		if v.Kind != yaml.ScalarNode || v.Tag == "!!null" {
			return nil, fmt.Errorf("line %d: value for %q must be a string, number or boolean", v.Line, k.Value)
		}
		attrs = append(attrs, attributes.Attribute{Key: k.Value, Value: v.Value})
	}
	return attrs, nil
}

// EncodeAttributes writes items in format, keys sorted.
func EncodeAttributes(w io.Writer, items map[string]string, format string) error {
	switch format {
	case FormatJSON:
		return writeJSON(w, items)
	case FormatYAML:
		if len(items) == 0 {
			_, err := io.WriteString(w, "{}\n")
			return err
		}
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(items); err != nil {
			return err
		}
		return enc.Close()
	case FormatEnv:
		var b strings.Builder
		for _, k := range slices.Sorted(maps.Keys(items)) {
			if !isEnvKey(k) {
				return fmt.Errorf("attribute %q cannot be written as an env variable name", k)
			}
			line, err := envLine(k, items[k])
			if err != nil {
				return err
			}
			b.WriteString(line)
			b.WriteByte('\n')
		}
		_, err := io.WriteString(w, b.String())
		return err
	}
	return checkTransferFormat(format)
}

// envLine renders key=value in a form godotenv.Parse reads back unchanged.
// godotenv.Marshal output is tried first; values it mangles (a trailing
// quote, a leading zero) fall back to single quotes.
func envLine(key, value string) (string, error) {
	marshalled, err := godotenv.Marshal(map[string]string{key: value})
	if err != nil {
		return "", err
	}
	for _, line := range []string{marshalled, key + "='" + value + "'"} {
		if m, err := godotenv.Unmarshal(line); err == nil && len(m) == 1 && m[key] == value {
			return line, nil
		}
	}
	return "", fmt.Errorf("attribute %q: value cannot be written in env format", key)
}

func isEnvKey(k string) bool {
	if k == "" {
		return false
	}
	for i, r := range k {
		switch {
		case r == '_' || r == '.' || (r >= 'A' && r <= 'Z') || (r >= 'a' && r <= 'z'):
		case r >= '0' && r <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}

// ImportCommand bulk-loads attributes with a single write.
type ImportCommand struct {
	*BaseCommand
	storeFlags
	format string
	stdin  io.Reader
}

// NewImportCommand creates the import command.
func NewImportCommand(cfg *config.Config) *ImportCommand {
	return &ImportCommand{
		BaseCommand: NewBaseCommand("import", "Load session attributes from a file", "import [options] <file|->"),
		storeFlags:  storeFlags{cfg: cfg},
		stdin:       os.Stdin,
	}
}

func (c *ImportCommand) SetupFlags(fs *flag.FlagSet) {
	c.registerStoreFlags(fs)
	fs.StringVar(&c.format, "format", "", "Input format: json, yaml or env (default from config, else inferred from the file extension)")
}

func (c *ImportCommand) Execute(args []string, stdout, stderr io.Writer) error {
	if len(args) != 1 {
		return fmt.Errorf("import requires a file name, or - for stdin")
	}
	format := c.format
	if format == "" {
		format = inferFormat(args[0])
	}
	if format == "" {
		format = config.DefaultSchema().ResolveFor(c.cfg, c.Name(), config.KeyFormat)
	}
	if err := checkTransferFormat(format); err != nil {
		return err
	}

	var r io.Reader = c.stdin
	if args[0] != "-" {
		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()
		r = f
	}
	attrs, err := DecodeAttributes(r, format)
	if err != nil {
		return err
	}

	s, err := c.open(stderr)
	if err != nil {
		return err
	}
	defer s.Close()

	if len(attrs) > 0 {
		s.Store.SetMultiple(attrs)
		s.warnIfNotPersisted(stderr)
	}
	_, _ = fmt.Fprintf(stdout, "imported %d attribute(s)\n", len(attrs))
	return nil
}

// inferFormat maps a file extension to a format, or "".
func inferFormat(name string) string {
	switch {
	case strings.HasSuffix(name, ".json"):
		return FormatJSON
	case strings.HasSuffix(name, ".yaml"), strings.HasSuffix(name, ".yml"):
		return FormatYAML
	case strings.HasSuffix(name, ".env"):
		return FormatEnv
	}
	return ""
}

// ExportCommand writes the session snapshot.
type ExportCommand struct {
	*BaseCommand
	storeFlags
	format string
	where  string
}

// NewExportCommand creates the export command.
func NewExportCommand(cfg *config.Config) *ExportCommand {
	return &ExportCommand{
		BaseCommand: NewBaseCommand("export", "Write session attributes to stdout", "export [options]"),
		storeFlags:  storeFlags{cfg: cfg},
	}
}

func (c *ExportCommand) SetupFlags(fs *flag.FlagSet) {
	c.registerStoreFlags(fs)
	fs.StringVar(&c.format, "format", "", "Output format: json, yaml or env (default from config, else json)")
	fs.StringVar(&c.where, "where", "", "Only export attributes matching this expression over key and value")
}

func (c *ExportCommand) Execute(args []string, stdout, stderr io.Writer) error {
	if len(args) > 0 {
		return fmt.Errorf("unexpected arguments: %v", args)
	}
	format := c.format
	if format == "" {
		format = config.DefaultSchema().ResolveFor(c.cfg, c.Name(), config.KeyFormat)
	}
	if err := checkTransferFormat(format); err != nil {
		return err
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
	return EncodeAttributes(stdout, items, format)
}
