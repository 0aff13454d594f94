package command

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/joeycumines/truetest/internal/config"
	"github.com/joeycumines/truetest/internal/logging"
	"github.com/joeycumines/truetest/internal/storage"
)

// SessionCommand inspects session identity and manages stored fs sessions.
type SessionCommand struct {
	*BaseCommand
	storeFlags
	stdin io.Reader
	now   func() time.Time
}

// NewSessionCommand creates the session command.
func NewSessionCommand(cfg *config.Config) *SessionCommand {
	return &SessionCommand{
		BaseCommand: NewBaseCommand("session", "Show the session id and manage stored sessions", "session [options] [id|list|clean|purge]"),
		storeFlags:  storeFlags{cfg: cfg},
		stdin:       os.Stdin,
		now:         time.Now,
	}
}

func (c *SessionCommand) SetupFlags(fs *flag.FlagSet) { c.registerStoreFlags(fs) }

func (c *SessionCommand) Execute(args []string, stdout, stderr io.Writer) error {
	sub := "list"
	if len(args) > 0 {
		sub, args = strings.ToLower(args[0]), args[1:]
	}

	fs := flag.NewFlagSet("session "+sub, flag.ContinueOnError)
	fs.SetOutput(stderr)
	var (
		format string
		source bool
		dryRun bool
		yes    bool
	)
	switch sub {
	case "id":
		fs.BoolVar(&source, "source", false, "Also print how the id was detected")
	case "list":
		fs.StringVar(&format, "format", "text", "Output format: text or json")
	case "clean", "purge":
		fs.BoolVar(&dryRun, "dry-run", false, "Show what would be removed without removing it")
		fs.BoolVar(&yes, "y", false, "Do not ask for confirmation")
	default:
		return fmt.Errorf("unknown subcommand: %s", sub)
	}
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}
	if fs.NArg() > 0 {
		return fmt.Errorf("unexpected arguments: %v", fs.Args())
	}

	switch sub {
	case "id":
		return c.id(stdout, source)
	case "list":
		return c.list(stdout, format)
	default:
		return c.clean(stdout, stderr, sub == "purge", dryRun, yes)
	}
}

func (c *SessionCommand) id(w io.Writer, withSource bool) error {
	id, source, err := c.resolveSession()
	if err != nil {
		return err
	}
	if withSource {
		_, _ = fmt.Fprintf(w, "%s\t%s\n", id, source)
		return nil
	}
	_, _ = fmt.Fprintln(w, id)
	return nil
}

func (c *SessionCommand) list(w io.Writer, format string) error {
	if format != "text" && format != "json" {
		return fmt.Errorf("invalid format: %q", format)
	}
	opts, err := c.storageOptions()
	if err != nil {
		return err
	}
	infos, err := storage.ScanSessions(opts.Dir)
	if err != nil {
		return err
	}
	if format == "json" {
		return writeJSON(w, infos)
	}

	current, _, _ := c.resolveSession()
	tw := tabwriter.NewWriter(w, 0, 8, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "ID\tSIZE\tUPDATED\tSTATE")
	for _, info := range infos {
		state := "idle"
		switch {
		case info.ID == current:
			state = "current"
		case info.Active:
			state = "active"
		}
		age := c.now().Sub(info.UpdatedAt).Round(time.Second)
		_, _ = fmt.Fprintf(tw, "%s\t%d\t%s ago\t%s\n", info.ID, info.Size, age, state)
	}
	return tw.Flush()
}

func (c *SessionCommand) clean(stdout, stderr io.Writer, purge, dryRun, yes bool) error {
	if !dryRun && !yes {
		prompt := "Remove sessions according to the configured retention policy?"
		if purge {
			prompt = "Remove ALL inactive sessions, ignoring retention?"
		}
		ok, err := confirm(c.stdin, stdout, prompt)
		if err != nil {
			return err
		}
		if !ok {
			_, _ = fmt.Fprintln(stdout, "aborted")
			return nil
		}
	}

	logger, err := logging.New(logging.Options{File: c.logFile, Level: c.logLevel}, c.cfg, stderr)
	if err != nil {
		return err
	}
	defer logger.Close()

	opts, err := c.storageOptions()
	if err != nil {
		return err
	}
	// The current session is kept even when it is not open anywhere.
	current, _, err := c.resolveSession()
	if err != nil {
		return err
	}

	cleaner := newCleaner(c.cfg, opts.Dir, logger.Logger)
	cleaner.DryRun = dryRun
	cleaner.Purge = purge
	report, err := cleaner.ExecuteCleanup(current)
	if err != nil {
		if errors.Is(err, storage.ErrWouldBlock) {
			return fmt.Errorf("another cleanup is already running: %w", err)
		}
		return err
	}

	verb := "removed"
	if dryRun {
		verb = "would remove"
	}
	for _, id := range report.Removed {
		_, _ = fmt.Fprintf(stdout, "%s %s\n", verb, id)
	}
	_, _ = fmt.Fprintf(stdout, "%s %d session(s), kept %d\n", verb, len(report.Removed), len(report.Skipped))
	return nil
}

// confirm asks a y/N question on w and reads the answer from r.
func confirm(r io.Reader, w io.Writer, question string) (bool, error) {
	_, _ = fmt.Fprintf(w, "%s (y/N): ", question)
	answer, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && err != io.EOF {
		return false, fmt.Errorf("failed to read confirmation: %w", err)
	}
	answer = strings.TrimSpace(answer)
	return strings.EqualFold(answer, "y") || strings.EqualFold(answer, "yes"), nil
}
