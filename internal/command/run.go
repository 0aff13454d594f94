package command

import (
	"context"
	"flag"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/joeycumines/truetest/internal/config"
	"github.com/joeycumines/truetest/internal/scripting"
)

// RunCommand executes harness scripts against the session store. Scripts
// see the TrueTest global and can require("truetest:attributes").
type RunCommand struct {
	*BaseCommand
	storeFlags
	ctx     context.Context
	timeout time.Duration
	quiet   bool
}

// NewRunCommand creates the run command. ctx bounds every script.
func NewRunCommand(ctx context.Context, cfg *config.Config) *RunCommand {
	return &RunCommand{
		BaseCommand: NewBaseCommand("run", "Run scripts with access to the session attributes", "run [options] <script.js>..."),
		storeFlags:  storeFlags{cfg: cfg},
		ctx:         ctx,
	}
}

func (c *RunCommand) SetupFlags(fs *flag.FlagSet) {
	c.registerStoreFlags(fs)
	fs.DurationVar(&c.timeout, "timeout", 0, "Abort each script after this long (0 = no limit)")
	fs.BoolVar(&c.quiet, "q", false, "Do not report attribute changes")
}

func (c *RunCommand) Execute(args []string, stdout, stderr io.Writer) error {
	if len(args) == 0 {
		return fmt.Errorf("run requires at least one script")
	}
	s, err := c.open(stderr)
	if err != nil {
		return err
	}
	defer s.Close()

	stopCleanup := maybeStartCleanupScheduler(c.cfg, s.Backend, s.Dir, s.ID, s.Logger.Logger)
	defer stopCleanup()

	engine, err := scripting.NewEngine(c.ctx, s.Store, scripting.WithLogger(s.Logger.Logger))
	if err != nil {
		return fmt.Errorf("failed to start script engine: %w", err)
	}
	defer engine.Close()

	if !c.quiet {
		var mu sync.Mutex
		id := s.Store.AddListener(func(key, value string) {
			mu.Lock()
			defer mu.Unlock()
			_, _ = fmt.Fprintf(stdout, "%s = %s\n", key, value)
		})
		defer s.Store.RemoveListener(id)
	}

	for _, path := range args {
		if err := c.runFile(engine, path); err != nil {
			return err
		}
		s.warnIfNotPersisted(stderr)
	}
	return nil
}

func (c *RunCommand) runFile(engine *scripting.Engine, path string) error {
	ctx := c.ctx
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	return engine.RunFile(ctx, path)
}
