package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/joeycumines/truetest/internal/command"
	"github.com/joeycumines/truetest/internal/config"
)

var version = "0.1.0"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRegistry(ctx context.Context, cfg *config.Config, configPath string) (*command.Registry, *command.HelpCommand) {
	registry := command.NewRegistry()
	help := command.NewHelpCommand(registry)
	registry.Register(help)
	registry.Register(command.NewVersionCommand(version))
	registry.Register(command.NewConfigCommand(cfg, configPath))
	registry.Register(command.NewGetCommand(cfg))
	registry.Register(command.NewSetCommand(cfg))
	registry.Register(command.NewRemoveCommand(cfg))
	registry.Register(command.NewClearCommand(cfg))
	registry.Register(command.NewListCommand(cfg))
	registry.Register(command.NewSeedCommand(cfg))
	registry.Register(command.NewImportCommand(cfg))
	registry.Register(command.NewExportCommand(cfg))
	registry.Register(command.NewRunCommand(ctx, cfg))
	registry.Register(command.NewSessionCommand(cfg))
	return registry, help
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	cfg := config.NewConfig()
	configPath, err := config.GetConfigPath()
	if err == nil {
		if loaded, err := config.LoadFromPath(configPath); err != nil {
			_, _ = fmt.Fprintf(stderr, "Warning: ignoring configuration: %v\n", err)
		} else {
			cfg = loaded
		}
	} else {
		configPath = ""
	}

	registry, help := newRegistry(ctx, cfg, configPath)

	if len(args) == 0 || args[0] == "-h" || args[0] == "--help" {
		return help.Execute(nil, stdout, stderr)
	}

	cmd, err := registry.Get(args[0])
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Unknown command: %s\n", args[0])
		_, _ = fmt.Fprintln(stderr, "Use 'truetest help' to see available commands.")
		return err
	}

	fs := flag.NewFlagSet(cmd.Name(), flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		_, _ = fmt.Fprintf(stderr, "Usage: truetest %s\n\n%s\n\nOptions:\n", cmd.Usage(), cmd.Description())
		fs.PrintDefaults()
	}
	cmd.SetupFlags(fs)
	if err := fs.Parse(args[1:]); err != nil {
		if err == flag.ErrHelp {
			return nil
		}
		return err
	}
	return cmd.Execute(fs.Args(), stdout, stderr)
}
