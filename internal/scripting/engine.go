package scripting

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/dop251/goja"
	"github.com/joeycumines/truetest/internal/attributes"
	"github.com/joeycumines/truetest/internal/scripting/builtin"
	"github.com/joeycumines/truetest/internal/scripting/builtin/attrs"
)

// Engine runs harness scripts against a store.
type Engine struct {
	rt     *Runtime
	module *attrs.Module
	logger *slog.Logger
}

// EngineOption customizes NewEngine.
type EngineOption func(*engineConfig)

type engineConfig struct {
	host   *attributes.Host
	logger *slog.Logger
}

// WithHost exposes h as TrueTest instead of attributes.TrueTest.
func WithHost(h *attributes.Host) EngineOption {
	return func(c *engineConfig) { c.host = h }
}

// WithLogger sets the engine logger.
func WithLogger(l *slog.Logger) EngineOption {
	return func(c *engineConfig) { c.logger = l }
}

// NewEngine starts a runtime, registers truetest:attributes bound to store
// and installs the TrueTest global.
func NewEngine(ctx context.Context, store *attributes.Store, opts ...EngineOption) (*Engine, error) {
	cfg := engineConfig{host: attributes.TrueTest, logger: slog.Default()}
	for _, opt := range opts {
		opt(&cfg)
	}

	rt, err := NewRuntime(ctx, nil)
	if err != nil {
		return nil, err
	}
	module := attrs.New(store, rt, cfg.logger)
	builtin.Register(rt.Registry(), module)

	if err := rt.RunOnLoopSync(func(vm *goja.Runtime) error {
		return InstallHostObject(vm, cfg.host)
	}); err != nil {
		_ = rt.Close()
		return nil, err
	}

	return &Engine{rt: rt, module: module, logger: cfg.logger}, nil
}

// Runtime returns the engine's runtime.
func (e *Engine) Runtime() *Runtime { return e.rt }

// RunScript runs source to completion, including timers and promise
// callbacks it schedules.
func (e *Engine) RunScript(ctx context.Context, name, source string) error {
	e.logger.Debug("running script", "name", name)
	return e.rt.RunToCompletion(ctx, func(vm *goja.Runtime) error {
		return runProgram(vm, name, source)
	})
}

// RunFile reads path and runs it with RunScript.
func (e *Engine) RunFile(ctx context.Context, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read script: %w", err)
	}
	return e.RunScript(ctx, path, string(data))
}

// Close detaches the engine's listeners from the store and stops the runtime.
func (e *Engine) Close() error {
	e.module.Close()
	return e.rt.Close()
}
