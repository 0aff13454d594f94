// Package scripting hosts injected JavaScript harness scripts. Scripts see the
// well-known TrueTest global and the truetest:attributes module, both backed
// by the session attribute store.
package scripting

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dop251/goja"
	"github.com/dop251/goja_nodejs/eventloop"
	"github.com/dop251/goja_nodejs/require"
	"github.com/joeycumines/truetest/internal/goroutineid"
)

// DefaultSyncTimeout bounds RunOnLoopSync.
const DefaultSyncTimeout = 5 * time.Second

// Runtime owns a goja VM and the event loop that serializes access to it.
// goja.Runtime is not goroutine safe: every VM operation goes through
// RunOnLoop, RunOnLoopSync, TryRunOnLoopSync or RunToCompletion.
type Runtime struct {
	loop     *eventloop.EventLoop
	registry *require.Registry

	// loopID is the goroutine currently driving the loop.
	loopID atomic.Int64

	// runMu serializes RunToCompletion, which moves the loop between goroutines.
	runMu sync.Mutex

	mu      sync.RWMutex
	timeout time.Duration
	stopped bool

	ctx    context.Context
	cancel context.CancelFunc
}

// NewRuntime starts an event loop in the background. Cancelling ctx closes
// the runtime. A nil registry gets a fresh one.
func NewRuntime(ctx context.Context, registry *require.Registry) (*Runtime, error) {
	if registry == nil {
		registry = require.NewRegistry()
	}

	loop := eventloop.NewEventLoop(
		eventloop.WithRegistry(registry),
		eventloop.EnableConsole(true),
	)

	lifeCtx, cancel := context.WithCancel(context.Background())
	rt := &Runtime{
		loop:     loop,
		registry: registry,
		timeout:  DefaultSyncTimeout,
		ctx:      lifeCtx,
		cancel:   cancel,
	}

	loop.Start()
	if err := rt.captureLoopID(); err != nil {
		cancel()
		loop.Stop()
		return nil, fmt.Errorf("failed to initialize runtime: %w", err)
	}

	if ctx.Done() != nil {
		context.AfterFunc(ctx, func() { _ = rt.Close() })
	}
	return rt, nil
}

func (rt *Runtime) captureLoopID() error {
	done := make(chan struct{})
	if !rt.loop.RunOnLoop(func(*goja.Runtime) {
		rt.loopID.Store(goroutineid.Get())
		close(done)
	}) {
		return errors.New("event loop not running")
	}
	<-done
	return nil
}

// Registry returns the require registry native modules are registered on.
func (rt *Runtime) Registry() *require.Registry { return rt.registry }

// Close stops the loop. It is safe to call more than once.
func (rt *Runtime) Close() error {
	rt.mu.Lock()
	if rt.stopped {
		rt.mu.Unlock()
		return nil
	}
	rt.stopped = true
	rt.mu.Unlock()

	rt.cancel()
	rt.loop.Stop()
	return nil
}

// Done is closed once the runtime is closed.
func (rt *Runtime) Done() <-chan struct{} { return rt.ctx.Done() }

// IsRunning reports whether the runtime has not been closed.
func (rt *Runtime) IsRunning() bool {
	rt.mu.RLock()
	defer rt.mu.RUnlock()
	return !rt.stopped
}

// SetTimeout sets the RunOnLoopSync timeout; 0 waits forever.
func (rt *Runtime) SetTimeout(d time.Duration) {
	rt.mu.Lock()
	rt.timeout = d
	rt.mu.Unlock()
}

// OnLoop reports whether the caller is the goroutine driving the loop.
func (rt *Runtime) OnLoop() bool {
	id := rt.loopID.Load()
	return id != 0 && id == goroutineid.Get()
}

// RunOnLoop schedules fn on the loop. It returns false if the runtime is
// closed.
func (rt *Runtime) RunOnLoop(fn func(*goja.Runtime)) bool {
	if !rt.IsRunning() {
		return false
	}
	return rt.loop.RunOnLoop(fn)
}

// RunOnLoopSync runs fn on the loop and waits for it, up to the timeout.
// Calling it from the loop goroutine deadlocks; use TryRunOnLoopSync there.
func (rt *Runtime) RunOnLoopSync(fn func(*goja.Runtime) error) error {
	rt.mu.RLock()
	stopped, timeout := rt.stopped, rt.timeout
	rt.mu.RUnlock()
	if stopped {
		return errors.New("event loop not running")
	}

	errCh := make(chan error, 1)
	if !rt.loop.RunOnLoop(func(vm *goja.Runtime) { errCh <- fn(vm) }) {
		return errors.New("event loop not running")
	}

	var timeoutCh <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		timeoutCh = timer.C
	}
	select {
	case err := <-errCh:
		return err
	case <-rt.Done():
		return errors.New("runtime stopped before completion")
	case <-timeoutCh:
		return fmt.Errorf("operation timed out after %v", timeout)
	}
}

// TryRunOnLoopSync runs fn directly with vm when called on the loop
// goroutine, otherwise like RunOnLoopSync.
func (rt *Runtime) TryRunOnLoopSync(vm *goja.Runtime, fn func(*goja.Runtime) error) error {
	if !rt.IsRunning() {
		return errors.New("event loop not running")
	}
	if vm != nil && rt.OnLoop() {
		return fn(vm)
	}
	return rt.RunOnLoopSync(fn)
}

// RunToCompletion runs fn on the calling goroutine and keeps driving the
// loop there until no timers or scheduled jobs remain, then hands the loop
// back to the background goroutine. Cancelling ctx interrupts the script and
// stops waiting.
func (rt *Runtime) RunToCompletion(ctx context.Context, fn func(*goja.Runtime) error) error {
	rt.runMu.Lock()
	defer rt.runMu.Unlock()
	if !rt.IsRunning() {
		return errors.New("event loop not running")
	}

	rt.loop.Stop()
	defer func() {
		if rt.IsRunning() {
			rt.loop.Start()
			_ = rt.captureLoopID()
		}
	}()

	var vmRef atomic.Pointer[goja.Runtime]
	stop := context.AfterFunc(ctx, func() {
		if vm := vmRef.Load(); vm != nil {
			vm.Interrupt(ctx.Err())
		}
		rt.loop.StopNoWait()
	})
	defer stop()

	var err error
	rt.loop.Run(func(vm *goja.Runtime) {
		rt.loopID.Store(goroutineid.Get())
		vmRef.Store(vm)
		if ctx.Err() != nil {
			err = ctx.Err()
			return
		}
		err = fn(vm)
	})
	rt.loopID.Store(0)
	if vm := vmRef.Load(); vm != nil {
		vm.ClearInterrupt()
	}

	if err == nil && ctx.Err() != nil {
		err = ctx.Err()
	}
	return err
}

// LoadScript compiles and runs code on the loop without waiting for timers.
func (rt *Runtime) LoadScript(name, code string) error {
	return rt.RunOnLoopSync(func(vm *goja.Runtime) error {
		return runProgram(vm, name, code)
	})
}

func runProgram(vm *goja.Runtime, name, code string) error {
	prg, err := goja.Compile(name, code, false)
	if err != nil {
		return fmt.Errorf("failed to compile %s: %w", name, err)
	}
	if _, err := vm.RunProgram(prg); err != nil {
		return fmt.Errorf("failed to run %s: %w", name, err)
	}
	return nil
}
