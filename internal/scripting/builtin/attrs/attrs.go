// Package attrs provides the truetest:attributes native module.
//
//	const attrs = require('truetest:attributes');
//	attrs.set('tenant', 'acme');
//	const id = attrs.addListener((key, value) => console.log(key, value));
//	attrs.removeListener(id); // or attrs.removeListener(fn)
package attrs

import (
	"log/slog"
	"sync"

	"github.com/dop251/goja"
	"github.com/joeycumines/truetest/internal/attributes"
)

// Scheduler is the part of the scripting runtime the module needs to
// deliver store notifications on the JS loop.
type Scheduler interface {
	OnLoop() bool
	RunOnLoop(func(*goja.Runtime)) bool
}

type jsListener struct {
	id attributes.ListenerID
	fn goja.Value
}

// Module binds one store to one runtime.
type Module struct {
	store  *attributes.Store
	sched  Scheduler
	logger *slog.Logger

	mu        sync.Mutex
	listeners []jsListener
}

// New returns a module bound to store. A nil logger uses slog.Default.
func New(store *attributes.Store, sched Scheduler, logger *slog.Logger) *Module {
	if logger == nil {
		logger = slog.Default()
	}
	return &Module{store: store, sched: sched, logger: logger}
}

// Close unregisters every listener the module added to the store.
func (m *Module) Close() {
	m.mu.Lock()
	ls := m.listeners
	m.listeners = nil
	m.mu.Unlock()
	for _, l := range ls {
		m.store.RemoveListener(l.id)
	}
}

func throw(vm *goja.Runtime, err error) {
	panic(vm.NewTypeError(err.Error()))
}

// Require is the require.ModuleLoader for truetest:attributes.
func (m *Module) Require(vm *goja.Runtime, module *goja.Object) {
	exports := module.Get("exports").(*goja.Object)

	// get(key: string): string | undefined
	_ = exports.Set("get", func(call goja.FunctionCall) goja.Value {
		key, err := ToKey(call.Argument(0))
		if err != nil {
			throw(vm, err)
		}
		v, ok := m.store.Get(key)
		if !ok {
			return goja.Undefined()
		}
		return vm.ToValue(v)
	})

	// set(key: string, value: string): void
	_ = exports.Set("set", func(call goja.FunctionCall) goja.Value {
		key, err := ToKey(call.Argument(0))
		if err != nil {
			throw(vm, err)
		}
		v, err := ToString(call.Argument(1))
		if err != nil {
			throw(vm, err)
		}
		m.store.Set(key, v)
		return goja.Undefined()
	})

	// setMultiple(attributes: Record<string, string>): void
	_ = exports.Set("setMultiple", func(call goja.FunctionCall) goja.Value {
		attrs, err := ToAttributes(call.Argument(0))
		if err != nil {
			throw(vm, err)
		}
		m.store.SetMultiple(attrs)
		return goja.Undefined()
	})

	// remove(key: string): void
	_ = exports.Set("remove", func(call goja.FunctionCall) goja.Value {
		key, err := ToKey(call.Argument(0))
		if err != nil {
			throw(vm, err)
		}
		m.store.Remove(key)
		return goja.Undefined()
	})

	// clear(): void
	_ = exports.Set("clear", func(goja.FunctionCall) goja.Value {
		m.store.Clear()
		return goja.Undefined()
	})

	// getAll(): Record<string, string>
	_ = exports.Set("getAll", func(goja.FunctionCall) goja.Value {
		return ToObject(vm, m.store.GetAll())
	})

	// size(): number
	_ = exports.Set("size", func(goja.FunctionCall) goja.Value {
		return vm.ToValue(m.store.Len())
	})

	// addListener(fn: (key, value) => void): number
	_ = exports.Set("addListener", func(call goja.FunctionCall) goja.Value {
		fnVal := call.Argument(0)
		fn, ok := goja.AssertFunction(fnVal)
		if !ok {
			panic(vm.NewTypeError("addListener expects a function"))
		}
		id := m.store.AddListener(m.deliver(vm, fn))
		m.mu.Lock()
		m.listeners = append(m.listeners, jsListener{id: id, fn: fnVal})
		m.mu.Unlock()
		return vm.ToValue(int64(id))
	})

	// removeListener(idOrFn: number | function): void
	_ = exports.Set("removeListener", func(call goja.FunctionCall) goja.Value {
		arg := call.Argument(0)
		_, isFn := goja.AssertFunction(arg)
		m.mu.Lock()
		for i, l := range m.listeners {
			if (isFn && l.fn.SameAs(arg)) || (!isFn && int64(l.id) == arg.ToInteger()) {
				m.listeners = append(m.listeners[:i:i], m.listeners[i+1:]...)
				m.mu.Unlock()
				m.store.RemoveListener(l.id)
				return goja.Undefined()
			}
		}
		m.mu.Unlock()
		return goja.Undefined()
	})
}

// deliver adapts a JS callback to a store Listener. Calls made on the loop
// run synchronously; mutations from other goroutines are queued onto it.
func (m *Module) deliver(vm *goja.Runtime, fn goja.Callable) attributes.Listener {
	call := func(key, value string) {
		if _, err := fn(goja.Undefined(), vm.ToValue(key), vm.ToValue(value)); err != nil {
			m.logger.Warn("attribute listener threw", "key", key, "error", err)
		}
	}
	return func(key, value string) {
		if m.sched.OnLoop() {
			call(key, value)
			return
		}
		if !m.sched.RunOnLoop(func(*goja.Runtime) { call(key, value) }) {
			m.logger.Debug("dropping attribute notification, runtime closed", "key", key)
		}
	}
}
