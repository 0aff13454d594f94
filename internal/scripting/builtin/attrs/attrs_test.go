package attrs

import (
	"testing"

	"github.com/dop251/goja"
	"github.com/dop251/goja_nodejs/require"
	"github.com/joeycumines/truetest/internal/attributes"
	"github.com/stretchr/testify/assert"
	testrequire "github.com/stretchr/testify/require"
)

// onLoop is a Scheduler for a VM driven directly by the test goroutine.
type onLoop struct{ queued []func(*goja.Runtime) }

func (s *onLoop) OnLoop() bool { return true }
func (s *onLoop) RunOnLoop(fn func(*goja.Runtime)) bool {
	s.queued = append(s.queued, fn)
	return true
}

func setup(t *testing.T) (*goja.Runtime, *attributes.Store, *Module) {
	t.Helper()
	attributes.ResetForTests()
	t.Cleanup(attributes.ResetForTests)
	testrequire.NoError(t, attributes.Configure(attributes.NewMemorySlot(), attributes.WithHost(attributes.NewHost())))
	store := attributes.Instance()

	m := New(store, &onLoop{}, nil)
	t.Cleanup(m.Close)

	vm := goja.New()
	registry := require.NewRegistry()
	registry.RegisterNativeModule("truetest:attributes", m.Require)
	registry.Enable(vm)
	_, err := vm.RunString(`var attrs = require('truetest:attributes')`)
	testrequire.NoError(t, err)
	return vm, store, m
}

func run(t *testing.T, vm *goja.Runtime, src string) goja.Value {
	t.Helper()
	v, err := vm.RunString(src)
	testrequire.NoError(t, err)
	return v
}

func TestModule_GetSet(t *testing.T) {
	vm, store, _ := setup(t)

	assert.True(t, goja.IsUndefined(run(t, vm, `attrs.get("missing")`)))
	run(t, vm, `attrs.set("k", "v")`)
	assert.Equal(t, "v", run(t, vm, `attrs.get("k")`).String())

	v, _ := store.Get("k")
	assert.Equal(t, "v", v)

	run(t, vm, `attrs.set("n", 42)`)
	assert.Equal(t, "42", run(t, vm, `attrs.get("n")`).String())
}

func TestModule_SetMultipleOrderAndGetAll(t *testing.T) {
	vm, _, _ := setup(t)
	run(t, vm, `
		var seen = [];
		attrs.addListener(function (k, v) { seen.push(k + "=" + v); });
		attrs.setMultiple({b: "2", a: "1"});
	`)
	assert.Equal(t, `["b=2","a=1"]`, run(t, vm, `JSON.stringify(seen)`).String())
	assert.Equal(t, `{"a":"1","b":"2"}`, run(t, vm, `JSON.stringify(attrs.getAll())`).String())
	assert.Equal(t, int64(2), run(t, vm, `attrs.size()`).ToInteger())
}

func TestModule_RemoveAndClearDoNotNotify(t *testing.T) {
	vm, store, _ := setup(t)
	run(t, vm, `
		var seen = 0;
		attrs.addListener(function () { seen++; });
		attrs.setMultiple({a: "1", b: "2"});
		attrs.remove("a");
		attrs.clear();
		attrs.clear();
	`)
	assert.Equal(t, int64(2), run(t, vm, `seen`).ToInteger())
	assert.Empty(t, store.GetAll())
}

func TestModule_RemoveListener(t *testing.T) {
	vm, _, _ := setup(t)
	run(t, vm, `
		var a = 0, b = 0;
		function fa() { a++; }
		var idB = attrs.addListener(function () { b++; });
		attrs.addListener(fa);
		attrs.removeListener(12345);
		attrs.removeListener(function () {});
		attrs.set("x", "1");
		attrs.removeListener(fa);
		attrs.removeListener(idB);
		attrs.set("x", "2");
	`)
	assert.Equal(t, int64(1), run(t, vm, `a`).ToInteger())
	assert.Equal(t, int64(1), run(t, vm, `b`).ToInteger())
}

func TestModule_ListenerSeesValue(t *testing.T) {
	vm, _, _ := setup(t)
	run(t, vm, `
		var observed;
		attrs.addListener(function (k) { observed = attrs.get(k); });
		attrs.set("k", "fresh");
	`)
	assert.Equal(t, "fresh", run(t, vm, `observed`).String())
}

func TestModule_TypeErrors(t *testing.T) {
	vm, store, _ := setup(t)
	for _, src := range []string{
		`attrs.set("k", {})`,
		`attrs.set("k", undefined)`,
		`attrs.set(undefined, "v")`,
		`attrs.set(null, "v")`,
		`attrs.set({}, "v")`,
		`attrs.get()`,
		`attrs.remove(undefined)`,
		`attrs.setMultiple(null)`,
		`attrs.setMultiple({a: [1]})`,
		`attrs.addListener("nope")`,
	} {
		got := run(t, vm, `try { `+src+`; "ok" } catch (e) { e instanceof TypeError ? "TypeError" : String(e) }`)
		assert.Equal(t, "TypeError", got.String(), src)
	}
	assert.Empty(t, store.GetAll())
}

func TestModule_CloseDetachesListeners(t *testing.T) {
	vm, store, m := setup(t)
	run(t, vm, `var n = 0; attrs.addListener(function () { n++; });`)
	m.Close()
	store.Set("k", "v")
	assert.Equal(t, int64(0), run(t, vm, `n`).ToInteger())
}

func TestModule_OffLoopDeliveryIsQueued(t *testing.T) {
	attributes.ResetForTests()
	t.Cleanup(attributes.ResetForTests)
	testrequire.NoError(t, attributes.Configure(attributes.NewMemorySlot(), attributes.WithHost(attributes.NewHost())))
	store := attributes.Instance()

	sched := &offLoop{}
	m := New(store, sched, nil)
	defer m.Close()

	vm := goja.New()
	registry := require.NewRegistry()
	registry.RegisterNativeModule("truetest:attributes", m.Require)
	registry.Enable(vm)
	_, err := vm.RunString(`var seen = []; require('truetest:attributes').addListener(function (k) { seen.push(k); });`)
	testrequire.NoError(t, err)

	store.Set("k", "v")
	testrequire.Len(t, sched.queued, 1)
	assert.Equal(t, `[]`, run(t, vm, `JSON.stringify(seen)`).String())

	sched.queued[0](vm)
	assert.Equal(t, `["k"]`, run(t, vm, `JSON.stringify(seen)`).String())
}

type offLoop struct{ queued []func(*goja.Runtime) }

func (s *offLoop) OnLoop() bool { return false }
func (s *offLoop) RunOnLoop(fn func(*goja.Runtime)) bool {
	s.queued = append(s.queued, fn)
	return true
}

func TestToAttributes(t *testing.T) {
	vm := goja.New()
	v, err := vm.RunString(`({b: "x", a: 1.5, c: false})`)
	testrequire.NoError(t, err)

	got, err := ToAttributes(v)
	testrequire.NoError(t, err)
	assert.Equal(t, attributes.Attributes{{Key: "b", Value: "x"}, {Key: "a", Value: "1.5"}, {Key: "c", Value: "false"}}, got)

	_, err = ToAttributes(goja.Undefined())
	assert.Error(t, err)
}
