package scripting

import (
	"errors"
	"fmt"

	"github.com/dop251/goja"
	"github.com/joeycumines/truetest/internal/attributes"
	"github.com/joeycumines/truetest/internal/scripting/builtin/attrs"
)

// HostObjectName is the global scripts reach the attribute hook through.
const HostObjectName = "TrueTest"

// InstallHostObject puts setSessionAttributes and getSessionAttributes on
// the global TrueTest object, creating it if absent. A setSessionAttributes
// already defined by a script is kept: the installed function hands the
// attributes to host first, then calls the previous function with the same
// arguments. Must run on the loop.
func InstallHostObject(vm *goja.Runtime, host *attributes.Host) error {
	var obj *goja.Object
	switch existing := vm.Get(HostObjectName); {
	case existing == nil || goja.IsUndefined(existing) || goja.IsNull(existing):
		obj = vm.NewObject()
		if err := vm.Set(HostObjectName, obj); err != nil {
			return fmt.Errorf("failed to create %s: %w", HostObjectName, err)
		}
	default:
		o, ok := existing.(*goja.Object)
		if !ok {
			return fmt.Errorf("global %s is not an object", HostObjectName)
		}
		obj = o
	}

	prev, hasPrev := goja.AssertFunction(obj.Get("setSessionAttributes"))

	set := func(call goja.FunctionCall) goja.Value {
		a, err := attrs.ToAttributes(call.Argument(0))
		if err != nil {
			panic(vm.NewTypeError("setSessionAttributes: " + err.Error()))
		}
		host.SetSessionAttributes(a)
		if hasPrev {
			if _, err := prev(call.This, call.Arguments...); err != nil {
				rethrow(vm, err)
			}
		}
		return goja.Undefined()
	}
	get := func(goja.FunctionCall) goja.Value {
		return attrs.ToObject(vm, host.GetSessionAttributes())
	}

	if err := obj.Set("setSessionAttributes", set); err != nil {
		return fmt.Errorf("failed to install setSessionAttributes: %w", err)
	}
	if err := obj.Set("getSessionAttributes", get); err != nil {
		return fmt.Errorf("failed to install getSessionAttributes: %w", err)
	}
	return nil
}

// rethrow propagates an error from a JS call back into JS unchanged.
func rethrow(vm *goja.Runtime, err error) {
	var ex *goja.Exception
	if errors.As(err, &ex) {
		panic(ex.Value())
	}
	panic(vm.NewGoError(err))
}
