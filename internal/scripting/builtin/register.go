// Package builtin registers the native modules available to harness scripts.
package builtin

import (
	"github.com/dop251/goja_nodejs/require"
	"github.com/joeycumines/truetest/internal/scripting/builtin/attrs"
)

// Prefix namespaces every native module.
const Prefix = "truetest:"

// Register adds the native modules to registry.
func Register(registry *require.Registry, attributes *attrs.Module) {
	registry.RegisterNativeModule(Prefix+"attributes", attributes.Require)
}
