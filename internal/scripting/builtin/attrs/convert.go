package attrs

import (
	"fmt"
	"sort"

	"github.com/dop251/goja"
	"github.com/joeycumines/truetest/internal/attributes"
)

// ToString converts an attribute value. Strings pass through; numbers,
// booleans and bigints use their JS string form. Anything else (objects,
// arrays, functions, symbols, null, undefined) is rejected.
func ToString(v goja.Value) (string, error) {
	return primitiveString("value", v)
}

// ToKey converts an attribute key under the same rules as ToString.
func ToKey(v goja.Value) (string, error) {
	return primitiveString("key", v)
}

func primitiveString(what string, v goja.Value) (string, error) {
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return "", fmt.Errorf("%s must be a string, got %v", what, v)
	}
	switch v.(type) {
	case *goja.Object:
		return "", fmt.Errorf("%s must be a string, got object", what)
	case *goja.Symbol:
		return "", fmt.Errorf("%s must be a string, got symbol", what)
	}
	return v.String(), nil
}

// ToAttributes reads the own enumerable properties of a plain object in JS
// property order.
func ToAttributes(v goja.Value) (attributes.Attributes, error) {
	obj, ok := v.(*goja.Object)
	if !ok || obj == nil {
		return nil, fmt.Errorf("attributes must be an object")
	}
	if obj.ClassName() == "Array" {
		return nil, fmt.Errorf("attributes must be an object, got array")
	}
	if _, isFn := goja.AssertFunction(obj); isFn {
		return nil, fmt.Errorf("attributes must be an object, got function")
	}
	keys := obj.Keys()
	out := make(attributes.Attributes, 0, len(keys))
	for _, k := range keys {
		s, err := ToString(obj.Get(k))
		if err != nil {
			return nil, fmt.Errorf("attribute %q: %w", k, err)
		}
		out = append(out, attributes.Attribute{Key: k, Value: s})
	}
	return out, nil
}

// ToObject builds a JS object from m with keys in sorted order.
func ToObject(vm *goja.Runtime, m map[string]string) *goja.Object {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	obj := vm.NewObject()
	for _, k := range keys {
		_ = obj.Set(k, m[k])
	}
	return obj
}
