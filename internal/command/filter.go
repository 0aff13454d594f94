package command

import (
	"fmt"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// attributeEnv is the environment a -where expression is evaluated in.
type attributeEnv struct {
	Key   string `expr:"key"`
	Value string `expr:"value"`
}

// attributeFilter selects attributes with a boolean expr-lang expression,
// e.g. `key startsWith "user." && value != ""`.
type attributeFilter struct {
	program *vm.Program
}

func compileFilter(expression string) (*attributeFilter, error) {
	if expression == "" {
		return nil, nil
	}
	program, err := expr.Compile(expression, expr.Env(attributeEnv{}), expr.AsBool())
	if err != nil {
		return nil, fmt.Errorf("invalid -where expression: %w", err)
	}
	return &attributeFilter{program: program}, nil
}

// Match reports whether key/value satisfies the filter. A nil filter
// matches everything.
func (f *attributeFilter) Match(key, value string) (bool, error) {
	if f == nil {
		return true, nil
	}
	out, err := expr.Run(f.program, attributeEnv{Key: key, Value: value})
	if err != nil {
		return false, fmt.Errorf("evaluating -where for %q: %w", key, err)
	}
	return out.(bool), nil
}

// Apply returns the matching subset of items.
func (f *attributeFilter) Apply(items map[string]string) (map[string]string, error) {
	if f == nil {
		return items, nil
	}
	out := make(map[string]string, len(items))
	for k, v := range items {
		ok, err := f.Match(k, v)
		if err != nil {
			return nil, err
		}
		if ok {
			out[k] = v
		}
	}
	return out, nil
}
