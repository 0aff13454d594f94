// Package attributes implements the session attribute store: a durable,
// observable string key/value map scoped to one terminal session, plus the
// well-known TrueTest hook that lets injected scripts populate it without a
// reference to the store.
package attributes

import (
	"sort"
)

// StorageKey is the slot key the store persists its snapshot under.
const StorageKey = "trueTestSessionAttributes"

// Attribute is a single key/value pair.
type Attribute struct {
	Key   string
	Value string
}

// Attributes is an ordered list of pairs. Order is the order listeners are
// notified in; a key repeated later in the list overwrites the earlier one.
type Attributes []Attribute

// FromMap converts m to Attributes, sorted by key.
func FromMap(m map[string]string) Attributes {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make(Attributes, 0, len(keys))
	for _, k := range keys {
		out = append(out, Attribute{Key: k, Value: m[k]})
	}
	return out
}

// Map flattens a into a map. Later duplicates win.
func (a Attributes) Map() map[string]string {
	m := make(map[string]string, len(a))
	for _, attr := range a {
		m[attr.Key] = attr.Value
	}
	return m
}

// Keys returns the keys in order, duplicates included.
func (a Attributes) Keys() []string {
	keys := make([]string, len(a))
	for i, attr := range a {
		keys[i] = attr.Key
	}
	return keys
}

// Slot is the session-scoped durable storage the store flushes its snapshot
// into. storage.Area satisfies it.
type Slot interface {
	GetItem(key string) (string, bool, error)
	SetItem(key, value string) error
}
