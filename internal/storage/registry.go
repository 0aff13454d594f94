package storage

import (
	"fmt"
	"sort"
)

// Factory opens an Area for a session.
type Factory func(sessionID string, opts Options) (Area, error)

// DefaultBackend is used when no backend is configured.
const DefaultBackend = "fs"

// BackendRegistry maps backend names to factories.
var BackendRegistry = map[string]Factory{
	"fs": func(sessionID string, opts Options) (Area, error) {
		return NewFileSystemArea(sessionID, opts)
	},
	"memory": func(sessionID string, opts Options) (Area, error) {
		return NewMemoryArea(sessionID, opts)
	},
	"sqlite": func(sessionID string, opts Options) (Area, error) {
		return OpenSQLiteArea(sessionID, opts)
	},
}

// GetBackend opens the named backend. An empty name selects DefaultBackend.
func GetBackend(backend, sessionID string, opts Options) (Area, error) {
	if backend == "" {
		backend = DefaultBackend
	}
	factory, ok := BackendRegistry[backend]
	if !ok {
		return nil, fmt.Errorf("unknown storage backend %q (available: %v)", backend, Backends())
	}
	return factory(sessionID, opts)
}

// Backends returns the registered backend names, sorted.
func Backends() []string {
	names := make([]string, 0, len(BackendRegistry))
	for name := range BackendRegistry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
