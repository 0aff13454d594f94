package attributes

import (
	"sync"
)

// SetFunc handles a bulk attribute assignment.
type SetFunc func(Attributes)

// GetFunc returns a snapshot of the current attributes.
type GetFunc func() map[string]string

// Host is the well-known call surface external scripts use without holding a
// reference to the store. Handlers default to no-ops; the store installs
// itself in front of whatever is there, and forwards to it.
type Host struct {
	mu  sync.RWMutex
	set SetFunc
	get GetFunc
}

// TrueTest is the process-wide host.
var TrueTest = NewHost()

// NewHost returns a host with no-op handlers.
func NewHost() *Host {
	return &Host{}
}

// SetSessionAttributes invokes the installed setter.
func (h *Host) SetSessionAttributes(attrs Attributes) {
	set, _ := h.Handlers()
	set(attrs)
}

// GetSessionAttributes invokes the installed accessor. The result is never nil.
func (h *Host) GetSessionAttributes() map[string]string {
	_, get := h.Handlers()
	if m := get(); m != nil {
		return m
	}
	return map[string]string{}
}

// Handlers returns the current handlers, substituting no-ops for unset ones.
func (h *Host) Handlers() (SetFunc, GetFunc) {
	h.mu.RLock()
	set, get := h.set, h.get
	h.mu.RUnlock()
	if set == nil {
		set = func(Attributes) {}
	}
	if get == nil {
		get = func() map[string]string { return map[string]string{} }
	}
	return set, get
}

// Install replaces both handlers, returning a func that puts the previous
// ones back. A nil argument leaves that handler unchanged.
func (h *Host) Install(set SetFunc, get GetFunc) (restore func()) {
	h.mu.Lock()
	prevSet, prevGet := h.set, h.get
	if set != nil {
		h.set = set
	}
	if get != nil {
		h.get = get
	}
	h.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			h.mu.Lock()
			h.set, h.get = prevSet, prevGet
			h.mu.Unlock()
		})
	}
}

// Chain installs set in front of the current setter: set runs first, then
// the previous setter receives the same attributes. get replaces the
// accessor outright.
func (h *Host) Chain(set SetFunc, get GetFunc) (restore func()) {
	next, _ := h.Handlers()
	return h.Install(func(attrs Attributes) {
		set(attrs)
		next(attrs)
	}, get)
}
