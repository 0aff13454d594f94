package attributes

import (
	"errors"
	"log/slog"
	"sync"
)

// ErrAlreadyInitialized is returned by Configure once Instance has built the
// store.
var ErrAlreadyInitialized = errors.New("attributes: store already initialized")

// Option customizes the store built by Instance.
type Option func(*config)

type config struct {
	slot   Slot
	host   *Host
	logger *slog.Logger
}

// WithHost installs the hook on h instead of TrueTest.
func WithHost(h *Host) Option {
	return func(c *config) { c.host = h }
}

// WithLogger sets the logger storage failures are reported to.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) { c.logger = l }
}

func newConfig(slot Slot, opts ...Option) config {
	c := config{slot: slot}
	for _, opt := range opts {
		opt(&c)
	}
	if c.slot == nil {
		c.slot = NewMemorySlot()
	}
	if c.host == nil {
		c.host = TrueTest
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	return c
}

var (
	instanceMu sync.Mutex
	instance   *Store
	pending    *config
)

// Configure sets the slot and options used when Instance first builds the
// store.
func Configure(slot Slot, opts ...Option) error {
	if slot == nil {
		return errors.New("attributes: slot cannot be nil")
	}
	instanceMu.Lock()
	defer instanceMu.Unlock()
	if instance != nil {
		return ErrAlreadyInitialized
	}
	c := newConfig(slot, opts...)
	pending = &c
	return nil
}

// Instance returns the session's store, building it on first call. Without a
// prior Configure it is backed by an in-process memory slot.
func Instance() *Store {
	instanceMu.Lock()
	defer instanceMu.Unlock()
	if instance == nil {
		c := newConfig(nil)
		if pending != nil {
			c = *pending
		}
		instance = newStore(c)
	}
	return instance
}

// ResetForTests discards the store and any pending configuration, and
// restores the host hook the store replaced.
// This should only be used in tests.
func ResetForTests() {
	instanceMu.Lock()
	defer instanceMu.Unlock()
	if instance != nil {
		instance.close()
	}
	instance = nil
	pending = nil
}
