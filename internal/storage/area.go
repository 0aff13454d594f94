// Package storage provides session-scoped durable key/value storage areas.
//
// An Area behaves like a browser's sessionStorage: string items, scoped to a
// single session identifier, surviving process restarts until the session is
// cleaned up. Every write replaces the whole persisted document for the
// session; there is no incremental format.
package storage

import (
	"errors"
	"log/slog"
)

var (
	// ErrQuotaExceeded is returned by SetItem when the write would push the
	// session's items past Options.QuotaBytes.
	ErrQuotaExceeded = errors.New("storage quota exceeded")

	// ErrClosed is returned by operations on an Area after Close.
	ErrClosed = errors.New("storage area is closed")
)

// Area is a session-scoped string item store.
type Area interface {
	// SessionID returns the session this area is bound to.
	SessionID() string

	// GetItem returns the value stored under key. The bool is false if the
	// key is not present; that is not an error.
	GetItem(key string) (string, bool, error)

	// SetItem stores value under key, replacing any previous value.
	SetItem(key, value string) error

	// RemoveItem deletes key. Removing a missing key is not an error.
	RemoveItem(key string) error

	// Keys returns the stored keys in sorted order.
	Keys() ([]string, error)

	// Close releases any resources (locks, database handles) held by the area.
	// It is safe to call more than once.
	Close() error
}

// Options configure backend construction.
type Options struct {
	// Dir overrides the directory sessions are stored in. Empty means the
	// default session directory.
	Dir string

	// QuotaBytes caps the summed length of all keys and values for a single
	// session. Zero or negative disables the check.
	QuotaBytes int

	// Logger receives warnings about discarded session documents. Nil means
	// slog.Default.
	Logger *slog.Logger
}

func (o Options) logger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return slog.Default()
}

// itemsSize is the quota measure: bytes of every key plus every value.
func itemsSize(items map[string]string) int {
	var n int
	for k, v := range items {
		n += len(k) + len(v)
	}
	return n
}

// checkQuota reports ErrQuotaExceeded if items, with key set to value, would
// exceed quota.
func checkQuota(quota int, items map[string]string, key, value string) error {
	if quota <= 0 {
		return nil
	}
	size := itemsSize(items)
	if old, ok := items[key]; ok {
		size -= len(key) + len(old)
	}
	size += len(key) + len(value)
	if size > quota {
		return ErrQuotaExceeded
	}
	return nil
}
