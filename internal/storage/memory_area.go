package storage

import (
	"fmt"
	"sync"
)

// globalMemory backs every MemoryArea in the process, so two areas opened
// for the same session see the same items (as a reload would).
var globalMemory = struct {
	sync.RWMutex
	sessions map[string]*Session
}{
	sessions: make(map[string]*Session),
}

// MemoryArea is an in-process Area. It persists only for the life of the
// process.
type MemoryArea struct {
	sessionID string
	quota     int
	closed    bool
	mu        sync.Mutex
}

// NewMemoryArea returns the memory area for sessionID.
func NewMemoryArea(sessionID string, opts Options) (*MemoryArea, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("sessionID cannot be empty")
	}
	return &MemoryArea{sessionID: sessionID, quota: opts.QuotaBytes}, nil
}

func (a *MemoryArea) SessionID() string { return a.sessionID }

func (a *MemoryArea) isClosed() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.closed
}

func (a *MemoryArea) GetItem(key string) (string, bool, error) {
	if a.isClosed() {
		return "", false, ErrClosed
	}
	globalMemory.RLock()
	defer globalMemory.RUnlock()
	s, ok := globalMemory.sessions[a.sessionID]
	if !ok {
		return "", false, nil
	}
	v, ok := s.Items[key]
	return v, ok, nil
}

func (a *MemoryArea) SetItem(key, value string) error {
	if a.isClosed() {
		return ErrClosed
	}
	globalMemory.Lock()
	defer globalMemory.Unlock()
	s, ok := globalMemory.sessions[a.sessionID]
	if !ok {
		s = newSession(a.sessionID)
	}
	if err := checkQuota(a.quota, s.Items, key, value); err != nil {
		return err
	}
	next := s.clone()
	next.Items[key] = value
	globalMemory.sessions[a.sessionID] = next
	return nil
}

func (a *MemoryArea) RemoveItem(key string) error {
	if a.isClosed() {
		return ErrClosed
	}
	globalMemory.Lock()
	defer globalMemory.Unlock()
	if s, ok := globalMemory.sessions[a.sessionID]; ok {
		delete(s.Items, key)
	}
	return nil
}

func (a *MemoryArea) Keys() ([]string, error) {
	if a.isClosed() {
		return nil, ErrClosed
	}
	globalMemory.RLock()
	defer globalMemory.RUnlock()
	s, ok := globalMemory.sessions[a.sessionID]
	if !ok {
		return []string{}, nil
	}
	return sortedKeys(s.Items), nil
}

func (a *MemoryArea) Close() error {
	a.mu.Lock()
	a.closed = true
	a.mu.Unlock()
	return nil
}

// ClearAllMemorySessions drops every memory session (for tests).
func ClearAllMemorySessions() {
	globalMemory.Lock()
	globalMemory.sessions = make(map[string]*Session)
	globalMemory.Unlock()
}

var _ Area = (*MemoryArea)(nil)
