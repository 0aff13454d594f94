package attributes

import (
	"log/slog"
	"maps"
	"sync"
)

// Listener observes a successful Set or SetMultiple, once per key.
type Listener func(key, value string)

// ListenerID identifies a registered Listener.
type ListenerID int

type listenerEntry struct {
	id ListenerID
	fn Listener
}

// Store is the session attribute store. Obtain it with Instance.
//
// Each mutation holds the write lock across the in-memory update, the flush
// and the notifications, so notifications for one call are never interleaved
// with another call. Reads take only the map lock: a listener may call Get or
// GetAll from its callback and sees the new value.
//
// Remove and Clear persist but do not notify listeners.
type Store struct {
	writeMu reentrantMutex

	mu      sync.RWMutex
	items   map[string]string
	lastErr error

	listenersMu sync.Mutex
	listeners   []listenerEntry
	nextID      ListenerID

	slot    Slot
	logger  *slog.Logger
	restore func()
}

// newStore installs the host hook, then loads the slot. The write lock is
// held across both, so hook calls arriving in between apply on top of the
// loaded attributes. Storage failures are logged and leave the store empty.
func newStore(cfg config) *Store {
	s := &Store{
		items:  make(map[string]string),
		slot:   cfg.slot,
		logger: cfg.logger,
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	s.restore = cfg.host.Chain(s.SetMultiple, s.GetAll)
	s.load()
	return s
}

func (s *Store) load() {
	raw, ok, err := s.slot.GetItem(StorageKey)
	if err != nil {
		s.logger.Warn("failed to read session attributes, starting empty", "key", StorageKey, "error", err)
		return
	}
	if !ok {
		return
	}
	items, err := decodeSnapshot(raw)
	if err != nil {
		s.logger.Warn("discarding unreadable session attributes", "key", StorageKey, "error", err)
		return
	}
	s.mu.Lock()
	s.items = items
	s.mu.Unlock()
}

// flush writes the snapshot. Callers hold writeMu.
func (s *Store) flush(snapshot string) {
	err := s.slot.SetItem(StorageKey, snapshot)
	if err != nil {
		s.logger.Warn("failed to persist session attributes", "key", StorageKey, "error", err)
	}
	s.mu.Lock()
	s.lastErr = err
	s.mu.Unlock()
}

// snapshotLocked encodes the current items. Callers hold mu.
func (s *Store) snapshotLocked() string {
	snap, err := encodeSnapshot(s.items)
	if err != nil {
		// map[string]string always encodes
		panic(err)
	}
	return snap
}

// Get returns the value for key and whether it is present.
func (s *Store) Get(key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.items[key]
	return v, ok
}

// Set stores value under key, persists, then notifies listeners.
func (s *Store) Set(key, value string) {
	s.SetMultiple(Attributes{{Key: key, Value: value}})
}

// SetMultiple applies every pair, persists once, then notifies listeners
// once per pair in order. An empty list still persists.
func (s *Store) SetMultiple(attrs Attributes) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	for _, a := range attrs {
		s.items[a.Key] = a.Value
	}
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.flush(snap)
	s.notify(attrs)
}

// Remove deletes key if present and persists. Listeners are not notified.
func (s *Store) Remove(key string) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	delete(s.items, key)
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.flush(snap)
}

// Clear removes every key and persists an empty snapshot. Listeners are not
// notified.
func (s *Store) Clear() {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	s.items = make(map[string]string)
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.flush(snap)
}

// GetAll returns a copy of every attribute.
func (s *Store) GetAll() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return maps.Clone(s.items)
}

// Len returns the number of attributes.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// LastPersistError returns the error from the most recent flush, or nil if it
// succeeded. Mutations never fail; callers that want to tell the user a save
// did not stick can check this afterwards.
func (s *Store) LastPersistError() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastErr
}

// AddListener registers fn and returns its handle.
func (s *Store) AddListener(fn Listener) ListenerID {
	s.listenersMu.Lock()
	defer s.listenersMu.Unlock()
	s.nextID++
	s.listeners = append(s.listeners, listenerEntry{id: s.nextID, fn: fn})
	return s.nextID
}

// RemoveListener unregisters id. Unknown ids are ignored.
func (s *Store) RemoveListener(id ListenerID) {
	s.listenersMu.Lock()
	defer s.listenersMu.Unlock()
	for i, l := range s.listeners {
		if l.id == id {
			s.listeners = append(s.listeners[:i:i], s.listeners[i+1:]...)
			return
		}
	}
}

// notify calls each listener for each pair. The listener list is copied so
// callbacks may add or remove listeners.
func (s *Store) notify(attrs Attributes) {
	s.listenersMu.Lock()
	listeners := make([]listenerEntry, len(s.listeners))
	copy(listeners, s.listeners)
	s.listenersMu.Unlock()

	for _, a := range attrs {
		for _, l := range listeners {
			l.fn(a.Key, a.Value)
		}
	}
}

// close uninstalls the host hook.
func (s *Store) close() {
	if s.restore != nil {
		s.restore()
	}
}
