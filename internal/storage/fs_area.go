package storage

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"
)

// FileSystemArea stores a session as {dir}/{id}.session.json. It holds an
// exclusive lock on {dir}/{id}.session.lock for its whole lifetime, so at
// most one process writes a given session at a time.
type FileSystemArea struct {
	mu        sync.Mutex
	sessionID string
	path      string
	quota     int
	lockFile  *os.File
	logger    *slog.Logger
}

// NewFileSystemArea opens the fs area for sessionID, creating the session
// directory if needed and taking the session lock.
func NewFileSystemArea(sessionID string, opts Options) (*FileSystemArea, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("sessionID cannot be empty")
	}
	dir, err := resolveDir(opts.Dir)
	if err != nil {
		return nil, fmt.Errorf("failed to get session directory: %w", err)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create session directory: %w", err)
	}

	lockFile, err := acquireFileLock(SessionLockFilePath(dir, sessionID))
	if err != nil {
		return nil, fmt.Errorf("failed to acquire session lock: %w", err)
	}

	return &FileSystemArea{
		sessionID: sessionID,
		path:      SessionFilePath(dir, sessionID),
		quota:     opts.QuotaBytes,
		lockFile:  lockFile,
		logger:    opts.logger(),
	}, nil
}

func (a *FileSystemArea) SessionID() string { return a.sessionID }

// Path returns the session document path.
func (a *FileSystemArea) Path() string { return a.path }

// load reads the session document. A missing file yields (nil, nil).
func (a *FileSystemArea) load() (*Session, error) {
	data, err := os.ReadFile(a.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read session file: %w", err)
	}
	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	if s.Items == nil {
		s.Items = make(map[string]string)
	}
	return &s, nil
}

// loadForWrite is load, except an unreadable document is replaced by a fresh
// one rather than blocking every future write.
func (a *FileSystemArea) loadForWrite() *Session {
	s, err := a.load()
	if err != nil {
		a.logger.Warn("discarding unreadable session document", "session", a.sessionID, "path", a.path, "error", err)
		return newSession(a.sessionID)
	}
	if s == nil {
		return newSession(a.sessionID)
	}
	if s.Version != CurrentSchemaVersion {
		a.logger.Warn("session schema version mismatch, starting fresh", "session", a.sessionID, "want", CurrentSchemaVersion, "got", s.Version)
		return newSession(a.sessionID)
	}
	return s
}

func (a *FileSystemArea) save(s *Session) error {
	s.Version = CurrentSchemaVersion
	s.SessionID = a.sessionID
	s.UpdatedAt = time.Now()
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}
	if err := AtomicWriteFile(a.path, data, 0644); err != nil {
		return fmt.Errorf("failed to write session file: %w", err)
	}
	return nil
}

func (a *FileSystemArea) GetItem(key string) (string, bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.lockFile == nil {
		return "", false, ErrClosed
	}
	s, err := a.load()
	if err != nil || s == nil {
		return "", false, err
	}
	v, ok := s.Items[key]
	return v, ok, nil
}

func (a *FileSystemArea) SetItem(key, value string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.lockFile == nil {
		return ErrClosed
	}
	s := a.loadForWrite()
	if err := checkQuota(a.quota, s.Items, key, value); err != nil {
		return err
	}
	s.Items[key] = value
	return a.save(s)
}

func (a *FileSystemArea) RemoveItem(key string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.lockFile == nil {
		return ErrClosed
	}
	s := a.loadForWrite()
	if _, ok := s.Items[key]; !ok {
		return nil
	}
	delete(s.Items, key)
	return a.save(s)
}

func (a *FileSystemArea) Keys() ([]string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.lockFile == nil {
		return nil, ErrClosed
	}
	s, err := a.load()
	if err != nil || s == nil {
		return nil, err
	}
	return sortedKeys(s.Items), nil
}

// Close releases the session lock. The session document stays on disk.
func (a *FileSystemArea) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.lockFile == nil {
		return nil
	}
	err := releaseFileLock(a.lockFile)
	a.lockFile = nil
	if err != nil {
		return fmt.Errorf("failed to release session lock: %w", err)
	}
	return nil
}

var _ Area = (*FileSystemArea)(nil)
