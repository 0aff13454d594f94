package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// SessionInfo describes an fs session document found on disk.
type SessionInfo struct {
	ID        string    `json:"id"`
	Path      string    `json:"path"`
	LockPath  string    `json:"lockPath"`
	Size      int64     `json:"size"`
	UpdatedAt time.Time `json:"updatedAt"`
	// Active is true when another handle holds the session lock.
	Active bool `json:"active"`
}

// ScanSessions lists the fs sessions in dir (the default session directory
// when dir is empty), oldest first. A missing directory yields no sessions.
func ScanSessions(dir string) ([]SessionInfo, error) {
	dir, err := resolveDir(dir)
	if err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []SessionInfo{}, nil
		}
		return nil, fmt.Errorf("failed to read sessions directory %q: %w", dir, err)
	}

	out := []SessionInfo{}
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, sessionFileSuffix) {
			continue
		}
		id := strings.TrimSuffix(name, sessionFileSuffix)
		fi, err := e.Info()
		if err != nil {
			continue
		}
		info := SessionInfo{
			ID:        id,
			Path:      filepath.Join(dir, name),
			LockPath:  SessionLockFilePath(dir, id),
			Size:      fi.Size(),
			UpdatedAt: fi.ModTime(),
		}
		// Probe the lock. The artifact is left in place when the probe
		// succeeds; only the owner or the cleaner removes it.
		if f, ok, err := AcquireLockHandle(info.LockPath); err == nil {
			if ok {
				_ = f.Close()
			}
			info.Active = !ok
		}
		out = append(out, info)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].UpdatedAt.Before(out[j].UpdatedAt)
	})
	return out, nil
}
