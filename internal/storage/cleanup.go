package storage

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// defaultMinOrphanAge is the grace period before a lock without a session
// document is treated as orphaned.
const defaultMinOrphanAge = 5 * time.Second

// Cleaner applies retention policies to fs sessions. Active sessions (lock
// held elsewhere) and the excluded session are never removed.
type Cleaner struct {
	// Dir is the session directory; empty means the default.
	Dir string

	MaxAgeDays int
	MaxCount   int
	MaxSizeMB  int

	// MinOrphanAge defaults to defaultMinOrphanAge when zero.
	MinOrphanAge time.Duration

	// DryRun reports removals without touching the filesystem.
	DryRun bool

	// Purge selects every inactive, non-excluded session regardless of the
	// retention limits.
	Purge bool

	// Logger defaults to slog.Default.
	Logger *slog.Logger
}

// CleanupReport lists removed and skipped session ids.
type CleanupReport struct {
	Removed []string `json:"removed"`
	Skipped []string `json:"skipped"`
}

func (c *Cleaner) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.Default()
}

// ExecuteCleanup removes sessions selected by the policy. excludeID (usually
// the current session) is always skipped. Only one cleaner runs per
// directory at a time; a second concurrent call fails fast.
func (c *Cleaner) ExecuteCleanup(excludeID string) (*CleanupReport, error) {
	dir, err := resolveDir(c.Dir)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create session directory: %w", err)
	}

	globalLock, err := acquireFileLock(filepath.Join(dir, "cleanup.lock"))
	if err != nil {
		return nil, fmt.Errorf("failed to acquire cleanup lock: %w", err)
	}
	defer func() { _ = releaseFileLock(globalLock) }()

	sessions, err := ScanSessions(dir)
	if err != nil {
		return nil, err
	}

	report := &CleanupReport{}
	var candidates []SessionInfo
	for _, s := range sessions {
		if s.ID == excludeID || s.Active {
			report.Skipped = append(report.Skipped, s.ID)
			continue
		}
		candidates = append(candidates, s)
	}

	selected := c.selectForRemoval(candidates, time.Now())
	for _, s := range candidates {
		if !selected[s.ID] {
			continue
		}
		if c.removeSession(s) {
			report.Removed = append(report.Removed, s.ID)
		} else {
			report.Skipped = append(report.Skipped, s.ID)
		}
	}

	c.removeOrphanLocks(dir, report)

	c.logger().Info("session cleanup finished",
		"dir", dir, "removed", len(report.Removed), "skipped", len(report.Skipped), "dryRun", c.DryRun)
	return report, nil
}

// selectForRemoval applies the age, count, and size policies. candidates
// must be sorted oldest first.
func (c *Cleaner) selectForRemoval(candidates []SessionInfo, now time.Time) map[string]bool {
	selected := make(map[string]bool)

	if c.Purge {
		for _, s := range candidates {
			selected[s.ID] = true
		}
		return selected
	}

	if c.MaxAgeDays > 0 {
		cutoff := now.Add(-time.Duration(c.MaxAgeDays) * 24 * time.Hour)
		for _, s := range candidates {
			if s.UpdatedAt.Before(cutoff) {
				selected[s.ID] = true
			}
		}
	}

	if c.MaxCount > 0 && len(candidates) > c.MaxCount {
		for _, s := range candidates[:len(candidates)-c.MaxCount] {
			selected[s.ID] = true
		}
	}

	if c.MaxSizeMB > 0 {
		var total int64
		for _, s := range candidates {
			total += s.Size
		}
		limit := int64(c.MaxSizeMB) * 1024 * 1024
		for _, s := range candidates {
			if total <= limit {
				break
			}
			total -= s.Size
			selected[s.ID] = true
		}
	}

	return selected
}

// removeSession deletes the session document while holding its lock, then
// releases and deletes the lock.
func (c *Cleaner) removeSession(s SessionInfo) bool {
	if c.DryRun {
		return true
	}
	f, ok, err := AcquireLockHandle(s.LockPath)
	if err != nil || !ok {
		return false
	}
	if err := os.Remove(s.Path); err != nil && !os.IsNotExist(err) {
		c.logger().Warn("failed to remove session file", "session", s.ID, "error", err)
		_ = f.Close()
		return false
	}
	if err := ReleaseLockHandle(f); err != nil {
		c.logger().Warn("failed to remove session lock", "session", s.ID, "error", err)
	}
	return true
}

func (c *Cleaner) removeOrphanLocks(dir string, report *CleanupReport) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		c.logger().Warn("failed to read sessions directory", "dir", dir, "error", err)
		return
	}

	minAge := c.MinOrphanAge
	if minAge == 0 {
		minAge = defaultMinOrphanAge
	}

	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, lockFileSuffix) {
			continue
		}
		id := strings.TrimSuffix(name, lockFileSuffix)
		if _, err := os.Stat(SessionFilePath(dir, id)); !os.IsNotExist(err) {
			// Document present (or unreadable): not an orphan.
			continue
		}
		info, err := e.Info()
		if err != nil || time.Since(info.ModTime()) < minAge {
			report.Skipped = append(report.Skipped, id)
			continue
		}
		if c.DryRun {
			report.Removed = append(report.Removed, id)
			continue
		}
		f, ok, err := AcquireLockHandle(filepath.Join(dir, name))
		if err != nil || !ok {
			report.Skipped = append(report.Skipped, id)
			continue
		}
		if err := ReleaseLockHandle(f); err != nil {
			report.Skipped = append(report.Skipped, id)
			continue
		}
		report.Removed = append(report.Removed, id)
	}
}
