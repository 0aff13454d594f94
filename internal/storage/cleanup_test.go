package storage

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeSession creates an inactive fs session with the given age.
func writeSession(t *testing.T, dir, id string, age time.Duration, size int) {
	t.Helper()
	path := SessionFilePath(dir, id)
	require.NoError(t, os.WriteFile(path, make([]byte, size), 0644))
	mt := time.Now().Add(-age)
	require.NoError(t, os.Chtimes(path, mt, mt))
}

func TestScanSessions(t *testing.T) {
	dir := t.TempDir()
	writeSession(t, dir, "old", 48*time.Hour, 10)
	writeSession(t, dir, "new", time.Hour, 20)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "unrelated.txt"), nil, 0644))

	active, err := NewFileSystemArea("live", Options{Dir: dir})
	require.NoError(t, err)
	defer active.Close()
	require.NoError(t, active.SetItem("k", "v"))

	sessions, err := ScanSessions(dir)
	require.NoError(t, err)
	require.Len(t, sessions, 3)

	assert.Equal(t, "old", sessions[0].ID)
	assert.Equal(t, int64(10), sessions[0].Size)
	assert.False(t, sessions[0].Active)
	assert.Equal(t, "new", sessions[1].ID)
	assert.Equal(t, "live", sessions[2].ID)
	assert.True(t, sessions[2].Active)

	// Probing an inactive session must not leave its lock held.
	f, ok, err := AcquireLockHandle(sessions[0].LockPath)
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, ReleaseLockHandle(f))
}

func TestScanSessions_MissingDir(t *testing.T) {
	sessions, err := ScanSessions(filepath.Join(t.TempDir(), "absent"))
	require.NoError(t, err)
	assert.Empty(t, sessions)
}

func TestCleaner_Policies(t *testing.T) {
	for _, tc := range []struct {
		name    string
		cleaner Cleaner
		removed []string
	}{
		{"age", Cleaner{MaxAgeDays: 2}, []string{"a"}},
		{"count", Cleaner{MaxCount: 1}, []string{"a", "b"}},
		{"purge", Cleaner{Purge: true}, []string{"a", "b", "c"}},
		{"none", Cleaner{}, nil},
	} {
		t.Run(tc.name, func(t *testing.T) {
			dir := t.TempDir()
			writeSession(t, dir, "a", 72*time.Hour, 1)
			writeSession(t, dir, "b", 24*time.Hour, 1)
			writeSession(t, dir, "c", time.Hour, 1)

			c := tc.cleaner
			c.Dir = dir
			report, err := c.ExecuteCleanup("")
			require.NoError(t, err)
			assert.ElementsMatch(t, tc.removed, report.Removed)

			for _, id := range tc.removed {
				_, err := os.Stat(SessionFilePath(dir, id))
				assert.True(t, os.IsNotExist(err), "%s should be gone", id)
			}
		})
	}
}

func TestCleaner_SizeRemovesOldestFirst(t *testing.T) {
	dir := t.TempDir()
	mb := 1024 * 1024
	writeSession(t, dir, "oldest", 3*time.Hour, mb)
	writeSession(t, dir, "middle", 2*time.Hour, mb)
	writeSession(t, dir, "newest", time.Hour, mb)

	report, err := (&Cleaner{Dir: dir, MaxSizeMB: 2}).ExecuteCleanup("")
	require.NoError(t, err)
	assert.Equal(t, []string{"oldest"}, report.Removed)
}

func TestCleaner_SkipsExcludedAndActive(t *testing.T) {
	dir := t.TempDir()
	writeSession(t, dir, "current", 72*time.Hour, 1)

	live, err := NewFileSystemArea("live", Options{Dir: dir})
	require.NoError(t, err)
	defer live.Close()
	require.NoError(t, live.SetItem("k", "v"))

	report, err := (&Cleaner{Dir: dir, Purge: true}).ExecuteCleanup("current")
	require.NoError(t, err)
	assert.Empty(t, report.Removed)
	assert.ElementsMatch(t, []string{"current", "live"}, report.Skipped)

	_, err = os.Stat(SessionLockFilePath(dir, "live"))
	assert.NoError(t, err, "active lock must survive cleanup")
}

func TestCleaner_DryRun(t *testing.T) {
	dir := t.TempDir()
	writeSession(t, dir, "a", time.Hour, 1)

	report, err := (&Cleaner{Dir: dir, Purge: true, DryRun: true}).ExecuteCleanup("")
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, report.Removed)
	_, err = os.Stat(SessionFilePath(dir, "a"))
	assert.NoError(t, err)
}

func TestCleaner_OrphanLocks(t *testing.T) {
	dir := t.TempDir()

	oldLock := SessionLockFilePath(dir, "orphan")
	require.NoError(t, os.WriteFile(oldLock, nil, 0644))
	past := time.Now().Add(-time.Minute)
	require.NoError(t, os.Chtimes(oldLock, past, past))

	youngLock := SessionLockFilePath(dir, "embryo")
	require.NoError(t, os.WriteFile(youngLock, nil, 0644))

	report, err := (&Cleaner{Dir: dir, MinOrphanAge: 10 * time.Second}).ExecuteCleanup("")
	require.NoError(t, err)
	assert.Contains(t, report.Removed, "orphan")
	assert.Contains(t, report.Skipped, "embryo")

	_, err = os.Stat(oldLock)
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(youngLock)
	assert.NoError(t, err)
}

func TestCleaner_ConcurrentCleanupFails(t *testing.T) {
	dir := t.TempDir()
	held, err := acquireFileLock(filepath.Join(dir, "cleanup.lock"))
	require.NoError(t, err)
	defer func() { _ = releaseFileLock(held) }()

	_, err = (&Cleaner{Dir: dir}).ExecuteCleanup("")
	assert.ErrorIs(t, err, ErrWouldBlock)
}
