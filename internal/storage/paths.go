package storage

import (
	"fmt"
	"os"
	"path/filepath"
)

// sessionDirectory is a variable so tests can redirect it away from the
// user's config directory.
var sessionDirectory = SessionDirectory

// SetTestPaths points the default session directory at dir.
// This should only be used in tests.
func SetTestPaths(dir string) {
	sessionDirectory = func() (string, error) { return dir, nil }
}

// ResetPaths restores the default session directory.
// This should only be used in tests.
func ResetPaths() {
	sessionDirectory = SessionDirectory
}

// SessionDirectory returns {UserConfigDir}/truetest/sessions.
func SessionDirectory() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user config directory: %w", err)
	}
	return filepath.Join(configDir, "truetest", "sessions"), nil
}

// resolveDir returns dir if set, otherwise the default session directory.
func resolveDir(dir string) (string, error) {
	if dir != "" {
		return dir, nil
	}
	return sessionDirectory()
}

// SessionFilePath returns {dir}/{id}.session.json.
func SessionFilePath(dir, sessionID string) string {
	return filepath.Join(dir, sessionID+sessionFileSuffix)
}

// SessionLockFilePath returns {dir}/{id}.session.lock.
func SessionLockFilePath(dir, sessionID string) string {
	return filepath.Join(dir, sessionID+lockFileSuffix)
}

const (
	sessionFileSuffix = ".session.json"
	lockFileSuffix    = ".session.lock"
)
