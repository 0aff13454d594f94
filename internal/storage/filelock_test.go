package storage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAcquireLockHandle(t *testing.T) {
	path := filepath.Join(t.TempDir(), "x.session.lock")

	f, ok, err := AcquireLockHandle(path)
	require.NoError(t, err)
	require.True(t, ok)

	// A second handle, even in the same process, must not get the lock.
	g, ok, err := AcquireLockHandle(path)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, g)

	require.NoError(t, ReleaseLockHandle(f))
	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))

	h, ok, err := AcquireLockHandle(path)
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, ReleaseLockHandle(h))
}

func TestReleaseLockHandle_Nil(t *testing.T) {
	assert.NoError(t, ReleaseLockHandle(nil))
}

func TestAcquireLockHandle_BadPath(t *testing.T) {
	_, ok, err := AcquireLockHandle(filepath.Join(t.TempDir(), "missing", "dir", "x.lock"))
	assert.Error(t, err)
	assert.False(t, ok)
}
