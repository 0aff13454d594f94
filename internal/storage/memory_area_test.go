package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryArea_SharedBySessionID(t *testing.T) {
	ClearAllMemorySessions()
	defer ClearAllMemorySessions()

	a, err := NewMemoryArea("mem-1", Options{})
	require.NoError(t, err)
	b, err := NewMemoryArea("mem-1", Options{})
	require.NoError(t, err)
	other, err := NewMemoryArea("mem-2", Options{})
	require.NoError(t, err)

	require.NoError(t, a.SetItem("k", "v"))

	v, ok, err := b.GetItem("k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "v", v)

	_, ok, err = other.GetItem("k")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, b.RemoveItem("k"))
	keys, err := a.Keys()
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestMemoryArea_QuotaAndClose(t *testing.T) {
	ClearAllMemorySessions()
	defer ClearAllMemorySessions()

	a, err := NewMemoryArea("mem-quota", Options{QuotaBytes: 4})
	require.NoError(t, err)
	require.NoError(t, a.SetItem("ab", "cd"))
	assert.ErrorIs(t, a.SetItem("e", "f"), ErrQuotaExceeded)

	v, _, err := a.GetItem("ab")
	require.NoError(t, err)
	assert.Equal(t, "cd", v, "failed write must not change stored items")

	require.NoError(t, a.Close())
	assert.ErrorIs(t, a.SetItem("x", "y"), ErrClosed)
}
