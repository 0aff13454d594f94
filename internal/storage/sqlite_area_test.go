package storage

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	// A :memory: database exists per connection.
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestSQLiteArea_CRUD(t *testing.T) {
	db := openTestDB(t)

	a, err := NewSQLiteArea(context.Background(), db, "sql-1", Options{})
	require.NoError(t, err)

	require.NoError(t, a.SetItem("b", "2"))
	require.NoError(t, a.SetItem("a", "1"))
	require.NoError(t, a.SetItem("a", "one"))

	v, ok, err := a.GetItem("a")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "one", v)

	keys, err := a.Keys()
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, keys)

	require.NoError(t, a.RemoveItem("a"))
	_, ok, err = a.GetItem("a")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSQLiteArea_SessionsIsolated(t *testing.T) {
	db := openTestDB(t)

	a, err := NewSQLiteArea(context.Background(), db, "sql-a", Options{})
	require.NoError(t, err)
	b, err := NewSQLiteArea(context.Background(), db, "sql-b", Options{})
	require.NoError(t, err)

	require.NoError(t, a.SetItem("k", "from-a"))
	_, ok, err := b.GetItem("k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSQLiteArea_Quota(t *testing.T) {
	db := openTestDB(t)

	a, err := NewSQLiteArea(context.Background(), db, "sql-quota", Options{QuotaBytes: 6})
	require.NoError(t, err)

	require.NoError(t, a.SetItem("k", "12345"))
	assert.ErrorIs(t, a.SetItem("j", "1"), ErrQuotaExceeded)
	require.NoError(t, a.SetItem("k", "1"))
	require.NoError(t, a.SetItem("j", "1"))
}

func TestSQLiteArea_CloseDoesNotCloseBorrowedDB(t *testing.T) {
	db := openTestDB(t)

	a, err := NewSQLiteArea(context.Background(), db, "sql-close", Options{})
	require.NoError(t, err)
	require.NoError(t, a.Close())
	assert.ErrorIs(t, a.SetItem("k", "v"), ErrClosed)
	assert.NoError(t, db.Ping())
}

func TestOpenSQLiteArea_File(t *testing.T) {
	dir := t.TempDir()

	a, err := OpenSQLiteArea("sql-file", Options{Dir: dir})
	require.NoError(t, err)
	require.NoError(t, a.SetItem("k", "v"))
	require.NoError(t, a.Close())

	b, err := OpenSQLiteArea("sql-file", Options{Dir: dir})
	require.NoError(t, err)
	defer b.Close()
	v, ok, err := b.GetItem("k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "v", v)
}
