package logging

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func TestRotatingFile_Append(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "logs", "tt.log")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("old\n"), 0o644))

	r, err := OpenRotatingFile(path, 1<<20, 2)
	require.NoError(t, err)
	n, err := r.Write([]byte("new\n"))
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	require.NoError(t, r.Close())

	assert.Equal(t, "old\nnew\n", readFile(t, path))
}

func TestRotatingFile_Rotates(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "tt.log")
	r, err := OpenRotatingFile(path, 10, 2)
	require.NoError(t, err)
	defer r.Close()

	for _, rec := range []string{"aaaaaaaa\n", "bbbbbbbb\n", "cccccccc\n", "dddddddd\n"} {
		_, err := r.Write([]byte(rec))
		require.NoError(t, err)
	}

	assert.Equal(t, "dddddddd\n", readFile(t, path))
	assert.Equal(t, "cccccccc\n", readFile(t, path+".1"))
	assert.Equal(t, "bbbbbbbb\n", readFile(t, path+".2"))
	assert.NoFileExists(t, path+".3")
}

func TestRotatingFile_NoBackups(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "tt.log")
	r, err := OpenRotatingFile(path, 4, 0)
	require.NoError(t, err)
	defer r.Close()

	_, err = r.Write([]byte("first\n"))
	require.NoError(t, err)
	_, err = r.Write([]byte("second\n"))
	require.NoError(t, err)

	assert.Equal(t, "second\n", readFile(t, path))
	assert.NoFileExists(t, path+".1")
}

func TestRotatingFile_OversizedRecordNotSplit(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "tt.log")
	r, err := OpenRotatingFile(path, 4, 1)
	require.NoError(t, err)
	defer r.Close()

	big := strings.Repeat("x", 20) + "\n"
	_, err = r.Write([]byte(big))
	require.NoError(t, err)
	assert.Equal(t, big, readFile(t, path))
}

func TestRotatingFile_Closed(t *testing.T) {
	t.Parallel()
	r, err := OpenRotatingFile(filepath.Join(t.TempDir(), "tt.log"), 10, 1)
	require.NoError(t, err)
	require.NoError(t, r.Close())
	require.NoError(t, r.Close())
	_, err = r.Write([]byte("x"))
	assert.ErrorIs(t, err, os.ErrClosed)
}

func TestRotatingFile_Concurrent(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "tt.log")
	r, err := OpenRotatingFile(path, 1<<20, 1)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for range 8 {
		wg.Go(func() {
			for range 50 {
				_, _ = r.Write([]byte("line\n"))
			}
		})
	}
	wg.Wait()
	require.NoError(t, r.Close())

	assert.Equal(t, 400, strings.Count(readFile(t, path), "line\n"))
}
