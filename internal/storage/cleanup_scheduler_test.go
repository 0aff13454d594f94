package storage

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleanupScheduler_RunsImmediatelyAndOnTick(t *testing.T) {
	dir := t.TempDir()
	writeSession(t, dir, "first", time.Hour, 1)

	tick := make(chan time.Time)
	stopped := make(chan struct{})
	s := &CleanupScheduler{
		Cleaner:  &Cleaner{Dir: dir, Purge: true},
		Interval: time.Hour,
		NewTicker: func(time.Duration) (<-chan time.Time, func()) {
			return tick, func() { close(stopped) }
		},
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		s.Run(ctx)
	}()

	require.Eventually(t, func() bool {
		_, err := os.Stat(SessionFilePath(dir, "first"))
		return os.IsNotExist(err)
	}, 5*time.Second, 10*time.Millisecond)

	writeSession(t, dir, "second", time.Hour, 1)
	tick <- time.Now()
	require.Eventually(t, func() bool {
		_, err := os.Stat(SessionFilePath(dir, "second"))
		return os.IsNotExist(err)
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	<-done
	select {
	case <-stopped:
	default:
		t.Fatal("ticker was not stopped")
	}
}

func TestCleanupScheduler_NoInterval(t *testing.T) {
	dir := t.TempDir()
	writeSession(t, dir, "only", time.Hour, 1)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		(&CleanupScheduler{Cleaner: &Cleaner{Dir: dir, Purge: true}, ExcludeID: "only"}).Run(ctx)
	}()
	cancel()
	<-done

	_, err := os.Stat(SessionFilePath(dir, "only"))
	assert.NoError(t, err)
}
