package attributes

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestReentrantMutex_SameGoroutine(t *testing.T) {
	var m reentrantMutex
	m.Lock()
	m.Lock()
	m.Unlock()
	m.Unlock()
	assert.Zero(t, m.owner.Load())
}

func TestReentrantMutex_UnknownIDNeverMatches(t *testing.T) {
	prev := goroutineID
	goroutineID = func() int64 { return 0 }
	t.Cleanup(func() { goroutineID = prev })

	var m reentrantMutex
	m.Lock()

	acquired := make(chan struct{})
	go func() {
		m.Lock()
		close(acquired)
		m.Unlock()
	}()

	select {
	case <-acquired:
		t.Fatal("second locker with unknown id entered a held lock")
	case <-time.After(50 * time.Millisecond):
	}
	m.Unlock()
	<-acquired
}
