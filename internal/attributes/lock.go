package attributes

import (
	"sync"
	"sync/atomic"

	"github.com/joeycumines/truetest/internal/goroutineid"
)

// goroutineID is swapped in tests.
var goroutineID = goroutineid.Get

// reentrantMutex is a mutex the owning goroutine may lock again. Listeners
// run while the store's write lock is held, and may themselves mutate the
// store. An unknown goroutine id (0) is never treated as the owner.
type reentrantMutex struct {
	mu    sync.Mutex
	owner atomic.Int64
	depth int // only touched by the owner
}

func (m *reentrantMutex) Lock() {
	id := goroutineID()
	if id != 0 && m.owner.Load() == id {
		m.depth++
		return
	}
	m.mu.Lock()
	m.owner.Store(id)
	m.depth = 1
}

func (m *reentrantMutex) Unlock() {
	m.depth--
	if m.depth == 0 {
		m.owner.Store(0)
		m.mu.Unlock()
	}
}
