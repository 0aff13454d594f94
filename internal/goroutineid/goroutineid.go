// Package goroutineid identifies the calling goroutine, for detecting
// re-entrant calls.
package goroutineid

import (
	"bytes"
	"runtime"
	"sync"
)

var stackPool = sync.Pool{
	New: func() any {
		b := make([]byte, 64)
		return &b
	},
}

var header = []byte("goroutine ")

// Get returns the current goroutine ID, or 0 if it could not be determined.
// Callers must treat 0 as "unknown" and never as a match.
func Get() int64 {
	bp := stackPool.Get().(*[]byte)
	defer stackPool.Put(bp)
	n := runtime.Stack(*bp, false)
	return parse((*bp)[:n])
}

// parse reads the numeric ID out of a "goroutine N [state]:" header.
// It does not allocate.
func parse(stack []byte) int64 {
	i := bytes.Index(stack, header)
	if i < 0 {
		return 0
	}
	var id int64
	digits := 0
	for _, b := range stack[i+len(header):] {
		if b < '0' || b > '9' {
			break
		}
		id = id*10 + int64(b-'0')
		digits++
	}
	if digits == 0 {
		return 0
	}
	return id
}
