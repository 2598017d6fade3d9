// Package glocal provides goroutine-local storage.
//
// Go exposes no thread-local storage and, unlike spec.md's source
// language, no OS thread is ever directly owned by a single long-lived
// unit of work unless pinned with runtime.LockOSThread. The core packages
// here (fiber, scheduler, iomanager, hook) instead bind "current" state to
// goroutine identity: every Fiber owns exactly one goroutine for its whole
// life, and every scheduler worker loop owns exactly one goroutine for its
// whole life, so goroutine identity is a sound substitute for the
// per-OS-thread slots spec.md's Design Notes call for.
//
// getGoroutineID uses the same runtime.Stack-parsing technique used for
// loop-thread reentrancy checks in production Go event loops: the stack
// dump's first line is "goroutine <id> [<status>]:".
package glocal

import (
	"runtime"
	"sync"
)

func goroutineID() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	var id uint64
	for i := len("goroutine "); i < n; i++ {
		if buf[i] < '0' || buf[i] > '9' {
			break
		}
		id = id*10 + uint64(buf[i]-'0')
	}
	return id
}

// Slot is a goroutine-local variable of type T.
type Slot[T any] struct {
	m sync.Map // map[uint64]T
}

// Set binds v to the calling goroutine.
func (s *Slot[T]) Set(v T) {
	s.m.Store(goroutineID(), v)
}

// Get returns the value bound to the calling goroutine, if any.
func (s *Slot[T]) Get() (T, bool) {
	v, ok := s.m.Load(goroutineID())
	if !ok {
		var zero T
		return zero, false
	}
	return v.(T), true
}

// Clear unbinds the calling goroutine's value.
func (s *Slot[T]) Clear() {
	s.m.Delete(goroutineID())
}
