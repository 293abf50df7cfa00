// SPDX-License-Identifier: MIT
package engine

import "sync"

// Slot is a latest-wins cell shared by one writer and one reader. Store
// copies in, LoadInto copies out; the lock is held only for the copy and
// neither side ever sees a partially written value.
type Slot[T any] struct {
	mu      sync.Mutex
	buf     []T
	version uint64
}

// Store replaces the slot contents with a copy of v.
func (s *Slot[T]) Store(v []T) {
	s.mu.Lock()
	s.buf = append(s.buf[:0], v...)
	s.version++
	s.mu.Unlock()
}

// LoadInto copies the current contents into dst, growing it if needed, and
// returns the result with the version it was stored under. Version 0 means
// nothing has been stored yet.
func (s *Slot[T]) LoadInto(dst []T) ([]T, uint64) {
	s.mu.Lock()
	dst = append(dst[:0], s.buf...)
	v := s.version
	s.mu.Unlock()
	return dst, v
}

// Version returns the number of stores so far.
func (s *Slot[T]) Version() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.version
}

// Reset empties the slot. The version keeps counting.
func (s *Slot[T]) Reset() {
	s.mu.Lock()
	s.buf = s.buf[:0]
	s.mu.Unlock()
}
