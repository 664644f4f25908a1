// Package inflight tracks which rows have an action in progress so a second
// click on the same row is refused while the first is still running.
package inflight

import "sync"

// Set is a set of keys with an action in progress. The zero value is ready
// to use and a Set is safe for concurrent use.
type Set struct {
	mu     sync.Mutex
	active map[string]struct{}
}

// Begin marks key as in flight. It returns false if key already was.
func (s *Set) Begin(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active == nil {
		s.active = make(map[string]struct{})
	}
	if _, ok := s.active[key]; ok {
		return false
	}
	s.active[key] = struct{}{}
	return true
}

// End clears key. Ending a key that is not in flight is a no-op.
func (s *Set) End(key string) {
	s.mu.Lock()
	delete(s.active, key)
	s.mu.Unlock()
}

// Active reports whether key is in flight.
func (s *Set) Active(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.active[key]
	return ok
}

// Len returns the number of keys in flight.
func (s *Set) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.active)
}

// Do runs fn with key held, or returns false without running it when key is
// already in flight.
func (s *Set) Do(key string, fn func()) bool {
	if !s.Begin(key) {
		return false
	}
	defer s.End(key)
	fn()
	return true
}
