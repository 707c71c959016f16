// Package props holds the ambient property set consulted by ${...}
// interpolation, and the sources it can be assembled from.
package props

import (
	"maps"
	"sync"
)

// Source resolves a property key to its value.
type Source interface {
	Lookup(key string) (string, bool)
}

// Set is a mutable property map shared across parses. Readers see a stable
// map; every write replaces the whole map under the lock.
type Set struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewSet creates an empty Set.
func NewSet() *Set {
	return &Set{values: map[string]string{}}
}

// Lookup implements Source.
func (s *Set) Lookup(key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	return v, ok
}

// Set stores a single property.
func (s *Set) Set(key, value string) {
	s.Merge(map[string]string{key: value})
}

// Merge copies every entry of m into the set, overwriting existing keys.
func (s *Set) Merge(m map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := make(map[string]string, len(s.values)+len(m))
	maps.Copy(next, s.values)
	maps.Copy(next, m)
	s.values = next
}

// Replace swaps the whole property map for a copy of m.
func (s *Set) Replace(m map[string]string) {
	next := maps.Clone(m)
	if next == nil {
		next = map[string]string{}
	}
	s.mu.Lock()
	s.values = next
	s.mu.Unlock()
}

// Snapshot returns a copy of the current properties.
func (s *Set) Snapshot() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return maps.Clone(s.values)
}

// Len returns the number of properties.
func (s *Set) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.values)
}
