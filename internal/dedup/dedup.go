// Package dedup tracks document URLs already accepted during a run.
package dedup

import "sync"

// Set is a concurrency-safe set of normalized URLs.
type Set struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

// NewSet returns an empty Set.
func NewSet() *Set {
	return &Set{seen: make(map[string]struct{})}
}

// Add inserts rawURL if it is not already present and reports whether it was
// inserted. Check and insert happen under one lock, so concurrent callers
// adding the same URL see exactly one true.
func (s *Set) Add(rawURL string) bool {
	key := keyFor(rawURL)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.seen[key]; ok {
		return false
	}
	s.seen[key] = struct{}{}
	return true
}

// Contains reports whether rawURL has been added.
func (s *Set) Contains(rawURL string) bool {
	key := keyFor(rawURL)

	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.seen[key]
	return ok
}

// Len returns the number of distinct URLs added.
func (s *Set) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.seen)
}

// keyFor falls back to the raw string for URLs that cannot be normalized.
func keyFor(rawURL string) string {
	if key, err := Normalize(rawURL); err == nil {
		return key
	}
	return rawURL
}
