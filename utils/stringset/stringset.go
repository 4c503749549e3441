// Package stringset wraps a map with the set operations the relay needs.
package stringset

// Set is a set of strings. It is equivalent to its underlying map, so make,
// range and len all work on it.
type Set map[string]struct{}

// Add adds x to s.
func (s Set) Add(x string) {
	s[x] = struct{}{}
}

// Has returns true if x is in s.
func (s Set) Has(x string) bool {
	_, ok := s[x]
	return ok
}
