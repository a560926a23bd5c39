// Package blocklist maintains the merged set of blocked author handles: a
// community-sourced list replaced wholesale on each refresh, plus a local
// list that only ever grows.
package blocklist

import (
	"strings"
	"sync"
)

// Set is the case-insensitive membership set read by every discovery pass.
type Set struct {
	mu        sync.RWMutex
	community map[string]struct{}
	local     map[string]struct{}
}

// NewSet creates an empty Set seeded with the persisted local handles.
func NewSet(local []string) *Set {
	s := &Set{
		community: make(map[string]struct{}),
		local:     make(map[string]struct{}, len(local)),
	}
	for _, h := range local {
		s.local[strings.ToLower(h)] = struct{}{}
	}
	return s
}

// Contains reports membership in either list, case-insensitively.
func (s *Set) Contains(handle string) bool {
	key := strings.ToLower(handle)
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.local[key]; ok {
		return true
	}
	_, ok := s.community[key]
	return ok
}

// ReplaceCommunity swaps in a fresh community list. The previous community
// entries are discarded entirely; local entries are untouched.
func (s *Set) ReplaceCommunity(handles []string) {
	next := make(map[string]struct{}, len(handles))
	for _, h := range handles {
		next[strings.ToLower(h)] = struct{}{}
	}
	s.mu.Lock()
	s.community = next
	s.mu.Unlock()
}

// AddLocal records a locally blocked handle. Local membership is
// monotonically additive; there is no removal path.
func (s *Set) AddLocal(handle string) {
	key := strings.ToLower(handle)
	s.mu.Lock()
	s.local[key] = struct{}{}
	s.mu.Unlock()
}

// Len returns the merged membership count.
func (s *Set) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := len(s.local)
	for h := range s.community {
		if _, dup := s.local[h]; !dup {
			n++
		}
	}
	return n
}
