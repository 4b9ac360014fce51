package models

import (
	"sort"

	"shieldvault/pkg/domain"
)

// AllowedSet is the admin-managed set of trusted targets.
type AllowedSet map[domain.Identity]struct{}

// NewAllowedSet builds a set from ids. Duplicates collapse.
func NewAllowedSet(ids ...domain.Identity) AllowedSet {
	s := make(AllowedSet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

// Contains reports membership. A nil set contains nothing.
func (s AllowedSet) Contains(id domain.Identity) bool {
	_, ok := s[id]
	return ok
}

// Add inserts id and reports whether the set changed.
func (s AllowedSet) Add(id domain.Identity) bool {
	if s.Contains(id) {
		return false
	}
	s[id] = struct{}{}
	return true
}

// Remove deletes id and reports whether the set changed.
func (s AllowedSet) Remove(id domain.Identity) bool {
	if !s.Contains(id) {
		return false
	}
	delete(s, id)
	return true
}

// Sorted returns the members in identity order.
func (s AllowedSet) Sorted() []domain.Identity {
	out := make([]domain.Identity, 0, len(s))
	for id := range s {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Compare(out[j]) < 0 })
	return out
}

// Clone returns an independent copy.
func (s AllowedSet) Clone() AllowedSet {
	out := make(AllowedSet, len(s))
	for id := range s {
		out[id] = struct{}{}
	}
	return out
}
