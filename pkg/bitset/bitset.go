// Package bitset provides a small fixed-width index set used for the
// per-fan state masks. Keeping it a named type makes the subset
// relationships between masks directly checkable in tests.
package bitset

import "math/bits"

// Set is a set of small non-negative indices backed by a 32-bit word.
type Set uint32

// Of builds a Set from the given indices.
func Of(indices ...int) Set {
	var s Set
	for _, i := range indices {
		s = s.Insert(i)
	}
	return s
}

// Contains reports whether index i is in the set.
func (s Set) Contains(i int) bool {
	if i < 0 || i > 31 {
		return false
	}
	return s&(1<<uint(i)) != 0
}

// Insert returns the set with index i added.
func (s Set) Insert(i int) Set {
	if i < 0 || i > 31 {
		return s
	}
	return s | 1<<uint(i)
}

// Remove returns the set with index i removed.
func (s Set) Remove(i int) Set {
	if i < 0 || i > 31 {
		return s
	}
	return s &^ (1 << uint(i))
}

// SubsetOf reports whether every index of s is also in t.
func (s Set) SubsetOf(t Set) bool {
	return s&^t == 0
}

// Empty reports whether the set has no members.
func (s Set) Empty() bool {
	return s == 0
}

// Count returns the number of members.
func (s Set) Count() int {
	return bits.OnesCount32(uint32(s))
}

// Value returns the raw mask, as rendered in status reports.
func (s Set) Value() uint32 {
	return uint32(s)
}
