package ring

import "sort"

// SortableSet keeps a set of comparable values sorted by (hash, tiebreak),
// where hash is expected to come from Hash with one fixed seed. It is the
// per-ring backing store for MembershipView: one SortableSet per k in [0,K)
// holds the same endpoints, ordered by that ring's seed.
//
// hashOf and keyOf must be pure and stable for the lifetime of the set;
// keyOf exists only to total-order values that hash equal (astronomically
// unlikely with a 64-bit hash, but the ring must never be ambiguous).
type SortableSet[T comparable] struct {
	hashOf func(T) uint64
	keyOf  func(T) string
	items  []T
}

// New creates an empty SortableSet ordered by hashOf, breaking ties with keyOf.
func New[T comparable](hashOf func(T) uint64, keyOf func(T) string) *SortableSet[T] {
	return &SortableSet[T]{hashOf: hashOf, keyOf: keyOf}
}

func (s *SortableSet[T]) Len() int { return len(s.items) }

// find returns the insertion index for v (the first index whose element is
// not less than v) and whether v is already present at that index.
func (s *SortableSet[T]) find(v T) (idx int, found bool) {
	h := s.hashOf(v)
	k := s.keyOf(v)
	idx = sort.Search(len(s.items), func(i int) bool {
		hi := s.hashOf(s.items[i])
		if hi != h {
			return hi > h
		}
		return s.keyOf(s.items[i]) >= k
	})
	if idx < len(s.items) && s.hashOf(s.items[idx]) == h && s.keyOf(s.items[idx]) == k {
		found = true
	}
	return idx, found
}

// Contains reports whether v is already in the set.
func (s *SortableSet[T]) Contains(v T) bool {
	_, found := s.find(v)
	return found
}

// Add inserts v in sorted position. Returns false if v was already present.
func (s *SortableSet[T]) Add(v T) bool {
	idx, found := s.find(v)
	if found {
		return false
	}
	s.items = append(s.items, v)
	copy(s.items[idx+1:], s.items[idx:])
	s.items[idx] = v
	return true
}

// Remove deletes v. Returns false if v was not present.
func (s *SortableSet[T]) Remove(v T) bool {
	idx, found := s.find(v)
	if !found {
		return false
	}
	s.items = append(s.items[:idx], s.items[idx+1:]...)
	return true
}

// Ordered returns the current sorted order. The caller must not mutate it.
func (s *SortableSet[T]) Ordered() []T {
	return s.items
}

// Successor returns the ring-successor of v: the next element in sorted
// order after v's own position, wrapping to the first element. v must
// already be a member; ok is false otherwise. If v is the only member its
// successor is v itself (ok is true), which callers special-case per §4.B.
func (s *SortableSet[T]) Successor(v T) (successor T, ok bool) {
	idx, found := s.find(v)
	if !found {
		var zero T
		return zero, false
	}
	if len(s.items) == 1 {
		return s.items[0], true
	}
	next := (idx + 1) % len(s.items)
	return s.items[next], true
}

// Predecessor returns the ring-predecessor of v: the previous element in
// sorted order, wrapping to the last. Same membership requirement as
// Successor.
func (s *SortableSet[T]) Predecessor(v T) (predecessor T, ok bool) {
	idx, found := s.find(v)
	if !found {
		var zero T
		return zero, false
	}
	if len(s.items) == 1 {
		return s.items[0], true
	}
	prev := idx - 1
	if prev < 0 {
		prev = len(s.items) - 1
	}
	return s.items[prev], true
}

// LowerBoundSuccessor returns the element that would become v's
// ring-successor if v were inserted, without inserting it — the
// §4.B "ringLower" lookup used by expectedObserversOf for endpoints not yet
// in the ring. ok is false only when the set is empty.
func (s *SortableSet[T]) LowerBoundSuccessor(v T) (successor T, ok bool) {
	if len(s.items) == 0 {
		var zero T
		return zero, false
	}
	idx, _ := s.find(v)
	if idx == len(s.items) {
		idx = 0
	}
	return s.items[idx], true
}
