package streamview

import (
	"sort"

	"github.com/sharedlog/corfu-go/pkg/address"
)

// orderedSet is a mutable, strictly increasing set of addresses,
// modeled on the NavigableSet<Long> used by the read/checkpoint/
// resolved queues of the original stream-view implementation. Built on
// a sorted slice rather than a balanced tree: stream-view queues hold
// at most a few thousand in-flight addresses between reads, so linear
// insertion cost is not a practical concern here.
type orderedSet struct {
	items []address.GlobalAddress
}

func (s *orderedSet) search(a address.GlobalAddress) int {
	return sort.Search(len(s.items), func(i int) bool { return s.items[i] >= a })
}

// Add inserts a, keeping items strictly increasing. A duplicate
// insertion is a no-op.
func (s *orderedSet) Add(a address.GlobalAddress) {
	i := s.search(a)
	if i < len(s.items) && s.items[i] == a {
		return
	}
	s.items = append(s.items, 0)
	copy(s.items[i+1:], s.items[i:])
	s.items[i] = a
}

// Remove deletes a if present, reporting whether it was found.
func (s *orderedSet) Remove(a address.GlobalAddress) bool {
	i := s.search(a)
	if i >= len(s.items) || s.items[i] != a {
		return false
	}
	s.items = append(s.items[:i], s.items[i+1:]...)
	return true
}

// Contains reports whether a is a member.
func (s *orderedSet) Contains(a address.GlobalAddress) bool {
	i := s.search(a)
	return i < len(s.items) && s.items[i] == a
}

// Empty reports whether the set has no members.
func (s *orderedSet) Empty() bool {
	return len(s.items) == 0
}

// Len returns the number of members.
func (s *orderedSet) Len() int {
	return len(s.items)
}

// First returns the smallest member.
func (s *orderedSet) First() (address.GlobalAddress, bool) {
	if len(s.items) == 0 {
		return 0, false
	}
	return s.items[0], true
}

// PollFirst removes and returns the smallest member.
func (s *orderedSet) PollFirst() (address.GlobalAddress, bool) {
	a, ok := s.First()
	if ok {
		s.items = s.items[1:]
	}
	return a, ok
}

// Higher returns the smallest member strictly greater than a.
func (s *orderedSet) Higher(a address.GlobalAddress) (address.GlobalAddress, bool) {
	i := sort.Search(len(s.items), func(i int) bool { return s.items[i] > a })
	if i == len(s.items) {
		return 0, false
	}
	return s.items[i], true
}

// Lower returns the largest member strictly less than a.
func (s *orderedSet) Lower(a address.GlobalAddress) (address.GlobalAddress, bool) {
	i := s.search(a)
	if i == 0 {
		return 0, false
	}
	return s.items[i-1], true
}

// TailFromRemove removes and returns every member greater than or
// equal to a, in increasing order.
func (s *orderedSet) TailFromRemove(a address.GlobalAddress) []address.GlobalAddress {
	i := s.search(a)
	tail := make([]address.GlobalAddress, len(s.items)-i)
	copy(tail, s.items[i:])
	s.items = s.items[:i]
	return tail
}

// TakeUpTo removes and returns every member less than or equal to a,
// in increasing order, leaving members greater than a in place.
func (s *orderedSet) TakeUpTo(a address.GlobalAddress) []address.GlobalAddress {
	i := sort.Search(len(s.items), func(i int) bool { return s.items[i] > a })
	head := make([]address.GlobalAddress, i)
	copy(head, s.items[:i])
	s.items = s.items[i:]
	return head
}

// RemoveBelow removes every member strictly less than a.
func (s *orderedSet) RemoveBelow(a address.GlobalAddress) {
	i := s.search(a)
	s.items = s.items[i:]
}
