// Package arena provides a generational slot arena. Handles embed the slot
// generation, so a handle to a removed value fails checked lookups instead
// of silently addressing a recycled slot.
package arena

import (
	"fmt"
)

// Handle addresses a value in an arena. The zero Handle is never valid.
type Handle struct {
	index      uint32
	generation uint32
}

// IsZero reports whether the handle is the zero value.
func (h Handle) IsZero() bool {
	return h.generation == 0
}

func (h Handle) String() string {
	return fmt.Sprintf("arena.Handle(%d@%d)", h.index, h.generation)
}

type slot[T any] struct {
	value      T
	generation uint32
	occupied   bool
}

// Arena is a slot map with stable handles and O(1) insert, lookup, and
// remove. Freed slots are recycled with a bumped generation. Not safe for
// concurrent use; callers provide their own locking.
type Arena[T any] struct {
	slots []slot[T]
	free  []uint32
	count int
}

// New creates an empty arena.
func New[T any]() *Arena[T] {
	return &Arena[T]{}
}

// Len returns the number of occupied slots.
func (a *Arena[T]) Len() int {
	return a.count
}

// Insert stores a value and returns its handle.
func (a *Arena[T]) Insert(v T) Handle {
	a.count++
	if n := len(a.free); n > 0 {
		idx := a.free[n-1]
		a.free = a.free[:n-1]
		s := &a.slots[idx]
		s.value = v
		s.generation++
		s.occupied = true
		return Handle{index: idx, generation: s.generation}
	}
	a.slots = append(a.slots, slot[T]{value: v, generation: 1, occupied: true})
	return Handle{index: uint32(len(a.slots) - 1), generation: 1}
}

// Get returns the value for a handle, or false if the handle is stale or
// was never issued.
func (a *Arena[T]) Get(h Handle) (T, bool) {
	var zero T
	if int(h.index) >= len(a.slots) {
		return zero, false
	}
	s := &a.slots[h.index]
	if !s.occupied || s.generation != h.generation {
		return zero, false
	}
	return s.value, true
}

// Remove frees the slot addressed by the handle and returns its value. A
// stale or unknown handle is an error, not a panic.
func (a *Arena[T]) Remove(h Handle) (T, error) {
	var zero T
	if int(h.index) >= len(a.slots) {
		return zero, fmt.Errorf("arena: remove of unknown handle %s", h)
	}
	s := &a.slots[h.index]
	if !s.occupied || s.generation != h.generation {
		return zero, fmt.Errorf("arena: remove of stale handle %s", h)
	}
	v := s.value
	s.value = zero
	s.occupied = false
	a.free = append(a.free, h.index)
	a.count--
	return v, nil
}

// Range calls f for each occupied slot until f returns false. Values must
// not be inserted or removed during iteration.
func (a *Arena[T]) Range(f func(Handle, T) bool) {
	for i := range a.slots {
		s := &a.slots[i]
		if !s.occupied {
			continue
		}
		if !f(Handle{index: uint32(i), generation: s.generation}, s.value) {
			return
		}
	}
}
