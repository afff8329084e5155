package object

import (
	"sync"
)

// List is the payload of a mutable sequence. It owns strong references to
// its items.
type List struct {
	mu    sync.RWMutex
	items []*Object
}

func (l *List) PayloadKind() string { return "list" }

// Len returns the number of items.
func (l *List) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.items)
}

// At returns the item at index i as a borrowed reference.
func (l *List) At(i int) (*Object, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if i < 0 || i >= len(l.items) {
		return nil, false
	}
	return l.items[i], true
}

// Append adds an item to the end of the list.
func (l *List) Append(item *Object) {
	item.Incref()
	l.mu.Lock()
	l.items = append(l.items, item)
	l.mu.Unlock()
}

// SetAt replaces the item at index i. It reports whether i was in range.
func (l *List) SetAt(i int, item *Object) bool {
	l.mu.Lock()
	if i < 0 || i >= len(l.items) {
		l.mu.Unlock()
		return false
	}
	item.Incref()
	prev := l.items[i]
	l.items[i] = item
	l.mu.Unlock()
	prev.Decref()
	return true
}

// RemoveAt removes and releases the item at index i. It reports whether i
// was in range.
func (l *List) RemoveAt(i int) bool {
	l.mu.Lock()
	if i < 0 || i >= len(l.items) {
		l.mu.Unlock()
		return false
	}
	prev := l.items[i]
	l.items = append(l.items[:i], l.items[i+1:]...)
	l.mu.Unlock()
	prev.Decref()
	return true
}

// Pop removes and returns the last item, transferring its reference to the
// caller.
func (l *List) Pop() (*Object, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := len(l.items)
	if n == 0 {
		return nil, false
	}
	item := l.items[n-1]
	l.items = l.items[:n-1]
	return item, true
}

// Snapshot returns a copy of the item slice, as borrowed references.
func (l *List) Snapshot() []*Object {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]*Object, len(l.items))
	copy(out, l.items)
	return out
}

// Traverse visits the items for the cycle collector.
func (l *List) Traverse(visit func(*Object)) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	for _, item := range l.items {
		visit(item)
	}
}

// Finalize releases the item references.
func (l *List) Finalize() error {
	l.mu.Lock()
	items := l.items
	l.items = nil
	l.mu.Unlock()
	for _, item := range items {
		item.Decref()
	}
	return nil
}
