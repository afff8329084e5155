package object

import (
	"sync"
)

// SeqIterator is the payload of an iterator over an indexable container
// (tuple, list, str, bytes, range). It holds a strong reference to the
// container and a cursor.
type SeqIterator struct {
	mu        sync.Mutex
	container *Object
	pos       int64
}

func (it *SeqIterator) PayloadKind() string { return "iterator" }

// Container returns the iterated container as a borrowed reference.
func (it *SeqIterator) Container() *Object {
	it.mu.Lock()
	defer it.mu.Unlock()
	return it.container
}

// next advances the cursor and returns the previous position.
func (it *SeqIterator) next() int64 {
	it.mu.Lock()
	defer it.mu.Unlock()
	pos := it.pos
	it.pos++
	return pos
}

// Traverse visits the container for the cycle collector.
func (it *SeqIterator) Traverse(visit func(*Object)) {
	if it.container != nil {
		visit(it.container)
	}
}

// Finalize releases the container reference.
func (it *SeqIterator) Finalize() error {
	it.mu.Lock()
	c := it.container
	it.container = nil
	it.mu.Unlock()
	if c != nil {
		c.Decref()
	}
	return nil
}

// DictIterator is the payload of an iterator over a dict's keys. It
// snapshots the keys when created, matching the dict's insertion order, and
// owns a reference to each so later deletions cannot invalidate them.
type DictIterator struct {
	mu   sync.Mutex
	dict *Object
	keys []*Object
	pos  int
}

func (it *DictIterator) PayloadKind() string { return "dict_iterator" }

func (it *DictIterator) nextKey() (*Object, bool) {
	it.mu.Lock()
	defer it.mu.Unlock()
	if it.pos >= len(it.keys) {
		return nil, false
	}
	key := it.keys[it.pos]
	it.pos++
	return key, true
}

// Traverse visits the dict and snapshot keys for the cycle collector.
func (it *DictIterator) Traverse(visit func(*Object)) {
	if it.dict != nil {
		visit(it.dict)
	}
	for _, k := range it.keys {
		visit(k)
	}
}

// Finalize releases the dict and key references.
func (it *DictIterator) Finalize() error {
	it.mu.Lock()
	d := it.dict
	keys := it.keys
	it.dict = nil
	it.keys = nil
	it.mu.Unlock()
	if d != nil {
		d.Decref()
	}
	for _, k := range keys {
		k.Decref()
	}
	return nil
}

// Range is the payload of an integer range with int64 bounds.
type Range struct {
	start int64
	stop  int64
	step  int64 // never zero
}

func (r *Range) PayloadKind() string { return "range" }

// Start returns the first value.
func (r *Range) Start() int64 { return r.start }

// Stop returns the exclusive bound.
func (r *Range) Stop() int64 { return r.stop }

// Step returns the stride.
func (r *Range) Step() int64 { return r.step }

// Len returns the number of values the range yields.
func (r *Range) Len() int64 {
	if r.step > 0 {
		if r.stop <= r.start {
			return 0
		}
		return (r.stop - r.start + r.step - 1) / r.step
	}
	if r.start <= r.stop {
		return 0
	}
	return (r.start - r.stop - r.step - 1) / -r.step
}

// At returns the i'th value of the range.
func (r *Range) At(i int64) (int64, bool) {
	if i < 0 || i >= r.Len() {
		return 0, false
	}
	return r.start + i*r.step, true
}
