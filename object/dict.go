package object

import (
	"sync"
)

type dictEntry struct {
	hash  uint64
	key   *Object // nil marks a deleted entry
	value *Object
}

// Dict is an insertion-ordered hash map with object keys. Keys must be
// hashable; hashing and equality go through the key type's slots. The zero
// value is an empty dict. The dict owns strong references to its keys and
// values; Get returns borrowed references.
type Dict struct {
	mu      sync.RWMutex
	entries []dictEntry
	index   map[uint64][]int
	size    int
}

func (d *Dict) PayloadKind() string { return "dict" }

// Traverse visits the dict's keys and values for the cycle collector.
func (d *Dict) Traverse(visit func(*Object)) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, e := range d.entries {
		if e.key != nil {
			visit(e.key)
			visit(e.value)
		}
	}
}

// Len returns the number of live entries.
func (d *Dict) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.size
}

// find locates the entry for key under an already-held lock. Key equality
// for builtin types is pure Go and never re-enters the dict.
func (d *Dict) find(r *Registry, hash uint64, key *Object) (int, error) {
	for _, idx := range d.index[hash] {
		e := d.entries[idx]
		if e.key == nil {
			continue
		}
		if e.key == key {
			return idx, nil
		}
		eq, err := r.Equals(e.key, key)
		if err != nil {
			return -1, err
		}
		if eq {
			return idx, nil
		}
	}
	return -1, nil
}

// Get returns the value stored under key as a borrowed reference.
func (d *Dict) Get(r *Registry, key *Object) (*Object, bool, error) {
	h, err := r.Hash(key)
	if err != nil {
		return nil, false, err
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	idx, err := d.find(r, h, key)
	if err != nil || idx < 0 {
		return nil, false, err
	}
	return d.entries[idx].value, true, nil
}

// Set stores value under key, replacing any previous value.
func (d *Dict) Set(r *Registry, key, value *Object) error {
	h, err := r.Hash(key)
	if err != nil {
		return err
	}
	var released *Object
	d.mu.Lock()
	idx, err := d.find(r, h, key)
	if err != nil {
		d.mu.Unlock()
		return err
	}
	value.Incref()
	if idx >= 0 {
		released = d.entries[idx].value
		d.entries[idx].value = value
	} else {
		key.Incref()
		if d.index == nil {
			d.index = make(map[uint64][]int)
		}
		d.entries = append(d.entries, dictEntry{hash: h, key: key, value: value})
		d.index[h] = append(d.index[h], len(d.entries)-1)
		d.size++
	}
	d.mu.Unlock()
	// Release outside the lock: the dropped value may run a finalizer.
	if released != nil {
		released.Decref()
	}
	return nil
}

// Delete removes key from the dict. It reports whether the key was present.
func (d *Dict) Delete(r *Registry, key *Object) (bool, error) {
	h, err := r.Hash(key)
	if err != nil {
		return false, err
	}
	var relKey, relValue *Object
	d.mu.Lock()
	idx, err := d.find(r, h, key)
	if err != nil {
		d.mu.Unlock()
		return false, err
	}
	if idx >= 0 {
		relKey = d.entries[idx].key
		relValue = d.entries[idx].value
		d.entries[idx].key = nil
		d.entries[idx].value = nil
		d.removeIndex(h, idx)
		d.size--
	}
	d.mu.Unlock()
	if relKey != nil {
		relKey.Decref()
		relValue.Decref()
		return true, nil
	}
	return false, err
}

func (d *Dict) removeIndex(hash uint64, idx int) {
	bucket := d.index[hash]
	for i, cand := range bucket {
		if cand == idx {
			d.index[hash] = append(bucket[:i], bucket[i+1:]...)
			return
		}
	}
}

// GetString looks up a string key without allocating a key object. The hash
// matches the str type's hash slot.
func (d *Dict) GetString(r *Registry, name string) (*Object, bool, error) {
	h := hashString(name)
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, idx := range d.index[h] {
		e := d.entries[idx]
		if e.key == nil {
			continue
		}
		if s, ok := PayloadOf[*Str](e.key); ok && s.Value() == name {
			return e.value, true, nil
		}
	}
	return nil, false, nil
}

// SetString stores value under a string key.
func (d *Dict) SetString(r *Registry, name string, value *Object) error {
	key := r.NewStr(name)
	defer key.Decref()
	return d.Set(r, key, value)
}

// DeleteString removes a string key.
func (d *Dict) DeleteString(r *Registry, name string) (bool, error) {
	key := r.NewStr(name)
	defer key.Decref()
	return d.Delete(r, key)
}

// Keys returns the keys in insertion order, as borrowed references.
func (d *Dict) Keys() []*Object {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]*Object, 0, d.size)
	for _, e := range d.entries {
		if e.key != nil {
			out = append(out, e.key)
		}
	}
	return out
}

// Values returns the values in insertion order, as borrowed references.
func (d *Dict) Values() []*Object {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]*Object, 0, d.size)
	for _, e := range d.entries {
		if e.key != nil {
			out = append(out, e.value)
		}
	}
	return out
}

// Items returns key/value pairs in insertion order, as borrowed references.
func (d *Dict) Items() [][2]*Object {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([][2]*Object, 0, d.size)
	for _, e := range d.entries {
		if e.key != nil {
			out = append(out, [2]*Object{e.key, e.value})
		}
	}
	return out
}

// Clear removes all entries, releasing their references.
func (d *Dict) Clear() {
	d.mu.Lock()
	entries := d.entries
	d.entries = nil
	d.index = nil
	d.size = 0
	d.mu.Unlock()
	for _, e := range entries {
		if e.key != nil {
			e.key.Decref()
			e.value.Decref()
		}
	}
}

// Update copies all entries from other into d.
func (d *Dict) Update(r *Registry, other *Dict) error {
	for _, item := range other.Items() {
		if err := d.Set(r, item[0], item[1]); err != nil {
			return err
		}
	}
	return nil
}
