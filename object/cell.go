package object

import (
	"sync"
)

// Cell is the payload of a closure cell: a single mutable slot shared
// between a function and the frames that close over it.
type Cell struct {
	mu  sync.Mutex
	ref *Object // nil when the cell is empty
}

func (c *Cell) PayloadKind() string { return "cell" }

// Get returns the cell contents as a borrowed reference, or false if the
// cell is empty.
func (c *Cell) Get() (*Object, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ref, c.ref != nil
}

// Set stores a value in the cell, releasing any previous contents.
func (c *Cell) Set(value *Object) {
	value.Incref()
	c.mu.Lock()
	prev := c.ref
	c.ref = value
	c.mu.Unlock()
	if prev != nil {
		prev.Decref()
	}
}

// Clear empties the cell, releasing its contents. It reports whether the
// cell held a value.
func (c *Cell) Clear() bool {
	c.mu.Lock()
	prev := c.ref
	c.ref = nil
	c.mu.Unlock()
	if prev != nil {
		prev.Decref()
		return true
	}
	return false
}

// Traverse visits the cell contents for the cycle collector.
func (c *Cell) Traverse(visit func(*Object)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ref != nil {
		visit(c.ref)
	}
}

// Finalize releases the cell contents.
func (c *Cell) Finalize() error {
	c.Clear()
	return nil
}
