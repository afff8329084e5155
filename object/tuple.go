package object

// Tuple is the payload of an immutable sequence. It owns strong references
// to its items.
type Tuple struct {
	items []*Object
}

func (t *Tuple) PayloadKind() string { return "tuple" }

// Len returns the number of items.
func (t *Tuple) Len() int { return len(t.items) }

// Items returns the items as borrowed references. Callers must not mutate
// the slice.
func (t *Tuple) Items() []*Object { return t.items }

// At returns the item at index i.
func (t *Tuple) At(i int) (*Object, bool) {
	if i < 0 || i >= len(t.items) {
		return nil, false
	}
	return t.items[i], true
}

// Traverse visits the items for the cycle collector.
func (t *Tuple) Traverse(visit func(*Object)) {
	for _, item := range t.items {
		visit(item)
	}
}

// Finalize releases the item references.
func (t *Tuple) Finalize() error {
	items := t.items
	t.items = nil
	for _, item := range items {
		item.Decref()
	}
	return nil
}
