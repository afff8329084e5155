package object

// Set is the payload of a hash set, backed by a dict whose values are the
// None singleton.
type Set struct {
	dict Dict
}

func (s *Set) PayloadKind() string { return "set" }

// Len returns the number of members.
func (s *Set) Len() int { return s.dict.Len() }

// Add inserts a member.
func (s *Set) Add(r *Registry, item *Object) error {
	return s.dict.Set(r, item, r.None())
}

// Contains reports membership.
func (s *Set) Contains(r *Registry, item *Object) (bool, error) {
	_, ok, err := s.dict.Get(r, item)
	return ok, err
}

// Remove deletes a member. It reports whether the member was present.
func (s *Set) Remove(r *Registry, item *Object) (bool, error) {
	return s.dict.Delete(r, item)
}

// Items returns the members in insertion order, as borrowed references.
func (s *Set) Items() []*Object { return s.dict.Keys() }

// Traverse visits the members for the cycle collector.
func (s *Set) Traverse(visit func(*Object)) {
	s.dict.Traverse(visit)
}

// Finalize releases the members.
func (s *Set) Finalize() error {
	s.dict.Clear()
	return nil
}
