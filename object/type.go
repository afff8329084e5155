package object

import (
	"context"
	"sync"

	"github.com/deepnoodle-ai/serpent/op"
)

// Slot function signatures. Every slot receives the registry explicitly so
// that implementations can allocate result objects and raise errors without
// reaching for package globals.
type (
	UnaryFunc    func(r *Registry, o *Object) (*Object, error)
	BinaryFunc   func(r *Registry, left, right *Object) (*Object, error)
	CompareFunc  func(r *Registry, kind op.CompareOpType, left, right *Object) (*Object, error)
	HashFunc     func(r *Registry, o *Object) (uint64, error)
	BoolFunc     func(r *Registry, o *Object) (bool, error)
	ReprFunc     func(r *Registry, o *Object) (string, error)
	LenFunc      func(r *Registry, o *Object) (int64, error)
	GetItemFunc  func(r *Registry, o, key *Object) (*Object, error)
	SetItemFunc  func(r *Registry, o, key, value *Object) error
	DelItemFunc  func(r *Registry, o, key *Object) error
	ContainsFunc func(r *Registry, o, item *Object) (bool, error)
	IterFunc     func(r *Registry, o *Object) (*Object, error)
	NextFunc     func(r *Registry, o *Object) (*Object, bool, error)
	CallFunc     func(ctx context.Context, r *Registry, callee *Object, args []*Object, kwargs map[string]*Object) (*Object, error)
	GetAttrFunc  func(r *Registry, o *Object, name string) (*Object, error)
	SetAttrFunc  func(r *Registry, o *Object, name string, value *Object) error
	DelAttrFunc  func(r *Registry, o *Object, name string) error
	DescGetFunc  func(r *Registry, desc, instance, owner *Object) (*Object, error)
	NewFunc      func(ctx context.Context, r *Registry, typ *Type, args []*Object, kwargs map[string]*Object) (*Object, error)
	FinalizeFunc func(o *Object) error
)

// Slots is a type's behavior table. A nil entry means the type does not
// support the operation locally; lookup walks the MRO, so a subclass
// inherits any slot it does not define. Marking a slot explicitly absent is
// done by defining a function that raises.
type Slots struct {
	Unary    [op.UnaryInvert + 1]UnaryFunc
	Binary   [op.MatMul + 1]BinaryFunc
	RBinary  [op.MatMul + 1]BinaryFunc // reflected form, tried on the right operand
	Compare  CompareFunc
	Hash     HashFunc
	Bool     BoolFunc
	Repr     ReprFunc
	Str      ReprFunc
	Len      LenFunc
	GetItem  GetItemFunc
	SetItem  SetItemFunc
	DelItem  DelItemFunc
	Contains ContainsFunc
	Iter     IterFunc
	Next     NextFunc
	Call     CallFunc
	GetAttr  GetAttrFunc
	SetAttr  SetAttrFunc
	DelAttr  DelAttrFunc
	DescGet  DescGetFunc
	New      NewFunc
	Finalize FinalizeFunc
}

// Type is the payload of a type object. The cell holding it is reachable via
// Obj; Object.TypeOf returns the payload directly so hot paths skip a
// downcast.
type Type struct {
	name  string
	doc   string
	bases []*Type
	mro   []*Type // linearization, self first, ends at the object root
	slots Slots

	// obj is the type object whose payload this is, set once at creation.
	obj *Object

	// attrs is the type namespace (methods, class attributes).
	mu    sync.RWMutex
	attrs map[string]*Object

	// subclasses weakly tracks directly derived types, so a dead subclass
	// never keeps its type object alive. Dead entries are pruned on read.
	subMu      sync.Mutex
	subclasses []*Weak
}

func (t *Type) PayloadKind() string { return "type" }

// Name returns the type's name.
func (t *Type) Name() string { return t.name }

// Doc returns the type's doc string, if any.
func (t *Type) Doc() string { return t.doc }

// Obj returns the type object holding this payload.
func (t *Type) Obj() *Object { return t.obj }

// Bases returns the direct bases.
func (t *Type) Bases() []*Type {
	out := make([]*Type, len(t.bases))
	copy(out, t.bases)
	return out
}

// MRO returns the method resolution order, starting with the type itself.
func (t *Type) MRO() []*Type {
	out := make([]*Type, len(t.mro))
	copy(out, t.mro)
	return out
}

// addSubclass records a directly derived type. Called once per base at
// type creation.
func (t *Type) addSubclass(w *Weak) {
	t.subMu.Lock()
	t.subclasses = append(t.subclasses, w)
	t.subMu.Unlock()
}

// Subclasses returns the live directly derived types, pruning entries
// whose type objects have died.
func (t *Type) Subclasses() []*Type {
	t.subMu.Lock()
	defer t.subMu.Unlock()
	var out []*Type
	live := t.subclasses[:0]
	for _, w := range t.subclasses {
		o, ok := w.Upgrade()
		if !ok {
			continue
		}
		live = append(live, w)
		if sub, ok := PayloadOf[*Type](o); ok {
			out = append(out, sub)
		}
		o.Decref()
	}
	for i := len(live); i < len(t.subclasses); i++ {
		t.subclasses[i] = nil
	}
	t.subclasses = live
	return out
}

// Slots returns the type's own slot table, for mutation during type setup.
// Inherited behavior is resolved through the lookup methods, not here.
func (t *Type) Slots() *Slots { return &t.slots }

// IsSubtypeOf reports whether other appears in the type's MRO.
func (t *Type) IsSubtypeOf(other *Type) bool {
	for _, m := range t.mro {
		if m == other {
			return true
		}
	}
	return false
}

// GetAttr looks up a name in the type namespace, walking the MRO. It
// returns the defining type alongside the value so descriptor resolution
// can consult that type's slots.
func (t *Type) GetAttr(name string) (*Object, *Type, bool) {
	for _, m := range t.mro {
		m.mu.RLock()
		v, ok := m.attrs[name]
		m.mu.RUnlock()
		if ok {
			return v, m, true
		}
	}
	return nil, nil, false
}

// OwnAttr looks up a name in this type only, ignoring bases.
func (t *Type) OwnAttr(name string) (*Object, bool) {
	t.mu.RLock()
	v, ok := t.attrs[name]
	t.mu.RUnlock()
	return v, ok
}

// SetAttr stores a name in the type namespace, taking a new strong
// reference to the value and releasing any value it replaces.
func (t *Type) SetAttr(name string, value *Object) {
	value.Incref()
	t.mu.Lock()
	prev := t.attrs[name]
	if t.attrs == nil {
		t.attrs = make(map[string]*Object)
	}
	t.attrs[name] = value
	t.mu.Unlock()
	if prev != nil {
		prev.Decref()
	}
}

// DeleteAttr removes a name from the type namespace, releasing its
// reference. It reports whether the name was present.
func (t *Type) DeleteAttr(name string) bool {
	t.mu.Lock()
	prev, ok := t.attrs[name]
	if ok {
		delete(t.attrs, name)
	}
	t.mu.Unlock()
	if ok {
		prev.Decref()
	}
	return ok
}

// AttrNames returns the names defined directly on this type.
func (t *Type) AttrNames() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	names := make([]string, 0, len(t.attrs))
	for name := range t.attrs {
		names = append(names, name)
	}
	return names
}

// Slot lookup walks the MRO and returns the first definition found,
// so the most derived type wins.

func (t *Type) unarySlot(kind op.UnaryOpType) UnaryFunc {
	for _, m := range t.mro {
		if fn := m.slots.Unary[kind]; fn != nil {
			return fn
		}
	}
	return nil
}

func (t *Type) binarySlot(kind op.BinaryOpType) BinaryFunc {
	for _, m := range t.mro {
		if fn := m.slots.Binary[kind]; fn != nil {
			return fn
		}
	}
	return nil
}

func (t *Type) rbinarySlot(kind op.BinaryOpType) BinaryFunc {
	fn, _ := t.rbinarySlotOwner(kind)
	return fn
}

// rbinarySlotOwner also reports the MRO entry defining the slot, so
// dispatch can tell an inherited reflected slot from an override.
func (t *Type) rbinarySlotOwner(kind op.BinaryOpType) (BinaryFunc, *Type) {
	for _, m := range t.mro {
		if fn := m.slots.RBinary[kind]; fn != nil {
			return fn, m
		}
	}
	return nil, nil
}

func (t *Type) compareSlot() CompareFunc {
	for _, m := range t.mro {
		if m.slots.Compare != nil {
			return m.slots.Compare
		}
	}
	return nil
}

func (t *Type) hashSlot() HashFunc {
	for _, m := range t.mro {
		if m.slots.Hash != nil {
			return m.slots.Hash
		}
	}
	return nil
}

func (t *Type) boolSlot() BoolFunc {
	for _, m := range t.mro {
		if m.slots.Bool != nil {
			return m.slots.Bool
		}
	}
	return nil
}

func (t *Type) reprSlot() ReprFunc {
	for _, m := range t.mro {
		if m.slots.Repr != nil {
			return m.slots.Repr
		}
	}
	return nil
}

func (t *Type) strSlot() ReprFunc {
	for _, m := range t.mro {
		if m.slots.Str != nil {
			return m.slots.Str
		}
	}
	return nil
}

func (t *Type) lenSlot() LenFunc {
	for _, m := range t.mro {
		if m.slots.Len != nil {
			return m.slots.Len
		}
	}
	return nil
}

func (t *Type) getItemSlot() GetItemFunc {
	for _, m := range t.mro {
		if m.slots.GetItem != nil {
			return m.slots.GetItem
		}
	}
	return nil
}

func (t *Type) setItemSlot() SetItemFunc {
	for _, m := range t.mro {
		if m.slots.SetItem != nil {
			return m.slots.SetItem
		}
	}
	return nil
}

func (t *Type) delItemSlot() DelItemFunc {
	for _, m := range t.mro {
		if m.slots.DelItem != nil {
			return m.slots.DelItem
		}
	}
	return nil
}

func (t *Type) containsSlot() ContainsFunc {
	for _, m := range t.mro {
		if m.slots.Contains != nil {
			return m.slots.Contains
		}
	}
	return nil
}

func (t *Type) iterSlot() IterFunc {
	for _, m := range t.mro {
		if m.slots.Iter != nil {
			return m.slots.Iter
		}
	}
	return nil
}

func (t *Type) nextSlot() NextFunc {
	for _, m := range t.mro {
		if m.slots.Next != nil {
			return m.slots.Next
		}
	}
	return nil
}

func (t *Type) callSlot() CallFunc {
	for _, m := range t.mro {
		if m.slots.Call != nil {
			return m.slots.Call
		}
	}
	return nil
}

func (t *Type) getAttrSlot() GetAttrFunc {
	for _, m := range t.mro {
		if m.slots.GetAttr != nil {
			return m.slots.GetAttr
		}
	}
	return nil
}

func (t *Type) setAttrSlot() SetAttrFunc {
	for _, m := range t.mro {
		if m.slots.SetAttr != nil {
			return m.slots.SetAttr
		}
	}
	return nil
}

func (t *Type) delAttrSlot() DelAttrFunc {
	for _, m := range t.mro {
		if m.slots.DelAttr != nil {
			return m.slots.DelAttr
		}
	}
	return nil
}

func (t *Type) descGetSlot() DescGetFunc {
	for _, m := range t.mro {
		if m.slots.DescGet != nil {
			return m.slots.DescGet
		}
	}
	return nil
}

func (t *Type) newSlot() NewFunc {
	for _, m := range t.mro {
		if m.slots.New != nil {
			return m.slots.New
		}
	}
	return nil
}

func (t *Type) finalizeSlot() FinalizeFunc {
	for _, m := range t.mro {
		if m.slots.Finalize != nil {
			return m.slots.Finalize
		}
	}
	return nil
}
