package object

import (
	"context"

	"github.com/deepnoodle-ai/serpent/errz"
	"github.com/deepnoodle-ai/serpent/op"
)

// Operation dispatch. Each method resolves the relevant slot through the
// operand's MRO and falls back per the protocol. Result references are
// owned by the caller unless stated otherwise.

// isNotImplemented reports whether a slot deferred to the other operand.
func (r *Registry) isNotImplemented(o *Object) bool {
	return o == r.notImplemented
}

// BinaryOp evaluates left <kind> right. The left operand's slot runs first;
// if it defers, the right operand's reflected slot gets a chance. When the
// right operand's type is a proper subclass of the left's and overrides the
// reflected slot, it runs before the left slot, so subclasses can refine
// base-type operators.
func (r *Registry) BinaryOp(kind op.BinaryOpType, left, right *Object) (*Object, error) {
	lt, rt := left.TypeOf(), right.TypeOf()
	triedReflected := false
	if rt != lt && rt.IsSubtypeOf(lt) {
		rfn, rOwner := rt.rbinarySlotOwner(kind)
		_, lOwner := lt.rbinarySlotOwner(kind)
		if rfn != nil && rOwner != lOwner {
			triedReflected = true
			res, err := rfn(r, left, right)
			if err != nil {
				return nil, err
			}
			if !r.isNotImplemented(res) {
				return res, nil
			}
			res.Decref()
		}
	}
	if fn := lt.binarySlot(kind); fn != nil {
		res, err := fn(r, left, right)
		if err != nil {
			return nil, err
		}
		if !r.isNotImplemented(res) {
			return res, nil
		}
		res.Decref()
	}
	if rt != lt && !triedReflected {
		if fn := rt.rbinarySlot(kind); fn != nil {
			res, err := fn(r, left, right)
			if err != nil {
				return nil, err
			}
			if !r.isNotImplemented(res) {
				return res, nil
			}
			res.Decref()
		}
	}
	return nil, r.Raise(errz.ErrType,
		"unsupported operand type(s) for %s: '%s' and '%s'",
		kind, left.TypeName(), right.TypeName())
}

// UnaryOp evaluates <kind> o. Boolean not is handled here directly since it
// is defined for every object via truthiness.
func (r *Registry) UnaryOp(kind op.UnaryOpType, o *Object) (*Object, error) {
	if kind == op.UnaryNot {
		truthy, err := r.Truthy(o)
		if err != nil {
			return nil, err
		}
		return r.NewBool(!truthy), nil
	}
	if fn := o.TypeOf().unarySlot(kind); fn != nil {
		return fn(r, o)
	}
	return nil, r.Raise(errz.ErrType,
		"bad operand type for unary %s: '%s'", kind, o.TypeName())
}

// CompareOp evaluates a rich comparison, returning an object. Identity
// comparisons never consult slots.
func (r *Registry) CompareOp(kind op.CompareOpType, left, right *Object) (*Object, error) {
	switch kind {
	case op.Is:
		return r.NewBool(left == right), nil
	case op.IsNot:
		return r.NewBool(left != right), nil
	}
	if fn := left.TypeOf().compareSlot(); fn != nil {
		res, err := fn(r, kind, left, right)
		if err != nil {
			return nil, err
		}
		if !r.isNotImplemented(res) {
			return res, nil
		}
		res.Decref()
	}
	if right.TypeOf() != left.TypeOf() {
		if fn := right.TypeOf().compareSlot(); fn != nil {
			res, err := fn(r, swapCompare(kind), right, left)
			if err != nil {
				return nil, err
			}
			if !r.isNotImplemented(res) {
				return res, nil
			}
			res.Decref()
		}
	}
	// Equality falls back to identity; ordering has no fallback.
	switch kind {
	case op.Equal:
		return r.NewBool(left == right), nil
	case op.NotEqual:
		return r.NewBool(left != right), nil
	}
	return nil, r.Raise(errz.ErrType,
		"'%s' not supported between instances of '%s' and '%s'",
		kind, left.TypeName(), right.TypeName())
}

// swapCompare mirrors an ordering operator for the reflected operand.
func swapCompare(kind op.CompareOpType) op.CompareOpType {
	switch kind {
	case op.LessThan:
		return op.GreaterThan
	case op.LessThanOrEqual:
		return op.GreaterThanOrEqual
	case op.GreaterThan:
		return op.LessThan
	case op.GreaterThanOrEqual:
		return op.LessThanOrEqual
	default:
		return kind
	}
}

// Equals reports value equality, with an identity fast path.
func (r *Registry) Equals(a, b *Object) (bool, error) {
	if a == b {
		return true, nil
	}
	res, err := r.CompareOp(op.Equal, a, b)
	if err != nil {
		return false, err
	}
	defer res.Decref()
	return r.Truthy(res)
}

// Hash returns the object's hash, or a TypeError for unhashable types.
func (r *Registry) Hash(o *Object) (uint64, error) {
	if fn := o.TypeOf().hashSlot(); fn != nil {
		return fn(r, o)
	}
	return 0, r.Raise(errz.ErrType, "unhashable type: '%s'", o.TypeName())
}

// Truthy evaluates the object as a condition: the bool slot, then a
// non-zero length, then true.
func (r *Registry) Truthy(o *Object) (bool, error) {
	if fn := o.TypeOf().boolSlot(); fn != nil {
		return fn(r, o)
	}
	if fn := o.TypeOf().lenSlot(); fn != nil {
		n, err := fn(r, o)
		if err != nil {
			return false, err
		}
		return n != 0, nil
	}
	return true, nil
}

// Repr returns the object's source-like representation.
func (r *Registry) Repr(o *Object) (string, error) {
	if fn := o.TypeOf().reprSlot(); fn != nil {
		return fn(r, o)
	}
	return "<" + o.TypeName() + " object>", nil
}

// Str returns the object's display string, falling back to Repr.
func (r *Registry) Str(o *Object) (string, error) {
	if fn := o.TypeOf().strSlot(); fn != nil {
		return fn(r, o)
	}
	return r.Repr(o)
}

// Len returns the object's length.
func (r *Registry) Len(o *Object) (int64, error) {
	if fn := o.TypeOf().lenSlot(); fn != nil {
		return fn(r, o)
	}
	return 0, r.Raise(errz.ErrType, "object of type '%s' has no len()", o.TypeName())
}

// GetItem evaluates o[key].
func (r *Registry) GetItem(o, key *Object) (*Object, error) {
	if fn := o.TypeOf().getItemSlot(); fn != nil {
		return fn(r, o, key)
	}
	return nil, r.Raise(errz.ErrType, "'%s' object is not subscriptable", o.TypeName())
}

// SetItem evaluates o[key] = value.
func (r *Registry) SetItem(o, key, value *Object) error {
	if fn := o.TypeOf().setItemSlot(); fn != nil {
		return fn(r, o, key, value)
	}
	return r.Raise(errz.ErrType, "'%s' object does not support item assignment", o.TypeName())
}

// DelItem evaluates del o[key].
func (r *Registry) DelItem(o, key *Object) error {
	if fn := o.TypeOf().delItemSlot(); fn != nil {
		return fn(r, o, key)
	}
	return r.Raise(errz.ErrType, "'%s' object does not support item deletion", o.TypeName())
}

// Contains evaluates item in container, falling back to iteration.
func (r *Registry) Contains(container, item *Object) (bool, error) {
	if fn := container.TypeOf().containsSlot(); fn != nil {
		return fn(r, container, item)
	}
	it, err := r.GetIter(container)
	if err != nil {
		return false, r.Raise(errz.ErrType,
			"argument of type '%s' is not iterable", container.TypeName())
	}
	defer it.Decref()
	for {
		v, ok, err := r.Next(it)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
		eq, err := r.Equals(v, item)
		v.Decref()
		if err != nil {
			return false, err
		}
		if eq {
			return true, nil
		}
	}
}

// GetIter returns an iterator over the object.
func (r *Registry) GetIter(o *Object) (*Object, error) {
	if fn := o.TypeOf().iterSlot(); fn != nil {
		return fn(r, o)
	}
	return nil, r.Raise(errz.ErrType, "'%s' object is not iterable", o.TypeName())
}

// Next advances an iterator. It returns ok=false when exhausted.
func (r *Registry) Next(it *Object) (*Object, bool, error) {
	if fn := it.TypeOf().nextSlot(); fn != nil {
		return fn(r, it)
	}
	return nil, false, r.Raise(errz.ErrType, "'%s' object is not an iterator", it.TypeName())
}

// Collect drains an iterable into a slice of owned references. On error the
// partial results are released.
func (r *Registry) Collect(iterable *Object) ([]*Object, error) {
	it, err := r.GetIter(iterable)
	if err != nil {
		return nil, err
	}
	defer it.Decref()
	var items []*Object
	for {
		v, ok, err := r.Next(it)
		if err != nil {
			for _, done := range items {
				done.Decref()
			}
			return nil, err
		}
		if !ok {
			return items, nil
		}
		items = append(items, v)
	}
}

// Call invokes a callable through its call slot.
func (r *Registry) Call(ctx context.Context, callee *Object, args []*Object, kwargs map[string]*Object) (*Object, error) {
	if fn := callee.TypeOf().callSlot(); fn != nil {
		return fn(ctx, r, callee, args, kwargs)
	}
	return nil, r.Raise(errz.ErrType, "'%s' object is not callable", callee.TypeName())
}
