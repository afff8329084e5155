package object

import (
	"bytes"
	"fmt"
	"math/big"
	"strings"

	"github.com/deepnoodle-ai/serpent/errz"
	"github.com/deepnoodle-ai/serpent/op"
)

// normalizeIndex converts an index object to an in-range offset, applying
// negative indexing from the end.
func normalizeIndex(r *Registry, idx *Object, length int, what string) (int, error) {
	v, ok := asBigInt(idx)
	if !ok {
		return 0, r.Raise(errz.ErrType,
			"%s indices must be integers, not %s", what, idx.TypeName())
	}
	if !v.IsInt64() {
		return 0, r.Raise(errz.ErrIndex, "%s index out of range", what)
	}
	i := v.Int64()
	if i < 0 {
		i += int64(length)
	}
	if i < 0 || i >= int64(length) {
		return 0, r.Raise(errz.ErrIndex, "%s index out of range", what)
	}
	return int(i), nil
}

// seqElem returns the i'th element of an indexable container as an owned
// reference. ok is false past the end.
func seqElem(r *Registry, container *Object, i int64) (*Object, bool, error) {
	switch p := container.Payload().(type) {
	case *Tuple:
		item, ok := p.At(int(i))
		if !ok {
			return nil, false, nil
		}
		return item.Incref(), true, nil
	case *List:
		item, ok := p.At(int(i))
		if !ok {
			return nil, false, nil
		}
		return item.Incref(), true, nil
	case *Str:
		runes := []rune(p.value)
		if i < 0 || i >= int64(len(runes)) {
			return nil, false, nil
		}
		return r.NewStr(string(runes[i])), true, nil
	case *Bytes:
		if i < 0 || i >= int64(len(p.value)) {
			return nil, false, nil
		}
		return r.NewIntFromInt64(int64(p.value[i])), true, nil
	case *Range:
		v, ok := p.At(i)
		if !ok {
			return nil, false, nil
		}
		return r.NewIntFromInt64(v), true, nil
	default:
		return nil, false, r.Raise(errz.ErrType,
			"'%s' object is not indexable", container.TypeName())
	}
}

func repeatStr(r *Registry, s string, n *big.Int) (*Object, error) {
	if n.Sign() <= 0 {
		return r.NewStr(""), nil
	}
	if !n.IsInt64() || n.Int64()*int64(len(s)+1) > 1<<30 {
		return nil, r.Raise(errz.ErrMemory, "repeated string is too long")
	}
	return r.NewStr(strings.Repeat(s, int(n.Int64()))), nil
}

func repeatBytes(r *Registry, b []byte, n *big.Int) (*Object, error) {
	if n.Sign() <= 0 {
		return r.NewBytes(nil), nil
	}
	if !n.IsInt64() || n.Int64()*int64(len(b)+1) > 1<<30 {
		return nil, r.Raise(errz.ErrMemory, "repeated bytes is too long")
	}
	return r.NewBytes(bytes.Repeat(b, int(n.Int64()))), nil
}

func registerStrSlots(t *Type) {
	s := t.Slots()
	s.Binary[op.Add] = func(r *Registry, left, right *Object) (*Object, error) {
		a, _ := PayloadOf[*Str](left)
		if b, ok := PayloadOf[*Str](right); ok {
			return r.NewStr(a.value + b.value), nil
		}
		return r.notImplemented.Incref(), nil
	}
	s.Binary[op.Multiply] = func(r *Registry, left, right *Object) (*Object, error) {
		a, _ := PayloadOf[*Str](left)
		if n, ok := asBigInt(right); ok {
			return repeatStr(r, a.value, n)
		}
		return r.notImplemented.Incref(), nil
	}
	s.RBinary[op.Multiply] = func(r *Registry, left, right *Object) (*Object, error) {
		b, _ := PayloadOf[*Str](right)
		if n, ok := asBigInt(left); ok {
			return repeatStr(r, b.value, n)
		}
		return r.notImplemented.Incref(), nil
	}
	s.Compare = func(r *Registry, kind op.CompareOpType, left, right *Object) (*Object, error) {
		a, _ := PayloadOf[*Str](left)
		b, ok := PayloadOf[*Str](right)
		if !ok {
			return r.notImplemented.Incref(), nil
		}
		return compareOrdered(r, kind, strings.Compare(a.value, b.value))
	}
	s.Hash = func(r *Registry, o *Object) (uint64, error) {
		p, _ := PayloadOf[*Str](o)
		return hashString(p.value), nil
	}
	s.Bool = func(r *Registry, o *Object) (bool, error) {
		p, _ := PayloadOf[*Str](o)
		return p.value != "", nil
	}
	s.Len = func(r *Registry, o *Object) (int64, error) {
		p, _ := PayloadOf[*Str](o)
		return int64(len([]rune(p.value))), nil
	}
	s.Repr = func(r *Registry, o *Object) (string, error) {
		p, _ := PayloadOf[*Str](o)
		return p.Repr(), nil
	}
	s.Str = func(r *Registry, o *Object) (string, error) {
		p, _ := PayloadOf[*Str](o)
		return p.value, nil
	}
	s.GetItem = func(r *Registry, o, key *Object) (*Object, error) {
		p, _ := PayloadOf[*Str](o)
		runes := []rune(p.value)
		i, err := normalizeIndex(r, key, len(runes), "string")
		if err != nil {
			return nil, err
		}
		return r.NewStr(string(runes[i])), nil
	}
	s.Contains = func(r *Registry, o, item *Object) (bool, error) {
		p, _ := PayloadOf[*Str](o)
		sub, ok := PayloadOf[*Str](item)
		if !ok {
			return false, r.Raise(errz.ErrType,
				"'in <string>' requires string as left operand, not %s", item.TypeName())
		}
		return strings.Contains(p.value, sub.value), nil
	}
	s.Iter = func(r *Registry, o *Object) (*Object, error) {
		return r.NewSeqIterator(o), nil
	}
}

func registerBytesSlots(t *Type) {
	s := t.Slots()
	s.Binary[op.Add] = func(r *Registry, left, right *Object) (*Object, error) {
		a, _ := PayloadOf[*Bytes](left)
		if b, ok := PayloadOf[*Bytes](right); ok {
			joined := make([]byte, 0, len(a.value)+len(b.value))
			joined = append(joined, a.value...)
			joined = append(joined, b.value...)
			return r.NewBytes(joined), nil
		}
		return r.notImplemented.Incref(), nil
	}
	s.Binary[op.Multiply] = func(r *Registry, left, right *Object) (*Object, error) {
		a, _ := PayloadOf[*Bytes](left)
		if n, ok := asBigInt(right); ok {
			return repeatBytes(r, a.value, n)
		}
		return r.notImplemented.Incref(), nil
	}
	s.Compare = func(r *Registry, kind op.CompareOpType, left, right *Object) (*Object, error) {
		a, _ := PayloadOf[*Bytes](left)
		b, ok := PayloadOf[*Bytes](right)
		if !ok {
			return r.notImplemented.Incref(), nil
		}
		return compareOrdered(r, kind, bytes.Compare(a.value, b.value))
	}
	s.Hash = func(r *Registry, o *Object) (uint64, error) {
		p, _ := PayloadOf[*Bytes](o)
		return hashRawBytes(p.value), nil
	}
	s.Bool = func(r *Registry, o *Object) (bool, error) {
		p, _ := PayloadOf[*Bytes](o)
		return len(p.value) != 0, nil
	}
	s.Len = func(r *Registry, o *Object) (int64, error) {
		p, _ := PayloadOf[*Bytes](o)
		return int64(len(p.value)), nil
	}
	s.Repr = func(r *Registry, o *Object) (string, error) {
		p, _ := PayloadOf[*Bytes](o)
		return p.String(), nil
	}
	s.GetItem = func(r *Registry, o, key *Object) (*Object, error) {
		p, _ := PayloadOf[*Bytes](o)
		i, err := normalizeIndex(r, key, len(p.value), "bytes")
		if err != nil {
			return nil, err
		}
		return r.NewIntFromInt64(int64(p.value[i])), nil
	}
	s.Contains = func(r *Registry, o, item *Object) (bool, error) {
		p, _ := PayloadOf[*Bytes](o)
		if sub, ok := PayloadOf[*Bytes](item); ok {
			return bytes.Contains(p.value, sub.value), nil
		}
		if n, ok := asBigInt(item); ok {
			if !n.IsInt64() || n.Int64() < 0 || n.Int64() > 255 {
				return false, r.Raise(errz.ErrValue, "byte must be in range(0, 256)")
			}
			return bytes.IndexByte(p.value, byte(n.Int64())) >= 0, nil
		}
		return false, r.Raise(errz.ErrType, "a bytes-like object is required")
	}
	s.Iter = func(r *Registry, o *Object) (*Object, error) {
		return r.NewSeqIterator(o), nil
	}
}

// seqCompare lexicographically compares two element slices using object
// equality and ordering. It returns -1, 0, 1, or 2 for incomparable.
func seqCompare(r *Registry, a, b []*Object) (int, error) {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		eq, err := r.Equals(a[i], b[i])
		if err != nil {
			return 0, err
		}
		if eq {
			continue
		}
		lt, err := r.CompareOp(op.LessThan, a[i], b[i])
		if err != nil {
			return 0, err
		}
		less, err := r.Truthy(lt)
		lt.Decref()
		if err != nil {
			return 0, err
		}
		if less {
			return -1, nil
		}
		return 1, nil
	}
	switch {
	case len(a) < len(b):
		return -1, nil
	case len(a) > len(b):
		return 1, nil
	default:
		return 0, nil
	}
}

func seqEqual(r *Registry, a, b []*Object) (bool, error) {
	if len(a) != len(b) {
		return false, nil
	}
	for i := range a {
		eq, err := r.Equals(a[i], b[i])
		if err != nil {
			return false, err
		}
		if !eq {
			return false, nil
		}
	}
	return true, nil
}

func seqContains(r *Registry, items []*Object, item *Object) (bool, error) {
	for _, cand := range items {
		eq, err := r.Equals(cand, item)
		if err != nil {
			return false, err
		}
		if eq {
			return true, nil
		}
	}
	return false, nil
}

func seqRepr(r *Registry, items []*Object, open, closer string) (string, error) {
	var b strings.Builder
	b.WriteString(open)
	for i, item := range items {
		if i > 0 {
			b.WriteString(", ")
		}
		s, err := r.Repr(item)
		if err != nil {
			return "", err
		}
		b.WriteString(s)
	}
	b.WriteString(closer)
	return b.String(), nil
}

func registerTupleSlots(t *Type) {
	s := t.Slots()
	s.Binary[op.Add] = func(r *Registry, left, right *Object) (*Object, error) {
		a, _ := PayloadOf[*Tuple](left)
		if b, ok := PayloadOf[*Tuple](right); ok {
			items := make([]*Object, 0, len(a.items)+len(b.items))
			items = append(items, a.items...)
			items = append(items, b.items...)
			return r.NewTuple(items), nil
		}
		return r.notImplemented.Incref(), nil
	}
	s.Compare = func(r *Registry, kind op.CompareOpType, left, right *Object) (*Object, error) {
		a, _ := PayloadOf[*Tuple](left)
		b, ok := PayloadOf[*Tuple](right)
		if !ok {
			return r.notImplemented.Incref(), nil
		}
		cmp, err := seqCompare(r, a.items, b.items)
		if err != nil {
			return nil, err
		}
		return compareOrdered(r, kind, cmp)
	}
	s.Hash = func(r *Registry, o *Object) (uint64, error) {
		p, _ := PayloadOf[*Tuple](o)
		h := uint64(len(p.items)) * 1000003
		for _, item := range p.items {
			ih, err := r.Hash(item)
			if err != nil {
				return 0, err
			}
			h = h*1000003 ^ ih
		}
		return h, nil
	}
	s.Bool = func(r *Registry, o *Object) (bool, error) {
		p, _ := PayloadOf[*Tuple](o)
		return len(p.items) != 0, nil
	}
	s.Len = func(r *Registry, o *Object) (int64, error) {
		p, _ := PayloadOf[*Tuple](o)
		return int64(len(p.items)), nil
	}
	s.Repr = func(r *Registry, o *Object) (string, error) {
		p, _ := PayloadOf[*Tuple](o)
		if len(p.items) == 1 {
			inner, err := r.Repr(p.items[0])
			if err != nil {
				return "", err
			}
			return "(" + inner + ",)", nil
		}
		return seqRepr(r, p.items, "(", ")")
	}
	s.GetItem = func(r *Registry, o, key *Object) (*Object, error) {
		p, _ := PayloadOf[*Tuple](o)
		i, err := normalizeIndex(r, key, len(p.items), "tuple")
		if err != nil {
			return nil, err
		}
		return p.items[i].Incref(), nil
	}
	s.Contains = func(r *Registry, o, item *Object) (bool, error) {
		p, _ := PayloadOf[*Tuple](o)
		return seqContains(r, p.items, item)
	}
	s.Iter = func(r *Registry, o *Object) (*Object, error) {
		return r.NewSeqIterator(o), nil
	}
}

func registerListSlots(t *Type) {
	s := t.Slots()
	s.Binary[op.Add] = func(r *Registry, left, right *Object) (*Object, error) {
		a, _ := PayloadOf[*List](left)
		if b, ok := PayloadOf[*List](right); ok {
			items := append(a.Snapshot(), b.Snapshot()...)
			return r.NewList(items), nil
		}
		return r.notImplemented.Incref(), nil
	}
	s.Binary[op.Multiply] = func(r *Registry, left, right *Object) (*Object, error) {
		a, _ := PayloadOf[*List](left)
		n, ok := asBigInt(right)
		if !ok {
			return r.notImplemented.Incref(), nil
		}
		src := a.Snapshot()
		if n.Sign() <= 0 {
			return r.NewList(nil), nil
		}
		if !n.IsInt64() || n.Int64()*int64(len(src)+1) > 1<<24 {
			return nil, r.Raise(errz.ErrMemory, "repeated list is too long")
		}
		items := make([]*Object, 0, int(n.Int64())*len(src))
		for i := int64(0); i < n.Int64(); i++ {
			items = append(items, src...)
		}
		return r.NewList(items), nil
	}
	s.Compare = func(r *Registry, kind op.CompareOpType, left, right *Object) (*Object, error) {
		a, _ := PayloadOf[*List](left)
		b, ok := PayloadOf[*List](right)
		if !ok {
			return r.notImplemented.Incref(), nil
		}
		cmp, err := seqCompare(r, a.Snapshot(), b.Snapshot())
		if err != nil {
			return nil, err
		}
		return compareOrdered(r, kind, cmp)
	}
	s.Hash = func(r *Registry, o *Object) (uint64, error) {
		return 0, r.Raise(errz.ErrType, "unhashable type: '%s'", o.TypeName())
	}
	s.Bool = func(r *Registry, o *Object) (bool, error) {
		p, _ := PayloadOf[*List](o)
		return p.Len() != 0, nil
	}
	s.Len = func(r *Registry, o *Object) (int64, error) {
		p, _ := PayloadOf[*List](o)
		return int64(p.Len()), nil
	}
	s.Repr = func(r *Registry, o *Object) (string, error) {
		p, _ := PayloadOf[*List](o)
		return seqRepr(r, p.Snapshot(), "[", "]")
	}
	s.GetItem = func(r *Registry, o, key *Object) (*Object, error) {
		p, _ := PayloadOf[*List](o)
		i, err := normalizeIndex(r, key, p.Len(), "list")
		if err != nil {
			return nil, err
		}
		item, ok := p.At(i)
		if !ok {
			return nil, r.Raise(errz.ErrIndex, "list index out of range")
		}
		return item.Incref(), nil
	}
	s.SetItem = func(r *Registry, o, key, value *Object) error {
		p, _ := PayloadOf[*List](o)
		i, err := normalizeIndex(r, key, p.Len(), "list")
		if err != nil {
			return err
		}
		if !p.SetAt(i, value) {
			return r.Raise(errz.ErrIndex, "list assignment index out of range")
		}
		return nil
	}
	s.DelItem = func(r *Registry, o, key *Object) error {
		p, _ := PayloadOf[*List](o)
		i, err := normalizeIndex(r, key, p.Len(), "list")
		if err != nil {
			return err
		}
		if !p.RemoveAt(i) {
			return r.Raise(errz.ErrIndex, "list assignment index out of range")
		}
		return nil
	}
	s.Contains = func(r *Registry, o, item *Object) (bool, error) {
		p, _ := PayloadOf[*List](o)
		return seqContains(r, p.Snapshot(), item)
	}
	s.Iter = func(r *Registry, o *Object) (*Object, error) {
		return r.NewSeqIterator(o), nil
	}
}

func registerRangeSlots(t *Type) {
	s := t.Slots()
	s.Compare = func(r *Registry, kind op.CompareOpType, left, right *Object) (*Object, error) {
		a, _ := PayloadOf[*Range](left)
		b, ok := PayloadOf[*Range](right)
		if !ok {
			return r.notImplemented.Incref(), nil
		}
		eq := a.start == b.start && a.stop == b.stop && a.step == b.step
		switch kind {
		case op.Equal:
			return r.NewBool(eq), nil
		case op.NotEqual:
			return r.NewBool(!eq), nil
		default:
			return r.notImplemented.Incref(), nil
		}
	}
	s.Bool = func(r *Registry, o *Object) (bool, error) {
		p, _ := PayloadOf[*Range](o)
		return p.Len() != 0, nil
	}
	s.Len = func(r *Registry, o *Object) (int64, error) {
		p, _ := PayloadOf[*Range](o)
		return p.Len(), nil
	}
	s.Repr = func(r *Registry, o *Object) (string, error) {
		p, _ := PayloadOf[*Range](o)
		if p.step == 1 {
			return fmt.Sprintf("range(%d, %d)", p.start, p.stop), nil
		}
		return fmt.Sprintf("range(%d, %d, %d)", p.start, p.stop, p.step), nil
	}
	s.GetItem = func(r *Registry, o, key *Object) (*Object, error) {
		p, _ := PayloadOf[*Range](o)
		i, err := normalizeIndex(r, key, int(p.Len()), "range")
		if err != nil {
			return nil, err
		}
		v, _ := p.At(int64(i))
		return r.NewIntFromInt64(v), nil
	}
	s.Contains = func(r *Registry, o, item *Object) (bool, error) {
		p, _ := PayloadOf[*Range](o)
		n, ok := asBigInt(item)
		if !ok || !n.IsInt64() {
			return false, nil
		}
		v := n.Int64()
		if p.step > 0 {
			return v >= p.start && v < p.stop && (v-p.start)%p.step == 0, nil
		}
		return v <= p.start && v > p.stop && (p.start-v)%(-p.step) == 0, nil
	}
	s.Iter = func(r *Registry, o *Object) (*Object, error) {
		return r.NewSeqIterator(o), nil
	}
}

func registerIteratorSlots(seqIter, dictIter *Type) {
	seqIter.Slots().Iter = iterSelf
	seqIter.Slots().Next = func(r *Registry, o *Object) (*Object, bool, error) {
		it, _ := PayloadOf[*SeqIterator](o)
		container := it.Container()
		if container == nil {
			return nil, false, nil
		}
		item, ok, err := seqElem(r, container, it.next())
		if err != nil || !ok {
			return nil, false, err
		}
		return item, true, nil
	}
	dictIter.Slots().Iter = iterSelf
	dictIter.Slots().Next = func(r *Registry, o *Object) (*Object, bool, error) {
		it, _ := PayloadOf[*DictIterator](o)
		key, ok := it.nextKey()
		if !ok {
			return nil, false, nil
		}
		return key.Incref(), true, nil
	}
}

func iterSelf(r *Registry, o *Object) (*Object, error) {
	return o.Incref(), nil
}
