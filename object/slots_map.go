package object

import (
	"strings"

	"github.com/deepnoodle-ai/serpent/errz"
	"github.com/deepnoodle-ai/serpent/op"
)

func registerDictSlots(t *Type) {
	s := t.Slots()
	s.Compare = func(r *Registry, kind op.CompareOpType, left, right *Object) (*Object, error) {
		a, _ := PayloadOf[*Dict](left)
		b, ok := PayloadOf[*Dict](right)
		if !ok {
			return r.notImplemented.Incref(), nil
		}
		switch kind {
		case op.Equal, op.NotEqual:
			eq, err := dictsEqual(r, a, b)
			if err != nil {
				return nil, err
			}
			if kind == op.NotEqual {
				eq = !eq
			}
			return r.NewBool(eq), nil
		default:
			return r.notImplemented.Incref(), nil
		}
	}
	s.Hash = func(r *Registry, o *Object) (uint64, error) {
		return 0, r.Raise(errz.ErrType, "unhashable type: '%s'", o.TypeName())
	}
	s.Bool = func(r *Registry, o *Object) (bool, error) {
		p, _ := PayloadOf[*Dict](o)
		return p.Len() != 0, nil
	}
	s.Len = func(r *Registry, o *Object) (int64, error) {
		p, _ := PayloadOf[*Dict](o)
		return int64(p.Len()), nil
	}
	s.Repr = func(r *Registry, o *Object) (string, error) {
		p, _ := PayloadOf[*Dict](o)
		var b strings.Builder
		b.WriteString("{")
		for i, item := range p.Items() {
			if i > 0 {
				b.WriteString(", ")
			}
			ks, err := r.Repr(item[0])
			if err != nil {
				return "", err
			}
			vs, err := r.Repr(item[1])
			if err != nil {
				return "", err
			}
			b.WriteString(ks)
			b.WriteString(": ")
			b.WriteString(vs)
		}
		b.WriteString("}")
		return b.String(), nil
	}
	s.GetItem = func(r *Registry, o, key *Object) (*Object, error) {
		p, _ := PayloadOf[*Dict](o)
		v, ok, err := p.Get(r, key)
		if err != nil {
			return nil, err
		}
		if !ok {
			ks, rerr := r.Repr(key)
			if rerr != nil {
				ks = "<key>"
			}
			return nil, r.Raise(errz.ErrKey, "%s", ks)
		}
		return v.Incref(), nil
	}
	s.SetItem = func(r *Registry, o, key, value *Object) error {
		p, _ := PayloadOf[*Dict](o)
		return p.Set(r, key, value)
	}
	s.DelItem = func(r *Registry, o, key *Object) error {
		p, _ := PayloadOf[*Dict](o)
		ok, err := p.Delete(r, key)
		if err != nil {
			return err
		}
		if !ok {
			ks, rerr := r.Repr(key)
			if rerr != nil {
				ks = "<key>"
			}
			return r.Raise(errz.ErrKey, "%s", ks)
		}
		return nil
	}
	s.Contains = func(r *Registry, o, item *Object) (bool, error) {
		p, _ := PayloadOf[*Dict](o)
		_, ok, err := p.Get(r, item)
		return ok, err
	}
	s.Iter = func(r *Registry, o *Object) (*Object, error) {
		return r.NewDictIterator(o), nil
	}
}

func dictsEqual(r *Registry, a, b *Dict) (bool, error) {
	if a.Len() != b.Len() {
		return false, nil
	}
	for _, item := range a.Items() {
		other, ok, err := b.Get(r, item[0])
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
		eq, err := r.Equals(item[1], other)
		if err != nil {
			return false, err
		}
		if !eq {
			return false, nil
		}
	}
	return true, nil
}

func registerSetSlots(t *Type) {
	s := t.Slots()
	s.Hash = func(r *Registry, o *Object) (uint64, error) {
		return 0, r.Raise(errz.ErrType, "unhashable type: '%s'", o.TypeName())
	}
	s.Bool = func(r *Registry, o *Object) (bool, error) {
		p, _ := PayloadOf[*Set](o)
		return p.Len() != 0, nil
	}
	s.Len = func(r *Registry, o *Object) (int64, error) {
		p, _ := PayloadOf[*Set](o)
		return int64(p.Len()), nil
	}
	s.Repr = func(r *Registry, o *Object) (string, error) {
		p, _ := PayloadOf[*Set](o)
		if p.Len() == 0 {
			return "set()", nil
		}
		return seqRepr(r, p.Items(), "{", "}")
	}
	s.Contains = func(r *Registry, o, item *Object) (bool, error) {
		p, _ := PayloadOf[*Set](o)
		return p.Contains(r, item)
	}
	s.Compare = func(r *Registry, kind op.CompareOpType, left, right *Object) (*Object, error) {
		a, _ := PayloadOf[*Set](left)
		b, ok := PayloadOf[*Set](right)
		if !ok {
			return r.notImplemented.Incref(), nil
		}
		switch kind {
		case op.Equal, op.NotEqual:
			eq, err := setsEqual(r, a, b)
			if err != nil {
				return nil, err
			}
			if kind == op.NotEqual {
				eq = !eq
			}
			return r.NewBool(eq), nil
		default:
			return r.notImplemented.Incref(), nil
		}
	}
	s.Iter = func(r *Registry, o *Object) (*Object, error) {
		// Iterate over a snapshot tuple of the members.
		p, _ := PayloadOf[*Set](o)
		snapshot := r.NewTuple(p.Items())
		it := r.NewSeqIterator(snapshot)
		snapshot.Decref()
		return it, nil
	}
}

func setsEqual(r *Registry, a, b *Set) (bool, error) {
	if a.Len() != b.Len() {
		return false, nil
	}
	for _, item := range a.Items() {
		ok, err := b.Contains(r, item)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}
