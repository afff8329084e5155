package object

import (
	"context"
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"github.com/deepnoodle-ai/serpent/errz"
	"github.com/deepnoodle-ai/serpent/op"
)

// registerBuiltinSlots wires the slot tables for every builtin type created
// during bootstrap.
func (r *Registry) registerBuiltinSlots() {
	registerIntSlots(r.intType)
	registerFloatSlots(r.floatType)
	registerComplexSlots(r.complexType)
	registerBoolSlots(r.boolType)
	registerStrSlots(r.strType)
	registerBytesSlots(r.bytesType)
	registerNoneSlots(r.noneType)
	registerEllipsisSlots(r.ellipsisType, r.notImplType)
	registerTupleSlots(r.tupleType)
	registerListSlots(r.listType)
	registerDictSlots(r.dictType)
	registerSetSlots(r.setType)
	registerCellSlots(r.cellType)
	registerFunctionSlots(r.functionType)
	registerBuiltinFuncSlots(r.builtinFuncType)
	registerMethodSlots(r.methodType)
	registerCodeSlots(r.codeType)
	registerModuleSlots(r.moduleType)
	registerIteratorSlots(r.seqIterType, r.dictIterType)
	registerRangeSlots(r.rangeType)
	registerConstructors(r)
}

func registerObjectSlots(t *Type) {
	s := t.Slots()
	s.GetAttr = genericGetAttr
	s.SetAttr = genericSetAttr
	s.DelAttr = genericDelAttr
	s.Repr = func(r *Registry, o *Object) (string, error) {
		return fmt.Sprintf("<%s object at %p>", o.TypeName(), o), nil
	}
	s.Bool = func(r *Registry, o *Object) (bool, error) {
		return true, nil
	}
	s.Hash = func(r *Registry, o *Object) (uint64, error) {
		return hashString(fmt.Sprintf("%p", o)), nil
	}
	s.Compare = func(r *Registry, kind op.CompareOpType, left, right *Object) (*Object, error) {
		switch kind {
		case op.Equal:
			return r.NewBool(left == right), nil
		case op.NotEqual:
			return r.NewBool(left != right), nil
		default:
			return r.notImplemented.Incref(), nil
		}
	}
}

func registerTypeSlots(t *Type) {
	s := t.Slots()
	s.Repr = func(r *Registry, o *Object) (string, error) {
		tp, _ := PayloadOf[*Type](o)
		return fmt.Sprintf("<class '%s'>", tp.Name()), nil
	}
	s.Call = func(ctx context.Context, r *Registry, callee *Object, args []*Object, kwargs map[string]*Object) (*Object, error) {
		tp, _ := PayloadOf[*Type](callee)
		fn := tp.newSlot()
		if fn == nil {
			return nil, r.Raise(errz.ErrType, "cannot create '%s' instances", tp.Name())
		}
		return fn(ctx, r, tp, args, kwargs)
	}
	s.GetAttr = func(r *Registry, o *Object, name string) (*Object, error) {
		tp, _ := PayloadOf[*Type](o)
		if name == "__name__" {
			return r.NewStr(tp.Name()), nil
		}
		if name == "__mro__" {
			mro := tp.MRO()
			items := make([]*Object, len(mro))
			for i, m := range mro {
				items[i] = m.Obj()
			}
			return r.NewTuple(items), nil
		}
		if v, _, ok := tp.GetAttr(name); ok {
			return v.Incref(), nil
		}
		return genericGetAttr(r, o, name)
	}
	s.SetAttr = func(r *Registry, o *Object, name string, value *Object) error {
		tp, _ := PayloadOf[*Type](o)
		tp.SetAttr(name, value)
		return nil
	}
	s.DelAttr = func(r *Registry, o *Object, name string) error {
		tp, _ := PayloadOf[*Type](o)
		if !tp.DeleteAttr(name) {
			return r.Raise(errz.ErrAttribute, "type object '%s' has no attribute '%s'", tp.Name(), name)
		}
		return nil
	}
}

func registerNoneSlots(t *Type) {
	s := t.Slots()
	s.Repr = func(r *Registry, o *Object) (string, error) {
		return "None", nil
	}
	s.Bool = func(r *Registry, o *Object) (bool, error) {
		return false, nil
	}
	s.Hash = func(r *Registry, o *Object) (uint64, error) {
		return hashString("None"), nil
	}
}

func registerEllipsisSlots(ellipsis, notImpl *Type) {
	ellipsis.Slots().Repr = func(r *Registry, o *Object) (string, error) {
		return "Ellipsis", nil
	}
	notImpl.Slots().Repr = func(r *Registry, o *Object) (string, error) {
		return "NotImplemented", nil
	}
}

func registerExceptionSlots(t *Type) {
	s := t.Slots()
	s.Repr = func(r *Registry, o *Object) (string, error) {
		exc, ok := PayloadOf[*Exception](o)
		if !ok {
			return fmt.Sprintf("<%s>", o.TypeName()), nil
		}
		if exc.message == "" {
			return o.TypeName() + "()", nil
		}
		return fmt.Sprintf("%s(%s)", o.TypeName(), strconv.Quote(exc.message)), nil
	}
	s.Str = func(r *Registry, o *Object) (string, error) {
		exc, ok := PayloadOf[*Exception](o)
		if !ok {
			return o.TypeName(), nil
		}
		return exc.message, nil
	}
}

func registerCellSlots(t *Type) {
	t.Slots().Repr = func(r *Registry, o *Object) (string, error) {
		c, _ := PayloadOf[*Cell](o)
		if v, ok := c.Get(); ok {
			return fmt.Sprintf("<cell at %p: %s object>", o, v.TypeName()), nil
		}
		return fmt.Sprintf("<cell at %p: empty>", o), nil
	}
}

func registerCodeSlots(t *Type) {
	t.Slots().Repr = func(r *Registry, o *Object) (string, error) {
		c, _ := PayloadOf[*CodePayload](o)
		return fmt.Sprintf("<code object %s, file %q>", c.code.Name(), c.code.Filename()), nil
	}
}

func registerFunctionSlots(t *Type) {
	s := t.Slots()
	s.Repr = func(r *Registry, o *Object) (string, error) {
		f, _ := PayloadOf[*Function](o)
		return fmt.Sprintf("<function %s at %p>", f.name, o), nil
	}
	s.Call = func(ctx context.Context, r *Registry, callee *Object, args []*Object, kwargs map[string]*Object) (*Object, error) {
		if r.invoker == nil {
			return nil, r.Raise(errz.ErrRuntime, "no interpreter attached to registry")
		}
		return r.invoker(ctx, r, callee, args, kwargs)
	}
	s.DescGet = bindMethodDescriptor
}

func registerBuiltinFuncSlots(t *Type) {
	s := t.Slots()
	s.Repr = func(r *Registry, o *Object) (string, error) {
		b, _ := PayloadOf[*BuiltinFunction](o)
		return fmt.Sprintf("<built-in function %s>", b.name), nil
	}
	s.Call = func(ctx context.Context, r *Registry, callee *Object, args []*Object, kwargs map[string]*Object) (*Object, error) {
		b, _ := PayloadOf[*BuiltinFunction](callee)
		return b.fn(ctx, r, args, kwargs)
	}
	s.DescGet = bindMethodDescriptor
}

func registerMethodSlots(t *Type) {
	s := t.Slots()
	s.Repr = func(r *Registry, o *Object) (string, error) {
		m, _ := PayloadOf[*BoundMethod](o)
		name := "?"
		switch fn := m.callable.Payload().(type) {
		case *Function:
			name = fn.name
		case *BuiltinFunction:
			name = fn.name
		}
		return fmt.Sprintf("<bound method %s of %s object>", name, m.receiver.TypeName()), nil
	}
	s.Call = func(ctx context.Context, r *Registry, callee *Object, args []*Object, kwargs map[string]*Object) (*Object, error) {
		m, _ := PayloadOf[*BoundMethod](callee)
		full := make([]*Object, 0, len(args)+1)
		full = append(full, m.receiver)
		full = append(full, args...)
		return r.Call(ctx, m.callable, full, kwargs)
	}
}

// bindMethodDescriptor is the descriptor-get slot for callables: accessing
// one through an instance produces a bound method.
func bindMethodDescriptor(r *Registry, desc, instance, owner *Object) (*Object, error) {
	if instance == nil {
		return desc.Incref(), nil
	}
	return r.NewBoundMethod(desc, instance), nil
}

func registerModuleSlots(t *Type) {
	s := t.Slots()
	s.Repr = func(r *Registry, o *Object) (string, error) {
		m, _ := PayloadOf[*Module](o)
		return fmt.Sprintf("<module '%s'>", m.name), nil
	}
	s.GetAttr = func(r *Registry, o *Object, name string) (*Object, error) {
		m, _ := PayloadOf[*Module](o)
		v, ok, err := m.Dict().GetString(r, name)
		if err != nil {
			return nil, err
		}
		if ok {
			return v.Incref(), nil
		}
		return nil, r.Raise(errz.ErrAttribute, "module '%s' has no attribute '%s'", m.name, name)
	}
	s.SetAttr = func(r *Registry, o *Object, name string, value *Object) error {
		m, _ := PayloadOf[*Module](o)
		return m.Dict().SetString(r, name, value)
	}
	s.DelAttr = func(r *Registry, o *Object, name string) error {
		m, _ := PayloadOf[*Module](o)
		ok, err := m.Dict().DeleteString(r, name)
		if err != nil {
			return err
		}
		if !ok {
			return r.Raise(errz.ErrAttribute, "module '%s' has no attribute '%s'", m.name, name)
		}
		return nil
	}
}

// registerConstructors installs the instantiation slots invoked when a type
// object is called, e.g. int("42") or list(iterable).
func registerConstructors(r *Registry) {
	r.intType.Slots().New = newIntInstance
	r.floatType.Slots().New = newFloatInstance
	r.boolType.Slots().New = newBoolInstance
	r.strType.Slots().New = newStrInstance
	r.tupleType.Slots().New = newTupleInstance
	r.listType.Slots().New = newListInstance
	r.dictType.Slots().New = newDictInstance
	r.setType.Slots().New = newSetInstance
	r.rangeType.Slots().New = newRangeInstance
}

func newIntInstance(ctx context.Context, r *Registry, typ *Type, args []*Object, kwargs map[string]*Object) (*Object, error) {
	if len(args) == 0 {
		return r.NewIntFromInt64(0), nil
	}
	if len(args) > 2 {
		return nil, r.Raise(errz.ErrType, "int() takes at most 2 arguments (%d given)", len(args))
	}
	switch p := args[0].Payload().(type) {
	case *Int:
		return args[0].Incref(), nil
	case *Bool:
		if p.value {
			return r.NewIntFromInt64(1), nil
		}
		return r.NewIntFromInt64(0), nil
	case *Float:
		v, _ := big.NewFloat(p.value).Int(nil)
		return r.NewInt(v), nil
	case *Str:
		base := 10
		if len(args) == 2 {
			b, ok := asBigInt(args[1])
			if !ok || !b.IsInt64() {
				return nil, r.Raise(errz.ErrType, "int() base must be an integer")
			}
			base = int(b.Int64())
		}
		v, ok := new(big.Int).SetString(strings.TrimSpace(p.value), base)
		if !ok {
			return nil, r.Raise(errz.ErrValue,
				"invalid literal for int() with base %d: %s", base, p.Repr())
		}
		return r.NewInt(v), nil
	default:
		return nil, r.Raise(errz.ErrType,
			"int() argument must be a string or a number, not '%s'", args[0].TypeName())
	}
}

func newFloatInstance(ctx context.Context, r *Registry, typ *Type, args []*Object, kwargs map[string]*Object) (*Object, error) {
	if len(args) == 0 {
		return r.NewFloat(0), nil
	}
	if len(args) > 1 {
		return nil, r.Raise(errz.ErrType, "float() takes at most 1 argument (%d given)", len(args))
	}
	if f, ok := numericAsFloat(args[0]); ok {
		return r.NewFloat(f), nil
	}
	if s, ok := PayloadOf[*Str](args[0]); ok {
		f, err := strconv.ParseFloat(strings.TrimSpace(s.value), 64)
		if err != nil {
			return nil, r.Raise(errz.ErrValue, "could not convert string to float: %s", s.Repr())
		}
		return r.NewFloat(f), nil
	}
	return nil, r.Raise(errz.ErrType,
		"float() argument must be a string or a number, not '%s'", args[0].TypeName())
}

func newBoolInstance(ctx context.Context, r *Registry, typ *Type, args []*Object, kwargs map[string]*Object) (*Object, error) {
	if len(args) == 0 {
		return r.NewBool(false), nil
	}
	truthy, err := r.Truthy(args[0])
	if err != nil {
		return nil, err
	}
	return r.NewBool(truthy), nil
}

func newStrInstance(ctx context.Context, r *Registry, typ *Type, args []*Object, kwargs map[string]*Object) (*Object, error) {
	if len(args) == 0 {
		return r.NewStr(""), nil
	}
	s, err := r.Str(args[0])
	if err != nil {
		return nil, err
	}
	return r.NewStr(s), nil
}

func newTupleInstance(ctx context.Context, r *Registry, typ *Type, args []*Object, kwargs map[string]*Object) (*Object, error) {
	if len(args) == 0 {
		return r.NewTuple(nil), nil
	}
	items, err := r.Collect(args[0])
	if err != nil {
		return nil, err
	}
	t := r.NewTuple(items)
	for _, item := range items {
		item.Decref()
	}
	return t, nil
}

func newListInstance(ctx context.Context, r *Registry, typ *Type, args []*Object, kwargs map[string]*Object) (*Object, error) {
	if len(args) == 0 {
		return r.NewList(nil), nil
	}
	items, err := r.Collect(args[0])
	if err != nil {
		return nil, err
	}
	l := r.NewList(items)
	for _, item := range items {
		item.Decref()
	}
	return l, nil
}

func newDictInstance(ctx context.Context, r *Registry, typ *Type, args []*Object, kwargs map[string]*Object) (*Object, error) {
	d := r.NewDict()
	payload, _ := PayloadOf[*Dict](d)
	if len(args) == 1 {
		if src, ok := PayloadOf[*Dict](args[0]); ok {
			if err := payload.Update(r, src); err != nil {
				d.Decref()
				return nil, err
			}
		} else {
			d.Decref()
			return nil, r.Raise(errz.ErrType, "dict() argument must be a dict")
		}
	}
	for name, value := range kwargs {
		if err := payload.SetString(r, name, value); err != nil {
			d.Decref()
			return nil, err
		}
	}
	return d, nil
}

func newSetInstance(ctx context.Context, r *Registry, typ *Type, args []*Object, kwargs map[string]*Object) (*Object, error) {
	s := r.NewSet()
	if len(args) == 0 {
		return s, nil
	}
	payload, _ := PayloadOf[*Set](s)
	items, err := r.Collect(args[0])
	if err != nil {
		s.Decref()
		return nil, err
	}
	for _, item := range items {
		err = payload.Add(r, item)
		item.Decref()
		if err != nil {
			s.Decref()
			return nil, err
		}
	}
	return s, nil
}

func newRangeInstance(ctx context.Context, r *Registry, typ *Type, args []*Object, kwargs map[string]*Object) (*Object, error) {
	vals := make([]int64, len(args))
	if len(args) < 1 || len(args) > 3 {
		return nil, r.Raise(errz.ErrType, "range expected 1 to 3 arguments, got %d", len(args))
	}
	for i, a := range args {
		v, ok := asBigInt(a)
		if !ok || !v.IsInt64() {
			return nil, r.Raise(errz.ErrType,
				"'%s' object cannot be interpreted as an integer", a.TypeName())
		}
		vals[i] = v.Int64()
	}
	switch len(args) {
	case 1:
		return r.NewRange(0, vals[0], 1)
	case 2:
		return r.NewRange(vals[0], vals[1], 1)
	default:
		return r.NewRange(vals[0], vals[1], vals[2])
	}
}
