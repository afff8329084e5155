package object

import (
	"context"
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/deepnoodle-ai/serpent/errz"
	"github.com/deepnoodle-ai/serpent/op"
)

func requireInt(t *testing.T, o *Object, expected string) {
	t.Helper()
	p, ok := PayloadOf[*Int](o)
	require.True(t, ok, "expected int, got %s", o.TypeName())
	require.Equal(t, expected, p.String())
}

func requireFloat(t *testing.T, o *Object, expected float64) {
	t.Helper()
	p, ok := PayloadOf[*Float](o)
	require.True(t, ok, "expected float, got %s", o.TypeName())
	require.InDelta(t, expected, p.Value(), 1e-9)
}

func TestIntArithmetic(t *testing.T) {
	r := NewRegistry()
	tests := []struct {
		kind     op.BinaryOpType
		a, b     int64
		expected string
	}{
		{op.Add, 2, 3, "5"},
		{op.Subtract, 10, 4, "6"},
		{op.Multiply, 6, 7, "42"},
		{op.FloorDiv, 7, 2, "3"},
		{op.FloorDiv, -7, 2, "-4"},
		{op.Modulo, 7, 3, "1"},
		{op.Modulo, -7, 3, "2"},
		{op.Power, 2, 10, "1024"},
		{op.LShift, 1, 8, "256"},
		{op.RShift, 256, 4, "16"},
		{op.BitwiseAnd, 12, 10, "8"},
		{op.BitwiseOr, 12, 10, "14"},
		{op.BitwiseXor, 12, 10, "6"},
	}
	for _, tt := range tests {
		a := r.NewIntFromInt64(tt.a)
		b := r.NewIntFromInt64(tt.b)
		res, err := r.BinaryOp(tt.kind, a, b)
		require.NoError(t, err, "%d %s %d", tt.a, tt.kind, tt.b)
		requireInt(t, res, tt.expected)
		res.Decref()
		a.Decref()
		b.Decref()
	}
}

func TestIntTrueDivisionYieldsFloat(t *testing.T) {
	r := NewRegistry()
	a := r.NewIntFromInt64(7)
	b := r.NewIntFromInt64(2)
	defer a.Decref()
	defer b.Decref()
	res, err := r.BinaryOp(op.Divide, a, b)
	require.NoError(t, err)
	defer res.Decref()
	requireFloat(t, res, 3.5)
}

func TestDivisionByZero(t *testing.T) {
	r := NewRegistry()
	a := r.NewIntFromInt64(1)
	zero := r.NewIntFromInt64(0)
	defer a.Decref()
	defer zero.Decref()

	for _, kind := range []op.BinaryOpType{op.Divide, op.FloorDiv, op.Modulo} {
		_, err := r.BinaryOp(kind, a, zero)
		require.Error(t, err)
		raised, ok := AsRaised(err)
		require.True(t, ok)
		require.Equal(t, errz.ErrZeroDivision, raised.Kind())
	}
}

func TestMixedIntFloatArithmetic(t *testing.T) {
	r := NewRegistry()
	i := r.NewIntFromInt64(2)
	f := r.NewFloat(0.5)
	defer i.Decref()
	defer f.Decref()

	res, err := r.BinaryOp(op.Add, i, f)
	require.NoError(t, err)
	requireFloat(t, res, 2.5)
	res.Decref()

	res, err = r.BinaryOp(op.Multiply, f, i)
	require.NoError(t, err)
	requireFloat(t, res, 1.0)
	res.Decref()
}

func TestBigIntOverflowFree(t *testing.T) {
	r := NewRegistry()
	huge := new(big.Int).Lsh(big.NewInt(1), 100)
	a := r.NewInt(huge)
	defer a.Decref()
	res, err := r.BinaryOp(op.Multiply, a, a)
	require.NoError(t, err)
	defer res.Decref()
	requireInt(t, res, new(big.Int).Lsh(big.NewInt(1), 200).String())
}

func TestUnsupportedOperandTypeError(t *testing.T) {
	r := NewRegistry()
	a := r.NewIntFromInt64(1)
	s := r.NewStr("x")
	defer a.Decref()
	defer s.Decref()

	_, err := r.BinaryOp(op.Subtract, a, s)
	require.Error(t, err)
	raised, ok := AsRaised(err)
	require.True(t, ok)
	require.Equal(t, errz.ErrType, raised.Kind())
	require.Contains(t, err.Error(), "unsupported operand type(s) for -: 'int' and 'str'")
}

func TestBinaryOpSubclassReflectedPriority(t *testing.T) {
	r := NewRegistry()
	base, err := r.NewType("base")
	require.NoError(t, err)
	base.Slots().Binary[op.Add] = func(r *Registry, left, right *Object) (*Object, error) {
		return r.NewStr("base"), nil
	}
	base.Slots().RBinary[op.Add] = func(r *Registry, left, right *Object) (*Object, error) {
		return r.NewStr("rbase"), nil
	}
	override, err := r.NewType("override", base)
	require.NoError(t, err)
	override.Slots().RBinary[op.Add] = func(r *Registry, left, right *Object) (*Object, error) {
		return r.NewStr("roverride"), nil
	}
	inherit, err := r.NewType("inherit", base)
	require.NoError(t, err)

	left := New(NoneType{}, base)
	defer left.Decref()

	// A right operand whose type overrides the reflected slot wins over
	// the left operand's slot.
	right := New(NoneType{}, override)
	res, err := r.BinaryOp(op.Add, left, right)
	require.NoError(t, err)
	s, ok := PayloadOf[*Str](res)
	require.True(t, ok)
	require.Equal(t, "roverride", s.Value())
	res.Decref()
	right.Decref()

	// A subclass that merely inherits the reflected slot does not preempt
	// the left operand.
	right = New(NoneType{}, inherit)
	res, err = r.BinaryOp(op.Add, left, right)
	require.NoError(t, err)
	s, ok = PayloadOf[*Str](res)
	require.True(t, ok)
	require.Equal(t, "base", s.Value())
	res.Decref()
	right.Decref()
}

func TestStrOperations(t *testing.T) {
	r := NewRegistry()
	a := r.NewStr("ab")
	b := r.NewStr("cd")
	defer a.Decref()
	defer b.Decref()

	cat, err := r.BinaryOp(op.Add, a, b)
	require.NoError(t, err)
	p, _ := PayloadOf[*Str](cat)
	require.Equal(t, "abcd", p.Value())
	cat.Decref()

	three := r.NewIntFromInt64(3)
	defer three.Decref()
	rep, err := r.BinaryOp(op.Multiply, a, three)
	require.NoError(t, err)
	p, _ = PayloadOf[*Str](rep)
	require.Equal(t, "ababab", p.Value())
	rep.Decref()

	// Reflected: int * str.
	rep, err = r.BinaryOp(op.Multiply, three, a)
	require.NoError(t, err)
	p, _ = PayloadOf[*Str](rep)
	require.Equal(t, "ababab", p.Value())
	rep.Decref()
}

func TestCompare(t *testing.T) {
	r := NewRegistry()
	one := r.NewIntFromInt64(1)
	two := r.NewIntFromInt64(2)
	onef := r.NewFloat(1.0)
	defer one.Decref()
	defer two.Decref()
	defer onef.Decref()

	tests := []struct {
		kind     op.CompareOpType
		a, b     *Object
		expected bool
	}{
		{op.LessThan, one, two, true},
		{op.GreaterThan, one, two, false},
		{op.Equal, one, onef, true},
		{op.NotEqual, one, onef, false},
		{op.LessThanOrEqual, one, onef, true},
		{op.Is, one, one, true},
		{op.Is, one, onef, false},
		{op.IsNot, one, two, true},
	}
	for _, tt := range tests {
		res, err := r.CompareOp(tt.kind, tt.a, tt.b)
		require.NoError(t, err)
		truthy, err := r.Truthy(res)
		require.NoError(t, err)
		require.Equal(t, tt.expected, truthy, "%s %s %s", tt.a.TypeName(), tt.kind, tt.b.TypeName())
		res.Decref()
	}
}

func TestOrderingUnsupported(t *testing.T) {
	r := NewRegistry()
	a := r.NewIntFromInt64(1)
	s := r.NewStr("x")
	defer a.Decref()
	defer s.Decref()

	_, err := r.CompareOp(op.LessThan, a, s)
	require.Error(t, err)
	require.Contains(t, err.Error(), "not supported between instances of 'int' and 'str'")

	// Equality between unrelated types is False, not an error.
	res, err := r.CompareOp(op.Equal, a, s)
	require.NoError(t, err)
	truthy, _ := r.Truthy(res)
	require.False(t, truthy)
	res.Decref()
}

func TestTruthiness(t *testing.T) {
	r := NewRegistry()
	empty := r.NewStr("")
	full := r.NewStr("x")
	zero := r.NewIntFromInt64(0)
	list := r.NewList(nil)
	defer empty.Decref()
	defer full.Decref()
	defer zero.Decref()
	defer list.Decref()

	for _, tt := range []struct {
		o        *Object
		expected bool
	}{
		{r.None(), false},
		{r.True(), true},
		{r.False(), false},
		{empty, false},
		{full, true},
		{zero, false},
		{list, false},
	} {
		truthy, err := r.Truthy(tt.o)
		require.NoError(t, err)
		require.Equal(t, tt.expected, truthy)
	}
}

func TestIteration(t *testing.T) {
	r := NewRegistry()
	items := []*Object{r.NewIntFromInt64(10), r.NewIntFromInt64(20), r.NewIntFromInt64(30)}
	list := r.NewList(items)
	for _, item := range items {
		item.Decref()
	}
	defer list.Decref()

	it, err := r.GetIter(list)
	require.NoError(t, err)
	defer it.Decref()

	var got []string
	for {
		v, ok, err := r.Next(it)
		require.NoError(t, err)
		if !ok {
			break
		}
		p, _ := PayloadOf[*Int](v)
		got = append(got, p.String())
		v.Decref()
	}
	require.Equal(t, []string{"10", "20", "30"}, got)
}

func TestRangeIteration(t *testing.T) {
	r := NewRegistry()
	rng, err := r.NewRange(0, 10, 3)
	require.NoError(t, err)
	defer rng.Decref()

	items, err := r.Collect(rng)
	require.NoError(t, err)
	var got []string
	for _, item := range items {
		p, _ := PayloadOf[*Int](item)
		got = append(got, p.String())
		item.Decref()
	}
	require.Equal(t, []string{"0", "3", "6", "9"}, got)

	n, err := r.Len(rng)
	require.NoError(t, err)
	require.Equal(t, int64(4), n)
}

func TestAttributeShadowing(t *testing.T) {
	// An instance dict entry shadows the type attribute of the same name;
	// deleting it re-exposes the type's value.
	r := NewRegistry()
	typ, err := r.NewType("Point")
	require.NoError(t, err)

	typeVal := r.NewStr("from-type")
	defer typeVal.Decref()
	typ.SetAttr("label", typeVal)

	inst := New(&Str{value: "payload"}, typ)
	defer inst.Decref()

	got, err := r.GetAttr(inst, "label")
	require.NoError(t, err)
	require.Same(t, typeVal, got)
	got.Decref()

	instVal := r.NewStr("from-instance")
	defer instVal.Decref()
	require.NoError(t, r.SetAttr(inst, "label", instVal))

	got, err = r.GetAttr(inst, "label")
	require.NoError(t, err)
	require.Same(t, instVal, got)
	got.Decref()

	require.NoError(t, r.DelAttr(inst, "label"))
	got, err = r.GetAttr(inst, "label")
	require.NoError(t, err)
	require.Same(t, typeVal, got)
	got.Decref()

	_, err = r.GetAttr(inst, "missing")
	require.Error(t, err)
	raised, ok := AsRaised(err)
	require.True(t, ok)
	require.Equal(t, errz.ErrAttribute, raised.Kind())
}

func TestMethodBinding(t *testing.T) {
	r := NewRegistry()
	typ, err := r.NewType("Greeter")
	require.NoError(t, err)

	fn := r.NewBuiltin("greet", "", "", func(ctx context.Context, reg *Registry, args []*Object, kwargs map[string]*Object) (*Object, error) {
		require.Len(t, args, 1)
		return reg.NewStr("hello from " + args[0].TypeName()), nil
	})
	defer fn.Decref()
	typ.SetAttr("greet", fn)

	inst := New(&Str{value: "x"}, typ)
	defer inst.Decref()

	method, err := r.GetAttr(inst, "greet")
	require.NoError(t, err)
	defer method.Decref()
	_, ok := PayloadOf[*BoundMethod](method)
	require.True(t, ok)

	res, err := r.Call(context.Background(), method, nil, nil)
	require.NoError(t, err)
	defer res.Decref()
	p, _ := PayloadOf[*Str](res)
	require.Equal(t, "hello from Greeter", p.Value())
}

func TestTypeInstantiation(t *testing.T) {
	r := NewRegistry()
	ctx := context.Background()

	arg := r.NewStr("42")
	defer arg.Decref()
	res, err := r.Call(ctx, r.IntType().Obj(), []*Object{arg}, nil)
	require.NoError(t, err)
	requireInt(t, res, "42")
	res.Decref()

	rng, err := r.Call(ctx, r.RangeType().Obj(), []*Object{r.NewIntFromInt64(3)}, nil)
	require.NoError(t, err)
	p, ok := PayloadOf[*Range](rng)
	require.True(t, ok)
	require.Equal(t, int64(3), p.Len())
	rng.Decref()
}

func TestReprAndStr(t *testing.T) {
	r := NewRegistry()
	s := r.NewStr("hi")
	defer s.Decref()

	repr, err := r.Repr(s)
	require.NoError(t, err)
	require.Equal(t, `"hi"`, repr)

	str, err := r.Str(s)
	require.NoError(t, err)
	require.Equal(t, "hi", str)

	items := []*Object{r.NewIntFromInt64(1), s.Incref()}
	list := r.NewList(items)
	for _, item := range items {
		item.Decref()
	}
	defer list.Decref()
	repr, err = r.Repr(list)
	require.NoError(t, err)
	require.Equal(t, `[1, "hi"]`, repr)
}
