package builtins

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deepnoodle-ai/serpent/errz"
	"github.com/deepnoodle-ai/serpent/object"
)

func int64Value(i *object.Int) int64 {
	v, _ := i.Int64()
	return v
}

func call(t *testing.T, r *object.Registry, fn object.GoFunc, args ...*object.Object) *object.Object {
	t.Helper()
	result, err := fn(context.Background(), r, args, nil)
	require.NoError(t, err)
	t.Cleanup(result.Decref)
	return result
}

func TestLen(t *testing.T) {
	r := object.NewRegistry()
	s := r.NewStr("hello")
	defer s.Decref()
	result := call(t, r, Len, s)
	i, ok := object.PayloadOf[*object.Int](result)
	require.True(t, ok)
	assert.Equal(t, int64(5), int64Value(i))

	one := r.NewIntFromInt64(1)
	defer one.Decref()
	_, err := Len(context.Background(), r, []*object.Object{one}, nil)
	require.Error(t, err)
	raised, ok := object.AsRaised(err)
	require.True(t, ok)
	assert.Equal(t, errz.ErrType, raised.Kind())
	raised.Release()
}

func TestStrAndRepr(t *testing.T) {
	r := object.NewRegistry()
	s := r.NewStr("hi")
	defer s.Decref()

	str := call(t, r, Str, s)
	p, _ := object.PayloadOf[*object.Str](str)
	assert.Equal(t, "hi", p.Value())

	repr := call(t, r, Repr, s)
	p, _ = object.PayloadOf[*object.Str](repr)
	assert.Equal(t, `"hi"`, p.Value())
}

func TestIntConversions(t *testing.T) {
	r := object.NewRegistry()

	f := r.NewFloat(3.9)
	defer f.Decref()
	result := call(t, r, Int, f)
	i, _ := object.PayloadOf[*object.Int](result)
	assert.Equal(t, int64(3), int64Value(i))

	s := r.NewStr("  42 ")
	defer s.Decref()
	result = call(t, r, Int, s)
	i, _ = object.PayloadOf[*object.Int](result)
	assert.Equal(t, int64(42), int64Value(i))

	bad := r.NewStr("nope")
	defer bad.Decref()
	_, err := Int(context.Background(), r, []*object.Object{bad}, nil)
	require.Error(t, err)
	raised, ok := object.AsRaised(err)
	require.True(t, ok)
	assert.Equal(t, errz.ErrValue, raised.Kind())
	raised.Release()
}

func TestFloatConversions(t *testing.T) {
	r := object.NewRegistry()
	s := r.NewStr("2.5")
	defer s.Decref()
	result := call(t, r, Float, s)
	f, _ := object.PayloadOf[*object.Float](result)
	assert.Equal(t, 2.5, f.Value())
}

func TestTypeAndIsInstance(t *testing.T) {
	r := object.NewRegistry()
	one := r.NewIntFromInt64(1)
	defer one.Decref()

	typeObj := call(t, r, TypeBuiltin, one)
	typ, ok := object.PayloadOf[*object.Type](typeObj)
	require.True(t, ok)
	assert.Equal(t, "int", typ.Name())

	// bool is a subtype of int
	flag := r.NewBool(true)
	defer flag.Decref()
	result := call(t, r, IsInstance, flag, r.IntType().Obj())
	b, _ := object.PayloadOf[*object.Bool](result)
	assert.True(t, b.Value())

	result = call(t, r, IsInstance, one, r.StrType().Obj())
	b, _ = object.PayloadOf[*object.Bool](result)
	assert.False(t, b.Value())
}

func TestIterAndNext(t *testing.T) {
	r := object.NewRegistry()
	one := r.NewIntFromInt64(1)
	defer one.Decref()
	tup := r.NewTuple([]*object.Object{one})
	defer tup.Decref()

	iter := call(t, r, Iter, tup)
	first := call(t, r, Next, iter)
	i, _ := object.PayloadOf[*object.Int](first)
	assert.Equal(t, int64(1), int64Value(i))

	// Exhausted without a default raises StopIteration.
	_, err := Next(context.Background(), r, []*object.Object{iter}, nil)
	require.Error(t, err)
	raised, ok := object.AsRaised(err)
	require.True(t, ok)
	assert.Equal(t, errz.ErrStopIteration, raised.Kind())
	raised.Release()

	// With a default the default comes back instead.
	fallback := r.NewStr("done")
	defer fallback.Decref()
	result := call(t, r, Next, iter, fallback)
	assert.True(t, result.Is(fallback))
}

func TestRange(t *testing.T) {
	r := object.NewRegistry()
	stop := r.NewIntFromInt64(3)
	defer stop.Decref()
	result := call(t, r, Range, stop)
	rng, ok := object.PayloadOf[*object.Range](result)
	require.True(t, ok)
	assert.Equal(t, int64(3), rng.Len())
}

func TestBuiltinsNamespace(t *testing.T) {
	r := object.NewRegistry()
	ns := Builtins(r)
	defer Release(ns)

	for _, name := range []string{
		"len", "repr", "str", "int", "float", "bool", "type", "isinstance",
		"iter", "next", "hash", "range", "print",
		"None", "True", "False",
		"TypeError", "ValueError", "ZeroDivisionError", "StopIteration",
		"BaseException",
	} {
		assert.Contains(t, ns, name, "missing builtin %q", name)
	}
}
