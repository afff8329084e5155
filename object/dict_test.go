package object

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDictSetGet(t *testing.T) {
	r := NewRegistry()
	d := &Dict{}

	k := r.NewStr("name")
	v := r.NewStr("serpent")
	require.NoError(t, d.Set(r, k, v))
	require.Equal(t, 1, d.Len())
	require.Equal(t, int64(2), k.RefCount())
	require.Equal(t, int64(2), v.RefCount())

	got, ok, err := d.Get(r, k)
	require.NoError(t, err)
	require.True(t, ok)
	require.Same(t, v, got)

	// Lookup by an equal but distinct key object.
	k2 := r.NewStr("name")
	got, ok, err = d.Get(r, k2)
	require.NoError(t, err)
	require.True(t, ok)
	require.Same(t, v, got)
	k2.Decref()

	d.Clear()
	require.Equal(t, int64(1), k.RefCount())
	require.Equal(t, int64(1), v.RefCount())
	k.Decref()
	v.Decref()
}

func TestDictOverwriteReleasesPrev(t *testing.T) {
	r := NewRegistry()
	d := &Dict{}
	k := r.NewStr("k")
	v1 := r.NewStr("v1")
	v2 := r.NewStr("v2")

	require.NoError(t, d.Set(r, k, v1))
	require.NoError(t, d.Set(r, k, v2))
	require.Equal(t, 1, d.Len())
	require.Equal(t, int64(1), v1.RefCount())
	require.Equal(t, int64(2), v2.RefCount())

	got, ok, err := d.Get(r, k)
	require.NoError(t, err)
	require.True(t, ok)
	require.Same(t, v2, got)
	d.Clear()
	k.Decref()
	v1.Decref()
	v2.Decref()
}

func TestDictDelete(t *testing.T) {
	r := NewRegistry()
	d := &Dict{}
	k := r.NewIntFromInt64(42)
	v := r.NewStr("answer")
	require.NoError(t, d.Set(r, k, v))

	ok, err := d.Delete(r, k)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 0, d.Len())

	ok, err = d.Delete(r, k)
	require.NoError(t, err)
	require.False(t, ok)
	k.Decref()
	v.Decref()
}

func TestDictInsertionOrder(t *testing.T) {
	r := NewRegistry()
	d := &Dict{}
	names := []string{"alpha", "beta", "gamma", "delta"}
	for _, name := range names {
		v := r.NewIntFromInt64(int64(len(name)))
		require.NoError(t, d.SetString(r, name, v))
		v.Decref()
	}

	keys := d.Keys()
	require.Len(t, keys, len(names))
	for i, k := range keys {
		s, ok := PayloadOf[*Str](k)
		require.True(t, ok)
		require.Equal(t, names[i], s.Value())
	}
}

func TestDictNumericKeyEquivalence(t *testing.T) {
	// 1, 1.0, and True share a hash bucket and compare equal, so they are
	// one key.
	r := NewRegistry()
	d := &Dict{}

	ik := r.NewIntFromInt64(1)
	fv := r.NewStr("float")
	fk := r.NewFloat(1.0)
	require.NoError(t, d.Set(r, ik, fv))

	got, ok, err := d.Get(r, fk)
	require.NoError(t, err)
	require.True(t, ok)
	require.Same(t, fv, got)

	got, ok, err = d.Get(r, r.True())
	require.NoError(t, err)
	require.True(t, ok)
	require.Same(t, fv, got)

	require.Equal(t, 1, d.Len())
	ik.Decref()
	fk.Decref()
	fv.Decref()
}

func TestDictUnhashableKey(t *testing.T) {
	r := NewRegistry()
	d := &Dict{}
	k := r.NewList(nil)
	v := r.NewStr("v")
	err := d.Set(r, k, v)
	require.Error(t, err)
	require.Contains(t, err.Error(), "unhashable type: 'list'")
	k.Decref()
	v.Decref()
}

func TestDictGetString(t *testing.T) {
	r := NewRegistry()
	d := &Dict{}
	v := r.NewIntFromInt64(10)
	require.NoError(t, d.SetString(r, "count", v))

	got, ok, err := d.GetString(r, "count")
	require.NoError(t, err)
	require.True(t, ok)
	require.Same(t, v, got)

	_, ok, err = d.GetString(r, "missing")
	require.NoError(t, err)
	require.False(t, ok)
	v.Decref()
}
