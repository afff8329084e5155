package object

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/deepnoodle-ai/serpent/op"
)

func mroNames(t *Type) []string {
	names := make([]string, 0, len(t.mro))
	for _, m := range t.mro {
		names = append(names, m.Name())
	}
	return names
}

func TestMRODiamond(t *testing.T) {
	r := NewRegistry()
	a, err := r.NewType("A")
	require.NoError(t, err)
	b, err := r.NewType("B", a)
	require.NoError(t, err)
	c, err := r.NewType("C", a)
	require.NoError(t, err)
	d, err := r.NewType("D", b, c)
	require.NoError(t, err)

	require.Equal(t, []string{"D", "B", "C", "A", "object"}, mroNames(d))
}

func TestMRODeterministic(t *testing.T) {
	for i := 0; i < 10; i++ {
		r := NewRegistry()
		a, _ := r.NewType("A")
		b, _ := r.NewType("B", a)
		c, _ := r.NewType("C", a)
		d, err := r.NewType("D", b, c)
		require.NoError(t, err)
		require.Equal(t, []string{"D", "B", "C", "A", "object"}, mroNames(d))
	}
}

func TestMROInconsistent(t *testing.T) {
	r := NewRegistry()
	a, _ := r.NewType("A")
	b, err := r.NewType("B", a)
	require.NoError(t, err)

	// Local precedence demands A before B in one base and B before A (via
	// B's own linearization) in the other.
	_, err = r.NewType("Broken", a, b)
	require.Error(t, err)
	require.Contains(t, err.Error(), "consistent method resolution order")
}

func TestMROSubtype(t *testing.T) {
	r := NewRegistry()
	a, _ := r.NewType("A")
	b, _ := r.NewType("B", a)
	require.True(t, b.IsSubtypeOf(a))
	require.True(t, b.IsSubtypeOf(r.ObjectType()))
	require.False(t, a.IsSubtypeOf(b))
}

func TestTypeSubclassTracking(t *testing.T) {
	r := NewRegistry()
	base, err := r.NewType("base")
	require.NoError(t, err)
	sub, err := r.NewType("sub", base)
	require.NoError(t, err)

	subs := base.Subclasses()
	require.Len(t, subs, 1)
	require.Same(t, sub, subs[0])
	require.Empty(t, sub.Subclasses())

	// The root type records its direct subclasses too.
	var found bool
	for _, s := range r.ObjectType().Subclasses() {
		if s == base {
			found = true
		}
	}
	require.True(t, found)

	// A subclass holds no strong reference back from its bases: dropping
	// the type object prunes the entry.
	sub.Obj().Decref()
	require.Empty(t, base.Subclasses())
}

func TestBoolInheritsIntArithmetic(t *testing.T) {
	r := NewRegistry()
	require.Equal(t, []string{"bool", "int", "object"}, mroNames(r.BoolType()))

	sum, err := r.BinaryOp(op.Add, r.True(), r.True())
	require.NoError(t, err)
	defer sum.Decref()
	p, ok := PayloadOf[*Int](sum)
	require.True(t, ok)
	require.Equal(t, "2", p.String())
}

func TestTypeAttrShadowing(t *testing.T) {
	r := NewRegistry()
	base, _ := r.NewType("Base")
	derived, _ := r.NewType("Derived", base)

	one := r.NewIntFromInt64(1)
	two := r.NewIntFromInt64(2)
	defer one.Decref()
	defer two.Decref()

	base.SetAttr("x", one)
	v, owner, ok := derived.GetAttr("x")
	require.True(t, ok)
	require.Same(t, one, v)
	require.Same(t, base, owner)

	// The derived definition wins once present.
	derived.SetAttr("x", two)
	v, owner, ok = derived.GetAttr("x")
	require.True(t, ok)
	require.Same(t, two, v)
	require.Same(t, derived, owner)

	// Deleting the override re-exposes the base definition.
	require.True(t, derived.DeleteAttr("x"))
	v, _, ok = derived.GetAttr("x")
	require.True(t, ok)
	require.Same(t, one, v)
}
