package object

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCollectNoGarbage(t *testing.T) {
	r := NewRegistry()
	list := r.NewList(nil)
	defer list.Decref()

	freed, err := r.GC().Collect()
	require.NoError(t, err)
	require.Equal(t, 0, freed)

	// Still alive and usable.
	p, _ := PayloadOf[*List](list)
	v := r.NewIntFromInt64(1)
	p.Append(v)
	v.Decref()
	require.Equal(t, 1, p.Len())
}

func TestCollectSelfCycle(t *testing.T) {
	r := NewRegistry()
	list := r.NewList(nil)
	p, _ := PayloadOf[*List](list)
	p.Append(list) // list contains itself
	require.Equal(t, int64(2), list.RefCount())

	list.Decref()
	// Refcounting alone cannot reclaim the cycle.
	require.Equal(t, int64(1), list.RefCount())
	require.False(t, list.IsFinalizing())

	freed, err := r.GC().Collect()
	require.NoError(t, err)
	require.Equal(t, 1, freed)
	require.True(t, list.IsFinalizing())
}

func TestCollectPairCycle(t *testing.T) {
	r := NewRegistry()
	a := r.NewDict()
	b := r.NewDict()
	pa, _ := PayloadOf[*Dict](a)
	pb, _ := PayloadOf[*Dict](b)
	require.NoError(t, pa.SetString(r, "other", b))
	require.NoError(t, pb.SetString(r, "other", a))

	a.Decref()
	b.Decref()

	freed, err := r.GC().Collect()
	require.NoError(t, err)
	require.Equal(t, 2, freed)
}

func TestCollectSparesReachable(t *testing.T) {
	r := NewRegistry()
	a := r.NewDict()
	b := r.NewDict()
	pa, _ := PayloadOf[*Dict](a)
	pb, _ := PayloadOf[*Dict](b)
	require.NoError(t, pa.SetString(r, "other", b))
	require.NoError(t, pb.SetString(r, "other", a))

	// Only drop one external reference; the cycle is still reachable
	// through the other.
	b.Decref()

	freed, err := r.GC().Collect()
	require.NoError(t, err)
	require.Equal(t, 0, freed)

	// The surviving handle still works.
	got, ok, err := pa.GetString(r, "other")
	require.NoError(t, err)
	require.True(t, ok)
	require.Same(t, b, got)

	a.Decref()
	freed, err = r.GC().Collect()
	require.NoError(t, err)
	require.Equal(t, 2, freed)
}

func TestCollectCycleWithWeakRef(t *testing.T) {
	r := NewRegistry()
	list := r.NewList(nil)
	p, _ := PayloadOf[*List](list)
	p.Append(list)
	w := NewWeak(list)

	list.Decref()
	_, err := r.GC().Collect()
	require.NoError(t, err)

	require.True(t, w.IsDead())
	_, ok := w.Upgrade()
	require.False(t, ok)
}

func TestTrackedObjectsRestInPurpleBuffer(t *testing.T) {
	r := NewRegistry()
	list := r.NewList(nil)
	defer list.Decref()
	require.Equal(t, ColorPurple, list.getColor())

	// A survivor goes back into the root buffer after a pass.
	_, err := r.GC().Collect()
	require.NoError(t, err)
	require.Equal(t, ColorPurple, list.getColor())
}

func TestCollectMarksGarbageWhite(t *testing.T) {
	r := NewRegistry()
	list := r.NewList(nil)
	p, _ := PayloadOf[*List](list)
	p.Append(list)
	list.Decref()

	freed, err := r.GC().Collect()
	require.NoError(t, err)
	require.Equal(t, 1, freed)
	require.Equal(t, ColorWhite, list.getColor())
}

func TestUntrackOnNormalDeath(t *testing.T) {
	r := NewRegistry()
	before := r.GC().TrackedCount()
	list := r.NewList(nil)
	require.Equal(t, before+1, r.GC().TrackedCount())
	list.Decref()
	require.Equal(t, before, r.GC().TrackedCount())
}
