package math

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deepnoodle-ai/serpent/errz"
	"github.com/deepnoodle-ai/serpent/object"
)

func TestModuleNamespace(t *testing.T) {
	r := object.NewRegistry()
	moduleObj, err := Module(r)
	require.NoError(t, err)
	defer moduleObj.Decref()

	mod, ok := object.PayloadOf[*object.Module](moduleObj)
	require.True(t, ok)
	assert.Equal(t, "math", mod.Name())

	pi, found, err := mod.Dict().GetString(r, "pi")
	require.NoError(t, err)
	require.True(t, found)
	f, ok := object.PayloadOf[*object.Float](pi)
	require.True(t, ok)
	assert.Equal(t, math.Pi, f.Value())
}

func TestSqrt(t *testing.T) {
	r := object.NewRegistry()
	nine := r.NewIntFromInt64(9)
	defer nine.Decref()

	result, err := Sqrt(context.Background(), r, []*object.Object{nine}, nil)
	require.NoError(t, err)
	defer result.Decref()
	f, ok := object.PayloadOf[*object.Float](result)
	require.True(t, ok)
	assert.Equal(t, 3.0, f.Value())

	neg := r.NewIntFromInt64(-1)
	defer neg.Decref()
	_, err = Sqrt(context.Background(), r, []*object.Object{neg}, nil)
	require.Error(t, err)
	raised, ok := object.AsRaised(err)
	require.True(t, ok)
	assert.Equal(t, errz.ErrValue, raised.Kind())
	raised.Release()
}

func TestAbs(t *testing.T) {
	r := object.NewRegistry()
	neg := r.NewIntFromInt64(-7)
	defer neg.Decref()
	result, err := Abs(context.Background(), r, []*object.Object{neg}, nil)
	require.NoError(t, err)
	defer result.Decref()
	i, ok := object.PayloadOf[*object.Int](result)
	require.True(t, ok)
	v, _ := i.Int64()
	assert.Equal(t, int64(7), v)
}

func TestPow(t *testing.T) {
	r := object.NewRegistry()
	two := r.NewIntFromInt64(2)
	ten := r.NewIntFromInt64(10)
	defer two.Decref()
	defer ten.Decref()
	result, err := Pow(context.Background(), r, []*object.Object{two, ten}, nil)
	require.NoError(t, err)
	defer result.Decref()
	f, ok := object.PayloadOf[*object.Float](result)
	require.True(t, ok)
	assert.Equal(t, 1024.0, f.Value())
}
