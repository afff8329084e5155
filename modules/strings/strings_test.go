package strings

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deepnoodle-ai/serpent/object"
)

func strValue(t *testing.T, o *object.Object) string {
	t.Helper()
	p, ok := object.PayloadOf[*object.Str](o)
	require.True(t, ok)
	return p.Value()
}

func TestModuleNamespace(t *testing.T) {
	r := object.NewRegistry()
	moduleObj, err := Module(r)
	require.NoError(t, err)
	defer moduleObj.Decref()

	mod, ok := object.PayloadOf[*object.Module](moduleObj)
	require.True(t, ok)

	upper, found, err := mod.Dict().GetString(r, "upper")
	require.NoError(t, err)
	require.True(t, found)

	hello := r.NewStr("hello")
	defer hello.Decref()
	result, err := r.Call(context.Background(), upper, []*object.Object{hello}, nil)
	require.NoError(t, err)
	defer result.Decref()
	assert.Equal(t, "HELLO", strValue(t, result))
}

func TestSplitAndJoin(t *testing.T) {
	r := object.NewRegistry()
	csv := r.NewStr("a,b,c")
	comma := r.NewStr(",")
	defer csv.Decref()
	defer comma.Decref()

	parts, err := Split(context.Background(), r, []*object.Object{csv, comma}, nil)
	require.NoError(t, err)
	defer parts.Decref()
	list, ok := object.PayloadOf[*object.List](parts)
	require.True(t, ok)
	require.Equal(t, 3, list.Len())

	dash := r.NewStr("-")
	defer dash.Decref()
	joined, err := Join(context.Background(), r, []*object.Object{dash, parts}, nil)
	require.NoError(t, err)
	defer joined.Decref()
	assert.Equal(t, "a-b-c", strValue(t, joined))
}

func TestContainsAndReplace(t *testing.T) {
	r := object.NewRegistry()
	s := r.NewStr("serpent")
	sub := r.NewStr("pen")
	defer s.Decref()
	defer sub.Decref()

	result, err := Contains(context.Background(), r, []*object.Object{s, sub}, nil)
	require.NoError(t, err)
	defer result.Decref()
	b, ok := object.PayloadOf[*object.Bool](result)
	require.True(t, ok)
	assert.True(t, b.Value())

	old := r.NewStr("pent")
	with := r.NewStr("vice")
	defer old.Decref()
	defer with.Decref()
	replaced, err := Replace(context.Background(), r, []*object.Object{s, old, with}, nil)
	require.NoError(t, err)
	defer replaced.Decref()
	assert.Equal(t, "service", strValue(t, replaced))
}
