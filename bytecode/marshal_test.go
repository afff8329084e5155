package bytecode

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deepnoodle-ai/serpent/errz"
	"github.com/deepnoodle-ai/serpent/op"
)

func buildAddFunction(t *testing.T) *Code {
	t.Helper()

	inner := NewBuilder(BuilderParams{
		Name:      "add",
		Filename:  "add.sp",
		FirstLine: 1,
		Params:    Params{Positional: []string{"a", "b"}},
	})
	inner.SetLocation(errz.SourceLocation{Line: 1, Column: 24, Span: errz.NewSpan(23, 28)})
	inner.Emit(op.LoadFast, inner.Local("a"))
	inner.Emit(op.LoadFast, inner.Local("b"))
	inner.Emit(op.BinaryOp, uint16(op.Add))
	inner.Emit(op.ReturnValue)
	innerCode, err := inner.Assemble()
	require.NoError(t, err)

	outer := NewBuilder(BuilderParams{Name: "<module>", Filename: "add.sp", FirstLine: 1})
	outer.Emit(op.LoadConst, outer.Constant(CodeConst{Code: innerCode}))
	outer.Emit(op.MakeFunction, 0)
	outer.Emit(op.StoreGlobal, outer.Name("add"))
	outer.Emit(op.Nil)
	outer.Emit(op.ReturnValue)
	code, err := outer.Assemble()
	require.NoError(t, err)
	return code
}

func TestMarshalRoundTrip(t *testing.T) {
	code := buildAddFunction(t)

	data, err := Marshal(code)
	require.NoError(t, err)
	assert.Equal(t, []byte("SNBC"), data[:4])
	assert.Equal(t, WireVersion, data[4])

	decoded, err := Unmarshal(data)
	require.NoError(t, err)
	assert.True(t, code.Equal(decoded), "round-trip must preserve structural equality")

	// Round-trip again: serialize(deserialize(x)) == serialize(x)
	data2, err := Marshal(decoded)
	require.NoError(t, err)
	assert.Equal(t, data, data2)
}

func TestMarshalRoundTripAllConstantKinds(t *testing.T) {
	b := NewBuilder(BuilderParams{Name: "consts"})
	b.Constant(IntConst{Value: new(big.Int).Lsh(big.NewInt(1), 100)}) // beyond int64
	b.Constant(FloatConst{Value: 3.14})
	b.Constant(ComplexConst{Real: 1, Imag: -2})
	b.Constant(BoolConst{Value: true})
	b.Constant(StrConst{Value: "hello"})
	b.Constant(BytesConst{Value: []byte{0, 1, 255}})
	b.Constant(TupleConst{Items: []Constant{NewIntConst(1), NoneConst{}}})
	b.Constant(NoneConst{})
	b.Constant(EllipsisConst{})
	b.Emit(op.Nil)
	b.Emit(op.ReturnValue)
	code, err := b.Assemble()
	require.NoError(t, err)

	data, err := Marshal(code)
	require.NoError(t, err)
	decoded, err := Unmarshal(data)
	require.NoError(t, err)
	require.True(t, code.Equal(decoded))

	big100 := decoded.ConstantAt(0).(IntConst)
	assert.Equal(t, new(big.Int).Lsh(big.NewInt(1), 100), big100.Value)
}

func TestUnmarshalRejectsBadMagic(t *testing.T) {
	_, err := Unmarshal([]byte("XXXX\x01rest"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "magic")
}

func TestUnmarshalRejectsBadVersion(t *testing.T) {
	code := buildAddFunction(t)
	data, err := Marshal(code)
	require.NoError(t, err)
	data[4] = 99
	_, err = Unmarshal(data)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "version")
}

func TestUnmarshalRejectsShortData(t *testing.T) {
	_, err := Unmarshal([]byte("SN"))
	require.Error(t, err)
}

func TestMarshalPreservesLocations(t *testing.T) {
	code := buildAddFunction(t)
	data, err := Marshal(code)
	require.NoError(t, err)
	decoded, err := Unmarshal(data)
	require.NoError(t, err)

	inner := decoded.ConstantAt(0).(CodeConst).Code
	loc := inner.LocationAt(0)
	assert.Equal(t, 1, loc.Line)
	assert.Equal(t, 24, loc.Column)
	assert.Equal(t, uint32(23), loc.Span.Start)
	assert.Equal(t, uint32(28), loc.Span.End)
}

func TestMarshalPreservesParams(t *testing.T) {
	b := NewBuilder(BuilderParams{Name: "f", Params: Params{
		Positional: []string{"x", "y"},
		VarArgs:    "rest",
		HasVarArgs: true,
		KwOnly:     []string{"flag"},
		KwArgs:     "extra",
		HasKwArgs:  true,
	}})
	b.Emit(op.Nil)
	b.Emit(op.ReturnValue)
	code, err := b.Assemble()
	require.NoError(t, err)

	data, err := Marshal(code)
	require.NoError(t, err)
	decoded, err := Unmarshal(data)
	require.NoError(t, err)

	params := decoded.Params()
	assert.Equal(t, []string{"x", "y"}, params.Positional)
	assert.Equal(t, "rest", params.VarArgs)
	assert.True(t, params.HasVarArgs)
	assert.Equal(t, []string{"flag"}, params.KwOnly)
	assert.Equal(t, "extra", params.KwArgs)
	assert.True(t, params.HasKwArgs)
}

func TestFrozenRoundTrip(t *testing.T) {
	code := buildAddFunction(t)
	codeBytes, err := Marshal(code)
	require.NoError(t, err)

	bundle, err := MarshalFrozen(FrozenMap{
		"add":  {Code: codeBytes, IsPackage: false},
		"pkg":  {Code: codeBytes, IsPackage: true},
		"zeta": {Code: codeBytes},
	})
	require.NoError(t, err)

	modules, err := UnmarshalFrozen(bundle)
	require.NoError(t, err)
	require.Len(t, modules, 3)
	assert.True(t, modules["pkg"].IsPackage)
	assert.False(t, modules["add"].IsPackage)

	decoded, err := Unmarshal(modules["add"].Code)
	require.NoError(t, err)
	assert.True(t, code.Equal(decoded))
}

func TestFrozenDeterministic(t *testing.T) {
	m := FrozenMap{"b": {Code: []byte{1}}, "a": {Code: []byte{2}}}
	first, err := MarshalFrozen(m)
	require.NoError(t, err)
	second, err := MarshalFrozen(m)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestFrozenRegistry(t *testing.T) {
	r := NewFrozenRegistry()
	r.Register("spam", FrozenEntry{Code: []byte{1, 2, 3}})
	entry, ok := r.Lookup("spam")
	require.True(t, ok)
	assert.Equal(t, []byte{1, 2, 3}, entry.Code)

	_, ok = r.Lookup("eggs")
	assert.False(t, ok)

	bundle, err := MarshalFrozen(FrozenMap{"eggs": {Code: []byte{4}, IsPackage: true}})
	require.NoError(t, err)
	require.NoError(t, r.RegisterBundle(bundle))
	entry, ok = r.Lookup("eggs")
	require.True(t, ok)
	assert.True(t, entry.IsPackage)
	assert.Equal(t, []string{"eggs", "spam"}, r.Names())
}

func TestFrozenRejectsBadBundle(t *testing.T) {
	_, err := UnmarshalFrozen([]byte("nope"))
	require.Error(t, err)
	_, err = UnmarshalFrozen([]byte("XXXX\x01abc"))
	require.Error(t, err)
}
