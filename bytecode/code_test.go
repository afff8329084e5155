package bytecode

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deepnoodle-ai/serpent/errz"
	"github.com/deepnoodle-ai/serpent/op"
)

func TestBuilderBasic(t *testing.T) {
	b := NewBuilder(BuilderParams{Name: "add", Filename: "add.sp", Params: Params{
		Positional: []string{"a", "b"},
	}})
	b.Emit(op.LoadFast, b.Local("a"))
	b.Emit(op.LoadFast, b.Local("b"))
	b.Emit(op.BinaryOp, uint16(op.Add))
	b.Emit(op.ReturnValue)

	code, err := b.Assemble()
	require.NoError(t, err)

	assert.Equal(t, "add", code.Name())
	assert.Equal(t, "add.sp", code.Filename())
	assert.Equal(t, 2, code.LocalCount())
	assert.Equal(t, "a", code.LocalNameAt(0))
	assert.Equal(t, "b", code.LocalNameAt(1))
	assert.Equal(t, 7, code.InstructionCount())
	assert.Equal(t, op.LoadFast, code.InstructionAt(0))
	assert.NotEmpty(t, code.ID())
	require.NoError(t, Verify(code))
}

func TestBuilderLabelResolution(t *testing.T) {
	b := NewBuilder(BuilderParams{Name: "loop"})
	end := b.NewLabel()
	top := b.NewLabel()
	require.NoError(t, b.SetLabel(top))
	b.Emit(op.True)
	b.EmitJump(op.PopJumpIfFalse, end)
	b.EmitJump(op.Jump, top)
	require.NoError(t, b.SetLabel(end))
	b.Emit(op.Nil)
	b.Emit(op.ReturnValue)

	code, err := b.Assemble()
	require.NoError(t, err)

	// Jump operands hold absolute offsets baked at assembly time
	assert.Equal(t, op.Code(5), code.InstructionAt(2)) // PopJumpIfFalse -> end
	assert.Equal(t, op.Code(0), code.InstructionAt(4)) // Jump -> top

	target, ok := code.LabelTarget(end)
	require.True(t, ok)
	assert.Equal(t, 5, target)
	require.NoError(t, Verify(code))
}

func TestBuilderUnresolvedLabel(t *testing.T) {
	b := NewBuilder(BuilderParams{Name: "bad"})
	missing := b.NewLabel()
	b.EmitJump(op.Jump, missing)
	_, err := b.Assemble()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unresolved label")
}

func TestBuilderDoubleSetLabel(t *testing.T) {
	b := NewBuilder(BuilderParams{Name: "dup"})
	l := b.NewLabel()
	require.NoError(t, b.SetLabel(l))
	require.Error(t, b.SetLabel(l))
}

func TestBuilderConstantInterning(t *testing.T) {
	b := NewBuilder(BuilderParams{Name: "consts"})
	i1 := b.Constant(NewIntConst(42))
	i2 := b.Constant(NewIntConst(42))
	i3 := b.Constant(StrConst{Value: "42"})
	assert.Equal(t, i1, i2)
	assert.NotEqual(t, i1, i3)
}

func TestBuilderParamSlots(t *testing.T) {
	b := NewBuilder(BuilderParams{Name: "f", Params: Params{
		Positional: []string{"x"},
		VarArgs:    "rest",
		HasVarArgs: true,
		KwOnly:     []string{"flag"},
		KwArgs:     "extra",
		HasKwArgs:  true,
	}})
	code, err := b.Assemble()
	require.NoError(t, err)
	assert.Equal(t, 4, code.LocalCount())
	assert.Equal(t, "x", code.LocalNameAt(0))
	assert.Equal(t, "rest", code.LocalNameAt(1))
	assert.Equal(t, "flag", code.LocalNameAt(2))
	assert.Equal(t, "extra", code.LocalNameAt(3))
	assert.Equal(t, 4, code.Params().Count())
}

func TestConstantEquality(t *testing.T) {
	assert.True(t, NewIntConst(7).Equal(IntConst{Value: big.NewInt(7)}))
	assert.False(t, NewIntConst(7).Equal(NewIntConst(8)))
	assert.False(t, NewIntConst(7).Equal(FloatConst{Value: 7}))
	assert.True(t, FloatConst{Value: 1.5}.Equal(FloatConst{Value: 1.5}))
	assert.True(t, StrConst{Value: "x"}.Equal(StrConst{Value: "x"}))
	assert.True(t, BytesConst{Value: []byte{1, 2}}.Equal(BytesConst{Value: []byte{1, 2}}))
	assert.False(t, BytesConst{Value: []byte{1, 2}}.Equal(BytesConst{Value: []byte{1, 3}}))
	assert.True(t, NoneConst{}.Equal(NoneConst{}))
	assert.False(t, NoneConst{}.Equal(EllipsisConst{}))
	assert.True(t, ComplexConst{Real: 1, Imag: 2}.Equal(ComplexConst{Real: 1, Imag: 2}))

	tup := TupleConst{Items: []Constant{NewIntConst(1), StrConst{Value: "a"}}}
	assert.True(t, tup.Equal(TupleConst{Items: []Constant{NewIntConst(1), StrConst{Value: "a"}}}))
	assert.False(t, tup.Equal(TupleConst{Items: []Constant{NewIntConst(1)}}))
}

func TestConstantStrings(t *testing.T) {
	assert.Equal(t, "42", NewIntConst(42).String())
	assert.Equal(t, "True", BoolConst{Value: true}.String())
	assert.Equal(t, "False", BoolConst{Value: false}.String())
	assert.Equal(t, `"hi"`, StrConst{Value: "hi"}.String())
	assert.Equal(t, "None", NoneConst{}.String())
	assert.Equal(t, "...", EllipsisConst{}.String())
	assert.Equal(t, "(1,)", TupleConst{Items: []Constant{NewIntConst(1)}}.String())
	assert.Equal(t, "(1, 2)", TupleConst{Items: []Constant{NewIntConst(1), NewIntConst(2)}}.String())
}

func TestCodeEqual(t *testing.T) {
	build := func() *Code {
		b := NewBuilder(BuilderParams{Name: "f"})
		b.Emit(op.LoadConst, b.Constant(NewIntConst(1)))
		b.Emit(op.ReturnValue)
		code, err := b.Assemble()
		require.NoError(t, err)
		return code
	}
	a := build()
	c := build()
	// IDs differ between independent assemblies
	assert.False(t, a.Equal(c))
	assert.True(t, a.Equal(a))
	assert.False(t, a.Equal(nil))
}

func TestCodeImmutability(t *testing.T) {
	instructions := []op.Code{op.Nil, op.ReturnValue}
	code := NewCode(CodeParams{
		ID:           "x",
		Name:         "f",
		Instructions: instructions,
		Locations:    make([]errz.SourceLocation, 2),
		Labels:       map[Label]int{},
	})
	instructions[0] = op.True
	assert.Equal(t, op.Nil, code.InstructionAt(0))

	got := code.Instructions()
	got[0] = op.True
	assert.Equal(t, op.Nil, code.InstructionAt(0))
}

func TestLocationAt(t *testing.T) {
	loc := errz.SourceLocation{Line: 3, Column: 1, Span: errz.NewSpan(10, 15)}
	code := NewCode(CodeParams{
		ID:           "x",
		Name:         "f",
		Instructions: []op.Code{op.Nil},
		Locations:    []errz.SourceLocation{loc},
	})
	assert.Equal(t, loc, code.LocationAt(0))
	assert.True(t, code.LocationAt(-1).IsZero())
	assert.True(t, code.LocationAt(99).IsZero())
}

func TestVerifyMalformed(t *testing.T) {
	// Jump target outside the stream and not in the label map
	code := NewCode(CodeParams{
		ID:           "x",
		Name:         "bad",
		Instructions: []op.Code{op.Jump, 99, op.ReturnValue},
		Locations:    make([]errz.SourceLocation, 3),
	})
	err := Verify(code)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "beyond stream")
}

func TestVerifyJumpIntoOperand(t *testing.T) {
	code := NewCode(CodeParams{
		ID:           "x",
		Name:         "bad",
		Instructions: []op.Code{op.Jump, 1, op.ReturnValue},
		Locations:    make([]errz.SourceLocation, 3),
		Labels:       map[Label]int{0: 1},
	})
	err := Verify(code)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "middle of an instruction")
}

func TestVerifyJumpNotInLabelMap(t *testing.T) {
	code := NewCode(CodeParams{
		ID:           "x",
		Name:         "bad",
		Instructions: []op.Code{op.Jump, 2, op.ReturnValue},
		Locations:    make([]errz.SourceLocation, 3),
	})
	err := Verify(code)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not in the label map")
}

func TestVerifyTruncatedOperand(t *testing.T) {
	code := NewCode(CodeParams{
		ID:           "x",
		Name:         "bad",
		Instructions: []op.Code{op.LoadConst},
		Locations:    make([]errz.SourceLocation, 1),
	})
	err := Verify(code)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "truncated")
}

func TestVerifyAggregatesFindings(t *testing.T) {
	code := NewCode(CodeParams{
		ID:   "x",
		Name: "bad",
		Instructions: []op.Code{
			op.Code(250), // unknown opcode
			op.Jump, 99, // bad jump
			op.ReturnValue,
		},
		Locations: make([]errz.SourceLocation, 2), // wrong length too
	})
	err := Verify(code)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown opcode")
	assert.Contains(t, err.Error(), "beyond stream")
	assert.Contains(t, err.Error(), "source map")
}
