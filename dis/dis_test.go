package dis

import (
	"bytes"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deepnoodle-ai/serpent/bytecode"
	"github.com/deepnoodle-ai/serpent/op"
)

func TestDisassembleBasic(t *testing.T) {
	b := bytecode.NewBuilder(bytecode.BuilderParams{Name: "f", Filename: "f.sp"})
	b.Emit(op.LoadConst, b.Constant(bytecode.NewIntConst(42)))
	b.Emit(op.PopTop)
	b.Emit(op.LoadGlobal, b.Name("error"))
	b.Emit(op.LoadConst, b.Constant(bytecode.StrConst{Value: "kaboom"}))
	b.Emit(op.Call, 1)
	b.Emit(op.ReturnValue)
	code, err := b.Assemble()
	require.NoError(t, err)

	instructions, err := Disassemble(code)
	require.NoError(t, err)
	require.Len(t, instructions, 6)

	assert.Equal(t, 0, instructions[0].Offset)
	assert.Equal(t, "LOAD_CONST", instructions[0].Opcode)
	assert.Equal(t, "42", instructions[0].Info)
	assert.Equal(t, "LOAD_GLOBAL", instructions[2].Opcode)
	assert.Equal(t, "error", instructions[2].Info)
	assert.Equal(t, "CALL", instructions[4].Opcode)
	assert.Equal(t, "RETURN_VALUE", instructions[5].Opcode)
}

func TestDisassembleJumpTargets(t *testing.T) {
	b := bytecode.NewBuilder(bytecode.BuilderParams{Name: "loop"})
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

	instructions, err := Disassemble(code)
	require.NoError(t, err)
	assert.Equal(t, "-> 5", instructions[1].Info)
	assert.Equal(t, "-> 0", instructions[2].Info)
}

func TestDisassembleBinaryOpSymbol(t *testing.T) {
	b := bytecode.NewBuilder(bytecode.BuilderParams{Name: "math"})
	b.Emit(op.LoadConst, b.Constant(bytecode.NewIntConst(1)))
	b.Emit(op.LoadConst, b.Constant(bytecode.NewIntConst(2)))
	b.Emit(op.BinaryOp, uint16(op.Add))
	b.Emit(op.ReturnValue)
	code, err := b.Assemble()
	require.NoError(t, err)

	instructions, err := Disassemble(code)
	require.NoError(t, err)
	assert.Equal(t, "+", instructions[2].Info)
}

func TestPrintTable(t *testing.T) {
	prev := color.NoColor
	color.NoColor = true
	defer func() { color.NoColor = prev }()

	b := bytecode.NewBuilder(bytecode.BuilderParams{Name: "f"})
	b.Emit(op.Nil)
	b.Emit(op.ReturnValue)
	code, err := b.Assemble()
	require.NoError(t, err)

	instructions, err := Disassemble(code)
	require.NoError(t, err)

	var buf bytes.Buffer
	Print(instructions, &buf)
	out := buf.String()
	assert.Contains(t, out, "OFFSET")
	assert.Contains(t, out, "NIL")
	assert.Contains(t, out, "RETURN_VALUE")
	assert.True(t, strings.HasPrefix(out, "+-"))
}

func TestDisassembleAll(t *testing.T) {
	inner := bytecode.NewBuilder(bytecode.BuilderParams{Name: "inner"})
	inner.Emit(op.Nil)
	inner.Emit(op.ReturnValue)
	innerCode, err := inner.Assemble()
	require.NoError(t, err)

	outer := bytecode.NewBuilder(bytecode.BuilderParams{Name: "outer"})
	outer.Emit(op.LoadConst, outer.Constant(bytecode.CodeConst{Code: innerCode}))
	outer.Emit(op.MakeFunction, 0)
	outer.Emit(op.ReturnValue)
	outerCode, err := outer.Assemble()
	require.NoError(t, err)

	all, err := DisassembleAll(outerCode)
	require.NoError(t, err)
	assert.Contains(t, all, "outer")
	assert.Contains(t, all, "inner")
}
