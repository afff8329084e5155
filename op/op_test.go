package op

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetInfo(t *testing.T) {
	info := GetInfo(LoadConst)
	assert.Equal(t, "LOAD_CONST", info.Name)
	assert.Equal(t, 1, info.OperandCount)
	assert.Equal(t, LoadConst, info.Code)
	assert.False(t, info.IsJump)
}

func TestGetInfoAllOpcodes(t *testing.T) {
	tests := []struct {
		code     Code
		name     string
		operands int
		jump     bool
	}{
		{Nop, "NOP", 0, false},
		{Halt, "HALT", 0, false},
		{ReturnValue, "RETURN_VALUE", 0, false},
		{YieldValue, "YIELD_VALUE", 0, false},
		{Call, "CALL", 1, false},
		{CallKw, "CALL_KW", 1, false},
		{CallEx, "CALL_EX", 1, false},
		{Jump, "JUMP", 1, true},
		{PopJumpIfTrue, "POP_JUMP_IF_TRUE", 1, true},
		{PopJumpIfFalse, "POP_JUMP_IF_FALSE", 1, true},
		{JumpIfTrueOrPop, "JUMP_IF_TRUE_OR_POP", 1, true},
		{JumpIfFalseOrPop, "JUMP_IF_FALSE_OR_POP", 1, true},
		{LoadConst, "LOAD_CONST", 1, false},
		{LoadFast, "LOAD_FAST", 1, false},
		{LoadGlobal, "LOAD_GLOBAL", 1, false},
		{LoadName, "LOAD_NAME", 1, false},
		{LoadDeref, "LOAD_DEREF", 1, false},
		{LoadAttr, "LOAD_ATTR", 1, false},
		{StoreFast, "STORE_FAST", 1, false},
		{StoreGlobal, "STORE_GLOBAL", 1, false},
		{StoreAttr, "STORE_ATTR", 1, false},
		{DeleteFast, "DELETE_FAST", 1, false},
		{BinaryOp, "BINARY_OP", 1, false},
		{CompareOp, "COMPARE_OP", 1, false},
		{UnaryOp, "UNARY_OP", 1, false},
		{ContainsOp, "CONTAINS_OP", 1, false},
		{BuildTuple, "BUILD_TUPLE", 1, false},
		{BuildList, "BUILD_LIST", 1, false},
		{BuildSet, "BUILD_SET", 1, false},
		{BuildMap, "BUILD_MAP", 1, false},
		{BuildString, "BUILD_STRING", 1, false},
		{Subscript, "SUBSCRIPT", 0, false},
		{StoreSubscript, "STORE_SUBSCRIPT", 0, false},
		{UnpackSequence, "UNPACK_SEQUENCE", 1, false},
		{PopTop, "POP_TOP", 0, false},
		{Rotate2, "ROTATE_2", 0, false},
		{Rotate3, "ROTATE_3", 0, false},
		{DupTop, "DUP_TOP", 0, false},
		{Nil, "NIL", 0, false},
		{False, "FALSE", 0, false},
		{True, "TRUE", 0, false},
		{GetIter, "GET_ITER", 0, false},
		{ForIter, "FOR_ITER", 1, true},
		{MakeFunction, "MAKE_FUNCTION", 1, false},
		{SetupLoop, "SETUP_LOOP", 1, true},
		{SetupExcept, "SETUP_EXCEPT", 1, true},
		{SetupFinally, "SETUP_FINALLY", 1, true},
		{SetupWith, "SETUP_WITH", 1, true},
		{PopBlock, "POP_BLOCK", 0, false},
		{EndFinally, "END_FINALLY", 0, false},
		{Raise, "RAISE", 1, false},
		{ImportName, "IMPORT_NAME", 1, false},
		{ImportFrom, "IMPORT_FROM", 1, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info := GetInfo(tt.code)
			assert.Equal(t, tt.code, info.Code)
			assert.Equal(t, tt.name, info.Name)
			assert.Equal(t, tt.operands, info.OperandCount)
			assert.Equal(t, tt.jump, info.IsJump)
		})
	}
}

func TestGetInfoInvalid(t *testing.T) {
	info := GetInfo(Invalid)
	assert.Equal(t, Code(0), info.Code)
	assert.Equal(t, "", info.Name)
	assert.Equal(t, 0, info.OperandCount)
}

func TestBinaryOpTypeString(t *testing.T) {
	tests := []struct {
		op   BinaryOpType
		want string
	}{
		{Add, "+"},
		{Subtract, "-"},
		{Multiply, "*"},
		{Divide, "/"},
		{FloorDiv, "//"},
		{Modulo, "%"},
		{Power, "**"},
		{LShift, "<<"},
		{RShift, ">>"},
		{BitwiseAnd, "&"},
		{BitwiseOr, "|"},
		{BitwiseXor, "^"},
		{MatMul, "@"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.op.String())
		})
	}
	assert.Equal(t, "", BinaryOpType(255).String())
}

func TestCompareOpTypeString(t *testing.T) {
	tests := []struct {
		op   CompareOpType
		want string
	}{
		{LessThan, "<"},
		{LessThanOrEqual, "<="},
		{Equal, "=="},
		{NotEqual, "!="},
		{GreaterThan, ">"},
		{GreaterThanOrEqual, ">="},
		{Is, "is"},
		{IsNot, "is not"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.op.String())
		})
	}
	assert.Equal(t, "", CompareOpType(255).String())
}

func TestUnaryOpTypeString(t *testing.T) {
	assert.Equal(t, "-", UnaryNegative.String())
	assert.Equal(t, "+", UnaryPositive.String())
	assert.Equal(t, "not", UnaryNot.String())
	assert.Equal(t, "~", UnaryInvert.String())
	assert.Equal(t, "", UnaryOpType(255).String())
}

func TestMakeFunctionFlags(t *testing.T) {
	flags := FlagDefaults | FlagClosure
	assert.NotZero(t, flags&FlagDefaults)
	assert.Zero(t, flags&FlagKwDefaults)
	assert.NotZero(t, flags&FlagClosure)
}
