// Package op defines opcodes used by the Serpent compiler and virtual machine.
package op

// Code is an integer opcode that indicates an operation to execute.
// Instruction operands are encoded inline as additional Code words
// immediately following the opcode.
type Code uint16

const (
	Invalid Code = 0

	// Execution
	Nop         Code = 1
	ReturnValue Code = 2
	YieldValue  Code = 3
	Halt        Code = 4

	// Calls
	Call   Code = 7 // operand: positional arg count
	CallKw Code = 8 // operand: total arg count; keyword names tuple at TOS
	CallEx Code = 9 // operand: 1 if a mapping of keyword args is at TOS

	// Jumps (operands are absolute instruction offsets, resolved from
	// labels once at assembly time)
	Jump             Code = 10
	PopJumpIfTrue    Code = 11
	PopJumpIfFalse   Code = 12
	JumpIfTrueOrPop  Code = 13
	JumpIfFalseOrPop Code = 14
	Continue         Code = 15
	Break            Code = 16

	// Load
	LoadConst  Code = 20
	LoadFast   Code = 21
	LoadGlobal Code = 22
	LoadName   Code = 23
	LoadDeref  Code = 24
	LoadAttr   Code = 25

	// Store
	StoreFast   Code = 30
	StoreGlobal Code = 31
	StoreName   Code = 32
	StoreDeref  Code = 33
	StoreAttr   Code = 34

	// Delete
	DeleteFast   Code = 35
	DeleteGlobal Code = 36
	DeleteName   Code = 37
	DeleteAttr   Code = 38

	// Operations
	BinaryOp   Code = 40 // operand: BinaryOpType
	CompareOp  Code = 41 // operand: CompareOpType
	UnaryOp    Code = 42 // operand: UnaryOpType
	ContainsOp Code = 43 // operand: 1 to invert (not in)

	// Containers
	BuildTuple       Code = 50 // operand: element count
	BuildList        Code = 51
	BuildSet         Code = 52
	BuildMap         Code = 53 // operand: key/value pair count
	BuildString      Code = 54 // operand: part count; joins string parts
	BuildTupleUnpack Code = 55 // operand: iterable count; flattens nested iterables
	BuildListUnpack  Code = 56
	BuildMapUnpack   Code = 57
	Subscript        Code = 58
	StoreSubscript   Code = 59
	DeleteSubscript  Code = 60
	UnpackSequence   Code = 61 // operand: expected element count

	// Stack
	PopTop  Code = 70
	Rotate2 Code = 71
	Rotate3 Code = 72
	DupTop  Code = 73

	// Push singletons
	Nil   Code = 80
	False Code = 81
	True  Code = 82

	// Iteration
	GetIter Code = 90
	ForIter Code = 91 // operand: loop-end offset; pops iterator on exhaustion

	// Functions
	MakeFunction Code = 100 // operand: MakeFunctionFlags

	// Blocks
	SetupLoop    Code = 110 // operand: break target offset
	SetupExcept  Code = 111 // operand: handler offset
	SetupFinally Code = 112 // operand: finally offset
	SetupWith    Code = 113 // operand: cleanup offset
	PopBlock     Code = 114
	EndFinally   Code = 115
	Raise        Code = 116 // operand: 0 re-raise, 1 raise TOS, 2 raise with cause

	// Imports
	ImportName Code = 120 // operand: name index
	ImportFrom Code = 121 // operand: name index
)

// BinaryOpType describes a type of binary operation, as in an operation that
// takes two operands. For example, addition, subtraction, multiplication, etc.
type BinaryOpType uint16

const (
	Add        BinaryOpType = 1
	Subtract   BinaryOpType = 2
	Multiply   BinaryOpType = 3
	Divide     BinaryOpType = 4
	FloorDiv   BinaryOpType = 5
	Modulo     BinaryOpType = 6
	Power      BinaryOpType = 7
	LShift     BinaryOpType = 8
	RShift     BinaryOpType = 9
	BitwiseAnd BinaryOpType = 10
	BitwiseOr  BinaryOpType = 11
	BitwiseXor BinaryOpType = 12
	MatMul     BinaryOpType = 13
)

// String returns a string representation of the binary operation.
// For example "+" for addition.
func (bop BinaryOpType) String() string {
	switch bop {
	case Add:
		return "+"
	case Subtract:
		return "-"
	case Multiply:
		return "*"
	case Divide:
		return "/"
	case FloorDiv:
		return "//"
	case Modulo:
		return "%"
	case Power:
		return "**"
	case LShift:
		return "<<"
	case RShift:
		return ">>"
	case BitwiseAnd:
		return "&"
	case BitwiseOr:
		return "|"
	case BitwiseXor:
		return "^"
	case MatMul:
		return "@"
	default:
		return ""
	}
}

// CompareOpType describes a type of comparison operation. For example, less
// than, greater than, equal, etc.
type CompareOpType uint16

const (
	LessThan           CompareOpType = 1
	LessThanOrEqual    CompareOpType = 2
	Equal              CompareOpType = 3
	NotEqual           CompareOpType = 4
	GreaterThan        CompareOpType = 5
	GreaterThanOrEqual CompareOpType = 6
	Is                 CompareOpType = 7
	IsNot              CompareOpType = 8
)

// String returns a string representation of the comparison operation.
// For example "<" for less than.
func (cop CompareOpType) String() string {
	switch cop {
	case LessThan:
		return "<"
	case LessThanOrEqual:
		return "<="
	case Equal:
		return "=="
	case NotEqual:
		return "!="
	case GreaterThan:
		return ">"
	case GreaterThanOrEqual:
		return ">="
	case Is:
		return "is"
	case IsNot:
		return "is not"
	default:
		return ""
	}
}

// UnaryOpType describes a type of unary operation.
type UnaryOpType uint16

const (
	UnaryNegative UnaryOpType = 1
	UnaryPositive UnaryOpType = 2
	UnaryNot      UnaryOpType = 3
	UnaryInvert   UnaryOpType = 4
)

// String returns a string representation of the unary operation.
func (uop UnaryOpType) String() string {
	switch uop {
	case UnaryNegative:
		return "-"
	case UnaryPositive:
		return "+"
	case UnaryNot:
		return "not"
	case UnaryInvert:
		return "~"
	default:
		return ""
	}
}

// MakeFunctionFlags are operand bits for the MakeFunction opcode indicating
// which optional values are on the stack below the code constant.
type MakeFunctionFlags uint16

const (
	FlagDefaults   MakeFunctionFlags = 1 << 0 // tuple of positional defaults
	FlagKwDefaults MakeFunctionFlags = 1 << 1 // dict of keyword-only defaults
	FlagClosure    MakeFunctionFlags = 1 << 2 // tuple of free-variable cells
)

// Info contains information about an opcode.
type Info struct {
	Code         Code
	Name         string
	OperandCount int
	IsJump       bool // operand 0 is an absolute instruction offset
}

var infos = make([]Info, 256)

func init() {
	type opInfo struct {
		op    Code
		name  string
		count int
		jump  bool
	}
	ops := []opInfo{
		{BinaryOp, "BINARY_OP", 1, false},
		{Break, "BREAK", 1, true},
		{BuildList, "BUILD_LIST", 1, false},
		{BuildListUnpack, "BUILD_LIST_UNPACK", 1, false},
		{BuildMap, "BUILD_MAP", 1, false},
		{BuildMapUnpack, "BUILD_MAP_UNPACK", 1, false},
		{BuildSet, "BUILD_SET", 1, false},
		{BuildString, "BUILD_STRING", 1, false},
		{BuildTuple, "BUILD_TUPLE", 1, false},
		{BuildTupleUnpack, "BUILD_TUPLE_UNPACK", 1, false},
		{Call, "CALL", 1, false},
		{CallEx, "CALL_EX", 1, false},
		{CallKw, "CALL_KW", 1, false},
		{CompareOp, "COMPARE_OP", 1, false},
		{ContainsOp, "CONTAINS_OP", 1, false},
		{Continue, "CONTINUE", 1, true},
		{DeleteAttr, "DELETE_ATTR", 1, false},
		{DeleteFast, "DELETE_FAST", 1, false},
		{DeleteGlobal, "DELETE_GLOBAL", 1, false},
		{DeleteName, "DELETE_NAME", 1, false},
		{DeleteSubscript, "DELETE_SUBSCRIPT", 0, false},
		{DupTop, "DUP_TOP", 0, false},
		{EndFinally, "END_FINALLY", 0, false},
		{False, "FALSE", 0, false},
		{ForIter, "FOR_ITER", 1, true},
		{GetIter, "GET_ITER", 0, false},
		{Halt, "HALT", 0, false},
		{ImportFrom, "IMPORT_FROM", 1, false},
		{ImportName, "IMPORT_NAME", 1, false},
		{Jump, "JUMP", 1, true},
		{JumpIfFalseOrPop, "JUMP_IF_FALSE_OR_POP", 1, true},
		{JumpIfTrueOrPop, "JUMP_IF_TRUE_OR_POP", 1, true},
		{LoadAttr, "LOAD_ATTR", 1, false},
		{LoadConst, "LOAD_CONST", 1, false},
		{LoadDeref, "LOAD_DEREF", 1, false},
		{LoadFast, "LOAD_FAST", 1, false},
		{LoadGlobal, "LOAD_GLOBAL", 1, false},
		{LoadName, "LOAD_NAME", 1, false},
		{MakeFunction, "MAKE_FUNCTION", 1, false},
		{Nil, "NIL", 0, false},
		{Nop, "NOP", 0, false},
		{PopBlock, "POP_BLOCK", 0, false},
		{PopJumpIfFalse, "POP_JUMP_IF_FALSE", 1, true},
		{PopJumpIfTrue, "POP_JUMP_IF_TRUE", 1, true},
		{PopTop, "POP_TOP", 0, false},
		{Raise, "RAISE", 1, false},
		{ReturnValue, "RETURN_VALUE", 0, false},
		{Rotate2, "ROTATE_2", 0, false},
		{Rotate3, "ROTATE_3", 0, false},
		{SetupExcept, "SETUP_EXCEPT", 1, true},
		{SetupFinally, "SETUP_FINALLY", 1, true},
		{SetupLoop, "SETUP_LOOP", 1, true},
		{SetupWith, "SETUP_WITH", 1, true},
		{StoreAttr, "STORE_ATTR", 1, false},
		{StoreFast, "STORE_FAST", 1, false},
		{StoreGlobal, "STORE_GLOBAL", 1, false},
		{StoreName, "STORE_NAME", 1, false},
		{StoreSubscript, "STORE_SUBSCRIPT", 0, false},
		{Subscript, "SUBSCRIPT", 0, false},
		{True, "TRUE", 0, false},
		{UnaryOp, "UNARY_OP", 1, false},
		{UnpackSequence, "UNPACK_SEQUENCE", 1, false},
		{YieldValue, "YIELD_VALUE", 0, false},
	}
	for _, o := range ops {
		infos[o.op] = Info{
			Name:         o.name,
			Code:         o.op,
			OperandCount: o.count,
			IsJump:       o.jump,
		}
	}
}

// GetInfo returns information about the given opcode.
func GetInfo(op Code) Info {
	return infos[op]
}
