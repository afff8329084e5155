package bytecode

import (
	"fmt"
	"math/big"
	"strconv"
	"strings"
)

// Constant is a closed union of the value kinds that may appear in a Code
// object's constant pool. Constants are immutable and interned per-Code, so
// equality between constants from different Code objects is structural,
// never pointer-based.
type Constant interface {
	constant()

	// Equal reports structural equality with another constant.
	Equal(other Constant) bool

	// String returns the source-style rendering of the constant.
	String() string
}

// IntConst is an arbitrary-precision integer constant.
type IntConst struct {
	Value *big.Int
}

// NewIntConst creates an integer constant from an int64.
func NewIntConst(v int64) IntConst {
	return IntConst{Value: big.NewInt(v)}
}

func (IntConst) constant() {}

func (c IntConst) Equal(other Constant) bool {
	o, ok := other.(IntConst)
	return ok && c.Value.Cmp(o.Value) == 0
}

func (c IntConst) String() string {
	return c.Value.String()
}

// FloatConst is a 64-bit floating point constant.
type FloatConst struct {
	Value float64
}

func (FloatConst) constant() {}

func (c FloatConst) Equal(other Constant) bool {
	o, ok := other.(FloatConst)
	return ok && c.Value == o.Value
}

func (c FloatConst) String() string {
	return strconv.FormatFloat(c.Value, 'g', -1, 64)
}

// ComplexConst is a complex number constant.
type ComplexConst struct {
	Real float64
	Imag float64
}

func (ComplexConst) constant() {}

func (c ComplexConst) Equal(other Constant) bool {
	o, ok := other.(ComplexConst)
	return ok && c.Real == o.Real && c.Imag == o.Imag
}

func (c ComplexConst) String() string {
	return fmt.Sprintf("(%g+%gj)", c.Real, c.Imag)
}

// BoolConst is a boolean constant.
type BoolConst struct {
	Value bool
}

func (BoolConst) constant() {}

func (c BoolConst) Equal(other Constant) bool {
	o, ok := other.(BoolConst)
	return ok && c.Value == o.Value
}

func (c BoolConst) String() string {
	if c.Value {
		return "True"
	}
	return "False"
}

// StrConst is a string constant.
type StrConst struct {
	Value string
}

func (StrConst) constant() {}

func (c StrConst) Equal(other Constant) bool {
	o, ok := other.(StrConst)
	return ok && c.Value == o.Value
}

func (c StrConst) String() string {
	return strconv.Quote(c.Value)
}

// BytesConst is a bytes constant.
type BytesConst struct {
	Value []byte
}

func (BytesConst) constant() {}

func (c BytesConst) Equal(other Constant) bool {
	o, ok := other.(BytesConst)
	if !ok || len(c.Value) != len(o.Value) {
		return false
	}
	for i := range c.Value {
		if c.Value[i] != o.Value[i] {
			return false
		}
	}
	return true
}

func (c BytesConst) String() string {
	return fmt.Sprintf("b%q", c.Value)
}

// TupleConst is a tuple of constants.
type TupleConst struct {
	Items []Constant
}

func (TupleConst) constant() {}

func (c TupleConst) Equal(other Constant) bool {
	o, ok := other.(TupleConst)
	if !ok || len(c.Items) != len(o.Items) {
		return false
	}
	for i := range c.Items {
		if !c.Items[i].Equal(o.Items[i]) {
			return false
		}
	}
	return true
}

func (c TupleConst) String() string {
	parts := make([]string, len(c.Items))
	for i, item := range c.Items {
		parts[i] = item.String()
	}
	if len(parts) == 1 {
		return "(" + parts[0] + ",)"
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

// CodeConst is a nested code object constant (a function body).
type CodeConst struct {
	Code *Code
}

func (CodeConst) constant() {}

func (c CodeConst) Equal(other Constant) bool {
	o, ok := other.(CodeConst)
	return ok && c.Code.Equal(o.Code)
}

func (c CodeConst) String() string {
	return fmt.Sprintf("<code %s>", c.Code.Name())
}

// NoneConst is the none singleton constant.
type NoneConst struct{}

func (NoneConst) constant() {}

func (NoneConst) Equal(other Constant) bool {
	_, ok := other.(NoneConst)
	return ok
}

func (NoneConst) String() string {
	return "None"
}

// EllipsisConst is the ellipsis singleton constant.
type EllipsisConst struct{}

func (EllipsisConst) constant() {}

func (EllipsisConst) Equal(other Constant) bool {
	_, ok := other.(EllipsisConst)
	return ok
}

func (EllipsisConst) String() string {
	return "..."
}
