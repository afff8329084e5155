package object

import (
	"math"
	"math/big"
	"math/cmplx"

	"github.com/deepnoodle-ai/serpent/errz"
	"github.com/deepnoodle-ai/serpent/op"
)

var (
	bigZero = big.NewInt(0)
	bigOne  = big.NewInt(1)
)

// asBigInt extracts an integer value from an int or bool payload.
func asBigInt(o *Object) (*big.Int, bool) {
	switch p := o.Payload().(type) {
	case *Int:
		return p.value, true
	case *Bool:
		if p.value {
			return bigOne, true
		}
		return bigZero, true
	default:
		return nil, false
	}
}

// floatValue extracts a float from a float payload only. Int promotion is
// handled by the caller so int/int stays exact.
func floatValue(o *Object) (float64, bool) {
	if f, ok := PayloadOf[*Float](o); ok {
		return f.value, true
	}
	return 0, false
}

// numericAsFloat widens int, bool, or float payloads to float64.
func numericAsFloat(o *Object) (float64, bool) {
	if f, ok := floatValue(o); ok {
		return f, true
	}
	if v, ok := asBigInt(o); ok {
		f, _ := new(big.Float).SetInt(v).Float64()
		return f, true
	}
	return 0, false
}

// numericAsComplex widens int, bool, float, or complex payloads.
func numericAsComplex(o *Object) (complex128, bool) {
	if c, ok := PayloadOf[*Complex](o); ok {
		return complex(c.real, c.imag), true
	}
	if f, ok := numericAsFloat(o); ok {
		return complex(f, 0), true
	}
	return 0, false
}

func bigToFloat(v *big.Int) float64 {
	f, _ := new(big.Float).SetInt(v).Float64()
	return f
}

// floorQuoRem computes floor division and the matching remainder, where the
// remainder takes the sign of the divisor.
func floorQuoRem(a, b *big.Int) (*big.Int, *big.Int) {
	q := new(big.Int)
	m := new(big.Int)
	q.QuoRem(a, b, m)
	if m.Sign() != 0 && (m.Sign() < 0) != (b.Sign() < 0) {
		q.Sub(q, bigOne)
		m.Add(m, b)
	}
	return q, m
}

func intArith(r *Registry, kind op.BinaryOpType, a, b *big.Int) (*Object, error) {
	switch kind {
	case op.Add:
		return r.NewInt(new(big.Int).Add(a, b)), nil
	case op.Subtract:
		return r.NewInt(new(big.Int).Sub(a, b)), nil
	case op.Multiply:
		return r.NewInt(new(big.Int).Mul(a, b)), nil
	case op.Divide:
		if b.Sign() == 0 {
			return nil, r.Raise(errz.ErrZeroDivision, "division by zero")
		}
		return r.NewFloat(bigToFloat(a) / bigToFloat(b)), nil
	case op.FloorDiv:
		if b.Sign() == 0 {
			return nil, r.Raise(errz.ErrZeroDivision, "integer division or modulo by zero")
		}
		q, _ := floorQuoRem(a, b)
		return r.NewInt(q), nil
	case op.Modulo:
		if b.Sign() == 0 {
			return nil, r.Raise(errz.ErrZeroDivision, "integer division or modulo by zero")
		}
		_, m := floorQuoRem(a, b)
		return r.NewInt(m), nil
	case op.Power:
		if b.Sign() < 0 {
			return r.NewFloat(math.Pow(bigToFloat(a), bigToFloat(b))), nil
		}
		return r.NewInt(new(big.Int).Exp(a, b, nil)), nil
	case op.LShift:
		n, err := shiftCount(r, b)
		if err != nil {
			return nil, err
		}
		return r.NewInt(new(big.Int).Lsh(a, n)), nil
	case op.RShift:
		n, err := shiftCount(r, b)
		if err != nil {
			return nil, err
		}
		return r.NewInt(new(big.Int).Rsh(a, n)), nil
	case op.BitwiseAnd:
		return r.NewInt(new(big.Int).And(a, b)), nil
	case op.BitwiseOr:
		return r.NewInt(new(big.Int).Or(a, b)), nil
	case op.BitwiseXor:
		return r.NewInt(new(big.Int).Xor(a, b)), nil
	default:
		return r.notImplemented.Incref(), nil
	}
}

func shiftCount(r *Registry, b *big.Int) (uint, error) {
	if b.Sign() < 0 {
		return 0, r.Raise(errz.ErrValue, "negative shift count")
	}
	if !b.IsUint64() || b.Uint64() > 1<<20 {
		return 0, r.Raise(errz.ErrMemory, "shift count too large")
	}
	return uint(b.Uint64()), nil
}

func floatArith(r *Registry, kind op.BinaryOpType, a, b float64) (*Object, error) {
	switch kind {
	case op.Add:
		return r.NewFloat(a + b), nil
	case op.Subtract:
		return r.NewFloat(a - b), nil
	case op.Multiply:
		return r.NewFloat(a * b), nil
	case op.Divide:
		if b == 0 {
			return nil, r.Raise(errz.ErrZeroDivision, "float division by zero")
		}
		return r.NewFloat(a / b), nil
	case op.FloorDiv:
		if b == 0 {
			return nil, r.Raise(errz.ErrZeroDivision, "float floor division by zero")
		}
		return r.NewFloat(math.Floor(a / b)), nil
	case op.Modulo:
		if b == 0 {
			return nil, r.Raise(errz.ErrZeroDivision, "float modulo")
		}
		m := math.Mod(a, b)
		if m != 0 && (m < 0) != (b < 0) {
			m += b
		}
		return r.NewFloat(m), nil
	case op.Power:
		return r.NewFloat(math.Pow(a, b)), nil
	default:
		return r.notImplemented.Incref(), nil
	}
}

func complexArith(r *Registry, kind op.BinaryOpType, a, b complex128) (*Object, error) {
	switch kind {
	case op.Add:
		return r.NewComplex(real(a+b), imag(a+b)), nil
	case op.Subtract:
		return r.NewComplex(real(a-b), imag(a-b)), nil
	case op.Multiply:
		return r.NewComplex(real(a*b), imag(a*b)), nil
	case op.Divide:
		if b == 0 {
			return nil, r.Raise(errz.ErrZeroDivision, "complex division by zero")
		}
		q := a / b
		return r.NewComplex(real(q), imag(q)), nil
	case op.Power:
		p := cmplx.Pow(a, b)
		return r.NewComplex(real(p), imag(p)), nil
	default:
		return r.notImplemented.Incref(), nil
	}
}

// The binary slot table shares one implementation per numeric type; the
// operation kind is threaded through a closure at registration.

func makeIntBinary(kind op.BinaryOpType) BinaryFunc {
	return func(r *Registry, left, right *Object) (*Object, error) {
		a, _ := asBigInt(left)
		if b, ok := asBigInt(right); ok {
			return intArith(r, kind, a, b)
		}
		if f, ok := floatValue(right); ok {
			return floatArith(r, kind, bigToFloat(a), f)
		}
		if c, ok := PayloadOf[*Complex](right); ok {
			return complexArith(r, kind, complex(bigToFloat(a), 0), complex(c.real, c.imag))
		}
		return r.notImplemented.Incref(), nil
	}
}

func makeFloatBinary(kind op.BinaryOpType) BinaryFunc {
	return func(r *Registry, left, right *Object) (*Object, error) {
		a, _ := floatValue(left)
		if b, ok := numericAsFloat(right); ok {
			return floatArith(r, kind, a, b)
		}
		if c, ok := PayloadOf[*Complex](right); ok {
			return complexArith(r, kind, complex(a, 0), complex(c.real, c.imag))
		}
		return r.notImplemented.Incref(), nil
	}
}

// makeFloatRBinary handles int-on-the-left mixed arithmetic when the int
// slot has deferred, e.g. an int subclass meeting a float.
func makeFloatRBinary(kind op.BinaryOpType) BinaryFunc {
	return func(r *Registry, left, right *Object) (*Object, error) {
		b, _ := floatValue(right)
		if a, ok := numericAsFloat(left); ok {
			return floatArith(r, kind, a, b)
		}
		return r.notImplemented.Incref(), nil
	}
}

func makeComplexBinary(kind op.BinaryOpType) BinaryFunc {
	return func(r *Registry, left, right *Object) (*Object, error) {
		a, _ := numericAsComplex(left)
		if b, ok := numericAsComplex(right); ok {
			return complexArith(r, kind, a, b)
		}
		return r.notImplemented.Incref(), nil
	}
}

func registerIntSlots(t *Type) {
	s := t.Slots()
	for _, kind := range allBinaryOps() {
		s.Binary[kind] = makeIntBinary(kind)
	}
	s.Compare = func(r *Registry, kind op.CompareOpType, left, right *Object) (*Object, error) {
		a, _ := asBigInt(left)
		if b, ok := asBigInt(right); ok {
			return compareOrdered(r, kind, a.Cmp(b))
		}
		if b, ok := floatValue(right); ok {
			return compareOrdered(r, kind, cmpFloat(bigToFloat(a), b))
		}
		return r.notImplemented.Incref(), nil
	}
	s.Hash = func(r *Registry, o *Object) (uint64, error) {
		v, _ := asBigInt(o)
		return hashBigInt(v), nil
	}
	s.Bool = func(r *Registry, o *Object) (bool, error) {
		v, _ := asBigInt(o)
		return v.Sign() != 0, nil
	}
	s.Repr = func(r *Registry, o *Object) (string, error) {
		p, _ := PayloadOf[*Int](o)
		return p.String(), nil
	}
	s.Unary[op.UnaryNegative] = func(r *Registry, o *Object) (*Object, error) {
		v, _ := asBigInt(o)
		return r.NewInt(new(big.Int).Neg(v)), nil
	}
	s.Unary[op.UnaryPositive] = func(r *Registry, o *Object) (*Object, error) {
		v, _ := asBigInt(o)
		return r.NewInt(v), nil
	}
	s.Unary[op.UnaryInvert] = func(r *Registry, o *Object) (*Object, error) {
		v, _ := asBigInt(o)
		return r.NewInt(new(big.Int).Not(v)), nil
	}
}

func registerFloatSlots(t *Type) {
	s := t.Slots()
	for _, kind := range allBinaryOps() {
		s.Binary[kind] = makeFloatBinary(kind)
		s.RBinary[kind] = makeFloatRBinary(kind)
	}
	s.Compare = func(r *Registry, kind op.CompareOpType, left, right *Object) (*Object, error) {
		a, _ := floatValue(left)
		if b, ok := numericAsFloat(right); ok {
			return compareOrdered(r, kind, cmpFloat(a, b))
		}
		return r.notImplemented.Incref(), nil
	}
	s.Hash = func(r *Registry, o *Object) (uint64, error) {
		f, _ := floatValue(o)
		return hashFloat(f), nil
	}
	s.Bool = func(r *Registry, o *Object) (bool, error) {
		f, _ := floatValue(o)
		return f != 0, nil
	}
	s.Repr = func(r *Registry, o *Object) (string, error) {
		p, _ := PayloadOf[*Float](o)
		return p.String(), nil
	}
	s.Unary[op.UnaryNegative] = func(r *Registry, o *Object) (*Object, error) {
		f, _ := floatValue(o)
		return r.NewFloat(-f), nil
	}
	s.Unary[op.UnaryPositive] = func(r *Registry, o *Object) (*Object, error) {
		f, _ := floatValue(o)
		return r.NewFloat(f), nil
	}
}

func registerComplexSlots(t *Type) {
	s := t.Slots()
	for _, kind := range []op.BinaryOpType{op.Add, op.Subtract, op.Multiply, op.Divide, op.Power} {
		s.Binary[kind] = makeComplexBinary(kind)
		s.RBinary[kind] = makeComplexBinary(kind)
	}
	s.Compare = func(r *Registry, kind op.CompareOpType, left, right *Object) (*Object, error) {
		a, _ := numericAsComplex(left)
		b, ok := numericAsComplex(right)
		if !ok {
			return r.notImplemented.Incref(), nil
		}
		switch kind {
		case op.Equal:
			return r.NewBool(a == b), nil
		case op.NotEqual:
			return r.NewBool(a != b), nil
		default:
			return r.notImplemented.Incref(), nil
		}
	}
	s.Hash = func(r *Registry, o *Object) (uint64, error) {
		c, _ := PayloadOf[*Complex](o)
		return hashFloat(c.real) ^ (hashFloat(c.imag) << 1), nil
	}
	s.Bool = func(r *Registry, o *Object) (bool, error) {
		c, _ := PayloadOf[*Complex](o)
		return c.real != 0 || c.imag != 0, nil
	}
	s.Repr = func(r *Registry, o *Object) (string, error) {
		c, _ := PayloadOf[*Complex](o)
		return c.String(), nil
	}
	s.Unary[op.UnaryNegative] = func(r *Registry, o *Object) (*Object, error) {
		c, _ := PayloadOf[*Complex](o)
		return r.NewComplex(-c.real, -c.imag), nil
	}
}

func registerBoolSlots(t *Type) {
	// Arithmetic is inherited from int via the MRO; only identity-like
	// behavior is local.
	s := t.Slots()
	s.Repr = func(r *Registry, o *Object) (string, error) {
		b, _ := PayloadOf[*Bool](o)
		return b.String(), nil
	}
	s.Bool = func(r *Registry, o *Object) (bool, error) {
		b, _ := PayloadOf[*Bool](o)
		return b.value, nil
	}
}

func allBinaryOps() []op.BinaryOpType {
	return []op.BinaryOpType{
		op.Add, op.Subtract, op.Multiply, op.Divide, op.FloorDiv, op.Modulo,
		op.Power, op.LShift, op.RShift, op.BitwiseAnd, op.BitwiseOr,
		op.BitwiseXor, op.MatMul,
	}
}

// compareOrdered maps a three-way comparison to the requested operator. A
// cmp of 2 marks incomparable values (NaN): only != holds.
func compareOrdered(r *Registry, kind op.CompareOpType, cmp int) (*Object, error) {
	if cmp == 2 {
		switch kind {
		case op.NotEqual:
			return r.NewBool(true), nil
		case op.LessThan, op.LessThanOrEqual, op.Equal, op.GreaterThan, op.GreaterThanOrEqual:
			return r.NewBool(false), nil
		default:
			return r.notImplemented.Incref(), nil
		}
	}
	switch kind {
	case op.LessThan:
		return r.NewBool(cmp < 0), nil
	case op.LessThanOrEqual:
		return r.NewBool(cmp <= 0), nil
	case op.Equal:
		return r.NewBool(cmp == 0), nil
	case op.NotEqual:
		return r.NewBool(cmp != 0), nil
	case op.GreaterThan:
		return r.NewBool(cmp > 0), nil
	case op.GreaterThanOrEqual:
		return r.NewBool(cmp >= 0), nil
	default:
		return r.notImplemented.Incref(), nil
	}
}

// cmpFloat three-way-compares floats; NaN compares unequal to everything,
// reported as an incomparable sentinel of 2.
func cmpFloat(a, b float64) int {
	switch {
	case math.IsNaN(a) || math.IsNaN(b):
		return 2
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
