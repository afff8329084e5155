package object

import (
	"math/big"
)

// Int is the payload of an arbitrary-precision integer. The value is
// immutable once the object is constructed.
type Int struct {
	value *big.Int
}

func (i *Int) PayloadKind() string { return "int" }

// Value returns the underlying big integer. Callers must not mutate it.
func (i *Int) Value() *big.Int { return i.value }

// Int64 returns the value as an int64 if it fits.
func (i *Int) Int64() (int64, bool) {
	if i.value.IsInt64() {
		return i.value.Int64(), true
	}
	return 0, false
}

// Sign returns -1, 0, or 1 for negative, zero, or positive values.
func (i *Int) Sign() int { return i.value.Sign() }

// Float64 returns the value as a float64, possibly losing precision.
func (i *Int) Float64() float64 {
	f, _ := new(big.Float).SetInt(i.value).Float64()
	return f
}

func (i *Int) String() string { return i.value.String() }
