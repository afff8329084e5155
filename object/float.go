package object

import (
	"math"
	"strconv"
)

// Float is the payload of a 64-bit floating point number.
type Float struct {
	value float64
}

func (f *Float) PayloadKind() string { return "float" }

// Value returns the underlying float.
func (f *Float) Value() float64 { return f.value }

// IsIntegral reports whether the value is a whole number that a hash must
// treat as equal to the corresponding int.
func (f *Float) IsIntegral() bool {
	return !math.IsInf(f.value, 0) && !math.IsNaN(f.value) &&
		f.value == math.Trunc(f.value)
}

func (f *Float) String() string {
	s := strconv.FormatFloat(f.value, 'g', -1, 64)
	// Keep whole floats visually distinct from ints.
	if f.IsIntegral() && !hasFloatMarker(s) {
		s += ".0"
	}
	return s
}

func hasFloatMarker(s string) bool {
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '.', 'e', 'E', 'n', 'i': // ".", exponent, "nan", "inf"
			return true
		}
	}
	return false
}

// Complex is the payload of a complex number with float64 parts.
type Complex struct {
	real float64
	imag float64
}

func (c *Complex) PayloadKind() string { return "complex" }

// Real returns the real part.
func (c *Complex) Real() float64 { return c.real }

// Imag returns the imaginary part.
func (c *Complex) Imag() float64 { return c.imag }

func (c *Complex) String() string {
	im := strconv.FormatFloat(c.imag, 'g', -1, 64)
	if c.real == 0 {
		return im + "j"
	}
	re := strconv.FormatFloat(c.real, 'g', -1, 64)
	if c.imag >= 0 || math.IsNaN(c.imag) {
		im = "+" + im
	}
	return "(" + re + im + "j)"
}
