package object

import (
	"encoding/binary"
	"math"
	"math/big"

	"github.com/dgryski/go-farm"
)

// Hash helpers shared by the builtin type slots. Numeric hashes agree
// across int, float, and bool so that equal keys land in the same dict
// bucket regardless of their type.

func hashString(s string) uint64 {
	return farm.Hash64([]byte(s))
}

func hashRawBytes(b []byte) uint64 {
	return farm.Hash64(b)
}

func hashBigInt(v *big.Int) uint64 {
	h := farm.Hash64(v.Bytes())
	if v.Sign() < 0 {
		h = ^h
	}
	return h
}

func hashFloat(f float64) uint64 {
	if f == math.Trunc(f) && !math.IsInf(f, 0) {
		// Whole floats hash like the matching int.
		v, _ := big.NewFloat(f).Int(nil)
		return hashBigInt(v)
	}
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], math.Float64bits(f))
	return farm.Hash64(buf[:])
}
