package common

import (
	"math/big"

	ethMath "github.com/ethereum/go-ethereum/common/math"
)

var (
	// E18 is the fixed point unit used by rates and percentages
	E18 = big.NewInt(1e18)
	// Zero is a read only zero. Never pass it as the receiver of a big.Int
	// operation.
	Zero = big.NewInt(0)
)

// MulDiv returns floor(x * y / d). All arguments must be non negative.
func MulDiv(x, y, d *big.Int) *big.Int {
	r := new(big.Int).Mul(x, y)
	return r.Quo(r, d)
}

// MulDivUp returns ceil(x * y / d). All arguments must be non negative.
func MulDivUp(x, y, d *big.Int) *big.Int {
	r := new(big.Int).Mul(x, y)
	q, m := new(big.Int).QuoRem(r, d, new(big.Int))
	if m.Sign() != 0 {
		q.Add(q, big.NewInt(1))
	}
	return q
}

// MinBigInt returns a copy of the smallest of a and b
func MinBigInt(a, b *big.Int) *big.Int {
	if a.Cmp(b) <= 0 {
		return new(big.Int).Set(a)
	}
	return new(big.Int).Set(b)
}

// OneMinus returns 1e18 - x
func OneMinus(x *big.Int) *big.Int {
	return new(big.Int).Sub(E18, x)
}

// RescaleDecimals converts an amount expressed with `from` decimals into an
// amount expressed with `to` decimals, truncating when precision is lost.
func RescaleDecimals(amount *big.Int, from, to uint8) *big.Int {
	switch {
	case from == to:
		return new(big.Int).Set(amount)
	case from < to:
		return new(big.Int).Mul(amount, ethMath.BigPow(10, int64(to-from)))
	default:
		return new(big.Int).Quo(amount, ethMath.BigPow(10, int64(from-to)))
	}
}

// IsPositive returns true if a is not nil and greater than zero
func IsPositive(a *big.Int) bool {
	return a != nil && a.Sign() > 0
}
