package common

import (
	"math/big"
)

// CopyBigInt returns a copy of the big int. A nil input returns zero.
func CopyBigInt(a *big.Int) *big.Int {
	if a == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(a)
}
