/*
Package apitypes is used to map the common types used across the node with the format expected by the API.

This is done using different strategies:
- Marshallers: they get triggered when the API marshals the response structs into JSONs
- Scanners: they get triggered when a struct is received from the SQL database
- Unmarshallers: they get triggered when the API parses the request bodies
*/
package apitypes

import (
	"fmt"
	"math/big"

	"github.com/hermeznetwork/tracerr"
)

// BigIntStr is used to scan *big.Int directly into strings from sql DBs.
// It assumes that *big.Int are inserted to the DB using the BigIntMeddler
// meddler defined at github.com/vaultbridge/vaultbridge-node/db. *big.Int
// are stored as DECIMAL in PostgreSQL and as TEXT in SQLite, both drivers
// return them as strings so BigIntStr doesn't need a Scan method.
type BigIntStr string

// NewBigIntStr creates a *BigIntStr from a *big.Int.
// If the provided bigInt is nil the returned *BigIntStr will also be nil
func NewBigIntStr(bigInt *big.Int) *BigIntStr {
	if bigInt == nil {
		return nil
	}
	bigIntStr := BigIntStr(bigInt.String())
	return &bigIntStr
}

// BigInt parses the BigIntStr
func (s BigIntStr) BigInt() (*big.Int, error) {
	bi, ok := new(big.Int).SetString(string(s), 10)
	if !ok {
		return nil, tracerr.Wrap(fmt.Errorf("could not parse %q as a big.Int", string(s)))
	}
	return bi, nil
}

// StrBigInt is used to unmarshal BigIntStr directly into an alias of big.Int
type StrBigInt big.Int

// UnmarshalText unmarshals a StrBigInt
func (s *StrBigInt) UnmarshalText(text []byte) error {
	bi, ok := (*big.Int)(s).SetString(string(text), 10)
	if !ok {
		return tracerr.Wrap(fmt.Errorf("could not unmarshal %s into a StrBigInt", text))
	}
	*s = StrBigInt(*bi)
	return nil
}

// BigInt returns the *big.Int of a StrBigInt. A nil StrBigInt returns nil.
func (s *StrBigInt) BigInt() *big.Int {
	if s == nil {
		return nil
	}
	return new(big.Int).Set((*big.Int)(s))
}
