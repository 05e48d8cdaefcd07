package common

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCopyBigInt(t *testing.T) {
	a := big.NewInt(1000)
	b := CopyBigInt(a)
	b.Add(b, big.NewInt(1))
	assert.Equal(t, "1000", a.String())
	assert.Equal(t, "1001", b.String())

	assert.Equal(t, "0", CopyBigInt(nil).String())
}
