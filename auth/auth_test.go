package auth

import (
	"testing"

	ethCommon "github.com/ethereum/go-ethereum/common"
	ethCrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vaultbridge/vaultbridge-node/common"
	"github.com/vaultbridge/vaultbridge-node/journal"
)

type setAllowlist map[ethCommon.Address]bool

func (s setAllowlist) IsAllowed(addr ethCommon.Address) bool { return s[addr] }

var (
	owner    = ethCommon.HexToAddress("0x01")
	operator = ethCommon.HexToAddress("0x02")
	user     = ethCommon.HexToAddress("0x03")
	stranger = ethCommon.HexToAddress("0x04")
)

func TestRequire(t *testing.T) {
	j := journal.NewJournal()
	a := NewAuthorizer(j, owner, setAllowlist{user: true})
	a.SetupOperator(operator)
	a.SetupLockRole(operator)

	assert.NoError(t, a.Require(owner, common.CapOwner))
	assert.NoError(t, a.Require(owner, common.CapOperator))
	assert.NoError(t, a.Require(operator, common.CapOperator))
	assert.NoError(t, a.Require(operator, common.CapLockRole))
	assert.NoError(t, a.Require(user, common.CapAllowlisted))

	assert.True(t, common.IsErr(a.Require(operator, common.CapOwner), common.ErrUnauthorized))
	assert.True(t, common.IsErr(a.Require(user, common.CapOperator), common.ErrUnauthorized))
	assert.True(t, common.IsErr(a.Require(owner, common.CapLockRole), common.ErrUnauthorized))
	assert.True(t, common.IsErr(a.Require(stranger, common.CapAllowlisted), common.ErrNotAllowlisted))
}

func TestAdminOperations(t *testing.T) {
	j := journal.NewJournal()
	a := NewAuthorizer(j, owner, setAllowlist{})

	err := a.SetOperator(stranger, operator, true)
	assert.True(t, common.IsErr(err, common.ErrUnauthorized))
	assert.False(t, a.Has(operator, common.CapOperator))

	require.NoError(t, a.SetOperator(owner, operator, true))
	assert.True(t, a.Has(operator, common.CapOperator))
	require.NoError(t, a.SetOperator(owner, operator, false))
	assert.False(t, a.Has(operator, common.CapOperator))

	require.NoError(t, a.SetLockRole(owner, stranger, true))
	assert.True(t, a.Has(stranger, common.CapLockRole))

	assert.Error(t, a.TransferOwnership(owner, ethCommon.Address{}))
	require.NoError(t, a.TransferOwnership(owner, user))
	assert.Equal(t, user, a.Owner())
	assert.False(t, a.Has(owner, common.CapOwner))
}

func TestAuthenticate(t *testing.T) {
	j := journal.NewJournal()
	a := NewAuthorizer(j, owner, setAllowlist{})
	sk, err := ethCrypto.GenerateKey()
	require.NoError(t, err)
	signer := ethCrypto.PubkeyToAddress(sk.PublicKey)

	req := &common.CallerAuth{Caller: signer, Nonce: 1, Method: "POST", Path: "/v1/tick"}
	require.NoError(t, req.Sign(sk))
	require.NoError(t, a.Authenticate(req))
	nonce, ok := a.LastNonce(signer)
	assert.True(t, ok)
	assert.Equal(t, uint64(1), nonce)

	// replay
	err = a.Authenticate(req)
	assert.True(t, common.IsErr(err, common.ErrNonceUsed))

	// a valid signature claiming another account
	forged := &common.CallerAuth{Caller: owner, Nonce: 2, Method: "POST", Path: "/v1/tick"}
	require.NoError(t, forged.Sign(sk))
	err = a.Authenticate(forged)
	assert.True(t, common.IsErr(err, common.ErrInvalidSignature))
	_, ok = a.LastNonce(owner)
	assert.False(t, ok)

	req = &common.CallerAuth{Caller: signer, Nonce: 5, Method: "POST", Path: "/v1/tick"}
	require.NoError(t, req.Sign(sk))
	require.NoError(t, a.Authenticate(req))
	nonce, _ = a.LastNonce(signer)
	assert.Equal(t, uint64(5), nonce)

	// nonces survive a state round trip
	states, err := j.EncodeStates()
	require.NoError(t, err)
	j2 := journal.NewJournal()
	a2 := NewAuthorizer(j2, owner, setAllowlist{})
	require.NoError(t, j2.LoadStates(states))
	nonce, ok = a2.LastNonce(signer)
	assert.True(t, ok)
	assert.Equal(t, uint64(5), nonce)
}
