package common

import (
	"crypto/ecdsa"
	"encoding/binary"

	ethCommon "github.com/ethereum/go-ethereum/common"
	ethCrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/hermeznetwork/tracerr"
)

// CallerAuth authenticates the caller of a state changing request. The
// signature covers the caller, the nonce, the method, the path and the body.
type CallerAuth struct {
	Caller    ethCommon.Address
	Nonce     uint64
	Method    string
	Path      string
	Body      []byte
	Signature []byte
}

// HashToSign builds the hash to be signed by the caller
func (a *CallerAuth) HashToSign() []byte {
	const msg = "I authorize this vault node request"
	var nonce [8]byte
	binary.BigEndian.PutUint64(nonce[:], a.Nonce)
	// Hash message (msg || caller || nonce || keccak(method) || keccak(path) || keccak(body))
	return ethCrypto.Keccak256Hash([]byte(msg), a.Caller.Bytes(), nonce[:],
		ethCrypto.Keccak256([]byte(a.Method)), ethCrypto.Keccak256([]byte(a.Path)),
		ethCrypto.Keccak256(a.Body)).Bytes()
}

// Sign sets the Signature with sk
func (a *CallerAuth) Sign(sk *ecdsa.PrivateKey) error {
	sig, err := ethCrypto.Sign(a.HashToSign(), sk)
	if err != nil {
		return tracerr.Wrap(err)
	}
	a.Signature = sig
	return nil
}

// VerifySignature ensures that the Signature is done with the Caller key.
// Both the [R || S || V] format with V in {0, 1} and with V in {27, 28} are
// accepted.
func (a *CallerAuth) VerifySignature() bool {
	if len(a.Signature) != ethCrypto.SignatureLength {
		return false
	}
	sig := make([]byte, len(a.Signature))
	copy(sig, a.Signature)
	if sig[ethCrypto.RecoveryIDOffset] >= 27 { //nolint:gomnd
		sig[ethCrypto.RecoveryIDOffset] -= 27
	}
	// Get public key from Signature
	pubKBytes, err := ethCrypto.Ecrecover(a.HashToSign(), sig)
	if err != nil {
		return false
	}
	pubK, err := ethCrypto.UnmarshalPubkey(pubKBytes)
	if err != nil {
		return false
	}
	// Get addr from pubK
	addr := ethCrypto.PubkeyToAddress(*pubK)
	return addr == a.Caller
}
