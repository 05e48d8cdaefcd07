// Package auth centralizes the capability checks of every mutating entry
// point
package auth

import (
	"fmt"

	ethCommon "github.com/ethereum/go-ethereum/common"
	"github.com/hermeznetwork/tracerr"
	"github.com/vaultbridge/vaultbridge-node/common"
	"github.com/vaultbridge/vaultbridge-node/eth"
	"github.com/vaultbridge/vaultbridge-node/journal"
	"github.com/vaultbridge/vaultbridge-node/log"
)

// State is the journaled state of the Authorizer
type State struct {
	Owner     ethCommon.Address
	Operators map[ethCommon.Address]bool
	LockRoles map[ethCommon.Address]bool
	// Nonces holds the last request nonce accepted for each caller
	Nonces map[ethCommon.Address]uint64
}

// Authorizer answers "is this caller authorized" for a Capability
type Authorizer struct {
	j         *journal.Journal
	allowlist eth.Allowlist
	st        *State
}

// NewAuthorizer creates an Authorizer and registers it in the journal
func NewAuthorizer(j *journal.Journal, owner ethCommon.Address, allowlist eth.Allowlist) *Authorizer {
	a := &Authorizer{
		j:         j,
		allowlist: allowlist,
		st: &State{
			Owner:     owner,
			Operators: make(map[ethCommon.Address]bool),
			LockRoles: make(map[ethCommon.Address]bool),
			Nonces:    make(map[ethCommon.Address]uint64),
		},
	}
	j.Register(a)
	return a
}

// Name implements journal.Component
func (a *Authorizer) Name() string { return "auth" }

// State implements journal.Component
func (a *Authorizer) State() interface{} { return a.st }

// SetState implements journal.Component
func (a *Authorizer) SetState(state interface{}) { a.st = state.(*State) }

// Require returns an error if caller does not hold the capability
func (a *Authorizer) Require(caller ethCommon.Address, capability common.Capability) error {
	if a.Has(caller, capability) {
		return nil
	}
	if capability == common.CapAllowlisted {
		return tracerr.Wrap(fmt.Errorf("%w: %v", common.ErrNotAllowlisted, caller.Hex()))
	}
	return tracerr.Wrap(fmt.Errorf("%w: %v is not %v", common.ErrUnauthorized, caller.Hex(), capability))
}

// Has returns true if caller holds the capability
func (a *Authorizer) Has(caller ethCommon.Address, capability common.Capability) bool {
	switch capability {
	case common.CapOwner:
		return caller == a.st.Owner
	case common.CapOperator:
		return caller == a.st.Owner || a.st.Operators[caller]
	case common.CapAllowlisted:
		return a.allowlist != nil && a.allowlist.IsAllowed(caller)
	case common.CapLockRole:
		return a.st.LockRoles[caller]
	default:
		return false
	}
}

// Authenticate verifies the signature of a request and consumes its nonce,
// which must be above the last one accepted for the caller. The nonce is
// consumed even if the authenticated operation fails later.
func (a *Authorizer) Authenticate(req *common.CallerAuth) error {
	if !req.VerifySignature() {
		return tracerr.Wrap(fmt.Errorf("%w: %v", common.ErrInvalidSignature, req.Caller.Hex()))
	}
	return a.j.Atomic(func() error {
		if a.st.Nonces == nil {
			a.st.Nonces = make(map[ethCommon.Address]uint64)
		}
		if last, ok := a.st.Nonces[req.Caller]; ok && req.Nonce <= last {
			return tracerr.Wrap(fmt.Errorf("%w: %v <= %v", common.ErrNonceUsed, req.Nonce, last))
		}
		a.st.Nonces[req.Caller] = req.Nonce
		return nil
	})
}

// LastNonce returns the last request nonce accepted for caller
func (a *Authorizer) LastNonce(caller ethCommon.Address) (uint64, bool) {
	var (
		nonce uint64
		ok    bool
	)
	a.j.Read(func() {
		nonce, ok = a.st.Nonces[caller]
	})
	return nonce, ok
}

// Owner returns the current owner
func (a *Authorizer) Owner() ethCommon.Address {
	return a.st.Owner
}

// SetupOperator grants the operator capability without an owner check. It is
// used while wiring the node.
func (a *Authorizer) SetupOperator(addr ethCommon.Address) {
	a.st.Operators[addr] = true
}

// SetupLockRole grants the lock role without an owner check. It is used while
// wiring the node.
func (a *Authorizer) SetupLockRole(addr ethCommon.Address) {
	a.st.LockRoles[addr] = true
}

// SetOperator grants or revokes the operator capability
func (a *Authorizer) SetOperator(caller, addr ethCommon.Address, enabled bool) error {
	return a.j.Atomic(func() error {
		if err := a.Require(caller, common.CapOwner); err != nil {
			return tracerr.Wrap(err)
		}
		if enabled {
			a.st.Operators[addr] = true
		} else {
			delete(a.st.Operators, addr)
		}
		log.Infow("auth: operator updated", "addr", addr.Hex(), "enabled", enabled)
		return nil
	})
}

// SetLockRole grants or revokes the lock role
func (a *Authorizer) SetLockRole(caller, addr ethCommon.Address, enabled bool) error {
	return a.j.Atomic(func() error {
		if err := a.Require(caller, common.CapOwner); err != nil {
			return tracerr.Wrap(err)
		}
		if enabled {
			a.st.LockRoles[addr] = true
		} else {
			delete(a.st.LockRoles, addr)
		}
		log.Infow("auth: lock role updated", "addr", addr.Hex(), "enabled", enabled)
		return nil
	})
}

// TransferOwnership hands the owner capability to newOwner
func (a *Authorizer) TransferOwnership(caller, newOwner ethCommon.Address) error {
	return a.j.Atomic(func() error {
		if err := a.Require(caller, common.CapOwner); err != nil {
			return tracerr.Wrap(err)
		}
		if newOwner == (ethCommon.Address{}) {
			return tracerr.Wrap(fmt.Errorf("new owner can not be the zero address"))
		}
		a.st.Owner = newOwner
		log.Infow("auth: ownership transferred", "owner", newOwner.Hex())
		return nil
	})
}
