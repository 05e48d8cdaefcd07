package ledger

import (
	ethCommon "github.com/ethereum/go-ethereum/common"
	"github.com/hermeznetwork/tracerr"
	"github.com/vaultbridge/vaultbridge-node/common"
)

// AllowlistState is the journaled state of an Allowlist
type AllowlistState struct {
	Members map[ethCommon.Address]bool
}

// Allowlist is an in-process membership set
type Allowlist struct {
	st *AllowlistState
}

// NewAllowlist creates an Allowlist with the given members
func NewAllowlist(members ...ethCommon.Address) *Allowlist {
	a := &Allowlist{st: &AllowlistState{Members: make(map[ethCommon.Address]bool)}}
	for _, m := range members {
		a.st.Members[m] = true
	}
	return a
}

// Name implements journal.Component
func (a *Allowlist) Name() string { return "allowlist" }

// State implements journal.Component
func (a *Allowlist) State() interface{} { return a.st }

// SetState implements journal.Component
func (a *Allowlist) SetState(state interface{}) { a.st = state.(*AllowlistState) }

// IsAllowed implements eth.Allowlist
func (a *Allowlist) IsAllowed(addr ethCommon.Address) bool {
	return a.st.Members[addr]
}

// Set adds or removes addr. The caller must be the owner.
func (a *Allowlist) Set(authority Authority, caller, addr ethCommon.Address, allowed bool) error {
	if err := authority.Require(caller, common.CapOwner); err != nil {
		return tracerr.Wrap(err)
	}
	if allowed {
		a.st.Members[addr] = true
	} else {
		delete(a.st.Members, addr)
	}
	return nil
}
