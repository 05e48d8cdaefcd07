package ledger

import (
	"fmt"
	"math/big"
	"time"

	ethCommon "github.com/ethereum/go-ethereum/common"
	"github.com/hermeznetwork/tracerr"
	"github.com/vaultbridge/vaultbridge-node/common"
	"github.com/vaultbridge/vaultbridge-node/eth"
)

// Authority checks the capabilities of a caller
type Authority interface {
	Require(caller ethCommon.Address, capability common.Capability) error
}

// CustodyLockState is the journaled state of a CustodyLock
type CustodyLockState struct {
	Locked   *big.Int
	LockedBy ethCommon.Address
	LockedAt time.Time
}

// CustodyLock holds an amount committed to the external settlement leg.
// Funds returned by the external leg are held at the lock address until
// Unlock moves them to the beneficiary.
type CustodyLock struct {
	address     ethCommon.Address
	beneficiary ethCommon.Address
	asset       eth.Token
	authority   Authority
	timeNow     func() time.Time
	st          *CustodyLockState
}

// NewCustodyLock creates an unlocked CustodyLock
func NewCustodyLock(address, beneficiary ethCommon.Address, asset eth.Token,
	timeNow func() time.Time) *CustodyLock {
	return &CustodyLock{
		address:     address,
		beneficiary: beneficiary,
		asset:       asset,
		timeNow:     timeNow,
		st:          &CustodyLockState{Locked: big.NewInt(0)},
	}
}

// Name implements journal.Component
func (c *CustodyLock) Name() string { return "custodylock" }

// State implements journal.Component
func (c *CustodyLock) State() interface{} { return c.st }

// SetState implements journal.Component
func (c *CustodyLock) SetState(state interface{}) { c.st = state.(*CustodyLockState) }

// SetAuthority sets the Authority consulted for the lock role
func (c *CustodyLock) SetAuthority(authority Authority) {
	c.authority = authority
}

// Address returns the account where the returned funds are held
func (c *CustodyLock) Address() ethCommon.Address {
	return c.address
}

// LockedAmount implements eth.CustodyLock
func (c *CustodyLock) LockedAmount() *big.Int {
	return new(big.Int).Set(c.st.Locked)
}

// LockedAt returns when the current lock was taken
func (c *CustodyLock) LockedAt() time.Time {
	return c.st.LockedAt
}

func (c *CustodyLock) requireLockRole(caller ethCommon.Address) error {
	if c.authority == nil {
		return tracerr.Wrap(fmt.Errorf("%w: custody lock has no authority", common.ErrUnauthorized))
	}
	return tracerr.Wrap(c.authority.Require(caller, common.CapLockRole))
}

// Lock implements eth.CustodyLock
func (c *CustodyLock) Lock(caller ethCommon.Address, amount *big.Int) error {
	if err := c.requireLockRole(caller); err != nil {
		return tracerr.Wrap(err)
	}
	if !common.IsPositive(amount) {
		return tracerr.Wrap(common.ErrZeroAmount)
	}
	if c.st.Locked.Sign() != 0 {
		return tracerr.Wrap(common.ErrAlreadyLocked)
	}
	c.st.Locked = new(big.Int).Set(amount)
	c.st.LockedBy = caller
	c.st.LockedAt = c.timeNow()
	return nil
}

// Unlock implements eth.CustodyLock. The locked amount must be held at the
// lock address and is transferred to the beneficiary.
func (c *CustodyLock) Unlock(caller ethCommon.Address) error {
	if err := c.requireLockRole(caller); err != nil {
		return tracerr.Wrap(err)
	}
	if c.st.Locked.Sign() == 0 {
		return tracerr.Wrap(common.ErrNotLocked)
	}
	held := c.asset.BalanceOf(c.address)
	if held.Cmp(c.st.Locked) < 0 {
		return tracerr.Wrap(fmt.Errorf("%w: custody holds %v, locked %v",
			common.ErrInsufficientBalance, held, c.st.Locked))
	}
	if err := c.asset.Transfer(c.address, c.beneficiary, c.st.Locked); err != nil {
		return tracerr.Wrap(err)
	}
	c.clear()
	return nil
}

// Release clears the lock without moving funds. It confirms that the
// external leg of a deposit completed.
func (c *CustodyLock) Release(caller ethCommon.Address) error {
	if err := c.requireLockRole(caller); err != nil {
		return tracerr.Wrap(err)
	}
	if c.st.Locked.Sign() == 0 {
		return tracerr.Wrap(common.ErrNotLocked)
	}
	c.clear()
	return nil
}

func (c *CustodyLock) clear() {
	c.st.Locked = big.NewInt(0)
	c.st.LockedBy = ethCommon.Address{}
	c.st.LockedAt = time.Time{}
}
