/*
Package ledger implements in process, journaled versions of the external
collaborators of the settlement components: the deposit asset and the
synthetic token, the per batch redemption receipt, the allowlist and the
custody lock.

The methods of the individual collaborators are not journaled: they are
called by the settlement components from inside journal.Journal.Atomic. The
Ledger methods are the entry points used by external accounts (users,
custodians, the faucet) and run each call as its own atomic operation.
*/
package ledger

import (
	"math/big"
	"time"

	ethCommon "github.com/ethereum/go-ethereum/common"
	"github.com/hermeznetwork/tracerr"
	"github.com/vaultbridge/vaultbridge-node/common"
	"github.com/vaultbridge/vaultbridge-node/eth"
	"github.com/vaultbridge/vaultbridge-node/journal"
	"github.com/vaultbridge/vaultbridge-node/log"
)

// Config is the configuration of a Ledger
type Config struct {
	AssetDecimals     uint8
	SyntheticDecimals uint8
	// CustodyLock is the account of the custody lock
	CustodyLock ethCommon.Address
	// Beneficiary receives the funds released by the custody lock
	Beneficiary ethCommon.Address
	// Allowlist is the initial list of allowlisted accounts
	Allowlist []ethCommon.Address
}

// Ledger bundles the in process collaborators
type Ledger struct {
	j           *journal.Journal
	authority   Authority
	Asset       *Token
	Synthetic   *Token
	Receipt     *Receipt
	Allowlist   *Allowlist
	CustodyLock *CustodyLock
}

// NewLedger creates the collaborators and registers them in the journal
func NewLedger(j *journal.Journal, cfg Config) *Ledger {
	asset := NewToken("asset", cfg.AssetDecimals)
	l := &Ledger{
		j:           j,
		Asset:       asset,
		Synthetic:   NewToken("synthetic", cfg.SyntheticDecimals),
		Receipt:     NewReceipt(),
		Allowlist:   NewAllowlist(cfg.Allowlist...),
		CustodyLock: NewCustodyLock(cfg.CustodyLock, cfg.Beneficiary, asset, j.Now),
	}
	j.Register(l.Asset, l.Synthetic, l.Receipt, l.Allowlist, l.CustodyLock)
	return l
}

// SetAuthority sets the Authority of the owner and lock role checks
func (l *Ledger) SetAuthority(authority Authority) {
	l.authority = authority
	l.CustodyLock.SetAuthority(authority)
}

// Client returns the collaborators as an eth.Client
func (l *Ledger) Client(oracle eth.ExchangeRateOracle) *eth.Client {
	return &eth.Client{
		Oracle:      oracle,
		Allowlist:   l.Allowlist,
		Asset:       l.Asset,
		Synthetic:   l.Synthetic,
		Receipt:     l.Receipt,
		CustodyLock: l.CustodyLock,
	}
}

// Fund mints asset tokens to `to`. It is only exposed on development
// deployments.
func (l *Ledger) Fund(to ethCommon.Address, amount *big.Int) error {
	return l.j.Atomic(func() error {
		if !common.IsPositive(amount) {
			return tracerr.Wrap(common.ErrZeroAmount)
		}
		log.Debugw("ledger: fund", "to", to.Hex(), "amount", amount)
		return tracerr.Wrap(l.Asset.Mint(to, amount))
	})
}

// TransferAsset moves asset tokens owned by `from`
func (l *Ledger) TransferAsset(from, to ethCommon.Address, amount *big.Int) error {
	return l.j.Atomic(func() error {
		return tracerr.Wrap(l.Asset.Transfer(from, to, amount))
	})
}

// TransferSynthetic moves synthetic tokens owned by `from`
func (l *Ledger) TransferSynthetic(from, to ethCommon.Address, amount *big.Int) error {
	return l.j.Atomic(func() error {
		return tracerr.Wrap(l.Synthetic.Transfer(from, to, amount))
	})
}

// TransferReceipt moves receipts owned by `from`. A transfer to the
// redemption manager redeems them.
func (l *Ledger) TransferReceipt(from, to ethCommon.Address, batchID common.BatchID, qty *big.Int) error {
	return l.j.Atomic(func() error {
		return tracerr.Wrap(l.Receipt.Transfer(from, to, batchID, qty))
	})
}

// TransferReceiptBatch moves receipts of several batches owned by `from`
func (l *Ledger) TransferReceiptBatch(from, to ethCommon.Address, batchIDs []common.BatchID,
	qtys []*big.Int) error {
	return l.j.Atomic(func() error {
		return tracerr.Wrap(l.Receipt.TransferBatch(from, to, batchIDs, qtys))
	})
}

// SetAllowed adds or removes an account of the allowlist
func (l *Ledger) SetAllowed(caller, addr ethCommon.Address, allowed bool) error {
	return l.j.Atomic(func() error {
		return tracerr.Wrap(l.Allowlist.Set(l.authority, caller, addr, allowed))
	})
}

// ReturnCustody is called by a custodian when the external leg of a
// withdrawal delivers funds: amount is moved from the custodian to the lock
// address and locked until the settlement engine collects it.
func (l *Ledger) ReturnCustody(caller ethCommon.Address, amount *big.Int) error {
	return l.j.Atomic(func() error {
		if err := l.CustodyLock.Lock(caller, amount); err != nil {
			return tracerr.Wrap(err)
		}
		if err := l.Asset.Transfer(caller, l.CustodyLock.Address(), amount); err != nil {
			return tracerr.Wrap(err)
		}
		l.j.Emit(common.Event{
			Type:    common.EventCustodyLocked,
			Account: caller,
			Amount:  new(big.Int).Set(amount),
		})
		log.Infow("ledger: custody returned", "custodian", caller.Hex(), "amount", amount)
		return nil
	})
}

// ReleaseCustody is called by a custodian when the external leg of a
// deposit completed. It returns the released amount.
func (l *Ledger) ReleaseCustody(caller ethCommon.Address) (*big.Int, error) {
	var locked *big.Int
	err := l.j.Atomic(func() error {
		locked = l.CustodyLock.LockedAmount()
		if err := l.CustodyLock.Release(caller); err != nil {
			return tracerr.Wrap(err)
		}
		l.j.Emit(common.Event{
			Type:    common.EventCustodyUnlocked,
			Account: caller,
			Amount:  locked,
		})
		log.Infow("ledger: custody released", "custodian", caller.Hex(), "amount", locked)
		return nil
	})
	if err != nil {
		return nil, tracerr.Wrap(err)
	}
	return locked, nil
}

// Balances is a consistent view of the holdings of an account
type Balances struct {
	Asset     *big.Int
	Synthetic *big.Int
	// Receipts holds the non zero receipt balances by batch
	Receipts    map[common.BatchID]*big.Int
	Allowlisted bool
}

// BalancesOf returns the holdings of addr
func (l *Ledger) BalancesOf(addr ethCommon.Address) Balances {
	var b Balances
	l.j.Read(func() {
		b = Balances{
			Asset:       l.Asset.BalanceOf(addr),
			Synthetic:   l.Synthetic.BalanceOf(addr),
			Receipts:    l.Receipt.BalancesOf(addr),
			Allowlisted: l.Allowlist.IsAllowed(addr),
		}
	})
	return b
}

// Custody returns the amount held by the custody lock and when it was locked
func (l *Ledger) Custody() (*big.Int, time.Time) {
	var (
		locked   *big.Int
		lockedAt time.Time
	)
	l.j.Read(func() {
		locked = l.CustodyLock.LockedAmount()
		lockedAt = l.CustodyLock.LockedAt()
	})
	return locked, lockedAt
}
