/*
Package redemption pays out finalized batches to the holders of their
redemption receipts.

The Manager is registered as the receiver of the receipts sent to its
address: receiving receipts of a finalized batch burns them and transfers the
pro rata share of what is still unpaid of the batch to the sender.

	payout = floor((collected - paid) * qty / outstandingSupply)

The outstanding supply includes the receipts being redeemed, so the last
holder of a batch receives exactly what is left and nothing is stranded
except the rounding of earlier payouts, which stays claimable by later ones.
*/
package redemption

import (
	"fmt"
	"math/big"

	ethCommon "github.com/ethereum/go-ethereum/common"
	"github.com/hermeznetwork/tracerr"
	"github.com/vaultbridge/vaultbridge-node/common"
	"github.com/vaultbridge/vaultbridge-node/eth"
	"github.com/vaultbridge/vaultbridge-node/journal"
	"github.com/vaultbridge/vaultbridge-node/log"
)

// Authority checks the capabilities of a caller
type Authority interface {
	Require(caller ethCommon.Address, capability common.Capability) error
}

// BatchSource gives unlocked access to the finalized batches. Its methods are
// called from inside journaled operations.
type BatchSource interface {
	LookupFinalized(id common.BatchID) (common.Batch, error)
	EachFinalized(fn func(common.Batch))
}

// State is the journaled state of the Manager
type State struct {
	Paused bool
	// Paid is the cumulative amount paid out per batch, dust sweeps
	// included
	Paid map[common.BatchID]*big.Int
}

// Manager is the redemption manager
type Manager struct {
	j         *journal.Journal
	authority Authority
	client    *eth.Client
	batches   BatchSource
	address   ethCommon.Address
	st        *State
}

// NewManager creates a Manager and registers it in the journal. The caller
// must register the Manager as the receipt receiver of address.
func NewManager(j *journal.Journal, authority Authority, client *eth.Client,
	batches BatchSource, address ethCommon.Address) *Manager {
	m := &Manager{
		j:         j,
		authority: authority,
		client:    client,
		batches:   batches,
		address:   address,
		st:        &State{Paid: make(map[common.BatchID]*big.Int)},
	}
	j.Register(m)
	return m
}

// Name implements journal.Component
func (m *Manager) Name() string { return "redemption" }

// State implements journal.Component
func (m *Manager) State() interface{} { return m.st }

// SetState implements journal.Component
func (m *Manager) SetState(state interface{}) { m.st = state.(*State) }

// Address returns the account of the Manager
func (m *Manager) Address() ethCommon.Address {
	return m.address
}

func (m *Manager) paid(batchID common.BatchID) *big.Int {
	if paid, ok := m.st.Paid[batchID]; ok {
		return paid
	}
	return big.NewInt(0)
}

// OnReceiptReceived implements eth.ReceiptReceiver
func (m *Manager) OnReceiptReceived(from ethCommon.Address, batchID common.BatchID, qty *big.Int) error {
	if m.st.Paused {
		return tracerr.Wrap(common.ErrPaused)
	}
	if !common.IsPositive(qty) {
		return tracerr.Wrap(common.ErrZeroAmount)
	}
	batch, err := m.batches.LookupFinalized(batchID)
	if err != nil {
		return tracerr.Wrap(err)
	}
	supply := m.client.Receipt.TotalSupply(batchID)
	paid := m.paid(batchID)
	payout, err := common.RedemptionPayout(batch.CollectedAmount, paid, qty, supply)
	if err != nil {
		return tracerr.Wrap(fmt.Errorf("batch %d: %w", batchID, err))
	}
	m.st.Paid[batchID] = new(big.Int).Add(paid, payout)
	if err := m.client.Receipt.Burn(m.address, batchID, qty); err != nil {
		return tracerr.Wrap(err)
	}
	if payout.Sign() > 0 {
		if err := m.client.Asset.Transfer(m.address, from, payout); err != nil {
			return tracerr.Wrap(err)
		}
	}
	m.j.Emit(common.Event{
		Type:      common.EventRedemption,
		BatchID:   batchID,
		Account:   from,
		Amount:    new(big.Int).Set(payout),
		AuxAmount: new(big.Int).Set(qty),
	})
	log.Debugw("redemption: redeemed", "batchID", batchID, "from", from.Hex(),
		"qty", qty, "payout", payout)
	return nil
}

// OnReceiptBatchReceived implements eth.ReceiptReceiver. Redemptions are
// single batch only.
func (m *Manager) OnReceiptBatchReceived(from ethCommon.Address, batchIDs []common.BatchID,
	qtys []*big.Int) error {
	return tracerr.Wrap(fmt.Errorf("%w: %d batches", common.ErrMultiBatchRedemption, len(batchIDs)))
}

// Redeem sends qty receipts of a batch from caller to the Manager and returns
// the payout
func (m *Manager) Redeem(caller ethCommon.Address, batchID common.BatchID, qty *big.Int) (*big.Int, error) {
	var payout *big.Int
	err := m.j.Atomic(func() error {
		before := m.client.Asset.BalanceOf(caller)
		if err := m.client.Receipt.Transfer(caller, m.address, batchID, qty); err != nil {
			return tracerr.Wrap(err)
		}
		payout = new(big.Int).Sub(m.client.Asset.BalanceOf(caller), before)
		return nil
	})
	if err != nil {
		return nil, tracerr.Wrap(err)
	}
	return payout, nil
}

// SetPaused pauses or resumes redemptions
func (m *Manager) SetPaused(caller ethCommon.Address, paused bool) error {
	return m.j.Atomic(func() error {
		if err := m.authority.Require(caller, common.CapOwner); err != nil {
			return tracerr.Wrap(err)
		}
		m.st.Paused = paused
		log.Infow("redemption: paused updated", "paused", paused)
		return nil
	})
}

// SweepDust transfers what is left unpaid of a fully redeemed batch to `to`
// and returns the amount
func (m *Manager) SweepDust(caller ethCommon.Address, batchID common.BatchID,
	to ethCommon.Address) (*big.Int, error) {
	var dust *big.Int
	err := m.j.Atomic(func() error {
		if err := m.authority.Require(caller, common.CapOwner); err != nil {
			return tracerr.Wrap(err)
		}
		batch, err := m.batches.LookupFinalized(batchID)
		if err != nil {
			return tracerr.Wrap(err)
		}
		if supply := m.client.Receipt.TotalSupply(batchID); supply.Sign() != 0 {
			return tracerr.Wrap(fmt.Errorf("%w: batch %d has %v receipts outstanding",
				common.ErrBatchStillRedeemable, batchID, supply))
		}
		paid := m.paid(batchID)
		dust = new(big.Int).Sub(batch.CollectedAmount, paid)
		if dust.Sign() <= 0 {
			dust = big.NewInt(0)
			return nil
		}
		m.st.Paid[batchID] = new(big.Int).Add(paid, dust)
		if err := m.client.Asset.Transfer(m.address, to, dust); err != nil {
			return tracerr.Wrap(err)
		}
		m.j.Emit(common.Event{
			Type:         common.EventDustSwept,
			BatchID:      batchID,
			Account:      caller,
			Counterparty: to,
			Amount:       new(big.Int).Set(dust),
		})
		return nil
	})
	if err != nil {
		return nil, tracerr.Wrap(err)
	}
	return dust, nil
}

// PaidAmount returns what has been paid out of a batch
func (m *Manager) PaidAmount(batchID common.BatchID) *big.Int {
	var paid *big.Int
	m.j.Read(func() { paid = new(big.Int).Set(m.paid(batchID)) })
	return paid
}

// Paused returns true if redemptions are paused
func (m *Manager) Paused() bool {
	var paused bool
	m.j.Read(func() { paused = m.st.Paused })
	return paused
}

// Liabilities returns the sum of what is still unpaid of every finalized
// batch
func (m *Manager) Liabilities() *big.Int {
	var total *big.Int
	m.j.Read(func() { total = m.liabilities() })
	return total
}

func (m *Manager) liabilities() *big.Int {
	total := big.NewInt(0)
	m.batches.EachFinalized(func(b common.Batch) {
		unpaid := new(big.Int).Sub(b.CollectedAmount, m.paid(b.BatchID))
		if unpaid.Sign() > 0 {
			total.Add(total, unpaid)
		}
	})
	return total
}

// Surplus returns what the Manager holds above its liabilities: rounding dust
// and custody unlocked with no withdrawing batch
func (m *Manager) Surplus() *big.Int {
	var surplus *big.Int
	m.j.Read(func() {
		surplus = new(big.Int).Sub(m.client.Asset.BalanceOf(m.address), m.liabilities())
	})
	if surplus.Sign() < 0 {
		return big.NewInt(0)
	}
	return surplus
}

// Reconcile checks that the Manager holds at least what it owes to the
// holders of finalized batches
func (m *Manager) Reconcile() error {
	var balance, owed *big.Int
	m.j.Read(func() {
		balance = m.client.Asset.BalanceOf(m.address)
		owed = m.liabilities()
	})
	if balance.Cmp(owed) < 0 {
		return tracerr.Wrap(fmt.Errorf("%w: redemption manager holds %v, owes %v",
			common.ErrInsufficientBalance, balance, owed))
	}
	return nil
}
