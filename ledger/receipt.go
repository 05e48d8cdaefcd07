package ledger

import (
	"fmt"
	"math/big"

	ethCommon "github.com/ethereum/go-ethereum/common"
	"github.com/hermeznetwork/tracerr"
	"github.com/vaultbridge/vaultbridge-node/common"
	"github.com/vaultbridge/vaultbridge-node/eth"
)

// ReceiptState is the journaled state of a Receipt
type ReceiptState struct {
	Supply   map[common.BatchID]*big.Int
	Balances map[common.BatchID]map[ethCommon.Address]*big.Int
}

// Receipt is an in-process multi batch redemption receipt token
type Receipt struct {
	st        *ReceiptState
	receivers map[ethCommon.Address]eth.ReceiptReceiver
}

// NewReceipt creates an empty Receipt
func NewReceipt() *Receipt {
	return &Receipt{
		st: &ReceiptState{
			Supply:   make(map[common.BatchID]*big.Int),
			Balances: make(map[common.BatchID]map[ethCommon.Address]*big.Int),
		},
		receivers: make(map[ethCommon.Address]eth.ReceiptReceiver),
	}
}

// Name implements journal.Component
func (r *Receipt) Name() string { return "receipt" }

// State implements journal.Component
func (r *Receipt) State() interface{} { return r.st }

// SetState implements journal.Component
func (r *Receipt) SetState(state interface{}) { r.st = state.(*ReceiptState) }

// RegisterReceiver sets the receiver notified of the transfers to addr
func (r *Receipt) RegisterReceiver(addr ethCommon.Address, receiver eth.ReceiptReceiver) {
	r.receivers[addr] = receiver
}

func (r *Receipt) balance(addr ethCommon.Address, batchID common.BatchID) *big.Int {
	balances, ok := r.st.Balances[batchID]
	if !ok {
		balances = make(map[ethCommon.Address]*big.Int)
		r.st.Balances[batchID] = balances
	}
	b, ok := balances[addr]
	if !ok {
		b = big.NewInt(0)
		balances[addr] = b
	}
	return b
}

func (r *Receipt) supply(batchID common.BatchID) *big.Int {
	s, ok := r.st.Supply[batchID]
	if !ok {
		s = big.NewInt(0)
		r.st.Supply[batchID] = s
	}
	return s
}

// TotalSupply returns the outstanding receipts of a batch
func (r *Receipt) TotalSupply(batchID common.BatchID) *big.Int {
	return common.CopyBigInt(r.st.Supply[batchID])
}

// BalanceOf returns the receipts of a batch owned by addr
func (r *Receipt) BalanceOf(addr ethCommon.Address, batchID common.BatchID) *big.Int {
	balances, ok := r.st.Balances[batchID]
	if !ok {
		return big.NewInt(0)
	}
	return common.CopyBigInt(balances[addr])
}

// BalancesOf returns the non zero receipt balances of addr by batch
func (r *Receipt) BalancesOf(addr ethCommon.Address) map[common.BatchID]*big.Int {
	res := make(map[common.BatchID]*big.Int)
	for batchID, balances := range r.st.Balances {
		if b, ok := balances[addr]; ok && b.Sign() > 0 {
			res[batchID] = new(big.Int).Set(b)
		}
	}
	return res
}

// Mint creates qty receipts of a batch owned by `to`
func (r *Receipt) Mint(to ethCommon.Address, batchID common.BatchID, qty *big.Int) error {
	if err := checkAmount(qty); err != nil {
		return tracerr.Wrap(err)
	}
	b := r.balance(to, batchID)
	b.Add(b, qty)
	s := r.supply(batchID)
	s.Add(s, qty)
	return nil
}

// Burn destroys qty receipts of a batch owned by `from`
func (r *Receipt) Burn(from ethCommon.Address, batchID common.BatchID, qty *big.Int) error {
	if err := checkAmount(qty); err != nil {
		return tracerr.Wrap(err)
	}
	b := r.balance(from, batchID)
	if b.Cmp(qty) < 0 {
		return tracerr.Wrap(fmt.Errorf("%w: receipt %d burn of %v from %v with balance %v",
			common.ErrInsufficientBalance, batchID, qty, from.Hex(), b))
	}
	b.Sub(b, qty)
	s := r.supply(batchID)
	s.Sub(s, qty)
	return nil
}

func (r *Receipt) move(from, to ethCommon.Address, batchID common.BatchID, qty *big.Int) error {
	if err := checkAmount(qty); err != nil {
		return tracerr.Wrap(err)
	}
	fromBalance := r.balance(from, batchID)
	if fromBalance.Cmp(qty) < 0 {
		return tracerr.Wrap(fmt.Errorf("%w: receipt %d transfer of %v from %v with balance %v",
			common.ErrInsufficientBalance, batchID, qty, from.Hex(), fromBalance))
	}
	fromBalance.Sub(fromBalance, qty)
	toBalance := r.balance(to, batchID)
	toBalance.Add(toBalance, qty)
	return nil
}

// Transfer moves qty receipts of a batch and notifies the receiver of `to`
func (r *Receipt) Transfer(from, to ethCommon.Address, batchID common.BatchID, qty *big.Int) error {
	if err := r.move(from, to, batchID, qty); err != nil {
		return tracerr.Wrap(err)
	}
	if receiver, ok := r.receivers[to]; ok {
		return tracerr.Wrap(receiver.OnReceiptReceived(from, batchID, qty))
	}
	return nil
}

// TransferBatch moves receipts of several batches and notifies the receiver
// of `to` once
func (r *Receipt) TransferBatch(from, to ethCommon.Address, batchIDs []common.BatchID,
	qtys []*big.Int) error {
	if len(batchIDs) != len(qtys) {
		return tracerr.Wrap(fmt.Errorf("batch ids and quantities length mismatch: %d != %d",
			len(batchIDs), len(qtys)))
	}
	for i := range batchIDs {
		if err := r.move(from, to, batchIDs[i], qtys[i]); err != nil {
			return tracerr.Wrap(err)
		}
	}
	if receiver, ok := r.receivers[to]; ok {
		return tracerr.Wrap(receiver.OnReceiptBatchReceived(from, batchIDs, qtys))
	}
	return nil
}
