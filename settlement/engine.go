/*
Package settlement implements the batch settlement engine: deposits mint the
synthetic token, withdrawals burn it against receipts of the active batch, and
an operator advances the settlement state machine one step per Tick.

Every mutating entry point checks the caller capability first and runs as a
single journaled operation, so a failure anywhere (including a collaborator
failure in the middle of a Tick) leaves batches, balances and the state
register untouched.
*/
package settlement

import (
	"context"
	"fmt"
	"math/big"
	"time"

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

// Params are the owner adjustable parameters of the Engine
type Params struct {
	// DepositCost is the 1e18 fixed point cost charged on deposits
	DepositCost *big.Int
	// WithdrawalCost is the 1e18 fixed point cost charged on withdrawals
	WithdrawalCost *big.Int
	// StaleThreshold is the maximum age of an oracle rate
	StaleThreshold time.Duration
	// DepositCap bounds AUM plus deposit, in asset units
	DepositCap        *big.Int
	DepositCapEnabled bool
	Paused            bool
	// DepositForwarder receives the balance locked for the external leg
	DepositForwarder ethCommon.Address
	// FeeCollector receives the fee skimmed from withdrawals
	FeeCollector ethCommon.Address
}

// Config is the configuration of an Engine
type Config struct {
	// Address is the account holding the local asset pool
	Address ethCommon.Address
	// RedemptionManager receives the settled funds
	RedemptionManager ethCommon.Address
	Params            Params
}

// State is the journaled state of the Engine
type State struct {
	Params           Params
	State            common.ContractState
	ActiveBatch      common.Batch
	WithdrawingBatch *common.Batch
	FinalizedBatches map[common.BatchID]common.Batch
	FinalizedIDs     []common.BatchID
}

// Engine is the settlement engine
type Engine struct {
	j                 *journal.Journal
	authority         Authority
	client            *eth.Client
	address           ethCommon.Address
	redemptionManager ethCommon.Address
	st                *State
}

// NewEngine creates an Engine in Idle with an empty batch 0 and registers it
// in the journal
func NewEngine(j *journal.Journal, authority Authority, client *eth.Client, cfg Config) (*Engine, error) {
	if err := validateParams(&cfg.Params); err != nil {
		return nil, tracerr.Wrap(err)
	}
	e := &Engine{
		j:                 j,
		authority:         authority,
		client:            client,
		address:           cfg.Address,
		redemptionManager: cfg.RedemptionManager,
		st: &State{
			Params:           cfg.Params,
			State:            common.StateIdle,
			ActiveBatch:      common.NewBatch(0, client.Asset.Decimals()),
			FinalizedBatches: make(map[common.BatchID]common.Batch),
			FinalizedIDs:     []common.BatchID{},
		},
	}
	j.Register(e)
	return e, nil
}

func validateParams(p *Params) error {
	if p.DepositCost == nil {
		p.DepositCost = big.NewInt(0)
	}
	if p.WithdrawalCost == nil {
		p.WithdrawalCost = big.NewInt(0)
	}
	if p.DepositCap == nil {
		p.DepositCap = big.NewInt(0)
	}
	if err := common.ValidateFeePct(p.DepositCost); err != nil {
		return tracerr.Wrap(err)
	}
	if err := common.ValidateFeePct(p.WithdrawalCost); err != nil {
		return tracerr.Wrap(err)
	}
	if p.StaleThreshold <= 0 {
		return tracerr.Wrap(fmt.Errorf("stale threshold must be positive"))
	}
	return nil
}

// Name implements journal.Component
func (e *Engine) Name() string { return "settlement" }

// State implements journal.Component
func (e *Engine) State() interface{} { return e.st }

// SetState implements journal.Component
func (e *Engine) SetState(state interface{}) { e.st = state.(*State) }

// Address returns the account of the engine
func (e *Engine) Address() ethCommon.Address {
	return e.address
}

func (e *Engine) requireNotPaused() error {
	if e.st.Params.Paused {
		return tracerr.Wrap(common.ErrPaused)
	}
	return nil
}

// freshRate returns the time weighted rate, rejecting stale observations
func (e *Engine) freshRate(ctx context.Context) (*big.Int, error) {
	rate, publishedAt, err := e.client.Oracle.GetTwaer(ctx)
	if err != nil {
		return nil, tracerr.Wrap(err)
	}
	if age := e.j.Now().Sub(publishedAt); age >= e.st.Params.StaleThreshold {
		return nil, tracerr.Wrap(fmt.Errorf("%w: published %v ago", common.ErrExchangeRateStale, age))
	}
	return rate, nil
}

func (e *Engine) checkCap(ctx context.Context, amount *big.Int) error {
	if !e.st.Params.DepositCapEnabled {
		return nil
	}
	aum, aumDecimals, err := e.client.Oracle.GetAum(ctx)
	if err != nil {
		return tracerr.Wrap(err)
	}
	if aum.Sign() < 0 {
		return tracerr.Wrap(fmt.Errorf("%w: negative aum %v", common.ErrCapExceeded, aum))
	}
	scaledAum := common.RescaleDecimals(aum, aumDecimals, e.client.Asset.Decimals())
	total := new(big.Int).Add(scaledAum, amount)
	if total.Cmp(e.st.Params.DepositCap) > 0 {
		return tracerr.Wrap(fmt.Errorf("%w: aum %v + deposit %v > cap %v",
			common.ErrCapExceeded, scaledAum, amount, e.st.Params.DepositCap))
	}
	return nil
}

// Deposit pulls amount asset units from caller and mints the synthetic token
// to recipient. It returns the minted amount.
func (e *Engine) Deposit(ctx context.Context, caller ethCommon.Address, amount *big.Int,
	recipient ethCommon.Address, minOut *big.Int) (*big.Int, error) {
	var minted *big.Int
	err := e.j.Atomic(func() error {
		if err := e.requireNotPaused(); err != nil {
			return tracerr.Wrap(err)
		}
		if err := e.authority.Require(recipient, common.CapAllowlisted); err != nil {
			return tracerr.Wrap(err)
		}
		if !common.IsPositive(amount) {
			return tracerr.Wrap(common.ErrZeroAmount)
		}
		rate, err := e.freshRate(ctx)
		if err != nil {
			return tracerr.Wrap(err)
		}
		if err := e.checkCap(ctx, amount); err != nil {
			return tracerr.Wrap(err)
		}
		mint, err := common.DepositMintAmount(amount, rate, e.st.Params.DepositCost)
		if err != nil {
			return tracerr.Wrap(err)
		}
		if mint.Sign() == 0 {
			return tracerr.Wrap(common.ErrZeroAmount)
		}
		if minOut != nil && minOut.Sign() != 0 && mint.Cmp(minOut) < 0 {
			return tracerr.Wrap(&common.SlippageError{MinOut: new(big.Int).Set(minOut), Actual: mint})
		}
		if err := e.client.Asset.Transfer(caller, e.address, amount); err != nil {
			return tracerr.Wrap(err)
		}
		if err := e.client.Synthetic.Mint(recipient, mint); err != nil {
			return tracerr.Wrap(err)
		}
		e.j.Emit(common.Event{
			Type:         common.EventDeposit,
			BatchID:      e.st.ActiveBatch.BatchID,
			Account:      caller,
			Counterparty: recipient,
			Amount:       new(big.Int).Set(amount),
			AuxAmount:    mint,
			State:        e.st.State,
		})
		minted = mint
		return nil
	})
	if err != nil {
		return nil, tracerr.Wrap(err)
	}
	log.Debugw("settlement: deposit", "caller", caller.Hex(), "recipient", recipient.Hex(),
		"amount", amount, "minted", minted)
	return minted, nil
}

// Withdraw burns burnAmount synthetic units of caller and mints the same
// quantity of receipts of the active batch. It returns the batch id of the
// receipts.
func (e *Engine) Withdraw(caller ethCommon.Address, burnAmount *big.Int) (common.BatchID, error) {
	var batchID common.BatchID
	err := e.j.Atomic(func() error {
		if err := e.requireNotPaused(); err != nil {
			return tracerr.Wrap(err)
		}
		if err := e.authority.Require(caller, common.CapAllowlisted); err != nil {
			return tracerr.Wrap(err)
		}
		if !common.IsPositive(burnAmount) {
			return tracerr.Wrap(common.ErrZeroAmount)
		}
		batchID = e.st.ActiveBatch.BatchID
		e.st.ActiveBatch.BurnedAmount = new(big.Int).Add(e.st.ActiveBatch.BurnedAmount, burnAmount)
		if err := e.client.Synthetic.Burn(caller, burnAmount); err != nil {
			return tracerr.Wrap(err)
		}
		if err := e.client.Receipt.Mint(caller, batchID, burnAmount); err != nil {
			return tracerr.Wrap(err)
		}
		e.j.Emit(common.Event{
			Type:    common.EventWithdrawal,
			BatchID: batchID,
			Account: caller,
			Amount:  new(big.Int).Set(burnAmount),
			State:   e.st.State,
		})
		return nil
	})
	if err != nil {
		return 0, tracerr.Wrap(err)
	}
	log.Debugw("settlement: withdraw", "caller", caller.Hex(), "amount", burnAmount, "batchID", batchID)
	return batchID, nil
}

// Tick advances the state machine by exactly one step. It returns true when a
// batch was finalized by this step.
func (e *Engine) Tick(ctx context.Context, caller ethCommon.Address) (bool, error) {
	finalized, _, err := e.TickStatus(ctx, caller)
	return finalized, tracerr.Wrap(err)
}

// TickStatus is Tick returning also the status of the engine right after the
// step
func (e *Engine) TickStatus(ctx context.Context, caller ethCommon.Address) (bool, Status, error) {
	var (
		finalized bool
		status    Status
	)
	err := e.j.Atomic(func() error {
		if err := e.authority.Require(caller, common.CapOperator); err != nil {
			return tracerr.Wrap(err)
		}
		if err := e.requireNotPaused(); err != nil {
			return tracerr.Wrap(err)
		}
		obs, err := e.observe(ctx)
		if err != nil {
			return tracerr.Wrap(err)
		}
		p, err := transition(obs)
		if err != nil {
			return tracerr.Wrap(err)
		}
		if err := e.execute(p, obs); err != nil {
			return tracerr.Wrap(err)
		}
		if p.Next != e.st.State {
			log.Infow("settlement: transition", "from", e.st.State, "to", p.Next)
			e.st.State = p.Next
			e.j.Emit(common.Event{
				Type:    common.EventTransition,
				BatchID: e.st.ActiveBatch.BatchID,
				State:   p.Next,
			})
		}
		finalized = p.Finalized
		status = e.status()
		return nil
	})
	if err != nil {
		return false, Status{}, tracerr.Wrap(err)
	}
	return finalized, status, nil
}

func (e *Engine) observe(ctx context.Context) (observation, error) {
	obs := observation{
		State:          e.st.State,
		Balance:        e.client.Asset.BalanceOf(e.address),
		LockedAmount:   e.client.CustodyLock.LockedAmount(),
		HasWithdrawing: e.st.WithdrawingBatch != nil,
	}
	if e.st.State == common.StateIdle && e.st.ActiveBatch.BurnedAmount.Sign() > 0 {
		rate, err := e.freshRate(ctx)
		if err != nil {
			return obs, tracerr.Wrap(err)
		}
		s := common.ComputeSettlement(e.st.ActiveBatch.BurnedAmount, rate, obs.Balance,
			e.st.Params.DepositCost, e.st.Params.WithdrawalCost)
		obs.Settlement = &s
	}
	return obs, nil
}

func (e *Engine) execute(p plan, obs observation) error {
	switch p.Action {
	case actionNone:
		return nil
	case actionSettleBatch, actionParkBatch:
		return tracerr.Wrap(e.processBatch(obs.Settlement, p.Action == actionSettleBatch))
	case actionLockDeposits:
		if err := e.client.CustodyLock.Lock(e.address, obs.Balance); err != nil {
			return tracerr.Wrap(err)
		}
		if err := e.client.Asset.Transfer(e.address, e.st.Params.DepositForwarder, obs.Balance); err != nil {
			return tracerr.Wrap(err)
		}
		e.j.Emit(common.Event{
			Type:         common.EventCustodyLocked,
			Account:      e.address,
			Counterparty: e.st.Params.DepositForwarder,
			Amount:       new(big.Int).Set(obs.Balance),
			State:        p.Next,
		})
		log.Infow("settlement: deposits forwarded to custody", "amount", obs.Balance)
		return nil
	case actionCollectCustody:
		w := e.st.WithdrawingBatch
		w.CollectedAmount = new(big.Int).Add(w.CollectedAmount, obs.LockedAmount)
		if err := e.client.CustodyLock.Unlock(e.address); err != nil {
			return tracerr.Wrap(err)
		}
		e.j.Emit(common.Event{
			Type:    common.EventCustodyUnlocked,
			BatchID: w.BatchID,
			Account: e.address,
			Amount:  new(big.Int).Set(obs.LockedAmount),
			State:   p.Next,
		})
		log.Infow("settlement: custody collected", "batchID", w.BatchID, "amount", obs.LockedAmount)
		return nil
	case actionFinalizeWithdrawing:
		e.finalize(*e.st.WithdrawingBatch)
		e.st.WithdrawingBatch = nil
		return nil
	case actionUnlockUnassigned:
		if err := e.client.CustodyLock.Unlock(e.address); err != nil {
			return tracerr.Wrap(err)
		}
		e.j.Emit(common.Event{
			Type:    common.EventCustodyUnlocked,
			Account: e.address,
			Amount:  new(big.Int).Set(obs.LockedAmount),
			State:   p.Next,
		})
		log.Warnw("settlement: custody unlocked with no withdrawing batch, the funds are unassigned",
			"amount", obs.LockedAmount)
		return nil
	default:
		return tracerr.Wrap(fmt.Errorf("unknown action %d", p.Action))
	}
}

// processBatch settles the active batch against the local balance and rolls
// the active batch
func (e *Engine) processBatch(s *common.Settlement, covered bool) error {
	batch := e.st.ActiveBatch.Copy()
	batch.RequestedAmount = new(big.Int).Set(s.Requested)
	batch.CollectedAmount = new(big.Int).Set(s.OffsetNet)
	if covered {
		e.finalize(batch)
	} else {
		if e.st.WithdrawingBatch != nil {
			return tracerr.Wrap(common.ErrWithdrawingBatchExists)
		}
		e.st.WithdrawingBatch = &batch
		e.j.Emit(common.Event{
			Type:      common.EventBatchParked,
			BatchID:   batch.BatchID,
			Amount:    new(big.Int).Set(batch.CollectedAmount),
			AuxAmount: new(big.Int).Set(batch.RequestedAmount),
			State:     common.StateWithdrawLeg1,
		})
		log.Infow("settlement: batch parked", "batchID", batch.BatchID,
			"requested", batch.RequestedAmount, "collected", batch.CollectedAmount)
	}
	if s.OffsetNet.Sign() > 0 {
		if err := e.client.Asset.Transfer(e.address, e.redemptionManager, s.OffsetNet); err != nil {
			return tracerr.Wrap(err)
		}
	}
	if s.FeeSkim.Sign() > 0 {
		if err := e.client.Asset.Transfer(e.address, e.st.Params.FeeCollector, s.FeeSkim); err != nil {
			return tracerr.Wrap(err)
		}
	}
	e.st.ActiveBatch = common.NewBatch(batch.BatchID+1, e.client.Asset.Decimals())
	return nil
}

// finalize appends a batch to the finalized store
func (e *Engine) finalize(batch common.Batch) {
	e.st.FinalizedBatches[batch.BatchID] = batch
	e.st.FinalizedIDs = append(e.st.FinalizedIDs, batch.BatchID)
	e.j.Emit(common.Event{
		Type:      common.EventBatchFinalized,
		BatchID:   batch.BatchID,
		Amount:    new(big.Int).Set(batch.CollectedAmount),
		AuxAmount: new(big.Int).Set(batch.RequestedAmount),
		State:     e.st.State,
	})
	log.Infow("settlement: batch finalized", "batchID", batch.BatchID,
		"requested", batch.RequestedAmount, "collected", batch.CollectedAmount)
}

// FinalizeWithdrawingBatch tops up the withdrawing batch to totalCollected,
// sending the difference to the redemption manager, and finalizes it
func (e *Engine) FinalizeWithdrawingBatch(caller ethCommon.Address, totalCollected *big.Int) error {
	_, err := e.FinalizeWithdrawingBatchStatus(caller, totalCollected)
	return tracerr.Wrap(err)
}

// FinalizeWithdrawingBatchStatus is FinalizeWithdrawingBatch returning also
// the status of the engine right after the finalization
func (e *Engine) FinalizeWithdrawingBatchStatus(caller ethCommon.Address,
	totalCollected *big.Int) (Status, error) {
	var status Status
	err := e.j.Atomic(func() error {
		if err := e.authority.Require(caller, common.CapOperator); err != nil {
			return tracerr.Wrap(err)
		}
		w := e.st.WithdrawingBatch
		if w == nil {
			return tracerr.Wrap(common.ErrNoWithdrawingBatch)
		}
		if totalCollected == nil || totalCollected.Cmp(w.CollectedAmount) < 0 {
			return tracerr.Wrap(fmt.Errorf("%w: recorded %v, requested total %v",
				common.ErrCollectedDecrease, w.CollectedAmount, totalCollected))
		}
		delta := new(big.Int).Sub(totalCollected, w.CollectedAmount)
		if delta.Sign() > 0 {
			if err := e.client.Asset.Transfer(e.address, e.redemptionManager, delta); err != nil {
				return tracerr.Wrap(err)
			}
		}
		batch := w.Copy()
		batch.CollectedAmount = new(big.Int).Set(totalCollected)
		e.finalize(batch)
		e.st.WithdrawingBatch = nil
		status = e.status()
		return nil
	})
	if err != nil {
		return Status{}, tracerr.Wrap(err)
	}
	return status, nil
}
