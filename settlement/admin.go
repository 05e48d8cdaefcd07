package settlement

import (
	"math/big"
	"time"

	ethCommon "github.com/ethereum/go-ethereum/common"
	"github.com/hermeznetwork/tracerr"
	"github.com/vaultbridge/vaultbridge-node/common"
)

const (
	// DefaultFinalizedLimit is the page size used when a query asks for 0
	// finalized batches
	DefaultFinalizedLimit = 10
	// MaxFinalizedLimit is the largest page of finalized batches returned
	MaxFinalizedLimit = 100
)

// Status is a consistent view of the engine
type Status struct {
	State            common.ContractState
	ActiveBatch      common.Batch
	WithdrawingBatch *common.Batch
	FinalizedCount   int
	Params           Params
}

func copyParams(p Params) Params {
	p.DepositCost = common.CopyBigInt(p.DepositCost)
	p.WithdrawalCost = common.CopyBigInt(p.WithdrawalCost)
	p.DepositCap = common.CopyBigInt(p.DepositCap)
	return p
}

// Status returns the current state of the engine
func (e *Engine) Status() Status {
	var s Status
	e.j.Read(func() { s = e.status() })
	return s
}

func (e *Engine) status() Status {
	s := Status{
		State:          e.st.State,
		ActiveBatch:    e.st.ActiveBatch.Copy(),
		FinalizedCount: len(e.st.FinalizedIDs),
		Params:         copyParams(e.st.Params),
	}
	if e.st.WithdrawingBatch != nil {
		w := e.st.WithdrawingBatch.Copy()
		s.WithdrawingBatch = &w
	}
	return s
}

// CurrentState returns the state register
func (e *Engine) CurrentState() common.ContractState {
	var state common.ContractState
	e.j.Read(func() { state = e.st.State })
	return state
}

// ActiveBatch returns the batch currently accumulating burns
func (e *Engine) ActiveBatch() common.Batch {
	var b common.Batch
	e.j.Read(func() { b = e.st.ActiveBatch.Copy() })
	return b
}

// WithdrawingBatch returns the batch waiting for the external leg, if any
func (e *Engine) WithdrawingBatch() (common.Batch, bool) {
	var (
		b  common.Batch
		ok bool
	)
	e.j.Read(func() {
		if e.st.WithdrawingBatch != nil {
			b, ok = e.st.WithdrawingBatch.Copy(), true
		}
	})
	return b, ok
}

// FinalizedBatch returns a finalized batch by id
func (e *Engine) FinalizedBatch(id common.BatchID) (common.Batch, error) {
	var (
		b   common.Batch
		err error
	)
	e.j.Read(func() { b, err = e.finalizedBatch(id) })
	return b, tracerr.Wrap(err)
}

// finalizedBatch is the unlocked lookup, used from inside journaled
// operations
func (e *Engine) finalizedBatch(id common.BatchID) (common.Batch, error) {
	b, ok := e.st.FinalizedBatches[id]
	if !ok {
		return common.Batch{}, tracerr.Wrap(common.ErrBatchNotFinalized)
	}
	return b.Copy(), nil
}

// LookupFinalized returns a finalized batch without taking the journal lock.
// It must only be called from inside a journaled operation.
func (e *Engine) LookupFinalized(id common.BatchID) (common.Batch, error) {
	return e.finalizedBatch(id)
}

// FinalizedBatches returns up to limit finalized batches in finalization
// order starting at position start, and the total number of finalized
// batches. A limit of 0 means DefaultFinalizedLimit and limits above
// MaxFinalizedLimit are clamped. A start past the end returns an empty page.
func (e *Engine) FinalizedBatches(start, limit int) ([]common.Batch, int) {
	if limit <= 0 {
		limit = DefaultFinalizedLimit
	}
	if limit > MaxFinalizedLimit {
		limit = MaxFinalizedLimit
	}
	if start < 0 {
		start = 0
	}
	batches := []common.Batch{}
	var total int
	e.j.Read(func() {
		total = len(e.st.FinalizedIDs)
		if start >= total {
			return
		}
		end := start + limit
		if end > total {
			end = total
		}
		for _, id := range e.st.FinalizedIDs[start:end] {
			batches = append(batches, e.st.FinalizedBatches[id].Copy())
		}
	})
	return batches, total
}

func (e *Engine) ownerOp(caller ethCommon.Address, fn func() error) error {
	return e.j.Atomic(func() error {
		if err := e.authority.Require(caller, common.CapOwner); err != nil {
			return tracerr.Wrap(err)
		}
		return tracerr.Wrap(fn())
	})
}

// SetDepositCost sets the cost charged on deposits
func (e *Engine) SetDepositCost(caller ethCommon.Address, cost *big.Int) error {
	return e.ownerOp(caller, func() error {
		if err := common.ValidateFeePct(cost); err != nil {
			return tracerr.Wrap(err)
		}
		e.st.Params.DepositCost = new(big.Int).Set(cost)
		return nil
	})
}

// SetWithdrawalCost sets the cost charged on withdrawals
func (e *Engine) SetWithdrawalCost(caller ethCommon.Address, cost *big.Int) error {
	return e.ownerOp(caller, func() error {
		if err := common.ValidateFeePct(cost); err != nil {
			return tracerr.Wrap(err)
		}
		e.st.Params.WithdrawalCost = new(big.Int).Set(cost)
		return nil
	})
}

// SetStaleThreshold sets the maximum accepted oracle age
func (e *Engine) SetStaleThreshold(caller ethCommon.Address, threshold time.Duration) error {
	return e.ownerOp(caller, func() error {
		if threshold <= 0 {
			return tracerr.Wrap(common.ErrZeroAmount)
		}
		e.st.Params.StaleThreshold = threshold
		return nil
	})
}

// SetDepositCap sets the deposit cap and whether it is enforced
func (e *Engine) SetDepositCap(caller ethCommon.Address, limit *big.Int, enabled bool) error {
	return e.ownerOp(caller, func() error {
		if limit == nil || limit.Sign() < 0 {
			return tracerr.Wrap(common.ErrCapExceeded)
		}
		e.st.Params.DepositCap = new(big.Int).Set(limit)
		e.st.Params.DepositCapEnabled = enabled
		return nil
	})
}

// SetPaused pauses or resumes deposits, withdrawals and ticks
func (e *Engine) SetPaused(caller ethCommon.Address, paused bool) error {
	return e.ownerOp(caller, func() error {
		e.st.Params.Paused = paused
		return nil
	})
}

// SetDepositForwarder sets the account receiving the locked deposits
func (e *Engine) SetDepositForwarder(caller, forwarder ethCommon.Address) error {
	return e.ownerOp(caller, func() error {
		e.st.Params.DepositForwarder = forwarder
		return nil
	})
}

// SetFeeCollector sets the account receiving the withdrawal fee
func (e *Engine) SetFeeCollector(caller, collector ethCommon.Address) error {
	return e.ownerOp(caller, func() error {
		e.st.Params.FeeCollector = collector
		return nil
	})
}

// EachFinalized calls fn with every finalized batch in finalization order
// without taking the journal lock. It must only be called from inside a
// journaled operation or a journal.Journal.Read.
func (e *Engine) EachFinalized(fn func(common.Batch)) {
	for _, id := range e.st.FinalizedIDs {
		fn(e.st.FinalizedBatches[id].Copy())
	}
}
