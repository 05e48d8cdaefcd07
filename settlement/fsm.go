package settlement

import (
	"fmt"
	"math/big"

	"github.com/hermeznetwork/tracerr"
	"github.com/vaultbridge/vaultbridge-node/common"
)

type action int

const (
	actionNone action = iota
	// actionSettleBatch sends the settlement of a fully covered batch and
	// finalizes it
	actionSettleBatch
	// actionParkBatch sends the partial settlement of a batch and parks it
	// as the withdrawing batch
	actionParkBatch
	// actionLockDeposits locks the local balance and forwards it to custody
	actionLockDeposits
	// actionCollectCustody adds the locked amount to the withdrawing batch
	// and unlocks it
	actionCollectCustody
	// actionFinalizeWithdrawing finalizes the withdrawing batch
	actionFinalizeWithdrawing
	// actionUnlockUnassigned unlocks custody returned after the withdrawing
	// batch was finalized out of band. The funds go to the redemption
	// manager unassigned to any batch.
	actionUnlockUnassigned
)

// observation is everything the state machine reads to decide a step
type observation struct {
	State common.ContractState
	// Settlement is only set in Idle when the active batch has burns
	Settlement     *common.Settlement
	Balance        *big.Int
	LockedAmount   *big.Int
	HasWithdrawing bool
}

// plan is the decision of one step. Effects run only after the decision.
type plan struct {
	Next      common.ContractState
	Action    action
	Finalized bool
}

// transition decides the next state and the effect of one tick
func transition(obs observation) (plan, error) {
	switch obs.State {
	case common.StateIdle:
		if obs.Settlement != nil {
			if obs.Settlement.Covered {
				return plan{Next: common.StateIdle, Action: actionSettleBatch, Finalized: true}, nil
			}
			if obs.HasWithdrawing {
				return plan{}, tracerr.Wrap(common.ErrWithdrawingBatchExists)
			}
			return plan{Next: common.StateWithdrawLeg1, Action: actionParkBatch}, nil
		}
		if obs.Balance.Sign() > 0 {
			return plan{Next: common.StateDepositLeg1, Action: actionLockDeposits}, nil
		}
		return plan{Next: common.StateIdle, Action: actionNone}, nil
	case common.StateDepositLeg1:
		if obs.LockedAmount.Sign() != 0 {
			return plan{}, tracerr.Wrap(common.ErrLockStillHeld)
		}
		return plan{Next: common.StateDepositLeg2}, nil
	case common.StateDepositLeg2:
		return plan{Next: common.StateDepositLeg3}, nil
	case common.StateDepositLeg3:
		return plan{Next: common.StateIdle}, nil
	case common.StateWithdrawLeg1:
		return plan{Next: common.StateWithdrawLeg2}, nil
	case common.StateWithdrawLeg2:
		if obs.LockedAmount.Sign() > 0 {
			if obs.HasWithdrawing {
				return plan{Next: common.StateWithdrawLeg3, Action: actionCollectCustody}, nil
			}
			return plan{Next: common.StateWithdrawLeg3, Action: actionUnlockUnassigned}, nil
		}
		return plan{Next: common.StateWithdrawLeg3}, nil
	case common.StateWithdrawLeg3:
		if obs.HasWithdrawing {
			return plan{Next: common.StateIdle, Action: actionFinalizeWithdrawing, Finalized: true}, nil
		}
		return plan{Next: common.StateIdle}, nil
	default:
		return plan{}, tracerr.Wrap(fmt.Errorf("unknown contract state %v", obs.State))
	}
}
