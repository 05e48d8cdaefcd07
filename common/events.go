package common

import (
	"math/big"
	"time"

	ethCommon "github.com/ethereum/go-ethereum/common"
)

// EventType identifies the kind of a committed Event
type EventType string

const (
	// EventDeposit is emitted for every accepted deposit. Amount is the
	// deposited asset amount and AuxAmount the minted synthetic amount.
	EventDeposit EventType = "deposit"
	// EventWithdrawal is emitted for every withdrawal request. Amount is the
	// burned synthetic amount.
	EventWithdrawal EventType = "withdrawal"
	// EventBatchParked is emitted when a batch becomes the withdrawing batch.
	// Amount is the collected amount and AuxAmount the requested amount.
	EventBatchParked EventType = "batch_parked"
	// EventBatchFinalized is emitted when a batch is finalized. Amount is the
	// collected amount and AuxAmount the requested amount.
	EventBatchFinalized EventType = "batch_finalized"
	// EventTransition is emitted when the state machine register changes
	EventTransition EventType = "transition"
	// EventCustodyLocked is emitted when the custody lock holds an amount
	EventCustodyLocked EventType = "custody_locked"
	// EventCustodyUnlocked is emitted when the custody lock is cleared
	EventCustodyUnlocked EventType = "custody_unlocked"
	// EventRedemption is emitted for every redemption. Amount is the payout
	// and AuxAmount the number of receipts burned.
	EventRedemption EventType = "redemption"
	// EventDustSwept is emitted when the rounding remainder of a fully
	// redeemed batch is swept
	EventDustSwept EventType = "dust_swept"
	// EventFeeCollected is emitted for every non zero fee collection. Amount
	// is the minted fee and AuxAmount the exchange rate used.
	EventFeeCollected EventType = "fee_collected"
	// EventFeeClaimed is emitted when the owner claims collected fees
	EventFeeClaimed EventType = "fee_claimed"
)

// Event is a record of a committed state change
type Event struct {
	ItemID       uint64            `json:"itemId" meddler:"item_id,pk"`
	Type         EventType         `json:"type" meddler:"type"`
	BatchID      BatchID           `json:"batchId" meddler:"batch_id"`
	Account      ethCommon.Address `json:"account" meddler:"account"`
	Counterparty ethCommon.Address `json:"counterparty" meddler:"counterparty"`
	Amount       *big.Int          `json:"amount" meddler:"amount,bigintnull"`
	AuxAmount    *big.Int          `json:"auxAmount" meddler:"aux_amount,bigintnull"`
	State        ContractState     `json:"state" meddler:"state"`
	Timestamp    time.Time         `json:"timestamp" meddler:"timestamp,utctime"`
}
