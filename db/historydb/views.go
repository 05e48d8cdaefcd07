package historydb

import (
	"math/big"
	"time"

	ethCommon "github.com/ethereum/go-ethereum/common"
	"github.com/vaultbridge/vaultbridge-node/common"
	"github.com/vaultbridge/vaultbridge-node/common/apitypes"
)

// FinalizedBatch is a row of the finalized_batch table
type FinalizedBatch struct {
	ItemID          uint64         `meddler:"item_id,pk"`
	BatchID         common.BatchID `meddler:"batch_id"`
	RequestedAmount *big.Int       `meddler:"requested_amount,bigint"`
	BurnedAmount    *big.Int       `meddler:"burned_amount,bigint"`
	CollectedAmount *big.Int       `meddler:"collected_amount,bigint"`
	AssetDecimals   uint8          `meddler:"asset_decimals"`
	FinalizedAt     time.Time      `meddler:"finalized_at,utctime"`
}

// NewFinalizedBatch creates the row of a finalized batch
func NewFinalizedBatch(batch common.Batch, finalizedAt time.Time) FinalizedBatch {
	return FinalizedBatch{
		BatchID:         batch.BatchID,
		RequestedAmount: common.CopyBigInt(batch.RequestedAmount),
		BurnedAmount:    common.CopyBigInt(batch.BurnedAmount),
		CollectedAmount: common.CopyBigInt(batch.CollectedAmount),
		AssetDecimals:   batch.AssetDecimals,
		FinalizedAt:     finalizedAt,
	}
}

// Batch returns the common.Batch of the row
func (b *FinalizedBatch) Batch() common.Batch {
	return common.Batch{
		BatchID:         b.BatchID,
		RequestedAmount: common.CopyBigInt(b.RequestedAmount),
		BurnedAmount:    common.CopyBigInt(b.BurnedAmount),
		CollectedAmount: common.CopyBigInt(b.CollectedAmount),
		AssetDecimals:   b.AssetDecimals,
	}
}

// FinalizedBatchAPI is the representation of a finalized batch in the API
type FinalizedBatchAPI struct {
	ItemID          uint64             `json:"itemId" meddler:"item_id"`
	BatchID         common.BatchID     `json:"batchId" meddler:"batch_id"`
	RequestedAmount apitypes.BigIntStr `json:"requestedAmount" meddler:"requested_amount"`
	BurnedAmount    apitypes.BigIntStr `json:"burnedAmount" meddler:"burned_amount"`
	CollectedAmount apitypes.BigIntStr `json:"collectedAmount" meddler:"collected_amount"`
	AssetDecimals   uint8              `json:"assetDecimals" meddler:"asset_decimals"`
	FinalizedAt     time.Time          `json:"finalizedAt" meddler:"finalized_at,utctime"`
	TotalItems      uint64             `json:"-" meddler:"total_items"`
}

// EventAPI is the representation of an event in the API
type EventAPI struct {
	ItemID       uint64               `json:"itemId" meddler:"item_id"`
	Type         common.EventType     `json:"type" meddler:"type"`
	BatchID      common.BatchID       `json:"batchId" meddler:"batch_id"`
	Account      ethCommon.Address    `json:"account" meddler:"account"`
	Counterparty ethCommon.Address    `json:"counterparty" meddler:"counterparty"`
	Amount       *apitypes.BigIntStr  `json:"amount" meddler:"amount"`
	AuxAmount    *apitypes.BigIntStr  `json:"auxAmount" meddler:"aux_amount"`
	State        common.ContractState `json:"state" meddler:"state"`
	Timestamp    time.Time            `json:"timestamp" meddler:"timestamp,utctime"`
	TotalItems   uint64               `json:"-" meddler:"total_items"`
}
