package common

import (
	"encoding/binary"
	"fmt"
	"math/big"

	"github.com/hermeznetwork/tracerr"
)

const batchIDBytesLen = 8

// BatchID identifies a withdrawal batch. Ids are assigned monotonically
// starting at 0.
type BatchID uint64

// Bytes returns a byte array representing the BatchID
func (id BatchID) Bytes() []byte {
	var b [batchIDBytesLen]byte
	binary.BigEndian.PutUint64(b[:], uint64(id))
	return b[:]
}

// BigInt returns a *big.Int representing the BatchID
func (id BatchID) BigInt() *big.Int {
	return new(big.Int).SetUint64(uint64(id))
}

// BatchIDFromBytes returns BatchID from a []byte
func BatchIDFromBytes(b []byte) (BatchID, error) {
	if len(b) != batchIDBytesLen {
		return 0,
			tracerr.Wrap(fmt.Errorf("can not parse BatchID, bytes len %d, expected %d",
				len(b), batchIDBytesLen))
	}
	return BatchID(binary.BigEndian.Uint64(b)), nil
}

// Batch is a cohort of withdrawal requests settled together. The amounts are
// expressed in the native precision of the token they refer to: BurnedAmount
// in synthetic units, RequestedAmount and CollectedAmount in asset units.
type Batch struct {
	BatchID         BatchID  `json:"batchId" meddler:"batch_id"`
	RequestedAmount *big.Int `json:"requestedAmount" meddler:"requested_amount,bigint"`
	BurnedAmount    *big.Int `json:"burnedAmount" meddler:"burned_amount,bigint"`
	CollectedAmount *big.Int `json:"collectedAmount" meddler:"collected_amount,bigint"`
	AssetDecimals   uint8    `json:"assetDecimals" meddler:"asset_decimals"`
}

// NewBatch returns an empty batch with the given id
func NewBatch(id BatchID, assetDecimals uint8) Batch {
	return Batch{
		BatchID:         id,
		RequestedAmount: big.NewInt(0),
		BurnedAmount:    big.NewInt(0),
		CollectedAmount: big.NewInt(0),
		AssetDecimals:   assetDecimals,
	}
}

// Copy returns a deep copy of the batch
func (b Batch) Copy() Batch {
	return Batch{
		BatchID:         b.BatchID,
		RequestedAmount: CopyBigInt(b.RequestedAmount),
		BurnedAmount:    CopyBigInt(b.BurnedAmount),
		CollectedAmount: CopyBigInt(b.CollectedAmount),
		AssetDecimals:   b.AssetDecimals,
	}
}
