package eth

import (
	"context"
	"math/big"
	"time"

	ethCommon "github.com/ethereum/go-ethereum/common"
	"github.com/vaultbridge/vaultbridge-node/common"
)

// ExchangeRateOracle supplies the exchange rate between the deposit asset and
// the synthetic token, in 1e18 fixed point, and the assets under management
type ExchangeRateOracle interface {
	// GetTwaer returns the time weighted average exchange rate and the
	// time it was published
	GetTwaer(ctx context.Context) (rate *big.Int, publishedAt time.Time, err error)
	// GetLatest returns the latest exchange rate and the time it was
	// published
	GetLatest(ctx context.Context) (rate *big.Int, publishedAt time.Time, err error)
	// GetAum returns the signed assets under management and their decimal
	// precision
	GetAum(ctx context.Context) (amount *big.Int, decimals uint8, err error)
}

// Allowlist is a membership predicate
type Allowlist interface {
	IsAllowed(addr ethCommon.Address) bool
}

// Token is a fungible token. Amounts are in the native precision of the
// token.
type Token interface {
	Decimals() uint8
	TotalSupply() *big.Int
	BalanceOf(addr ethCommon.Address) *big.Int
	Transfer(from, to ethCommon.Address, amount *big.Int) error
	Mint(to ethCommon.Address, amount *big.Int) error
	Burn(from ethCommon.Address, amount *big.Int) error
}

// RedemptionReceipt is a per batch fungible claim token
type RedemptionReceipt interface {
	Mint(to ethCommon.Address, batchID common.BatchID, qty *big.Int) error
	Burn(from ethCommon.Address, batchID common.BatchID, qty *big.Int) error
	TotalSupply(batchID common.BatchID) *big.Int
	BalanceOf(addr ethCommon.Address, batchID common.BatchID) *big.Int
	// Transfer moves receipts. If `to` has a registered ReceiptReceiver
	// it is notified and the whole transfer fails if it returns an error.
	Transfer(from, to ethCommon.Address, batchID common.BatchID, qty *big.Int) error
	// TransferBatch moves receipts of several batches at once
	TransferBatch(from, to ethCommon.Address, batchIDs []common.BatchID, qtys []*big.Int) error
}

// ReceiptReceiver is notified of the receipts transferred to its address
type ReceiptReceiver interface {
	OnReceiptReceived(from ethCommon.Address, batchID common.BatchID, qty *big.Int) error
	OnReceiptBatchReceived(from ethCommon.Address, batchIDs []common.BatchID, qtys []*big.Int) error
}

// CustodyLock holds funds committed to the external settlement leg
type CustodyLock interface {
	// Lock records `amount` as held. It fails if something is already
	// locked or if amount is zero.
	Lock(caller ethCommon.Address, amount *big.Int) error
	// Unlock releases the held amount to the beneficiary. It fails if
	// nothing is locked or if the held funds are not available.
	Unlock(caller ethCommon.Address) error
	// LockedAmount returns the amount currently held
	LockedAmount() *big.Int
}
