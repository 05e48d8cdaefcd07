package common

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/hermeznetwork/tracerr"
)

// IsErr reports whether err matches target once the stack trace added by
// tracerr is stripped
func IsErr(err, target error) bool {
	return errors.Is(tracerr.Unwrap(err), target)
}

// Authorization errors
var (
	// ErrUnauthorized is used when the caller lacks the required capability
	ErrUnauthorized = errors.New("caller is not authorized")
	// ErrNotAllowlisted is used when an account is not in the allowlist
	ErrNotAllowlisted = errors.New("account is not allowlisted")
	// ErrInvalidSignature is used when a request signature does not
	// recover to the claimed caller
	ErrInvalidSignature = errors.New("invalid caller signature")
	// ErrNonceUsed is used when a request nonce is not above the last one
	// accepted for the caller
	ErrNonceUsed = errors.New("nonce already used")
)

// State and precondition errors
var (
	// ErrPaused is used when a paused component receives a mutating call
	ErrPaused = errors.New("paused")
	// ErrLockStillHeld is used when the custody lock has not been released
	// yet by the external leg
	ErrLockStillHeld = errors.New("custody lock still held")
	// ErrAlreadyLocked is used when locking an already locked custody
	ErrAlreadyLocked = errors.New("custody already locked")
	// ErrNotLocked is used when unlocking a custody that holds nothing
	ErrNotLocked = errors.New("custody not locked")
	// ErrWithdrawingBatchExists is used when parking a batch while another
	// one is still outstanding
	ErrWithdrawingBatchExists = errors.New("a withdrawing batch is already outstanding")
	// ErrNoWithdrawingBatch is used when finalizing with no outstanding
	// withdrawing batch
	ErrNoWithdrawingBatch = errors.New("no withdrawing batch outstanding")
	// ErrBatchNotFinalized is used when querying or redeeming a batch that
	// has not been finalized
	ErrBatchNotFinalized = errors.New("batch not finalized")
	// ErrCollectedDecrease is used when a finalize call would decrease the
	// collected amount of the withdrawing batch
	ErrCollectedDecrease = errors.New("collected amount can not decrease")
	// ErrFeePeriodNotElapsed is used when collecting fees before the period
	ErrFeePeriodNotElapsed = errors.New("fee collection period not elapsed")
	// ErrBatchStillRedeemable is used when sweeping dust of a batch with
	// outstanding receipts
	ErrBatchStillRedeemable = errors.New("batch still has outstanding receipts")
)

// Freshness errors
var (
	// ErrExchangeRateStale is used when the oracle data is older than the
	// staleness threshold
	ErrExchangeRateStale = errors.New("exchange rate is stale")
)

// Economic and arithmetic errors
var (
	// ErrZeroAmount is used when an amount must be positive
	ErrZeroAmount = errors.New("amount is zero")
	// ErrInvalidRate is used when the oracle reports a zero rate
	ErrInvalidRate = errors.New("invalid exchange rate")
	// ErrCapExceeded is used when a deposit would exceed the deposit cap
	ErrCapExceeded = errors.New("deposit cap exceeded")
	// ErrFeeOutOfRange is used when a cost or percentage is outside [0, 1e18)
	ErrFeeOutOfRange = errors.New("fee percentage out of range")
	// ErrSlippage is used when the minted amount is below the minimum
	// requested by the caller
	ErrSlippage = errors.New("slippage")
	// ErrRateNotIncreased is used when the exchange rate did not grow since
	// the last fee collection
	ErrRateNotIncreased = errors.New("exchange rate not increased")
	// ErrInsufficientBalance is used when a transfer or burn exceeds the
	// balance of the sender
	ErrInsufficientBalance = errors.New("insufficient balance")
)

// Redemption errors
var (
	// ErrRedemptionTokenSupplyIsZero is used when a batch receipt has no
	// outstanding supply
	ErrRedemptionTokenSupplyIsZero = errors.New("redemption token supply is zero")
	// ErrMultiBatchRedemption is used when several batch ids are redeemed in
	// a single call
	ErrMultiBatchRedemption = errors.New("multi batch redemption not supported")
)

// SlippageError reports both the requested minimum and the actual amount
type SlippageError struct {
	MinOut *big.Int
	Actual *big.Int
}

func (e *SlippageError) Error() string {
	return fmt.Sprintf("%v: minOut %v, actual %v", ErrSlippage, e.MinOut, e.Actual)
}

// Is makes errors.Is(err, ErrSlippage) true
func (e *SlippageError) Is(target error) bool {
	return target == ErrSlippage
}

// RateNotIncreasedError reports both the last and the current rate
type RateNotIncreasedError struct {
	Last    *big.Int
	Current *big.Int
}

func (e *RateNotIncreasedError) Error() string {
	return fmt.Sprintf("%v: last %v, current %v", ErrRateNotIncreased, e.Last, e.Current)
}

// Is makes errors.Is(err, ErrRateNotIncreased) true
func (e *RateNotIncreasedError) Is(target error) bool {
	return target == ErrRateNotIncreased
}
