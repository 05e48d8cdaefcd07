package common

import (
	"math/big"

	"github.com/hermeznetwork/tracerr"
)

// ValidateFeePct checks that a 1e18 fixed point cost or percentage lies in
// [0, 1e18)
func ValidateFeePct(pct *big.Int) error {
	if pct == nil || pct.Sign() < 0 || pct.Cmp(E18) >= 0 {
		return tracerr.Wrap(ErrFeeOutOfRange)
	}
	return nil
}

// ApplyCost returns floor(amount * (1e18 - cost) / 1e18)
func ApplyCost(amount, cost *big.Int) *big.Int {
	return MulDiv(amount, OneMinus(cost), E18)
}

// DepositMintAmount returns the synthetic amount minted for a deposit of
// `amount` asset units at `rate` after charging `depositCost`.
// mint = floor(floor(amount * (1e18 - depositCost) / 1e18) * 1e18 / rate)
func DepositMintAmount(amount, rate, depositCost *big.Int) (*big.Int, error) {
	if !IsPositive(rate) {
		return nil, tracerr.Wrap(ErrInvalidRate)
	}
	net := ApplyCost(amount, depositCost)
	return MulDiv(net, E18, rate), nil
}

// RequestedAmount returns the asset amount owed for burned synthetic units,
// floor(burned * rate / 1e18)
func RequestedAmount(burned, rate *big.Int) *big.Int {
	return MulDiv(burned, rate, E18)
}

// GrossAmountNeeded returns the gross asset amount whose post deposit fee
// value equals `requested`. It rounds up so the protocol never under
// collects.
func GrossAmountNeeded(requested, depositCost *big.Int) *big.Int {
	return MulDivUp(requested, E18, OneMinus(depositCost))
}

// Settlement is the split of a withdrawal processing pass
type Settlement struct {
	Requested       *big.Int
	GrossNeeded     *big.Int
	OffsetGross     *big.Int
	AfterDepositFee *big.Int
	OffsetNet       *big.Int
	FeeSkim         *big.Int
	// Covered is true when the available balance covers GrossNeeded
	Covered bool
}

// ComputeSettlement splits `available` asset units against a batch of
// `burned` synthetic units at `rate`.
func ComputeSettlement(burned, rate, available, depositCost, withdrawalCost *big.Int) Settlement {
	requested := RequestedAmount(burned, rate)
	grossNeeded := GrossAmountNeeded(requested, depositCost)
	offsetGross := MinBigInt(grossNeeded, available)
	afterDepositFee := ApplyCost(offsetGross, depositCost)
	offsetNet := ApplyCost(afterDepositFee, withdrawalCost)
	return Settlement{
		Requested:       requested,
		GrossNeeded:     grossNeeded,
		OffsetGross:     offsetGross,
		AfterDepositFee: afterDepositFee,
		OffsetNet:       offsetNet,
		FeeSkim:         new(big.Int).Sub(offsetGross, offsetNet),
		Covered:         grossNeeded.Cmp(available) <= 0,
	}
}

// DilutionFee returns the amount of new supply that dilutes holders from
// `current` back to the fee adjusted target rate:
//
//	gain         = current - last
//	retainedGain = gain * (1e18 - feeReductionPct) / 1e18
//	targetRate   = last + retainedGain
//	ratio        = current * 1e18 / targetRate
//	mintFraction = max(0, ratio - 1e18)
//	feeToMint    = floor(mintFraction * totalSupply / 1e18)
func DilutionFee(last, current, feeReductionPct, totalSupply *big.Int) *big.Int {
	gain := new(big.Int).Sub(current, last)
	if gain.Sign() <= 0 {
		return big.NewInt(0)
	}
	retainedGain := ApplyCost(gain, feeReductionPct)
	targetRate := new(big.Int).Add(last, retainedGain)
	if targetRate.Sign() == 0 {
		return big.NewInt(0)
	}
	ratio := MulDiv(current, E18, targetRate)
	mintFraction := ratio.Sub(ratio, E18)
	if mintFraction.Sign() <= 0 {
		return big.NewInt(0)
	}
	return MulDiv(mintFraction, totalSupply, E18)
}

// RedemptionPayout returns floor(available * qty / supply)
func RedemptionPayout(collected, paid, qty, supply *big.Int) (*big.Int, error) {
	if supply.Sign() == 0 {
		return nil, tracerr.Wrap(ErrRedemptionTokenSupplyIsZero)
	}
	available := new(big.Int).Sub(collected, paid)
	if available.Sign() < 0 {
		available.SetInt64(0)
	}
	return MulDiv(available, qty, supply), nil
}
