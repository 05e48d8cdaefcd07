/*
Package feeaccrual collects the protocol fee on the yield of the synthetic
token. The yield accrues outside of the protocol as a growing exchange rate,
so the fee is taken by minting new supply that dilutes holders back to the
fee adjusted rate. The minted supply is held at the FeeAccrual address until
the owner claims it.
*/
package feeaccrual

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

// Config is the configuration of a FeeAccrual
type Config struct {
	// Address holds the minted fees
	Address         ethCommon.Address
	Period          time.Duration
	FeeReductionPct *big.Int
	// InitialRate is the rate the first collection is measured against
	InitialRate    *big.Int
	StaleThreshold time.Duration
}

// State is the journaled state of a FeeAccrual
type State struct {
	LastCollectionTimestamp time.Time
	LastExchangeRate        *big.Int
	FeeReductionPct         *big.Int
	Period                  time.Duration
	// Collected is the total fee minted so far
	Collected *big.Int
}

// FeeAccrual mints the dilution fee
type FeeAccrual struct {
	j              *journal.Journal
	authority      Authority
	client         *eth.Client
	address        ethCommon.Address
	staleThreshold time.Duration
	st             *State
}

// NewFeeAccrual creates a FeeAccrual and registers it in the journal. The
// first collection is allowed one period after creation.
func NewFeeAccrual(j *journal.Journal, authority Authority, client *eth.Client,
	cfg Config) (*FeeAccrual, error) {
	if err := common.ValidateFeePct(cfg.FeeReductionPct); err != nil {
		return nil, tracerr.Wrap(err)
	}
	if !common.IsPositive(cfg.InitialRate) {
		return nil, tracerr.Wrap(common.ErrInvalidRate)
	}
	f := &FeeAccrual{
		j:              j,
		authority:      authority,
		client:         client,
		address:        cfg.Address,
		staleThreshold: cfg.StaleThreshold,
		st: &State{
			LastCollectionTimestamp: j.Now(),
			LastExchangeRate:        new(big.Int).Set(cfg.InitialRate),
			FeeReductionPct:         new(big.Int).Set(cfg.FeeReductionPct),
			Period:                  cfg.Period,
			Collected:               big.NewInt(0),
		},
	}
	j.Register(f)
	return f, nil
}

// Name implements journal.Component
func (f *FeeAccrual) Name() string { return "feeaccrual" }

// State implements journal.Component
func (f *FeeAccrual) State() interface{} { return f.st }

// SetState implements journal.Component
func (f *FeeAccrual) SetState(state interface{}) { f.st = state.(*State) }

// Address returns the account holding the minted fees
func (f *FeeAccrual) Address() ethCommon.Address {
	return f.address
}

// CollectFee mints the fee accrued since the last collection and returns it.
// A zero fee leaves the state unchanged so that the next call still measures
// the whole gain.
func (f *FeeAccrual) CollectFee(ctx context.Context, caller ethCommon.Address) (*big.Int, error) {
	var fee *big.Int
	err := f.j.Atomic(func() error {
		if err := f.authority.Require(caller, common.CapOperator); err != nil {
			return tracerr.Wrap(err)
		}
		now := f.j.Now()
		if next := f.st.LastCollectionTimestamp.Add(f.st.Period); now.Before(next) {
			return tracerr.Wrap(fmt.Errorf("%w: next collection at %v",
				common.ErrFeePeriodNotElapsed, next.UTC()))
		}
		current, publishedAt, err := f.client.Oracle.GetTwaer(ctx)
		if err != nil {
			return tracerr.Wrap(err)
		}
		if age := now.Sub(publishedAt); age >= f.staleThreshold {
			return tracerr.Wrap(fmt.Errorf("%w: published %v ago", common.ErrExchangeRateStale, age))
		}
		last := f.st.LastExchangeRate
		if current.Cmp(last) <= 0 {
			return tracerr.Wrap(&common.RateNotIncreasedError{
				Last:    new(big.Int).Set(last),
				Current: current,
			})
		}
		fee = common.DilutionFee(last, current, f.st.FeeReductionPct, f.client.Synthetic.TotalSupply())
		if fee.Sign() == 0 {
			return nil
		}
		if err := f.client.Synthetic.Mint(f.address, fee); err != nil {
			return tracerr.Wrap(err)
		}
		f.st.LastExchangeRate = current
		f.st.LastCollectionTimestamp = now
		f.st.Collected = new(big.Int).Add(f.st.Collected, fee)
		f.j.Emit(common.Event{
			Type:      common.EventFeeCollected,
			Account:   f.address,
			Amount:    new(big.Int).Set(fee),
			AuxAmount: new(big.Int).Set(current),
		})
		log.Infow("feeaccrual: fee collected", "fee", fee, "rate", current)
		return nil
	})
	if err != nil {
		return nil, tracerr.Wrap(err)
	}
	return fee, nil
}

// ClaimFees transfers amount of the collected fees to `to`
func (f *FeeAccrual) ClaimFees(caller, to ethCommon.Address, amount *big.Int) error {
	return f.j.Atomic(func() error {
		if err := f.authority.Require(caller, common.CapOwner); err != nil {
			return tracerr.Wrap(err)
		}
		if !common.IsPositive(amount) {
			return tracerr.Wrap(common.ErrZeroAmount)
		}
		if err := f.client.Synthetic.Transfer(f.address, to, amount); err != nil {
			return tracerr.Wrap(err)
		}
		f.j.Emit(common.Event{
			Type:         common.EventFeeClaimed,
			Account:      f.address,
			Counterparty: to,
			Amount:       new(big.Int).Set(amount),
		})
		return nil
	})
}

// SetFeeReductionPct sets the share of the gain taken as fee
func (f *FeeAccrual) SetFeeReductionPct(caller ethCommon.Address, pct *big.Int) error {
	return f.j.Atomic(func() error {
		if err := f.authority.Require(caller, common.CapOwner); err != nil {
			return tracerr.Wrap(err)
		}
		if err := common.ValidateFeePct(pct); err != nil {
			return tracerr.Wrap(err)
		}
		f.st.FeeReductionPct = new(big.Int).Set(pct)
		return nil
	})
}

// SetPeriod sets the minimum time between collections
func (f *FeeAccrual) SetPeriod(caller ethCommon.Address, period time.Duration) error {
	return f.j.Atomic(func() error {
		if err := f.authority.Require(caller, common.CapOwner); err != nil {
			return tracerr.Wrap(err)
		}
		if period < 0 {
			return tracerr.Wrap(fmt.Errorf("negative fee period %v", period))
		}
		f.st.Period = period
		return nil
	})
}

// Status is a consistent view of a FeeAccrual
type Status struct {
	LastCollectionTimestamp time.Time
	LastExchangeRate        *big.Int
	FeeReductionPct         *big.Int
	Period                  time.Duration
	Collected               *big.Int
	Unclaimed               *big.Int
}

// Status returns the current fee state
func (f *FeeAccrual) Status() Status {
	var s Status
	f.j.Read(func() {
		s = Status{
			LastCollectionTimestamp: f.st.LastCollectionTimestamp,
			LastExchangeRate:        new(big.Int).Set(f.st.LastExchangeRate),
			FeeReductionPct:         new(big.Int).Set(f.st.FeeReductionPct),
			Period:                  f.st.Period,
			Collected:               new(big.Int).Set(f.st.Collected),
			Unclaimed:               f.client.Synthetic.BalanceOf(f.address),
		}
	})
	return s
}
