package feeaccrual

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	ethCommon "github.com/ethereum/go-ethereum/common"
	"github.com/hermeznetwork/tracerr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vaultbridge/vaultbridge-node/auth"
	"github.com/vaultbridge/vaultbridge-node/common"
	"github.com/vaultbridge/vaultbridge-node/eth"
	"github.com/vaultbridge/vaultbridge-node/journal"
	"github.com/vaultbridge/vaultbridge-node/ledger"
)

var (
	owner    = ethCommon.HexToAddress("0x01")
	operator = ethCommon.HexToAddress("0x02")
	alice    = ethCommon.HexToAddress("0x04")
	treasury = ethCommon.HexToAddress("0x07")
	feeAddr  = ethCommon.HexToAddress("0xe3")
)

func bigFromString(t *testing.T, s string) *big.Int {
	v, ok := new(big.Int).SetString(s, 10)
	require.True(t, ok)
	return v
}

type world struct {
	j      *journal.Journal
	l      *ledger.Ledger
	oracle *eth.StaticOracle
	f      *FeeAccrual
	now    time.Time
}

func newWorld(t *testing.T) *world {
	w := &world{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	j := journal.NewJournal()
	j.SetTimeNow(func() time.Time { return w.now })
	l := ledger.NewLedger(j, ledger.Config{AssetDecimals: 18, SyntheticDecimals: 18})
	a := auth.NewAuthorizer(j, owner, l.Allowlist)
	a.SetupOperator(operator)
	l.SetAuthority(a)
	oracle := eth.NewStaticOracle(common.E18, common.E18, big.NewInt(0), 18)
	oracle.SetTimeNow(func() time.Time { return w.now })
	f, err := NewFeeAccrual(j, a, l.Client(oracle), Config{
		Address:         feeAddr,
		Period:          24 * time.Hour,
		FeeReductionPct: big.NewInt(1e17),
		InitialRate:     common.E18,
		StaleThreshold:  time.Hour,
	})
	require.NoError(t, err)
	supply := new(big.Int).Mul(big.NewInt(1000), common.E18)
	require.NoError(t, j.Atomic(func() error { return l.Synthetic.Mint(alice, supply) }))
	w.j, w.l, w.oracle, w.f = j, l, oracle, f
	return w
}

func TestCollectFee(t *testing.T) {
	ctx := context.Background()
	w := newWorld(t)
	w.oracle.SetRate(bigFromString(t, "1100000000000000000"))

	_, err := w.f.CollectFee(ctx, alice)
	assert.True(t, common.IsErr(err, common.ErrUnauthorized))

	// The period has not elapsed since creation
	_, err = w.f.CollectFee(ctx, operator)
	assert.True(t, common.IsErr(err, common.ErrFeePeriodNotElapsed))

	w.now = w.now.Add(24 * time.Hour)
	fee, err := w.f.CollectFee(ctx, operator)
	require.NoError(t, err)
	assert.Equal(t, "9174311926605504000", fee.String())
	assert.Equal(t, "9174311926605504000", w.l.Synthetic.BalanceOf(feeAddr).String())

	s := w.f.Status()
	assert.Equal(t, "1100000000000000000", s.LastExchangeRate.String())
	assert.Equal(t, w.now, s.LastCollectionTimestamp)
	assert.Equal(t, fee.String(), s.Collected.String())
	assert.Equal(t, fee.String(), s.Unclaimed.String())

	_, err = w.f.CollectFee(ctx, operator)
	assert.True(t, common.IsErr(err, common.ErrFeePeriodNotElapsed))
}

func TestCollectFeeRateNotIncreased(t *testing.T) {
	ctx := context.Background()
	w := newWorld(t)
	w.now = w.now.Add(24 * time.Hour)

	_, err := w.f.CollectFee(ctx, operator)
	require.Error(t, err)
	var notIncreased *common.RateNotIncreasedError
	require.True(t, errors.As(tracerr.Unwrap(err), &notIncreased))
	assert.Equal(t, common.E18.String(), notIncreased.Last.String())
	assert.Equal(t, common.E18.String(), notIncreased.Current.String())

	w.oracle.SetRate(big.NewInt(9e17))
	_, err = w.f.CollectFee(ctx, operator)
	assert.True(t, common.IsErr(err, common.ErrRateNotIncreased))

	s := w.f.Status()
	assert.Equal(t, common.E18.String(), s.LastExchangeRate.String())
	assert.Equal(t, "0", s.Collected.String())
}

func TestCollectFeeZeroKeepsState(t *testing.T) {
	ctx := context.Background()
	w := newWorld(t)
	w.now = w.now.Add(24 * time.Hour)
	created := w.f.Status().LastCollectionTimestamp

	// Without a fee share the target rate is the current rate
	require.NoError(t, w.f.SetFeeReductionPct(owner, big.NewInt(0)))
	w.oracle.SetRate(bigFromString(t, "1100000000000000000"))
	fee, err := w.f.CollectFee(ctx, operator)
	require.NoError(t, err)
	assert.Equal(t, "0", fee.String())
	s := w.f.Status()
	assert.Equal(t, common.E18.String(), s.LastExchangeRate.String())
	assert.Equal(t, created, s.LastCollectionTimestamp)
}

func TestCollectFeeStaleRate(t *testing.T) {
	ctx := context.Background()
	w := newWorld(t)
	w.oracle.SetRate(bigFromString(t, "1100000000000000000"))
	w.oracle.SetPublishedAt(w.now)
	w.now = w.now.Add(24 * time.Hour)

	_, err := w.f.CollectFee(ctx, operator)
	assert.True(t, common.IsErr(err, common.ErrExchangeRateStale))
}

func TestClaimFees(t *testing.T) {
	ctx := context.Background()
	w := newWorld(t)
	w.oracle.SetRate(bigFromString(t, "1100000000000000000"))
	w.now = w.now.Add(24 * time.Hour)
	fee, err := w.f.CollectFee(ctx, operator)
	require.NoError(t, err)

	assert.True(t, common.IsErr(w.f.ClaimFees(operator, treasury, fee), common.ErrUnauthorized))
	tooMuch := new(big.Int).Add(fee, big.NewInt(1))
	assert.True(t, common.IsErr(w.f.ClaimFees(owner, treasury, tooMuch), common.ErrInsufficientBalance))
	require.NoError(t, w.f.ClaimFees(owner, treasury, fee))
	assert.Equal(t, fee.String(), w.l.Synthetic.BalanceOf(treasury).String())
	assert.Equal(t, "0", w.f.Status().Unclaimed.String())
}

func TestFeeSetters(t *testing.T) {
	w := newWorld(t)
	assert.True(t, common.IsErr(w.f.SetFeeReductionPct(owner, common.E18), common.ErrFeeOutOfRange))
	assert.True(t, common.IsErr(w.f.SetFeeReductionPct(operator, big.NewInt(1)), common.ErrUnauthorized))
	require.NoError(t, w.f.SetFeeReductionPct(owner, big.NewInt(2e17)))
	require.NoError(t, w.f.SetPeriod(owner, time.Hour))
	assert.Error(t, w.f.SetPeriod(owner, -time.Hour))
	s := w.f.Status()
	assert.Equal(t, "200000000000000000", s.FeeReductionPct.String())
	assert.Equal(t, time.Hour, s.Period)
}
