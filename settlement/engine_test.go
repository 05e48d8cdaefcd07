package settlement

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
	owner       = ethCommon.HexToAddress("0x01")
	operator    = ethCommon.HexToAddress("0x02")
	custodian   = ethCommon.HexToAddress("0x03")
	alice       = ethCommon.HexToAddress("0x04")
	mallory     = ethCommon.HexToAddress("0x05")
	engineAddr  = ethCommon.HexToAddress("0xe0")
	managerAddr = ethCommon.HexToAddress("0xe1")
	collector   = ethCommon.HexToAddress("0xe2")
	lockAddr    = ethCommon.HexToAddress("0xe5")
)

// pct returns basis points in 1e18 fixed point
func pct(bp int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(bp), big.NewInt(1e14))
}

func e18(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), common.E18)
}

type world struct {
	j      *journal.Journal
	l      *ledger.Ledger
	a      *auth.Authorizer
	oracle *eth.StaticOracle
	e      *Engine
	events []common.Event
}

func newWorld(t *testing.T, depositCost, withdrawalCost *big.Int) *world {
	j := journal.NewJournal()
	l := ledger.NewLedger(j, ledger.Config{
		AssetDecimals:     8,
		SyntheticDecimals: 8,
		CustodyLock:       lockAddr,
		Beneficiary:       managerAddr,
		Allowlist:         []ethCommon.Address{alice},
	})
	a := auth.NewAuthorizer(j, owner, l.Allowlist)
	a.SetupOperator(operator)
	a.SetupLockRole(engineAddr)
	a.SetupLockRole(custodian)
	l.SetAuthority(a)
	oracle := eth.NewStaticOracle(e18(2), e18(2), big.NewInt(0), 18)
	e, err := NewEngine(j, a, l.Client(oracle), Config{
		Address:           engineAddr,
		RedemptionManager: managerAddr,
		Params: Params{
			DepositCost:      depositCost,
			WithdrawalCost:   withdrawalCost,
			StaleThreshold:   time.Hour,
			DepositForwarder: custodian,
			FeeCollector:     collector,
		},
	})
	require.NoError(t, err)
	w := &world{j: j, l: l, a: a, oracle: oracle, e: e}
	j.OnCommit(func(events []common.Event) error {
		w.events = append(w.events, events...)
		return nil
	})
	return w
}

func (w *world) mintSynthetic(t *testing.T, to ethCommon.Address, amount int64) {
	require.NoError(t, w.j.Atomic(func() error {
		return w.l.Synthetic.Mint(to, big.NewInt(amount))
	}))
}

// states returns the encoded state of every component
func (w *world) states(t *testing.T) map[string]string {
	var (
		encoded map[string][]byte
		err     error
	)
	w.j.Read(func() { encoded, err = w.j.EncodeStates() })
	require.NoError(t, err)
	states := make(map[string]string, len(encoded))
	for name, b := range encoded {
		states[name] = string(b)
	}
	return states
}

func (w *world) balance(addr ethCommon.Address) string {
	return w.l.Asset.BalanceOf(addr).String()
}

func TestNewEngineInvalidParams(t *testing.T) {
	j := journal.NewJournal()
	l := ledger.NewLedger(j, ledger.Config{AssetDecimals: 8, SyntheticDecimals: 8})
	oracle := eth.NewStaticOracle(common.E18, common.E18, big.NewInt(0), 8)
	_, err := NewEngine(j, nil, l.Client(oracle), Config{
		Params: Params{DepositCost: common.E18, StaleThreshold: time.Hour},
	})
	assert.True(t, common.IsErr(err, common.ErrFeeOutOfRange))
	_, err = NewEngine(j, nil, l.Client(oracle), Config{})
	assert.Error(t, err)
}

func TestDeposit(t *testing.T) {
	ctx := context.Background()
	w := newWorld(t, pct(200), big.NewInt(0))
	require.NoError(t, w.l.Fund(alice, big.NewInt(300000000)))

	minted, err := w.e.Deposit(ctx, alice, big.NewInt(100000000), alice, big.NewInt(49000000))
	require.NoError(t, err)
	assert.Equal(t, "49000000", minted.String())
	assert.Equal(t, "49000000", w.l.Synthetic.BalanceOf(alice).String())
	assert.Equal(t, "100000000", w.balance(engineAddr))
	assert.Equal(t, "200000000", w.balance(alice))
	require.Len(t, w.events, 1)
	assert.Equal(t, common.EventDeposit, w.events[0].Type)
	assert.Equal(t, "49000000", w.events[0].AuxAmount.String())

	// Slippage reports both values and leaves nothing behind
	_, err = w.e.Deposit(ctx, alice, big.NewInt(100000000), alice, big.NewInt(49000001))
	require.Error(t, err)
	var slippage *common.SlippageError
	require.True(t, errors.As(tracerr.Unwrap(err), &slippage))
	assert.Equal(t, "49000001", slippage.MinOut.String())
	assert.Equal(t, "49000000", slippage.Actual.String())
	assert.True(t, common.IsErr(err, common.ErrSlippage))
	assert.Equal(t, "200000000", w.balance(alice))

	// Recipient must be allowlisted
	_, err = w.e.Deposit(ctx, alice, big.NewInt(100), mallory, nil)
	assert.True(t, common.IsErr(err, common.ErrNotAllowlisted))

	_, err = w.e.Deposit(ctx, alice, big.NewInt(0), alice, nil)
	assert.True(t, common.IsErr(err, common.ErrZeroAmount))

	// Mint rounds down to zero
	_, err = w.e.Deposit(ctx, alice, big.NewInt(1), alice, nil)
	assert.True(t, common.IsErr(err, common.ErrZeroAmount))

	// Caller without funds: the mint is rolled back with the transfer
	_, err = w.e.Deposit(ctx, mallory, big.NewInt(100), alice, nil)
	assert.True(t, common.IsErr(err, common.ErrInsufficientBalance))
	assert.Equal(t, "49000000", w.l.Synthetic.TotalSupply().String())

	w.oracle.SetRate(big.NewInt(0))
	_, err = w.e.Deposit(ctx, alice, big.NewInt(100), alice, nil)
	assert.True(t, common.IsErr(err, common.ErrInvalidRate))
	assert.Len(t, w.events, 1)
}

func TestDepositStaleRate(t *testing.T) {
	ctx := context.Background()
	w := newWorld(t, big.NewInt(0), big.NewInt(0))
	require.NoError(t, w.l.Fund(alice, big.NewInt(1000)))
	now := time.Now()
	w.j.SetTimeNow(func() time.Time { return now })

	w.oracle.SetPublishedAt(now.Add(-time.Hour))
	_, err := w.e.Deposit(ctx, alice, big.NewInt(100), alice, nil)
	assert.True(t, common.IsErr(err, common.ErrExchangeRateStale))

	w.oracle.SetPublishedAt(now.Add(-time.Hour + time.Second))
	_, err = w.e.Deposit(ctx, alice, big.NewInt(100), alice, nil)
	assert.NoError(t, err)
}

func TestDepositCap(t *testing.T) {
	ctx := context.Background()
	w := newWorld(t, big.NewInt(0), big.NewInt(0))
	require.NoError(t, w.l.Fund(alice, big.NewInt(200000000)))
	require.NoError(t, w.e.SetDepositCap(owner, big.NewInt(150000000), true))

	// 1 unit at 18 decimals is 1e8 at the 8 decimals of the asset
	w.oracle.SetAum(e18(1), 18)
	_, err := w.e.Deposit(ctx, alice, big.NewInt(60000000), alice, nil)
	assert.True(t, common.IsErr(err, common.ErrCapExceeded))
	_, err = w.e.Deposit(ctx, alice, big.NewInt(50000000), alice, nil)
	assert.NoError(t, err)

	w.oracle.SetAum(big.NewInt(-1), 18)
	_, err = w.e.Deposit(ctx, alice, big.NewInt(1), alice, nil)
	assert.True(t, common.IsErr(err, common.ErrCapExceeded))

	// 4 decimals scale up to 8
	w.oracle.SetAum(big.NewInt(15000), 4)
	_, err = w.e.Deposit(ctx, alice, big.NewInt(1), alice, nil)
	assert.True(t, common.IsErr(err, common.ErrCapExceeded))

	require.NoError(t, w.e.SetDepositCap(owner, big.NewInt(0), false))
	_, err = w.e.Deposit(ctx, alice, big.NewInt(1000), alice, nil)
	assert.NoError(t, err)
}

func TestWithdraw(t *testing.T) {
	w := newWorld(t, big.NewInt(0), big.NewInt(0))
	w.mintSynthetic(t, alice, 1000)
	w.mintSynthetic(t, mallory, 1000)

	batchID, err := w.e.Withdraw(alice, big.NewInt(400))
	require.NoError(t, err)
	assert.Equal(t, common.BatchID(0), batchID)
	_, err = w.e.Withdraw(alice, big.NewInt(100))
	require.NoError(t, err)
	assert.Equal(t, "500", w.e.ActiveBatch().BurnedAmount.String())
	assert.Equal(t, "500", w.l.Synthetic.BalanceOf(alice).String())
	assert.Equal(t, "500", w.l.Receipt.BalanceOf(alice, 0).String())

	_, err = w.e.Withdraw(mallory, big.NewInt(100))
	assert.True(t, common.IsErr(err, common.ErrNotAllowlisted))
	_, err = w.e.Withdraw(alice, big.NewInt(0))
	assert.True(t, common.IsErr(err, common.ErrZeroAmount))

	// Burning more than the balance rolls the batch total back
	_, err = w.e.Withdraw(alice, big.NewInt(501))
	assert.True(t, common.IsErr(err, common.ErrInsufficientBalance))
	assert.Equal(t, "500", w.e.ActiveBatch().BurnedAmount.String())
	assert.Equal(t, "500", w.l.Receipt.TotalSupply(0).String())
}

func TestPaused(t *testing.T) {
	ctx := context.Background()
	w := newWorld(t, big.NewInt(0), big.NewInt(0))
	require.NoError(t, w.l.Fund(alice, big.NewInt(1000)))
	w.mintSynthetic(t, alice, 1000)

	assert.True(t, common.IsErr(w.e.SetPaused(operator, true), common.ErrUnauthorized))
	require.NoError(t, w.e.SetPaused(owner, true))
	_, err := w.e.Deposit(ctx, alice, big.NewInt(100), alice, nil)
	assert.True(t, common.IsErr(err, common.ErrPaused))
	_, err = w.e.Withdraw(alice, big.NewInt(100))
	assert.True(t, common.IsErr(err, common.ErrPaused))
	_, err = w.e.Tick(ctx, operator)
	assert.True(t, common.IsErr(err, common.ErrPaused))

	require.NoError(t, w.e.SetPaused(owner, false))
	_, err = w.e.Deposit(ctx, alice, big.NewInt(100), alice, nil)
	assert.NoError(t, err)
}

func TestTickNoop(t *testing.T) {
	ctx := context.Background()
	w := newWorld(t, big.NewInt(0), big.NewInt(0))

	_, err := w.e.Tick(ctx, alice)
	assert.True(t, common.IsErr(err, common.ErrUnauthorized))

	before := w.states(t)
	finalized, err := w.e.Tick(ctx, operator)
	require.NoError(t, err)
	assert.False(t, finalized)
	assert.Equal(t, common.StateIdle, w.e.CurrentState())
	assert.Empty(t, w.events)
	assert.Equal(t, before, w.states(t))
}

func TestTickDepositLegs(t *testing.T) {
	ctx := context.Background()
	w := newWorld(t, big.NewInt(0), big.NewInt(0))
	require.NoError(t, w.l.Fund(alice, big.NewInt(1000)))
	_, err := w.e.Deposit(ctx, alice, big.NewInt(1000), alice, nil)
	require.NoError(t, err)

	_, err = w.e.Tick(ctx, owner)
	require.NoError(t, err)
	assert.Equal(t, common.StateDepositLeg1, w.e.CurrentState())
	assert.Equal(t, "1000", w.l.CustodyLock.LockedAmount().String())
	assert.Equal(t, "0", w.balance(engineAddr))
	assert.Equal(t, "1000", w.balance(custodian))

	// The external leg has not confirmed yet
	_, err = w.e.Tick(ctx, operator)
	assert.True(t, common.IsErr(err, common.ErrLockStillHeld))
	assert.Equal(t, common.StateDepositLeg1, w.e.CurrentState())

	_, err = w.l.ReleaseCustody(custodian)
	require.NoError(t, err)
	for _, next := range []common.ContractState{common.StateDepositLeg2,
		common.StateDepositLeg3, common.StateIdle} {
		finalized, err := w.e.Tick(ctx, operator)
		require.NoError(t, err)
		assert.False(t, finalized)
		assert.Equal(t, next, w.e.CurrentState())
	}
}

func TestTickCoveredBatch(t *testing.T) {
	ctx := context.Background()
	w := newWorld(t, pct(100), pct(50))
	require.NoError(t, w.l.Fund(engineAddr, big.NewInt(10000000)))
	w.mintSynthetic(t, alice, 2500000)
	_, err := w.e.Withdraw(alice, big.NewInt(2500000))
	require.NoError(t, err)

	finalized, err := w.e.Tick(ctx, operator)
	require.NoError(t, err)
	assert.True(t, finalized)
	assert.Equal(t, common.StateIdle, w.e.CurrentState())
	assert.Equal(t, "4975000", w.balance(managerAddr))
	assert.Equal(t, "75506", w.balance(collector))
	assert.Equal(t, "4949494", w.balance(engineAddr))

	batch, err := w.e.FinalizedBatch(0)
	require.NoError(t, err)
	assert.Equal(t, "5000000", batch.RequestedAmount.String())
	assert.Equal(t, "4975000", batch.CollectedAmount.String())
	assert.Equal(t, "2500000", batch.BurnedAmount.String())
	assert.Equal(t, common.BatchID(1), w.e.ActiveBatch().BatchID)
	_, ok := w.e.WithdrawingBatch()
	assert.False(t, ok)

	// The leftover balance goes to custody on the next tick
	_, err = w.e.Tick(ctx, operator)
	require.NoError(t, err)
	assert.Equal(t, common.StateDepositLeg1, w.e.CurrentState())
}

func TestTickPartialBatch(t *testing.T) {
	ctx := context.Background()
	w := newWorld(t, pct(100), pct(50))
	require.NoError(t, w.l.Fund(engineAddr, big.NewInt(3000000)))
	require.NoError(t, w.l.Fund(custodian, big.NewInt(2044850)))
	w.mintSynthetic(t, alice, 2500000)
	_, err := w.e.Withdraw(alice, big.NewInt(2500000))
	require.NoError(t, err)

	finalized, err := w.e.Tick(ctx, operator)
	require.NoError(t, err)
	assert.False(t, finalized)
	assert.Equal(t, common.StateWithdrawLeg1, w.e.CurrentState())
	assert.Equal(t, "2955150", w.balance(managerAddr))
	assert.Equal(t, "44850", w.balance(collector))
	assert.Equal(t, "0", w.balance(engineAddr))
	withdrawing, ok := w.e.WithdrawingBatch()
	require.True(t, ok)
	assert.Equal(t, "2955150", withdrawing.CollectedAmount.String())
	assert.Equal(t, "5000000", withdrawing.RequestedAmount.String())
	assert.Equal(t, common.BatchID(1), w.e.ActiveBatch().BatchID)

	_, err = w.e.Tick(ctx, operator)
	require.NoError(t, err)
	assert.Equal(t, common.StateWithdrawLeg2, w.e.CurrentState())

	require.NoError(t, w.l.ReturnCustody(custodian, big.NewInt(2044850)))
	_, err = w.e.Tick(ctx, operator)
	require.NoError(t, err)
	assert.Equal(t, common.StateWithdrawLeg3, w.e.CurrentState())
	assert.Equal(t, "0", w.l.CustodyLock.LockedAmount().String())
	assert.Equal(t, "5000000", w.balance(managerAddr))

	finalized, err = w.e.Tick(ctx, operator)
	require.NoError(t, err)
	assert.True(t, finalized)
	assert.Equal(t, common.StateIdle, w.e.CurrentState())
	batch, err := w.e.FinalizedBatch(0)
	require.NoError(t, err)
	assert.Equal(t, "5000000", batch.CollectedAmount.String())
}

func TestTickCollectFailureReverts(t *testing.T) {
	ctx := context.Background()
	w := newWorld(t, big.NewInt(0), big.NewInt(0))
	w.mintSynthetic(t, alice, 100)
	_, err := w.e.Withdraw(alice, big.NewInt(100))
	require.NoError(t, err)
	for i := 0; i < 2; i++ {
		_, err = w.e.Tick(ctx, operator)
		require.NoError(t, err)
	}
	assert.Equal(t, common.StateWithdrawLeg2, w.e.CurrentState())

	// Locked without the funds being held by the lock
	require.NoError(t, w.j.Atomic(func() error {
		return w.l.CustodyLock.Lock(custodian, big.NewInt(100))
	}))
	_, err = w.e.Tick(ctx, operator)
	assert.True(t, common.IsErr(err, common.ErrInsufficientBalance))
	assert.Equal(t, common.StateWithdrawLeg2, w.e.CurrentState())
	withdrawing, ok := w.e.WithdrawingBatch()
	require.True(t, ok)
	assert.Equal(t, "0", withdrawing.CollectedAmount.String())
	assert.Equal(t, "100", w.l.CustodyLock.LockedAmount().String())
}

func TestFinalizeWithdrawingBatch(t *testing.T) {
	ctx := context.Background()
	w := newWorld(t, pct(100), pct(50))
	require.NoError(t, w.l.Fund(engineAddr, big.NewInt(3000000)))
	w.mintSynthetic(t, alice, 2500000)
	_, err := w.e.Withdraw(alice, big.NewInt(2500000))
	require.NoError(t, err)

	err = w.e.FinalizeWithdrawingBatch(operator, big.NewInt(5000000))
	assert.True(t, common.IsErr(err, common.ErrNoWithdrawingBatch))

	_, err = w.e.Tick(ctx, operator)
	require.NoError(t, err)

	err = w.e.FinalizeWithdrawingBatch(alice, big.NewInt(5000000))
	assert.True(t, common.IsErr(err, common.ErrUnauthorized))
	err = w.e.FinalizeWithdrawingBatch(operator, big.NewInt(2955149))
	assert.True(t, common.IsErr(err, common.ErrCollectedDecrease))

	// The engine does not hold the top up yet
	err = w.e.FinalizeWithdrawingBatch(operator, big.NewInt(5000000))
	assert.True(t, common.IsErr(err, common.ErrInsufficientBalance))
	_, ok := w.e.WithdrawingBatch()
	assert.True(t, ok)

	require.NoError(t, w.l.Fund(engineAddr, big.NewInt(2044850)))
	require.NoError(t, w.e.FinalizeWithdrawingBatch(operator, big.NewInt(5000000)))
	assert.Equal(t, "5000000", w.balance(managerAddr))
	_, ok = w.e.WithdrawingBatch()
	assert.False(t, ok)
	batch, err := w.e.FinalizedBatch(0)
	require.NoError(t, err)
	assert.Equal(t, "5000000", batch.CollectedAmount.String())

	// The legs complete without a batch to finalize
	for _, next := range []common.ContractState{common.StateWithdrawLeg2,
		common.StateWithdrawLeg3, common.StateIdle} {
		finalized, err := w.e.Tick(ctx, operator)
		require.NoError(t, err)
		assert.False(t, finalized)
		assert.Equal(t, next, w.e.CurrentState())
	}
}

func TestCustodyReturnedAfterFinalize(t *testing.T) {
	ctx := context.Background()
	w := newWorld(t, pct(100), pct(50))
	require.NoError(t, w.l.Fund(engineAddr, big.NewInt(3000000)))
	require.NoError(t, w.l.Fund(custodian, big.NewInt(2044850)))
	w.mintSynthetic(t, alice, 2500000)
	_, err := w.e.Withdraw(alice, big.NewInt(2500000))
	require.NoError(t, err)
	_, err = w.e.Tick(ctx, operator)
	require.NoError(t, err)
	assert.Equal(t, common.StateWithdrawLeg1, w.e.CurrentState())

	// The batch is finalized out of band and the external leg delivers later
	require.NoError(t, w.l.Fund(engineAddr, big.NewInt(2044850)))
	status, err := w.e.FinalizeWithdrawingBatchStatus(operator, big.NewInt(5000000))
	require.NoError(t, err)
	assert.Equal(t, 1, status.FinalizedCount)
	assert.Equal(t, common.StateWithdrawLeg1, status.State)
	assert.Nil(t, status.WithdrawingBatch)
	require.NoError(t, w.l.ReturnCustody(custodian, big.NewInt(2044850)))

	_, err = w.e.Tick(ctx, operator)
	require.NoError(t, err)
	assert.Equal(t, common.StateWithdrawLeg2, w.e.CurrentState())
	w.events = nil
	_, err = w.e.Tick(ctx, operator)
	require.NoError(t, err)
	assert.Equal(t, common.StateWithdrawLeg3, w.e.CurrentState())
	// unlocked to the redemption manager, unassigned to the finalized batch
	assert.Equal(t, "0", w.l.CustodyLock.LockedAmount().String())
	assert.Equal(t, "0", w.balance(lockAddr))
	assert.Equal(t, "7044850", w.balance(managerAddr))
	batch, err := w.e.FinalizedBatch(0)
	require.NoError(t, err)
	assert.Equal(t, "5000000", batch.CollectedAmount.String())
	require.Len(t, w.events, 2)
	assert.Equal(t, common.EventCustodyUnlocked, w.events[0].Type)
	assert.Equal(t, "2044850", w.events[0].Amount.String())

	finalized, status, err := w.e.TickStatus(ctx, operator)
	require.NoError(t, err)
	assert.False(t, finalized)
	assert.Equal(t, common.StateIdle, status.State)

	// deposits are forwarded to custody again
	require.NoError(t, w.l.Fund(engineAddr, big.NewInt(10)))
	_, err = w.e.Tick(ctx, operator)
	require.NoError(t, err)
	assert.Equal(t, common.StateDepositLeg1, w.e.CurrentState())
	assert.Equal(t, "10", w.l.CustodyLock.LockedAmount().String())
}

func TestParkWithOutstandingBatch(t *testing.T) {
	ctx := context.Background()
	w := newWorld(t, big.NewInt(0), big.NewInt(0))
	w.mintSynthetic(t, alice, 200)
	_, err := w.e.Withdraw(alice, big.NewInt(100))
	require.NoError(t, err)
	_, err = w.e.Tick(ctx, operator)
	require.NoError(t, err)
	_, ok := w.e.WithdrawingBatch()
	require.True(t, ok)
	_, err = w.e.Withdraw(alice, big.NewInt(100))
	require.NoError(t, err)

	// a restored state in Idle that still holds a withdrawing batch
	require.NoError(t, w.j.Atomic(func() error {
		w.e.st.State = common.StateIdle
		return nil
	}))
	before := w.states(t)
	w.events = nil

	_, err = w.e.Tick(ctx, operator)
	assert.True(t, common.IsErr(err, common.ErrWithdrawingBatchExists))
	assert.Equal(t, before, w.states(t))

	// the engine refuses to park even if asked to
	err = w.j.Atomic(func() error {
		obs, err := w.e.observe(ctx)
		if err != nil {
			return err
		}
		return w.e.execute(plan{Next: common.StateWithdrawLeg1, Action: actionParkBatch}, obs)
	})
	assert.True(t, common.IsErr(err, common.ErrWithdrawingBatchExists))
	assert.Equal(t, before, w.states(t))
	assert.Empty(t, w.events)
}

func TestFinalizedBatchesPagination(t *testing.T) {
	ctx := context.Background()
	w := newWorld(t, big.NewInt(0), big.NewInt(0))
	w.oracle.SetRate(common.E18)
	const n = 105
	require.NoError(t, w.l.Fund(engineAddr, big.NewInt(1000)))
	w.mintSynthetic(t, alice, n)
	for i := 0; i < n; i++ {
		_, err := w.e.Withdraw(alice, big.NewInt(1))
		require.NoError(t, err)
		finalized, err := w.e.Tick(ctx, operator)
		require.NoError(t, err)
		require.True(t, finalized)
	}

	batches, total := w.e.FinalizedBatches(0, 0)
	assert.Equal(t, n, total)
	require.Len(t, batches, DefaultFinalizedLimit)
	assert.Equal(t, common.BatchID(0), batches[0].BatchID)

	batches, _ = w.e.FinalizedBatches(0, 1000)
	assert.Len(t, batches, MaxFinalizedLimit)

	batches, _ = w.e.FinalizedBatches(100, 10)
	require.Len(t, batches, 5)
	assert.Equal(t, common.BatchID(104), batches[4].BatchID)

	batches, _ = w.e.FinalizedBatches(n, 10)
	assert.Empty(t, batches)

	_, err := w.e.FinalizedBatch(n)
	assert.True(t, common.IsErr(err, common.ErrBatchNotFinalized))
}

func TestAdminSetters(t *testing.T) {
	w := newWorld(t, big.NewInt(0), big.NewInt(0))

	assert.True(t, common.IsErr(w.e.SetDepositCost(owner, common.E18), common.ErrFeeOutOfRange))
	assert.True(t, common.IsErr(w.e.SetWithdrawalCost(owner, big.NewInt(-1)), common.ErrFeeOutOfRange))
	assert.True(t, common.IsErr(w.e.SetDepositCost(operator, pct(1)), common.ErrUnauthorized))
	require.NoError(t, w.e.SetDepositCost(owner, pct(1)))
	require.NoError(t, w.e.SetWithdrawalCost(owner, pct(2)))
	require.NoError(t, w.e.SetStaleThreshold(owner, time.Minute))
	require.NoError(t, w.e.SetDepositForwarder(owner, mallory))
	require.NoError(t, w.e.SetFeeCollector(owner, mallory))

	s := w.e.Status()
	assert.Equal(t, pct(1).String(), s.Params.DepositCost.String())
	assert.Equal(t, pct(2).String(), s.Params.WithdrawalCost.String())
	assert.Equal(t, time.Minute, s.Params.StaleThreshold)
	assert.Equal(t, mallory, s.Params.DepositForwarder)
	assert.Equal(t, mallory, s.Params.FeeCollector)
}
