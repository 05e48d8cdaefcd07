package historydb

import (
	"database/sql"
	"math/big"
	"os"
	"testing"
	"time"

	ethCommon "github.com/ethereum/go-ethereum/common"
	"github.com/hermeznetwork/tracerr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vaultbridge/vaultbridge-node/common"
	dbUtils "github.com/vaultbridge/vaultbridge-node/db"
	"github.com/vaultbridge/vaultbridge-node/log"
)

var (
	alice = ethCommon.HexToAddress("0x04")
	bob   = ethCommon.HexToAddress("0x06")
)

func TestMain(m *testing.M) {
	log.Init("debug", []string{"stdout"}, "")
	os.Exit(m.Run())
}

func newTestHistoryDB(t *testing.T) *HistoryDB {
	db, err := dbUtils.InitTestSQLDB()
	require.NoError(t, err)
	apiConnCon := dbUtils.NewAPIConnectionController(1, time.Second)
	return NewHistoryDB(db, db, apiConnCon)
}

func uintPtr(v uint) *uint { return &v }

func testEvents(start time.Time) []common.Event {
	return []common.Event{
		{Type: common.EventDeposit, Account: alice, Counterparty: alice,
			Amount: big.NewInt(100000000), AuxAmount: big.NewInt(49000000), Timestamp: start},
		{Type: common.EventWithdrawal, Account: bob, Amount: big.NewInt(2500000),
			Timestamp: start.Add(time.Second)},
		{Type: common.EventTransition, State: common.StateWithdrawLeg1,
			Timestamp: start.Add(2 * time.Second)},
		{Type: common.EventBatchFinalized, BatchID: 1, Amount: big.NewInt(4975000),
			AuxAmount: big.NewInt(5000000), Timestamp: start.Add(3 * time.Second)},
	}
}

func TestAddEvents(t *testing.T) {
	hdb := newTestHistoryDB(t)
	defer func() { assert.NoError(t, hdb.DB().Close()) }()
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, hdb.AddEvents(testEvents(start)))

	events, pending, err := hdb.GetEventsAPI(GetEventsAPIRequest{Order: dbUtils.OrderAsc})
	require.NoError(t, err)
	require.Len(t, events, 4)
	assert.Equal(t, uint64(0), pending)
	assert.Equal(t, common.EventDeposit, events[0].Type)
	assert.Equal(t, alice, events[0].Account)
	assert.Equal(t, "100000000", string(*events[0].Amount))
	assert.Equal(t, "49000000", string(*events[0].AuxAmount))
	assert.Nil(t, events[1].AuxAmount)
	assert.Equal(t, common.StateWithdrawLeg1, events[2].State)
	assert.Equal(t, common.BatchID(1), events[3].BatchID)
	assert.Equal(t, start.Add(3*time.Second), events[3].Timestamp)

	// Filters
	eventType := common.EventWithdrawal
	events, _, err = hdb.GetEventsAPI(GetEventsAPIRequest{Type: &eventType})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, bob, events[0].Account)

	events, _, err = hdb.GetEventsAPI(GetEventsAPIRequest{Account: &alice})
	require.NoError(t, err)
	assert.Len(t, events, 1)

	batchID := common.BatchID(1)
	events, _, err = hdb.GetEventsAPI(GetEventsAPIRequest{BatchID: &batchID})
	require.NoError(t, err)
	assert.Len(t, events, 1)

	// Pagination
	events, pending, err = hdb.GetEventsAPI(GetEventsAPIRequest{
		Limit: uintPtr(2), Order: dbUtils.OrderDesc})
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, uint64(2), pending)
	assert.Equal(t, common.EventBatchFinalized, events[0].Type)
	events, pending, err = hdb.GetEventsAPI(GetEventsAPIRequest{
		FromItem: uintPtr(uint(events[1].ItemID) - 1), Limit: uintPtr(2), Order: dbUtils.OrderDesc})
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, uint64(0), pending)
	assert.Equal(t, common.EventDeposit, events[1].Type)
}

func TestAddCommitAndFinalizedBatches(t *testing.T) {
	hdb := newTestHistoryDB(t)
	defer func() { assert.NoError(t, hdb.DB().Close()) }()
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		at := start.Add(time.Duration(i) * time.Minute)
		batch := common.NewBatch(common.BatchID(i), 8)
		batch.BurnedAmount = big.NewInt(int64(i + 1))
		batch.RequestedAmount = big.NewInt(int64(2 * (i + 1)))
		batch.CollectedAmount = big.NewInt(int64(2 * (i + 1)))
		events := []common.Event{{Type: common.EventBatchFinalized, BatchID: batch.BatchID, Timestamp: at}}
		require.NoError(t, hdb.AddCommit(events, []FinalizedBatch{NewFinalizedBatch(batch, at)}))
	}
	require.NoError(t, hdb.AddCommit(nil, nil))

	batch, err := hdb.GetFinalizedBatch(3)
	require.NoError(t, err)
	assert.Equal(t, "8", batch.CollectedAmount.String())
	assert.Equal(t, "4", batch.BurnedAmount.String())
	assert.Equal(t, uint8(8), batch.Batch().AssetDecimals)

	_, err = hdb.GetFinalizedBatch(7)
	assert.Equal(t, sql.ErrNoRows, tracerr.Unwrap(err))

	apiBatch, err := hdb.GetFinalizedBatchAPI(4)
	require.NoError(t, err)
	assert.Equal(t, "10", string(apiBatch.CollectedAmount))

	batches, pending, err := hdb.GetFinalizedBatchesAPI(GetFinalizedBatchesAPIRequest{
		Limit: uintPtr(2), Order: dbUtils.OrderAsc})
	require.NoError(t, err)
	require.Len(t, batches, 2)
	assert.Equal(t, uint64(3), pending)
	assert.Equal(t, common.BatchID(0), batches[0].BatchID)

	batches, pending, err = hdb.GetFinalizedBatchesAPI(GetFinalizedBatchesAPIRequest{
		FromItem: uintPtr(uint(batches[1].ItemID) + 1), Limit: uintPtr(10), Order: dbUtils.OrderAsc})
	require.NoError(t, err)
	require.Len(t, batches, 3)
	assert.Equal(t, uint64(0), pending)
	assert.Equal(t, common.BatchID(4), batches[2].BatchID)

	// A duplicated batch rolls back the whole commit
	dup := NewFinalizedBatch(common.NewBatch(0, 8), start)
	err = hdb.AddCommit([]common.Event{{Type: common.EventBatchFinalized, Timestamp: start}},
		[]FinalizedBatch{dup})
	assert.Error(t, err)
	events, _, err := hdb.GetEventsAPI(GetEventsAPIRequest{})
	require.NoError(t, err)
	assert.Len(t, events, 5)

	// Reset to the commit of batch 2
	require.NoError(t, hdb.Reset(start.Add(2*time.Minute)))
	all, err := hdb.GetAllFinalizedBatches()
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, common.BatchID(2), all[2].BatchID)
	last, err := hdb.GetLastEventTimestamp()
	require.NoError(t, err)
	assert.Equal(t, start.Add(2*time.Minute), *last)

	require.NoError(t, hdb.Wipe())
	all, err = hdb.GetAllFinalizedBatches()
	require.NoError(t, err)
	assert.Empty(t, all)
}

type testBatchSource map[common.BatchID]common.Batch

func (s testBatchSource) LookupFinalized(id common.BatchID) (common.Batch, error) {
	b, ok := s[id]
	if !ok {
		return common.Batch{}, tracerr.Wrap(common.ErrBatchNotFinalized)
	}
	return b, nil
}

func TestCommitHook(t *testing.T) {
	hdb := newTestHistoryDB(t)
	defer func() { assert.NoError(t, hdb.DB().Close()) }()
	at := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	batch := common.NewBatch(2, 8)
	batch.CollectedAmount = big.NewInt(77)
	hook := hdb.CommitHook(testBatchSource{2: batch})

	require.NoError(t, hook([]common.Event{
		{Type: common.EventTransition, State: common.StateWithdrawLeg3, Timestamp: at},
		{Type: common.EventBatchFinalized, BatchID: 2, Timestamp: at},
	}))
	stored, err := hdb.GetFinalizedBatch(2)
	require.NoError(t, err)
	assert.Equal(t, "77", stored.CollectedAmount.String())
	assert.Equal(t, at, stored.FinalizedAt)

	err = hook([]common.Event{{Type: common.EventBatchFinalized, BatchID: 9, Timestamp: at}})
	assert.True(t, common.IsErr(err, common.ErrBatchNotFinalized))
	events, _, err := hdb.GetEventsAPI(GetEventsAPIRequest{})
	require.NoError(t, err)
	assert.Len(t, events, 2)
}
