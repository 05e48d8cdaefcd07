package historydb

import (
	"fmt"

	ethCommon "github.com/ethereum/go-ethereum/common"
	"github.com/hermeznetwork/tracerr"
	"github.com/russross/meddler"
	"github.com/vaultbridge/vaultbridge-node/common"
	"github.com/vaultbridge/vaultbridge-node/db"
)

// GetEventsAPIRequest is an API request struct for getting events
type GetEventsAPIRequest struct {
	Type     *common.EventType
	BatchID  *common.BatchID
	Account  *ethCommon.Address
	FromItem *uint
	Limit    *uint
	Order    string
}

// GetEventsAPI returns the events applying the given filters, and the number
// of items left after the page
func (hdb *HistoryDB) GetEventsAPI(request GetEventsAPIRequest) ([]EventAPI, uint64, error) {
	cancel, err := hdb.apiConnCon.Acquire()
	defer cancel()
	if err != nil {
		return nil, 0, tracerr.Wrap(err)
	}
	defer hdb.apiConnCon.Release()
	var args []interface{}
	queryStr := `SELECT event.*, count(*) OVER() AS total_items FROM event `
	// Apply filters
	nextIsAnd := false
	where := func() {
		if nextIsAnd {
			queryStr += "AND "
		} else {
			queryStr += "WHERE "
		}
		nextIsAnd = true
	}
	if request.Type != nil {
		where()
		queryStr += "event.type = ? "
		args = append(args, *request.Type)
	}
	if request.BatchID != nil {
		where()
		queryStr += "event.batch_id = ? "
		args = append(args, *request.BatchID)
	}
	if request.Account != nil {
		where()
		queryStr += "(event.account = ? OR event.counterparty = ?) "
		args = append(args, *request.Account, *request.Account)
	}
	// pagination
	if request.FromItem != nil {
		where()
		if request.Order == db.OrderAsc {
			queryStr += "event.item_id >= ? "
		} else {
			queryStr += "event.item_id <= ? "
		}
		args = append(args, *request.FromItem)
	}
	queryStr += "ORDER BY event.item_id "
	if request.Order == db.OrderAsc {
		queryStr += "ASC "
	} else {
		queryStr += "DESC "
	}
	queryStr += fmt.Sprintf("LIMIT %d;", limit(request.Limit))
	query := hdb.dbRead.Rebind(queryStr)
	eventPtrs := []*EventAPI{}
	if err := meddler.QueryAll(hdb.dbRead, &eventPtrs, query, args...); err != nil {
		return nil, 0, tracerr.Wrap(err)
	}
	events := db.SlicePtrsToSlice(eventPtrs).([]EventAPI)
	if len(events) == 0 {
		return events, 0, nil
	}
	return events, events[0].TotalItems - uint64(len(events)), nil
}

// GetFinalizedBatchesAPIRequest is an API request struct for getting
// finalized batches
type GetFinalizedBatchesAPIRequest struct {
	FromItem *uint
	Limit    *uint
	Order    string
}

// GetFinalizedBatchesAPI returns the finalized batches in finalization
// order, and the number of items left after the page
func (hdb *HistoryDB) GetFinalizedBatchesAPI(
	request GetFinalizedBatchesAPIRequest,
) ([]FinalizedBatchAPI, uint64, error) {
	cancel, err := hdb.apiConnCon.Acquire()
	defer cancel()
	if err != nil {
		return nil, 0, tracerr.Wrap(err)
	}
	defer hdb.apiConnCon.Release()
	var args []interface{}
	queryStr := `SELECT finalized_batch.*, count(*) OVER() AS total_items FROM finalized_batch `
	if request.FromItem != nil {
		if request.Order == db.OrderAsc {
			queryStr += "WHERE finalized_batch.item_id >= ? "
		} else {
			queryStr += "WHERE finalized_batch.item_id <= ? "
		}
		args = append(args, *request.FromItem)
	}
	queryStr += "ORDER BY finalized_batch.item_id "
	if request.Order == db.OrderAsc {
		queryStr += "ASC "
	} else {
		queryStr += "DESC "
	}
	queryStr += fmt.Sprintf("LIMIT %d;", limit(request.Limit))
	query := hdb.dbRead.Rebind(queryStr)
	batchPtrs := []*FinalizedBatchAPI{}
	if err := meddler.QueryAll(hdb.dbRead, &batchPtrs, query, args...); err != nil {
		return nil, 0, tracerr.Wrap(err)
	}
	batches := db.SlicePtrsToSlice(batchPtrs).([]FinalizedBatchAPI)
	if len(batches) == 0 {
		return batches, 0, nil
	}
	return batches, batches[0].TotalItems - uint64(len(batches)), nil
}

// GetFinalizedBatchAPI returns a finalized batch by id
func (hdb *HistoryDB) GetFinalizedBatchAPI(batchID common.BatchID) (*FinalizedBatchAPI, error) {
	cancel, err := hdb.apiConnCon.Acquire()
	defer cancel()
	if err != nil {
		return nil, tracerr.Wrap(err)
	}
	defer hdb.apiConnCon.Release()
	batch := &FinalizedBatchAPI{}
	err = meddler.QueryRow(
		hdb.dbRead, batch, hdb.dbRead.Rebind(
			`SELECT finalized_batch.*, 1 AS total_items FROM finalized_batch WHERE batch_id = ?;`),
		batchID,
	)
	return batch, tracerr.Wrap(err)
}

const (
	defaultLimit = 20
	maxLimit     = 500
)

func limit(l *uint) uint {
	if l == nil || *l == 0 {
		return defaultLimit
	}
	if *l > maxLimit {
		return maxLimit
	}
	return *l
}
