/*
Package historydb keeps the history of the settlement state in SQL: every
committed event and every finalized batch. It is written from the commit hook
of the journal, so it only ever contains committed operations, and it is
read by the API.
*/
package historydb

import (
	"fmt"
	"time"

	"github.com/hermeznetwork/tracerr"
	"github.com/jmoiron/sqlx"
	"github.com/russross/meddler"
	"github.com/vaultbridge/vaultbridge-node/common"
	"github.com/vaultbridge/vaultbridge-node/db"
)

// HistoryDB persist the history of the settlement state
type HistoryDB struct {
	dbRead     *sqlx.DB
	dbWrite    *sqlx.DB
	apiConnCon *db.APIConnectionController
}

// NewHistoryDB initialize the DB
func NewHistoryDB(dbRead, dbWrite *sqlx.DB, apiConnCon *db.APIConnectionController) *HistoryDB {
	return &HistoryDB{dbRead: dbRead, dbWrite: dbWrite, apiConnCon: apiConnCon}
}

// DB returns a pointer to the HistoryDB.dbRead. This method should be used only for
// internal testing purposes.
func (hdb *HistoryDB) DB() *sqlx.DB {
	return hdb.dbRead
}

// AddCommit inserts the events and the finalized batches of a committed
// operation in a single SQL transaction
func (hdb *HistoryDB) AddCommit(events []common.Event, finalized []FinalizedBatch) (err error) {
	if len(events) == 0 && len(finalized) == 0 {
		return nil
	}
	txn, err := hdb.dbWrite.Beginx()
	if err != nil {
		return tracerr.Wrap(err)
	}
	defer func() {
		if err != nil {
			db.Rollback(txn)
		}
	}()
	if err := hdb.addEvents(txn, events); err != nil {
		return tracerr.Wrap(err)
	}
	for i := range finalized {
		if err := meddler.Insert(txn, "finalized_batch", &finalized[i]); err != nil {
			return tracerr.Wrap(err)
		}
	}
	return tracerr.Wrap(txn.Commit())
}

// BatchSource looks up finalized batches from inside a commit hook
type BatchSource interface {
	LookupFinalized(id common.BatchID) (common.Batch, error)
}

// CommitHook returns a journal commit hook that stores the committed events
// together with the batches they finalize
func (hdb *HistoryDB) CommitHook(batches BatchSource) func([]common.Event) error {
	return func(events []common.Event) error {
		var finalized []FinalizedBatch
		for _, event := range events {
			if event.Type != common.EventBatchFinalized {
				continue
			}
			batch, err := batches.LookupFinalized(event.BatchID)
			if err != nil {
				return tracerr.Wrap(err)
			}
			finalized = append(finalized, NewFinalizedBatch(batch, event.Timestamp))
		}
		return tracerr.Wrap(hdb.AddCommit(events, finalized))
	}
}

// AddEvents inserts events into the DB
func (hdb *HistoryDB) AddEvents(events []common.Event) error {
	return hdb.addEvents(hdb.dbWrite, events)
}

func (hdb *HistoryDB) addEvents(d sqlx.Ext, events []common.Event) error {
	if len(events) == 0 {
		return nil
	}
	columns, err := meddler.Default.ColumnsQuoted(&common.Event{}, false)
	if err != nil {
		return tracerr.Wrap(err)
	}
	return tracerr.Wrap(db.BulkInsert(
		d,
		fmt.Sprintf("INSERT INTO event (%s) VALUES %%s;", columns),
		events,
	))
}

// GetFinalizedBatch returns a finalized batch by id
func (hdb *HistoryDB) GetFinalizedBatch(batchID common.BatchID) (*FinalizedBatch, error) {
	batch := &FinalizedBatch{}
	err := meddler.QueryRow(
		hdb.dbRead, batch, hdb.dbRead.Rebind("SELECT * FROM finalized_batch WHERE batch_id = ?;"),
		batchID,
	)
	return batch, tracerr.Wrap(err)
}

// GetAllFinalizedBatches returns every finalized batch in finalization order
func (hdb *HistoryDB) GetAllFinalizedBatches() ([]FinalizedBatch, error) {
	var batches []*FinalizedBatch
	err := meddler.QueryAll(
		hdb.dbRead, &batches, "SELECT * FROM finalized_batch ORDER BY item_id;",
	)
	if err != nil {
		return nil, tracerr.Wrap(err)
	}
	return db.SlicePtrsToSlice(batches).([]FinalizedBatch), nil
}

// GetLastEventTimestamp returns the time of the last stored event
func (hdb *HistoryDB) GetLastEventTimestamp() (*time.Time, error) {
	var event struct {
		Timestamp time.Time `meddler:"timestamp,utctime"`
	}
	err := meddler.QueryRow(
		hdb.dbRead, &event, "SELECT timestamp FROM event ORDER BY item_id DESC LIMIT 1;",
	)
	if err != nil {
		return nil, tracerr.Wrap(err)
	}
	return &event.Timestamp, nil
}

// Reset deletes the events and finalized batches committed after t. It is
// used when the settlement state is restored from a checkpoint taken at t.
func (hdb *HistoryDB) Reset(t time.Time) (err error) {
	txn, err := hdb.dbWrite.Beginx()
	if err != nil {
		return tracerr.Wrap(err)
	}
	defer func() {
		if err != nil {
			db.Rollback(txn)
		}
	}()
	t = t.UTC()
	if _, err := txn.Exec(txn.Rebind("DELETE FROM event WHERE timestamp > ?;"), t); err != nil {
		return tracerr.Wrap(err)
	}
	if _, err := txn.Exec(txn.Rebind("DELETE FROM finalized_batch WHERE finalized_at > ?;"), t); err != nil {
		return tracerr.Wrap(err)
	}
	return tracerr.Wrap(txn.Commit())
}

// Wipe deletes every row of the history
func (hdb *HistoryDB) Wipe() error {
	if _, err := hdb.dbWrite.Exec("DELETE FROM event;"); err != nil {
		return tracerr.Wrap(err)
	}
	_, err := hdb.dbWrite.Exec("DELETE FROM finalized_batch;")
	return tracerr.Wrap(err)
}
