package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/vaultbridge/vaultbridge-node/api/parsers"
	"github.com/vaultbridge/vaultbridge-node/common/apitypes"
	"github.com/vaultbridge/vaultbridge-node/db/historydb"
)

// FinalizedBatchAPI is a finalized batch together with what has been paid
// out of it
type FinalizedBatchAPI struct {
	BatchAPI
	PaidAmount *apitypes.BigIntStr `json:"paidAmount"`
}

func (a *API) getFinalizedBatch(c *gin.Context) {
	// Get batchID
	batchID, err := parsers.ParseBatchFilter(c)
	if err != nil {
		retBadReq(err, c)
		return
	}
	finalized, err := a.engine.FinalizedBatch(batchID)
	if err != nil {
		retOpErr(err, c)
		return
	}
	batch, err := newBatchAPI(finalized)
	if err != nil {
		retOpErr(err, c)
		return
	}
	c.JSON(http.StatusOK, FinalizedBatchAPI{
		BatchAPI:   *batch,
		PaidAmount: apitypes.NewBigIntStr(a.manager.PaidAmount(batchID)),
	})
}

func (a *API) getFinalizedBatches(c *gin.Context) {
	filters, err := parsers.ParseFinalizedBatchesFilters(c)
	if err != nil {
		retBadReq(err, c)
		return
	}
	// Fetch finalized batches from historyDB
	batches, pendingItems, err := a.historyDB.GetFinalizedBatchesAPI(filters)
	if err != nil {
		retSQLErr(err, c)
		return
	}

	// Build successful response
	type batchesResponse struct {
		Batches      []historydb.FinalizedBatchAPI `json:"batches"`
		PendingItems uint64                        `json:"pendingItems"`
	}
	c.JSON(http.StatusOK, &batchesResponse{
		Batches:      batches,
		PendingItems: pendingItems,
	})
}
