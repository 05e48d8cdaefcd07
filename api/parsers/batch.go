package parsers

import (
	"github.com/gin-gonic/gin"
	"github.com/vaultbridge/vaultbridge-node/common"
	"github.com/vaultbridge/vaultbridge-node/db/historydb"
)

type batchFilter struct {
	BatchID *uint64 `uri:"batchID" binding:"required"`
}

// ParseBatchFilter parsing /batches/finalized/:batchID request to the batch id
func ParseBatchFilter(c *gin.Context) (common.BatchID, error) {
	var batchFilter batchFilter
	if err := c.ShouldBindUri(&batchFilter); err != nil {
		return 0, err
	}
	return common.BatchID(*batchFilter.BatchID), nil
}

type finalizedBatchesFilters struct {
	Pagination
}

// ParseFinalizedBatchesFilters parsing finalized batches filter to the
// GetFinalizedBatchesAPIRequest
func ParseFinalizedBatchesFilters(c *gin.Context) (historydb.GetFinalizedBatchesAPIRequest, error) {
	var filters finalizedBatchesFilters
	if err := c.ShouldBindQuery(&filters); err != nil {
		return historydb.GetFinalizedBatchesAPIRequest{}, err
	}
	return historydb.GetFinalizedBatchesAPIRequest{
		FromItem: filters.FromItem,
		Limit:    filters.Limit,
		Order:    *filters.Order,
	}, nil
}
