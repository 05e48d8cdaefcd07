package parsers

import (
	"fmt"

	ethCommon "github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"github.com/hermeznetwork/tracerr"
	"github.com/vaultbridge/vaultbridge-node/common"
	"github.com/vaultbridge/vaultbridge-node/db/historydb"
)

var eventTypes = map[common.EventType]bool{
	common.EventDeposit:         true,
	common.EventWithdrawal:      true,
	common.EventBatchParked:     true,
	common.EventBatchFinalized:  true,
	common.EventTransition:      true,
	common.EventCustodyLocked:   true,
	common.EventCustodyUnlocked: true,
	common.EventRedemption:      true,
	common.EventDustSwept:       true,
	common.EventFeeCollected:    true,
	common.EventFeeClaimed:      true,
}

type eventsFilters struct {
	Type    string  `form:"type"`
	BatchID *uint64 `form:"batchId"`
	Account string  `form:"account"`

	Pagination
}

// ParseEventsFilters parsing /events query params to the GetEventsAPIRequest
func ParseEventsFilters(c *gin.Context) (historydb.GetEventsAPIRequest, error) {
	var filters eventsFilters
	if err := c.ShouldBindQuery(&filters); err != nil {
		return historydb.GetEventsAPIRequest{}, err
	}
	request := historydb.GetEventsAPIRequest{
		FromItem: filters.FromItem,
		Limit:    filters.Limit,
		Order:    *filters.Order,
	}
	if filters.Type != "" {
		eventType := common.EventType(filters.Type)
		if !eventTypes[eventType] {
			return historydb.GetEventsAPIRequest{},
				tracerr.Wrap(fmt.Errorf("invalid event type %q", filters.Type))
		}
		request.Type = &eventType
	}
	if filters.BatchID != nil {
		batchID := common.BatchID(*filters.BatchID)
		request.BatchID = &batchID
	}
	if filters.Account != "" {
		addr, err := ParseAddress(filters.Account)
		if err != nil {
			return historydb.GetEventsAPIRequest{}, tracerr.Wrap(err)
		}
		request.Account = &addr
	}
	return request, nil
}

// ParseAddress parses a hex encoded ethereum address
func ParseAddress(s string) (ethCommon.Address, error) {
	if !ethCommon.IsHexAddress(s) {
		return ethCommon.Address{}, tracerr.Wrap(fmt.Errorf("invalid address %q", s))
	}
	return ethCommon.HexToAddress(s), nil
}

type addressFilter struct {
	Address string `uri:"address" binding:"required"`
}

// ParseAddressFilter parsing the :address path param
func ParseAddressFilter(c *gin.Context) (ethCommon.Address, error) {
	var filter addressFilter
	if err := c.ShouldBindUri(&filter); err != nil {
		return ethCommon.Address{}, err
	}
	return ParseAddress(filter.Address)
}
