package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/vaultbridge/vaultbridge-node/api/parsers"
	"github.com/vaultbridge/vaultbridge-node/db/historydb"
)

func (a *API) getEvents(c *gin.Context) {
	filters, err := parsers.ParseEventsFilters(c)
	if err != nil {
		retBadReq(err, c)
		return
	}
	// Fetch events from historyDB
	events, pendingItems, err := a.historyDB.GetEventsAPI(filters)
	if err != nil {
		retSQLErr(err, c)
		return
	}

	// Build successful response
	type eventsResponse struct {
		Events       []historydb.EventAPI `json:"events"`
		PendingItems uint64               `json:"pendingItems"`
	}
	c.JSON(http.StatusOK, &eventsResponse{
		Events:       events,
		PendingItems: pendingItems,
	})
}
