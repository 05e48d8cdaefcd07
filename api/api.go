/*
Package api implements the public HTTP API of the vault node.

Every request that changes state is made as the account of the X-Caller
header and must be signed by it: X-Signature holds the signature of the
request (see common.CallerAuth) and X-Nonce a nonce above the last one used
by the caller. The explorer endpoints (finalized batch list and events) are served from the
HistoryDB; the rest read the in memory state of the components.
*/
package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/hermeznetwork/tracerr"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/vaultbridge/vaultbridge-node/auth"
	"github.com/vaultbridge/vaultbridge-node/db/historydb"
	"github.com/vaultbridge/vaultbridge-node/db/kvdb"
	"github.com/vaultbridge/vaultbridge-node/feeaccrual"
	"github.com/vaultbridge/vaultbridge-node/ledger"
	"github.com/vaultbridge/vaultbridge-node/metric"
	"github.com/vaultbridge/vaultbridge-node/redemption"
	"github.com/vaultbridge/vaultbridge-node/settlement"
)

// Config holds the components served by the API
type Config struct {
	// Version is reported by the health endpoint
	Version string
	// ExplorerEndpoints enables the endpoints served from the HistoryDB
	ExplorerEndpoints bool
	Server            *gin.Engine
	HistoryDB         *historydb.HistoryDB
	// KVDB is optional, it is only used by the health endpoint
	KVDB       *kvdb.KVDB
	Engine     *settlement.Engine
	Manager    *redemption.Manager
	FeeAccrual *feeaccrual.FeeAccrual
	Ledger     *ledger.Ledger
	// Authorizer authenticates the callers of the state changing endpoints
	Authorizer *auth.Authorizer
}

// API serves HTTP requests to allow external interaction with the vault node
type API struct {
	historyDB  *historydb.HistoryDB
	kvdb       *kvdb.KVDB
	engine     *settlement.Engine
	manager    *redemption.Manager
	fee        *feeaccrual.FeeAccrual
	ledger     *ledger.Ledger
	authorizer *auth.Authorizer
}

// NewAPI sets the endpoints and the appropriate handlers, but doesn't start the server
func NewAPI(cfg Config) (*API, error) {
	// Check input
	if cfg.ExplorerEndpoints && cfg.HistoryDB == nil {
		return nil, tracerr.Wrap(errors.New("cannot serve Explorer endpoints without HistoryDB"))
	}
	if cfg.Engine == nil || cfg.Manager == nil || cfg.FeeAccrual == nil || cfg.Ledger == nil ||
		cfg.Authorizer == nil {
		return nil, tracerr.Wrap(errors.New("missing settlement components"))
	}
	a := &API{
		historyDB:  cfg.HistoryDB,
		kvdb:       cfg.KVDB,
		engine:     cfg.Engine,
		manager:    cfg.Manager,
		fee:        cfg.FeeAccrual,
		ledger:     cfg.Ledger,
		authorizer: cfg.Authorizer,
	}

	middleware, err := metric.PrometheusMiddleware()
	if err != nil {
		return nil, tracerr.Wrap(err)
	}
	cfg.Server.Use(middleware)
	cfg.Server.NoRoute(a.noRoute)

	cfg.Server.GET("/health", gin.WrapH(a.healthRoute(cfg.Version)))
	cfg.Server.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := cfg.Server.Group("/v1")

	// State
	v1.GET("/state", a.getState)
	v1.GET("/batches/active", a.getActiveBatch)
	v1.GET("/batches/withdrawing", a.getWithdrawingBatch)
	v1.GET("/batches/finalized/:batchID", a.getFinalizedBatch)
	v1.GET("/fee", a.getFee)
	v1.GET("/balances/:address", a.getBalances)

	// Operations
	ops := v1.Group("", a.authenticate)
	ops.POST("/deposit", a.postDeposit)
	ops.POST("/withdraw", a.postWithdraw)
	ops.POST("/redeem", a.postRedeem)
	ops.POST("/tick", a.postTick)
	ops.POST("/finalize", a.postFinalize)
	ops.POST("/fee/collect", a.postCollectFee)
	ops.POST("/custody/lock", a.postCustodyLock)
	ops.POST("/custody/release", a.postCustodyRelease)

	// Add explorer endpoints
	if cfg.ExplorerEndpoints {
		v1.GET("/batches/finalized", a.getFinalizedBatches)
		v1.GET("/events", a.getEvents)
	}

	return a, nil
}

func (a *API) noRoute(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{
		"error": "404 page not found",
	})
}
