package debugapi

import (
	"context"
	"encoding/json"
	"errors"
	"math/big"
	"net"
	"net/http"
	"time"

	ethCommon "github.com/ethereum/go-ethereum/common"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/hermeznetwork/tracerr"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/vaultbridge/vaultbridge-node/common/apitypes"
	"github.com/vaultbridge/vaultbridge-node/db/kvdb"
	"github.com/vaultbridge/vaultbridge-node/journal"
	"github.com/vaultbridge/vaultbridge-node/ledger"
	"github.com/vaultbridge/vaultbridge-node/log"
	"github.com/vaultbridge/vaultbridge-node/operator"
)

var errInvalidAddress = errors.New("invalid address")

func handleNoRoute(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{
		"error": "404 page not found",
	})
}

type errorMsg struct {
	Message string
}

func badReq(err error, c *gin.Context) {
	log.Errorw("Bad request", "err", err)
	c.JSON(http.StatusBadRequest, errorMsg{
		Message: err.Error(),
	})
}

// Config holds the components inspected by the DebugAPI. Every field but
// Journal is optional.
type Config struct {
	Journal  *journal.Journal
	KVDB     *kvdb.KVDB
	Operator *operator.Operator
	// Faucet enables minting of asset tokens to any account
	Faucet *ledger.Ledger
}

// DebugAPI is an http API with debugging endpoints
type DebugAPI struct {
	addr string
	cfg  Config
}

// NewDebugAPI creates a new DebugAPI
func NewDebugAPI(addr string, cfg Config) *DebugAPI {
	return &DebugAPI{
		addr: addr,
		cfg:  cfg,
	}
}

func rawStates(states map[string][]byte) map[string]json.RawMessage {
	raw := make(map[string]json.RawMessage, len(states))
	for name, state := range states {
		raw[name] = state
	}
	return raw
}

func (a *DebugAPI) handleStates(c *gin.Context) {
	var (
		states map[string][]byte
		err    error
	)
	a.cfg.Journal.Read(func() { states, err = a.cfg.Journal.EncodeStates() })
	if err != nil {
		badReq(err, c)
		return
	}
	c.JSON(http.StatusOK, rawStates(states))
}

func (a *DebugAPI) handleCheckpoint(c *gin.Context) {
	checkpoint, err := a.cfg.KVDB.LastGetCurrentCheckpoint()
	if err != nil {
		badReq(err, c)
		return
	}
	c.JSON(http.StatusOK, checkpoint)
}

func (a *DebugAPI) handleCheckpoints(c *gin.Context) {
	checkpoints, err := a.cfg.KVDB.ListCheckpoints()
	if err != nil {
		badReq(err, c)
		return
	}
	c.JSON(http.StatusOK, checkpoints)
}

func (a *DebugAPI) handleCheckpointStates(c *gin.Context) {
	states, err := a.cfg.KVDB.LastGetStates()
	if err != nil {
		badReq(err, c)
		return
	}
	c.JSON(http.StatusOK, rawStates(states))
}

func (a *DebugAPI) handleTick(c *gin.Context) {
	a.cfg.Operator.SendMsg(c.Request.Context(), operator.MsgTick{})
	c.Status(http.StatusAccepted)
}

func (a *DebugAPI) handleCollectFee(c *gin.Context) {
	a.cfg.Operator.SendMsg(c.Request.Context(), operator.MsgCollectFee{})
	c.Status(http.StatusAccepted)
}

func (a *DebugAPI) handleFaucet(c *gin.Context) {
	uri := struct {
		Address string `uri:"address" binding:"required"`
	}{}
	if err := c.ShouldBindUri(&uri); err != nil {
		badReq(err, c)
		return
	}
	if !ethCommon.IsHexAddress(uri.Address) {
		badReq(tracerr.Wrap(errInvalidAddress), c)
		return
	}
	body := struct {
		Amount *apitypes.StrBigInt `json:"amount" binding:"required"`
	}{}
	if err := c.ShouldBindJSON(&body); err != nil {
		badReq(err, c)
		return
	}
	to := ethCommon.HexToAddress(uri.Address)
	amount := body.Amount.BigInt()
	if err := a.cfg.Faucet.Fund(to, amount); err != nil {
		badReq(err, c)
		return
	}
	c.JSON(http.StatusOK, gin.H{"funded": apitypes.NewBigIntStr(new(big.Int).Set(amount))})
}

// Handler returns the gin engine serving the debug endpoints
func (a *DebugAPI) Handler() *gin.Engine {
	api := gin.Default()
	api.NoRoute(handleNoRoute)
	api.Use(cors.Default())
	debugAPI := api.Group("/debug")

	debugAPI.GET("/metrics", gin.WrapH(promhttp.Handler()))

	debugAPI.GET("journal/states", a.handleStates)
	if a.cfg.KVDB != nil {
		debugAPI.GET("kvdb/checkpoint", a.handleCheckpoint)
		debugAPI.GET("kvdb/checkpoints", a.handleCheckpoints)
		debugAPI.GET("kvdb/states", a.handleCheckpointStates)
	}
	if a.cfg.Operator != nil {
		debugAPI.POST("operator/tick", a.handleTick)
		debugAPI.POST("operator/collectfee", a.handleCollectFee)
	}
	if a.cfg.Faucet != nil {
		debugAPI.POST("faucet/:address", a.handleFaucet)
	}
	return api
}

// Run starts the http server of the DebugAPI.  To stop it, pass a context
// with cancellation (see `debugapi_test.go` for an example).
func (a *DebugAPI) Run(ctx context.Context) error {
	debugAPIServer := &http.Server{
		Handler: a.Handler(),
		// Use some hardcoded numbers that are suitable for testing
		ReadTimeout:    30 * time.Second, //nolint:gomnd
		WriteTimeout:   30 * time.Second, //nolint:gomnd
		MaxHeaderBytes: 1 << 20,          //nolint:gomnd
	}
	listener, err := net.Listen("tcp", a.addr)
	if err != nil {
		return tracerr.Wrap(err)
	}
	log.Infof("DebugAPI is ready at %v", a.addr)
	go func() {
		if err := debugAPIServer.Serve(listener); err != nil &&
			tracerr.Unwrap(err) != http.ErrServerClosed {
			log.Fatalf("Listen: %s\n", err)
		}
	}()

	<-ctx.Done()
	log.Info("Stopping DebugAPI...")
	ctxTimeout, cancel := context.WithTimeout(context.Background(), 10*time.Second) //nolint:gomnd
	defer cancel()
	if err := debugAPIServer.Shutdown(ctxTimeout); err != nil {
		return tracerr.Wrap(err)
	}
	log.Info("DebugAPI done")
	return nil
}
