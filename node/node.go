package node

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/hermeznetwork/tracerr"
	"github.com/jmoiron/sqlx"
	"github.com/russross/meddler"
	"github.com/vaultbridge/vaultbridge-node/api"
	"github.com/vaultbridge/vaultbridge-node/config"
	dbUtils "github.com/vaultbridge/vaultbridge-node/db"
	"github.com/vaultbridge/vaultbridge-node/db/historydb"
	"github.com/vaultbridge/vaultbridge-node/db/kvdb"
	"github.com/vaultbridge/vaultbridge-node/ledger"
	"github.com/vaultbridge/vaultbridge-node/log"
	"github.com/vaultbridge/vaultbridge-node/metric"
	"github.com/vaultbridge/vaultbridge-node/operator"
	"github.com/vaultbridge/vaultbridge-node/test/debugapi"
	"golang.org/x/net/netutil"
)

// Node is the vault node
type Node struct {
	nodeAPI    *NodeAPI
	debugAPI   *debugapi.DebugAPI
	operator   *operator.Operator
	components *Components
	historyDB  *historydb.HistoryDB
	stateDB    *kvdb.KVDB

	// General
	cfg     *config.Node
	sqlConn *sqlx.DB
	ctx     context.Context
	wg      sync.WaitGroup
	cancel  context.CancelFunc
}

// InitSQLDB opens the configured SQL DB and runs the migrations. SQLite is
// used when its path is set.
func InitSQLDB(cfg *config.Node) (*sqlx.DB, error) {
	if cfg.SQLite.Path != "" {
		db, err := dbUtils.InitSQLiteDB(cfg.SQLite.Path)
		return db, tracerr.Wrap(err)
	}
	db, err := dbUtils.InitSQLDB(
		cfg.PostgreSQL.Port,
		cfg.PostgreSQL.Host,
		cfg.PostgreSQL.User,
		cfg.PostgreSQL.Password,
		cfg.PostgreSQL.Name,
	)
	return db, tracerr.Wrap(err)
}

// NewNode creates a Node. The world state is restored from the StateDB when
// it holds one.
func NewNode(cfg *config.Node, version string) (*Node, error) {
	meddler.Debug = cfg.Debug.MeddlerLogs
	// Stablish DB connection
	db, err := InitSQLDB(cfg)
	if err != nil {
		return nil, tracerr.Wrap(fmt.Errorf("dbUtils.InitSQLDB: %w", err))
	}
	apiConnCon := dbUtils.NewAPIConnectionController(
		cfg.API.MaxSQLConnections,
		cfg.API.SQLConnectionTimeout.Duration,
	)
	historyDB := historydb.NewHistoryDB(db, db, apiConnCon)

	stateDB, err := kvdb.NewKVDB(cfg.StateDB.Path, cfg.StateDB.Keep)
	if err != nil {
		return nil, tracerr.Wrap(err)
	}

	components, err := NewComponents(cfg, NewOracle(&cfg.Oracle))
	if err != nil {
		return nil, tracerr.Wrap(err)
	}
	restored, err := components.Restore(stateDB)
	if err != nil {
		return nil, tracerr.Wrap(fmt.Errorf("restoring world state: %w", err))
	}
	if restored {
		log.Infow("World state restored", "checkpoint", stateDB.CurrentCheckpoint,
			"state", components.Engine.CurrentState())
	}
	j := components.Journal
	j.OnCommit(historyDB.CommitHook(components.Engine))
	j.OnCommit(components.CheckpointHook(stateDB))
	j.OnCommit(metric.CollectEvents)

	op, err := operator.NewOperator(operator.Config{
		Address:            cfg.Operator.Address,
		TickInterval:       cfg.Operator.TickInterval.Duration,
		TickRetryInterval:  cfg.Operator.TickRetryInterval.Duration,
		FeeCollectInterval: cfg.Operator.FeeCollectInterval.Duration,
		Attempts:           cfg.Operator.Attempts,
	}, components.Engine, components.FeeAccrual)
	if err != nil {
		return nil, tracerr.Wrap(err)
	}

	var nodeAPI *NodeAPI
	if cfg.API.Address != "" {
		if cfg.Debug.GinDebugMode {
			gin.SetMode(gin.DebugMode)
		} else {
			gin.SetMode(gin.ReleaseMode)
		}
		nodeAPI, err = NewNodeAPI(cfg.API.Address, cfg.API.MaxConnections, api.Config{
			Version:           version,
			ExplorerEndpoints: cfg.API.Explorer,
			HistoryDB:         historyDB,
			KVDB:              stateDB,
			Engine:            components.Engine,
			Manager:           components.Manager,
			FeeAccrual:        components.FeeAccrual,
			Ledger:            components.Ledger,
			Authorizer:        components.Authorizer,
		})
		if err != nil {
			return nil, tracerr.Wrap(err)
		}
	}
	var debugAPI *debugapi.DebugAPI
	if cfg.Debug.APIAddress != "" {
		var faucet *ledger.Ledger
		if cfg.Debug.Faucet {
			faucet = components.Ledger
		}
		debugAPI = debugapi.NewDebugAPI(cfg.Debug.APIAddress, debugapi.Config{
			Journal:  j,
			KVDB:     stateDB,
			Operator: op,
			Faucet:   faucet,
		})
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Node{
		nodeAPI:    nodeAPI,
		debugAPI:   debugAPI,
		operator:   op,
		components: components,
		historyDB:  historyDB,
		stateDB:    stateDB,
		cfg:        cfg,
		sqlConn:    db,
		ctx:        ctx,
		cancel:     cancel,
	}, nil
}

// Components returns the settlement components of the node
func (n *Node) Components() *Components {
	return n.components
}

// NodeAPI holds the node http API
type NodeAPI struct { //nolint:golint
	api      *api.API
	engine   *gin.Engine
	addr     string
	maxConns int
}

func handleNoRoute(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{
		"error": "404 page not found",
	})
}

// NewNodeAPI creates a new NodeAPI (which internally calls api.NewAPI).
// cfg.Server is set by NewNodeAPI. maxConns limits the simultaneous
// connections when positive.
func NewNodeAPI(addr string, maxConns int, cfg api.Config) (*NodeAPI, error) {
	engine := gin.Default()
	engine.NoRoute(handleNoRoute)
	engine.Use(cors.Default())
	cfg.Server = engine
	_api, err := api.NewAPI(cfg)
	if err != nil {
		return nil, tracerr.Wrap(err)
	}
	return &NodeAPI{
		addr:     addr,
		api:      _api,
		engine:   engine,
		maxConns: maxConns,
	}, nil
}

// Handler returns the http handler of the NodeAPI
func (a *NodeAPI) Handler() http.Handler {
	return a.engine
}

// Run starts the http server of the NodeAPI.  To stop it, pass a context with
// cancelation.
func (a *NodeAPI) Run(ctx context.Context) error {
	server := &http.Server{
		Addr:           a.addr,
		Handler:        a.engine,
		ReadTimeout:    30 * time.Second, //nolint:gomnd
		WriteTimeout:   30 * time.Second, //nolint:gomnd
		MaxHeaderBytes: 1 << 20,          //nolint:gomnd
	}
	listener, err := net.Listen("tcp", a.addr)
	if err != nil {
		return tracerr.Wrap(err)
	}
	if a.maxConns > 0 {
		listener = netutil.LimitListener(listener, a.maxConns)
	}
	go func() {
		log.Infof("NodeAPI is ready at %v", a.addr)
		if err := server.Serve(listener); err != nil && tracerr.Unwrap(err) != http.ErrServerClosed {
			log.Fatalf("Listen: %s\n", err)
		}
	}()

	<-ctx.Done()
	log.Info("Stopping NodeAPI...")
	ctxTimeout, cancel := context.WithTimeout(context.Background(), 10*time.Second) //nolint:gomnd
	defer cancel()
	if err := server.Shutdown(ctxTimeout); err != nil {
		return tracerr.Wrap(err)
	}
	log.Info("NodeAPI done")
	return nil
}

// StartDebugAPI starts the DebugAPI
func (n *Node) StartDebugAPI() {
	log.Info("Starting DebugAPI...")
	n.wg.Add(1)
	go func() {
		defer func() {
			log.Info("DebugAPI routine stopped")
			n.wg.Done()
		}()
		if err := n.debugAPI.Run(n.ctx); err != nil {
			log.Fatalw("DebugAPI.Run", "err", err)
		}
	}()
}

// StartNodeAPI starts the NodeAPI
func (n *Node) StartNodeAPI() {
	log.Info("Starting NodeAPI...")
	n.wg.Add(1)
	go func() {
		defer func() {
			log.Info("NodeAPI routine stopped")
			n.wg.Done()
		}()
		if err := n.nodeAPI.Run(n.ctx); err != nil {
			log.Fatalw("NodeAPI.Run", "err", err)
		}
	}()
}

// Start the node
func (n *Node) Start() {
	log.Infow("Starting node...", "state", n.components.Engine.CurrentState())
	if n.debugAPI != nil {
		n.StartDebugAPI()
	}
	if n.nodeAPI != nil {
		n.StartNodeAPI()
	}
	log.Info("Starting Operator...")
	n.operator.Start()
}

// Stop the node
func (n *Node) Stop() {
	log.Infow("Stopping node...")
	n.cancel()
	log.Info("Stopping Operator...")
	n.operator.Stop()
	n.wg.Wait()
	n.stateDB.Close()
	if err := n.sqlConn.Close(); err != nil {
		log.Errorw("sqlConn.Close", "err", err)
	}
}
