package node

import (
	"context"
	"fmt"
	"io/ioutil"
	"math/big"
	"os"
	"path"
	"testing"

	ethCommon "github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vaultbridge/vaultbridge-node/common"
	"github.com/vaultbridge/vaultbridge-node/config"
	"github.com/vaultbridge/vaultbridge-node/db/kvdb"
	"github.com/vaultbridge/vaultbridge-node/eth"
)

var (
	owner        = ethCommon.HexToAddress("0x00000000000000000000000000000000000000a1")
	operatorAddr = ethCommon.HexToAddress("0x00000000000000000000000000000000000000a2")
	engineAddr   = ethCommon.HexToAddress("0x00000000000000000000000000000000000000a3")
	managerAddr  = ethCommon.HexToAddress("0x00000000000000000000000000000000000000a4")
	alice        = ethCommon.HexToAddress("0x00000000000000000000000000000000000000b1")
)

const testConfig = `
[Settlement]
Owner = "0x00000000000000000000000000000000000000a1"
Operators = []
Engine = "0x00000000000000000000000000000000000000a3"
RedemptionManager = "0x00000000000000000000000000000000000000a4"
FeeAccrual = "0x00000000000000000000000000000000000000a5"
FeeCollector = "0x00000000000000000000000000000000000000a6"
DepositForwarder = "0x00000000000000000000000000000000000000a7"
CustodyLock = "0x00000000000000000000000000000000000000a8"
Custodians = ["0x00000000000000000000000000000000000000a7"]
Allowlist = ["0x00000000000000000000000000000000000000b1"]
StaleThreshold = "1h"

[SQLite]
Path = ":memory:"

[StateDB]
Path = "%s"
Keep = 16

[Operator]
Address = "0x00000000000000000000000000000000000000a2"
FeeCollectInterval = "0s"

[API]
Address = ""
`

func newTestConfig(t *testing.T) (*config.Node, func()) {
	dir, err := ioutil.TempDir("", "node")
	require.NoError(t, err)
	cfgPath := path.Join(dir, "cfg.toml")
	require.NoError(t, ioutil.WriteFile(cfgPath,
		[]byte(fmt.Sprintf(testConfig, path.Join(dir, "statedb"))), 0600))
	cfg, err := config.LoadNode(cfgPath)
	require.NoError(t, err)
	return cfg, func() {
		assert.NoError(t, os.RemoveAll(dir))
	}
}

func TestNewComponents(t *testing.T) {
	cfg, cleanup := newTestConfig(t)
	defer cleanup()

	oracle := NewOracle(&cfg.Oracle)
	_, ok := oracle.(*eth.StaticOracle)
	assert.True(t, ok)

	c, err := NewComponents(cfg, oracle)
	require.NoError(t, err)
	assert.Equal(t, engineAddr, c.Engine.Address())
	assert.Equal(t, common.StateIdle, c.Engine.CurrentState())
	assert.NoError(t, c.Authorizer.Require(operatorAddr, common.CapOperator))
	assert.NoError(t, c.Authorizer.Require(owner, common.CapOwner))
	assert.Error(t, c.Authorizer.Require(alice, common.CapOperator))
	assert.True(t, c.Ledger.BalancesOf(alice).Allowlisted)

	cfg.Oracle.URL = "http://localhost:4012"
	_, ok = NewOracle(&cfg.Oracle).(*eth.OracleClient)
	assert.True(t, ok)
}

func TestNodeCheckpointAndRestore(t *testing.T) {
	cfg, cleanup := newTestConfig(t)
	defer cleanup()
	ctx := context.Background()

	n, err := NewNode(cfg, "test")
	require.NoError(t, err)
	c := n.Components()
	require.NoError(t, c.Ledger.Fund(alice, big.NewInt(300000000)))
	_, err = c.Engine.Deposit(ctx, alice, big.NewInt(100000000), alice, big.NewInt(0))
	require.NoError(t, err)

	// state is stored on every commit, checkpoints only on finalization
	states, err := n.stateDB.GetStates()
	require.NoError(t, err)
	assert.Contains(t, states, "settlement")
	cn, err := n.stateDB.GetCurrentCheckpoint()
	require.NoError(t, err)
	assert.Equal(t, kvdb.CheckpointNum(0), cn)

	batchID, err := c.Engine.Withdraw(alice, big.NewInt(100000000))
	require.NoError(t, err)
	finalized, err := c.Engine.Tick(ctx, operatorAddr)
	require.NoError(t, err)
	require.True(t, finalized)

	cn, err = n.stateDB.GetCheckpointOfBatch(batchID)
	require.NoError(t, err)
	assert.Equal(t, kvdb.CheckpointNum(1), cn)
	fb, err := n.historyDB.GetFinalizedBatch(batchID)
	require.NoError(t, err)
	assert.Equal(t, batchID, fb.BatchID)

	balances := c.Ledger.BalancesOf(alice)
	n.Start()
	n.Stop()

	n2, err := NewNode(cfg, "test")
	require.NoError(t, err)
	c2 := n2.Components()
	_, err = c2.Engine.FinalizedBatch(batchID)
	assert.NoError(t, err)
	assert.Equal(t, c.Engine.ActiveBatch().BatchID, c2.Engine.ActiveBatch().BatchID)
	restored := c2.Ledger.BalancesOf(alice)
	assert.Equal(t, balances.Asset.String(), restored.Asset.String())
	assert.Equal(t, balances.Synthetic.String(), restored.Synthetic.String())
	require.Len(t, restored.Receipts, len(balances.Receipts))
	for id, qty := range balances.Receipts {
		assert.Equal(t, qty.String(), restored.Receipts[id].String())
	}
	n2.Start()
	n2.Stop()
}

func TestNodeAPI(t *testing.T) {
	cfg, cleanup := newTestConfig(t)
	defer cleanup()
	cfg.API.Address = "localhost:4013"
	n, err := NewNode(cfg, "test")
	require.NoError(t, err)
	require.NotNil(t, n.nodeAPI)
	assert.NotNil(t, n.nodeAPI.Handler())
	assert.Nil(t, n.debugAPI)
	n.Start()
	n.Stop()
}
