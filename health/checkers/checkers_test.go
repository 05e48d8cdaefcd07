package checkers

import (
	"fmt"
	"io/ioutil"
	"math/big"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vaultbridge/vaultbridge-node/db"
	"github.com/vaultbridge/vaultbridge-node/db/kvdb"
)

type fakeReconciler struct {
	err error
}

func (f fakeReconciler) Reconcile() error      { return f.err }
func (f fakeReconciler) Liabilities() *big.Int { return big.NewInt(42) }
func (f fakeReconciler) Surplus() *big.Int     { return big.NewInt(3) }

func TestReconcileChecker(t *testing.T) {
	h := NewReconcileChecker(fakeReconciler{}).Check()
	assert.True(t, h.IsUp())
	assert.Equal(t, "42", h.GetInfo("liabilities"))
	assert.Equal(t, "3", h.GetInfo("surplus"))

	h = NewReconcileChecker(fakeReconciler{err: fmt.Errorf("short by 1")}).Check()
	assert.True(t, h.IsDown())
	assert.Equal(t, "short by 1", h.GetInfo("error"))
}

func TestSQLChecker(t *testing.T) {
	sqlDB, err := db.InitTestSQLDB()
	require.NoError(t, err)
	defer func() { assert.NoError(t, sqlDB.Close()) }()

	h := NewCheckerWithDB(sqlDB).Check()
	assert.True(t, h.IsUp())
	assert.NotEmpty(t, h.GetInfo("last_migration"))
}

func TestKVDBChecker(t *testing.T) {
	dir, err := ioutil.TempDir("", "checkers")
	require.NoError(t, err)
	defer func() { assert.NoError(t, os.RemoveAll(dir)) }()
	k, err := kvdb.NewKVDB(dir, 4)
	require.NoError(t, err)
	defer k.Close()
	require.NoError(t, k.MakeCheckpoint())

	h := NewKVDBChecker(k).Check()
	assert.True(t, h.IsUp())
	assert.Equal(t, kvdb.CheckpointNum(1), h.GetInfo("checkpoint"))
}
