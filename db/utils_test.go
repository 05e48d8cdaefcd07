package db

import (
	"math/big"
	"testing"
	"time"

	"github.com/russross/meddler"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vaultbridge/vaultbridge-node/log"
)

func init() {
	log.Init("debug", []string{"stdout"}, "")
}

func TestBigInt(t *testing.T) {
	db, err := InitTestSQLDB()
	require.NoError(t, err)
	defer func() {
		_, err := db.Exec("DROP TABLE IF EXISTS test_big_int;")
		require.NoError(t, err)
		err = db.Close()
		require.NoError(t, err)
	}()

	_, err = db.Exec(`CREATE TABLE test_big_int (
		item_id INTEGER PRIMARY KEY,
		value1 TEXT NOT NULL,
		value2 TEXT,
		value3 TEXT
	);`)
	require.NoError(t, err)

	type Entry struct {
		ItemID int      `meddler:"item_id"`
		Value1 *big.Int `meddler:"value1,bigint"`
		Value2 *big.Int `meddler:"value2,bigintnull"`
		Value3 *big.Int `meddler:"value3,bigintnull"`
	}

	huge, ok := new(big.Int).SetString("115792089237316195423570985008687907853269984665640564039457584007913129639935", 10)
	require.True(t, ok)
	entry := Entry{ItemID: 1, Value1: huge, Value2: big.NewInt(9876543210), Value3: nil}
	err = meddler.Insert(db, "test_big_int", &entry)
	require.NoError(t, err)

	var dbEntry Entry
	err = meddler.QueryRow(db, &dbEntry, "SELECT * FROM test_big_int WHERE item_id = 1;")
	require.NoError(t, err)
	assert.Equal(t, entry, dbEntry)
}

func TestBulkInsert(t *testing.T) {
	db, err := InitTestSQLDB()
	require.NoError(t, err)
	defer func() { assert.NoError(t, db.Close()) }()

	_, err = db.Exec(`CREATE TABLE test_bulk (
		item_id INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		amount TEXT
	);`)
	require.NoError(t, err)

	type Row struct {
		ItemID int      `meddler:"item_id,pk"`
		Name   string   `meddler:"name"`
		Amount *big.Int `meddler:"amount,bigintnull"`
	}
	rows := []Row{{Name: "a", Amount: big.NewInt(1)}, {Name: "b"}, {Name: "c", Amount: big.NewInt(3)}}
	require.NoError(t, BulkInsert(db, "INSERT INTO test_bulk (name, amount) VALUES %s", rows))
	require.NoError(t, BulkInsert(db, "INSERT INTO test_bulk (name, amount) VALUES %s", []Row{}))

	var dbRows []*Row
	require.NoError(t, meddler.QueryAll(db, &dbRows, "SELECT * FROM test_bulk ORDER BY item_id;"))
	require.Len(t, dbRows, 3)
	assert.Equal(t, "b", dbRows[1].Name)
	assert.Nil(t, dbRows[1].Amount)
	assert.Equal(t, "3", dbRows[2].Amount.String())
}

func TestMigrationsDown(t *testing.T) {
	db, err := InitTestSQLDB()
	require.NoError(t, err)
	defer func() { assert.NoError(t, db.Close()) }()

	require.NoError(t, MigrationsDown(db, 0))
	_, err = db.Exec("SELECT * FROM event;")
	assert.Error(t, err)
	require.NoError(t, MigrationsUp(db))
	_, err = db.Exec("SELECT * FROM event;")
	assert.NoError(t, err)
}

func TestAPIConnectionController(t *testing.T) {
	acc := NewAPIConnectionController(1, 10*time.Millisecond)
	cancel, err := acc.Acquire()
	require.NoError(t, err)
	cancel()
	// The only connection is taken
	cancel2, err := acc.Acquire()
	assert.Error(t, err)
	cancel2()
	acc.Release()
	cancel3, err := acc.Acquire()
	assert.NoError(t, err)
	cancel3()
	acc.Release()
}
