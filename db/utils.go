/*
Package db have some common utilities shared by db/historydb and db/kvdb, the most relevant ones are:
- SQL connection utilities, for PostgreSQL and SQLite
- Managing the SQL schema: this is done using migration files placed under db/migrations/<dialect>. The files are
executed by order of the file name.
- Custom meddlers: used to easily transform struct <==> table
*/
package db

import (
	"context"
	"database/sql"
	"fmt"
	"math/big"
	"reflect"
	"strings"
	"time"

	"github.com/gobuffalo/packr/v2"
	"github.com/hermeznetwork/tracerr"
	"github.com/jmoiron/sqlx"
	"github.com/vaultbridge/vaultbridge-node/log"

	//nolint:errcheck // driver for postgres DB
	_ "github.com/lib/pq"
	//nolint:errcheck // driver for sqlite DB
	_ "github.com/mattn/go-sqlite3"
	migrate "github.com/rubenv/sql-migrate"
	"github.com/russross/meddler"
	"golang.org/x/sync/semaphore"
)

const (
	// OrderAsc indicates ascending order when using pagination
	OrderAsc = "ASC"
	// OrderDesc indicates descending order when using pagination
	OrderDesc = "DESC"
)

const (
	// DialectPostgres is the driver name of PostgreSQL connections
	DialectPostgres = "postgres"
	// DialectSQLite is the driver name of SQLite connections
	DialectSQLite = "sqlite3"
)

var migrations map[string]*migrate.PackrMigrationSource

func init() {
	migrations = map[string]*migrate.PackrMigrationSource{
		DialectPostgres: {Box: packr.New("vaultnode-db-migrations-postgres", "./migrations/postgres")},
		DialectSQLite:   {Box: packr.New("vaultnode-db-migrations-sqlite", "./migrations/sqlite")},
	}
	for dialect, source := range migrations {
		ms, err := source.FindMigrations()
		if err != nil {
			panic(err)
		}
		if len(ms) == 0 {
			panic(fmt.Errorf("no SQL migrations found for %v", dialect))
		}
	}
}

func migrationSource(db *sqlx.DB) (*migrate.PackrMigrationSource, error) {
	source, ok := migrations[db.DriverName()]
	if !ok {
		return nil, tracerr.Wrap(fmt.Errorf("unsupported SQL driver %v", db.DriverName()))
	}
	return source, nil
}

// MigrationsUp runs the SQL migrations Up
func MigrationsUp(db *sqlx.DB) error {
	source, err := migrationSource(db)
	if err != nil {
		return tracerr.Wrap(err)
	}
	nMigrations, err := migrate.Exec(db.DB, db.DriverName(), source, migrate.Up)
	if err != nil {
		return tracerr.Wrap(err)
	}
	log.Info("successfully ran ", nMigrations, " migrations Up")
	return nil
}

// MigrationsDown runs the SQL migrations Down,
// migrationsToRun specifies how many migrations will be run, 0 means any.
func MigrationsDown(db *sqlx.DB, migrationsToRun uint) error {
	source, err := migrationSource(db)
	if err != nil {
		return tracerr.Wrap(err)
	}
	nMigrations, err := migrate.ExecMax(db.DB, db.DriverName(), source, migrate.Down, int(migrationsToRun))
	if err != nil {
		return tracerr.Wrap(err)
	}
	if migrationsToRun != 0 && nMigrations != int(migrationsToRun) {
		return tracerr.Wrap(
			fmt.Errorf("Unexpected amount of migrations applied. Expected = %d, actual = %d", migrationsToRun, nMigrations),
		)
	}
	log.Info("successfully ran ", nMigrations, " migrations Down")
	return nil
}

// ConnectSQLDB connects to the PostgreSQL DB
func ConnectSQLDB(port int, host, user, password, name string) (*sqlx.DB, error) {
	// Init meddler
	initMeddler()
	meddler.Default = meddler.PostgreSQL
	// Stablish connection
	psqlconn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		host,
		port,
		user,
		password,
		name,
	)
	db, err := sqlx.Connect(DialectPostgres, psqlconn)
	if err != nil {
		return nil, tracerr.Wrap(err)
	}
	return db, nil
}

// ConnectSQLiteDB opens the SQLite DB at path. The special path ":memory:"
// opens a private in memory DB.
func ConnectSQLiteDB(path string) (*sqlx.DB, error) {
	initMeddler()
	meddler.Default = meddler.SQLite
	db, err := sqlx.Connect(DialectSQLite, path)
	if err != nil {
		return nil, tracerr.Wrap(err)
	}
	// SQLite serializes writers, and every connection to ":memory:" is a
	// different DB
	db.SetMaxOpenConns(1)
	return db, nil
}

// InitSQLDB connects to PostgreSQL and runs migrations
func InitSQLDB(port int, host, user, password, name string) (*sqlx.DB, error) {
	db, err := ConnectSQLDB(port, host, user, password, name)
	if err != nil {
		return nil, tracerr.Wrap(err)
	}
	// Run DB migrations
	if err := MigrationsUp(db); err != nil {
		return nil, tracerr.Wrap(err)
	}
	return db, nil
}

// InitSQLiteDB opens SQLite and runs migrations
func InitSQLiteDB(path string) (*sqlx.DB, error) {
	db, err := ConnectSQLiteDB(path)
	if err != nil {
		return nil, tracerr.Wrap(err)
	}
	if err := MigrationsUp(db); err != nil {
		return nil, tracerr.Wrap(err)
	}
	return db, nil
}

// InitTestSQLDB opens an in memory SQLite database with the schema applied
func InitTestSQLDB() (*sqlx.DB, error) {
	return InitSQLiteDB(":memory:")
}

// APIConnectionController is used to limit the SQL open connections used by the API
type APIConnectionController struct {
	smphr   *semaphore.Weighted
	timeout time.Duration
}

// NewAPIConnectionController initialize APIConnectionController
func NewAPIConnectionController(maxConnections int, timeout time.Duration) *APIConnectionController {
	return &APIConnectionController{
		smphr:   semaphore.NewWeighted(int64(maxConnections)),
		timeout: timeout,
	}
}

// Acquire reserves a SQL connection. If the connection is not acquired
// within the timeout, the function will return an error
func (acc *APIConnectionController) Acquire() (context.CancelFunc, error) {
	ctx, cancel := context.WithTimeout(context.Background(), acc.timeout) //nolint:govet
	return cancel, acc.smphr.Acquire(ctx, 1)
}

// Release frees a SQL connection
func (acc *APIConnectionController) Release() {
	acc.smphr.Release(1)
}

// initMeddler registers tags to be used to read/write from SQL DBs using meddler
func initMeddler() {
	meddler.Register("bigint", BigIntMeddler{})
	meddler.Register("bigintnull", BigIntNullMeddler{})
}

// BulkInsert performs a bulk insert with a single statement into the specified table.  Example:
// `db.BulkInsert(myDB, "INSERT INTO event (type, batch_id, amount) VALUES %s", events[:])`
// Note that all the columns must be specified in the query, and they must be
// in the same order as the struct fields, skipping the primary key.
func BulkInsert(db sqlx.Ext, q string, args interface{}) error {
	arrayValue := reflect.ValueOf(args)
	arrayLen := arrayValue.Len()
	if arrayLen == 0 {
		return nil
	}
	valueStrings := make([]string, 0, arrayLen)
	var arglist = make([]interface{}, 0)
	for i := 0; i < arrayLen; i++ {
		arg := arrayValue.Index(i).Addr().Interface()
		elemArglist, err := meddler.Default.Values(arg, false)
		if err != nil {
			return tracerr.Wrap(err)
		}
		arglist = append(arglist, elemArglist...)
		valueStrings = append(valueStrings,
			"("+strings.TrimSuffix(strings.Repeat("?, ", len(elemArglist)), ", ")+")")
	}
	stmt := db.Rebind(fmt.Sprintf(q, strings.Join(valueStrings, ",")))
	_, err := db.Exec(stmt, arglist...)
	return tracerr.Wrap(err)
}

// BigIntMeddler encodes or decodes the field value to or from a decimal
// string
type BigIntMeddler struct{}

// PreRead is called before a Scan operation for fields that have the BigIntMeddler
func (b BigIntMeddler) PreRead(fieldAddr interface{}) (scanTarget interface{}, err error) {
	// give a pointer to a string to grab the raw data
	return new(string), nil
}

// PostRead is called after a Scan operation for fields that have the BigIntMeddler
func (b BigIntMeddler) PostRead(fieldPtr, scanTarget interface{}) error {
	ptr := scanTarget.(*string)
	if ptr == nil {
		return tracerr.Wrap(fmt.Errorf("BigIntMeddler.PostRead: nil pointer"))
	}
	field := fieldPtr.(**big.Int)
	var ok bool
	*field, ok = new(big.Int).SetString(*ptr, 10)
	if !ok {
		return tracerr.Wrap(fmt.Errorf("big.Int.SetString failed on \"%v\"", *ptr))
	}
	return nil
}

// PreWrite is called before an Insert or Update operation for fields that have the BigIntMeddler
func (b BigIntMeddler) PreWrite(fieldPtr interface{}) (saveValue interface{}, err error) {
	field := fieldPtr.(*big.Int)
	if field == nil {
		return "0", nil
	}
	return field.String(), nil
}

// BigIntNullMeddler encodes or decodes the field value to or from a nullable
// decimal string
type BigIntNullMeddler struct{}

// PreRead is called before a Scan operation for fields that have the BigIntNullMeddler
func (b BigIntNullMeddler) PreRead(fieldAddr interface{}) (scanTarget interface{}, err error) {
	return &fieldAddr, nil
}

// PostRead is called after a Scan operation for fields that have the BigIntNullMeddler
func (b BigIntNullMeddler) PostRead(fieldPtr, scanTarget interface{}) error {
	field := fieldPtr.(**big.Int)
	ptrPtr := scanTarget.(*interface{})
	if *ptrPtr == nil {
		// null column, so set target to be zero value
		*field = nil
		return nil
	}
	// not null
	var str string
	switch v := (*ptrPtr).(type) {
	case []byte:
		str = string(v)
	case string:
		str = v
	case int64:
		*field = big.NewInt(v)
		return nil
	default:
		return tracerr.Wrap(fmt.Errorf("BigIntNullMeddler.PostRead: unexpected type %T", v))
	}
	var ok bool
	*field, ok = new(big.Int).SetString(str, 10)
	if !ok {
		return tracerr.Wrap(fmt.Errorf("big.Int.SetString failed on \"%v\"", str))
	}
	return nil
}

// PreWrite is called before an Insert or Update operation for fields that have the BigIntNullMeddler
func (b BigIntNullMeddler) PreWrite(fieldPtr interface{}) (saveValue interface{}, err error) {
	field := fieldPtr.(*big.Int)
	if field == nil {
		return nil, nil
	}
	return field.String(), nil
}

// Rollback an sql transaction, and log the error if it's not nil
func Rollback(txn *sqlx.Tx) {
	if err := txn.Rollback(); err != nil {
		log.Errorw("Rollback", "err", err)
	}
}

// RowsClose close the rows of an sql query, and log the errir if it's not nil
func RowsClose(rows *sql.Rows) {
	if err := rows.Close(); err != nil {
		log.Errorw("rows.Close", "err", err)
	}
}

// SlicePtrsToSlice converts any []*Foo to []Foo
func SlicePtrsToSlice(slice interface{}) interface{} {
	v := reflect.ValueOf(slice)
	vLen := v.Len()
	typ := v.Type().Elem().Elem()
	res := reflect.MakeSlice(reflect.SliceOf(typ), vLen, vLen)
	for i := 0; i < vLen; i++ {
		res.Index(i).Set(v.Index(i).Elem())
	}
	return res.Interface()
}
