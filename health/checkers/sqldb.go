package checkers

import (
	"github.com/dimiro1/health"
	dbHealth "github.com/dimiro1/health/db"
	"github.com/jmoiron/sqlx"
	"github.com/vaultbridge/vaultbridge-node/db"
)

// SQLChecker struct to check current status of the db
type SQLChecker struct {
	checker dbHealth.Checker
}

// NewCheckerWithDB creates new instance of the SQLChecker for the dialect of
// the connection
func NewCheckerWithDB(sqlDB *sqlx.DB) SQLChecker {
	if sqlDB.DriverName() == db.DialectSQLite {
		return SQLChecker{checker: dbHealth.Checker{
			DB:         sqlDB.DB,
			VersionSQL: "SELECT sqlite_version()",
		}}
	}
	return SQLChecker{checker: dbHealth.NewPostgreSQLChecker(sqlDB.DB)}
}

// Check function check is db is responding and returns status, version of db
// and id of the last migration
func (c SQLChecker) Check() health.Health {
	h := c.checker.Check()

	q := `SELECT id FROM gorp_migrations ORDER BY id DESC LIMIT 1`
	row := c.checker.DB.QueryRow(q)
	var id string
	if err := row.Scan(&id); err != nil {
		h.Down().AddInfo("error", err.Error())
		return h
	}

	h.Up().AddInfo("last_migration", id)

	return h
}
