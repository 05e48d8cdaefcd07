package checkers

import (
	"github.com/dimiro1/health"
	"github.com/vaultbridge/vaultbridge-node/db/kvdb"
)

// KVDBChecker struct for world state db checker
type KVDBChecker struct {
	kvdb *kvdb.KVDB
}

// NewKVDBChecker init world state db checker
func NewKVDBChecker(k *kvdb.KVDB) KVDBChecker {
	return KVDBChecker{
		kvdb: k,
	}
}

// Check world state db health
func (c KVDBChecker) Check() health.Health {
	h := health.NewHealth()

	checkpoint, err := c.kvdb.LastGetCurrentCheckpoint()
	if err != nil {
		h.Down().AddInfo("error", err.Error())
		return h
	}
	commitTime, err := c.kvdb.GetCommitTime()
	if err != nil {
		h.Down().AddInfo("error", err.Error())
		return h
	}

	h.Up().
		AddInfo("checkpoint", checkpoint).
		AddInfo("lastCommit", commitTime)

	return h
}
