// Package kvdb provides a key-value database with Checkpoints & Resets system
// that stores the world state of the node
package kvdb

import (
	"encoding/binary"
	"fmt"
	"io/ioutil"
	"os"
	"path"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/hermeznetwork/tracerr"
	"github.com/iden3/go-merkletree/db"
	"github.com/iden3/go-merkletree/db/pebble"
	"github.com/vaultbridge/vaultbridge-node/common"
	"github.com/vaultbridge/vaultbridge-node/log"
)

const (
	// PathCheckpoint defines the subpath of the checkpoints in the
	// subpath of the KVDB
	PathCheckpoint = "Checkpoint"
	// PathCurrent defines the subpath of the current state in the subpath
	// of the KVDB
	PathCurrent = "current"
	// PathLast defines the subpath of the last checkpoint in the subpath
	// of the KVDB
	PathLast = "last"
)

var (
	// KeyCurrentCheckpoint is used as key in the db to store the current
	// CheckpointNum
	KeyCurrentCheckpoint = []byte("k:currentcheckpoint")
	// keyCommitTime is used as key in the db to store the time of the last
	// committed operation
	keyCommitTime = []byte("k:committime")
	// prefixBatch prefixes the keys mapping a finalized BatchID to the
	// checkpoint made when it was finalized
	prefixBatch = []byte("k:batch:")
	// prefixState prefixes the keys holding the state of each component
	prefixState = []byte("w:")
)

// CheckpointNum identifies a checkpoint. Checkpoints are numbered
// consecutively starting at 1; 0 is the empty state.
type CheckpointNum uint64

// Bytes returns a byte array representing the CheckpointNum
func (c CheckpointNum) Bytes() []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], uint64(c))
	return b[:]
}

func checkpointNumFromBytes(b []byte) (CheckpointNum, error) {
	if len(b) != 8 {
		return 0, tracerr.Wrap(fmt.Errorf("can not parse CheckpointNum, bytes len %d, expected 8", len(b)))
	}
	return CheckpointNum(binary.BigEndian.Uint64(b)), nil
}

// KVDB represents the Key-Value DB object
type KVDB struct {
	path              string
	db                *pebble.Storage
	CurrentCheckpoint CheckpointNum
	keep              int
	m                 sync.Mutex
	last              *Last
}

// Last is a consistent view to the last checkpoint of the KVDB that can be
// queried concurrently.
type Last struct {
	db   *pebble.Storage
	path string
	rw   sync.RWMutex
}

func (k *Last) setNew() error {
	k.rw.Lock()
	defer k.rw.Unlock()
	if k.db != nil {
		k.db.Close()
	}
	lastPath := path.Join(k.path, PathLast)
	if err := os.RemoveAll(lastPath); err != nil {
		return tracerr.Wrap(err)
	}
	db, err := pebble.NewPebbleStorage(lastPath, false)
	if err != nil {
		return tracerr.Wrap(err)
	}
	k.db = db
	return nil
}

func (k *Last) set(kvdb *KVDB, checkpoint CheckpointNum) error {
	k.rw.Lock()
	defer k.rw.Unlock()
	if k.db != nil {
		k.db.Close()
	}
	lastPath := path.Join(k.path, PathLast)
	if err := kvdb.MakeCheckpointFromTo(checkpoint, lastPath); err != nil {
		return tracerr.Wrap(err)
	}
	db, err := pebble.NewPebbleStorage(lastPath, false)
	if err != nil {
		return tracerr.Wrap(err)
	}
	k.db = db
	return nil
}

func (k *Last) close() {
	k.rw.Lock()
	defer k.rw.Unlock()
	if k.db != nil {
		k.db.Close()
	}
}

// NewKVDB opens the KVDB stored at pathDB. Checkpoints older than the value
// defined by `keep` will be deleted.
func NewKVDB(pathDB string, keep int) (*KVDB, error) {
	sto, err := pebble.NewPebbleStorage(path.Join(pathDB, PathCurrent), false)
	if err != nil {
		return nil, tracerr.Wrap(err)
	}

	kvdb := &KVDB{
		path: pathDB,
		db:   sto,
		keep: keep,
		last: &Last{
			path: pathDB,
		},
	}
	kvdb.CurrentCheckpoint, err = kvdb.GetCurrentCheckpoint()
	if err != nil {
		return nil, tracerr.Wrap(err)
	}
	// 'current' may hold state written after the last checkpoint, so it
	// is kept and only 'last' is refreshed
	if kvdb.CurrentCheckpoint == 0 {
		err = kvdb.last.setNew()
	} else {
		err = kvdb.last.set(kvdb, kvdb.CurrentCheckpoint)
	}
	if err != nil {
		return nil, tracerr.Wrap(err)
	}
	return kvdb, nil
}

// LastRead is a thread-safe method to query the last checkpoint
func (kvdb *KVDB) LastRead(fn func(db *pebble.Storage) error) error {
	kvdb.last.rw.RLock()
	defer kvdb.last.rw.RUnlock()
	return fn(kvdb.last.db)
}

// DB returns the *pebble.Storage from the KVDB
func (kvdb *KVDB) DB() *pebble.Storage {
	return kvdb.db
}

// PutState stores the encoded state of every component together with the
// time of the operation that produced it, in a single transaction
func (kvdb *KVDB) PutState(states map[string][]byte, commitTime time.Time) error {
	tx, err := kvdb.db.NewTx()
	if err != nil {
		return tracerr.Wrap(err)
	}
	for name, state := range states {
		if err := tx.Put(append(append([]byte{}, prefixState...), name...), state); err != nil {
			tx.Close()
			return tracerr.Wrap(err)
		}
	}
	var ts [8]byte
	binary.BigEndian.PutUint64(ts[:], uint64(commitTime.UnixNano()))
	if err := tx.Put(keyCommitTime, ts[:]); err != nil {
		tx.Close()
		return tracerr.Wrap(err)
	}
	return tracerr.Wrap(tx.Commit())
}

// GetStates returns the encoded state of every stored component, by name
func (kvdb *KVDB) GetStates() (map[string][]byte, error) {
	return getStates(kvdb.db)
}

// LastGetStates returns the encoded states at the last checkpoint
func (kvdb *KVDB) LastGetStates() (map[string][]byte, error) {
	var states map[string][]byte
	err := kvdb.LastRead(func(sto *pebble.Storage) error {
		var err error
		states, err = getStates(sto)
		return tracerr.Wrap(err)
	})
	return states, tracerr.Wrap(err)
}

func getStates(sto *pebble.Storage) (map[string][]byte, error) {
	states := make(map[string][]byte)
	err := sto.WithPrefix(prefixState).Iterate(func(k, v []byte) (bool, error) {
		states[string(k)] = append([]byte{}, v...)
		return true, nil
	})
	if err != nil {
		return nil, tracerr.Wrap(err)
	}
	return states, nil
}

// GetCommitTime returns the time of the last stored operation, or the zero
// time if nothing was stored yet
func (kvdb *KVDB) GetCommitTime() (time.Time, error) {
	ts, err := kvdb.db.Get(keyCommitTime)
	if tracerr.Unwrap(err) == db.ErrNotFound {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, tracerr.Wrap(err)
	}
	if len(ts) != 8 {
		return time.Time{}, tracerr.Wrap(fmt.Errorf("invalid commit time, bytes len %d", len(ts)))
	}
	return time.Unix(0, int64(binary.BigEndian.Uint64(ts))).UTC(), nil
}

// GetCheckpointOfBatch returns the checkpoint made when batchID was
// finalized
func (kvdb *KVDB) GetCheckpointOfBatch(batchID common.BatchID) (CheckpointNum, error) {
	b, err := kvdb.db.Get(append(append([]byte{}, prefixBatch...), batchID.Bytes()...))
	if tracerr.Unwrap(err) == db.ErrNotFound {
		return 0, tracerr.Wrap(fmt.Errorf("no checkpoint for batch %d", batchID))
	}
	if err != nil {
		return 0, tracerr.Wrap(err)
	}
	return checkpointNumFromBytes(b)
}

// Reset resets the KVDB to the given checkpoint. Checkpoints after it are
// deleted.
func (kvdb *KVDB) Reset(checkpoint CheckpointNum) error {
	currentPath := path.Join(kvdb.path, PathCurrent)

	if err := kvdb.db.Pebble().Close(); err != nil {
		return tracerr.Wrap(err)
	}
	if err := os.RemoveAll(currentPath); err != nil {
		return tracerr.Wrap(err)
	}
	list, err := kvdb.ListCheckpoints()
	if err != nil {
		return tracerr.Wrap(err)
	}
	// Find first checkpoint that is greater than checkpoint, and delete
	// everything after that
	start := 0
	for ; start < len(list); start++ {
		if CheckpointNum(list[start]) > checkpoint {
			break
		}
	}
	for _, cn := range list[start:] {
		if err := kvdb.DeleteCheckpoint(CheckpointNum(cn)); err != nil {
			return tracerr.Wrap(err)
		}
	}

	if checkpoint == 0 {
		sto, err := pebble.NewPebbleStorage(currentPath, false)
		if err != nil {
			return tracerr.Wrap(err)
		}
		kvdb.db = sto
		kvdb.CurrentCheckpoint = 0
		return tracerr.Wrap(kvdb.last.setNew())
	}

	// copy 'checkpoint' to 'current'
	if err := kvdb.MakeCheckpointFromTo(checkpoint, currentPath); err != nil {
		return tracerr.Wrap(err)
	}
	// copy 'checkpoint' to 'last'
	if err := kvdb.last.set(kvdb, checkpoint); err != nil {
		return tracerr.Wrap(err)
	}
	sto, err := pebble.NewPebbleStorage(currentPath, false)
	if err != nil {
		return tracerr.Wrap(err)
	}
	kvdb.db = sto
	kvdb.CurrentCheckpoint, err = kvdb.GetCurrentCheckpoint()
	return tracerr.Wrap(err)
}

// ResetToBatch resets the KVDB to the checkpoint made when batchID was
// finalized
func (kvdb *KVDB) ResetToBatch(batchID common.BatchID) error {
	checkpoint, err := kvdb.GetCheckpointOfBatch(batchID)
	if err != nil {
		return tracerr.Wrap(err)
	}
	return tracerr.Wrap(kvdb.Reset(checkpoint))
}

// GetCurrentCheckpoint returns the current CheckpointNum stored in the KVDB
func (kvdb *KVDB) GetCurrentCheckpoint() (CheckpointNum, error) {
	cb, err := kvdb.db.Get(KeyCurrentCheckpoint)
	if tracerr.Unwrap(err) == db.ErrNotFound {
		return 0, nil
	}
	if err != nil {
		return 0, tracerr.Wrap(err)
	}
	return checkpointNumFromBytes(cb)
}

// LastGetCurrentCheckpoint returns the CheckpointNum of the last checkpoint
func (kvdb *KVDB) LastGetCurrentCheckpoint() (CheckpointNum, error) {
	var checkpoint CheckpointNum
	err := kvdb.LastRead(func(sto *pebble.Storage) error {
		cb, err := sto.Get(KeyCurrentCheckpoint)
		if tracerr.Unwrap(err) == db.ErrNotFound {
			return nil
		}
		if err != nil {
			return tracerr.Wrap(err)
		}
		checkpoint, err = checkpointNumFromBytes(cb)
		return tracerr.Wrap(err)
	})
	return checkpoint, tracerr.Wrap(err)
}

// MakeCheckpoint advances the current CheckpointNum, maps the given finalized
// batches to it and stores a Checkpoint of the current state of the KVDB.
func (kvdb *KVDB) MakeCheckpoint(finalized ...common.BatchID) error {
	kvdb.CurrentCheckpoint++

	checkpointPath := kvdb.checkpointPath(kvdb.CurrentCheckpoint)

	tx, err := kvdb.db.NewTx()
	if err != nil {
		return tracerr.Wrap(err)
	}
	if err := tx.Put(KeyCurrentCheckpoint, kvdb.CurrentCheckpoint.Bytes()); err != nil {
		tx.Close()
		return tracerr.Wrap(err)
	}
	for _, batchID := range finalized {
		key := append(append([]byte{}, prefixBatch...), batchID.Bytes()...)
		if err := tx.Put(key, kvdb.CurrentCheckpoint.Bytes()); err != nil {
			tx.Close()
			return tracerr.Wrap(err)
		}
	}
	if err := tx.Commit(); err != nil {
		return tracerr.Wrap(err)
	}

	// if checkpoint already exist in disk, delete it
	if _, err := os.Stat(checkpointPath); !os.IsNotExist(err) {
		if err := os.RemoveAll(checkpointPath); err != nil {
			return tracerr.Wrap(err)
		}
	} else if err != nil && !os.IsNotExist(err) {
		return tracerr.Wrap(err)
	}

	if err := kvdb.db.Pebble().Checkpoint(checkpointPath); err != nil {
		return tracerr.Wrap(err)
	}
	if err := kvdb.last.set(kvdb, kvdb.CurrentCheckpoint); err != nil {
		return tracerr.Wrap(err)
	}
	return tracerr.Wrap(kvdb.deleteOldCheckpoints())
}

func (kvdb *KVDB) checkpointPath(checkpoint CheckpointNum) string {
	return path.Join(kvdb.path, fmt.Sprintf("%s%d", PathCheckpoint, checkpoint))
}

// DeleteCheckpoint removes if exist the given checkpoint
func (kvdb *KVDB) DeleteCheckpoint(checkpoint CheckpointNum) error {
	checkpointPath := kvdb.checkpointPath(checkpoint)

	if _, err := os.Stat(checkpointPath); os.IsNotExist(err) {
		return tracerr.Wrap(fmt.Errorf("Checkpoint %d does not exist in DB", checkpoint))
	}

	return tracerr.Wrap(os.RemoveAll(checkpointPath))
}

// ListCheckpoints returns the list of CheckpointNums of the checkpoints,
// sorted. If there's a gap between the list of checkpoints, an error is
// returned.
func (kvdb *KVDB) ListCheckpoints() ([]int, error) {
	files, err := ioutil.ReadDir(kvdb.path)
	if err != nil {
		return nil, tracerr.Wrap(err)
	}
	checkpoints := []int{}
	var checkpoint int
	pattern := fmt.Sprintf("%s%%d", PathCheckpoint)
	for _, file := range files {
		fileName := file.Name()
		if file.IsDir() && strings.HasPrefix(fileName, PathCheckpoint) {
			if _, err := fmt.Sscanf(fileName, pattern, &checkpoint); err != nil {
				return nil, tracerr.Wrap(err)
			}
			checkpoints = append(checkpoints, checkpoint)
		}
	}
	sort.Ints(checkpoints)
	if len(checkpoints) > 0 {
		first := checkpoints[0]
		for _, checkpoint := range checkpoints[1:] {
			first++
			if checkpoint != first {
				log.Errorw("GAP", "checkpoints", checkpoints)
				return nil, tracerr.Wrap(fmt.Errorf("checkpoint gap at %v", checkpoint))
			}
		}
	}
	return checkpoints, nil
}

// deleteOldCheckpoints deletes old checkpoints when there are more than
// `kvdb.keep` checkpoints
func (kvdb *KVDB) deleteOldCheckpoints() error {
	list, err := kvdb.ListCheckpoints()
	if err != nil {
		return tracerr.Wrap(err)
	}
	if len(list) > kvdb.keep {
		for _, checkpoint := range list[:len(list)-kvdb.keep] {
			if err := kvdb.DeleteCheckpoint(CheckpointNum(checkpoint)); err != nil {
				return tracerr.Wrap(err)
			}
		}
	}
	return nil
}

// MakeCheckpointFromTo copies the given checkpoint to the dest folder. This
// method is locking, so it can be called from multiple places at the same
// time.
func (kvdb *KVDB) MakeCheckpointFromTo(from CheckpointNum, dest string) error {
	source := kvdb.checkpointPath(from)
	if _, err := os.Stat(source); os.IsNotExist(err) {
		return tracerr.Wrap(fmt.Errorf("Checkpoint \"%v\" does not exist", source))
	}
	kvdb.m.Lock()
	defer kvdb.m.Unlock()
	return pebbleMakeCheckpoint(source, dest)
}

func pebbleMakeCheckpoint(source, dest string) error {
	// Remove dest folder (if it exists) before doing the checkpoint
	if _, err := os.Stat(dest); !os.IsNotExist(err) {
		if err := os.RemoveAll(dest); err != nil {
			return tracerr.Wrap(err)
		}
	} else if err != nil && !os.IsNotExist(err) {
		return tracerr.Wrap(err)
	}

	sto, err := pebble.NewPebbleStorage(source, false)
	if err != nil {
		return tracerr.Wrap(err)
	}
	defer func() {
		if errClose := sto.Pebble().Close(); errClose != nil {
			log.Errorw("Pebble.Close", "err", errClose)
		}
	}()

	return tracerr.Wrap(sto.Pebble().Checkpoint(dest))
}

// Close the DB
func (kvdb *KVDB) Close() {
	kvdb.db.Close()
	kvdb.last.close()
}
