/*
Package journal serializes every mutating operation on the settlement state
and makes it all-or-nothing.

Components register their state with a Journal. Journal.Atomic runs an
operation under a single writer lock after taking a deep copy of every
registered state; if the operation returns an error every state is restored
from its copy and the events emitted during the operation are dropped. On
success the events are handed to the commit hooks, in emission order.
*/
package journal

import (
	"encoding/json"
	"fmt"
	"math/big"
	"reflect"
	"sync"
	"time"

	"github.com/hermeznetwork/tracerr"
	"github.com/mitchellh/copystructure"
	"github.com/vaultbridge/vaultbridge-node/common"
	"github.com/vaultbridge/vaultbridge-node/log"
)

func init() {
	copystructure.Copiers[reflect.TypeOf(big.Int{})] =
		func(raw interface{}) (interface{}, error) {
			in := raw.(big.Int)
			out := new(big.Int).Set(&in)
			return *out, nil
		}
}

// Component is a piece of journaled state. State returns a pointer to a
// struct with exported fields only; SetState receives a value of the same
// type to replace it.
type Component interface {
	Name() string
	State() interface{}
	SetState(state interface{})
}

// CommitHook is called after every successful operation, with the lock held
type CommitHook func(events []common.Event) error

// Journal is the single writer of the registered components
type Journal struct {
	mu         sync.Mutex
	components []Component
	pending    []common.Event
	hooks      []CommitHook
	timeNow    func() time.Time
}

// NewJournal creates an empty Journal
func NewJournal() *Journal {
	return &Journal{timeNow: time.Now}
}

// SetTimeNow replaces the clock used to timestamp events
func (j *Journal) SetTimeNow(timeNow func() time.Time) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.timeNow = timeNow
}

// Register adds a component to the journal
func (j *Journal) Register(components ...Component) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.components = append(j.components, components...)
}

// Components returns the registered components
func (j *Journal) Components() []Component {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]Component{}, j.components...)
}

// OnCommit adds a hook called after every successful operation
func (j *Journal) OnCommit(hook CommitHook) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.hooks = append(j.hooks, hook)
}

// Emit records an event of the running operation. It must only be called
// from inside Atomic.
func (j *Journal) Emit(event common.Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = j.timeNow()
	}
	j.pending = append(j.pending, event)
}

// Now returns the time of the journal clock
func (j *Journal) Now() time.Time {
	return j.timeNow()
}

// Atomic runs fn as a single all-or-nothing operation. Atomic is not
// reentrant: fn must only call the unjournaled methods of the components.
func (j *Journal) Atomic(fn func() error) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	snapshots := make([]interface{}, len(j.components))
	for i, c := range j.components {
		snapshot, err := copystructure.Copy(c.State())
		if err != nil {
			return tracerr.Wrap(err)
		}
		snapshots[i] = snapshot
	}
	err := fn()
	events := j.pending
	j.pending = nil
	if err != nil {
		for i, c := range j.components {
			c.SetState(snapshots[i])
		}
		return tracerr.Wrap(err)
	}
	for _, hook := range j.hooks {
		if err := hook(events); err != nil {
			// State is already committed in memory, the hooks only
			// mirror it.
			log.Errorw("journal: commit hook", "err", err)
		}
	}
	return nil
}

// Read runs fn holding the writer lock without journaling. It is used by
// queries that need a consistent view of several components.
func (j *Journal) Read(fn func()) {
	j.mu.Lock()
	defer j.mu.Unlock()
	fn()
}

// EncodeStates returns the JSON encoding of every registered state by
// component name. It does not lock: call it from a commit hook or inside
// Atomic or Read.
func (j *Journal) EncodeStates() (map[string][]byte, error) {
	states := make(map[string][]byte, len(j.components))
	for _, c := range j.components {
		b, err := json.Marshal(c.State())
		if err != nil {
			return nil, tracerr.Wrap(err)
		}
		states[c.Name()] = b
	}
	return states, nil
}

// LoadStates replaces the state of the registered components with the
// decoded states. Components without an entry keep their state.
func (j *Journal) LoadStates(states map[string][]byte) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	decoded := make([]interface{}, len(j.components))
	for i, c := range j.components {
		b, ok := states[c.Name()]
		if !ok {
			continue
		}
		state := reflect.New(reflect.TypeOf(c.State()).Elem()).Interface()
		if err := json.Unmarshal(b, state); err != nil {
			return tracerr.Wrap(fmt.Errorf("decoding %s state: %w", c.Name(), err))
		}
		decoded[i] = state
	}
	for i, c := range j.components {
		if decoded[i] != nil {
			c.SetState(decoded[i])
		}
	}
	return nil
}
