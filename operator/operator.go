/*
Package operator drives the settlement state machine on behalf of the
operator account.

The Operator ticks the settlement engine periodically. After a tick that
made progress it ticks again at once, so that a batch moves through every
stage that does not wait on the custodian without further delay. Ticks that
revert because the custodian has not acted yet, or because the oracle data
is stale, are retried after TickRetryInterval. Fee collections run on their
own interval.
*/
package operator

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	ethCommon "github.com/ethereum/go-ethereum/common"
	"github.com/hermeznetwork/tracerr"
	"github.com/vaultbridge/vaultbridge-node/common"
	"github.com/vaultbridge/vaultbridge-node/log"
	"github.com/vaultbridge/vaultbridge-node/metric"
)

const (
	resultProgress = "progress"
	resultIdle     = "idle"
	resultWaiting  = "waiting"
	resultError    = "error"
)

// Settlement is the part of the settlement engine the Operator drives
type Settlement interface {
	Tick(ctx context.Context, caller ethCommon.Address) (bool, error)
	CurrentState() common.ContractState
	ActiveBatch() common.Batch
}

// FeeCollector collects the protocol fee
type FeeCollector interface {
	CollectFee(ctx context.Context, caller ethCommon.Address) (*big.Int, error)
}

// Config contains the Operator configuration
type Config struct {
	// Address is the operator account
	Address ethCommon.Address
	// TickInterval is the waiting interval between ticks that made no
	// progress
	TickInterval time.Duration
	// TickRetryInterval is the waiting interval after a reverted tick
	TickRetryInterval time.Duration
	// FeeCollectInterval is the waiting interval between fee collection
	// attempts. Zero disables them.
	FeeCollectInterval time.Duration
	// Attempts is the number of consecutive failed ticks retried after
	// TickRetryInterval before falling back to TickInterval
	Attempts int
}

// Operator runs the operator loop
type Operator struct {
	cfg        Config
	settlement Settlement
	fee        FeeCollector
	failures   int
	started    bool

	msgCh  chan interface{}
	ctx    context.Context
	wg     sync.WaitGroup
	cancel context.CancelFunc
}

// NewOperator creates a new Operator. fee can be nil to disable fee
// collection.
func NewOperator(cfg Config, settlement Settlement, fee FeeCollector) (*Operator, error) {
	if cfg.Attempts < 1 {
		return nil, tracerr.Wrap(fmt.Errorf("invalid value for Config.Attempts (%v < 1)",
			cfg.Attempts))
	}
	if cfg.TickInterval <= 0 || cfg.TickRetryInterval <= 0 {
		return nil, tracerr.Wrap(fmt.Errorf("tick intervals must be positive"))
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Operator{
		cfg:        cfg,
		settlement: settlement,
		fee:        fee,
		msgCh:      make(chan interface{}),
		ctx:        ctx,
		cancel:     cancel,
	}, nil
}

// MsgTick requests an immediate tick
type MsgTick struct{}

// MsgCollectFee requests an immediate fee collection
type MsgCollectFee struct{}

// SendMsg is a thread safe method to pass a message to the Operator
func (o *Operator) SendMsg(ctx context.Context, msg interface{}) {
	select {
	case o.msgCh <- msg:
	case <-ctx.Done():
	case <-o.ctx.Done():
	}
}

// tick runs a single tick and returns the time to wait for the next one
func (o *Operator) tick(ctx context.Context) time.Duration {
	stateBefore := o.settlement.CurrentState()
	batchBefore := o.settlement.ActiveBatch().BatchID
	start := time.Now()

	finalized, err := o.settlement.Tick(ctx, o.cfg.Address)
	var result string
	var wait time.Duration
	switch {
	case err == nil:
		o.failures = 0
		state := o.settlement.CurrentState()
		if finalized || state != stateBefore || o.settlement.ActiveBatch().BatchID != batchBefore {
			log.Debugw("Operator: tick", "state", state, "finalized", finalized)
			result, wait = resultProgress, 0
		} else {
			result, wait = resultIdle, o.cfg.TickInterval
		}
	case common.IsErr(err, common.ErrLockStillHeld),
		common.IsErr(err, common.ErrExchangeRateStale),
		common.IsErr(err, common.ErrPaused):
		log.Infow("Operator: tick waiting", "state", stateBefore, "reason", tracerr.Unwrap(err))
		result, wait = resultWaiting, o.cfg.TickRetryInterval
	default:
		log.Errorw("Operator: tick", "state", stateBefore, "err", err)
		metric.CollectError(tracerr.Unwrap(err))
		o.failures++
		result, wait = resultError, o.cfg.TickRetryInterval
		if o.failures >= o.cfg.Attempts {
			o.failures = 0
			wait = o.cfg.TickInterval
		}
	}
	metric.Ticks.WithLabelValues(result).Inc()
	metric.MeasureDuration(metric.TickDuration, start, result)
	return wait
}

func (o *Operator) collectFee(ctx context.Context) {
	if o.fee == nil {
		return
	}
	fee, err := o.fee.CollectFee(ctx, o.cfg.Address)
	switch {
	case err == nil:
		log.Infow("Operator: fee collected", "fee", fee)
	case common.IsErr(err, common.ErrFeePeriodNotElapsed),
		common.IsErr(err, common.ErrRateNotIncreased):
		log.Debugw("Operator: fee not collected", "reason", tracerr.Unwrap(err))
	default:
		log.Errorw("Operator: collect fee", "err", err)
		metric.CollectError(tracerr.Unwrap(err))
	}
}

// Start the operator loop
func (o *Operator) Start() {
	if o.started {
		log.Fatal("Operator already started")
	}
	o.started = true

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		tickTimer := time.NewTimer(0)
		defer tickTimer.Stop()
		var feeCh <-chan time.Time
		if o.cfg.FeeCollectInterval > 0 && o.fee != nil {
			feeTicker := time.NewTicker(o.cfg.FeeCollectInterval)
			defer feeTicker.Stop()
			feeCh = feeTicker.C
		}
		for {
			select {
			case <-o.ctx.Done():
				log.Info("Operator done")
				return
			case msg := <-o.msgCh:
				switch msg.(type) {
				case MsgTick:
					if !tickTimer.Stop() {
						select {
						case <-tickTimer.C:
						default:
						}
					}
					tickTimer.Reset(o.tick(o.ctx))
				case MsgCollectFee:
					o.collectFee(o.ctx)
				default:
					log.Errorw("Operator: unexpected msg", "type", fmt.Sprintf("%T", msg))
				}
			case <-tickTimer.C:
				tickTimer.Reset(o.tick(o.ctx))
			case <-feeCh:
				o.collectFee(o.ctx)
			}
		}
	}()
}

// Stop the operator loop
func (o *Operator) Stop() {
	if !o.started {
		log.Fatal("Operator already stopped")
	}
	o.started = false
	log.Infow("Stopping Operator...")
	o.cancel()
	o.wg.Wait()
}
