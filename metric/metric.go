package metric

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/vaultbridge/vaultbridge-node/common"
	"github.com/vaultbridge/vaultbridge-node/log"
)

const (
	namespaceError      = "error"
	namespaceSettlement = "settlement"
	namespaceOperator   = "operator"
	namespaceOracle     = "oracle"
	namespaceAPI        = "api"
)

var (
	// Errors errors count metric.
	Errors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespaceError,
			Name:      "errors",
			Help:      "",
		}, []string{"error"})

	// Events committed events count, by type
	Events = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespaceSettlement,
			Name:      "events_total",
			Help:      "",
		}, []string{"type"})

	// ContractState current register of the state machine
	ContractState = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespaceSettlement,
			Name:      "contract_state",
			Help:      "0 Idle, 1-3 deposit legs, 4-6 withdraw legs",
		})

	// LastFinalizedBatch last finalized batch id
	LastFinalizedBatch = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespaceSettlement,
			Name:      "last_finalized_batch",
			Help:      "",
		})

	// LastParkedBatch last batch parked as withdrawing batch
	LastParkedBatch = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespaceSettlement,
			Name:      "last_parked_batch",
			Help:      "",
		})

	// Ticks tick count, by result
	Ticks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespaceOperator,
			Name:      "ticks_total",
			Help:      "",
		}, []string{"result"})

	// TickDuration duration of a tick, in milliseconds
	TickDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespaceOperator,
			Name:      "tick_duration",
			Help:      "",
		}, []string{"result"})

	// OracleRequestDuration duration of the oracle requests, in
	// milliseconds
	OracleRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespaceOracle,
			Name:      "request_duration",
			Help:      "",
		}, []string{"endpoint"})
)

func init() {
	if err := registerCollectors(); err != nil {
		log.Error(err)
	}
}

func registerCollectors() error {
	for _, collector := range []prometheus.Collector{
		Errors,
		Events,
		ContractState,
		LastFinalizedBatch,
		LastParkedBatch,
		Ticks,
		TickDuration,
		OracleRequestDuration,
	} {
		if err := registerCollector(collector); err != nil {
			return err
		}
	}
	return nil
}

func registerCollector(collector prometheus.Collector) error {
	err := prometheus.Register(collector)
	if err != nil {
		if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
			return err
		}
	}
	return nil
}

// MeasureDuration measure the method execution duration
// and save it into a histogram metric
func MeasureDuration(histogram *prometheus.HistogramVec, start time.Time, lvs ...string) {
	duration := time.Since(start)
	histogram.WithLabelValues(lvs...).Observe(float64(duration.Milliseconds()))
}

// CollectError collect the error message and increment
// the error count
func CollectError(err error) {
	Errors.With(map[string]string{"error": err.Error()}).Inc()
}

// CollectEvents updates the metrics derived from committed events. It has the
// signature of a journal commit hook.
func CollectEvents(events []common.Event) error {
	for _, e := range events {
		Events.WithLabelValues(string(e.Type)).Inc()
		switch e.Type {
		case common.EventTransition:
			ContractState.Set(float64(e.State))
		case common.EventBatchFinalized:
			LastFinalizedBatch.Set(float64(e.BatchID))
		case common.EventBatchParked:
			LastParkedBatch.Set(float64(e.BatchID))
		}
	}
	return nil
}
