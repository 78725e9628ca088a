package observability

import (
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"fortunex/core/events"
	"fortunex/core/types"
	"fortunex/native/lottery"
)

// LotteryMetrics tracks engine operations, settlement outcomes, the keeper and
// the query API.
type LotteryMetrics struct {
	operations  *prometheus.CounterVec
	latency     *prometheus.HistogramVec
	settlements *prometheus.CounterVec
	disbursed   *prometheus.CounterVec
	events      *prometheus.CounterVec
	crankDue    prometheus.Gauge
	throttles   *prometheus.CounterVec
	rpcRequests *prometheus.CounterVec
	rpcLatency  *prometheus.HistogramVec
}

var (
	lotteryMetricsOnce sync.Once
	lotteryRegistry    *LotteryMetrics
)

// Lottery returns the lazily-initialised lottery metrics registry.
func Lottery() *LotteryMetrics {
	lotteryMetricsOnce.Do(func() {
		lotteryRegistry = &LotteryMetrics{
			operations: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "fortunex",
				Subsystem: "engine",
				Name:      "operations_total",
				Help:      "Lottery operations segmented by operation and error class.",
			}, []string{"operation", "outcome"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "fortunex",
				Subsystem: "engine",
				Name:      "operation_duration_seconds",
				Help:      "Latency distribution of lottery operations.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"operation"}),
			settlements: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "fortunex",
				Subsystem: "settlement",
				Name:      "attempts_total",
				Help:      "Settlement attempts segmented by outcome.",
			}, []string{"outcome"}),
			disbursed: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "fortunex",
				Subsystem: "settlement",
				Name:      "disbursed_total",
				Help:      "Base units paid out by settlements segmented by recipient role.",
			}, []string{"role"}),
			events: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "fortunex",
				Subsystem: "events",
				Name:      "emitted_total",
				Help:      "Lottery events emitted segmented by type.",
			}, []string{"type"}),
			crankDue: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "fortunex",
				Subsystem: "crank",
				Name:      "due_pools",
				Help:      "Pools found due for settlement on the latest keeper scan.",
			}),
			throttles: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "fortunex",
				Name:      "throttles_total",
				Help:      "Requests or settlements deferred by rate limiting.",
			}, []string{"component"}),
			rpcRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "fortunex",
				Subsystem: "rpc",
				Name:      "requests_total",
				Help:      "Query API requests segmented by route and status code.",
			}, []string{"route", "status"}),
			rpcLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "fortunex",
				Subsystem: "rpc",
				Name:      "request_duration_seconds",
				Help:      "Latency distribution of query API handlers.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"route"}),
		}
		prometheus.MustRegister(
			lotteryRegistry.operations,
			lotteryRegistry.latency,
			lotteryRegistry.settlements,
			lotteryRegistry.disbursed,
			lotteryRegistry.events,
			lotteryRegistry.crankDue,
			lotteryRegistry.throttles,
			lotteryRegistry.rpcRequests,
			lotteryRegistry.rpcLatency,
		)
	})
	return lotteryRegistry
}

// ObserveOperation records the outcome of an engine operation. Errors are
// labelled by their lottery error class.
func (m *LotteryMetrics) ObserveOperation(operation string, duration time.Duration, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = lottery.Classify(err).String()
	}
	m.operations.WithLabelValues(operation, outcome).Inc()
	if duration > 0 {
		m.latency.WithLabelValues(operation).Observe(duration.Seconds())
	}
}

// RecordSettlement increments the settlement counter for outcome.
func (m *LotteryMetrics) RecordSettlement(outcome string) {
	if m == nil {
		return
	}
	m.settlements.WithLabelValues(outcome).Inc()
}

// RecordDueScan stores the number of due pools found by the keeper.
func (m *LotteryMetrics) RecordDueScan(due int) {
	if m == nil {
		return
	}
	m.crankDue.Set(float64(due))
}

// RecordThrottle counts a rate limited request for component.
func (m *LotteryMetrics) RecordThrottle(component string) {
	if m == nil {
		return
	}
	m.throttles.WithLabelValues(component).Inc()
}

// ObserveRPC records a query API request.
func (m *LotteryMetrics) ObserveRPC(route string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.rpcRequests.WithLabelValues(route, strconv.Itoa(status)).Inc()
	m.rpcLatency.WithLabelValues(route).Observe(duration.Seconds())
}

// RecordEvent counts an emitted event and, for settlements, the amounts paid
// to each recipient role.
func (m *LotteryMetrics) RecordEvent(evt *types.Event) {
	if m == nil || evt == nil {
		return
	}
	m.events.WithLabelValues(evt.Type).Inc()
	if evt.Type != lottery.EventTypePoolSettled {
		return
	}
	for role, attr := range map[lottery.DisbursementRole]string{
		lottery.RoleWinner:       "winnerPrize",
		lottery.RolePlatform:     "platformFee",
		lottery.RoleBonusReserve: "bonusFee",
		lottery.RoleCreator:      "commission",
	} {
		amount, err := strconv.ParseUint(evt.Attr(attr), 10, 64)
		if err != nil {
			continue
		}
		m.disbursed.WithLabelValues(string(role)).Add(float64(amount))
	}
}

type payloadEvent interface {
	Event() *types.Event
}

var errNoPayload = errors.New("observability: event carries no payload")

// Payload extracts the typed payload from an emitted event.
func Payload(evt events.Event) (*types.Event, error) {
	carrier, ok := evt.(payloadEvent)
	if !ok || carrier.Event() == nil {
		return nil, errNoPayload
	}
	return carrier.Event(), nil
}

// EventMetrics is an events.Emitter that feeds LotteryMetrics.
type EventMetrics struct {
	Metrics *LotteryMetrics
}

// Emit implements events.Emitter.
func (e EventMetrics) Emit(evt events.Event) {
	payload, err := Payload(evt)
	if err != nil {
		return
	}
	metrics := e.Metrics
	if metrics == nil {
		metrics = Lottery()
	}
	metrics.RecordEvent(payload)
}
