// Package metrics implements the Metrics Collector (spec component C13):
// counters, gauges, and timings for actor/workflow/queue execution, plus
// component health probes. Grounded directly on the teacher's
// graph/metrics.go PrometheusMetrics, relabeled from node/graph execution
// to actor/workflow/queue concerns.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics is the Prometheus-backed metrics collector for a Loom runtime
// instance.
//
// Metrics exposed (namespaced "loom_"):
//  1. inflight_actors (gauge): actor invocations currently executing. Labels: actor_type.
//  2. queue_depth (gauge): pending messages per queue. Labels: queue_name.
//  3. invocation_latency_ms (histogram): actor invocation duration. Labels: actor_type, status.
//  4. retries_total (counter): cumulative retry attempts. Labels: actor_type, reason.
//  5. journal_compactions_total (counter): snapshot compactions performed. Labels: actor_type.
//  6. backpressure_events_total (counter): queue saturation events. Labels: queue_name, reason.
//  7. ai_cost_usd_total (counter): cumulative AI action cost in USD. Labels: model.
//  8. ai_tokens_total (counter): cumulative AI action tokens. Labels: model, direction ("input"/"output").
type Metrics struct {
	inflightActors prometheus.Gauge
	queueDepth     *prometheus.GaugeVec

	invocationLatency *prometheus.HistogramVec

	retries            *prometheus.CounterVec
	journalCompactions *prometheus.CounterVec
	backpressure       *prometheus.CounterVec
	aiCost             *prometheus.CounterVec
	aiTokens           *prometheus.CounterVec

	mu      sync.RWMutex
	enabled bool
}

// New creates and registers all Loom metrics with registry. Pass nil to use
// prometheus.DefaultRegisterer.
func New(registry prometheus.Registerer) *Metrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}
	factory := promauto.With(registry)

	m := &Metrics{enabled: true}

	m.inflightActors = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: "loom",
		Name:      "inflight_actors",
		Help:      "Current number of actor invocations executing concurrently",
	})

	m.queueDepth = factory.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "loom",
		Name:      "queue_depth",
		Help:      "Number of messages pending in a queue",
	}, []string{"queue_name"})

	m.invocationLatency = factory.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "loom",
		Name:      "invocation_latency_ms",
		Help:      "Actor invocation duration in milliseconds",
		Buckets:   []float64{1, 5, 10, 50, 100, 500, 1000, 5000, 10000, 30000},
	}, []string{"actor_type", "status"})

	m.retries = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: "loom",
		Name:      "retries_total",
		Help:      "Cumulative count of actor invocation retry attempts",
	}, []string{"actor_type", "reason"})

	m.journalCompactions = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: "loom",
		Name:      "journal_compactions_total",
		Help:      "Journal snapshot compactions performed",
	}, []string{"actor_type"})

	m.backpressure = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: "loom",
		Name:      "backpressure_events_total",
		Help:      "Queue saturation events where enqueue was throttled",
	}, []string{"queue_name", "reason"})

	m.aiCost = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: "loom",
		Name:      "ai_cost_usd_total",
		Help:      "Cumulative AI action cost in USD",
	}, []string{"model"})

	m.aiTokens = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: "loom",
		Name:      "ai_tokens_total",
		Help:      "Cumulative AI action token usage",
	}, []string{"model", "direction"})

	return m
}

func (m *Metrics) RecordInvocationLatency(actorType string, latency time.Duration, status string) {
	if !m.isEnabled() {
		return
	}
	m.invocationLatency.WithLabelValues(actorType, status).Observe(float64(latency.Milliseconds()))
}

func (m *Metrics) IncrementRetries(actorType, reason string) {
	if !m.isEnabled() {
		return
	}
	m.retries.WithLabelValues(actorType, reason).Inc()
}

func (m *Metrics) IncrementJournalCompactions(actorType string) {
	if !m.isEnabled() {
		return
	}
	m.journalCompactions.WithLabelValues(actorType).Inc()
}

func (m *Metrics) UpdateQueueDepth(queueName string, depth int) {
	if !m.isEnabled() {
		return
	}
	m.queueDepth.WithLabelValues(queueName).Set(float64(depth))
}

func (m *Metrics) UpdateInflightActors(count int) {
	if !m.isEnabled() {
		return
	}
	m.inflightActors.Set(float64(count))
}

func (m *Metrics) IncrementBackpressure(queueName, reason string) {
	if !m.isEnabled() {
		return
	}
	m.backpressure.WithLabelValues(queueName, reason).Inc()
}

// RecordAICost adds one AI action's cost and token usage to the ai_cost_usd_total
// and ai_tokens_total series for model.
func (m *Metrics) RecordAICost(model string, costUSD float64, inputTokens, outputTokens int) {
	if !m.isEnabled() {
		return
	}
	m.aiCost.WithLabelValues(model).Add(costUSD)
	m.aiTokens.WithLabelValues(model, "input").Add(float64(inputTokens))
	m.aiTokens.WithLabelValues(model, "output").Add(float64(outputTokens))
}

func (m *Metrics) isEnabled() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.enabled
}

// Disable temporarily disables metric recording (useful for testing).
func (m *Metrics) Disable() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.enabled = false
}

// Enable re-enables metric recording after Disable.
func (m *Metrics) Enable() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.enabled = true
}
