// Package metrics implements the metrics aggregator described in
// spec.md §4.8: a ring buffer of decision/fill latencies with on-demand
// percentiles, plus counters for intents, fills, rejects, and dropped
// telemetry.
package metrics

import (
	"sort"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const ringSize = 4096

// ring is a fixed-capacity circular buffer of float64 samples (teacher's
// PaperBroker used ad hoc histograms; this generalizes that into the
// spec's explicit "ring buffer (size 4096)... sorted snapshot on demand"
// language, which no library in the pack implements ready-made — see
// DESIGN.md for why this stays on the standard library).
type ring struct {
	buf   [ringSize]float64
	next  int
	count int
}

func (r *ring) push(v float64) {
	r.buf[r.next] = v
	r.next = (r.next + 1) % ringSize
	if r.count < ringSize {
		r.count++
	}
}

// snapshot returns a sorted copy of the currently-held samples.
func (r *ring) snapshot() []float64 {
	out := make([]float64, r.count)
	copy(out, r.buf[:r.count])
	sort.Float64s(out)
	return out
}

func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(p * float64(len(sorted)-1))
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

// Percentiles is a p50/p95/p99 snapshot, spec.md §4.8.
type Percentiles struct {
	P50, P95, P99 float64
}

// Counters is the set of running counters, spec.md §4.8.
type Counters struct {
	Intents           int64
	Fills             int64
	RejectsByReason   map[string]int64
	DroppedTelemetry  int64
	LatencyViolations int64
}

// Aggregator is the single-writer metrics component. It also implements
// prometheus.Collector so an (out-of-scope) HTTP exporter can mount it
// directly, mirroring the teacher's registered *Vec metrics.
type Aggregator struct {
	mu sync.Mutex

	decisionLatencyUS ring
	fillLatencyUS     ring

	intents           int64
	fills             int64
	rejects           map[string]int64
	droppedTelemetry  map[string]int64
	latencyViolations int64

	decisionHist     *prometheus.HistogramVec
	fillHist         *prometheus.HistogramVec
	intentCounter    prometheus.Counter
	fillCounter      prometheus.Counter
	rejectCounter    *prometheus.CounterVec
	droppedCounter   *prometheus.CounterVec
	violationCounter prometheus.Counter
}

// New builds an Aggregator. namespace/subsystem follow the teacher's
// prometheus naming convention (trading_mode, paper_slippage_bps, ...).
func New(namespace string) *Aggregator {
	a := &Aggregator{
		rejects:          make(map[string]int64),
		droppedTelemetry: make(map[string]int64),

		decisionHist: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "decision_latency_microseconds",
			Help:      "Latency from tick receipt to risk decision, in microseconds.",
			Buckets:   prometheus.ExponentialBuckets(10, 2, 14),
		}, nil),
		fillHist: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fill_latency_microseconds",
			Help:      "Latency from intent to fill, in microseconds.",
			Buckets:   prometheus.ExponentialBuckets(10, 2, 14),
		}, nil),
		intentCounter: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "intents_total",
			Help:      "Total intents emitted by the strategy.",
		}),
		fillCounter: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fills_total",
			Help:      "Total fills accepted by the paper broker.",
		}),
		rejectCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "risk_rejects_total",
			Help:      "Total intents rejected by the risk engine, by reason.",
		}, []string{"reason"}),
		droppedCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "telemetry_dropped_total",
			Help:      "Total telemetry events dropped by lossy channel overflow, by consumer.",
		}, []string{"consumer"}),
		violationCounter: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "decision_deadline_violations_total",
			Help:      "Total ticks whose decision stage exceeded decision_interval_ms.",
		}),
	}
	return a
}

// RecordDecisionLatency appends one decision-latency sample (microseconds).
func (a *Aggregator) RecordDecisionLatency(us float64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.decisionLatencyUS.push(us)
	a.decisionHist.WithLabelValues().Observe(us)
}

// RecordFillLatency appends one fill-latency sample (microseconds).
func (a *Aggregator) RecordFillLatency(us float64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.fillLatencyUS.push(us)
	a.fillHist.WithLabelValues().Observe(us)
}

// RecordLatencyViolation marks a tick whose decision stage exceeded the
// deadline, spec.md §5: "recorded as a latency violation but NOT dropped".
func (a *Aggregator) RecordLatencyViolation() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.latencyViolations++
	a.violationCounter.Inc()
}

// IncIntents/IncFills/IncReject/IncDropped update the counters.
func (a *Aggregator) IncIntents() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.intents++
	a.intentCounter.Inc()
}

func (a *Aggregator) IncFills() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.fills++
	a.fillCounter.Inc()
}

func (a *Aggregator) IncReject(reason string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.rejects[reason]++
	a.rejectCounter.WithLabelValues(reason).Inc()
}

func (a *Aggregator) IncDropped(consumer string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.droppedTelemetry[consumer]++
	a.droppedCounter.WithLabelValues(consumer).Inc()
}

// DecisionPercentiles/FillPercentiles compute p50/p95/p99 over the current
// ring-buffer snapshot, spec.md §4.8.
func (a *Aggregator) DecisionPercentiles() Percentiles {
	a.mu.Lock()
	defer a.mu.Unlock()
	sorted := a.decisionLatencyUS.snapshot()
	return Percentiles{
		P50: percentile(sorted, 0.50),
		P95: percentile(sorted, 0.95),
		P99: percentile(sorted, 0.99),
	}
}

func (a *Aggregator) FillPercentiles() Percentiles {
	a.mu.Lock()
	defer a.mu.Unlock()
	sorted := a.fillLatencyUS.snapshot()
	return Percentiles{
		P50: percentile(sorted, 0.50),
		P95: percentile(sorted, 0.95),
		P99: percentile(sorted, 0.99),
	}
}

// Snapshot returns the current counters.
func (a *Aggregator) Snapshot() Counters {
	a.mu.Lock()
	defer a.mu.Unlock()
	rejects := make(map[string]int64, len(a.rejects))
	for k, v := range a.rejects {
		rejects[k] = v
	}
	var dropped int64
	for _, v := range a.droppedTelemetry {
		dropped += v
	}
	return Counters{
		Intents:           a.intents,
		Fills:             a.fills,
		RejectsByReason:   rejects,
		DroppedTelemetry:  dropped,
		LatencyViolations: a.latencyViolations,
	}
}

// Describe/Collect implement prometheus.Collector.
func (a *Aggregator) Describe(ch chan<- *prometheus.Desc) {
	a.decisionHist.Describe(ch)
	a.fillHist.Describe(ch)
	a.intentCounter.Describe(ch)
	a.fillCounter.Describe(ch)
	a.rejectCounter.Describe(ch)
	a.droppedCounter.Describe(ch)
	a.violationCounter.Describe(ch)
}

func (a *Aggregator) Collect(ch chan<- prometheus.Metric) {
	a.decisionHist.Collect(ch)
	a.fillHist.Collect(ch)
	a.intentCounter.Collect(ch)
	a.fillCounter.Collect(ch)
	a.rejectCounter.Collect(ch)
	a.droppedCounter.Collect(ch)
	a.violationCounter.Collect(ch)
}
