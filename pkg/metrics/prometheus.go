package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	signalsTotal    *prometheus.CounterVec
	duplicatesTotal *prometheus.CounterVec
	overflowDrops   *prometheus.CounterVec
	staleTotal      *prometheus.CounterVec
	decisionsTotal  *prometheus.CounterVec
	ticksAbandoned  *prometheus.CounterVec
	errorsTotal     *prometheus.CounterVec
	latency         *prometheus.HistogramVec
	compositeScore  *prometheus.GaugeVec
}

// New creates a new Prometheus metrics recorder.
func New() *Recorder {
	return &Recorder{
		signalsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tradepulse_signals_total",
				Help: "Total number of signals accepted by the bus",
			},
			[]string{"source", "kind"},
		),
		duplicatesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tradepulse_duplicate_signals_total",
				Help: "Total number of signals dropped as duplicates",
			},
			[]string{"source"},
		),
		overflowDrops: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tradepulse_overflow_drops_total",
				Help: "Total number of signals evicted by queue overflow",
			},
			[]string{"asset"},
		),
		staleTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tradepulse_stale_signals_total",
				Help: "Total number of signals excluded for staleness",
			},
			[]string{"asset"},
		),
		decisionsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tradepulse_decisions_total",
				Help: "Total number of emitted decisions",
			},
			[]string{"action"},
		),
		ticksAbandoned: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tradepulse_ticks_abandoned_total",
				Help: "Total number of aggregation ticks abandoned over budget",
			},
			[]string{"asset"},
		),
		errorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tradepulse_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		latency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tradepulse_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		compositeScore: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "tradepulse_composite_score",
				Help: "Latest composite score per asset",
			},
			[]string{"asset"},
		),
	}
}

// RecordSignal records a signal accepted by the bus.
func (r *Recorder) RecordSignal(source, kind string) {
	r.signalsTotal.WithLabelValues(source, kind).Inc()
}

// RecordDuplicate records a signal dropped as a duplicate.
func (r *Recorder) RecordDuplicate(source string) {
	r.duplicatesTotal.WithLabelValues(source).Inc()
}

// RecordOverflowDrop records a queue-overflow eviction.
func (r *Recorder) RecordOverflowDrop(assetID string) {
	r.overflowDrops.WithLabelValues(assetID).Inc()
}

// RecordStale records a signal excluded for staleness.
func (r *Recorder) RecordStale(assetID string) {
	r.staleTotal.WithLabelValues(assetID).Inc()
}

// RecordDecision records an emitted decision.
func (r *Recorder) RecordDecision(action string) {
	r.decisionsTotal.WithLabelValues(action).Inc()
}

// RecordTickAbandoned records a tick abandoned over budget.
func (r *Recorder) RecordTickAbandoned(assetID string) {
	r.ticksAbandoned.WithLabelValues(assetID).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}

// RecordScore records the latest composite score for an asset.
func (r *Recorder) RecordScore(assetID string, score float64) {
	r.compositeScore.WithLabelValues(assetID).Set(score)
}
