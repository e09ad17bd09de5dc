package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder exposes dispatch-core metrics via Prometheus.
type Recorder struct {
	executions      *prometheus.CounterVec
	gateRejections  *prometheus.CounterVec
	errorsTotal     *prometheus.CounterVec
	dispatchLatency *prometheus.HistogramVec
	opLatency       *prometheus.HistogramVec
	positionSize    *prometheus.HistogramVec
	drawdownPct     *prometheus.GaugeVec
	riskModifier    *prometheus.GaugeVec
	cacheSize       prometheus.Gauge
}

// New creates a recorder registered with the default registry.
func New() *Recorder {
	return NewWith(prometheus.DefaultRegisterer)
}

// NewWith creates a recorder registered with reg. Tests pass a fresh
// registry so recorders can be built repeatedly in one process.
func NewWith(reg prometheus.Registerer) *Recorder {
	factory := promauto.With(reg)
	return &Recorder{
		executions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tradegate_executions_total",
				Help: "Total dispatch attempts by mode and terminal status",
			},
			[]string{"mode", "status"},
		),
		gateRejections: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tradegate_gate_rejections_total",
				Help: "Signals rejected before dispatch, by reason",
			},
			[]string{"reason"},
		),
		errorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tradegate_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		dispatchLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tradegate_dispatch_duration_seconds",
				Help:    "Wall-clock dispatch latency in seconds",
				Buckets: []float64{.01, .05, .1, .25, .5, 1, 2, 5},
			},
			[]string{"mode"},
		),
		opLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tradegate_operation_duration_seconds",
				Help:    "Duration of internal operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		positionSize: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tradegate_position_size_pct",
				Help:    "Gated position size as a fraction of equity",
				Buckets: []float64{.01, .025, .05, .1, .15, .2},
			},
			[]string{"strategy_id"},
		),
		drawdownPct: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "tradegate_drawdown_pct",
				Help: "Current drawdown per strategy, negative for a loss",
			},
			[]string{"strategy_id"},
		),
		riskModifier: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "tradegate_risk_modifier",
				Help: "Current sizing modifier per strategy",
			},
			[]string{"strategy_id"},
		),
		cacheSize: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "tradegate_result_cache_entries",
				Help: "Entries held in the execution result cache",
			},
		),
	}
}

// RecordExecution counts a dispatch outcome.
func (r *Recorder) RecordExecution(mode, status string) {
	r.executions.WithLabelValues(mode, status).Inc()
}

// RecordGateRejection counts a pre-dispatch rejection by reason.
func (r *Recorder) RecordGateRejection(reason string) {
	r.gateRejections.WithLabelValues(reason).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordDispatchLatency observes one dispatch round-trip.
func (r *Recorder) RecordDispatchLatency(mode string, d time.Duration) {
	r.dispatchLatency.WithLabelValues(mode).Observe(d.Seconds())
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.opLatency.WithLabelValues(op).Observe(seconds)
}

// RecordPositionSize observes a gated position size.
func (r *Recorder) RecordPositionSize(strategyID string, pct float64) {
	r.positionSize.WithLabelValues(strategyID).Observe(pct)
}

// SetDrawdown updates the drawdown and modifier gauges for a strategy.
func (r *Recorder) SetDrawdown(strategyID string, pct, modifier float64) {
	r.drawdownPct.WithLabelValues(strategyID).Set(pct)
	r.riskModifier.WithLabelValues(strategyID).Set(modifier)
}

// SetCacheSize updates the result-cache size gauge.
func (r *Recorder) SetCacheSize(n int) {
	r.cacheSize.Set(float64(n))
}
