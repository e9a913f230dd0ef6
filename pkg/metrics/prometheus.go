package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	transitions *prometheus.CounterVec
	tickLatency *prometheus.HistogramVec
	outcomes    *prometheus.CounterVec
	flushedBars prometheus.Counter
	errorsTotal *prometheus.CounterVec
	lastPrice   *prometheus.GaugeVec
}

// New creates a new Prometheus metrics recorder.
func New() *Recorder {
	return &Recorder{
		transitions: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "marketpulse_market_transitions_total",
				Help: "Total number of market status transitions applied",
			},
			[]string{"market", "status"},
		),
		tickLatency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "marketpulse_supervisor_tick_duration_seconds",
				Help:    "Duration of one intraday supervisor tick in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"market"},
		),
		outcomes: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "marketpulse_graded_outcomes_total",
				Help: "Total number of session rows graded, by outcome",
			},
			[]string{"outcome"},
		),
		flushedBars: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "marketpulse_flushed_bars_total",
				Help: "Total number of one-minute bars flushed to durable storage",
			},
		),
		errorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "marketpulse_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		lastPrice: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "marketpulse_last_price",
				Help: "Last observed price for a symbol",
			},
			[]string{"symbol"},
		),
	}
}

// RecordTransition records an applied market status transition.
func (r *Recorder) RecordTransition(market, status string) {
	r.transitions.WithLabelValues(market, status).Inc()
}

// RecordTick records one supervisor tick's duration in seconds.
func (r *Recorder) RecordTick(market string, seconds float64) {
	r.tickLatency.WithLabelValues(market).Observe(seconds)
}

// RecordOutcome records a graded session row.
func (r *Recorder) RecordOutcome(outcome string) {
	r.outcomes.WithLabelValues(outcome).Inc()
}

// RecordFlushedBars records bars persisted by the flush pipeline.
func (r *Recorder) RecordFlushedBars(n int) {
	r.flushedBars.Add(float64(n))
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLastPrice records the last price for a symbol.
func (r *Recorder) RecordLastPrice(symbol string, price float64) {
	r.lastPrice.WithLabelValues(symbol).Set(price)
}
