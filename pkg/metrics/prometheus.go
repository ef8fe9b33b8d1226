package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain/repository.Metrics using Prometheus.
type Recorder struct {
	runsTotal      *prometheus.CounterVec
	stageCount     *prometheus.GaugeVec
	errorsTotal    *prometheus.CounterVec
	latency        *prometheus.HistogramVec
	lastPowerScore *prometheus.GaugeVec
}

// New creates a new Prometheus metrics recorder.
func New() *Recorder {
	return &Recorder{
		runsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "overdrive_runs_total",
				Help: "Total number of hunt runs by outcome",
			},
			[]string{"outcome"},
		),
		stageCount: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "overdrive_stage_candidates",
				Help: "Candidate count surviving each pipeline stage in the last run",
			},
			[]string{"stage"},
		),
		errorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "overdrive_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		latency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "overdrive_operation_duration_seconds",
				Help:    "Duration of pipeline operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		lastPowerScore: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "overdrive_last_power_score",
				Help: "Final power score of the most recent winner per ticker",
			},
			[]string{"ticker"},
		),
	}
}

// RecordRun records a completed hunt run with its outcome.
func (r *Recorder) RecordRun(outcome string) {
	r.runsTotal.WithLabelValues(outcome).Inc()
}

// RecordStageCount records how many candidates survived a pipeline stage.
func (r *Recorder) RecordStageCount(stage string, n int) {
	r.stageCount.WithLabelValues(stage).Set(float64(n))
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}

// RecordPowerScore records the power score of a selected ticker.
func (r *Recorder) RecordPowerScore(ticker string, score float64) {
	r.lastPowerScore.WithLabelValues(ticker).Set(score)
}
