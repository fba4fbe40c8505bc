// Package metrics exports service instruments to Prometheus
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestsTotal requests by route, method and status code
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flight_delay_requests_total",
			Help: "Total number of HTTP requests processed",
		},
		[]string{"endpoint", "method", "status"},
	)

	// RequestDuration request latency
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "flight_delay_request_duration_seconds",
			Help:    "Request duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 5, 30},
		},
		[]string{"endpoint", "method"},
	)

	// CacheHits prediction cache hits
	CacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "flight_delay_cache_hits_total",
			Help: "Total number of prediction cache hits",
		},
	)

	// CacheMisses prediction cache misses
	CacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "flight_delay_cache_misses_total",
			Help: "Total number of prediction cache misses",
		},
	)

	// CacheErrors failed cache reads and writes, ignored by serving
	CacheErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flight_delay_cache_errors_total",
			Help: "Total number of prediction cache errors",
		},
		[]string{"op"},
	)

	// PredictionsTotal flights scored, by output kind
	PredictionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flight_delay_predictions_total",
			Help: "Total number of flights scored",
		},
		[]string{"kind"},
	)

	// TrainingRuns training runs by outcome
	TrainingRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flight_delay_training_runs_total",
			Help: "Total number of training runs",
		},
		[]string{"status"},
	)

	// TrainingDuration wall time of a training run
	TrainingDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "flight_delay_training_duration_seconds",
			Help:    "Training run duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		},
	)

	// ModelLoaded 1 while a model is being served
	ModelLoaded = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "flight_delay_model_loaded",
			Help: "Whether a trained model is loaded (1) or not (0)",
		},
	)

	// ModelAccuracy held-out accuracy of the last trained model
	ModelAccuracy = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "flight_delay_model_accuracy",
			Help: "Held-out accuracy of the most recently trained model",
		},
	)
)

// ObserveTraining records the outcome of one training run
func ObserveTraining(seconds float64, accuracy float64, err error) {
	TrainingDuration.Observe(seconds)
	if err != nil {
		TrainingRuns.WithLabelValues("error").Inc()
		return
	}
	TrainingRuns.WithLabelValues("ok").Inc()
	ModelAccuracy.Set(accuracy)
}
