package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/i474232898/renewables-etl/internal/renewables"
)

// Collector provides application metrics collection
type Collector struct {
	// Fetch Metrics
	FetchAttemptsTotal *prometheus.CounterVec
	FetchDuration      *prometheus.HistogramVec

	// Pipeline Metrics
	RecordsTotal           *prometheus.CounterVec
	TransformFailuresTotal *prometheus.CounterVec
	PersistErrorsTotal     *prometheus.CounterVec
	RunDuration            prometheus.Histogram
	LastRunTimestamp       prometheus.Gauge

	// API Metrics
	APIRequestsTotal *prometheus.CounterVec
}

// NewCollector creates a new metrics collector registered on reg.
func NewCollector(namespace string, reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)
	return &Collector{
		FetchAttemptsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "fetch_attempts_total",
				Help:      "Total number of upstream HTTP attempts by source and outcome",
			},
			[]string{"source", "outcome"},
		),

		FetchDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "fetch_duration_seconds",
				Help:      "Upstream HTTP attempt duration in seconds",
				Buckets:   []float64{0.05, 0.1, 0.2, 0.5, 1.0, 2.0, 5.0, 10.0, 30.0},
			},
			[]string{"source"},
		),

		RecordsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "records_total",
				Help:      "Total number of records by source and pipeline stage",
			},
			[]string{"source", "stage"}, // "fetched", "persisted"
		),

		TransformFailuresTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "transform_failures_total",
				Help:      "Total number of records whose timestamp could not be normalized",
			},
			[]string{"source"},
		),

		PersistErrorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "persist_errors_total",
				Help:      "Total number of failed output file writes",
			},
			[]string{"source"},
		),

		RunDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "run_duration_seconds",
				Help:      "Duration of a full ETL run in seconds",
				Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600},
			},
		),

		LastRunTimestamp: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "last_run_timestamp_seconds",
				Help:      "Unix time at which the last ETL run finished",
			},
		),

		APIRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "api_requests_total",
				Help:      "Total number of status API requests by route, method, and status",
			},
			[]string{"route", "method", "status"},
		),
	}
}

// ObserveFetch records one upstream HTTP attempt.
func (c *Collector) ObserveFetch(source, outcome string, d time.Duration) {
	c.FetchAttemptsTotal.WithLabelValues(source, outcome).Inc()
	c.FetchDuration.WithLabelValues(source).Observe(d.Seconds())
}

// ObserveRecords adds n records to the counter for stage.
func (c *Collector) ObserveRecords(source renewables.Source, stage string, n int) {
	c.RecordsTotal.WithLabelValues(source.String(), stage).Add(float64(n))
}

// ObserveTransformFailures adds n failed timestamp normalizations.
func (c *Collector) ObserveTransformFailures(source renewables.Source, n int) {
	c.TransformFailuresTotal.WithLabelValues(source.String()).Add(float64(n))
}

// ObservePersistError increments the persist error counter.
func (c *Collector) ObservePersistError(source renewables.Source) {
	c.PersistErrorsTotal.WithLabelValues(source.String()).Inc()
}

// ObserveRun records the duration of a finished run.
func (c *Collector) ObserveRun(d time.Duration) {
	c.RunDuration.Observe(d.Seconds())
	c.LastRunTimestamp.SetToCurrentTime()
}

// RecordAPIRequest increments API request counter
func (c *Collector) RecordAPIRequest(route, method, status string) {
	c.APIRequestsTotal.WithLabelValues(route, method, status).Inc()
}
