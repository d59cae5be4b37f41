// Package metrics exposes the consumer's Prometheus instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the instruments the processor records into.
type Metrics struct {
	ReadingsProcessed  *prometheus.CounterVec
	FieldsIgnored      *prometheus.CounterVec
	ProcessingDuration prometheus.Histogram
	BatchSize          prometheus.Histogram
}

// New registers the consumer's instruments with reg and returns them.
// Instruments are bound to the given registry, so independent registries
// can carry independent instances.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ReadingsProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "meterpower_readings_processed_total",
			Help: "Total count of readings processed, by resolution outcome.",
		}, []string{"outcome"}),
		FieldsIgnored: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "meterpower_fields_ignored_total",
			Help: "Total count of unrecognized fields dropped during normalization, by field name.",
		}, []string{"field"}),
		ProcessingDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "meterpower_processing_duration_seconds",
			Help:    "Histogram of time spent deriving power per batch.",
			Buckets: prometheus.DefBuckets,
		}),
		BatchSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "meterpower_batch_size",
			Help:    "Histogram of readings per batch handed to the processor.",
			Buckets: prometheus.ExponentialBuckets(1, 4, 8),
		}),
	}

	reg.MustRegister(
		m.ReadingsProcessed,
		m.FieldsIgnored,
		m.ProcessingDuration,
		m.BatchSize,
	)

	return m
}
