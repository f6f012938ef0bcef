// Package metrics exposes Prometheus collectors for the analysis service.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	// OutcomeSuccess labels completed fits and reconstructions.
	OutcomeSuccess = "success"
	// OutcomeError labels failed requests (bad input or numeric failure).
	OutcomeError = "error"
)

var (
	fitsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tidefit",
			Name:      "fits_total",
			Help:      "Total number of harmonic fits handled, partitioned by outcome.",
		},
		[]string{"outcome"},
	)

	fitDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "tidefit",
			Name:      "fit_seconds",
			Help:      "Harmonic fit latency in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
		},
	)

	reconstructionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tidefit",
			Name:      "reconstructions_total",
			Help:      "Total number of reconstructions handled, partitioned by outcome.",
		},
		[]string{"outcome"},
	)

	reconstructionDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "tidefit",
			Name:      "reconstruction_seconds",
			Help:      "Reconstruction latency in seconds.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		},
	)

	fitConstituents = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "tidefit",
			Name:      "fit_constituents",
			Help:      "Number of constituents per fit, inferred included.",
			Buckets:   []float64{1, 2, 5, 10, 15, 20, 30, 40, 60},
		},
	)
)

// Register attaches tidefit collectors to the supplied Prometheus registerer.
func Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		fitsTotal,
		fitDurationSeconds,
		reconstructionsTotal,
		reconstructionDurationSeconds,
		fitConstituents,
	}

	for _, collector := range collectors {
		if err := reg.Register(collector); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
				continue
			}
			return err
		}
	}
	return nil
}

// ObserveFit records a fit duration, outcome and constituent count.
func ObserveFit(duration time.Duration, outcome string, constituents int) {
	label := outcome
	if label != OutcomeError {
		label = OutcomeSuccess
	}
	fitsTotal.WithLabelValues(label).Inc()
	fitDurationSeconds.Observe(duration.Seconds())
	if label == OutcomeSuccess {
		fitConstituents.Observe(float64(constituents))
	}
}

// ObserveReconstruction records a reconstruction duration and outcome.
func ObserveReconstruction(duration time.Duration, outcome string) {
	label := outcome
	if label != OutcomeError {
		label = OutcomeSuccess
	}
	reconstructionsTotal.WithLabelValues(label).Inc()
	reconstructionDurationSeconds.Observe(duration.Seconds())
}
