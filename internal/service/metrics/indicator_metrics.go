package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	// ComputeLatency tracks how long a full indicator derivation takes per
	// stage. Stage "snapshot" covers the single-asset indicators, stage
	// "correlation" the pairwise fan-out on top of it.
	ComputeLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "indistream",
			Subsystem: "indicator",
			Name:      "compute_seconds",
			Help:      "Time spent deriving indicators from window snapshots",
			Buckets:   prometheus.ExponentialBuckets(1e-6, 10, 8),
		},
		[]string{"stage"},
	)

	ComputeIncomplete = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "indistream",
			Subsystem: "indicator",
			Name:      "incomplete_total",
			Help:      "Indicators skipped because the window has fewer samples than the period",
		},
		[]string{"indicator"},
	)
)

func Register() {
	once.Do(func() {
		prometheus.MustRegister(ComputeLatency, ComputeIncomplete)
	})
}
