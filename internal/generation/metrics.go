package generation

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	requestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "smartfaq",
			Subsystem: "generation",
			Name:      "requests_total",
			Help:      "Generation calls by final outcome",
		},
		[]string{"outcome"},
	)

	attemptsPerCall = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "smartfaq",
			Subsystem: "generation",
			Name:      "attempts",
			Help:      "Upstream requests made per generation call",
			Buckets:   []float64{1, 2, 3, 4, 5, 8},
		},
	)

	requestDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "smartfaq",
			Subsystem: "generation",
			Name:      "duration_seconds",
			Help:      "Wall time of generation calls including retries",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 10),
		},
	)
)
