package vectorindex

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// vectorsAdded counts vectors appended, by backend.
	vectorsAdded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "smartfaq",
			Subsystem: "vectorindex",
			Name:      "vectors_added_total",
			Help:      "Total number of vectors appended to the index",
		},
		[]string{"backend"},
	)

	// searchDuration tracks kNN search latency, by backend.
	searchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "smartfaq",
			Subsystem: "vectorindex",
			Name:      "search_duration_seconds",
			Help:      "Duration of nearest-neighbor searches in seconds",
			Buckets:   []float64{.0001, .0005, .001, .005, .01, .05, .1, .5, 1},
		},
		[]string{"backend"},
	)
)
