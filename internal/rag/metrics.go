package rag

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	corpusChunks = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "smartfaq",
			Subsystem: "corpus",
			Name:      "chunks",
			Help:      "Number of chunks currently stored",
		},
	)

	documentsIngested = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "smartfaq",
			Subsystem: "ingest",
			Name:      "documents_total",
			Help:      "Ingestion requests by kind and result",
		},
		[]string{"kind", "result"},
	)

	chunksIngested = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "smartfaq",
			Subsystem: "ingest",
			Name:      "chunks_total",
			Help:      "Chunks appended to the corpus",
		},
	)

	questionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "smartfaq",
			Subsystem: "ask",
			Name:      "questions_total",
			Help:      "Questions answered, by whether any context was retrieved",
		},
		[]string{"context"},
	)
)
