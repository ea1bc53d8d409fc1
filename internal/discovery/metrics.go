package discovery

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	searchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "discovery_searches_total",
		Help: "Discovery searches served, labelled by response provenance.",
	}, []string{"source"})

	generationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "discovery_generation_seconds",
		Help:    "Wall time of generative pipeline runs.",
		Buckets: prometheus.ExponentialBuckets(0.5, 2, 8),
	})

	candidatesRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "discovery_candidates_rejected_total",
		Help: "Generated candidates dropped by validation, labelled by reason.",
	}, []string{"reason"})

	singleflightShared = promauto.NewCounter(prometheus.CounterOpts{
		Name: "discovery_singleflight_shared_total",
		Help: "Requests that attached to an already in-flight generation.",
	})

	fallbacksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "discovery_fallbacks_total",
		Help: "Generative requests answered from the authoritative path after a timeout.",
	})
)
