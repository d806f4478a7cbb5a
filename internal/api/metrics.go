package api

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "curios",
		Subsystem: "api",
		Name:      "requests_total",
		Help:      "Backend requests, by endpoint and outcome.",
	}, []string{"endpoint", "outcome"})

	requestDurationSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "curios",
		Subsystem: "api",
		Name:      "request_duration_seconds",
		Help:      "Backend request duration in seconds.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"endpoint"})

	malformedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "curios",
		Subsystem: "api",
		Name:      "malformed_responses_total",
		Help:      "Responses rejected by the normalizer, by endpoint.",
	}, []string{"endpoint"})
)
