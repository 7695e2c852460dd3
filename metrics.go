package main

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Service counters, registered with the default registry and exposed at
// /metrics.
var (
	predictionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "agrostress",
		Name:      "predictions_total",
		Help:      "Predictions served, by stress tag.",
	}, []string{"tag"})

	providerFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "agrostress",
		Name:      "satellite_provider_failures_total",
		Help:      "Satellite provider calls that returned no usable data.",
	})
)
