// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

// Package telemetry centralizes process metrics. Components report their
// counters here instead of keeping private mutable stats, and the API
// server exposes the registry on /metrics.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"net/http"
)

var registry = prometheus.NewRegistry()

// Handler returns the HTTP handler serving the metrics registry.
func Handler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}

// Registry exposes the agent-wide registry for tests.
func Registry() *prometheus.Registry { return registry }

func factory() promauto.Factory { return promauto.With(registry) }

// NewCounter registers and returns a counter vec in the edge namespace.
func NewCounter(subsystem, name, help string, labels ...string) *prometheus.CounterVec {
	return factory().NewCounterVec(prometheus.CounterOpts{
		Namespace: "edge",
		Subsystem: subsystem,
		Name:      name,
		Help:      help,
	}, labels)
}

// NewGauge registers and returns a gauge vec in the edge namespace.
func NewGauge(subsystem, name, help string, labels ...string) *prometheus.GaugeVec {
	return factory().NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "edge",
		Subsystem: subsystem,
		Name:      name,
		Help:      help,
	}, labels)
}

// NewHistogram registers and returns a histogram vec in the edge namespace.
func NewHistogram(subsystem, name, help string, buckets []float64, labels ...string) *prometheus.HistogramVec {
	return factory().NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "edge",
		Subsystem: subsystem,
		Name:      name,
		Help:      help,
		Buckets:   buckets,
	}, labels)
}
