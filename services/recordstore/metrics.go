// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package recordstore

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Request outcome labels.
const (
	statusOK       = "ok"
	statusNotFound = "not_found"
	statusInvalid  = "invalid"
	statusError    = "error"
)

// Metrics instruments the record service endpoints.
type Metrics struct {
	// RequestsTotal counts requests.
	// Labels: endpoint, status (ok, not_found, invalid, error)
	RequestsTotal *prometheus.CounterVec

	// Latency measures handler latency.
	// Labels: endpoint
	Latency *prometheus.HistogramVec
}

// NewMetrics registers the record service metrics on reg. Nil uses the
// default registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &Metrics{
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "records",
				Name:      "requests_total",
				Help:      "Record service requests by endpoint and outcome",
			},
			[]string{"endpoint", "status"},
		),
		Latency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "records",
				Name:      "latency_seconds",
				Help:      "Record service handler latency",
				Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
			},
			[]string{"endpoint"},
		),
	}
}

func (m *Metrics) observe(endpoint, status string, d time.Duration) {
	m.RequestsTotal.WithLabelValues(endpoint, status).Inc()
	m.Latency.WithLabelValues(endpoint).Observe(d.Seconds())
}
