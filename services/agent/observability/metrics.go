// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package observability provides metrics and tracing for the agent pipeline.
//
// # Description
//
// Every pipeline stage receives an *Observer carrying the Prometheus metrics,
// an OpenTelemetry tracer and a logger. Metrics include:
//   - Request counters by query type and failure counters by node and reason
//   - Stage latency histograms (intent, validation, fetch, analysis, response)
//   - Data-service request and rejection counters, cache hit/miss gauges
//   - LLM call, failure, token and cost counters
//
// # Integration
//
// Metrics are registered on an injected prometheus.Registerer so the service
// and each test own an isolated registry. The service exposes the registry
// at /metrics and summarizes it at /v1/system-metrics.
//
// # Thread Safety
//
// All metric operations are thread-safe via Prometheus's internal locking.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// =============================================================================
// Metric Definitions
// =============================================================================

// Namespace for all metrics
const metricsNamespace = "scholar"

const (
	agentSubsystem     = "agent"
	datastoreSubsystem = "datastore"
	llmSubsystem       = "llm"
	cacheSubsystem     = "cache"
	analysisSubsystem  = "analysis"
)

// Metrics holds all Prometheus metrics for the agent pipeline.
//
// # Description
//
// Initialize once per registry via NewMetrics. Registering twice on the same
// registry panics, which is the promauto contract.
//
// # Thread Safety
//
// All operations are thread-safe.
type Metrics struct {
	// RequestsTotal counts classified requests.
	// Labels: query_type
	RequestsTotal *prometheus.CounterVec

	// FailuresTotal counts pipeline failures.
	// Labels: node, reason
	FailuresTotal *prometheus.CounterVec

	// StageLatency measures per-node latency.
	// Labels: node
	StageLatency *prometheus.HistogramVec

	// ActiveRequests tracks requests currently inside the pipeline.
	ActiveRequests prometheus.Gauge

	// DatastoreRequestsTotal counts fetch outcomes.
	// Labels: status (success, error, validation_reject, not_found, timeout)
	DatastoreRequestsTotal *prometheus.CounterVec

	// DatastoreRejectedTotal counts HTTP-level failures by status code.
	// Labels: reason (http_404, http_503, ...)
	DatastoreRejectedTotal *prometheus.CounterVec

	// DatastoreLatency measures data-service call latency.
	// Labels: operation (query, class_analysis)
	DatastoreLatency *prometheus.HistogramVec

	// CacheHits and CacheMisses are monotonically increasing gauges.
	CacheHits   prometheus.Gauge
	CacheMisses prometheus.Gauge

	// CacheHitRate is hits / (hits + misses), refreshed on every lookup.
	CacheHitRate prometheus.Gauge

	// LLMCallsTotal counts classification calls.
	// Labels: model
	LLMCallsTotal *prometheus.CounterVec

	// LLMFailuresTotal counts classification failures that triggered fallback.
	// Labels: reason
	LLMFailuresTotal *prometheus.CounterVec

	// LLMLatency measures classification call latency.
	// Labels: model
	LLMLatency *prometheus.HistogramVec

	// LLMTokensTotal counts tokens by direction.
	// Labels: model, direction (input, output)
	LLMTokensTotal *prometheus.CounterVec

	// LLMCostUSDTotal accumulates estimated spend.
	// Labels: model
	LLMCostUSDTotal *prometheus.CounterVec

	// AnalysisLatency measures analysis computation latency.
	// Labels: query_type
	AnalysisLatency *prometheus.HistogramVec
}

var stageBuckets = []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30}

// NewMetrics creates and registers all pipeline metrics on reg.
//
// # Inputs
//
//   - reg: Registerer to attach collectors to. Nil uses the default registry.
//
// # Outputs
//
//   - *Metrics: The initialized metrics instance.
//
// # Examples
//
//	reg := prometheus.NewRegistry()
//	metrics := observability.NewMetrics(reg)
//
// # Limitations
//
//   - Panics if called twice on the same registry (duplicate registration).
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	m := &Metrics{
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: agentSubsystem,
				Name:      "requests_total",
				Help:      "Total classified requests by query type",
			},
			[]string{"query_type"},
		),

		FailuresTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: agentSubsystem,
				Name:      "failures_total",
				Help:      "Total pipeline failures by node and reason",
			},
			[]string{"node", "reason"},
		),

		StageLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: agentSubsystem,
				Name:      "latency_seconds",
				Help:      "Pipeline node latency in seconds",
				Buckets:   stageBuckets,
			},
			[]string{"node"},
		),

		ActiveRequests: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Subsystem: agentSubsystem,
				Name:      "active_requests",
				Help:      "Requests currently inside the pipeline",
			},
		),

		DatastoreRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: datastoreSubsystem,
				Name:      "requests_total",
				Help:      "Total data-service fetches by outcome",
			},
			[]string{"status"},
		),

		DatastoreRejectedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: datastoreSubsystem,
				Name:      "rejected_requests_total",
				Help:      "Total data-service HTTP failures by status code",
			},
			[]string{"reason"},
		),

		DatastoreLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: datastoreSubsystem,
				Name:      "latency_seconds",
				Help:      "Data-service call latency in seconds",
				Buckets:   stageBuckets,
			},
			[]string{"operation"},
		),

		CacheHits: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Subsystem: cacheSubsystem,
				Name:      "hits",
				Help:      "Result cache hits since start",
			},
		),

		CacheMisses: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Subsystem: cacheSubsystem,
				Name:      "misses",
				Help:      "Result cache misses since start",
			},
		),

		CacheHitRate: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Subsystem: cacheSubsystem,
				Name:      "hit_rate",
				Help:      "Result cache hit rate between 0 and 1",
			},
		),

		LLMCallsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: llmSubsystem,
				Name:      "calls_total",
				Help:      "Total LLM classification calls by model",
			},
			[]string{"model"},
		),

		LLMFailuresTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: llmSubsystem,
				Name:      "failures_total",
				Help:      "Total LLM classification failures by reason",
			},
			[]string{"reason"},
		),

		LLMLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: llmSubsystem,
				Name:      "latency_seconds",
				Help:      "LLM classification latency in seconds",
				Buckets:   []float64{0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0},
			},
			[]string{"model"},
		),

		LLMTokensTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: llmSubsystem,
				Name:      "tokens_total",
				Help:      "Total LLM tokens by model and direction",
			},
			[]string{"model", "direction"},
		),

		LLMCostUSDTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: llmSubsystem,
				Name:      "cost_usd_total",
				Help:      "Estimated LLM spend in US dollars",
			},
			[]string{"model"},
		),

		AnalysisLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: analysisSubsystem,
				Name:      "latency_seconds",
				Help:      "Analysis computation latency in seconds",
				Buckets:   stageBuckets,
			},
			[]string{"query_type"},
		),
	}
	return m
}

// =============================================================================
// Label Values
// =============================================================================

// Node names a pipeline stage.
type Node string

const (
	NodeIntent     Node = "intent"
	NodeValidation Node = "validation"
	NodeFetch      Node = "mcp_call"
	NodeAnalysis   Node = "analysis"
	NodeResponse   Node = "response"
	NodeError      Node = "error"
)

// FailureReason categorizes a pipeline failure.
type FailureReason string

const (
	ReasonLLMParse   FailureReason = "llm_parse"
	ReasonValidation FailureReason = "validation"
	ReasonFetch      FailureReason = "mcp_error"
	ReasonAnalysis   FailureReason = "analysis"
	ReasonTimeout    FailureReason = "timeout"
	ReasonUnknown    FailureReason = "unknown"
)

// FetchStatus is the outcome label for a data-service call.
type FetchStatus string

const (
	FetchSuccess          FetchStatus = "success"
	FetchError            FetchStatus = "error"
	FetchValidationReject FetchStatus = "validation_reject"
	FetchNotFound         FetchStatus = "not_found"
	FetchTimeout          FetchStatus = "timeout"
)

// =============================================================================
// Helper Methods
// =============================================================================

// RecordRequest counts one classified request.
func (m *Metrics) RecordRequest(queryType string) {
	m.RequestsTotal.WithLabelValues(queryType).Inc()
}

// RecordFailure counts one failure at node.
//
// # Inputs
//
//   - node: The stage that failed.
//   - reason: The failure category. Validation failures pass the concrete
//     validation reason string instead.
func (m *Metrics) RecordFailure(node Node, reason string) {
	m.FailuresTotal.WithLabelValues(string(node), reason).Inc()
}

// ObserveStage records latency for node.
func (m *Metrics) ObserveStage(node Node, d time.Duration) {
	m.StageLatency.WithLabelValues(string(node)).Observe(d.Seconds())
}

// RequestStarted increments the active requests gauge.
func (m *Metrics) RequestStarted() {
	m.ActiveRequests.Inc()
}

// RequestEnded decrements the active requests gauge.
func (m *Metrics) RequestEnded() {
	m.ActiveRequests.Dec()
}

// RecordFetch counts one data-service outcome and its latency.
func (m *Metrics) RecordFetch(operation string, status FetchStatus, d time.Duration) {
	m.DatastoreRequestsTotal.WithLabelValues(string(status)).Inc()
	m.DatastoreLatency.WithLabelValues(operation).Observe(d.Seconds())
}

// RecordRejected counts one HTTP-level data-service failure.
func (m *Metrics) RecordRejected(reason string) {
	m.DatastoreRejectedTotal.WithLabelValues(reason).Inc()
}

// RecordCacheStats publishes a cache's lifetime hit and miss counts and
// the resulting hit rate.
func (m *Metrics) RecordCacheStats(hits, misses int64) {
	m.CacheHits.Set(float64(hits))
	m.CacheMisses.Set(float64(misses))
	if total := hits + misses; total > 0 {
		m.CacheHitRate.Set(float64(hits) / float64(total))
	}
}

// RecordLLMCall records one LLM call's latency.
func (m *Metrics) RecordLLMCall(model string, d time.Duration) {
	m.LLMCallsTotal.WithLabelValues(model).Inc()
	m.LLMLatency.WithLabelValues(model).Observe(d.Seconds())
}

// RecordLLMFailure counts one LLM failure that fell back to heuristics.
func (m *Metrics) RecordLLMFailure(reason string) {
	m.LLMFailuresTotal.WithLabelValues(reason).Inc()
}

// RecordLLMUsage records token counts and the estimated cost.
//
// # Outputs
//
//   - float64: The estimated cost in USD for this call.
func (m *Metrics) RecordLLMUsage(model string, inputTokens, outputTokens int) float64 {
	m.LLMTokensTotal.WithLabelValues(model, "input").Add(float64(inputTokens))
	m.LLMTokensTotal.WithLabelValues(model, "output").Add(float64(outputTokens))
	cost := EstimateCost(model, inputTokens, outputTokens)
	m.LLMCostUSDTotal.WithLabelValues(model).Add(cost)
	return cost
}

// ObserveAnalysis records analysis latency for a query type.
func (m *Metrics) ObserveAnalysis(queryType string, d time.Duration) {
	m.AnalysisLatency.WithLabelValues(queryType).Observe(d.Seconds())
}
