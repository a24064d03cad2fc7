// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package observability

import (
	"fmt"
	"sort"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// HistogramSummary is the count/sum/avg view of one labeled histogram series.
type HistogramSummary struct {
	Count uint64  `json:"count"`
	Sum   float64 `json:"sum"`
	Avg   float64 `json:"avg"`
}

// Summary is the JSON view served at /v1/system-metrics.
type Summary struct {
	Counters   map[string]float64          `json:"counters"`
	Gauges     map[string]float64          `json:"gauges"`
	Histograms map[string]HistogramSummary `json:"histograms"`

	TotalRequests  float64 `json:"total_requests"`
	TotalFailures  float64 `json:"total_failures"`
	ActiveRequests float64 `json:"active_requests"`
	CacheHitRate   float64 `json:"cache_hit_rate"`
	LLMTokens      float64 `json:"llm_tokens"`
	LLMCostUSD     float64 `json:"llm_cost_usd"`
}

// Summarize gathers the scholar_* families from g and flattens them.
//
// # Description
//
// Each series is keyed as "name{label=value,...}" with labels sorted, which
// mirrors the exposition format without the quoting. Families from other
// namespaces (go_*, process_*) are skipped.
//
// # Outputs
//
//   - Summary: Flattened counters, gauges and histogram count/sum/avg plus
//     headline totals.
//   - error: Non-nil if gathering failed.
func Summarize(g prometheus.Gatherer) (Summary, error) {
	families, err := g.Gather()
	if err != nil {
		return Summary{}, fmt.Errorf("gather metrics: %w", err)
	}

	s := Summary{
		Counters:   make(map[string]float64),
		Gauges:     make(map[string]float64),
		Histograms: make(map[string]HistogramSummary),
	}

	for _, mf := range families {
		name := mf.GetName()
		if !strings.HasPrefix(name, metricsNamespace+"_") {
			continue
		}
		for _, m := range mf.GetMetric() {
			key := seriesKey(name, m.GetLabel())
			switch mf.GetType() {
			case dto.MetricType_COUNTER:
				v := m.GetCounter().GetValue()
				s.Counters[key] = v
				switch name {
				case "scholar_agent_requests_total":
					s.TotalRequests += v
				case "scholar_agent_failures_total":
					s.TotalFailures += v
				case "scholar_llm_tokens_total":
					s.LLMTokens += v
				case "scholar_llm_cost_usd_total":
					s.LLMCostUSD += v
				}
			case dto.MetricType_GAUGE:
				v := m.GetGauge().GetValue()
				s.Gauges[key] = v
				switch name {
				case "scholar_agent_active_requests":
					s.ActiveRequests = v
				case "scholar_cache_hit_rate":
					s.CacheHitRate = v
				}
			case dto.MetricType_HISTOGRAM:
				h := m.GetHistogram()
				hs := HistogramSummary{Count: h.GetSampleCount(), Sum: h.GetSampleSum()}
				if hs.Count > 0 {
					hs.Avg = hs.Sum / float64(hs.Count)
				}
				s.Histograms[key] = hs
			}
		}
	}
	return s, nil
}

func seriesKey(name string, labels []*dto.LabelPair) string {
	if len(labels) == 0 {
		return name
	}
	parts := make([]string, 0, len(labels))
	for _, lp := range labels {
		parts = append(parts, lp.GetName()+"="+lp.GetValue())
	}
	sort.Strings(parts)
	return name + "{" + strings.Join(parts, ",") + "}"
}
