// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/AleutianAI/scholar/services/agent/analysis"
	"github.com/AleutianAI/scholar/services/agent/datatypes"
	"github.com/AleutianAI/scholar/services/agent/observability"
	"github.com/AleutianAI/scholar/services/agent/pipeline"
)

// HandleStudentAnalytics serves GET /v1/student-analytics with the risk
// distribution of the whole class listing.
func HandleStudentAnalytics(fetcher pipeline.Fetcher, dataServiceURL string, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		fetched, err := fetcher.Fetch(c.Request.Context(), dataServiceURL, datatypes.QueryClassSummary, datatypes.Request{})
		if err != nil {
			logger.Warn("Student analytics fetch failed", "error", err)
			c.JSON(fetchErrorStatus(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, analysis.DistributeRisk(fetched.Students))
	}
}

// HandleSystemMetrics serves GET /v1/system-metrics.
func HandleSystemMetrics(g prometheus.Gatherer) gin.HandlerFunc {
	return func(c *gin.Context) {
		summary, err := observability.Summarize(g)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, summary)
	}
}

// HealthCheck serves GET /health.
func HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
