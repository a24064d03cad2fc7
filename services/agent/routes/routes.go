// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package routes

import (
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/AleutianAI/scholar/services/agent/datatypes"
	"github.com/AleutianAI/scholar/services/agent/handlers"
	"github.com/AleutianAI/scholar/services/agent/middleware"
	"github.com/AleutianAI/scholar/services/agent/pipeline"
)

// Dependencies are the collaborators the handlers close over.
type Dependencies struct {
	Pipeline       *pipeline.Pipeline
	Fetcher        pipeline.Fetcher
	Gatherer       prometheus.Gatherer
	DataServiceURL string
	Logger         *slog.Logger
}

// SetupRoutes registers every agent endpoint on router.
func SetupRoutes(router *gin.Engine, deps Dependencies) {
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	router.GET("/health", handlers.HealthCheck)
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{})))

	// API version 1 group
	v1 := router.Group("/v1")
	v1.Use(middleware.RequestID())
	{
		v1.POST("/ask", handlers.HandleAsk(deps.Pipeline, deps.DataServiceURL, logger))

		analyze := v1.Group("/analyze")
		{
			analyze.POST("/summary", handlers.HandleAnalyze(datatypes.QuerySingleStudent, deps.Fetcher, deps.DataServiceURL, logger))
			analyze.POST("/trend", handlers.HandleAnalyze(datatypes.QueryTrend, deps.Fetcher, deps.DataServiceURL, logger))
			analyze.POST("/risk", handlers.HandleAnalyze(datatypes.QueryDerivedMetrics, deps.Fetcher, deps.DataServiceURL, logger))
		}

		v1.GET("/student-analytics", handlers.HandleStudentAnalytics(deps.Fetcher, deps.DataServiceURL, logger))
		v1.GET("/system-metrics", handlers.HandleSystemMetrics(deps.Gatherer))
	}
}
