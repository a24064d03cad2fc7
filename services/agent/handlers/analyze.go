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
	"time"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/scholar/pkg/records"
	"github.com/AleutianAI/scholar/services/agent/analysis"
	"github.com/AleutianAI/scholar/services/agent/datastore"
	"github.com/AleutianAI/scholar/services/agent/datatypes"
	"github.com/AleutianAI/scholar/services/agent/pipeline"
)

// AnalyzeResponse is the body returned by the /v1/analyze/* endpoints.
type AnalyzeResponse struct {
	StudentID string              `json:"student_id"`
	QueryType datatypes.QueryType `json:"query_type"`
	Result    any                 `json:"result"`
	Text      string              `json:"text"`
}

// analyzers maps each direct-analysis query type to its computation.
var analyzers = map[datatypes.QueryType]func(*records.Record, string) (any, string){
	datatypes.QuerySingleStudent: func(rec *records.Record, id string) (any, string) {
		s := analysis.SummarizeStudent(rec, id)
		return s, s.Text()
	},
	datatypes.QueryTrend: func(rec *records.Record, id string) (any, string) {
		t := analysis.TrendForRecord(rec, id)
		return t, t.Text()
	},
	datatypes.QueryDerivedMetrics: func(rec *records.Record, id string) (any, string) {
		d := analysis.DerivedMetrics(rec, id)
		return d, d.Text()
	},
}

// HandleAnalyze serves POST /v1/analyze/{summary,trend,risk}.
//
// # Description
//
// Skips intent classification: the query type comes from the route and the
// student id from the body. The student is fetched through the same cached
// fetcher the pipeline uses.
//
// # Outputs
//
//   - 200 with AnalyzeResponse.
//   - 400 for a malformed body or invalid student id.
//   - 404 when the student does not exist.
//   - 502 when the record service fails, 504 when it times out.
func HandleAnalyze(queryType datatypes.QueryType, fetcher pipeline.Fetcher, dataServiceURL string, logger *slog.Logger) gin.HandlerFunc {
	analyze, ok := analyzers[queryType]
	if !ok {
		panic("handlers: no direct analysis for query type " + string(queryType))
	}

	return func(c *gin.Context) {
		var req datatypes.AnalyzeRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
			return
		}
		if err := req.Validate(); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		start := time.Now()
		fetched, err := fetcher.Fetch(c.Request.Context(), dataServiceURL, queryType, datatypes.Request{StudentID: req.StudentID})
		if err != nil {
			logger.Warn("Direct analysis fetch failed", "query_type", queryType, "student_id", req.StudentID, "error", err)
			c.JSON(fetchErrorStatus(err), gin.H{"error": err.Error()})
			return
		}
		if fetched.Student == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "Student not found."})
			return
		}

		result, text := analyze(fetched.Student, req.StudentID)
		logger.Debug("Direct analysis",
			"query_type", queryType,
			"student_id", req.StudentID,
			"cache_hit", fetched.CacheHit,
			"duration", time.Since(start),
		)
		c.JSON(http.StatusOK, AnalyzeResponse{
			StudentID: req.StudentID,
			QueryType: queryType,
			Result:    result,
			Text:      text,
		})
	}
}

// fetchErrorStatus maps a record service failure onto a gateway status.
func fetchErrorStatus(err error) int {
	if datastore.IsTimeout(err) {
		return http.StatusGatewayTimeout
	}
	return http.StatusBadGateway
}
