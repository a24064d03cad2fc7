// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package handlers contains the agent's HTTP handlers.
package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/scholar/services/agent/datatypes"
	"github.com/AleutianAI/scholar/services/agent/middleware"
	"github.com/AleutianAI/scholar/services/agent/pipeline"
)

// HandleAsk serves POST /v1/ask.
//
// # Description
//
// Runs one question through the pipeline. A request the pipeline rejects
// (for example a summary without a student id) still answers 200: the
// user-facing message is in "response" and the cause in "error". Only a
// malformed body answers 400.
//
// # Inputs
//
//   - p: The request pipeline.
//   - dataServiceURL: Record service root passed to every fetch.
//   - logger: Request logger.
//
// # Examples
//
//	curl -X POST localhost:8001/v1/ask \
//	  -d '{"query":"Summarize student 689cef602490264c7f2dd235"}'
func HandleAsk(p *pipeline.Pipeline, dataServiceURL string, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req datatypes.AskRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
			return
		}
		if req.RequestID == "" {
			req.RequestID = middleware.GetRequestID(c)
		}
		if err := req.Validate(); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		req.EnsureDefaults()

		start := time.Now()
		state := p.Handle(c.Request.Context(), pipeline.Query{Raw: req.Query, Fields: req.Fields}, dataServiceURL)
		elapsed := time.Since(start)

		resp := datatypes.AskResponse{
			RequestID:  req.RequestID,
			QueryType:  state.QueryType,
			StudentID:  state.Request.StudentID,
			ParsedBy:   state.ParsedBy,
			Response:   state.FinalResponse,
			TraceID:    state.TraceID,
			DurationMs: elapsed.Milliseconds(),
		}
		if state.Err != nil {
			resp.Error = state.Err.Error()
		}

		logger.Info("Answered question",
			"request_id", req.RequestID,
			"query_type", state.QueryType,
			"failed", state.Failed(),
			"duration_ms", resp.DurationMs,
		)
		c.JSON(http.StatusOK, resp)
	}
}
