// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package recordstore

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/scholar/pkg/records"
)

const (
	endpointQuery = "query"
	endpointClass = "class_analysis"
)

// HandleQuery serves POST /query.
//
// A well-formed request for an unknown student answers 200 with a null
// result. Malformed requests answer 400 with an "error" message.
func HandleQuery(store Store, m *Metrics, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		var req records.QueryRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			m.observe(endpointQuery, statusInvalid, time.Since(start))
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
			return
		}
		if err := req.Validate(); err != nil {
			m.observe(endpointQuery, statusInvalid, time.Since(start))
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		span := trace.SpanFromContext(c.Request.Context())
		span.SetAttributes(
			attribute.String("query_type", "single"),
			attribute.Int("field_count", len(req.Fields)),
		)

		rec, err := store.Get(c.Request.Context(), req.StudentID, req.Fields)
		switch {
		case errors.Is(err, ErrNotFound):
			m.observe(endpointQuery, statusNotFound, time.Since(start))
			logger.Info("Student not found", "student_id", req.StudentID)
			c.JSON(http.StatusOK, records.QueryResponse{StudentID: req.StudentID})
		case err != nil:
			m.observe(endpointQuery, statusError, time.Since(start))
			logger.Error("Query failed", "student_id", req.StudentID, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		default:
			m.observe(endpointQuery, statusOK, time.Since(start))
			logger.Debug("Query served", "student_id", req.StudentID, "fields", req.Fields)
			c.JSON(http.StatusOK, records.QueryResponse{StudentID: req.StudentID, Result: rec})
		}
	}
}

// HandleClassListing serves POST /class_analysis. An empty body lists with
// the default limit.
func HandleClassListing(store Store, m *Metrics, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		var req records.ClassListRequest
		if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
			m.observe(endpointClass, statusInvalid, time.Since(start))
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
			return
		}
		if err := req.Validate(); err != nil {
			m.observe(endpointClass, statusInvalid, time.Since(start))
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		students, err := store.List(c.Request.Context(), req.EffectiveLimit(), records.ListingFields)
		if err != nil {
			m.observe(endpointClass, statusError, time.Since(start))
			logger.Error("Class listing failed", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		trace.SpanFromContext(c.Request.Context()).SetAttributes(attribute.Int("student_count", len(students)))
		m.observe(endpointClass, statusOK, time.Since(start))
		c.JSON(http.StatusOK, records.ClassListResponse{Students: students, Count: len(students)})
	}
}

// HealthCheck serves GET /health.
func HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
