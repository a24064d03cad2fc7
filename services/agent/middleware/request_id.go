// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package middleware provides HTTP middleware for the agent service.
//
// # Request Flow
//
//	Request
//	   │
//	   ▼
//	RequestID
//	   │
//	   ├─► Reuse a valid "X-Request-ID" header, or mint a UUID
//	   │
//	   ├─► Echo it on the response
//	   │
//	   └─► Store it in the Gin context and tag the active span
//	           │
//	           ▼
//	       Handler (retrieves via GetRequestID)
package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// HeaderRequestID carries the request id in both directions.
const HeaderRequestID = "X-Request-ID"

// requestIDKey is the Gin context key for the request id.
const requestIDKey = "scholar_request_id"

// =============================================================================
// Context Helpers
// =============================================================================

// SetRequestID stores id in the Gin context.
func SetRequestID(c *gin.Context, id string) {
	c.Set(requestIDKey, id)
}

// GetRequestID returns the id stored by RequestID, or "" outside it.
//
// # Examples
//
//	func handle(c *gin.Context) {
//	    logger.Info("handling", "request_id", middleware.GetRequestID(c))
//	}
func GetRequestID(c *gin.Context) string {
	if v, ok := c.Get(requestIDKey); ok {
		if id, ok := v.(string); ok {
			return id
		}
	}
	return ""
}

// =============================================================================
// Request ID Middleware
// =============================================================================

// RequestID assigns every request an id.
//
// # Description
//
// A caller-supplied X-Request-ID is kept when it parses as a UUID so
// clients can correlate retries. Anything else is replaced.
//
// # Thread Safety
//
// Safe for concurrent use (state is request-scoped).
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(HeaderRequestID)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.New().String()
		}

		SetRequestID(c, id)
		c.Header(HeaderRequestID, id)
		trace.SpanFromContext(c.Request.Context()).SetAttributes(attribute.String("request_id", id))
		c.Next()
	}
}
