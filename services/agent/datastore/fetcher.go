// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package datastore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/scholar/pkg/records"
	"github.com/AleutianAI/scholar/services/agent/cache"
	"github.com/AleutianAI/scholar/services/agent/datatypes"
	"github.com/AleutianAI/scholar/services/agent/observability"
)

const (
	// DefaultTimeout bounds one record service call.
	DefaultTimeout = 30 * time.Second
	// DefaultClassLimit caps a class listing.
	DefaultClassLimit = 500

	opQuery = "query"
	opList  = "class_analysis"
)

// Fetched is the outcome of one fetch. Exactly one of Student and Students
// is meaningful, selected by Listing.
type Fetched struct {
	Listing  bool
	Student  *records.Record
	Students []*records.Record
	CacheHit bool
}

// Found reports whether the fetch produced a record or a listing.
func (f Fetched) Found() bool {
	if f.Listing {
		return f.Students != nil
	}
	return f.Student != nil
}

// FetcherConfig tunes the cached fetch.
type FetcherConfig struct {
	Timeout    time.Duration `yaml:"timeout"`
	ClassLimit int           `yaml:"class_limit"`
}

// ApplyDefaults fills zero values.
func (c *FetcherConfig) ApplyDefaults() {
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.ClassLimit <= 0 {
		c.ClassLimit = DefaultClassLimit
	}
}

// CachedFetcher is the pipeline's fetch stage.
//
// # Description
//
// Class summaries list up to ClassLimit students and are never cached.
// Every other query type looks the student up in the result cache first;
// on a miss it requests the records.FetchFields projection and caches a
// found record. A missing student is a successful fetch with no record.
// There are no retries.
//
// # Thread Safety
//
// Safe for concurrent use.
type CachedFetcher struct {
	client *Client
	cache  *cache.Cache[*records.Record]
	obs    *observability.Observer
	config FetcherConfig
}

// NewCachedFetcher assembles the fetch stage. All dependencies are required.
func NewCachedFetcher(client *Client, c *cache.Cache[*records.Record], obs *observability.Observer, config FetcherConfig) *CachedFetcher {
	config.ApplyDefaults()
	return &CachedFetcher{client: client, cache: c, obs: obs, config: config}
}

// Fetch loads the data a query needs.
//
// # Inputs
//
//   - ctx: Carries the parent span. A per-call deadline is added.
//   - baseURL: Record service root.
//   - queryType: class_summary lists; anything else fetches one student.
//   - req: Supplies the student id.
//
// # Outputs
//
//   - Fetched: The record or listing. Found() is false for an unknown
//     student.
//   - error: *FetchError or *TransportError.
func (f *CachedFetcher) Fetch(ctx context.Context, baseURL string, queryType datatypes.QueryType, req datatypes.Request) (Fetched, error) {
	ctx, span := f.obs.StartSpan(ctx, "agent.fetch", attribute.String("query_type", string(queryType)))
	defer span.End()

	if queryType == datatypes.QueryClassSummary {
		return f.list(ctx, baseURL, span)
	}

	rec, ok := f.cache.Get(ctx, req.StudentID)
	f.obs.Metrics.RecordCacheStats(f.cache.Stats())
	if ok {
		span.SetAttributes(attribute.Bool("cache_hit", true))
		observability.SetSpanOK(span)
		f.obs.Logger.Debug("fetch cache hit", "student_id", req.StudentID)
		return Fetched{Student: rec.Clone(), CacheHit: true}, nil
	}
	span.SetAttributes(attribute.Bool("cache_hit", false))

	callCtx, cancel := context.WithTimeout(ctx, f.config.Timeout)
	defer cancel()

	start := time.Now()
	rec, err := f.client.FetchStudent(callCtx, baseURL, req.StudentID, records.FetchFields)
	elapsed := time.Since(start)
	if err != nil {
		f.recordFailure(span, opQuery, err, elapsed)
		return Fetched{}, err
	}

	if rec == nil {
		f.obs.Metrics.RecordFetch(opQuery, observability.FetchNotFound, elapsed)
		span.SetAttributes(attribute.Bool("found", false))
		observability.SetSpanOK(span)
		f.obs.Logger.Info("fetch student not found", "student_id", req.StudentID, "duration", elapsed)
		return Fetched{}, nil
	}

	f.cache.Set(ctx, req.StudentID, rec.Clone())
	f.obs.Metrics.RecordFetch(opQuery, observability.FetchSuccess, elapsed)
	span.SetAttributes(attribute.Bool("found", true))
	observability.SetSpanOK(span)
	f.obs.Logger.Info("fetch student", "student_id", req.StudentID, "duration", elapsed)
	return Fetched{Student: rec}, nil
}

func (f *CachedFetcher) list(ctx context.Context, baseURL string, span trace.Span) (Fetched, error) {
	callCtx, cancel := context.WithTimeout(ctx, f.config.Timeout)
	defer cancel()

	start := time.Now()
	students, err := f.client.ListStudents(callCtx, baseURL, f.config.ClassLimit)
	elapsed := time.Since(start)
	if err != nil {
		f.recordFailure(span, opList, err, elapsed)
		return Fetched{Listing: true}, err
	}

	f.obs.Metrics.RecordFetch(opList, observability.FetchSuccess, elapsed)
	span.SetAttributes(attribute.Int("student_count", len(students)))
	observability.SetSpanOK(span)
	f.obs.Logger.Info("fetch class listing", "count", len(students), "duration", elapsed)
	return Fetched{Listing: true, Students: students}, nil
}

// recordFailure labels a failed call by its cause.
func (f *CachedFetcher) recordFailure(span trace.Span, op string, err error, elapsed time.Duration) {
	var fetchErr *FetchError
	status := observability.FetchError
	switch {
	case errors.As(err, &fetchErr):
		if fetchErr.Class() == "rejected" {
			status = observability.FetchValidationReject
		}
		f.obs.Metrics.RecordRejected(fmt.Sprintf("http_%d", fetchErr.StatusCode))
		span.SetAttributes(attribute.Int("http.status_code", fetchErr.StatusCode))
	case IsTimeout(err):
		status = observability.FetchTimeout
	}
	f.obs.Metrics.RecordFetch(op, status, elapsed)
	observability.RecordError(span, err, attribute.String("fetch_status", string(status)))
	f.obs.Logger.Warn("fetch failed", "operation", op, "status", status, "error", err, "duration", elapsed)
}
