// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package pipeline

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/AleutianAI/scholar/services/agent/datastore"
	"github.com/AleutianAI/scholar/services/agent/datatypes"
	"github.com/AleutianAI/scholar/services/agent/intent"
	"github.com/AleutianAI/scholar/services/agent/observability"
)

// =============================================================================
// Interfaces
// =============================================================================

// Fetcher loads the data a classified query needs.
//
// # Thread Safety
//
// Implementations must be safe for concurrent use.
type Fetcher interface {
	Fetch(ctx context.Context, baseURL string, queryType datatypes.QueryType, req datatypes.Request) (datastore.Fetched, error)
}

var _ Fetcher = (*datastore.CachedFetcher)(nil)

// =============================================================================
// Pipeline
// =============================================================================

// Query is one question plus the optional record fields to show.
type Query struct {
	Raw    string
	Fields []string
}

// Pipeline is the request orchestrator.
//
// # Description
//
// Runs the fixed stage order Intent → Validation → Route → Fetch →
// (Analysis) → Response. Any failing stage hands off to the error node,
// which is terminal for the request. Each request fetches exactly once and
// analyzes at most once.
//
// # Thread Safety
//
// Safe for concurrent use. All per-request data lives in the State.
type Pipeline struct {
	classifier intent.Classifier
	fetcher    Fetcher
	obs        *observability.Observer
}

// New assembles a Pipeline. All dependencies are required.
func New(classifier intent.Classifier, fetcher Fetcher, obs *observability.Observer) *Pipeline {
	return &Pipeline{classifier: classifier, fetcher: fetcher, obs: obs}
}

// HandleRequest answers raw against the record service at dataServiceURL.
//
// # Inputs
//
//   - ctx: Request context. Cancellation aborts the fetch.
//   - raw: The user's question.
//   - dataServiceURL: Record service root, e.g. "http://localhost:8000".
//
// # Outputs
//
//   - *State: Never nil. FinalResponse is always set; Err is set on failure.
//
// # Examples
//
//	state := p.HandleRequest(ctx, "Summarize student 689cef602490264c7f2dd235", "http://records:8000")
//	fmt.Println(state.FinalResponse)
func (p *Pipeline) HandleRequest(ctx context.Context, raw, dataServiceURL string) *State {
	return p.Handle(ctx, Query{Raw: raw}, dataServiceURL)
}

// Handle is HandleRequest with requested fields.
func (p *Pipeline) Handle(ctx context.Context, q Query, dataServiceURL string) *State {
	ctx, span := p.obs.StartSpan(ctx, "agent.request")
	defer span.End()

	p.obs.Metrics.RequestStarted()
	defer p.obs.Metrics.RequestEnded()

	state := &State{
		Request: datatypes.Request{RawInput: q.Raw, Fields: q.Fields},
		TraceID: observability.TraceID(ctx),
	}

	p.classify(ctx, state)
	span.SetAttributes(
		attribute.String("query_type", string(state.QueryType)),
		attribute.String("parsed_by", state.ParsedBy),
		attribute.Bool("has_student_id", state.Request.StudentID != ""),
	)

	if err := p.validate(ctx, state); err != nil {
		state.fail(observability.NodeValidation, err)
	}

	switch RouteFor(state) {
	case RouteAnalysis, RouteFetch:
		if err := p.fetch(ctx, state, dataServiceURL); err != nil {
			state.fail(observability.NodeFetch, err)
			break
		}
		if state.NeedsAnalysis {
			if err := p.analyze(ctx, state); err != nil {
				state.fail(observability.NodeAnalysis, err)
			}
		}
	}

	if state.Failed() {
		p.handleError(ctx, state)
		observability.RecordError(span, state.Err, attribute.String("failed_node", string(state.FailedNode)))
	} else {
		p.respond(ctx, state)
		observability.SetSpanOK(span)
	}

	p.obs.Logger.Info("request handled",
		"query_type", state.QueryType,
		"parsed_by", state.ParsedBy,
		"cache_hit", state.Fetched.CacheHit,
		"failed_node", state.FailedNode,
		"trace_id", state.TraceID,
	)
	return state
}

// =============================================================================
// Stages
// =============================================================================

func (p *Pipeline) classify(ctx context.Context, state *State) {
	ctx, span := p.obs.StartSpan(ctx, "agent.intent")
	defer span.End()

	start := time.Now()
	c := p.classifier.Classify(ctx, state.Request.RawInput)
	p.obs.Metrics.ObserveStage(observability.NodeIntent, time.Since(start))
	p.obs.Metrics.RecordRequest(string(c.QueryType))

	state.QueryType = c.QueryType
	state.Request.StudentID = c.StudentID
	state.Options = c.Options
	state.ParsedBy = c.ParsedBy
	state.FallbackReason = c.FallbackReason
	state.NeedsDB = c.NeedsDB
	state.NeedsAnalysis = c.NeedsAnalysis
	// Explicit fields ask for the record itself rather than a summary.
	if c.QueryType == datatypes.QuerySingleStudent && len(state.Request.Fields) > 0 {
		state.NeedsAnalysis = false
	}

	span.SetAttributes(
		attribute.String("query_type", string(c.QueryType)),
		attribute.String("parsed_by", c.ParsedBy),
	)
	if c.FallbackReason != "" {
		span.SetAttributes(attribute.String("fallback_reason", c.FallbackReason))
	}
	observability.SetSpanOK(span)
}

func (p *Pipeline) validate(ctx context.Context, state *State) error {
	_, span := p.obs.StartSpan(ctx, "agent.validation")
	defer span.End()

	if err := Validate(state, p.obs.Metrics); err != nil {
		observability.RecordError(span, err)
		return err
	}
	observability.SetSpanOK(span)
	return nil
}

func (p *Pipeline) fetch(ctx context.Context, state *State, dataServiceURL string) error {
	start := time.Now()
	fetched, err := p.fetcher.Fetch(ctx, dataServiceURL, state.QueryType, state.Request)
	p.obs.Metrics.ObserveStage(observability.NodeFetch, time.Since(start))
	if err != nil {
		return err
	}
	state.Fetched = fetched
	return nil
}

func (p *Pipeline) analyze(ctx context.Context, state *State) error {
	_, span := p.obs.StartSpan(ctx, "agent.analysis", attribute.String("query_type", string(state.QueryType)))
	defer span.End()

	start := time.Now()
	err := Analyze(state)
	elapsed := time.Since(start)
	p.obs.Metrics.ObserveStage(observability.NodeAnalysis, elapsed)
	p.obs.Metrics.ObserveAnalysis(string(state.QueryType), elapsed)
	if err != nil {
		observability.RecordError(span, err)
		return err
	}
	observability.SetSpanOK(span)
	return nil
}

func (p *Pipeline) respond(ctx context.Context, state *State) {
	_, span := p.obs.StartSpan(ctx, "agent.response")
	defer span.End()

	start := time.Now()
	state.FinalResponse = Synthesize(state)
	p.obs.Metrics.ObserveStage(observability.NodeResponse, time.Since(start))
	observability.SetSpanOK(span)
}

func (p *Pipeline) handleError(ctx context.Context, state *State) {
	_, span := p.obs.StartSpan(ctx, "agent.error", attribute.String("failed_node", string(state.FailedNode)))
	defer span.End()

	start := time.Now()
	HandleError(state, p.obs.Metrics)
	p.obs.Metrics.ObserveStage(observability.NodeError, time.Since(start))
	span.SetAttributes(
		attribute.Int("attempt_count", state.AttemptCount),
		attribute.Bool("hard_stop", state.HardStop),
	)
	p.obs.Logger.Warn("request failed",
		"node", state.FailedNode,
		"error", state.Err,
		"attempt", state.AttemptCount,
	)
}
