// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package intent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/AleutianAI/scholar/services/agent/datatypes"
	"github.com/AleutianAI/scholar/services/agent/observability"
	"github.com/AleutianAI/scholar/services/llm"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"
)

// classificationPrompt asks for exactly two keys. %q receives the query.
const classificationPrompt = `You are an expert at understanding student performance queries.

Analyze this query and extract:
1. Query type: one of [single_student, trend, derived_metrics, class_summary]
2. Student ID: 24-hex MongoDB ObjectId if mentioned, otherwise null

Query: %q

Guidelines:
- "Summarize", "show", "get info", "performance" for a single student -> single_student
- "Trend", "growth", "improving", "declining" -> trend
- "Alert", "risk", "metric", "check", "behavior" -> derived_metrics
- "Class", "all students", "dataset", "ranking", "summary statistics" -> class_summary
- Extract student IDs like: 689cef602490264c7f2dd235

Respond ONLY with JSON (no markdown, no extra text):
{"query_type": "single_student|trend|derived_metrics|class_summary", "student_id": "24-hex-id or null"}`

// Fallback reasons, used as the llm_failures_total label.
const (
	ReasonEmptyQuery  = "empty_query"
	ReasonTimeout     = "timeout"
	ReasonRateLimited = "rate_limited"
	ReasonTransport   = "transport"
	ReasonCanceled    = "canceled"
	ReasonParse       = "llm_parse"
	ReasonSchema      = "schema_mismatch"
)

// LLMConfig tunes the LLM classifier.
type LLMConfig struct {
	// Timeout bounds each model call, including the rate-limit wait.
	Timeout time.Duration `yaml:"timeout"`
	// RatePerSecond caps model calls. Zero means unlimited.
	RatePerSecond float64 `yaml:"rate_per_second"`
	Burst         int     `yaml:"burst"`
	MaxTokens     int     `yaml:"max_tokens"`
}

// ApplyDefaults fills zero values.
func (c *LLMConfig) ApplyDefaults() {
	if c.Timeout <= 0 {
		c.Timeout = 10 * time.Second
	}
	if c.Burst <= 0 {
		c.Burst = 5
	}
	if c.MaxTokens <= 0 {
		c.MaxTokens = 200
	}
}

// LLMClassifier classifies with a language model and falls back to another
// Classifier on any failure.
//
// # Description
//
// The model resolves only the query type and student id. Analysis options
// always come from ParseOptions. Identical in-flight queries share one model
// call.
//
// # Thread Safety
//
// Safe for concurrent use.
type LLMClassifier struct {
	client   llm.LLMClient
	fallback Classifier
	obs      *observability.Observer
	limiter  *rate.Limiter
	inflight singleflight.Group
	config   LLMConfig
}

// llmAnswer is the schema-checked model reply.
type llmAnswer struct {
	QueryType datatypes.QueryType
	StudentID string
}

// NewLLMClassifier builds the classifier.
//
// # Inputs
//
//   - client: Model backend. Required.
//   - fallback: Used whenever the model path fails. Nil uses the heuristic.
//   - obs: Observer for llm metrics and spans. Required.
//   - config: Timeouts and rate limits. Zero values take defaults.
func NewLLMClassifier(client llm.LLMClient, fallback Classifier, obs *observability.Observer, config LLMConfig) (*LLMClassifier, error) {
	if client == nil {
		return nil, errors.New("llm client must not be nil")
	}
	if obs == nil {
		return nil, errors.New("observer must not be nil")
	}
	if fallback == nil {
		fallback = NewHeuristicClassifier()
	}
	config.ApplyDefaults()

	limit := rate.Inf
	if config.RatePerSecond > 0 {
		limit = rate.Limit(config.RatePerSecond)
	}
	return &LLMClassifier{
		client:   client,
		fallback: fallback,
		obs:      obs,
		limiter:  rate.NewLimiter(limit, config.Burst),
		config:   config,
	}, nil
}

// Classify implements Classifier.
func (c *LLMClassifier) Classify(ctx context.Context, raw string) Classification {
	raw = strings.TrimSpace(raw)
	ctx, span := c.obs.StartSpan(ctx, "intent.llm",
		attribute.Int("query_length", len(raw)),
		attribute.String("llm.model", c.client.Model()),
	)
	defer span.End()

	if raw == "" {
		return c.useFallback(ctx, raw, ReasonEmptyQuery, nil)
	}

	// The shared call outlives any single caller; ask bounds it with Timeout.
	shared := context.WithoutCancel(ctx)
	ch := c.inflight.DoChan(raw, func() (any, error) {
		return c.ask(shared, raw)
	})
	var res singleflight.Result
	select {
	case res = <-ch:
	case <-ctx.Done():
		res = singleflight.Result{Err: ctx.Err()}
	}
	span.SetAttributes(attribute.Bool("coalesced", res.Shared))
	if res.Err != nil {
		reason := failureReason(res.Err)
		observability.RecordError(span, res.Err, attribute.String("fallback_reason", reason))
		return c.useFallback(ctx, raw, reason, res.Err)
	}

	answer := res.Val.(llmAnswer)
	observability.SetSpanOK(span)
	return newClassification(answer.QueryType, answer.StudentID, ParseOptions(raw), ParsedByLLM)
}

// ask performs one rate-limited, time-bounded model call.
func (c *LLMClassifier) ask(ctx context.Context, raw string) (llmAnswer, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	if err := c.limiter.Wait(callCtx); err != nil {
		return llmAnswer{}, &rateLimitError{err: err}
	}

	temp := float32(0)
	maxTokens := c.config.MaxTokens
	start := time.Now()
	completion, err := c.client.Generate(callCtx, fmt.Sprintf(classificationPrompt, raw), llm.GenerationParams{
		Temperature: &temp,
		MaxTokens:   &maxTokens,
		JSONMode:    true,
	})
	elapsed := time.Since(start)
	if err != nil {
		return llmAnswer{}, err
	}

	c.obs.Metrics.RecordLLMCall(completion.Model, elapsed)
	cost := c.obs.Metrics.RecordLLMUsage(completion.Model, completion.Usage.PromptTokens, completion.Usage.CompletionTokens)
	c.obs.Logger.Debug("llm classification call",
		"model", completion.Model,
		"prompt_tokens", completion.Usage.PromptTokens,
		"completion_tokens", completion.Usage.CompletionTokens,
		"cost_usd", cost,
		"duration", elapsed,
	)

	return parseAnswer(completion.Text)
}

// parseAnswer extracts and schema-checks the model reply.
func parseAnswer(text string) (llmAnswer, error) {
	obj, err := ExtractJSON(text)
	if err != nil {
		return llmAnswer{}, &LLMParseError{Reason: ReasonParse, Raw: text, Err: err}
	}

	rawType, ok := obj["query_type"].(string)
	if !ok {
		return llmAnswer{}, &LLMParseError{Reason: ReasonSchema, Raw: text, Err: errors.New("query_type missing or not a string")}
	}
	qt, err := datatypes.ParseQueryType(rawType)
	if err != nil {
		return llmAnswer{}, &LLMParseError{Reason: ReasonSchema, Raw: text, Err: err}
	}

	var studentID string
	switch sid := obj["student_id"].(type) {
	case nil:
	case string:
		studentID = strings.TrimSpace(sid)
		switch strings.ToLower(studentID) {
		case "null", "none":
			studentID = ""
		}
	default:
		return llmAnswer{}, &LLMParseError{Reason: ReasonSchema, Raw: text, Err: fmt.Errorf("student_id has type %T", sid)}
	}

	return llmAnswer{QueryType: qt, StudentID: studentID}, nil
}

func (c *LLMClassifier) useFallback(ctx context.Context, raw, reason string, cause error) Classification {
	c.obs.Metrics.RecordLLMFailure(reason)
	if cause != nil {
		c.obs.Logger.Warn("llm classification failed, falling back to heuristic",
			"reason", reason, "error", cause)
	}
	result := c.fallback.Classify(ctx, raw)
	result.FallbackReason = reason
	return result
}

type rateLimitError struct{ err error }

func (e *rateLimitError) Error() string { return "rate limit wait: " + e.err.Error() }
func (e *rateLimitError) Unwrap() error { return e.err }

// failureReason maps a model-path error to its metric label.
func failureReason(err error) string {
	var parseErr *LLMParseError
	var limitErr *rateLimitError
	switch {
	case errors.As(err, &parseErr):
		return parseErr.Reason
	case errors.As(err, &limitErr):
		return ReasonRateLimited
	case errors.Is(err, context.DeadlineExceeded):
		return ReasonTimeout
	case errors.Is(err, context.Canceled):
		return ReasonCanceled
	default:
		return ReasonTransport
	}
}
