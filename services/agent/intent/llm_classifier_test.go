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
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/AleutianAI/scholar/services/agent/datatypes"
	"github.com/AleutianAI/scholar/services/agent/observability"
	"github.com/AleutianAI/scholar/services/llm"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Test Helpers
// =============================================================================

// fakeLLM returns a canned reply or error and counts calls.
type fakeLLM struct {
	reply string
	err   error
	delay time.Duration
	calls atomic.Int32
	// gate, when set, blocks Generate until closed.
	gate chan struct{}
}

func (f *fakeLLM) Model() string { return "llama-3.3-70b-versatile" }

func (f *fakeLLM) Generate(ctx context.Context, _ string, _ llm.GenerationParams) (*llm.Completion, error) {
	f.calls.Add(1)
	if f.gate != nil {
		<-f.gate
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return &llm.Completion{
		Text:  f.reply,
		Model: f.Model(),
		Usage: llm.Usage{PromptTokens: 100, CompletionTokens: 20},
	}, nil
}

func newTestClassifier(t *testing.T, client llm.LLMClient, cfg LLMConfig) (*LLMClassifier, *observability.Metrics) {
	t.Helper()
	obs, _ := observability.NewTestObserver()
	c, err := NewLLMClassifier(client, nil, obs, cfg)
	require.NoError(t, err)
	return c, obs.Metrics
}

// =============================================================================
// Success path
// =============================================================================

func TestLLMClassifier_UsesModelAnswer(t *testing.T) {
	client := &fakeLLM{reply: "```json\n{\"query_type\": \"trend\", \"student_id\": \"689cef602490264c7f2dd235\"}\n```"}
	c, m := newTestClassifier(t, client, LLMConfig{})

	got := c.Classify(context.Background(), "how is 5f43a1a8a1a1a1a1a1a1a1a1 doing, top 3")

	assert.Equal(t, datatypes.QueryTrend, got.QueryType)
	assert.Equal(t, "689cef602490264c7f2dd235", got.StudentID, "model id wins over the regex")
	assert.Equal(t, ParsedByLLM, got.ParsedBy)
	assert.Equal(t, 3, got.Options.TopN, "options are always parsed heuristically")
	assert.True(t, got.NeedsAnalysis)
	assert.Empty(t, got.FallbackReason)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.LLMCallsTotal.WithLabelValues("llama-3.3-70b-versatile")))
	assert.Equal(t, 100.0, testutil.ToFloat64(m.LLMTokensTotal.WithLabelValues("llama-3.3-70b-versatile", "input")))
}

func TestLLMClassifier_NullStudentID(t *testing.T) {
	for _, reply := range []string{
		`{"query_type":"single_student","student_id":null}`,
		`{"query_type":"single_student","student_id":"null"}`,
		`{"query_type":"single_student","student_id":"None"}`,
		`{"query_type":"single_student"}`,
	} {
		c, _ := newTestClassifier(t, &fakeLLM{reply: reply}, LLMConfig{})
		got := c.Classify(context.Background(), "show me a student")
		assert.Equal(t, "", got.StudentID, reply)
		assert.False(t, got.NeedsAnalysis, reply)
		assert.Equal(t, ParsedByLLM, got.ParsedBy, reply)
	}
}

// =============================================================================
// Fallback path
// =============================================================================

func TestLLMClassifier_FallsBack(t *testing.T) {
	tests := []struct {
		name   string
		client *fakeLLM
		cfg    LLMConfig
		reason string
	}{
		{"transport error", &fakeLLM{err: errors.New("connection refused")}, LLMConfig{}, ReasonTransport},
		{"malformed json", &fakeLLM{reply: "I think it's a trend question"}, LLMConfig{}, ReasonParse},
		{"unknown query type", &fakeLLM{reply: `{"query_type":"weather","student_id":null}`}, LLMConfig{}, ReasonSchema},
		{"numeric student id", &fakeLLM{reply: `{"query_type":"trend","student_id":42}`}, LLMConfig{}, ReasonSchema},
		{"timeout", &fakeLLM{reply: `{}`, delay: time.Second}, LLMConfig{Timeout: 20 * time.Millisecond}, ReasonTimeout},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, m := newTestClassifier(t, tt.client, tt.cfg)

			got := c.Classify(context.Background(), "Show the trend for 689cef602490264c7f2dd235")

			assert.Equal(t, ParsedByHeuristic, got.ParsedBy)
			assert.Equal(t, tt.reason, got.FallbackReason)
			assert.Equal(t, datatypes.QueryTrend, got.QueryType)
			assert.Equal(t, "689cef602490264c7f2dd235", got.StudentID)
			assert.Equal(t, 1.0, testutil.ToFloat64(m.LLMFailuresTotal.WithLabelValues(tt.reason)))
		})
	}
}

func TestLLMClassifier_EmptyQuerySkipsModel(t *testing.T) {
	client := &fakeLLM{reply: `{"query_type":"trend"}`}
	c, _ := newTestClassifier(t, client, LLMConfig{})

	got := c.Classify(context.Background(), "   ")

	assert.Equal(t, ReasonEmptyQuery, got.FallbackReason)
	assert.Equal(t, int32(0), client.calls.Load())
}

func TestLLMClassifier_CoalescesIdenticalQueries(t *testing.T) {
	client := &fakeLLM{reply: `{"query_type":"class_summary","student_id":null}`, gate: make(chan struct{})}
	c, _ := newTestClassifier(t, client, LLMConfig{})

	const callers = 5
	var wg sync.WaitGroup
	results := make([]Classification, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = c.Classify(context.Background(), "analyze class")
		}(i)
	}

	require.Eventually(t, func() bool { return client.calls.Load() == 1 }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(client.gate)
	wg.Wait()

	assert.LessOrEqual(t, client.calls.Load(), int32(callers))
	for _, r := range results {
		assert.Equal(t, datatypes.QueryClassSummary, r.QueryType)
	}
}

func TestLLMClassifier_CanceledCallerDoesNotFailFollowers(t *testing.T) {
	client := &fakeLLM{reply: `{"query_type":"class_summary","student_id":null}`, gate: make(chan struct{})}
	c, m := newTestClassifier(t, client, LLMConfig{Timeout: 5 * time.Second})

	leaderCtx, cancel := context.WithCancel(context.Background())
	leader := make(chan Classification, 1)
	go func() { leader <- c.Classify(leaderCtx, "analyze class") }()
	require.Eventually(t, func() bool { return client.calls.Load() == 1 }, time.Second, time.Millisecond)

	follower := make(chan Classification, 1)
	go func() { follower <- c.Classify(context.Background(), "analyze class") }()
	time.Sleep(20 * time.Millisecond)

	cancel()
	got := <-leader
	assert.Equal(t, ParsedByHeuristic, got.ParsedBy)
	assert.Equal(t, ReasonCanceled, got.FallbackReason)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.LLMFailuresTotal.WithLabelValues(ReasonCanceled)))

	close(client.gate)
	got = <-follower
	assert.Equal(t, ParsedByLLM, got.ParsedBy)
	assert.Empty(t, got.FallbackReason)
	assert.Equal(t, datatypes.QueryClassSummary, got.QueryType)
	assert.Equal(t, int32(1), client.calls.Load())
	assert.Equal(t, 0.0, testutil.ToFloat64(m.LLMFailuresTotal.WithLabelValues(ReasonTransport)))
}

func TestFailureReason(t *testing.T) {
	assert.Equal(t, ReasonCanceled, failureReason(context.Canceled))
	assert.Equal(t, ReasonTimeout, failureReason(fmt.Errorf("generate: %w", context.DeadlineExceeded)))
	assert.Equal(t, ReasonRateLimited, failureReason(&rateLimitError{err: context.Canceled}))
	assert.Equal(t, ReasonTransport, failureReason(errors.New("connection refused")))
}

func TestNewLLMClassifier_RequiresDependencies(t *testing.T) {
	obs, _ := observability.NewTestObserver()
	_, err := NewLLMClassifier(nil, nil, obs, LLMConfig{})
	assert.Error(t, err)
	_, err = NewLLMClassifier(&fakeLLM{}, nil, nil, LLMConfig{})
	assert.Error(t, err)
}

// =============================================================================
// JSON extraction
// =============================================================================

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
		key     string
		value   any
	}{
		{name: "clean", input: `{"query_type":"trend"}`, key: "query_type", value: "trend"},
		{name: "fenced with language", input: "```json\n{\"query_type\":\"trend\"}\n```", key: "query_type", value: "trend"},
		{name: "bare fence", input: "```\n{\"a\":1}\n```", key: "a", value: float64(1)},
		{name: "preamble", input: "Sure! Here you go:\n{\"a\":true} thanks", key: "a", value: true},
		{name: "braces in string", input: `{"note":"a {b} c","a":1}`, key: "a", value: float64(1)},
		{name: "escaped quote", input: `{"note":"say \"}\"","a":2}`, key: "a", value: float64(2)},
		{name: "first object wins", input: `{"first":1} {"second":2}`, key: "first", value: float64(1)},
		{name: "empty", input: "  ", wantErr: true},
		{name: "no object", input: "plain text", wantErr: true},
		{name: "unbalanced", input: `{"a":1`, wantErr: true},
		{name: "malformed", input: `{a: 1}`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractJSON(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.value, got[tt.key])
		})
	}
}

func TestLLMParseError_Unwraps(t *testing.T) {
	_, err := parseAnswer("nope")
	var parseErr *LLMParseError
	require.ErrorAs(t, err, &parseErr)
	assert.Equal(t, ReasonParse, parseErr.Reason)
	assert.ErrorIs(t, err, errNoJSONObject)
}
