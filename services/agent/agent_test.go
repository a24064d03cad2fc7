// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package agent

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/scholar/services/agent/datatypes"
	"github.com/AleutianAI/scholar/services/agent/intent"
	"github.com/AleutianAI/scholar/services/agent/middleware"
	"github.com/AleutianAI/scholar/services/llm"
	"github.com/AleutianAI/scholar/services/recordstore"
)

// =============================================================================
// Test Setup
// =============================================================================

func init() {
	gin.SetMode(gin.TestMode)
}

// scriptedLLM answers every prompt with the same text.
type scriptedLLM struct {
	text string
}

func (s *scriptedLLM) Generate(_ context.Context, _ string, _ llm.GenerationParams) (*llm.Completion, error) {
	return &llm.Completion{Text: s.text, Model: "test-model"}, nil
}

func (s *scriptedLLM) Model() string { return "test-model" }

func recordService(t *testing.T) string {
	t.Helper()
	store := recordstore.NewMemoryStore()
	require.NoError(t, recordstore.SeedStore(context.Background(), store, recordstore.DemoStudents()))
	srv := httptest.NewServer(recordstore.New(recordstore.Config{GinMode: gin.TestMode}, store, nil, nil).Router())
	t.Cleanup(srv.Close)
	return srv.URL
}

func testConfig(dataURL string) Config {
	return Config{
		GinMode:        gin.TestMode,
		DataServiceURL: dataURL,
		LLM:            llm.Config{Backend: llm.BackendNone},
		Telemetry:      testTelemetry(),
	}
}

func newService(t *testing.T, cfg Config, opts *Options) Service {
	t.Helper()
	svc, err := New(context.Background(), cfg, opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = svc.Close(context.Background()) })
	return svc
}

func ask(t *testing.T, router http.Handler, body string) (*httptest.ResponseRecorder, datatypes.AskResponse) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/v1/ask", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	var resp datatypes.AskResponse
	if w.Code == http.StatusOK {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	}
	return w, resp
}

// =============================================================================
// Service Tests
// =============================================================================

func TestNew_RegistersRoutes(t *testing.T) {
	svc := newService(t, testConfig("http://localhost:8000"), nil)

	expected := []struct {
		method string
		path   string
	}{
		{"GET", "/health"},
		{"GET", "/metrics"},
		{"POST", "/v1/ask"},
		{"POST", "/v1/analyze/summary"},
		{"POST", "/v1/analyze/trend"},
		{"POST", "/v1/analyze/risk"},
		{"GET", "/v1/student-analytics"},
		{"GET", "/v1/system-metrics"},
	}

	routes := svc.Router().Routes()
	for _, want := range expected {
		found := false
		for _, r := range routes {
			if r.Method == want.method && r.Path == want.path {
				found = true
				break
			}
		}
		assert.True(t, found, "route %s %s not registered", want.method, want.path)
	}
}

func TestNew_InvalidConfig(t *testing.T) {
	cfg := testConfig("not a url")
	_, err := New(context.Background(), cfg, nil)
	assert.ErrorContains(t, err, "invalid data service URL")
}

func TestNew_UnknownLLMBackend(t *testing.T) {
	cfg := testConfig("http://localhost:8000")
	cfg.LLM.Backend = "mystery"
	_, err := New(context.Background(), cfg, &Options{Registry: prometheus.NewRegistry()})
	assert.ErrorContains(t, err, `unknown llm backend "mystery"`)
}

func TestService_AskEndToEnd(t *testing.T) {
	svc := newService(t, testConfig(recordService(t)), &Options{Registry: prometheus.NewRegistry()})

	w, resp := ask(t, svc.Router(), `{"query":"Can you summarize the performance for student 689cef602490264c7f2dd235?"}`)
	require.Equal(t, http.StatusOK, w.Code)

	assert.Equal(t, datatypes.QuerySingleStudent, resp.QueryType)
	assert.Equal(t, intent.ParsedByHeuristic, resp.ParsedBy)
	assert.Contains(t, resp.Response, "Average: 8.7")
	assert.Equal(t, w.Header().Get(middleware.HeaderRequestID), resp.RequestID)
}

func TestService_UsesInjectedLLM(t *testing.T) {
	client := &scriptedLLM{text: `{"query_type":"trend","student_id":"689cef602490264c7f2dd235"}`}
	svc := newService(t, testConfig(recordService(t)), &Options{
		Registry:  prometheus.NewRegistry(),
		LLMClient: client,
	})

	_, resp := ask(t, svc.Router(), `{"query":"how is that student doing?"}`)

	assert.Equal(t, intent.ParsedByLLM, resp.ParsedBy)
	assert.Equal(t, datatypes.QueryTrend, resp.QueryType)
	assert.Contains(t, resp.Response, "improving")
}

func TestService_SystemMetricsAfterAsk(t *testing.T) {
	svc := newService(t, testConfig(recordService(t)), &Options{Registry: prometheus.NewRegistry()})
	ask(t, svc.Router(), `{"query":"summarize student 689cef602490264c7f2dd235"}`)
	ask(t, svc.Router(), `{"query":"summarize student 689cef602490264c7f2dd235"}`)

	req := httptest.NewRequest(http.MethodGet, "/v1/system-metrics", nil)
	w := httptest.NewRecorder()
	svc.Router().ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var summary struct {
		TotalRequests float64 `json:"total_requests"`
		CacheHitRate  float64 `json:"cache_hit_rate"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &summary))
	assert.Equal(t, 2.0, summary.TotalRequests)
	assert.InDelta(t, 0.5, summary.CacheHitRate, 0.001)
}

func TestService_RunStopsOnCancel(t *testing.T) {
	cfg := testConfig("http://localhost:8000")
	cfg.Port = freePort(t)
	svc := newService(t, cfg, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Run(ctx) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + listenAddr(cfg.Port) + "/health")
		if err != nil {
			return false
		}
		_ = resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(15 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
