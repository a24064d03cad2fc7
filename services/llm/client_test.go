// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Mock Server Helpers
// =============================================================================

// newMockOpenAIServer serves /chat/completions and captures the decoded
// request body for assertions.
func newMockOpenAIServer(t *testing.T, captured *map[string]any) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			http.NotFound(w, r)
			return
		}
		body := map[string]any{}
		_ = json.NewDecoder(r.Body).Decode(&body)
		*captured = body
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "chatcmpl-1",
			"object": "chat.completion",
			"model": "llama-3.3-70b-versatile",
			"choices": [{"index": 0, "message": {"role": "assistant", "content": "{\"query_type\":\"trend\"}"}, "finish_reason": "stop"}],
			"usage": {"prompt_tokens": 42, "completion_tokens": 7, "total_tokens": 49}
		}`))
	}))
	t.Cleanup(srv.Close)
	return srv
}

// =============================================================================
// OpenAI-compatible client
// =============================================================================

func TestOpenAIClient_Generate(t *testing.T) {
	var captured map[string]any
	srv := newMockOpenAIServer(t, &captured)

	client, err := NewOpenAIClient(Config{APIKey: "test-key", BaseURL: srv.URL, Model: DefaultGroqModel})
	require.NoError(t, err)

	temp := float32(0)
	got, err := client.Generate(context.Background(), "classify this", GenerationParams{
		Temperature: &temp,
		System:      "You classify queries.",
		JSONMode:    true,
	})
	require.NoError(t, err)

	assert.Equal(t, `{"query_type":"trend"}`, got.Text)
	assert.Equal(t, "llama-3.3-70b-versatile", got.Model)
	assert.Equal(t, Usage{PromptTokens: 42, CompletionTokens: 7}, got.Usage)

	messages, ok := captured["messages"].([]any)
	require.True(t, ok)
	require.Len(t, messages, 2)
	assert.Equal(t, "You classify queries.", messages[0].(map[string]any)["content"])
	assert.Equal(t, "classify this", messages[1].(map[string]any)["content"])
	assert.Equal(t, map[string]any{"type": "json_object"}, captured["response_format"])
}

func TestOpenAIClient_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"rate limited","type":"rate_limit"}}`))
	}))
	defer srv.Close()

	client, err := NewOpenAIClient(Config{APIKey: "k", BaseURL: srv.URL, Model: "m"})
	require.NoError(t, err)

	_, err = client.Generate(context.Background(), "hi", GenerationParams{})
	assert.ErrorContains(t, err, "OpenAI API call failed")
}

func TestNewOpenAIClient_SecretFileFallback(t *testing.T) {
	path := filepath.Join(t.TempDir(), "key")
	require.NoError(t, os.WriteFile(path, []byte("  from-file\n"), 0o600))

	client, err := NewOpenAIClient(Config{SecretPath: path})
	require.NoError(t, err)
	assert.Equal(t, DefaultOpenAIModel, client.Model())
}

func TestNewOpenAIClient_NoKey(t *testing.T) {
	_, err := NewOpenAIClient(Config{SecretPath: filepath.Join(t.TempDir(), "missing")})
	assert.ErrorIs(t, err, ErrNoBackend)
}

// =============================================================================
// Ollama client
// =============================================================================

func TestOllamaClient_Generate(t *testing.T) {
	var got ollamaGenerateRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/generate", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"model":"llama3.1","response":"ok","done":true,"prompt_eval_count":11,"eval_count":3}`))
	}))
	defer srv.Close()

	client, err := NewOllamaClient(Config{BaseURL: srv.URL + "/"})
	require.NoError(t, err)

	completion, err := client.Generate(context.Background(), "hello", GenerationParams{JSONMode: true, System: "sys"})
	require.NoError(t, err)

	assert.Equal(t, "ok", completion.Text)
	assert.Equal(t, Usage{PromptTokens: 11, CompletionTokens: 3}, completion.Usage)
	assert.Equal(t, "json", got.Format)
	assert.Equal(t, "sys", got.System)
	assert.False(t, got.Stream)
	assert.Equal(t, DefaultOllamaModel, got.Model)
}

func TestOllamaClient_ModelNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"model 'llama3.1' not found"}`))
	}))
	defer srv.Close()

	client, err := NewOllamaClient(Config{BaseURL: srv.URL})
	require.NoError(t, err)

	_, err = client.Generate(context.Background(), "hello", GenerationParams{})
	assert.ErrorContains(t, err, "ollama pull llama3.1")
}

func TestOllamaOptions(t *testing.T) {
	topK := 5
	opts := ollamaOptions(GenerationParams{TopK: &topK, Stop: []string{"\n"}})

	assert.Equal(t, 5, opts["top_k"])
	assert.Equal(t, float32(0), opts["temperature"])
	assert.Equal(t, []string{"\n"}, opts["stop"])
}

// =============================================================================
// Factory
// =============================================================================

func TestNewClient(t *testing.T) {
	t.Run("groq defaults", func(t *testing.T) {
		c, err := NewClient(Config{Backend: "GROQ", APIKey: "k"})
		require.NoError(t, err)
		assert.Equal(t, DefaultGroqModel, c.Model())
	})
	t.Run("ollama", func(t *testing.T) {
		c, err := NewClient(Config{Backend: BackendOllama, Model: "phi3"})
		require.NoError(t, err)
		assert.Equal(t, "phi3", c.Model())
	})
	t.Run("none", func(t *testing.T) {
		_, err := NewClient(Config{Backend: BackendNone})
		assert.ErrorIs(t, err, ErrNoBackend)
	})
	t.Run("unknown", func(t *testing.T) {
		_, err := NewClient(Config{Backend: "bard"})
		assert.ErrorContains(t, err, "unknown llm backend")
	})
}
