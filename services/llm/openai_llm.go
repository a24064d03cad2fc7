package llm

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	GroqBaseURL        = "https://api.groq.com/openai/v1"
	DefaultGroqModel   = "llama-3.3-70b-versatile"
	DefaultOpenAIModel = "gpt-4o-mini"

	defaultSystemPrompt = "You are a helpful assistant."
	defaultSecretPath   = "/run/secrets/openai_api_key"
	defaultLLMTimeout   = 30 * time.Second
)

type OpenAIClient struct {
	client *openai.Client
	model  string
}

// NewOpenAIClient builds a client for any OpenAI-compatible endpoint. The
// API key falls back to a mounted secret file when cfg.APIKey is empty.
func NewOpenAIClient(cfg Config) (*OpenAIClient, error) {
	apiKey := cfg.APIKey
	if apiKey == "" {
		secretPath := cfg.SecretPath
		if secretPath == "" {
			secretPath = defaultSecretPath
		}
		apiKeyBytes, err := os.ReadFile(secretPath)
		if err != nil {
			slog.Warn("LLM API key not set and secret not found", "path", secretPath)
			return nil, fmt.Errorf("%w: api key not set", ErrNoBackend)
		}
		apiKey = strings.TrimSpace(string(apiKeyBytes))
		slog.Info("Read the LLM API key from secret file", "path", secretPath)
	}
	model := cfg.Model
	if model == "" {
		model = DefaultOpenAIModel
		slog.Warn("LLM model not set, defaulting", "model", model)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultLLMTimeout
	}

	oc := openai.DefaultConfig(apiKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")
	}
	oc.HTTPClient = &http.Client{
		Timeout:   timeout,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}
	slog.Info("Initializing OpenAI-compatible client", "model", model, "base_url", oc.BaseURL)
	return &OpenAIClient{
		client: openai.NewClientWithConfig(oc),
		model:  model,
	}, nil
}

func (o *OpenAIClient) Model() string { return o.model }

// Generate implements the LLMClient interface
func (o *OpenAIClient) Generate(ctx context.Context, prompt string, params GenerationParams) (*Completion, error) {
	slog.Debug("Generating text via OpenAI-compatible API", "model", o.model)
	system := params.System
	if system == "" {
		system = defaultSystemPrompt
	}
	req := openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	}
	if params.Temperature != nil {
		req.Temperature = *params.Temperature
	}
	if params.MaxTokens != nil {
		req.MaxCompletionTokens = *params.MaxTokens
	}
	if params.TopP != nil {
		req.TopP = *params.TopP
	}
	if len(params.Stop) > 0 {
		req.Stop = params.Stop
	}
	if params.JSONMode {
		req.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	resp, err := o.client.CreateChatCompletion(ctx, req)
	if err != nil {
		slog.Error("OpenAI API call failed", "error", err)
		return nil, fmt.Errorf("OpenAI API call failed: %w", err)
	}

	if len(resp.Choices) == 0 {
		slog.Warn("OpenAI returned no choices")
		return nil, fmt.Errorf("OpenAI returned no choices")
	}
	slog.Debug("Received response from OpenAI", "finish_reason", resp.Choices[0].FinishReason)
	model := resp.Model
	if model == "" {
		model = o.model
	}
	return &Completion{
		Text:  resp.Choices[0].Message.Content,
		Model: model,
		Usage: Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
		},
	}, nil
}
