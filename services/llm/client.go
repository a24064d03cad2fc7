package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

type GenerationParams struct {
	Temperature *float32 `json:"temperature"`
	TopK        *int     `json:"top_k"`
	TopP        *float32 `json:"top_p"`
	MaxTokens   *int     `json:"max_tokens"`
	Stop        []string `json:"stop"`
	// System overrides the backend's default system prompt.
	System string `json:"system,omitempty"`
	// JSONMode asks the backend to constrain output to a JSON object.
	JSONMode bool `json:"json_mode,omitempty"`
}

// Usage is the token accounting reported by the backend. Zero when the
// backend does not report it.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
}

// Completion is a single non-streamed generation.
type Completion struct {
	Text  string `json:"text"`
	Model string `json:"model"`
	Usage Usage  `json:"usage"`
}

// LLMClient defines the standard interface for any LLM backend
type LLMClient interface {
	Generate(ctx context.Context, prompt string, params GenerationParams) (*Completion, error)
	Model() string
}

// Backend names accepted by NewClient.
const (
	BackendGroq   = "groq"
	BackendOpenAI = "openai"
	BackendOllama = "ollama"
	BackendNone   = "none"
)

// ErrNoBackend is returned by NewClient when the configured backend is
// "none" or the backend is missing its credentials. Callers treat it as
// "run heuristics only".
var ErrNoBackend = errors.New("no llm backend configured")

// Config selects and configures a backend.
type Config struct {
	Backend    string        `yaml:"backend"`
	APIKey     string        `yaml:"api_key"`
	BaseURL    string        `yaml:"base_url"`
	Model      string        `yaml:"model"`
	SecretPath string        `yaml:"secret_path"`
	Timeout    time.Duration `yaml:"timeout"`
}

// NewClient builds the backend named by cfg.Backend.
//
// # Description
//
// "groq" and "openai" share the OpenAI-compatible client and differ only in
// base URL and default model. "ollama" talks to a local Ollama server. An
// empty backend is treated as "groq".
//
// # Outputs
//
//   - LLMClient: Ready client.
//   - error: ErrNoBackend for "none" or a missing API key, otherwise a
//     configuration error.
func NewClient(cfg Config) (LLMClient, error) {
	backend := strings.ToLower(strings.TrimSpace(cfg.Backend))
	switch backend {
	case "", BackendGroq:
		if cfg.BaseURL == "" {
			cfg.BaseURL = GroqBaseURL
		}
		if cfg.Model == "" {
			cfg.Model = DefaultGroqModel
		}
		return NewOpenAIClient(cfg)
	case BackendOpenAI:
		return NewOpenAIClient(cfg)
	case BackendOllama:
		return NewOllamaClient(cfg)
	case BackendNone:
		return nil, ErrNoBackend
	default:
		return nil, fmt.Errorf("unknown llm backend %q", cfg.Backend)
	}
}
