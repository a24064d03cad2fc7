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
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/scholar/services/agent/datastore"
	"github.com/AleutianAI/scholar/services/agent/intent"
	"github.com/AleutianAI/scholar/services/agent/observability"
	"github.com/AleutianAI/scholar/services/llm"
)

const (
	// DefaultPort is the agent HTTP port.
	DefaultPort = 8001
	// DefaultDataServiceURL is where the record service listens by default.
	DefaultDataServiceURL = "http://localhost:8000"
	// DefaultCacheTTL is the lifetime of a cached student record.
	DefaultCacheTTL = 5 * time.Minute
	// DefaultCacheSize bounds the number of cached students.
	DefaultCacheSize = 1000
)

// =============================================================================
// Configuration
// =============================================================================

// CacheConfig sizes the student result cache.
type CacheConfig struct {
	TTL        time.Duration `yaml:"ttl"`
	MaxEntries int           `yaml:"max_entries"`
}

// Config holds agent service configuration.
//
// # Description
//
// Loaded from the "agent" section of the YAML config file, then overlaid
// with environment variables by ApplyEnv, then completed by ApplyDefaults.
//
// # Examples
//
//	cfg := agent.Config{DataServiceURL: "http://records:8000"}
//	cfg.ApplyEnv(os.Getenv)
//	cfg.ApplyDefaults()
//	if err := cfg.Validate(); err != nil {
//	    return err
//	}
type Config struct {
	// Port is the HTTP server port. Default: 8001
	Port int `yaml:"port"`

	// GinMode is "debug", "release" or "test". Default: release
	GinMode string `yaml:"gin_mode"`

	// DataServiceURL is the record service root. Default: http://localhost:8000
	DataServiceURL string `yaml:"data_service_url"`

	// LLM selects the classification backend. "none" runs heuristics only.
	LLM llm.Config `yaml:"llm"`

	// Classifier tunes timeouts and rate limiting of model calls.
	Classifier intent.LLMConfig `yaml:"classifier"`

	Cache     CacheConfig                   `yaml:"cache"`
	Fetcher   datastore.FetcherConfig       `yaml:"fetcher"`
	Telemetry observability.TelemetryConfig `yaml:"telemetry"`
}

// ApplyDefaults fills zero values.
func (c *Config) ApplyDefaults() {
	if c.Port == 0 {
		c.Port = DefaultPort
	}
	if c.GinMode == "" {
		c.GinMode = gin.ReleaseMode
	}
	if c.DataServiceURL == "" {
		c.DataServiceURL = DefaultDataServiceURL
	}
	c.DataServiceURL = strings.TrimRight(c.DataServiceURL, "/")
	if c.Cache.TTL <= 0 {
		c.Cache.TTL = DefaultCacheTTL
	}
	if c.Cache.MaxEntries <= 0 {
		c.Cache.MaxEntries = DefaultCacheSize
	}
	c.Classifier.ApplyDefaults()
	c.Fetcher.ApplyDefaults()
	c.Telemetry.ApplyDefaults()
}

// ApplyEnv overlays environment variables on c. Unset variables leave the
// field alone.
//
// # Inputs
//
//   - getenv: Usually os.Getenv. Tests pass a map lookup.
//
// # Outputs
//
//   - error: Non-nil when a numeric variable does not parse.
func (c *Config) ApplyEnv(getenv func(string) string) error {
	if v := getenv("SCHOLAR_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("SCHOLAR_PORT: %w", err)
		}
		c.Port = port
	}
	setString(&c.DataServiceURL, getenv("DATA_SERVICE_URL"))
	setString(&c.LLM.Backend, getenv("LLM_BACKEND_TYPE"))
	setString(&c.Telemetry.OTLPEndpoint, getenv("OTEL_EXPORTER_OTLP_ENDPOINT"))
	setString(&c.Telemetry.TraceExporter, getenv("OTEL_TRACES_EXPORTER"))

	switch strings.ToLower(c.LLM.Backend) {
	case llm.BackendOllama:
		setString(&c.LLM.BaseURL, getenv("OLLAMA_BASE_URL"))
		setString(&c.LLM.Model, getenv("OLLAMA_MODEL"))
	case llm.BackendOpenAI:
		setString(&c.LLM.APIKey, getenv("OPENAI_API_KEY"))
		setString(&c.LLM.BaseURL, getenv("OPENAI_URL_BASE"))
		setString(&c.LLM.Model, getenv("OPENAI_MODEL"))
	default:
		setString(&c.LLM.APIKey, getenv("GROQ_API_KEY"))
		setString(&c.LLM.Model, getenv("GROQ_MODEL"))
	}
	return nil
}

// Validate rejects unusable configurations. Call after ApplyDefaults.
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("agent port %d out of range", c.Port)
	}
	u, err := url.Parse(c.DataServiceURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid data service URL: %q", c.DataServiceURL)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("data service URL must be http or https: %q", c.DataServiceURL)
	}
	if c.Fetcher.ClassLimit > 1000 {
		return errors.New("fetcher class_limit must not exceed 1000")
	}
	return nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
