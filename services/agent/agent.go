// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package agent provides the student records query agent service.
//
// The service answers natural-language questions about students. Each
// question runs through the pipeline package: intent classification
// (language model with heuristic fallback), validation, a cached fetch from
// the record service, analysis and response synthesis.
//
// # Usage
//
//	cfg := agent.Config{DataServiceURL: "http://localhost:8000"}
//	svc, err := agent.New(ctx, cfg, nil)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := svc.Run(ctx); err != nil {
//	    log.Fatal(err)
//	}
package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/scholar/pkg/records"
	"github.com/AleutianAI/scholar/services/agent/cache"
	"github.com/AleutianAI/scholar/services/agent/datastore"
	"github.com/AleutianAI/scholar/services/agent/intent"
	"github.com/AleutianAI/scholar/services/agent/observability"
	"github.com/AleutianAI/scholar/services/agent/pipeline"
	"github.com/AleutianAI/scholar/services/agent/redact"
	"github.com/AleutianAI/scholar/services/agent/routes"
	"github.com/AleutianAI/scholar/services/llm"
)

// ServiceName identifies the agent in traces.
const ServiceName = "scholar-agent"

// =============================================================================
// Interface Definition
// =============================================================================

// Service is the agent lifecycle.
//
// # Thread Safety
//
// Run blocks and should be called once per instance. Router and Pipeline
// are safe to use concurrently.
type Service interface {
	// Run serves HTTP until ctx is cancelled, then shuts down gracefully
	// and flushes telemetry.
	Run(ctx context.Context) error

	// Router returns the configured gin engine for tests.
	Router() *gin.Engine

	// Pipeline returns the request pipeline, used by the CLI to answer a
	// single question without serving HTTP.
	Pipeline() *pipeline.Pipeline

	// Close releases telemetry without serving. Run calls it on exit.
	Close(ctx context.Context) error
}

// Options injects dependencies. Every field is optional.
type Options struct {
	// Registry receives the agent metrics and is served at /metrics.
	Registry *prometheus.Registry

	// Logger defaults to slog.Default().
	Logger *slog.Logger

	// LLMClient overrides the client built from Config.LLM.
	LLMClient llm.LLMClient

	// HTTPClient is used for record service calls.
	HTTPClient *http.Client

	// TracerProvider overrides the provider built by InitTelemetry.
	TracerProvider trace.TracerProvider
}

// =============================================================================
// Implementation
// =============================================================================

type service struct {
	config    Config
	logger    *slog.Logger
	registry  *prometheus.Registry
	telemetry *observability.Telemetry
	obs       *observability.Observer
	fetcher   *datastore.CachedFetcher
	pipeline  *pipeline.Pipeline
	router    *gin.Engine
}

// New builds the agent.
//
// # Description
//
// Initializes telemetry, the Prometheus metrics, the classifier chain, the
// result cache and the cached fetcher, then registers routes. A missing or
// disabled LLM backend is not an error: the agent runs on the heuristic
// classifier alone.
//
// # Inputs
//
//   - ctx: Used for exporter construction only.
//   - cfg: Defaults are applied to a copy, then validated.
//   - opts: Nil uses defaults for every dependency.
//
// # Outputs
//
//   - Service: Ready to Run.
//   - error: Invalid configuration, telemetry or LLM setup failure.
func New(ctx context.Context, cfg Config, opts *Options) (Service, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid agent config: %w", err)
	}
	if opts == nil {
		opts = &Options{}
	}

	s := &service{config: cfg, registry: opts.Registry, logger: opts.Logger}
	if s.registry == nil {
		s.registry = prometheus.NewRegistry()
		s.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	s.logger = s.logger.With("component", "agent")

	tel, err := observability.InitTelemetry(ctx, cfg.Telemetry, s.registry)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	s.telemetry = tel

	tp := opts.TracerProvider
	if tp == nil {
		tp = tel.TracerProvider
	}
	s.obs = observability.NewObserver(observability.NewMetrics(s.registry), tp, s.logger)

	classifier, err := s.initClassifier(opts.LLMClient)
	if err != nil {
		_ = s.Close(ctx)
		return nil, fmt.Errorf("failed to initialize classifier: %w", err)
	}

	results := cache.New[*records.Record](cfg.Cache.TTL, cfg.Cache.MaxEntries, cache.WithName("students"))
	s.fetcher = datastore.NewCachedFetcher(datastore.NewClient(opts.HTTPClient), results, s.obs, cfg.Fetcher)
	s.pipeline = pipeline.New(classifier, s.fetcher, s.obs)

	s.initRouter()
	return s, nil
}

// Run implements Service.
func (s *service) Run(ctx context.Context) error {
	defer func() {
		if err := s.Close(context.Background()); err != nil {
			s.logger.Warn("Telemetry shutdown error", "error", err)
		}
	}()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.config.Port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Starting agent server",
			"port", s.config.Port,
			"data_service_url", s.config.DataServiceURL,
		)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown agent: %w", err)
	}
	s.logger.Info("Agent stopped")
	return nil
}

// Router implements Service.
func (s *service) Router() *gin.Engine {
	return s.router
}

// Pipeline implements Service.
func (s *service) Pipeline() *pipeline.Pipeline {
	return s.pipeline
}

// Close implements Service.
func (s *service) Close(ctx context.Context) error {
	if s.telemetry == nil {
		return nil
	}
	return s.telemetry.Shutdown(ctx)
}

// =============================================================================
// Initialization Helpers
// =============================================================================

// initClassifier puts the LLM classifier in front of the heuristic one when
// a backend is available. Prompts are redacted before they leave the process.
func (s *service) initClassifier(client llm.LLMClient) (intent.Classifier, error) {
	heuristic := intent.NewHeuristicClassifier()

	if client == nil {
		var err error
		client, err = llm.NewClient(s.config.LLM)
		switch {
		case errors.Is(err, llm.ErrNoBackend):
			s.logger.Warn("No LLM backend available, using heuristic classification only",
				"backend", s.config.LLM.Backend)
			return heuristic, nil
		case err != nil:
			return nil, err
		}
	}

	redactor, err := redact.New()
	if err != nil {
		return nil, err
	}

	s.logger.Info("Using LLM classifier", "model", client.Model())
	return intent.NewLLMClassifier(redact.NewClient(client, redactor, s.logger), heuristic, s.obs, s.config.Classifier)
}

func (s *service) initRouter() {
	gin.SetMode(s.config.GinMode)
	s.router = gin.New()
	s.router.Use(gin.Recovery(), otelgin.Middleware(ServiceName))

	routes.SetupRoutes(s.router, routes.Dependencies{
		Pipeline:       s.pipeline,
		Fetcher:        s.fetcher,
		Gatherer:       s.registry,
		DataServiceURL: s.config.DataServiceURL,
		Logger:         s.logger,
	})
}

// =============================================================================
// Compile-time Interface Check
// =============================================================================

var _ Service = (*service)(nil)
