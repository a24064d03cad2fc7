// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package recordstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

// ServiceName identifies the record service in traces.
const ServiceName = "scholar-records"

// =============================================================================
// Configuration
// =============================================================================

// Config holds record service configuration.
//
// # Examples
//
//	cfg := recordstore.Config{Port: 8000}
//	cfg.Store.Backend = recordstore.BackendSQLite
//	cfg.Store.Path = "./data/students.db"
type Config struct {
	// Port is the HTTP port. Default: 8000
	Port int `yaml:"port"`

	// GinMode is "debug", "release" or "test". Default: release
	GinMode string `yaml:"gin_mode"`

	// Store selects the backend.
	Store StoreConfig `yaml:"store"`

	// SeedFile is loaded at startup when set.
	SeedFile string `yaml:"seed_file"`

	// WatchSeed reloads SeedFile when it changes.
	WatchSeed bool `yaml:"watch_seed"`
}

// ApplyDefaults fills zero values.
func (c *Config) ApplyDefaults() {
	if c.Port == 0 {
		c.Port = 8000
	}
	if c.GinMode == "" {
		c.GinMode = gin.ReleaseMode
	}
	c.Store.ApplyDefaults()
}

// Validate rejects unusable configurations.
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("records port %d out of range", c.Port)
	}
	if c.WatchSeed && c.SeedFile == "" {
		return errors.New("watch_seed requires seed_file")
	}
	return c.Store.Validate()
}

// =============================================================================
// Server
// =============================================================================

// Server is the record service HTTP server.
//
// # Thread Safety
//
// Run should be called once.
type Server struct {
	config  Config
	store   Store
	router  *gin.Engine
	logger  *slog.Logger
	metrics *Metrics
}

// New builds the router around store.
//
// # Inputs
//
//   - cfg: Defaults are applied to a copy.
//   - store: Backend. The server takes ownership and closes it on Run exit.
//   - reg: Metrics registry, also served at /metrics. Nil uses a fresh one.
//   - logger: Nil discards.
func New(cfg Config, store Store, reg *prometheus.Registry, logger *slog.Logger) *Server {
	cfg.ApplyDefaults()
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	s := &Server{
		config:  cfg,
		store:   store,
		logger:  logger.With("component", "records"),
		metrics: NewMetrics(reg),
	}

	gin.SetMode(cfg.GinMode)
	s.router = gin.New()
	s.router.Use(gin.Recovery(), otelgin.Middleware(ServiceName))
	s.router.GET("/health", HealthCheck)
	s.router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))
	s.router.POST("/query", HandleQuery(store, s.metrics, s.logger))
	s.router.POST("/class_analysis", HandleClassListing(store, s.metrics, s.logger))
	return s
}

// Router returns the gin engine for tests.
func (s *Server) Router() *gin.Engine {
	return s.router
}

// Run seeds the store if configured, serves until ctx is cancelled, then
// shuts down gracefully and closes the store.
func (s *Server) Run(ctx context.Context) error {
	defer func() {
		if err := s.store.Close(); err != nil {
			s.logger.Warn("Store close error", "error", err)
		}
	}()

	if s.config.SeedFile != "" {
		n, err := SeedFromFile(ctx, s.store, s.config.SeedFile)
		if err != nil {
			return fmt.Errorf("seed records: %w", err)
		}
		s.logger.Info("Seeded records", "count", n, "file", s.config.SeedFile)

		if s.config.WatchSeed {
			w, err := NewSeedWatcher(s.config.SeedFile, s.store, 0, s.logger)
			if err != nil {
				return fmt.Errorf("watch seed file: %w", err)
			}
			go w.Run(ctx)
		}
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.config.Port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return serve(ctx, srv, s.logger)
}

// serve runs srv until ctx ends, then drains in-flight requests.
func serve(ctx context.Context, srv *http.Server, logger *slog.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting record service", "addr", srv.Addr)
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
		return fmt.Errorf("shutdown record service: %w", err)
	}
	logger.Info("Record service stopped")
	return nil
}
