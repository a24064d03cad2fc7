// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package recordstore is the record service: the HTTP endpoints the agent
// fetches student records from, and the storage backends behind them.
//
// # Backends
//
//   - memory: process-local, seeded with demo students. The default.
//   - badger: embedded key-value store, JSON values under "student:<id>".
//   - sqlite: single-table embedded SQL store.
//   - mongo: the student_performance_db.students collection.
//
// All backends return records whose "_id" is the 24-hex student id.
package recordstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/AleutianAI/scholar/pkg/records"
)

// =============================================================================
// Interface
// =============================================================================

// ErrNotFound is returned by Get when no record has the id.
var ErrNotFound = errors.New("student not found")

// Store is a student record backend.
//
// # Description
//
// Get and List project onto fields in the given order. A nil or empty
// fields list returns whole records. Listings always carry "_id" first.
//
// # Thread Safety
//
// Implementations must be safe for concurrent use.
type Store interface {
	// Get returns one projected record, or ErrNotFound.
	Get(ctx context.Context, id string, fields []string) (*records.Record, error)

	// List returns up to limit projected records in a stable order.
	List(ctx context.Context, limit int, fields []string) ([]*records.Record, error)

	// Put inserts or replaces the record stored under id.
	Put(ctx context.Context, id string, rec *records.Record) error

	// Close releases the backend.
	Close() error
}

// =============================================================================
// Configuration
// =============================================================================

// Backend names.
const (
	BackendMemory = "memory"
	BackendBadger = "badger"
	BackendSQLite = "sqlite"
	BackendMongo  = "mongo"
)

// StoreConfig selects and configures a backend.
type StoreConfig struct {
	// Backend is one of the Backend* names. Default: memory.
	Backend string `yaml:"backend"`

	// Path is the badger directory or the sqlite file.
	Path string `yaml:"path"`

	// MongoURI, MongoDatabase and MongoCollection locate the mongo collection.
	MongoURI        string `yaml:"mongo_uri"`
	MongoDatabase   string `yaml:"mongo_database"`
	MongoCollection string `yaml:"mongo_collection"`

	// SeedDemo loads the demo students into an empty memory store.
	SeedDemo bool `yaml:"seed_demo"`
}

// ApplyDefaults fills zero values.
func (c *StoreConfig) ApplyDefaults() {
	if c.Backend == "" {
		c.Backend = BackendMemory
	}
	if c.MongoURI == "" {
		c.MongoURI = "mongodb://localhost:27017"
	}
	if c.MongoDatabase == "" {
		c.MongoDatabase = "student_performance_db"
	}
	if c.MongoCollection == "" {
		c.MongoCollection = "students"
	}
}

// Validate rejects unusable configurations.
func (c *StoreConfig) Validate() error {
	switch c.Backend {
	case BackendMemory, BackendMongo:
		return nil
	case BackendBadger, BackendSQLite:
		if strings.TrimSpace(c.Path) == "" {
			return fmt.Errorf("%s backend requires a path", c.Backend)
		}
		return nil
	}
	return fmt.Errorf("unknown records backend %q", c.Backend)
}

// Open builds the configured backend.
//
// # Inputs
//
//   - ctx: Bounds connection setup for network backends.
//   - cfg: Backend selection. Defaults are applied to a copy.
//   - logger: Backend logger. Nil discards.
//
// # Outputs
//
//   - Store: Ready to serve. Caller must Close it.
//   - error: Non-nil on bad configuration or connection failure.
func Open(ctx context.Context, cfg StoreConfig, logger *slog.Logger) (Store, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	logger = logger.With("component", "recordstore", "backend", cfg.Backend)

	switch cfg.Backend {
	case BackendBadger:
		return OpenBadgerStore(BadgerConfig{Path: cfg.Path, SyncWrites: true, Logger: logger})
	case BackendSQLite:
		return OpenSQLiteStore(ctx, cfg.Path)
	case BackendMongo:
		return OpenMongoStore(ctx, MongoConfig{URI: cfg.MongoURI, Database: cfg.MongoDatabase, Collection: cfg.MongoCollection})
	default:
		store := NewMemoryStore()
		if cfg.SeedDemo {
			if err := SeedStore(ctx, store, DemoStudents()); err != nil {
				return nil, err
			}
			logger.Info("Seeded demo students", "count", store.Len())
		}
		return store, nil
	}
}

// =============================================================================
// Helpers
// =============================================================================

// project returns rec restricted to fields with "_id" kept first when
// keepID is set. Empty fields returns a clone.
func project(rec *records.Record, id string, fields []string, keepID bool) *records.Record {
	var out *records.Record
	if len(fields) == 0 {
		out = rec.Clone()
	} else {
		out = rec.Project(fields)
	}
	out.Delete(records.IDField)
	if !keepID {
		return out
	}
	withID := records.FromPairs(records.Field{Name: records.IDField, Value: id})
	out.Each(func(name string, value any) bool {
		withID.Set(name, value)
		return true
	})
	return withID
}

// documentID reads the id a seed record is stored under.
func documentID(rec *records.Record) (string, error) {
	id := rec.ID()
	if id == "" {
		return "", fmt.Errorf("record has no %s", records.IDField)
	}
	return id, nil
}
