// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/scholar/pkg/logging"
	"github.com/AleutianAI/scholar/services/agent"
	"github.com/AleutianAI/scholar/services/recordstore"
)

// DefaultConfigPath is read when --config is not given. A missing file at
// this path is not an error.
const DefaultConfigPath = "scholar.yaml"

// LoggingConfig is the "logging" section of scholar.yaml.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Dir    string `yaml:"dir"`
}

// FileConfig is the layout of scholar.yaml.
//
// # Examples
//
//	agent:
//	  port: 8001
//	  data_service_url: http://localhost:8000
//	  llm:
//	    backend: groq
//	records:
//	  store:
//	    backend: sqlite
//	    path: ./data/students.db
//	logging:
//	  level: debug
type FileConfig struct {
	Agent   agent.Config       `yaml:"agent"`
	Records recordstore.Config `yaml:"records"`
	Logging LoggingConfig      `yaml:"logging"`
}

// loadConfig reads path, applies environment overrides, then defaults.
//
// # Inputs
//
//   - path: YAML file. A missing file yields defaults unless explicit is set.
//   - explicit: The user named the file with --config.
//   - getenv: Environment lookup, os.Getenv in production.
//
// # Outputs
//
//   - FileConfig: Defaults applied to both services.
//   - error: Unreadable file, unknown keys, or bad environment values.
func loadConfig(path string, explicit bool, getenv func(string) string) (FileConfig, error) {
	var cfg FileConfig

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist) && !explicit:
	case err != nil:
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	default:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := cfg.Agent.ApplyEnv(getenv); err != nil {
		return cfg, err
	}
	if v := getenv("RECORDS_BACKEND"); v != "" {
		cfg.Records.Store.Backend = v
	}
	if v := getenv("MONGO_URI"); v != "" {
		cfg.Records.Store.MongoURI = v
	}
	if v := getenv("SCHOLAR_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}

	cfg.Agent.ApplyDefaults()
	cfg.Records.ApplyDefaults()
	return cfg, nil
}

// newLogger builds the process logger. Flag values win over the file.
func newLogger(cfg LoggingConfig, level, format string) (*logging.Logger, error) {
	if level == "" {
		level = cfg.Level
	}
	if format == "" {
		format = cfg.Format
	}
	lvl, err := logging.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	switch logging.Format(format) {
	case "", logging.FormatAuto, logging.FormatJSON, logging.FormatText:
	default:
		return nil, fmt.Errorf("unknown log format %q", format)
	}
	return logging.New(logging.Config{
		Level:   lvl,
		Format:  logging.Format(format),
		Dir:     cfg.Dir,
		Service: "scholar",
	}), nil
}
