// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/AleutianAI/scholar/pkg/ux"
	"github.com/AleutianAI/scholar/services/agent"
	"github.com/AleutianAI/scholar/services/agent/datatypes"
	"github.com/AleutianAI/scholar/services/agent/pipeline"
)

var (
	askFields  []string
	askJSON    bool
	askDataURL string

	askCmd = &cobra.Command{
		Use:   "ask <question>",
		Short: "Answer one question without starting the HTTP service",
		Long: `Runs the full agent pipeline in-process against the record service and
prints the answer.

Examples:
  scholar ask "Summarize student 689cef602490264c7f2dd235"
  scholar ask "Show student 689cef602490264c7f2dd235" --fields name,G3
  scholar ask "top 3 students" --json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := cliConfig.Agent
			if askDataURL != "" {
				cfg.DataServiceURL = askDataURL
			}
			opts := askOptions{Fields: askFields, JSON: askJSON}
			return runAsk(cmd.Context(), cfg, cmd.OutOrStdout(), strings.Join(args, " "), opts, logger.Slog())
		},
	}
)

func init() {
	askCmd.Flags().StringSliceVar(&askFields, "fields", nil, "Record fields to show instead of an analysis")
	askCmd.Flags().BoolVar(&askJSON, "json", false, "Print the /v1/ask response body as JSON")
	askCmd.Flags().StringVar(&askDataURL, "data-service-url", "", "Record service URL (overrides config)")
	rootCmd.AddCommand(askCmd)
}

type askOptions struct {
	Fields []string
	JSON   bool
}

// runAsk answers question with a fresh in-process agent.
//
// # Description
//
// Builds the agent from cfg, runs one pipeline request and renders the
// result to out. The agent is closed before returning so buffered spans
// are flushed.
//
// # Outputs
//
//   - error: Agent construction failure, or the pipeline error after the
//     answer has been printed.
func runAsk(ctx context.Context, cfg agent.Config, out io.Writer, question string, opts askOptions, log *slog.Logger) error {
	if ctx == nil {
		ctx = context.Background()
	}
	svc, err := agent.New(ctx, cfg, &agent.Options{Logger: log})
	if err != nil {
		return err
	}
	defer func() {
		if err := svc.Close(context.Background()); err != nil {
			log.Warn("Telemetry shutdown error", "error", err)
		}
	}()

	cfg.ApplyDefaults()
	start := time.Now()
	state := svc.Pipeline().Handle(ctx, pipeline.Query{Raw: question, Fields: opts.Fields}, cfg.DataServiceURL)
	elapsed := time.Since(start)

	resp := datatypes.AskResponse{
		RequestID:  uuid.New().String(),
		QueryType:  state.QueryType,
		StudentID:  state.Request.StudentID,
		ParsedBy:   state.ParsedBy,
		Response:   state.FinalResponse,
		TraceID:    state.TraceID,
		DurationMs: elapsed.Milliseconds(),
	}
	if state.Err != nil {
		resp.Error = state.Err.Error()
	}

	if opts.JSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(resp); err != nil {
			return err
		}
	} else {
		ux.NewPrinter(out).Answer(ux.Answer{
			QueryType: string(resp.QueryType),
			StudentID: resp.StudentID,
			ParsedBy:  resp.ParsedBy,
			Response:  resp.Response,
			Error:     resp.Error,
			TraceID:   resp.TraceID,
			Duration:  elapsed,
		})
	}
	return state.Err
}
