// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/scholar/services/agent"
	"github.com/AleutianAI/scholar/services/recordstore"
)

var (
	servePort        int
	serveWithRecords bool

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Run the agent HTTP service",
		Long: `Runs the agent on the configured port. With --with-records the record
service is started in the same process, using the "records" section of the
config file.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := cliConfig
			if cmd.Flags().Changed("port") {
				cfg.Agent.Port = servePort
			}
			ctx, stop := signalContext(cmd.Context())
			defer stop()
			return runServe(ctx, cfg, serveWithRecords)
		},
	}
)

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", agent.DefaultPort, "Agent HTTP port")
	serveCmd.Flags().BoolVar(&serveWithRecords, "with-records", false, "Also run the record service in this process")
	rootCmd.AddCommand(serveCmd)
}

// runServe runs the agent, and optionally the record service, until ctx
// ends or either server fails.
func runServe(ctx context.Context, cfg FileConfig, withRecords bool) error {
	svc, err := agent.New(ctx, cfg.Agent, &agent.Options{Logger: logger.Slog()})
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	if withRecords {
		srv, err := openRecordServer(gctx, cfg.Records)
		if err != nil {
			_ = svc.Close(context.Background())
			return err
		}
		g.Go(func() error { return srv.Run(gctx) })
	}
	g.Go(func() error { return svc.Run(gctx) })
	return g.Wait()
}

// openRecordServer opens the configured store and wraps it in a server.
func openRecordServer(ctx context.Context, cfg recordstore.Config) (*recordstore.Server, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid records config: %w", err)
	}
	store, err := recordstore.Open(ctx, cfg.Store, logger.Slog())
	if err != nil {
		return nil, fmt.Errorf("open records store: %w", err)
	}
	return recordstore.New(cfg, store, nil, logger.Slog()), nil
}

func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}
