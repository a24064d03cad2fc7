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
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/scholar/pkg/ux"
	"github.com/AleutianAI/scholar/services/recordstore"
)

var (
	recordsPort int

	recordsCmd = &cobra.Command{
		Use:   "records",
		Short: "Run or load the student record service",
	}

	recordsServeCmd = &cobra.Command{
		Use:   "serve",
		Short: "Run the record service HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := cliConfig.Records
			if cmd.Flags().Changed("port") {
				cfg.Port = recordsPort
			}
			ctx, stop := signalContext(cmd.Context())
			defer stop()

			srv, err := openRecordServer(ctx, cfg)
			if err != nil {
				return err
			}
			return srv.Run(ctx)
		},
	}

	recordsSeedCmd = &cobra.Command{
		Use:   "seed <file>",
		Short: "Load students from a JSON or YAML file into the configured store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := seedRecords(cmd.Context(), cliConfig.Records.Store, args[0], logger.Slog())
			p := ux.NewPrinter(cmd.OutOrStdout())
			if err != nil {
				p.Error(err.Error())
				return err
			}
			p.Success(fmt.Sprintf("Seeded %d students into the %s store", n, storeName(cliConfig.Records.Store)))
			return nil
		},
	}
)

func init() {
	recordsServeCmd.Flags().IntVar(&recordsPort, "port", 8000, "Record service HTTP port")
	recordsCmd.AddCommand(recordsServeCmd, recordsSeedCmd)
	rootCmd.AddCommand(recordsCmd)
}

// seedRecords upserts the students in path into the store described by cfg.
func seedRecords(ctx context.Context, cfg recordstore.StoreConfig, path string, log *slog.Logger) (int, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	store, err := recordstore.Open(ctx, cfg, log)
	if err != nil {
		return 0, fmt.Errorf("open records store: %w", err)
	}
	defer store.Close()
	return recordstore.SeedFromFile(ctx, store, path)
}

func storeName(cfg recordstore.StoreConfig) string {
	if cfg.Backend == "" {
		return recordstore.BackendMemory
	}
	return cfg.Backend
}
