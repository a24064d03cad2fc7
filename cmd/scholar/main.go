// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Command scholar runs the student records agent, the record service, and
// one-shot questions from the terminal.
package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/scholar/pkg/logging"
)

var (
	configPath string
	logLevel   string
	logFormat  string

	cliConfig FileConfig
	logger    *logging.Logger

	rootCmd = &cobra.Command{
		Use:   "scholar",
		Short: "Ask questions about student records",
		Long: `Scholar answers natural-language questions about students by
classifying the question, fetching records from the record service and
analyzing them.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath, cmd.Flags().Changed("config"), os.Getenv)
			if err != nil {
				return err
			}
			l, err := newLogger(cfg.Logging, logLevel, logFormat)
			if err != nil {
				return err
			}
			cliConfig = cfg
			logger = l
			slog.SetDefault(l.Slog())
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if logger != nil {
				_ = logger.Close()
			}
		},
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", DefaultConfigPath, "Path to scholar.yaml")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn or error")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "Log format: auto, json or text")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
