// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command stepseqd runs the collaborative step-sequencer's real-time
// session service: session CRUD, the per-session WebSocket, and the
// crawler-aware SPA shell.
//
// # Environment Variables
//
// Every Config field in internal/config binds to STEPSEQ_<FIELD>, e.g.
// STEPSEQ_HTTP_ADDR, STEPSEQ_STORE_DRIVER, STEPSEQ_ADMIN_JWT_SECRET.
//
// # Usage
//
//	stepseqd serve --config stepseqd.yaml
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/aleutian-labs/stepseq/internal/config"
	"github.com/aleutian-labs/stepseq/internal/logging"
	"github.com/aleutian-labs/stepseq/internal/stepseqd"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "stepseqd",
	Short: "Collaborative step sequencer real-time session service",
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP/WebSocket session service",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&configPath, "config", "", "path to a YAML config file (optional)")
	rootCmd.AddCommand(serveCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatalf("stepseqd: %v", err)
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger := logging.New(logging.Config{
		Level:   parseLevel(cfg.LogLevel),
		LogDir:  cfg.LogDir,
		Service: "stepseqd",
		JSON:    cfg.LogJSON,
	})
	defer logger.Close()

	svc, err := stepseqd.New(cfg, logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return svc.Run(ctx)
}

func parseLevel(s string) logging.Level {
	switch s {
	case "debug":
		return logging.LevelDebug
	case "warn":
		return logging.LevelWarn
	case "error":
		return logging.LevelError
	default:
		return logging.LevelInfo
	}
}
