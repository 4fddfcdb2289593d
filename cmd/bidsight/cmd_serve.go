// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"log/slog"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/bidsight/bidsight/pkg/logging"
	"github.com/bidsight/bidsight/services/gateway"
)

// runServeCommand starts the HTTP server and blocks until it exits.
func runServeCommand(cmd *cobra.Command, args []string) error {
	logger := logging.New(logging.Config{
		Level:   logging.LevelInfo,
		Service: "gateway",
		LogDir:  logDir,
		JSON:    logJSON,
	})
	defer logger.Close()
	slog.SetDefault(logger.Slog())

	cfg := gateway.Config{
		Port:           servePort,
		DataDir:        serveDataDir,
		UploadsDir:     serveUploads,
		GinMode:        serveGinMode,
		MaxConcurrency: maxConcurrency,
		LLMBackend:     getEnvString("LLM_BACKEND_TYPE", "openai"),
		OTelEndpoint:   os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		DeckBaseURL:    getEnvString("GAMMA_API_BASE_URL", "https://public-api.gamma.app/v1"),
		DeckAPIKey:     os.Getenv("GAMMA_API_KEY"),
		EnableMetrics:  getEnvBool("BIDSIGHT_ENABLE_METRICS", true),
	}
	if cfg.Port == 0 {
		cfg.Port = getEnvInt("BIDSIGHT_PORT", 12400)
	}
	if cfg.DataDir == "" {
		cfg.DataDir = getEnvString("BIDSIGHT_DATA_DIR", "./data/checkpoints")
	}
	if cfg.UploadsDir == "" {
		cfg.UploadsDir = getEnvString("BIDSIGHT_UPLOADS_DIR", "./data/uploads")
	}

	slog.Info("Starting bidsight gateway",
		"port", cfg.Port,
		"data_dir", cfg.DataDir,
		"deck_configured", cfg.DeckAPIKey != "",
	)

	svc, err := gateway.New(cfg)
	if err != nil {
		return err
	}
	return svc.Run()
}

// getEnvString returns the environment variable value or a default.
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns the environment variable as bool or a default.
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

// getEnvInt returns the environment variable as int or a default.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}
