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
	"github.com/spf13/cobra"
)

// --- Global Command Variables ---
var (
	servePort      int
	serveDataDir   string
	serveUploads   string
	serveGinMode   string
	maxConcurrency int
	logDir         string
	logJSON        bool

	analyzeDeck    bool
	analyzeVerbose bool

	rootCmd = &cobra.Command{
		Use:   "bidsight",
		Short: "A pre-procurement document analysis service",
		Long: `Bidsight analyzes procurement documents with a panel of
				concurrent specialist reviewers, compiles a readiness verdict,
				and pauses for human review before generating deliverables.`,
	}

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Start the analysis HTTP server",
		RunE:  runServeCommand, // Defined in cmd_serve.go
	}

	analyzeCmd = &cobra.Command{
		Use:   "analyze [document...]",
		Short: "Run the analysis pipeline on local documents and print the verdict",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runAnalyzeCommand, // Defined in cmd_analyze.go
	}
)

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "HTTP port (overrides BIDSIGHT_PORT)")
	serveCmd.Flags().StringVar(&serveDataDir, "data-dir", "", "Checkpoint database directory")
	serveCmd.Flags().StringVar(&serveUploads, "uploads-dir", "", "Uploaded document directory")
	serveCmd.Flags().StringVar(&serveGinMode, "gin-mode", "release", "Gin mode (debug/release/test)")
	serveCmd.Flags().IntVar(&maxConcurrency, "max-concurrency", 0, "Cap on concurrent analysts")
	serveCmd.Flags().StringVar(&logDir, "log-dir", "", "Also write JSON logs to this directory")
	serveCmd.Flags().BoolVar(&logJSON, "log-json", false, "Emit JSON logs on stderr")

	analyzeCmd.Flags().BoolVar(&analyzeDeck, "deck", false, "Generate a presentation after analysis")
	analyzeCmd.Flags().BoolVar(&analyzeVerbose, "verbose", false, "Print per-analyst progress")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(analyzeCmd)
}
