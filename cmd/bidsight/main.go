// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command bidsight runs the procurement document analysis service and
// its one-shot CLI.
//
// # Environment Variables
//
//   - BIDSIGHT_PORT: HTTP server port (default: 12400)
//   - BIDSIGHT_DATA_DIR: checkpoint database directory (default: ./data/checkpoints)
//   - BIDSIGHT_UPLOADS_DIR: uploaded document directory (default: ./data/uploads)
//   - LLM_BACKEND_TYPE: model provider - openai, ollama (default: openai)
//   - OPENAI_API_KEY: OpenAI credential (required for openai backend)
//   - OPENAI_MODEL: model name (default: gpt-4o-mini)
//   - OLLAMA_BASE_URL / OLLAMA_MODEL: local Ollama server (ollama backend)
//   - GAMMA_API_BASE_URL / GAMMA_API_KEY: presentation service (optional)
//   - OTEL_EXPORTER_OTLP_ENDPOINT: OpenTelemetry collector (optional)
//   - BIDSIGHT_ENABLE_METRICS: expose Prometheus /metrics (default: true)
//
// # Usage
//
//	# Serve the HTTP API
//	bidsight serve
//
//	# Analyze documents from the command line
//	bidsight analyze rfp.pdf annex-a.pdf
package main

import "os"

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
