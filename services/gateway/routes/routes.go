// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package routes wires the gateway's HTTP surface.
package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bidsight/bidsight/services/gateway/handlers"
	"github.com/bidsight/bidsight/services/gateway/uploads"
	"github.com/bidsight/bidsight/services/llm"
	"github.com/bidsight/bidsight/services/workflow"
)

// Dependencies carries everything the route handlers need.
type Dependencies struct {
	Engine  *workflow.Engine
	Uploads *uploads.Store
	LLM     llm.Client

	// EnableMetrics exposes the Prometheus endpoint at /metrics.
	EnableMetrics bool
}

// SetupRoutes registers all gateway endpoints on the router.
//
// Description:
//
//	Health and metrics sit at the root; the analysis API lives under
//	/v1. Streaming is offered both as server-sent events and as a
//	websocket, serving the same progress feed.
func SetupRoutes(r *gin.Engine, deps Dependencies) {
	r.GET("/health", handlers.HandleHealth())
	if deps.EnableMetrics {
		r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}

	v1 := r.Group("/v1")
	{
		v1.POST("/analyses", handlers.HandleAnalyze(deps.Engine, deps.Uploads))
		v1.GET("/analyses/:id", handlers.HandleStatus(deps.Engine))
		v1.GET("/analyses/:id/events", handlers.HandleEvents(deps.Engine))
		v1.GET("/analyses/:id/ws", handlers.HandleAnalysisWebSocket(deps.Engine, deps.LLM))
		v1.POST("/analyses/:id/review", handlers.HandleReview(deps.Engine))
		v1.POST("/analyses/:id/chat", handlers.HandleChat(deps.Engine, deps.LLM))
	}
}
