// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/bidsight/bidsight/services/analysis"
	"github.com/bidsight/bidsight/services/gateway/datatypes"
	"github.com/bidsight/bidsight/services/gateway/observability"
	"github.com/bidsight/bidsight/services/llm"
	"github.com/bidsight/bidsight/services/workflow"
)

// HandleChat answers follow-up questions grounded in a session's
// parsed documents and compiled report.
func HandleChat(eng *workflow.Engine, client llm.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		sessionID := c.Param("id")

		var req datatypes.ChatRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Query is required"})
			return
		}

		sess, err := eng.Session(c.Request.Context(), sessionID)
		if err != nil {
			if errors.Is(err, workflow.ErrSessionNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "Session not found"})
				return
			}
			observability.RecordError("chat")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load session"})
			return
		}

		answer, err := analysis.Chat(c.Request.Context(), client, sess.State(), req.Query)
		if err != nil {
			if observability.DefaultMetrics != nil {
				observability.DefaultMetrics.ChatRequestsTotal.WithLabelValues("error").Inc()
			}
			slog.Error("chat failed",
				slog.String("session_id", sessionID),
				slog.String("error", err.Error()),
			)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate response"})
			return
		}

		if observability.DefaultMetrics != nil {
			observability.DefaultMetrics.ChatRequestsTotal.WithLabelValues("ok").Inc()
		}
		c.JSON(http.StatusOK, datatypes.ChatResponse{Response: answer})
	}
}
