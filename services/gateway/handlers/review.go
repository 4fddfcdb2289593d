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
	"github.com/bidsight/bidsight/services/workflow"
)

// HandleReview resolves a session paused at the review barrier.
//
// Description:
//
//	Accepts the reviewer's decision and resumes the pipeline. The
//	"generate_deck" action routes through the deck generator; the
//	"chat_only" action completes the session without it. Resuming a
//	session that is not paused at the barrier is a conflict, not an
//	engine fault.
func HandleReview(eng *workflow.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		sessionID := c.Param("id")

		var req datatypes.ReviewRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "Action must be one of: generate_deck, chat_only",
			})
			return
		}

		decision := req.Action == datatypes.ActionGenerateDeck
		state, err := eng.Resume(c.Request.Context(), sessionID, decision)
		if err != nil {
			switch {
			case errors.Is(err, workflow.ErrSessionNotFound),
				errors.Is(err, workflow.ErrCheckpointNotFound):
				c.JSON(http.StatusNotFound, gin.H{"error": "Session not found"})
			case errors.Is(err, workflow.ErrNotInterrupted):
				c.JSON(http.StatusConflict, gin.H{
					"error": "Session is not awaiting review",
				})
			default:
				observability.RecordError("review")
				slog.Error("resume failed",
					slog.String("session_id", sessionID),
					slog.String("error", err.Error()),
				)
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to resume session"})
			}
			return
		}

		if observability.DefaultMetrics != nil {
			observability.DefaultMetrics.ReviewDecisionsTotal.WithLabelValues(req.Action).Inc()
		}

		resp := datatypes.ReviewResponse{Status: "completed"}
		if url, ok := state[analysis.FieldDeckURL].(string); ok {
			resp.DeckURL = url
		}
		c.JSON(http.StatusOK, resp)
	}
}
