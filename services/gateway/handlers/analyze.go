// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package handlers implements the gateway's HTTP endpoints over the
// workflow engine.
package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/bidsight/bidsight/services/analysis"
	"github.com/bidsight/bidsight/services/gateway/datatypes"
	"github.com/bidsight/bidsight/services/gateway/observability"
	"github.com/bidsight/bidsight/services/gateway/uploads"
	"github.com/bidsight/bidsight/services/workflow"
)

// HandleAnalyze accepts uploaded procurement documents and starts the
// analysis pipeline in the background.
//
// Description:
//
//	Accepts multipart form uploads under the "files" field (or a single
//	"file"), stores them, registers a session, and kicks off the run.
//	The response returns immediately with the session id; progress
//	arrives on the events stream.
func HandleAnalyze(eng *workflow.Engine, store *uploads.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		form, err := c.MultipartForm()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid multipart form"})
			return
		}

		files := form.File["files"]
		if len(files) == 0 {
			files = form.File["file"]
		}
		if len(files) == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "No documents uploaded"})
			return
		}
		for _, fh := range files {
			if !uploads.Allowed(fh.Filename) {
				c.JSON(http.StatusBadRequest, gin.H{
					"error": "Only PDF, TXT and MD documents are supported",
				})
				return
			}
		}

		sessionID := uuid.NewString()
		paths := make([]any, 0, len(files))
		for _, fh := range files {
			src, err := fh.Open()
			if err != nil {
				observability.RecordError("analyze")
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read upload"})
				return
			}
			path, err := store.Save(sessionID, fh.Filename, src)
			src.Close()
			if err != nil {
				observability.RecordError("analyze")
				slog.Error("failed to store upload",
					slog.String("session_id", sessionID),
					slog.String("error", err.Error()),
				)
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to store upload"})
				return
			}
			paths = append(paths, path)
		}

		if _, err := eng.CreateSession(sessionID, workflow.State{
			analysis.FieldDocuments: paths,
			analysis.FieldSessionID: sessionID,
		}); err != nil {
			observability.RecordError("analyze")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create session"})
			return
		}

		if observability.DefaultMetrics != nil {
			observability.DefaultMetrics.AnalysesStartedTotal.Inc()
		}
		slog.Info("analysis started",
			slog.String("session_id", sessionID),
			slog.Int("documents", len(paths)),
		)

		// The run outlives this request.
		go func() {
			if err := eng.Run(context.Background(), sessionID); err != nil {
				slog.Error("analysis run failed",
					slog.String("session_id", sessionID),
					slog.String("error", err.Error()),
				)
			}
		}()

		c.JSON(http.StatusAccepted, datatypes.AnalyzeResponse{
			SessionID: sessionID,
			Status:    "processing",
		})
	}
}
