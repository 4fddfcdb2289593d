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
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/bidsight/bidsight/services/analysis"
	"github.com/bidsight/bidsight/services/gateway/datatypes"
	"github.com/bidsight/bidsight/services/workflow"
)

// HandleStatus reports a session's lifecycle position and per-worker
// progress without streaming.
func HandleStatus(eng *workflow.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		sessionID := c.Param("id")

		sess, err := eng.Session(c.Request.Context(), sessionID)
		if err != nil {
			if errors.Is(err, workflow.ErrSessionNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "Session not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load session"})
			return
		}

		state := sess.State()
		events, _, _ := eng.Events(c.Request.Context(), sessionID, 0)

		workers := make(map[string]string)
		for name, st := range sess.WorkerStates() {
			workers[name] = string(st)
		}

		_, hasVerdict := state[analysis.FieldReport]
		deckURL, _ := state[analysis.FieldDeckURL].(string)

		c.JSON(http.StatusOK, datatypes.StatusResponse{
			SessionID:   sessionID,
			Status:      string(sess.Status()),
			Position:    string(sess.Position()),
			HasVerdict:  hasVerdict,
			HasDeck:     deckURL != "",
			EventsCount: len(events),
			Workers:     workers,
			Failure:     sess.Failure(),
		})
	}
}
