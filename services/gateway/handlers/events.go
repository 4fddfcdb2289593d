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
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/bidsight/bidsight/services/analysis"
	"github.com/bidsight/bidsight/services/gateway/observability"
	"github.com/bidsight/bidsight/services/workflow"
)

// streamTimeout bounds how long a single events connection may stay
// open waiting for the pipeline to reach the review barrier.
const streamTimeout = 300 * time.Second

// sseWriter emits named server-sent events and flushes each one.
type sseWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

func newSSEWriter(w http.ResponseWriter) (*sseWriter, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, errors.New("response writer does not support flushing")
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	return &sseWriter{w: w, flusher: flusher}, nil
}

// Send writes one event with a JSON payload and flushes.
func (s *sseWriter) Send(event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", event, err)
	}
	if _, err := fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", event, data); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

// HandleEvents streams pipeline progress for a session as server-sent
// events.
//
// Description:
//
//	Replays the progress feed from the requested cursor (query param
//	"after", default 0) as "thinking_log" events, then blocks for new
//	entries. When the pipeline reaches the review barrier the compiled
//	report is sent as a "verdict" event followed by a "complete"
//	marker. A closed feed also ends the stream with "complete".
func HandleEvents(eng *workflow.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		sessionID := c.Param("id")
		after, _ := strconv.Atoi(c.DefaultQuery("after", "0"))

		if _, err := eng.Session(c.Request.Context(), sessionID); err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "Session not found"})
			return
		}

		sse, err := newSSEWriter(c.Writer)
		if err != nil {
			observability.RecordError("events")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Streaming unsupported"})
			return
		}

		if observability.DefaultMetrics != nil {
			g := observability.DefaultMetrics.StreamClientsActive.WithLabelValues("sse")
			g.Inc()
			defer g.Dec()
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), streamTimeout)
		defer cancel()

		cursor := after
		// A reconnecting client whose cursor is already past the
		// barrier marker has nothing left to stream.
		if events, _, err := eng.Events(ctx, sessionID, cursor); err == nil && len(events) == 0 {
			if flushTerminal(ctx, eng, sse, sessionID) {
				return
			}
		}

		for {
			events, closed, err := eng.WaitEvents(ctx, sessionID, cursor)
			if err != nil {
				if errors.Is(err, context.DeadlineExceeded) {
					_ = sse.Send("error", gin.H{"error": "Analysis timed out"})
				} else {
					_ = sse.Send("error", gin.H{"error": "Stream interrupted"})
				}
				return
			}
			marker := false
			for _, ev := range events {
				if err := sse.Send("thinking_log", ev); err != nil {
					slog.Debug("events client disconnected",
						slog.String("session_id", sessionID),
					)
					return
				}
				if ev.PipelineMarker() {
					marker = true
				}
			}
			cursor += len(events)

			// An engine-emitted marker (or a closed feed) means the
			// status transition behind it is already visible.
			if marker || closed {
				flushTerminal(ctx, eng, sse, sessionID)
				return
			}
		}
	}
}

// decodeVerdict pulls the compiled report out of state. The compiler
// stores it as a JSON string; clients get the decoded object.
func decodeVerdict(state workflow.State) (any, bool) {
	raw, ok := state[analysis.FieldReport].(string)
	if !ok || raw == "" {
		return nil, false
	}
	var verdict map[string]any
	if err := json.Unmarshal([]byte(raw), &verdict); err != nil {
		return raw, true
	}
	return verdict, true
}

// flushTerminal emits the verdict and completion marker for a session
// that has paused or finished. Returns false if the session is still
// running and the stream should keep waiting.
func flushTerminal(ctx context.Context, eng *workflow.Engine, sse *sseWriter, sessionID string) bool {
	sess, err := eng.Session(ctx, sessionID)
	if err != nil {
		_ = sse.Send("error", gin.H{"error": "Session not found"})
		return true
	}

	switch sess.Status() {
	case workflow.StatusInterrupted:
		if verdict, ok := decodeVerdict(sess.State()); ok {
			_ = sse.Send("verdict", verdict)
		}
		_ = sse.Send("complete", gin.H{"status": "awaiting_review"})
		return true
	case workflow.StatusCompleted:
		state := sess.State()
		payload := gin.H{"status": "completed"}
		if url, ok := state[analysis.FieldDeckURL].(string); ok && url != "" {
			payload["deck_url"] = url
		}
		_ = sse.Send("complete", payload)
		return true
	case workflow.StatusFailed:
		_ = sse.Send("error", gin.H{"error": sess.Failure()})
		return true
	}
	return false
}
