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
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/bidsight/bidsight/services/analysis"
	"github.com/bidsight/bidsight/services/gateway/observability"
	"github.com/bidsight/bidsight/services/llm"
	"github.com/bidsight/bidsight/services/workflow"
)

// WSRequest routes client messages over the analysis socket.
type WSRequest struct {
	Action string `json:"action"`          // "subscribe", "review", "chat"
	After  int    `json:"after,omitempty"` // event cursor for subscribe
	Choice string `json:"choice,omitempty"`
	Query  string `json:"query,omitempty"`
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
	ReadBufferSize:  64 * 1024,
	WriteBufferSize: 64 * 1024,
}

// socketWriter serializes frame writes. The read loop and the stream
// goroutine both produce frames, and gorilla/websocket allows only one
// writer on a connection at a time.
type socketWriter struct {
	mu sync.Mutex
	ws *websocket.Conn
}

func (w *socketWriter) Send(v any) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	err := w.ws.WriteJSON(v)
	if err != nil {
		slog.Warn("Failed to write WebSocket JSON", "error", err)
	}
	return err
}

// HandleAnalysisWebSocket serves the interactive analysis socket.
//
// Description:
//
//	One socket per session. A "subscribe" message streams the progress
//	feed as "thinking_log" frames (with a "verdict" frame at the review
//	barrier), "review" resolves the barrier, and "chat" answers
//	questions against the session's documents and report. At most one
//	stream runs per socket; a second subscribe while one is active is
//	rejected with an error frame.
func HandleAnalysisWebSocket(eng *workflow.Engine, client llm.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		sessionID := c.Param("id")
		if _, err := eng.Session(c.Request.Context(), sessionID); err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "Session not found"})
			return
		}

		ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			slog.Error("failed to upgrade the websocket", "error", err)
			return
		}
		defer ws.Close()

		if observability.DefaultMetrics != nil {
			g := observability.DefaultMetrics.StreamClientsActive.WithLabelValues("websocket")
			g.Inc()
			defer g.Dec()
		}
		slog.Info("analysis websocket connected", slog.String("session_id", sessionID))

		ctx, cancel := context.WithCancel(c.Request.Context())
		defer cancel()

		out := &socketWriter{ws: ws}
		var streaming atomic.Bool

		for {
			var req WSRequest
			if err := ws.ReadJSON(&req); err != nil {
				slog.Info("analysis websocket disconnected",
					slog.String("session_id", sessionID),
				)
				return
			}

			switch req.Action {
			case "subscribe":
				if !streaming.CompareAndSwap(false, true) {
					if out.Send(gin.H{"action": "error", "error": "Already subscribed"}) != nil {
						return
					}
					continue
				}
				go func(after int) {
					defer streaming.Store(false)
					streamToSocket(ctx, eng, out, sessionID, after)
				}(req.After)

			case "review":
				decision := req.Choice == "generate_deck"
				state, err := eng.Resume(ctx, sessionID, decision)
				if err != nil {
					if out.Send(gin.H{"action": "error", "error": reviewErrorMessage(err)}) != nil {
						return
					}
					continue
				}
				payload := gin.H{"action": "review_complete", "status": "completed"}
				if url, ok := state[analysis.FieldDeckURL].(string); ok && url != "" {
					payload["deck_url"] = url
				}
				if out.Send(payload) != nil {
					return
				}

			case "chat":
				sess, err := eng.Session(ctx, sessionID)
				if err != nil {
					if out.Send(gin.H{"action": "error", "error": "Session not found"}) != nil {
						return
					}
					continue
				}
				answer, err := analysis.Chat(ctx, client, sess.State(), req.Query)
				if err != nil {
					if out.Send(gin.H{"action": "error", "error": err.Error()}) != nil {
						return
					}
					continue
				}
				if out.Send(gin.H{"action": "chat_response", "response": answer}) != nil {
					return
				}

			default:
				if out.Send(gin.H{"action": "error", "error": "Unknown action"}) != nil {
					return
				}
			}
		}
	}
}

// streamToSocket forwards progress events until the feed closes or the
// socket goes away. Write failures end the stream; the read loop owns
// the connection lifecycle.
func streamToSocket(ctx context.Context, eng *workflow.Engine, out *socketWriter, sessionID string, after int) {
	cursor := after
	if events, _, err := eng.Events(ctx, sessionID, cursor); err == nil && len(events) == 0 {
		if socketTerminal(ctx, eng, out, sessionID) {
			return
		}
	}

	for {
		events, closed, err := eng.WaitEvents(ctx, sessionID, cursor)
		if err != nil {
			return
		}
		marker := false
		for _, ev := range events {
			if out.Send(gin.H{"action": "thinking_log", "event": ev}) != nil {
				return
			}
			if ev.PipelineMarker() {
				marker = true
			}
		}
		cursor += len(events)

		if marker || closed {
			socketTerminal(ctx, eng, out, sessionID)
			return
		}
	}
}

// socketTerminal mirrors the SSE terminal frames over the socket.
// Returns false if the session is still running.
func socketTerminal(ctx context.Context, eng *workflow.Engine, out *socketWriter, sessionID string) bool {
	sess, err := eng.Session(ctx, sessionID)
	if err != nil {
		return true
	}
	switch sess.Status() {
	case workflow.StatusInterrupted:
		if verdict, ok := decodeVerdict(sess.State()); ok {
			_ = out.Send(gin.H{"action": "verdict", "report": verdict})
		}
		_ = out.Send(gin.H{"action": "complete", "status": "awaiting_review"})
		return true
	case workflow.StatusCompleted:
		payload := gin.H{"action": "complete", "status": "completed"}
		if url, ok := sess.State()[analysis.FieldDeckURL].(string); ok && url != "" {
			payload["deck_url"] = url
		}
		_ = out.Send(payload)
		return true
	case workflow.StatusFailed:
		_ = out.Send(gin.H{"action": "error", "error": sess.Failure()})
		return true
	}
	return false
}

func reviewErrorMessage(err error) string {
	switch {
	case errors.Is(err, workflow.ErrNotInterrupted):
		return "Session is not awaiting review"
	case errors.Is(err, workflow.ErrSessionNotFound),
		errors.Is(err, workflow.ErrCheckpointNotFound):
		return "Session not found"
	default:
		return "Failed to resume session"
	}
}
