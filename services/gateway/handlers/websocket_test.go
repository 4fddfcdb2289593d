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
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// dialAnalysisSocket upgrades a client connection against the test
// router and arranges teardown.
func dialAnalysisSocket(t *testing.T, env *testEnv, sessionID string) *websocket.Conn {
	t.Helper()

	srv := httptest.NewServer(env.router)
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/analyses/" + sessionID + "/ws"
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { ws.Close() })

	require.NoError(t, ws.SetReadDeadline(time.Now().Add(5*time.Second)))
	return ws
}

func readFrame(t *testing.T, ws *websocket.Conn) map[string]any {
	t.Helper()
	var frame map[string]any
	require.NoError(t, ws.ReadJSON(&frame))
	return frame
}

func TestWebSocketStreamsToBarrier(t *testing.T) {
	env := newTestEnv(t)
	sessionID := startAnalysis(t, env)
	ws := dialAnalysisSocket(t, env, sessionID)

	require.NoError(t, ws.WriteJSON(WSRequest{Action: "subscribe"}))

	var thinking int
	var sawVerdict bool
	for {
		frame := readFrame(t, ws)
		switch frame["action"] {
		case "thinking_log":
			thinking++
		case "verdict":
			sawVerdict = true
		case "complete":
			assert.Equal(t, "awaiting_review", frame["status"])
			assert.Greater(t, thinking, 0, "no progress frames before completion")
			assert.True(t, sawVerdict, "no verdict frame before completion")
			return
		default:
			t.Fatalf("unexpected frame: %v", frame)
		}
	}
}

func TestWebSocketSubscribeWithChatInFlight(t *testing.T) {
	env := newTestEnv(t)
	sessionID := startAnalysis(t, env)
	ws := dialAnalysisSocket(t, env, sessionID)

	// The stream goroutine and the read loop write concurrently here;
	// every frame must still arrive intact.
	require.NoError(t, ws.WriteJSON(WSRequest{Action: "subscribe"}))
	const chats = 5
	for i := 0; i < chats; i++ {
		require.NoError(t, ws.WriteJSON(WSRequest{Action: "chat", Query: "What is the verdict?"}))
	}

	var responses, completes int
	for completes == 0 || responses < chats {
		frame := readFrame(t, ws)
		switch frame["action"] {
		case "chat_response":
			responses++
		case "complete":
			completes++
		case "thinking_log", "verdict":
		default:
			t.Fatalf("unexpected frame: %v", frame)
		}
	}
	assert.Equal(t, chats, responses)
	assert.Equal(t, 1, completes)
}

func TestWebSocketRejectsDuplicateSubscribe(t *testing.T) {
	env := newTestEnv(t)
	sessionID := startAnalysis(t, env)
	ws := dialAnalysisSocket(t, env, sessionID)

	require.NoError(t, ws.WriteJSON(WSRequest{Action: "subscribe"}))
	require.NoError(t, ws.WriteJSON(WSRequest{Action: "subscribe"}))

	// Each subscribe resolves to exactly one outcome: a full replay
	// ending in a "complete" frame, or a rejection if the first stream
	// is still live when the second arrives.
	var resolved int
	for resolved < 2 {
		frame := readFrame(t, ws)
		switch {
		case frame["action"] == "complete":
			resolved++
		case frame["action"] == "error":
			assert.Equal(t, "Already subscribed", frame["error"])
			resolved++
		case frame["action"] == "thinking_log" || frame["action"] == "verdict":
		default:
			t.Fatalf("unexpected frame: %v", frame)
		}
	}
}

func TestWebSocketReviewResolvesBarrier(t *testing.T) {
	env := newTestEnv(t)
	sessionID := startAnalysis(t, env)
	ws := dialAnalysisSocket(t, env, sessionID)

	require.NoError(t, ws.WriteJSON(WSRequest{Action: "review", Choice: "generate_deck"}))

	frame := readFrame(t, ws)
	require.Equal(t, "review_complete", frame["action"])
	assert.Equal(t, "completed", frame["status"])
	assert.Equal(t, "https://gamma.app/docs/test-deck", frame["deck_url"])
}
