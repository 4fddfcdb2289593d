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
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bidsight/bidsight/services/analysis"
	"github.com/bidsight/bidsight/services/gateway/datatypes"
	"github.com/bidsight/bidsight/services/gateway/observability"
	"github.com/bidsight/bidsight/services/gateway/uploads"
	"github.com/bidsight/bidsight/services/llm"
	"github.com/bidsight/bidsight/services/workflow"
)

func init() {
	gin.SetMode(gin.TestMode)
	observability.InitMetrics()
}

// mockLLM returns a canned verdict for the report compiler and a plain
// findings object for everything else.
type mockLLM struct{}

func (mockLLM) Generate(_ context.Context, prompt string, _ llm.GenerationParams) (string, error) {
	if strings.Contains(prompt, "compiling a pre-procurement review report") {
		return `{"status":"PASS","title":"Ready for Procurement","confidence":90,"findings":[]}`, nil
	}
	return `{"compliant":true,"issues":[],"severity":"low","recommendations":["Proceed"]}`, nil
}

type mockDeck struct{}

func (mockDeck) GeneratePresentation(_ context.Context, _, _ string) (string, error) {
	return "https://gamma.app/docs/test-deck", nil
}

func (mockDeck) Configured() bool { return true }

type mockExtractor struct{}

func (mockExtractor) Extract(path string) (string, error) {
	return "Specification for " + path, nil
}

type testEnv struct {
	router *gin.Engine
	engine *workflow.Engine
	store  *uploads.Store
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	topo, err := analysis.NewTopology(analysis.Config{
		LLM:       mockLLM{},
		Extractor: mockExtractor{},
		Deck:      mockDeck{},
	})
	require.NoError(t, err)

	eng, err := workflow.NewEngine(topo, analysis.Schema())
	require.NoError(t, err)

	store, err := uploads.NewStore(t.TempDir())
	require.NoError(t, err)

	r := gin.New()
	r.GET("/health", HandleHealth())
	r.POST("/v1/analyses", HandleAnalyze(eng, store))
	r.GET("/v1/analyses/:id", HandleStatus(eng))
	r.GET("/v1/analyses/:id/events", HandleEvents(eng))
	r.POST("/v1/analyses/:id/review", HandleReview(eng))
	r.POST("/v1/analyses/:id/chat", HandleChat(eng, mockLLM{}))
	r.GET("/v1/analyses/:id/ws", HandleAnalysisWebSocket(eng, mockLLM{}))
	return &testEnv{router: r, engine: eng, store: store}
}

// startAnalysis uploads one document and waits until the session pauses
// at the review barrier.
func startAnalysis(t *testing.T, env *testEnv) string {
	t.Helper()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("files", "rfp.txt")
	require.NoError(t, err)
	_, err = fw.Write([]byte("Supply of pumps, budget 2M"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/v1/analyses", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())

	var resp datatypes.AnalyzeResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.SessionID)

	require.Eventually(t, func() bool {
		events, _, err := env.engine.Events(context.Background(), resp.SessionID, 0)
		if err != nil || len(events) == 0 {
			return false
		}
		return events[len(events)-1].PipelineMarker()
	}, 5*time.Second, 10*time.Millisecond, "pipeline never reached the review barrier")

	return resp.SessionID
}

func TestHandleHealth(t *testing.T) {
	env := newTestEnv(t)
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestHandleAnalyzeRejectsEmptyForm(t *testing.T) {
	env := newTestEnv(t)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/v1/analyses", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleAnalyzeRejectsUnsupportedExtension(t *testing.T) {
	env := newTestEnv(t)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("files", "malware.exe")
	require.NoError(t, err)
	_, err = fw.Write([]byte("nope"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/v1/analyses", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleStatusAtBarrier(t *testing.T) {
	env := newTestEnv(t)
	sessionID := startAnalysis(t, env)

	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/analyses/"+sessionID, nil))
	require.Equal(t, http.StatusOK, w.Code)

	var resp datatypes.StatusResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, sessionID, resp.SessionID)
	assert.Equal(t, string(workflow.StatusInterrupted), resp.Status)
	assert.Equal(t, string(workflow.PositionReviewBarrier), resp.Position)
	assert.True(t, resp.HasVerdict)
	assert.False(t, resp.HasDeck)
	assert.Greater(t, resp.EventsCount, 0)
	assert.Equal(t, string(workflow.WorkerDone), resp.Workers["report_compiler"])
}

func TestHandleStatusNotFound(t *testing.T) {
	env := newTestEnv(t)
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/analyses/ghost", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandleReviewGenerateDeck(t *testing.T) {
	env := newTestEnv(t)
	sessionID := startAnalysis(t, env)

	body := strings.NewReader(`{"action":"generate_deck"}`)
	req := httptest.NewRequest(http.MethodPost, "/v1/analyses/"+sessionID+"/review", body)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp datatypes.ReviewResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "completed", resp.Status)
	assert.Equal(t, "https://gamma.app/docs/test-deck", resp.DeckURL)
}

func TestHandleReviewChatOnly(t *testing.T) {
	env := newTestEnv(t)
	sessionID := startAnalysis(t, env)

	body := strings.NewReader(`{"action":"chat_only"}`)
	req := httptest.NewRequest(http.MethodPost, "/v1/analyses/"+sessionID+"/review", body)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var resp datatypes.ReviewResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Empty(t, resp.DeckURL)

	sess, err := env.engine.Session(context.Background(), sessionID)
	require.NoError(t, err)
	assert.Equal(t, workflow.StatusCompleted, sess.Status())
}

func TestHandleReviewValidatesAction(t *testing.T) {
	env := newTestEnv(t)
	sessionID := startAnalysis(t, env)

	body := strings.NewReader(`{"action":"launch_missiles"}`)
	req := httptest.NewRequest(http.MethodPost, "/v1/analyses/"+sessionID+"/review", body)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleReviewConflictWhenNotPaused(t *testing.T) {
	env := newTestEnv(t)
	sessionID := startAnalysis(t, env)

	first := httptest.NewRequest(http.MethodPost, "/v1/analyses/"+sessionID+"/review",
		strings.NewReader(`{"action":"chat_only"}`))
	first.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, first)
	require.Equal(t, http.StatusOK, w.Code)

	second := httptest.NewRequest(http.MethodPost, "/v1/analyses/"+sessionID+"/review",
		strings.NewReader(`{"action":"chat_only"}`))
	second.Header.Set("Content-Type", "application/json")
	w = httptest.NewRecorder()
	env.router.ServeHTTP(w, second)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestHandleReviewNotFound(t *testing.T) {
	env := newTestEnv(t)
	req := httptest.NewRequest(http.MethodPost, "/v1/analyses/ghost/review",
		strings.NewReader(`{"action":"chat_only"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandleChat(t *testing.T) {
	env := newTestEnv(t)
	sessionID := startAnalysis(t, env)

	req := httptest.NewRequest(http.MethodPost, "/v1/analyses/"+sessionID+"/chat",
		strings.NewReader(`{"query":"What is the verdict?"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp datatypes.ChatResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.Response)
}

func TestHandleChatRequiresQuery(t *testing.T) {
	env := newTestEnv(t)
	sessionID := startAnalysis(t, env)

	req := httptest.NewRequest(http.MethodPost, "/v1/analyses/"+sessionID+"/chat",
		strings.NewReader(`{"query":""}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleEventsStreamsToBarrier(t *testing.T) {
	env := newTestEnv(t)
	sessionID := startAnalysis(t, env)

	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet,
		"/v1/analyses/"+sessionID+"/events", nil))

	body := w.Body.String()
	assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))
	assert.Contains(t, body, "event: thinking_log")
	assert.Contains(t, body, "event: verdict")
	assert.Contains(t, body, `"status":"awaiting_review"`)
	assert.Contains(t, body, "Analysis complete, awaiting review")

	// Every analyst plus parser and compiler shows up in the feed.
	for _, name := range []string{
		"Document Parser", "Specification Validator", "LCCA Analyzer",
		"Market Researcher", "Sustainability Analyst",
		"Domestic Preference Checker", "Modality Advisor", "Report Compiler",
	} {
		assert.Contains(t, body, name, "missing progress from %s", name)
	}
}

func TestHandleEventsCursorSkipsReplay(t *testing.T) {
	env := newTestEnv(t)
	sessionID := startAnalysis(t, env)

	events, _, err := env.engine.Events(context.Background(), sessionID, 0)
	require.NoError(t, err)
	after := len(events)

	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet,
		fmt.Sprintf("/v1/analyses/%s/events?after=%d", sessionID, after), nil))

	body := w.Body.String()
	assert.NotContains(t, body, "event: thinking_log")
	assert.Contains(t, body, "event: complete")
}

func TestHandleEventsNotFound(t *testing.T) {
	env := newTestEnv(t)
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet,
		"/v1/analyses/ghost/events", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}
