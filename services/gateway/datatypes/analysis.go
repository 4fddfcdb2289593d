// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package datatypes holds the gateway's request and response shapes.
package datatypes

// Review actions accepted by the review endpoint.
const (
	ActionGenerateDeck = "generate_deck"
	ActionChatOnly     = "chat_only"
)

// AnalyzeResponse acknowledges an accepted analysis.
type AnalyzeResponse struct {
	SessionID string `json:"session_id"`
	Status    string `json:"status"`
}

// ReviewRequest is the human-in-the-loop decision.
type ReviewRequest struct {
	// Action routes the conditional stage: generate_deck runs the deck
	// generator, chat_only completes without it.
	Action string `json:"action" binding:"required,oneof=generate_deck chat_only"`
}

// ReviewResponse reports the finished session.
type ReviewResponse struct {
	Status  string `json:"status"`
	DeckURL string `json:"deck_url,omitempty"`
}

// ChatRequest is a follow-up question about an analyzed document.
type ChatRequest struct {
	Query string `json:"query" binding:"required,min=1,max=4000"`
}

// ChatResponse carries the model's answer.
type ChatResponse struct {
	Response string `json:"response"`
}

// StatusResponse summarizes a session for polling clients.
type StatusResponse struct {
	SessionID   string            `json:"session_id"`
	Status      string            `json:"status"`
	Position    string            `json:"position"`
	HasVerdict  bool              `json:"has_verdict"`
	HasDeck     bool              `json:"has_deck"`
	EventsCount int               `json:"events_count"`
	Workers     map[string]string `json:"workers"`
	Failure     string            `json:"failure,omitempty"`
}
