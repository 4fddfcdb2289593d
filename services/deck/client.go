// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package deck is a client for the external presentation-generation API
// that turns a compiled report into a shareable slide deck.
package deck

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// DefaultTimeout covers slow generation on the provider side.
const DefaultTimeout = 60 * time.Second

// Config holds client configuration.
type Config struct {
	// BaseURL is the API root, e.g. "https://api.gamma.app/api/v1".
	BaseURL string

	// APIKey authenticates requests. Empty means the client is not
	// configured and generation requests fail fast.
	APIKey string

	// Timeout bounds each generation request. Zero uses DefaultTimeout.
	Timeout time.Duration
}

// Client calls the presentation API.
//
// Thread Safety: Safe for concurrent use.
type Client struct {
	cfg  Config
	http *http.Client
}

// NewClient creates a presentation client.
func NewClient(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout},
	}
}

// Configured reports whether an API key is present.
func (c *Client) Configured() bool {
	return c.cfg.APIKey != ""
}

type createRequest struct {
	Text  string `json:"text"`
	Title string `json:"title"`
	Mode  string `json:"mode"`
}

type createResponse struct {
	URL    string `json:"url"`
	WebURL string `json:"webUrl"`
	DocURL string `json:"docUrl"`
	ID     string `json:"id"`
}

// GeneratePresentation creates a slide deck from report content.
//
// Inputs:
//
//	ctx - Context for the request.
//	content - The compiled report (JSON or markdown).
//	title - Human-readable deck title.
//
// Outputs:
//
//	string - URL of the generated presentation.
//	error - Non-nil if unconfigured, the API errors, or the response
//	        carries no recognizable document link.
func (c *Client) GeneratePresentation(ctx context.Context, content, title string) (string, error) {
	if !c.Configured() {
		return "", fmt.Errorf("presentation API key is not configured")
	}

	body, err := json.Marshal(createRequest{
		Text:  content,
		Title: title,
		Mode:  "auto",
	})
	if err != nil {
		return "", fmt.Errorf("encode presentation request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.cfg.BaseURL+"/docs/create-from-text", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build presentation request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("presentation API unreachable: %w", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read presentation response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("presentation API error (%d): %s", resp.StatusCode, payload)
	}

	var result createResponse
	if err := json.Unmarshal(payload, &result); err != nil {
		return "", fmt.Errorf("decode presentation response: %w", err)
	}

	// Field naming varies across provider API versions.
	switch {
	case result.URL != "":
		return result.URL, nil
	case result.WebURL != "":
		return result.WebURL, nil
	case result.DocURL != "":
		return result.DocURL, nil
	case result.ID != "":
		return "https://gamma.app/docs/" + result.ID, nil
	}
	return "", fmt.Errorf("presentation response carries no document link")
}
