// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package analysis implements the procurement document analysis pipeline:
// a document parser, six concurrent compliance analysts, a report
// compiler that produces the final verdict, and a conditional
// presentation generator. The workers plug into the workflow engine and
// communicate exclusively through shared session state.
package analysis

import "encoding/json"

// State field names shared by the pipeline workers.
const (
	// FieldDocuments holds the uploaded document paths ([]any of string).
	FieldDocuments = "documents"

	// FieldParsedText holds the concatenated extracted text.
	FieldParsedText = "parsed_text"

	// FieldFindings holds per-analyst results keyed by analyst
	// (deep-merged across the concurrent siblings).
	FieldFindings = "findings"

	// FieldAdvisories holds recommendation strings accumulated across
	// analysts in completion order.
	FieldAdvisories = "advisories"

	// FieldReport holds the compiled verdict as a JSON string.
	FieldReport = "report"

	// FieldGenerateDeck holds the reviewer's decision.
	FieldGenerateDeck = "generate_deck"

	// FieldDeckURL holds the generated presentation link.
	FieldDeckURL = "deck_url"

	// FieldSessionID carries the session id into state so workers can
	// title external artifacts.
	FieldSessionID = "session_id"
)

// Finding is one categorized group of verdict items.
type Finding struct {
	Category string   `json:"category"`
	Items    []string `json:"items"`
	Severity string   `json:"severity"`
}

// Verdict is the compiled review outcome consumed by the UI.
type Verdict struct {
	// Status is PASS or FAIL.
	Status string `json:"status"`

	// Title is a short verdict headline.
	Title string `json:"title"`

	// Confidence is 0-100.
	Confidence int `json:"confidence"`

	Findings []Finding `json:"findings"`
}

// fallbackVerdict builds the guaranteed well-formed verdict used when
// compilation itself fails. Downstream consumers always receive a
// parseable report.
func fallbackVerdict(title string, confidence int, cause error) Verdict {
	return Verdict{
		Status:     "FAIL",
		Title:      title,
		Confidence: confidence,
		Findings: []Finding{
			{
				Category: "System Error",
				Items:    []string{"Critical error: " + cause.Error()},
				Severity: "high",
			},
		},
	}
}

// mustJSON marshals a value that cannot fail (plain structs and maps of
// scalars). Used for fallback payloads only.
func mustJSON(v any) string {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return `{"status":"FAIL","title":"Encoding Error","confidence":0,"findings":[]}`
	}
	return string(data)
}
