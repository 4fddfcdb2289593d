// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package analysis

import (
	"encoding/json"
	"fmt"
	"strings"
)

// extractJSON pulls a JSON object out of a model response.
//
// Description:
//
//	Models wrap JSON in markdown fences or surround it with prose.
//	This strips ```json fences (or bare ``` fences), then trims to the
//	outermost brace pair before unmarshaling into out.
//
// Outputs:
//
//	error - Non-nil if no parseable JSON object is present.
func extractJSON(content string, out any) error {
	cleaned := stripFences(content)

	start := strings.Index(cleaned, "{")
	if start == -1 {
		return fmt.Errorf("no JSON object in response")
	}
	end := strings.LastIndex(cleaned, "}")
	if end == -1 || end < start {
		return fmt.Errorf("unterminated JSON object in response")
	}
	cleaned = cleaned[start : end+1]

	if err := json.Unmarshal([]byte(cleaned), out); err != nil {
		return fmt.Errorf("parse response JSON: %w", err)
	}
	return nil
}

// stripFences removes the first markdown code fence, preferring a
// ```json fence when one exists.
func stripFences(content string) string {
	if idx := strings.Index(content, "```json"); idx != -1 {
		rest := content[idx+len("```json"):]
		if end := strings.Index(rest, "```"); end != -1 {
			return strings.TrimSpace(rest[:end])
		}
		return strings.TrimSpace(rest)
	}
	if idx := strings.Index(content, "```"); idx != -1 {
		rest := content[idx+3:]
		if end := strings.Index(rest, "```"); end != -1 {
			return strings.TrimSpace(rest[:end])
		}
		return strings.TrimSpace(rest)
	}
	return strings.TrimSpace(content)
}
