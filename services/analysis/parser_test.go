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
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bidsight/bidsight/services/workflow"
)

func writeTempDoc(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("write temp doc: %v", err)
	}
	return path
}

func TestParserWorker(t *testing.T) {
	parser := NewParserWorker(NewDocumentExtractor())

	t.Run("extracts and joins documents", func(t *testing.T) {
		a := writeTempDoc(t, "bid.txt", "Supply of 50 laptops")
		b := writeTempDoc(t, "terms.txt", "Delivery within 30 days")

		res := parser.Run(context.Background(), workflow.State{
			FieldDocuments: []any{a, b},
		})
		if res.Status != workflow.StatusSuccess {
			t.Fatalf("Status = %v, want success (err %v)", res.Status, res.Err)
		}
		text := res.Update[FieldParsedText].(string)
		if !strings.Contains(text, "===== Document 1: bid.txt =====") {
			t.Error("missing first document banner")
		}
		if !strings.Contains(text, "Delivery within 30 days") {
			t.Error("missing second document content")
		}
	})

	t.Run("no documents degrades", func(t *testing.T) {
		res := parser.Run(context.Background(), workflow.State{})
		if res.Status != workflow.StatusDegraded {
			t.Fatalf("Status = %v, want degraded", res.Status)
		}
		// The error text still lands in parsed_text so analysts can run.
		text := res.Update[FieldParsedText].(string)
		if !strings.Contains(text, "Error parsing documents") {
			t.Errorf("parsed_text = %q", text)
		}
	})

	t.Run("missing file degrades", func(t *testing.T) {
		res := parser.Run(context.Background(), workflow.State{
			FieldDocuments: []any{"/nonexistent/file.txt"},
		})
		if res.Status != workflow.StatusDegraded {
			t.Fatalf("Status = %v, want degraded", res.Status)
		}
		if res.Err == nil {
			t.Error("degraded result carries no error")
		}
	})

	t.Run("accepts string slices from fresh sessions", func(t *testing.T) {
		a := writeTempDoc(t, "doc.md", "# Terms")
		res := parser.Run(context.Background(), workflow.State{
			FieldDocuments: []string{a},
		})
		if res.Status != workflow.StatusSuccess {
			t.Fatalf("Status = %v, want success", res.Status)
		}
	})
}
