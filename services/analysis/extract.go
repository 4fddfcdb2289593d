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
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
)

// Extractor turns an uploaded document into plain text.
type Extractor interface {
	Extract(path string) (string, error)
}

// DocumentExtractor dispatches on file extension: PDFs go through a PDF
// text extractor, everything else is read as plain text.
type DocumentExtractor struct{}

// NewDocumentExtractor creates the default extractor.
func NewDocumentExtractor() *DocumentExtractor {
	return &DocumentExtractor{}
}

// Extract returns the text content of a document.
//
// Inputs:
//
//	path - Path to an uploaded file. Must exist.
//
// Outputs:
//
//	string - Extracted text with per-page markers for PDFs.
//	error - Non-nil if the file is missing or unparseable.
func (e *DocumentExtractor) Extract(path string) (string, error) {
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("document not found: %s", path)
	}

	if strings.EqualFold(filepath.Ext(path), ".pdf") {
		return extractPDF(path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read document %s: %w", path, err)
	}
	return string(data), nil
}

// extractPDF extracts text page by page, marking page boundaries the
// way the report UI expects.
func extractPDF(path string) (string, error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("open PDF %s: %w", path, err)
	}
	defer f.Close()

	var sb strings.Builder
	total := reader.NumPage()
	for i := 1; i <= total; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("extract page %d of %s: %w", i, path, err)
		}
		fmt.Fprintf(&sb, "--- Page %d ---\n%s\n\n", i, text)
	}
	return strings.TrimRight(sb.String(), "\n"), nil
}
