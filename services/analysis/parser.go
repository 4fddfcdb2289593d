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
	"fmt"
	"path/filepath"
	"strings"

	"github.com/bidsight/bidsight/services/workflow"
)

// ParserWorker is the pipeline entry: it extracts text from every
// uploaded document and publishes the concatenated result for the
// analysts.
type ParserWorker struct {
	extractor Extractor
}

// NewParserWorker creates the entry worker.
func NewParserWorker(extractor Extractor) *ParserWorker {
	return &ParserWorker{extractor: extractor}
}

func (p *ParserWorker) Name() string  { return "parser" }
func (p *ParserWorker) Title() string { return "Document Parser" }

func (p *ParserWorker) StartMessage() string { return "Extracting text from documents..." }

// Run extracts each document and joins them with per-document banners.
// Extraction failures degrade: the error text becomes the parsed text so
// downstream analysts still run and surface the problem in their
// findings.
func (p *ParserWorker) Run(ctx context.Context, state workflow.State) workflow.Result {
	paths := documentPaths(state)
	if len(paths) == 0 {
		err := fmt.Errorf("no documents found for parsing")
		return workflow.Degraded(workflow.Update{
			FieldParsedText: "Error parsing documents: " + err.Error(),
		}, err)
	}

	sections := make([]string, 0, len(paths))
	for i, path := range paths {
		if err := ctx.Err(); err != nil {
			return workflow.Degraded(workflow.Update{
				FieldParsedText: "Error parsing documents: " + err.Error(),
			}, err)
		}
		text, err := p.extractor.Extract(path)
		if err != nil {
			return workflow.Degraded(workflow.Update{
				FieldParsedText: "Error parsing documents: " + err.Error(),
			}, err)
		}
		sections = append(sections,
			fmt.Sprintf("===== Document %d: %s =====\n%s", i+1, filepath.Base(path), text))
	}

	return workflow.Success(workflow.Update{
		FieldParsedText: strings.Join(sections, "\n\n"),
	}, "Document text extraction complete")
}

// documentPaths reads the uploaded paths from state, tolerating both
// []any (post-checkpoint) and []string (fresh session) encodings.
func documentPaths(state workflow.State) []string {
	switch v := state[FieldDocuments].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}
