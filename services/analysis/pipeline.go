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

	"github.com/bidsight/bidsight/services/llm"
	"github.com/bidsight/bidsight/services/workflow"
)

// TopologyName identifies the procurement analysis pipeline in
// checkpoints and traces.
const TopologyName = "procurement-analysis"

// Schema declares every state field the pipeline writes and how
// concurrent writes to it combine.
func Schema() workflow.Schema {
	return workflow.Schema{
		FieldDocuments:    workflow.ReducerOverwrite,
		FieldSessionID:    workflow.ReducerOverwrite,
		FieldParsedText:   workflow.ReducerOverwrite,
		FieldFindings:     workflow.ReducerDeepMerge,
		FieldAdvisories:   workflow.ReducerAppend,
		FieldReport:       workflow.ReducerOverwrite,
		FieldGenerateDeck: workflow.ReducerOverwrite,
		FieldDeckURL:      workflow.ReducerOverwrite,
	}
}

// Config wires the pipeline's external dependencies.
type Config struct {
	// LLM is the model client shared by the analysts and compiler.
	LLM llm.Client

	// Extractor turns uploaded documents into text. Nil uses the
	// default extension-dispatching extractor.
	Extractor Extractor

	// Deck generates presentations for approved reports.
	Deck PresentationGenerator
}

// NewTopology assembles the procurement analysis pipeline:
// parser → six concurrent analysts → report compiler, with the deck
// generator behind the review decision.
func NewTopology(cfg Config) (*workflow.Topology, error) {
	if cfg.LLM == nil {
		return nil, fmt.Errorf("pipeline requires a model client")
	}
	if cfg.Deck == nil {
		return nil, fmt.Errorf("pipeline requires a presentation generator")
	}
	if cfg.Extractor == nil {
		cfg.Extractor = NewDocumentExtractor()
	}

	return workflow.NewTopology(TopologyName).
		Entry(NewParserWorker(cfg.Extractor)).
		FanOut(NewAnalysts(cfg.LLM)...).
		Join(NewCompilerWorker(cfg.LLM)).
		Decide(FieldGenerateDeck).
		Optional(NewDeckWorker(cfg.Deck)).
		Build()
}

// Chat answers a follow-up question grounded in the parsed document and
// compiled report of a finished (or paused) session.
func Chat(ctx context.Context, client llm.Client, state workflow.State, query string) (string, error) {
	if query == "" {
		return "", fmt.Errorf("query must not be empty")
	}
	parsedText, _ := state[FieldParsedText].(string)
	report, _ := state[FieldReport].(string)
	if parsedText == "" && report == "" {
		return "", fmt.Errorf("session has no analysis context yet")
	}

	prompt := fmt.Sprintf(chatPrompt, parsedText, report, query)
	return client.Generate(ctx, prompt, llm.GenerationParams{})
}
