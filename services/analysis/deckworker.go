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

	"github.com/bidsight/bidsight/services/workflow"
)

// PresentationGenerator turns a compiled report into a shareable deck.
// Implemented by deck.Client.
type PresentationGenerator interface {
	GeneratePresentation(ctx context.Context, content, title string) (string, error)
	Configured() bool
}

// DeckWorker is the conditional post-review worker: it runs only when
// the reviewer approves deck generation.
type DeckWorker struct {
	generator PresentationGenerator
}

// NewDeckWorker creates the conditional worker.
func NewDeckWorker(generator PresentationGenerator) *DeckWorker {
	return &DeckWorker{generator: generator}
}

func (d *DeckWorker) Name() string  { return "deck_generator" }
func (d *DeckWorker) Title() string { return "Deck Generator" }

func (d *DeckWorker) StartMessage() string { return "Generating presentation..." }

// Run sends the compiled report to the presentation API. Failures
// degrade with an empty deck link; the session still completes.
func (d *DeckWorker) Run(ctx context.Context, state workflow.State) workflow.Result {
	report, _ := state[FieldReport].(string)
	if report == "" {
		err := fmt.Errorf("no compiled report to present")
		return workflow.Degraded(workflow.Update{FieldDeckURL: ""}, err)
	}

	sessionID, _ := state[FieldSessionID].(string)
	title := "Procurement Analysis Report"
	if len(sessionID) >= 8 {
		title = fmt.Sprintf("Procurement Analysis Report - %s", sessionID[:8])
	}

	url, err := d.generator.GeneratePresentation(ctx, report, title)
	if err != nil {
		return workflow.Degraded(workflow.Update{FieldDeckURL: ""}, err)
	}

	return workflow.Success(workflow.Update{FieldDeckURL: url},
		"Presentation ready: "+url)
}
