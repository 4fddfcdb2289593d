// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/bidsight/bidsight/services/analysis"
	"github.com/bidsight/bidsight/services/deck"
	"github.com/bidsight/bidsight/services/llm"
	"github.com/bidsight/bidsight/services/workflow"
)

// runAnalyzeCommand runs the full pipeline against local files and
// prints the compiled verdict. The review barrier is resolved from the
// --deck flag instead of an interactive prompt.
func runAnalyzeCommand(cmd *cobra.Command, args []string) error {
	for _, path := range args {
		if _, err := os.Stat(path); err != nil {
			return fmt.Errorf("cannot read document %s: %w", path, err)
		}
	}

	client, err := llm.NewOpenAIClient()
	if err != nil {
		return fmt.Errorf("model client: %w", err)
	}
	deckClient := deck.NewClient(deck.Config{
		BaseURL: getEnvString("GAMMA_API_BASE_URL", "https://public-api.gamma.app/v1"),
		APIKey:  os.Getenv("GAMMA_API_KEY"),
	})

	topo, err := analysis.NewTopology(analysis.Config{LLM: client, Deck: deckClient})
	if err != nil {
		return err
	}
	eng, err := workflow.NewEngine(topo, analysis.Schema())
	if err != nil {
		return err
	}

	docs := make([]any, len(args))
	for i, path := range args {
		docs[i] = path
	}
	ctx := context.Background()
	sess, err := eng.CreateSession("", workflow.State{
		analysis.FieldDocuments: docs,
	})
	if err != nil {
		return err
	}

	if analyzeVerbose {
		go printProgress(ctx, eng, sess.ID)
	}

	if err := eng.Run(ctx, sess.ID); err != nil {
		return fmt.Errorf("analysis failed: %w", err)
	}

	state, err := eng.Resume(ctx, sess.ID, analyzeDeck && deckClient.Configured())
	if err != nil {
		return fmt.Errorf("finish analysis: %w", err)
	}

	if report, ok := state[analysis.FieldReport].(string); ok {
		fmt.Println(prettyJSON(report))
	}
	if url, ok := state[analysis.FieldDeckURL].(string); ok && url != "" {
		fmt.Printf("\nPresentation: %s\n", url)
	}
	return nil
}

// printProgress tails the session feed to stderr until it closes.
func printProgress(ctx context.Context, eng *workflow.Engine, sessionID string) {
	cursor := 0
	for {
		events, closed, err := eng.WaitEvents(ctx, sessionID, cursor)
		if err != nil {
			return
		}
		for _, ev := range events {
			fmt.Fprintf(os.Stderr, "[%s] %s\n", ev.Source, ev.Message)
		}
		cursor += len(events)
		if closed {
			return
		}
	}
}

func prettyJSON(raw string) string {
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return raw
	}
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return raw
	}
	return string(out)
}
