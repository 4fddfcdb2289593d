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
	"encoding/json"
	"fmt"

	"github.com/bidsight/bidsight/services/llm"
	"github.com/bidsight/bidsight/services/workflow"
)

// CompilerWorker joins the analyst results into the final verdict
// report. It is the convergence point of the fan-out stage.
type CompilerWorker struct {
	client llm.Client
}

// NewCompilerWorker creates the join worker.
func NewCompilerWorker(client llm.Client) *CompilerWorker {
	return &CompilerWorker{client: client}
}

func (c *CompilerWorker) Name() string  { return "report_compiler" }
func (c *CompilerWorker) Title() string { return "Report Compiler" }

func (c *CompilerWorker) StartMessage() string { return "Compiling final report..." }

// Run synthesizes all findings into a Verdict. Every exit path writes a
// well-formed JSON report: a parse failure yields a reduced-confidence
// fallback, a model failure yields a zero-confidence one.
func (c *CompilerWorker) Run(ctx context.Context, state workflow.State) workflow.Result {
	findings, _ := state[FieldFindings].(map[string]any)
	if len(findings) == 0 {
		err := fmt.Errorf("no analysis results found in state")
		return workflow.Degraded(workflow.Update{
			FieldReport: mustJSON(fallbackVerdict("System Error During Analysis", 0, err)),
		}, err)
	}

	summary, err := json.MarshalIndent(findings, "", "  ")
	if err != nil {
		return workflow.Degraded(workflow.Update{
			FieldReport: mustJSON(fallbackVerdict("System Error During Analysis", 0, err)),
		}, err)
	}

	content, err := c.client.Generate(ctx, fmt.Sprintf(compilerPrompt, summary), llm.GenerationParams{})
	if err != nil {
		return workflow.Degraded(workflow.Update{
			FieldReport: mustJSON(fallbackVerdict("System Error During Analysis", 0, err)),
		}, fmt.Errorf("compile report: %w", err))
	}

	var verdict Verdict
	if perr := extractJSON(content, &verdict); perr != nil || verdict.Status == "" || verdict.Title == "" {
		if perr == nil {
			perr = fmt.Errorf("invalid verdict structure")
		}
		verdict = Verdict{
			Status:     "FAIL",
			Title:      "Analysis Incomplete",
			Confidence: 50,
			Findings: []Finding{
				{
					Category: "System Error",
					Items:    []string{"Failed to compile report: " + perr.Error()},
					Severity: "high",
				},
			},
		}
	}

	return workflow.Success(workflow.Update{
		FieldReport: mustJSON(verdict),
	}, "Report compilation complete")
}
