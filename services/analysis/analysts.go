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

// analystSpec describes one concurrent compliance analyst: its identity
// on the progress feed, the findings key it owns, its prompt, and the
// fallback result shapes for the two failure classes.
type analystSpec struct {
	name    string
	title   string
	start   string
	done    string
	key     string
	prompt  string
	// parseFallback is the result when the model answered but the JSON
	// could not be parsed. Moderate severity; the pipeline proceeds.
	parseFallback func() map[string]any
	// errorFallback is the result when the model call itself failed.
	// High severity; surfaces as a degraded outcome.
	errorFallback func(err error) map[string]any
}

func analystSpecs() []analystSpec {
	return []analystSpec{
		{
			name:   "spec_validator",
			title:  "Specification Validator",
			start:  "Checking specification compliance...",
			done:   "Specification analysis complete",
			key:    "spec_check",
			prompt: specValidatorPrompt,
			parseFallback: func() map[string]any {
				return map[string]any{
					"compliant":       false,
					"issues":          []any{"Failed to parse analysis results"},
					"severity":        "medium",
					"recommendations": []any{},
				}
			},
			errorFallback: func(err error) map[string]any {
				return map[string]any{
					"compliant":       false,
					"issues":          []any{"Analysis error: " + err.Error()},
					"severity":        "high",
					"recommendations": []any{},
				}
			},
		},
		{
			name:   "lcca_analyzer",
			title:  "LCCA Analyzer",
			start:  "Analyzing lifecycle costs...",
			done:   "Lifecycle cost analysis complete",
			key:    "lcca",
			prompt: lccaPrompt,
			parseFallback: func() map[string]any {
				return map[string]any{
					"tco_considered":         false,
					"cost_factors_identified": []any{},
					"missing_considerations": []any{"Failed to parse analysis"},
					"severity":               "medium",
					"recommendations":        []any{},
				}
			},
			errorFallback: func(err error) map[string]any {
				return map[string]any{
					"tco_considered":         false,
					"cost_factors_identified": []any{},
					"missing_considerations": []any{"Analysis error: " + err.Error()},
					"severity":               "high",
					"recommendations":        []any{},
				}
			},
		},
		{
			name:   "market_researcher",
			title:  "Market Researcher",
			start:  "Researching market prices...",
			done:   "Market analysis complete",
			key:    "market",
			prompt: marketPrompt,
			parseFallback: func() map[string]any {
				return map[string]any{
					"budget_reasonable":     true,
					"market_price_range":    "Unable to determine",
					"supplier_availability": "unknown",
					"issues":                []any{"Failed to parse analysis"},
					"severity":              "low",
					"recommendations":       []any{},
				}
			},
			errorFallback: func(err error) map[string]any {
				return map[string]any{
					"budget_reasonable":     true,
					"market_price_range":    "Analysis unavailable",
					"supplier_availability": "unknown",
					"issues":                []any{"Analysis error: " + err.Error()},
					"severity":              "high",
					"recommendations":       []any{},
				}
			},
		},
		{
			name:   "sustainability_analyst",
			title:  "Sustainability Analyst",
			start:  "Evaluating sustainability criteria...",
			done:   "Sustainability evaluation complete",
			key:    "sustainability",
			prompt: sustainabilityPrompt,
			parseFallback: func() map[string]any {
				return map[string]any{
					"green_criteria_included":      false,
					"environmental_considerations": []any{},
					"missing_criteria":             []any{"Failed to parse analysis"},
					"severity":                     "low",
					"recommendations":              []any{},
				}
			},
			errorFallback: func(err error) map[string]any {
				return map[string]any{
					"green_criteria_included":      false,
					"environmental_considerations": []any{},
					"missing_criteria":             []any{"Analysis error: " + err.Error()},
					"severity":                     "high",
					"recommendations":              []any{},
				}
			},
		},
		{
			name:   "domestic_preference_checker",
			title:  "Domestic Preference Checker",
			start:  "Verifying domestic preference compliance...",
			done:   "Domestic preference analysis complete",
			key:    "domestic_preference",
			prompt: domesticPreferencePrompt,
			parseFallback: func() map[string]any {
				return map[string]any{
					"domestic_preference_applied": false,
					"local_content_considered":    false,
					"compliance_issues":           []any{"Failed to parse analysis"},
					"opportunities":               []any{},
					"severity":                    "low",
					"recommendations":             []any{},
				}
			},
			errorFallback: func(err error) map[string]any {
				return map[string]any{
					"domestic_preference_applied": false,
					"local_content_considered":    false,
					"compliance_issues":           []any{"Analysis error: " + err.Error()},
					"opportunities":               []any{},
					"severity":                    "high",
					"recommendations":             []any{},
				}
			},
		},
		{
			name:   "modality_advisor",
			title:  "Modality Advisor",
			start:  "Determining procurement modality...",
			done:   "Modality analysis complete",
			key:    "modality",
			prompt: modalityPrompt,
			parseFallback: func() map[string]any {
				return map[string]any{
					"recommended_modality":        "Competitive Bidding",
					"justification":               "Default procurement mode",
					"procurement_characteristics": []any{},
					"compliance_requirements":     []any{"Failed to parse analysis"},
					"severity":                    "low",
					"recommendations":             []any{},
				}
			},
			errorFallback: func(err error) map[string]any {
				return map[string]any{
					"recommended_modality":        "Competitive Bidding",
					"justification":               "Analysis error occurred",
					"procurement_characteristics": []any{},
					"compliance_requirements":     []any{"Analysis error: " + err.Error()},
					"severity":                    "high",
					"recommendations":             []any{},
				}
			},
		},
	}
}

// AnalystWorker is one concurrent compliance analyst. All six share
// this implementation; only the spec differs.
type AnalystWorker struct {
	spec   analystSpec
	client llm.Client
}

// NewAnalysts builds the full fan-out set over a shared model client.
func NewAnalysts(client llm.Client) []workflow.Worker {
	specs := analystSpecs()
	workers := make([]workflow.Worker, 0, len(specs))
	for _, spec := range specs {
		workers = append(workers, &AnalystWorker{spec: spec, client: client})
	}
	return workers
}

func (a *AnalystWorker) Name() string  { return a.spec.name }
func (a *AnalystWorker) Title() string { return a.spec.title }

func (a *AnalystWorker) StartMessage() string { return a.spec.start }

// Run prompts the model against the parsed document and merges the
// analyst's findings. A model failure degrades to a high-severity
// fallback result; an unparseable answer is replaced with a moderate
// fallback and still counts as success.
func (a *AnalystWorker) Run(ctx context.Context, state workflow.State) workflow.Result {
	text, _ := state[FieldParsedText].(string)
	prompt := fmt.Sprintf(a.spec.prompt, text)

	content, err := a.client.Generate(ctx, prompt, llm.GenerationParams{})
	if err != nil {
		return workflow.Degraded(
			a.update(a.spec.errorFallback(err)),
			fmt.Errorf("%s: %w", a.spec.title, err),
		)
	}

	var result map[string]any
	if perr := extractJSON(content, &result); perr != nil {
		result = a.spec.parseFallback()
	}

	return workflow.Success(a.update(result), a.spec.done)
}

// update packs an analyst result into the shared-state shape: findings
// under the analyst's key plus its recommendations on the advisory
// feed.
func (a *AnalystWorker) update(result map[string]any) workflow.Update {
	u := workflow.Update{
		FieldFindings: map[string]any{a.spec.key: result},
	}
	if recs := recommendations(result); len(recs) > 0 {
		u[FieldAdvisories] = recs
	}
	return u
}

// recommendations pulls the recommendation strings out of a result.
func recommendations(result map[string]any) []any {
	raw, ok := result["recommendations"].([]any)
	if !ok {
		return nil
	}
	out := make([]any, 0, len(raw))
	for _, r := range raw {
		if s, ok := r.(string); ok && s != "" {
			out = append(out, s)
		}
	}
	return out
}
