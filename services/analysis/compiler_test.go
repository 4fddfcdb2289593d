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
	"errors"
	"testing"

	"github.com/bidsight/bidsight/services/workflow"
)

func compilerState() workflow.State {
	return workflow.State{
		FieldFindings: map[string]any{
			"spec_check": map[string]any{"compliant": true, "severity": "low"},
			"lcca":       map[string]any{"tco_considered": true, "severity": "low"},
		},
	}
}

func decodeReport(t *testing.T, res workflow.Result) Verdict {
	t.Helper()
	report, ok := res.Update[FieldReport].(string)
	if !ok || report == "" {
		t.Fatalf("result carries no report: %+v", res.Update)
	}
	var v Verdict
	if err := json.Unmarshal([]byte(report), &v); err != nil {
		t.Fatalf("report is not valid JSON: %v\n%s", err, report)
	}
	return v
}

func TestCompilerWorkerSuccess(t *testing.T) {
	client := &mockLLM{fn: func(prompt string) (string, error) {
		return `{"status": "PASS", "title": "Compliant Procurement", "confidence": 90, "findings": []}`, nil
	}}

	res := NewCompilerWorker(client).Run(context.Background(), compilerState())
	if res.Status != workflow.StatusSuccess {
		t.Fatalf("Status = %v, want success", res.Status)
	}
	v := decodeReport(t, res)
	if v.Status != "PASS" || v.Confidence != 90 {
		t.Errorf("verdict = %+v", v)
	}
}

func TestCompilerWorkerParseFallback(t *testing.T) {
	client := &mockLLM{fn: func(prompt string) (string, error) {
		return "the answer is definitely PASS, trust me", nil
	}}

	res := NewCompilerWorker(client).Run(context.Background(), compilerState())
	if res.Status != workflow.StatusSuccess {
		t.Fatalf("Status = %v, want success with fallback verdict", res.Status)
	}
	v := decodeReport(t, res)
	if v.Status != "FAIL" || v.Title != "Analysis Incomplete" || v.Confidence != 50 {
		t.Errorf("fallback verdict = %+v", v)
	}
	if len(v.Findings) != 1 || v.Findings[0].Severity != "high" {
		t.Errorf("fallback findings = %+v", v.Findings)
	}
}

func TestCompilerWorkerModelFailure(t *testing.T) {
	client := &mockLLM{fn: func(prompt string) (string, error) {
		return "", errors.New("connection refused")
	}}

	res := NewCompilerWorker(client).Run(context.Background(), compilerState())
	if res.Status != workflow.StatusDegraded {
		t.Fatalf("Status = %v, want degraded", res.Status)
	}
	// Even the failure path produces a well-formed verdict.
	v := decodeReport(t, res)
	if v.Status != "FAIL" || v.Confidence != 0 {
		t.Errorf("emergency verdict = %+v", v)
	}
	if v.Findings[0].Category != "System Error" {
		t.Errorf("emergency findings = %+v", v.Findings)
	}
}

func TestCompilerWorkerNoFindings(t *testing.T) {
	client := &mockLLM{fn: func(prompt string) (string, error) {
		t.Error("model called despite empty findings")
		return "", nil
	}}

	res := NewCompilerWorker(client).Run(context.Background(), workflow.State{})
	if res.Status != workflow.StatusDegraded {
		t.Fatalf("Status = %v, want degraded", res.Status)
	}
	v := decodeReport(t, res)
	if v.Status != "FAIL" {
		t.Errorf("verdict = %+v", v)
	}
}
