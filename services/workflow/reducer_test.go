// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package workflow

import (
	"errors"
	"reflect"
	"testing"
)

func TestSchemaValidate(t *testing.T) {
	t.Run("valid schema", func(t *testing.T) {
		s := Schema{
			"parsed_text": ReducerOverwrite,
			"findings":    ReducerDeepMerge,
			"advisories":  ReducerAppend,
		}
		if err := s.Validate(); err != nil {
			t.Fatalf("Validate() = %v, want nil", err)
		}
	})

	t.Run("empty schema rejected", func(t *testing.T) {
		if err := (Schema{}).Validate(); !errors.Is(err, ErrInvalidInput) {
			t.Errorf("Validate() = %v, want ErrInvalidInput", err)
		}
	})

	t.Run("unknown reducer rejected", func(t *testing.T) {
		s := Schema{"findings": Reducer("max")}
		if err := s.Validate(); !errors.Is(err, ErrInvalidInput) {
			t.Errorf("Validate() = %v, want ErrInvalidInput", err)
		}
	})

	t.Run("empty field name rejected", func(t *testing.T) {
		s := Schema{"": ReducerOverwrite}
		if err := s.Validate(); !errors.Is(err, ErrInvalidInput) {
			t.Errorf("Validate() = %v, want ErrInvalidInput", err)
		}
	})
}

func TestReduceOverwrite(t *testing.T) {
	got, err := reduce(ReducerOverwrite, "old", "new")
	if err != nil {
		t.Fatalf("reduce() error = %v", err)
	}
	if got != "new" {
		t.Errorf("reduce() = %v, want new", got)
	}
}

func TestReduceAppend(t *testing.T) {
	t.Run("concatenates in order", func(t *testing.T) {
		got, err := reduce(ReducerAppend, []any{"a", "b"}, []any{"c"})
		if err != nil {
			t.Fatalf("reduce() error = %v", err)
		}
		want := []any{"a", "b", "c"}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("reduce() = %v, want %v", got, want)
		}
	})

	t.Run("nil prior starts a sequence", func(t *testing.T) {
		got, err := reduce(ReducerAppend, nil, []any{"x"})
		if err != nil {
			t.Fatalf("reduce() error = %v", err)
		}
		if !reflect.DeepEqual(got, []any{"x"}) {
			t.Errorf("reduce() = %v, want [x]", got)
		}
	})

	t.Run("non-sequence incoming rejected", func(t *testing.T) {
		if _, err := reduce(ReducerAppend, []any{"a"}, "not a slice"); !errors.Is(err, ErrInvalidInput) {
			t.Errorf("reduce() error = %v, want ErrInvalidInput", err)
		}
	})
}

func TestReduceDeepMerge(t *testing.T) {
	t.Run("disjoint nested keys combine", func(t *testing.T) {
		old := map[string]any{
			"spec": map[string]any{"status": "PASS"},
		}
		incoming := map[string]any{
			"lcca": map[string]any{"status": "FAIL"},
		}
		got, err := reduce(ReducerDeepMerge, old, incoming)
		if err != nil {
			t.Fatalf("reduce() error = %v", err)
		}
		merged := got.(map[string]any)
		if len(merged) != 2 {
			t.Fatalf("merged has %d keys, want 2", len(merged))
		}
		if merged["spec"].(map[string]any)["status"] != "PASS" {
			t.Error("prior nested value lost")
		}
		if merged["lcca"].(map[string]any)["status"] != "FAIL" {
			t.Error("incoming nested value lost")
		}
	})

	t.Run("collision recurses when both sides are mappings", func(t *testing.T) {
		old := map[string]any{
			"spec": map[string]any{"status": "PASS", "confidence": 0.9},
		}
		incoming := map[string]any{
			"spec": map[string]any{"status": "FAIL"},
		}
		got, _ := reduce(ReducerDeepMerge, old, incoming)
		spec := got.(map[string]any)["spec"].(map[string]any)
		if spec["status"] != "FAIL" {
			t.Errorf("status = %v, want FAIL (new wins)", spec["status"])
		}
		if spec["confidence"] != 0.9 {
			t.Errorf("confidence = %v, want 0.9 (non-colliding key kept)", spec["confidence"])
		}
	})

	t.Run("scalar collision is replaced", func(t *testing.T) {
		old := map[string]any{"a": map[string]any{"x": 1}}
		incoming := map[string]any{"a": "scalar"}
		got, _ := reduce(ReducerDeepMerge, old, incoming)
		if got.(map[string]any)["a"] != "scalar" {
			t.Error("scalar collision did not replace prior mapping")
		}
	})

	t.Run("inputs are not mutated", func(t *testing.T) {
		old := map[string]any{"a": map[string]any{"x": 1}}
		incoming := map[string]any{"a": map[string]any{"y": 2}}
		_, _ = reduce(ReducerDeepMerge, old, incoming)
		if len(old["a"].(map[string]any)) != 1 {
			t.Error("prior map was mutated by merge")
		}
		if len(incoming["a"].(map[string]any)) != 1 {
			t.Error("incoming map was mutated by merge")
		}
	})

	t.Run("non-mapping incoming rejected", func(t *testing.T) {
		if _, err := reduce(ReducerDeepMerge, map[string]any{}, 42); !errors.Is(err, ErrInvalidInput) {
			t.Errorf("reduce() error = %v, want ErrInvalidInput", err)
		}
	})
}
