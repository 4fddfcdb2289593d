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

import "fmt"

// Reducer declares how concurrent partial updates to a state field combine.
type Reducer string

const (
	// ReducerOverwrite replaces the prior value (last writer wins).
	// Must only be declared for fields written by a single node at a time.
	ReducerOverwrite Reducer = "overwrite"

	// ReducerAppend concatenates ordered sequences. Elements arrive in the
	// completion order of the contributing nodes; merges are serialized per
	// session so the sequence itself is never interleaved partially.
	ReducerAppend Reducer = "append"

	// ReducerDeepMerge recursively merges two mappings. On key collision the
	// new value wins, recursing only when both sides are mappings. Sibling
	// nodes writing disjoint nested keys therefore combine commutatively.
	ReducerDeepMerge Reducer = "deep-merge"
)

// valid reports whether r is one of the declared reducers.
func (r Reducer) valid() bool {
	switch r {
	case ReducerOverwrite, ReducerAppend, ReducerDeepMerge:
		return true
	}
	return false
}

// Schema maps every state field the graph may write to its reducer.
//
// Description:
//
//	The schema is the reducer registry: it is checked at engine construction
//	so that no field can silently default to a lossy overwrite. A merge that
//	touches an undeclared field is rejected with ErrUnknownField.
type Schema map[string]Reducer

// Validate checks that every declared reducer is known.
func (s Schema) Validate() error {
	if len(s) == 0 {
		return fmt.Errorf("%w: schema must declare at least one field", ErrInvalidInput)
	}
	for field, r := range s {
		if field == "" {
			return fmt.Errorf("%w: schema field name must not be empty", ErrInvalidInput)
		}
		if !r.valid() {
			return fmt.Errorf("%w: field %q has unknown reducer %q", ErrInvalidInput, field, r)
		}
	}
	return nil
}

// reduce combines the prior and incoming value for one field.
// Called with the session state lock held.
func reduce(r Reducer, old, incoming any) (any, error) {
	switch r {
	case ReducerOverwrite:
		return incoming, nil

	case ReducerAppend:
		return appendSequences(old, incoming)

	case ReducerDeepMerge:
		oldMap, _ := old.(map[string]any)
		newMap, ok := incoming.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: deep-merge field requires map[string]any, got %T", ErrInvalidInput, incoming)
		}
		return deepMerge(oldMap, newMap), nil

	default:
		return nil, fmt.Errorf("%w: unknown reducer %q", ErrInvalidInput, r)
	}
}

// appendSequences concatenates two []any values, tolerating a nil prior.
func appendSequences(old, incoming any) (any, error) {
	var prior []any
	if old != nil {
		var ok bool
		prior, ok = old.([]any)
		if !ok {
			return nil, fmt.Errorf("%w: append field requires []any, got %T", ErrInvalidInput, old)
		}
	}
	added, ok := incoming.([]any)
	if !ok {
		return nil, fmt.Errorf("%w: append field requires []any, got %T", ErrInvalidInput, incoming)
	}

	merged := make([]any, 0, len(prior)+len(added))
	merged = append(merged, prior...)
	merged = append(merged, added...)
	return merged, nil
}

// deepMerge recursively merges b into a copy of a. On collision b wins
// unless both sides are mappings, in which case the merge recurses.
// Neither input is mutated.
func deepMerge(a, b map[string]any) map[string]any {
	out := make(map[string]any, len(a)+len(b))
	for k, v := range a {
		out[k] = v
	}
	for k, v := range b {
		if prior, ok := out[k]; ok {
			priorMap, priorIsMap := prior.(map[string]any)
			newMap, newIsMap := v.(map[string]any)
			if priorIsMap && newIsMap {
				out[k] = deepMerge(priorMap, newMap)
				continue
			}
		}
		out[k] = v
	}
	return out
}
