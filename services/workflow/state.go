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
	"fmt"
	"sync"
)

// State is the shared session state: named fields to values.
type State map[string]any

// Update is a partial state update produced by a worker. Each field is
// folded into session state by that field's declared reducer.
type Update map[string]any

// Clone returns a deep copy of the state. Maps and slices are copied
// recursively; scalar values are shared (they are immutable in practice
// since workers only ever see snapshots).
func (s State) Clone() State {
	out := make(State, len(s))
	for k, v := range s {
		out[k] = deepCopyValue(v)
	}
	return out
}

func deepCopyValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = deepCopyValue(e)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = deepCopyValue(e)
		}
		return out
	default:
		return v
	}
}

// StateStore holds the mutable shared state for one session.
//
// Description:
//
//	The store is the only mutable resource shared between concurrent
//	siblings. Merge applies every field of a partial update under a single
//	critical section, so each reducer reads the prior value and writes the
//	reduced value atomically with respect to other merges. No merge is ever
//	dropped or partially interleaved.
//
// Thread Safety:
//
//	Safe for concurrent use.
type StateStore struct {
	mu     sync.Mutex
	schema Schema
	state  State
}

// newStateStore creates a store with the given schema and initial state.
// The initial state is validated against the schema and deep-copied.
func newStateStore(schema Schema, initial State) (*StateStore, error) {
	for field := range initial {
		if _, ok := schema[field]; !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownField, field)
		}
	}
	return &StateStore{
		schema: schema,
		state:  initial.Clone(),
	}, nil
}

// Merge folds a partial update into state using each field's reducer.
//
// Description:
//
//	The whole update applies inside one critical section. A field without a
//	declared reducer (ErrUnknownField) or a value its reducer cannot accept
//	rejects the update before any field is written, so state is never left
//	half-updated by a rejected merge.
//
// Inputs:
//
//	update - Partial update. A nil or empty update is a no-op.
//
// Outputs:
//
//	error - ErrUnknownField or a reducer type error.
func (st *StateStore) Merge(update Update) error {
	if len(update) == 0 {
		return nil
	}

	st.mu.Lock()
	defer st.mu.Unlock()

	// Validate all fields before touching state.
	for field := range update {
		if _, ok := st.schema[field]; !ok {
			return fmt.Errorf("%w: %q", ErrUnknownField, field)
		}
	}

	// Reduce into a scratch map first; commit only when every field
	// reduced cleanly.
	staged := make(map[string]any, len(update))
	for field, incoming := range update {
		reduced, err := reduce(st.schema[field], st.state[field], deepCopyValue(incoming))
		if err != nil {
			return fmt.Errorf("merge field %q: %w", field, err)
		}
		staged[field] = reduced
	}
	for field, reduced := range staged {
		st.state[field] = reduced
	}
	return nil
}

// Snapshot returns an immutable deep copy of current state.
func (st *StateStore) Snapshot() State {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.state.Clone()
}

// Replace overwrites state wholesale. Used only during resume, when an
// external actor supplies a full state (e.g. rehydrated from a checkpoint).
func (st *StateStore) Replace(full State) error {
	for field := range full {
		if _, ok := st.schema[field]; !ok {
			return fmt.Errorf("%w: %q", ErrUnknownField, field)
		}
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	st.state = full.Clone()
	return nil
}

// Get returns the value of a single field from a locked read.
func (st *StateStore) Get(field string) (any, bool) {
	st.mu.Lock()
	defer st.mu.Unlock()
	v, ok := st.state[field]
	if !ok {
		return nil, false
	}
	return deepCopyValue(v), true
}
