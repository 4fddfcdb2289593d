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

import "context"

// ResultStatus tags a worker result as a full success or a degraded
// (soft-failed) outcome. Degraded results still carry a valid partial
// update; the tag is explicit at the type level rather than relying on
// catching errors after the fact.
type ResultStatus string

const (
	// StatusSuccess marks a fully successful result.
	StatusSuccess ResultStatus = "success"

	// StatusDegraded marks a soft failure: the worker could not complete
	// its analysis but produced a degraded-but-valid update. Degraded
	// results never abort sibling workers or the session.
	StatusDegraded ResultStatus = "degraded"
)

// Result is the tagged outcome of one worker invocation.
type Result struct {
	// Status is success or degraded.
	Status ResultStatus

	// Update is the partial state update to merge. May be empty.
	Update Update

	// Message is the human-readable completion message for the progress
	// feed. For degraded results the error text is used when empty.
	Message string

	// Err carries the underlying cause for degraded results. Nil on success.
	Err error
}

// Success builds a successful result.
func Success(update Update, message string) Result {
	return Result{
		Status:  StatusSuccess,
		Update:  update,
		Message: message,
	}
}

// Degraded builds a soft-failure result. The update should be a valid
// fallback value for the worker's fields (e.g. a finding marked
// severity high with the error text).
func Degraded(update Update, err error) Result {
	msg := "error"
	if err != nil {
		msg = "Error: " + err.Error()
	}
	return Result{
		Status:  StatusDegraded,
		Update:  update,
		Message: msg,
		Err:     err,
	}
}

// Worker is a named unit of work in the pipeline graph.
//
// Description:
//
//	Workers never mutate state directly: they read an immutable snapshot
//	and declare intentions as a partial update, which the state store
//	reduces in. The engine treats all workers uniformly through this
//	interface, polymorphic over identity only for naming and logging.
//
// Thread Safety:
//
//	Implementations must be safe for concurrent use; siblings run in
//	parallel against separate state snapshots.
type Worker interface {
	// Name returns the unique identifier (e.g. "spec_validator").
	Name() string

	// Title returns the human-readable name used in progress events.
	Title() string

	// StartMessage returns the message for the synthetic active event
	// emitted immediately before invocation.
	StartMessage() string

	// Run executes the work against a state snapshot and returns a
	// tagged result. Implementations absorb their own failures into
	// Degraded results; a panic is additionally recovered by the engine.
	Run(ctx context.Context, state State) Result
}

// FuncWorker wraps a function as a Worker for simple cases and tests.
type FuncWorker struct {
	WorkerName  string
	WorkerTitle string
	StartMsg    string
	Fn          func(ctx context.Context, state State) Result
}

// NewFuncWorker creates a worker from a function.
func NewFuncWorker(name, title, startMsg string, fn func(context.Context, State) Result) *FuncWorker {
	return &FuncWorker{
		WorkerName:  name,
		WorkerTitle: title,
		StartMsg:    startMsg,
		Fn:          fn,
	}
}

// Name returns the worker's unique identifier.
func (w *FuncWorker) Name() string { return w.WorkerName }

// Title returns the display name, defaulting to the identifier.
func (w *FuncWorker) Title() string {
	if w.WorkerTitle == "" {
		return w.WorkerName
	}
	return w.WorkerTitle
}

// StartMessage returns the active-event message.
func (w *FuncWorker) StartMessage() string {
	if w.StartMsg == "" {
		return "Working..."
	}
	return w.StartMsg
}

// Run invokes the wrapped function.
func (w *FuncWorker) Run(ctx context.Context, state State) Result {
	if w.Fn == nil {
		return Degraded(nil, ErrInvalidInput)
	}
	return w.Fn(ctx, state)
}
