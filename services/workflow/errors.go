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
	"fmt"
)

// Sentinel errors for the workflow package.
var (
	// ErrNilContext is returned when a nil context is passed.
	ErrNilContext = errors.New("context must not be nil")

	// ErrInvalidInput is returned when input validation fails.
	ErrInvalidInput = errors.New("invalid input")

	// ErrNilWorker is returned when a nil worker is provided to the builder.
	ErrNilWorker = errors.New("worker must not be nil")

	// ErrDuplicateWorker is returned when two workers share a name.
	ErrDuplicateWorker = errors.New("worker with this name already exists")

	// ErrUnknownField is returned when a partial update targets a field
	// that has no declared reducer. This is an engine-level fault: the
	// session is marked failed rather than silently overwriting.
	ErrUnknownField = errors.New("state field has no declared reducer")

	// ErrSessionNotFound is returned when no session exists for an id.
	ErrSessionNotFound = errors.New("session not found")

	// ErrSessionExists is returned when creating a session with an id
	// that is already registered.
	ErrSessionExists = errors.New("session already exists")

	// ErrNotInterrupted is returned when resume is requested for a session
	// that is not paused at the review barrier. The session is unchanged.
	ErrNotInterrupted = errors.New("session is not paused at the review barrier")

	// ErrSessionFailed is returned when an operation targets a session
	// that has already failed at the engine level.
	ErrSessionFailed = errors.New("session has failed")

	// ErrCheckpointNotFound is returned when no checkpoint exists for a session.
	ErrCheckpointNotFound = errors.New("checkpoint not found")

	// ErrCheckpointCorrupt is returned when a checkpoint fails checksum verification.
	ErrCheckpointCorrupt = errors.New("checkpoint data is corrupt")

	// ErrCheckpointVersionMismatch is returned when the checkpoint format
	// version does not match the running engine.
	ErrCheckpointVersionMismatch = errors.New("checkpoint version mismatch")

	// ErrStreamClosed is returned when waiting on a progress log that has
	// already emitted its terminal marker.
	ErrStreamClosed = errors.New("progress stream is closed")
)

// WorkerError wraps an error with the worker that caused it.
type WorkerError struct {
	WorkerName string
	Err        error
}

// Error returns the error message.
func (e *WorkerError) Error() string {
	return fmt.Sprintf("worker %q: %v", e.WorkerName, e.Err)
}

// Unwrap returns the underlying error.
func (e *WorkerError) Unwrap() error {
	return e.Err
}

// NewWorkerError creates a WorkerError.
func NewWorkerError(workerName string, err error) *WorkerError {
	return &WorkerError{
		WorkerName: workerName,
		Err:        err,
	}
}
