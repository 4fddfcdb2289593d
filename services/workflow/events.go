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
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// EventPhase marks whether a progress event records work starting or ending.
type EventPhase string

const (
	// PhaseActive is emitted synchronously by the engine immediately before
	// a worker is invoked, so observers see work start before it finishes.
	PhaseActive EventPhase = "active"

	// PhaseComplete is emitted on the worker's own result path, carrying
	// either its completion message or its error text.
	PhaseComplete EventPhase = "complete"
)

// pipelineSource is the originating name used for engine-emitted events
// that do not belong to a single worker (barrier reached, session done).
const pipelineSource = "Pipeline"

// Event is an immutable progress record. Events are append-only per
// session and never reordered or deleted.
type Event struct {
	// ID uniquely identifies the event.
	ID string `json:"id"`

	// Source is the human-readable name of the originating worker.
	Source string `json:"agent"`

	// Message describes the activity.
	Message string `json:"message"`

	// Timestamp is Unix milliseconds, for direct consumption by UIs.
	Timestamp int64 `json:"timestamp"`

	// Phase is active or complete.
	Phase EventPhase `json:"status"`
}

// PipelineMarker reports whether the event was emitted by the engine
// itself rather than a worker: the review-barrier notice and the
// terminal marker. Observing one guarantees the session's status
// transition that produced it is already visible.
func (e Event) PipelineMarker() bool {
	return e.Source == pipelineSource && e.Phase == PhaseComplete
}

// newEvent builds an event stamped with the current time.
func newEvent(source, message string, phase EventPhase) Event {
	return Event{
		ID:        uuid.NewString(),
		Source:    source,
		Message:   message,
		Timestamp: time.Now().UnixMilli(),
		Phase:     phase,
	}
}

// ProgressLog is the append-only progress feed for one session.
//
// Description:
//
//	The engine is the sole producer; any number of independent consumers
//	read with their own cursor (last index seen). Appended events are never
//	rewritten, so a consumer resuming from its cursor sees no gaps and no
//	duplicates. Close appends a terminal marker event and flips the closed
//	indicator, signalling that no further events will arrive.
//
//	The log has no notion of a stalled consumer: observation timeouts are
//	enforced by the consumer via the context passed to Wait.
//
// Thread Safety:
//
//	Safe for concurrent use.
type ProgressLog struct {
	mu     sync.Mutex
	events []Event
	closed bool

	// change is closed and replaced on every append, waking waiters.
	change chan struct{}
}

// NewProgressLog creates an empty open log.
func NewProgressLog() *ProgressLog {
	return &ProgressLog{
		events: make([]Event, 0, 32),
		change: make(chan struct{}),
	}
}

// Append adds an event and wakes any waiting consumers.
// Appending to a closed log is ignored; the terminal marker is final.
func (l *ProgressLog) Append(ev Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return
	}
	l.events = append(l.events, ev)
	close(l.change)
	l.change = make(chan struct{})
}

// Close appends the terminal marker and marks the log complete.
// Idempotent.
func (l *ProgressLog) Close(message string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return
	}
	l.events = append(l.events, newEvent(pipelineSource, message, PhaseComplete))
	l.closed = true
	close(l.change)
	l.change = make(chan struct{})
}

// Since returns all events after the given cursor plus the closed indicator.
//
// Inputs:
//
//	after - Index of the last event the consumer has seen; 0 reads from
//	        the start. Values beyond the log length return no events.
//
// Outputs:
//
//	[]Event - New events in append order (copy; safe to retain).
//	bool - True if the log is closed and no further events will arrive.
func (l *ProgressLog) Since(after int) ([]Event, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if after < 0 {
		after = 0
	}
	if after >= len(l.events) {
		return nil, l.closed
	}
	out := make([]Event, len(l.events)-after)
	copy(out, l.events[after:])
	return out, l.closed
}

// restore replaces log contents wholesale during session rehydration.
func (l *ProgressLog) restore(events []Event, closed bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = make([]Event, len(events))
	copy(l.events, events)
	l.closed = closed
	close(l.change)
	l.change = make(chan struct{})
}

// Len returns the number of appended events.
func (l *ProgressLog) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.events)
}

// Wait blocks until events beyond the cursor exist, the log closes, or the
// context is done. The caller owns the timeout via ctx; an expired context
// surfaces as ctx.Err() with no effect on the underlying session.
func (l *ProgressLog) Wait(ctx context.Context, after int) ([]Event, bool, error) {
	if ctx == nil {
		return nil, false, ErrNilContext
	}
	for {
		l.mu.Lock()
		if after < len(l.events) || l.closed {
			closed := l.closed
			var out []Event
			if after < len(l.events) {
				if after < 0 {
					after = 0
				}
				out = make([]Event, len(l.events)-after)
				copy(out, l.events[after:])
			}
			l.mu.Unlock()
			return out, closed, nil
		}
		ch := l.change
		l.mu.Unlock()

		select {
		case <-ch:
		case <-ctx.Done():
			return nil, false, ctx.Err()
		}
	}
}
