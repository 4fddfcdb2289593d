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
	"sync"
	"time"
)

// SessionStatus is the lifecycle state of one pipeline execution.
type SessionStatus string

const (
	// StatusRunning indicates the engine is driving the graph forward.
	StatusRunning SessionStatus = "running"

	// StatusInterrupted indicates the session is paused at the review
	// barrier, awaiting an external decision.
	StatusInterrupted SessionStatus = "interrupted"

	// StatusCompleted indicates the session reached its terminal state.
	StatusCompleted SessionStatus = "completed"

	// StatusFailed is reserved for engine-level faults (state corruption,
	// checkpoint I/O, topology violations) — distinct from worker-level
	// soft failures, which never fail the session.
	StatusFailed SessionStatus = "failed"
)

// Position identifies where in the graph a checkpoint was taken.
type Position string

const (
	// PositionStart is the position before the entry worker has run.
	PositionStart Position = "start"

	// PositionReviewBarrier is the sole designated interrupt point,
	// reached after the join worker completes.
	PositionReviewBarrier Position = "review_barrier"

	// PositionDone is the terminal position.
	PositionDone Position = "done"
)

// WorkerState is the scheduling state of one worker within a session.
type WorkerState string

const (
	// WorkerPending indicates dependencies are not yet satisfied.
	WorkerPending WorkerState = "pending"

	// WorkerReady indicates all predecessor edges are satisfied.
	WorkerReady WorkerState = "ready"

	// WorkerRunning indicates the worker is executing.
	WorkerRunning WorkerState = "running"

	// WorkerDone indicates the worker finished (success or soft failure).
	WorkerDone WorkerState = "done"
)

// Session is one execution instance of the pipeline graph.
//
// Thread Safety:
//
//	Safe for concurrent use. Status, position and worker states are
//	guarded by an internal mutex; state lives in the StateStore and the
//	progress feed in the ProgressLog, each with their own locking.
type Session struct {
	// ID is the opaque session identifier.
	ID string

	// CreatedAt is when the session was created.
	CreatedAt time.Time

	store *StateStore
	log   *ProgressLog

	mu       sync.RWMutex
	status   SessionStatus
	position Position
	workers  map[string]WorkerState
	failure  string
}

// newSession builds a running session at the start position.
func newSession(id string, store *StateStore) *Session {
	return &Session{
		ID:        id,
		CreatedAt: time.Now(),
		store:     store,
		log:       NewProgressLog(),
		status:    StatusRunning,
		position:  PositionStart,
		workers:   make(map[string]WorkerState),
	}
}

// Status returns the session lifecycle status.
func (s *Session) Status() SessionStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// Position returns the checkpoint position.
func (s *Session) Position() Position {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.position
}

// Failure returns the engine-level failure message, if any.
func (s *Session) Failure() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.failure
}

// setStatus transitions the lifecycle status and position together.
func (s *Session) setStatus(status SessionStatus, pos Position) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = status
	s.position = pos
}

// setFailed marks the session failed with a reason.
func (s *Session) setFailed(reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = StatusFailed
	s.failure = reason
}

// WorkerState returns the scheduling state of a worker.
func (s *Session) WorkerState(name string) WorkerState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.workers[name]
	if !ok {
		return WorkerPending
	}
	return st
}

// setWorkerState records a worker's scheduling state.
func (s *Session) setWorkerState(name string, st WorkerState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.workers[name] = st
}

// markReady flips a set of workers to ready under one lock, so
// siblings become dispatchable at the same instant.
func (s *Session) markReady(names ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, n := range names {
		s.workers[n] = WorkerReady
	}
}

// WorkerStates returns a copy of all worker states.
func (s *Session) WorkerStates() map[string]WorkerState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]WorkerState, len(s.workers))
	for k, v := range s.workers {
		out[k] = v
	}
	return out
}

// State returns an immutable snapshot of session state.
func (s *Session) State() State {
	return s.store.Snapshot()
}

// Log returns the session's progress feed.
func (s *Session) Log() *ProgressLog {
	return s.log
}

// SessionStore is the session registry, keyed by id.
//
// Description:
//
//	An explicit store with create/read/evict lifecycle, injected into the
//	engine rather than held as ambient process-wide state. Eviction is a
//	retention concern only; engine correctness never requires it.
//
// Thread Safety:
//
//	Safe for concurrent use.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewSessionStore creates an empty registry.
func NewSessionStore() *SessionStore {
	return &SessionStore{
		sessions: make(map[string]*Session),
	}
}

// Put registers a session. Fails if the id is taken.
func (r *SessionStore) Put(s *Session) error {
	if s == nil || s.ID == "" {
		return ErrInvalidInput
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.sessions[s.ID]; exists {
		return ErrSessionExists
	}
	r.sessions[s.ID] = s
	return nil
}

// Get returns the session for an id.
func (r *SessionStore) Get(id string) (*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// Evict removes a session from the registry.
func (r *SessionStore) Evict(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, id)
}

// Len returns the number of registered sessions.
func (r *SessionStore) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
