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
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

// CheckpointVersion is the current checkpoint format version (semver).
const CheckpointVersion = "1.0.0"

// Snapshot is a durable capture of a session: full state plus execution
// position, addressable by session id. Each persist replaces the prior
// snapshot for that session; no history is retained.
type Snapshot struct {
	// SessionID identifies the session.
	SessionID string `json:"session_id"`

	// Topology is the name of the topology being executed.
	Topology string `json:"topology"`

	// State is the full session state at capture time.
	State State `json:"state"`

	// Position is where execution is paused (e.g. the review barrier).
	Position Position `json:"position"`

	// Status is the session lifecycle status at capture time.
	Status SessionStatus `json:"status"`

	// Events is the progress feed so far, carried so a consumer can
	// resume its cursor across a process restart.
	Events []Event `json:"events"`

	// LogClosed records whether the progress feed had emitted its
	// terminal marker.
	LogClosed bool `json:"log_closed"`

	// SavedAt is when the snapshot was persisted.
	SavedAt time.Time `json:"saved_at"`

	// Version is the checkpoint format version.
	Version string `json:"version"`

	// Checksum is the SHA256 over the snapshot content, for integrity
	// verification on load.
	Checksum string `json:"checksum"`
}

// computeChecksum hashes the snapshot content, excluding the checksum
// field itself.
func (s *Snapshot) computeChecksum() (string, error) {
	shadow := *s
	shadow.Checksum = ""
	data, err := json.Marshal(&shadow)
	if err != nil {
		return "", fmt.Errorf("marshal for checksum: %w", err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// Seal stamps the snapshot with version, save time and checksum.
func (s *Snapshot) Seal() error {
	s.Version = CheckpointVersion
	s.SavedAt = time.Now().UTC()
	checksum, err := s.computeChecksum()
	if err != nil {
		return err
	}
	s.Checksum = checksum
	return nil
}

// Verify recomputes the checksum and checks version compatibility.
func (s *Snapshot) Verify() error {
	if s.Version != CheckpointVersion {
		return fmt.Errorf("%w: got %s, want %s", ErrCheckpointVersionMismatch, s.Version, CheckpointVersion)
	}
	expected, err := s.computeChecksum()
	if err != nil {
		return err
	}
	if s.Checksum != expected {
		return ErrCheckpointCorrupt
	}
	return nil
}

// CheckpointStore persists session snapshots keyed by session id.
//
// Description:
//
//	The engine does not assume any particular storage medium. Persist
//	replaces the prior checkpoint for the session; Load returns
//	ErrCheckpointNotFound when none exists.
type CheckpointStore interface {
	// Persist durably stores the snapshot, replacing any prior one.
	Persist(ctx context.Context, snap *Snapshot) error

	// Load returns the last persisted snapshot for a session.
	Load(ctx context.Context, sessionID string) (*Snapshot, error)

	// Delete removes a session's checkpoint. Removing a missing
	// checkpoint is not an error.
	Delete(ctx context.Context, sessionID string) error
}

// MemoryCheckpointStore keeps checkpoints in process memory.
//
// Suitable for tests and single-run CLI invocations; pair the engine
// with the Badger-backed store for durability across restarts.
type MemoryCheckpointStore struct {
	mu    sync.RWMutex
	snaps map[string][]byte
}

// NewMemoryCheckpointStore creates an empty in-memory store.
func NewMemoryCheckpointStore() *MemoryCheckpointStore {
	return &MemoryCheckpointStore{
		snaps: make(map[string][]byte),
	}
}

// Persist stores the snapshot, replacing any prior one for the session.
func (m *MemoryCheckpointStore) Persist(ctx context.Context, snap *Snapshot) error {
	if ctx == nil {
		return ErrNilContext
	}
	if snap == nil || snap.SessionID == "" {
		return fmt.Errorf("%w: snapshot must carry a session id", ErrInvalidInput)
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal checkpoint: %w", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snaps[snap.SessionID] = data
	return nil
}

// Load returns the last persisted snapshot, verifying its integrity.
func (m *MemoryCheckpointStore) Load(ctx context.Context, sessionID string) (*Snapshot, error) {
	if ctx == nil {
		return nil, ErrNilContext
	}
	m.mu.RLock()
	data, ok := m.snaps[sessionID]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrCheckpointNotFound
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("unmarshal checkpoint: %w", err)
	}
	if err := snap.Verify(); err != nil {
		return nil, err
	}
	return &snap, nil
}

// Delete removes the session's checkpoint.
func (m *MemoryCheckpointStore) Delete(ctx context.Context, sessionID string) error {
	if ctx == nil {
		return ErrNilContext
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.snaps, sessionID)
	return nil
}

// Ensure the memory store satisfies the interface.
var _ CheckpointStore = (*MemoryCheckpointStore)(nil)
