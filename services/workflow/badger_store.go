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
	"encoding/json"
	"errors"
	"fmt"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/bidsight/bidsight/services/storage/badgerstore"
)

// checkpointPrefix namespaces checkpoint keys within the shared database.
const checkpointPrefix = "checkpoint:"

// BadgerCheckpointStore persists checkpoints in an embedded BadgerDB,
// surviving process restarts.
//
// Description:
//
//	One key per session, overwritten on every persist so exactly one
//	checkpoint exists per session. Loads verify the embedded checksum
//	and format version before returning.
//
// Thread Safety:
//
//	Safe for concurrent use.
type BadgerCheckpointStore struct {
	db *badgerstore.DB
}

// NewBadgerCheckpointStore creates a checkpoint store over an open database.
func NewBadgerCheckpointStore(db *badgerstore.DB) (*BadgerCheckpointStore, error) {
	if db == nil {
		return nil, fmt.Errorf("%w: db must not be nil", ErrInvalidInput)
	}
	return &BadgerCheckpointStore{db: db}, nil
}

// Persist writes a sealed snapshot, replacing any prior checkpoint for
// the session.
func (b *BadgerCheckpointStore) Persist(ctx context.Context, snap *Snapshot) error {
	if ctx == nil {
		return ErrNilContext
	}
	if snap == nil || snap.SessionID == "" {
		return fmt.Errorf("%w: snapshot must have a session id", ErrInvalidInput)
	}
	if snap.Checksum == "" {
		return fmt.Errorf("%w: snapshot must be sealed before persisting", ErrInvalidInput)
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal checkpoint: %w", err)
	}
	return b.db.WithTxn(ctx, func(txn *badger.Txn) error {
		return txn.Set([]byte(checkpointPrefix+snap.SessionID), data)
	})
}

// Load reads and verifies the checkpoint for a session.
func (b *BadgerCheckpointStore) Load(ctx context.Context, sessionID string) (*Snapshot, error) {
	if ctx == nil {
		return nil, ErrNilContext
	}
	var data []byte
	err := b.db.WithReadTxn(ctx, func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(checkpointPrefix + sessionID))
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, fmt.Errorf("%w: session %s", ErrCheckpointNotFound, sessionID)
	}
	if err != nil {
		return nil, fmt.Errorf("read checkpoint: %w", err)
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCheckpointCorrupt, err)
	}
	if err := snap.Verify(); err != nil {
		return nil, err
	}
	return &snap, nil
}

// Delete removes a session's checkpoint. Missing checkpoints are not an
// error.
func (b *BadgerCheckpointStore) Delete(ctx context.Context, sessionID string) error {
	if ctx == nil {
		return ErrNilContext
	}
	return b.db.WithTxn(ctx, func(txn *badger.Txn) error {
		return txn.Delete([]byte(checkpointPrefix + sessionID))
	})
}

var _ CheckpointStore = (*BadgerCheckpointStore)(nil)
