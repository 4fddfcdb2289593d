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
	"errors"
	"testing"

	"github.com/bidsight/bidsight/services/storage/badgerstore"
)

func testSnapshot(sessionID string) *Snapshot {
	return &Snapshot{
		SessionID: sessionID,
		Topology:  "procurement",
		State: State{
			"parsed_text": "document body",
			"findings":    map[string]any{"spec": map[string]any{"status": "PASS"}},
		},
		Position: PositionReviewBarrier,
		Status:   StatusInterrupted,
		Events: []Event{
			newEvent("Parser", "parsed", PhaseComplete),
		},
	}
}

func TestSnapshotSealAndVerify(t *testing.T) {
	t.Run("sealed snapshot verifies", func(t *testing.T) {
		snap := testSnapshot("s1")
		if err := snap.Seal(); err != nil {
			t.Fatalf("Seal() error = %v", err)
		}
		if snap.Version != CheckpointVersion {
			t.Errorf("Version = %q, want %q", snap.Version, CheckpointVersion)
		}
		if snap.Checksum == "" {
			t.Error("Seal() left checksum empty")
		}
		if err := snap.Verify(); err != nil {
			t.Errorf("Verify() error = %v", err)
		}
	})

	t.Run("tampered content fails verification", func(t *testing.T) {
		snap := testSnapshot("s2")
		if err := snap.Seal(); err != nil {
			t.Fatalf("Seal() error = %v", err)
		}
		snap.State["parsed_text"] = "altered"
		if err := snap.Verify(); !errors.Is(err, ErrCheckpointCorrupt) {
			t.Errorf("Verify() error = %v, want ErrCheckpointCorrupt", err)
		}
	})

	t.Run("version mismatch detected before checksum", func(t *testing.T) {
		snap := testSnapshot("s3")
		if err := snap.Seal(); err != nil {
			t.Fatalf("Seal() error = %v", err)
		}
		snap.Version = "0.0.1"
		if err := snap.Verify(); !errors.Is(err, ErrCheckpointVersionMismatch) {
			t.Errorf("Verify() error = %v, want ErrCheckpointVersionMismatch", err)
		}
	})
}

func TestMemoryCheckpointStore(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryCheckpointStore()

	t.Run("load of missing session", func(t *testing.T) {
		if _, err := store.Load(ctx, "nope"); !errors.Is(err, ErrCheckpointNotFound) {
			t.Errorf("Load() error = %v, want ErrCheckpointNotFound", err)
		}
	})

	t.Run("roundtrip", func(t *testing.T) {
		snap := testSnapshot("s1")
		if err := snap.Seal(); err != nil {
			t.Fatalf("Seal() error = %v", err)
		}
		if err := store.Persist(ctx, snap); err != nil {
			t.Fatalf("Persist() error = %v", err)
		}
		got, err := store.Load(ctx, "s1")
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if got.Position != PositionReviewBarrier || got.Status != StatusInterrupted {
			t.Errorf("loaded position/status = %v/%v", got.Position, got.Status)
		}
		if len(got.Events) != 1 {
			t.Errorf("loaded %d events, want 1", len(got.Events))
		}
	})

	t.Run("persist replaces rather than accumulates", func(t *testing.T) {
		second := testSnapshot("s1")
		second.Position = PositionDone
		second.Status = StatusCompleted
		if err := second.Seal(); err != nil {
			t.Fatalf("Seal() error = %v", err)
		}
		if err := store.Persist(ctx, second); err != nil {
			t.Fatalf("Persist() error = %v", err)
		}
		got, err := store.Load(ctx, "s1")
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if got.Position != PositionDone {
			t.Errorf("Position = %v, want the latest snapshot", got.Position)
		}
	})

	t.Run("delete then load", func(t *testing.T) {
		if err := store.Delete(ctx, "s1"); err != nil {
			t.Fatalf("Delete() error = %v", err)
		}
		if _, err := store.Load(ctx, "s1"); !errors.Is(err, ErrCheckpointNotFound) {
			t.Errorf("Load() after delete = %v, want ErrCheckpointNotFound", err)
		}
	})
}

func TestBadgerCheckpointStore(t *testing.T) {
	ctx := context.Background()
	db, err := badgerstore.OpenInMemory()
	if err != nil {
		t.Fatalf("OpenInMemory() error = %v", err)
	}
	defer db.Close()

	store, err := NewBadgerCheckpointStore(db)
	if err != nil {
		t.Fatalf("NewBadgerCheckpointStore() error = %v", err)
	}

	t.Run("roundtrip with verification", func(t *testing.T) {
		snap := testSnapshot("bd1")
		if err := snap.Seal(); err != nil {
			t.Fatalf("Seal() error = %v", err)
		}
		if err := store.Persist(ctx, snap); err != nil {
			t.Fatalf("Persist() error = %v", err)
		}
		got, err := store.Load(ctx, "bd1")
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if got.SessionID != "bd1" || got.Topology != "procurement" {
			t.Errorf("loaded snapshot = %+v", got)
		}
		status := got.State["findings"].(map[string]any)["spec"].(map[string]any)["status"]
		if status != "PASS" {
			t.Errorf("nested state lost through storage: status = %v", status)
		}
	})

	t.Run("unsealed snapshot rejected", func(t *testing.T) {
		snap := testSnapshot("bd2")
		if err := store.Persist(ctx, snap); !errors.Is(err, ErrInvalidInput) {
			t.Errorf("Persist() error = %v, want ErrInvalidInput", err)
		}
	})

	t.Run("missing session", func(t *testing.T) {
		if _, err := store.Load(ctx, "missing"); !errors.Is(err, ErrCheckpointNotFound) {
			t.Errorf("Load() error = %v, want ErrCheckpointNotFound", err)
		}
	})

	t.Run("delete is idempotent", func(t *testing.T) {
		if err := store.Delete(ctx, "bd1"); err != nil {
			t.Fatalf("Delete() error = %v", err)
		}
		if err := store.Delete(ctx, "bd1"); err != nil {
			t.Errorf("second Delete() error = %v", err)
		}
	})
}
