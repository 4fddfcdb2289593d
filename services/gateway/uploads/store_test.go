// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package uploads

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewStoreRejectsEmptyDir(t *testing.T) {
	if _, err := NewStore(""); err == nil {
		t.Fatal("expected error for empty directory")
	}
}

func TestAllowed(t *testing.T) {
	cases := []struct {
		filename string
		want     bool
	}{
		{"rfp.pdf", true},
		{"notes.TXT", true},
		{"summary.md", true},
		{"payload.exe", false},
		{"archive.zip", false},
		{"noextension", false},
	}
	for _, tc := range cases {
		if got := Allowed(tc.filename); got != tc.want {
			t.Errorf("Allowed(%q) = %v, want %v", tc.filename, got, tc.want)
		}
	}
}

func TestSaveAndExists(t *testing.T) {
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}

	if store.Exists("session-1") {
		t.Error("Exists returned true before any save")
	}

	path, err := store.Save("session-1", "rfp.txt", strings.NewReader("solicitation text"))
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading stored file: %v", err)
	}
	if string(data) != "solicitation text" {
		t.Errorf("stored content = %q", data)
	}
	if !store.Exists("session-1") {
		t.Error("Exists returned false after save")
	}
}

func TestSaveStripsDirectoryComponents(t *testing.T) {
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}

	path, err := store.Save("session-1", "../../escape.txt", strings.NewReader("x"))
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if filepath.Base(path) != "escape.txt" {
		t.Errorf("stored name = %s, want escape.txt", filepath.Base(path))
	}
	if !strings.Contains(path, filepath.Join("session-1", "escape.txt")) {
		t.Errorf("path escaped session directory: %s", path)
	}
}

func TestSaveRejectsUnsupportedType(t *testing.T) {
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	if _, err := store.Save("s", "malware.exe", strings.NewReader("x")); err == nil {
		t.Fatal("expected error for unsupported extension")
	}
}

func TestSaveRejectsOversizeUpload(t *testing.T) {
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	big := strings.NewReader(strings.Repeat("a", MaxUploadSize+1))
	if _, err := store.Save("s", "big.txt", big); err == nil {
		t.Fatal("expected error for oversize upload")
	}
	if store.Exists("s") {
		t.Error("oversize upload left a file behind")
	}
}

func TestRemove(t *testing.T) {
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	if _, err := store.Save("session-1", "doc.md", strings.NewReader("x")); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if err := store.Remove("session-1"); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if store.Exists("session-1") {
		t.Error("Exists returned true after Remove")
	}
}
