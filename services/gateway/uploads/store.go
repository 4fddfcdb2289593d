// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package uploads stores uploaded procurement documents on disk, one
// directory per analysis session.
package uploads

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// MaxUploadSize bounds a single uploaded document.
const MaxUploadSize = 25 << 20 // 25 MiB

// allowedExtensions lists the document types the parser understands.
var allowedExtensions = map[string]bool{
	".pdf": true,
	".txt": true,
	".md":  true,
}

// Store writes uploads under a base directory.
//
// Thread Safety: Safe for concurrent use; sessions never share files.
type Store struct {
	dir string
}

// NewStore creates the upload store, creating the base directory if
// needed.
func NewStore(dir string) (*Store, error) {
	if dir == "" {
		return nil, fmt.Errorf("upload directory must not be empty")
	}
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("create upload directory %s: %w", dir, err)
	}
	return &Store{dir: dir}, nil
}

// Allowed reports whether a filename has a supported extension.
func Allowed(filename string) bool {
	return allowedExtensions[strings.ToLower(filepath.Ext(filename))]
}

// Save writes one uploaded document for a session.
//
// Inputs:
//
//	sessionID - The owning session.
//	filename - Client-supplied name; only its base name is kept.
//	r - Upload content, capped at MaxUploadSize.
//
// Outputs:
//
//	string - Absolute path of the stored file.
//	error - Non-nil on unsupported type, oversize upload, or I/O failure.
func (s *Store) Save(sessionID, filename string, r io.Reader) (string, error) {
	if !Allowed(filename) {
		return "", fmt.Errorf("unsupported document type: %s", filepath.Ext(filename))
	}

	sessionDir := filepath.Join(s.dir, sessionID)
	if err := os.MkdirAll(sessionDir, 0750); err != nil {
		return "", fmt.Errorf("create session directory: %w", err)
	}

	path := filepath.Join(sessionDir, filepath.Base(filename))
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create upload file: %w", err)
	}
	defer f.Close()

	n, err := io.Copy(f, io.LimitReader(r, MaxUploadSize+1))
	if err != nil {
		os.Remove(path)
		return "", fmt.Errorf("write upload: %w", err)
	}
	if n > MaxUploadSize {
		os.Remove(path)
		return "", fmt.Errorf("document exceeds %d byte limit", MaxUploadSize)
	}
	return path, nil
}

// Exists reports whether a session has stored documents.
func (s *Store) Exists(sessionID string) bool {
	entries, err := os.ReadDir(filepath.Join(s.dir, sessionID))
	return err == nil && len(entries) > 0
}

// Remove deletes a session's documents.
func (s *Store) Remove(sessionID string) error {
	return os.RemoveAll(filepath.Join(s.dir, sessionID))
}
