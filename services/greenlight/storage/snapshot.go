// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package storage

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// snapshotSchemaVersion tags the snapshot envelope. Snapshots are resume
// optimizations, not sources of truth: a version mismatch loads nothing.
const snapshotSchemaVersion = 1

// snapshot is the on-disk envelope for the full file set and metrics.
type snapshot struct {
	SchemaVersion int                  `json:"schema_version"`
	SavedAt       time.Time            `json:"saved_at"`
	Files         map[string]string    `json:"files"`
	Meta          map[string]*fileMeta `json:"meta"`
	Metrics       Metrics              `json:"metrics"`
}

// SaveSnapshot serializes the full file set, metadata, and metrics.
func (m *Manager) SaveSnapshot(path string) error {
	env := snapshot{
		SchemaVersion: snapshotSchemaVersion,
		SavedAt:       time.Now(),
		Files:         m.GetAll(),
		Metrics:       m.Metrics(),
	}

	m.mu.Lock()
	env.Meta = make(map[string]*fileMeta, len(m.meta))
	for name, meta := range m.meta {
		copied := *meta
		env.Meta[name] = &copied
	}
	m.mu.Unlock()

	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("serializing snapshot: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating snapshot directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing snapshot: %w", err)
	}
	return nil
}

// LoadSnapshot restores a previously saved file set.
//
// Outputs:
//
//	bool - False on any load failure (missing, corrupt, or wrong version);
//	    failures are logged, never propagated.
func (m *Manager) LoadSnapshot(path string) bool {
	data, err := os.ReadFile(path)
	if err != nil {
		m.logger.Warn("Snapshot load failed",
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
		return false
	}

	var env snapshot
	if err := json.Unmarshal(data, &env); err != nil {
		m.logger.Warn("Snapshot decode failed",
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
		return false
	}
	if env.SchemaVersion != snapshotSchemaVersion {
		m.logger.Warn("Snapshot schema version mismatch",
			slog.Int("got", env.SchemaVersion),
			slog.Int("want", snapshotSchemaVersion),
		)
		return false
	}

	if err := m.Update(env.Files); err != nil {
		m.logger.Warn("Snapshot restore failed",
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
		return false
	}
	return true
}
