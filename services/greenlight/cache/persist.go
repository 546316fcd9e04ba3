// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package cache

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// cacheSchemaVersion tags the persisted JSON envelope. A version mismatch
// falls back to an empty cache rather than attempting partial decoding;
// this file is an optimization cache, not a source of truth.
const cacheSchemaVersion = 1

// persistedCache is the on-disk JSON envelope.
type persistedCache struct {
	SchemaVersion int       `json:"schema_version"`
	SavedAt       time.Time `json:"saved_at"`
	Entries       []*Entry  `json:"entries"`
	Stats         Stats     `json:"stats"`
}

// SaveToFile writes all currently valid entries, plus statistics, to the
// given path (or the configured PersistPath when path is empty).
func (c *ResultCache) SaveToFile(path string) error {
	if path == "" {
		path = c.opts.PersistPath
	}
	if path == "" {
		return fmt.Errorf("no persist path configured")
	}

	c.mu.Lock()
	entries := make([]*Entry, 0, c.lru.Len())
	for elem := c.lru.Front(); elem != nil; elem = elem.Next() {
		entry := elem.Value.(*Entry)
		if c.now().Sub(entry.CreatedAt) <= c.opts.MaxAge {
			entries = append(entries, entry)
		}
	}
	c.mu.Unlock()

	envelope := persistedCache{
		SchemaVersion: cacheSchemaVersion,
		SavedAt:       c.now(),
		Entries:       entries,
		Stats:         c.Stats(),
	}

	data, err := json.MarshalIndent(envelope, "", "  ")
	if err != nil {
		return fmt.Errorf("serializing cache: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating cache directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing cache file: %w", err)
	}
	return nil
}

// loadFromFile reloads persisted entries, keeping only those still within
// MaxAge. Any failure leaves the cache empty.
func (c *ResultCache) loadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("reading cache file: %w", err)
	}

	var envelope persistedCache
	if err := json.Unmarshal(data, &envelope); err != nil {
		return fmt.Errorf("decoding cache file: %w", err)
	}
	if envelope.SchemaVersion != cacheSchemaVersion {
		return fmt.Errorf("cache schema version %d, want %d", envelope.SchemaVersion, cacheSchemaVersion)
	}

	c.insertEntries(envelope.Entries)
	return nil
}

// loadFromStore reloads entries from the durable backend.
func (c *ResultCache) loadFromStore(s Store) error {
	entries, err := s.LoadAll()
	if err != nil {
		return err
	}
	c.insertEntries(entries)
	return nil
}

// insertEntries inserts reloaded entries oldest-access-first so LRU order
// is reconstructed, skipping stale and over-limit entries.
func (c *ResultCache) insertEntries(entries []*Entry) {
	valid := make([]*Entry, 0, len(entries))
	for _, entry := range entries {
		if entry == nil || entry.Key == "" {
			continue
		}
		if c.now().Sub(entry.CreatedAt) > c.opts.MaxAge {
			continue
		}
		valid = append(valid, entry)
	}
	// Oldest access first: PushFront leaves the most recent at the front.
	for i := 0; i < len(valid); i++ {
		for j := i + 1; j < len(valid); j++ {
			if valid[j].LastAccessed.Before(valid[i].LastAccessed) {
				valid[i], valid[j] = valid[j], valid[i]
			}
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, entry := range valid {
		if _, exists := c.entries[entry.Key]; exists {
			continue
		}
		if c.lru.Len() >= c.opts.MaxEntries || c.sizeBytes+entry.SizeBytes > c.opts.MaxSizeBytes {
			continue
		}
		elem := c.lru.PushFront(entry)
		c.entries[entry.Key] = elem
		c.sizeBytes += entry.SizeBytes

		for _, dep := range entry.Dependencies {
			if c.byDependency[dep] == nil {
				c.byDependency[dep] = make(map[string]struct{})
			}
			c.byDependency[dep][entry.Key] = struct{}{}
		}
		if entry.FeatureID != "" {
			if c.byFeature[entry.FeatureID] == nil {
				c.byFeature[entry.FeatureID] = make(map[string]struct{})
			}
			c.byFeature[entry.FeatureID][entry.Key] = struct{}{}
		}
	}
}
