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
	"time"

	"github.com/AleutianAI/GreenlightFOSS/services/greenlight/feature"
)

// =============================================================================
// ENTRY
// =============================================================================

// Entry is one cached test result with the bookkeeping needed for LRU
// eviction and dependency invalidation.
type Entry struct {
	// Key is the deterministic hash identifying this entry.
	Key string `json:"key"`

	// Result is the cached test outcome.
	Result *feature.TestResult `json:"result"`

	// CodeHash is the content hash of the implementation code.
	CodeHash string `json:"code_hash"`

	// TestFilesHash is the content hash of the sorted test-file list.
	TestFilesHash string `json:"test_files_hash"`

	// Dependencies are the files this entry's code references. A change to
	// any of them invalidates the entry.
	Dependencies []string `json:"dependencies,omitempty"`

	// FeatureID is the owning feature, when the caller scoped the entry.
	FeatureID string `json:"feature_id,omitempty"`

	// CreatedAt is the insertion time; entries older than MaxAge are stale.
	CreatedAt time.Time `json:"created_at"`

	// HitCount counts cache hits on this entry.
	HitCount int64 `json:"hit_count"`

	// LastAccessed is updated on every hit.
	LastAccessed time.Time `json:"last_accessed"`

	// SizeBytes is the serialized size used for the byte-ceiling check.
	SizeBytes int64 `json:"size_bytes"`
}

// =============================================================================
// OPTIONS
// =============================================================================

// Default cache limits.
const (
	DefaultMaxEntries   = 1000
	DefaultMaxSizeBytes = 100 * 1024 * 1024
	DefaultMaxAge       = 24 * time.Hour
)

// Options configures a ResultCache.
type Options struct {
	// MaxEntries caps the number of cached entries.
	MaxEntries int

	// MaxSizeBytes caps the total serialized size of all entries.
	MaxSizeBytes int64

	// MaxAge is how long an entry stays valid after insertion.
	MaxAge time.Duration

	// PersistPath, when set, is the JSON file the cache loads on
	// construction and saves to on request.
	PersistPath string

	// Store, when set, is a durable backend the cache loads from on
	// construction and writes through to.
	Store Store
}

// Option mutates Options.
type Option func(*Options)

// DefaultOptions returns the default cache configuration.
func DefaultOptions() Options {
	return Options{
		MaxEntries:   DefaultMaxEntries,
		MaxSizeBytes: DefaultMaxSizeBytes,
		MaxAge:       DefaultMaxAge,
	}
}

// WithMaxEntries caps the entry count.
func WithMaxEntries(n int) Option {
	return func(o *Options) { o.MaxEntries = n }
}

// WithMaxSizeBytes caps the total cached byte size.
func WithMaxSizeBytes(n int64) Option {
	return func(o *Options) { o.MaxSizeBytes = n }
}

// WithMaxAge sets the entry validity window.
func WithMaxAge(d time.Duration) Option {
	return func(o *Options) { o.MaxAge = d }
}

// WithPersistPath enables JSON file persistence.
func WithPersistPath(path string) Option {
	return func(o *Options) { o.PersistPath = path }
}

// WithStore enables a durable write-through backend.
func WithStore(s Store) Option {
	return func(o *Options) { o.Store = s }
}

// =============================================================================
// STATISTICS
// =============================================================================

// Stats is a point-in-time snapshot of cache effectiveness.
type Stats struct {
	Entries       int     `json:"entries"`
	SizeBytes     int64   `json:"size_bytes"`
	SizeMB        float64 `json:"size_mb"`
	Hits          int64   `json:"hits"`
	Misses        int64   `json:"misses"`
	TotalRequests int64   `json:"total_requests"`
	HitRate       float64 `json:"hit_rate"`
	Evictions     int64   `json:"evictions"`
	Invalidations int64   `json:"invalidations"`
	Insertions    int64   `json:"insertions"`
}

// HotEntry is one of the most-hit entries surfaced by analysis.
type HotEntry struct {
	Key       string `json:"key"`
	FeatureID string `json:"feature_id,omitempty"`
	HitCount  int64  `json:"hit_count"`
}

// Insights is the cache's self-analysis: actionable flags plus the hottest
// entries.
type Insights struct {
	Stats      Stats      `json:"stats"`
	Findings   []string   `json:"findings"`
	TopEntries []HotEntry `json:"top_entries,omitempty"`
}
