// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package cache avoids redundant test execution by caching results keyed
// on (code, test files, optional feature id), with LRU eviction, age
// expiry, and dependency-file invalidation.
package cache

import (
	"container/list"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/AleutianAI/GreenlightFOSS/services/greenlight/feature"
)

// ResultCache is an in-memory LRU cache of test results.
//
// Thread Safety: Safe for concurrent use.
type ResultCache struct {
	mu        sync.Mutex
	entries   map[string]*list.Element
	lru       *list.List // front = most recently used
	sizeBytes int64

	// Reverse indices for invalidation.
	byDependency map[string]map[string]struct{}
	byFeature    map[string]map[string]struct{}

	opts   Options
	logger *slog.Logger

	hits          atomic.Int64
	misses        atomic.Int64
	totalRequests atomic.Int64
	evictions     atomic.Int64
	invalidations atomic.Int64
	insertions    atomic.Int64

	// group collapses concurrent computations of the same key.
	group singleflight.Group

	// now is swappable for tests.
	now func() time.Time
}

// NewResultCache creates a cache, reloading persisted entries when a
// persist path or store is configured. Load failures fall back to an
// empty cache; they are logged, never returned.
func NewResultCache(logger *slog.Logger, options ...Option) *ResultCache {
	if logger == nil {
		logger = slog.Default()
	}
	opts := DefaultOptions()
	for _, o := range options {
		o(&opts)
	}

	c := &ResultCache{
		entries:      make(map[string]*list.Element),
		lru:          list.New(),
		byDependency: make(map[string]map[string]struct{}),
		byFeature:    make(map[string]map[string]struct{}),
		opts:         opts,
		logger:       logger,
		now:          time.Now,
	}

	if opts.PersistPath != "" {
		if err := c.loadFromFile(opts.PersistPath); err != nil {
			logger.Warn("Cache reload failed, starting empty",
				slog.String("path", opts.PersistPath),
				slog.String("error", err.Error()),
			)
		}
	}
	if opts.Store != nil {
		if err := c.loadFromStore(opts.Store); err != nil {
			logger.Warn("Cache store reload failed, starting empty",
				slog.String("error", err.Error()),
			)
		}
	}
	return c
}

// CacheKey derives the deterministic key for a (code, test files, feature)
// combination: SHA-256 over code and the sorted test-file list, prefixed
// by the feature id when one is given.
func CacheKey(code string, testFiles []string, featureID string) string {
	files := append([]string(nil), testFiles...)
	sort.Strings(files)

	input := code + "::" + strings.Join(files, "|")
	if featureID != "" {
		input = featureID + "::" + input
	}
	sum := sha256.Sum256([]byte(input))
	return hex.EncodeToString(sum[:])
}

// hashString returns the hex SHA-256 of a string.
func hashString(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// Get looks up a cached result.
//
// Description:
//
//	A present entry older than MaxAge is evicted and reported as a miss.
//	A hit moves the entry to the most-recently-used position and bumps
//	its hit count. Every call increments the total-requests counter.
//
// Outputs:
//
//	*feature.TestResult - The cached result on a hit.
//	bool - True on a hit.
func (c *ResultCache) Get(code string, testFiles []string, featureID string) (*feature.TestResult, bool) {
	c.totalRequests.Add(1)
	key := CacheKey(code, testFiles, featureID)

	c.mu.Lock()
	defer c.mu.Unlock()

	elem, exists := c.entries[key]
	if !exists {
		c.misses.Add(1)
		return nil, false
	}

	entry := elem.Value.(*Entry)
	if c.now().Sub(entry.CreatedAt) > c.opts.MaxAge {
		c.removeEntryLocked(key, elem)
		c.evictions.Add(1)
		c.misses.Add(1)
		return nil, false
	}

	c.lru.MoveToFront(elem)
	entry.HitCount++
	entry.LastAccessed = c.now()
	c.hits.Add(1)
	return entry.Result, true
}

// Set caches a test result.
//
// Description:
//
//	Dependencies are extracted from the code, the entry size is computed
//	by serialization, and LRU entries are evicted until the new entry
//	fits under both the byte ceiling and the entry-count ceiling. Reverse
//	indices (dependency file -> keys, feature -> keys) are updated. An
//	entry too large for the cache altogether is skipped with a log line.
func (c *ResultCache) Set(code string, testFiles []string, result *feature.TestResult, featureID string) {
	key := CacheKey(code, testFiles, featureID)

	files := append([]string(nil), testFiles...)
	sort.Strings(files)

	entry := &Entry{
		Key:           key,
		Result:        result,
		CodeHash:      hashString(code),
		TestFilesHash: hashString(strings.Join(files, "|")),
		Dependencies:  ExtractDependencies(code),
		FeatureID:     featureID,
		CreatedAt:     c.now(),
		LastAccessed:  c.now(),
	}

	data, err := json.Marshal(entry)
	if err != nil {
		c.logger.Warn("Cache entry not serializable, skipping",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
		return
	}
	entry.SizeBytes = int64(len(data))

	if entry.SizeBytes > c.opts.MaxSizeBytes {
		c.logger.Warn("Cache entry exceeds total size ceiling, skipping",
			slog.String("key", key),
			slog.Int64("size_bytes", entry.SizeBytes),
		)
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, exists := c.entries[key]; exists {
		c.removeEntryLocked(key, elem)
	}

	for c.lru.Len() >= c.opts.MaxEntries || c.sizeBytes+entry.SizeBytes > c.opts.MaxSizeBytes {
		if !c.evictLRULocked() {
			break
		}
	}

	elem := c.lru.PushFront(entry)
	c.entries[key] = elem
	c.sizeBytes += entry.SizeBytes
	c.insertions.Add(1)

	for _, dep := range entry.Dependencies {
		if c.byDependency[dep] == nil {
			c.byDependency[dep] = make(map[string]struct{})
		}
		c.byDependency[dep][key] = struct{}{}
	}
	if featureID != "" {
		if c.byFeature[featureID] == nil {
			c.byFeature[featureID] = make(map[string]struct{})
		}
		c.byFeature[featureID][key] = struct{}{}
	}

	if c.opts.Store != nil {
		if err := c.opts.Store.Put(entry); err != nil {
			c.logger.Warn("Cache store write failed",
				slog.String("key", key),
				slog.String("error", err.Error()),
			)
		}
	}
}

// GetOrCompute returns the cached result or computes it exactly once.
//
// Description:
//
//	Concurrent callers with the same key share a single computation. The
//	computed result is cached before being returned.
func (c *ResultCache) GetOrCompute(ctx context.Context, code string, testFiles []string, featureID string, compute func(context.Context) (*feature.TestResult, error)) (*feature.TestResult, error) {
	if result, ok := c.Get(code, testFiles, featureID); ok {
		return result, nil
	}

	key := CacheKey(code, testFiles, featureID)
	v, err, _ := c.group.Do(key, func() (any, error) {
		if result, ok := c.Get(code, testFiles, featureID); ok {
			return result, nil
		}
		result, err := compute(ctx)
		if err != nil {
			return nil, err
		}
		c.Set(code, testFiles, result, featureID)
		return result, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*feature.TestResult), nil
}

// InvalidateByFile removes every entry that depends on the given file.
//
// Outputs:
//
//	int - Number of entries removed.
func (c *ResultCache) InvalidateByFile(path string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	keys, exists := c.byDependency[path]
	if !exists {
		return 0
	}

	removed := 0
	for key := range keys {
		if elem, ok := c.entries[key]; ok {
			c.removeEntryLocked(key, elem)
			removed++
		}
	}
	c.invalidations.Add(int64(removed))

	c.logger.Info("Cache invalidated by file",
		slog.String("path", path),
		slog.Int("removed", removed),
	)
	return removed
}

// InvalidateByFeature removes every entry registered under a feature id.
//
// Outputs:
//
//	int - Number of entries removed.
func (c *ResultCache) InvalidateByFeature(featureID string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	keys, exists := c.byFeature[featureID]
	if !exists {
		return 0
	}

	removed := 0
	for key := range keys {
		if elem, ok := c.entries[key]; ok {
			c.removeEntryLocked(key, elem)
			removed++
		}
	}
	c.invalidations.Add(int64(removed))

	c.logger.Info("Cache invalidated by feature",
		slog.String("feature_id", featureID),
		slog.Int("removed", removed),
	)
	return removed
}

// evictLRULocked removes the least-recently-used entry. Caller holds mu.
func (c *ResultCache) evictLRULocked() bool {
	back := c.lru.Back()
	if back == nil {
		return false
	}
	entry := back.Value.(*Entry)
	c.removeEntryLocked(entry.Key, back)
	c.evictions.Add(1)
	return true
}

// removeEntryLocked removes an entry and cleans up the reverse indices so
// no dangling key sets accumulate. Caller holds mu.
func (c *ResultCache) removeEntryLocked(key string, elem *list.Element) {
	entry := elem.Value.(*Entry)
	c.lru.Remove(elem)
	delete(c.entries, key)
	c.sizeBytes -= entry.SizeBytes

	for _, dep := range entry.Dependencies {
		if keys, ok := c.byDependency[dep]; ok {
			delete(keys, key)
			if len(keys) == 0 {
				delete(c.byDependency, dep)
			}
		}
	}
	if entry.FeatureID != "" {
		if keys, ok := c.byFeature[entry.FeatureID]; ok {
			delete(keys, key)
			if len(keys) == 0 {
				delete(c.byFeature, entry.FeatureID)
			}
		}
	}

	if c.opts.Store != nil {
		if err := c.opts.Store.Delete(key); err != nil {
			c.logger.Warn("Cache store delete failed",
				slog.String("key", key),
				slog.String("error", err.Error()),
			)
		}
	}
}

// Close releases the durable store, if any.
func (c *ResultCache) Close() error {
	if c.opts.Store != nil {
		return c.opts.Store.Close()
	}
	return nil
}

// Len returns the current entry count.
func (c *ResultCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

// Stats returns a snapshot of cache effectiveness counters.
func (c *ResultCache) Stats() Stats {
	c.mu.Lock()
	entries := c.lru.Len()
	size := c.sizeBytes
	c.mu.Unlock()

	stats := Stats{
		Entries:       entries,
		SizeBytes:     size,
		SizeMB:        float64(size) / (1024 * 1024),
		Hits:          c.hits.Load(),
		Misses:        c.misses.Load(),
		TotalRequests: c.totalRequests.Load(),
		Evictions:     c.evictions.Load(),
		Invalidations: c.invalidations.Load(),
		Insertions:    c.insertions.Load(),
	}
	if stats.TotalRequests > 0 {
		stats.HitRate = float64(stats.Hits) / float64(stats.TotalRequests)
	}
	return stats
}

// Analysis thresholds.
const (
	lowHitRate        = 0.30
	highEvictionRatio = 0.5
	nearCapacityRatio = 0.9
)

// Insights analyzes the cache and flags actionable conditions: low hit
// rate, a high eviction-to-insertion ratio, and near-capacity size. The
// topN most-hit entries are included for inspection.
func (c *ResultCache) Insights(topN int) Insights {
	stats := c.Stats()
	insights := Insights{Stats: stats}

	if stats.TotalRequests > 0 && stats.HitRate < lowHitRate {
		insights.Findings = append(insights.Findings,
			fmt.Sprintf("low hit rate (%.0f%%): keys may be too volatile to benefit from caching", stats.HitRate*100))
	}
	if stats.Insertions > 0 && float64(stats.Evictions)/float64(stats.Insertions) > highEvictionRatio {
		insights.Findings = append(insights.Findings,
			"high eviction ratio: consider raising max entries or max size")
	}
	if float64(stats.SizeBytes) > float64(c.opts.MaxSizeBytes)*nearCapacityRatio {
		insights.Findings = append(insights.Findings,
			"cache near size capacity: evictions imminent")
	}

	// Entries mutate under the lock, so the fields are copied out here
	// rather than collected as pointers and read later.
	c.mu.Lock()
	hot := make([]HotEntry, 0, c.lru.Len())
	for elem := c.lru.Front(); elem != nil; elem = elem.Next() {
		e := elem.Value.(*Entry)
		hot = append(hot, HotEntry{
			Key:       e.Key,
			FeatureID: e.FeatureID,
			HitCount:  e.HitCount,
		})
	}
	c.mu.Unlock()

	sort.Slice(hot, func(i, j int) bool { return hot[i].HitCount > hot[j].HitCount })
	if topN > len(hot) {
		topN = len(hot)
	}
	insights.TopEntries = append(insights.TopEntries, hot[:topN]...)
	return insights
}
