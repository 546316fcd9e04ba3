// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package storage holds accumulated source files for a feature across TDD
// retries, spilling large or excess files to a private temp directory so
// memory use stays bounded.
package storage

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"sync"

	"github.com/AleutianAI/GreenlightFOSS/services/greenlight/feature"
)

// Default placement limits.
const (
	DefaultMemoryThresholdBytes = 100 * 1024
	DefaultMaxMemoryFiles       = 50
)

// fileMeta tracks where a stored file lives and what it contains.
type fileMeta struct {
	SizeBytes int64  `json:"size_bytes"`
	Hash      string `json:"hash"`
	InMemory  bool   `json:"in_memory"`
}

// Metrics is a snapshot of storage placement and retrieval counters.
type Metrics struct {
	TotalFiles       int     `json:"total_files"`
	MemoryFiles      int     `json:"memory_files"`
	DiskFiles        int     `json:"disk_files"`
	TotalSizeBytes   int64   `json:"total_size_bytes"`
	TotalSizeMB      float64 `json:"total_size_mb"`
	MemorySizeBytes  int64   `json:"memory_size_bytes"`
	SpilloverCount   int64   `json:"spillover_count"`
	MemoryRetrievals int64   `json:"memory_retrievals"`
	DiskRetrievals   int64   `json:"disk_retrievals"`
	MemoryHitRate    float64 `json:"memory_hit_rate"`
}

// Options configures a Manager.
type Options struct {
	// MemoryThresholdBytes is the largest file kept in memory.
	MemoryThresholdBytes int64

	// MaxMemoryFiles caps how many files stay in memory.
	MaxMemoryFiles int

	// TempDirPrefix names the lazily created spillover directory.
	TempDirPrefix string
}

// Option mutates Options.
type Option func(*Options)

// WithMemoryThreshold sets the per-file in-memory size limit.
func WithMemoryThreshold(n int64) Option {
	return func(o *Options) { o.MemoryThresholdBytes = n }
}

// WithMaxMemoryFiles caps the in-memory file count.
func WithMaxMemoryFiles(n int) Option {
	return func(o *Options) { o.MaxMemoryFiles = n }
}

// WithTempDirPrefix names the spillover directory.
func WithTempDirPrefix(prefix string) Option {
	return func(o *Options) { o.TempDirPrefix = prefix }
}

// Manager stores code files in memory or on disk depending on size and
// memory pressure, with content-hash deduplication.
//
// Thread Safety: Safe for concurrent use. The spillover directory is
// private to the instance, so concurrent managers do not collide.
type Manager struct {
	mu      sync.Mutex
	memory  map[string]string
	meta    map[string]*fileMeta
	tempDir string

	opts   Options
	logger *slog.Logger

	spilloverCount   int64
	memoryRetrievals int64
	diskRetrievals   int64
}

// NewManager creates a storage manager. The spillover directory is not
// created until the first disk write.
func NewManager(logger *slog.Logger, options ...Option) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	opts := Options{
		MemoryThresholdBytes: DefaultMemoryThresholdBytes,
		MaxMemoryFiles:       DefaultMaxMemoryFiles,
		TempDirPrefix:        "greenlight-storage-",
	}
	for _, o := range options {
		o(&opts)
	}
	return &Manager{
		memory: make(map[string]string),
		meta:   make(map[string]*fileMeta),
		opts:   opts,
		logger: logger,
	}
}

var unsafePathChars = regexp.MustCompile(`[^\w.-]`)

// safeName transliterates a possibly path-like filename into a flat,
// filesystem-safe one.
func safeName(filename string) string {
	return unsafePathChars.ReplaceAllString(filename, "_")
}

// diskName is the on-disk name for a stored file. The transliterated name
// alone would collide for inputs like "a/b" and "a_b", so a short hash of
// the original name disambiguates.
func diskName(filename string) string {
	sum := sha256.Sum256([]byte(filename))
	return safeName(filename) + "-" + hex.EncodeToString(sum[:4])
}

// hashContent returns the hex SHA-256 of file content.
func hashContent(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

// Store saves a file, choosing memory or disk placement.
//
// Description:
//
//	Identical content for an existing filename is a true no-op (dedup by
//	content hash). Otherwise the file goes to disk when it exceeds the
//	memory threshold or memory is already at its file cap, else it stays
//	in memory. Replacing a memory-resident file with a disk-bound version
//	counts as a spillover.
func (m *Manager) Store(filename, content string) error {
	hash := hashContent(content)
	size := int64(len(content))

	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.meta[filename]; ok && existing.Hash == hash {
		return nil
	}

	wasInMemory := false
	if existing, ok := m.meta[filename]; ok {
		wasInMemory = existing.InMemory
	}

	toDisk := size > m.opts.MemoryThresholdBytes ||
		(!wasInMemory && m.memoryFileCountLocked() >= m.opts.MaxMemoryFiles)

	if toDisk {
		if err := m.writeDiskLocked(filename, content); err != nil {
			return err
		}
		// Only an actual memory-to-disk migration counts as spillover;
		// fresh files placed straight on disk do not.
		if wasInMemory {
			delete(m.memory, filename)
			m.spilloverCount++
		}
		m.meta[filename] = &fileMeta{SizeBytes: size, Hash: hash, InMemory: false}
		return nil
	}

	// A previous disk copy is superseded by the in-memory version.
	if existing, ok := m.meta[filename]; ok && !existing.InMemory {
		m.removeDiskFileLocked(filename)
	}
	m.memory[filename] = content
	m.meta[filename] = &fileMeta{SizeBytes: size, Hash: hash, InMemory: true}
	return nil
}

// memoryFileCountLocked counts in-memory files. Caller holds mu.
func (m *Manager) memoryFileCountLocked() int {
	return len(m.memory)
}

// ensureTempDirLocked lazily creates the spillover directory.
func (m *Manager) ensureTempDirLocked() error {
	if m.tempDir != "" {
		return nil
	}
	dir, err := os.MkdirTemp("", m.opts.TempDirPrefix)
	if err != nil {
		return fmt.Errorf("creating spillover directory: %w", err)
	}
	m.tempDir = dir
	return nil
}

// writeDiskLocked writes a file to the spillover directory.
func (m *Manager) writeDiskLocked(filename, content string) error {
	if err := m.ensureTempDirLocked(); err != nil {
		return err
	}
	path := filepath.Join(m.tempDir, diskName(filename))
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("writing %s to disk: %w", filename, err)
	}
	return nil
}

// removeDiskFileLocked deletes a file's disk copy, best effort.
func (m *Manager) removeDiskFileLocked(filename string) {
	if m.tempDir == "" {
		return
	}
	path := filepath.Join(m.tempDir, diskName(filename))
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		m.logger.Warn("Failed to remove spillover file",
			slog.String("filename", filename),
			slog.String("error", err.Error()),
		)
	}
}

// Get retrieves a file's content, checking memory before disk.
//
// Outputs:
//
//	string - File content.
//	bool - False if the file is absent from both locations.
func (m *Manager) Get(filename string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if content, ok := m.memory[filename]; ok {
		m.memoryRetrievals++
		return content, true
	}

	meta, ok := m.meta[filename]
	if !ok || meta.InMemory || m.tempDir == "" {
		return "", false
	}

	data, err := os.ReadFile(filepath.Join(m.tempDir, diskName(filename)))
	if err != nil {
		m.logger.Warn("Failed to read spillover file",
			slog.String("filename", filename),
			slog.String("error", err.Error()),
		)
		return "", false
	}
	m.diskRetrievals++
	return string(data), true
}

// GetAll returns every stored file as a code payload.
func (m *Manager) GetAll() feature.CodePayload {
	m.mu.Lock()
	names := make([]string, 0, len(m.meta))
	for name := range m.meta {
		names = append(names, name)
	}
	m.mu.Unlock()

	out := make(feature.CodePayload, len(names))
	for _, name := range names {
		if content, ok := m.Get(name); ok {
			out[name] = content
		}
	}
	return out
}

// Update stores every file in the mapping.
func (m *Manager) Update(files feature.CodePayload) error {
	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := m.Store(name, files[name]); err != nil {
			return err
		}
	}
	return nil
}

// Remove deletes a single file from whichever location holds it.
func (m *Manager) Remove(filename string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	meta, ok := m.meta[filename]
	if !ok {
		return fmt.Errorf("file %q is not stored", filename)
	}
	if meta.InMemory {
		delete(m.memory, filename)
	} else {
		m.removeDiskFileLocked(filename)
	}
	delete(m.meta, filename)
	return nil
}

// Clear removes every file and resets the retrieval counters.
func (m *Manager) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for name, meta := range m.meta {
		if !meta.InMemory {
			m.removeDiskFileLocked(name)
		}
	}
	m.memory = make(map[string]string)
	m.meta = make(map[string]*fileMeta)
	m.spilloverCount = 0
	m.memoryRetrievals = 0
	m.diskRetrievals = 0
}

// OptimizeStorage rebalances file placement.
//
// Description:
//
//	In-memory files above the size threshold are pushed to disk. Disk
//	files at or below the threshold are pulled back into memory smallest
//	first, while room remains under the memory file cap.
func (m *Manager) OptimizeStorage() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Push oversize memory files out.
	for name, meta := range m.meta {
		if meta.InMemory && meta.SizeBytes > m.opts.MemoryThresholdBytes {
			if err := m.writeDiskLocked(name, m.memory[name]); err != nil {
				return err
			}
			delete(m.memory, name)
			meta.InMemory = false
			m.spilloverCount++
		}
	}

	// Pull small disk files in, smallest first.
	type candidate struct {
		name string
		size int64
	}
	var candidates []candidate
	for name, meta := range m.meta {
		if !meta.InMemory && meta.SizeBytes <= m.opts.MemoryThresholdBytes {
			candidates = append(candidates, candidate{name, meta.SizeBytes})
		}
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].size != candidates[j].size {
			return candidates[i].size < candidates[j].size
		}
		return candidates[i].name < candidates[j].name
	})

	for _, cand := range candidates {
		if m.memoryFileCountLocked() >= m.opts.MaxMemoryFiles {
			break
		}
		data, err := os.ReadFile(filepath.Join(m.tempDir, diskName(cand.name)))
		if err != nil {
			m.logger.Warn("Failed to pull file into memory",
				slog.String("filename", cand.name),
				slog.String("error", err.Error()),
			)
			continue
		}
		m.memory[cand.name] = string(data)
		m.meta[cand.name].InMemory = true
		m.removeDiskFileLocked(cand.name)
	}
	return nil
}

// Metrics returns a snapshot of placement and retrieval counters.
func (m *Manager) Metrics() Metrics {
	m.mu.Lock()
	defer m.mu.Unlock()

	metrics := Metrics{
		TotalFiles:       len(m.meta),
		SpilloverCount:   m.spilloverCount,
		MemoryRetrievals: m.memoryRetrievals,
		DiskRetrievals:   m.diskRetrievals,
	}
	for _, meta := range m.meta {
		metrics.TotalSizeBytes += meta.SizeBytes
		if meta.InMemory {
			metrics.MemoryFiles++
			metrics.MemorySizeBytes += meta.SizeBytes
		} else {
			metrics.DiskFiles++
		}
	}
	metrics.TotalSizeMB = float64(metrics.TotalSizeBytes) / (1024 * 1024)
	if total := metrics.MemoryRetrievals + metrics.DiskRetrievals; total > 0 {
		metrics.MemoryHitRate = float64(metrics.MemoryRetrievals) / float64(total)
	}
	return metrics
}

// Cleanup removes the spillover directory recursively, best effort.
// Failures are logged, never returned.
func (m *Manager) Cleanup() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.tempDir == "" {
		return
	}
	if err := os.RemoveAll(m.tempDir); err != nil {
		m.logger.Warn("Failed to remove spillover directory",
			slog.String("dir", m.tempDir),
			slog.String("error", err.Error()),
		)
		return
	}
	m.tempDir = ""
}

// WithScope runs fn with the manager and guarantees Cleanup afterwards,
// on every exit path including panics.
func (m *Manager) WithScope(fn func(*Manager) error) error {
	defer m.Cleanup()
	return fn(m)
}
