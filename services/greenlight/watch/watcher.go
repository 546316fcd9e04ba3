// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package watch invalidates cached test results when source files change
// on disk. Events are debounced: editors typically emit bursts of writes
// for a single save.
package watch

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is how long the watcher waits after the last event on a
// path before invalidating.
const DefaultDebounce = 500 * time.Millisecond

// Invalidator removes cache entries that depend on a changed file.
type Invalidator interface {
	InvalidateByFile(path string) int
}

// Watcher observes directories and invalidates dependent cache entries on
// file changes.
//
// Thread Safety: Safe for concurrent use.
type Watcher struct {
	fsw         *fsnotify.Watcher
	invalidator Invalidator
	debounce    time.Duration
	logger      *slog.Logger

	mu      sync.Mutex
	pending map[string]*time.Timer
	done    chan struct{}
	once    sync.Once
}

// NewWatcher creates a watcher feeding invalidations into inv.
func NewWatcher(inv Invalidator, debounce time.Duration, logger *slog.Logger) (*Watcher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating file watcher: %w", err)
	}
	return &Watcher{
		fsw:         fsw,
		invalidator: inv,
		debounce:    debounce,
		logger:      logger,
		pending:     make(map[string]*time.Timer),
		done:        make(chan struct{}),
	}, nil
}

// Add registers a directory (or file) for watching.
func (w *Watcher) Add(path string) error {
	if err := w.fsw.Add(path); err != nil {
		return fmt.Errorf("watching %s: %w", path, err)
	}
	w.logger.Info("Watching path", slog.String("path", path))
	return nil
}

// Run processes events until the context is cancelled or Close is called.
func (w *Watcher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) != 0 {
				w.scheduleInvalidation(event.Name)
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("File watcher error", slog.String("error", err.Error()))
		}
	}
}

// scheduleInvalidation (re)arms the debounce timer for a path.
func (w *Watcher) scheduleInvalidation(path string) {
	if !relevantFile(path) {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if timer, ok := w.pending[path]; ok {
		timer.Stop()
	}
	w.pending[path] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.pending, path)
		w.mu.Unlock()

		removed := w.invalidator.InvalidateByFile(path)
		// Cache entries record dependencies by relative name; try the
		// base name too when the absolute path matched nothing.
		if removed == 0 {
			removed = w.invalidator.InvalidateByFile(filepath.Base(path))
		}
		if removed > 0 {
			w.logger.Info("Invalidated cache entries for changed file",
				slog.String("path", path),
				slog.Int("removed", removed),
			)
		}
	})
}

// relevantFile filters out noise like editor swap files.
func relevantFile(path string) bool {
	base := filepath.Base(path)
	if strings.HasPrefix(base, ".") || strings.HasSuffix(base, "~") || strings.HasSuffix(base, ".swp") {
		return false
	}
	return true
}

// Close stops the watcher and cancels pending invalidations.
func (w *Watcher) Close() error {
	var err error
	w.once.Do(func() {
		close(w.done)
		w.mu.Lock()
		for path, timer := range w.pending {
			timer.Stop()
			delete(w.pending, path)
		}
		w.mu.Unlock()
		err = w.fsw.Close()
	})
	return err
}
