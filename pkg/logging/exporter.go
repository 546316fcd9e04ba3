// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package logging

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// LogEntry is the exporter-facing view of one log record.
type LogEntry struct {
	Timestamp time.Time      `json:"timestamp"`
	Level     string         `json:"level"`
	Message   string         `json:"message"`
	Service   string         `json:"service,omitempty"`
	Attrs     map[string]any `json:"attrs,omitempty"`
}

// LogExporter receives log entries for an external sink.
//
// Export must not block for long; it runs on the logging hot path.
type LogExporter interface {
	Export(entry LogEntry)
}

// NopExporter discards every entry.
type NopExporter struct{}

// Export implements LogExporter.
func (NopExporter) Export(LogEntry) {}

// BufferedExporter collects entries in memory. Intended for tests and
// short-lived capture, not production shipping.
//
// Thread Safety: Safe for concurrent use.
type BufferedExporter struct {
	mu      sync.Mutex
	entries []LogEntry
}

// Export implements LogExporter.
func (b *BufferedExporter) Export(entry LogEntry) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.entries = append(b.entries, entry)
}

// Entries returns a copy of everything captured so far.
func (b *BufferedExporter) Entries() []LogEntry {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]LogEntry, len(b.entries))
	copy(out, b.entries)
	return out
}

// Reset discards captured entries.
func (b *BufferedExporter) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.entries = nil
}

// exporterHandler adapts a LogExporter to the slog.Handler interface.
type exporterHandler struct {
	exporter LogExporter
	level    slog.Level
	service  string
	attrs    []slog.Attr
}

func (h *exporterHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *exporterHandler) Handle(_ context.Context, r slog.Record) error {
	attrs := make(map[string]any, r.NumAttrs()+len(h.attrs))
	for _, a := range h.attrs {
		attrs[a.Key] = a.Value.Any()
	}
	r.Attrs(func(a slog.Attr) bool {
		attrs[a.Key] = a.Value.Any()
		return true
	})
	h.exporter.Export(LogEntry{
		Timestamp: r.Time,
		Level:     r.Level.String(),
		Message:   r.Message,
		Service:   h.service,
		Attrs:     attrs,
	})
	return nil
}

func (h *exporterHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	merged = append(merged, h.attrs...)
	merged = append(merged, attrs...)
	return &exporterHandler{
		exporter: h.exporter,
		level:    h.level,
		service:  h.service,
		attrs:    merged,
	}
}

// WithGroup flattens groups; exporter sinks key on flat attribute names.
func (h *exporterHandler) WithGroup(string) slog.Handler {
	return h
}
