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
	"log/slog"
	"testing"
)

func TestBufferedExporterCapturesRecords(t *testing.T) {
	exporter := &BufferedExporter{}
	logger, closeFn := New(Config{
		Level:    "info",
		Service:  "greenlight",
		Quiet:    true,
		Exporter: exporter,
	})
	defer closeFn()

	logger.Info("phase transition",
		slog.String("feature_id", "f1"),
		slog.String("to", "GREEN"),
	)
	logger.Debug("dropped below level")

	entries := exporter.Entries()
	if len(entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(entries))
	}
	e := entries[0]
	if e.Message != "phase transition" || e.Level != "INFO" {
		t.Errorf("entry = %+v", e)
	}
	if e.Attrs["feature_id"] != "f1" || e.Attrs["to"] != "GREEN" {
		t.Errorf("attrs = %v", e.Attrs)
	}
}

func TestBufferedExporterSeesWithAttrs(t *testing.T) {
	exporter := &BufferedExporter{}
	logger, closeFn := New(Config{Quiet: true, Exporter: exporter})
	defer closeFn()

	logger.With(slog.String("session_id", "s1")).Warn("retrying")

	entries := exporter.Entries()
	if len(entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(entries))
	}
	if entries[0].Attrs["session_id"] != "s1" {
		t.Errorf("attrs = %v, want session_id carried", entries[0].Attrs)
	}
}

func TestBufferedExporterReset(t *testing.T) {
	exporter := &BufferedExporter{}
	exporter.Export(LogEntry{Message: "one"})
	exporter.Reset()
	if len(exporter.Entries()) != 0 {
		t.Error("reset should clear entries")
	}
}

func TestNopExporterImplementsInterface(t *testing.T) {
	var _ LogExporter = NopExporter{}
	NopExporter{}.Export(LogEntry{Message: "ignored"})
}
