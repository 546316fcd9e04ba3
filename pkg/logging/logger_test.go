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
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{" Error ", slog.LevelError},
		{"", slog.LevelInfo},
		{"nonsense", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestNewWritesJSONLogFile(t *testing.T) {
	dir := t.TempDir()

	logger, closeFn := New(Config{
		Level:   "debug",
		LogDir:  dir,
		Service: "greenlight",
		Quiet:   true,
	})
	logger.Info("feature completed", slog.String("feature_id", "f1"))
	if err := closeFn(); err != nil {
		t.Fatalf("close failed: %v", err)
	}

	name := "greenlight_" + time.Now().Format("2006-01-02") + ".log"
	data, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		t.Fatalf("log file missing: %v", err)
	}

	var entry map[string]any
	line := strings.SplitN(strings.TrimSpace(string(data)), "\n", 2)[0]
	if err := json.Unmarshal([]byte(line), &entry); err != nil {
		t.Fatalf("log line is not JSON: %v", err)
	}
	if entry["msg"] != "feature completed" {
		t.Errorf("msg = %v", entry["msg"])
	}
	if entry["service"] != "greenlight" {
		t.Errorf("service = %v, want greenlight", entry["service"])
	}
	if entry["feature_id"] != "f1" {
		t.Errorf("feature_id = %v", entry["feature_id"])
	}
}

func TestNewRespectsLevel(t *testing.T) {
	dir := t.TempDir()

	logger, closeFn := New(Config{
		Level:  "warn",
		LogDir: dir,
		Quiet:  true,
	})
	logger.Debug("suppressed")
	logger.Info("also suppressed")
	logger.Warn("kept")
	if err := closeFn(); err != nil {
		t.Fatal(err)
	}

	name := "greenlight_" + time.Now().Format("2006-01-02") + ".log"
	data, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		t.Fatal(err)
	}
	out := string(data)
	if strings.Contains(out, "suppressed") {
		t.Error("below-level records should be dropped")
	}
	if !strings.Contains(out, "kept") {
		t.Error("warn record should be written")
	}
}

func TestNewCreatesLogDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "deep", "logs")

	logger, closeFn := New(Config{LogDir: dir, Quiet: true})
	logger.Info("hello")
	if err := closeFn(); err != nil {
		t.Fatal(err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil || len(entries) == 0 {
		t.Fatalf("log directory should exist with a file: %v", err)
	}
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}
	if got := ExpandPath("~/x"); got != filepath.Join(home, "x") {
		t.Errorf("ExpandPath(~/x) = %q", got)
	}
	if got := ExpandPath("/abs/path"); got != "/abs/path" {
		t.Errorf("absolute paths must pass through, got %q", got)
	}
	if got := ExpandPath(""); got != "" {
		t.Errorf("empty path must pass through, got %q", got)
	}
}

func TestDefaultLoggerNotNil(t *testing.T) {
	if Default() == nil {
		t.Fatal("Default returned nil")
	}
}
