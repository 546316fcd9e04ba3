// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package logging builds the structured loggers used across greenlight
// components.
//
// Components take a *slog.Logger directly; this package only assembles
// the handler stack:
//
//   - Default: human-readable text on stderr (Unix CLI convention)
//   - Optional: a JSON log file with automatic directory creation,
//     named {service}_{date}.log
//
// Basic usage:
//
//	logger, closeFn := logging.New(logging.Config{
//	    Level:   "info",
//	    LogDir:  "~/.greenlight/logs",
//	    Service: "greenlight",
//	})
//	defer closeFn()
//	logger.Info("server starting", slog.Int("port", port))
//
// This package does NOT redact sensitive data; callers must keep tokens
// and secrets out of log attributes.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Config configures logger construction. The zero value yields an
// Info-level text logger on stderr.
type Config struct {
	// Level is the minimum level: "debug", "info", "warn", or "error".
	Level string

	// LogDir, when set, enables an additional JSON log file in this
	// directory. Supports ~ expansion.
	LogDir string

	// Service is attached to every record as the "service" attribute.
	Service string

	// JSON switches stderr output to JSON.
	JSON bool

	// Quiet disables stderr output entirely.
	Quiet bool

	// Exporter, when set, receives a copy of every record at or above
	// Level. Used to ship logs to an external sink or capture them in
	// tests.
	Exporter LogExporter
}

// ParseLevel maps a config string to a slog level. Unknown values get
// Info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// New builds a logger from the config.
//
// Outputs:
//
//	*slog.Logger - Ready-to-use logger.
//	func() error - Cleanup releasing the log file, if any. Never nil.
func New(config Config) (*slog.Logger, func() error) {
	opts := &slog.HandlerOptions{Level: ParseLevel(config.Level)}

	var handlers []slog.Handler
	if !config.Quiet {
		if config.JSON {
			handlers = append(handlers, slog.NewJSONHandler(os.Stderr, opts))
		} else {
			handlers = append(handlers, slog.NewTextHandler(os.Stderr, opts))
		}
	}

	closeFn := func() error { return nil }
	if config.LogDir != "" {
		if file, err := openLogFile(config.LogDir, config.Service); err == nil {
			// File logs are always JSON: they are for machines.
			handlers = append(handlers, slog.NewJSONHandler(file, opts))
			closeFn = func() error {
				if err := file.Sync(); err != nil {
					return fmt.Errorf("syncing log file: %w", err)
				}
				return file.Close()
			}
		}
	}

	if config.Exporter != nil {
		handlers = append(handlers, &exporterHandler{
			exporter: config.Exporter,
			level:    ParseLevel(config.Level),
			service:  config.Service,
		})
	}

	var handler slog.Handler
	switch len(handlers) {
	case 0:
		handler = slog.NewTextHandler(io.Discard, nil)
	case 1:
		handler = handlers[0]
	default:
		handler = &multiHandler{handlers: handlers}
	}

	if config.Service != "" {
		handler = handler.WithAttrs([]slog.Attr{slog.String("service", config.Service)})
	}
	return slog.New(handler), closeFn
}

// Default returns an Info-level stderr logger tagged "greenlight".
func Default() *slog.Logger {
	logger, _ := New(Config{Service: "greenlight"})
	return logger
}

// openLogFile opens {service}_{date}.log under dir, creating dir as
// needed.
func openLogFile(dir, service string) (*os.File, error) {
	dir = ExpandPath(dir)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("creating log directory: %w", err)
	}
	if service == "" {
		service = "greenlight"
	}
	name := fmt.Sprintf("%s_%s.log", service, time.Now().Format("2006-01-02"))
	return os.OpenFile(filepath.Join(dir, name), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o640)
}

// ExpandPath expands a leading ~ to the user's home directory.
func ExpandPath(path string) string {
	if len(path) > 0 && path[0] == '~' {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[1:])
		}
	}
	return path
}

// multiHandler fans records out to several handlers, letting stderr stay
// text while the file stays JSON.
type multiHandler struct {
	handlers []slog.Handler
}

// Enabled returns true if any handler is enabled for the level.
func (h *multiHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, handler := range h.handlers {
		if handler.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

// Handle sends the record to all enabled handlers.
func (h *multiHandler) Handle(ctx context.Context, r slog.Record) error {
	for _, handler := range h.handlers {
		if handler.Enabled(ctx, r.Level) {
			if err := handler.Handle(ctx, r); err != nil {
				return err
			}
		}
	}
	return nil
}

// WithAttrs returns a new handler with additional attributes.
func (h *multiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	handlers := make([]slog.Handler, len(h.handlers))
	for i, handler := range h.handlers {
		handlers[i] = handler.WithAttrs(attrs)
	}
	return &multiHandler{handlers: handlers}
}

// WithGroup returns a new handler with a group name.
func (h *multiHandler) WithGroup(name string) slog.Handler {
	handlers := make([]slog.Handler, len(h.handlers))
	for i, handler := range h.handlers {
		handlers[i] = handler.WithGroup(name)
	}
	return &multiHandler{handlers: handlers}
}
