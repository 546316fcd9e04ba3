// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"log"
	"time"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/GreenlightFOSS/cmd/greenlight/config"
	"github.com/AleutianAI/GreenlightFOSS/pkg/logging"
	"github.com/AleutianAI/GreenlightFOSS/services/greenlight"
	"github.com/AleutianAI/GreenlightFOSS/services/greenlight/agents"
	"github.com/AleutianAI/GreenlightFOSS/services/greenlight/red"
)

var rootCmd = &cobra.Command{
	Use:   "greenlight",
	Short: "TDD execution core: RED, YELLOW, GREEN",
	Long: `Greenlight drives features through a strict TDD cycle: failing
tests first (RED), implementation against a cached test runner, review
hold (YELLOW), and completion on approval (GREEN).

The LLM-backed agent roles (test writer, coder, reviewer) are served by
an external agent service configured in ~/.greenlight/greenlight.yaml.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return config.Load()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatalf("Error executing command: %v", err)
	}
}

// buildService wires the full stack from the loaded config.
func buildService() (*greenlight.Service, func() error, error) {
	cfg := config.Global

	logger, closeLogs := logging.New(logging.Config{
		Level:   cfg.Logging.Level,
		LogDir:  cfg.Logging.Dir,
		Service: "greenlight",
		JSON:    cfg.Logging.JSON,
	})

	agentClient := agents.NewHTTPClient(cfg.Agents.BaseURL,
		time.Duration(cfg.Agents.TimeoutSeconds)*time.Second)
	executor := red.NewSubprocessExecutor(cfg.Project.Dialect, 0, logger)

	svc, err := greenlight.NewService(greenlight.ServiceConfig{
		ProjectRoot:      cfg.Project.Root,
		Dialect:          cfg.Project.Dialect,
		CacheDir:         logging.ExpandPath(cfg.Cache.Dir),
		CachePersistPath: logging.ExpandPath(cfg.Cache.PersistPath),
		MaxWorkers:       cfg.Parallel.MaxWorkers,
		WatchPaths:       cfg.Project.WatchPaths,
	}, greenlight.Agents{
		Executor:   executor,
		TestWriter: agentClient,
		Coder:      agentClient,
		Reviewer:   agentClient,
	}, logger)
	if err != nil {
		closeLogs()
		return nil, nil, err
	}

	cleanup := func() error {
		err := svc.Close()
		closeLogs()
		return err
	}
	return svc, cleanup, nil
}
