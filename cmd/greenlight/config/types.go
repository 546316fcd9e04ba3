// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

type GreenlightConfig struct {
	// Server: HTTP listener settings
	Server ServerConfig `yaml:"server"`

	// Project: where the code under test lives and how to run its tests
	Project ProjectConfig `yaml:"project"`

	// Agents: the external agent service implementing the LLM roles
	Agents AgentsConfig `yaml:"agents"`

	// Cache: test-result cache durability
	Cache CacheConfig `yaml:"cache"`

	// Logging: level and optional log file directory
	Logging LoggingConfig `yaml:"logging"`

	// Parallel: batch processing limits
	Parallel ParallelConfig `yaml:"parallel"`
}

type ServerConfig struct {
	Host string `yaml:"host"` // e.g. 127.0.0.1
	Port int    `yaml:"port"` // e.g. 8720
}

type ProjectConfig struct {
	Root    string `yaml:"root"`    // e.g. "."
	Dialect string `yaml:"dialect"` // "pytest" or "gotest"

	// WatchPaths are watched for changes that invalidate cached results.
	WatchPaths []string `yaml:"watch_paths,omitempty"`
}

type AgentsConfig struct {
	BaseURL        string `yaml:"base_url"`        // e.g. http://localhost:8710
	TimeoutSeconds int    `yaml:"timeout_seconds"` // per agent call
}

type CacheConfig struct {
	// Dir enables the durable Badger store when set.
	Dir string `yaml:"dir,omitempty"`

	// PersistPath enables JSON snapshots on shutdown when set.
	PersistPath string `yaml:"persist_path,omitempty"`
}

type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
	Dir   string `yaml:"dir,omitempty"`
	JSON  bool   `yaml:"json"`
}

type ParallelConfig struct {
	MaxWorkers int `yaml:"max_workers"`
}

// DefaultConfig returns the config written on first run.
func DefaultConfig() GreenlightConfig {
	return GreenlightConfig{
		Server: ServerConfig{
			Host: "127.0.0.1",
			Port: 8720,
		},
		Project: ProjectConfig{
			Root:    ".",
			Dialect: "pytest",
		},
		Agents: AgentsConfig{
			BaseURL:        "http://localhost:8710",
			TimeoutSeconds: 300,
		},
		Cache: CacheConfig{
			Dir: "~/.greenlight/cache",
		},
		Logging: LoggingConfig{
			Level: "info",
			Dir:   "~/.greenlight/logs",
		},
		Parallel: ParallelConfig{
			MaxWorkers: 4,
		},
	}
}
