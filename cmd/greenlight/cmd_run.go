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
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/GreenlightFOSS/services/greenlight"
)

// =============================================================================
// COMMAND FLAGS
// =============================================================================

var (
	runFeaturesFile string // JSON file with the feature batch
	runParallel     bool   // Force parallel processing
)

// =============================================================================
// COMMAND DEFINITION
// =============================================================================

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Implement a batch of features and exit",
	Long: `Reads a feature batch from a JSON file, drives each feature
through the full TDD cycle, and prints the results as JSON.

The file holds a SubmitRequest:

  {
    "features": [
      {"id": "auth", "title": "User auth", "description": "..."},
      {"id": "session", "title": "Sessions", "depends_on": ["auth"]}
    ]
  }

Exits non-zero when any feature fails to reach GREEN.`,
	RunE: runBatch,
}

func init() {
	runCmd.Flags().StringVarP(&runFeaturesFile, "file", "f", "features.json", "JSON file with the feature batch")
	runCmd.Flags().BoolVar(&runParallel, "parallel", false, "force parallel processing")
	rootCmd.AddCommand(runCmd)
}

func runBatch(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(runFeaturesFile)
	if err != nil {
		return fmt.Errorf("reading feature batch: %w", err)
	}
	var req greenlight.SubmitRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return fmt.Errorf("parsing feature batch: %w", err)
	}
	if runParallel {
		req.Parallel = &runParallel
	}

	svc, cleanup, err := buildService()
	if err != nil {
		return err
	}
	defer cleanup()

	resp, err := svc.Submit(context.Background(), &req)
	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(map[string]any{
		"results": resp.Results,
		"report":  svc.Report(),
	}, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))

	for _, result := range resp.Results {
		if !result.Success {
			return fmt.Errorf("feature %s did not reach GREEN", result.FeatureID)
		}
	}
	return nil
}
