// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package red

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"time"

	"github.com/AleutianAI/GreenlightFOSS/services/greenlight/feature"
)

// DefaultExecTimeout bounds a single test run.
const DefaultExecTimeout = 5 * time.Minute

// pytest prints a summary line like "2 failed, 1 passed in 0.12s".
var (
	pytestPassedPattern = regexp.MustCompile(`(\d+) passed`)
	pytestFailedPattern = regexp.MustCompile(`(\d+) (?:failed|error)`)
	goPassPattern       = regexp.MustCompile(`(?m)^--- PASS:`)
	goFailPattern       = regexp.MustCompile(`(?m)^--- FAIL:`)
)

// SubprocessExecutor runs test suites by shelling out to the project's
// test runner (pytest or go test).
//
// The implementation payload is materialized into a scratch copy of the
// project root before each run, so a failing attempt never dirties the
// caller's tree.
//
// Thread Safety: Safe for concurrent use; each run gets its own scratch
// directory.
type SubprocessExecutor struct {
	dialect string
	timeout time.Duration
	logger  *slog.Logger
}

// NewSubprocessExecutor creates an executor for the given dialect
// ("pytest" or "gotest").
func NewSubprocessExecutor(dialect string, timeout time.Duration, logger *slog.Logger) *SubprocessExecutor {
	if logger == nil {
		logger = slog.Default()
	}
	if dialect == "" {
		dialect = "pytest"
	}
	if timeout <= 0 {
		timeout = DefaultExecTimeout
	}
	return &SubprocessExecutor{dialect: dialect, timeout: timeout, logger: logger}
}

// Execute materializes the implementation and runs the suite.
//
// Outputs:
//
//	*feature.TestResult - Parsed pass/fail counts and raw output. A
//	    non-zero runner exit is a failing result, not an error.
//	error - Scratch setup failures or an unknown dialect.
func (e *SubprocessExecutor) Execute(ctx context.Context, req ExecRequest) (*feature.TestResult, error) {
	scratch, err := e.materialize(req)
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(scratch)

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	var cmd *exec.Cmd
	switch e.dialect {
	case "pytest":
		args := append([]string{"-v", "--tb=short"}, req.TestFiles...)
		cmd = exec.CommandContext(ctx, "pytest", args...)
	case "gotest":
		cmd = exec.CommandContext(ctx, "go", "test", "-v", "./...")
	default:
		return nil, fmt.Errorf("unknown test dialect %q", e.dialect)
	}
	cmd.Dir = scratch

	var output bytes.Buffer
	cmd.Stdout = &output
	cmd.Stderr = &output

	start := time.Now()
	runErr := cmd.Run()
	elapsed := time.Since(start)

	if ctx.Err() != nil {
		return nil, fmt.Errorf("test run for feature %s: %w", req.FeatureID, ctx.Err())
	}

	result := parseRunnerOutput(e.dialect, output.String())
	result.TestFiles = req.TestFiles
	result.ExpectedFailure = req.ExpectFailure && !result.Success
	result.ExecutionTime = elapsed

	if runErr != nil && result.Passed == 0 && result.Failed == 0 {
		// The runner died before reporting any tests (collection error,
		// missing binary). Surface it as a failing run with the output.
		result.Errors = append(result.Errors, runErr.Error())
	}

	e.logger.Debug("Test run finished",
		slog.String("feature_id", req.FeatureID),
		slog.Bool("success", result.Success),
		slog.Int("passed", result.Passed),
		slog.Int("failed", result.Failed),
	)
	return result, nil
}

// materialize copies the project root into a scratch directory and lays
// the implementation and test payloads over it.
func (e *SubprocessExecutor) materialize(req ExecRequest) (string, error) {
	scratch, err := os.MkdirTemp("", "greenlight-run-")
	if err != nil {
		return "", fmt.Errorf("creating scratch directory: %w", err)
	}

	if req.ProjectRoot != "" && req.ProjectRoot != "." {
		if err := copyTree(req.ProjectRoot, scratch); err != nil {
			os.RemoveAll(scratch)
			return "", fmt.Errorf("copying project root: %w", err)
		}
	}

	for _, payload := range []feature.CodePayload{req.Implementation, req.TestPayload} {
		if err := writeFiles(scratch, payload); err != nil {
			os.RemoveAll(scratch)
			return "", err
		}
	}
	return scratch, nil
}

// writeFiles lays a code payload down under dir.
func writeFiles(dir string, payload feature.CodePayload) error {
	for name, content := range payload {
		path := filepath.Join(dir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return err
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			return err
		}
	}
	return nil
}

// copyTree copies regular files from src into dst, skipping VCS and
// cache directories.
func copyTree(src, dst string) error {
	return filepath.WalkDir(src, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		base := filepath.Base(path)
		if d.IsDir() {
			if base == ".git" || base == "__pycache__" || base == ".pytest_cache" {
				return filepath.SkipDir
			}
			if rel == "." {
				return nil
			}
			return os.MkdirAll(filepath.Join(dst, rel), 0o755)
		}
		if !d.Type().IsRegular() {
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		return os.WriteFile(filepath.Join(dst, rel), data, 0o644)
	})
}

// parseRunnerOutput extracts pass/fail counts from runner output.
func parseRunnerOutput(dialect, output string) *feature.TestResult {
	result := &feature.TestResult{Output: output}
	switch dialect {
	case "gotest":
		result.Passed = len(goPassPattern.FindAllString(output, -1))
		result.Failed = len(goFailPattern.FindAllString(output, -1))
	default:
		if m := pytestPassedPattern.FindStringSubmatch(output); m != nil {
			result.Passed, _ = strconv.Atoi(m[1])
		}
		if m := pytestFailedPattern.FindStringSubmatch(output); m != nil {
			result.Failed, _ = strconv.Atoi(m[1])
		}
	}
	result.Success = result.Failed == 0 && result.Passed > 0
	return result
}
