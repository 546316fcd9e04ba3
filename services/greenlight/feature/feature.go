// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package feature defines the plain-data contracts exchanged between the
// TDD execution core and its collaborators (planner, coder, test-writer,
// reviewer agents).
//
// These types carry no behavior beyond validation and simple derived
// getters. They are intended to round-trip through JSON unchanged.
package feature

import "time"

// =============================================================================
// FEATURE DESCRIPTOR
// =============================================================================

// Feature describes one unit of work flowing through the TDD pipeline.
type Feature struct {
	// ID uniquely identifies the feature within a run.
	ID string `json:"id"`

	// Title is a short human-readable name.
	Title string `json:"title"`

	// Description is the natural-language requirement text.
	Description string `json:"description"`

	// DependsOn lists feature IDs that must complete before this one.
	DependsOn []string `json:"depends_on,omitempty"`

	// TestCriteria captures the acceptance criteria for test generation.
	TestCriteria *TestCriteria `json:"test_criteria,omitempty"`

	// Metadata carries opaque caller-supplied values (index, tags, etc).
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Validate checks that the feature has the required fields.
func (f *Feature) Validate() error {
	if f.ID == "" {
		return ErrMissingID
	}
	if f.Title == "" && f.Description == "" {
		return ErrEmptyFeature
	}
	return nil
}

// TestCriteria captures structured acceptance criteria for a feature.
type TestCriteria struct {
	// InputExamples are representative inputs.
	InputExamples []string `json:"input_examples,omitempty"`

	// ExpectedOutputs are the outputs paired with InputExamples.
	ExpectedOutputs []string `json:"expected_outputs,omitempty"`

	// EdgeCases describe boundary conditions the tests must cover.
	EdgeCases []string `json:"edge_cases,omitempty"`

	// ErrorConditions describe failure modes the tests must cover.
	ErrorConditions []string `json:"error_conditions,omitempty"`
}

// =============================================================================
// TEST EXECUTION RESULT
// =============================================================================

// TestResult is the outcome of one test suite execution, as reported by
// the external test executor.
type TestResult struct {
	// Success is true if the run as a whole passed.
	Success bool `json:"success"`

	// Passed is the number of passing tests.
	Passed int `json:"passed"`

	// Failed is the number of failing tests.
	Failed int `json:"failed"`

	// Errors holds error strings from the run (collection errors etc).
	Errors []string `json:"errors,omitempty"`

	// Output is the raw stdout/stderr from the test runner.
	Output string `json:"output,omitempty"`

	// TestFiles are the test file names involved in the run.
	TestFiles []string `json:"test_files,omitempty"`

	// ExpectedFailure is true when the caller ran the suite expecting it
	// to fail (RED phase validation).
	ExpectedFailure bool `json:"expected_failure"`

	// FailureDetails optionally carries structured per-test failures.
	FailureDetails []FailureDetail `json:"failure_details,omitempty"`

	// Coverage is the measured coverage percentage, if collected.
	Coverage float64 `json:"coverage,omitempty"`

	// ExecutionTime is how long the run took.
	ExecutionTime time.Duration `json:"execution_time"`
}

// FailureDetail is one structured test failure from the executor, when the
// executor can provide more than raw output.
type FailureDetail struct {
	// TestFile is the file containing the failing test.
	TestFile string `json:"test_file"`

	// TestName is the failing test's name.
	TestName string `json:"test_name"`

	// Message is the failure message.
	Message string `json:"message"`
}

// =============================================================================
// CODE PAYLOAD
// =============================================================================

// CodePayload maps filename to file content. Filenames may be path-like
// ("pkg/server/handler.py"); the storage layer is responsible for any
// filesystem-safe transliteration.
type CodePayload map[string]string

// Clone returns an independent copy of the payload.
func (p CodePayload) Clone() CodePayload {
	out := make(CodePayload, len(p))
	for name, content := range p {
		out[name] = content
	}
	return out
}

// Merge overlays other onto a copy of p and returns the result. Entries in
// other win on filename collision.
func (p CodePayload) Merge(other CodePayload) CodePayload {
	out := p.Clone()
	for name, content := range other {
		out[name] = content
	}
	return out
}
