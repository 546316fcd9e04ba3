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
	"context"

	"github.com/AleutianAI/GreenlightFOSS/services/greenlight/feature"
)

// =============================================================================
// FAILURE TYPES
// =============================================================================

// FailureType classifies a test failure by its root cause.
type FailureType string

const (
	// FailureAssertion is a failed assertion (expected vs actual mismatch).
	FailureAssertion FailureType = "assertion"

	// FailureImport is a missing module or unimportable name.
	FailureImport FailureType = "import_error"

	// FailureAttribute is a missing attribute or method on an object.
	FailureAttribute FailureType = "attribute_error"

	// FailureName is an undefined identifier.
	FailureName FailureType = "name_error"

	// FailureTypeError is a type mismatch (wrong arity, wrong kind).
	FailureTypeError FailureType = "type_error"

	// FailureUnknown is anything the parsers could not classify.
	FailureUnknown FailureType = "unknown"
)

// FailureContext is one structured, implementation-guiding test failure.
type FailureContext struct {
	// TestFile is the file containing the failing test.
	TestFile string `json:"test_file"`

	// TestName is the failing test's name.
	TestName string `json:"test_name"`

	// Type classifies the failure.
	Type FailureType `json:"failure_type"`

	// Message is the raw failure message.
	Message string `json:"message"`

	// Expected is the expected value parsed from an assertion, if any.
	Expected string `json:"expected,omitempty"`

	// Actual is the actual value parsed from an assertion, if any.
	Actual string `json:"actual,omitempty"`

	// MissingComponent is the module/class/name the failure points at.
	MissingComponent string `json:"missing_component,omitempty"`

	// Line is the source line number, when the output includes one.
	Line int `json:"line,omitempty"`
}

// =============================================================================
// IMPLEMENTATION CONTEXT
// =============================================================================

// ImplementationContext is the payload handed to the coder agent after RED
// validation: the feature, a summary of what failed, and per-failure-type
// hints. It is a plain nested mapping when serialized.
type ImplementationContext struct {
	// FeatureID identifies the feature under implementation.
	FeatureID string `json:"feature_id"`

	// FeatureTitle is the feature's short name.
	FeatureTitle string `json:"feature_title"`

	// FeatureDescription is the requirement text.
	FeatureDescription string `json:"feature_description"`

	// FailureSummary counts failures per type.
	FailureSummary map[FailureType]int `json:"failure_summary"`

	// MissingComponents aggregates unique missing modules/classes/names.
	MissingComponents []string `json:"missing_components,omitempty"`

	// Hints are human-readable implementation hints, one per failure type
	// present in the run.
	Hints []string `json:"hints"`

	// Failures is the raw per-failure detail list.
	Failures []FailureContext `json:"failures"`
}

// =============================================================================
// EXECUTOR
// =============================================================================

// ExecRequest describes one test suite execution.
type ExecRequest struct {
	// FeatureID identifies the feature the run belongs to.
	FeatureID string

	// TestFiles are the test files to run.
	TestFiles []string

	// TestPayload is the test suite source, materialized for every run.
	// This is what makes RED validation run the real suite even though
	// Implementation is empty.
	TestPayload feature.CodePayload

	// Implementation is the code under test. Empty in RED validation.
	Implementation feature.CodePayload

	// ProjectRoot is the working directory for the run.
	ProjectRoot string

	// ExpectFailure is true when the caller expects the suite to fail.
	ExpectFailure bool
}

// Executor runs test suites. Implementations live outside the core (the
// subprocess/container runner is a collaborator, not part of this package).
type Executor interface {
	// Execute runs the suite and reports the outcome. A failing suite is
	// a normal result, not an error; error means the run itself could not
	// be carried out.
	Execute(ctx context.Context, req ExecRequest) (*feature.TestResult, error)
}
