// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package red implements the RED phase of the TDD cycle: confirming that a
// freshly written test suite fails before any implementation exists, and
// turning those failures into structured guidance for the coder agent.
package red

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/AleutianAI/GreenlightFOSS/services/greenlight/feature"
	"github.com/AleutianAI/GreenlightFOSS/services/greenlight/phase"
)

// =============================================================================
// ORCHESTRATOR
// =============================================================================

// Orchestrator validates RED-phase entry and produces implementation
// context from test failures.
//
// Thread Safety: Safe for concurrent use; all mutable state lives in the
// tracker, which synchronizes internally.
type Orchestrator struct {
	tracker  *phase.Tracker
	executor Executor
	dialect  string
	logger   *slog.Logger
}

// NewOrchestrator creates a RED orchestrator.
//
// Inputs:
//
//	tracker - Phase tracker shared with the other orchestrators.
//	executor - Test suite runner.
//	dialect - Test-runner dialect ("pytest", "gotest"). Empty means pytest.
//	logger - Logger for structured logging. Nil uses slog.Default().
func NewOrchestrator(tracker *phase.Tracker, executor Executor, dialect string, logger *slog.Logger) *Orchestrator {
	if dialect == "" {
		dialect = "pytest"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		tracker:  tracker,
		executor: executor,
		dialect:  dialect,
		logger:   logger,
	}
}

// ValidateRedPhase runs the feature's test suite with no implementation and
// confirms that it fails.
//
// Description:
//
//	The defining check of the RED phase. The suite source is handed to the
//	executor and run with ExpectFailure set; a suite that passes at this
//	point is a hard error because it cannot be driving any implementation.
//	When the run fails as expected, the output is parsed into failure
//	contexts. An empty parse with a failing run still yields a single
//	generic import/collection failure so downstream consumers always get
//	at least one context.
//
// Inputs:
//
//	ctx - Context for cancellation.
//	feat - The feature whose tests are being validated.
//	tests - The test suite source, materialized for the run.
//	testFiles - Test files written for the feature.
//	projectRoot - Working directory for the run.
//
// Outputs:
//
//	[]FailureContext - At least one failure context on success.
//	error - ErrNotInRed, ErrTestsPassed, ErrNoTestFiles, or executor error.
func (o *Orchestrator) ValidateRedPhase(ctx context.Context, feat *feature.Feature, tests feature.CodePayload, testFiles []string, projectRoot string) ([]FailureContext, error) {
	if len(testFiles) == 0 {
		return nil, fmt.Errorf("%w: feature %s", ErrNoTestFiles, feat.ID)
	}
	if current, ok := o.tracker.CurrentPhase(feat.ID); !ok || current != phase.PhaseRed {
		return nil, fmt.Errorf("%w: feature %s is in %s", ErrNotInRed, feat.ID, current)
	}

	o.logger.Info("Validating RED phase",
		slog.String("feature_id", feat.ID),
		slog.Int("test_files", len(testFiles)),
	)

	result, err := o.executor.Execute(ctx, ExecRequest{
		FeatureID:     feat.ID,
		TestFiles:     testFiles,
		TestPayload:   tests,
		ProjectRoot:   projectRoot,
		ExpectFailure: true,
	})
	if err != nil {
		return nil, fmt.Errorf("executing tests for feature %s: %w", feat.ID, err)
	}

	if result.Success && !result.ExpectedFailure {
		o.logger.Error("RED phase violation: tests passed with no implementation",
			slog.String("feature_id", feat.ID),
		)
		return nil, fmt.Errorf("%w: feature %s", ErrTestsPassed, feat.ID)
	}

	contexts := o.parseFailures(result)
	if len(contexts) == 0 {
		// The run failed but nothing matched the dialect's patterns. Most
		// often a collection error before any test ran.
		contexts = []FailureContext{{
			Type:    FailureImport,
			Message: firstError(result, "test collection failed before any test ran"),
		}}
	}

	o.logger.Info("RED phase validated",
		slog.String("feature_id", feat.ID),
		slog.Int("failures", len(contexts)),
	)
	return contexts, nil
}

// ParseFailures extracts failure contexts from any failing run using the
// configured dialect. Used by the driver to refresh guidance between
// implementation attempts.
func (o *Orchestrator) ParseFailures(result *feature.TestResult) []FailureContext {
	return o.parseFailures(result)
}

// parseFailures runs the configured dialect parser over the result.
func (o *Orchestrator) parseFailures(result *feature.TestResult) []FailureContext {
	parser := GetFailureParser(o.dialect)
	if parser == nil {
		return genericParse(result)
	}
	return parser.Parse(result)
}

// genericParse is the fallback for unregistered dialects: classify each
// error string and structured failure detail directly.
func genericParse(result *feature.TestResult) []FailureContext {
	if result == nil {
		return nil
	}
	contexts := make([]FailureContext, 0)
	for _, d := range result.FailureDetails {
		fc := ClassifyFailure(d.Message)
		fc.TestFile = d.TestFile
		fc.TestName = d.TestName
		contexts = append(contexts, fc)
	}
	for _, e := range result.Errors {
		contexts = append(contexts, ClassifyFailure(e))
	}
	return contexts
}

// firstError returns the run's first error string, or the fallback.
func firstError(result *feature.TestResult, fallback string) string {
	if result != nil && len(result.Errors) > 0 {
		return result.Errors[0]
	}
	return fallback
}

// =============================================================================
// IMPLEMENTATION CONTEXT
// =============================================================================

// hintForType maps each failure type to an implementation hint.
var hintForType = map[FailureType]string{
	FailureImport:    "Create the missing modules and classes the tests import",
	FailureAssertion: "Implement the behavior the assertions describe (expected vs actual values are attached)",
	FailureAttribute: "Add the missing attributes and methods to the objects under test",
	FailureName:      "Define the missing names the tests reference",
	FailureTypeError: "Match the signatures (argument counts and types) the tests call with",
	FailureUnknown:   "Read the raw failure messages for guidance",
}

// PrepareImplementationContext aggregates failure contexts into the payload
// handed to the coder agent.
//
// Description:
//
//	Groups failures by type, collects the unique missing components, and
//	attaches one hint per failure type present. Output ordering is
//	deterministic: hints follow the classification priority order and
//	missing components are sorted.
func (o *Orchestrator) PrepareImplementationContext(feat *feature.Feature, failures []FailureContext) *ImplementationContext {
	ic := &ImplementationContext{
		FeatureID:          feat.ID,
		FeatureTitle:       feat.Title,
		FeatureDescription: feat.Description,
		FailureSummary:     make(map[FailureType]int),
		Failures:           failures,
	}

	missing := make(map[string]struct{})
	for _, fc := range failures {
		ic.FailureSummary[fc.Type]++
		if fc.MissingComponent != "" {
			missing[fc.MissingComponent] = struct{}{}
		}
	}

	for name := range missing {
		ic.MissingComponents = append(ic.MissingComponents, name)
	}
	sort.Strings(ic.MissingComponents)

	for _, ft := range []FailureType{
		FailureImport, FailureAssertion, FailureAttribute,
		FailureName, FailureTypeError, FailureUnknown,
	} {
		if ic.FailureSummary[ft] > 0 {
			ic.Hints = append(ic.Hints, hintForType[ft])
		}
	}
	return ic
}

// EnforceRedPhase validates RED entry and prepares the coder's guidance in
// one step, converting any failure into a RedPhaseError so callers can
// attribute it to the feature with errors.As.
func (o *Orchestrator) EnforceRedPhase(ctx context.Context, feat *feature.Feature, tests feature.CodePayload, testFiles []string, projectRoot string) (*ImplementationContext, error) {
	contexts, err := o.ValidateRedPhase(ctx, feat, tests, testFiles, projectRoot)
	if err != nil {
		return nil, &RedPhaseError{FeatureID: feat.ID, Err: err}
	}
	return o.PrepareImplementationContext(feat, contexts), nil
}
